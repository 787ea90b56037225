package config

import (
	"io/fs"
	"os"
)

// FileSystem is the filesystem surface the loader reads through
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
	UserHomeDir() (string, error)
}

// OSFileSystem reads the real filesystem
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(path string) ([]byte, error)  { return os.ReadFile(path) }
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }
func (OSFileSystem) UserHomeDir() (string, error)          { return os.UserHomeDir() }
