package config

import (
	"io/fs"
	"testing/fstest"
)

// memFS serves files from memory with a fixed home directory
type memFS struct {
	files fstest.MapFS
	home  string
}

func newMemFS() *memFS {
	return &memFS{files: fstest.MapFS{}, home: "/home/testuser"}
}

// key maps an absolute path onto the fs.FS namespace
func key(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}

func (m *memFS) ReadFile(path string) ([]byte, error) { return m.files.ReadFile(key(path)) }
func (m *memFS) Stat(path string) (fs.FileInfo, error) { return m.files.Stat(key(path)) }
func (m *memFS) UserHomeDir() (string, error)          { return m.home, nil }

func (m *memFS) AddFile(path string, content []byte) {
	m.files[key(path)] = &fstest.MapFile{Data: content, Mode: 0644}
}
