package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader resolves profiles through a FileSystem and an environment lookup
type Loader struct {
	fs     FileSystem
	getenv func(string) string
}

// NewLoader creates a Loader. A nil getenv sees an empty environment.
func NewLoader(fsys FileSystem, getenv func(string) string) *Loader {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return &Loader{fs: fsys, getenv: getenv}
}

// NewDefaultLoader reads the real filesystem and process environment
func NewDefaultLoader() *Loader {
	return NewLoader(OSFileSystem{}, os.Getenv)
}

// DefaultPath returns ~/.atlas/config.yaml
func (l *Loader) DefaultPath() (string, error) {
	home, err := l.fs.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".atlas", "config.yaml"), nil
}

// LoadGlobalConfigFromPath loads global config from a specific path using provided FileSystem
func LoadGlobalConfigFromPath(path string, fsys FileSystem) (*GlobalConfig, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.ActiveProfile == "" {
		return nil, fmt.Errorf("active_profile not specified in config")
	}
	if p, ok := config.Profiles[config.ActiveProfile]; !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoActiveProfile, config.ActiveProfile)
	}

	return &config, nil
}

// Load resolves the active profile from path (or the default location when
// empty), fills defaults and applies environment overrides. A missing file at
// the default location falls back to the built-in profile.
func (l *Loader) Load(path string) (*Profile, error) {
	explicit := path != ""
	if !explicit {
		p, err := l.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		path = p
	}

	global := DefaultGlobalConfig()
	if _, err := l.fs.Stat(path); err == nil || explicit {
		loaded, err := LoadGlobalConfigFromPath(path, l.fs)
		if err != nil {
			return nil, err
		}
		global = loaded
	} else {
		slog.Debug("Config not found, using defaults", "path", path)
	}

	profile := *global.Profiles[global.ActiveProfile]
	l.ApplyEnv(&profile)
	ApplyDefaults(&profile)

	dataDir, err := l.expandHome(profile.DataDir)
	if err != nil {
		return nil, err
	}
	// A relative data_dir is relative to the config file
	if dataDir, err = ResolveRelativePath(filepath.Dir(path), dataDir); err != nil {
		return nil, err
	}
	profile.DataDir = dataDir

	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", global.ActiveProfile, err)
	}
	return &profile, nil
}

// ApplyEnv overrides profile fields from environment variables
func (l *Loader) ApplyEnv(p *Profile) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := l.getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&p.DataDir, "ATLAS_DATA_DIR")
	set(&p.LLM.Provider, "ATLAS_LLM_PROVIDER")
	set(&p.LLM.Model, "ATLAS_LLM_MODEL")
	set(&p.Embedding.Provider, "ATLAS_EMBEDDING_PROVIDER")
	set(&p.Embedding.Model, "ATLAS_EMBEDDING_MODEL")

	// Provider credentials only fill in when the profile leaves them empty
	for _, c := range []*struct {
		provider string
		key      *string
		url      *string
	}{
		{p.LLM.Provider, &p.LLM.APIKey, &p.LLM.BaseURL},
		{p.Embedding.Provider, &p.Embedding.APIKey, &p.Embedding.BaseURL},
	} {
		switch c.provider {
		case "openai", "":
			if *c.key == "" {
				set(c.key, "OPENAI_API_KEY")
			}
		case "gemini":
			if *c.key == "" {
				set(c.key, "GEMINI_API_KEY", "GOOGLE_API_KEY")
			}
		case "ollama":
			if *c.url == "" {
				set(c.url, "OLLAMA_HOST")
			}
		}
	}
}

func (l *Loader) expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path), nil
	}
	home, err := l.fs.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// LoadLocal reads <root>/.atlas.yaml. A missing file yields nil without error.
func (l *Loader) LoadLocal(root string) (*LocalConfig, error) {
	path := filepath.Join(root, LocalConfigName)
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if _, statErr := l.fs.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read local config: %w", err)
	}

	var local LocalConfig
	if err := yaml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("failed to parse local config: %w", err)
	}
	return &local, nil
}

// MergeLocal returns the scan settings with local exclusions appended.
// Whitelist and extensions always come from the global profile.
func MergeLocal(scan ScanConfig, local *LocalConfig) ScanConfig {
	merged := scan
	merged.Exclude = append([]string{}, scan.Exclude...)
	merged.Blacklist = append([]string{}, scan.Blacklist...)
	if local != nil {
		merged.Exclude = append(merged.Exclude, local.Exclude...)
		merged.Blacklist = append(merged.Blacklist, local.Blacklist...)
	}
	return merged
}

// LoadEnvFiles loads .env.local then .env from dir into the process
// environment. Existing variables win and missing files are ignored.
func LoadEnvFiles(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("Failed to load env file", "path", path, "error", err)
			}
			continue
		}
		slog.Debug("Loaded env file", "path", path)
	}
}
