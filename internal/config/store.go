package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	apperrors "github.com/voicerig/voicerig/internal/errors"
)

// Store loads and persists the configuration document. The filesystem is
// abstracted so tests run against an in-memory fs.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a store for the given path on the OS filesystem.
func NewStore(path string) *Store {
	return NewStoreFs(afero.NewOsFs(), path)
}

// NewStoreFs creates a store on an explicit filesystem.
func NewStoreFs(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Load reads the document, applying defaults for missing fields and the
// environment overrides. A missing or malformed file falls back to the full
// default document with a warning; only an unreadable file is an error.
func (s *Store) Load() (*Config, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("config file not found, using defaults", "path", s.path)
			cfg := Default()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, apperrors.Wrapf(err, apperrors.CodeConfig, "read config %s", s.path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		slog.Warn("config file malformed, using defaults", "path", s.path, "error", err)
		fallback := Default()
		fallback.applyEnv()
		return fallback, nil
	}
	cfg.fillDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Save writes the document atomically: marshal to a temp file in the same
// directory, then rename over the target.
func (s *Store) Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfig, "marshal config")
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Wrapf(err, apperrors.CodeConfig, "create config dir %s", dir)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfig, "write %s", tmp)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return apperrors.Wrapf(err, apperrors.CodeConfig, "replace %s", s.path)
	}

	slog.Debug("config saved", "path", s.path, "actions", len(cfg.Actions))
	return nil
}
