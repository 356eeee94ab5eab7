// Package settings provides file-based persistence for per-plugin settings.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the settings document inside a plugin settings directory.
const DefaultFileName = "settings.yaml"

type fileStoreConfig struct {
	fileName string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		fileName: DefaultFileName,
		dirPerm:  0o750,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithFileName sets the settings file name.
func WithFileName(name string) FileStoreOption {
	return func(c *fileStoreConfig) {
		if name != "" {
			c.fileName = name
		}
	}
}

// WithFilePermissions sets the file permissions for the settings file.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions for a created settings directory.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// FileStore keeps one plugin's settings as YAML in its settings directory.
// The directory is created on first save.
type FileStore struct {
	dir    string
	config fileStoreConfig
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{dir: dir, config: cfg}
}

// Path returns the settings file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, s.config.fileName)
}

// Load decodes stored settings into v. Missing or empty settings leave v
// untouched.
func (s *FileStore) Load(v any) error {
	if s.dir == "" {
		return nil
	}
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	return nil
}

// Save persists v, replacing the previous settings atomically.
func (s *FileStore) Save(v any) error {
	if s.dir == "" {
		return fmt.Errorf("plugin has no settings directory")
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(s.dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Chmod(s.config.filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// LoadJSON returns stored settings encoded as JSON, or nil when none exist.
// Wasm plugins exchange settings as JSON documents.
func (s *FileStore) LoadJSON() ([]byte, error) {
	var v any
	if err := s.Load(&v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// SaveJSON stores a JSON settings document.
func (s *FileStore) SaveJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("settings are not valid JSON: %w", err)
	}
	return s.Save(v)
}
