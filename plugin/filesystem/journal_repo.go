// Package filesystem provides file-based repositories for the infrastructure layer.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// JournalFileName is the default name of the pending-operations journal.
const JournalFileName = "pending.yaml"

// FileJournalRepository implements ports.JournalRepository using the local filesystem.
type FileJournalRepository struct{}

// NewFileJournalRepository creates a new FileJournalRepository.
func NewFileJournalRepository() *FileJournalRepository {
	return &FileJournalRepository{}
}

// Load reads a journal from the given path. A missing file yields an empty journal.
func (r *FileJournalRepository) Load(ctx context.Context, path string) (*entities.Journal, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entities.NewJournal(), nil
		}
		return nil, fmt.Errorf("failed to open directory %q: %w", dir, err)
	}
	defer func() { _ = root.Close() }()

	file, err := root.Open(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entities.NewJournal(), nil
		}
		return nil, fmt.Errorf("failed to open journal %q: %w", base, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat journal %q: %w", base, err)
	}
	if info.Size() == 0 {
		return entities.NewJournal(), nil
	}

	var out Journal
	if err := yaml.NewDecoder(file).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding journal YAML: %w", err)
	}

	journal := out.ToEntity()
	if journal.Version == 0 {
		journal.Version = 1
	}
	if err := journal.Validate(); err != nil {
		return nil, fmt.Errorf("invalid journal: %w", err)
	}

	return journal, nil
}

// Save writes the journal to path, replacing the previous file atomically.
// An empty journal removes the file.
func (r *FileJournalRepository) Save(ctx context.Context, journal *entities.Journal, path string) error {
	if journal == nil || journal.Len() == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing empty journal: %w", err)
		}
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("opening directory for write %q: %w", dir, err)
	}
	defer func() { _ = root.Close() }()

	base := filepath.Base(path)
	tmp := base + ".tmp"

	data, err := yaml.Marshal(FromEntity(journal))
	if err != nil {
		return fmt.Errorf("encoding journal: %w", err)
	}

	if err := root.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing journal %q: %w", tmp, err)
	}
	if err := root.Rename(tmp, base); err != nil {
		_ = root.Remove(tmp)
		return fmt.Errorf("replacing journal %q: %w", base, err)
	}

	return nil
}
