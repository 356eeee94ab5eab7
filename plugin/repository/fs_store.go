// Package repository implements the on-disk Package Store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/filesystem"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/ports"
)

const (
	// DeletionSentinel marks a directory for removal on the next discovery pass.
	DeletionSentinel = "NeedDelete.txt"
	// UpgradeSuffix marks a directory that supersedes its un-suffixed sibling.
	UpgradeSuffix = "_NeedUpgrade"
)

// FSPackageStore implements ports.PackageStore over a pre-installed root and
// a user root. Deferred operations are recorded both as on-disk conventions
// (sentinel file, directory suffix) and in a pending-operations journal.
type FSPackageStore struct {
	preRoot     string
	userRoot    string
	tempRoot    string
	ownsTemp    bool
	sweepRoots  []string
	journal     ports.JournalRepository
	journalPath string
	logger      *slog.Logger
	mu          sync.Mutex

	rename func(oldpath, newpath string) error
}

// Option configures an FSPackageStore.
type Option func(*FSPackageStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FSPackageStore) {
		s.logger = logger
	}
}

// WithJournal sets the journal repository and file path.
func WithJournal(repo ports.JournalRepository, path string) Option {
	return func(s *FSPackageStore) {
		s.journal = repo
		s.journalPath = path
	}
}

// WithTempRoot sets the extraction root instead of a fresh process temp dir.
func WithTempRoot(dir string) Option {
	return func(s *FSPackageStore) {
		s.tempRoot = dir
	}
}

// WithSweepRoots adds directories (settings and cache roots) whose marked
// subdirectories are removed during Enumerate.
func WithSweepRoots(dirs ...string) Option {
	return func(s *FSPackageStore) {
		s.sweepRoots = append(s.sweepRoots, dirs...)
	}
}

// NewFSPackageStore creates the store, creating both roots if needed.
func NewFSPackageStore(preRoot, userRoot string, opts ...Option) (*FSPackageStore, error) {
	s := &FSPackageStore{logger: slog.Default(), rename: os.Rename}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.preRoot, err = absClean(preRoot); err != nil {
		return nil, fmt.Errorf("pre-installed root: %w", err)
	}
	if s.userRoot, err = absClean(userRoot); err != nil {
		return nil, fmt.Errorf("user root: %w", err)
	}
	for _, root := range []string{s.preRoot, s.userRoot} {
		if err := os.MkdirAll(root, 0o750); err != nil {
			return nil, fmt.Errorf("create plugin root: %w", err)
		}
	}

	if s.tempRoot == "" {
		dir, err := os.MkdirTemp("", "stranslate-plugins-")
		if err != nil {
			return nil, fmt.Errorf("create temp root: %w", err)
		}
		s.tempRoot = dir
		s.ownsTemp = true
	} else if s.tempRoot, err = absClean(s.tempRoot); err != nil {
		return nil, fmt.Errorf("temp root: %w", err)
	}

	if s.journal == nil {
		s.journal = filesystem.NewFileJournalRepository()
	}
	if s.journalPath == "" {
		s.journalPath = filepath.Join(s.userRoot, filesystem.JournalFileName)
	}

	return s, nil
}

// PreRoot returns the pre-installed plugin root.
func (s *FSPackageStore) PreRoot() string { return s.preRoot }

// UserRoot returns the user plugin root.
func (s *FSPackageStore) UserRoot() string { return s.userRoot }

// TempRoot returns the process extraction root.
func (s *FSPackageStore) TempRoot() string { return s.tempRoot }

// Roots returns the search roots in discovery order.
func (s *FSPackageStore) Roots() []string {
	return []string{s.preRoot, s.userRoot}
}

// IsPreinstalled reports whether dir lies under the pre-installed root.
func (s *FSPackageStore) IsPreinstalled(dir string) bool {
	return within(s.preRoot, dir)
}

// TempSlot returns the extraction directory for a package file name.
func (s *FSPackageStore) TempSlot(packageName string) string {
	return filepath.Join(s.tempRoot, filepath.Base(packageName))
}

// TargetDir returns where a package is placed in the store. User installs are
// suffixed with the plugin id so packages sharing a file name do not collide.
func (s *FSPackageStore) TargetDir(packageName, pluginID string, preinstalled bool) string {
	packageName = filepath.Base(packageName)
	if preinstalled {
		return filepath.Join(s.preRoot, packageName)
	}
	return filepath.Join(s.userRoot, packageName+"_"+pluginID)
}

// MoveDir relocates from to to. It never touches an existing target. Across
// devices it falls back to copy and remove, and on failure removes only what
// the copy created.
func (s *FSPackageStore) MoveDir(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return &entities.MoveError{From: from, To: to, Err: err}
	}
	if _, err := os.Lstat(to); err == nil {
		return &entities.MoveError{From: from, To: to, Err: fmt.Errorf("target %q already exists", to)}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &entities.MoveError{From: from, To: to, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o750); err != nil {
		return &entities.MoveError{From: from, To: to, Err: err}
	}

	err := s.rename(from, to)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return &entities.MoveError{From: from, To: to, Err: err}
	}

	s.logger.DebugContext(ctx, "rename crosses devices, copying", "from", from, "to", to)
	if err := os.CopyFS(to, os.DirFS(from)); err != nil {
		_ = os.RemoveAll(to)
		return &entities.MoveError{From: from, To: to, Err: err}
	}
	if err := os.RemoveAll(from); err != nil {
		s.logger.WarnContext(ctx, "failed to remove moved source", "dir", from, "error", err)
	}
	return nil
}

// MarkForDeletion writes the deletion sentinel into dir and records a journal
// entry. Marking a nonexistent directory is a no-op; marking twice is harmless.
func (s *FSPackageStore) MarkForDeletion(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot mark %q: not a directory", dir)
	}

	if err := os.WriteFile(filepath.Join(dir, DeletionSentinel), nil, 0o600); err != nil {
		return fmt.Errorf("write deletion sentinel: %w", err)
	}

	s.record(ctx, entities.PendingOp{Op: entities.PendingDelete, Path: dir})
	return nil
}

// StageUpgrade moves an extracted package next to existingDir under the
// upgrade suffix, replacing any stale pending upgrade.
func (s *FSPackageStore) StageUpgrade(ctx context.Context, from, existingDir string) (string, error) {
	staged := filepath.Clean(existingDir) + UpgradeSuffix
	if _, err := os.Lstat(staged); err == nil {
		if err := os.RemoveAll(staged); err != nil {
			return "", fmt.Errorf("remove stale upgrade %q: %w", staged, err)
		}
	}
	if err := s.MoveDir(ctx, from, staged); err != nil {
		return "", err
	}
	s.record(ctx, entities.PendingOp{Op: entities.PendingRename, Path: staged, Target: filepath.Clean(existingDir)})
	return staged, nil
}

// UnstageUpgrade moves a staged upgrade back to from and forgets it.
func (s *FSPackageStore) UnstageUpgrade(ctx context.Context, staged, from string) error {
	if err := s.MoveDir(ctx, staged, from); err != nil {
		return err
	}
	s.forget(ctx, staged)
	return nil
}

// DiscardUpgrade drops a staged upgrade of existingDir and its journal entry.
// When the staged directory cannot be removed now it is marked for deletion,
// which the next Enumerate applies before promoting upgrades.
func (s *FSPackageStore) DiscardUpgrade(ctx context.Context, existingDir string) error {
	if existingDir == "" {
		return nil
	}
	staged := filepath.Clean(existingDir) + UpgradeSuffix
	s.forget(ctx, staged)
	if _, err := os.Lstat(staged); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := s.removeDir(staged); err != nil {
		s.logger.WarnContext(ctx, "failed to remove staged upgrade, marking it", "dir", staged, "error", err)
		return s.MarkForDeletion(ctx, staged)
	}
	return nil
}

// RemoveTemp removes a directory under the temp root.
func (s *FSPackageStore) RemoveTemp(ctx context.Context, dir string) error {
	if !within(s.tempRoot, dir) || filepath.Clean(dir) == s.tempRoot {
		return fmt.Errorf("refusing to remove %q outside temp root", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		s.logger.WarnContext(ctx, "failed to clean temp directory", "dir", dir, "error", err)
		return err
	}
	return nil
}

// Close removes the temp root when the store created it.
func (s *FSPackageStore) Close(ctx context.Context) error {
	if !s.ownsTemp {
		return nil
	}
	if err := os.RemoveAll(s.tempRoot); err != nil {
		return fmt.Errorf("remove temp root: %w", err)
	}
	return nil
}

// Pending returns the current journal.
func (s *FSPackageStore) Pending(ctx context.Context) (*entities.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Load(ctx, s.journalPath)
}

func (s *FSPackageStore) record(ctx context.Context, op entities.PendingOp) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.journal.Load(ctx, s.journalPath)
	if err != nil {
		s.logger.WarnContext(ctx, "pending journal unreadable, relying on directory markers", "error", err)
		return
	}
	changed, err := j.Add(op)
	if err != nil || !changed {
		return
	}
	if err := s.journal.Save(ctx, j, s.journalPath); err != nil {
		s.logger.WarnContext(ctx, "failed to record pending operation", "op", op.Op, "dir", op.Path, "error", err)
	}
}

func (s *FSPackageStore) forget(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.journal.Load(ctx, s.journalPath)
	if err != nil || j.Remove(path) == 0 {
		return
	}
	if err := s.journal.Save(ctx, j, s.journalPath); err != nil {
		s.logger.WarnContext(ctx, "failed to update pending journal", "dir", path, "error", err)
	}
}

func absClean(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is empty")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// within reports whether path lies inside root. Both are cleaned first.
func within(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(abs)
	return cleanPath == cleanRoot || strings.HasPrefix(cleanPath, cleanRoot+string(os.PathSeparator))
}
