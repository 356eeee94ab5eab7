package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// Enumerate replays the pending journal, applies sentinel and suffix
// conventions under every root, and returns the remaining package
// directories, pre-installed root first. Deletes always run before renames.
func (s *FSPackageStore) Enumerate(ctx context.Context) ([]string, error) {
	s.ReplayPending(ctx)

	for _, root := range s.sweepRoots {
		s.sweepMarked(ctx, root)
	}

	var dirs []string
	for _, root := range s.Roots() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.sweepMarked(ctx, root)
		s.promoteUpgrades(ctx, root)

		found, err := listDirs(root)
		if err != nil {
			s.logger.WarnContext(ctx, "cannot list plugin root", "dir", root, "error", err)
			continue
		}
		for _, dir := range found {
			if strings.HasSuffix(dir, UpgradeSuffix) {
				continue
			}
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// ReplayPending applies journaled operations and keeps only those that failed.
func (s *FSPackageStore) ReplayPending(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.journal.Load(ctx, s.journalPath)
	if err != nil {
		s.logger.WarnContext(ctx, "pending journal unreadable, relying on directory markers", "error", err)
		return
	}
	if j.Len() == 0 {
		return
	}

	remaining := entities.NewJournal()
	for _, op := range j.Deletes() {
		if err := s.removeDir(op.Path); err != nil {
			s.logger.WarnContext(ctx, "deferred delete failed", "dir", op.Path, "error", err)
			_, _ = remaining.Add(op)
			continue
		}
		s.logger.InfoContext(ctx, "removed directory marked for deletion", "dir", op.Path)
	}
	for _, op := range j.Renames() {
		if _, err := os.Stat(op.Path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := s.replaceDir(op.Path, op.Target); err != nil {
			s.logger.WarnContext(ctx, "deferred upgrade failed", "dir", op.Path, "target", op.Target, "error", err)
			_, _ = remaining.Add(op)
			continue
		}
		s.logger.InfoContext(ctx, "applied pending upgrade", "dir", op.Target)
	}

	if err := s.journal.Save(ctx, remaining, s.journalPath); err != nil {
		s.logger.WarnContext(ctx, "failed to update pending journal", "error", err)
	}
}

// sweepMarked removes every direct subdirectory of root holding the sentinel.
func (s *FSPackageStore) sweepMarked(ctx context.Context, root string) {
	dirs, err := listDirs(root)
	if err != nil {
		return
	}
	for _, dir := range dirs {
		if !fileExists(filepath.Join(dir, DeletionSentinel)) {
			continue
		}
		if err := s.removeDir(dir); err != nil {
			s.logger.WarnContext(ctx, "failed to remove marked directory", "dir", dir, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "removed directory marked for deletion", "dir", dir)
	}
}

// promoteUpgrades renames every suffixed directory of root to its base name.
func (s *FSPackageStore) promoteUpgrades(ctx context.Context, root string) {
	dirs, err := listDirs(root)
	if err != nil {
		return
	}
	for _, dir := range dirs {
		if !strings.HasSuffix(dir, UpgradeSuffix) {
			continue
		}
		target := strings.TrimSuffix(dir, UpgradeSuffix)
		if err := s.replaceDir(dir, target); err != nil {
			s.logger.WarnContext(ctx, "failed to apply pending upgrade", "dir", dir, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "applied pending upgrade", "dir", target)
	}
}

// removeDir deletes dir unless it is one of the store's roots.
func (s *FSPackageStore) removeDir(dir string) error {
	clean := filepath.Clean(dir)
	for _, root := range append(s.Roots(), s.sweepRoots...) {
		if clean == filepath.Clean(root) {
			return fmt.Errorf("refusing to remove store root %q", dir)
		}
	}
	return os.RemoveAll(clean)
}

func (s *FSPackageStore) replaceDir(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		if err := s.removeDir(to); err != nil {
			return err
		}
	}
	return os.Rename(from, to)
}

// listDirs returns the absolute paths of root's subdirectories in name order.
func listDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
