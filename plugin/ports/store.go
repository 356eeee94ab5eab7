package ports

import (
	"context"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// JournalRepository persists the pending-operations journal.
type JournalRepository interface {
	Load(ctx context.Context, path string) (*entities.Journal, error)
	Save(ctx context.Context, journal *entities.Journal, path string) error
}

// PackageStore manages the on-disk plugin directories.
type PackageStore interface {
	// Enumerate replays pending operations, resolves sentinels and upgrade
	// suffixes, and returns candidate package directories across all roots.
	Enumerate(ctx context.Context) ([]string, error)

	// IsPreinstalled reports whether dir lies under the pre-installed root.
	IsPreinstalled(dir string) bool

	// TempSlot returns the extraction directory for a package file name.
	TempSlot(packageName string) string

	// TargetDir returns where a package is placed in the store.
	TargetDir(packageName, pluginID string, preinstalled bool) string

	// MoveDir relocates a directory, failing if to already exists.
	MoveDir(ctx context.Context, from, to string) error

	// MarkForDeletion schedules dir for removal on the next Enumerate.
	// Marking a nonexistent directory is a no-op.
	MarkForDeletion(ctx context.Context, dir string) error

	// StageUpgrade moves the extracted package to the upgrade slot of existingDir.
	StageUpgrade(ctx context.Context, from, existingDir string) (string, error)

	// UnstageUpgrade undoes StageUpgrade.
	UnstageUpgrade(ctx context.Context, staged, from string) error

	// DiscardUpgrade removes any staged upgrade of existingDir.
	DiscardUpgrade(ctx context.Context, existingDir string) error

	// RemoveTemp removes a temp slot. It is best effort.
	RemoveTemp(ctx context.Context, dir string) error

	// Close removes the process temp root.
	Close(ctx context.Context) error
}

// PackageExtractor unpacks a package archive into a directory.
type PackageExtractor interface {
	Extract(ctx context.Context, packagePath, dest string) error
}
