package filesystem_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileJournalRepository(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "data", filesystem.JournalFileName)
	repo := filesystem.NewFileJournalRepository()
	ctx := context.Background()

	t.Run("Load missing", func(t *testing.T) {
		j, err := repo.Load(ctx, filepath.Join(tmpDir, "nowhere", "pending.yaml"))
		require.NoError(t, err)
		require.NotNil(t, j)
		assert.Equal(t, 0, j.Len())
	})

	t.Run("Save and Load", func(t *testing.T) {
		j := entities.NewJournal()
		recorded := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		_, err := j.Add(entities.PendingOp{Op: entities.PendingDelete, Path: "/plugins/a", Recorded: recorded})
		require.NoError(t, err)
		_, err = j.Add(entities.PendingOp{Op: entities.PendingRename, Path: "/plugins/b_NeedUpgrade", Target: "/plugins/b"})
		require.NoError(t, err)

		require.NoError(t, repo.Save(ctx, j, path))

		loaded, err := repo.Load(ctx, path)
		require.NoError(t, err)
		require.Equal(t, 2, loaded.Len())
		assert.Equal(t, entities.PendingDelete, loaded.Entries[0].Op)
		assert.Equal(t, recorded.Unix(), loaded.Entries[0].Recorded.Unix())
		assert.Equal(t, "/plugins/b", loaded.Entries[1].Target)

		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Save empty removes file", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, entities.NewJournal(), path))
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		require.NoError(t, repo.Save(ctx, nil, path), "removing twice is fine")
	})

	t.Run("Load invalid", func(t *testing.T) {
		bad := filepath.Join(tmpDir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("pending:\n  - op: explode\n    path: /x\n"), 0o600))
		_, err := repo.Load(ctx, bad)
		assert.ErrorContains(t, err, "invalid journal")
	})
}
