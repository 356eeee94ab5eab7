package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zip"
)

// DefaultExcludes are never packed.
var DefaultExcludes = []string{
	"NeedDelete.txt",
	"**/.DS_Store",
	".git/**",
}

// Pack writes every file under srcDir, except those matching an exclude
// pattern, into a new archive at outPath. It returns the number of files
// written. The archive is written to a sibling temp file and renamed into
// place so a failed pack never leaves a truncated package behind.
func Pack(ctx context.Context, srcDir, outPath string, exclude ...string) (int, error) {
	patterns := append(append([]string{}, DefaultExcludes...), exclude...)
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return 0, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	fsys := os.DirFS(srcDir)
	var files []string
	err := doublestar.GlobWalk(fsys, "**", func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, p); ok {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %q: %w", srcDir, err)
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("nothing to pack in %q", srcDir)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".pack-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	zw := zip.NewWriter(tmp)
	for _, p := range files {
		if err := addFile(zw, fsys, p); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		return 0, fmt.Errorf("write %q: %w", outPath, err)
	}
	return len(files), nil
}

func addFile(zw *zip.Writer, fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %q: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("add %q: %w", name, err)
	}
	return nil
}
