// Package archive reads and writes .spkg plugin packages (zip archives).
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/stranslate-dev/stranslate-plugin-host/netutil"
)

const (
	// DefaultMaxEntrySize caps a single extracted file.
	DefaultMaxEntrySize int64 = 256 << 20
	// DefaultMaxEntries caps the number of entries in one package.
	DefaultMaxEntries = 10000
)

// Extractor unpacks packages into a destination directory. Every write goes
// through an os.Root opened on the destination, so entries cannot escape it.
type Extractor struct {
	maxEntrySize int64
	maxEntries   int
	logger       *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxEntrySize sets the per-entry size limit.
func WithMaxEntrySize(n int64) Option {
	return func(e *Extractor) {
		e.maxEntrySize = n
	}
}

// WithMaxEntries sets the entry count limit.
func WithMaxEntries(n int) Option {
	return func(e *Extractor) {
		e.maxEntries = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor with default limits.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxEntrySize: DefaultMaxEntrySize,
		maxEntries:   DefaultMaxEntries,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract unpacks the archive at packagePath into dest, creating dest.
// On error dest may hold a partial extraction; the caller owns cleanup.
func (e *Extractor) Extract(ctx context.Context, packagePath, dest string) error {
	zr, err := zip.OpenReader(packagePath)
	if err != nil {
		return fmt.Errorf("open package: %w", err)
	}
	defer func() { _ = zr.Close() }()

	if len(zr.File) > e.maxEntries {
		return fmt.Errorf("package has %d entries, limit is %d", len(zr.File), e.maxEntries)
	}

	if err := os.MkdirAll(dest, 0o750); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return fmt.Errorf("open extraction dir: %w", err)
	}
	defer func() { _ = root.Close() }()

	var total int64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, err := entryName(f.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := root.MkdirAll(name, 0o750); err != nil {
				return fmt.Errorf("create %q: %w", name, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			e.logger.WarnContext(ctx, "skipping non-regular package entry", "entry", f.Name, "mode", f.Mode().String())
			continue
		}

		n, err := e.writeEntry(root, name, f)
		if err != nil {
			return err
		}
		total += n
	}

	e.logger.DebugContext(ctx, "extracted package", "package", packagePath, "dir", dest,
		"entries", len(zr.File), "size", netutil.FormatSize(total))
	return nil
}

func (e *Extractor) writeEntry(root *os.Root, name string, f *zip.File) (int64, error) {
	if dir := filepath.Dir(name); dir != "." {
		if err := root.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("create %q: %w", dir, err)
		}
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open entry %q: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create %q: %w", name, err)
	}

	n, copyErr := io.Copy(out, netutil.NewLimitedReader(rc, e.maxEntrySize))
	closeErr := out.Close()
	if copyErr != nil {
		return n, fmt.Errorf("extract %q: %w", f.Name, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("extract %q: %w", f.Name, closeErr)
	}
	return n, nil
}

// entryName validates a zip entry name and converts it to a local path.
// Directory entries return their path; "" means the entry is the root itself.
func entryName(raw string) (string, error) {
	name := strings.ReplaceAll(raw, `\`, "/")
	name = strings.TrimSuffix(name, "/")
	if name == "" || name == "." {
		return "", nil
	}
	clean := path.Clean(name)
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", errors.New("package entry escapes extraction dir: " + raw)
	}
	return filepath.FromSlash(clean), nil
}
