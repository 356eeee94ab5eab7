package values

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Digest is the content hash of a plugin package.
type Digest struct {
	algorithm string
	value     string
}

// ParseDigest parses a digest string of the form "sha256:<hex>".
func ParseDigest(s string) (Digest, error) {
	algo, hexValue, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || hexValue == "" {
		return Digest{}, fmt.Errorf("invalid digest format: %q", s)
	}
	if algo != "sha256" {
		return Digest{}, fmt.Errorf("unsupported digest algorithm: %s", algo)
	}
	if _, err := hex.DecodeString(hexValue); err != nil {
		return Digest{}, fmt.Errorf("invalid digest value: %w", err)
	}
	return Digest{algorithm: algo, value: strings.ToLower(hexValue)}, nil
}

// ComputeDigest hashes everything readable from r.
func ComputeDigest(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	return Digest{algorithm: "sha256", value: hex.EncodeToString(h.Sum(nil))}, nil
}

// ComputeFileDigest hashes the file at path.
func ComputeFileDigest(path string) (Digest, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Digest{}, err
	}
	defer func() { _ = f.Close() }()
	return ComputeDigest(f)
}

// String returns the canonical "algo:hex" form, or "" for the zero digest.
func (d Digest) String() string {
	if d.IsZero() {
		return ""
	}
	return d.algorithm + ":" + d.value
}

// Algorithm returns the hash algorithm.
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Value returns the hex-encoded hash.
func (d Digest) Value() string {
	return d.value
}

// IsZero reports whether the digest was never computed.
func (d Digest) IsZero() bool {
	return d.value == ""
}

// Equals checks equality with another digest.
func (d Digest) Equals(other Digest) bool {
	return d.algorithm == other.algorithm && d.value == other.value
}
