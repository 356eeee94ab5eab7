package values

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a dotted numeric plugin version with two to four components,
// e.g. "1.0", "1.2.3" or "1.2.3.4". The first three components are held as a
// semantic version; the optional fourth is a revision compared last.
type Version struct {
	core     *semver.Version
	revision uint64
	raw      string
}

// ParseVersion parses a dotted numeric version string.
// Pre-release tags, build metadata and a "v" prefix are rejected.
func ParseVersion(s string) (Version, error) {
	raw := s
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return Version{}, fmt.Errorf("invalid version %q: expected 2 to 4 numeric components", raw)
	}

	nums := make([]uint64, 4)
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return Version{}, fmt.Errorf("invalid version %q: component %d is not numeric", raw, i+1)
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", raw, err)
		}
		nums[i] = n
	}

	return Version{
		core:     semver.New(nums[0], nums[1], nums[2], "", ""),
		revision: nums[3],
		raw:      raw,
	}, nil
}

// ParseVersionOrZero parses s, returning the zero version when it cannot be parsed.
func ParseVersionOrZero(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		return Version{raw: s}
	}
	return v
}

// Compare returns -1, 0 or 1. Unparsed versions compare as 0.0.0.0.
func (v Version) Compare(other Version) int {
	if c := v.semver().Compare(other.semver()); c != 0 {
		return c
	}
	switch {
	case v.revision < other.revision:
		return -1
	case v.revision > other.revision:
		return 1
	}
	return 0
}

// GreaterThan reports whether v is strictly newer than other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// IsZero reports whether v holds no parsed version.
func (v Version) IsZero() bool {
	return v.core == nil
}

// Original returns the string the version was parsed from.
func (v Version) Original() string {
	return v.raw
}

func (v Version) String() string {
	s := v.semver().String()
	if v.revision != 0 {
		s += "." + strconv.FormatUint(v.revision, 10)
	}
	return s
}

func (v Version) semver() *semver.Version {
	if v.core == nil {
		return semver.New(0, 0, 0, "", "")
	}
	return v.core
}
