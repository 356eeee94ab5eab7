package resolvers

import (
	"fmt"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
	"github.com/stranslate-dev/stranslate-plugin-host/plugin/values"
)

// VersionVerdict is the outcome of comparing an incoming package version
// against an installed one.
type VersionVerdict int

const (
	// VerdictUnparsable means either version is not dotted numeric.
	VerdictUnparsable VersionVerdict = iota
	// VerdictTooOld means incoming <= installed.
	VerdictTooOld
	// VerdictNewer means incoming > installed.
	VerdictNewer
)

func (v VersionVerdict) String() string {
	switch v {
	case VerdictNewer:
		return "newer"
	case VerdictTooOld:
		return "too-old"
	default:
		return "unparsable"
	}
}

// Err returns the sentinel matching a failing verdict, or nil for VerdictNewer.
func (v VersionVerdict) Err() error {
	switch v {
	case VerdictNewer:
		return nil
	case VerdictTooOld:
		return entities.ErrVersionTooOld
	default:
		return entities.ErrVersionUnparsable
	}
}

// CompareIncoming decides whether incoming may replace installed.
// It never guesses: a version that does not parse is reported, not compared.
func CompareIncoming(installed, incoming string) VersionVerdict {
	cur, err := values.ParseVersion(installed)
	if err != nil {
		return VerdictUnparsable
	}
	next, err := values.ParseVersion(incoming)
	if err != nil {
		return VerdictUnparsable
	}
	if !next.GreaterThan(cur) {
		return VerdictTooOld
	}
	return VerdictNewer
}

// VerdictMessage renders a user-facing explanation for a verdict.
func VerdictMessage(v VersionVerdict, installed, incoming string) string {
	switch v {
	case VerdictNewer:
		return fmt.Sprintf("version %s is newer than installed %s", incoming, installed)
	case VerdictTooOld:
		return fmt.Sprintf("version %s is not newer than installed %s", incoming, installed)
	default:
		return fmt.Sprintf("cannot parse version (installed %q, incoming %q)", installed, incoming)
	}
}
