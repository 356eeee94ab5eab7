package entities

import (
	"fmt"
	"path/filepath"
	"time"
)

// PendingOpKind is the action replayed at the next discovery pass.
type PendingOpKind string

const (
	// PendingDelete removes Path.
	PendingDelete PendingOpKind = "delete"
	// PendingRename moves Path to Target, replacing Target.
	PendingRename PendingOpKind = "rename"
)

// PendingOp is one deferred filesystem operation.
type PendingOp struct {
	Recorded time.Time
	Op       PendingOpKind
	Path     string
	Target   string
}

// Journal is the log of operations deferred to the next process start.
//
// Invariants:
// - At most one entry per (Op, Path, Target)
// - Rename entries have a Target
type Journal struct {
	Entries []PendingOp
	Version int
}

// NewJournal creates an empty journal at the current format version.
func NewJournal() *Journal {
	return &Journal{Version: 1}
}

// Add appends op unless an equal entry exists. It reports whether the
// journal changed.
func (j *Journal) Add(op PendingOp) (bool, error) {
	if op.Path == "" {
		return false, fmt.Errorf("pending %s: path is required", op.Op)
	}
	if op.Op == PendingRename && op.Target == "" {
		return false, fmt.Errorf("pending rename of %q: target is required", op.Path)
	}
	op.Path = filepath.Clean(op.Path)
	if op.Target != "" {
		op.Target = filepath.Clean(op.Target)
	}
	for _, e := range j.Entries {
		if e.Op == op.Op && e.Path == op.Path && e.Target == op.Target {
			return false, nil
		}
	}
	if op.Recorded.IsZero() {
		op.Recorded = time.Now().UTC()
	}
	j.Entries = append(j.Entries, op)
	return true, nil
}

// Remove drops every entry for path and reports how many were removed.
func (j *Journal) Remove(path string) int {
	path = filepath.Clean(path)
	kept := j.Entries[:0]
	removed := 0
	for _, e := range j.Entries {
		if e.Path == path {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	j.Entries = kept
	return removed
}

// Deletes returns the delete entries in recorded order.
func (j *Journal) Deletes() []PendingOp {
	return j.filter(PendingDelete)
}

// Renames returns the rename entries in recorded order.
func (j *Journal) Renames() []PendingOp {
	return j.filter(PendingRename)
}

func (j *Journal) filter(kind PendingOpKind) []PendingOp {
	var out []PendingOp
	for _, e := range j.Entries {
		if e.Op == kind {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of pending entries.
func (j *Journal) Len() int {
	return len(j.Entries)
}

// Validate checks journal invariants.
func (j *Journal) Validate() error {
	for i, e := range j.Entries {
		switch e.Op {
		case PendingDelete:
		case PendingRename:
			if e.Target == "" {
				return fmt.Errorf("entry %d: rename of %q has no target", i, e.Path)
			}
		default:
			return fmt.Errorf("entry %d: unknown op %q", i, e.Op)
		}
		if e.Path == "" {
			return fmt.Errorf("entry %d: path is required", i)
		}
	}
	return nil
}
