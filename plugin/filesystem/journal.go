package filesystem

import (
	"time"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// Journal represents the YAML structure of the pending-operations file.
type Journal struct {
	Entries []PendingOp `yaml:"pending"`
	Version int         `yaml:"journal_version"`
}

// PendingOp represents one deferred operation in YAML.
type PendingOp struct {
	Recorded time.Time `yaml:"recorded,omitempty"`
	Op       string    `yaml:"op"`
	Path     string    `yaml:"path"`
	Target   string    `yaml:"target,omitempty"`
}

// ToEntity converts the journal to a domain entity.
func (j *Journal) ToEntity() *entities.Journal {
	entity := &entities.Journal{
		Version: j.Version,
		Entries: make([]entities.PendingOp, 0, len(j.Entries)),
	}

	for _, op := range j.Entries {
		entity.Entries = append(entity.Entries, entities.PendingOp{
			Recorded: op.Recorded,
			Op:       entities.PendingOpKind(op.Op),
			Path:     op.Path,
			Target:   op.Target,
		})
	}

	return entity
}

// FromEntity converts a domain journal to YAML representation.
func FromEntity(entity *entities.Journal) *Journal {
	if entity == nil {
		return nil
	}

	j := &Journal{
		Version: entity.Version,
		Entries: make([]PendingOp, 0, len(entity.Entries)),
	}

	for _, op := range entity.Entries {
		j.Entries = append(j.Entries, PendingOp{
			Recorded: op.Recorded,
			Op:       string(op.Op),
			Path:     op.Path,
			Target:   op.Target,
		})
	}

	return j
}
