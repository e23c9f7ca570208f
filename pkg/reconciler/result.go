package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/sissync/pkg/differ"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/local"
	"github.com/agentstation/sissync/pkg/records"
)

// Result represents the outcome of syncing one entity.
type Result struct {
	Entity    string
	Reference bool
	DryRun    bool

	// Planned is the changeset computed when both sides were first loaded.
	Planned *differ.Changeset

	Local  local.Stats
	Remote int

	Created int
	Updated int
	Deleted int

	// Rejected lists creates refused by the remote API with a 4xx.
	Rejected []Rejection

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Rejection is a record the remote API refused to create.
type Rejection struct {
	Key records.Key
	Err *errors.RemoteClientError
}

// HasChanges returns true if any mutation was made.
func (r *Result) HasChanges() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	prefix := ""
	if r.DryRun {
		prefix = "dry run: "
	}
	s := fmt.Sprintf("%s%s: %d created, %d updated, %d deleted", prefix, r.Entity, r.Created, r.Updated, r.Deleted)
	if len(r.Rejected) > 0 {
		s += fmt.Sprintf(", %d rejected", len(r.Rejected))
	}
	if r.Local.Skipped > 0 {
		s += fmt.Sprintf(", %d invalid", r.Local.Skipped)
	}
	return s
}
