// Package differ computes what must change on the remote side for it to
// match the local side.
package differ

import (
	"fmt"
	"strings"

	"github.com/agentstation/sissync/pkg/records"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeCreate indicates a record exists only locally.
	ChangeTypeCreate ChangeType = "create"
	// ChangeTypeUpdate indicates a record differs between the two sides.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeDelete indicates a record exists only remotely.
	ChangeTypeDelete ChangeType = "delete"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Field    string `json:"field" yaml:"field"`
	OldValue any    `json:"old" yaml:"old"`
	NewValue any    `json:"new" yaml:"new"`
}

// Update describes one record that needs a full replace.
type Update struct {
	Key     records.Key
	Changes []FieldChange
}

// Changeset partitions the keys of one entity into the three sync phases.
// Every slice is sorted.
type Changeset struct {
	Create []records.Key
	Update []Update
	Delete []records.Key
}

// Summary provides counts for a changeset.
type Summary struct {
	Create int `json:"create" yaml:"create"`
	Update int `json:"update" yaml:"update"`
	Delete int `json:"delete" yaml:"delete"`
}

// Total returns the number of changes.
func (s Summary) Total() int {
	return s.Create + s.Update + s.Delete
}

// Summary returns the changeset counts.
func (c *Changeset) Summary() Summary {
	return Summary{Create: len(c.Create), Update: len(c.Update), Delete: len(c.Delete)}
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset) HasChanges() bool {
	return c.Summary().Total() > 0
}

// UpdateKeys returns the keys of the update set.
func (c *Changeset) UpdateKeys() []records.Key {
	keys := make([]records.Key, len(c.Update))
	for i, u := range c.Update {
		keys[i] = u.Key
	}
	return keys
}

// String returns a one-line summary.
func (c *Changeset) String() string {
	s := c.Summary()
	return fmt.Sprintf("%d to create, %d to update, %d to delete", s.Create, s.Update, s.Delete)
}

// Print returns a human-readable description of every change.
func (c *Changeset) Print() string {
	var sb strings.Builder
	sb.WriteString(c.String())
	sb.WriteString("\n")
	for _, k := range c.Create {
		fmt.Fprintf(&sb, "  + %s\n", k)
	}
	for _, u := range c.Update {
		fmt.Fprintf(&sb, "  ~ %s\n", u.Key)
		for _, ch := range u.Changes {
			fmt.Fprintf(&sb, "      %s: %v -> %v\n", ch.Field, ch.OldValue, ch.NewValue)
		}
	}
	for _, k := range c.Delete {
		fmt.Fprintf(&sb, "  - %s\n", k)
	}
	return sb.String()
}
