package differ

import (
	"github.com/agentstation/sissync/pkg/records"
)

// Differ compares the desired and current mappings of one entity.
type Differ interface {
	Diff(desired, current records.Mapping) *Changeset
}

// differ is the default implementation of Differ.
type differ struct {
	ignoreFields []string
}

// New creates a Differ. The remote identity field is never compared.
func New(opts ...Option) Differ {
	d := &differ{ignoreFields: []string{records.URLField}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff computes the changeset with the default Differ.
func Diff(desired, current records.Mapping) *Changeset {
	return New().Diff(desired, current)
}

// Diff partitions keys: create = desired - current, delete = current - desired,
// update = keys on both sides whose desired fields differ in current.
func (d *differ) Diff(desired, current records.Mapping) *Changeset {
	cs := &Changeset{
		Create: []records.Key{},
		Update: []Update{},
		Delete: []records.Key{},
	}

	for _, key := range desired.Keys() {
		want := desired[key]
		have, ok := current[key]
		if !ok {
			cs.Create = append(cs.Create, key)
			continue
		}
		changed := records.ChangedFields(want, have, d.ignoreFields...)
		if len(changed) == 0 {
			continue
		}
		update := Update{Key: key}
		for _, field := range changed {
			update.Changes = append(update.Changes, FieldChange{
				Field:    field,
				OldValue: have[field],
				NewValue: want[field],
			})
		}
		cs.Update = append(cs.Update, update)
	}

	for _, key := range current.Keys() {
		if _, ok := desired[key]; !ok {
			cs.Delete = append(cs.Delete, key)
		}
	}

	return cs
}
