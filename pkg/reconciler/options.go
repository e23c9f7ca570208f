package reconciler

import (
	"github.com/agentstation/sissync/pkg/differ"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/local"
	"github.com/agentstation/sissync/pkg/records"
)

// options configures a Manager.
type options struct {
	loader    *local.Loader
	key       records.KeyFunc
	keyField  string
	reference bool
	differ    differ.Differ
	dryRun    bool
}

func defaultOptions() *options {
	return &options{
		differ: differ.New(),
	}
}

// Option is a function that configures a Manager.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithLoader sets the local dataset loader of a full entity.
func WithLoader(loader *local.Loader) Option {
	return func(o *options) error {
		if loader == nil {
			return &errors.ValidationError{Field: "loader", Message: "cannot be nil"}
		}
		o.loader = loader
		return nil
	}
}

// WithKey sets the key extraction function used for both sides.
func WithKey(key records.KeyFunc) Option {
	return func(o *options) error {
		if key == nil {
			return &errors.ValidationError{Field: "key", Message: "cannot be nil"}
		}
		o.key = key
		return nil
	}
}

// WithReference makes the manager a get-or-create reference entity keyed by
// a single field. Reference entities have no local dataset and are never
// updated or deleted.
func WithReference(keyField string) Option {
	return func(o *options) error {
		if keyField == "" {
			return &errors.ValidationError{Field: "key_field", Message: "cannot be empty"}
		}
		o.reference = true
		o.keyField = keyField
		o.key = records.FieldKey(keyField)
		return nil
	}
}

// WithDiffer sets the differ used to plan changes.
func WithDiffer(d differ.Differ) Option {
	return func(o *options) error {
		if d == nil {
			return &errors.ValidationError{Field: "differ", Message: "cannot be nil"}
		}
		o.differ = d
		return nil
	}
}

// WithDryRun answers every mutation locally instead of sending it.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}
