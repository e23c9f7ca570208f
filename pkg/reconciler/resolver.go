package reconciler

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/logging"
	"github.com/agentstation/sissync/pkg/records"
	"github.com/agentstation/sissync/pkg/translate"
)

// ResolveOrCreate returns the URL of the reference record with the given key
// value, creating it with only its key field when it does not exist yet.
// An empty value is not a reference and returns ok == false.
func (m *Manager) ResolveOrCreate(ctx context.Context, value string) (url string, ok bool, err error) {
	if !m.reference {
		return "", false, &errors.ValidationError{Field: "entity", Value: m.name, Message: "is not a reference entity"}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false, nil
	}
	if _, err := m.LoadRemote(ctx); err != nil {
		return "", false, err
	}

	key := records.NewKey(value)
	if rec, found := m.current[key]; found {
		return rec.URL(), true, nil
	}

	ctx = m.scope(ctx, PhaseCreate)
	created, err := m.accessor.Create(ctx, records.Record{m.keyField: value})
	if err != nil {
		return "", false, err
	}
	m.current[key] = created
	m.created[key] = true
	m.result.Created++
	logging.FromContext(ctx).Debug().
		Str("key", value).
		Str("url", created.URL()).
		Msg("Created reference record")

	return created.URL(), true, nil
}

// Resolver returns a field transform that turns a local key of this entity
// into the URL of its remote record. For full entities the create phase is
// forced first, so records created in this pass resolve too. Empty values
// resolve to nil; keys that still have no remote record make the calling
// record invalid.
func (m *Manager) Resolver() translate.TransformFunc {
	return func(ctx context.Context, value any) (any, error) {
		s := strings.TrimSpace(records.Stringify(value))
		if s == "" {
			return nil, nil
		}

		if m.reference {
			url, _, err := m.ResolveOrCreate(ctx, s)
			if err != nil {
				return nil, err
			}
			return url, nil
		}

		if err := m.Create(ctx); err != nil {
			return nil, err
		}
		rec, ok := m.current[records.NewKey(s)]
		if !ok {
			return nil, errors.NewInvalidRecordError(errors.UnresolvedReference, m.name, nil,
				fmt.Errorf("no %s record with key %q", m.name, s))
		}
		return rec.URL(), nil
	}
}
