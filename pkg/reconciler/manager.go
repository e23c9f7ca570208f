// Package reconciler brings one remote collection into agreement with its
// local dataset. A Manager owns both keyed mappings of one entity and runs
// each sync phase at most once per pass; other entities reach it through
// its Resolver, which forces the create phase on first use.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/sissync/pkg/differ"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/local"
	"github.com/agentstation/sissync/pkg/logging"
	"github.com/agentstation/sissync/pkg/records"
	"github.com/agentstation/sissync/pkg/remote"
)

// Phase names used in logs and errors.
const (
	PhaseLoadLocal  = "load_local"
	PhaseLoadRemote = "load_remote"
	PhaseDelete     = "delete"
	PhaseCreate     = "create"
	PhaseUpdate     = "update"
)

// Manager synchronizes one entity. It is not safe for concurrent use and
// must not be shared between passes.
type Manager struct {
	name      string
	accessor  remote.Accessor
	loader    *local.Loader
	key       records.KeyFunc
	keyField  string
	reference bool
	differ    differ.Differ

	desired records.Mapping
	current records.Mapping
	created map[records.Key]bool

	// run-once state
	loadedLocal   bool
	loadingLocal  bool
	loadedRemote  bool
	deleteDone    bool
	createDone    bool
	createRunning bool
	updateDone    bool

	result Result
}

// New creates a manager for the named entity backed by accessor.
func New(name string, accessor remote.Accessor, opts ...Option) (*Manager, error) {
	if name == "" {
		return nil, &errors.ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if accessor == nil {
		return nil, &errors.ValidationError{Field: "accessor", Value: name, Message: "cannot be nil"}
	}

	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}
	if o.key == nil {
		return nil, &errors.ValidationError{Field: "key", Value: name, Message: "is required"}
	}
	if !o.reference && o.loader == nil {
		return nil, &errors.ValidationError{Field: "loader", Value: name, Message: "is required for non-reference entities"}
	}

	if o.dryRun {
		accessor = remote.DryRun(accessor, o.key)
	}

	return &Manager{
		name:      name,
		accessor:  accessor,
		loader:    o.loader,
		key:       o.key,
		keyField:  o.keyField,
		reference: o.reference,
		differ:    o.differ,
		created:   make(map[records.Key]bool),
		result: Result{
			Entity:    name,
			Reference: o.reference,
			DryRun:    o.dryRun,
		},
	}, nil
}

// Name returns the entity name.
func (m *Manager) Name() string {
	return m.name
}

// IsReference reports whether the manager is a get-or-create reference entity.
func (m *Manager) IsReference() bool {
	return m.reference
}

// Result returns what the manager has done so far.
func (m *Manager) Result() *Result {
	r := m.result
	return &r
}

// Sync runs load, delete, create and update in that order. Phases already
// run (for instance a create forced by a downstream resolver) are skipped.
func (m *Manager) Sync(ctx context.Context) (*Result, error) {
	ctx = logging.WithEntity(ctx, m.name)
	m.result.StartTime = time.Now()

	steps := []struct {
		phase string
		run   func(context.Context) error
	}{
		{PhaseLoadLocal, func(ctx context.Context) error { _, err := m.LoadLocal(ctx); return err }},
		{PhaseLoadRemote, func(ctx context.Context) error { _, err := m.LoadRemote(ctx); return err }},
		{PhaseDelete, m.Delete},
		{PhaseCreate, m.Create},
		{PhaseUpdate, m.Update},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return nil, errors.NewSyncError(m.name, step.phase, err)
		}
	}

	m.result.EndTime = time.Now()
	m.result.Duration = m.result.EndTime.Sub(m.result.StartTime)

	logging.FromContext(ctx).Info().
		Int("created", m.result.Created).
		Int("updated", m.result.Updated).
		Int("deleted", m.result.Deleted).
		Int("rejected", len(m.result.Rejected)).
		Int("invalid", m.result.Local.Skipped).
		Dur("duration", m.result.Duration).
		Msg("Entity synced")

	return m.Result(), nil
}

// LoadLocal builds the desired mapping from the local export, once.
// Reference entities have an empty desired mapping.
func (m *Manager) LoadLocal(ctx context.Context) (records.Mapping, error) {
	if m.loadedLocal {
		return m.desired, nil
	}
	if m.loadingLocal {
		return nil, fmt.Errorf("%w: %s references itself while loading", errors.ErrDependencyCycle, m.name)
	}
	m.loadingLocal = true
	defer func() { m.loadingLocal = false }()

	ctx = m.scope(ctx, PhaseLoadLocal)
	if m.reference {
		m.desired = make(records.Mapping)
	} else {
		desired, stats, err := m.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		m.desired = desired
		m.result.Local = stats
		logging.FromContext(ctx).Info().
			Int("records", stats.Records).
			Int("loaded", stats.Loaded).
			Int("invalid", stats.Skipped).
			Msg("Loaded local records")
	}

	m.loadedLocal = true
	m.plan()
	return m.desired, nil
}

// LoadRemote lists the remote collection into the current mapping, once.
func (m *Manager) LoadRemote(ctx context.Context) (records.Mapping, error) {
	if m.loadedRemote {
		return m.current, nil
	}

	ctx = m.scope(ctx, PhaseLoadRemote)
	current, err := m.accessor.LoadAll(ctx, m.key)
	if err != nil {
		return nil, err
	}
	m.current = current
	m.result.Remote = len(current)
	m.loadedRemote = true
	logging.FromContext(ctx).Info().Int("records", len(current)).Msg("Loaded remote records")

	m.plan()
	return m.current, nil
}

// Plan loads both sides and returns the changes still to be applied.
func (m *Manager) Plan(ctx context.Context) (*differ.Changeset, error) {
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m.differ.Diff(m.desired, m.current), nil
}

// Delete removes every remote record without a local counterpart, once.
// Any failure is fatal.
func (m *Manager) Delete(ctx context.Context) error {
	if m.deleteDone || m.reference {
		m.deleteDone = true
		return nil
	}
	cs, err := m.Plan(ctx)
	if err != nil {
		return err
	}

	ctx = m.scope(ctx, PhaseDelete)
	logger := logging.FromContext(ctx)
	for _, key := range cs.Delete {
		url, err := m.urlOf(key)
		if err != nil {
			return err
		}
		if err := m.accessor.Delete(ctx, url); err != nil {
			return err
		}
		delete(m.current, key)
		m.result.Deleted++
		logger.Debug().Str("key", key.String()).Str("url", url).Msg("Deleted record")
	}

	m.deleteDone = true
	logger.Info().Int("count", len(cs.Delete)).Msg("Deleted records")
	return nil
}

// Create posts every local record missing remotely, once. Records refused
// with a 4xx are logged field by field and skipped; any other failure is
// fatal. Created records join the current mapping immediately.
func (m *Manager) Create(ctx context.Context) error {
	if m.createDone {
		return nil
	}
	if m.createRunning {
		return fmt.Errorf("%w: %s was required while creating its own records", errors.ErrDependencyCycle, m.name)
	}
	m.createRunning = true
	defer func() { m.createRunning = false }()

	cs, err := m.Plan(ctx)
	if err != nil {
		return err
	}

	ctx = m.scope(ctx, PhaseCreate)
	logger := logging.FromContext(ctx)
	for _, key := range cs.Create {
		rec := m.desired[key]
		created, err := m.accessor.Create(ctx, rec)
		if err != nil {
			var clientErr *errors.RemoteClientError
			if errors.As(err, &clientErr) {
				m.reject(logger, key, rec, clientErr)
				continue
			}
			return err
		}
		m.current[key] = created
		m.created[key] = true
		m.result.Created++
		logger.Debug().Str("key", key.String()).Str("url", created.URL()).Msg("Created record")
	}

	m.createDone = true
	logger.Info().
		Int("count", m.result.Created).
		Int("rejected", len(m.result.Rejected)).
		Msg("Created records")
	return nil
}

// Update replaces every remote record whose desired fields differ, once.
// Records created during this pass are not revisited. Any failure is fatal.
func (m *Manager) Update(ctx context.Context) error {
	if m.updateDone || m.reference {
		m.updateDone = true
		return nil
	}
	cs, err := m.Plan(ctx)
	if err != nil {
		return err
	}

	ctx = m.scope(ctx, PhaseUpdate)
	logger := logging.FromContext(ctx)
	count := 0
	for _, u := range cs.Update {
		if m.created[u.Key] {
			continue
		}
		url, err := m.urlOf(u.Key)
		if err != nil {
			return err
		}
		updated, err := m.accessor.Update(ctx, url, m.desired[u.Key])
		if err != nil {
			return err
		}
		m.current[u.Key] = updated
		m.result.Updated++
		count++
		logger.Debug().
			Str("key", u.Key.String()).
			Str("url", url).
			Interface("changes", u.Changes).
			Msg("Updated record")
	}

	m.updateDone = true
	logger.Info().Int("count", count).Msg("Updated records")
	return nil
}

func (m *Manager) load(ctx context.Context) error {
	if _, err := m.LoadLocal(ctx); err != nil {
		return err
	}
	_, err := m.LoadRemote(ctx)
	return err
}

// plan records the first changeset once both sides are loaded.
func (m *Manager) plan() {
	if m.result.Planned == nil && m.loadedLocal && m.loadedRemote {
		m.result.Planned = m.differ.Diff(m.desired, m.current)
	}
}

func (m *Manager) reject(logger *zerolog.Logger, key records.Key, rec records.Record, err *errors.RemoteClientError) {
	for _, field := range err.Fields() {
		for _, msg := range err.FieldErrors[field] {
			logger.Error().
				Str("key", key.String()).
				Str("field", field).
				Interface("value", rec[field]).
				Str("message", msg).
				Msg("Remote rejected field")
		}
	}
	event := logger.Error().Str("key", key.String()).Int("status", err.StatusCode)
	if err.Detail != "" {
		event = event.Str("detail", err.Detail)
	}
	event.Msg("Skipping record rejected by remote")

	m.result.Rejected = append(m.result.Rejected, Rejection{Key: key, Err: err})
}

func (m *Manager) scope(ctx context.Context, phase string) context.Context {
	return logging.WithPhase(logging.WithEntity(ctx, m.name), phase)
}

func (m *Manager) urlOf(key records.Key) (string, error) {
	url := m.current[key].URL()
	if url == "" {
		return "", &errors.ValidationError{Field: records.URLField, Value: key.String(), Message: "remote record has no url"}
	}
	return url, nil
}
