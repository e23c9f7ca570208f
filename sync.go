package sissync

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/sissync/internal/matcher"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/logging"
	"github.com/agentstation/sissync/pkg/reconciler"
)

// SyncOption configures one sync pass.
type SyncOption func(*SyncOptions)

// SyncOptions controls a sync pass.
type SyncOptions struct {
	// DryRun plans and logs every mutation without sending any.
	DryRun bool
	// Entities restricts the pass to the named entities. Entities they
	// refer to are still created on demand.
	Entities []string
	// Timeout bounds the whole pass. Zero means no limit.
	Timeout time.Duration
}

// NewSyncOptions applies opts to the zero options.
func NewSyncOptions(opts ...SyncOption) *SyncOptions {
	o := &SyncOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDryRun sends no mutations when enabled.
func WithDryRun(enabled bool) SyncOption {
	return func(o *SyncOptions) {
		o.DryRun = enabled
	}
}

// WithEntities restricts the pass to the named entities.
func WithEntities(names ...string) SyncOption {
	return func(o *SyncOptions) {
		o.Entities = append(o.Entities, names...)
	}
}

// WithTimeout bounds the whole pass.
func WithTimeout(d time.Duration) SyncOption {
	return func(o *SyncOptions) {
		o.Timeout = d
	}
}

// Result is the outcome of a sync pass.
type Result struct {
	CorrelationID string
	DryRun        bool
	// Entities holds one result per entity touched by the pass, in sync
	// order. Entities outside the selection appear only if the pass
	// created records in them.
	Entities  []*reconciler.Result
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Totals sums the mutations of every entity.
func (r *Result) Totals() (created, updated, deleted int) {
	for _, e := range r.Entities {
		created += e.Created
		updated += e.Updated
		deleted += e.Deleted
	}
	return created, updated, deleted
}

// HasChanges returns true if any entity was mutated.
func (r *Result) HasChanges() bool {
	c, u, d := r.Totals()
	return c+u+d > 0
}

// Print writes one summary line per entity followed by the totals.
func (r *Result) Print(w io.Writer) {
	for _, e := range r.Entities {
		fmt.Fprintln(w, e.Summary())
	}
	c, u, d := r.Totals()
	fmt.Fprintf(w, "total: %d created, %d updated, %d deleted\n", c, u, d)
}

// Sync runs one pass. Each entity is synced to completion before the next;
// the first fatal error stops the pass.
func (c *client) Sync(ctx context.Context, opts ...SyncOption) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := NewSyncOptions(opts...)

	var cancel context.CancelFunc
	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
	} else {
		cancel = func() {}
	}
	defer cancel()

	selected, err := c.selection(options.Entities)
	if err != nil {
		return nil, err
	}

	if c.config.logger != nil {
		ctx = logging.WithLogger(ctx, c.config.logger)
	}
	id := logging.CorrelationID(ctx)
	if id == "" {
		id = uuid.New().String()
		ctx = logging.WithCorrelationID(ctx, id)
	}
	ctx = logging.WithOperation(ctx, "sync")
	logger := logging.FromContext(ctx)

	managers, err := c.managers(options.DryRun)
	if err != nil {
		return nil, err
	}

	result := &Result{CorrelationID: id, DryRun: options.DryRun, StartTime: time.Now()}
	logger.Info().
		Strs("entities", selected).
		Bool("dry_run", options.DryRun).
		Msg("Starting sync")

	synced := make(map[string]bool, len(selected))
	for _, name := range selected {
		if _, err := managers[name].Sync(ctx); err != nil {
			logger.Error().Err(err).Str("entity", name).Msg("Sync aborted")
			return nil, err
		}
		synced[name] = true
	}

	for _, name := range c.registry.Order() {
		r := managers[name].Result()
		if synced[name] || r.Created > 0 || len(r.Rejected) > 0 {
			result.Entities = append(result.Entities, r)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	created, updated, deleted := result.Totals()
	logger.Info().
		Int("created", created).
		Int("updated", updated).
		Int("deleted", deleted).
		Dur("duration", result.Duration).
		Msg("Sync completed")

	return result, nil
}

// Plan runs Sync with dry-run forced.
func (c *client) Plan(ctx context.Context, opts ...SyncOption) (*Result, error) {
	return c.Sync(ctx, append(opts, WithDryRun(true))...)
}

// selection returns the entities to sync explicitly, in sync order. Names
// may be glob or regular expression patterns.
func (c *client) selection(patterns []string) ([]string, error) {
	order := c.registry.Order()
	if len(patterns) == 0 {
		return order, nil
	}

	selected, err := matcher.Select(patterns, order)
	if err != nil {
		return nil, &errors.ValidationError{Field: "entities", Value: strings.Join(patterns, " "), Message: err.Error()}
	}
	return selected, nil
}
