package logging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey int

const (
	loggerKey contextKey = iota
	correlationIDKey
	scopeKey
)

// scope remembers the logger an entity scope was derived from, so nested
// scopes replace the entity and phase fields instead of repeating them.
type scope struct {
	base   *zerolog.Logger
	entity string
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, or returns the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}

	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}

	return Default()
}

// Ctx is a shorter alias for FromContext.
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx)
}

// WithCorrelationID adds a correlation ID to the context and its logger.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, correlationIDKey, id)
	return WithField(ctx, "correlation_id", id)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithFields adds structured fields to the logger in the context.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	logCtx := FromContext(ctx).With()
	for key, value := range fields {
		logCtx = addField(logCtx, key, value)
	}
	newLogger := logCtx.Logger()
	return WithLogger(ctx, &newLogger)
}

// WithField adds a single field to the logger in the context.
func WithField(ctx context.Context, key string, value any) context.Context {
	newLogger := addField(FromContext(ctx).With(), key, value).Logger()
	return WithLogger(ctx, &newLogger)
}

// WithEntity scopes the logger to an entity. Entity and phase fields from an
// enclosing scope are dropped.
func WithEntity(ctx context.Context, entity string) context.Context {
	base := FromContext(ctx)
	if sc, ok := ctx.Value(scopeKey).(scope); ok {
		base = sc.base
	}
	logger := base.With().Str("entity", entity).Logger()
	ctx = context.WithValue(ctx, scopeKey, scope{base: base, entity: entity})
	return WithLogger(ctx, &logger)
}

// WithPhase adds sync phase context (load, delete, create, update) to the
// logger, replacing the phase of an enclosing call within the same entity.
func WithPhase(ctx context.Context, phase string) context.Context {
	sc, ok := ctx.Value(scopeKey).(scope)
	if !ok {
		return WithField(ctx, "phase", phase)
	}
	logger := sc.base.With().Str("entity", sc.entity).Str("phase", phase).Logger()
	return WithLogger(ctx, &logger)
}

// WithOperation adds operation context to the logger.
func WithOperation(ctx context.Context, operation string) context.Context {
	return WithField(ctx, "operation", operation)
}

// WithKey adds a record key to the logger.
func WithKey(ctx context.Context, key fmt.Stringer) context.Context {
	return WithField(ctx, "key", key.String())
}

// WithError adds an error to the context logger.
func WithError(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}
	return WithField(ctx, "error", err)
}
