// Package translate maps flat local export records onto the remote record
// shape: field renames, value transforms and required-field validation,
// with optional splitting of one local record into several remote ones.
package translate

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/parsers"
	"github.com/agentstation/sissync/pkg/records"
)

// TransformFunc converts a source value into the value sent to the remote API.
// Transforms that resolve references to other entities may block on network I/O.
type TransformFunc func(ctx context.Context, value any) (any, error)

// FieldMapping copies one local field to one remote field.
type FieldMapping struct {
	Target   string
	Source   string
	Optional bool
}

// Translator converts local records into remote-shape records.
type Translator struct {
	// FieldMap lists the fields to copy, in order.
	FieldMap []FieldMapping

	// Transforms are keyed by target field.
	Transforms map[string]TransformFunc

	// Required target fields must be present and non-empty after translation.
	Required []string

	// KeyFields are the target fields that make up the record key.
	KeyFields []string

	// Splitter, when set, replaces the default one-to-one split.
	Splitter Splitter
}

// SplitResult is one record produced by Split, or the reason it was dropped.
type SplitResult struct {
	Record records.Record
	Err    error
}

// Splitter turns one local record into zero or more translated records.
type Splitter interface {
	Split(ctx context.Context, t *Translator, local records.Record) []SplitResult
}

// Translate converts a single local record.
func (t *Translator) Translate(ctx context.Context, local records.Record) (records.Record, error) {
	return t.build(ctx, local, buildOptions{})
}

// Split converts a local record into its translated sub-records. Each result
// is validated independently.
func (t *Translator) Split(ctx context.Context, local records.Record) []SplitResult {
	if t.Splitter != nil {
		return t.Splitter.Split(ctx, t, local)
	}
	rec, err := t.Translate(ctx, local)
	return []SplitResult{{Record: rec, Err: err}}
}

type buildOptions struct {
	// skipAbsent treats every mapping as optional.
	skipAbsent bool
	// skipRequired disables the required-field check.
	skipRequired bool
	// extra fields are set before validation.
	extra records.Record
}

func (t *Translator) build(ctx context.Context, local records.Record, opts buildOptions) (records.Record, error) {
	out := make(records.Record, len(t.FieldMap)+len(opts.extra))

	for _, m := range t.FieldMap {
		value, ok := local[m.Source]
		if !ok {
			if m.Optional || opts.skipAbsent {
				continue
			}
			kind := errors.MissingRequiredField
			if t.isKeyField(m.Target) {
				kind = errors.MissingKey
			}
			return nil, errors.NewInvalidRecordError(kind, m.Target, local, nil)
		}

		value = normalize(value)

		if fn, ok := t.Transforms[m.Target]; ok && fn != nil {
			transformed, err := fn(ctx, value)
			if err != nil {
				if errors.Is(err, parsers.ErrInvalidValue) {
					return nil, errors.NewInvalidRecordError(errors.MissingRequiredField, m.Target, local, err)
				}
				return nil, err
			}
			value = transformed
		}

		out[m.Target] = value
	}

	for k, v := range opts.extra {
		out[k] = v
	}

	if !opts.skipRequired {
		for _, field := range t.Required {
			if isEmpty(out[field]) {
				return nil, errors.NewInvalidRecordError(errors.MissingRequiredField, field, local, nil)
			}
		}
	}

	return out, nil
}

func (t *Translator) isKeyField(target string) bool {
	for _, f := range t.KeyFields {
		if f == target {
			return true
		}
	}
	return false
}

// normalize trims text and puts it in NFC form; the remote API does the same,
// so un-normalized values would show up as permanent differences.
func normalize(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return norm.NFC.String(strings.TrimSpace(s))
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}
