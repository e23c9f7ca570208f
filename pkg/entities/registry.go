package entities

import (
	"fmt"
	"strings"

	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/local"
	"github.com/agentstation/sissync/pkg/parsers"
	"github.com/agentstation/sissync/pkg/reconciler"
	"github.com/agentstation/sissync/pkg/records"
	"github.com/agentstation/sissync/pkg/remote"
	"github.com/agentstation/sissync/pkg/translate"
)

// Registry holds validated entity definitions in file order.
type Registry struct {
	defs  []Definition
	index map[string]int
	order []string
}

// NewRegistry validates definitions: unique names, known transforms and
// refs, mapped keys, and no reference cycles. A ref target must have a
// single-field key, since a ref value is resolved as one key part.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, &errors.ValidationError{Field: "name", Value: d.Name, Message: "entity defined twice"}
		}
		r.index[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}

	for _, d := range r.defs {
		for _, ref := range d.Refs() {
			i, ok := r.index[ref]
			if !ok {
				return nil, &errors.ValidationError{Field: "ref", Value: d.Name, Message: fmt.Sprintf("unknown entity %q", ref)}
			}
			if n := len(r.defs[i].Key); n != 1 {
				return nil, &errors.ValidationError{
					Field:   "ref",
					Value:   d.Name,
					Message: fmt.Sprintf("entity %q has a %d-field key; refs need a single-field key", ref, n),
				}
			}
		}
	}
	if err := r.checkCycles(); err != nil {
		return nil, err
	}
	r.order = r.sort()
	return r, nil
}

// Definitions returns the definitions in file order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Get returns the definition of the named entity.
func (r *Registry) Get(name string) (Definition, bool) {
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Order returns entity names so that every entity follows the entities it
// refers to. Reference entities come first; ties keep file order.
func (r *Registry) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) sort() []string {
	priority := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if d.Reference {
			priority = append(priority, d)
		}
	}
	for _, d := range r.defs {
		if !d.Reference {
			priority = append(priority, d)
		}
	}

	done := make(map[string]bool, len(r.defs))
	order := make([]string, 0, len(r.defs))
	for len(order) < len(priority) {
		for _, d := range priority {
			if done[d.Name] || !allDone(done, d.Refs()) {
				continue
			}
			done[d.Name] = true
			order = append(order, d.Name)
			break
		}
	}
	return order
}

func allDone(done map[string]bool, names []string) bool {
	for _, n := range names {
		if !done[n] {
			return false
		}
	}
	return true
}

func (r *Registry) checkCycles() error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(r.defs))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: %s", errors.ErrDependencyCycle, strings.Join(append(path, name), " -> "))
		case visited:
			return nil
		}
		state[name] = visiting
		path = append(path, name)
		def, _ := r.Get(name)
		for _, ref := range def.Refs() {
			if err := visit(ref); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = visited
		return nil
	}

	for _, d := range r.defs {
		if err := visit(d.Name); err != nil {
			return err
		}
	}
	return nil
}

// Builder supplies what Build needs to create managers.
type Builder struct {
	// Accessor returns the remote accessor of a collection.
	Accessor func(collection string) remote.Accessor
	// Source returns the export of a non-reference entity.
	Source func(def Definition) local.Source
	// Options are applied to every manager.
	Options []reconciler.Option
}

// Build creates one manager per definition and wires ref fields to the
// resolvers of the managers they name.
func (r *Registry) Build(b Builder) (map[string]*reconciler.Manager, error) {
	if b.Accessor == nil || b.Source == nil {
		return nil, &errors.ValidationError{Field: "builder", Message: "accessor and source are required"}
	}

	managers := make(map[string]*reconciler.Manager, len(r.defs))
	translators := make(map[string]*translate.Translator, len(r.defs))

	for _, d := range r.defs {
		opts := append([]reconciler.Option{}, b.Options...)
		if d.Reference {
			opts = append(opts, reconciler.WithReference(d.Key[0]))
		} else {
			tr := newTranslator(d)
			translators[d.Name] = tr
			key := records.FieldKey(d.Key...)
			opts = append(opts,
				reconciler.WithKey(key),
				reconciler.WithLoader(&local.Loader{Source: b.Source(d), Translator: tr, Key: key}),
			)
		}

		m, err := reconciler.New(d.Name, b.Accessor(d.CollectionName()), opts...)
		if err != nil {
			return nil, err
		}
		managers[d.Name] = m
	}

	for _, d := range r.defs {
		tr := translators[d.Name]
		if tr == nil {
			continue
		}
		for _, f := range d.Fields {
			if f.Ref != "" {
				tr.Transforms[f.Target] = managers[f.Ref].Resolver()
			}
		}
	}

	return managers, nil
}

func newTranslator(d Definition) *translate.Translator {
	tr := &translate.Translator{
		Transforms: make(map[string]translate.TransformFunc),
		Required:   d.Required,
		KeyFields:  d.Key,
	}
	for _, f := range d.Fields {
		tr.FieldMap = append(tr.FieldMap, translate.FieldMapping{
			Target:   f.Target,
			Source:   f.Source,
			Optional: f.Optional,
		})
		if f.Transform == "" {
			continue
		}
		p, _ := parsers.Lookup(f.Transform)
		if f.Default != nil {
			p = p.WithDefault(f.Default)
		}
		tr.Transforms[f.Target] = p.Func()
	}
	if d.Split != nil {
		tr.Splitter = &translate.PrefixSplitter{
			Prefixes:    d.Split.Prefixes,
			Shared:      d.Split.Shared,
			PrefixField: d.Split.Field,
		}
	}
	return tr
}
