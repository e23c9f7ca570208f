// Package entities describes synchronized entities as data and builds the
// reconciler managers that sync them.
package entities

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/sissync/internal/embedded"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/parsers"
)

// Definition describes one synchronized entity.
type Definition struct {
	Name       string   `yaml:"name" json:"name"`
	Collection string   `yaml:"collection,omitempty" json:"collection,omitempty"`
	File       string   `yaml:"file,omitempty" json:"file,omitempty"`
	Reference  bool     `yaml:"reference,omitempty" json:"reference,omitempty"`
	Key        []string `yaml:"key" json:"key"`
	Required   []string `yaml:"required,omitempty" json:"required,omitempty"`
	Fields     []Field  `yaml:"fields,omitempty" json:"fields,omitempty"`
	Split      *Split   `yaml:"split,omitempty" json:"split,omitempty"`
}

// Field maps one export field onto one remote field.
type Field struct {
	Target    string `yaml:"target" json:"target"`
	Source    string `yaml:"source" json:"source"`
	Transform string `yaml:"transform,omitempty" json:"transform,omitempty"`
	// Ref names the entity whose remote URL replaces the local key value.
	Ref      string `yaml:"ref,omitempty" json:"ref,omitempty"`
	Optional bool   `yaml:"optional,omitempty" json:"optional,omitempty"`
	// Default is used when the transform cannot parse the value.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`
}

// Split turns one export row into one record per prefix.
type Split struct {
	Prefixes []string `yaml:"prefixes" json:"prefixes"`
	Shared   []string `yaml:"shared,omitempty" json:"shared,omitempty"`
	Field    string   `yaml:"field" json:"field"`
}

// CollectionName returns the discovery document name of the entity.
func (d Definition) CollectionName() string {
	if d.Collection != "" {
		return d.Collection
	}
	return d.Name
}

// FileName returns the export file name of the entity.
func (d Definition) FileName() string {
	if d.File != "" {
		return d.File
	}
	return d.Name + ".json"
}

// Refs returns the entities this entity refers to, in field order.
func (d Definition) Refs() []string {
	var refs []string
	seen := make(map[string]bool)
	for _, f := range d.Fields {
		if f.Ref != "" && !seen[f.Ref] {
			seen[f.Ref] = true
			refs = append(refs, f.Ref)
		}
	}
	return refs
}

type file struct {
	Entities []Definition `yaml:"entities"`
}

// Parse reads and validates a definition file.
func Parse(data []byte, name string) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapParse("yaml", name, err)
	}
	return NewRegistry(f.Entities...)
}

// LoadFile reads and validates a definition file from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(data, path)
}

// Default returns the built-in definitions.
func Default() (*Registry, error) {
	return Parse(embedded.Entities, "entities.yaml")
}

func (d Definition) validate() error {
	invalid := func(field, format string, args ...any) error {
		return &errors.ValidationError{Field: field, Value: d.Name, Message: fmt.Sprintf(format, args...)}
	}

	if d.Name == "" {
		return invalid("name", "cannot be empty")
	}
	if len(d.Key) == 0 {
		return invalid("key", "entity %s has no key fields", d.Name)
	}

	if d.Reference {
		if len(d.Key) != 1 {
			return invalid("key", "reference entity %s must have exactly one key field", d.Name)
		}
		if len(d.Fields) > 0 || d.Split != nil {
			return invalid("fields", "reference entity %s cannot map fields", d.Name)
		}
		return nil
	}

	if len(d.Fields) == 0 {
		return invalid("fields", "entity %s maps no fields", d.Name)
	}

	targets := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Target == "" || f.Source == "" {
			return invalid("fields", "entity %s has a field without target or source", d.Name)
		}
		if targets[f.Target] {
			return invalid("fields", "entity %s maps %s twice", d.Name, f.Target)
		}
		targets[f.Target] = true
		if f.Transform != "" && f.Ref != "" {
			return invalid("fields", "field %s.%s cannot have both a transform and a ref", d.Name, f.Target)
		}
		if f.Transform != "" {
			if _, ok := parsers.Lookup(f.Transform); !ok {
				return invalid("transform", "unknown transform %q on %s.%s", f.Transform, d.Name, f.Target)
			}
		}
		if f.Default != nil && f.Transform == "" {
			return invalid("default", "field %s.%s has a default but no transform", d.Name, f.Target)
		}
	}

	if d.Split != nil {
		if len(d.Split.Prefixes) == 0 || d.Split.Field == "" {
			return invalid("split", "entity %s needs split prefixes and a field", d.Name)
		}
		targets[d.Split.Field] = true
	}

	for _, k := range d.Key {
		if !targets[k] {
			return invalid("key", "key field %s of %s is not mapped", k, d.Name)
		}
	}
	for _, r := range d.Required {
		if !targets[r] {
			return invalid("required", "required field %s of %s is not mapped", r, d.Name)
		}
	}
	return nil
}
