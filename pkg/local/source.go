// Package local reads the Keystone export files and turns them into keyed
// record mappings ready for reconciliation.
package local

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/records"
)

// Source provides the raw records of one export.
type Source interface {
	Records() ([]records.Record, error)
}

// document is the export layout: {"records": [{field: value}, ...]}.
type document struct {
	Records []records.Record `json:"records" yaml:"records"`
}

// File reads an export from disk. Files ending in .yaml or .yml are read as
// YAML; everything else as JSON.
type File struct {
	Path string
}

// Records implements Source.
func (f File) Records() ([]records.Record, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.WrapIO("read", f.Path, err)
	}
	return decode(data, formatOf(f.Path), f.Path)
}

// Reader reads an export from an io.Reader.
type Reader struct {
	R io.Reader
	// Format is "json" (default) or "yaml".
	Format string
	// Name identifies the export in errors.
	Name string
}

// Records implements Source.
func (r Reader) Records() ([]records.Record, error) {
	data, err := io.ReadAll(r.R)
	if err != nil {
		return nil, errors.WrapIO("read", r.Name, err)
	}
	format := r.Format
	if format == "" {
		format = "json"
	}
	return decode(data, format, r.Name)
}

// Static serves records held in memory.
type Static []records.Record

// Records implements Source.
func (s Static) Records() ([]records.Record, error) {
	return s, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func decode(data []byte, format, name string) ([]records.Record, error) {
	var doc document
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.WrapParse("yaml", name, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.WrapParse("json", name, err)
		}
	}
	for i, rec := range doc.Records {
		doc.Records[i] = stringify(rec)
	}
	return doc.Records, nil
}

// stringify renders scalar values as strings, matching what the export
// normally carries. Nulls become empty strings.
func stringify(rec records.Record) records.Record {
	for k, v := range rec {
		switch v.(type) {
		case string:
		case map[string]any, []any:
		default:
			rec[k] = records.Stringify(v)
		}
	}
	return rec
}
