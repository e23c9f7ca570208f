// Package records defines the flat record shapes exchanged between the local
// export and the remote API, along with the keys that match them up.
package records

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/sissync/pkg/errors"
)

// URLField is the identity field carried by every remote record.
const URLField = "url"

// keySeparator joins the parts of a composite key (ASCII unit separator).
const keySeparator = "\x1f"

// Record is a flat field name to value mapping.
// Local records carry strings; remote records carry decoded JSON values.
type Record map[string]any

// Mapping holds the records of one entity by key.
type Mapping map[Key]Record

// Key identifies a record within one entity.
type Key string

// NewKey builds a key from one or more parts.
func NewKey(parts ...string) Key {
	return Key(strings.Join(parts, keySeparator))
}

// Parts splits a composite key back into its parts.
func (k Key) Parts() []string {
	return strings.Split(string(k), keySeparator)
}

// String renders the key for logs, composite parts joined by "/".
func (k Key) String() string {
	return strings.ReplaceAll(string(k), keySeparator, "/")
}

// IsZero reports whether the key is empty.
func (k Key) IsZero() bool {
	return k == ""
}

// KeyFunc extracts the key of a record.
type KeyFunc func(Record) (Key, error)

// FieldKey returns a KeyFunc reading the named fields in order.
// A missing field yields a MissingKey error and an empty value yields MissingKeyValue.
func FieldKey(fields ...string) KeyFunc {
	return func(rec Record) (Key, error) {
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			value, ok := rec[field]
			if !ok {
				return "", errors.NewInvalidRecordError(errors.MissingKey, field, rec, nil)
			}
			s := Stringify(value)
			if s == "" {
				return "", errors.NewInvalidRecordError(errors.MissingKeyValue, field, rec, nil)
			}
			parts = append(parts, s)
		}
		return NewKey(parts...), nil
	}
}

// Stringify renders a field value the way it is used in keys.
// Nil renders as the empty string.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// URL returns the record's identity URL, if any.
func (r Record) URL() string {
	s, _ := r[URLField].(string)
	return s
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Keys returns the mapping's keys in sorted order.
func (m Mapping) Keys() []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ShouldUpdate reports whether any field present in desired differs from the
// same field in current. Fields absent from desired are never compared; a
// field absent from current counts as different.
func ShouldUpdate(desired, current Record, ignore ...string) bool {
	return len(ChangedFields(desired, current, ignore...)) > 0
}

// ChangedFields lists the fields of desired whose value differs in current, sorted.
func ChangedFields(desired, current Record, ignore ...string) []string {
	var changed []string
	for field, want := range desired {
		if contains(ignore, field) {
			continue
		}
		have, ok := current[field]
		if !ok || !Equal(want, have) {
			changed = append(changed, field)
		}
	}
	sort.Strings(changed)
	return changed
}

// Equal compares two field values. Numbers compare by value whatever their
// decoded representation.
func Equal(a, b any) bool {
	if ia, ok := toInt(a); ok {
		if ib, ok := toInt(b); ok {
			return ia == ib
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
