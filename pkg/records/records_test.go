package records_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/records"
)

func TestKey(t *testing.T) {
	key := records.NewKey("F100", "Pa")
	assert.Equal(t, []string{"F100", "Pa"}, key.Parts())
	assert.Equal(t, "F100/Pa", key.String())
	assert.False(t, key.IsZero())
	assert.True(t, records.Key("").IsZero())
	assert.Equal(t, records.Key("S1"), records.NewKey("S1"))
}

func TestFieldKey(t *testing.T) {
	keyFn := records.FieldKey("family_id", "parent_id")

	t.Run("composite", func(t *testing.T) {
		key, err := keyFn(records.Record{"family_id": "F1", "parent_id": "Pb"})
		require.NoError(t, err)
		assert.Equal(t, records.NewKey("F1", "Pb"), key)
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := keyFn(records.Record{"family_id": "F1"})
		var recErr *errors.InvalidRecordError
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, errors.MissingKey, recErr.Kind)
		assert.Equal(t, "parent_id", recErr.Field)
	})

	t.Run("empty value", func(t *testing.T) {
		_, err := keyFn(records.Record{"family_id": "", "parent_id": "Pa"})
		var recErr *errors.InvalidRecordError
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, errors.MissingKeyValue, recErr.Kind)
	})

	t.Run("null value", func(t *testing.T) {
		_, err := records.FieldKey("year")(records.Record{"year": nil})
		assert.True(t, errors.IsInvalidRecord(err))
	})

	t.Run("numeric remote value", func(t *testing.T) {
		key, err := records.FieldKey("grade")(records.Record{"grade": float64(9)})
		require.NoError(t, err)
		assert.Equal(t, records.Key("9"), key)
	})

	t.Run("large json number", func(t *testing.T) {
		key, err := records.FieldKey("student_id")(records.Record{"student_id": json.Number("12345678901234567")})
		require.NoError(t, err)
		assert.Equal(t, records.Key("12345678901234567"), key)
	})
}

func TestShouldUpdate(t *testing.T) {
	tests := []struct {
		name    string
		desired records.Record
		current records.Record
		want    bool
	}{
		{"subset of identical fields", records.Record{"a": "x"}, records.Record{"a": "x", "b": "y"}, false},
		{"value differs", records.Record{"a": "x"}, records.Record{"a": "z"}, true},
		{"absent in current", records.Record{"a": "x", "c": "w"}, records.Record{"a": "x"}, true},
		{"empty desired", records.Record{}, records.Record{"a": "x"}, false},
		{"numbers compare by value", records.Record{"n": 3}, records.Record{"n": float64(3)}, false},
		{"json number", records.Record{"n": json.Number("2.5")}, records.Record{"n": 2.5}, false},
		{"large integers differ", records.Record{"n": json.Number("12345678901234567")}, records.Record{"n": json.Number("12345678901234568")}, true},
		{"large integers match", records.Record{"n": json.Number("12345678901234567")}, records.Record{"n": int64(12345678901234567)}, false},
		{"number vs string", records.Record{"n": "3"}, records.Record{"n": float64(3)}, true},
		{"bools", records.Record{"active": true}, records.Record{"active": false}, true},
		{"nil matches nil", records.Record{"dorm": nil}, records.Record{"dorm": nil}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, records.ShouldUpdate(tt.desired, tt.current))
		})
	}
}

func TestChangedFieldsIgnore(t *testing.T) {
	desired := records.Record{"url": "a", "name": "Ann", "email": "ann@example.org"}
	current := records.Record{"url": "b", "name": "Anne", "email": "ann@example.org"}

	assert.Equal(t, []string{"name", "url"}, records.ChangedFields(desired, current))
	assert.Equal(t, []string{"name"}, records.ChangedFields(desired, current, records.URLField))
}

func TestRecordHelpers(t *testing.T) {
	rec := records.Record{"url": "https://apps.example.org/api/students/1/", "b": 1, "a": 2}
	assert.Equal(t, "https://apps.example.org/api/students/1/", rec.URL())
	assert.Equal(t, []string{"a", "b", "url"}, rec.Fields())

	clone := rec.Clone()
	clone["a"] = 3
	assert.Equal(t, 2, rec["a"])

	m := records.Mapping{"b": {}, "a": {}, "c": {}}
	assert.Equal(t, []records.Key{"a", "b", "c"}, m.Keys())
}
