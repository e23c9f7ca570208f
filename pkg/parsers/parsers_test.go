package parsers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/parsers"
)

func TestBoolean(t *testing.T) {
	tests := []struct {
		in      any
		want    any
		wantErr bool
	}{
		{"yes", true, false},
		{" TRUE ", true, false},
		{"t", true, false},
		{"1", true, false},
		{"No", false, false},
		{"false", false, false},
		{"F", false, false},
		{"0", false, false},
		{true, true, false},
		{false, false, false},
		{nil, nil, true},
		{"maybe", nil, true},
		{3, nil, true},
	}
	for _, tt := range tests {
		got, err := parsers.Boolean.Parse(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, parsers.ErrInvalidValue, "input %v", tt.in)
			continue
		}
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}
}

func TestBoarderDay(t *testing.T) {
	got, err := parsers.BoarderDay.Parse(" B")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = parsers.BoarderDay.Parse("D")
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = parsers.BoarderDay.Parse("")
	assert.ErrorIs(t, err, parsers.ErrInvalidValue)

	_, err = parsers.BoarderDay.Parse("X")
	assert.ErrorIs(t, err, parsers.ErrInvalidValue)
}

func TestEmail(t *testing.T) {
	valid := []string{
		"ann@example.org",
		"  first.last@school.example.org ",
		"o'brien+tag@example.co.uk",
		`"quoted\ name"@example.org`,
		"user@bücher.example",
	}
	for _, in := range valid {
		_, err := parsers.Email.Parse(in)
		assert.NoError(t, err, in)
	}

	got, err := parsers.Email.Parse("  ann@example.org ")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.org", got)

	invalid := []string{
		"",
		"no-at-sign",
		"two..dots@example.org",
		"ann@localhost",
		"ann@example.org-",
		"ann@-example.org",
	}
	for _, in := range invalid {
		_, err := parsers.Email.Parse(in)
		assert.ErrorIs(t, err, parsers.ErrInvalidValue, in)
	}
}

func TestDefaults(t *testing.T) {
	got, err := parsers.EmailOrBlank.Parse("not an email")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	active := parsers.Boolean.WithDefault(false)
	got, err = active.Parse("unknown")
	require.NoError(t, err)
	assert.Equal(t, false, got)

	// Boolean itself still fails
	_, err = parsers.Boolean.Parse("unknown")
	assert.Error(t, err)

	// non-value errors are not swallowed by defaults
	failing := parsers.New("failing", func(any) (any, error) {
		return nil, errors.ErrRemoteFatal
	}).WithDefault("x")
	_, err = failing.Parse("a")
	assert.ErrorIs(t, err, errors.ErrRemoteFatal)
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"boolean", "boarder_day", "email", "email_or_blank", "upper", "lower", "title", "blank_as_null"} {
		_, ok := parsers.Lookup(name)
		assert.True(t, ok, name)
	}
	_, ok := parsers.Lookup("nope")
	assert.False(t, ok)
	assert.Contains(t, parsers.Names(), "email_or_blank")

	title, _ := parsers.Lookup("title")
	got, err := title.Func()(context.Background(), "MATHEMATICS DEPARTMENT")
	require.NoError(t, err)
	assert.Equal(t, "Mathematics Department", got)

	upper, _ := parsers.Lookup("upper")
	got, err = upper.Parse("ab")
	require.NoError(t, err)
	assert.Equal(t, "AB", got)

	blank, _ := parsers.Lookup("blank_as_null")
	got, err = blank.Parse("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	orBlank, _ := parsers.Lookup("email_or_blank")
	got, err = orBlank.Parse("bad")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
