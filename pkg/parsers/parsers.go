// Package parsers provides the value transforms applied to local export
// fields before they are sent to the remote API.
//
// A Parser fails with ErrInvalidValue when it cannot make sense of a value.
// Parsers configured with a default return the default instead.
package parsers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/agentstation/sissync/pkg/errors"
)

// ErrInvalidValue is returned when a value cannot be transformed.
var ErrInvalidValue = errors.New("invalid value")

// TransformFunc turns a raw field value into its remote representation.
type TransformFunc func(value any) (any, error)

// Parser applies a transform and handles its failure mode.
type Parser struct {
	Name       string
	transform  TransformFunc
	hasDefault bool
	defaultVal any
}

// New creates a parser that propagates transform failures.
func New(name string, fn TransformFunc) *Parser {
	return &Parser{Name: name, transform: fn}
}

// WithDefault returns a copy of the parser that yields value instead of failing.
func (p *Parser) WithDefault(value any) *Parser {
	cp := *p
	cp.hasDefault = true
	cp.defaultVal = value
	return &cp
}

// Transform runs the underlying transform without default handling.
func (p *Parser) Transform(value any) (any, error) {
	return p.transform(value)
}

// Parse runs the transform. An ErrInvalidValue failure yields the default
// when one is configured.
func (p *Parser) Parse(value any) (any, error) {
	out, err := p.transform(value)
	if err != nil {
		if p.hasDefault && errors.Is(err, ErrInvalidValue) {
			return p.defaultVal, nil
		}
		return nil, err
	}
	return out, nil
}

// Func adapts the parser to the context-aware transform signature used by translators.
func (p *Parser) Func() func(ctx context.Context, value any) (any, error) {
	return func(_ context.Context, value any) (any, error) {
		return p.Parse(value)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidValue, fmt.Sprintf(format, args...))
}

// Boolean accepts yes/true/t/1 and no/false/f/0 in any case.
var Boolean = New("boolean", func(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case nil:
		return nil, invalid("value was empty")
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true", "t", "1":
			return true, nil
		case "no", "false", "f", "0":
			return false, nil
		}
		return nil, invalid("unknown true/false value: %q", v)
	default:
		return nil, invalid("unknown true/false value: %v", v)
	}
})

// BoarderDay maps the boarder/day flag to an is-boarder boolean.
var BoarderDay = New("boarder_day", func(value any) (any, error) {
	s, _ := value.(string)
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return nil, invalid("boarder/day value was empty")
	case "B":
		return true, nil
	case "D":
		return false, nil
	}
	return nil, invalid("unknown boarder/day value: %q", s)
})

var (
	userPattern = regexp.MustCompile(
		`(?i)(^[-!#$%&'*+/=?^_` + "`" + `{}|~0-9A-Z]+(\.[-!#$%&'*+/=?^_` + "`" + `{}|~0-9A-Z]+)*$` +
			`|^"([\x01-\x08\x0b\x0c\x0e-\x1f!#-\[\]-\x7f]|\\[\x01-\x09\x0b\x0c\x0e-\x7f])*"$)`)

	// Labels are at most 63 characters (RFC 1034).
	domainPattern = regexp.MustCompile(`(?i)^((?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+)([A-Z0-9-]{2,63})$`)
)

// Email validates an address and returns it trimmed. Internationalized
// domains are checked in their punycode form.
var Email = New("email", func(value any) (any, error) {
	s, _ := value.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalid("email is empty")
	}

	at := strings.LastIndex(s, "@")
	if at < 0 {
		return nil, invalid("email must have an @")
	}
	user, domain := s[:at], s[at+1:]

	if !userPattern.MatchString(user) {
		return nil, invalid("user part of email was not valid")
	}
	if !validDomain(domain) {
		ascii, err := idna.Lookup.ToASCII(domain)
		if err != nil || !validDomain(ascii) {
			return nil, invalid("domain part of email was not valid")
		}
	}
	return s, nil
})

func validDomain(domain string) bool {
	m := domainPattern.FindStringSubmatch(domain)
	return m != nil && !strings.HasSuffix(m[2], "-")
}

// EmailOrBlank is Email with an empty string fallback.
var EmailOrBlank = Email.WithDefault("")
