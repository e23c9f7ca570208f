package parsers

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var registry = map[string]*Parser{}

func init() {
	for _, p := range []*Parser{
		Boolean,
		BoarderDay,
		Email,
		stringParser("upper", strings.ToUpper),
		stringParser("lower", strings.ToLower),
		stringParser("title", func(s string) string { return cases.Title(language.English).String(strings.ToLower(s)) }),
		New("blank_as_null", func(value any) (any, error) {
			if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
				return nil, nil
			}
			return value, nil
		}),
	} {
		Register(p)
	}
	email := *EmailOrBlank
	email.Name = "email_or_blank"
	Register(&email)
}

// Register adds a named parser, replacing any parser with the same name.
func Register(p *Parser) {
	registry[p.Name] = p
}

// Lookup returns the parser registered under name.
func Lookup(name string) (*Parser, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names lists the registered parser names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringParser(name string, fn func(string) string) *Parser {
	return New(name, func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return value, nil
		}
		return fn(s), nil
	})
}
