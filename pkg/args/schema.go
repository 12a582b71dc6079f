// Package args implements declarative command-line schemas for bulk
// subcommands.
//
// A schema is written as a string of whitespace separated descriptors:
//
//	first:vmid last:vmid? --mode:choice(snapshot|suspend|stop)=snapshot --purge:flag
//
// Each descriptor is ["--"]name:type followed by "?" (optional) or "=value"
// (optional with a default). Descriptors without a "--" prefix are
// positional, in declaration order. A list parameter is variadic and takes
// every remaining token verbatim.
package args

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

// ErrHelp is returned by Parse when -h or --help is given.
var ErrHelp = errors.New("help requested")

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Param is one compiled descriptor.
type Param struct {
	Name     string
	Type     Type
	Required bool
	Default  string
	Flag     bool

	// defaultValue is Default converted at compile time.
	defaultValue any
}

// HasDefault reports whether the parameter carries a default value.
func (p Param) HasDefault() bool {
	return p.defaultValue != nil
}

// Schema is an immutable, ordered parameter list.
type Schema struct {
	params      []Param
	positionals []int
	flags       map[string]int
}

// MustCompile is like Compile but panics on error. For schema literals.
func MustCompile(def string) *Schema {
	s, err := Compile(def)
	if err != nil {
		panic(fmt.Sprintf("args: %v", err))
	}
	return s
}

// Compile parses a schema string.
func Compile(def string) (*Schema, error) {
	s := &Schema{flags: make(map[string]int)}
	seen := make(map[string]bool)
	sawOptional := false
	sawList := false

	for _, desc := range strings.Fields(def) {
		p, err := parseDescriptor(desc)
		if err != nil {
			return nil, err
		}

		key := strings.ToUpper(p.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[key] = true

		idx := len(s.params)
		s.params = append(s.params, p)

		if p.Flag {
			s.flags[strings.ToLower(p.Name)] = idx
			continue
		}

		switch {
		case sawList:
			return nil, fmt.Errorf("%s: positional after list parameter", p.Name)
		case p.Required && sawOptional:
			return nil, fmt.Errorf("%s: required positional after optional one", p.Name)
		}
		if !p.Required {
			sawOptional = true
		}
		if p.Type.Kind == KindList {
			sawList = true
		}
		s.positionals = append(s.positionals, idx)
	}

	return s, nil
}

func parseDescriptor(desc string) (Param, error) {
	var p Param

	body := desc
	if strings.HasPrefix(body, "--") {
		p.Flag = true
		body = body[2:]
	}

	name, rest, ok := strings.Cut(body, ":")
	if !ok {
		return p, fmt.Errorf("descriptor %q: missing type", desc)
	}
	if !namePattern.MatchString(name) {
		return p, fmt.Errorf("descriptor %q: invalid name", desc)
	}
	p.Name = name
	p.Required = true

	typ := rest
	switch {
	case strings.Contains(rest, "="):
		typ, p.Default, _ = strings.Cut(rest, "=")
		p.Required = false
	case strings.HasSuffix(rest, "?"):
		typ = strings.TrimSuffix(rest, "?")
		p.Required = false
	}

	t, err := parseType(typ)
	if err != nil {
		return p, fmt.Errorf("descriptor %q: %w", desc, err)
	}
	p.Type = t

	switch {
	case t.Kind == KindFlag && !p.Flag:
		return p, fmt.Errorf("descriptor %q: flag type must be a -- parameter", desc)
	case t.Kind == KindFlag:
		p.Required = false
	case t.Kind == KindList && p.Flag:
		return p, fmt.Errorf("descriptor %q: list type cannot be a -- parameter", desc)
	}

	if strings.Contains(rest, "=") {
		if t.Kind == KindFlag || t.Kind == KindList {
			return p, fmt.Errorf("descriptor %q: %s cannot have a default", desc, t.Kind)
		}
		v, reason := t.convert(p.Default)
		if reason != "" {
			return p, fmt.Errorf("descriptor %q: default %s", desc, reason)
		}
		p.defaultValue = v
	}

	return p, nil
}

// Params returns the compiled parameters in declaration order.
func (s *Schema) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// Parse validates raw tokens against the schema. On failure it returns a
// *engine.UsageError and empty Values.
func (s *Schema) Parse(tokens []string) (Values, error) {
	values := newValues()
	pos := 0
	flagsDone := false

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if !flagsDone {
			switch {
			case tok == "--":
				flagsDone = true
				continue
			case tok == "-h" || tok == "--help":
				if _, defined := s.flags["help"]; !defined {
					return Values{}, ErrHelp
				}
			}

			if strings.HasPrefix(tok, "--") {
				consumed, err := s.parseFlag(values, tok, tokens[i+1:])
				if err != nil {
					return Values{}, err
				}
				i += consumed
				continue
			}
		}

		if pos >= len(s.positionals) {
			return Values{}, &engine.UsageError{Value: tok, Reason: fmt.Sprintf("unexpected argument %q", tok)}
		}
		p := s.params[s.positionals[pos]]
		pos++

		if p.Type.Kind == KindList {
			rest := make([]string, len(tokens)-i)
			copy(rest, tokens[i:])
			values.set(p.Name, rest)
			break
		}

		v, reason := p.Type.convert(tok)
		if reason != "" {
			return Values{}, &engine.UsageError{Param: p.Name, Value: tok, Reason: reason}
		}
		values.set(p.Name, v)
	}

	for _, p := range s.params {
		if values.Has(p.Name) {
			continue
		}
		switch {
		case p.Required:
			return Values{}, &engine.UsageError{Param: p.Name, Reason: "required"}
		case p.defaultValue != nil:
			values.set(p.Name, p.defaultValue)
		}
	}

	return values, nil
}

// parseFlag handles one "--name" or "--name=value" token and returns how many
// following tokens it consumed.
func (s *Schema) parseFlag(values Values, tok string, following []string) (int, error) {
	name, inline, hasInline := strings.Cut(tok[2:], "=")

	idx, ok := s.flags[strings.ToLower(name)]
	if !ok {
		return 0, &engine.UsageError{Value: tok, Reason: fmt.Sprintf("unknown flag --%s", name)}
	}
	p := s.params[idx]

	if values.Has(p.Name) {
		return 0, &engine.UsageError{Param: p.Name, Reason: "flag given more than once"}
	}

	if p.Type.Kind == KindFlag {
		if hasInline {
			return 0, &engine.UsageError{Param: p.Name, Value: inline, Reason: "takes no value"}
		}
		values.set(p.Name, true)
		return 0, nil
	}

	raw := inline
	consumed := 0
	if !hasInline {
		if len(following) == 0 || following[0] == "--" {
			return 0, &engine.UsageError{Param: p.Name, Reason: "missing value"}
		}
		raw = following[0]
		consumed = 1
	}

	v, reason := p.Type.convert(raw)
	if reason != "" {
		return 0, &engine.UsageError{Param: p.Name, Value: raw, Reason: reason}
	}
	values.set(p.Name, v)
	return consumed, nil
}

// Usage renders a usage line followed by one line per parameter.
func (s *Schema) Usage(program string) string {
	var line strings.Builder
	line.WriteString("usage: " + program)

	for _, idx := range s.positionals {
		p := s.params[idx]
		name := p.Name
		if p.Type.Kind == KindList {
			name += "..."
		}
		if p.Required {
			fmt.Fprintf(&line, " <%s>", name)
		} else {
			fmt.Fprintf(&line, " [%s]", name)
		}
	}
	for _, p := range s.params {
		if !p.Flag {
			continue
		}
		switch {
		case p.Type.Kind == KindFlag:
			fmt.Fprintf(&line, " [--%s]", p.Name)
		case p.Required:
			fmt.Fprintf(&line, " --%s <%s>", p.Name, p.Type.Kind)
		default:
			fmt.Fprintf(&line, " [--%s <%s>]", p.Name, p.Type.Kind)
		}
	}
	line.WriteString("\n")

	width := 0
	for _, p := range s.params {
		if n := len(p.Name) + 2; n > width {
			width = n
		}
	}
	for _, p := range s.params {
		name := p.Name
		if p.Flag {
			name = "--" + name
		}
		fmt.Fprintf(&line, "  %-*s  %s", width, name, p.Type)
		if p.Default != "" {
			fmt.Fprintf(&line, " (default %s)", p.Default)
		}
		line.WriteString("\n")
	}
	return line.String()
}
