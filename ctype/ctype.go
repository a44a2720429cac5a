// Package ctype parses the C++ type spellings produced for foreign
// arguments, e.g. "const char*", "RustVec<uint8_t>" or "std::shared_ptr<Foo>".
package ctype

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSyntax = errors.New("invalid type expression")

type Kind int

const (
	Named Kind = iota
	Pointer
	Reference
)

// Type is a parsed type expression. Named types carry a qualified name and
// optional template arguments, pointers and references carry their element.
type Type struct {
	Kind  Kind
	Const bool
	Name  []string
	Args  []*Type
	Elem  *Type
}

// multi-word builtin spellings, longest first
var builtinWords = [][]string{
	{"unsigned", "long", "long"},
	{"signed", "long", "long"},
	{"unsigned", "long"},
	{"unsigned", "int"},
	{"unsigned", "short"},
	{"unsigned", "char"},
	{"signed", "char"},
	{"signed", "int"},
	{"long", "long"},
	{"long", "double"},
}

// Void is the type of an empty spelling.
func Void() *Type { return &Type{Kind: Named, Name: []string{"void"}} }

// IsVoid reports whether t is plain void.
func (t *Type) IsVoid() bool {
	return t.Kind == Named && !t.Const && len(t.Args) == 0 && len(t.Name) == 1 && t.Name[0] == "void"
}

// Base returns the last name component of a named type.
func (t *Type) Base() string {
	if t.Kind != Named || len(t.Name) == 0 {
		return ""
	}
	return t.Name[len(t.Name)-1]
}

// Qualified returns the name joined with "::".
func (t *Type) Qualified() string { return strings.Join(t.Name, "::") }

// Unqualified returns a copy of t without top-level const.
func (t *Type) Unqualified() *Type {
	c := *t
	c.Const = false
	return &c
}

func (t *Type) String() string {
	switch t.Kind {
	case Pointer, Reference:
		s := t.Elem.String()
		if t.Kind == Pointer {
			s += "*"
		} else {
			s += "&"
		}
		if t.Const {
			s += " const"
		}
		return s
	}
	var sb strings.Builder
	if t.Const {
		sb.WriteString("const ")
	}
	sb.WriteString(t.Qualified())
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	return sb.String()
}

// Parse parses a single type expression. The empty string and "()" are void.
func Parse(s string) (*Type, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "()" {
		return Void(), nil
	}
	p := &parser{src: s, toks: lex(s)}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: unexpected %q in %q", ErrSyntax, p.peek(), s)
	}
	return t, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) *Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// SplitList splits a comma separated list of spellings at the top level,
// leaving commas inside template argument lists alone.
func SplitList(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func lex(s string) []string {
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == ':' && i+1 < len(s) && s[i+1] == ':':
			toks = append(toks, "::")
			i += 2
		case isWord(c):
			j := i
			for j < len(s) && isWord(s[j]) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			toks = append(toks, string(c))
			i++
		}
	}
	return toks
}

func isWord(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

type parser struct {
	src  string
	toks []string
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

// type := "const"* named ("const" | "*" | "&")*
func (p *parser) parseType() (*Type, error) {
	isConst := false
	for p.peek() == "const" {
		isConst = true
		p.pos++
	}

	t, err := p.parseNamed()
	if err != nil {
		return nil, err
	}
	t.Const = isConst

	for !p.done() {
		switch p.peek() {
		case "const":
			t.Const = true
		case "*":
			t = &Type{Kind: Pointer, Elem: t}
		case "&":
			t = &Type{Kind: Reference, Elem: t}
		default:
			return t, nil
		}
		p.pos++
	}
	return t, nil
}

func (p *parser) parseNamed() (*Type, error) {
	if words := p.builtin(); words != "" {
		return &Type{Kind: Named, Name: []string{words}}, nil
	}

	t := &Type{Kind: Named}
	if p.peek() == "::" {
		p.pos++
	}
	for {
		tok := p.next()
		if tok == "" || !isWord(tok[0]) || tok == "const" {
			return nil, fmt.Errorf("%w: expected a type name in %q", ErrSyntax, p.src)
		}
		t.Name = append(t.Name, tok)
		if p.peek() != "::" {
			break
		}
		p.pos++
	}

	if p.peek() == "<" {
		p.pos++
		for {
			arg, err := p.parseType()
			if err != nil {
				return nil, err
			}
			t.Args = append(t.Args, arg)
			switch p.next() {
			case ",":
				continue
			case ">":
				return t, nil
			default:
				return nil, fmt.Errorf("%w: unterminated template argument list in %q", ErrSyntax, p.src)
			}
		}
	}
	return t, nil
}

func (p *parser) builtin() string {
	for _, words := range builtinWords {
		if p.pos+len(words) > len(p.toks) {
			continue
		}
		match := true
		for i, w := range words {
			if p.toks[p.pos+i] != w {
				match = false
				break
			}
		}
		if match {
			p.pos += len(words)
			return strings.Join(words, " ")
		}
	}
	return ""
}
