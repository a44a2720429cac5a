package codematch

import (
	"fmt"
	"regexp"
	"strings"
)

type elemKind int

const (
	elemUnit elemKind = iota
	elemIdent
	elemAny
	elemIndex
	elemEnd
	elemRaw
	elemSeq
	elemAlt
	elemGroup
	elemRepeat
)

// element is a node of a compiled pattern.
type element struct {
	kind     elemKind
	unit     Unit
	raw      string
	children []*element
	capture  int // 1-based capture number, 0 for non-capturing groups
	min, max int // max < 0 is unbounded
	lazy     bool
}

type itemKind int

const (
	itemAtom itemKind = iota
	itemOpen
	itemOpenNC
	itemClose
	itemAlt
	itemQuant
	itemLazy
)

type item struct {
	kind itemKind
	atom *element
	op   byte
	pos  int
}

// Pattern is compiled pattern notation.
type Pattern struct {
	notation string
	session  *Session
	inline   bool
	root     *element
	captures int
	regexOK  bool
	// structural is false when the pattern embeds verbatim regular expressions.
	structural bool

	// regex backend cache, rebuilt when the identifier class grows
	re      *regexp.Regexp
	reIdent int
}

// Compile compiles notation against the session interners. Inline patterns
// match buffers encoded in inline mode, opaque patterns match opaque buffers.
func (s *Session) Compile(notation string, inline bool) (*Pattern, error) {
	tokens, err := Tokenize(notation, s.logger)
	if err != nil {
		return nil, err
	}

	items, err := s.items(tokens, inline)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", notation, err)
	}

	p := &Pattern{notation: notation, session: s, inline: inline, structural: true, reIdent: -1}
	ps := &patternParser{items: items}
	root, err := ps.parseAlt()
	if err != nil {
		return nil, fmt.Errorf("%q: %w", notation, err)
	}
	if ps.pos < len(items) {
		return nil, fmt.Errorf("%w: %q: unbalanced %s at offset %d", ErrPattern, notation, "`)", items[ps.pos].pos)
	}
	p.root = root
	p.captures = ps.captures
	walkElements(root, func(e *element) {
		if e.kind == elemRaw {
			p.structural = false
		}
	})

	// validate the regex rendering up front
	if _, err := p.Regexp(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func (s *Session) MustCompile(notation string, inline bool) *Pattern {
	p, err := s.Compile(notation, inline)
	if err != nil {
		panic(err)
	}
	return p
}

// items turns tokens into atoms and operators and applies the delimiter
// rules of the requested mode.
func (s *Session) items(tokens []Token, inline bool) ([]item, error) {
	var (
		out   []item
		stack []Delimiter
	)
	present := func() bool { return inline || len(stack) == 0 }
	atom := func(in *Interner, text string, pos int) error {
		if !present() {
			return nil
		}
		c, err := in.Intern(text)
		if err != nil {
			return err
		}
		out = append(out, item{kind: itemAtom, pos: pos, atom: &element{
			kind: elemUnit,
			unit: Unit{Category: in.Category(), Text: text, Char: c},
		}})
		return nil
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenIdent:
			if c, ok := s.Keywords.Lookup(tok.Text); ok {
				if present() {
					out = append(out, item{kind: itemAtom, pos: tok.Pos, atom: &element{
						kind: elemUnit,
						unit: Unit{Category: CategoryKeyword, Text: tok.Text, Char: c},
					}})
				}
				continue
			}
			if err := atom(s.Idents, tok.Text, tok.Pos); err != nil {
				return nil, err
			}

		case TokenNumber:
			if err := atom(s.Numbers, normalizeNumber(tok.Text), tok.Pos); err != nil {
				return nil, err
			}

		case TokenLiteral:
			if err := atom(s.Literals, tok.Text, tok.Pos); err != nil {
				return nil, err
			}

		case TokenPunct:
			c := tok.Text[0]
			switch c {
			case '(', '[', '{':
				if inline {
					if err := atom(s.Puncts, tok.Text, tok.Pos); err != nil {
						return nil, err
					}
				} else if err := atom(s.Groups, tok.Text, tok.Pos); err != nil {
					return nil, err
				}
				stack = append(stack, Delimiter(c))
			case ')', ']', '}':
				want, _ := closerOf(c)
				if len(stack) == 0 || stack[len(stack)-1] != want {
					return nil, fmt.Errorf("%w: unmatched %q at offset %d", ErrGroupImbalance, c, tok.Pos)
				}
				stack = stack[:len(stack)-1]
				if inline {
					if err := atom(s.Puncts, tok.Text, tok.Pos); err != nil {
						return nil, err
					}
				}
			default:
				if err := atom(s.Puncts, tok.Text, tok.Pos); err != nil {
					return nil, err
				}
			}

		case TokenRaw:
			if !present() {
				continue
			}
			if tok.Text == "`" {
				if err := atom(s.Puncts, "`", tok.Pos); err != nil {
					return nil, err
				}
				continue
			}
			out = append(out, fragmentItems(tok.Text, tok.Pos)...)
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: %q is never closed", ErrGroupImbalance, byte(stack[len(stack)-1]))
	}
	return out, nil
}

// fragmentItems splits a raw fragment into pattern operators.
func fragmentItems(text string, pos int) []item {
	if text[0] == 'r' {
		return []item{{kind: itemAtom, pos: pos, atom: &element{kind: elemRaw, raw: text[1:]}}}
	}

	var out []item
	lastQuant := func() bool { return len(out) > 0 && out[len(out)-1].kind == itemQuant }
	rest := text
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "iden"):
			out = append(out, item{kind: itemAtom, pos: pos, atom: &element{kind: elemIdent}})
			rest = rest[4:]
		case strings.HasPrefix(rest, "(?:"):
			out = append(out, item{kind: itemOpenNC, pos: pos})
			rest = rest[3:]
		case strings.HasPrefix(rest, `\d`):
			out = append(out, item{kind: itemAtom, pos: pos, atom: &element{kind: elemIndex}})
			rest = rest[2:]
		case rest[0] == '(':
			out = append(out, item{kind: itemOpen, pos: pos})
			rest = rest[1:]
		case rest[0] == ')':
			out = append(out, item{kind: itemClose, pos: pos})
			rest = rest[1:]
		case rest[0] == '|':
			out = append(out, item{kind: itemAlt, pos: pos})
			rest = rest[1:]
		case rest[0] == '?' && lastQuant():
			out = append(out, item{kind: itemLazy, pos: pos})
			rest = rest[1:]
		case rest[0] == '?' || rest[0] == '*' || rest[0] == '+':
			out = append(out, item{kind: itemQuant, op: rest[0], pos: pos})
			rest = rest[1:]
		case rest[0] == '.':
			out = append(out, item{kind: itemAtom, pos: pos, atom: &element{kind: elemAny}})
			rest = rest[1:]
		case rest[0] == '$':
			out = append(out, item{kind: itemAtom, pos: pos, atom: &element{kind: elemEnd}})
			rest = rest[1:]
		default:
			out = append(out, item{kind: itemAtom, pos: pos, atom: &element{kind: elemRaw, raw: rest}})
			rest = ""
		}
	}
	return out
}

type patternParser struct {
	items    []item
	pos      int
	captures int
}

func (p *patternParser) peek() (item, bool) {
	if p.pos >= len(p.items) {
		return item{}, false
	}
	return p.items[p.pos], true
}

func (p *patternParser) parseAlt() (*element, error) {
	first, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	alts := []*element{first}
	for {
		it, ok := p.peek()
		if !ok || it.kind != itemAlt {
			break
		}
		p.pos++
		next, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		alts = append(alts, next)
	}
	if len(alts) == 1 {
		return first, nil
	}
	return &element{kind: elemAlt, children: alts}, nil
}

func (p *patternParser) parseSeq() (*element, error) {
	seq := &element{kind: elemSeq}
	for {
		it, ok := p.peek()
		if !ok || it.kind == itemAlt || it.kind == itemClose {
			return seq, nil
		}
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		seq.children = append(seq.children, term)
	}
}

func (p *patternParser) parseTerm() (*element, error) {
	it, _ := p.peek()
	p.pos++

	var atom *element
	switch it.kind {
	case itemAtom:
		atom = it.atom
	case itemOpen, itemOpenNC:
		g := &element{kind: elemGroup}
		if it.kind == itemOpen {
			p.captures++
			g.capture = p.captures
		}
		body, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if c, ok := p.peek(); !ok || c.kind != itemClose {
			return nil, fmt.Errorf("%w: group opened at offset %d is never closed", ErrPattern, it.pos)
		}
		p.pos++
		g.children = []*element{body}
		atom = g
	default:
		return nil, fmt.Errorf("%w: quantifier without operand at offset %d", ErrPattern, it.pos)
	}

	for {
		q, ok := p.peek()
		if !ok || q.kind != itemQuant {
			return atom, nil
		}
		p.pos++
		rep := &element{kind: elemRepeat, children: []*element{atom}, max: -1}
		switch q.op {
		case '?':
			rep.min, rep.max = 0, 1
		case '*':
			rep.min = 0
		case '+':
			rep.min = 1
		}
		if l, ok := p.peek(); ok && l.kind == itemLazy {
			rep.lazy = true
			p.pos++
		}
		atom = rep
	}
}

func walkElements(e *element, fn func(*element)) {
	fn(e)
	for _, c := range e.children {
		walkElements(c, fn)
	}
}

// Notation returns the source notation.
func (p *Pattern) Notation() string { return p.notation }

// Captures returns the number of capture groups.
func (p *Pattern) Captures() int { return p.captures }

// Inline reports whether the pattern targets inline buffers.
func (p *Pattern) Inline() bool { return p.inline }

// Structural reports whether the structural backend can run the pattern.
func (p *Pattern) Structural() bool { return p.structural }

// Source renders the pattern as a regular expression over encoded strings.
// The identifier class reflects every identifier interned so far.
func (p *Pattern) Source() string {
	var sb strings.Builder
	sb.WriteString(`\A(?s:`)
	p.render(&sb, p.root)
	sb.WriteString(`)`)
	return sb.String()
}

// Regexp returns the compiled regular expression, recompiling when new
// identifiers were interned since the last call.
func (p *Pattern) Regexp() (*regexp.Regexp, error) {
	if p.re != nil && p.reIdent == p.session.Idents.Len() {
		return p.re, nil
	}
	re, err := regexp.Compile(p.Source())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrPattern, p.notation, err)
	}
	p.re = re
	p.reIdent = p.session.Idents.Len()
	return re, nil
}

func (p *Pattern) render(sb *strings.Builder, e *element) {
	switch e.kind {
	case elemUnit:
		sb.WriteString(regexp.QuoteMeta(e.unit.String()))
	case elemIdent:
		sb.WriteString(p.session.Idents.ClassRegex())
	case elemAny:
		sb.WriteByte('.')
	case elemIndex:
		sb.WriteString(`\d`)
	case elemEnd:
		sb.WriteByte('$')
	case elemRaw:
		sb.WriteString(`(?:`)
		sb.WriteString(e.raw)
		sb.WriteString(`)`)
	case elemSeq:
		for _, c := range e.children {
			p.render(sb, c)
		}
	case elemAlt:
		for i, c := range e.children {
			if i > 0 {
				sb.WriteByte('|')
			}
			p.render(sb, c)
		}
	case elemGroup:
		if e.capture > 0 {
			sb.WriteByte('(')
		} else {
			sb.WriteString(`(?:`)
		}
		p.render(sb, e.children[0])
		sb.WriteByte(')')
	case elemRepeat:
		p.render(sb, e.children[0])
		switch {
		case e.min == 0 && e.max == 1:
			sb.WriteByte('?')
		case e.min == 0:
			sb.WriteByte('*')
		default:
			sb.WriteByte('+')
		}
		if e.lazy {
			sb.WriteByte('?')
		}
	}
}
