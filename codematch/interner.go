package codematch

import (
	"fmt"
	"strings"
)

// Category classifies a unit. Each category owns a disjoint character range.
type Category int

const (
	CategoryKeyword Category = iota
	CategoryIdent
	CategoryNumber
	CategoryLiteral
	CategoryPunct
	CategoryGroup
	// CategoryIndex marks the decimal side table index written after an
	// opaque group delimiter. Index units are not interned.
	CategoryIndex
)

func (c Category) String() string {
	switch c {
	case CategoryKeyword:
		return "keyword"
	case CategoryIdent:
		return "identifier"
	case CategoryNumber:
		return "number"
	case CategoryLiteral:
		return "literal"
	case CategoryPunct:
		return "punctuation"
	case CategoryGroup:
		return "group"
	case CategoryIndex:
		return "index"
	default:
		return "unknown"
	}
}

// wordLike reports whether two adjacent units of this category need a
// separating space when rendered back to text.
func (c Category) wordLike() bool {
	switch c {
	case CategoryKeyword, CategoryIdent, CategoryNumber, CategoryLiteral:
		return true
	}
	return false
}

// Interner assigns one character to every distinct unit string of a category.
//
// Characters are handed out from the preferred string first and then from
// the half-open code point range [first, end). The mapping is injective and
// stable for the lifetime of the Interner.
type Interner struct {
	category  Category
	preferred []rune
	first     rune
	end       rune
	next      int
	toChar    map[string]rune
	toUnit    map[rune]string
}

// NewInterner creates an Interner for category c.
func NewInterner(c Category, preferred string, first, end rune) *Interner {
	return &Interner{
		category:  c,
		preferred: []rune(preferred),
		first:     first,
		end:       end,
		toChar:    make(map[string]rune),
		toUnit:    make(map[rune]string),
	}
}

// Category returns the category this interner serves.
func (in *Interner) Category() Category { return in.category }

// Len returns the number of allocated characters.
func (in *Interner) Len() int { return in.next }

func (in *Interner) capacity() int {
	return len(in.preferred) + int(in.end-in.first)
}

func (in *Interner) charAt(i int) rune {
	if i < len(in.preferred) {
		return in.preferred[i]
	}
	return in.first + rune(i-len(in.preferred))
}

// NextChar allocates the next free character.
func (in *Interner) NextChar() (rune, error) {
	if in.next >= in.capacity() {
		return 0, fmt.Errorf("%w: %s interner holds %d units", ErrEncodingExhausted, in.category, in.next)
	}
	c := in.charAt(in.next)
	in.next++
	return c, nil
}

// Intern returns the character for unit, allocating one on first sight.
func (in *Interner) Intern(unit string) (rune, error) {
	if c, ok := in.toChar[unit]; ok {
		return c, nil
	}
	c, err := in.NextChar()
	if err != nil {
		return 0, err
	}
	in.toChar[unit] = c
	in.toUnit[c] = unit
	return c, nil
}

// Lookup returns the character of a previously interned unit.
func (in *Interner) Lookup(unit string) (rune, bool) {
	c, ok := in.toChar[unit]
	return c, ok
}

// Unit maps a character back to its unit string.
func (in *Interner) Unit(c rune) (string, bool) {
	u, ok := in.toUnit[c]
	return u, ok
}

// ClassRegex returns a regular expression character class matching every
// character allocated so far. Contiguous runs of three or more characters are
// written as ranges, shorter runs are enumerated.
func (in *Interner) ClassRegex() string {
	if in.next == 0 {
		// nothing allocated: a class that never matches
		return `[^\x00-\x{10FFFF}]`
	}

	var sb strings.Builder
	sb.WriteByte('[')

	commit := func(lo, hi rune) {
		if hi-lo < 2 {
			for r := lo; r <= hi; r++ {
				sb.WriteString(classChar(r))
			}
			return
		}
		sb.WriteString(classChar(lo))
		sb.WriteByte('-')
		sb.WriteString(classChar(hi))
	}

	lo := in.charAt(0)
	hi := lo
	for i := 1; i < in.next; i++ {
		c := in.charAt(i)
		if c == hi+1 {
			hi = c
			continue
		}
		commit(lo, hi)
		lo, hi = c, c
	}
	commit(lo, hi)

	sb.WriteByte(']')
	return sb.String()
}

func classChar(r rune) string {
	switch r {
	case '\\', ']', '[', '^', '-':
		return `\` + string(r)
	}
	return string(r)
}

// dslKeywords is the reserved keyword set of the declaration language.
var dslKeywords = []string{
	"abstract", "as", "async", "await", "become", "box", "break",
	"const", "continue", "crate", "do", "dyn", "else", "enum", "extern", "false",
	"final", "fn", "for", "if", "impl", "in", "let", "loop", "macro", "macro_rules",
	"match", "mod", "move", "mut", "override", "priv", "pub", "ref", "return", "self",
	"Self", "static", "struct", "super", "trait", "true", "try", "type", "typeof",
	"union", "unsafe", "unsized", "use", "virtual", "where", "while", "yield",
}

const keywordPreferred = "_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func newKeywordInterner() *Interner {
	in := NewInterner(CategoryKeyword, keywordPreferred, 0x100, 0x17f)
	for _, kw := range dslKeywords {
		// the range is far larger than the keyword set
		_, _ = in.Intern(kw)
	}
	return in
}

// IsKeyword reports whether s belongs to the reserved keyword set.
func IsKeyword(s string) bool {
	for _, kw := range dslKeywords {
		if kw == s {
			return true
		}
	}
	return false
}
