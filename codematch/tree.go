package codematch

import (
	"fmt"
	"strings"
	"unicode"
)

// NodeKind is the kind of a token tree node.
type NodeKind int

const (
	NodeIdent NodeKind = iota
	NodeNumber
	NodeLiteral
	NodePunct
	NodeGroup
)

func (k NodeKind) String() string {
	switch k {
	case NodeIdent:
		return "Ident"
	case NodeNumber:
		return "Number"
	case NodeLiteral:
		return "Literal"
	case NodePunct:
		return "Punct"
	case NodeGroup:
		return "Group"
	default:
		return "Unknown"
	}
}

// Delimiter is the opening character of a group.
type Delimiter byte

const (
	DelimParen   Delimiter = '('
	DelimBracket Delimiter = '['
	DelimBrace   Delimiter = '{'
)

// Close returns the matching closing character.
func (d Delimiter) Close() byte {
	switch d {
	case DelimParen:
		return ')'
	case DelimBracket:
		return ']'
	case DelimBrace:
		return '}'
	}
	return 0
}

func closerOf(c byte) (Delimiter, bool) {
	switch c {
	case ')':
		return DelimParen, true
	case ']':
		return DelimBracket, true
	case '}':
		return DelimBrace, true
	}
	return 0, false
}

// Node is one token tree element. Groups carry their children.
type Node struct {
	Kind     NodeKind
	Text     string
	Delim    Delimiter
	Children []Node
	Pos      int // byte offset of the token (the open delimiter for groups)
	End      int // byte offset just past the token (past the close delimiter for groups)
}

func (n Node) String() string {
	if n.Kind == NodeGroup {
		return fmt.Sprintf("Group(%c %d children)", n.Delim, len(n.Children))
	}
	return fmt.Sprintf("%s(%s)", n.Kind, n.Text)
}

// ParseTree splits source text into a token tree.
//
// Line and block comments are dropped. Every punctuation character becomes
// its own node, so "->" yields two nodes. A quote followed by an identifier
// and no closing quote is a lifetime and is split into punctuation and
// identifier.
func ParseTree(src string) ([]Node, error) {
	type frame struct {
		delim Delimiter
		pos   int
		nodes []Node
	}
	stack := []frame{{}}
	top := func() *frame { return &stack[len(stack)-1] }
	emit := func(n Node) { top().nodes = append(top().nodes, n) }

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case isSpace(c):
			i++

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated block comment at offset %d", ErrLex, i)
			}
			i += end + 4

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			emit(Node{Kind: NodeIdent, Text: src[start:i], Pos: start, End: i})

		case isDigit(c):
			start := i
			for i < len(src) && (isAlnum(src[i]) || src[i] == '_' || (src[i] == '.' && i+1 < len(src) && isDigit(src[i+1]))) {
				i++
			}
			emit(Node{Kind: NodeNumber, Text: src[start:i], Pos: start, End: i})

		case c == '"':
			end, err := scanQuoted(src, i)
			if err != nil {
				return nil, err
			}
			emit(Node{Kind: NodeLiteral, Text: src[i:end], Pos: i, End: end})
			i = end

		case c == '\'':
			if isLifetime(src, i) {
				emit(Node{Kind: NodePunct, Text: "'", Pos: i, End: i + 1})
				i++
				continue
			}
			end, err := scanQuoted(src, i)
			if err != nil {
				return nil, err
			}
			emit(Node{Kind: NodeLiteral, Text: src[i:end], Pos: i, End: end})
			i = end

		case c == '(' || c == '[' || c == '{':
			stack = append(stack, frame{delim: Delimiter(c), pos: i})
			i++

		case c == ')' || c == ']' || c == '}':
			want, _ := closerOf(c)
			if len(stack) == 1 {
				return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrGroupImbalance, c, i)
			}
			f := stack[len(stack)-1]
			if f.delim != want {
				return nil, fmt.Errorf("%w: %q at offset %d closes %q opened at offset %d",
					ErrGroupImbalance, c, i, byte(f.delim), f.pos)
			}
			stack = stack[:len(stack)-1]
			i++
			emit(Node{Kind: NodeGroup, Text: string(f.delim), Delim: f.delim, Children: f.nodes, Pos: f.pos, End: i})

		case c < 0x80 && unicode.IsPunct(rune(c)) || c < 0x80 && unicode.IsSymbol(rune(c)):
			emit(Node{Kind: NodePunct, Text: string(c), Pos: i, End: i + 1})
			i++

		default:
			return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrLex, c, i)
		}
	}

	if len(stack) > 1 {
		f := stack[len(stack)-1]
		return nil, fmt.Errorf("%w: %q opened at offset %d is never closed", ErrGroupImbalance, byte(f.delim), f.pos)
	}
	return stack[0].nodes, nil
}

// scanQuoted returns the offset just past the quoted literal starting at i.
// Backslash escapes the next character.
func scanQuoted(src string, i int) (int, error) {
	q := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: unterminated quote %q at offset %d", ErrLex, q, i)
}

// isLifetime reports whether the quote at i starts a lifetime like 'a
// rather than a char literal like 'a'.
func isLifetime(src string, i int) bool {
	if i+1 >= len(src) || !isIdentStart(src[i+1]) {
		return false
	}
	j := i + 1
	for j < len(src) && isIdentChar(src[j]) {
		j++
	}
	return j >= len(src) || src[j] != '\''
}

// Render turns nodes back into source text. Word-like tokens are separated
// by one space, everything else is written adjacent.
func Render(nodes []Node) string {
	var sb strings.Builder
	prevWord := false
	var walk func([]Node)
	walk = func(ns []Node) {
		for _, n := range ns {
			if n.Kind == NodeGroup {
				sb.WriteByte(byte(n.Delim))
				prevWord = false
				walk(n.Children)
				sb.WriteByte(n.Delim.Close())
				prevWord = false
				continue
			}
			word := n.Kind != NodePunct
			if word && prevWord {
				sb.WriteByte(' ')
			}
			sb.WriteString(n.Text)
			prevWord = word
		}
	}
	walk(nodes)
	return sb.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) }

func isIdentStart(c byte) bool { return isAlpha(c) || c == '_' }

func isIdentChar(c byte) bool { return isAlnum(c) || c == '_' }
