package codematch

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
)

type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenLiteral
	TokenRaw
	TokenPunct
)

func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "Ident"
	case TokenNumber:
		return "Number"
	case TokenLiteral:
		return "Literal"
	case TokenRaw:
		return "Raw"
	case TokenPunct:
		return "Punct"
	default:
		return "Unknown"
	}
}

// Token is one classified piece of pattern notation.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// Tokenize splits pattern notation into tokens. Raw fragments lose their
// leading backtick. Characters outside printable ASCII are reported on the
// logger and skipped.
func Tokenize(input string, logger *zap.Logger) ([]Token, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var tokens []Token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case isSpace(c):
			i++

		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentChar(input[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenIdent, Text: input[start:i], Pos: start})

		case isDigit(c):
			start := i
			for i < len(input) && isAlnum(input[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: input[start:i], Pos: start})

		case c == '"' || c == '\'':
			end, err := scanQuoted(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: TokenLiteral, Text: input[i:end], Pos: i})
			i = end

		case c == '`':
			if i+1 < len(input) && input[i+1] == '`' {
				tokens = append(tokens, Token{Kind: TokenRaw, Text: "`", Pos: i})
				i += 2
				continue
			}
			start := i + 1
			i = start
			for i < len(input) && !isSpace(input[i]) && input[i] != '`' {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("%w: empty raw fragment at offset %d", ErrLex, start-1)
			}
			tokens = append(tokens, Token{Kind: TokenRaw, Text: input[start:i], Pos: start - 1})

		case c > ' ' && c < 0x7f:
			tokens = append(tokens, Token{Kind: TokenPunct, Text: string(c), Pos: i})
			i++

		default:
			r, size := utf8.DecodeRuneInString(input[i:])
			logger.Warn("skipping unrecognized character in pattern",
				zap.String("char", fmt.Sprintf("%q", r)),
				zap.Int("offset", i),
			)
			i += size
		}
	}
	return tokens, nil
}
