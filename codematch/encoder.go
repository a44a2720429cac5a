package codematch

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Unit is one encoded element. Index units carry the decimal side table
// index in Text and have no interned character.
type Unit struct {
	Category Category
	Text     string
	Char     rune
}

func (u Unit) String() string {
	if u.Category == CategoryIndex {
		return u.Text
	}
	return string(u.Char)
}

// Encoded is a flattened token tree.
type Encoded struct {
	Units  []Unit
	Inline bool
}

// String returns the single-character encoding of every unit.
func (e Encoded) String() string {
	var sb strings.Builder
	for _, u := range e.Units {
		sb.WriteString(u.String())
	}
	return sb.String()
}

// Session owns the interners and the opaque group side table of one
// declaration block. Patterns must be compiled against the Session that
// encoded the buffer they run on. A Session is not safe for concurrent use.
type Session struct {
	Keywords *Interner
	Idents   *Interner
	Numbers  *Interner
	Literals *Interner
	Puncts   *Interner
	Groups   *Interner

	groups [][]Node
	logger *zap.Logger
}

func NewSession(logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		Keywords: newKeywordInterner(),
		Idents:   NewInterner(CategoryIdent, "", 0x3400, 0x4dbf),
		Numbers:  NewInterner(CategoryNumber, "", 0x2801, 0x28ff),
		Literals: NewInterner(CategoryLiteral, "", 0xac00, 0xd7b0),
		Puncts:   NewInterner(CategoryPunct, "", 0x2900, 0x2980),
		Groups:   NewInterner(CategoryGroup, "", 0x1f600, 0x1f650),
		logger:   logger,
	}
}

// interners in decoding order.
func (s *Session) interners() []*Interner {
	return []*Interner{s.Keywords, s.Idents, s.Numbers, s.Literals, s.Puncts, s.Groups}
}

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

// Encode flattens nodes. In inline mode groups are written with their
// delimiters as punctuation units; otherwise every group becomes a group unit
// followed by an index unit into the side table.
func (s *Session) Encode(nodes []Node, inline bool) (Encoded, error) {
	enc := Encoded{Inline: inline}
	if err := s.appendNodes(&enc.Units, nodes, inline); err != nil {
		return Encoded{}, err
	}
	return enc, nil
}

func (s *Session) appendNodes(out *[]Unit, nodes []Node, inline bool) error {
	for _, n := range nodes {
		switch n.Kind {
		case NodeGroup:
			if inline {
				if err := s.appendUnit(out, s.Puncts, string(n.Delim)); err != nil {
					return err
				}
				if err := s.appendNodes(out, n.Children, inline); err != nil {
					return err
				}
				if err := s.appendUnit(out, s.Puncts, string(n.Delim.Close())); err != nil {
					return err
				}
				continue
			}
			if err := s.appendUnit(out, s.Groups, string(n.Delim)); err != nil {
				return err
			}
			*out = append(*out, Unit{Category: CategoryIndex, Text: strconv.Itoa(len(s.groups))})
			s.groups = append(s.groups, n.Children)

		case NodeIdent:
			if c, ok := s.Keywords.Lookup(n.Text); ok {
				*out = append(*out, Unit{Category: CategoryKeyword, Text: n.Text, Char: c})
				continue
			}
			if err := s.appendUnit(out, s.Idents, n.Text); err != nil {
				return err
			}

		case NodeNumber:
			if err := s.appendUnit(out, s.Numbers, normalizeNumber(n.Text)); err != nil {
				return err
			}

		case NodeLiteral:
			if err := s.appendUnit(out, s.Literals, n.Text); err != nil {
				return err
			}

		case NodePunct:
			if err := s.appendUnit(out, s.Puncts, n.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) appendUnit(out *[]Unit, in *Interner, text string) error {
	// leading digit identifiers come from suffixed numeric tokens
	if in == s.Idents && text != "" && isDigit(text[0]) {
		in = s.Numbers
		text = normalizeNumber(text)
	}
	c, err := in.Intern(text)
	if err != nil {
		return err
	}
	*out = append(*out, Unit{Category: in.Category(), Text: text, Char: c})
	return nil
}

// normalizeNumber rewrites plain decimal and float literals in shortest
// form. Anything else, including hex and suffixed literals, is kept as is.
func normalizeNumber(text string) string {
	if strings.ContainsAny(text, "xXbBoO_") {
		return text
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return text
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// GroupNodes returns the sub-tree stored under a side table index.
func (s *Session) GroupNodes(index string) ([]Node, error) {
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(s.groups) {
		return nil, fmt.Errorf("%w: no group with index %q", ErrPattern, index)
	}
	return s.groups[i], nil
}

// Group encodes the contents of a side table entry.
func (s *Session) Group(index string, inline bool) (Encoded, error) {
	nodes, err := s.GroupNodes(index)
	if err != nil {
		return Encoded{}, err
	}
	return s.Encode(nodes, inline)
}

// Decode renders units back to source text. A group unit followed by its
// index is expanded from the side table.
func (s *Session) Decode(units []Unit) string {
	var sb strings.Builder
	prevWord := false
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch u.Category {
		case CategoryGroup:
			if i+1 < len(units) && units[i+1].Category == CategoryIndex {
				if nodes, err := s.GroupNodes(units[i+1].Text); err == nil {
					sb.WriteString(Render([]Node{{Kind: NodeGroup, Delim: Delimiter(u.Text[0]), Children: nodes}}))
					prevWord = false
					i++
					continue
				}
			}
			sb.WriteString(u.Text)
			prevWord = false
		case CategoryIndex:
			// an index without its group, e.g. a captured `\d+
			if prevWord {
				sb.WriteByte(' ')
			}
			sb.WriteString(u.Text)
			prevWord = true
		default:
			word := u.Category.wordLike()
			if word && prevWord {
				sb.WriteByte(' ')
			}
			sb.WriteString(u.Text)
			prevWord = word
		}
	}
	return sb.String()
}

// Units converts an encoded string back into units. Characters unknown to
// every interner are skipped. Digits directly following a group character
// form its index unit.
func (s *Session) Units(encoded string) []Unit {
	runes := []rune(encoded)
	units := make([]Unit, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if isDigit(byte(c)) && c < 0x80 && len(units) > 0 && units[len(units)-1].Category == CategoryGroup {
			j := i
			for j < len(runes) && runes[j] < 0x80 && isDigit(byte(runes[j])) {
				j++
			}
			units = append(units, Unit{Category: CategoryIndex, Text: string(runes[i:j])})
			i = j - 1
			continue
		}
		found := false
		for _, in := range s.interners() {
			if text, ok := in.Unit(c); ok {
				units = append(units, Unit{Category: in.Category(), Text: text, Char: c})
				found = true
				break
			}
		}
		if !found {
			s.logger.Debug("skipping unknown encoded character", zap.Int32("char", c))
		}
	}
	return units
}

// DecodeString is Decode over an encoded string.
func (s *Session) DecodeString(encoded string) string {
	return s.Decode(s.Units(encoded))
}
