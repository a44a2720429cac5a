package codematch

import (
	"fmt"
	"sort"
	"strings"
)

// Backend selects the matching engine used by a Buffer.
type Backend int

const (
	// BackendStructural walks the unit slice with a backtracking matcher.
	BackendStructural Backend = iota
	// BackendRegex runs the compiled regular expression over the encoded string.
	BackendRegex
)

func (b Backend) String() string {
	switch b {
	case BackendStructural:
		return "structural"
	case BackendRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// ParseBackend maps a configuration value to a Backend. The empty string
// selects the structural backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "", "structural":
		return BackendStructural, nil
	case "regex":
		return BackendRegex, nil
	}
	return 0, fmt.Errorf("unknown match backend %q", s)
}

// Capture is the content of one capture group. Groups that did not take
// part in the match have no units and empty text.
type Capture struct {
	Units []Unit
	Text  string
}

// Match is the result of a successful TryMatch.
type Match struct {
	Consumed []Unit
	Captures []Capture
}

// Group returns the i-th capture, 1-based like regular expression groups.
func (m Match) Group(i int) Capture {
	if i < 1 || i > len(m.Captures) {
		return Capture{}
	}
	return m.Captures[i-1]
}

// Text returns the decoded text of the i-th capture.
func (m Match) Text(i int) string { return m.Group(i).Text }

// Buffer is the unconsumed rest of an encoded token sequence. Each
// successful match removes the matched prefix.
type Buffer struct {
	session *Session
	units   []Unit
	inline  bool
	backend Backend
}

// NewBuffer wraps an encoding produced by this session.
func (s *Session) NewBuffer(enc Encoded, backend Backend) *Buffer {
	return &Buffer{session: s, units: enc.Units, inline: enc.Inline, backend: backend}
}

// Empty reports whether all units were consumed.
func (b *Buffer) Empty() bool { return len(b.units) == 0 }

// Len returns the number of remaining units.
func (b *Buffer) Len() int { return len(b.units) }

// Remaining returns the unconsumed units.
func (b *Buffer) Remaining() []Unit { return b.units }

// String returns the encoded form of the remaining units.
func (b *Buffer) String() string { return Encoded{Units: b.units}.String() }

// Preview decodes at most n remaining units.
func (b *Buffer) Preview(n int) string {
	if n < 0 || n > len(b.units) {
		n = len(b.units)
	}
	return b.session.Decode(b.units[:n])
}

// TryMatch matches p against the start of the buffer. On success the whole
// matched prefix is consumed.
func (b *Buffer) TryMatch(p *Pattern) (Match, bool, error) {
	if p.session != b.session {
		return Match{}, false, fmt.Errorf("%w: %q was compiled for another session", ErrPattern, p.notation)
	}
	if p.inline != b.inline {
		return Match{}, false, fmt.Errorf("%w: %q does not match the buffer encoding mode", ErrPattern, p.notation)
	}

	var (
		end   int
		spans [][2]int
		ok    bool
		err   error
	)
	switch b.backend {
	case BackendRegex:
		end, spans, ok, err = b.matchRegex(p)
	default:
		if !p.structural {
			return Match{}, false, fmt.Errorf("%w: %q embeds a regular expression", ErrPattern, p.notation)
		}
		end, spans, ok = matchStructural(p, b.units)
	}
	if err != nil || !ok {
		return Match{}, false, err
	}

	m := Match{Consumed: b.units[:end:end], Captures: make([]Capture, len(spans))}
	for i, sp := range spans {
		if sp[0] < 0 {
			continue
		}
		units := b.units[sp[0]:sp[1]:sp[1]]
		m.Captures[i] = Capture{Units: units, Text: b.session.Decode(units)}
	}
	b.units = b.units[end:]
	return m, true, nil
}

// TryMatchAny tries each pattern in order and returns the index of the
// first one that matches.
func (b *Buffer) TryMatchAny(patterns []*Pattern) (int, Match, bool, error) {
	for i, p := range patterns {
		m, ok, err := b.TryMatch(p)
		if err != nil {
			return -1, Match{}, false, err
		}
		if ok {
			return i, m, true, nil
		}
	}
	return -1, Match{}, false, nil
}

func (b *Buffer) matchRegex(p *Pattern) (int, [][2]int, bool, error) {
	re, err := p.Regexp()
	if err != nil {
		return 0, nil, false, err
	}

	var sb strings.Builder
	offsets := make([]int, 0, len(b.units)+1)
	for _, u := range b.units {
		offsets = append(offsets, sb.Len())
		sb.WriteString(u.String())
	}
	offsets = append(offsets, sb.Len())

	loc := re.FindStringSubmatchIndex(sb.String())
	if loc == nil {
		return 0, nil, false, nil
	}
	// byte offset to unit index, rounding into the next unit boundary
	unitAt := func(off int) int { return sort.SearchInts(offsets, off) }

	spans := make([][2]int, p.captures)
	for i := range spans {
		s, e := loc[2*(i+1)], loc[2*(i+1)+1]
		if s < 0 {
			spans[i] = [2]int{-1, -1}
			continue
		}
		spans[i] = [2]int{unitAt(s), unitAt(e)}
	}
	return unitAt(loc[1]), spans, true, nil
}
