package codematch

// structuralMatcher is a backtracking matcher over units. Alternatives and
// quantifiers are tried in the same order as the regex backend, so both
// backends agree on which prefix is consumed and on capture contents.
type structuralMatcher struct {
	units []Unit
	caps  [][2]int
}

func matchStructural(p *Pattern, units []Unit) (int, [][2]int, bool) {
	m := &structuralMatcher{units: units, caps: make([][2]int, p.captures)}
	for i := range m.caps {
		m.caps[i] = [2]int{-1, -1}
	}
	end := -1
	if !m.match(p.root, 0, func(pos int) bool {
		end = pos
		return true
	}) {
		return 0, nil, false
	}
	return end, m.caps, true
}

func (m *structuralMatcher) match(e *element, pos int, k func(int) bool) bool {
	switch e.kind {
	case elemUnit:
		if pos < len(m.units) && m.units[pos].Category == e.unit.Category && m.units[pos].Char == e.unit.Char {
			return k(pos + 1)
		}
		return false

	case elemIdent:
		if pos < len(m.units) && m.units[pos].Category == CategoryIdent {
			return k(pos + 1)
		}
		return false

	case elemAny:
		if pos < len(m.units) {
			return k(pos + 1)
		}
		return false

	case elemIndex:
		if pos < len(m.units) && m.units[pos].Category == CategoryIndex {
			return k(pos + 1)
		}
		return false

	case elemEnd:
		return pos == len(m.units) && k(pos)

	case elemSeq:
		return m.matchSeq(e.children, pos, k)

	case elemAlt:
		for _, c := range e.children {
			if m.match(c, pos, k) {
				return true
			}
		}
		return false

	case elemGroup:
		if e.capture == 0 {
			return m.match(e.children[0], pos, k)
		}
		idx := e.capture - 1
		return m.match(e.children[0], pos, func(end int) bool {
			saved := m.caps[idx]
			m.caps[idx] = [2]int{pos, end}
			if k(end) {
				return true
			}
			m.caps[idx] = saved
			return false
		})

	case elemRepeat:
		return m.matchRepeat(e, 0, pos, k)
	}
	// elemRaw never reaches here, Buffer.TryMatch rejects it
	return false
}

func (m *structuralMatcher) matchSeq(seq []*element, pos int, k func(int) bool) bool {
	if len(seq) == 0 {
		return k(pos)
	}
	return m.match(seq[0], pos, func(next int) bool {
		return m.matchSeq(seq[1:], next, k)
	})
}

func (m *structuralMatcher) matchRepeat(e *element, count, pos int, k func(int) bool) bool {
	more := func() bool {
		if e.max >= 0 && count >= e.max {
			return false
		}
		return m.match(e.children[0], pos, func(next int) bool {
			// an empty iteration can not make progress
			if next == pos && count >= e.min {
				return false
			}
			return m.matchRepeat(e, count+1, next, k)
		})
	}
	if e.lazy {
		if count >= e.min && k(pos) {
			return true
		}
		return more()
	}
	if more() {
		return true
	}
	return count >= e.min && k(pos)
}
