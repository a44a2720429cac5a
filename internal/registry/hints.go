package registry

import (
	"fmt"
	"sync"

	"github.com/gnolang/cxxlink/internal/types"
)

// Hint is a recorded belief about whether a type is a class or a struct.
type Hint int

const (
	NoHint Hint = iota
	WeakStruct
	WeakClass
	StrongStruct
	StrongClass
)

func (h Hint) String() string {
	switch h {
	case WeakStruct:
		return "weak-struct"
	case WeakClass:
		return "weak-class"
	case StrongStruct:
		return "strong-struct"
	case StrongClass:
		return "strong-class"
	default:
		return "none"
	}
}

func (h Hint) Strong() bool { return h == StrongStruct || h == StrongClass }

func (h Hint) Class() bool { return h == WeakClass || h == StrongClass }

// ClassHints maps type names to hints. Safe for concurrent use.
type ClassHints struct {
	mu    sync.Mutex
	hints map[string]Hint
}

func NewClassHints() *ClassHints {
	return &ClassHints{hints: make(map[string]Hint)}
}

// Record stores hint for name. Repeating the current hint is a no-op. A
// strong hint rejects any different hint, and weak-struct and weak-class
// reject each other. Everything else overwrites.
func (c *ClassHints) Record(name string, hint Hint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(name, hint)
}

// RecordWeak records a weak hint unless a strong one is already present.
// Weak hints are derived from argument shapes, so an explicit attribute
// always wins over them regardless of order.
func (c *ClassHints) RecordWeak(name string, hint Hint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hints[name].Strong() {
		return nil
	}
	return c.record(name, hint)
}

func (c *ClassHints) record(name string, hint Hint) error {
	next, err := merge(name, c.hints[name], hint)
	if err != nil {
		return err
	}
	if next != NoHint {
		c.hints[name] = next
	}
	return nil
}

// merge applies hint over old and returns the hint to keep.
func merge(name string, old, hint Hint) (Hint, error) {
	if hint == NoHint {
		return old, nil
	}
	if old != NoHint && old != hint {
		weakPair := (old == WeakStruct && hint == WeakClass) || (old == WeakClass && hint == WeakStruct)
		if old.Strong() || weakPair {
			return old, fmt.Errorf("%w: %s is %s, can not record %s", types.ErrHintConflict, name, old, hint)
		}
	}
	return hint, nil
}

// Lookup returns the hint recorded for name.
func (c *ClassHints) Lookup(name string) Hint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hints[name]
}

// IsClass resolves name against the recorded hints. known is false when
// nothing was recorded.
func (c *ClassHints) IsClass(name string) (isClass, known bool) {
	h := c.Lookup(name)
	return h.Class(), h != NoHint
}

// Stage returns an empty HintSet layered over c.
func (c *ClassHints) Stage() *HintSet {
	return &HintSet{base: c, staged: make(map[string]Hint)}
}

// HintSet holds the hints recorded while processing one block. Reads see the
// staged hints over the shared ones; nothing reaches the shared registry
// before Context.Commit. A HintSet is not safe for concurrent use.
type HintSet struct {
	base   *ClassHints
	staged map[string]Hint
	order  []string
}

func (s *HintSet) current(name string) Hint {
	if h, ok := s.staged[name]; ok {
		return h
	}
	return s.base.Lookup(name)
}

func (s *HintSet) set(name string, hint Hint) {
	if _, ok := s.staged[name]; !ok {
		s.order = append(s.order, name)
	}
	s.staged[name] = hint
}

// Record stages hint for name under the rules of ClassHints.Record.
func (s *HintSet) Record(name string, hint Hint) error {
	next, err := merge(name, s.current(name), hint)
	if err != nil {
		return err
	}
	if next != NoHint {
		s.set(name, next)
	}
	return nil
}

// RecordWeak stages a weak hint unless a strong one is visible.
func (s *HintSet) RecordWeak(name string, hint Hint) error {
	if s.current(name).Strong() {
		return nil
	}
	return s.Record(name, hint)
}

func (s *HintSet) Lookup(name string) Hint { return s.current(name) }

func (s *HintSet) IsClass(name string) (isClass, known bool) {
	h := s.current(name)
	return h.Class(), h != NoHint
}

// Staged returns the names recorded in this set, in recording order.
func (s *HintSet) Staged() []string { return s.order }
