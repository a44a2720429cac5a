// Package registry holds the state shared by every declaration block of a
// process: class/struct hints for the Microsoft mangler and the destructor
// strategy of returned types.
package registry

import (
	"sync"

	"github.com/gnolang/cxxlink/internal/types"
)

// Context bundles both registries. Blocks processed concurrently share one
// Context; tests create their own to stay isolated.
type Context struct {
	Hints      *ClassHints
	Strategies *Strategies
}

func New() *Context {
	return &Context{
		Hints:      NewClassHints(),
		Strategies: NewStrategies(),
	}
}

var (
	defaultOnce sync.Once
	defaultCtx  *Context
)

// Default returns the process-wide Context, creating it on first use.
func Default() *Context {
	defaultOnce.Do(func() {
		defaultCtx = New()
	})
	return defaultCtx
}

// Requirement is one returned type and the wrapper it is returned in.
type Requirement struct {
	Type string
	Wrap types.WrapKind
}

// RequirementError locates the requirement Commit rejected.
type RequirementError struct {
	Index int
	Err   error
}

func (e *RequirementError) Error() string { return e.Err.Error() }

func (e *RequirementError) Unwrap() error { return e.Err }

// Commit publishes the hints staged in hints and applies reqs in order, in
// one critical section. Either everything is written or, on error, nothing
// is. The returned slice holds the glue each requirement newly needs.
func (c *Context) Commit(hints *HintSet, reqs []Requirement) ([][]types.GlueKind, error) {
	c.Hints.mu.Lock()
	defer c.Hints.mu.Unlock()
	c.Strategies.mu.Lock()
	defer c.Strategies.mu.Unlock()

	nextHints := make(map[string]Hint)
	if hints != nil {
		for _, name := range hints.order {
			old, staged := c.Hints.hints[name], hints.staged[name]
			if old.Strong() && !staged.Strong() {
				// weak hints yield to a strong one committed meanwhile
				continue
			}
			h, err := merge(name, old, staged)
			if err != nil {
				return nil, err
			}
			nextHints[name] = h
		}
	}

	nextTypes := make(map[string]Strategy)
	glue := make([][]types.GlueKind, len(reqs))
	for i, r := range reqs {
		kind, err := KindOf(r.Wrap)
		if err != nil {
			return nil, &RequirementError{Index: i, Err: err}
		}
		st, ok := nextTypes[r.Type]
		if !ok {
			st, ok = c.Strategies.types[r.Type]
		}
		st, glue[i], err = require(r.Type, st, ok, kind, r.Wrap)
		if err != nil {
			return nil, &RequirementError{Index: i, Err: err}
		}
		nextTypes[r.Type] = st
	}

	for name, h := range nextHints {
		c.Hints.hints[name] = h
	}
	for name, st := range nextTypes {
		c.Strategies.types[name] = st
	}
	return glue, nil
}
