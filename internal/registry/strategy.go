package registry

import (
	"fmt"
	"sync"

	"github.com/gnolang/cxxlink/internal/types"
)

// StrategyKind is how values of a returned type are moved and destroyed.
type StrategyKind int

const (
	// NoGlue types are plain values copied out without destruction.
	NoGlue StrategyKind = iota
	// Managed types move trivially but need a native destructor.
	Managed
)

func (k StrategyKind) String() string {
	if k == NoGlue {
		return "plain value"
	}
	return "managed"
}

// Strategy is the recorded state of one type. The emitted flags only apply
// to Managed types.
type Strategy struct {
	Kind              StrategyKind
	DestructorEmitted bool
	UniqueEmitted     bool
	SharedEmitted     bool
}

// Strategies maps type names to their strategy. Safe for concurrent use.
type Strategies struct {
	mu    sync.Mutex
	types map[string]Strategy
}

func NewStrategies() *Strategies {
	return &Strategies{types: make(map[string]Strategy)}
}

// KindOf returns the strategy kind a return wrapper implies.
func KindOf(wrap types.WrapKind) (StrategyKind, error) {
	switch wrap {
	case types.WrapPOD:
		return NoGlue, nil
	case types.WrapNone, types.WrapShared, types.WrapUnique, types.WrapVec:
		return Managed, nil
	}
	return 0, fmt.Errorf("%w: %s return values have no strategy", types.ErrUnsupportedShape, wrap)
}

// Require records that a function returns name wrapped in wrap and returns
// the glue that was not emitted before. The strategy of a type never
// changes once recorded.
func (s *Strategies) Require(name string, wrap types.WrapKind) ([]types.GlueKind, error) {
	kind, err := KindOf(wrap)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.types[name]
	st, need, err := require(name, old, ok, kind, wrap)
	if err != nil {
		return nil, err
	}
	s.types[name] = st
	return need, nil
}

// require applies one returned wrap to st. recorded is false when name has
// no strategy yet.
func require(name string, st Strategy, recorded bool, kind StrategyKind, wrap types.WrapKind) (Strategy, []types.GlueKind, error) {
	if recorded && st.Kind != kind {
		return st, nil, fmt.Errorf("%w: %s is a %s type, can not use it as %s",
			types.ErrStrategyConflict, name, st.Kind, kind)
	}
	st.Kind = kind

	var need []types.GlueKind
	if kind == Managed {
		if !st.DestructorEmitted && wrap != types.WrapShared {
			st.DestructorEmitted = true
			need = append(need, types.GlueDestructor)
		}
		if wrap == types.WrapUnique && !st.UniqueEmitted {
			st.UniqueEmitted = true
			need = append(need, types.GlueUniqueDestructor)
		}
		if wrap == types.WrapShared && !st.SharedEmitted {
			st.SharedEmitted = true
			need = append(need, types.GlueSharedDestructor)
		}
	}
	return st, need, nil
}

// Lookup returns the recorded strategy of name.
func (s *Strategies) Lookup(name string) (Strategy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.types[name]
	return st, ok
}
