package types

import (
	"errors"
	"fmt"
)

var (
	ErrGrammarMismatch   = errors.New("grammar mismatch")
	ErrUnsupportedShape  = errors.New("unsupported shape")
	ErrHintConflict      = errors.New("class hint conflict")
	ErrStrategyConflict  = errors.New("type strategy conflict")
	ErrNoDeclarationBody = errors.New("expected extern \"C\" {...}")
)

// MismatchError reports input that no rule of the current parse state
// accepts. Function is the 1-based index of the declaration being parsed.
type MismatchError struct {
	Function int
	Preview  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected pub fn name(ARGLIST) -> ret_type; found mismatch at function %d near %s",
		e.Function, e.Preview)
}

func (e *MismatchError) Unwrap() error { return ErrGrammarMismatch }
