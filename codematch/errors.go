package codematch

import "errors"

var (
	// ErrLex reports malformed source or pattern text, e.g. an unterminated quote.
	ErrLex = errors.New("lex error")
	// ErrGroupImbalance reports a closing delimiter without a matching open one,
	// or an open delimiter left unclosed at the end of input.
	ErrGroupImbalance = errors.New("group imbalance")
	// ErrEncodingExhausted is returned when an interner ran out of characters.
	ErrEncodingExhausted = errors.New("encoding range exhausted")
	// ErrPattern reports a pattern that can not be compiled for the requested backend.
	ErrPattern = errors.New("invalid pattern")
)
