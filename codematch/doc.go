/*
Package codematch matches declaration-shaped syntax over token trees.

# Overview

Source text is first split into a token tree (identifiers, numbers,
literals, punctuation and nested groups). The tree is then flattened into a
sequence of units by the Encoder. Every distinct unit is interned into a
single character drawn from a category specific range, so the flattened
sequence can also be viewed as a plain string.

Patterns are written in a small notation and compiled against the same
Session that encoded the buffer, which guarantees that a keyword written in
a pattern is represented exactly like the keyword in the buffer.

# Categories

	Keyword      fixed DSL keyword set        _A-Za-z, U+0100..U+017E
	Identifier   any other identifier         U+3400..U+4DBE
	Number       numeric literals             U+2801..U+28FE
	Literal      string and char literals     U+AC00..U+D7AF
	Punctuation  single punctuation chars     U+2900..U+297F
	Group        opaque group delimiters      U+1F600..U+1F64F

# Pattern Notation

Plain words, literals and punctuation in a pattern match the unit with the
same text. A backtick starts a raw fragment which runs until whitespace or
the next backtick:

	`iden        any identifier
	`(  `(?:     capturing and non-capturing groups
	`)  `|       group close and alternation
	`?  `*  `+   quantifiers, a trailing ? makes them lazy
	`.           any single unit
	`\d+         the side table index that follows an opaque group
	`$           end of buffer
	`r<regex>    verbatim regular expression (regex backend only)
	``           a literal backtick

Example:

	`( pub `)? fn `(`iden`) () `(`\d+`) ;

# Inline and Opaque Modes

In inline mode nested groups are encoded with explicit delimiter units and
matched structurally. In opaque mode a nested group is represented by one
group unit followed by an index unit that points into the Session side
table; patterns then only name the outermost delimiter and the matcher does
not descend. Session.Group re-enters the Encoder on the referenced sub-tree.

# Backends

Buffers are matched either by the structural backend, a backtracking matcher
that walks the unit slice directly, or by the regex backend which runs the
compiled regular expression over the encoded string. Both consume the matched
prefix and return the same captures.
*/
package codematch
