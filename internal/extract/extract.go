// Package extract turns declaration blocks into function descriptors.
//
// A block is matched in three nested states: the block header, one entry
// per declaration inside the body, and one argument at a time inside each
// argument list. The body is encoded opaquely so that the declaration
// pattern sees every bracketed group as a single unit. Argument lists and
// attributes are re-encoded inline from the group side table.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/cxxlink/codematch"
	"github.com/gnolang/cxxlink/internal/registry"
	"github.com/gnolang/cxxlink/internal/types"
)

const DefaultPreviewLength = 10

const (
	headerRule = "extern `( \"C\" `| \"C++\" `) {} `(`\\d+`)"

	// captures: access, async, name, argument group, return type
	declarationRule = "`(?: # [] `\\d+ `)* " +
		"`( pub `(?: () `\\d+ `)? `)? `( async `)? fn `(`iden`) () `(`\\d+`) " +
		"`(?: - > `(?: `iden : : `)* `( `iden `| `iden < `iden > `) `)? ;"
)

type Options struct {
	Backend codematch.Backend
	// PreviewLength bounds the decoded text quoted by mismatch errors.
	PreviewLength int
	Logger        *zap.Logger
}

// Extractor parses declaration blocks. It is safe for concurrent use: every
// call to Extract works on its own encoding session, only the registries
// are shared.
type Extractor struct {
	reg  *registry.Context
	opts Options
}

func New(reg *registry.Context, opts Options) *Extractor {
	if reg == nil {
		reg = registry.Default()
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultPreviewLength
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Extractor{reg: reg, opts: opts}
}

// Declarations is the content of one block.
type Declarations struct {
	Linkage   types.Linkage
	Functions []types.FunctionDescriptor
	// Hints holds the class hints recorded while extracting the block.
	Hints *registry.HintSet
}

// Error locates an extraction failure. Pos is the byte offset of the
// declaration being parsed, or of the block when the header is malformed.
type Error struct {
	Pos int
	Err error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// state is the per-block parse state.
type state struct {
	*Extractor
	s           *codematch.Session
	declaration *codematch.Pattern
	arguments   []*codematch.Pattern
	attrs       *attributeRules
	hints       *registry.HintSet
	body        []codematch.Node
}

// ExtractSource parses src as a single block.
func (e *Extractor) ExtractSource(src string) (*Declarations, error) {
	nodes, err := codematch.ParseTree(src)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return e.Extract(nodes)
}

// Extract parses the block made of nodes: the extern keyword, the linkage
// literal and the braced body. Any failure aborts the whole block and
// records no hints; on success the block's hints are committed.
func (e *Extractor) Extract(nodes []codematch.Node) (*Declarations, error) {
	decls, err := e.Stage(nodes)
	if err != nil {
		return nil, err
	}
	if _, err := e.reg.Commit(decls.Hints, nil); err != nil {
		return nil, &Error{Pos: blockStart(nodes), Err: err}
	}
	return decls, nil
}

// Stage parses a block like Extract but leaves its hints staged in the
// returned Declarations for the caller to commit.
func (e *Extractor) Stage(nodes []codematch.Node) (*Declarations, error) {
	st := &state{
		Extractor: e,
		s:         codematch.NewSession(e.opts.Logger),
		hints:     e.reg.Hints.Stage(),
	}
	blockPos := blockStart(nodes)

	enc, err := st.s.Encode(nodes, false)
	if err != nil {
		return nil, &Error{Pos: blockPos, Err: err}
	}
	header, err := st.s.Compile(headerRule, false)
	if err != nil {
		return nil, &Error{Pos: blockPos, Err: err}
	}
	buf := st.s.NewBuffer(enc, e.opts.Backend)
	m, ok, err := buf.TryMatch(header)
	if err != nil {
		return nil, &Error{Pos: blockPos, Err: err}
	}
	if !ok || !buf.Empty() {
		return nil, &Error{Pos: blockPos, Err: types.ErrNoDeclarationBody}
	}

	decls := &Declarations{Linkage: types.LinkageC, Hints: st.hints}
	if m.Text(1) == `"C++"` {
		decls.Linkage = types.LinkageCpp
	}

	if err := st.compile(); err != nil {
		return nil, &Error{Pos: blockPos, Err: err}
	}
	st.body, err = st.s.GroupNodes(m.Text(2))
	if err != nil {
		return nil, &Error{Pos: blockPos, Err: err}
	}
	body, err := st.s.Encode(st.body, false)
	if err != nil {
		return nil, &Error{Pos: blockPos, Err: err}
	}

	buf = st.s.NewBuffer(body, e.opts.Backend)
	consumed := 0
	for !buf.Empty() {
		pos := st.offset(consumed, blockPos)
		m, ok, err := buf.TryMatch(st.declaration)
		if err != nil {
			return nil, &Error{Pos: pos, Err: err}
		}
		if !ok {
			return nil, &Error{Pos: pos, Err: &types.MismatchError{
				Function: len(decls.Functions) + 1,
				Preview:  buf.Preview(e.opts.PreviewLength),
			}}
		}
		consumed += len(m.Consumed)

		fn, err := st.function(m)
		if err != nil {
			return nil, &Error{Pos: pos, Err: err}
		}
		fn.Pos = pos
		e.opts.Logger.Debug("extracted declaration",
			zap.String("name", fn.Name),
			zap.String("signature", fn.Signature()),
		)
		decls.Functions = append(decls.Functions, *fn)
	}
	return decls, nil
}

func (st *state) compile() error {
	var err error
	if st.declaration, err = st.s.Compile(declarationRule, false); err != nil {
		return err
	}
	st.arguments = make([]*codematch.Pattern, len(argumentRules))
	for i, rule := range argumentRules {
		if st.arguments[i], err = st.s.Compile(rule, true); err != nil {
			return err
		}
	}
	st.attrs, err = compileAttributeRules(st.s)
	return err
}

// offset maps a count of consumed body units back to a source position.
// Opaque encoding writes two units per group and one per other node.
func (st *state) offset(units, fallback int) int {
	for _, n := range st.body {
		if units <= 0 {
			return n.Pos
		}
		units--
		if n.Kind == codematch.NodeGroup {
			units--
		}
	}
	return fallback
}

// function builds the descriptor of one matched declaration.
func (st *state) function(m codematch.Match) (*types.FunctionDescriptor, error) {
	fn := &types.FunctionDescriptor{
		Access: strings.ReplaceAll(m.Text(1), " ", ""),
		Async:  m.Text(2) != "",
		Name:   m.Text(3),
	}

	if err := st.applyAttributes(fn, attributeGroups(m.Consumed)); err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Name, err)
	}

	ret := m.Group(5).Units
	switch len(ret) {
	case 0:
	case 1:
		fn.Return.Type = ret[0].Text
	case 4:
		fn.Return.WrapName = ret[0].Text
		fn.Return.Wrap = types.ParseWrap(ret[0].Text)
		fn.Return.Type = ret[2].Text
	}
	fn.Return.Raw = st.s.Decode(ret)
	fn.Return.Full = fn.Return.Raw
	if err := checkReturn(fn); err != nil {
		return nil, err
	}
	if err := describe(&fn.Return, st.hints); err != nil {
		return nil, fmt.Errorf("function %s: return type: %w", fn.Name, err)
	}

	args, err := st.parseArguments(m.Text(4))
	if err != nil {
		return nil, fmt.Errorf("function %s error: %w", fn.Name, err)
	}
	fn.Args = args
	return fn, nil
}

// parseArguments runs the argument loop over the argument group stored under
// index.
func (st *state) parseArguments(index string) ([]types.ArgumentDescriptor, error) {
	enc, err := st.s.Group(index, true)
	if err != nil {
		return nil, err
	}
	buf := st.s.NewBuffer(enc, st.opts.Backend)

	args := []types.ArgumentDescriptor{}
	for !buf.Empty() {
		shape, m, ok, err := buf.TryMatchAny(st.arguments)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: argument %d: %s", types.ErrUnsupportedShape,
				len(args)+1, buf.Preview(st.opts.PreviewLength))
		}

		a := types.ArgumentDescriptor{
			Raw:  strings.TrimSuffix(st.s.Decode(m.Consumed), ","),
			Name: m.Text(1),
		}
		switch shape {
		case shapePlain:
			a.Type = m.Text(4)
			a.Const = m.Text(3) == ""
			if m.Text(2) != "" {
				a.Full = "&"
				if !a.Const {
					a.Full += "mut "
				}
			}
			a.Full += a.Type
		case shapeCPtr:
			a.Type = m.Text(2)
			a.Wrap, a.WrapName = types.WrapCPtr, "CPtr"
			a.Full = "CPtr<" + a.Type + ">"
		case shapeOption:
			a.Type = m.Text(3)
			a.Const = m.Text(2) == ""
			a.Wrap, a.WrapName = types.WrapOption, "Option"
			a.Full = "Option<&" + sel(a.Const, "", "mut ") + a.Type + ">"
		case shapeWrapped:
			a.Type = m.Text(4)
			a.Const = m.Text(2) == ""
			a.WrapName = m.Text(3)
			a.Wrap = types.ParseWrap(a.WrapName)
			a.Full = "&" + sel(a.Const, "", "mut ") + a.WrapName + "<" + a.Type + ">"
		case shapeBytes:
			a.Type = m.Text(2)
			a.Const = true
			a.Full = "&" + a.Type
		}

		if err := describe(&a, st.hints); err != nil {
			return nil, fmt.Errorf("argument %d: %w", len(args)+1, err)
		}
		args = append(args, a)
	}
	return args, nil
}

// attributeGroups returns the side table indexes of the #[...] groups at
// the start of a matched declaration.
func attributeGroups(units []codematch.Unit) []string {
	var out []string
	for i := 0; i+2 < len(units); i += 3 {
		if units[i].Text != "#" || units[i+1].Category != codematch.CategoryGroup || units[i+2].Category != codematch.CategoryIndex {
			break
		}
		out = append(out, units[i+2].Text)
	}
	return out
}

func blockStart(nodes []codematch.Node) int {
	if len(nodes) > 0 {
		return nodes[0].Pos
	}
	return 0
}

func sel(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

// IsMismatch reports whether err is a grammar mismatch and returns it.
func IsMismatch(err error) (*types.MismatchError, bool) {
	var me *types.MismatchError
	ok := errors.As(err, &me)
	return me, ok
}
