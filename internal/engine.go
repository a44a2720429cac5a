package internal

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/gnolang/cxxlink/codematch"
	"github.com/gnolang/cxxlink/internal/extract"
	"github.com/gnolang/cxxlink/internal/registry"
	"github.com/gnolang/cxxlink/internal/types"
	"github.com/gnolang/cxxlink/mangle"
)

// Options configures an Engine. The zero value mangles for the host
// platform with 64-bit pointers and shares the process-wide registries.
type Options struct {
	Scheme        mangle.Scheme
	PointerWidth  int
	Backend       codematch.Backend
	PreviewLength int
	// Registry defaults to registry.Default().
	Registry *registry.Context
	Logger   *zap.Logger
}

// Engine finds declaration blocks in source files and turns every
// declaration into a binding.
type Engine struct {
	reg       *registry.Context
	extractor *extract.Extractor
	scheme    mangle.Scheme
	width     int
	logger    *zap.Logger
}

// NewEngine creates a new engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Scheme == "" {
		opts.Scheme = mangle.HostScheme()
	}
	if _, err := mangle.New(opts.Scheme, opts.Registry.Hints, opts.PointerWidth); err != nil {
		return nil, err
	}

	return &Engine{
		reg: opts.Registry,
		extractor: extract.New(opts.Registry, extract.Options{
			Backend:       opts.Backend,
			PreviewLength: opts.PreviewLength,
			Logger:        opts.Logger,
		}),
		scheme: opts.Scheme,
		width:  opts.PointerWidth,
		logger: opts.Logger,
	}, nil
}

func (e *Engine) Registry() *registry.Context { return e.reg }

// Run processes every block of the given file.
func (e *Engine) Run(filename string) ([]types.Block, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return e.RunSource(filename, source)
}

// RunSource processes every block of source. A failing block is reported
// as a types.Diagnostic and does not stop the blocks after it; the returned
// error joins the diagnostics of all failed blocks.
func (e *Engine) RunSource(filename string, source []byte) ([]types.Block, error) {
	nodes, err := codematch.ParseTree(string(source))
	if err != nil {
		return nil, diagnostic(filename, source, 0, err)
	}

	var (
		blocks []types.Block
		errs   []error
	)
	for _, b := range FindBlocks(nodes) {
		block, err := e.ProcessBlock(b)
		if err != nil {
			pos := b[0].Pos
			var located *extract.Error
			if errors.As(err, &located) {
				pos = located.Pos
			}
			errs = append(errs, diagnostic(filename, source, pos, err))
			continue
		}
		block.Filename = filename
		blocks = append(blocks, *block)
	}

	e.logger.Debug("processed source",
		zap.String("filename", filename),
		zap.Int("blocks", len(blocks)),
		zap.Int("failed", len(errs)),
	)
	return blocks, errors.Join(errs...)
}

// FindBlocks returns every extern block in nodes, descending into groups.
// A block is the extern keyword followed by a "C" or "C++" literal and a
// braced body; extern functions and extern crate items are skipped.
func FindBlocks(nodes []codematch.Node) [][]codematch.Node {
	var out [][]codematch.Node
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		if n.Kind == codematch.NodeGroup {
			out = append(out, FindBlocks(n.Children)...)
			continue
		}
		if n.Kind != codematch.NodeIdent || n.Text != "extern" || i+2 >= len(nodes) {
			continue
		}
		lit, body := nodes[i+1], nodes[i+2]
		if lit.Kind != codematch.NodeLiteral || (lit.Text != `"C"` && lit.Text != `"C++"`) {
			continue
		}
		if body.Kind != codematch.NodeGroup || body.Delim != codematch.DelimBrace {
			continue
		}
		out = append(out, nodes[i:i+3])
		i += 2
	}
	return out
}

// ProcessBlock extracts the declarations of one block, then mangles them
// and collects the destructor glue their return types need. Mangling
// starts once the whole block is extracted so that hints recorded by later
// declarations apply to earlier ones. The hints and strategies of the block
// reach the shared registry only when every declaration succeeded.
func (e *Engine) ProcessBlock(nodes []codematch.Node) (*types.Block, error) {
	decls, err := e.extractor.Stage(nodes)
	if err != nil {
		return nil, err
	}
	m, err := mangle.New(e.scheme, decls.Hints, e.width)
	if err != nil {
		return nil, err
	}

	block := &types.Block{Linkage: decls.Linkage, Bindings: []types.Binding{}}
	if len(nodes) > 0 {
		block.Pos = nodes[0].Pos
	}
	isCpp := decls.Linkage == types.LinkageCpp

	var (
		reqs    []registry.Requirement
		owners  []*types.FunctionDescriptor
		symbols []map[types.GlueKind]string
	)
	for i := range decls.Functions {
		fn := &decls.Functions[i]
		name, err := mangle.LinkName(m, fn, isCpp)
		if err != nil {
			return nil, functionError(fn, err)
		}
		block.Bindings = append(block.Bindings, types.Binding{Function: *fn, LinkName: name})

		if !extract.NeedsGlue(fn) {
			continue
		}
		owned := extract.OwnedType(fn.Return)
		syms, err := glueSymbols(m, owned, fn.Return.Wrap)
		if err != nil {
			return nil, functionError(fn, err)
		}
		reqs = append(reqs, registry.Requirement{Type: owned, Wrap: fn.Return.Wrap})
		owners = append(owners, fn)
		symbols = append(symbols, syms)
	}

	glue, err := e.reg.Commit(decls.Hints, reqs)
	if err != nil {
		var rerr *registry.RequirementError
		if errors.As(err, &rerr) {
			return nil, functionError(owners[rerr.Index], rerr.Err)
		}
		return nil, &extract.Error{Pos: block.Pos, Err: err}
	}
	for i, kinds := range glue {
		for _, k := range kinds {
			block.Glue = append(block.Glue, types.GlueNotice{Type: reqs[i].Type, Kind: k, Symbol: symbols[i][k]})
		}
	}
	return block, nil
}

func functionError(fn *types.FunctionDescriptor, err error) error {
	return &extract.Error{Pos: fn.Pos, Err: fmt.Errorf("function %s: %w", fn.Name, err)}
}

// glueSymbols mangles the destructor symbols a returned type may need, so
// that no mangling can fail after the block is committed.
func glueSymbols(m mangle.Mangler, owned string, wrap types.WrapKind) (map[types.GlueKind]string, error) {
	kind, err := registry.KindOf(wrap)
	if err != nil || kind != registry.Managed {
		// KindOf errors again, located, at commit
		return nil, nil
	}
	syms := make(map[types.GlueKind]string, 1)
	if wrap == types.WrapShared {
		syms[types.GlueSharedDestructor], err = mangle.SharedDestructorSymbol(m, owned)
	} else {
		syms[types.GlueDestructor], err = mangle.DestructorSymbol(m, owned)
	}
	if err != nil {
		return nil, err
	}
	return syms, nil
}

func diagnostic(filename string, source []byte, offset int, err error) types.Diagnostic {
	line, col := Position(source, offset)
	return types.Diagnostic{
		Filename: filename,
		Line:     line,
		Column:   col,
		Offset:   offset,
		Message:  err.Error(),
		Err:      err,
	}
}

// Diagnostics flattens an error returned by RunSource.
func Diagnostics(err error) []types.Diagnostic {
	if err == nil {
		return nil
	}
	var out []types.Diagnostic
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, Diagnostics(e)...)
		}
		return out
	}
	var d types.Diagnostic
	if errors.As(err, &d) {
		return []types.Diagnostic{d}
	}
	return nil
}
