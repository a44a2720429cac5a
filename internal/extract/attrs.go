package extract

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gnolang/cxxlink/codematch"
	"github.com/gnolang/cxxlink/internal/registry"
	"github.com/gnolang/cxxlink/internal/types"
)

const (
	attrNamespace = iota
	attrMemberOf
	attrHint
	attrBareHint
	attrConst
	attrOther
)

var attributeNotations = [...]string{
	attrNamespace: "namespace ( `( `.+? `) )" + argEnd,
	attrMemberOf:  "member_of ( `(`iden`) )" + argEnd,
	attrHint:      "`( class `| struct `) ( `(`iden`) )" + argEnd,
	attrBareHint:  "`( class `| struct `) `(`iden`)" + argEnd,
	attrConst:     "const" + argEnd,
	attrOther:     "`.+?" + argEnd,
}

type attributeRules struct {
	patterns []*codematch.Pattern
}

func compileAttributeRules(s *codematch.Session) (*attributeRules, error) {
	r := &attributeRules{patterns: make([]*codematch.Pattern, len(attributeNotations))}
	for i, n := range attributeNotations {
		p, err := s.Compile(n, true)
		if err != nil {
			return nil, err
		}
		r.patterns[i] = p
	}
	return r, nil
}

// applyAttributes reads the #[...] groups of a declaration. namespace(a::b)
// prefixes the function name, member_of(T) makes it a member of T, and
// class/struct entries record strong hints. Unknown entries are ignored.
func (st *state) applyAttributes(fn *types.FunctionDescriptor, groups []string) error {
	var ns string
	for _, index := range groups {
		nodes, err := st.s.GroupNodes(index)
		if err != nil {
			return err
		}
		if err := st.scanHints(nodes); err != nil {
			return err
		}

		enc, err := st.s.Group(index, true)
		if err != nil {
			return err
		}
		buf := st.s.NewBuffer(enc, st.opts.Backend)
		for !buf.Empty() {
			kind, m, ok, err := buf.TryMatchAny(st.attrs.patterns)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: attribute %s", types.ErrUnsupportedShape, buf.Preview(st.opts.PreviewLength))
			}

			switch kind {
			case attrNamespace:
				ns = m.Text(1)
			case attrMemberOf:
				fn.Owner = m.Text(1)
				if err := st.hints.Record(fn.Owner, registry.StrongClass); err != nil {
					return err
				}
			case attrHint, attrBareHint:
				// recorded by scanHints
			case attrConst:
				fn.Const = true
			default:
				st.opts.Logger.Debug("ignoring attribute", zap.String("attribute", st.s.Decode(m.Consumed)))
			}
		}
	}

	if fn.Const && fn.Owner == "" {
		return fmt.Errorf("%w: const requires member_of", types.ErrUnsupportedShape)
	}
	if ns != "" {
		fn.Name = ns + "::" + fn.Name
	}
	return nil
}

// scanHints records a strong hint for every "class X", "struct X",
// "class(X)" and "struct(X)" in nodes, at any nesting depth, so that
// entries the attribute rules do not know still contribute hints.
func (st *state) scanHints(nodes []codematch.Node) error {
	for i, n := range nodes {
		if n.Kind == codematch.NodeGroup {
			if err := st.scanHints(n.Children); err != nil {
				return err
			}
			continue
		}
		if n.Kind != codematch.NodeIdent || (n.Text != "class" && n.Text != "struct") || i+1 >= len(nodes) {
			continue
		}
		name := hintTarget(nodes[i+1])
		if name == "" {
			continue
		}
		hint := registry.StrongStruct
		if n.Text == "class" {
			hint = registry.StrongClass
		}
		if err := st.hints.Record(name, hint); err != nil {
			return err
		}
	}
	return nil
}

func hintTarget(n codematch.Node) string {
	switch {
	case n.Kind == codematch.NodeIdent:
		return n.Text
	case n.Kind == codematch.NodeGroup && n.Delim == codematch.DelimParen &&
		len(n.Children) == 1 && n.Children[0].Kind == codematch.NodeIdent:
		return n.Children[0].Text
	}
	return ""
}
