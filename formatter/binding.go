package formatter

import (
	"fmt"
	"strings"

	"github.com/gnolang/cxxlink/internal/types"
)

// FormatBlocks renders the bindings and glue notices of blocks as text.
//
//	lib.rs: extern "C++" (2 functions)
//	  pub fn cpp_ptr(xx: i32) -> SharedPtr<CppStruct>
//	    = _Z7cpp_ptri
//	  glue: shared-destructor CppStruct _ZN3ffi11man_dtor_spI9CppStructEEvPv
func FormatBlocks(blocks []types.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		name := b.Filename
		if name == "" {
			name = "<source>"
		}
		count := fmt.Sprintf("%d functions", len(b.Bindings))
		if len(b.Bindings) == 1 {
			count = "1 function"
		}
		sb.WriteString(fileStyle.Sprint(name))
		sb.WriteString(fmt.Sprintf(": extern %q (%s)\n", string(b.Linkage), count))

		for _, binding := range b.Bindings {
			fn := binding.Function
			sb.WriteString("  ")
			sb.WriteString(qualifier(&fn))
			sb.WriteString(fn.Signature())
			sb.WriteByte('\n')
			sb.WriteString(lineStyle.Sprint("    = "))
			sb.WriteString(linkStyle.Sprint(binding.LinkName))
			sb.WriteByte('\n')
		}
		for _, g := range b.Glue {
			sb.WriteString(glueStyle.Sprint("  glue: "))
			sb.WriteString(g.Kind.String())
			sb.WriteByte(' ')
			sb.WriteString(g.Type)
			if g.Symbol != "" {
				sb.WriteByte(' ')
				sb.WriteString(linkStyle.Sprint(g.Symbol))
			}
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// qualifier renders the scope of fn, e.g. "[ns::Owner const] ".
func qualifier(fn *types.FunctionDescriptor) string {
	parts := fn.Qualified()
	scope := strings.Join(parts[:len(parts)-1], "::")
	if fn.Const {
		scope = strings.TrimSpace(scope + " const")
	}
	if scope == "" {
		return ""
	}
	return "[" + scope + "] "
}
