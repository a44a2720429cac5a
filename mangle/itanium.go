package mangle

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gnolang/cxxlink/ctype"
	"github.com/gnolang/cxxlink/internal/types"
)

// Itanium implements the Itanium C++ ABI scheme.
type Itanium struct {
	width int
}

func NewItanium(width int) *Itanium {
	if width == 0 {
		width = 64
	}
	return &Itanium{width: width}
}

func (m *Itanium) builtin(name string) (string, bool) {
	wide := m.width == 64
	switch name {
	case "void", "()":
		return "v", true
	case "bool":
		return "b", true
	case "char":
		return "c", true
	case "signed char", "int8_t", "i8":
		return "a", true
	case "unsigned char", "uint8_t", "u8":
		return "h", true
	case "short", "int16_t", "i16":
		return "s", true
	case "unsigned short", "uint16_t", "u16":
		return "t", true
	case "int", "signed int", "int32_t", "i32":
		return "i", true
	case "unsigned", "unsigned int", "uint32_t", "u32":
		return "j", true
	case "long":
		return "l", true
	case "unsigned long":
		return "m", true
	case "long long", "signed long long":
		return "x", true
	case "unsigned long long":
		return "y", true
	case "int64_t", "i64", "isize", "ssize_t":
		return sel(wide, "l", "x"), true
	case "uint64_t", "u64":
		return sel(wide, "m", "y"), true
	case "size_t", "usize":
		return sel(wide, "m", "j"), true
	case "float", "f32":
		return "f", true
	case "double", "f64":
		return "d", true
	case "long double":
		return "e", true
	}
	return "", false
}

// itaniumState is the per-symbol substitution table. Candidates are keyed
// by their uncompressed encoding.
type itaniumState struct {
	m     *Itanium
	sb    strings.Builder
	subs  map[string]int
	count int
}

func (m *Itanium) Mangle(fn *types.FunctionDescriptor) (string, error) {
	args, err := argumentTypes(fn)
	if err != nil {
		return "", err
	}
	targs, err := templateTypes(fn)
	if err != nil {
		return "", err
	}

	st := &itaniumState{m: m, subs: make(map[string]int)}
	st.sb.WriteString("_Z")
	if err := st.name(fn.Qualified(), targs, fn.Const); err != nil {
		return "", err
	}

	// only template functions carry their return type
	if len(targs) > 0 {
		ret, err := parseType(fn.Return.Native)
		if err != nil {
			return "", err
		}
		st.typ(ret)
	}

	if len(args) == 0 {
		st.sb.WriteByte('v')
	}
	for _, a := range args {
		st.typ(a)
	}
	return st.sb.String(), nil
}

// name writes the function name: a plain source name, St<name> for a
// two-component std name, or a nested N...E name whose prefixes are
// substitution candidates.
func (st *itaniumState) name(parts []string, targs []*ctype.Type, isConst bool) error {
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return errors.New("empty function name")
	}

	nested := len(parts) > 2 || (len(parts) == 2 && parts[0] != "std") || (len(parts) > 1 && isConst)
	var orig, repl string
	switch {
	case !nested && len(parts) == 1:
		orig = sourceName(parts[0])
		repl = orig
	case !nested:
		orig = "St" + sourceName(parts[1])
		repl = orig
	default:
		st.sb.WriteByte('N')
		if isConst {
			st.sb.WriteByte('K')
		}
		orig, repl = st.prefix(parts[:len(parts)-1])
		orig += sourceName(parts[len(parts)-1])
		repl += sourceName(parts[len(parts)-1])
	}

	if len(targs) > 0 {
		// the template name is a candidate, the bare function name is not
		_, repl = st.candidate(orig, repl)
		st.sb.WriteString(repl)
		st.sb.WriteByte('I')
		for _, t := range targs {
			st.typ(t)
		}
		st.sb.WriteByte('E')
	} else {
		st.sb.WriteString(repl)
	}
	if nested {
		st.sb.WriteByte('E')
	}
	return nil
}

// typ writes t. Top-level cv-qualifiers are dropped.
func (st *itaniumState) typ(t *ctype.Type) {
	_, repl := st.encode(t.Unqualified())
	st.sb.WriteString(repl)
}

// encode returns the uncompressed and the compressed encoding of t,
// registering every compound component on the way. Builtin codes are never
// candidates, a cv-qualified builtin is.
func (st *itaniumState) encode(t *ctype.Type) (orig, repl string) {
	switch t.Kind {
	case ctype.Pointer, ctype.Reference:
		code := sel(t.Kind == ctype.Pointer, "P", "R")
		o, r := st.encode(t.Elem)
		orig, repl = st.candidate(code+o, code+r)
	default:
		orig, repl = st.named(t)
	}
	if t.Const {
		orig, repl = st.candidate("K"+orig, "K"+repl)
	}
	return orig, repl
}

func (st *itaniumState) named(t *ctype.Type) (orig, repl string) {
	if len(t.Args) == 0 && len(t.Name) == 1 {
		if code, ok := st.m.builtin(t.Name[0]); ok {
			return code, code
		}
	}

	nested := len(t.Name) > 2 || (len(t.Name) == 2 && t.Name[0] != "std")
	base := sourceName(t.Name[len(t.Name)-1])
	switch {
	case len(t.Name) == 1:
		orig, repl = base, base
	case !nested:
		orig, repl = "St"+base, "St"+base
	default:
		orig, repl = st.prefix(t.Name[:len(t.Name)-1])
		orig += base
		repl += base
	}

	if len(t.Args) > 0 {
		orig, repl = st.candidate(orig, repl)
		var ao, ar strings.Builder
		for _, a := range t.Args {
			o, r := st.encode(a)
			ao.WriteString(o)
			ar.WriteString(r)
		}
		orig += "I" + ao.String() + "E"
		repl += "I" + ar.String() + "E"
	}

	if nested {
		// a substituted nested name drops its N...E
		if idx, ok := st.subs[orig]; ok {
			return "N" + orig + "E", substitution(idx)
		}
		orig, repl = st.candidate(orig, repl)
		return "N" + orig + "E", "N" + repl + "E"
	}
	return st.candidate(orig, repl)
}

// prefix encodes the scope components of a nested name, each growing prefix
// being a candidate. A leading std is written St and is not a candidate by
// itself.
func (st *itaniumState) prefix(parts []string) (orig, repl string) {
	for i, p := range parts {
		if i == 0 && p == "std" {
			orig, repl = "St", "St"
			continue
		}
		orig, repl = st.candidate(orig+sourceName(p), repl+sourceName(p))
	}
	return orig, repl
}

// candidate returns a back reference when orig was seen before and
// registers it otherwise.
func (st *itaniumState) candidate(orig, repl string) (string, string) {
	if idx, ok := st.subs[orig]; ok {
		return orig, substitution(idx)
	}
	st.subs[orig] = st.count
	st.count++
	return orig, repl
}

func sourceName(s string) string { return strconv.Itoa(len(s)) + s }

// substitution formats the reference to the idx-th candidate: S_ for the
// first, then S0_, S1_ ... in base 36.
func substitution(idx int) string {
	if idx == 0 {
		return "S_"
	}
	return "S" + strings.ToUpper(strconv.FormatInt(int64(idx-1), 36)) + "_"
}

func sel(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
