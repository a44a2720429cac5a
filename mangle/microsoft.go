package mangle

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gnolang/cxxlink/ctype"
	"github.com/gnolang/cxxlink/internal/types"
)

// Microsoft implements the MSVC decoration scheme.
type Microsoft struct {
	hints HintResolver
	width int
}

func NewMicrosoft(hints HintResolver, width int) *Microsoft {
	if width == 0 {
		width = 64
	}
	return &Microsoft{hints: hints, width: width}
}

func (m *Microsoft) builtin(name string) (string, bool) {
	wide := m.width == 64
	switch name {
	case "void", "()":
		return "X", true
	case "bool":
		return "_N", true
	case "char":
		return "D", true
	case "signed char", "int8_t", "i8":
		return "C", true
	case "unsigned char", "uint8_t", "u8":
		return "E", true
	case "short", "int16_t", "i16":
		return "F", true
	case "unsigned short", "uint16_t", "u16":
		return "G", true
	case "int", "signed int", "int32_t", "i32":
		return "H", true
	case "unsigned", "unsigned int", "uint32_t", "u32":
		return "I", true
	case "long":
		return "J", true
	case "unsigned long":
		return "K", true
	case "long long", "signed long long", "int64_t", "i64":
		return "_J", true
	case "unsigned long long", "uint64_t", "u64":
		return "_K", true
	case "size_t", "usize":
		return sel(wide, "_K", "I"), true
	case "ssize_t", "isize":
		return sel(wide, "_J", "H"), true
	case "float", "f32":
		return "M", true
	case "double", "f64":
		return "N", true
	case "long double":
		return "O", true
	}
	return "", false
}

// wellKnown fixes the class flag of the wrapper types used in generated code.
var wellKnown = map[string]byte{
	"shared_ptr": 'V',
	"unique_ptr": 'V',
	"RustVec":    'U',
	"RustString": 'U',
}

// stdTemplates live in namespace std even when spelled unqualified.
var stdTemplates = map[string]bool{
	"shared_ptr": true,
	"unique_ptr": true,
}

// classFlag returns V for classes and U for structs. Recorded hints win,
// then the well-known wrapper types, then the naming convention: a leading
// "C" or a trailing "Class" means class.
func (m *Microsoft) classFlag(name string) byte {
	if m.hints != nil {
		if isClass, known := m.hints.IsClass(name); known {
			if isClass {
				return 'V'
			}
			return 'U'
		}
	}
	if f, ok := wellKnown[name]; ok {
		return f
	}
	if strings.HasPrefix(name, "C") || strings.HasSuffix(name, "Class") {
		return 'V'
	}
	return 'U'
}

func (m *Microsoft) Mangle(fn *types.FunctionDescriptor) (string, error) {
	args, err := argumentTypes(fn)
	if err != nil {
		return "", err
	}
	targs, err := templateTypes(fn)
	if err != nil {
		return "", err
	}
	ret, err := parseType(fn.Return.Native)
	if err != nil {
		return "", err
	}

	parts := fn.Qualified()
	if parts[len(parts)-1] == "" {
		return "", errors.New("empty function name")
	}

	var sb strings.Builder
	sb.WriteByte('?')

	// innermost name first, then the enclosing scopes
	base := parts[len(parts)-1]
	if len(targs) > 0 {
		sb.WriteString("?$")
		sb.WriteString(base)
		sb.WriteByte('@')
		for _, t := range targs {
			m.typ(&sb, t)
		}
		sb.WriteByte('@')
	} else {
		sb.WriteString(base)
		sb.WriteByte('@')
	}
	for i := len(parts) - 2; i >= 0; i-- {
		sb.WriteString(parts[i])
		sb.WriteByte('@')
	}
	sb.WriteByte('@')

	if fn.Owner != "" {
		// public member, this pointer cv
		sb.WriteByte('Q')
		if m.width == 64 {
			sb.WriteByte('E')
		}
		sb.WriteString(sel(fn.Const, "B", "A"))
	} else {
		sb.WriteByte('Y')
	}
	sb.WriteByte('A') // __cdecl

	if ret.Kind == ctype.Named && !m.isBuiltin(ret) {
		sb.WriteString(sel(ret.Const, "?B", "?A"))
	}
	m.typ(&sb, ret.Unqualified())

	if len(args) == 0 {
		sb.WriteByte('X')
	} else {
		// back-references to the first ten multi-character argument encodings
		var seen []string
		for _, a := range args {
			var enc strings.Builder
			m.typ(&enc, a.Unqualified())
			s := enc.String()
			if idx := indexOf(seen, s); idx >= 0 {
				sb.WriteString(strconv.Itoa(idx))
				continue
			}
			if len(s) > 1 && len(seen) < 10 {
				seen = append(seen, s)
			}
			sb.WriteString(s)
		}
		sb.WriteByte('@')
	}
	sb.WriteByte('Z')
	return sb.String(), nil
}

func (m *Microsoft) isBuiltin(t *ctype.Type) bool {
	if len(t.Args) != 0 || len(t.Name) != 1 {
		return false
	}
	_, ok := m.builtin(t.Name[0])
	return ok
}

func (m *Microsoft) typ(sb *strings.Builder, t *ctype.Type) {
	switch t.Kind {
	case ctype.Pointer, ctype.Reference:
		switch {
		case t.Kind == ctype.Reference:
			sb.WriteByte('A')
		case t.Const:
			sb.WriteByte('Q')
		default:
			sb.WriteByte('P')
		}
		if m.width == 64 {
			sb.WriteByte('E')
		}
		sb.WriteString(sel(t.Elem.Const, "B", "A"))
		m.typ(sb, t.Elem.Unqualified())
		return
	}

	if m.isBuiltin(t) {
		code, _ := m.builtin(t.Name[0])
		sb.WriteString(code)
		return
	}

	base := t.Base()
	sb.WriteByte(m.classFlag(base))
	if len(t.Args) > 0 {
		sb.WriteString("?$")
		sb.WriteString(base)
		sb.WriteByte('@')
		for _, a := range t.Args {
			m.typ(sb, a)
		}
		sb.WriteByte('@')
	} else {
		sb.WriteString(base)
		sb.WriteByte('@')
	}
	for i := len(t.Name) - 2; i >= 0; i-- {
		sb.WriteString(t.Name[i])
		sb.WriteByte('@')
	}
	if len(t.Name) == 1 && stdTemplates[base] {
		sb.WriteString("std@")
	}
	sb.WriteByte('@')
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
