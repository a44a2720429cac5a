package extract

import (
	"fmt"
	"strings"

	"github.com/gnolang/cxxlink/internal/registry"
	"github.com/gnolang/cxxlink/internal/types"
)

// argument shapes, tried in this order
const (
	shapePlain = iota
	shapeCPtr
	shapeOption
	shapeWrapped
	shapeBytes
)

const argEnd = " `(?: , `| `$ `)"

var argumentRules = [...]string{
	shapePlain:   "`(`iden`) : `( & `)? `( mut `)? `(`iden`)" + argEnd,
	shapeCPtr:    "`(`iden`) : & `? CPtr < & `? `(`iden`) >" + argEnd,
	shapeOption:  "`(`iden`) : Option < & `( mut `)? `(`iden`) >" + argEnd,
	shapeWrapped: "`(`iden`) : & `( mut `)? `(`iden`) < `(`iden`) >" + argEnd,
	shapeBytes:   "`(`iden`) : & `( [ u8 ] `)" + argEnd,
}

// primitives maps foreign primitive names to their native spelling.
var primitives = map[string]string{
	"i8":    "int8_t",
	"i16":   "int16_t",
	"i32":   "int",
	"i64":   "int64_t",
	"u8":    "uint8_t",
	"u16":   "uint16_t",
	"u32":   "uint32_t",
	"u64":   "uint64_t",
	"isize": "ssize_t",
	"usize": "size_t",
	"f32":   "float",
	"f64":   "double",
	"bool":  "bool",
}

// slices are the borrowed foreign types with a fixed native spelling.
var slices = map[string]string{
	"CStr": "const char*",
	"str":  "const char*,size_t",
	"[u8]": "const uint8_t*,size_t",
}

// NativeName returns the native spelling of a foreign type name.
func NativeName(tp string) (native string, primitive bool) {
	if n, ok := primitives[tp]; ok {
		return n, true
	}
	if tp == "String" {
		return "RustString", false
	}
	return tp, false
}

// describe fills the foreign and native spellings of a, recording the weak
// class hints its shape implies. a.Name is empty for return values.
func describe(a *types.ArgumentDescriptor, hints *registry.HintSet) error {
	if a.Type == "" {
		a.Primitive = true
		return nil
	}
	isRef := a.IsRef()
	isReturn := a.Name == ""
	cpp, primitive := NativeName(a.Type)
	a.Primitive = primitive

	mutability := "mut"
	if a.Const {
		mutability = "const"
	}
	switch {
	case a.Wrap == types.WrapOption:
		a.Foreign = fmt.Sprintf("*%s %s", mutability, a.Type)
	case a.Wrap == types.WrapCPtr:
		a.Foreign = "*const u8"
	case a.Wrap == types.WrapShared || a.Wrap == types.WrapUnique:
		if err := hints.RecordWeak(cpp, registry.WeakClass); err != nil {
			return fmt.Errorf("%s: %w", a.Full, err)
		}
		a.Foreign = "*const u8"
	case isRef:
		a.Foreign = fmt.Sprintf("*%s %s", mutability, a.Type)
	default:
		a.Foreign = a.Full
	}

	constPrefix := ""
	if a.Const {
		constPrefix = "const "
	}
	switch a.Wrap {
	case types.WrapCPtr:
		a.Native = cpp + "*"
	case types.WrapShared:
		a.Native = cpp + "*"
		if isReturn {
			a.Native = "shared_ptr<" + cpp + ">"
		}
	case types.WrapUnique:
		a.Native = cpp + "*"
		if isReturn {
			a.Native = "unique_ptr<" + cpp + ">"
		}
	case types.WrapOption:
		a.Native = constPrefix + cpp + "*"
	case types.WrapVec:
		a.Primitive = false
		if isRef {
			a.Native = constPrefix + "RustVec<" + cpp + ">&"
		} else {
			a.Native = "RustVec<" + cpp + ">"
		}
	case types.WrapNone, types.WrapPOD:
		switch {
		case isRef:
			if s, ok := slices[a.Type]; ok {
				a.Native = s
				break
			}
			if !primitive {
				if err := hints.RecordWeak(cpp, registry.WeakStruct); err != nil {
					return fmt.Errorf("%s: %w", a.Full, err)
				}
			}
			a.Native = constPrefix + cpp + "&"
		case primitive && a.Wrap == types.WrapNone:
			a.Native = cpp
		case isReturn:
			if !primitive {
				if err := hints.RecordWeak(cpp, registry.WeakStruct); err != nil {
					return fmt.Errorf("%s: %w", a.Full, err)
				}
			}
			a.Native = cpp
		case a.Wrap == types.WrapNone:
			return fmt.Errorf("%w: %s is passed by value, use %s", types.ErrUnsupportedShape,
				a.Raw, strings.Replace(a.Raw, ":", ": &", 1))
		default:
			return fmt.Errorf("%w: unknown type %s", types.ErrUnsupportedShape, a.Full)
		}
	default:
		return fmt.Errorf("%w: unknown type %s", types.ErrUnsupportedShape, a.Full)
	}
	return nil
}

// checkReturn rejects return shapes no strategy can manage.
func checkReturn(fn *types.FunctionDescriptor) error {
	ret := fn.Return
	if fn.Async {
		if ret.IsVoid() {
			return fmt.Errorf("%w: async function %s must have a return type", types.ErrUnsupportedShape, fn.Name)
		}
		if ret.Wrap != types.WrapNone {
			return fmt.Errorf("%w: async function %s can not return %s", types.ErrUnsupportedShape, fn.Name, ret.Full)
		}
	}
	switch ret.Wrap {
	case types.WrapOption, types.WrapGeneric:
		return fmt.Errorf("%w: unsupported return type %s", types.ErrUnsupportedShape, ret.Full)
	}
	return nil
}

// OwnedType returns the native type a returned value owns, the name glue
// and strategies are keyed by: T for SharedPtr<T>, RustVec<T> for Vec<T>,
// RustString for String.
func OwnedType(a types.ArgumentDescriptor) string {
	cpp, _ := NativeName(a.Type)
	if a.Wrap == types.WrapVec {
		return "RustVec<" + cpp + ">"
	}
	return cpp
}

// NeedsGlue reports whether fn returns a value whose native side must be
// destroyed or tracked. Async results travel through the promise instead.
func NeedsGlue(fn *types.FunctionDescriptor) bool {
	if fn.Async || fn.Return.IsVoid() || fn.Return.Wrap == types.WrapCPtr {
		return false
	}
	return !(fn.Return.Primitive && fn.Return.Wrap == types.WrapNone)
}
