package types

import (
	"fmt"
	"strings"
)

// WrapKind is the generic wrapper around an argument or return type.
type WrapKind int

const (
	WrapNone WrapKind = iota
	WrapPOD
	WrapCPtr
	WrapShared
	WrapUnique
	WrapOption
	WrapVec
	// WrapGeneric is any other single-parameter wrapper, e.g. &Box<T>.
	WrapGeneric
)

var wrapNames = map[string]WrapKind{
	"POD":       WrapPOD,
	"CPtr":      WrapCPtr,
	"SharedPtr": WrapShared,
	"UniquePtr": WrapUnique,
	"Option":    WrapOption,
	"Vec":       WrapVec,
}

// ParseWrap maps a wrapper name to its kind. Unknown names are WrapGeneric.
func ParseWrap(name string) WrapKind {
	if name == "" {
		return WrapNone
	}
	if k, ok := wrapNames[name]; ok {
		return k
	}
	return WrapGeneric
}

func (k WrapKind) String() string {
	switch k {
	case WrapNone:
		return ""
	case WrapPOD:
		return "POD"
	case WrapCPtr:
		return "CPtr"
	case WrapShared:
		return "SharedPtr"
	case WrapUnique:
		return "UniquePtr"
	case WrapOption:
		return "Option"
	case WrapVec:
		return "Vec"
	default:
		return "generic"
	}
}

// Linkage is the language tag of a declaration block.
type Linkage string

const (
	LinkageC   Linkage = "C"
	LinkageCpp Linkage = "C++"
)

// ArgumentDescriptor describes one argument or a return value. Return
// values have an empty Name.
type ArgumentDescriptor struct {
	Raw       string   `json:"raw,omitempty"`
	Name      string   `json:"name,omitempty"`
	Type      string   `json:"type"`
	Wrap      WrapKind `json:"-"`
	WrapName  string   `json:"wrap,omitempty"`
	Full      string   `json:"full"`
	Foreign   string   `json:"foreign,omitempty"`
	Native    string   `json:"native"`
	Const     bool     `json:"const,omitempty"`
	Primitive bool     `json:"primitive,omitempty"`
}

// IsRef reports whether the source spelling passes the value by reference.
func (a ArgumentDescriptor) IsRef() bool { return strings.HasPrefix(a.Full, "&") }

// IsVoid reports whether a return descriptor names no type.
func (a ArgumentDescriptor) IsVoid() bool { return a.Type == "" }

// FunctionDescriptor is one extracted signature.
type FunctionDescriptor struct {
	Access       string               `json:"access,omitempty"`
	Owner        string               `json:"owner,omitempty"`
	Name         string               `json:"name"`
	Async        bool                 `json:"async,omitempty"`
	Args         []ArgumentDescriptor `json:"args"`
	Return       ArgumentDescriptor   `json:"return"`
	Const        bool                 `json:"const,omitempty"`
	TemplateArgs []string             `json:"template_args,omitempty"`
	// Pos is the byte offset of the declaration in its source.
	Pos int `json:"-"`
}

// BaseName returns the function name without namespace.
func (f *FunctionDescriptor) BaseName() string {
	if i := strings.LastIndex(f.Name, "::"); i >= 0 {
		return f.Name[i+2:]
	}
	return f.Name
}

// Qualified returns the namespace, owner and name joined with "::".
func (f *FunctionDescriptor) Qualified() []string {
	var parts []string
	ns, base := "", f.Name
	if i := strings.LastIndex(f.Name, "::"); i >= 0 {
		ns, base = f.Name[:i], f.Name[i+2:]
	}
	for _, s := range strings.Split(ns, "::") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, s := range strings.Split(f.Owner, "::") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return append(parts, base)
}

// Signature renders the declaration back in source form.
func (f *FunctionDescriptor) Signature() string {
	var sb strings.Builder
	if f.Access != "" {
		sb.WriteString(f.Access)
		sb.WriteByte(' ')
	}
	if f.Async {
		sb.WriteString("async ")
	}
	sb.WriteString("fn ")
	sb.WriteString(f.BaseName())
	sb.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", a.Name, a.Full)
	}
	sb.WriteByte(')')
	if !f.Return.IsVoid() {
		sb.WriteString(" -> ")
		sb.WriteString(f.Return.Full)
	}
	return sb.String()
}

// GlueKind names the destructor glue a returned type needs.
type GlueKind int

const (
	GlueDestructor GlueKind = iota
	GlueUniqueDestructor
	GlueSharedDestructor
)

func (k GlueKind) String() string {
	switch k {
	case GlueDestructor:
		return "destructor"
	case GlueUniqueDestructor:
		return "unique-destructor"
	case GlueSharedDestructor:
		return "shared-destructor"
	default:
		return "unknown"
	}
}

// MarshalText lets GlueKind print as its name in JSON and yaml.
func (k GlueKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// GlueNotice tells the code generator that Type needs glue of Kind. Symbol
// is the linkage name of the native helper, empty when the glue is
// generated on the foreign side only.
type GlueNotice struct {
	Type   string   `json:"type"`
	Kind   GlueKind `json:"kind"`
	Symbol string   `json:"symbol,omitempty"`
}

// Binding pairs a descriptor with its linkage name.
type Binding struct {
	Function FunctionDescriptor `json:"function"`
	LinkName string             `json:"link_name"`
}

// Block is the result of one declaration block.
type Block struct {
	Filename string       `json:"filename,omitempty"`
	Pos      int          `json:"pos"`
	Linkage  Linkage      `json:"linkage"`
	Bindings []Binding    `json:"bindings"`
	Glue     []GlueNotice `json:"glue,omitempty"`
}

// Diagnostic is a block failure located in its source file.
type Diagnostic struct {
	Filename string
	Line     int
	Column   int
	Offset   int
	Message  string
	Err      error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.Filename, d.Line, d.Column, d.Message)
}

func (d Diagnostic) Unwrap() error { return d.Err }
