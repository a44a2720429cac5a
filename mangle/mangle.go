// Package mangle encodes function descriptors as C++ linkage names.
//
// Two schemes are supported: the Itanium ABI used by GCC and Clang, and the
// Microsoft scheme used by MSVC. Both read the native type spellings of a
// descriptor, parse them with package ctype and encode the resulting tree.
package mangle

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/gnolang/cxxlink/ctype"
	"github.com/gnolang/cxxlink/internal/types"
)

// Mangler produces the linkage name of a function.
type Mangler interface {
	Mangle(fn *types.FunctionDescriptor) (string, error)
}

// HintResolver answers whether a user type is a class or a struct. known is
// false when nothing was recorded for name.
type HintResolver interface {
	IsClass(name string) (isClass, known bool)
}

type Scheme string

const (
	SchemeItanium   Scheme = "itanium"
	SchemeMicrosoft Scheme = "msvc"
)

// ParseScheme maps a configuration value to a Scheme. The empty string
// selects the scheme of the host platform.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(s) {
	case "":
		return HostScheme(), nil
	case "itanium", "gcc", "clang":
		return SchemeItanium, nil
	case "msvc", "microsoft":
		return SchemeMicrosoft, nil
	}
	return "", fmt.Errorf("unknown mangling scheme %q", s)
}

// HostScheme returns the scheme native to the running platform.
func HostScheme() Scheme {
	if runtime.GOOS == "windows" {
		return SchemeMicrosoft
	}
	return SchemeItanium
}

// New creates a Mangler for scheme. width is the pointer width in bits, 32
// or 64; zero means 64.
func New(scheme Scheme, hints HintResolver, width int) (Mangler, error) {
	if width == 0 {
		width = 64
	}
	if width != 32 && width != 64 {
		return nil, fmt.Errorf("unsupported pointer width %d", width)
	}
	switch scheme {
	case SchemeItanium:
		return NewItanium(width), nil
	case SchemeMicrosoft:
		return NewMicrosoft(hints, width), nil
	}
	return nil, fmt.Errorf("unknown mangling scheme %q", scheme)
}

// argumentTypes parses the native spelling of every argument. A spelling
// holding several comma separated types, like "const char*,size_t" for a
// string slice, yields one mangled argument per type.
func argumentTypes(fn *types.FunctionDescriptor) ([]*ctype.Type, error) {
	var out []*ctype.Type
	for _, a := range fn.Args {
		for _, spelling := range ctype.SplitList(a.Native) {
			t, err := parseType(spelling)
			if err != nil {
				return nil, fmt.Errorf("argument %s: %w", a.Name, err)
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func parseType(spelling string) (*ctype.Type, error) {
	t, err := ctype.Parse(spelling)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrUnsupportedShape, err)
	}
	return t, nil
}

func templateTypes(fn *types.FunctionDescriptor) ([]*ctype.Type, error) {
	out := make([]*ctype.Type, 0, len(fn.TemplateArgs))
	for _, s := range fn.TemplateArgs {
		t, err := parseType(s)
		if err != nil {
			return nil, fmt.Errorf("template argument: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// LinkName returns the symbol a declaration binds to. C linkage uses the
// plain function name. Async functions are declared natively as
// void name(ValuePromise<R>*, args...).
func LinkName(m Mangler, fn *types.FunctionDescriptor, isCpp bool) (string, error) {
	if !isCpp {
		return fn.BaseName(), nil
	}
	if !fn.Async {
		return m.Mangle(fn)
	}

	promise := types.ArgumentDescriptor{
		Name:      "promise",
		Type:      "usize",
		Full:      "usize",
		Native:    fmt.Sprintf("ValuePromise<%s>*", fn.Return.Native),
		Primitive: true,
	}
	async := *fn
	async.Args = append([]types.ArgumentDescriptor{promise}, fn.Args...)
	async.Return = types.ArgumentDescriptor{Primitive: true}
	return m.Mangle(&async)
}

func destructor(m Mangler, name, typ string) (string, error) {
	return m.Mangle(&types.FunctionDescriptor{
		Name:         name,
		TemplateArgs: []string{typ},
		Args:         []types.ArgumentDescriptor{{Name: "obj", Native: "void*"}},
		Return:       types.ArgumentDescriptor{Primitive: true},
	})
}

// DestructorSymbol mangles ffi::man_dtor<typ>(void*).
func DestructorSymbol(m Mangler, typ string) (string, error) {
	return destructor(m, "ffi::man_dtor", typ)
}

// SharedDestructorSymbol mangles ffi::man_dtor_sp<typ>(void*).
func SharedDestructorSymbol(m Mangler, typ string) (string, error) {
	return destructor(m, "ffi::man_dtor_sp", typ)
}
