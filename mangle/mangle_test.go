package mangle

import (
	"testing"

	"github.com/gnolang/cxxlink/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hintMap map[string]bool

func (h hintMap) IsClass(name string) (bool, bool) {
	isClass, ok := h[name]
	return isClass, ok
}

func arg(name, native string) types.ArgumentDescriptor {
	return types.ArgumentDescriptor{Name: name, Native: native}
}

func ret(native string) types.ArgumentDescriptor {
	return types.ArgumentDescriptor{Type: native, Native: native}
}

func TestItanium(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		fn    types.FunctionDescriptor
		width int
		want  string
	}{
		{
			name: "no arguments",
			fn:   types.FunctionDescriptor{Name: "foo"},
			want: "_Z3foov",
		},
		{
			name: "substitution of repeated compound types",
			fn: types.FunctionDescriptor{
				Name: "cpp_ptr",
				Args: []types.ArgumentDescriptor{
					arg("a", "int"),
					arg("b", "const char*"),
					arg("c", "size_t"),
					arg("d", "const char*"),
					arg("e", "const uint8_t*"),
					arg("f", "size_t"),
				},
			},
			want: "_Z7cpp_ptriPKcmS0_PKhm",
		},
		{
			name: "comma spellings split into arguments",
			fn: types.FunctionDescriptor{
				Name: "cpp_ptr",
				Args: []types.ArgumentDescriptor{
					arg("a", "int"),
					arg("b", "const char*,size_t"),
					arg("d", "const char*"),
					arg("e", "const uint8_t*,size_t"),
				},
			},
			want: "_Z7cpp_ptriPKcmS0_PKhm",
		},
		{
			name: "template argument in pointer",
			fn: types.FunctionDescriptor{
				Name: "slow_tostr",
				Args: []types.ArgumentDescriptor{
					arg("p", "ValuePromise<RustString>*"),
					arg("val", "int"),
				},
			},
			want: "_Z10slow_tostrP12ValuePromiseI10RustStringEi",
		},
		{
			name: "namespaced function",
			fn: types.FunctionDescriptor{
				Name:   "ns_foo::ns_bar::cpp_ptr",
				Args:   []types.ArgumentDescriptor{arg("foo", "const char*")},
				Return: ret("int"),
			},
			want: "_ZN6ns_foo6ns_bar7cpp_ptrEPKc",
		},
		{
			name: "const member function",
			fn: types.FunctionDescriptor{
				Owner: "CppStruct",
				Name:  "get_order",
				Const: true,
				Args:  []types.ArgumentDescriptor{arg("oid", "int")},
			},
			want: "_ZNK9CppStruct9get_orderEi",
		},
		{
			name: "member function",
			fn: types.FunctionDescriptor{
				Owner: "CppStruct",
				Name:  "AddString",
				Args:  []types.ArgumentDescriptor{arg("str", "const RustString&")},
			},
			want: "_ZN9CppStruct9AddStringERK10RustString",
		},
		{
			name: "std function",
			fn:   types.FunctionDescriptor{Name: "std::foo"},
			want: "_ZSt3foov",
		},
		{
			name: "std template argument",
			fn: types.FunctionDescriptor{
				Name: "take",
				Args: []types.ArgumentDescriptor{
					arg("a", "std::shared_ptr<Foo>&"),
					arg("b", "std::shared_ptr<Foo>&"),
				},
			},
			want: "_Z4takeRSt10shared_ptrI3FooES2_",
		},
		{
			name: "user type then pointer to it",
			fn: types.FunctionDescriptor{
				Name: "f",
				Args: []types.ArgumentDescriptor{arg("a", "Foo&"), arg("b", "Foo*")},
			},
			want: "_Z1fR3FooPS_",
		},
		{
			name: "namespace prefix reused by argument",
			fn: types.FunctionDescriptor{
				Name: "ns::f",
				Args: []types.ArgumentDescriptor{arg("a", "ns::Foo"), arg("b", "const ns::Foo&")},
			},
			want: "_ZN2ns1fENS_3FooERKS0_",
		},
		{
			name: "owner reused by argument",
			fn: types.FunctionDescriptor{
				Owner: "CppStruct",
				Name:  "merge",
				Args:  []types.ArgumentDescriptor{arg("other", "CppStruct*")},
			},
			want: "_ZN9CppStruct5mergeEPS_",
		},
		{
			name:  "32 bit sizes",
			width: 32,
			fn: types.FunctionDescriptor{
				Name: "sizes",
				Args: []types.ArgumentDescriptor{arg("a", "size_t"), arg("b", "int64_t"), arg("c", "uint64_t")},
			},
			want: "_Z5sizesjxy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewItanium(tt.width).Mangle(&tt.fn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMicrosoft(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		fn    types.FunctionDescriptor
		hints hintMap
		width int
		want  string
	}{
		{
			name: "namespace and back references",
			fn: types.FunctionDescriptor{
				Name: "ns_foo::ns_bar::cpp_ptr",
				Args: []types.ArgumentDescriptor{
					arg("foo", "const char*"),
					arg("bar", "const char*,size_t"),
					arg("baz", "const uint8_t*,size_t"),
				},
				Return: ret("int"),
			},
			want: "?cpp_ptr@ns_bar@ns_foo@@YAHPEBD0_KPEBE1@Z",
		},
		{
			name: "shared pointer return",
			fn: types.FunctionDescriptor{
				Name:   "cpp_ptr",
				Args:   []types.ArgumentDescriptor{arg("xx", "int")},
				Return: ret("shared_ptr<CppStruct>"),
			},
			want: "?cpp_ptr@@YA?AV?$shared_ptr@VCppStruct@@@std@@H@Z",
		},
		{
			name: "signed size is a primitive",
			fn: types.FunctionDescriptor{
				Name:   "f",
				Args:   []types.ArgumentDescriptor{arg("x", "ssize_t")},
				Return: ret("ssize_t"),
			},
			want: "?f@@YA_J_J@Z",
		},
		{
			name: "signed size shares back references with int64",
			fn: types.FunctionDescriptor{
				Name:   "f",
				Args:   []types.ArgumentDescriptor{arg("x", "ssize_t"), arg("y", "int64_t")},
				Return: ret("ssize_t"),
			},
			want: "?f@@YA_J_J0@Z",
		},
		{
			name: "signed size on 32-bit",
			fn: types.FunctionDescriptor{
				Name:   "f",
				Args:   []types.ArgumentDescriptor{arg("x", "ssize_t")},
				Return: ret("ssize_t"),
			},
			width: 32,
			want:  "?f@@YAHH@Z",
		},
		{
			name:  "struct return by value",
			fn:    types.FunctionDescriptor{Name: "get_logger", Return: ret("DynLogger")},
			hints: hintMap{"DynLogger": false},
			want:  "?get_logger@@YA?AUDynLogger@@XZ",
			width: 64,
		},
		{
			name: "reference and pointer arguments",
			fn: types.FunctionDescriptor{
				Name:   "on_magic",
				Args:   []types.ArgumentDescriptor{arg("magic", "MagicIn&"), arg("cs", "CppStruct*")},
				Return: ret("MagicOut"),
			},
			want: "?on_magic@@YA?AUMagicOut@@AEAUMagicIn@@PEAVCppStruct@@@Z",
		},
		{
			name: "hint overrides naming convention",
			fn: types.FunctionDescriptor{
				Name: "use",
				Args: []types.ArgumentDescriptor{arg("a", "CppStruct*"), arg("b", "Widget*")},
			},
			hints: hintMap{"CppStruct": false, "Widget": true},
			want:  "?use@@YAXPEAUCppStruct@@PEAVWidget@@@Z",
		},
		{
			name: "class suffix heuristic",
			fn: types.FunctionDescriptor{
				Name: "use",
				Args: []types.ArgumentDescriptor{arg("a", "const LoggerClass&")},
			},
			want: "?use@@YAXAEBVLoggerClass@@@Z",
		},
		{
			name: "member function",
			fn: types.FunctionDescriptor{
				Owner:  "CppStruct",
				Name:   "get_order",
				Args:   []types.ArgumentDescriptor{arg("oid", "int")},
				Return: ret("UserOrder"),
			},
			want: "?get_order@CppStruct@@QEAA?AUUserOrder@@H@Z",
		},
		{
			name: "const member function",
			fn: types.FunctionDescriptor{
				Owner:  "CppStruct",
				Name:   "size",
				Const:  true,
				Return: ret("size_t"),
			},
			want: "?size@CppStruct@@QEBA_KXZ",
		},
		{
			name: "vector template",
			fn: types.FunctionDescriptor{
				Name:   "init_asset_config",
				Args:   []types.ArgumentDescriptor{arg("url", "const char*"), arg("old", "const uint8_t*,size_t")},
				Return: ret("RustVec<uint8_t>"),
			},
			want: "?init_asset_config@@YA?AU?$RustVec@E@@PEBDPEBE_K@Z",
		},
		{
			name:  "32 bit pointers",
			width: 32,
			fn: types.FunctionDescriptor{
				Name: "cpp_ptr",
				Args: []types.ArgumentDescriptor{arg("s", "const char*,size_t")},
			},
			want: "?cpp_ptr@@YAXPBDI@Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var hints HintResolver
			if tt.hints != nil {
				hints = tt.hints
			}
			got, err := NewMicrosoft(hints, tt.width).Mangle(&tt.fn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDestructorSymbols(t *testing.T) {
	t.Parallel()
	gcc := NewItanium(64)
	msvc := NewMicrosoft(hintMap{"Foo": false}, 64)

	tests := []struct {
		name   string
		m      Mangler
		shared bool
		typ    string
		want   string
	}{
		{name: "itanium", m: gcc, typ: "Foo", want: "_ZN3ffi8man_dtorI3FooEEvPv"},
		{name: "itanium vector", m: gcc, typ: "RustVec<uint8_t>", want: "_ZN3ffi8man_dtorI7RustVecIhEEEvPv"},
		{name: "itanium shared", m: gcc, shared: true, typ: "CppStruct", want: "_ZN3ffi11man_dtor_spI9CppStructEEvPv"},
		{name: "msvc", m: msvc, typ: "Foo", want: "??$man_dtor@UFoo@@@ffi@@YAXPEAX@Z"},
		{name: "msvc struct return", m: msvc, typ: "MagicOut", want: "??$man_dtor@UMagicOut@@@ffi@@YAXPEAX@Z"},
		{name: "msvc shared", m: msvc, shared: true, typ: "CppStruct", want: "??$man_dtor_sp@VCppStruct@@@ffi@@YAXPEAX@Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var (
				got string
				err error
			)
			if tt.shared {
				got, err = SharedDestructorSymbol(tt.m, tt.typ)
			} else {
				got, err = DestructorSymbol(tt.m, tt.typ)
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinkName(t *testing.T) {
	t.Parallel()
	async := &types.FunctionDescriptor{
		Name:   "slow_tostr",
		Async:  true,
		Args:   []types.ArgumentDescriptor{arg("val", "int")},
		Return: types.ArgumentDescriptor{Type: "String", Native: "RustString"},
	}

	got, err := LinkName(NewItanium(64), async, true)
	require.NoError(t, err)
	assert.Equal(t, "_Z10slow_tostrP12ValuePromiseI10RustStringEi", got)

	future := &types.FunctionDescriptor{
		Name:   "future_int",
		Async:  true,
		Return: types.ArgumentDescriptor{Type: "i32", Native: "int", Primitive: true},
	}
	got, err = LinkName(NewMicrosoft(nil, 64), future, true)
	require.NoError(t, err)
	assert.Equal(t, "?future_int@@YAXPEAU?$ValuePromise@H@@@Z", got)
	assert.Len(t, future.Args, 0, "descriptor left untouched")

	got, err = LinkName(NewItanium(64), &types.FunctionDescriptor{Name: "ns::plain_c"}, false)
	require.NoError(t, err)
	assert.Equal(t, "plain_c", got)
}

func TestMangleErrors(t *testing.T) {
	t.Parallel()
	fn := &types.FunctionDescriptor{Name: "bad", Args: []types.ArgumentDescriptor{arg("x", "Foo<")}}

	_, err := NewItanium(64).Mangle(fn)
	assert.ErrorIs(t, err, types.ErrUnsupportedShape)
	_, err = NewMicrosoft(nil, 64).Mangle(fn)
	assert.ErrorIs(t, err, types.ErrUnsupportedShape)

	_, err = NewItanium(64).Mangle(&types.FunctionDescriptor{})
	assert.Error(t, err)
}

func TestNewAndParseScheme(t *testing.T) {
	t.Parallel()
	s, err := ParseScheme("GCC")
	require.NoError(t, err)
	assert.Equal(t, SchemeItanium, s)

	s, err = ParseScheme("microsoft")
	require.NoError(t, err)
	assert.Equal(t, SchemeMicrosoft, s)

	s, err = ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, HostScheme(), s)

	_, err = ParseScheme("borland")
	assert.Error(t, err)

	m, err := New(SchemeMicrosoft, nil, 0)
	require.NoError(t, err)
	assert.IsType(t, &Microsoft{}, m)

	_, err = New(SchemeItanium, nil, 16)
	assert.Error(t, err)
}

func TestSubstitutionIndex(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "S_", substitution(0))
	assert.Equal(t, "S0_", substitution(1))
	assert.Equal(t, "S9_", substitution(10))
	assert.Equal(t, "SA_", substitution(11))
	assert.Equal(t, "S10_", substitution(37))
}
