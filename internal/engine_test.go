package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/cxxlink/codematch"
	"github.com/gnolang/cxxlink/internal/registry"
	"github.com/gnolang/cxxlink/internal/types"
	"github.com/gnolang/cxxlink/mangle"
)

const interopSource = `use directcpp::{CPtr, SharedPtr};

#[directcpp::bridge]
extern "C++" {
	pub fn on_magic(magic: &mut MagicIn, cs: CPtr<CppStruct>) -> MagicOut;
	pub fn cpp_ptr(xx: i32) -> SharedPtr<CppStruct>;
	pub fn get_logger() -> POD<DynLogger>;
	pub async fn future_int() -> i32;
	#[namespace(ns_foo::ns_bar)]
	pub fn cpp_ptr(foo: &CStr, bar: &str, baz: &[u8]) -> i32;
}
`

func newTestEngine(t *testing.T, scheme mangle.Scheme) *Engine {
	t.Helper()
	e, err := NewEngine(Options{Scheme: scheme, Registry: registry.New()})
	require.NoError(t, err)
	return e
}

func linkNames(b types.Block) []string {
	out := make([]string, len(b.Bindings))
	for i, binding := range b.Bindings {
		out[i] = binding.LinkName
	}
	return out
}

func TestEngineMicrosoft(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, mangle.SchemeMicrosoft)

	blocks, err := e.RunSource("bridge.rs", []byte(interopSource))
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	b := blocks[0]
	assert.Equal(t, "bridge.rs", b.Filename)
	assert.Equal(t, types.LinkageCpp, b.Linkage)
	assert.Equal(t, strings.Index(interopSource, `extern "C++"`), b.Pos)
	assert.Equal(t, []string{
		"?on_magic@@YA?AUMagicOut@@AEAUMagicIn@@PEAVCppStruct@@@Z",
		"?cpp_ptr@@YA?AV?$shared_ptr@VCppStruct@@@std@@H@Z",
		"?get_logger@@YA?AUDynLogger@@XZ",
		"?future_int@@YAXPEAU?$ValuePromise@H@@@Z",
		"?cpp_ptr@ns_bar@ns_foo@@YAHPEBD0_KPEBE1@Z",
	}, linkNames(b))

	assert.Equal(t, []types.GlueNotice{
		{Type: "MagicOut", Kind: types.GlueDestructor, Symbol: "??$man_dtor@UMagicOut@@@ffi@@YAXPEAX@Z"},
		{Type: "CppStruct", Kind: types.GlueSharedDestructor, Symbol: "??$man_dtor_sp@VCppStruct@@@ffi@@YAXPEAX@Z"},
	}, b.Glue)
}

func TestEngineItanium(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, mangle.SchemeItanium)

	blocks, err := e.RunSource("bridge.rs", []byte(interopSource))
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	assert.Equal(t, []string{
		"_Z8on_magicR7MagicInP9CppStruct",
		"_Z7cpp_ptri",
		"_Z10get_loggerv",
		"_Z10future_intP12ValuePromiseIiE",
		"_ZN6ns_foo6ns_bar7cpp_ptrEPKcS2_mPKhm",
	}, linkNames(blocks[0]))
	assert.Equal(t, "_ZN3ffi8man_dtorI8MagicOutEEvPv", blocks[0].Glue[0].Symbol)
	assert.Equal(t, "_ZN3ffi11man_dtor_spI9CppStructEEvPv", blocks[0].Glue[1].Symbol)
}

func TestEngineGlueIsEmittedOnce(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, mangle.SchemeItanium)
	src := `extern "C++" {
		fn a() -> Vec<u8>;
		fn b() -> Vec<u8>;
		fn c() -> UniquePtr<Foo>;
		fn d() -> CPtr<Foo>;
		fn e() -> String;
	}`

	blocks, err := e.RunSource("", []byte(src))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []types.GlueNotice{
		{Type: "RustVec<uint8_t>", Kind: types.GlueDestructor, Symbol: "_ZN3ffi8man_dtorI7RustVecIhEEEvPv"},
		{Type: "Foo", Kind: types.GlueDestructor, Symbol: "_ZN3ffi8man_dtorI3FooEEvPv"},
		{Type: "Foo", Kind: types.GlueUniqueDestructor},
		{Type: "RustString", Kind: types.GlueDestructor, Symbol: "_ZN3ffi8man_dtorI10RustStringEEvPv"},
	}, blocks[0].Glue)

	// a second block in the same process needs no new glue
	blocks, err = e.RunSource("", []byte(`extern "C++" { fn f() -> Vec<u8>; }`))
	require.NoError(t, err)
	assert.Empty(t, blocks[0].Glue)
}

func TestEngineCLinkage(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, mangle.SchemeMicrosoft)

	blocks, err := e.RunSource("", []byte(`extern "C" { #[namespace(ffi)] fn plain(x: i32) -> i32; }`))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, types.LinkageC, blocks[0].Linkage)
	assert.Equal(t, []string{"plain"}, linkNames(blocks[0]))
}

func TestFindBlocks(t *testing.T) {
	t.Parallel()
	src := `use foo;
extern crate bar;
#[directcpp::bridge]
extern "C++" { pub fn a(); }
mod inner {
	extern "C" { fn b(); }
	extern "C" fn not_a_block() {}
	extern "system" { fn c(); }
}
`
	nodes, err := codematch.ParseTree(src)
	require.NoError(t, err)

	blocks := FindBlocks(nodes)
	require.Len(t, blocks, 2)
	assert.Equal(t, `"C++"`, blocks[0][1].Text)
	assert.Equal(t, strings.Index(src, `extern "C++"`), blocks[0][0].Pos)
	assert.Equal(t, `"C"`, blocks[1][1].Text)
	assert.Equal(t, strings.Index(src, `extern "C" {`), blocks[1][0].Pos)
}

func TestEngineDiagnostics(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, mangle.SchemeItanium)
	src := "extern \"C++\" {\n\tpub fn ok();\n\tpub fn bad(s: String);\n}\n" +
		"extern \"C\" { fn fine(); }\n"

	blocks, err := e.RunSource("lib.rs", []byte(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnsupportedShape)

	// the failing block is dropped, the next one still runs
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"fine"}, linkNames(blocks[0]))

	diags := Diagnostics(err)
	require.Len(t, diags, 1)
	assert.Equal(t, "lib.rs", diags[0].Filename)
	assert.Equal(t, 3, diags[0].Line)
	assert.Equal(t, 2, diags[0].Column)
	assert.Contains(t, diags[0].Error(), "lib.rs:3:2: function bad error:")
}

func TestEngineLexError(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, mangle.SchemeItanium)
	_, err := e.RunSource("x.rs", []byte(`extern "C++ { fn a(); }`))
	assert.ErrorIs(t, err, codematch.ErrLex)
	assert.Len(t, Diagnostics(err), 1)
}

func TestEngineRunFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(path, []byte(interopSource), 0o644))

	e := newTestEngine(t, mangle.SchemeItanium)
	blocks, err := e.Run(path)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, path, blocks[0].Filename)

	_, err = e.Run(filepath.Join(dir, "missing.rs"))
	assert.Error(t, err)
}

func TestNewEngineRejectsBadWidth(t *testing.T) {
	t.Parallel()
	_, err := NewEngine(Options{Scheme: mangle.SchemeItanium, PointerWidth: 16})
	assert.Error(t, err)
}

func TestPosition(t *testing.T) {
	t.Parallel()
	src := []byte("ab\ncd\n\nef")
	tests := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{7, 4, 1},
		{8, 4, 2},
		{100, 4, 3},
	}
	for _, tt := range tests {
		line, col := Position(src, tt.offset)
		assert.Equal(t, tt.line, line, "offset %d", tt.offset)
		assert.Equal(t, tt.col, col, "offset %d", tt.offset)
	}
}

func TestEngineSignedSize(t *testing.T) {
	t.Parallel()
	src := []byte(`extern "C++" { pub fn f(x: isize, y: i64) -> isize; }`)
	tests := []struct {
		scheme mangle.Scheme
		want   string
	}{
		{scheme: mangle.SchemeMicrosoft, want: "?f@@YA_J_J0@Z"},
		{scheme: mangle.SchemeItanium, want: "_Z1fll"},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			t.Parallel()
			blocks, err := newTestEngine(t, tt.scheme).RunSource("", src)
			require.NoError(t, err)
			require.Len(t, blocks, 1)
			assert.Equal(t, []string{tt.want}, linkNames(blocks[0]))
			assert.Empty(t, blocks[0].Glue)
		})
	}
}

func TestEngineFailedBlockLeavesNoState(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, mangle.SchemeMicrosoft)
	src := `extern "C++" {
	fn a() -> String;
	fn b() -> POD<RustString>;
}
extern "C++" {
	#[class Widget]
	fn use_widget(w: &Widget);
	fn bad(s: String);
}
extern "C++" {
	fn c() -> String;
	fn d(w: &Widget);
}
`

	blocks, err := e.RunSource("lib.rs", []byte(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStrategyConflict)
	assert.ErrorIs(t, err, types.ErrUnsupportedShape)

	diags := Diagnostics(err)
	require.Len(t, diags, 2)
	assert.Equal(t, 3, diags[0].Line)
	assert.Equal(t, 8, diags[1].Line)

	// the third block sees neither the glue of the first nor the hint of
	// the second
	require.Len(t, blocks, 1)
	assert.Equal(t, []types.GlueNotice{
		{Type: "RustString", Kind: types.GlueDestructor, Symbol: "??$man_dtor@URustString@@@ffi@@YAXPEAX@Z"},
	}, blocks[0].Glue)
	assert.Equal(t, "?d@@YAXAEBUWidget@@@Z", blocks[0].Bindings[1].LinkName)

	st, ok := e.Registry().Strategies.Lookup("RustString")
	require.True(t, ok)
	assert.Equal(t, registry.Managed, st.Kind)
	assert.Equal(t, registry.WeakStruct, e.Registry().Hints.Lookup("Widget"))
}

func TestEngineNestedAttributeHint(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, mangle.SchemeMicrosoft)
	src := `extern "C++" {
	#[cxx(class Widget)]
	pub fn f(w: &Widget);
}`

	blocks, err := e.RunSource("", []byte(src))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"?f@@YAXAEBVWidget@@@Z"}, linkNames(blocks[0]))
	assert.Equal(t, registry.StrongClass, e.Registry().Hints.Lookup("Widget"))
}
