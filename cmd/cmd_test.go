package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/cxxlink/bridge"
	"github.com/gnolang/cxxlink/internal"
	"github.com/gnolang/cxxlink/internal/registry"
	"github.com/gnolang/cxxlink/mangle"
)

const sampleSource = `#[directcpp::bridge]
extern "C++" {
	pub fn cpp_ptr(xx: i32) -> SharedPtr<CppStruct>;
	#[namespace(ns_foo::ns_bar)]
	pub fn cpp_ptr(foo: &CStr, bar: &str, baz: &[u8]) -> i32;
}
`

func schemeConfig(scheme string) bridge.Config {
	c := bridge.DefaultConfig()
	c.Scheme = scheme
	return c
}

func TestRunMangle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		scheme   string
		decls    []string
		cLinkage bool
		expected string
	}{
		{
			name:     "itanium",
			scheme:   "itanium",
			decls:    []string{"pub fn foo()"},
			expected: "_Z3foov\n",
		},
		{
			name:   "msvc with glue",
			scheme: "msvc",
			decls:  []string{"pub fn cpp_ptr(xx: i32) -> SharedPtr<CppStruct>;"},
			expected: "?cpp_ptr@@YA?AV?$shared_ptr@VCppStruct@@@std@@H@Z\n" +
				"shared-destructor CppStruct ??$man_dtor_sp@VCppStruct@@@ffi@@YAXPEAX@Z\n",
		},
		{
			name:     "attribute on its own line",
			scheme:   "itanium",
			decls:    []string{"#[namespace(ns_foo::ns_bar)]", "pub fn cpp_ptr(foo: &CStr)"},
			expected: "_ZN6ns_foo6ns_bar7cpp_ptrEPKc\n",
		},
		{
			name:     "c linkage",
			scheme:   "msvc",
			decls:    []string{"fn plain(x: i32) -> i32"},
			cLinkage: true,
			expected: "plain\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			err := runMangle(&out, zap.NewNop(), schemeConfig(tt.scheme), tt.decls, tt.cLinkage)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.String())
		})
	}
}

func TestRunMangleDiagnostics(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	err := runMangle(&out, zap.NewNop(), schemeConfig("itanium"), []string{"pub fn bad(s: String)"}, false)
	assert.ErrorIs(t, err, errDiagnostics)
	assert.Contains(t, out.String(), "error: unsupported-shape")
	assert.Contains(t, out.String(), "<declaration>:2:1")

	err = runMangle(&out, zap.NewNop(), schemeConfig("borland"), []string{"fn a()"}, false)
	assert.Error(t, err)
}

func TestWrapDeclarations(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "extern \"C\" {\nfn a();\n#[namespace(x)]\nfn b();\n}\n",
		wrapDeclarations([]string{"fn a()", "#[namespace(x)]", " fn b(); "}, true))
}

func newExtractEngine(t *testing.T) *internal.Engine {
	t.Helper()
	e, err := internal.NewEngine(internal.Options{Scheme: mangle.SchemeItanium, Registry: registry.New()})
	require.NoError(t, err)
	return e
}

func TestRunExtractText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(path, []byte(sampleSource), 0o644))

	var out bytes.Buffer
	err := runExtract(context.Background(), zap.NewNop(), newExtractEngine(t), &out, []string{dir}, bridge.ProcessOptions{}, false, "")
	require.NoError(t, err)
	assert.Contains(t, out.String(), `lib.rs: extern "C++" (2 functions)`)
	assert.Contains(t, out.String(), "= _Z7cpp_ptri")
	assert.Contains(t, out.String(), "[ns_foo::ns_bar] pub fn cpp_ptr(foo: &CStr, bar: &str")
	assert.Contains(t, out.String(), "glue: shared-destructor CppStruct _ZN3ffi11man_dtor_spI9CppStructEEvPv")
}

func TestRunExtractJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := filepath.Join(dir, "a.rs")
	bad := filepath.Join(dir, "b.rs")
	require.NoError(t, os.WriteFile(good, []byte(sampleSource), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("extern \"C++\" {\n\tfn nope() garbage;\n}\n"), 0o644))
	jsonPath := filepath.Join(dir, "out.json")

	var out bytes.Buffer
	err := runExtract(context.Background(), zap.NewNop(), newExtractEngine(t), &out, []string{dir}, bridge.ProcessOptions{}, true, jsonPath)
	assert.ErrorIs(t, err, errDiagnostics)
	assert.Empty(t, out.String())

	d, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var reports map[string]struct {
		Blocks []struct {
			Linkage  string `json:"linkage"`
			Bindings []struct {
				LinkName string `json:"link_name"`
			} `json:"bindings"`
			Glue []struct {
				Kind string `json:"kind"`
			} `json:"glue"`
		} `json:"blocks"`
		Diagnostics []jsonDiagnostic `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(d, &reports))

	require.Len(t, reports[good].Blocks, 1)
	b := reports[good].Blocks[0]
	assert.Equal(t, "C++", b.Linkage)
	assert.Equal(t, "_Z7cpp_ptri", b.Bindings[0].LinkName)
	assert.Equal(t, "_ZN6ns_foo6ns_bar7cpp_ptrEPKcS2_mPKhm", b.Bindings[1].LinkName)
	assert.Equal(t, "shared-destructor", b.Glue[0].Kind)

	require.Len(t, reports[bad].Diagnostics, 1)
	assert.Equal(t, "grammar-mismatch", reports[bad].Diagnostics[0].Kind)
	assert.Equal(t, 2, reports[bad].Diagnostics[0].Line)
}

func TestRunEncode(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	require.NoError(t, runEncode(&out, zap.NewNop(), []byte("use x;\nextern \"C\" { fn a(); }\n"), false))

	s := out.String()
	assert.Contains(t, s, "block 1: extern \"C\" at 2:1")
	assert.Contains(t, s, "keyword")
	assert.Contains(t, s, "identifier")
	assert.Contains(t, s, "index")
	assert.Contains(t, s, "encoded: ")

	assert.Error(t, runEncode(&out, zap.NewNop(), []byte(`extern "C { }`), false))
}

func TestInitConfigurationFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "conf.yaml")

	var out bytes.Buffer
	require.NoError(t, initConfigurationFile(&out, path, "msvc"))
	assert.Equal(t, "Configuration file created/updated: "+path+"\n", out.String())

	c, err := bridge.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "msvc", c.Scheme)

	assert.Error(t, initConfigurationFile(&out, path, "borland"))
}

func TestRunWatchRejectsBadConfig(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	err := runWatch(context.Background(), &out, zap.NewNop(), schemeConfig("borland"), []string{t.TempDir()})
	assert.Error(t, err)
}
