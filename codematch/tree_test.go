package codematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTree(t *testing.T) {
	t.Parallel()
	src := `extern "C++" {
    // comment
    pub fn foo(a: &str) -> i32; /* block */
}`
	nodes, err := ParseTree(src)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.Equal(t, NodeIdent, nodes[0].Kind)
	assert.Equal(t, "extern", nodes[0].Text)
	assert.Equal(t, NodeLiteral, nodes[1].Kind)
	assert.Equal(t, `"C++"`, nodes[1].Text)

	body := nodes[2]
	assert.Equal(t, NodeGroup, body.Kind)
	assert.Equal(t, DelimBrace, body.Delim)
	assert.Equal(t, 13, body.Pos)
	assert.Equal(t, len(src), body.End)

	var kinds []NodeKind
	for _, n := range body.Children {
		kinds = append(kinds, n.Kind)
	}
	assert.Equal(t, []NodeKind{
		NodeIdent, NodeIdent, NodeIdent, NodeGroup, NodePunct, NodePunct, NodeIdent, NodePunct,
	}, kinds)
	assert.Equal(t, "pub fn foo(a:&str)->i32;", Render(body.Children))
}

func TestParseTreeTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "suffixed numbers",
			src:  "0x1F 3u32 1.5",
			want: []string{"Number(0x1F)", "Number(3u32)", "Number(1.5)"},
		},
		{
			name: "lifetime",
			src:  "&'a str",
			want: []string{"Punct(&)", "Punct(')", "Ident(a)", "Ident(str)"},
		},
		{
			name: "char literal with escape",
			src:  `'\'' "a\"b"`,
			want: []string{`Literal('\'')`, `Literal("a\"b")`},
		},
		{
			name: "path separator",
			src:  "a::b",
			want: []string{"Ident(a)", "Punct(:)", "Punct(:)", "Ident(b)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			nodes, err := ParseTree(tt.src)
			require.NoError(t, err)
			var got []string
			for _, n := range nodes {
				got = append(got, n.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTreeErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		err  error
	}{
		{name: "stray close", src: "fn foo() }", err: ErrGroupImbalance},
		{name: "wrong close", src: "foo(a]", err: ErrGroupImbalance},
		{name: "unclosed", src: "extern \"C\" {", err: ErrGroupImbalance},
		{name: "unterminated string", src: `"abc`, err: ErrLex},
		{name: "unterminated comment", src: "/* abc", err: ErrLex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseTree(tt.src)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
