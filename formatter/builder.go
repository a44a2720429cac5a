package formatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	"github.com/gnolang/cxxlink/codematch"
	"github.com/gnolang/cxxlink/internal"
	"github.com/gnolang/cxxlink/internal/types"
)

const tabWidth = 8

// diagnostic kinds
const (
	GrammarMismatch  = "grammar-mismatch"
	UnsupportedShape = "unsupported-shape"
	HintConflict     = "hint-conflict"
	StrategyConflict = "strategy-conflict"
	NoBody           = "no-declaration-body"
	LexError         = "lex-error"
	GroupImbalance   = "group-imbalance"
	Exhausted        = "encoding-exhausted"
	GeneralError     = "error"
)

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	kindStyle    = color.New(color.FgYellow, color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgHiBlue, color.Bold)
	messageStyle = color.New(color.FgRed, color.Bold)
	noteStyle    = color.New(color.FgGreen, color.Bold)
	linkStyle    = color.New(color.FgGreen)
	glueStyle    = color.New(color.FgMagenta)
)

var kinds = []struct {
	err  error
	kind string
	note string
}{
	{types.ErrGrammarMismatch, GrammarMismatch, "each declaration must look like `pub fn name(args) -> ret;`"},
	{types.ErrUnsupportedShape, UnsupportedShape, ""},
	{types.ErrHintConflict, HintConflict, "a type is declared both as class and as struct"},
	{types.ErrStrategyConflict, StrategyConflict, "a type is returned both through a smart pointer and by value"},
	{types.ErrNoDeclarationBody, NoBody, ""},
	{codematch.ErrLex, LexError, ""},
	{codematch.ErrGroupImbalance, GroupImbalance, ""},
	{codematch.ErrEncodingExhausted, Exhausted, "the block declares more distinct names than one encoding range holds"},
}

// Kind classifies a diagnostic by the sentinel error it wraps.
func Kind(d types.Diagnostic) string {
	for _, k := range kinds {
		if errors.Is(d.Err, k.err) {
			return k.kind
		}
	}
	return GeneralError
}

func kindNote(d types.Diagnostic) string {
	for _, k := range kinds {
		if errors.Is(d.Err, k.err) {
			return k.note
		}
	}
	return ""
}

// DiagnosticData feeds the diagnostic template.
type DiagnosticData struct {
	Kind            string
	Filename        string
	Line            int
	Column          int
	Padding         string
	MaxLineNumWidth int
	Message         string
	Note            string
	SnippetLines    []string
	CommonIndent    string
}

const diagnosticTemplate = `{{header .Kind .MaxLineNumWidth .Filename .Line .Column}}
{{snippet .SnippetLines .Line .MaxLineNumWidth .CommonIndent .Padding}}
{{- underlineAndMessage .Message .Padding .Line .Column .SnippetLines .CommonIndent}}
{{- if .Note }}{{note .Note}}{{ end }}
`

var tmpl = template.Must(template.New("diagnostic").Funcs(template.FuncMap{
	"header":              header,
	"snippet":             codeSnippet,
	"underlineAndMessage": underlineAndMessage,
	"note":                note,
}).Parse(diagnosticTemplate))

// GenerateFormattedDiagnostics renders diagnostics of one source file. snippet
// may be nil when the source is not available.
func GenerateFormattedDiagnostics(diags []types.Diagnostic, snippet *internal.SourceCode) string {
	var builder strings.Builder
	for _, d := range diags {
		builder.WriteString(buildDiagnostic(d, snippet))
	}
	return builder.String()
}

func buildDiagnostic(d types.Diagnostic, snippet *internal.SourceCode) string {
	if snippet == nil {
		snippet = &internal.SourceCode{}
	}
	maxLineNumWidth := calculateMaxLineNumWidth(d.Line)
	var commonIndent string
	if isValidLine(d.Line, snippet.Lines) {
		commonIndent = findCommonIndent(snippet.Lines[d.Line-1 : d.Line])
	}

	data := DiagnosticData{
		Kind:            Kind(d),
		Filename:        d.Filename,
		Line:            d.Line,
		Column:          d.Column,
		Padding:         strings.Repeat(" ", maxLineNumWidth+1),
		MaxLineNumWidth: maxLineNumWidth,
		Message:         d.Message,
		Note:            kindNote(d),
		SnippetLines:    snippet.Lines,
		CommonIndent:    commonIndent,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting diagnostic: %v", err)
	}
	return buf.String()
}

func header(kind string, maxLineNumWidth int, filename string, line, column int) string {
	out := errorStyle.Sprint("error: ") + kindStyle.Sprint(kind) + "\n"
	out += lineStyle.Sprintf("%s--> ", strings.Repeat(" ", maxLineNumWidth))
	out += fileStyle.Sprintf("%s:%d:%d", filename, line, column)
	return out
}

func codeSnippet(lines []string, line, maxLineNumWidth int, commonIndent, padding string) string {
	out := lineStyle.Sprintf("%s|\n", padding)
	if !isValidLine(line, lines) {
		return out
	}
	text := expandTabs(strings.TrimPrefix(lines[line-1], commonIndent))
	out += lineStyle.Sprintf("%*d | ", maxLineNumWidth, line) + strings.TrimRight(text, " \r") + "\n"
	return out
}

// underlineAndMessage marks the diagnostic column up to the end of the line.
func underlineAndMessage(message, padding string, line, column int, lines []string, commonIndent string) string {
	out := lineStyle.Sprintf("%s| ", padding)
	if !isValidLine(line, lines) {
		return out + messageStyle.Sprintf("%s\n", message)
	}

	src := lines[line-1]
	indentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)
	start := calculateVisualColumn(src, column) - indentWidth
	if start < 0 {
		start = 0
	}
	end := len(expandTabs(strings.TrimRight(src, " \t\r"))) - indentWidth
	length := end - start
	if length < 1 {
		length = 1
	}

	out += strings.Repeat(" ", start)
	out += messageStyle.Sprintf("%s\n", strings.Repeat("~", length))
	out += lineStyle.Sprintf("%s= ", padding)
	out += messageStyle.Sprintf("%s\n", message)
	return out
}

func note(n string) string {
	return noteStyle.Sprint("Note: ") + lineStyle.Sprintf("%s\n", n)
}

func isValidLine(line int, lines []string) bool {
	return line > 0 && line <= len(lines)
}

func calculateMaxLineNumWidth(line int) int {
	return len(fmt.Sprintf("%d", line))
}

// calculateVisualColumn calculates the visual column position
// in a string. taking into account tab characters.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

func expandTabs(line string) string {
	var sb strings.Builder
	col := 0
	for _, ch := range line {
		if ch == '\t' {
			n := tabWidth - (col % tabWidth)
			sb.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		sb.WriteRune(ch)
		col++
	}
	return sb.String()
}

// findCommonIndent finds the common indent in the code snippet.
func findCommonIndent(lines []string) string {
	var common []rune
	first := true
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}
		indent := []rune(line[:len(line)-len(trimmed)])
		if first {
			common, first = indent, false
			continue
		}
		common = commonPrefix(common, indent)
		if len(common) == 0 {
			break
		}
	}
	return string(common)
}

// commonPrefix finds the common prefix of two strings.
func commonPrefix(a, b []rune) []rune {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:minLen]
}
