package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cxxlink/bridge"
	"github.com/gnolang/cxxlink/formatter"
	"github.com/gnolang/cxxlink/internal"
	"github.com/gnolang/cxxlink/internal/registry"
)

var (
	mangleScheme string
	mangleWidth  int
	mangleC      bool
)

var mangleCmd = &cobra.Command{
	Use:   "mangle [flags] <declaration>...",
	Short: "Print the linkage name of single declarations",
	Long: `Each argument is one declaration as it would appear inside an extern block.
All arguments share one block, so attributes and hints apply across them.
Example) cxxlink mangle --scheme msvc 'pub fn cpp_ptr(xx: i32) -> SharedPtr<CppStruct>;'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := bridge.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if mangleScheme != "" {
			config.Scheme = mangleScheme
		}
		if mangleWidth != 0 {
			config.PointerWidth = mangleWidth
		}
		return runMangle(cmd.OutOrStdout(), logger, config, args, mangleC)
	},
}

func init() {
	mangleCmd.Flags().StringVar(&mangleScheme, "scheme", "", "Mangling scheme (itanium or msvc)")
	mangleCmd.Flags().IntVar(&mangleWidth, "width", 0, "Pointer width in bits (32 or 64)")
	mangleCmd.Flags().BoolVar(&mangleC, "c", false, `Use "C" linkage`)
}

// wrapDeclarations builds an extern block around the given declarations.
func wrapDeclarations(decls []string, cLinkage bool) string {
	lang := `"C++"`
	if cLinkage {
		lang = `"C"`
	}
	var sb strings.Builder
	sb.WriteString("extern " + lang + " {\n")
	for _, d := range decls {
		d = strings.TrimSpace(d)
		if !strings.HasSuffix(d, ";") && !strings.HasPrefix(d, "#[") {
			d += ";"
		}
		sb.WriteString(d)
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

func runMangle(out io.Writer, logger *zap.Logger, config bridge.Config, decls []string, cLinkage bool) error {
	opts, err := config.EngineOptions(logger)
	if err != nil {
		return err
	}
	// one-off declarations must not see hints from earlier runs
	opts.Registry = registry.New()
	engine, err := internal.NewEngine(opts)
	if err != nil {
		return err
	}

	src := wrapDeclarations(decls, cLinkage)
	blocks, err := engine.RunSource("<declaration>", []byte(src))
	if err != nil {
		diags := internal.Diagnostics(err)
		if len(diags) == 0 {
			return err
		}
		fmt.Fprint(out, formatter.GenerateFormattedDiagnostics(diags, internal.NewSourceCode([]byte(src))))
		return errDiagnostics
	}
	if len(blocks) == 0 {
		return errors.New("no declaration found")
	}

	for _, b := range blocks[0].Bindings {
		fmt.Fprintln(out, b.LinkName)
	}
	for _, g := range blocks[0].Glue {
		if g.Symbol != "" {
			fmt.Fprintf(out, "%s %s %s\n", g.Kind, g.Type, g.Symbol)
		}
	}
	return nil
}
