package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cxxlink/bridge"
	"github.com/gnolang/cxxlink/formatter"
	"github.com/gnolang/cxxlink/internal"
	"github.com/gnolang/cxxlink/internal/types"
)

var (
	jsonOutput bool
	outPath    string
	noProgress bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [paths...]",
	Short: "Extract declaration blocks and print their linkage names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		engine, config, err := bridge.New(cfgFile, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		opts := bridge.ProcessOptions{Extensions: config.Extensions}
		if !noProgress && !jsonOutput && isatty.IsTerminal(os.Stderr.Fd()) {
			opts.Progress = os.Stderr
		}
		return runExtract(ctx, logger, engine, cmd.OutOrStdout(), args, opts, jsonOutput, outPath)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output bindings in JSON format")
	extractCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	extractCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not show a progress bar")
}

func runExtract(
	ctx context.Context,
	logger *zap.Logger,
	engine bridge.Engine,
	out io.Writer,
	paths []string,
	opts bridge.ProcessOptions,
	isJson bool,
	jsonPath string,
) error {
	res, err := bridge.ProcessFiles(ctx, logger, engine, paths, opts)
	if err != nil {
		return err
	}

	if isJson {
		if err := printJSON(out, res, jsonPath); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, formatter.FormatBlocks(res.Blocks))
		printDiagnostics(out, logger, res.Diagnostics)
	}

	if res.HasErrors() {
		return errDiagnostics
	}
	return nil
}

func printDiagnostics(out io.Writer, logger *zap.Logger, diags []types.Diagnostic) {
	byFile := make(map[string][]types.Diagnostic)
	for _, d := range diags {
		byFile[d.Filename] = append(byFile[d.Filename], d)
	}

	sortedFiles := make([]string, 0, len(byFile))
	for filename := range byFile {
		sortedFiles = append(sortedFiles, filename)
	}
	sort.Strings(sortedFiles)

	for _, filename := range sortedFiles {
		sourceCode, err := internal.ReadSourceCode(filename)
		if err != nil {
			logger.Warn("Error reading source file", zap.String("file", filename), zap.Error(err))
		}
		fmt.Fprint(out, formatter.GenerateFormattedDiagnostics(byFile[filename], sourceCode))
	}
}

type jsonDiagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type fileReport struct {
	Blocks      []types.Block    `json:"blocks,omitempty"`
	Diagnostics []jsonDiagnostic `json:"diagnostics,omitempty"`
}

func printJSON(out io.Writer, res bridge.Result, jsonPath string) error {
	reports := make(map[string]*fileReport)
	report := func(filename string) *fileReport {
		r, ok := reports[filename]
		if !ok {
			r = &fileReport{}
			reports[filename] = r
		}
		return r
	}
	for _, b := range res.Blocks {
		r := report(b.Filename)
		r.Blocks = append(r.Blocks, b)
	}
	for _, d := range res.Diagnostics {
		r := report(d.Filename)
		r.Diagnostics = append(r.Diagnostics, jsonDiagnostic{
			Line:    d.Line,
			Column:  d.Column,
			Kind:    formatter.Kind(d),
			Message: d.Message,
		})
	}

	d, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling bindings to JSON: %w", err)
	}
	if jsonPath == "" {
		_, err = fmt.Fprintln(out, string(d))
		return err
	}
	return os.WriteFile(jsonPath, d, 0o644)
}
