package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cxxlink/codematch"
	"github.com/gnolang/cxxlink/internal"
)

var encodeInline bool

var encodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Show the encoded units of every declaration block",
	Long: `Prints the unit table the matcher sees for the body of each extern block.
Useful when a declaration is rejected with a grammar mismatch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return runEncode(cmd.OutOrStdout(), logger, src, encodeInline)
	},
}

func init() {
	encodeCmd.Flags().BoolVar(&encodeInline, "inline", false, "Expand nested groups instead of using side table indexes")
}

func runEncode(out io.Writer, logger *zap.Logger, src []byte, inline bool) error {
	nodes, err := codematch.ParseTree(string(src))
	if err != nil {
		return err
	}

	for i, block := range internal.FindBlocks(nodes) {
		line, col := internal.Position(src, block[0].Pos)
		fmt.Fprintf(out, "block %d: extern %s at %d:%d\n", i+1, block[1].Text, line, col)

		s := codematch.NewSession(logger)
		enc, err := s.Encode(block[2].Children, inline)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, u := range enc.Units {
			if u.Category == codematch.CategoryIndex {
				fmt.Fprintf(w, "  %s\t\t%s\n", u.Category, u.Text)
				continue
			}
			fmt.Fprintf(w, "  %s\t%U\t%s\n", u.Category, u.Char, u.Text)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "  encoded: %s\n", enc.String())
	}
	return nil
}
