package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cxxlink/bridge"
	"github.com/gnolang/cxxlink/formatter"
	"github.com/gnolang/cxxlink/internal"
	"github.com/gnolang/cxxlink/internal/registry"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Re-extract source files whenever they change",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := bridge.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err = runWatch(ctx, cmd.OutOrStdout(), logger, config, args)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func runWatch(ctx context.Context, out io.Writer, logger *zap.Logger, config bridge.Config, dirs []string) error {
	opts, err := config.EngineOptions(logger)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	w := &bridge.Watcher{
		NewEngine: func() (bridge.Engine, error) {
			o := opts
			o.Registry = registry.New()
			return internal.NewEngine(o)
		},
		Extensions: config.Extensions,
		Logger:     logger,
		OnResult: func(path string, res bridge.Result, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("Error processing file", zap.String("file", path), zap.Error(err))
				return
			}
			fmt.Fprint(out, formatter.FormatBlocks(res.Blocks))
			printDiagnostics(out, logger, res.Diagnostics)
		},
	}
	return w.Watch(ctx, dirs...)
}
