package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/cxxlink/internal"
	"github.com/gnolang/cxxlink/internal/types"
	"github.com/gnolang/cxxlink/scanner"
)

// Engine turns declaration blocks into bindings.
type Engine interface {
	Run(filename string) ([]types.Block, error)
	RunSource(filename string, source []byte) ([]types.Block, error)
}

// New loads the configuration at configurationPath and builds an engine
// from it.
func New(configurationPath string, logger *zap.Logger) (*internal.Engine, Config, error) {
	config, err := LoadConfig(configurationPath)
	if err != nil {
		return nil, config, err
	}
	opts, err := config.EngineOptions(logger)
	if err != nil {
		return nil, config, err
	}
	engine, err := internal.NewEngine(opts)
	return engine, config, err
}

// Result collects the blocks and the located failures of a run.
type Result struct {
	Blocks      []types.Block
	Diagnostics []types.Diagnostic
}

func (r *Result) merge(o Result) {
	r.Blocks = append(r.Blocks, o.Blocks...)
	r.Diagnostics = append(r.Diagnostics, o.Diagnostics...)
}

// HasErrors reports whether any block failed.
func (r Result) HasErrors() bool { return len(r.Diagnostics) > 0 }

// ProcessOptions controls directory traversal.
type ProcessOptions struct {
	// Extensions selects the files of a directory. Empty means ".rs".
	Extensions []string
	// Progress receives a progress bar while a directory is processed.
	// Nil disables it.
	Progress io.Writer
	// Workers bounds concurrent files. Zero means runtime.NumCPU().
	Workers int
}

func (o ProcessOptions) extensions() []string {
	if len(o.Extensions) == 0 {
		return []string{".rs"}
	}
	return o.Extensions
}

// ProcessSource runs engine over a single in-memory source.
func ProcessSource(engine Engine, filename string, source []byte) (Result, error) {
	return split(engine.RunSource(filename, source))
}

// ProcessFile runs engine over one file.
func ProcessFile(engine Engine, path string) (Result, error) {
	return split(engine.Run(path))
}

// split separates block diagnostics from failures that have no location,
// such as read errors.
func split(blocks []types.Block, err error) (Result, error) {
	res := Result{Blocks: blocks}
	if err == nil {
		return res, nil
	}
	res.Diagnostics = internal.Diagnostics(err)
	if len(res.Diagnostics) == 0 {
		return res, err
	}
	return res, nil
}

// ProcessFiles processes every path in order. Directories are scanned for
// source files.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	paths []string,
	opts ProcessOptions,
) (Result, error) {
	var all Result
	for _, path := range paths {
		res, err := ProcessPath(ctx, logger, engine, path, opts)
		all.merge(res)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return all, err
		}
	}
	return all, nil
}

// ProcessPath processes a file or every matching file below a directory.
// Files run concurrently; results keep the sorted file order. A file that
// cannot be read does not stop the others, its error is joined into the
// returned error.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	path string,
	opts ProcessOptions,
) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		return ProcessFile(engine, path)
	}

	files, err := scanner.New(path, opts.extensions()...).Scan()
	if err != nil {
		return Result{}, fmt.Errorf("error scanning %s: %w", path, err)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription(path),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]Result, len(files))
	failures := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := ProcessFile(engine, file.Path)
			if err != nil {
				logger.Error("Error processing file", zap.String("file", file.Path), zap.Error(err))
				failures[i] = err
			}
			results[i] = res
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	var all Result
	for _, res := range results {
		all.merge(res)
	}
	logger.Debug("processed directory",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("blocks", len(all.Blocks)),
		zap.Int("diagnostics", len(all.Diagnostics)),
	)
	return all, errors.Join(failures...)
}
