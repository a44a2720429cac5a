package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a file must stay quiet before it is processed.
const DefaultSettle = 100 * time.Millisecond

// WatchFunc receives the result of every re-processed file.
type WatchFunc func(path string, res Result, err error)

// Watcher re-processes source files when they change. Every run gets a new
// engine from NewEngine, so glue is reported per file rather than once for
// the process.
type Watcher struct {
	NewEngine  func() (Engine, error)
	Extensions []string
	Settle     time.Duration
	Logger     *zap.Logger
	OnResult   WatchFunc

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// Watch adds dirs and everything below them, then handles events until ctx
// is done.
func (w *Watcher) Watch(ctx context.Context, dirs ...string) error {
	if w.NewEngine == nil || w.OnResult == nil {
		return errors.New("watcher needs NewEngine and OnResult")
	}
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}
	if w.Settle <= 0 {
		w.Settle = DefaultSettle
	}
	if len(w.Extensions) == 0 {
		w.Extensions = []string{".rs"}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw
	w.pending = make(map[string]*time.Timer)
	defer w.stop()

	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	w.Logger.Debug("watching", zap.Strings("dirs", dirs))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !w.isTargetFile(event.Name) {
		return
	}

	// several writes in a row are processed once
	name := event.Name
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[name]; ok && t.Stop() {
		t.Reset(w.Settle)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.Settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[name] == t {
			delete(w.pending, name)
		}
		w.mu.Unlock()
		w.process(name)
	})
	w.pending[name] = t
}

func (w *Watcher) process(path string) {
	engine, err := w.NewEngine()
	if err != nil {
		w.OnResult(path, Result{}, err)
		return
	}
	res, err := ProcessFile(engine, path)
	w.Logger.Debug("re-processed file",
		zap.String("file", path),
		zap.Int("blocks", len(res.Blocks)),
		zap.Int("diagnostics", len(res.Diagnostics)),
	)
	w.OnResult(path, res, err)
}

func (w *Watcher) isTargetFile(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
	_ = w.watcher.Close()
}
