package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/engine/input"
	"github.com/Faultbox/liverscope/internal/viewer"
	"github.com/Faultbox/liverscope/internal/watch"
)

// ModelScreen shows a local STL file, optionally reloading it whenever it
// changes on disk.
type ModelScreen struct {
	app   *App
	path  string
	watch bool

	watcher *watch.Watcher
	stop    context.CancelFunc

	mu      sync.Mutex
	readErr error
}

// NewModelScreen creates a screen for the STL file at path.
func NewModelScreen(a *App, path string, watchFile bool) *ModelScreen {
	return &ModelScreen{app: a, path: path, watch: watchFile}
}

// Enter loads the file and starts watching it.
func (s *ModelScreen) Enter(ctx context.Context) error {
	s.app.win.SetTitle("LiverScope - " + filepath.Base(s.path))
	s.reload()
	if !s.watch {
		return nil
	}

	w, err := watch.New(watch.DefaultDebounce)
	if err != nil {
		return err
	}
	if err := w.Add(s.path, func(string) { s.reload() }); err != nil {
		w.Close()
		return err
	}
	wctx, cancel := context.WithCancel(ctx)
	s.watcher, s.stop = w, cancel
	s.app.Go("watch", func(context.Context) error { return w.Run(wctx) })
	return nil
}

// Exit stops watching.
func (s *ModelScreen) Exit() error {
	if s.stop != nil {
		s.stop()
	}
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Update refreshes the info panel.
func (s *ModelScreen) Update() error {
	lines := watchLines(s.path, s.watch)
	if err := s.err(); err != nil {
		lines = append(lines, "Read failed: "+err.Error())
	} else {
		lines = append(lines, modelLines(s.app.viewer.Status(), nil)...)
	}
	lines = append(lines, "R: reload  "+controlsHelp)
	s.app.showPanel(lines, "")
	return nil
}

// HandleEvent handles reload and quit keys.
func (s *ModelScreen) HandleEvent(_ context.Context, e input.Event) error {
	if e.Type != input.EventKeyDown {
		return nil
	}
	switch e.Key {
	case sdl.SCANCODE_R:
		s.reload()
	case sdl.SCANCODE_ESCAPE:
		return ErrQuit
	}
	return nil
}

// reload reads and loads the file in the background. Reloads that overlap
// are resolved by the viewer: the newest one wins.
func (s *ModelScreen) reload() {
	s.app.Go("load "+filepath.Base(s.path), func(ctx context.Context) error {
		data, err := os.ReadFile(s.path)
		s.mu.Lock()
		s.readErr = err
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.path, err)
		}

		facts, err := s.app.viewer.Load(ctx, viewer.Source{Payload: data})
		if err != nil {
			return err
		}
		s.app.log.Info("model loaded",
			zap.String("path", s.path),
			zap.Int("vertices", facts.Vertices),
			zap.Int("faces", facts.Faces))
		return nil
	})
}

func (s *ModelScreen) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}
