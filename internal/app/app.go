// Package app runs the interactive viewer window: it owns the SDL window,
// the GL renderer and the viewport, pumps input and switches screens.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/liverscope/internal/config"
	"github.com/Faultbox/liverscope/internal/engine/input"
	"github.com/Faultbox/liverscope/internal/engine/renderer"
	"github.com/Faultbox/liverscope/internal/engine/screenshot"
	"github.com/Faultbox/liverscope/internal/engine/texture"
	"github.com/Faultbox/liverscope/internal/engine/window"
	"github.com/Faultbox/liverscope/internal/logger"
	"github.com/Faultbox/liverscope/internal/viewer"
	"github.com/Faultbox/liverscope/internal/viewport"
)

// ErrQuit ends the render loop when the user closes the window.
var ErrQuit = errors.New("quit requested")

// maxTasks bounds concurrent background work (loads, requests, watchers).
const maxTasks = 8

const controlsHelp = "drag: rotate  right-drag: pan  wheel: zoom  double-click: pivot  F: fit  F12: screenshot  Q: quit"

// App is the viewer application. New, Run and Close must be called from
// the main thread.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	win     *window.Window
	rend    *renderer.Renderer
	input   *input.Input
	vp      *viewport.Viewport
	viewer  *viewer.Viewer
	screens *Manager

	ctx    context.Context // Lifetime of background tasks
	cancel context.CancelFunc
	tasks  errgroup.Group

	scale      float32 // Drawable pixels per window coordinate
	overlayKey string

	capture *screenshot.Capture
	shoot   bool // Save the next rendered frame
}

// New opens the window and prepares an empty scene. fetcher resolves
// mesh locations and may be nil.
func New(cfg *config.Config, title string, fetcher viewer.Fetcher) (*App, error) {
	a := &App{
		cfg:     cfg,
		log:     logger.Named("app"),
		input:   input.New(),
		screens: NewManager(),
		scale:   1,
		capture: screenshot.New(cfg.Export.Dir, "liverscope"),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.tasks.SetLimit(maxTasks)

	var err error
	a.win, err = window.New(window.Config{
		Title:  title,
		Width:  cfg.Viewer.Width,
		Height: cfg.Viewer.Height,
		VSync:  cfg.Viewer.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Renderer AFTER window, since the OpenGL context must exist.
	w, h := a.win.GetDrawableSize()
	rend, err := renderer.New(renderer.Config{Width: w, Height: h, Background: renderer.DefaultBackground})
	if err != nil {
		a.win.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	a.rend = rend

	opts := viewport.DefaultOptions()
	opts.FOV = cfg.Viewer.FOV
	opts.Near = cfg.Viewer.Near
	opts.Far = cfg.Viewer.Far
	opts.InitialDistance = cfg.Viewer.InitialDistance
	opts.Damping = cfg.Viewer.Damping
	opts.FitMargin = cfg.Viewer.FitMargin
	a.vp, err = viewport.New(rend, viewport.Size{Width: w, Height: h}, opts)
	if err != nil {
		rend.Close()
		a.win.Close()
		return nil, err
	}

	vopts := []viewer.Option{viewer.WithStatusHook(a.onStatus)}
	if fetcher != nil {
		vopts = append(vopts, viewer.WithFetcher(fetcher))
	}
	a.viewer = viewer.New(a.vp, vopts...)
	a.updateScale()

	a.log.Info("viewer ready", zap.Int("width", w), zap.Int("height", h))
	return a, nil
}

// Viewer returns the mesh viewer screens load models into.
func (a *App) Viewer() *viewer.Viewer {
	return a.viewer
}

// Run shows first and drives the render loop until the window is closed
// or ctx is done.
func (a *App) Run(ctx context.Context, first Screen) error {
	a.screens.Change(first)
	clock := newPumpClock(a, a.cfg.Viewer.FPSLimit)

	err := a.vp.Run(ctx, clock)
	switch {
	case err == nil, errors.Is(err, ErrQuit), errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}

// Close stops background work and releases the scene, renderer and window.
func (a *App) Close() error {
	a.log.Info("closing viewer")
	a.cancel()

	errs := a.screens.Close()
	errs = multierr.Append(errs, a.tasks.Wait())
	errs = multierr.Append(errs, a.viewer.Close())
	a.win.Close()
	return errs
}

// Go runs fn in the background with the app's lifetime context. Failures
// are logged; superseded loads and cancellation are not failures.
func (a *App) Go(name string, fn func(ctx context.Context) error) bool {
	ok := a.tasks.TryGo(func() error {
		err := fn(a.ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, viewer.ErrSuperseded) {
			a.log.Warn("task failed", zap.String("task", name), zap.Error(err))
		}
		return nil
	})
	if !ok {
		a.log.Warn("too many background tasks", zap.String("task", name))
	}
	return ok
}

// pump processes pending input and updates the current screen.
func (a *App) pump() error {
	if a.input.Update() {
		return ErrQuit
	}
	for _, e := range a.input.Events() {
		if err := a.handle(e); err != nil {
			return err
		}
	}
	return a.screens.Update(a.ctx)
}

func (a *App) handle(e input.Event) error {
	switch e.Type {
	case input.EventWindowResize:
		w, h := a.win.GetDrawableSize()
		a.vp.Resize(viewport.Size{Width: w, Height: h})
		a.updateScale()
		a.overlayKey = ""
		return nil

	case input.EventMouseMove:
		dx, dy := e.DX*a.scale, e.DY*a.scale
		pan := a.input.IsButtonDown(input.ButtonRight) || a.input.IsButtonDown(input.ButtonMiddle) ||
			(a.input.IsButtonDown(input.ButtonLeft) && sdl.GetModState()&sdl.KMOD_SHIFT != 0)
		switch {
		case pan:
			a.vp.Pan(dx, dy)
		case a.input.IsButtonDown(input.ButtonLeft):
			a.vp.Rotate(dx, dy)
		}
		return nil

	case input.EventMouseWheel:
		a.vp.Zoom(e.DY)
		return nil

	case input.EventMouseDown:
		if e.Button == input.ButtonLeft && e.Clicks == 2 {
			x, y := float32(e.MouseX)*a.scale, float32(e.MouseY)*a.scale
			if p, ok := a.vp.PickPivot(x, y); ok {
				a.log.Debug("orbit pivot moved",
					zap.Float32("x", p.X), zap.Float32("y", p.Y), zap.Float32("z", p.Z))
			}
			return nil
		}

	case input.EventDrop:
		a.log.Info("file dropped", zap.String("path", e.Path))
		a.screens.Change(NewModelScreen(a, e.Path, false))
		return nil

	case input.EventKeyDown:
		switch e.Key {
		case sdl.SCANCODE_Q:
			return ErrQuit
		case sdl.SCANCODE_F:
			a.fit()
			return nil
		case sdl.SCANCODE_F12:
			a.shoot = true
			return nil
		}
	}
	return a.screens.HandleEvent(a.ctx, e)
}

// fit reframes the loaded model.
func (a *App) fit() {
	if facts, ok := a.viewer.Facts(); ok {
		a.vp.FitCameraTo(facts.Bounds)
	}
}

// present saves the frame if requested and shows it.
func (a *App) present() {
	if a.shoot {
		a.shoot = false
		pixels, w, h := a.rend.ReadPixels()
		path, err := a.capture.SavePixels(pixels, w, h)
		if err != nil {
			a.log.Warn("screenshot failed", zap.Error(err))
		} else {
			a.log.Info("screenshot saved", zap.String("path", path))
		}
	}
	a.win.SwapBuffers()
}

func (a *App) updateScale() {
	ww, _ := a.win.GetSize()
	dw, _ := a.win.GetDrawableSize()
	if ww > 0 && dw > 0 {
		a.scale = float32(dw) / float32(ww)
	}
}

func (a *App) onStatus(st viewer.Status) {
	fields := []zap.Field{zap.Stringer("state", st.State)}
	if st.State == viewer.Failed {
		fields = append(fields, zap.String("reason", st.Reason))
	}
	if st.State == viewer.Ready {
		fields = append(fields, zap.Int("vertices", st.Facts.Vertices), zap.Int("faces", st.Facts.Faces))
	}
	a.log.Debug("viewer status", fields...)
}

// showPanel pins a text panel, with an optional notice above it, to the
// top-left corner. The overlay is rebuilt only when its text changes.
func (a *App) showPanel(lines []string, notice string) {
	key := "panel\x00" + notice + "\x00" + strings.Join(lines, "\n")
	if key == a.overlayKey {
		return
	}
	a.overlayKey = key

	obj := viewport.NewImageObject("hud", panels(lines, notice))
	obj.Pinned = true
	a.setOverlay(obj)
}

// showImage fills the view with img and draws the panel over its corner.
func (a *App) showImage(imgKey string, img *image.RGBA, lines []string, notice string) {
	key := "image\x00" + imgKey + "\x00" + notice + "\x00" + strings.Join(lines, "\n")
	if key == a.overlayKey {
		return
	}
	a.overlayKey = key

	composed := texture.Compose(img, panels(lines, notice), image.Pt(viewport.OverlayMargin, viewport.OverlayMargin))
	a.setOverlay(viewport.NewImageObject(imgKey, composed))
}

func (a *App) setOverlay(obj *viewport.Object) {
	if err := a.vp.SetOverlay(obj); err != nil {
		a.log.Warn("overlay not shown", zap.Error(err))
	}
}

func panels(lines []string, notice string) *image.RGBA {
	var top *image.RGBA
	if notice != "" {
		top = texture.TextPanel([]string{notice, "Esc: dismiss"}, texture.NoticeColor)
	}
	return texture.Stack(viewport.OverlayMargin/2, top, texture.TextPanel(lines, texture.PanelBackground))
}
