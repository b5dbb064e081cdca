package app

import (
	"context"
	"errors"
	"image"
	"strconv"
	"sync"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/engine/input"
	"github.com/Faultbox/liverscope/internal/engine/texture"
	"github.com/Faultbox/liverscope/internal/presenter"
	"github.com/Faultbox/liverscope/internal/review"
)

// singleOverlay keys the decoded overlay of a single-file result.
const singleOverlay = -1

var modeKeys = map[sdl.Scancode]presenter.Mode{
	sdl.SCANCODE_1: presenter.Metrics2D,
	sdl.SCANCODE_2: presenter.Visualization2D,
	sdl.SCANCODE_3: presenter.Model3D,
}

// ResultScreen presents a segmentation or reconstruction result through
// the presenter's tabs. Series results with per-slice segmentation can
// additionally be paged slice by slice.
type ResultScreen struct {
	app          *App
	p            *presenter.Presenter
	exportDir    string
	exportFormat string

	reviewing bool
	images    map[int]*image.RGBA // Decoded overlays; nil marks undecodable

	mu       sync.Mutex
	exported string
}

// NewResultScreen creates a screen for p. Exports are written to dir.
func NewResultScreen(a *App, p *presenter.Presenter, exportDir, exportFormat string) *ResultScreen {
	return &ResultScreen{
		app:          a,
		p:            p,
		exportDir:    exportDir,
		exportFormat: exportFormat,
		images:       make(map[int]*image.RGBA),
	}
}

// Enter loads the model when the result opens on the 3D tab.
func (s *ResultScreen) Enter(ctx context.Context) error {
	s.app.win.SetTitle("LiverScope - " + s.p.Result().ID())
	if s.p.Active() == presenter.Model3D {
		s.selectMode(ctx, presenter.Model3D)
	}
	return nil
}

// Exit implements Screen.
func (s *ResultScreen) Exit() error {
	return nil
}

// HandleEvent maps keys to presenter and review operations.
func (s *ResultScreen) HandleEvent(ctx context.Context, e input.Event) error {
	if e.Type != input.EventKeyDown {
		return nil
	}
	if mode, ok := modeKeys[e.Key]; ok {
		s.selectMode(ctx, mode)
		return nil
	}

	rv := s.review()
	switch e.Key {
	case sdl.SCANCODE_ESCAPE:
		if _, ok := s.p.Notice(); ok {
			s.p.DismissNotice()
			return nil
		}
		if s.reviewing {
			s.reviewing = false
			return nil
		}
		return ErrQuit

	case sdl.SCANCODE_C:
		s.app.Go("reconstruct", s.p.CreateModel)

	case sdl.SCANCODE_E:
		s.app.Go("export", func(ctx context.Context) error {
			path, err := s.p.Export(ctx, s.exportFormat, s.exportDir)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.exported = path
			s.mu.Unlock()
			return nil
		})

	case sdl.SCANCODE_S:
		if rv != nil {
			s.reviewing = !s.reviewing
		}

	case sdl.SCANCODE_LEFT, sdl.SCANCODE_RIGHT, sdl.SCANCODE_N, sdl.SCANCODE_P, sdl.SCANCODE_HOME, sdl.SCANCODE_END:
		if rv == nil {
			return nil
		}
		s.reviewing = true
		navigate(rv, e.Key)
	}
	return nil
}

// navigate applies a navigation key to rv.
func navigate(rv *review.Review, key sdl.Scancode) {
	switch key {
	case sdl.SCANCODE_LEFT:
		rv.Step(review.Previous)
	case sdl.SCANCODE_RIGHT:
		rv.Step(review.Next)
	case sdl.SCANCODE_P:
		rv.StepToVisualized(review.Previous)
	case sdl.SCANCODE_N:
		rv.StepToVisualized(review.Next)
	case sdl.SCANCODE_HOME:
		rv.GoTo(0)
	case sdl.SCANCODE_END:
		rv.GoTo(rv.Len() - 1)
	}
}

// selectMode switches tabs. Model3D may decode a mesh, so it runs in the
// background.
func (s *ResultScreen) selectMode(ctx context.Context, mode presenter.Mode) {
	s.reviewing = false
	if mode == presenter.Model3D {
		s.app.Go("select model", func(ctx context.Context) error {
			return s.p.Select(ctx, mode)
		})
		return
	}
	if err := s.p.Select(ctx, mode); err != nil && !errors.Is(err, presenter.ErrModeUnavailable) {
		s.app.log.Warn("tab not selected", zap.Stringer("mode", mode), zap.Error(err))
	}
}

// Update rebuilds the overlay for the active tab.
func (s *ResultScreen) Update() error {
	notice := ""
	if n, ok := s.p.Notice(); ok {
		notice = n.Message
	}

	header := []string{tabLine(s.p.Tabs(), s.p.Active())}
	if s.p.Busy() {
		header = append(header, "Working...")
	}

	switch r := s.p.Result().(type) {
	case *presenter.SingleFileResult:
		s.updateSingle(r, header, notice)
	case *presenter.SeriesResult:
		s.updateSeries(r, header, notice)
	}
	return nil
}

func (s *ResultScreen) updateSingle(r *presenter.SingleFileResult, header []string, notice string) {
	switch s.p.Active() {
	case presenter.Visualization2D:
		img := s.overlay(singleOverlay, r.Segmentation.Visualization)
		if img == nil {
			s.app.showPanel(append(header, "No visualization for this file", "1/2/3: tabs  Q: quit"), notice)
			return
		}
		s.app.showImage(r.Filename, img, append(header, r.Filename), notice)

	case presenter.Model3D:
		rec, _ := s.p.Model()
		lines := append(header, modelLines(s.app.viewer.Status(), rec)...)
		s.app.showPanel(append(lines, s.exportLine(), controlsHelp), notice)

	default:
		lines := append(header, segmentationLines(r.Filename, r.Segmentation)...)
		if !s.p.Available(presenter.Model3D) {
			lines = append(lines, "C: create 3D model")
		}
		s.app.showPanel(append(lines, "1/2/3: tabs  Q: quit"), notice)
	}
}

func (s *ResultScreen) updateSeries(r *presenter.SeriesResult, header []string, notice string) {
	rv := r.Review
	if s.reviewing && rv != nil {
		cur := rv.Current()
		lines := append(header, reviewLines(rv)...)
		lines = append(lines, "Left/Right: step  N/P: next/prev overlay  S/Esc: back to model")
		if img := s.overlay(cur.Index, cur.Overlay); img != nil {
			s.app.showImage(sliceKey(cur.Index), img, lines, notice)
			return
		}
		s.app.showPanel(append(lines, "No overlay for this slice"), notice)
		return
	}

	rec, _ := s.p.Model()
	lines := append(header, seriesLines(r)...)
	lines = append(lines, modelLines(s.app.viewer.Status(), rec)...)
	if rv != nil {
		lines = append(lines, "S: review slices")
	}
	s.app.showPanel(append(lines, s.exportLine(), controlsHelp), notice)
}

func (s *ResultScreen) exportLine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exported != "" {
		return "Exported to " + s.exported
	}
	return "E: export " + s.exportFormat
}

// overlay decodes and caches a base64 overlay. It returns nil when there
// is none or it cannot be decoded.
func (s *ResultScreen) overlay(key int, b64 string) *image.RGBA {
	if b64 == "" {
		return nil
	}
	if img, ok := s.images[key]; ok {
		return img
	}
	img, err := texture.DecodeBase64(b64)
	if err != nil {
		s.app.log.Warn("overlay unreadable", zap.Int("slice", key), zap.Error(err))
	}
	s.images[key] = img
	return img
}

func (s *ResultScreen) review() *review.Review {
	if r, ok := s.p.Result().(*presenter.SeriesResult); ok {
		return r.Review
	}
	return nil
}

func sliceKey(i int) string {
	return "slice-" + strconv.Itoa(i)
}
