package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/engine/input"
	"github.com/Faultbox/liverscope/internal/presenter"
	"github.com/Faultbox/liverscope/internal/review"
	"github.com/Faultbox/liverscope/internal/viewer"
	"github.com/Faultbox/liverscope/pkg/math"
	"github.com/Faultbox/liverscope/pkg/mesh"
)

type fakeScreen struct {
	name   string
	log    *[]string
	events int
}

func (s *fakeScreen) Enter(context.Context) error { *s.log = append(*s.log, "enter "+s.name); return nil }
func (s *fakeScreen) Exit() error                 { *s.log = append(*s.log, "exit "+s.name); return nil }
func (s *fakeScreen) Update() error               { *s.log = append(*s.log, "update "+s.name); return nil }
func (s *fakeScreen) HandleEvent(context.Context, input.Event) error {
	s.events++
	return nil
}

func TestManagerTransitions(t *testing.T) {
	var log []string
	a := &fakeScreen{name: "a", log: &log}
	b := &fakeScreen{name: "b", log: &log}
	m := NewManager()
	ctx := context.Background()

	if err := m.Update(ctx); err != nil {
		t.Fatalf("Update with no screen: %v", err)
	}

	m.Change(a)
	m.Update(ctx)
	m.Change(b)
	m.Update(ctx)
	m.HandleEvent(ctx, input.Event{Type: input.EventKeyDown})
	m.Close()

	want := []string{"enter a", "update a", "exit a", "enter b", "update b", "exit b"}
	if strings.Join(log, ",") != strings.Join(want, ",") {
		t.Errorf("log = %v, want %v", log, want)
	}
	if b.events != 1 || a.events != 0 {
		t.Errorf("events a=%d b=%d, want 0 and 1", a.events, b.events)
	}
	if m.Current() != nil {
		t.Error("Close should clear the current screen")
	}
}

func TestTabLine(t *testing.T) {
	got := tabLine([]presenter.Mode{presenter.Metrics2D, presenter.Visualization2D}, presenter.Visualization2D)
	want := "1 metrics  [2 visualization]"
	if got != want {
		t.Errorf("tabLine = %q, want %q", got, want)
	}
}

func TestSegmentationLines(t *testing.T) {
	seg := api.Segmentation{
		Success:        true,
		MaskShape:      []int{512, 256},
		Metrics:        api.SliceMetrics{LiverAreaRatio: 0.125, LiverPixels: 16384, TotalPixels: 131072},
		MaskAreaPixels: 16384,
	}
	got := strings.Join(segmentationLines("a.dcm", seg), "\n")
	for _, want := range []string{"File: a.dcm", "Liver area: 12.50%", "Liver pixels: 16384", "Mask size: 256x512"} {
		if !strings.Contains(got, want) {
			t.Errorf("lines missing %q:\n%s", want, got)
		}
	}

	failed := segmentationLines("b.dcm", api.Segmentation{Error: "model not loaded"})
	if last := failed[len(failed)-1]; last != "Segmentation failed: model not loaded" {
		t.Errorf("failed line = %q", last)
	}
}

func TestModelLines(t *testing.T) {
	tests := []struct {
		name string
		st   viewer.Status
		want string
	}{
		{"idle", viewer.Status{}, "No model loaded"},
		{"loading", viewer.Status{State: viewer.Loading}, "Loading model..."},
		{"failed", viewer.Status{State: viewer.Failed, Reason: "truncated"}, "Model failed: truncated"},
		{
			"ready",
			viewer.Status{State: viewer.Ready, Facts: viewer.Facts{
				Vertices: 4, Faces: 4,
				Bounds: mesh.Bounds{Min: math.Vec3{X: -1, Y: -2, Z: -3}, Max: math.Vec3{X: 1, Y: 2, Z: 3}},
			}},
			"Size: 2.0 x 4.0 x 6.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(modelLines(tt.st, nil), "\n")
			if !strings.Contains(got, tt.want) {
				t.Errorf("lines = %q, want %q", got, tt.want)
			}
		})
	}

	rec := &api.Reconstruction{Metrics: api.ModelMetrics{VolumeML: 1450.25, SurfaceAreaCM2: 812.4}}
	got := strings.Join(modelLines(viewer.Status{}, rec), "\n")
	if !strings.Contains(got, "Volume: 1450.2 mL") && !strings.Contains(got, "Volume: 1450.3 mL") {
		t.Errorf("volume missing: %q", got)
	}
	if !strings.Contains(got, "Surface: 812.4 cm2") {
		t.Errorf("surface missing: %q", got)
	}
}

func series(t *testing.T) *review.Review {
	t.Helper()
	rv, err := review.New([]review.SliceResult{
		{Index: 0, Success: true, AreaRatio: 0.1, LiverPixels: 100, Overlay: "a"},
		{Index: 1, Success: false},
		{Index: 2, Success: true, AreaRatio: 0.3, LiverPixels: 300},
		{Index: 3, Success: true, AreaRatio: 0.2, LiverPixels: 200, Overlay: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return rv
}

func TestReviewLines(t *testing.T) {
	rv := series(t)
	got := strings.Join(reviewLines(rv), "\n")
	for _, want := range []string{"Slice 1 / 4", "Segmented: 3  With overlay: 2", "Total liver pixels: 600", "Mean liver area: 15.00%"} {
		if !strings.Contains(got, want) {
			t.Errorf("lines missing %q:\n%s", want, got)
		}
	}

	rv.GoTo(1)
	lines := reviewLines(rv)
	if last := lines[len(lines)-1]; last != "This slice: segmentation failed" {
		t.Errorf("last line = %q", last)
	}
}

func TestNavigate(t *testing.T) {
	rv := series(t)
	steps := []struct {
		key  sdl.Scancode
		want int
	}{
		{sdl.SCANCODE_RIGHT, 1},
		{sdl.SCANCODE_N, 3},
		{sdl.SCANCODE_N, 0},
		{sdl.SCANCODE_P, 3},
		{sdl.SCANCODE_HOME, 0},
		{sdl.SCANCODE_LEFT, 0},
		{sdl.SCANCODE_END, 3},
	}
	for i, s := range steps {
		navigate(rv, s.key)
		if rv.Index() != s.want {
			t.Fatalf("step %d: index = %d, want %d", i, rv.Index(), s.want)
		}
	}
}

func TestSleepUntil(t *testing.T) {
	if err := sleepUntil(context.Background(), time.Now().Add(-time.Second)); err != nil {
		t.Errorf("past deadline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepUntil(ctx, time.Now().Add(time.Hour)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: %v", err)
	}

	start := time.Now()
	if err := sleepUntil(context.Background(), start.Add(20*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Error("returned too early")
	}
}

func TestPanelsStackNotice(t *testing.T) {
	plain := panels([]string{"one line"}, "")
	withNotice := panels([]string{"one line"}, "export failed")
	if withNotice.Bounds().Dy() <= plain.Bounds().Dy() {
		t.Errorf("notice should add height: %v vs %v", withNotice.Bounds(), plain.Bounds())
	}
}
