package viewport

import (
	"context"
	"errors"
	"fmt"
	"image"
	gomath "math"
	"sync"
	"testing"
	"time"

	"github.com/Faultbox/liverscope/pkg/math"
	"github.com/Faultbox/liverscope/pkg/mesh"
)

// recorder is a Backend that logs every call.
type recorder struct {
	mu        sync.Mutex
	events    []string
	frames    []*Frame
	uploadErr error
	closed    int
}

func (r *recorder) log(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) Upload(obj *Object) error {
	if r.uploadErr != nil && obj.Mesh != nil {
		return r.uploadErr
	}
	r.log("upload %s", obj.Name)
	obj.Handle = obj.Name
	return nil
}

func (r *recorder) Release(obj *Object) error {
	r.log("release %s", obj.Name)
	obj.Handle = nil
	return nil
}

func (r *recorder) Resize(size Size) {
	r.log("resize %dx%d", size.Width, size.Height)
}

func (r *recorder) Draw(f *Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	r.events = append(r.events, "draw")
	return nil
}

func (r *recorder) Close() error {
	r.log("close")
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) lastFrame() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// stepClock releases one frame per value sent on ticks.
type stepClock struct {
	ticks chan struct{}
}

func newStepClock() *stepClock {
	return &stepClock{ticks: make(chan struct{})}
}

func (c *stepClock) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticks:
		return nil
	}
}

func bareOptions() Options {
	opts := DefaultOptions()
	opts.ShowGrid = false
	opts.ShowAxes = false
	return opts
}

func triangle(name string, scale float32) *Object {
	m := &mesh.Mesh{
		Name:      name,
		Positions: []math.Vec3{{X: 0}, {X: scale}, {Y: scale}},
		Indices:   []uint32{0, 1, 2},
	}
	m.ComputeNormals()
	return NewMeshObject(m)
}

func indexOf(events []string, e string) int {
	for i, got := range events {
		if got == e {
			return i
		}
	}
	return -1
}

func TestNewDefaults(t *testing.T) {
	rec := &recorder{}
	v, err := New(rec, Size{Width: 1280, Height: 720}, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pos, target := v.CameraPosition()
	if pos != (math.Vec3{Z: 100}) || !target.IsZero() {
		t.Errorf("camera at %v looking at %v, want (0,0,100) -> origin", pos, target)
	}

	if err := v.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	f := rec.lastFrame()
	if len(f.Guides) != 2 {
		t.Errorf("expected grid and axes guides, got %d", len(f.Guides))
	}
	if f.Ambient.Intensity != 0.4 || f.Sun.Intensity != 0.8 {
		t.Errorf("lights = %+v / %+v", f.Ambient, f.Sun)
	}
	if f.Content != nil {
		t.Error("new viewport should have no content")
	}
	events := rec.snapshot()
	if indexOf(events, "resize 1280x720") < 0 || indexOf(events, "upload grid") < 0 {
		t.Errorf("events = %v", events)
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(nil, Size{Width: 1, Height: 1}, DefaultOptions()); err == nil {
		t.Error("expected error for nil backend")
	}
	if _, err := New(&recorder{}, Size{}, DefaultOptions()); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestSetContentReleasesBeforeUpload(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	v.SetContent(triangle("first", 1))
	v.RenderFrame()
	v.SetContent(triangle("second", 1))
	v.RenderFrame()

	events := rec.snapshot()
	rel := indexOf(events, "release first")
	up := indexOf(events, "upload second")
	if rel < 0 || up < 0 || rel > up {
		t.Fatalf("expected release first before upload second, got %v", events)
	}
	if got := rec.lastFrame().Content.Name; got != "second" {
		t.Errorf("frame content = %s, want second", got)
	}
}

func TestSetContentNeverUploadedIsNotReleased(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	v.SetContent(triangle("skipped", 1))
	v.SetContent(triangle("kept", 1))
	v.RenderFrame()

	events := rec.snapshot()
	if indexOf(events, "upload skipped") >= 0 || indexOf(events, "release skipped") >= 0 {
		t.Errorf("replaced-before-frame object touched the backend: %v", events)
	}
}

func TestSetContentNilClears(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	v.SetContent(triangle("mesh", 1))
	v.RenderFrame()
	v.SetContent(nil)
	v.RenderFrame()

	if rec.lastFrame().Content != nil {
		t.Error("content should be cleared")
	}
	if indexOf(rec.snapshot(), "release mesh") < 0 {
		t.Error("cleared mesh should be released")
	}
}

func TestShowBounds(t *testing.T) {
	rec := &recorder{}
	opts := bareOptions()
	opts.ShowBounds = true
	v, _ := New(rec, Size{Width: 100, Height: 100}, opts)

	v.SetContent(triangle("mesh", 2))
	v.RenderFrame()
	f := rec.lastFrame()
	if f.Bounds == nil || f.Bounds.Lines.Segments() != 12 {
		t.Fatalf("expected bbox wireframe, got %+v", f.Bounds)
	}

	v.SetContent(nil)
	v.RenderFrame()
	if rec.lastFrame().Bounds != nil {
		t.Error("bbox should go with its content")
	}
	if indexOf(rec.snapshot(), "release bounds") < 0 {
		t.Error("bbox wireframe should be released")
	}
}

func TestUploadFailureDropsContent(t *testing.T) {
	rec := &recorder{uploadErr: errors.New("out of memory")}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	v.SetContent(triangle("huge", 1))
	if err := v.RenderFrame(); err == nil {
		t.Fatal("expected upload error")
	}
	if v.Content() != nil {
		t.Error("failed content should be dropped")
	}
	if err := v.RenderFrame(); err != nil {
		t.Errorf("next frame should succeed, got %v", err)
	}
}

func TestResizeAppliedOnNextFrame(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())
	v.RenderFrame()

	v.Resize(Size{Width: 400, Height: 200})
	if indexOf(rec.snapshot(), "resize 400x200") >= 0 {
		t.Fatal("backend resized outside a frame")
	}
	v.RenderFrame()
	if indexOf(rec.snapshot(), "resize 400x200") < 0 {
		t.Fatal("backend not resized on next frame")
	}

	f := rec.lastFrame()
	if f.Size != (Size{Width: 400, Height: 200}) {
		t.Errorf("frame size = %v", f.Size)
	}
	// Projection x scale is f/aspect; aspect 2 halves it relative to y.
	if gomath.Abs(float64(f.Projection[0]*2-f.Projection[5])) > 1e-5 {
		t.Errorf("projection not updated for aspect 2: %v", f.Projection)
	}
}

func TestFitCameraTo(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	b := mesh.Bounds{Min: math.Vec3{X: -0.5, Y: -0.5, Z: -0.5}, Max: math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}}
	got := v.FitCameraTo(b)

	want := 1 / gomath.Tan(75*gomath.Pi/360) * 1.5
	if gomath.Abs(float64(got)-want) > 1e-3 {
		t.Errorf("distance = %f, want %f", got, want)
	}

	pos, target := v.CameraPosition()
	if !target.IsZero() {
		t.Errorf("target = %v, want origin", target)
	}
	if gomath.Abs(float64(pos.Z)-want) > 1e-3 || pos.X != 0 || pos.Y != 0 {
		t.Errorf("camera should stay on +Z axis, got %v", pos)
	}
}

func TestFitCameraToKeepsViewDirection(t *testing.T) {
	rec := &recorder{}
	opts := bareOptions()
	opts.Damping = 1
	v, _ := New(rec, Size{Width: 720, Height: 720}, opts)

	v.Rotate(-180, 0) // quarter turn to +X
	v.RenderFrame()

	b := mesh.Bounds{Min: math.Vec3{X: 9, Y: -1, Z: -1}, Max: math.Vec3{X: 11, Y: 1, Z: 1}}
	dist := v.FitCameraTo(b)
	pos, target := v.CameraPosition()

	if target != (math.Vec3{X: 10}) {
		t.Errorf("target = %v, want (10,0,0)", target)
	}
	if gomath.Abs(float64(pos.X-(10+dist))) > 1e-2 {
		t.Errorf("camera should look along -X, got %v", pos)
	}
}

func TestFitCameraToExtendsFarPlane(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	b := mesh.Bounds{Max: math.Vec3{X: 2000, Y: 2000, Z: 2000}}
	v.FitCameraTo(b)
	v.RenderFrame()

	// A far plane beyond 1000 changes the depth terms of the projection.
	def := math.Perspective(math.Radians(75), 1, 0.1, 1000)
	if rec.lastFrame().Projection[10] == def[10] {
		t.Error("far plane not extended for a large model")
	}
}

func TestPickPivot(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	if _, ok := v.PickPivot(50, 50); ok {
		t.Fatal("pick without content should miss")
	}

	m := &mesh.Mesh{
		Name:      "plate",
		Positions: []math.Vec3{{X: -10, Y: -10, Z: 5}, {X: 10, Y: -10, Z: 5}, {Y: 10, Z: 5}},
		Indices:   []uint32{0, 1, 2},
	}
	if err := v.SetContent(NewMeshObject(m)); err != nil {
		t.Fatalf("SetContent: %v", err)
	}

	if _, ok := v.PickPivot(0, 0); ok {
		t.Error("corner pixel should miss the plate")
	}
	_, target := v.CameraPosition()
	if !target.IsZero() {
		t.Errorf("miss moved target to %v", target)
	}

	p, ok := v.PickPivot(50, 50)
	if !ok {
		t.Fatal("centre pixel should hit the plate")
	}
	if gomath.Abs(float64(p.Z)-5) > 1e-3 || gomath.Abs(float64(p.X)) > 1e-3 || gomath.Abs(float64(p.Y)) > 1e-3 {
		t.Errorf("hit = %v, want (0, 0, 5)", p)
	}
	if _, target = v.CameraPosition(); target != p {
		t.Errorf("target = %v, want %v", target, p)
	}
}

func TestOverlayRect(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 800, Height: 400}, bareOptions())

	img := image.NewRGBA(image.Rect(0, 0, 512, 512))
	v.SetOverlay(NewImageObject("slice", img))
	v.RenderFrame()

	want := image.Rect(200, 0, 600, 400)
	if got := rec.lastFrame().OverlayRect; got != want {
		t.Errorf("OverlayRect = %v, want %v", got, want)
	}
}

func TestPinnedOverlayRect(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 800, Height: 400}, bareOptions())

	panel := NewImageObject("metrics", image.NewRGBA(image.Rect(0, 0, 120, 40)))
	panel.Pinned = true
	v.SetOverlay(panel)
	v.RenderFrame()

	want := image.Rect(OverlayMargin, OverlayMargin, OverlayMargin+120, OverlayMargin+40)
	if got := rec.lastFrame().OverlayRect; got != want {
		t.Errorf("OverlayRect = %v, want %v", got, want)
	}
}

func TestFitRect(t *testing.T) {
	tests := []struct {
		src  image.Point
		view Size
		want image.Rectangle
	}{
		{image.Pt(100, 50), Size{200, 200}, image.Rect(0, 50, 200, 150)},
		{image.Pt(50, 100), Size{200, 200}, image.Rect(50, 0, 150, 200)},
		{image.Pt(0, 100), Size{200, 200}, image.Rectangle{}},
	}
	for _, tt := range tests {
		if got := FitRect(tt.src, tt.view); got != tt.want {
			t.Errorf("FitRect(%v, %v) = %v, want %v", tt.src, tt.view, got, tt.want)
		}
	}
}

func TestRunAndClose(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, DefaultOptions())
	v.SetContent(triangle("mesh", 1))

	clock := newStepClock()
	errc := make(chan error, 1)
	go func() { errc <- v.Run(context.Background(), clock) }()

	clock.ticks <- struct{}{}
	clock.ticks <- struct{}{}

	if err := v.Run(context.Background(), clock); !errors.Is(err, ErrLoopRunning) {
		t.Errorf("second Run error = %v, want ErrLoopRunning", err)
	}

	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v after Close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	events := rec.snapshot()
	for _, want := range []string{"release mesh", "release grid", "release axes", "close"} {
		if indexOf(events, want) < 0 {
			t.Errorf("missing %q in %v", want, events)
		}
	}
	if events[len(events)-1] != "close" {
		t.Errorf("backend should close last, got %v", events)
	}

	if err := v.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if rec.closed != 1 {
		t.Errorf("backend closed %d times, want 1", rec.closed)
	}
	if v.Running() {
		t.Error("loop still marked running")
	}
	if err := v.SetContent(triangle("late", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("SetContent after Close = %v, want ErrClosed", err)
	}
}

func TestCloseWithoutLoop(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())
	v.SetContent(triangle("mesh", 1))
	v.RenderFrame()

	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if indexOf(rec.snapshot(), "release mesh") < 0 {
		t.Error("mesh not released")
	}
	if err := v.RenderFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("RenderFrame after Close = %v, want ErrClosed", err)
	}
	if err := v.Start(newStepClock()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- v.Run(ctx, newStepClock()) }()

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	if rec.closed != 0 {
		t.Error("cancelling the loop must not close the backend")
	}
	v.Close()
}

func TestStart(t *testing.T) {
	rec := &recorder{}
	v, _ := New(rec, Size{Width: 100, Height: 100}, bareOptions())

	clock := newStepClock()
	if err := v.Start(clock); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := v.Start(clock); !errors.Is(err, ErrLoopRunning) {
		t.Errorf("second Start = %v, want ErrLoopRunning", err)
	}
	clock.ticks <- struct{}{}
	v.Close()

	if indexOf(rec.snapshot(), "draw") < 0 {
		t.Error("no frame drawn")
	}
}

func TestTickerClock(t *testing.T) {
	c := NewTickerClock(1000)
	defer c.Stop()

	if err := c.Wait(context.Background()); err != nil {
		t.Errorf("Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewTickerClock(1)
	defer slow.Stop()
	if err := slow.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on cancelled ctx = %v", err)
	}
}
