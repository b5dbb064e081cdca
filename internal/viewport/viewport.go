// Package viewport owns the 3D scene, camera, lights and interaction state
// of the model viewer, and drives the render loop against a Backend.
//
// All Backend calls happen on the goroutine running the loop. Other
// goroutines only record intent (content swaps, resizes, camera input)
// under the viewport mutex; the next frame applies it.
package viewport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/engine/camera"
	"github.com/Faultbox/liverscope/internal/engine/guides"
	"github.com/Faultbox/liverscope/internal/engine/picking"
	"github.com/Faultbox/liverscope/internal/logger"
	"github.com/Faultbox/liverscope/pkg/math"
	"github.com/Faultbox/liverscope/pkg/mesh"
)

var (
	// ErrLoopRunning is returned when a second render loop is started.
	ErrLoopRunning = errors.New("render loop already running")
	// ErrClosed is returned by operations on a closed viewport.
	ErrClosed = errors.New("viewport closed")
)

// Backend draws frames and owns GPU resources. Every method is called
// from the render loop goroutine, or from Close when no loop runs.
type Backend interface {
	Upload(obj *Object) error
	Release(obj *Object) error
	Resize(size Size)
	Draw(frame *Frame) error
	Close() error
}

// Options configure camera, controls and scene helpers.
type Options struct {
	FOV             float32 // Vertical, degrees
	Near            float32
	Far             float32
	InitialDistance float32
	Damping         float32
	FitMargin       float32

	ShowGrid   bool
	ShowAxes   bool
	ShowBounds bool
}

// DefaultOptions returns the standard viewer setup.
func DefaultOptions() Options {
	return Options{
		FOV:             75,
		Near:            0.1,
		Far:             1000,
		InitialDistance: 100,
		Damping:         0.05,
		FitMargin:       1.5,
		ShowGrid:        true,
		ShowAxes:        true,
	}
}

// Viewport is a live 3D view session.
type Viewport struct {
	mu      sync.Mutex
	backend Backend
	opts    Options
	log     *zap.Logger

	size    Size
	resized bool

	camera   *camera.Perspective
	controls *camera.OrbitControls
	ambient  AmbientLight
	sun      DirectionalLight

	guides  []*Object
	content *Object
	bounds  *Object
	overlay *Object

	uploaded map[*Object]bool
	trash    []*Object

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	err     error // Teardown result
}

// New creates a viewport drawing into backend at the given size.
func New(backend Backend, size Size, opts Options) (*Viewport, error) {
	if backend == nil {
		return nil, errors.New("viewport: nil backend")
	}
	if !size.valid() {
		return nil, fmt.Errorf("viewport: invalid size %dx%d", size.Width, size.Height)
	}

	v := &Viewport{
		backend:  backend,
		opts:     opts,
		log:      logger.Named("viewport"),
		size:     size,
		resized:  true,
		camera:   camera.NewPerspective(opts.FOV, size.Aspect(), opts.Near, opts.Far, opts.InitialDistance),
		controls: camera.NewOrbitControls(opts.Damping),
		ambient:  AmbientLight{Color: [3]float32{1, 1, 1}, Intensity: 0.4},
		sun: DirectionalLight{
			Color:     [3]float32{1, 1, 1},
			Intensity: 0.8,
			Direction: math.Vec3{X: 1, Y: 1, Z: 1}.Normalize(),
		},
		uploaded: make(map[*Object]bool),
	}

	if opts.ShowGrid {
		v.guides = append(v.guides, NewLinesObject("grid", guides.Grid(guides.GridSize, guides.GridDivisions)))
	}
	if opts.ShowAxes {
		v.guides = append(v.guides, NewLinesObject("axes", guides.Axes(guides.AxesLength)))
	}
	return v, nil
}

// SetContent replaces the displayed mesh. nil clears it. The previous
// object is released before the new one is uploaded on the next frame.
func (v *Viewport) SetContent(obj *Object) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if obj == v.content {
		return nil
	}

	v.discard(v.content)
	v.discard(v.bounds)
	v.content, v.bounds = obj, nil

	if obj != nil && obj.Mesh != nil && v.opts.ShowBounds {
		v.bounds = NewLinesObject("bounds", guides.BBox(obj.Mesh.Bounds(), 0))
	}
	return nil
}

// Content returns the displayed mesh object, if any.
func (v *Viewport) Content() *Object {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.content
}

// SetOverlay replaces the screen-space image. nil clears it.
func (v *Viewport) SetOverlay(obj *Object) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if obj == v.overlay {
		return nil
	}
	v.discard(v.overlay)
	v.overlay = obj
	return nil
}

// discard queues obj for release on the next frame. Caller holds mu.
func (v *Viewport) discard(obj *Object) {
	if obj == nil {
		return
	}
	if v.uploaded[obj] {
		v.trash = append(v.trash, obj)
	}
	delete(v.uploaded, obj)
}

// Resize records a new drawable size. The camera aspect changes now; the
// backend is resized on the next frame.
func (v *Viewport) Resize(size Size) {
	if !size.valid() {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if size == v.size {
		return
	}
	v.size = size
	v.resized = true
	v.camera.SetAspect(size.Width, size.Height)
}

// Size returns the current drawable size.
func (v *Viewport) Size() Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

// FitCameraTo frames bounds: the camera keeps its viewing direction and
// moves to maxDim / tan(fov/2) * margin from the box centre, which becomes
// the orbit pivot. It returns the new distance.
func (v *Viewport) FitCameraTo(b mesh.Bounds) float32 {
	v.mu.Lock()
	defer v.mu.Unlock()

	dir := v.camera.Position.Sub(v.controls.Target).Normalize()
	if dir.IsZero() {
		dir = math.Vec3{Z: 1}
	}

	dist := v.camera.FitDistance(b.MaxDimension(), v.opts.FitMargin)
	if dist <= 0 {
		dist = v.opts.InitialDistance
	}

	center := b.Center()
	v.controls.Retarget(center)
	v.camera.Position = center.Add(dir.Scale(dist))

	// Keep the far side of large models inside the frustum.
	if need := dist + b.MaxDimension(); need > v.camera.Far {
		v.camera.Far = need * 2
	} else {
		v.camera.Far = v.opts.Far
	}

	v.log.Debug("camera fitted",
		zap.Float32("distance", dist),
		zap.Float32("maxDim", b.MaxDimension()))
	return dist
}

// CameraPosition returns the camera position and the orbit target.
func (v *Viewport) CameraPosition() (position, target math.Vec3) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.camera.Position, v.controls.Target
}

// PickPivot casts a ray through pixel (x, y) and, when it hits the
// displayed mesh, moves the orbit pivot to the hit point.
func (v *Viewport) PickPivot(x, y float32) (math.Vec3, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.content == nil || v.content.Mesh == nil {
		return math.Vec3{}, false
	}

	ray := picking.ScreenRay(v.camera, v.controls.Target, x, y, v.size.Width, v.size.Height)
	t, ok := ray.IntersectMesh(v.content.Mesh)
	if !ok {
		return math.Vec3{}, false
	}
	p := ray.At(t)
	v.controls.Retarget(p)
	v.log.Debug("pivot picked", zap.Float32("distance", t))
	return p, true
}

// Rotate orbits by a pointer drag in pixels.
func (v *Viewport) Rotate(dx, dy float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls.Rotate(dx, dy, v.size.Height)
}

// Pan slides the view by a pointer drag in pixels.
func (v *Viewport) Pan(dx, dy float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls.Pan(dx, dy, v.camera, v.size.Height)
}

// Zoom dollies by wheel steps; positive moves closer.
func (v *Viewport) Zoom(steps float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls.Zoom(steps)
}

// RenderFrame applies pending changes and draws one frame. It must be
// called on the backend's thread; Run calls it for every tick.
func (v *Viewport) RenderFrame() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	var errs error
	for _, obj := range v.trash {
		errs = multierr.Append(errs, v.backend.Release(obj))
	}
	v.trash = v.trash[:0]

	if v.resized {
		v.backend.Resize(v.size)
		v.resized = false
	}

	for _, obj := range v.guides {
		errs = multierr.Append(errs, v.ensureUploaded(obj))
	}
	if err := v.ensureUploaded(v.content); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("uploading %q: %w", v.content.Name, err))
		v.content, v.bounds = nil, nil
	}
	if err := v.ensureUploaded(v.bounds); err != nil {
		errs = multierr.Append(errs, err)
		v.bounds = nil
	}
	if err := v.ensureUploaded(v.overlay); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("uploading overlay: %w", err))
		v.overlay = nil
	}

	v.controls.Update(v.camera)

	frame := &Frame{
		Size:           v.size,
		View:           v.camera.ViewMatrix(v.controls.Target),
		Projection:     v.camera.ProjectionMatrix(),
		CameraPosition: v.camera.Position,
		Ambient:        v.ambient,
		Sun:            v.sun,
		Guides:         v.guides,
		Content:        v.content,
		Bounds:         v.bounds,
		Overlay:        v.overlay,
	}
	if v.overlay != nil && v.overlay.Image != nil {
		if v.overlay.Pinned {
			frame.OverlayRect = PinRect(v.overlay.Image.Bounds().Size())
		} else {
			frame.OverlayRect = FitRect(v.overlay.Image.Bounds().Size(), v.size)
		}
	}
	return multierr.Append(errs, v.backend.Draw(frame))
}

// ensureUploaded uploads obj once. Caller holds mu.
func (v *Viewport) ensureUploaded(obj *Object) error {
	if obj == nil || v.uploaded[obj] {
		return nil
	}
	if err := v.backend.Upload(obj); err != nil {
		return err
	}
	v.uploaded[obj] = true
	return nil
}

// Run drives the render loop on the calling goroutine until ctx is done,
// the clock returns an error, or Close is called. It tears the scene down
// on this goroutine when Close ended it. Close must not be called from
// inside Clock.Wait.
func (v *Viewport) Run(ctx context.Context, clock Clock) error {
	loopCtx, err := v.begin(ctx)
	if err != nil {
		return err
	}
	return v.loop(loopCtx, clock)
}

// Start runs the render loop on a new goroutine. The backend must accept
// calls from that goroutine.
func (v *Viewport) Start(clock Clock) error {
	loopCtx, err := v.begin(context.Background())
	if err != nil {
		return err
	}
	go func() {
		if err := v.loop(loopCtx, clock); err != nil {
			v.log.Warn("render loop ended", zap.Error(err))
		}
	}()
	return nil
}

// Running reports whether a render loop is active.
func (v *Viewport) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}

func (v *Viewport) begin(parent context.Context) (context.Context, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrClosed
	}
	if v.running {
		return nil, ErrLoopRunning
	}
	ctx, cancel := context.WithCancel(parent)
	v.running = true
	v.cancel = cancel
	v.done = make(chan struct{})
	return ctx, nil
}

func (v *Viewport) loop(ctx context.Context, clock Clock) error {
	var result error
	for {
		if err := clock.Wait(ctx); err != nil {
			result = err
			break
		}
		if err := v.RenderFrame(); err != nil {
			if errors.Is(err, ErrClosed) {
				break
			}
			v.log.Warn("frame failed", zap.Error(err))
		}
	}

	v.mu.Lock()
	closing := v.closed
	v.cancel()
	done := v.done
	v.mu.Unlock()

	if closing {
		err := v.teardown()
		result = nil
		v.mu.Lock()
		v.err = err
		v.mu.Unlock()
	}

	v.mu.Lock()
	v.running = false
	v.mu.Unlock()
	close(done)
	return result
}

// Close stops the render loop, releases every GPU resource and closes
// the backend. It is safe to call more than once.
func (v *Viewport) Close() error {
	v.mu.Lock()
	if v.closed {
		running, done := v.running, v.done
		v.mu.Unlock()
		if running {
			<-done
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.err
	}
	v.closed = true

	if v.running {
		v.cancel()
		done := v.done
		v.mu.Unlock()
		<-done
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.err
	}
	v.mu.Unlock()

	err := v.teardown()
	v.mu.Lock()
	v.err = err
	v.mu.Unlock()
	return err
}

// teardown releases everything and closes the backend.
func (v *Viewport) teardown() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var errs error
	release := func(obj *Object) {
		if obj != nil && v.uploaded[obj] {
			errs = multierr.Append(errs, v.backend.Release(obj))
			delete(v.uploaded, obj)
		}
	}
	for _, obj := range v.trash {
		errs = multierr.Append(errs, v.backend.Release(obj))
	}
	v.trash = nil
	release(v.content)
	release(v.bounds)
	release(v.overlay)
	for _, g := range v.guides {
		release(g)
	}
	v.content, v.bounds, v.overlay = nil, nil, nil

	errs = multierr.Append(errs, v.backend.Close())
	v.log.Debug("viewport closed", zap.Error(errs))
	return errs
}
