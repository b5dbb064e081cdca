// Package viewer loads reconstructed liver meshes into a 3D viewport and
// tracks the load status shown to the user.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/logger"
	"github.com/Faultbox/liverscope/internal/viewport"
	"github.com/Faultbox/liverscope/pkg/math"
	"github.com/Faultbox/liverscope/pkg/mesh"
	"github.com/Faultbox/liverscope/pkg/stl"
)

var (
	// ErrEmptySource is returned when a load names no payload and no location.
	ErrEmptySource = errors.New("no mesh payload or location given")
	// ErrSuperseded is returned by a load that a newer load replaced.
	// It is not a failure and callers normally ignore it.
	ErrSuperseded = errors.New("load superseded by a newer request")
	// ErrClosed is returned by loads on a closed viewer.
	ErrClosed = errors.New("viewer closed")
	// ErrNoFetcher is returned for a location source without a Fetcher.
	ErrNoFetcher = errors.New("no fetcher configured for mesh locations")
)

// State is the viewer's load state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Facts summarize a loaded mesh.
type Facts struct {
	Vertices int
	Faces    int
	Bounds   mesh.Bounds // After centring
	Offset   math.Vec3   // Original centroid, subtracted from every vertex
}

// Status is a snapshot of the viewer. Reason is set when State is Failed.
type Status struct {
	State  State
	Reason string
	Facts  Facts
}

// Source names where a mesh comes from. The first non-empty field wins.
type Source struct {
	Payload []byte // Raw STL
	Base64  string // Base64 STL as sent in API responses
	URL     string // Retrieval location, needs a Fetcher
}

// Empty reports whether the source names nothing.
func (s Source) Empty() bool {
	return len(s.Payload) == 0 && s.Base64 == "" && s.URL == ""
}

// ContentHost displays one mesh at a time. *viewport.Viewport implements it.
type ContentHost interface {
	SetContent(obj *viewport.Object) error
	FitCameraTo(b mesh.Bounds) float32
	Close() error
}

// Fetcher retrieves a mesh from a location.
type Fetcher interface {
	Download(ctx context.Context, location string) ([]byte, error)
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithFetcher enables URL sources.
func WithFetcher(f Fetcher) Option {
	return func(v *Viewer) { v.fetcher = f }
}

// WithStatusHook registers fn to receive every status change. fn runs on
// the goroutine that caused the change, without viewer locks held.
func WithStatusHook(fn func(Status)) Option {
	return func(v *Viewer) { v.hook = fn }
}

// Viewer loads meshes into a ContentHost. The latest Load wins: a load
// that finishes after a newer one started is discarded.
type Viewer struct {
	mu      sync.Mutex
	host    ContentHost
	fetcher Fetcher
	hook    func(Status)
	log     *zap.Logger

	gen    uint64
	status Status
	closed bool
}

// New creates a viewer drawing into host. The viewer owns host and
// closes it on Close.
func New(host ContentHost, opts ...Option) *Viewer {
	v := &Viewer{host: host, log: logger.Named("viewer")}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Status returns the current status.
func (v *Viewer) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Facts returns the facts of the displayed mesh and whether one is ready.
func (v *Viewer) Facts() (Facts, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status.Facts, v.status.State == Ready
}

// Load replaces the displayed mesh with the one in src. The previous mesh
// is detached before decoding starts, so a failed load leaves the view
// empty. Decoding runs on the calling goroutine, never inside a frame.
func (v *Viewer) Load(ctx context.Context, src Source) (Facts, error) {
	gen, err := v.start(src)
	if err != nil {
		return Facts{}, err
	}

	m, err := v.decode(ctx, src)
	if err != nil {
		return Facts{}, v.fail(gen, err)
	}

	offset := m.Center()
	facts := Facts{
		Vertices: m.VertexCount(),
		Faces:    m.FaceCount(),
		Bounds:   m.Bounds(),
		Offset:   offset,
	}
	obj := viewport.NewMeshObject(m)

	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		return Facts{}, ErrSuperseded
	}
	if err := v.host.SetContent(obj); err != nil {
		v.mu.Unlock()
		return Facts{}, v.fail(gen, err)
	}
	v.host.FitCameraTo(facts.Bounds)
	v.status = Status{State: Ready, Facts: facts}
	st := v.status
	v.mu.Unlock()

	v.log.Info("mesh loaded",
		zap.String("name", m.Name),
		zap.Int("vertices", facts.Vertices),
		zap.Int("faces", facts.Faces))
	v.notify(st)
	return facts, nil
}

// start claims a new generation, enters Loading and detaches the
// previous mesh.
func (v *Viewer) start(src Source) (uint64, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, ErrClosed
	}
	v.gen++
	gen := v.gen

	if src.Empty() {
		v.status = Status{State: Failed, Reason: ErrEmptySource.Error()}
		st := v.status
		v.mu.Unlock()
		v.notify(st)
		return 0, ErrEmptySource
	}

	v.status = Status{State: Loading}
	err := v.host.SetContent(nil)
	st := v.status
	v.mu.Unlock()

	if err != nil {
		return 0, v.fail(gen, err)
	}
	v.notify(st)
	return gen, nil
}

// fail records err as the failure reason unless gen is stale.
func (v *Viewer) fail(gen uint64, err error) error {
	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		return ErrSuperseded
	}
	v.status = Status{State: Failed, Reason: err.Error()}
	st := v.status
	v.mu.Unlock()

	v.log.Warn("mesh load failed", zap.Error(err))
	v.notify(st)
	return err
}

func (v *Viewer) decode(ctx context.Context, src Source) (*mesh.Mesh, error) {
	switch {
	case len(src.Payload) > 0:
		return stl.Decode(src.Payload)
	case src.Base64 != "":
		return stl.DecodeBase64(src.Base64)
	default:
		if v.fetcher == nil {
			return nil, ErrNoFetcher
		}
		data, err := v.fetcher.Download(ctx, src.URL)
		if err != nil {
			return nil, fmt.Errorf("fetching mesh: %w", err)
		}
		return stl.Decode(data)
	}
}

func (v *Viewer) notify(st Status) {
	if v.hook != nil {
		v.hook(st)
	}
}

// Close detaches the mesh and closes the host. In-flight loads become
// stale. It is safe to call more than once.
func (v *Viewer) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.gen++
	v.status = Status{State: Idle}
	host := v.host
	v.mu.Unlock()

	detach := host.SetContent(nil)
	if errors.Is(detach, viewport.ErrClosed) {
		detach = nil
	}
	return multierr.Combine(detach, host.Close())
}
