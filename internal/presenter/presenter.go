// Package presenter decides which result views are available and active,
// and runs the user actions that reach the backend.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/logger"
	"github.com/Faultbox/liverscope/internal/viewer"
)

var (
	// ErrModeUnavailable is returned when selecting a tab the result lacks.
	ErrModeUnavailable = errors.New("presentation mode not available")
	// ErrRequestInFlight is returned when an action is already running.
	ErrRequestInFlight = errors.New("request already in flight")
	// ErrNotApplicable is returned for actions the result kind does not support.
	ErrNotApplicable = errors.New("action not applicable to this result")
)

// Mode is a presentation tab.
type Mode int

const (
	Metrics2D Mode = iota
	Visualization2D
	Model3D
)

func (m Mode) String() string {
	switch m {
	case Metrics2D:
		return "metrics"
	case Visualization2D:
		return "visualization"
	case Model3D:
		return "3d model"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Reconstructor requests a 3D model for a file.
type Reconstructor interface {
	Reconstruct(ctx context.Context, filename string) (*api.ReconstructionResult, error)
}

// Exporter downloads a model file.
type Exporter interface {
	Export(ctx context.Context, filename, format string) (*api.Blob, error)
}

// ModelLoader displays a mesh. *viewer.Viewer implements it.
type ModelLoader interface {
	Load(ctx context.Context, src viewer.Source) (viewer.Facts, error)
}

// Deps are the presenter's collaborators. Loader may be nil when no 3D
// view exists, in which case Model3D selection only switches the tab.
type Deps struct {
	Reconstructor Reconstructor
	Exporter      Exporter
	Loader        ModelLoader
}

// Notice is a dismissible user-visible message.
type Notice struct {
	Message string
	Err     error
}

// Presenter is safe for concurrent use.
type Presenter struct {
	mu     sync.Mutex
	result Result
	deps   Deps
	log    *zap.Logger

	active     Mode
	modelReady bool // A reconstruction request completed
	model      *api.Reconstruction
	loaded     *api.Reconstruction // Model last handed to the loader
	inFlight   bool
	notice     *Notice
}

// New creates a presenter for result.
func New(result Result, deps Deps) (*Presenter, error) {
	p := &Presenter{result: result, deps: deps, log: logger.Named("presenter")}
	switch r := result.(type) {
	case *SingleFileResult:
		p.active = Metrics2D
	case *SeriesResult:
		p.active = Model3D
		p.modelReady = true
		p.model = &r.Reconstruction
	default:
		return nil, fmt.Errorf("presenter: unsupported result %T", result)
	}
	return p, nil
}

// Result returns the presented result.
func (p *Presenter) Result() Result {
	return p.result
}

// Tabs returns the available modes in display order.
func (p *Presenter) Tabs() []Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tabs()
}

func (p *Presenter) tabs() []Mode {
	switch p.result.(type) {
	case *SeriesResult:
		return []Mode{Model3D}
	default:
		tabs := []Mode{Metrics2D, Visualization2D}
		if p.modelReady {
			tabs = append(tabs, Model3D)
		}
		return tabs
	}
}

// Available reports whether mode can be selected.
func (p *Presenter) Available(mode Mode) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available(mode)
}

func (p *Presenter) available(mode Mode) bool {
	for _, m := range p.tabs() {
		if m == mode {
			return true
		}
	}
	return false
}

// Active returns the selected mode.
func (p *Presenter) Active() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Model returns the reconstruction received so far, if any.
func (p *Presenter) Model() (*api.Reconstruction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model, p.model != nil
}

// Select activates mode. It never calls the backend: choosing Model3D
// hands the already received mesh to the loader, once per model.
func (p *Presenter) Select(ctx context.Context, mode Mode) error {
	p.mu.Lock()
	if !p.available(mode) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModeUnavailable, mode)
	}
	p.active = mode
	model := p.model
	needLoad := mode == Model3D && p.deps.Loader != nil && model != nil && p.loaded != model
	if needLoad {
		p.loaded = model
	}
	p.mu.Unlock()

	if !needLoad {
		return nil
	}
	return p.load(ctx, model)
}

// load hands model to the loader. p.loaded must already point at model.
func (p *Presenter) load(ctx context.Context, model *api.Reconstruction) error {
	src := viewer.Source{Base64: model.STLBase64, URL: model.ModelURL}
	_, err := p.deps.Loader.Load(ctx, src)
	if errors.Is(err, viewer.ErrSuperseded) {
		return nil
	}
	if err != nil {
		// Allow a retry on the next selection.
		p.mu.Lock()
		if p.loaded == model {
			p.loaded = nil
		}
		p.mu.Unlock()
		return fmt.Errorf("loading model: %w", err)
	}
	return nil
}

// CreateModel asks the backend to reconstruct the file. On success
// Model3D becomes available; it does not switch tabs. When Model3D is
// already active the new mesh replaces the shown one. Failures become a
// notice and leave the current state untouched.
func (p *Presenter) CreateModel(ctx context.Context) error {
	single, ok := p.result.(*SingleFileResult)
	if !ok {
		return ErrNotApplicable
	}
	if err := p.begin(); err != nil {
		return err
	}

	res, err := p.deps.Reconstructor.Reconstruct(ctx, single.Filename)

	p.mu.Lock()
	p.inFlight = false
	if err != nil {
		p.notice = &Notice{Message: "3D reconstruction failed: " + userMessage(err), Err: err}
		p.mu.Unlock()
		p.log.Warn("reconstruction failed", zap.String("file", single.Filename), zap.Error(err))
		return err
	}

	rec := res.Reconstruction
	model := &rec
	p.model = model
	p.modelReady = true
	reload := p.active == Model3D && p.deps.Loader != nil
	if reload {
		p.loaded = model
	}
	p.mu.Unlock()

	p.log.Info("reconstruction ready",
		zap.String("file", single.Filename),
		zap.Int("vertices", rec.MeshInfo.NumVertices),
		zap.Bool("payload", rec.HasModel()))

	if !reload {
		return nil
	}
	return p.load(ctx, model)
}

// Export downloads the model in format and writes it into dir. It returns
// the written path.
func (p *Presenter) Export(ctx context.Context, format, dir string) (string, error) {
	p.mu.Lock()
	ready := p.modelReady
	p.mu.Unlock()
	if !ready {
		return "", fmt.Errorf("%w: no 3D model yet", ErrModeUnavailable)
	}
	if err := p.begin(); err != nil {
		return "", err
	}
	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	blob, err := p.deps.Exporter.Export(ctx, p.result.ID(), format)
	if err == nil {
		var path string
		path, err = writeBlob(dir, blob)
		if err == nil {
			p.log.Info("model exported", zap.String("path", path), zap.Int("bytes", len(blob.Data)))
			return path, nil
		}
	}

	p.mu.Lock()
	p.notice = &Notice{Message: "export failed: " + userMessage(err), Err: err}
	p.mu.Unlock()
	return "", err
}

func writeBlob(dir string, blob *api.Blob) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(blob.Filename))
	if err := os.WriteFile(path, blob.Data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Presenter) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight {
		return ErrRequestInFlight
	}
	p.inFlight = true
	return nil
}

// Busy reports whether a backend request is running.
func (p *Presenter) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Notice returns the pending notice, if any.
func (p *Presenter) Notice() (Notice, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notice == nil {
		return Notice{}, false
	}
	return *p.notice, true
}

// DismissNotice clears the pending notice.
func (p *Presenter) DismissNotice() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = nil
}

// userMessage prefers the backend's own message text.
func userMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
