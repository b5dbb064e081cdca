// Package renderer draws viewport frames with OpenGL 4.1.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/engine/shader"
	"github.com/Faultbox/liverscope/internal/engine/texture"
	"github.com/Faultbox/liverscope/internal/logger"
	"github.com/Faultbox/liverscope/internal/viewport"
)

// ErrEmptyObject is returned when an object carries nothing drawable.
var ErrEmptyObject = errors.New("object has no mesh, image or lines")

// Config holds renderer configuration.
type Config struct {
	Width      int
	Height     int
	Background [3]float32
}

// DefaultBackground is the light grey behind models.
var DefaultBackground = [3]float32{0.94, 0.94, 0.94}

// Renderer implements viewport.Backend. All methods must be called on the
// thread that owns the GL context.
type Renderer struct {
	config Config
	size   viewport.Size
	log    *zap.Logger

	meshProg    *shader.Program
	lineProg    *shader.Program
	overlayProg *shader.Program

	quadVAO uint32
	quadVBO uint32
}

type meshHandle struct {
	vao, vbo, ebo uint32
	count         int32
	indexed       bool
}

type linesHandle struct {
	vao, vbo uint32
	count    int32
}

type imageHandle struct {
	tex uint32
}

// New creates a renderer.
// IMPORTANT: Must be called AFTER the OpenGL context is created.
func New(cfg Config) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	r := &Renderer{
		config: cfg,
		size:   viewport.Size{Width: cfg.Width, Height: cfg.Height},
		log:    logger.Named("renderer"),
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	bg := cfg.Background
	gl.ClearColor(bg[0], bg[1], bg[2], 1.0)
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))

	var err error
	if r.meshProg, err = shader.New("mesh", meshVertexShader, meshFragmentShader); err != nil {
		r.Close()
		return nil, err
	}
	if r.lineProg, err = shader.New("lines", lineVertexShader, lineFragmentShader); err != nil {
		r.Close()
		return nil, err
	}
	if r.overlayProg, err = shader.New("overlay", overlayVertexShader, overlayFragmentShader); err != nil {
		r.Close()
		return nil, err
	}
	r.createQuad()

	return r, nil
}

// Upload creates GPU resources for obj and stores them in obj.Handle.
func (r *Renderer) Upload(obj *viewport.Object) error {
	switch {
	case obj.Mesh != nil:
		h, err := uploadMesh(obj)
		if err != nil {
			return err
		}
		obj.Handle = h
		r.log.Debug("mesh uploaded",
			zap.String("name", obj.Name),
			zap.Int("vertices", obj.Mesh.VertexCount()),
			zap.Int("faces", obj.Mesh.FaceCount()),
		)
	case obj.Image != nil:
		if obj.Image.Bounds().Empty() {
			return fmt.Errorf("upload %q: %w", obj.Name, ErrEmptyObject)
		}
		obj.Handle = uploadImage(texture.Fit(obj.Image, texture.MaxTextureSize))
	case len(obj.Lines) > 0:
		obj.Handle = uploadLines(obj)
	default:
		return ErrEmptyObject
	}
	return nil
}

// Release frees the GPU resources held by obj.
func (r *Renderer) Release(obj *viewport.Object) error {
	switch h := obj.Handle.(type) {
	case nil:
		return nil
	case *meshHandle:
		gl.DeleteVertexArrays(1, &h.vao)
		gl.DeleteBuffers(1, &h.vbo)
		if h.indexed {
			gl.DeleteBuffers(1, &h.ebo)
		}
	case *linesHandle:
		gl.DeleteVertexArrays(1, &h.vao)
		gl.DeleteBuffers(1, &h.vbo)
	case *imageHandle:
		gl.DeleteTextures(1, &h.tex)
	default:
		return fmt.Errorf("release %q: foreign handle %T", obj.Name, h)
	}
	obj.Handle = nil
	return nil
}

// Resize handles window resize.
func (r *Renderer) Resize(size viewport.Size) {
	r.size = size
	gl.Viewport(0, 0, int32(size.Width), int32(size.Height))
	r.log.Debug("renderer resized",
		zap.Int("width", size.Width),
		zap.Int("height", size.Height),
	)
}

// Draw renders one frame. A fitted overlay is a full 2D view and hides the
// 3D scene; a pinned overlay is drawn on top of it.
func (r *Renderer) Draw(f *viewport.Frame) error {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	fullscreen2D := f.Overlay != nil && !f.Overlay.Pinned
	if !fullscreen2D {
		r.drawLines(f, f.Guides...)
		if f.Content != nil {
			if err := r.drawMesh(f, f.Content); err != nil {
				return err
			}
		}
		if f.Bounds != nil {
			r.drawLines(f, f.Bounds)
		}
	}
	if f.Overlay != nil {
		r.drawOverlay(f.Overlay, f.OverlayRect)
	}

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gl error 0x%x", code)
	}
	return nil
}

// Close releases shader programs and shared geometry.
func (r *Renderer) Close() error {
	r.log.Info("closing renderer")
	if r.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &r.quadVAO)
		r.quadVAO = 0
	}
	if r.quadVBO != 0 {
		gl.DeleteBuffers(1, &r.quadVBO)
		r.quadVBO = 0
	}
	for _, p := range []*shader.Program{r.meshProg, r.lineProg, r.overlayProg} {
		if p != nil {
			p.Delete()
		}
	}

	var err error
	if code := gl.GetError(); code != gl.NO_ERROR {
		err = multierr.Append(err, fmt.Errorf("gl error 0x%x during close", code))
	}
	return err
}

func (r *Renderer) drawMesh(f *viewport.Frame, obj *viewport.Object) error {
	h, ok := obj.Handle.(*meshHandle)
	if !ok {
		return fmt.Errorf("draw %q: not uploaded", obj.Name)
	}
	m := obj.Material

	p := r.meshProg
	p.Use()
	p.SetMat4("uView", f.View)
	p.SetMat4("uProjection", f.Projection)
	p.SetVec3("uColor", m.Color)
	p.SetVec3("uSpecular", m.Specular)
	p.SetFloat("uShininess", m.Shininess)
	p.SetFloat("uOpacity", m.Opacity)
	p.SetBool("uFlat", m.FlatShading)
	p.SetVec3("uAmbient", scale(f.Ambient.Color, f.Ambient.Intensity))
	p.SetVec3("uSunColor", scale(f.Sun.Color, f.Sun.Intensity))
	p.SetVec3("uSunDir", f.Sun.Direction.Array())
	p.SetVec3("uCameraPos", f.CameraPosition.Array())

	if m.Opacity < 1 {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
		defer gl.Disable(gl.BLEND)
	}

	gl.BindVertexArray(h.vao)
	if h.indexed {
		gl.DrawElements(gl.TRIANGLES, h.count, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, h.count)
	}
	gl.BindVertexArray(0)
	return nil
}

func (r *Renderer) drawLines(f *viewport.Frame, objs ...*viewport.Object) {
	if len(objs) == 0 {
		return
	}
	p := r.lineProg
	p.Use()
	p.SetMat4("uView", f.View)
	p.SetMat4("uProjection", f.Projection)
	for _, obj := range objs {
		h, ok := obj.Handle.(*linesHandle)
		if !ok {
			continue
		}
		gl.BindVertexArray(h.vao)
		gl.DrawArrays(gl.LINES, 0, h.count)
	}
	gl.BindVertexArray(0)
}

func (r *Renderer) drawOverlay(obj *viewport.Object, rect image.Rectangle) {
	h, ok := obj.Handle.(*imageHandle)
	if !ok || rect.Empty() || r.size.Width == 0 || r.size.Height == 0 {
		return
	}
	w, hgt := float32(r.size.Width), float32(r.size.Height)

	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	p := r.overlayProg
	p.Use()
	p.SetVec4("uRect",
		2*float32(rect.Min.X)/w-1, 1-2*float32(rect.Min.Y)/hgt,
		2*float32(rect.Max.X)/w-1, 1-2*float32(rect.Max.Y)/hgt,
	)
	p.SetInt("uTexture", 0)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, h.tex)

	gl.BindVertexArray(r.quadVAO)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)

	gl.Disable(gl.BLEND)
	gl.Enable(gl.DEPTH_TEST)
}

func (r *Renderer) createQuad() {
	uv := []float32{0, 0, 1, 0, 0, 1, 1, 1}

	gl.GenVertexArrays(1, &r.quadVAO)
	gl.BindVertexArray(r.quadVAO)
	gl.GenBuffers(1, &r.quadVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(uv)*4, unsafe.Pointer(&uv[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, nil)
	gl.EnableVertexAttribArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

func uploadMesh(obj *viewport.Object) (*meshHandle, error) {
	verts := Interleave(obj)
	if len(verts) == 0 {
		return nil, fmt.Errorf("upload %q: %w", obj.Name, ErrEmptyObject)
	}
	m := obj.Mesh
	h := &meshHandle{count: int32(m.VertexCount())}

	gl.GenVertexArrays(1, &h.vao)
	gl.BindVertexArray(h.vao)

	gl.GenBuffers(1, &h.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, h.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, unsafe.Pointer(&verts[0]), gl.STATIC_DRAW)

	if len(m.Indices) > 0 {
		h.indexed = true
		h.count = int32(len(m.Indices))
		gl.GenBuffers(1, &h.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, h.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, unsafe.Pointer(&m.Indices[0]), gl.STATIC_DRAW)
	}

	// Position (location = 0), normal (location = 1)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 6*4, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, 6*4, unsafe.Pointer(uintptr(3*4)))
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
	return h, nil
}

func uploadLines(obj *viewport.Object) *linesHandle {
	verts := obj.Lines.Floats()
	h := &linesHandle{count: int32(len(obj.Lines))}

	gl.GenVertexArrays(1, &h.vao)
	gl.BindVertexArray(h.vao)
	gl.GenBuffers(1, &h.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, h.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, unsafe.Pointer(&verts[0]), gl.STATIC_DRAW)

	// Position (location = 0), color (location = 1)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 6*4, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, 6*4, unsafe.Pointer(uintptr(3*4)))
	gl.EnableVertexAttribArray(1)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return h
}

func uploadImage(img *image.RGBA) *imageHandle {
	h := &imageHandle{}
	b := img.Bounds()

	gl.GenTextures(1, &h.tex)
	gl.BindTexture(gl.TEXTURE_2D, h.tex)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(b.Dx()), int32(b.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return h
}

// Interleave flattens a mesh object to [x, y, z, nx, ny, nz] per vertex.
// Missing normals are written as zero; such meshes are flat shaded.
func Interleave(obj *viewport.Object) []float32 {
	m := obj.Mesh
	if m == nil || len(m.Positions) == 0 {
		return nil
	}
	out := make([]float32, 0, len(m.Positions)*6)
	hasNormals := m.HasNormals()
	for i, p := range m.Positions {
		out = append(out, p.X, p.Y, p.Z)
		if hasNormals {
			n := m.Normals[i]
			out = append(out, n.X, n.Y, n.Z)
		} else {
			out = append(out, 0, 0, 0)
		}
	}
	return out
}

func scale(c [3]float32, k float32) [3]float32 {
	return [3]float32{c[0] * k, c[1] * k, c[2] * k}
}

// ReadPixels reads the back buffer as bottom-up RGBA rows. Call it after
// Draw and before the buffers are swapped.
func (r *Renderer) ReadPixels() (pixels []byte, width, height int) {
	width, height = r.size.Width, r.size.Height
	if width <= 0 || height <= 0 {
		return nil, 0, 0
	}
	pixels = make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	return pixels, width, height
}
