package viewport

import (
	"image"

	"github.com/Faultbox/liverscope/internal/engine/guides"
	"github.com/Faultbox/liverscope/pkg/math"
	"github.com/Faultbox/liverscope/pkg/mesh"
)

// Size is a drawable size in pixels.
type Size struct {
	Width, Height int
}

// Aspect returns width over height.
func (s Size) Aspect() float32 {
	if s.Height == 0 {
		return 1
	}
	return float32(s.Width) / float32(s.Height)
}

func (s Size) valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Material controls how a mesh is shaded.
type Material struct {
	Color     [3]float32
	Specular  [3]float32
	Shininess float32
	Opacity   float32
	// FlatShading lights each face with its own normal. Meshes without
	// vertex normals are always flat shaded.
	FlatShading bool
}

// DefaultMaterial is the soft tissue tint used for liver models.
func DefaultMaterial() Material {
	return Material{
		Color:     [3]float32{0.80, 0.40, 0.33},
		Specular:  [3]float32{0.2, 0.2, 0.2},
		Shininess: 30,
		Opacity:   1,
	}
}

// Object is something the viewport can display. Exactly one of Mesh,
// Image or Lines is set. Handle belongs to the backend and holds its
// GPU resources between Upload and Release.
type Object struct {
	Name     string
	Mesh     *mesh.Mesh
	Material Material
	Image    *image.RGBA
	Lines    guides.Lines
	// Pinned images keep their pixel size in the top-left corner instead of
	// being fitted to the view.
	Pinned bool

	Handle any
}

// NewMeshObject wraps a mesh with the default material.
func NewMeshObject(m *mesh.Mesh) *Object {
	mat := DefaultMaterial()
	if !m.HasNormals() {
		mat.FlatShading = true
	}
	return &Object{Name: m.Name, Mesh: m, Material: mat}
}

// NewImageObject wraps a screen-space image.
func NewImageObject(name string, img *image.RGBA) *Object {
	return &Object{Name: name, Image: img}
}

// NewLinesObject wraps line geometry.
func NewLinesObject(name string, lines guides.Lines) *Object {
	return &Object{Name: name, Lines: lines}
}

// AmbientLight lights every surface evenly.
type AmbientLight struct {
	Color     [3]float32
	Intensity float32
}

// DirectionalLight shines along -Direction from infinitely far away.
type DirectionalLight struct {
	Color     [3]float32
	Intensity float32
	Direction math.Vec3 // Points towards the light
}

// Frame is everything a backend needs to draw one image.
type Frame struct {
	Size           Size
	View           math.Mat4
	Projection     math.Mat4
	CameraPosition math.Vec3

	Ambient AmbientLight
	Sun     DirectionalLight

	Guides  []*Object
	Content *Object
	Bounds  *Object // Wireframe around Content, when enabled
	Overlay *Object
	// OverlayRect is where Overlay goes, in pixels from the top-left.
	OverlayRect image.Rectangle
}

// OverlayMargin is the gap between a pinned overlay and the view edge.
const OverlayMargin = 12

// PinRect places an image of the given size at the top-left corner.
func PinRect(src image.Point) image.Rectangle {
	return image.Rectangle{Min: image.Pt(OverlayMargin, OverlayMargin), Max: image.Pt(OverlayMargin+src.X, OverlayMargin+src.Y)}
}

// FitRect returns the largest rectangle with the aspect ratio of src that
// fits centred inside a view of the given size.
func FitRect(src image.Point, view Size) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || !view.valid() {
		return image.Rectangle{}
	}
	w, h := view.Width, src.Y*view.Width/src.X
	if h > view.Height {
		h = view.Height
		w = src.X * view.Height / src.Y
	}
	x := (view.Width - w) / 2
	y := (view.Height - h) / 2
	return image.Rect(x, y, x+w, y+h)
}
