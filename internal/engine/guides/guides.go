// Package guides generates line geometry for the reference grid, the axis
// gizmo and bounding-box wireframes drawn around a model.
package guides

import "github.com/Faultbox/liverscope/pkg/mesh"

// LineVertex is one endpoint of a line segment.
type LineVertex struct {
	X, Y, Z float32 // Position
	R, G, B float32 // Color
}

// Lines is a list of segments, two vertices per segment.
type Lines []LineVertex

// Segments returns the number of line segments.
func (l Lines) Segments() int {
	return len(l) / 2
}

var (
	gridCenterColor = [3]float32{0.27, 0.27, 0.27}
	gridColor       = [3]float32{0.53, 0.53, 0.53}
	bboxColor       = [3]float32{1.0, 0.8, 0.2}
)

// Defaults match the viewer's reference scene.
const (
	GridSize      = 200
	GridDivisions = 20
	AxesLength    = 50
)

func seg(a, b [3]float32, c [3]float32) []LineVertex {
	return []LineVertex{
		{a[0], a[1], a[2], c[0], c[1], c[2]},
		{b[0], b[1], b[2], c[0], c[1], c[2]},
	}
}

// Grid generates a square grid on the XZ plane centred at the origin.
// The two lines through the origin use a darker color.
func Grid(size float32, divisions int) Lines {
	if divisions <= 0 || size <= 0 {
		return nil
	}
	half := size / 2
	step := size / float32(divisions)

	lines := make(Lines, 0, (divisions+1)*4)
	for i := 0; i <= divisions; i++ {
		k := -half + float32(i)*step
		color := gridColor
		if i == divisions/2 && divisions%2 == 0 {
			color = gridCenterColor
		}
		lines = append(lines, seg([3]float32{-half, 0, k}, [3]float32{half, 0, k}, color)...)
		lines = append(lines, seg([3]float32{k, 0, -half}, [3]float32{k, 0, half}, color)...)
	}
	return lines
}

// Axes generates the X (red), Y (green) and Z (blue) axes from the origin.
func Axes(length float32) Lines {
	o := [3]float32{}
	lines := make(Lines, 0, 6)
	lines = append(lines, seg(o, [3]float32{length, 0, 0}, [3]float32{1, 0, 0})...)
	lines = append(lines, seg(o, [3]float32{0, length, 0}, [3]float32{0, 1, 0})...)
	lines = append(lines, seg(o, [3]float32{0, 0, length}, [3]float32{0, 0, 1})...)
	return lines
}

// BBox generates the 12 edges of a bounding box expanded by padding.
func BBox(b mesh.Bounds, padding float32) Lines {
	minX, minY, minZ := b.Min.X-padding, b.Min.Y-padding, b.Min.Z-padding
	maxX, maxY, maxZ := b.Max.X+padding, b.Max.Y+padding, b.Max.Z+padding

	corners := [8][3]float32{
		{minX, minY, minZ}, {maxX, minY, minZ}, {maxX, minY, maxZ}, {minX, minY, maxZ},
		{minX, maxY, minZ}, {maxX, maxY, minZ}, {maxX, maxY, maxZ}, {minX, maxY, maxZ},
	}
	edges := [12][2]int{
		// Bottom face
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		// Top face
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		// Vertical edges
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}

	lines := make(Lines, 0, len(edges)*2)
	for _, e := range edges {
		lines = append(lines, seg(corners[e[0]], corners[e[1]], bboxColor)...)
	}
	return lines
}

// Floats flattens the lines to [x, y, z, r, g, b] per vertex for upload.
func (l Lines) Floats() []float32 {
	out := make([]float32, 0, len(l)*6)
	for _, v := range l {
		out = append(out, v.X, v.Y, v.Z, v.R, v.G, v.B)
	}
	return out
}
