// Package mesh provides an indexed triangle mesh and its derived geometry.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/liverscope/pkg/math"
)

// ErrIndexOutOfRange is returned by Validate when an index does not address a vertex.
var ErrIndexOutOfRange = errors.New("mesh index out of range")

// Mesh is a triangle mesh with optional per-vertex normals.
// Indices holds triples into Positions; nil means Positions is a triangle soup.
type Mesh struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	Indices   []uint32
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Size returns the extent along each axis.
func (b Bounds) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// MaxDimension returns the largest extent.
func (b Bounds) MaxDimension() float32 {
	s := b.Size()
	return max(s.X, s.Y, s.Z)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int {
	if m.Indices != nil {
		return len(m.Indices) / 3
	}
	return len(m.Positions) / 3
}

// HasNormals reports whether the mesh carries one normal per vertex.
func (m *Mesh) HasNormals() bool {
	return len(m.Normals) > 0 && len(m.Normals) == len(m.Positions)
}

// Bounds returns the bounding box of all vertices.
func (m *Mesh) Bounds() Bounds {
	if len(m.Positions) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: m.Positions[0], Max: m.Positions[0]}
	for _, p := range m.Positions[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}

// Centroid returns the centre of the bounding box.
func (m *Mesh) Centroid() math.Vec3 {
	return m.Bounds().Center()
}

// Center translates the mesh so its centroid sits at the origin and
// returns the offset that was subtracted.
func (m *Mesh) Center() math.Vec3 {
	c := m.Centroid()
	if c.IsZero() {
		return c
	}
	for i := range m.Positions {
		m.Positions[i] = m.Positions[i].Sub(c)
	}
	return c
}

// Validate checks the index invariants.
func (m *Mesh) Validate() error {
	if m.Indices == nil {
		if len(m.Positions)%3 != 0 {
			return fmt.Errorf("triangle soup has %d vertices, not a multiple of 3", len(m.Positions))
		}
		return nil
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(m.Indices))
	}
	n := uint32(len(m.Positions))
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d at %d, vertex count %d", ErrIndexOutOfRange, idx, i, n)
		}
	}
	if m.Normals != nil && len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("normal count %d does not match vertex count %d", len(m.Normals), len(m.Positions))
	}
	return nil
}

// Triangle returns the vertex indices of face i.
func (m *Mesh) Triangle(i int) (a, b, c uint32) {
	if m.Indices != nil {
		return m.Indices[i*3], m.Indices[i*3+1], m.Indices[i*3+2]
	}
	base := uint32(i * 3)
	return base, base + 1, base + 2
}

// ComputeNormals recomputes smooth per-vertex normals from face winding.
// Degenerate faces contribute nothing; if every face is degenerate the
// normals are cleared.
func (m *Mesh) ComputeNormals() {
	normals := make([]math.Vec3, len(m.Positions))
	found := false
	for f := 0; f < m.FaceCount(); f++ {
		a, b, c := m.Triangle(f)
		n := FaceNormal(m.Positions[a], m.Positions[b], m.Positions[c])
		if n.IsZero() {
			continue
		}
		found = true
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	if !found {
		m.Normals = nil
		return
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	m.Normals = normals
}

// FaceNormal returns the unit normal of a counter-clockwise triangle,
// or the zero vector for a degenerate one.
func FaceNormal(a, b, c math.Vec3) math.Vec3 {
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}
