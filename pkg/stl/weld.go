package stl

import (
	"fmt"

	"github.com/Faultbox/liverscope/pkg/math"
	"github.com/Faultbox/liverscope/pkg/mesh"
)

// builder welds facet corners into shared vertices and accumulates
// facet normals onto them. Facets stored with a zero normal are filled in
// from their winding when the mesh is finished.
type builder struct {
	m      *mesh.Mesh
	lookup map[math.Vec3]uint32
	sums   []math.Vec3
	faces  int
	bare   []int // Faces stored without a normal
}

func newBuilder(name string, faces int) *builder {
	return &builder{
		m: &mesh.Mesh{
			Name:      name,
			Positions: make([]math.Vec3, 0, faces),
			Indices:   make([]uint32, 0, faces*3),
		},
		lookup: make(map[math.Vec3]uint32, faces),
		sums:   make([]math.Vec3, 0, faces),
	}
}

func (b *builder) vertex(p math.Vec3) uint32 {
	// -0 and +0 compare equal but hash differently.
	if p.X == 0 {
		p.X = 0
	}
	if p.Y == 0 {
		p.Y = 0
	}
	if p.Z == 0 {
		p.Z = 0
	}
	if idx, ok := b.lookup[p]; ok {
		return idx
	}
	idx := uint32(len(b.m.Positions))
	b.m.Positions = append(b.m.Positions, p)
	b.sums = append(b.sums, math.Vec3{})
	b.lookup[p] = idx
	return idx
}

func (b *builder) addFacet(normal, v1, v2, v3 math.Vec3) {
	i1, i2, i3 := b.vertex(v1), b.vertex(v2), b.vertex(v3)
	b.m.Indices = append(b.m.Indices, i1, i2, i3)

	n := normal.Normalize()
	if n.IsZero() {
		b.bare = append(b.bare, b.faces)
	} else {
		b.sums[i1] = b.sums[i1].Add(n)
		b.sums[i2] = b.sums[i2].Add(n)
		b.sums[i3] = b.sums[i3].Add(n)
	}
	b.faces++
}

func (b *builder) finish() (*mesh.Mesh, error) {
	if b.faces == 0 {
		return nil, &DecodeError{Kind: ErrEmptyMesh}
	}

	if len(b.bare) == b.faces {
		b.m.ComputeNormals()
	} else {
		for _, f := range b.bare {
			i1, i2, i3 := b.m.Triangle(f)
			n := mesh.FaceNormal(b.m.Positions[i1], b.m.Positions[i2], b.m.Positions[i3])
			b.sums[i1] = b.sums[i1].Add(n)
			b.sums[i2] = b.sums[i2].Add(n)
			b.sums[i3] = b.sums[i3].Add(n)
		}
		normals := make([]math.Vec3, len(b.sums))
		for i, s := range b.sums {
			normals[i] = s.Normalize()
		}
		b.m.Normals = normals
	}

	if err := b.m.Validate(); err != nil {
		return nil, fmt.Errorf("stl: welded mesh: %w", err)
	}
	return b.m, nil
}
