// Package picking casts rays from screen coordinates into the scene.
package picking

import (
	gomath "math"

	"github.com/Faultbox/liverscope/internal/engine/camera"
	"github.com/Faultbox/liverscope/pkg/math"
	"github.com/Faultbox/liverscope/pkg/mesh"
)

// epsilon rejects rays parallel to a triangle.
const epsilon = 1e-7

// Ray is a half-line in world space. Direction is unit length.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3
}

// At returns the point t units along the ray.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// ScreenRay builds the ray through pixel (x, y) of a width x height view for
// a camera looking at target. Pixel origin is the top-left corner.
func ScreenRay(cam *camera.Perspective, target math.Vec3, x, y float32, width, height int) Ray {
	forward := target.Sub(cam.Position).Normalize()
	right := forward.Cross(cam.Up).Normalize()
	up := right.Cross(forward)

	ndcX := 2*x/float32(width) - 1
	ndcY := 1 - 2*y/float32(height)
	tanHalf := float32(gomath.Tan(float64(math.Radians(cam.FOV)) / 2))

	dir := forward.
		Add(right.Scale(ndcX * tanHalf * cam.Aspect)).
		Add(up.Scale(ndcY * tanHalf))
	return Ray{Origin: cam.Position, Direction: dir.Normalize()}
}

// IntersectBounds tests the ray against an axis-aligned box using the slab
// method. If the ray starts inside the box the exit distance is returned.
func (r Ray) IntersectBounds(b mesh.Bounds) (t float32, hit bool) {
	tmin := float32(-gomath.MaxFloat32)
	tmax := float32(gomath.MaxFloat32)

	origin := r.Origin.Array()
	dir := r.Direction.Array()
	lo := b.Min.Array()
	hi := b.Max.Array()

	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if origin[axis] < lo[axis] || origin[axis] > hi[axis] {
				return 0, false
			}
			continue
		}
		t1 := (lo[axis] - origin[axis]) / dir[axis]
		t2 := (hi[axis] - origin[axis]) / dir[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectTriangle returns the distance to triangle abc (Möller-Trumbore).
// Both faces are hit.
func (r Ray) IntersectTriangle(a, b, c math.Vec3) (t float32, hit bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if det > -epsilon && det < epsilon {
		return 0, false
	}
	inv := 1 / det

	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t = e2.Dot(q) * inv
	if t <= epsilon {
		return 0, false
	}
	return t, true
}

// IntersectMesh returns the nearest hit on m.
func (r Ray) IntersectMesh(m *mesh.Mesh) (t float32, hit bool) {
	if m == nil || m.FaceCount() == 0 {
		return 0, false
	}
	if _, ok := r.IntersectBounds(m.Bounds()); !ok {
		return 0, false
	}

	best := float32(gomath.MaxFloat32)
	for i := 0; i < m.FaceCount(); i++ {
		a, b, c := m.Triangle(i)
		d, ok := r.IntersectTriangle(m.Positions[a], m.Positions[b], m.Positions[c])
		if ok && d < best {
			best = d
			hit = true
		}
	}
	if !hit {
		return 0, false
	}
	return best, true
}
