// Package camera provides the perspective camera and orbit controls used by
// the 3D viewport.
package camera

import (
	gomath "math"

	"github.com/Faultbox/liverscope/pkg/math"
)

// Perspective is a perspective camera looking at a target point.
type Perspective struct {
	FOV    float32 // Vertical field of view, degrees
	Aspect float32
	Near   float32
	Far    float32

	Position math.Vec3
	Up       math.Vec3
}

// NewPerspective creates a camera placed distance units along +Z.
func NewPerspective(fov, aspect, near, far, distance float32) *Perspective {
	return &Perspective{
		FOV:      fov,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
		Position: math.Vec3{Z: distance},
		Up:       math.Vec3{Y: 1},
	}
}

// ProjectionMatrix returns the projection for the current aspect ratio.
func (p *Perspective) ProjectionMatrix() math.Mat4 {
	return math.Perspective(math.Radians(p.FOV), p.Aspect, p.Near, p.Far)
}

// ViewMatrix returns the view matrix looking at target.
func (p *Perspective) ViewMatrix(target math.Vec3) math.Mat4 {
	return math.LookAt(p.Position, target, p.Up)
}

// SetAspect updates the aspect ratio from a drawable size.
func (p *Perspective) SetAspect(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	p.Aspect = float32(width) / float32(height)
}

// FitDistance returns the distance at which a sphere-like object of extent
// maxDim fills the vertical field of view, times margin.
func (p *Perspective) FitDistance(maxDim, margin float32) float32 {
	half := float64(math.Radians(p.FOV)) / 2
	return maxDim / float32(gomath.Tan(half)) * margin
}

// OrbitControls rotates, zooms and pans a camera around a target with
// exponential damping. Input accumulates deltas; Update applies a damping
// fraction of them each frame.
type OrbitControls struct {
	Target math.Vec3

	Damping     float32 // Fraction of pending motion applied per frame
	RotateSpeed float32
	ZoomSpeed   float32
	PanSpeed    float32

	MinDistance float32
	MaxDistance float32

	thetaDelta float32 // Azimuth, radians
	phiDelta   float32 // Polar, radians
	scale      float32
	panOffset  math.Vec3
}

const (
	polarEpsilon  = 1e-6
	settleEpsilon = 1e-6
)

// NewOrbitControls creates controls with the given damping factor.
func NewOrbitControls(damping float32) *OrbitControls {
	return &OrbitControls{
		Damping:     damping,
		RotateSpeed: 1,
		ZoomSpeed:   1,
		PanSpeed:    1,
		MinDistance: 0.01,
		MaxDistance: 1e5,
		scale:       1,
	}
}

// Rotate feeds a pointer drag of dx, dy pixels on a viewport viewHeight
// pixels tall. A drag across the full height turns one full circle.
func (o *OrbitControls) Rotate(dx, dy float32, viewHeight int) {
	if viewHeight <= 0 {
		return
	}
	h := float32(viewHeight)
	o.thetaDelta -= 2 * gomath.Pi * dx / h * o.RotateSpeed
	o.phiDelta -= 2 * gomath.Pi * dy / h * o.RotateSpeed
}

// Zoom feeds wheel steps. Positive steps move the camera closer.
func (o *OrbitControls) Zoom(steps float32) {
	factor := float32(gomath.Pow(0.95, float64(o.ZoomSpeed*abs(steps))))
	if steps > 0 {
		o.scale *= factor
	} else if steps < 0 {
		o.scale /= factor
	}
}

// Pan feeds a pointer drag that slides the target in the view plane. The
// distance moved matches the pointer at the target's depth.
func (o *OrbitControls) Pan(dx, dy float32, cam *Perspective, viewHeight int) {
	if viewHeight <= 0 {
		return
	}
	offset := cam.Position.Sub(o.Target)
	targetDist := offset.Length() * float32(gomath.Tan(float64(math.Radians(cam.FOV))/2))

	forward := offset.Scale(-1).Normalize()
	right := forward.Cross(cam.Up).Normalize()
	up := right.Cross(forward)

	h := float32(viewHeight)
	left := right.Scale(-2 * dx * targetDist / h * o.PanSpeed)
	upMove := up.Scale(2 * dy * targetDist / h * o.PanSpeed)
	o.panOffset = o.panOffset.Add(left).Add(upMove)
}

// Retarget moves the orbit pivot and drops pending motion.
func (o *OrbitControls) Retarget(target math.Vec3) {
	o.Target = target
	o.thetaDelta, o.phiDelta = 0, 0
	o.scale = 1
	o.panOffset = math.Vec3{}
}

// Settled reports whether no meaningful motion is pending.
func (o *OrbitControls) Settled() bool {
	return abs(o.thetaDelta) < settleEpsilon &&
		abs(o.phiDelta) < settleEpsilon &&
		o.scale == 1 &&
		o.panOffset.Length() < settleEpsilon
}

// Update applies damped motion to cam and reports whether it moved.
// A settled camera is left untouched.
func (o *OrbitControls) Update(cam *Perspective) bool {
	if o.Settled() {
		o.thetaDelta, o.phiDelta = 0, 0
		o.panOffset = math.Vec3{}
		return false
	}

	offset := cam.Position.Sub(o.Target)
	radius := offset.Length()
	if radius == 0 {
		radius = polarEpsilon
	}
	theta := float32(gomath.Atan2(float64(offset.X), float64(offset.Z)))
	phi := float32(gomath.Acos(float64(clamp(offset.Y/radius, -1, 1))))

	d := o.Damping
	if d <= 0 || d > 1 {
		d = 1
	}
	theta += o.thetaDelta * d
	phi += o.phiDelta * d
	phi = clamp(phi, polarEpsilon, gomath.Pi-polarEpsilon)
	radius = clamp(radius*o.scale, o.MinDistance, o.MaxDistance)
	o.Target = o.Target.Add(o.panOffset.Scale(d))

	sinPhi := float32(gomath.Sin(float64(phi)))
	next := math.Vec3{
		X: radius * sinPhi * float32(gomath.Sin(float64(theta))),
		Y: radius * float32(gomath.Cos(float64(phi))),
		Z: radius * sinPhi * float32(gomath.Cos(float64(theta))),
	}
	cam.Position = o.Target.Add(next)

	o.thetaDelta *= 1 - d
	o.phiDelta *= 1 - d
	o.panOffset = o.panOffset.Scale(1 - d)
	o.scale = 1

	return true
}

// Distance returns the camera's distance from the target.
func (o *OrbitControls) Distance(cam *Perspective) float32 {
	return cam.Position.Distance(o.Target)
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
