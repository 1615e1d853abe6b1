package frames

import (
	"fmt"
	"math"

	"github.com/relabs-tech/scan_synchronizer/internal/scan"
)

// Pose is a sensor mount pose in the common base frame: a translation
// plus a rotation about the vertical axis. Scanners on a rigid
// platform don't move relative to each other, so a static pose per
// frame is all the lookup needs.
type Pose struct {
	X   float64
	Y   float64
	Z   float64
	Yaw float64 // rad
}

// apply maps a point from this pose's frame into the base frame.
func (p Pose) apply(x, y, z float64) (float64, float64, float64) {
	sin, cos := math.Sincos(p.Yaw)
	return p.X + cos*x - sin*y, p.Y + sin*x + cos*y, p.Z + z
}

// applyInverse maps a point from the base frame into this pose's frame.
func (p Pose) applyInverse(x, y, z float64) (float64, float64, float64) {
	x -= p.X
	y -= p.Y
	z -= p.Z
	sin, cos := math.Sincos(-p.Yaw)
	return cos*x - sin*y, sin*x + cos*y, z
}

// Registry resolves clouds between statically configured frames.
type Registry struct {
	poses map[string]Pose
}

func NewRegistry(poses map[string]Pose) *Registry {
	r := &Registry{poses: make(map[string]Pose, len(poses))}
	for name, p := range poses {
		r.poses[name] = p
	}
	return r
}

// ToFrame reprojects c into the target frame. Both the cloud's frame
// and the target must be registered (or equal); an unknown frame is an
// error the caller handles per sample.
func (r *Registry) ToFrame(c *scan.Cloud, target string) (*scan.Cloud, error) {
	if c.FrameID == target {
		out := *c
		return &out, nil
	}

	src, ok := r.poses[c.FrameID]
	if !ok {
		return nil, fmt.Errorf("frames: unknown source frame %q", c.FrameID)
	}
	dst, ok := r.poses[target]
	if !ok {
		return nil, fmt.Errorf("frames: unknown target frame %q", target)
	}

	out := &scan.Cloud{
		FrameID: target,
		Stamp:   c.Stamp,
		Points:  make([]scan.Point, len(c.Points)),
	}
	for i, pt := range c.Points {
		x, y, z := src.apply(float64(pt.X), float64(pt.Y), float64(pt.Z))
		x, y, z = dst.applyInverse(x, y, z)
		out.Points[i] = scan.Point{
			X:         float32(x),
			Y:         float32(y),
			Z:         float32(z),
			Intensity: pt.Intensity,
		}
	}
	return out, nil
}
