package motion

import "math"

// Transform is a planar rigid transform: a rotation about the vertical
// axis followed by a translation in the ground plane. Vertical motion
// is never compensated.
type Transform struct {
	Yaw float64 // rad
	X   float64 // m
	Y   float64 // m
}

// Identity returns the transform that maps every point to itself.
func Identity() Transform { return Transform{} }

// IsIdentity reports whether t moves nothing.
func (t Transform) IsIdentity() bool { return t == Transform{} }

// Apply maps a point through t.
func (t Transform) Apply(x, y, z float64) (float64, float64, float64) {
	sin, cos := math.Sincos(t.Yaw)
	return t.X + cos*x - sin*y, t.Y + sin*x + cos*y, z
}

// Compose returns the transform equivalent to applying first, then t.
func (t Transform) Compose(first Transform) Transform {
	sin, cos := math.Sincos(t.Yaw)
	return Transform{
		Yaw: t.Yaw + first.Yaw,
		X:   t.X + cos*first.X - sin*first.Y,
		Y:   t.Y + sin*first.X + cos*first.Y,
	}
}
