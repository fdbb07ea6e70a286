// Package pose converts camera-relative hand landmarks into pose-invariant
// feature vectors.
package pose

import (
	"math"

	"github.com/ayusman/fingerspell/internal/detector"
)

// Vec3 is a 3D vector in landmark space.
type Vec3 = detector.Point3D

// Sub returns a - b.
func Sub(a, b Vec3) Vec3 {
	return Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

// Cross returns the cross product a × b.
func Cross(a, b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// Dot returns the dot product a · b.
func Dot(a, b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Norm returns the Euclidean length of a.
func Norm(a Vec3) float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// Unit returns a scaled to unit length. A zero vector is returned unchanged.
func Unit(a Vec3) Vec3 {
	n := Norm(a)
	if n == 0 {
		return a
	}
	return Vec3{X: a.X / n, Y: a.Y / n, Z: a.Z / n}
}

// Scale returns a multiplied by s.
func Scale(a Vec3, s float64) Vec3 {
	return Vec3{X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

// Rotation is a 3x3 matrix whose columns are the axes of a reference frame.
type Rotation [3][3]float64

// NewRotation builds the matrix with x, y and z as its columns.
func NewRotation(x, y, z Vec3) Rotation {
	return Rotation{
		{x.X, y.X, z.X},
		{x.Y, y.Y, z.Y},
		{x.Z, y.Z, z.Z},
	}
}

// MulTranspose returns Rᵀ·v, i.e. v expressed in the frame's coordinates.
func (r Rotation) MulTranspose(v Vec3) Vec3 {
	return Vec3{
		X: r[0][0]*v.X + r[1][0]*v.Y + r[2][0]*v.Z,
		Y: r[0][1]*v.X + r[1][1]*v.Y + r[2][1]*v.Z,
		Z: r[0][2]*v.X + r[1][2]*v.Y + r[2][2]*v.Z,
	}
}
