// Package geom provides the immutable 2D primitives the sketch core is
// built on: vectors, lines, circles, arcs, affine transforms, and the
// intersection/projection routines shared by the solver, profile
// extractor, and spatial queries.
package geom

import "math"

// Vec is a 2D point or direction.
type Vec struct {
	X float64
	Y float64
}

// V constructs a Vec.
func V(x, y float64) Vec {
	return Vec{X: x, Y: y}
}

// Add returns v + u.
func (v Vec) Add(u Vec) Vec {
	return Vec{v.X + u.X, v.Y + u.Y}
}

// Sub returns v - u.
func (v Vec) Sub(u Vec) Vec {
	return Vec{v.X - u.X, v.Y - u.Y}
}

// Scale returns v scaled by s.
func (v Vec) Scale(s float64) Vec {
	return Vec{v.X * s, v.Y * s}
}

// Dot returns the dot product of v and u.
func (v Vec) Dot(u Vec) float64 {
	return v.X*u.X + v.Y*u.Y
}

// Cross returns the scalar cross product (z component) of v and u.
func (v Vec) Cross(u Vec) float64 {
	return v.X*u.Y - v.Y*u.X
}

// Len returns the euclidean length of v.
func (v Vec) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// LenSq returns the squared length of v.
func (v Vec) LenSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Dist returns the distance between v and u.
func (v Vec) Dist(u Vec) float64 {
	return v.Sub(u).Len()
}

// Norm returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec) Norm() Vec {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Perp returns v rotated 90 degrees counter-clockwise.
func (v Vec) Perp() Vec {
	return Vec{-v.Y, v.X}
}

// Rotate returns v rotated by angle radians about the origin.
func (v Vec) Rotate(angle float64) Vec {
	s, c := math.Sincos(angle)
	return Vec{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// Angle returns the angle of v in radians, in (-pi, pi].
func (v Vec) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Lerp returns the linear interpolation between a and b at parameter t.
func Lerp(a, b Vec, t float64) Vec {
	return Vec{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// Mid returns the midpoint of a and b.
func Mid(a, b Vec) Vec {
	return Lerp(a, b, 0.5)
}
