package geom

import "math"

// Transform2 is a 2x3 affine transform: [ A C E ; B D F ].
type Transform2 struct {
	A, B, C, D, E, F float64
}

// Identity returns the identity transform.
func Identity() Transform2 {
	return Transform2{A: 1, D: 1}
}

// Translate returns a translation by d.
func Translate(d Vec) Transform2 {
	return Transform2{A: 1, D: 1, E: d.X, F: d.Y}
}

// RotateAbout returns a rotation by angle radians about center.
func RotateAbout(center Vec, angle float64) Transform2 {
	s, c := math.Sincos(angle)
	return Transform2{
		A: c, C: -s, E: center.X - c*center.X + s*center.Y,
		B: s, D: c, F: center.Y - s*center.X - c*center.Y,
	}
}

// MirrorAcross returns a reflection across the infinite line through
// axis. A degenerate axis yields the identity.
func MirrorAcross(axis Line) Transform2 {
	d := axis.Dir()
	ll := d.LenSq()
	if ll == 0 {
		return Identity()
	}
	// Reflection matrix about a unit direction (dx, dy):
	// [ dx^2-dy^2  2 dx dy ; 2 dx dy  dy^2-dx^2 ] / (dx^2+dy^2)
	a := (d.X*d.X - d.Y*d.Y) / ll
	b := 2 * d.X * d.Y / ll
	m := Transform2{A: a, C: b, B: b, D: -a}
	p := axis.A
	q := m.Apply(p)
	m.E = p.X - q.X
	m.F = p.Y - q.Y
	return m
}

// Mul returns t composed with u, applying u first.
func (t Transform2) Mul(u Transform2) Transform2 {
	return Transform2{
		A: t.A*u.A + t.C*u.B,
		B: t.B*u.A + t.D*u.B,
		C: t.A*u.C + t.C*u.D,
		D: t.B*u.C + t.D*u.D,
		E: t.A*u.E + t.C*u.F + t.E,
		F: t.B*u.E + t.D*u.F + t.F,
	}
}

// Apply transforms p.
func (t Transform2) Apply(p Vec) Vec {
	return Vec{
		X: t.A*p.X + t.C*p.Y + t.E,
		Y: t.B*p.X + t.D*p.Y + t.F,
	}
}
