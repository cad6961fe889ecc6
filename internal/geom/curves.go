package geom

import "math"

// Line is a segment between two points. Routines that treat it as an
// infinite line say so explicitly.
type Line struct {
	A Vec
	B Vec
}

// Dir returns the (unnormalized) direction from A to B.
func (l Line) Dir() Vec {
	return l.B.Sub(l.A)
}

// Len returns the segment length.
func (l Line) Len() float64 {
	return l.Dir().Len()
}

// Mid returns the segment midpoint.
func (l Line) Mid() Vec {
	return Mid(l.A, l.B)
}

// PointAt returns the point at parameter t, with t=0 at A and t=1 at B.
func (l Line) PointAt(t float64) Vec {
	return Lerp(l.A, l.B, t)
}

// ClosestParam returns the parameter of the point on the infinite line
// closest to p. Degenerate segments yield 0.
func (l Line) ClosestParam(p Vec) float64 {
	d := l.Dir()
	den := d.LenSq()
	if den == 0 {
		return 0
	}
	return p.Sub(l.A).Dot(d) / den
}

// Project returns the point on the segment closest to p.
func (l Line) Project(p Vec) Vec {
	t := math.Max(0, math.Min(1, l.ClosestParam(p)))
	return l.PointAt(t)
}

// DistInfinite returns the distance from p to the infinite line through
// A and B. Degenerate segments fall back to point distance.
func (l Line) DistInfinite(p Vec) float64 {
	d := l.Dir()
	ln := d.Len()
	if ln == 0 {
		return p.Dist(l.A)
	}
	return math.Abs(d.Cross(p.Sub(l.A))) / ln
}

// Dist returns the distance from p to the segment.
func (l Line) Dist(p Vec) float64 {
	return p.Dist(l.Project(p))
}

// Circle is a full circle.
type Circle struct {
	Center Vec
	R      float64
}

// PointAt returns the circle point at the given angle in radians.
func (c Circle) PointAt(angle float64) Vec {
	s, co := math.Sincos(angle)
	return Vec{c.Center.X + c.R*co, c.Center.Y + c.R*s}
}

// Project returns the circle point closest to p. A point at the exact
// center projects to the rightmost circle point.
func (c Circle) Project(p Vec) Vec {
	d := p.Sub(c.Center)
	if d.LenSq() == 0 {
		return Vec{c.Center.X + c.R, c.Center.Y}
	}
	return c.Center.Add(d.Norm().Scale(c.R))
}

// Dist returns the distance from p to the circle boundary.
func (c Circle) Dist(p Vec) float64 {
	return math.Abs(p.Dist(c.Center) - c.R)
}

// Sample returns n points evenly spaced along the circle, closed (first
// point not repeated).
func (c Circle) Sample(n int) []Vec {
	if n < 3 {
		n = 3
	}
	pts := make([]Vec, n)
	for i := range pts {
		pts[i] = c.PointAt(2 * math.Pi * float64(i) / float64(n))
	}
	return pts
}

// Arc is a counter-clockwise circular arc from Start to End angle
// (radians). End is normalized to be greater than Start.
type Arc struct {
	Center Vec
	R      float64
	Start  float64
	End    float64
}

// Sweep returns the angular extent of the arc, always positive.
func (a Arc) Sweep() float64 {
	s := a.End - a.Start
	for s <= 0 {
		s += 2 * math.Pi
	}
	return s
}

// StartPoint returns the arc start point.
func (a Arc) StartPoint() Vec {
	return Circle{a.Center, a.R}.PointAt(a.Start)
}

// EndPoint returns the arc end point.
func (a Arc) EndPoint() Vec {
	return Circle{a.Center, a.R}.PointAt(a.End)
}

// MidPoint returns the point halfway along the arc.
func (a Arc) MidPoint() Vec {
	return Circle{a.Center, a.R}.PointAt(a.Start + a.Sweep()/2)
}

// ContainsAngle reports whether the angle lies on the arc.
func (a Arc) ContainsAngle(angle float64) bool {
	rel := math.Mod(angle-a.Start, 2*math.Pi)
	if rel < 0 {
		rel += 2 * math.Pi
	}
	return rel <= a.Sweep()+1e-12
}

// Project returns the arc point closest to p, clamped to the nearer
// endpoint when the radial projection falls off the arc.
func (a Arc) Project(p Vec) Vec {
	q := Circle{a.Center, a.R}.Project(p)
	if a.ContainsAngle(q.Sub(a.Center).Angle()) {
		return q
	}
	sp, ep := a.StartPoint(), a.EndPoint()
	if p.Dist(sp) <= p.Dist(ep) {
		return sp
	}
	return ep
}

// Dist returns the distance from p to the arc.
func (a Arc) Dist(p Vec) float64 {
	return p.Dist(a.Project(p))
}

// Sample returns n+1 points from start to end inclusive.
func (a Arc) Sample(n int) []Vec {
	if n < 1 {
		n = 1
	}
	pts := make([]Vec, n+1)
	sweep := a.Sweep()
	for i := 0; i <= n; i++ {
		pts[i] = Circle{a.Center, a.R}.PointAt(a.Start + sweep*float64(i)/float64(n))
	}
	return pts
}
