package geom

import (
	"math"
	"sort"
)

// LineLine returns the intersection of the infinite lines through l and
// m, and false when they are parallel within eps.
func LineLine(l, m Line, eps float64) (Vec, bool) {
	d1, d2 := l.Dir(), m.Dir()
	den := d1.Cross(d2)
	if math.Abs(den) <= eps {
		return Vec{}, false
	}
	t := m.A.Sub(l.A).Cross(d2) / den
	return l.PointAt(t), true
}

// SegSeg returns the intersection of two segments, and false when they
// do not cross (parallel or crossing outside either span).
func SegSeg(l, m Line, eps float64) (Vec, bool) {
	d1, d2 := l.Dir(), m.Dir()
	den := d1.Cross(d2)
	if math.Abs(den) <= eps {
		return Vec{}, false
	}
	diff := m.A.Sub(l.A)
	t := diff.Cross(d2) / den
	u := diff.Cross(d1) / den
	if t < -eps || t > 1+eps || u < -eps || u > 1+eps {
		return Vec{}, false
	}
	return l.PointAt(t), true
}

// LineCircle returns the intersections of the infinite line through l
// with c, ordered along the line direction. Tangency yields one point.
func LineCircle(l Line, c Circle, eps float64) []Vec {
	d := l.Dir()
	ll := d.LenSq()
	if ll == 0 {
		return nil
	}
	// Foot of the perpendicular from the center.
	t0 := c.Center.Sub(l.A).Dot(d) / ll
	foot := l.PointAt(t0)
	h := foot.Dist(c.Center)
	if h > c.R+eps {
		return nil
	}
	half := c.R*c.R - h*h
	if half < 0 {
		half = 0
	}
	dt := math.Sqrt(half) / math.Sqrt(ll)
	if dt <= eps {
		return []Vec{foot}
	}
	return []Vec{l.PointAt(t0 - dt), l.PointAt(t0 + dt)}
}

// CircleCircle returns the intersections of two circles. Tangency
// yields one point; coincident or non-crossing circles yield none.
func CircleCircle(a, b Circle, eps float64) []Vec {
	d := b.Center.Sub(a.Center)
	dist := d.Len()
	if dist <= eps {
		return nil
	}
	if dist > a.R+b.R+eps || dist < math.Abs(a.R-b.R)-eps {
		return nil
	}
	// Distance from a's center to the radical line.
	x := (dist*dist + a.R*a.R - b.R*b.R) / (2 * dist)
	hh := a.R*a.R - x*x
	if hh < 0 {
		hh = 0
	}
	h := math.Sqrt(hh)
	base := a.Center.Add(d.Norm().Scale(x))
	if h <= eps {
		return []Vec{base}
	}
	off := d.Norm().Perp().Scale(h)
	pts := []Vec{base.Add(off), base.Sub(off)}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	return pts
}

// SignedArea returns the signed area of the polygon, positive for
// counter-clockwise winding.
func SignedArea(poly []Vec) float64 {
	var sum float64
	n := len(poly)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += poly[i].Cross(poly[j])
	}
	return sum / 2
}

// PolygonContains reports whether p is inside the polygon using the
// even-odd rule. Boundary points are not guaranteed either way.
func PolygonContains(poly []Vec, p Vec) bool {
	inside := false
	n := len(poly)
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}
