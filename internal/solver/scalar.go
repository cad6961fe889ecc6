// Package solver maps the sketch's parameter vector and constraint set
// to a satisfying assignment, or to a diagnosis of why none exists.
// Each constraint contributes analytic residual equations; derivatives
// are propagated exactly through a sparse forward-mode scalar so the
// Jacobian is assembled without finite differencing.
package solver

import "math"

// num is a scalar with exact first derivatives against the free
// variables of one component. The derivative map stays tiny because
// every residual touches only a handful of parameters.
type num struct {
	v float64
	d map[int]float64
}

// con lifts a constant.
func con(v float64) num {
	return num{v: v}
}

// vrb lifts the free variable with the given local index.
func vrb(v float64, idx int) num {
	return num{v: v, d: map[int]float64{idx: 1}}
}

func (a num) add(b num) num {
	return num{v: a.v + b.v, d: merge(a.d, 1, b.d, 1)}
}

func (a num) sub(b num) num {
	return num{v: a.v - b.v, d: merge(a.d, 1, b.d, -1)}
}

func (a num) mul(b num) num {
	return num{v: a.v * b.v, d: merge(a.d, b.v, b.d, a.v)}
}

func (a num) div(b num) num {
	inv := 1 / b.v
	return num{v: a.v * inv, d: merge(a.d, inv, b.d, -a.v*inv*inv)}
}

func (a num) scale(s float64) num {
	return num{v: a.v * s, d: merge(a.d, s, nil, 0)}
}

func (a num) neg() num {
	return a.scale(-1)
}

func (a num) sqrt() num {
	r := math.Sqrt(a.v)
	// Guard the derivative at zero; the value itself stays exact.
	den := 2 * r
	if den == 0 {
		den = 1e-30
	}
	return num{v: r, d: merge(a.d, 1/den, nil, 0)}
}

func (a num) sin() num {
	return num{v: math.Sin(a.v), d: merge(a.d, math.Cos(a.v), nil, 0)}
}

func (a num) cos() num {
	return num{v: math.Cos(a.v), d: merge(a.d, -math.Sin(a.v), nil, 0)}
}

// atan2 computes atan2(a, b) with derivatives.
func atan2n(y, x num) num {
	den := x.v*x.v + y.v*y.v
	if den == 0 {
		den = 1e-30
	}
	return num{
		v: math.Atan2(y.v, x.v),
		d: merge(y.d, x.v/den, x.d, -y.v/den),
	}
}

// hypot computes sqrt(a^2 + b^2) with derivatives.
func hypotn(a, b num) num {
	return a.mul(a).add(b.mul(b)).sqrt()
}

// merge combines two derivative maps scaled by ca and cb.
func merge(da map[int]float64, ca float64, db map[int]float64, cb float64) map[int]float64 {
	if len(da) == 0 && len(db) == 0 {
		return nil
	}
	out := make(map[int]float64, len(da)+len(db))
	for k, v := range da {
		out[k] = v * ca
	}
	for k, v := range db {
		out[k] += v * cb
	}
	return out
}

// vec2 pairs two nums as a 2D point or direction.
type vec2 struct {
	x, y num
}

func (a vec2) add(b vec2) vec2 { return vec2{a.x.add(b.x), a.y.add(b.y)} }
func (a vec2) sub(b vec2) vec2 { return vec2{a.x.sub(b.x), a.y.sub(b.y)} }

func (a vec2) dot(b vec2) num {
	return a.x.mul(b.x).add(a.y.mul(b.y))
}

func (a vec2) cross(b vec2) num {
	return a.x.mul(b.y).sub(a.y.mul(b.x))
}

func (a vec2) len() num {
	return hypotn(a.x, a.y)
}

func (a vec2) scaleN(s num) vec2 {
	return vec2{a.x.mul(s), a.y.mul(s)}
}

// wrapAngle normalizes an angle to (-pi, pi].
func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
