package solver

import (
	"math"

	"github.com/conneroisu/sketchcad/internal/errors"
	"github.com/conneroisu/sketchcad/internal/model"
)

// equation is one constraint's compiled residual block. first carries
// a referenced entity for component assignment.
type equation struct {
	id    model.ConstraintID
	first model.EntityID
	n     int
	eval  func(ec *evalCtx) []num
}

// evalCtx supplies parameter values and the free-variable mapping of
// the component being evaluated.
type evalCtx struct {
	x     []float64   // global parameter vector
	varOf map[int]int // global param index -> local free var index
}

// param lifts the global parameter i as a variable or a constant
// depending on whether it is free in this component.
func (ec *evalCtx) param(i int) num {
	if li, ok := ec.varOf[i]; ok {
		return vrb(ec.x[i], li)
	}
	return con(ec.x[i])
}

// system is the compiled form of a sketch: entities, fixedness, and
// one equation block per non-Fixed constraint.
type system struct {
	layout   model.Layout
	entities map[model.EntityID]*model.Entity
	fixed    map[model.EntityID]bool
	eqs      []equation
	// adjacency for component partitioning
	constraints []*model.Constraint
}

// compile snapshots the sketch and builds residual equations. Tangent
// and signed-distance variants are chosen from the seed geometry so
// each residual stays smooth through the iteration.
func compile(sk *model.Sketch) *system {
	layout := sk.ParamLayout()
	sys := &system{
		layout:   layout,
		entities: make(map[model.EntityID]*model.Entity),
		fixed:    make(map[model.EntityID]bool),
	}
	for _, e := range sk.Entities() {
		sys.entities[e.ID] = e
	}

	for _, c := range sk.Constraints() {
		for _, r := range c.Refs {
			if _, ok := sys.entities[r.Entity]; !ok {
				errors.Invariant("constraint %d references deleted entity %d", c.ID, r.Entity)
			}
		}
		sys.constraints = append(sys.constraints, c)
		if c.Kind == model.Fixed {
			sys.fixed[c.Refs[0].Entity] = true
			continue
		}
		eq := sys.compileConstraint(c)
		eq.first = c.Refs[0].Entity
		sys.eqs = append(sys.eqs, eq)
	}
	return sys
}

// point resolves an anchored reference to a differentiable point.
func (s *system) point(ec *evalCtx, r model.Ref) vec2 {
	e := s.entities[r.Entity]
	off := s.layout.Offset[r.Entity]
	p := func(i int) num { return ec.param(off + i) }

	switch e.Kind {
	case model.KindPoint:
		return vec2{p(0), p(1)}
	case model.KindLine:
		switch r.Anchor {
		case model.AnchorStart:
			return vec2{p(0), p(1)}
		case model.AnchorEnd:
			return vec2{p(2), p(3)}
		case model.AnchorMid:
			return vec2{p(0).add(p(2)).scale(0.5), p(1).add(p(3)).scale(0.5)}
		}
	case model.KindCircle:
		return vec2{p(0), p(1)}
	case model.KindArc:
		center := vec2{p(0), p(1)}
		switch r.Anchor {
		case model.AnchorCenter:
			return center
		case model.AnchorStart:
			return center.add(vec2{p(3).cos().mul(p(2)), p(3).sin().mul(p(2))})
		case model.AnchorEnd:
			return center.add(vec2{p(4).cos().mul(p(2)), p(4).sin().mul(p(2))})
		case model.AnchorMid:
			mid := p(3).add(p(4)).scale(0.5)
			return center.add(vec2{mid.cos().mul(p(2)), mid.sin().mul(p(2))})
		}
	}
	errors.Invariant("anchor %s does not resolve to a point on %s entity %d", r.Anchor, e.Kind, e.ID)
	return vec2{}
}

// lineOf resolves a whole-line reference to its differentiable
// endpoints.
func (s *system) lineOf(ec *evalCtx, r model.Ref) (a, b vec2) {
	off := s.layout.Offset[r.Entity]
	p := func(i int) num { return ec.param(off + i) }
	return vec2{p(0), p(1)}, vec2{p(2), p(3)}
}

// circularOf resolves a circle or arc reference to center and radius.
func (s *system) circularOf(ec *evalCtx, r model.Ref) (center vec2, radius num) {
	off := s.layout.Offset[r.Entity]
	p := func(i int) num { return ec.param(off + i) }
	return vec2{p(0), p(1)}, p(2)
}

func (s *system) isCircular(r model.Ref) bool {
	e := s.entities[r.Entity]
	return r.Anchor == model.AnchorSelf && (e.Kind == model.KindCircle || e.Kind == model.KindArc)
}

func (s *system) isLine(r model.Ref) bool {
	return r.Anchor == model.AnchorSelf && s.entities[r.Entity].Kind == model.KindLine
}

// seedValue evaluates a scalar expression against the seed geometry to
// fix non-smooth choices (tangency side, distance sign) at compile
// time.
func (s *system) seedCtx(x []float64) *evalCtx {
	return &evalCtx{x: x, varOf: map[int]int{}}
}

func (s *system) seedVector() []float64 {
	x := make([]float64, s.layout.Total)
	for id, off := range s.layout.Offset {
		copy(x[off:], s.entities[id].Params)
	}
	return x
}

func (s *system) compileConstraint(c *model.Constraint) equation {
	value := func() float64 {
		if c.Value == nil {
			return 0
		}
		return c.Value.Literal
	}

	switch c.Kind {
	case model.Coincident:
		return equation{id: c.ID, n: 2, eval: func(ec *evalCtx) []num {
			a := s.point(ec, c.Refs[0])
			b := s.point(ec, c.Refs[1])
			return []num{a.x.sub(b.x), a.y.sub(b.y)}
		}}

	case model.Concentric:
		return equation{id: c.ID, n: 2, eval: func(ec *evalCtx) []num {
			a, _ := s.circularOf(ec, c.Refs[0])
			b, _ := s.circularOf(ec, c.Refs[1])
			return []num{a.x.sub(b.x), a.y.sub(b.y)}
		}}

	case model.Distance:
		if s.isLine(c.Refs[1]) {
			sign := s.seedDistanceSign(c)
			return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
				p := s.point(ec, c.Refs[0])
				a, b := s.lineOf(ec, c.Refs[1])
				d := b.sub(a)
				r := d.cross(p.sub(a)).div(d.len()).scale(sign).sub(con(value()))
				return []num{r}
			}}
		}
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			a := s.point(ec, c.Refs[0])
			b := s.point(ec, c.Refs[1])
			return []num{a.sub(b).len().sub(con(value()))}
		}}

	case model.Angle:
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			a1, b1 := s.lineOf(ec, c.Refs[0])
			a2, b2 := s.lineOf(ec, c.Refs[1])
			d1 := b1.sub(a1)
			d2 := b2.sub(a2)
			r := atan2n(d1.cross(d2), d1.dot(d2)).sub(con(value()))
			r.v = wrapAngle(r.v)
			return []num{r}
		}}

	case model.Parallel:
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			a1, b1 := s.lineOf(ec, c.Refs[0])
			a2, b2 := s.lineOf(ec, c.Refs[1])
			return []num{b1.sub(a1).cross(b2.sub(a2))}
		}}

	case model.Perpendicular:
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			a1, b1 := s.lineOf(ec, c.Refs[0])
			a2, b2 := s.lineOf(ec, c.Refs[1])
			return []num{b1.sub(a1).dot(b2.sub(a2))}
		}}

	case model.Horizontal:
		if len(c.Refs) == 1 {
			return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
				a, b := s.lineOf(ec, c.Refs[0])
				return []num{a.y.sub(b.y)}
			}}
		}
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			a := s.point(ec, c.Refs[0])
			b := s.point(ec, c.Refs[1])
			return []num{a.y.sub(b.y)}
		}}

	case model.Vertical:
		if len(c.Refs) == 1 {
			return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
				a, b := s.lineOf(ec, c.Refs[0])
				return []num{a.x.sub(b.x)}
			}}
		}
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			a := s.point(ec, c.Refs[0])
			b := s.point(ec, c.Refs[1])
			return []num{a.x.sub(b.x)}
		}}

	case model.Equal:
		if s.isCircular(c.Refs[0]) {
			return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
				_, r1 := s.circularOf(ec, c.Refs[0])
				_, r2 := s.circularOf(ec, c.Refs[1])
				return []num{r1.sub(r2)}
			}}
		}
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			a1, b1 := s.lineOf(ec, c.Refs[0])
			a2, b2 := s.lineOf(ec, c.Refs[1])
			return []num{b1.sub(a1).len().sub(b2.sub(a2).len())}
		}}

	case model.Symmetric:
		return equation{id: c.ID, n: 2, eval: func(ec *evalCtx) []num {
			p1 := s.point(ec, c.Refs[0])
			p2 := s.point(ec, c.Refs[1])
			a, b := s.lineOf(ec, c.Refs[2])
			d := b.sub(a)
			n := vec2{d.y.neg(), d.x}
			k := p1.sub(a).dot(n).scale(2).div(d.dot(d))
			mirror := p1.sub(n.scaleN(k))
			return []num{mirror.x.sub(p2.x), mirror.y.sub(p2.y)}
		}}

	case model.Tangent:
		if s.isLine(c.Refs[0]) {
			sign := s.seedTangentSign(c)
			return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
				a, b := s.lineOf(ec, c.Refs[0])
				center, radius := s.circularOf(ec, c.Refs[1])
				d := b.sub(a)
				dist := d.cross(center.sub(a)).div(d.len()).scale(sign)
				return []num{dist.sub(radius)}
			}}
		}
		external, swap := s.seedTangentVariant(c)
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			c1, r1 := s.circularOf(ec, c.Refs[0])
			c2, r2 := s.circularOf(ec, c.Refs[1])
			d := c1.sub(c2).len()
			if external {
				return []num{d.sub(r1.add(r2))}
			}
			if swap {
				r1, r2 = r2, r1
			}
			return []num{d.sub(r1.sub(r2))}
		}}

	case model.PointOnObject:
		if s.isLine(c.Refs[1]) {
			return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
				p := s.point(ec, c.Refs[0])
				a, b := s.lineOf(ec, c.Refs[1])
				return []num{b.sub(a).cross(p.sub(a))}
			}}
		}
		return equation{id: c.ID, n: 1, eval: func(ec *evalCtx) []num {
			p := s.point(ec, c.Refs[0])
			center, radius := s.circularOf(ec, c.Refs[1])
			return []num{p.sub(center).len().sub(radius)}
		}}
	}

	errors.Invariant("constraint kind %s reached residual compilation", c.Kind)
	return equation{}
}

// seedDistanceSign fixes the side of a point-line distance from the
// seed so the residual stays smooth.
func (s *system) seedDistanceSign(c *model.Constraint) float64 {
	ec := s.seedCtx(s.seedVector())
	p := s.point(ec, c.Refs[0])
	a, b := s.lineOf(ec, c.Refs[1])
	if b.sub(a).cross(p.sub(a)).v < 0 {
		return -1
	}
	return 1
}

// seedTangentSign fixes the side of a line-circle tangency.
func (s *system) seedTangentSign(c *model.Constraint) float64 {
	ec := s.seedCtx(s.seedVector())
	a, b := s.lineOf(ec, c.Refs[0])
	center, _ := s.circularOf(ec, c.Refs[1])
	if b.sub(a).cross(center.sub(a)).v < 0 {
		return -1
	}
	return 1
}

// seedTangentVariant chooses internal or external circle-circle
// tangency from whichever the seed is closer to, and which radius
// dominates the internal case.
func (s *system) seedTangentVariant(c *model.Constraint) (external, swap bool) {
	ec := s.seedCtx(s.seedVector())
	c1, r1 := s.circularOf(ec, c.Refs[0])
	c2, r2 := s.circularOf(ec, c.Refs[1])
	d := c1.sub(c2).len().v
	external = math.Abs(d-(r1.v+r2.v)) <= math.Abs(d-math.Abs(r1.v-r2.v))
	swap = r2.v > r1.v
	return external, swap
}
