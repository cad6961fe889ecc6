package model

import (
	"github.com/conneroisu/sketchcad/internal/geom"
)

// PatternRef ties a derived entity back to the pattern that produced
// it so the pattern can regenerate its instances.
type PatternRef struct {
	Pattern  int // pattern id, assigned by the pattern engine
	Instance int // 1-based instance index beyond the source
}

// Entity is a sketch entity: a kind tag plus the scalar parameters the
// solver owns. Entities never reference each other directly;
// relationships are expressed only through constraints.
type Entity struct {
	ID           EntityID
	Kind         EntityKind
	Params       []float64
	Construction bool
	Style        Style
	Pattern      *PatternRef
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Params = append([]float64(nil), e.Params...)
	if e.Pattern != nil {
		p := *e.Pattern
		c.Pattern = &p
	}
	return &c
}

// AsLine interprets the entity parameters as a line segment.
func (e *Entity) AsLine() geom.Line {
	return geom.Line{
		A: geom.V(e.Params[0], e.Params[1]),
		B: geom.V(e.Params[2], e.Params[3]),
	}
}

// AsCircle interprets the entity parameters as a circle.
func (e *Entity) AsCircle() geom.Circle {
	return geom.Circle{
		Center: geom.V(e.Params[0], e.Params[1]),
		R:      e.Params[2],
	}
}

// AsArc interprets the entity parameters as an arc.
func (e *Entity) AsArc() geom.Arc {
	return geom.Arc{
		Center: geom.V(e.Params[0], e.Params[1]),
		R:      e.Params[2],
		Start:  e.Params[3],
		End:    e.Params[4],
	}
}

// AsPoint interprets the entity parameters as a point.
func (e *Entity) AsPoint() geom.Vec {
	return geom.V(e.Params[0], e.Params[1])
}

// SplinePoints interprets the entity parameters as a control polygon.
func (e *Entity) SplinePoints() []geom.Vec {
	pts := make([]geom.Vec, len(e.Params)/2)
	for i := range pts {
		pts[i] = geom.V(e.Params[2*i], e.Params[2*i+1])
	}
	return pts
}

// AnchorPoint resolves a point anchor on the entity's current
// geometry. The second return is false when the anchor does not
// resolve to a point for this kind.
func (e *Entity) AnchorPoint(a Anchor) (geom.Vec, bool) {
	switch e.Kind {
	case KindPoint:
		if a == AnchorSelf {
			return e.AsPoint(), true
		}
	case KindLine:
		l := e.AsLine()
		switch a {
		case AnchorStart:
			return l.A, true
		case AnchorEnd:
			return l.B, true
		case AnchorMid:
			return l.Mid(), true
		}
	case KindCircle:
		if a == AnchorCenter {
			return e.AsCircle().Center, true
		}
	case KindArc:
		arc := e.AsArc()
		switch a {
		case AnchorStart:
			return arc.StartPoint(), true
		case AnchorEnd:
			return arc.EndPoint(), true
		case AnchorCenter:
			return arc.Center, true
		case AnchorMid:
			return arc.MidPoint(), true
		}
	}
	return geom.Vec{}, false
}

// Ref names an entity feature a constraint binds to.
type Ref struct {
	Entity EntityID
	Anchor Anchor
}

// R is shorthand for a whole-entity reference.
func R(id EntityID) Ref {
	return Ref{Entity: id, Anchor: AnchorSelf}
}

// RA is shorthand for an anchored reference.
func RA(id EntityID, a Anchor) Ref {
	return Ref{Entity: id, Anchor: a}
}

// Value is a constraint driving value: a literal, optionally derived
// from a formula that is re-evaluated at solve time. Formula text is
// carried verbatim for round-tripping; Literal holds the last
// evaluated result.
type Value struct {
	Literal float64
	Formula string
}

// Lit constructs a literal value.
func Lit(v float64) *Value {
	return &Value{Literal: v}
}

// Formula constructs a formula-driven value with its last known
// numeric result.
func Formula(text string, last float64) *Value {
	return &Value{Literal: last, Formula: text}
}

// Constraint relates entity features and contributes equations to the
// solver. Constraints hold identities, never entity pointers.
type Constraint struct {
	ID    ConstraintID
	Kind  ConstraintKind
	Refs  []Ref
	Value *Value
}

// Clone returns a deep copy of the constraint.
func (c *Constraint) Clone() *Constraint {
	cc := *c
	cc.Refs = append([]Ref(nil), c.Refs...)
	if c.Value != nil {
		v := *c.Value
		cc.Value = &v
	}
	return &cc
}

// References reports whether the constraint references the entity.
func (c *Constraint) References(id EntityID) bool {
	for _, r := range c.Refs {
		if r.Entity == id {
			return true
		}
	}
	return false
}
