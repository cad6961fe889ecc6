// Package model owns the sketch entities and constraints: stable
// integer identities, parameter vectors, structural validation at
// mutation time, cascade delete, and change events. Solvability is a
// solver-time property and is never checked here.
package model

// EntityID identifies an entity for the lifetime of the sketch.
type EntityID int

// ConstraintID identifies a constraint for the lifetime of the sketch.
type ConstraintID int

// EntityKind enumerates the closed set of entity variants.
type EntityKind int

const (
	KindPoint EntityKind = iota
	KindLine
	KindCircle
	KindArc
	KindSpline
)

// String returns the string representation of the entity kind.
func (k EntityKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindCircle:
		return "circle"
	case KindArc:
		return "arc"
	case KindSpline:
		return "spline"
	default:
		return "unknown"
	}
}

// ParamCount returns the number of scalar parameters an entity kind
// owns, or -1 for variable-arity kinds (spline control polygons).
func (k EntityKind) ParamCount() int {
	switch k {
	case KindPoint:
		return 2 // x, y
	case KindLine:
		return 4 // x1, y1, x2, y2
	case KindCircle:
		return 3 // cx, cy, r
	case KindArc:
		return 5 // cx, cy, r, start, end
	case KindSpline:
		return -1 // 2n control coordinates, n >= 2
	default:
		return 0
	}
}

// Style tags an entity's display role.
type Style int

const (
	StyleNormal Style = iota
	StyleReference
)

// String returns the string representation of the style.
func (s Style) String() string {
	if s == StyleReference {
		return "reference"
	}
	return "normal"
}

// Anchor selects which feature of an entity a constraint reference
// binds to. AnchorSelf binds the entity as a whole.
type Anchor int

const (
	AnchorSelf Anchor = iota
	AnchorStart
	AnchorEnd
	AnchorCenter
	AnchorMid
)

// String returns the string representation of the anchor.
func (a Anchor) String() string {
	switch a {
	case AnchorSelf:
		return "self"
	case AnchorStart:
		return "start"
	case AnchorEnd:
		return "end"
	case AnchorCenter:
		return "center"
	case AnchorMid:
		return "mid"
	default:
		return "unknown"
	}
}

// ValidFor reports whether the anchor is meaningful for an entity kind.
func (a Anchor) ValidFor(k EntityKind) bool {
	switch k {
	case KindPoint, KindSpline:
		return a == AnchorSelf
	case KindLine:
		return a == AnchorSelf || a == AnchorStart || a == AnchorEnd || a == AnchorMid
	case KindCircle:
		return a == AnchorSelf || a == AnchorCenter
	case KindArc:
		return true
	default:
		return false
	}
}

// IsPoint reports whether the anchor resolves to a single point on an
// entity of the given kind.
func (a Anchor) IsPoint(k EntityKind) bool {
	if k == KindPoint {
		return a == AnchorSelf
	}
	return a != AnchorSelf && a.ValidFor(k)
}

// ConstraintKind enumerates the closed set of constraint variants.
type ConstraintKind int

const (
	Coincident ConstraintKind = iota
	Distance
	Angle
	Parallel
	Perpendicular
	Tangent
	Equal
	Symmetric
	Horizontal
	Vertical
	Fixed
	PointOnObject
	Concentric
)

// String returns the string representation of the constraint kind.
func (k ConstraintKind) String() string {
	switch k {
	case Coincident:
		return "coincident"
	case Distance:
		return "distance"
	case Angle:
		return "angle"
	case Parallel:
		return "parallel"
	case Perpendicular:
		return "perpendicular"
	case Tangent:
		return "tangent"
	case Equal:
		return "equal"
	case Symmetric:
		return "symmetric"
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case Fixed:
		return "fixed"
	case PointOnObject:
		return "point-on-object"
	case Concentric:
		return "concentric"
	default:
		return "unknown"
	}
}

// NeedsValue reports whether the constraint kind takes a driving value.
func (k ConstraintKind) NeedsValue() bool {
	return k == Distance || k == Angle
}

// EquationCount returns the number of residual equations the kind
// contributes. Fixed contributes none; it removes its entity's
// parameters from the free set instead.
func (k ConstraintKind) EquationCount() int {
	switch k {
	case Coincident, Symmetric, Concentric:
		return 2
	case Fixed:
		return 0
	default:
		return 1
	}
}
