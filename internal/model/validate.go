package model

import (
	"github.com/conneroisu/sketchcad/internal/errors"
)

// validateEntityParams checks parameter arity for an entity kind.
func validateEntityParams(kind EntityKind, params []float64) error {
	want := kind.ParamCount()
	if want >= 0 {
		if len(params) != want {
			return errors.Structural("AddEntity", "%s requires %d parameters, got %d", kind, want, len(params))
		}
		return nil
	}
	// Spline: even count, at least two control points.
	if len(params) < 4 || len(params)%2 != 0 {
		return errors.Structural("AddEntity", "spline requires an even parameter count of at least 4, got %d", len(params))
	}
	return nil
}

// refClass describes what a resolved reference is usable as.
type refClass int

const (
	classPoint refClass = iota
	classLine
	classCircular // circle or arc
	classAny
)

func classify(r Ref, e *Entity) (refClass, bool) {
	if !r.Anchor.ValidFor(e.Kind) {
		return 0, false
	}
	if r.Anchor.IsPoint(e.Kind) || e.Kind == KindPoint {
		return classPoint, true
	}
	switch e.Kind {
	case KindLine:
		return classLine, true
	case KindCircle, KindArc:
		return classCircular, true
	default:
		return classAny, true
	}
}

// signature lists the reference classes a constraint kind accepts, in
// order. Multiple rows mean alternatives.
var signatures = map[ConstraintKind][][]refClass{
	Coincident:    {{classPoint, classPoint}},
	Distance:      {{classPoint, classPoint}, {classPoint, classLine}},
	Angle:         {{classLine, classLine}},
	Parallel:      {{classLine, classLine}},
	Perpendicular: {{classLine, classLine}},
	Tangent:       {{classLine, classCircular}, {classCircular, classCircular}},
	Equal:         {{classLine, classLine}, {classCircular, classCircular}},
	Symmetric:     {{classPoint, classPoint, classLine}},
	Horizontal:    {{classLine}, {classPoint, classPoint}},
	Vertical:      {{classLine}, {classPoint, classPoint}},
	Fixed:         {{classAny}},
	PointOnObject: {{classPoint, classLine}, {classPoint, classCircular}},
	Concentric:    {{classCircular, classCircular}},
}

// validateConstraint checks a constraint's references against the
// entities present in the sketch. The caller holds the lock.
func (s *Sketch) validateConstraint(kind ConstraintKind, refs []Ref, value *Value) error {
	rows, ok := signatures[kind]
	if !ok {
		return errors.Structural("AddConstraint", "unknown constraint kind %d", kind)
	}
	if kind.NeedsValue() && value == nil {
		return errors.Structural("AddConstraint", "%s requires a driving value", kind)
	}
	if !kind.NeedsValue() && value != nil {
		return errors.Structural("AddConstraint", "%s does not take a driving value", kind)
	}

	classes := make([]refClass, len(refs))
	for i, r := range refs {
		e, ok := s.entities[r.Entity]
		if !ok {
			return errors.Structural("AddConstraint", "entity %d does not exist", r.Entity)
		}
		c, ok := classify(r, e)
		if !ok {
			return errors.Structural("AddConstraint", "anchor %s is not valid for %s entity %d", r.Anchor, e.Kind, r.Entity)
		}
		classes[i] = c
	}

	for _, row := range rows {
		if matchSignature(row, classes) {
			return nil
		}
	}
	return errors.Structural("AddConstraint", "%s does not accept the given reference combination", kind)
}

func matchSignature(row, classes []refClass) bool {
	if len(row) != len(classes) {
		return false
	}
	for i, want := range row {
		if want == classAny {
			continue
		}
		if classes[i] != want {
			return false
		}
	}
	return true
}
