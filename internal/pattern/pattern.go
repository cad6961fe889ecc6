// Package pattern replicates sketch entities along regular layouts.
// Derived entities are ordinary entities tagged with a PatternRef back
// to the pattern that produced them; dragging an instance never feeds
// back into the source. A recorded spec can be re-applied under the
// same pattern id to regenerate instances after the sources or the
// layout change.
package pattern

import (
	"math"
	"sync/atomic"

	"github.com/conneroisu/sketchcad/internal/errors"
	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/model"
)

// Spec is a pattern layout. Validate rejects degenerate parameters
// before any entity is created; layout yields the instance transforms.
type Spec interface {
	Validate() error
	layout() plan
}

// plan is the materialization recipe a spec expands to.
type plan struct {
	count     int
	tieBack   bool
	axis      model.EntityID // Symmetric tie-back axis, mirror only
	transform func(i int) (geom.Transform2, bool)
}

// Linear replicates sources Count times total, stepping by Step for
// each instance beyond the first. TieBack adds an Equal constraint
// between each source and its instances (lines, circles, arcs).
type Linear struct {
	Count   int
	Step    geom.Vec
	TieBack bool
}

// Validate rejects a negative count or a zero step.
func (p Linear) Validate() error {
	if p.Count < 0 {
		return errors.Structural("ApplyLinear", "count must be non-negative, got %d", p.Count)
	}
	if p.Count > 1 && p.Step.Len() == 0 {
		return errors.Structural("ApplyLinear", "step must be non-zero")
	}
	return nil
}

func (p Linear) layout() plan {
	return plan{count: p.Count, tieBack: p.TieBack, transform: func(i int) (geom.Transform2, bool) {
		return geom.Translate(p.Step.Scale(float64(i))), false
	}}
}

// Circular replicates sources Count times total, rotating by Step
// radians about Center for each instance beyond the first.
type Circular struct {
	Count   int
	Center  geom.Vec
	Step    float64
	TieBack bool
}

// Validate rejects a negative count or a zero angular step.
func (p Circular) Validate() error {
	if p.Count < 0 {
		return errors.Structural("ApplyCircular", "count must be non-negative, got %d", p.Count)
	}
	if p.Count > 1 && p.Step == 0 {
		return errors.Structural("ApplyCircular", "angular step must be non-zero")
	}
	return nil
}

func (p Circular) layout() plan {
	return plan{count: p.Count, tieBack: p.TieBack, transform: func(i int) (geom.Transform2, bool) {
		return geom.RotateAbout(p.Center, p.Step*float64(i)), false
	}}
}

// Mirror reflects sources once across the infinite line through Axis.
// With TieBack, sized sources get an Equal constraint; point sources
// get a Symmetric constraint when AxisEntity names a line entity.
type Mirror struct {
	Axis       geom.Line
	AxisEntity model.EntityID
	TieBack    bool
}

// Validate rejects a degenerate axis.
func (p Mirror) Validate() error {
	if p.Axis.Dir().Len() == 0 {
		return errors.Structural("ApplyMirror", "mirror axis is degenerate")
	}
	return nil
}

func (p Mirror) layout() plan {
	return plan{count: 2, tieBack: p.TieBack, axis: p.AxisEntity, transform: func(i int) (geom.Transform2, bool) {
		return geom.MirrorAcross(p.Axis), true
	}}
}

// Result reports what a pattern application created.
type Result struct {
	Pattern  int // id stamped into every derived entity's PatternRef
	Created  []model.EntityID
	TieBacks []model.ConstraintID
}

var nextPattern atomic.Int64

// Apply materializes a spec under a fresh pattern id. Count <= 1 is a
// no-op that still allocates the id.
func Apply(sk *model.Sketch, sources []model.EntityID, spec Spec) (Result, error) {
	return applyID(sk, sources, spec, int(nextPattern.Add(1)))
}

// Reapply materializes a spec under an existing pattern id, so edits
// to a recorded pattern keep the tags on its instances stable. The
// caller removes the prior instances first.
func Reapply(sk *model.Sketch, sources []model.EntityID, spec Spec, patternID int) (Result, error) {
	return applyID(sk, sources, spec, patternID)
}

// ApplyLinear adds Count-1 translated copies of the source entities.
func ApplyLinear(sk *model.Sketch, sources []model.EntityID, p Linear) (Result, error) {
	return Apply(sk, sources, p)
}

// ApplyCircular adds Count-1 rotated copies of the source entities.
func ApplyCircular(sk *model.Sketch, sources []model.EntityID, p Circular) (Result, error) {
	return Apply(sk, sources, p)
}

// ApplyMirror adds one reflected copy of the source entities.
func ApplyMirror(sk *model.Sketch, sources []model.EntityID, p Mirror) (Result, error) {
	return Apply(sk, sources, p)
}

func applyID(sk *model.Sketch, sources []model.EntityID, spec Spec, patternID int) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, err
	}
	ents, err := resolve(sk, sources)
	if err != nil {
		return Result{}, err
	}

	pl := spec.layout()
	res := Result{Pattern: patternID}
	if pl.count <= 1 {
		return res, nil
	}
	for i := 1; i < pl.count; i++ {
		tr, flips := pl.transform(i)
		for _, src := range ents {
			params := transformParams(src, tr, flips)
			id, err := sk.AddEntity(src.Kind, params)
			if err != nil {
				return res, err
			}
			if src.Construction {
				if err := sk.SetConstruction(id, true); err != nil {
					return res, err
				}
			}
			ref := &model.PatternRef{Pattern: res.Pattern, Instance: i}
			if err := sk.SetPatternRef(id, ref); err != nil {
				return res, err
			}
			res.Created = append(res.Created, id)

			if pl.tieBack {
				cid, ok, err := tieBack(sk, src, id, pl.axis)
				if err != nil {
					return res, err
				}
				if ok {
					res.TieBacks = append(res.TieBacks, cid)
				}
			}
		}
	}
	return res, nil
}

// tieBack binds an instance to its source: Equal for sized entities,
// Symmetric for points across the named axis. Splines and axis-less
// points stay untied.
func tieBack(sk *model.Sketch, src *model.Entity, inst model.EntityID, axis model.EntityID) (model.ConstraintID, bool, error) {
	switch src.Kind {
	case model.KindLine, model.KindCircle, model.KindArc:
		cid, err := sk.AddConstraint(model.Equal, []model.Ref{model.R(src.ID), model.R(inst)}, nil)
		return cid, err == nil, err
	case model.KindPoint:
		if axis == 0 {
			return 0, false, nil
		}
		cid, err := sk.AddConstraint(model.Symmetric, []model.Ref{model.R(src.ID), model.R(inst), model.R(axis)}, nil)
		return cid, err == nil, err
	}
	return 0, false, nil
}

func resolve(sk *model.Sketch, sources []model.EntityID) ([]*model.Entity, error) {
	ents := make([]*model.Entity, 0, len(sources))
	for _, id := range sources {
		e, ok := sk.Entity(id)
		if !ok {
			return nil, errors.Structural("pattern", "source entity %d does not exist", id)
		}
		ents = append(ents, e)
	}
	return ents, nil
}

// transformParams maps the source's parameters through tr. Radii are
// preserved: every supported transform is rigid.
func transformParams(e *model.Entity, tr geom.Transform2, flips bool) []float64 {
	switch e.Kind {
	case model.KindPoint:
		p := tr.Apply(e.AsPoint())
		return []float64{p.X, p.Y}
	case model.KindLine:
		l := e.AsLine()
		a, b := tr.Apply(l.A), tr.Apply(l.B)
		return []float64{a.X, a.Y, b.X, b.Y}
	case model.KindCircle:
		c := e.AsCircle()
		ctr := tr.Apply(c.Center)
		return []float64{ctr.X, ctr.Y, c.R}
	case model.KindArc:
		a := e.AsArc()
		ctr := tr.Apply(a.Center)
		sp := tr.Apply(a.StartPoint())
		ep := tr.Apply(a.EndPoint())
		if flips {
			// Reflection reverses the winding; swap endpoints to keep
			// the arc counter-clockwise.
			sp, ep = ep, sp
		}
		start := sp.Sub(ctr).Angle()
		end := ep.Sub(ctr).Angle()
		for end <= start {
			end += 2 * math.Pi
		}
		return []float64{ctr.X, ctr.Y, a.R, start, end}
	case model.KindSpline:
		pts := e.SplinePoints()
		out := make([]float64, 0, 2*len(pts))
		for _, p := range pts {
			q := tr.Apply(p)
			out = append(out, q.X, q.Y)
		}
		return out
	default:
		errors.Invariant("pattern cannot transform entity kind %v", e.Kind)
		return nil
	}
}
