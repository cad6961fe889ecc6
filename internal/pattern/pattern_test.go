package pattern

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sketchcad/internal/errors"
	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/model"
)

func TestApplyLinearPoints(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	res, err := ApplyLinear(sk, []model.EntityID{src}, Linear{Count: 5, Step: geom.V(2, 0)})
	require.NoError(t, err)
	require.Len(t, res.Created, 4)

	for i, id := range res.Created {
		e, ok := sk.Entity(id)
		require.True(t, ok)
		assert.InDelta(t, float64(2*(i+1)), e.Params[0], 1e-12)
		assert.InDelta(t, 0.0, e.Params[1], 1e-12)
		require.NotNil(t, e.Pattern)
		assert.Equal(t, res.Pattern, e.Pattern.Pattern)
		assert.Equal(t, i+1, e.Pattern.Instance)
	}
}

func TestApplyLinearCountOneIsNoOp(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	for _, count := range []int{0, 1} {
		res, err := ApplyLinear(sk, []model.EntityID{src}, Linear{Count: count, Step: geom.V(1, 0)})
		require.NoError(t, err)
		assert.Empty(t, res.Created)
	}
	assert.Len(t, sk.Entities(), 1)
}

func TestApplyLinearRejectsBadArguments(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	_, err = ApplyLinear(sk, []model.EntityID{src}, Linear{Count: -2, Step: geom.V(1, 0)})
	assert.True(t, errors.IsStructural(err))

	_, err = ApplyLinear(sk, []model.EntityID{src}, Linear{Count: 3})
	assert.True(t, errors.IsStructural(err))

	_, err = ApplyLinear(sk, []model.EntityID{99}, Linear{Count: 2, Step: geom.V(1, 0)})
	assert.True(t, errors.IsStructural(err))

	assert.Len(t, sk.Entities(), 1, "failed patterns must not leave partial copies")
}

func TestApplyCircularPoints(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{1, 0})
	require.NoError(t, err)

	res, err := ApplyCircular(sk, []model.EntityID{src}, Circular{
		Count: 4, Center: geom.V(0, 0), Step: math.Pi / 2,
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 3)

	want := []geom.Vec{geom.V(0, 1), geom.V(-1, 0), geom.V(0, -1)}
	for i, id := range res.Created {
		e, _ := sk.Entity(id)
		assert.InDelta(t, want[i].X, e.Params[0], 1e-12)
		assert.InDelta(t, want[i].Y, e.Params[1], 1e-12)
	}
}

func TestApplyCircularLineKeepsLength(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindLine, []float64{1, 0, 3, 0})
	require.NoError(t, err)

	res, err := ApplyCircular(sk, []model.EntityID{src}, Circular{
		Count: 3, Center: geom.V(0, 0), Step: 2 * math.Pi / 3,
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 2)

	for _, id := range res.Created {
		e, _ := sk.Entity(id)
		assert.InDelta(t, 2.0, e.AsLine().Len(), 1e-12)
	}
}

func TestApplyMirrorLine(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindLine, []float64{1, 0, 2, 1})
	require.NoError(t, err)

	axis := geom.Line{A: geom.V(0, 0), B: geom.V(0, 1)}
	res, err := ApplyMirror(sk, []model.EntityID{src}, Mirror{Axis: axis})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	e, _ := sk.Entity(res.Created[0])
	l := e.AsLine()
	assert.InDelta(t, -1, l.A.X, 1e-12)
	assert.InDelta(t, 0, l.A.Y, 1e-12)
	assert.InDelta(t, -2, l.B.X, 1e-12)
	assert.InDelta(t, 1, l.B.Y, 1e-12)
}

func TestApplyMirrorArcStaysCounterClockwise(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindArc, []float64{0, 0, 1, 0, math.Pi / 2})
	require.NoError(t, err)

	axis := geom.Line{A: geom.V(0, 0), B: geom.V(0, 1)}
	res, err := ApplyMirror(sk, []model.EntityID{src}, Mirror{Axis: axis})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	e, _ := sk.Entity(res.Created[0])
	a := e.AsArc()
	assert.InDelta(t, math.Pi/2, a.Sweep(), 1e-12)
	assert.InDelta(t, 1.0, a.R, 1e-12)
	// Reflected quarter arc runs from the top of the circle to (-1, 0).
	assert.InDelta(t, 0, a.StartPoint().X, 1e-12)
	assert.InDelta(t, 1, a.StartPoint().Y, 1e-12)
	assert.InDelta(t, -1, a.EndPoint().X, 1e-12)
	assert.InDelta(t, 0, a.EndPoint().Y, 1e-12)
}

func TestApplyMirrorRejectsDegenerateAxis(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{1, 1})
	require.NoError(t, err)

	_, err = ApplyMirror(sk, []model.EntityID{src}, Mirror{
		Axis: geom.Line{A: geom.V(2, 2), B: geom.V(2, 2)},
	})
	assert.True(t, errors.IsStructural(err))
}

func TestApplyLinearCarriesConstructionFlag(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindLine, []float64{0, 0, 1, 0})
	require.NoError(t, err)
	require.NoError(t, sk.SetConstruction(src, true))

	res, err := ApplyLinear(sk, []model.EntityID{src}, Linear{Count: 2, Step: geom.V(0, 1)})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	e, _ := sk.Entity(res.Created[0])
	assert.True(t, e.Construction)
}

func TestApplyLinearTieBackEqualOnLines(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindLine, []float64{0, 0, 2, 0})
	require.NoError(t, err)

	res, err := ApplyLinear(sk, []model.EntityID{src}, Linear{Count: 3, Step: geom.V(0, 1), TieBack: true})
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	require.Len(t, res.TieBacks, 2)

	for i, cid := range res.TieBacks {
		c, ok := sk.Constraint(cid)
		require.True(t, ok)
		assert.Equal(t, model.Equal, c.Kind)
		assert.Equal(t, src, c.Refs[0].Entity)
		assert.Equal(t, res.Created[i], c.Refs[1].Entity)
	}
}

func TestApplyLinearTieBackSkipsPoints(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	res, err := ApplyLinear(sk, []model.EntityID{src}, Linear{Count: 3, Step: geom.V(1, 0), TieBack: true})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	assert.Empty(t, res.TieBacks, "points have no size to tie")
	assert.Zero(t, sk.ConstraintCount())
}

func TestApplyMirrorTieBackSymmetricPoints(t *testing.T) {
	sk := model.NewSketch()
	axisEnt, err := sk.AddEntity(model.KindLine, []float64{0, -5, 0, 5})
	require.NoError(t, err)
	src, err := sk.AddEntity(model.KindPoint, []float64{2, 1})
	require.NoError(t, err)

	res, err := ApplyMirror(sk, []model.EntityID{src}, Mirror{
		Axis:       geom.Line{A: geom.V(0, -5), B: geom.V(0, 5)},
		AxisEntity: axisEnt,
		TieBack:    true,
	})
	require.NoError(t, err)
	require.Len(t, res.TieBacks, 1)

	c, ok := sk.Constraint(res.TieBacks[0])
	require.True(t, ok)
	assert.Equal(t, model.Symmetric, c.Kind)
	assert.Equal(t, src, c.Refs[0].Entity)
	assert.Equal(t, res.Created[0], c.Refs[1].Entity)
	assert.Equal(t, axisEnt, c.Refs[2].Entity)
}

func TestReapplyKeepsPatternID(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	spec := Linear{Count: 2, Step: geom.V(1, 0)}
	r1, err := Apply(sk, []model.EntityID{src}, spec)
	require.NoError(t, err)
	require.Len(t, r1.Created, 1)
	require.NoError(t, sk.RemoveEntity(r1.Created[0]))

	r2, err := Reapply(sk, []model.EntityID{src}, Linear{Count: 4, Step: geom.V(1, 0)}, r1.Pattern)
	require.NoError(t, err)
	require.Len(t, r2.Created, 3)
	assert.Equal(t, r1.Pattern, r2.Pattern)
	for _, id := range r2.Created {
		e, _ := sk.Entity(id)
		require.NotNil(t, e.Pattern)
		assert.Equal(t, r1.Pattern, e.Pattern.Pattern)
	}
}

func TestPatternIDsAreDistinct(t *testing.T) {
	sk := model.NewSketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	r1, err := ApplyLinear(sk, []model.EntityID{src}, Linear{Count: 2, Step: geom.V(1, 0)})
	require.NoError(t, err)
	r2, err := ApplyLinear(sk, []model.EntityID{src}, Linear{Count: 2, Step: geom.V(0, 1)})
	require.NoError(t, err)

	assert.NotEqual(t, r1.Pattern, r2.Pattern)
}
