package session

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/logging"
	"github.com/conneroisu/sketchcad/internal/model"
	"github.com/conneroisu/sketchcad/internal/pattern"
	"github.com/conneroisu/sketchcad/internal/spatial"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return New(nil, logging.NewNop())
}

func TestSolveAppliesParams(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()

	p1, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)
	p2, err := sk.AddEntity(model.KindPoint, []float64{3, 4})
	require.NoError(t, err)
	_, err = sk.AddConstraint(model.Coincident, []model.Ref{model.R(p1), model.R(p2)}, nil)
	require.NoError(t, err)

	res, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Converged)

	a, _ := sk.Entity(p1)
	b, _ := sk.Entity(p2)
	assert.InDelta(t, a.Params[0], b.Params[0], 1e-9)
	assert.InDelta(t, a.Params[1], b.Params[1], 1e-9)

	got, ok := s.LastResult()
	require.True(t, ok)
	assert.Equal(t, res, got)
}

func TestSolveResolvesFormulaValues(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()

	require.NoError(t, s.Params().Set("width", "6"))
	require.NoError(t, s.Params().Set("gap", "width / 2"))

	p1, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)
	p2, err := sk.AddEntity(model.KindPoint, []float64{1, 0})
	require.NoError(t, err)
	_, err = sk.AddConstraint(model.Fixed, []model.Ref{model.R(p1)}, nil)
	require.NoError(t, err)
	_, err = sk.AddConstraint(model.Distance,
		[]model.Ref{model.R(p1), model.R(p2)}, model.Formula("gap", 1))
	require.NoError(t, err)

	res, err := s.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, res.Converged)

	b, _ := sk.Entity(p2)
	dist := math.Hypot(b.Params[0], b.Params[1])
	assert.InDelta(t, 3.0, dist, 1e-6)

	// Changing the parameter changes the solved geometry on the next
	// solve.
	require.NoError(t, s.Params().Set("width", "10"))
	_, err = s.Solve(context.Background())
	require.NoError(t, err)
	b, _ = sk.Entity(p2)
	assert.InDelta(t, 5.0, math.Hypot(b.Params[0], b.Params[1]), 1e-6)
}

func TestDragMovesFreePoint(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()

	p, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	res, err := s.Drag(context.Background(), p, model.AnchorSelf, geom.V(7, -2))
	require.NoError(t, err)
	assert.True(t, res.Converged)

	e, _ := sk.Entity(p)
	assert.InDelta(t, 7.0, e.Params[0], 1e-9)
	assert.InDelta(t, -2.0, e.Params[1], 1e-9)
}

func TestDragRespectsConstraints(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()

	anchor, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)
	free, err := sk.AddEntity(model.KindPoint, []float64{5, 0})
	require.NoError(t, err)
	_, err = sk.AddConstraint(model.Fixed, []model.Ref{model.R(anchor)}, nil)
	require.NoError(t, err)
	_, err = sk.AddConstraint(model.Distance,
		[]model.Ref{model.R(anchor), model.R(free)}, model.Lit(5))
	require.NoError(t, err)

	// Pull the free point away; the solve snaps it back onto the
	// radius-5 circle near the drag target.
	res, err := s.Drag(context.Background(), free, model.AnchorSelf, geom.V(0, 9))
	require.NoError(t, err)
	require.True(t, res.Converged)

	e, _ := sk.Entity(free)
	assert.InDelta(t, 5.0, math.Hypot(e.Params[0], e.Params[1]), 1e-6)
	assert.Greater(t, e.Params[1], 4.0, "solution should stay near the drag target")
}

func TestDragRejectsBadAnchor(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()
	p, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	_, err = s.Drag(context.Background(), p, model.AnchorCenter, geom.V(1, 1))
	assert.Error(t, err)
	_, err = s.Drag(context.Background(), 99, model.AnchorSelf, geom.V(1, 1))
	assert.Error(t, err)
}

func TestProfilesCachedByGeneration(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()

	for _, l := range [][4]float64{
		{0, 0, 1, 0}, {1, 0, 1, 1}, {1, 1, 0, 1}, {0, 1, 0, 0},
	} {
		_, err := sk.AddEntity(model.KindLine, []float64{l[0], l[1], l[2], l[3]})
		require.NoError(t, err)
	}

	first := s.Profiles()
	require.Len(t, first, 1)
	assert.InDelta(t, 1.0, first[0].Outer.Area, 1e-9)

	// Unchanged sketch: same slice back, no recompute.
	again := s.Profiles()
	assert.Same(t, &first[0], &again[0])

	// A mutation invalidates the cache.
	_, err := sk.AddEntity(model.KindPoint, []float64{5, 5})
	require.NoError(t, err)
	assert.Len(t, s.Profiles(), 1)
}

func TestSnapUsesConfiguredRadius(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()
	p, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	hit, ok := s.Snap(geom.V(3, 3))
	require.True(t, ok)
	assert.Equal(t, p, hit.Entity)
	assert.Equal(t, spatial.FeatureEndpoint, hit.Kind)

	_, ok = s.Snap(geom.V(100, 100))
	assert.False(t, ok)
}

func TestCalibrationTransform(t *testing.T) {
	s := newTestSession(t)
	// Screen y grows downward; flip and scale into sketch space.
	s.SetCalibration(geom.Transform2{A: 0.5, D: -0.5, F: 50})

	p := s.ToSketch(geom.V(10, 20))
	assert.InDelta(t, 5.0, p.X, 1e-12)
	assert.InDelta(t, 40.0, p.Y, 1e-12)
}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()

	require.NoError(t, s.Params().Set("len", "4"))
	p1, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)
	p2, err := sk.AddEntity(model.KindPoint, []float64{1, 1})
	require.NoError(t, err)
	_, err = sk.AddConstraint(model.Distance,
		[]model.Ref{model.R(p1), model.R(p2)}, model.Formula("len", 4))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sketch.yaml")
	require.NoError(t, s.Save(path))

	loaded, err := Open(path, nil, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Sketch().EntityCount())
	assert.Equal(t, 1, loaded.Sketch().ConstraintCount())
	v, ok := loaded.Params().Get("len")
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-12)

	res, err := loaded.Solve(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Converged)
}

func TestDragCancelsSupersededSolve(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()
	p, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	// The second drag cancels the first one's context; with a trivial
	// sketch both still finish, so assert on the final geometry only.
	_, _ = s.Drag(context.Background(), p, model.AnchorSelf, geom.V(1, 1))
	res, err := s.Drag(context.Background(), p, model.AnchorSelf, geom.V(2, 2))
	require.NoError(t, err)
	require.True(t, res.Converged)

	e, _ := sk.Entity(p)
	assert.InDelta(t, 2.0, e.Params[0], 1e-9)
	assert.InDelta(t, 2.0, e.Params[1], 1e-9)
}

func TestApplyPatternRecordsAndEdits(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	res, err := s.ApplyPattern([]model.EntityID{src}, pattern.Linear{Count: 3, Step: geom.V(2, 0)})
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	old := res.Created

	// Growing the count regenerates under the same id; the old
	// instances are gone, the new ones carry the original tag.
	res2, err := s.EditPattern(res.Pattern, pattern.Linear{Count: 5, Step: geom.V(2, 0)})
	require.NoError(t, err)
	assert.Equal(t, res.Pattern, res2.Pattern)
	require.Len(t, res2.Created, 4)
	for _, id := range old {
		_, exists := sk.Entity(id)
		assert.False(t, exists)
	}
	for i, id := range res2.Created {
		e, ok := sk.Entity(id)
		require.True(t, ok)
		require.NotNil(t, e.Pattern)
		assert.Equal(t, res.Pattern, e.Pattern.Pattern)
		assert.InDelta(t, float64(2*(i+1)), e.Params[0], 1e-12)
	}

	spec, ok := s.Pattern(res.Pattern)
	require.True(t, ok)
	assert.Equal(t, pattern.Linear{Count: 5, Step: geom.V(2, 0)}, spec)
}

func TestRegeneratePatternFollowsSource(t *testing.T) {
	s := newTestSession(t)
	sk := s.Sketch()
	src, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	res, err := s.ApplyPattern([]model.EntityID{src}, pattern.Linear{Count: 2, Step: geom.V(1, 0)})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	require.NoError(t, sk.SetParams(src, []float64{0, 5}))
	res2, err := s.RegeneratePattern(res.Pattern)
	require.NoError(t, err)
	require.Len(t, res2.Created, 1)

	e, _ := sk.Entity(res2.Created[0])
	assert.InDelta(t, 1.0, e.Params[0], 1e-12)
	assert.InDelta(t, 5.0, e.Params[1], 1e-12)
}

func TestEditPatternUnknownID(t *testing.T) {
	s := newTestSession(t)
	_, err := s.EditPattern(99999, pattern.Linear{Count: 2, Step: geom.V(1, 0)})
	assert.Error(t, err)
	_, err = s.RegeneratePattern(99999)
	assert.Error(t, err)
}
