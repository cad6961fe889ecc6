package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/model"
)

func buildIndex(t *testing.T, build func(sk *model.Sketch)) (*Index, *model.Sketch) {
	t.Helper()
	sk := model.NewSketch()
	build(sk)
	ix := New(10)
	ix.Sync(sk)
	return ix, sk
}

func TestHitTestFindsEndpointsAndBody(t *testing.T) {
	var line model.EntityID
	ix, _ := buildIndex(t, func(sk *model.Sketch) {
		var err error
		line, err = sk.AddEntity(model.KindLine, []float64{0, 0, 10, 0})
		require.NoError(t, err)
	})

	hits := ix.HitTest(geom.V(0.5, 0.5), 1)
	require.NotEmpty(t, hits)
	assert.Equal(t, FeatureEndpoint, hits[0].Kind)
	assert.Equal(t, model.AnchorStart, hits[0].Anchor)
	assert.Equal(t, line, hits[0].Entity)

	// Far from any endpoint, only the body is in range.
	hits = ix.HitTest(geom.V(3, 0.4), 0.5)
	require.Len(t, hits, 1)
	assert.Equal(t, FeatureBody, hits[0].Kind)
	assert.InDelta(t, 0.4, hits[0].Dist, 1e-12)
	assert.InDelta(t, 3.0, hits[0].Point.X, 1e-12)
	assert.InDelta(t, 0.0, hits[0].Point.Y, 1e-12)
}

func TestSnapPrefersEndpointOverBody(t *testing.T) {
	ix, _ := buildIndex(t, func(sk *model.Sketch) {
		_, err := sk.AddEntity(model.KindLine, []float64{0, 0, 10, 0})
		require.NoError(t, err)
	})

	// The body passes directly under the cursor but the endpoint is
	// still in range; the endpoint wins.
	hit, ok := ix.Snap(geom.V(0.8, 0), 1)
	require.True(t, ok)
	assert.Equal(t, FeatureEndpoint, hit.Kind)
	assert.Equal(t, model.AnchorStart, hit.Anchor)
}

func TestSnapMidpointAndCenter(t *testing.T) {
	var line, circle model.EntityID
	ix, _ := buildIndex(t, func(sk *model.Sketch) {
		var err error
		line, err = sk.AddEntity(model.KindLine, []float64{0, 0, 10, 0})
		require.NoError(t, err)
		circle, err = sk.AddEntity(model.KindCircle, []float64{50, 50, 5})
		require.NoError(t, err)
	})

	hit, ok := ix.Snap(geom.V(5.2, 0.3), 1)
	require.True(t, ok)
	assert.Equal(t, FeatureMidpoint, hit.Kind)
	assert.Equal(t, line, hit.Entity)
	assert.Equal(t, model.AnchorMid, hit.Anchor)

	hit, ok = ix.Snap(geom.V(50.4, 49.8), 1)
	require.True(t, ok)
	assert.Equal(t, FeatureCenter, hit.Kind)
	assert.Equal(t, circle, hit.Entity)
}

func TestSnapOutOfRange(t *testing.T) {
	ix, _ := buildIndex(t, func(sk *model.Sketch) {
		_, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
		require.NoError(t, err)
	})

	_, ok := ix.Snap(geom.V(100, 100), 5)
	assert.False(t, ok)
}

func TestNearestUnbounded(t *testing.T) {
	var far model.EntityID
	ix, _ := buildIndex(t, func(sk *model.Sketch) {
		_, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
		require.NoError(t, err)
		far, err = sk.AddEntity(model.KindPoint, []float64{1000, 1000})
		require.NoError(t, err)
	})

	hit, ok := ix.Nearest(geom.V(900, 900))
	require.True(t, ok)
	assert.Equal(t, far, hit.Entity)
}

func TestSyncTracksSketchGeneration(t *testing.T) {
	sk := model.NewSketch()
	p, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	ix := New(10)
	ix.Sync(sk)

	hit, ok := ix.Snap(geom.V(0, 0), 1)
	require.True(t, ok)
	assert.Equal(t, p, hit.Entity)

	// Move the point; a stale index would still report the old spot.
	require.NoError(t, sk.SetParams(p, []float64{500, 500}))
	ix.Sync(sk)

	_, ok = ix.Snap(geom.V(0, 0), 1)
	assert.False(t, ok)
	hit, ok = ix.Snap(geom.V(500.3, 500), 1)
	require.True(t, ok)
	assert.Equal(t, p, hit.Entity)
}

func TestSyncNoChangeKeepsIndex(t *testing.T) {
	sk := model.NewSketch()
	_, err := sk.AddEntity(model.KindPoint, []float64{0, 0})
	require.NoError(t, err)

	ix := New(10)
	ix.Sync(sk)
	gen := ix.generation
	ix.Sync(sk)
	assert.Equal(t, gen, ix.generation)
}

func TestHitTestArcFeatures(t *testing.T) {
	var arc model.EntityID
	ix, _ := buildIndex(t, func(sk *model.Sketch) {
		var err error
		// Quarter arc centered at origin from (5,0) to (0,5).
		arc, err = sk.AddEntity(model.KindArc, []float64{0, 0, 5, 0, 1.5707963267948966})
		require.NoError(t, err)
	})

	hit, ok := ix.Snap(geom.V(4.9, 0.1), 0.5)
	require.True(t, ok)
	assert.Equal(t, FeatureEndpoint, hit.Kind)
	assert.Equal(t, model.AnchorStart, hit.Anchor)
	assert.Equal(t, arc, hit.Entity)

	hit, ok = ix.Snap(geom.V(0.2, -0.1), 0.5)
	require.True(t, ok)
	assert.Equal(t, FeatureCenter, hit.Kind)

	// On the arc itself, away from endpoints and midpoint.
	hit, ok = ix.Snap(geom.V(4.57, 2.11), 0.3)
	require.True(t, ok)
	assert.Equal(t, FeatureBody, hit.Kind)
	assert.Equal(t, arc, hit.Entity)
}

func TestHitTestOrdersByPriorityThenDistance(t *testing.T) {
	ix, _ := buildIndex(t, func(sk *model.Sketch) {
		_, err := sk.AddEntity(model.KindLine, []float64{0, 0, 10, 0})
		require.NoError(t, err)
		_, err = sk.AddEntity(model.KindPoint, []float64{1, 1})
		require.NoError(t, err)
	})

	hits := ix.HitTest(geom.V(0.5, 0.5), 2)
	require.GreaterOrEqual(t, len(hits), 3)
	for i := 1; i < len(hits); i++ {
		if hits[i-1].Kind == hits[i].Kind {
			assert.LessOrEqual(t, hits[i-1].Dist, hits[i].Dist)
		} else {
			assert.Less(t, hits[i-1].Kind, hits[i].Kind)
		}
	}
}
