package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVecOps(t *testing.T) {
	v := V(3, 4)
	assert.Equal(t, 5.0, v.Len())
	assert.Equal(t, V(4, 6), v.Add(V(1, 2)))
	assert.Equal(t, V(2, 2), v.Sub(V(1, 2)))
	assert.Equal(t, 11.0, v.Dot(V(1, 2)))
	assert.Equal(t, 2.0, v.Cross(V(1, 2)))
	assert.InDelta(t, 1.0, v.Norm().Len(), 1e-12)
	assert.Equal(t, V(-4, 3), v.Perp())
}

func TestVecRotate(t *testing.T) {
	r := V(1, 0).Rotate(math.Pi / 2)
	assert.InDelta(t, 0, r.X, 1e-12)
	assert.InDelta(t, 1, r.Y, 1e-12)
}

func TestLineProjection(t *testing.T) {
	l := Line{A: V(0, 0), B: V(10, 0)}
	assert.Equal(t, V(4, 0), l.Project(V(4, 3)))
	assert.Equal(t, V(0, 0), l.Project(V(-5, 1)))
	assert.Equal(t, V(10, 0), l.Project(V(15, 1)))
	assert.InDelta(t, 3, l.Dist(V(4, 3)), 1e-12)
	assert.InDelta(t, 3, l.DistInfinite(V(-4, 3)), 1e-12)
}

func TestLineLineIntersection(t *testing.T) {
	p, ok := LineLine(Line{V(0, 0), V(2, 2)}, Line{V(0, 2), V(2, 0)}, 1e-12)
	require.True(t, ok)
	assert.InDelta(t, 1, p.X, 1e-12)
	assert.InDelta(t, 1, p.Y, 1e-12)

	_, ok = LineLine(Line{V(0, 0), V(1, 0)}, Line{V(0, 1), V(1, 1)}, 1e-12)
	assert.False(t, ok)
}

func TestSegSeg(t *testing.T) {
	_, ok := SegSeg(Line{V(0, 0), V(1, 0)}, Line{V(2, -1), V(2, 1)}, 1e-12)
	assert.False(t, ok, "crossing outside the first span")

	p, ok := SegSeg(Line{V(0, 0), V(4, 0)}, Line{V(2, -1), V(2, 1)}, 1e-12)
	require.True(t, ok)
	assert.Equal(t, V(2, 0), p)
}

func TestLineCircle(t *testing.T) {
	c := Circle{Center: V(0, 0), R: 1}
	pts := LineCircle(Line{V(-2, 0), V(2, 0)}, c, 1e-9)
	require.Len(t, pts, 2)
	assert.InDelta(t, -1, pts[0].X, 1e-9)
	assert.InDelta(t, 1, pts[1].X, 1e-9)

	pts = LineCircle(Line{V(-2, 1), V(2, 1)}, c, 1e-9)
	require.Len(t, pts, 1, "tangent line")
	assert.InDelta(t, 0, pts[0].X, 1e-9)

	assert.Empty(t, LineCircle(Line{V(-2, 3), V(2, 3)}, c, 1e-9))
}

func TestCircleCircle(t *testing.T) {
	a := Circle{Center: V(0, 0), R: 1}
	b := Circle{Center: V(1, 0), R: 1}
	pts := CircleCircle(a, b, 1e-9)
	require.Len(t, pts, 2)
	for _, p := range pts {
		assert.InDelta(t, 1, p.Dist(a.Center), 1e-9)
		assert.InDelta(t, 1, p.Dist(b.Center), 1e-9)
	}

	pts = CircleCircle(a, Circle{Center: V(2, 0), R: 1}, 1e-9)
	require.Len(t, pts, 1, "externally tangent")

	assert.Empty(t, CircleCircle(a, Circle{Center: V(5, 0), R: 1}, 1e-9))
}

func TestArc(t *testing.T) {
	a := Arc{Center: V(0, 0), R: 2, Start: 0, End: math.Pi / 2}
	assert.InDelta(t, math.Pi/2, a.Sweep(), 1e-12)
	assert.InDelta(t, 2, a.StartPoint().X, 1e-12)
	assert.InDelta(t, 2, a.EndPoint().Y, 1e-12)
	assert.True(t, a.ContainsAngle(math.Pi/4))
	assert.False(t, a.ContainsAngle(math.Pi))

	// Projection clamps to the nearer endpoint off the sweep.
	p := a.Project(V(-3, -0.1))
	assert.InDelta(t, 0, p.Dist(a.StartPoint()), 1e-9)
}

func TestTransforms(t *testing.T) {
	tr := Translate(V(2, 3))
	assert.Equal(t, V(3, 4), tr.Apply(V(1, 1)))

	rot := RotateAbout(V(1, 1), math.Pi)
	p := rot.Apply(V(2, 1))
	assert.InDelta(t, 0, p.X, 1e-12)
	assert.InDelta(t, 1, p.Y, 1e-12)

	mir := MirrorAcross(Line{V(0, 0), V(0, 1)})
	q := mir.Apply(V(3, 5))
	assert.InDelta(t, -3, q.X, 1e-12)
	assert.InDelta(t, 5, q.Y, 1e-12)

	// Compose: rotate then translate.
	comp := tr.Mul(rot)
	r := comp.Apply(V(2, 1))
	assert.InDelta(t, 2, r.X, 1e-12)
	assert.InDelta(t, 4, r.Y, 1e-12)
}

func TestSignedAreaAndContainment(t *testing.T) {
	square := []Vec{V(0, 0), V(1, 0), V(1, 1), V(0, 1)}
	assert.InDelta(t, 1, SignedArea(square), 1e-12)

	reversed := []Vec{V(0, 1), V(1, 1), V(1, 0), V(0, 0)}
	assert.InDelta(t, -1, SignedArea(reversed), 1e-12)

	assert.True(t, PolygonContains(square, V(0.5, 0.5)))
	assert.False(t, PolygonContains(square, V(1.5, 0.5)))
}
