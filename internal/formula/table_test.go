package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sketchcad/internal/errors"
)

func TestSetAndGet(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set("a", "1"))
	require.NoError(t, tbl.Set("b", "3"))
	require.NoError(t, tbl.Set("c", "a + b*2"))

	v, ok := tbl.Get("c")
	require.True(t, ok)
	assert.InDelta(t, 7.0, v, 1e-12)
}

func TestRedefinePropagates(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set("width", "10"))
	require.NoError(t, tbl.Set("height", "width / 2"))
	require.NoError(t, tbl.Set("area", "width * height"))

	require.NoError(t, tbl.Set("width", "20"))

	v, _ := tbl.Get("height")
	assert.InDelta(t, 10.0, v, 1e-12)
	v, _ = tbl.Get("area")
	assert.InDelta(t, 200.0, v, 1e-12)
}

func TestSyntaxErrorRejected(t *testing.T) {
	tbl := NewTable()
	err := tbl.Set("a", "1 +")
	ee, ok := errors.IsExpression(err)
	require.True(t, ok)
	assert.Equal(t, errors.ExprSyntax, ee.Kind)
	_, defined := tbl.Get("a")
	assert.False(t, defined)
}

func TestUnknownReferenceRejected(t *testing.T) {
	tbl := NewTable()
	err := tbl.Set("a", "missing + 1")
	ee, ok := errors.IsExpression(err)
	require.True(t, ok)
	assert.Equal(t, errors.ExprUnknownReference, ee.Kind)
}

func TestCycleRejectedKeepsPriorValue(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set("a", "1"))
	require.NoError(t, tbl.Set("b", "a + 1"))

	err := tbl.Set("a", "b * 2")
	ee, ok := errors.IsExpression(err)
	require.True(t, ok)
	assert.Equal(t, errors.ExprCycle, ee.Kind)

	v, defined := tbl.Get("a")
	require.True(t, defined)
	assert.InDelta(t, 1.0, v, 1e-12, "rejected update must keep the prior value")
	f, _ := tbl.Formula("a")
	assert.Equal(t, "1", f)
}

func TestSelfReferenceRejected(t *testing.T) {
	tbl := NewTable()
	err := tbl.Set("a", "a + 1")
	ee, ok := errors.IsExpression(err)
	require.True(t, ok)
	// An undefined "a" reads as unknown; once defined it is a cycle.
	assert.Equal(t, errors.ExprUnknownReference, ee.Kind)

	require.NoError(t, tbl.Set("a", "1"))
	err = tbl.Set("a", "a + 1")
	ee, ok = errors.IsExpression(err)
	require.True(t, ok)
	assert.Equal(t, errors.ExprCycle, ee.Kind)
}

func TestDeleteReferencedParamFails(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set("a", "1"))
	require.NoError(t, tbl.Set("b", "a * 2"))

	err := tbl.Delete("a")
	_, ok := errors.IsExpression(err)
	assert.True(t, ok)

	require.NoError(t, tbl.Delete("b"))
	require.NoError(t, tbl.Delete("a"))
	assert.Empty(t, tbl.Names())
}

func TestBuiltinFunctions(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set("r", "2"))
	require.NoError(t, tbl.Set("circ", "2 * pi * r"))
	require.NoError(t, tbl.Set("x", "r * cos(0)"))
	require.NoError(t, tbl.Set("clamped", "max(min(r, 10), 0.5)"))

	v, _ := tbl.Get("circ")
	assert.InDelta(t, 4*math.Pi, v, 1e-12)
	v, _ = tbl.Get("x")
	assert.InDelta(t, 2.0, v, 1e-12)
	v, _ = tbl.Get("clamped")
	assert.InDelta(t, 2.0, v, 1e-12)
}

func TestEvalOneOff(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set("base", "5"))

	v, err := tbl.Eval("base * 2 + sqrt(9)")
	require.NoError(t, err)
	assert.InDelta(t, 13.0, v, 1e-12)

	_, err = tbl.Eval("nope + 1")
	ee, ok := errors.IsExpression(err)
	require.True(t, ok)
	assert.Equal(t, errors.ExprUnknownReference, ee.Kind)
}

func TestNamesSorted(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set("zeta", "1"))
	require.NoError(t, tbl.Set("alpha", "2"))
	require.NoError(t, tbl.Set("mid", "3"))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, tbl.Names())
}

func TestBuiltinNameNotAssignable(t *testing.T) {
	tbl := NewTable()
	err := tbl.Set("pi", "3")
	ee, ok := errors.IsExpression(err)
	require.True(t, ok)
	assert.Equal(t, errors.ExprSyntax, ee.Kind)
}

func TestDiamondDependencyRecalculatesOnce(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Set("a", "2"))
	require.NoError(t, tbl.Set("b", "a + 1"))
	require.NoError(t, tbl.Set("c", "a * 3"))
	require.NoError(t, tbl.Set("d", "b + c"))

	require.NoError(t, tbl.Set("a", "10"))
	v, _ := tbl.Get("d")
	assert.InDelta(t, 41.0, v, 1e-12)
}

func FuzzSet(f *testing.F) {
	f.Add("a + b*2")
	f.Add("sin(pi/2)")
	f.Add("1 +")
	f.Add("((")
	f.Add("x ? 1 : 2")
	f.Fuzz(func(t *testing.T, formula string) {
		tbl := NewTable()
		_ = tbl.Set("a", "1")
		_ = tbl.Set("b", "2")
		// Arbitrary input may be rejected but must never panic.
		_ = tbl.Set("f", formula)
		_, _ = tbl.Eval(formula)
	})
}
