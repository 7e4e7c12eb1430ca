package svg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/plotter/coord"
	"github.com/mastercactapus/plotter/geometry"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func pt(x, y float64) coord.Point { return coord.Point{X: x, Y: y} }

func paths(t *testing.T, d string) []geometry.Path {
	t.Helper()
	b := geometry.NewBuilder(1)
	require.NoError(t, drawPath(d, pen{b: b, m: Identity}))
	return b.Drawing().Paths
}

func TestDrawPath_Grammar(t *testing.T) {
	got := paths(t, " \t\r\nM1.e2 2. 1 .2.3 0.4e2 z L 7 8 9 10 H 11 12 13 L 2 2v5C 5 6 7 8 9 10")

	b := geometry.NewBuilder(1)
	b.MoveTo(pt(100, 2))
	b.LineTo(pt(1, .2))
	b.LineTo(pt(.3, 40))
	b.Close()
	b.MoveTo(pt(100, 2))
	b.LineTo(pt(7, 8))
	b.LineTo(pt(9, 10))
	b.LineTo(pt(11, 10))
	b.LineTo(pt(12, 10))
	b.LineTo(pt(13, 10))
	b.LineTo(pt(2, 2))
	b.LineTo(pt(2, 7))
	b.CubicTo(pt(5, 6), pt(7, 8), pt(9, 10))

	if diff := cmp.Diff(b.Drawing().Paths, got, approx); diff != "" {
		t.Errorf("incorrect output: %s", diff)
	}
}

func TestDrawPath_Relative(t *testing.T) {
	got := paths(t, "m10,10 l5,0 h5 v5 q0,5 -5,5 c-1,0 -2,0 -3,0 z m1 1 2 0")

	b := geometry.NewBuilder(1)
	b.MoveTo(pt(10, 10))
	b.LineTo(pt(15, 10))
	b.LineTo(pt(20, 10))
	b.LineTo(pt(20, 15))
	b.QuadTo(pt(20, 20), pt(15, 20))
	b.CubicTo(pt(14, 20), pt(13, 20), pt(12, 20))
	b.Close()
	b.MoveTo(pt(11, 11))
	b.LineTo(pt(13, 11))

	if diff := cmp.Diff(b.Drawing().Paths, got, approx); diff != "" {
		t.Errorf("incorrect output: %s", diff)
	}
}

func TestDrawPath_Reflection(t *testing.T) {
	got := paths(t, "M0 0 C0 10 10 10 10 0 S20 -10 20 0 Q25 5 30 0 T40 0 M0 0 S5 5 10 0")

	b := geometry.NewBuilder(1)
	b.MoveTo(pt(0, 0))
	b.CubicTo(pt(0, 10), pt(10, 10), pt(10, 0))
	b.CubicTo(pt(10, -10), pt(20, -10), pt(20, 0))
	b.QuadTo(pt(25, 5), pt(30, 0))
	b.QuadTo(pt(35, -5), pt(40, 0))
	b.MoveTo(pt(0, 0))
	// no previous cubic, so the first control is the current point
	b.CubicTo(pt(0, 0), pt(5, 5), pt(10, 0))

	if diff := cmp.Diff(b.Drawing().Paths, got, approx); diff != "" {
		t.Errorf("incorrect output: %s", diff)
	}
}

func TestDrawPath_DrawAfterClose(t *testing.T) {
	got := paths(t, "M5 5 L10 5 Z L5 10")
	require.Len(t, got, 2)
	assert.Equal(t, geometry.Primitive{Op: geometry.MoveTo, Points: []coord.Point{pt(5, 5)}}, got[1][0])
	assert.Equal(t, geometry.Primitive{Op: geometry.LineTo, Points: []coord.Point{pt(5, 10)}}, got[1][1])
}

func TestDrawPath_Arc(t *testing.T) {
	got := paths(t, "M0 0 A10 10 0 0 1 20 0")
	require.Len(t, got, 1)
	prims := got[0][1:]
	require.Len(t, prims, 2, "half circle is two quarter cubics")
	for _, p := range prims {
		assert.Equal(t, geometry.CubicTo, p.Op)
	}
	end := prims[1].Points[2]
	assert.InDelta(t, 20, end.X, 1e-9)
	assert.InDelta(t, 0, end.Y, 1e-9)

	// sweep 1 in a y-down system goes through negative y
	mid := prims[0].Points[2]
	assert.InDelta(t, 10, mid.X, 1e-9)
	assert.InDelta(t, -10, mid.Y, 1e-9)
}

func TestDrawPath_ArcScalesRadius(t *testing.T) {
	got := paths(t, "M0 0 A1 1 0 0 0 20 0")
	prims := got[0][1:]
	require.NotEmpty(t, prims)
	mid := prims[0].Points[2]
	assert.InDelta(t, 10, mid.X, 1e-9)
	assert.InDelta(t, 10, mid.Y, 1e-9)
}

func TestDrawPath_ArcDegenerate(t *testing.T) {
	got := paths(t, "M0 0 A0 5 0 0 1 10 0 A5 5 0 0 1 10 0")

	b := geometry.NewBuilder(1)
	b.MoveTo(pt(0, 0))
	b.LineTo(pt(10, 0))
	if diff := cmp.Diff(b.Drawing().Paths, got); diff != "" {
		t.Errorf("incorrect output: %s", diff)
	}
}

func TestDrawPath_ArcCompactFlags(t *testing.T) {
	got := paths(t, "M0 0a10 10 0 0110 10")
	end := got[0][len(got[0])-1].Points[2]
	assert.InDelta(t, 10, end.X, 1e-9)
	assert.InDelta(t, 10, end.Y, 1e-9)
}

func TestDrawPath_Empty(t *testing.T) {
	assert.Empty(t, paths(t, "  "))
}

func TestDrawPath_Errors(t *testing.T) {
	for _, d := range []string{
		"L10 10",
		"M10",
		"M0 0 X5",
		"M0 0 L5 .",
		"M0 0 A5 5 0 2 1 10 10",
		"M0 0 C1 1 2 2",
	} {
		b := geometry.NewBuilder(1)
		assert.Error(t, drawPath(d, pen{b: b, m: Identity}), d)
	}
}

func TestNumbers(t *testing.T) {
	got, err := numbers(" 1,2 3-4 .5.5 1e2 ")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, -4, .5, .5, 100}, got)

	_, err = numbers("1,a")
	assert.Error(t, err)
}
