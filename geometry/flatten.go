package geometry

import (
	"math"

	"github.com/mastercactapus/plotter/coord"
)

// maxSubdivisions bounds the work done for one curve.
const maxSubdivisions = 1 << 14

func subdivisions(n float64) int {
	if !(n > 1) {
		return 1
	}
	if n > maxSubdivisions {
		return maxSubdivisions
	}
	return int(math.Ceil(n))
}

// flattenQuad appends points approximating a quadratic Bézier from p0,
// excluding p0 itself.
func flattenQuad(dst []coord.Point, p0, p1, p2 coord.Point, tol float64) []coord.Point {
	// e = (P0 - 2*P1 + P2) / 4
	e := p0.Sub(p1.Mul(2)).Add(p2).Mul(0.25).Len()
	n := 1
	if e > tol {
		n = subdivisions(math.Sqrt(e / tol))
	}
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		omt := 1 - t
		dst = append(dst, p0.Mul(omt*omt).Add(p1.Mul(2*omt*t)).Add(p2.Mul(t*t)))
	}
	return dst
}

// flattenCubic appends points approximating a cubic Bézier from p0,
// excluding p0 itself. The segment count follows Wang's formula.
func flattenCubic(dst []coord.Point, p0, p1, p2, p3 coord.Point, tol float64) []coord.Point {
	d1 := p0.Sub(p1.Mul(2)).Add(p2)
	d2 := p1.Sub(p2.Mul(2)).Add(p3)
	m := math.Max(d1.Len(), d2.Len())
	n := 1
	if m > 0 {
		n = subdivisions(math.Sqrt(3 * m / (4 * tol)))
	}
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		omt := 1 - t
		omt2 := omt * omt
		t2 := t * t
		dst = append(dst, p0.Mul(omt2*omt).Add(p1.Mul(3*omt2*t)).Add(p2.Mul(3*omt*t2)).Add(p3.Mul(t2*t)))
	}
	return dst
}
