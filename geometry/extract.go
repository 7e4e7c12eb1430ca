// Package geometry turns drawing primitives into flattened polylines.
package geometry

import (
	"fmt"
	"math"

	"github.com/mastercactapus/plotter/coord"
	"github.com/mastercactapus/plotter/fault"
)

func malformed(format string, args ...interface{}) error {
	return fault.New(fault.MalformedInput, "extract", fmt.Errorf(format, args...))
}

// Extract flattens every path in d into polylines in millimeters. Curves are
// subdivided until no point deviates from the true curve by more than
// tolerance millimeters.
//
// Strokes with fewer than two distinct points are dropped.
func Extract(d Drawing, tolerance float64) ([]coord.Polyline, error) {
	if !(d.Scale > 0) || math.IsInf(d.Scale, 0) {
		return nil, malformed("invalid unit scale %v", d.Scale)
	}
	if !(tolerance > 0) || math.IsInf(tolerance, 0) {
		return nil, malformed("invalid flattening tolerance %v", tolerance)
	}
	tol := tolerance / d.Scale

	var res []coord.Polyline
	emit := func(pts []coord.Point) {
		for i := range pts {
			pts[i] = pts[i].Mul(d.Scale)
		}
		if l, ok := coord.NewPolyline(pts); ok {
			res = append(res, l)
		}
	}

	for pi, path := range d.Paths {
		if len(path) == 0 {
			continue
		}
		if path[0].Op != MoveTo {
			return nil, malformed("path %d: must begin with MoveTo, got %s", pi, path[0].Op)
		}

		var pts []coord.Point
		var start, cur coord.Point
		for i, prim := range path {
			n := prim.Op.points()
			if n < 0 {
				return nil, malformed("path %d: unknown op %s", pi, prim.Op)
			}
			if len(prim.Points) != n {
				return nil, malformed("path %d: %s needs %d points, got %d", pi, prim.Op, n, len(prim.Points))
			}
			for _, p := range prim.Points {
				if !p.IsFinite() {
					return nil, malformed("path %d: primitive %d has non-finite coordinate", pi, i)
				}
			}

			switch prim.Op {
			case MoveTo:
				emit(pts)
				cur = prim.Points[0]
				start = cur
				pts = []coord.Point{cur}
			case LineTo:
				cur = prim.Points[0]
				pts = append(pts, cur)
			case QuadTo:
				pts = flattenQuad(pts, cur, prim.Points[0], prim.Points[1], tol)
				cur = prim.Points[1]
			case CubicTo:
				pts = flattenCubic(pts, cur, prim.Points[0], prim.Points[1], prim.Points[2], tol)
				cur = prim.Points[2]
			case Close:
				pts = append(pts, start)
				emit(pts)
				cur = start
				pts = []coord.Point{cur}
			}
		}
		emit(pts)
	}

	return res, nil
}
