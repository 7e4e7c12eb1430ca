package svg

import (
	"math"

	"github.com/mastercactapus/plotter/coord"
)

// kappa places cubic control points to approximate a quarter circle.
const kappa = 0.5522847498307936

// arcCubics converts an SVG elliptical arc from p1 to p2 into cubic
// segments of at most 90 degrees each, returned as control1, control2, end
// triples. A zero radius yields nil; the caller draws a line instead.
func arcCubics(p1 coord.Point, rx, ry, rotation float64, large, sweep bool, p2 coord.Point) [][3]coord.Point {
	if p1.Equal(p2) || rx == 0 || ry == 0 {
		return nil
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	phi := rotation * math.Pi / 180
	cos, sin := math.Cos(phi), math.Sin(phi)

	dx, dy := (p1.X-p2.X)/2, (p1.Y-p2.Y)/2
	x1 := cos*dx + sin*dy
	y1 := -sin*dx + cos*dy

	if l := x1*x1/(rx*rx) + y1*y1/(ry*ry); l > 1 {
		s := math.Sqrt(l)
		rx, ry = rx*s, ry*s
	}

	num := rx*rx*ry*ry - rx*rx*y1*y1 - ry*ry*x1*x1
	den := rx*rx*y1*y1 + ry*ry*x1*x1
	coef := math.Sqrt(math.Max(0, num/den))
	if large == sweep {
		coef = -coef
	}
	cx1 := coef * rx * y1 / ry
	cy1 := -coef * ry * x1 / rx
	cx := cos*cx1 - sin*cy1 + (p1.X+p2.X)/2
	cy := sin*cx1 + cos*cy1 + (p1.Y+p2.Y)/2

	angle := func(ux, uy, vx, vy float64) float64 {
		return math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
	}
	ux, uy := (x1-cx1)/rx, (y1-cy1)/ry
	vx, vy := (-x1-cx1)/rx, (-y1-cy1)/ry
	theta := angle(1, 0, ux, uy)
	delta := angle(ux, uy, vx, vy)
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	at := func(a float64) coord.Point {
		return coord.Point{
			X: cx + rx*math.Cos(a)*cos - ry*math.Sin(a)*sin,
			Y: cy + rx*math.Cos(a)*sin + ry*math.Sin(a)*cos,
		}
	}
	tangent := func(a float64) coord.Point {
		return coord.Point{
			X: -rx*math.Sin(a)*cos - ry*math.Cos(a)*sin,
			Y: -rx*math.Sin(a)*sin + ry*math.Cos(a)*cos,
		}
	}

	n := max(1, int(math.Ceil(math.Abs(delta)/(math.Pi/2)-1e-9)))
	step := delta / float64(n)
	t := 4.0 / 3 * math.Tan(step/4)
	res := make([][3]coord.Point, n)
	for i := range res {
		a1 := theta + float64(i)*step
		a2 := a1 + step
		start, end := at(a1), at(a2)
		if i == n-1 {
			end = p2
		}
		res[i] = [3]coord.Point{
			start.Add(tangent(a1).Mul(t)),
			end.Sub(tangent(a2).Mul(t)),
			end,
		}
	}
	return res
}
