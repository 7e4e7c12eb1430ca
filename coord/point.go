package coord

import (
	"math"
)

// Point is a position in millimeters.
type Point struct{ X, Y float64 }

func (p Point) Equal(b Point) bool {
	return p.X == b.X && p.Y == b.Y
}

// Cross returns the z component of the 3D cross product.
func (p Point) Cross(op Point) float64 {
	return p.X*op.Y - p.Y*op.X
}
func (p Point) Dot(op Point) float64 {
	return p.X*op.X + p.Y*op.Y
}
func (p Point) Mul(val float64) Point {
	p.X *= val
	p.Y *= val
	return p
}

func (p Point) Div(val float64) Point {
	p.X /= val
	p.Y /= val
	return p
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	return p
}

// Len returns the distance from the origin.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Distance will return the 2D distance between p and target.
func (p Point) Distance(target Point) float64 {
	return target.Sub(p).Len()
}

// Normalize returns a unit vector in the direction of p, or the
// zero point if p has no length.
func (p Point) Normalize() Point {
	l := p.Len()
	if l == 0 {
		return Point{}
	}
	return p.Div(l)
}

// Lerp returns the point at fraction t along the line from p to target.
func (p Point) Lerp(target Point, t float64) Point {
	return p.Add(target.Sub(p).Mul(t))
}

// IsFinite reports whether both coordinates are real numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Split will return a set of evenly spaced points
// from p to the target.
func (p Point) Split(target Point, n int, relative bool) []Point {
	target.X = (target.X - p.X) / float64(n)
	target.Y = (target.Y - p.Y) / float64(n)

	res := make([]Point, n)
	for i := range res {
		if relative {
			res[i] = target
		} else {
			res[i].X = p.X + target.X*float64(i+1)
			res[i].Y = p.Y + target.Y*float64(i+1)
		}
	}

	return res
}
