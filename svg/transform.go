package svg

import (
	"fmt"
	"math"

	"github.com/mastercactapus/plotter/coord"
)

// Matrix is an affine transform in SVG order:
//
//	⎡ A C E ⎤
//	⎣ B D F ⎦
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity leaves points unchanged.
var Identity = Matrix{A: 1, D: 1}

func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.C*other.B,
		B: m.B*other.A + m.D*other.B,
		C: m.A*other.C + m.C*other.D,
		D: m.B*other.C + m.D*other.D,
		E: m.A*other.E + m.C*other.F + m.E,
		F: m.B*other.E + m.D*other.F + m.F,
	}
}

func (m Matrix) Apply(p coord.Point) coord.Point {
	return coord.Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

func Translate(x, y float64) Matrix { return Matrix{A: 1, D: 1, E: x, F: y} }
func Scale(x, y float64) Matrix     { return Matrix{A: x, D: y} }

// Rotate turns by deg degrees about (cx, cy).
func Rotate(deg, cx, cy float64) Matrix {
	cos := math.Cos(deg * math.Pi / 180)
	sin := math.Sin(deg * math.Pi / 180)
	return Matrix{
		A: cos, C: -sin, E: -cx*cos + cy*sin + cx,
		B: sin, D: cos, F: -cx*sin - cy*cos + cy,
	}
}

type function struct {
	name string
	args []float64
}

func (s *scanner) functions() ([]function, error) {
	var res []function
	for {
		s.commaWhitespace()
		if s.done() {
			return res, nil
		}
		start := s.index
		for c := s.peek(); ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'); c = s.peek() {
			s.index++
		}
		fn := function{name: s.data[start:s.index]}
		if fn.name == "" {
			return nil, fmt.Errorf("expected transform function at %d", start)
		}
		s.whitespace()
		if s.next() != '(' {
			return nil, fmt.Errorf("expected \"(\" after %s", fn.name)
		}
		s.whitespace()
		for s.peek() != ')' {
			n, err := s.number()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn.name, err)
			}
			fn.args = append(fn.args, n)
			s.commaWhitespace()
		}
		s.next()
		res = append(res, fn)
	}
}

// ParseTransform parses a transform attribute.
func ParseTransform(transform string) (Matrix, error) {
	m := Identity
	fns, err := (&scanner{data: transform}).functions()
	if err != nil {
		return m, err
	}

	for _, fn := range fns {
		args := fn.args
		n := len(args)
		switch {
		case fn.name == "matrix" && n == 6:
			m = m.Multiply(Matrix{A: args[0], B: args[1], C: args[2], D: args[3], E: args[4], F: args[5]})
		case fn.name == "translate" && n == 1:
			m = m.Multiply(Translate(args[0], 0))
		case fn.name == "translate" && n == 2:
			m = m.Multiply(Translate(args[0], args[1]))
		case fn.name == "scale" && n == 1:
			m = m.Multiply(Scale(args[0], args[0]))
		case fn.name == "scale" && n == 2:
			m = m.Multiply(Scale(args[0], args[1]))
		case fn.name == "rotate" && n == 1:
			m = m.Multiply(Rotate(args[0], 0, 0))
		case fn.name == "rotate" && n == 3:
			m = m.Multiply(Rotate(args[0], args[1], args[2]))
		case fn.name == "skewX" && n == 1:
			m = m.Multiply(Matrix{A: 1, C: math.Tan(args[0] * math.Pi / 180), D: 1})
		case fn.name == "skewY" && n == 1:
			m = m.Multiply(Matrix{A: 1, B: math.Tan(args[0] * math.Pi / 180), D: 1})
		default:
			return m, fmt.Errorf("bad transform function %s%v", fn.name, args)
		}
	}

	return m, nil
}
