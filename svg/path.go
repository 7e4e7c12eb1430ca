package svg

import (
	"fmt"

	"github.com/mastercactapus/plotter/coord"
	"github.com/mastercactapus/plotter/geometry"
)

// pen writes transformed primitives into a Builder.
type pen struct {
	b *geometry.Builder
	m Matrix
}

func (p pen) moveTo(pt coord.Point)    { p.b.MoveTo(p.m.Apply(pt)) }
func (p pen) lineTo(pt coord.Point)    { p.b.LineTo(p.m.Apply(pt)) }
func (p pen) quadTo(c, pt coord.Point) { p.b.QuadTo(p.m.Apply(c), p.m.Apply(pt)) }
func (p pen) cubicTo(c1, c2, pt coord.Point) {
	p.b.CubicTo(p.m.Apply(c1), p.m.Apply(c2), p.m.Apply(pt))
}
func (p pen) close() { p.b.Close() }

func (p pen) arcTo(from coord.Point, rx, ry, rot float64, large, sweep bool, to coord.Point) {
	cubics := arcCubics(from, rx, ry, rot, large, sweep, to)
	if cubics == nil {
		if !from.Equal(to) {
			p.lineTo(to)
		}
		return
	}
	for _, c := range cubics {
		p.cubicTo(c[0], c[1], c[2])
	}
}

// pathState follows the current point through path data.
type pathState struct {
	scanner
	pen pen

	cur, start coord.Point
	// ctrl is the last control point, for reflection by S and T.
	ctrl     coord.Point
	lastCmd  byte
	open     bool
	needMove bool
}

// drawPath parses SVG path data and draws it with p.
func drawPath(d string, p pen) error {
	s := &pathState{scanner: scanner{data: d}, pen: p}
	return s.parse()
}

func (s *pathState) pair(rel bool) (coord.Point, error) {
	x, err := s.number()
	if err != nil {
		return coord.Point{}, err
	}
	s.commaWhitespace()
	y, err := s.number()
	if err != nil {
		return coord.Point{}, err
	}
	pt := coord.Point{X: x, Y: y}
	if rel {
		pt = pt.Add(s.cur)
	}
	return pt, nil
}

// ensure starts a subpath at the current point when drawing follows a
// close.
func (s *pathState) ensure() {
	if s.needMove {
		s.pen.moveTo(s.cur)
		s.needMove = false
	}
}

func (s *pathState) parse() error {
	s.whitespace()
	if s.done() {
		return nil
	}
	if c := s.peek(); c != 'M' && c != 'm' {
		return fmt.Errorf("path must start with a moveto, got %q", string(c))
	}

	for {
		s.whitespace()
		if s.done() {
			return nil
		}
		cmd := s.next()
		s.whitespace()
		if err := s.command(cmd); err != nil {
			return fmt.Errorf("%c: %w", cmd, err)
		}
	}
}

func reflect(ctrl, about coord.Point) coord.Point {
	return about.Mul(2).Sub(ctrl)
}

// command parses every argument group of one command letter.
func (s *pathState) command(cmd byte) error {
	rel := cmd >= 'a'
	upper := cmd &^ 0x20

	if upper == 'Z' {
		if s.open {
			s.pen.close()
		}
		s.cur = s.start
		s.ctrl = s.cur
		s.needMove = true
		s.lastCmd = 'Z'
		return nil
	}

	for first := true; first || s.atNumber(); first = false {
		if err := s.segment(upper, rel, first); err != nil {
			return err
		}
		s.commaWhitespace()
	}
	return nil
}

func (s *pathState) segment(cmd byte, rel, first bool) error {
	switch cmd {
	case 'M':
		pt, err := s.pair(rel)
		if err != nil {
			return err
		}
		if first {
			s.pen.moveTo(pt)
			s.start = pt
			s.open = true
			s.needMove = false
		} else {
			// extra pairs are implicit linetos
			s.pen.lineTo(pt)
		}
		s.cur, s.ctrl = pt, pt

	case 'L':
		pt, err := s.pair(rel)
		if err != nil {
			return err
		}
		s.ensure()
		s.pen.lineTo(pt)
		s.cur, s.ctrl = pt, pt

	case 'H', 'V':
		v, err := s.number()
		if err != nil {
			return err
		}
		pt := s.cur
		switch {
		case cmd == 'H' && rel:
			pt.X += v
		case cmd == 'H':
			pt.X = v
		case rel:
			pt.Y += v
		default:
			pt.Y = v
		}
		s.ensure()
		s.pen.lineTo(pt)
		s.cur, s.ctrl = pt, pt

	case 'C', 'S':
		c1 := s.cur
		if cmd == 'S' {
			if s.lastCmd == 'C' || s.lastCmd == 'S' {
				c1 = reflect(s.ctrl, s.cur)
			}
		} else {
			var err error
			if c1, err = s.pair(rel); err != nil {
				return err
			}
			s.commaWhitespace()
		}
		c2, err := s.pair(rel)
		if err != nil {
			return err
		}
		s.commaWhitespace()
		pt, err := s.pair(rel)
		if err != nil {
			return err
		}
		s.ensure()
		s.pen.cubicTo(c1, c2, pt)
		s.cur, s.ctrl = pt, c2

	case 'Q', 'T':
		c := s.cur
		if cmd == 'T' {
			if s.lastCmd == 'Q' || s.lastCmd == 'T' {
				c = reflect(s.ctrl, s.cur)
			}
		} else {
			var err error
			if c, err = s.pair(rel); err != nil {
				return err
			}
			s.commaWhitespace()
		}
		pt, err := s.pair(rel)
		if err != nil {
			return err
		}
		s.ensure()
		s.pen.quadTo(c, pt)
		s.cur, s.ctrl = pt, c

	case 'A':
		var args [3]float64
		for i := range args {
			v, err := s.number()
			if err != nil {
				return err
			}
			args[i] = v
			s.commaWhitespace()
		}
		large, err := s.flag()
		if err != nil {
			return err
		}
		s.commaWhitespace()
		sweep, err := s.flag()
		if err != nil {
			return err
		}
		s.commaWhitespace()
		pt, err := s.pair(rel)
		if err != nil {
			return err
		}
		s.ensure()
		s.pen.arcTo(s.cur, args[0], args[1], args[2], large, sweep, pt)
		s.cur, s.ctrl = pt, pt

	default:
		return fmt.Errorf("unknown path command")
	}

	s.lastCmd = cmd
	return nil
}
