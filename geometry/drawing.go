package geometry

import (
	"fmt"

	"github.com/mastercactapus/plotter/coord"
)

// Op identifies a path primitive.
type Op int

const (
	MoveTo Op = iota
	LineTo
	QuadTo
	CubicTo
	Close
)

func (o Op) String() string {
	switch o {
	case MoveTo:
		return "MoveTo"
	case LineTo:
		return "LineTo"
	case QuadTo:
		return "QuadTo"
	case CubicTo:
		return "CubicTo"
	case Close:
		return "Close"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// points returns the number of points an op carries.
func (o Op) points() int {
	switch o {
	case MoveTo, LineTo:
		return 1
	case QuadTo:
		return 2
	case CubicTo:
		return 3
	case Close:
		return 0
	}
	return -1
}

// Primitive is a single path command in document units. Control points come
// first and the end point last.
type Primitive struct {
	Op     Op
	Points []coord.Point
}

// Path is a list of primitives that begins with a MoveTo.
type Path []Primitive

// Drawing is vector content handed over by a loader.
type Drawing struct {
	// Scale converts document units to millimeters.
	Scale float64
	Paths []Path
}

// Builder accumulates primitives for a Drawing.
type Builder struct {
	d   Drawing
	cur Path
}

// NewBuilder returns a Builder for a drawing with the given unit scale.
func NewBuilder(scale float64) *Builder {
	return &Builder{d: Drawing{Scale: scale}}
}

func (b *Builder) flush() {
	if len(b.cur) > 0 {
		b.d.Paths = append(b.d.Paths, b.cur)
	}
	b.cur = nil
}

func (b *Builder) MoveTo(p coord.Point) {
	b.flush()
	b.cur = Path{{Op: MoveTo, Points: []coord.Point{p}}}
}
func (b *Builder) LineTo(p coord.Point) {
	b.cur = append(b.cur, Primitive{Op: LineTo, Points: []coord.Point{p}})
}
func (b *Builder) QuadTo(c, p coord.Point) {
	b.cur = append(b.cur, Primitive{Op: QuadTo, Points: []coord.Point{c, p}})
}
func (b *Builder) CubicTo(c1, c2, p coord.Point) {
	b.cur = append(b.cur, Primitive{Op: CubicTo, Points: []coord.Point{c1, c2, p}})
}
func (b *Builder) Close() {
	b.cur = append(b.cur, Primitive{Op: Close})
}

// Drawing returns everything added so far.
func (b *Builder) Drawing() Drawing {
	b.flush()
	return b.d
}
