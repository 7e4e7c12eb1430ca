// Package sequence orders strokes to keep pen-up travel short.
package sequence

import (
	"math"

	"github.com/mastercactapus/plotter/coord"
)

// Options controls the nearest-neighbor ordering.
type Options struct {
	// Start is the pen position before the first stroke.
	Start coord.Point

	// AllowReverse lets a stroke be drawn end-to-start when that end is
	// closer.
	AllowReverse bool
}

// DefaultOptions starts at the origin and allows reversal.
func DefaultOptions() Options {
	return Options{AllowReverse: true}
}

// Stroke is a polyline in drawing order.
type Stroke struct {
	Path coord.Polyline

	// Source is the index of the polyline in the input.
	Source   int
	Reversed bool
}

// Sequence orders paths greedily: from the current pen position it always
// moves to the nearest unvisited stroke endpoint. Ties go to the stroke that
// appears first in paths, then to its forward direction.
//
// Inputs with fewer than two distinct points are dropped. The input is
// never modified; reversed strokes are copies.
func Sequence(paths []coord.Polyline, opts Options) []Stroke {
	valid := make([]coord.Polyline, len(paths))
	minX, minY := opts.Start.X, opts.Start.Y
	maxX, maxY := minX, minY
	n := 0
	for i, p := range paths {
		l, ok := coord.NewPolyline(p)
		if !ok {
			continue
		}
		valid[i] = l
		n++
		for _, pt := range []coord.Point{l.Start(), l.End()} {
			minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
			minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
		}
	}
	if n == 0 {
		return nil
	}

	tree := newEndpointTree(minX, minY, maxX, maxY)
	for i, l := range valid {
		if l == nil {
			continue
		}
		tree.add(l.Start(), endpoint{index: i})
		if opts.AllowReverse {
			tree.add(l.End(), endpoint{index: i, reversed: true})
		}
	}

	// initial search window: roughly the spacing of evenly spread endpoints
	radius := math.Max(maxX-minX, maxY-minY) / math.Sqrt(float64(n))

	res := make([]Stroke, 0, n)
	pos := opts.Start
	for {
		e, ok := tree.nearest(pos, radius)
		if !ok {
			break
		}
		l := valid[e.index]
		tree.remove(l.Start(), endpoint{index: e.index})
		if opts.AllowReverse {
			tree.remove(l.End(), endpoint{index: e.index, reversed: true})
		}
		if e.reversed {
			l = l.Reverse()
		}
		res = append(res, Stroke{Path: l, Source: e.index, Reversed: e.reversed})
		pos = l.End()
	}

	return res
}

// Paths returns the polylines of strokes in order.
func Paths(strokes []Stroke) []coord.Polyline {
	res := make([]coord.Polyline, len(strokes))
	for i, s := range strokes {
		res[i] = s.Path
	}
	return res
}

// TravelDistance returns the summed pen-up distance from start through
// every stroke in order.
func TravelDistance(strokes []Stroke, start coord.Point) float64 {
	var total float64
	pos := start
	for _, s := range strokes {
		total += pos.Distance(s.Path.Start())
		pos = s.Path.End()
	}
	return total
}
