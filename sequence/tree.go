package sequence

import (
	"math"

	"github.com/asim/quadtree"
	"github.com/mastercactapus/plotter/coord"
)

// endpoint is one traversal choice: stroke index plus which end to start at.
type endpoint struct {
	index    int
	reversed bool
}

// endpointTree indexes stroke endpoints. Coincident endpoints share a single
// quadtree point whose data is the set of endpoints at that location.
type endpointTree struct {
	qt    *quadtree.QuadTree
	byLoc map[coord.Point]*quadtree.Point
	// extra holds points the quadtree refused to store.
	extra map[coord.Point]*quadtree.Point
	count int

	minX, minY, maxX, maxY float64
}

func newEndpointTree(minX, minY, maxX, maxY float64) *endpointTree {
	// pad so points on the boundary are inside
	pad := math.Max(1, math.Max(maxX-minX, maxY-minY)*0.01)
	minX, minY, maxX, maxY = minX-pad, minY-pad, maxX+pad, maxY+pad

	midX, midY := (minX+maxX)/2, (minY+maxY)/2
	aabb := quadtree.NewAABB(
		quadtree.NewPoint(midX, midY, nil),
		quadtree.NewPoint((maxX-minX)/2, (maxY-minY)/2, nil),
	)
	return &endpointTree{
		qt:    quadtree.New(aabb, 0, nil),
		byLoc: make(map[coord.Point]*quadtree.Point),
		extra: make(map[coord.Point]*quadtree.Point),
		minX:  minX, minY: minY, maxX: maxX, maxY: maxY,
	}
}

func (t *endpointTree) add(p coord.Point, e endpoint) {
	t.count++
	if qp, ok := t.byLoc[p]; ok {
		set := qp.Data().(map[endpoint]struct{})
		set[e] = struct{}{}
		return
	}
	qp := quadtree.NewPoint(p.X, p.Y, map[endpoint]struct{}{e: {}})
	t.byLoc[p] = qp
	if !t.qt.Insert(qp) {
		t.extra[p] = qp
	}
}

func (t *endpointTree) remove(p coord.Point, e endpoint) {
	qp, ok := t.byLoc[p]
	if !ok {
		return
	}
	set := qp.Data().(map[endpoint]struct{})
	if _, ok := set[e]; !ok {
		return
	}
	t.count--
	delete(set, e)
	if len(set) > 0 {
		return
	}
	delete(t.byLoc, p)
	if _, ok := t.extra[p]; ok {
		delete(t.extra, p)
		return
	}
	t.qt.Remove(qp)
}

type candidate struct {
	endpoint
	dist float64
}

func (c candidate) less(o candidate) bool {
	if c.dist != o.dist {
		return c.dist < o.dist
	}
	if c.index != o.index {
		return c.index < o.index
	}
	return !c.reversed && o.reversed
}

func (t *endpointTree) collect(from coord.Point, pts []*quadtree.Point, best *candidate, found *bool) {
	for _, qp := range pts {
		x, y := qp.Coordinates()
		d := from.Distance(coord.Point{X: x, Y: y})
		for e := range qp.Data().(map[endpoint]struct{}) {
			c := candidate{endpoint: e, dist: d}
			if !*found || c.less(*best) {
				*best = c
				*found = true
			}
		}
	}
}

// nearest returns the closest endpoint to from. Ties go to the lower stroke
// index, then to the forward direction.
func (t *endpointTree) nearest(from coord.Point, radius float64) (endpoint, bool) {
	if t.count == 0 {
		return endpoint{}, false
	}

	var best candidate
	var found bool

	extra := make([]*quadtree.Point, 0, len(t.extra))
	for _, qp := range t.extra {
		extra = append(extra, qp)
	}
	t.collect(from, extra, &best, &found)

	// span from any query point to the far side of the index
	span := math.Hypot(
		math.Max(math.Abs(from.X-t.minX), math.Abs(from.X-t.maxX)),
		math.Max(math.Abs(from.Y-t.minY), math.Abs(from.Y-t.maxY)),
	)
	if !(radius > 0) {
		radius = 1
	}
	for r := radius; ; r *= 2 {
		pts := t.qt.Search(quadtree.NewAABB(
			quadtree.NewPoint(from.X, from.Y, nil),
			quadtree.NewPoint(r, r, nil),
		))
		var inWindow candidate
		var ok bool
		t.collect(from, pts, &inWindow, &ok)
		if ok && (!found || inWindow.less(best)) {
			best, found = inWindow, true
		}

		// every point outside the window is at least r away
		if found && best.dist < r {
			return best.endpoint, true
		}
		if r >= span {
			return best.endpoint, found
		}
	}
}
