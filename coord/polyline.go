package coord

// Polyline is one continuous pen-down stroke.
//
// A Polyline built with NewPolyline has at least two points and no
// two consecutive points are equal.
type Polyline []Point

// NewPolyline copies pts, dropping consecutive duplicates. It returns false
// if fewer than two distinct points remain.
func NewPolyline(pts []Point) (Polyline, bool) {
	res := make(Polyline, 0, len(pts))
	for _, p := range pts {
		if len(res) > 0 && res[len(res)-1].Equal(p) {
			continue
		}
		res = append(res, p)
	}
	if len(res) < 2 {
		return nil, false
	}
	return res, true
}

func (l Polyline) Start() Point { return l[0] }
func (l Polyline) End() Point   { return l[len(l)-1] }

// Reverse returns a reversed copy of l.
func (l Polyline) Reverse() Polyline {
	res := make(Polyline, len(l))
	for i, p := range l {
		res[len(l)-1-i] = p
	}
	return res
}

// Length returns the summed length of every edge.
func (l Polyline) Length() float64 {
	var total float64
	for i := 1; i < len(l); i++ {
		total += l[i-1].Distance(l[i])
	}
	return total
}
