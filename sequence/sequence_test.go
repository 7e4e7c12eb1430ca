package sequence

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mastercactapus/plotter/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(x0, y0, x1, y1 float64) coord.Polyline {
	return coord.Polyline{{X: x0, Y: y0}, {X: x1, Y: y1}}
}

func randomPaths(seed int64, n int) []coord.Polyline {
	rng := rand.New(rand.NewSource(seed))
	res := make([]coord.Polyline, n)
	for i := range res {
		res[i] = line(rng.Float64()*200, rng.Float64()*200, rng.Float64()*200, rng.Float64()*200)
	}
	return res
}

func TestSequence_Greedy(t *testing.T) {
	paths := []coord.Polyline{
		line(50, 0, 60, 0),
		line(11, 0, 20, 0),
		line(0, 0, 10, 0),
	}

	res := Sequence(paths, DefaultOptions())
	require.Len(t, res, 3)
	assert.Equal(t, []int{2, 1, 0}, []int{res[0].Source, res[1].Source, res[2].Source})
	for _, s := range res {
		assert.False(t, s.Reversed)
	}
	assert.Equal(t, 31.0, TravelDistance(res, coord.Point{}))
}

func TestSequence_Reverse(t *testing.T) {
	paths := []coord.Polyline{
		line(0, 0, 10, 0),
		line(30, 5, 11, 0),
	}

	res := Sequence(paths, DefaultOptions())
	require.Len(t, res, 2)
	assert.True(t, res[1].Reversed)
	assert.Equal(t, coord.Point{X: 11, Y: 0}, res[1].Path.Start())
	assert.Equal(t, coord.Point{X: 30, Y: 5}, paths[1].End(), "input untouched")

	opts := DefaultOptions()
	opts.AllowReverse = false
	res = Sequence(paths, opts)
	assert.False(t, res[1].Reversed)
}

func TestSequence_TieBreak(t *testing.T) {
	// both strokes start 5mm from the origin
	paths := []coord.Polyline{
		line(0, 5, 0, 10),
		line(5, 0, 10, 0),
	}
	res := Sequence(paths, DefaultOptions())
	assert.Equal(t, 0, res[0].Source)

	paths[0], paths[1] = paths[1], paths[0]
	res = Sequence(paths, DefaultOptions())
	assert.Equal(t, 0, res[0].Source)

	// a closed stroke has both ends at the same spot; forward wins
	closed := []coord.Polyline{{{X: 1}, {X: 2, Y: 1}, {X: 1}}}
	res = Sequence(closed, DefaultOptions())
	assert.False(t, res[0].Reversed)
}

func TestSequence_DropsDegenerate(t *testing.T) {
	paths := []coord.Polyline{
		{{X: 1, Y: 1}, {X: 1, Y: 1}},
		line(0, 0, 1, 0),
		{{X: 4, Y: 4}},
	}
	res := Sequence(paths, DefaultOptions())
	require.Len(t, res, 1)
	assert.Equal(t, 1, res[0].Source)

	assert.Nil(t, Sequence(nil, DefaultOptions()))
}

func TestSequence_Permutation(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		paths := randomPaths(seed, 300)
		res := Sequence(paths, DefaultOptions())
		require.Len(t, res, len(paths))

		seen := make([]int, len(res))
		for i, s := range res {
			seen[i] = s.Source
			want := paths[s.Source]
			if s.Reversed {
				want = want.Reverse()
			}
			assert.Equal(t, want, s.Path)
		}
		sort.Ints(seen)
		for i, v := range seen {
			assert.Equal(t, i, v)
		}
	}
}

// bruteGreedy is the same heuristic without the spatial index.
func bruteGreedy(paths []coord.Polyline) []int {
	used := make([]bool, len(paths))
	var order []int
	var pos coord.Point
	for range paths {
		best, bestDist, bestRev := -1, 0.0, false
		for i, p := range paths {
			if used[i] {
				continue
			}
			for _, rev := range []bool{false, true} {
				pt := p.Start()
				if rev {
					pt = p.End()
				}
				d := pos.Distance(pt)
				if best == -1 || d < bestDist {
					best, bestDist, bestRev = i, d, rev
				}
			}
		}
		used[best] = true
		order = append(order, best)
		if bestRev {
			pos = paths[best].Start()
		} else {
			pos = paths[best].End()
		}
	}
	return order
}

func TestSequence_MatchesLinearScan(t *testing.T) {
	paths := randomPaths(42, 200)
	res := Sequence(paths, DefaultOptions())

	got := make([]int, len(res))
	for i, s := range res {
		got[i] = s.Source
	}
	if diff := cmp.Diff(bruteGreedy(paths), got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSequence_Deterministic(t *testing.T) {
	paths := randomPaths(7, 500)
	a := Sequence(paths, DefaultOptions())
	b := Sequence(paths, DefaultOptions())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("unstable output (-first +second):\n%s", diff)
	}
}
