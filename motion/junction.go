package motion

import "math"

// JunctionVelocity returns the fastest speed two moves can be joined at
// without exceeding accel, given the deflection angle theta in radians
// between them (0 is straight on, π is a full reversal).
//
// The result is peak for a straight continuation and 0 for a reversal, and
// falls steadily between the two. deviation sets how far the path may
// stray from the sharp corner while taking it at speed.
//
// peak is the machine limit, not the reachable speed of either move. A
// straight junction between two short moves is lowered to what they can
// reach by the backward and forward passes in Plan.
func JunctionVelocity(theta, peak, accel, deviation float64) float64 {
	if theta <= 0 {
		return peak
	}
	if theta >= math.Pi {
		return 0
	}

	// s is the sine of half the angle between the two moves
	s := math.Cos(theta / 2)
	v := math.Sqrt(accel * deviation * s / (1 - s))
	return math.Min(v, peak)
}

// deflection returns the angle between the direction a->b and b->c.
func deflection(a, b, c Steps) float64 {
	u := b.Sub(a)
	w := c.Sub(b)
	lu, lw := u.Len(), w.Len()
	if lu == 0 || lw == 0 {
		return math.Pi
	}
	cos := (float64(u.X)*float64(w.X) + float64(u.Y)*float64(w.Y)) / (lu * lw)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}
