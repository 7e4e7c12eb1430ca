package motion

import "math"

// Steps is a machine position in whole motor steps.
type Steps struct{ X, Y int }

func (s Steps) Sub(o Steps) Steps { return Steps{X: s.X - o.X, Y: s.Y - o.Y} }
func (s Steps) Add(o Steps) Steps { return Steps{X: s.X + o.X, Y: s.Y + o.Y} }

// Len is the euclidean length in steps.
func (s Steps) Len() float64 { return math.Hypot(float64(s.X), float64(s.Y)) }

// Segment is a single linear move with a trapezoidal velocity profile.
//
// Velocities are in steps/s and Accel in steps/s². The profile accelerates
// from Entry to Peak, cruises, then decelerates to Exit. When the move is
// too short to cruise, Peak is the top of a triangle profile. Timing is
// always derived from these fields.
type Segment struct {
	From, To Steps

	Entry, Peak, Exit float64
	Accel             float64
}

// Length is the move distance in steps.
func (s Segment) Length() float64 { return s.To.Sub(s.From).Len() }

// Phases returns the distance covered while accelerating, cruising and
// decelerating.
func (s Segment) Phases() (accel, cruise, decel float64) {
	if s.Accel > 0 {
		accel = (s.Peak*s.Peak - s.Entry*s.Entry) / (2 * s.Accel)
		decel = (s.Peak*s.Peak - s.Exit*s.Exit) / (2 * s.Accel)
	}
	cruise = math.Max(0, s.Length()-accel-decel)
	return accel, cruise, decel
}

// Times returns the duration of each phase in seconds.
func (s Segment) Times() (accel, cruise, decel float64) {
	_, d, _ := s.Phases()
	if s.Accel > 0 {
		accel = (s.Peak - s.Entry) / s.Accel
		decel = (s.Peak - s.Exit) / s.Accel
	}
	if s.Peak > 0 {
		cruise = d / s.Peak
	}
	return accel, cruise, decel
}

// Duration is the time in seconds to complete the move.
func (s Segment) Duration() float64 {
	a, c, d := s.Times()
	return a + c + d
}

// Distance returns how far along the move the tool is t seconds in.
func (s Segment) Distance(t float64) float64 {
	t1, t2, t3 := s.Times()
	d1, d2, _ := s.Phases()
	switch {
	case t <= 0:
		return 0
	case t < t1:
		return s.Entry*t + s.Accel*t*t/2
	case t < t1+t2:
		return d1 + s.Peak*(t-t1)
	case t < t1+t2+t3:
		dt := t - t1 - t2
		return d1 + d2 + s.Peak*dt - s.Accel*dt*dt/2
	}
	return s.Length()
}

// Velocity returns the speed t seconds into the move.
func (s Segment) Velocity(t float64) float64 {
	t1, t2, t3 := s.Times()
	switch {
	case t <= 0:
		return s.Entry
	case t < t1:
		return s.Entry + s.Accel*t
	case t < t1+t2:
		return s.Peak
	case t < t1+t2+t3:
		return s.Peak - s.Accel*(t-t1-t2)
	}
	return s.Exit
}

// Position returns the fractional step position t seconds into the move.
func (s Segment) Position(t float64) (x, y float64) {
	l := s.Length()
	if l == 0 {
		return float64(s.From.X), float64(s.From.Y)
	}
	f := math.Min(1, s.Distance(t)/l)
	d := s.To.Sub(s.From)
	return float64(s.From.X) + float64(d.X)*f, float64(s.From.Y) + float64(d.Y)*f
}

// profile fills in the peak velocity for a move of length l that enters at
// entry and leaves at exit without exceeding vmax or accel.
func profile(from, to Steps, entry, exit, vmax, accel float64) Segment {
	l := to.Sub(from).Len()
	peak := math.Min(vmax, math.Sqrt((2*accel*l+entry*entry+exit*exit)/2))
	peak = math.Max(peak, math.Max(entry, exit))
	return Segment{
		From: from, To: to,
		Entry: entry, Peak: peak, Exit: exit,
		Accel: accel,
	}
}
