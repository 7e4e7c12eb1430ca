package motion

import (
	"errors"
	"math"

	"github.com/mastercactapus/plotter/coord"
)

// StepsPerMM is the resolution of each axis.
type StepsPerMM struct{ X, Y float64 }

// Bounds is the travel area in millimeters, starting at the origin.
type Bounds struct{ Width, Height float64 }

// Contains reports whether p is reachable.
func (b Bounds) Contains(p coord.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= b.Width && p.Y <= b.Height
}

// Limits describes the machine the plan is built for.
type Limits struct {
	// MaxVelocity in mm/s.
	MaxVelocity float64
	// MaxAcceleration in mm/s².
	MaxAcceleration float64

	StepsPerMM StepsPerMM
	Bounds     Bounds

	// JunctionDeviation in mm controls cornering speed; larger values
	// take corners faster.
	JunctionDeviation float64

	// Home is where the pen starts, and where it returns when ReturnHome
	// is set.
	Home       coord.Point
	ReturnHome bool
}

var (
	ErrInvalidVelocity     = errors.New("max velocity must be positive")
	ErrInvalidAcceleration = errors.New("max acceleration must be positive")
	ErrInvalidResolution   = errors.New("steps per mm must be positive")
	ErrInvalidBounds       = errors.New("bounds must be positive")
	ErrInvalidDeviation    = errors.New("junction deviation must not be negative")
)

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

// Validate checks that every limit is usable.
func (l Limits) Validate() error {
	switch {
	case !positive(l.MaxVelocity):
		return ErrInvalidVelocity
	case !positive(l.MaxAcceleration):
		return ErrInvalidAcceleration
	case !positive(l.StepsPerMM.X) || !positive(l.StepsPerMM.Y):
		return ErrInvalidResolution
	case !positive(l.Bounds.Width) || !positive(l.Bounds.Height):
		return ErrInvalidBounds
	case !(l.JunctionDeviation >= 0):
		return ErrInvalidDeviation
	}
	return nil
}

// scale is the mm to step factor used for velocity and acceleration. Using
// the finer of the two axes keeps both within their mm limits.
func (l Limits) scale() float64 {
	return math.Min(l.StepsPerMM.X, l.StepsPerMM.Y)
}

// VelocitySteps is MaxVelocity in steps/s.
func (l Limits) VelocitySteps() float64 { return l.MaxVelocity * l.scale() }

// AccelerationSteps is MaxAcceleration in steps/s².
func (l Limits) AccelerationSteps() float64 { return l.MaxAcceleration * l.scale() }

// ToSteps converts p to the nearest whole step position.
func (l Limits) ToSteps(p coord.Point) Steps {
	return Steps{
		X: int(math.Round(p.X * l.StepsPerMM.X)),
		Y: int(math.Round(p.Y * l.StepsPerMM.Y)),
	}
}

// ToMM converts a step position back to millimeters.
func (l Limits) ToMM(s Steps) coord.Point {
	return coord.Point{X: float64(s.X) / l.StepsPerMM.X, Y: float64(s.Y) / l.StepsPerMM.Y}
}
