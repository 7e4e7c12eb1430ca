package motion

import "fmt"

// PenState is the pen lift position.
type PenState int

const (
	PenUp PenState = iota
	PenDown
)

func (p PenState) String() string {
	switch p {
	case PenUp:
		return "up"
	case PenDown:
		return "down"
	}
	return fmt.Sprintf("PenState(%d)", int(p))
}

// StepKind tells which field of a Step is set.
type StepKind int

const (
	PenStep StepKind = iota
	MoveStep
)

// Step is one entry of a Job: either a pen transition or a move.
type Step struct {
	Kind StepKind

	// Pen is set for PenStep.
	Pen PenState

	// Move is set for MoveStep.
	Move Segment
	// Travel is true for pen-up moves.
	Travel bool

	// Stroke is the index of the input polyline this step belongs to, or -1
	// for the final return home.
	Stroke int
}

func (s Step) String() string {
	if s.Kind == PenStep {
		return "pen " + s.Pen.String()
	}
	kind := "draw"
	if s.Travel {
		kind = "travel"
	}
	return fmt.Sprintf("%s %v->%v", kind, s.Move.From, s.Move.To)
}

// Job is a planned drawing. It is not modified after Plan returns.
type Job struct {
	Steps  []Step
	Limits Limits
}

// Duration is the total planned motion time in seconds, excluding pen
// transitions.
func (j Job) Duration() float64 {
	var total float64
	for _, s := range j.Steps {
		if s.Kind == MoveStep {
			total += s.Move.Duration()
		}
	}
	return total
}

// Counts returns the number of travel moves, draw moves and pen transitions.
func (j Job) Counts() (travel, draw, pen int) {
	for _, s := range j.Steps {
		switch {
		case s.Kind == PenStep:
			pen++
		case s.Travel:
			travel++
		default:
			draw++
		}
	}
	return travel, draw, pen
}

// DrawDistance returns pen-down and pen-up distance in steps.
func (j Job) DrawDistance() (down, up float64) {
	for _, s := range j.Steps {
		if s.Kind != MoveStep {
			continue
		}
		if s.Travel {
			up += s.Move.Length()
		} else {
			down += s.Move.Length()
		}
	}
	return down, up
}
