package machine

import (
	"strconv"

	"github.com/mastercactapus/plotter/machine/ebb"
)

// Outcome is the progress of the current or last job.
type Outcome int

const (
	Pending Outcome = iota
	Running
	Paused
	Completed
	Aborted
	Faulted
)

var outcomeNames = []string{"pending", "running", "paused", "completed", "aborted", "faulted"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Terminal reports whether the job has ended.
func (o Outcome) Terminal() bool { return o == Completed || o == Aborted || o == Faulted }

// Status is a snapshot of a Session.
type Status struct {
	State ebb.State

	// Done is the number of acknowledged job steps, Total the job length.
	Done, Total int
	// Next is the first step not yet acknowledged. A stopped job can be
	// resumed from here.
	Next int

	Outcome Outcome
	Err     error
}
