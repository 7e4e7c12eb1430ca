// Package fault defines the error kinds shared by the planning pipeline and
// the device driver.
package fault

import (
	"errors"
	"strconv"
	"strings"
)

// Kind is the category of a failure.
type Kind string

const (
	// MalformedInput means the drawing could not be turned into geometry.
	MalformedInput Kind = "MALFORMED_INPUT"
	// UnreachableGeometry means a planned coordinate is outside machine travel.
	UnreachableGeometry Kind = "UNREACHABLE_GEOMETRY"

	ConnectTimeout       Kind = "CONNECT_TIMEOUT"
	ConnectProtocolError Kind = "CONNECT_PROTOCOL"
	CommandTimeout       Kind = "COMMAND_TIMEOUT"
	CommandProtocolError Kind = "COMMAND_PROTOCOL"
	LinkLost             Kind = "LINK_LOST"

	// OutcomeUnknown is returned for a command that was written but abandoned
	// before its acknowledgment (disconnect, interrupt or caller cancellation).
	OutcomeUnknown Kind = "OUTCOME_UNKNOWN"
	NotReady       Kind = "NOT_READY"
	Busy           Kind = "BUSY"
	Interrupted    Kind = "INTERRUPTED"
)

// NoSegment marks an Error that is not tied to a job step.
const NoSegment = -1

// Error is a failure with enough context to decide between retrying,
// aborting, or re-homing and resuming.
type Error struct {
	Kind Kind

	// Op is the operation that failed, e.g. "connect" or "plan".
	Op string

	// Command is the wire body of the device command involved, if any.
	Command string

	// Segment is the index of the job step involved, or NoSegment.
	Segment int

	Err error
}

// New returns an Error of the given kind with no segment.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Segment: NoSegment, Err: err}
}

// Errorf returns an Error of the given kind wrapping a plain message.
func Errorf(kind Kind, op, msg string) *Error {
	return New(kind, op, errors.New(msg))
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Segment != NoSegment {
		b.WriteString(" at step ")
		b.WriteString(strconv.Itoa(e.Segment))
	}
	if e.Command != "" {
		b.WriteString(" (")
		b.WriteString(e.Command)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind, so
// errors.Is(err, &fault.Error{Kind: fault.LinkLost}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// WithSegment returns a copy of err tagged with a step index. Errors that
// are not *Error are wrapped as kind fallback.
func WithSegment(err error, segment int, fallback Kind) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = New(fallback, "", err)
	}
	c := *e
	c.Segment = segment
	return &c
}
