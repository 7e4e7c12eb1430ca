package ebb

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the retry and timeout class of a command.
type Kind int

const (
	// KindQuery reads device state and changes nothing.
	KindQuery Kind = iota
	// KindPen raises or lowers the pen.
	KindPen
	// KindConfig sets servo, motor or position registers.
	KindConfig
	// KindMotion moves the motors. Never resent.
	KindMotion
	// KindStop halts motion immediately.
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindPen:
		return "pen"
	case KindConfig:
		return "config"
	case KindMotion:
		return "motion"
	case KindStop:
		return "stop"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// RetrySafe reports whether a command of this kind may be resent after a
// timeout without changing the outcome.
func (k Kind) RetrySafe() bool {
	switch k {
	case KindQuery, KindPen, KindConfig:
		return true
	}
	return false
}

// Checksummed reports whether frames of this kind carry a CRC, which the
// device echoes in its acknowledgment.
func (k Kind) Checksummed() bool { return k == KindMotion }

// Shape is the response a command expects.
type Shape int

const (
	// ShapeOK is a bare "OK" (or "OK,HHHH" for checksummed frames).
	ShapeOK Shape = iota
	// ShapeVersion is a single line starting with "EBB".
	ShapeVersion
	// ShapeStatus is a single line starting with the command name.
	ShapeStatus
	// ShapeValue is a line of comma separated integers followed by "OK".
	ShapeValue
)

// Command is a single device command.
type Command struct {
	Kind  Kind
	Name  string
	Args  []int
	Shape Shape

	// Duration is how long the device needs to carry the command out.
	Duration time.Duration
}

// Body returns the frame text without checksum or delimiter.
func (c Command) Body() string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, a := range c.Args {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(a))
	}
	return b.String()
}

func (c Command) String() string { return c.Body() }

// Frame returns the bytes written to the device.
func (c Command) Frame() []byte {
	body := c.Body()
	if c.Kind.Checksummed() {
		body += fmt.Sprintf("*%04X", crc16([]byte(body)))
	}
	return []byte(body + "\r")
}

const (
	// MaxMoveDuration is the longest XM duration the firmware accepts.
	MaxMoveDuration = 16777215 * time.Millisecond
	// MaxMoveSteps bounds each axis of a single XM.
	MaxMoveSteps = 16777215

	servoMin = 7500
	servoMax = 28000
)

// Version queries the firmware identity.
func Version() Command {
	return Command{Kind: KindQuery, Name: "V", Shape: ShapeVersion}
}

// QueryMotors reads the motion status (QM).
func QueryMotors() Command {
	return Command{Kind: KindQuery, Name: "QM", Shape: ShapeStatus}
}

// QueryPosition reads the global step counters (QS).
func QueryPosition() Command {
	return Command{Kind: KindQuery, Name: "QS", Shape: ShapeValue}
}

// QueryPen reads the pen state (QP).
func QueryPen() Command {
	return Command{Kind: KindQuery, Name: "QP", Shape: ShapeValue}
}

// PenUp raises the pen, then waits delay before the next command runs.
func PenUp(delay time.Duration) Command {
	return pen(1, delay)
}

// PenDown lowers the pen, then waits delay before the next command runs.
func PenDown(delay time.Duration) Command {
	return pen(0, delay)
}

func pen(state int, delay time.Duration) Command {
	return Command{
		Kind:     KindPen,
		Name:     "SP",
		Args:     []int{state, int(delay / time.Millisecond)},
		Duration: delay,
	}
}

// ServoSlot is a servo register written by SC.
type ServoSlot int

const (
	ServoUpPosition   ServoSlot = 4
	ServoDownPosition ServoSlot = 5
	ServoUpSpeed      ServoSlot = 11
	ServoDownSpeed    ServoSlot = 12
)

// ConfigureServo writes a raw servo register.
func ConfigureServo(slot ServoSlot, value int) Command {
	return Command{Kind: KindConfig, Name: "SC", Args: []int{int(slot), value}}
}

// ServoPosition maps a pen height in percent to a servo register value.
func ServoPosition(percent float64) int {
	return servoMin + int((servoMax-servoMin)*percent/100)
}

// ServoRate maps a pen speed in percent per second to a servo rate value.
func ServoRate(speed float64) int {
	return int(speed * 5)
}

// EnableMotors energizes both motors with the given microstep mode
// (1 = 16x ... 5 = full step).
func EnableMotors(mode int) Command {
	return Command{Kind: KindConfig, Name: "EM", Args: []int{mode, mode}}
}

// DisableMotors releases both motors.
func DisableMotors() Command {
	return Command{Kind: KindConfig, Name: "EM", Args: []int{0, 0}}
}

// ClearPosition zeroes the global step counters.
func ClearPosition() Command {
	return Command{Kind: KindConfig, Name: "CS"}
}

// Move runs a mixed-axis move of dx, dy steps over d.
func Move(d time.Duration, dx, dy int) (Command, error) {
	ms := int(d / time.Millisecond)
	if ms < 1 || d > MaxMoveDuration {
		return Command{}, fmt.Errorf("move duration %s out of range", d)
	}
	if abs(dx) > MaxMoveSteps || abs(dy) > MaxMoveSteps {
		return Command{}, fmt.Errorf("move of %d,%d steps out of range", dx, dy)
	}
	return Command{
		Kind:     KindMotion,
		Name:     "XM",
		Args:     []int{ms, dx, dy},
		Duration: time.Duration(ms) * time.Millisecond,
	}, nil
}

// Home moves back to the cleared origin at rate steps/s. The caller must
// supply how long the move takes.
func Home(rate int, d time.Duration) (Command, error) {
	if rate < 2 || rate > 25000 {
		return Command{}, fmt.Errorf("home rate %d out of range", rate)
	}
	return Command{Kind: KindMotion, Name: "HM", Args: []int{rate}, Duration: d}, nil
}

// Stop halts motion and discards queued moves (ES). The device answers with
// the interrupted move's step counts before its OK, so a stray OK left over
// from an earlier command cannot complete it.
func Stop() Command {
	return Command{Kind: KindStop, Name: "ES", Shape: ShapeValue}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
