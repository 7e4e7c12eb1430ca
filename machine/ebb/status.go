package ebb

import (
	"errors"
	"strconv"
	"strings"
)

// Ack is a successful response.
type Ack struct {
	// Command is the body of the acknowledged command.
	Command string
	// Value is the payload line for version, status and value responses.
	Value string
}

var errBadPayload = errors.New("unexpected response payload")

func ints(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	res := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errBadPayload
		}
		res[i] = v
	}
	return res, nil
}

// MotorStatus is the decoded QM response.
type MotorStatus struct {
	Executing bool
	Motor1    bool
	Motor2    bool
	FIFO      bool
}

// Idle reports whether nothing is moving or queued.
func (m MotorStatus) Idle() bool {
	return !m.Executing && !m.Motor1 && !m.Motor2 && !m.FIFO
}

// ParseMotorStatus decodes a QM acknowledgment.
func ParseMotorStatus(a Ack) (MotorStatus, error) {
	if !strings.HasPrefix(a.Value, "QM,") {
		return MotorStatus{}, errBadPayload
	}
	v, err := ints(a.Value[3:])
	if err != nil || len(v) != 4 {
		return MotorStatus{}, errBadPayload
	}
	return MotorStatus{Executing: v[0] != 0, Motor1: v[1] != 0, Motor2: v[2] != 0, FIFO: v[3] != 0}, nil
}

// ParsePosition decodes a QS acknowledgment into motor step counts.
func ParsePosition(a Ack) (m1, m2 int, err error) {
	v, err := ints(a.Value)
	if err != nil || len(v) != 2 {
		return 0, 0, errBadPayload
	}
	return v[0], v[1], nil
}

// ParsePenUp decodes a QP acknowledgment; the device reports 1 for up.
func ParsePenUp(a Ack) (bool, error) {
	switch a.Value {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, errBadPayload
}
