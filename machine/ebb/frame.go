package ebb

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// splitLines splits on '\r' or '\n' and drops empty lines.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && (data[start] == '\r' || data[start] == '\n') {
		start++
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF {
		if start < len(data) {
			return len(data), data[start:], nil
		}
		return len(data), nil, nil
	}
	return start, nil, nil
}

type lineClass int

const (
	lineGarbage lineClass = iota
	lineOK
	lineOKSum
	lineVersion
	lineStatus
	lineValue
	lineError
)

func isInts(s string) bool {
	if s == "" {
		return false
	}
	for _, f := range strings.Split(s, ",") {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}

func isUpper(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// classify sorts a response line into the shapes the device can send.
func classify(line string) lineClass {
	switch {
	case line == "OK":
		return lineOK
	case strings.HasPrefix(line, "OK,"):
		sum := line[3:]
		if len(sum) != 4 {
			return lineGarbage
		}
		if _, err := strconv.ParseUint(sum, 16, 16); err != nil {
			return lineGarbage
		}
		return lineOKSum
	case strings.HasPrefix(line, "EBB"):
		return lineVersion
	case strings.HasPrefix(line, "!"):
		return lineError
	case isInts(line):
		return lineValue
	}
	if i := strings.IndexByte(line, ','); i > 0 && isUpper(line[:i]) && isInts(line[i+1:]) {
		return lineStatus
	}
	return lineGarbage
}

type matchResult int

const (
	// matchPending consumed the line; more are needed.
	matchPending matchResult = iota
	matchDone
	// matchDiscard is a well formed line that belongs to some other command.
	matchDiscard
	// matchCorrupt failed validation.
	matchCorrupt
	// matchDeviceError is a "!" line: the device rejected the command.
	matchDeviceError
)

var (
	errChecksum    = errors.New("checksum mismatch")
	errUnreadable  = errors.New("unrecognized response")
	errDeviceError = errors.New("device error")
)

// matcher validates the response lines for one command.
type matcher struct {
	cmd   Command
	sum   uint16
	value string
	err   error
}

func newMatcher(cmd Command) *matcher {
	m := &matcher{cmd: cmd}
	if cmd.Kind.Checksummed() {
		m.sum = crc16([]byte(cmd.Body()))
	}
	return m
}

func (m *matcher) feed(line string) matchResult {
	class := classify(line)
	switch class {
	case lineGarbage:
		m.err = fmt.Errorf("%w: %q", errUnreadable, line)
		return matchCorrupt
	case lineError:
		m.err = fmt.Errorf("%w: %s", errDeviceError, strings.TrimSpace(line[1:]))
		return matchDeviceError
	}

	switch m.cmd.Shape {
	case ShapeOK:
		if !m.cmd.Kind.Checksummed() {
			if class == lineOK {
				return matchDone
			}
			return matchDiscard
		}
		// a plain OK here is a late ack for an earlier command
		if class == lineOKSum {
			sum, _ := strconv.ParseUint(line[3:], 16, 16)
			if uint16(sum) != m.sum {
				m.err = fmt.Errorf("%w: got %04X want %04X", errChecksum, sum, m.sum)
				return matchCorrupt
			}
			return matchDone
		}
	case ShapeVersion:
		if class == lineVersion {
			m.value = line
			return matchDone
		}
	case ShapeStatus:
		if class == lineStatus && strings.HasPrefix(line, m.cmd.Name+",") {
			m.value = line
			return matchDone
		}
	case ShapeValue:
		switch {
		case class == lineValue && m.value == "":
			m.value = line
			return matchPending
		case class == lineOK && m.value != "":
			return matchDone
		}
	}
	return matchDiscard
}
