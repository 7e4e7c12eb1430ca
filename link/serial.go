// Package link opens the physical connection to a plotter.
package link

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the rate used when none is configured. The board is USB
// CDC, so the value only matters to some host drivers.
const DefaultBaud = 115200

// pollInterval bounds how long a blocked read can delay Close.
const pollInterval = 100 * time.Millisecond

// ErrNoPort is returned by Discover when no board is attached.
var ErrNoPort = errors.New("no plotter serial port found")

// Port is an open serial port. Reads block until data arrives or the port
// is closed.
type Port struct {
	p *serial.Port

	mx     sync.Mutex
	closed bool
}

// OpenSerial opens name at baud. An empty name picks the first port found
// by Discover.
func OpenSerial(ctx context.Context, name string, baud int) (*Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		var err error
		name, err = Discover()
		if err != nil {
			return nil, err
		}
	}
	if baud == 0 {
		baud = DefaultBaud
	}
	p, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud, ReadTimeout: pollInterval})
	if err != nil {
		return nil, err
	}
	if err := p.Flush(); err != nil {
		p.Close()
		return nil, err
	}
	return &Port{p: p}, nil
}

// Serial returns an opener for the given port, suitable for ebb.NewDriver.
func Serial(name string, baud int) func(context.Context) (io.ReadWriteCloser, error) {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		p, err := OpenSerial(ctx, name, baud)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (p *Port) isClosed() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.closed
}

func (p *Port) Read(b []byte) (int, error) {
	for {
		n, err := p.p.Read(b)
		if n > 0 {
			return n, nil
		}
		if p.isClosed() {
			return 0, io.ErrClosedPipe
		}
		// a read timeout surfaces as an empty read
		if err != nil && err != io.EOF {
			return 0, err
		}
	}
}

func (p *Port) Write(b []byte) (int, error) {
	if p.isClosed() {
		return 0, io.ErrClosedPipe
	}
	return p.p.Write(b)
}

func (p *Port) Close() error {
	p.mx.Lock()
	if p.closed {
		p.mx.Unlock()
		return nil
	}
	p.closed = true
	p.mx.Unlock()
	return p.p.Close()
}

// candidates are globbed in order by Discover.
var candidates = []string{
	"/dev/serial/by-id/*EiBotBoard*",
	"/dev/serial/by-id/*04D8*FD92*",
	"/dev/cu.usbmodem*",
	"/dev/ttyACM*",
}

// Discover returns the first attached port that looks like an EBB.
func Discover() (string, error) {
	return discover(filepath.Glob)
}

func discover(glob func(string) ([]string, error)) (string, error) {
	for _, pattern := range candidates {
		matches, err := glob(pattern)
		if err != nil {
			return "", err
		}
		for _, m := range matches {
			if strings.TrimSpace(m) != "" {
				return m, nil
			}
		}
	}
	return "", ErrNoPort
}
