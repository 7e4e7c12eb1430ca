package ebb

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// pause in a responder's lines makes the device wait before the next line.
const pause = "\x00pause"

// responder returns the lines a fake device sends for a frame body. n counts
// how many times that body has been received, starting at 1.
type responder func(body string, n int) []string

// fakeDevice answers frames on the far side of a net.Pipe.
type fakeDevice struct {
	respond responder

	mx     sync.Mutex
	frames []string
	counts map[string]int
	opens  int
	conns  []net.Conn

	// failOpens makes the first opens fail.
	failOpens int
}

func newFakeDevice(respond responder) *fakeDevice {
	if respond == nil {
		respond = ebbResponder
	}
	return &fakeDevice{respond: respond, counts: make(map[string]int)}
}

// ebbResponder answers like a healthy controller.
func ebbResponder(body string, n int) []string {
	if i := strings.IndexByte(body, '*'); i >= 0 {
		return []string{"OK," + body[i+1:]}
	}
	switch {
	case body == "V":
		return []string{"EBBv13_and_above EB Firmware Version 2.8.1"}
	case body == "QM":
		return []string{"QM,0,0,0,0"}
	case body == "QS":
		return []string{"100,-20", "OK"}
	case body == "QP":
		return []string{"1", "OK"}
	case body == "ES":
		return []string{"0,0,0,0,0", "OK"}
	}
	return []string{"OK"}
}

func (f *fakeDevice) open(ctx context.Context) (io.ReadWriteCloser, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.opens++
	if f.opens <= f.failOpens {
		return nil, errors.New("no such port")
	}
	client, dev := net.Pipe()
	f.conns = append(f.conns, dev)
	go f.serve(dev)
	return client, nil
}

func (f *fakeDevice) serve(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		frame, err := r.ReadString('\r')
		if err != nil {
			return
		}
		body := strings.TrimSuffix(frame, "\r")

		f.mx.Lock()
		f.frames = append(f.frames, body)
		key := body
		if i := strings.IndexByte(key, '*'); i >= 0 {
			key = key[:i]
		}
		f.counts[key]++
		n := f.counts[key]
		f.mx.Unlock()

		for _, line := range f.respond(body, n) {
			if line == pause {
				time.Sleep(30 * time.Millisecond)
				continue
			}
			if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
				return
			}
		}
	}
}

// Frames returns every frame received, checksums included.
func (f *fakeDevice) Frames() []string {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]string(nil), f.frames...)
}

func (f *fakeDevice) Count(body string) int {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.counts[body]
}

func (f *fakeDevice) Opens() int {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.opens
}

// Drop closes the device end of the newest link.
func (f *fakeDevice) Drop() {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.conns[len(f.conns)-1].Close()
}

func testConfig() Config {
	return Config{
		ConnectTimeout: 200 * time.Millisecond,
		ConnectRetries: 1,
		ConnectBackoff: time.Millisecond,
		StatusTimeout:  100 * time.Millisecond,
		CommandMargin:  100 * time.Millisecond,
		Retries:        2,
	}
}

func connected(t *testing.T, dev *fakeDevice) *Driver {
	t.Helper()
	d := NewDriver(dev.open, testConfig())
	t.Cleanup(func() { d.Close() })
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return d
}
