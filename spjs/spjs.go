// Package spjs reaches a serial port through a serial-port-json-server
// websocket bridge.
package spjs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/mastercactapus/plotter/logging"
)

// DataFrame is serial data read from a port.
type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}

// CmdStatus reports queue progress for buffered writes.
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}

type SerialPortList struct {
	SerialPorts []SerialPort
}

type SerialPort struct {
	Name     string
	Friendly string
	IsOpen   bool
	Baud     int
}

// JSON is the payload of a sendjson command.
type JSON struct {
	Port string `json:"P"`
	Data []Data
}

type Data struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

var errUnknownMessage = errors.New("unknown message")

func parseMessage(data []byte) (val interface{}, err error) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Type", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, fmt.Errorf("%w: %s", errUnknownMessage, data)
}

// Link is one serial port on the bridge, usable as an io.ReadWriteCloser.
type Link struct {
	port string
	log  *slog.Logger
	ws   *websocket.Conn

	wmx sync.Mutex
	id  int64

	pr *io.PipeReader
	pw *io.PipeWriter

	closeOnce sync.Once
}

// Dial connects to the bridge at url and opens port at baud.
func Dial(ctx context.Context, url, port string, baud int, log *slog.Logger) (*Link, error) {
	if log == nil {
		log = logging.NewNop()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	l := &Link{
		port: port,
		log:  log.With("bridge", url, "port", port),
		ws:   ws,
		pr:   pr,
		pw:   pw,
	}
	err = l.writeString("open " + port + " " + strconv.Itoa(baud) + " default")
	if err != nil {
		ws.Close()
		return nil, err
	}
	go l.readLoop()
	return l, nil
}

// Opener returns a function that dials a new Link on each call.
func Opener(url, port string, baud int, log *slog.Logger) func(context.Context) (io.ReadWriteCloser, error) {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		l, err := Dial(ctx, url, port, baud, log)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

func (l *Link) readLoop() {
	for {
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			l.pw.CloseWithError(err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		val, err := parseMessage(data)
		if err != nil {
			l.log.Debug("ignoring bridge message", "err", err)
			continue
		}
		switch msg := val.(type) {
		case *DataFrame:
			if msg.Port != l.port {
				continue
			}
			if _, err := io.WriteString(l.pw, msg.Data); err != nil {
				return
			}
		case *ErrorMessage:
			l.log.Warn("bridge error", "msg", msg.Error)
		case *CmdStatus:
			l.log.Debug("bridge queue", "cmd", msg.Cmd, "id", msg.ID, "queued", msg.QueueCount)
		}
	}
}

func (l *Link) writeString(s string) error {
	l.wmx.Lock()
	defer l.wmx.Unlock()
	return l.ws.WriteMessage(websocket.TextMessage, []byte(s))
}

func (l *Link) nextID() string {
	id := atomic.AddInt64(&l.id, 1)
	return "ebb_" + strconv.FormatInt(id, 36)
}

// SendJSON queues v on the bridge.
func (l *Link) SendJSON(v JSON) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return l.writeString("sendjson " + string(data))
}

func (l *Link) Read(p []byte) (int, error) { return l.pr.Read(p) }

// Write sends p to the port as a single bridge frame.
func (l *Link) Write(p []byte) (int, error) {
	err := l.SendJSON(JSON{Port: l.port, Data: []Data{{Data: string(p), ID: l.nextID()}}})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close releases the port on the bridge and drops the websocket.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if e := l.writeString("close " + l.port); e != nil {
			l.log.Debug("close port", "err", e)
		}
		l.pw.CloseWithError(io.ErrClosedPipe)
		err = l.ws.Close()
	})
	return err
}
