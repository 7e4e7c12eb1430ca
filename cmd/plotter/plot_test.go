package main

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/plotter/config"
	"github.com/mastercactapus/plotter/logging"
	"github.com/mastercactapus/plotter/machine"
	"github.com/mastercactapus/plotter/machine/ebb"
)

// device acknowledges every command and reports its counters at qs.
type device struct {
	qs string

	mx   sync.Mutex
	sent []string
}

func (d *device) Send(ctx context.Context, cmd ebb.Command) (ebb.Ack, error) {
	d.mx.Lock()
	d.sent = append(d.sent, cmd.Body())
	d.mx.Unlock()

	ack := ebb.Ack{Command: cmd.Body()}
	switch cmd.Name {
	case "QS":
		ack.Value = d.qs
	case "QM":
		ack.Value = "QM,0,0,0,0"
	case "QP":
		ack.Value = "1"
	}
	return ack, nil
}

func (d *device) Interrupt() error { return nil }
func (d *device) State() ebb.State { return ebb.Ready }

func (d *device) Sent() []string {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]string(nil), d.sent...)
}

func index(sent []string, prefix string) int {
	for i, body := range sent {
		if strings.HasPrefix(body, prefix) {
			return i
		}
	}
	return -1
}

func TestPlot_ResumeHomesFirst(t *testing.T) {
	cfg := config.Default()
	job, err := loadJob(writeFile(t, "square.svg", square), cfg, logging.NewNop())
	require.NoError(t, err)

	dev := &device{qs: "160,-40"}
	sess := machine.NewSession(dev, cfg.Session())

	require.NoError(t, plot(context.Background(), sess, job, 3, logging.NewNop()))
	assert.Equal(t, machine.Completed, sess.Status().Outcome)

	sent := dev.Sent()
	home := index(sent, "HM,")
	require.GreaterOrEqual(t, home, 0, "homed")
	assert.Less(t, index(sent, "QS"), home)
	assert.Less(t, home, index(sent, "XM,"), "home before any move")
}

func TestPlot_FromStart(t *testing.T) {
	cfg := config.Default()
	job, err := loadJob(writeFile(t, "square.svg", square), cfg, logging.NewNop())
	require.NoError(t, err)

	dev := &device{qs: "0,0"}
	sess := machine.NewSession(dev, cfg.Session())

	require.NoError(t, plot(context.Background(), sess, job, 0, logging.NewNop()))
	assert.Equal(t, machine.Completed, sess.Status().Outcome)
	assert.Equal(t, -1, index(dev.Sent(), "HM,"))
}
