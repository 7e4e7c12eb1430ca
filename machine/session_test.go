package machine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mastercactapus/plotter/coord"
	"github.com/mastercactapus/plotter/fault"
	"github.com/mastercactapus/plotter/machine/ebb"
	"github.com/mastercactapus/plotter/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver acknowledges everything unless hook returns an error. hook is
// called with the running count of XM commands.
type fakeDriver struct {
	hook func(cmd ebb.Command, xm int) error

	mx         sync.Mutex
	sent       []string
	xm         int
	interrupts int
	intr       chan struct{}
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{intr: make(chan struct{})}
}

func (f *fakeDriver) Send(ctx context.Context, cmd ebb.Command) (ebb.Ack, error) {
	// like ebb.Driver, a request whose ctx has ended is never written
	if err := ctx.Err(); err != nil {
		return ebb.Ack{}, fault.New(fault.Interrupted, "send", err)
	}
	f.mx.Lock()
	f.sent = append(f.sent, cmd.Body())
	if cmd.Name == "XM" {
		f.xm++
	}
	xm := f.xm
	hook := f.hook
	f.mx.Unlock()

	if hook != nil {
		if err := hook(cmd, xm); err != nil {
			return ebb.Ack{}, err
		}
	}
	ack := ebb.Ack{Command: cmd.Body()}
	switch cmd.Name {
	case "V":
		ack.Value = "EBBv13_and_above EB Firmware Version 2.8.1"
	case "QM":
		ack.Value = "QM,0,0,0,0"
	case "QP":
		ack.Value = "1"
	case "QS":
		ack.Value = "0,0"
	}
	return ack, nil
}

func (f *fakeDriver) Interrupt() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.sent = append(f.sent, "ES")
	f.interrupts++
	if f.interrupts == 1 {
		close(f.intr)
	}
	return nil
}

func (f *fakeDriver) State() ebb.State { return ebb.Ready }

func (f *fakeDriver) Sent() []string {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]string(nil), f.sent...)
}

// blockAt holds the n-th XM until Interrupt is called.
func (f *fakeDriver) blockAt(n int) {
	f.hook = func(cmd ebb.Command, xm int) error {
		if cmd.Name == "XM" && xm == n {
			<-f.intr
			return fault.Errorf(fault.OutcomeUnknown, "send", "stopped before acknowledgment")
		}
		return nil
	}
}

func testJob(t *testing.T) motion.Job {
	t.Helper()
	lim := motion.Limits{
		MaxVelocity:       20,
		MaxAcceleration:   160,
		StepsPerMM:        motion.StepsPerMM{X: 80, Y: 80},
		Bounds:            motion.Bounds{Width: 300, Height: 200},
		JunctionDeviation: 0.05,
	}
	job, err := motion.Plan([]coord.Polyline{
		{{X: 0, Y: 0}, {X: 1, Y: 0}},
		{{X: 1, Y: 10}, {X: 0, Y: 10}},
	}, lim)
	require.NoError(t, err)
	require.Len(t, job.Steps, 8)
	return job
}

// xmTotal sums the XM deltas in sent.
func xmTotal(t *testing.T, sent []string) motion.Steps {
	t.Helper()
	var pos motion.Steps
	for _, body := range sent {
		if !strings.HasPrefix(body, "XM,") {
			continue
		}
		var ms, dx, dy int
		_, err := fmt.Sscanf(body, "XM,%d,%d,%d", &ms, &dx, &dy)
		require.NoError(t, err)
		assert.LessOrEqual(t, ms, 100, body)
		assert.GreaterOrEqual(t, ms, 1, body)
		pos = pos.Add(motion.Steps{X: dx, Y: dy})
	}
	return pos
}

func TestSession_Run(t *testing.T) {
	drv := newFakeDriver()
	s := NewSession(drv, DefaultConfig())

	require.NoError(t, s.Run(context.Background(), testJob(t), RunOptions{}))

	st := s.Status()
	assert.Equal(t, Completed, st.Outcome)
	assert.Equal(t, 8, st.Done)
	assert.Equal(t, 8, st.Total)
	assert.NoError(t, st.Err)
	assert.Equal(t, ebb.Ready, st.State)

	sent := drv.Sent()
	require.Greater(t, len(sent), 9)
	assert.Equal(t, []string{
		"SC,4,19800",
		"SC,5,13650",
		"SC,11,750",
		"SC,12,750",
		"EM,1,1",
		"SP,1,200",
		"CS",
		"SP,1,200",
		"SP,0,200",
	}, sent[:9])
	assert.Equal(t, "SP,1,200", sent[len(sent)-1])
	assert.Equal(t, motion.Steps{X: 0, Y: 800}, xmTotal(t, sent))
}

func TestSession_Abort(t *testing.T) {
	drv := newFakeDriver()
	drv.blockAt(3)
	s := NewSession(drv, DefaultConfig())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), testJob(t), RunOptions{}) }()

	require.Eventually(t, func() bool {
		drv.mx.Lock()
		defer drv.mx.Unlock()
		return drv.xm == 3
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Abort())
	err := <-done
	assert.ErrorIs(t, err, ErrAborted)

	sent := drv.Sent()
	assert.Equal(t, "ES", sent[len(sent)-1], "nothing dispatched after the stop")
	assert.Equal(t, 1, drv.interrupts)

	st := s.Status()
	assert.Equal(t, Aborted, st.Outcome)
	assert.Less(t, st.Done, st.Total)

	// a second abort is a no-op
	assert.NoError(t, s.Abort())
	assert.Equal(t, 1, drv.interrupts)
}

// abortBefore calls abort just before the n-th XM reaches the driver.
type abortBefore struct {
	*fakeDriver
	n     int
	abort func()

	mx sync.Mutex
	xm int
}

func (a *abortBefore) Send(ctx context.Context, cmd ebb.Command) (ebb.Ack, error) {
	if cmd.Name == "XM" {
		a.mx.Lock()
		a.xm++
		hit := a.xm == a.n
		a.mx.Unlock()
		if hit {
			a.abort()
		}
	}
	return a.fakeDriver.Send(ctx, cmd)
}

func TestSession_AbortBetweenCheckAndSend(t *testing.T) {
	inner := newFakeDriver()
	drv := &abortBefore{fakeDriver: inner, n: 3}
	s := NewSession(drv, DefaultConfig())
	drv.abort = func() { assert.NoError(t, s.Abort()) }

	err := s.Run(context.Background(), testJob(t), RunOptions{})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, Aborted, s.Status().Outcome)

	sent := inner.Sent()
	require.Contains(t, sent, "ES")
	assert.Equal(t, "ES", sent[len(sent)-1], "nothing dispatched after the stop")
	assert.Equal(t, 2, inner.xm)
}

func TestSession_ResumeAtEnd(t *testing.T) {
	drv := newFakeDriver()
	s := NewSession(drv, DefaultConfig())
	lim := testJob(t).Limits
	job := motion.Job{
		Limits: lim,
		Steps: []motion.Step{
			{Kind: motion.PenStep, Pen: motion.PenUp},
			{Kind: motion.MoveStep, Move: motion.Travel(motion.Steps{}, motion.Steps{X: 80}, lim), Travel: true},
			{Kind: motion.PenStep, Pen: motion.PenDown},
		},
	}
	require.NoError(t, s.Home(context.Background()))

	var err error
	require.NotPanics(t, func() {
		err = s.Run(context.Background(), job, RunOptions{From: len(job.Steps)})
	})
	require.NoError(t, err)
	assert.Equal(t, Completed, s.Status().Outcome)
	assert.Equal(t, 3, s.Status().Done)
}

func TestSession_CancelAborts(t *testing.T) {
	drv := newFakeDriver()
	drv.blockAt(1)
	s := NewSession(drv, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, testJob(t), RunOptions{}) }()

	require.Eventually(t, func() bool {
		drv.mx.Lock()
		defer drv.mx.Unlock()
		return drv.xm == 1
	}, time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, ErrAborted)
	assert.Equal(t, Aborted, s.Status().Outcome)
}

func TestSession_PauseResume(t *testing.T) {
	drv := newFakeDriver()
	s := NewSession(drv, DefaultConfig())
	drv.hook = func(cmd ebb.Command, xm int) error {
		if cmd.Name == "XM" && xm == 1 {
			s.Pause()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), testJob(t), RunOptions{}) }()

	require.Eventually(t, func() bool { return s.Status().Outcome == Paused }, time.Second, time.Millisecond)
	// the rest of the segment finishes, then nothing more is sent
	time.Sleep(20 * time.Millisecond)
	n := len(drv.Sent())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, len(drv.Sent()))
	assert.Equal(t, 3, s.Status().Next)

	s.Resume()
	require.NoError(t, <-done)
	assert.Equal(t, Completed, s.Status().Outcome)
	assert.Equal(t, motion.Steps{X: 0, Y: 800}, xmTotal(t, drv.Sent()))
}

func TestSession_FaultAndResume(t *testing.T) {
	drv := newFakeDriver()
	drv.hook = func(cmd ebb.Command, xm int) error {
		if cmd.Name == "XM" && xm == 2 {
			return &fault.Error{Kind: fault.CommandTimeout, Op: "send", Command: cmd.Body(), Segment: fault.NoSegment}
		}
		return nil
	}
	s := NewSession(drv, DefaultConfig())
	job := testJob(t)

	err := s.Run(context.Background(), job, RunOptions{})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.CommandTimeout))
	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, fe.Segment)
	assert.True(t, strings.HasPrefix(fe.Command, "XM,"))

	st := s.Status()
	assert.Equal(t, Faulted, st.Outcome)
	assert.Equal(t, 2, st.Next)

	// position is unknown until homed
	err = s.Run(context.Background(), job, RunOptions{From: st.Next})
	assert.True(t, fault.Is(err, fault.NotReady), "got %v", err)

	drv.hook = nil
	require.NoError(t, s.Home(context.Background()))

	before := len(drv.Sent())
	require.NoError(t, s.Run(context.Background(), job, RunOptions{From: st.Next}))
	resumed := drv.Sent()[before:]
	assert.Equal(t, []string{"SP,1,200", "SP,0,200"}, resumed[:2])
	assert.Equal(t, motion.Steps{X: 0, Y: 800}, xmTotal(t, resumed))
	assert.Equal(t, Completed, s.Status().Outcome)
}

func TestSession_Busy(t *testing.T) {
	drv := newFakeDriver()
	drv.blockAt(1)
	s := NewSession(drv, DefaultConfig())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), testJob(t), RunOptions{}) }()
	require.Eventually(t, func() bool { return s.Status().Outcome == Running }, time.Second, time.Millisecond)

	err := s.Run(context.Background(), testJob(t), RunOptions{})
	assert.True(t, fault.Is(err, fault.Busy))
	assert.True(t, fault.Is(s.PenUp(context.Background()), fault.Busy))

	s.Abort()
	<-done
}

func TestSession_BadFrom(t *testing.T) {
	s := NewSession(newFakeDriver(), DefaultConfig())
	err := s.Run(context.Background(), testJob(t), RunOptions{From: 9})
	assert.True(t, fault.Is(err, fault.MalformedInput))
	assert.Equal(t, Pending, s.Status().Outcome)
}

func TestSession_Identify(t *testing.T) {
	s := NewSession(newFakeDriver(), DefaultConfig())
	info, err := s.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Info{
		Version: "EBBv13_and_above EB Firmware Version 2.8.1",
		PenUp:   true,
	}, info)
}

func TestPen_Delays(t *testing.T) {
	p := Pen{Up: 60, Down: 30, UpSpeed: 150, DownSpeed: 300, DownDelay: 50 * time.Millisecond}
	assert.Equal(t, 200*time.Millisecond, p.RaiseDelay())
	assert.Equal(t, 150*time.Millisecond, p.LowerDelay())
	assert.Equal(t, time.Duration(0), Pen{Up: 60}.RaiseDelay())
}

func TestPosition(t *testing.T) {
	assert.Equal(t, motion.Steps{X: 100, Y: 20}, position(120, 80))
	assert.Equal(t, motion.Steps{X: -10, Y: 0}, position(-10, -10))
}
