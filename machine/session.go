// Package machine runs planned jobs on a plotter.
package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mastercactapus/plotter/fault"
	"github.com/mastercactapus/plotter/logging"
	"github.com/mastercactapus/plotter/machine/ebb"
	"github.com/mastercactapus/plotter/metrics"
	"github.com/mastercactapus/plotter/motion"
)

// Driver is the device connection a Session sends commands through.
type Driver interface {
	Send(ctx context.Context, cmd ebb.Command) (ebb.Ack, error)
	Interrupt() error
	State() ebb.State
}

// Pen configures the pen lift servo. Positions are percent of servo range,
// speeds percent per second.
type Pen struct {
	Up, Down           float64
	UpSpeed, DownSpeed float64

	// UpDelay and DownDelay are added to the computed servo travel time.
	UpDelay, DownDelay time.Duration
}

func travelTime(dist, speed float64) time.Duration {
	if speed <= 0 {
		return 0
	}
	return time.Duration(math.Round(1000*math.Abs(dist)/speed)) * time.Millisecond
}

// RaiseDelay is how long raising the pen takes.
func (p Pen) RaiseDelay() time.Duration { return travelTime(p.Up-p.Down, p.UpSpeed) + p.UpDelay }

// LowerDelay is how long lowering the pen takes.
func (p Pen) LowerDelay() time.Duration { return travelTime(p.Up-p.Down, p.DownSpeed) + p.DownDelay }

// Config holds session settings.
type Config struct {
	Pen Pen

	// TimeSlice is the longest single XM command.
	TimeSlice time.Duration

	// Microstep is the EM motor mode (1 = 16x).
	Microstep int

	// HomeRate is the HM step rate in steps/s.
	HomeRate int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Pen: Pen{
			Up: 60, Down: 30,
			UpSpeed: 150, DownSpeed: 150,
		},
		TimeSlice: 100 * time.Millisecond,
		Microstep: 1,
		HomeRate:  3200,
	}
}

// RunOptions control a single Run.
type RunOptions struct {
	// From is the first step to dispatch. Zero prepares the device and
	// starts fresh; any other value resumes after a Home.
	From int
}

// ErrAborted is returned by Run when the job was stopped by Abort.
var ErrAborted = errors.New("job aborted")

var errPositionUnknown = errors.New("position unknown; home first")

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option      { return func(s *Session) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Session) { s.metrics = m } }

// Session drives planned jobs through a Driver, one command at a time.
// Pause, Resume and Abort may be called from any goroutine.
type Session struct {
	drv     Driver
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	mx       sync.Mutex
	status   Status
	running  bool
	manual   bool
	paused   bool
	aborted  bool
	resumeCh chan struct{}
	abortCh  chan struct{}
	cancel   context.CancelFunc
	changes  chan Status

	// pos is the pen position in job steps; origin is where the device
	// counters were last cleared. Both are only touched by the goroutine
	// issuing commands.
	pos    motion.Steps
	origin motion.Steps
	known  bool
}

// NewSession returns an idle Session using drv.
func NewSession(drv Driver, cfg Config, opts ...Option) *Session {
	if cfg.TimeSlice <= 0 {
		cfg.TimeSlice = DefaultConfig().TimeSlice
	}
	if cfg.Microstep == 0 {
		cfg.Microstep = 1
	}
	if cfg.HomeRate == 0 {
		cfg.HomeRate = DefaultConfig().HomeRate
	}
	s := &Session{
		drv:     drv,
		cfg:     cfg,
		log:     logging.NewNop(),
		changes: make(chan Status, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Status returns a snapshot of job progress and the connection state.
func (s *Session) Status() Status {
	s.mx.Lock()
	st := s.status
	s.mx.Unlock()
	st.State = s.drv.State()
	return st
}

// Changes delivers status snapshots. Snapshots are dropped if nobody is
// listening.
func (s *Session) Changes() <-chan Status { return s.changes }

// publish must be called with mx held.
func (s *Session) publish() {
	st := s.status
	st.State = s.drv.State()
	select {
	case s.changes <- st:
	default:
		// replace the stale snapshot
		select {
		case <-s.changes:
		default:
		}
		select {
		case s.changes <- st:
		default:
		}
	}
}

// Run dispatches job and blocks until it completes, faults or is aborted.
// Canceling ctx aborts the job.
//
// On failure the returned error carries the step index; Status().Next is
// the step to resume from.
func (s *Session) Run(ctx context.Context, job motion.Job, opt RunOptions) error {
	if opt.From < 0 || opt.From > len(job.Steps) {
		return fault.New(fault.MalformedInput, "run", fmt.Errorf("resume step %d outside job of %d steps", opt.From, len(job.Steps)))
	}
	// Abort cancels runCtx so a command that has not reached the driver
	// yet is never written after the stop.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.begin(len(job.Steps), opt.From, cancel); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		if err := s.Abort(); err != nil {
			s.log.Warn("abort on cancel", "err", err)
		}
	})
	defer stop()

	start := time.Now()
	s.log.Info("job started", "steps", len(job.Steps), "from", opt.From, "planned", time.Duration(job.Duration()*float64(time.Second)))
	err := s.run(runCtx, job, opt.From)
	return s.finish(err, time.Since(start))
}

func (s *Session) begin(total, from int, cancel context.CancelFunc) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.running || s.manual {
		return fault.Errorf(fault.Busy, "run", "session busy")
	}
	s.running = true
	s.paused = false
	s.aborted = false
	s.abortCh = make(chan struct{})
	s.cancel = cancel
	s.status = Status{Outcome: Running, Done: from, Next: from, Total: total}
	s.metrics.Progress(from, total)
	s.publish()
	return nil
}

func (s *Session) finish(err error, took time.Duration) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.running = false
	s.paused = false

	switch {
	case s.aborted:
		s.known = false
		s.status.Outcome = Aborted
		err = ErrAborted
		s.log.Warn("job aborted", "next", s.status.Next, "elapsed", took)
	case err != nil:
		s.known = false
		s.status.Outcome = Faulted
		s.log.Error("job faulted", "next", s.status.Next, "err", err)
	default:
		s.status.Outcome = Completed
		s.log.Info("job completed", "steps", s.status.Total, "elapsed", took)
	}
	s.status.Err = err
	s.metrics.Job(s.status.Outcome.String())
	s.publish()
	return err
}

func (s *Session) advance(next int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.status.Done = next
	s.status.Next = next
	s.metrics.Progress(next, s.status.Total)
	s.publish()
}

func (s *Session) isAborted() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.aborted
}

// checkpoint blocks while paused.
func (s *Session) checkpoint() error {
	for {
		s.mx.Lock()
		if s.aborted {
			s.mx.Unlock()
			return ErrAborted
		}
		if !s.paused {
			s.mx.Unlock()
			return nil
		}
		resume, abort := s.resumeCh, s.abortCh
		s.mx.Unlock()

		select {
		case <-resume:
		case <-abort:
		}
	}
}

// Pause withholds further steps once the one in flight completes.
func (s *Session) Pause() {
	s.mx.Lock()
	defer s.mx.Unlock()
	if !s.running || s.aborted || s.paused {
		return
	}
	s.paused = true
	s.resumeCh = make(chan struct{})
	s.status.Outcome = Paused
	s.log.Info("job paused", "next", s.status.Next)
	s.publish()
}

// Resume continues a paused job.
func (s *Session) Resume() {
	s.mx.Lock()
	defer s.mx.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resumeCh)
	s.status.Outcome = Running
	s.log.Info("job resumed", "next", s.status.Next)
	s.publish()
}

// Abort stops the device immediately and ends the running job as Aborted.
// Nothing further is dispatched. It does not wait for the job to end.
func (s *Session) Abort() error {
	s.mx.Lock()
	if !s.running || s.aborted {
		s.mx.Unlock()
		return nil
	}
	s.aborted = true
	close(s.abortCh)
	s.cancel()
	s.mx.Unlock()

	s.log.Warn("aborting job")
	return s.drv.Interrupt()
}

func (s *Session) run(ctx context.Context, job motion.Job, from int) error {
	if from == 0 {
		if err := s.prepare(ctx, job.Limits); err != nil {
			return err
		}
	} else if err := s.reposition(ctx, job, from); err != nil {
		return fault.WithSegment(err, from, fault.CommandProtocolError)
	}

	for i := from; i < len(job.Steps); i++ {
		if err := s.checkpoint(); err != nil {
			return err
		}
		if err := s.step(ctx, job.Steps[i]); err != nil {
			return fault.WithSegment(err, i, fault.CommandProtocolError)
		}
		s.advance(i + 1)
	}
	return nil
}

func (s *Session) send(ctx context.Context, cmd ebb.Command) (ebb.Ack, error) {
	if s.isAborted() {
		return ebb.Ack{}, ErrAborted
	}
	return s.drv.Send(ctx, cmd)
}

// prepare configures the servo and motors and takes the current position
// as the job's home.
func (s *Session) prepare(ctx context.Context, lim motion.Limits) error {
	p := s.cfg.Pen
	cmds := []ebb.Command{
		ebb.ConfigureServo(ebb.ServoUpPosition, ebb.ServoPosition(p.Up)),
		ebb.ConfigureServo(ebb.ServoDownPosition, ebb.ServoPosition(p.Down)),
		ebb.ConfigureServo(ebb.ServoUpSpeed, ebb.ServoRate(p.UpSpeed)),
		ebb.ConfigureServo(ebb.ServoDownSpeed, ebb.ServoRate(p.DownSpeed)),
		ebb.EnableMotors(s.cfg.Microstep),
		ebb.PenUp(p.RaiseDelay()),
		ebb.ClearPosition(),
	}
	for _, cmd := range cmds {
		if _, err := s.send(ctx, cmd); err != nil {
			return err
		}
	}
	s.origin = lim.ToSteps(lim.Home)
	s.pos = s.origin
	s.known = true
	return nil
}

// reposition puts the pen where step from expects it, with the pen up for
// the travel.
func (s *Session) reposition(ctx context.Context, job motion.Job, from int) error {
	if !s.known {
		return fault.New(fault.NotReady, "resume", errPositionUnknown)
	}
	pen := motion.PenUp
	for i := from - 1; i >= 0; i-- {
		if job.Steps[i].Kind == motion.PenStep {
			pen = job.Steps[i].Pen
			break
		}
	}
	target := s.pos
	for _, st := range job.Steps[from:] {
		if st.Kind == motion.MoveStep {
			target = st.Move.From
			break
		}
	}

	if _, err := s.send(ctx, ebb.PenUp(s.cfg.Pen.RaiseDelay())); err != nil {
		return err
	}
	if err := s.move(ctx, motion.Travel(s.pos, target, job.Limits)); err != nil {
		return err
	}
	if pen == motion.PenDown && from < len(job.Steps) && job.Steps[from].Kind == motion.MoveStep {
		if _, err := s.send(ctx, ebb.PenDown(s.cfg.Pen.LowerDelay())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) step(ctx context.Context, st motion.Step) error {
	if st.Kind == motion.PenStep {
		cmd := ebb.PenUp(s.cfg.Pen.RaiseDelay())
		if st.Pen == motion.PenDown {
			cmd = ebb.PenDown(s.cfg.Pen.LowerDelay())
		}
		_, err := s.send(ctx, cmd)
		return err
	}
	return s.move(ctx, st.Move)
}

// move sends seg as time-sliced XM commands relative to the tracked
// position.
func (s *Session) move(ctx context.Context, seg motion.Segment) error {
	for _, sl := range sliceMove(seg, s.cfg.TimeSlice) {
		d := sl.to.Sub(s.pos)
		cmd, err := ebb.Move(time.Duration(sl.ms)*time.Millisecond, d.X, d.Y)
		if err != nil {
			return fault.New(fault.UnreachableGeometry, "move", err)
		}
		if _, err := s.send(ctx, cmd); err != nil {
			return err
		}
		s.pos = sl.to
	}
	return nil
}
