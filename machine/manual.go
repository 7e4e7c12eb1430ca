package machine

import (
	"context"
	"time"

	"github.com/mastercactapus/plotter/fault"
	"github.com/mastercactapus/plotter/machine/ebb"
	"github.com/mastercactapus/plotter/motion"
)

// Info describes the attached device.
type Info struct {
	Version string
	Motors  ebb.MotorStatus
	PenUp   bool

	// Position is the step offset from where the counters were last
	// cleared.
	Position motion.Steps
}

// claim reserves the session for a command outside of a job.
func (s *Session) claim(op string) (func(), error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.running || s.manual {
		return nil, fault.Errorf(fault.Busy, op, "session busy")
	}
	s.manual = true
	return func() {
		s.mx.Lock()
		s.manual = false
		s.mx.Unlock()
	}, nil
}

// position converts QS motor counters to axis steps. The firmware mixes
// the axes: motor 1 is x+y and motor 2 is x-y.
func position(m1, m2 int) motion.Steps {
	return motion.Steps{X: (m1 + m2) / 2, Y: (m1 - m2) / 2}
}

// Identify queries firmware version, motor status, pen state and position.
func (s *Session) Identify(ctx context.Context) (Info, error) {
	release, err := s.claim("identify")
	if err != nil {
		return Info{}, err
	}
	defer release()

	var info Info
	ack, err := s.drv.Send(ctx, ebb.Version())
	if err != nil {
		return info, err
	}
	info.Version = ack.Value

	ack, err = s.drv.Send(ctx, ebb.QueryMotors())
	if err != nil {
		return info, err
	}
	if info.Motors, err = ebb.ParseMotorStatus(ack); err != nil {
		return info, fault.New(fault.CommandProtocolError, "identify", err)
	}

	ack, err = s.drv.Send(ctx, ebb.QueryPen())
	if err != nil {
		return info, err
	}
	if info.PenUp, err = ebb.ParsePenUp(ack); err != nil {
		return info, fault.New(fault.CommandProtocolError, "identify", err)
	}

	ack, err = s.drv.Send(ctx, ebb.QueryPosition())
	if err != nil {
		return info, err
	}
	m1, m2, err := ebb.ParsePosition(ack)
	if err != nil {
		return info, fault.New(fault.CommandProtocolError, "identify", err)
	}
	info.Position = position(m1, m2)
	return info, nil
}

func (s *Session) PenUp(ctx context.Context) error {
	return s.pen(ctx, ebb.PenUp(s.cfg.Pen.RaiseDelay()))
}

func (s *Session) PenDown(ctx context.Context) error {
	return s.pen(ctx, ebb.PenDown(s.cfg.Pen.LowerDelay()))
}

func (s *Session) pen(ctx context.Context, cmd ebb.Command) error {
	release, err := s.claim("pen")
	if err != nil {
		return err
	}
	defer release()
	_, err = s.drv.Send(ctx, cmd)
	return err
}

// Home raises the pen and returns to where the step counters were last
// cleared. Afterwards the position is known again and a faulted or aborted
// job can be resumed.
func (s *Session) Home(ctx context.Context) error {
	release, err := s.claim("home")
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.drv.Send(ctx, ebb.PenUp(s.cfg.Pen.RaiseDelay())); err != nil {
		return err
	}
	ack, err := s.drv.Send(ctx, ebb.QueryPosition())
	if err != nil {
		return err
	}
	m1, m2, err := ebb.ParsePosition(ack)
	if err != nil {
		return fault.New(fault.CommandProtocolError, "home", err)
	}

	if m1 != 0 || m2 != 0 {
		far := max(abs(m1), abs(m2))
		d := time.Duration(float64(far) / float64(s.cfg.HomeRate) * float64(time.Second))
		cmd, err := ebb.Home(s.cfg.HomeRate, d+time.Millisecond)
		if err != nil {
			return fault.New(fault.MalformedInput, "home", err)
		}
		if _, err := s.drv.Send(ctx, cmd); err != nil {
			return err
		}
	}

	s.log.Info("homed", "from", position(m1, m2))
	s.pos = s.origin
	s.known = true
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
