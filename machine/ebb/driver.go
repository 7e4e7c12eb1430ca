package ebb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mastercactapus/plotter/fault"
	"github.com/mastercactapus/plotter/logging"
	"github.com/mastercactapus/plotter/metrics"
)

// Opener opens the physical link to the device.
type Opener func(ctx context.Context) (io.ReadWriteCloser, error)

// Config holds the driver's timing and retry settings.
type Config struct {
	// ConnectTimeout is how long one connect attempt waits for the
	// identity response.
	ConnectTimeout time.Duration
	// ConnectRetries is the number of extra connect attempts.
	ConnectRetries int
	// ConnectBackoff is the wait before the first retry; it doubles for
	// each one after.
	ConnectBackoff time.Duration

	// StatusTimeout is the deadline for query, config and stop commands.
	StatusTimeout time.Duration
	// CommandMargin is added to the expected duration of motion and pen
	// commands.
	CommandMargin time.Duration
	// Retries is the number of resends for retry-safe commands.
	Retries int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 2 * time.Second,
		ConnectRetries: 2,
		ConnectBackoff: 250 * time.Millisecond,
		StatusTimeout:  time.Second,
		CommandMargin:  500 * time.Millisecond,
		Retries:        2,
	}
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("driver closed")

var errHalting = errors.New("stop in progress")

type result struct {
	ack Ack
	err error
}

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan result
}

type lineMsg struct {
	gen  int
	line string
}

type linkErr struct {
	gen int
	err error
}

type openResult struct {
	attempt int
	rw      io.ReadWriteCloser
	err     error
}

// exchange is the single command awaiting its response.
type exchange struct {
	req     request
	m       *matcher
	tries   int
	sent    time.Time
	timeout time.Duration

	connect bool
	stop    bool
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(l *slog.Logger) Option      { return func(d *Driver) { d.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(d *Driver) { d.metrics = m } }

// Driver speaks the EBB command protocol over a serial link. Commands are
// exchanged one at a time; a single goroutine owns the connection state.
type Driver struct {
	open    Opener
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	reqCh     chan request
	connectCh chan chan error
	discCh    chan chan struct{}
	intrCh    chan struct{}
	lineCh    chan lineMsg
	errCh     chan linkErr
	openCh    chan openResult
	done      chan struct{}
	closeOnce sync.Once

	writeMx sync.Mutex
	link    io.ReadWriteCloser
	halting bool

	mx      sync.Mutex
	pub     State
	err     error
	version string
	changes chan State

	// owned by loop
	state    State
	gen      int
	cur      *exchange
	timer    *time.Timer
	timerC   <-chan time.Time
	attempt  int
	backoffC <-chan time.Time
	waiters  []chan error
}

// NewDriver returns a disconnected Driver that opens its link with open.
func NewDriver(open Opener, cfg Config, opts ...Option) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		open:   open,
		cfg:    cfg,
		log:    logging.NewNop(),
		ctx:    ctx,
		cancel: cancel,

		reqCh:     make(chan request),
		connectCh: make(chan chan error),
		discCh:    make(chan chan struct{}),
		intrCh:    make(chan struct{}, 1),
		lineCh:    make(chan lineMsg),
		errCh:     make(chan linkErr),
		openCh:    make(chan openResult),
		done:      make(chan struct{}),
		changes:   make(chan State, 1),
	}
	for _, o := range opts {
		o(d)
	}
	d.metrics.State(Disconnected.String(), stateNames)
	go d.loop()
	return d
}

// State returns the current connection state.
func (d *Driver) State() State {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.pub
}

// Err returns the error that caused the last Faulted or Disconnected state.
func (d *Driver) Err() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.err
}

// FirmwareVersion returns the identity reported on the last connect.
func (d *Driver) FirmwareVersion() string {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.version
}

// Changes delivers state changes. Changes are dropped if nobody is
// listening; use State for the current value.
func (d *Driver) Changes() <-chan State { return d.changes }

// Connect opens the link and waits for the device to identify itself. It
// returns immediately if already connected. A Faulted driver is only
// reconnected through Connect.
func (d *Driver) Connect(ctx context.Context) error {
	w := make(chan error, 1)
	select {
	case d.connectCh <- w:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrClosed
	}
	select {
	case err := <-w:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes cmd and waits for its acknowledgment. Only one command may be
// in flight; a second concurrent Send fails with fault.Busy.
//
// A request whose ctx has ended by the time the driver picks it up is
// dropped unwritten. If ctx ends after the command was written, the result
// is fault.OutcomeUnknown; the driver keeps waiting for the response.
func (d *Driver) Send(ctx context.Context, cmd Command) (Ack, error) {
	req := request{ctx: ctx, cmd: cmd, reply: make(chan result, 1)}
	select {
	case d.reqCh <- req:
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	case <-d.done:
		return Ack{}, ErrClosed
	}
	select {
	case res := <-req.reply:
		return res.ack, res.err
	case <-ctx.Done():
		return Ack{}, &fault.Error{Kind: fault.OutcomeUnknown, Op: "send", Command: cmd.Body(), Segment: fault.NoSegment, Err: ctx.Err()}
	}
}

// Interrupt writes the stop command immediately, ahead of anything queued.
// The command in flight, if any, resolves with fault.OutcomeUnknown and no
// further command is written until the device acknowledges the stop.
func (d *Driver) Interrupt() error {
	switch d.State() {
	case Ready, Busy:
	default:
		return fault.Errorf(fault.NotReady, "interrupt", "not connected")
	}

	d.writeMx.Lock()
	if d.link == nil {
		d.writeMx.Unlock()
		return fault.Errorf(fault.NotReady, "interrupt", "not connected")
	}
	d.halting = true
	_, err := d.link.Write(Stop().Frame())
	d.writeMx.Unlock()

	select {
	case d.intrCh <- struct{}{}:
	default:
	}
	if err != nil {
		return &fault.Error{Kind: fault.LinkLost, Op: "interrupt", Command: Stop().Body(), Segment: fault.NoSegment, Err: err}
	}
	return nil
}

// Disconnect closes the link. A command in flight resolves with
// fault.OutcomeUnknown.
func (d *Driver) Disconnect() {
	ack := make(chan struct{})
	select {
	case d.discCh <- ack:
		<-ack
	case <-d.done:
	}
}

// Close disconnects and stops the driver.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.Disconnect()
		d.cancel()
		close(d.done)
	})
	return nil
}

func (d *Driver) readLoop(gen int, r io.Reader) {
	scan := bufio.NewScanner(r)
	scan.Split(splitLines)
	for scan.Scan() {
		select {
		case d.lineCh <- lineMsg{gen: gen, line: scan.Text()}:
		case <-d.done:
			return
		}
	}
	err := scan.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case d.errCh <- linkErr{gen: gen, err: err}:
	case <-d.done:
	}
}

func (d *Driver) loop() {
	for {
		select {
		case <-d.done:
			d.closeLink()
			return
		case req := <-d.reqCh:
			d.handleRequest(req)
		case w := <-d.connectCh:
			d.handleConnect(w)
		case ack := <-d.discCh:
			d.handleDisconnect()
			close(ack)
		case <-d.intrCh:
			d.handleInterrupt()
		case msg := <-d.lineCh:
			if msg.gen == d.gen {
				d.handleLine(msg.line)
			}
		case e := <-d.errCh:
			if e.gen == d.gen {
				d.handleLinkErr(e.err)
			}
		case res := <-d.openCh:
			d.handleOpen(res)
		case <-d.timerC:
			d.timerC = nil
			d.handleTimeout()
		case <-d.backoffC:
			d.backoffC = nil
			d.startOpen()
		}
	}
}

func (d *Driver) setState(s State, err error) {
	if d.state != s {
		d.log.Debug("connection state", "from", d.state.String(), "to", s.String())
	}
	d.state = s
	d.mx.Lock()
	d.pub = s
	if err != nil || s == Ready {
		d.err = err
	}
	d.mx.Unlock()
	select {
	case d.changes <- s:
	default:
	}
	d.metrics.State(s.String(), stateNames)
}

func (d *Driver) isHalting() bool {
	d.writeMx.Lock()
	defer d.writeMx.Unlock()
	return d.halting
}

func (d *Driver) clearHalting() {
	d.writeMx.Lock()
	d.halting = false
	d.writeMx.Unlock()
}

func (d *Driver) write(frame []byte, stop bool) error {
	d.writeMx.Lock()
	defer d.writeMx.Unlock()
	if d.link == nil {
		return io.ErrClosedPipe
	}
	if d.halting && !stop {
		return errHalting
	}
	_, err := d.link.Write(frame)
	return err
}

func (d *Driver) closeLink() {
	d.writeMx.Lock()
	if d.link != nil {
		if err := d.link.Close(); err != nil {
			d.log.Debug("close link", "err", err)
		}
		d.link = nil
	}
	d.halting = false
	d.writeMx.Unlock()
	// lines still buffered from the old link are ignored
	d.gen++
}

func (d *Driver) startTimer(timeout time.Duration) {
	d.stopTimer()
	d.timer = time.NewTimer(timeout)
	d.timerC = d.timer.C
}

func (d *Driver) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = nil
	d.timerC = nil
}

func (d *Driver) deadline(x *exchange) time.Duration {
	if x.connect {
		return d.cfg.ConnectTimeout
	}
	switch x.m.cmd.Kind {
	case KindMotion, KindPen:
		return x.m.cmd.Duration + d.cfg.CommandMargin
	}
	return d.cfg.StatusTimeout
}

func reply(x *exchange, ack Ack, err error) {
	if x == nil || x.req.reply == nil {
		return
	}
	x.req.reply <- result{ack: ack, err: err}
}

func (d *Driver) cmdError(kind fault.Kind, x *exchange, err error) *fault.Error {
	return &fault.Error{Kind: kind, Op: "send", Command: x.m.cmd.Body(), Segment: fault.NoSegment, Err: err}
}

func (d *Driver) handleRequest(req request) {
	// the caller may have given up while the request was queued
	if err := req.ctx.Err(); err != nil {
		reply(&exchange{req: req}, Ack{}, fault.New(fault.Interrupted, "send", err))
		return
	}
	if d.isHalting() {
		reply(&exchange{req: req}, Ack{}, fault.New(fault.Interrupted, "send", errHalting))
		return
	}
	switch d.state {
	case Ready:
	case Busy:
		reply(&exchange{req: req}, Ack{}, fault.Errorf(fault.Busy, "send", "command already in flight"))
		return
	default:
		err := fault.New(fault.NotReady, "send", fmt.Errorf("driver is %s", d.state))
		if cause := d.Err(); cause != nil {
			err.Err = fmt.Errorf("driver is %s: %w", d.state, cause)
		}
		reply(&exchange{req: req}, Ack{}, err)
		return
	}

	d.cur = &exchange{req: req, m: newMatcher(req.cmd)}
	d.setState(Busy, nil)
	d.transmit()
}

// transmit writes the current exchange and arms its deadline.
func (d *Driver) transmit() {
	x := d.cur
	x.tries++
	x.sent = time.Now()
	x.timeout = d.deadline(x)
	err := d.write(x.m.cmd.Frame(), x.stop)
	switch {
	case err == nil:
		d.startTimer(x.timeout)
	case errors.Is(err, errHalting):
		// the stop went out first; the interrupt handler takes over
		d.cur = nil
		reply(x, Ack{}, d.cmdError(fault.Interrupted, x, err))
	case x.connect:
		d.connectFailed(fault.LinkLost, err)
	default:
		d.handleLinkErr(err)
	}
}

func (d *Driver) handleConnect(w chan error) {
	switch d.state {
	case Ready, Busy:
		w <- nil
		return
	case Connecting:
		d.waiters = append(d.waiters, w)
		return
	}
	d.waiters = append(d.waiters, w)
	d.attempt = 0
	d.closeLink()
	d.setState(Connecting, nil)
	d.startOpen()
}

func (d *Driver) startOpen() {
	d.attempt++
	attempt := d.attempt
	d.log.Debug("opening link", "attempt", attempt)
	go func() {
		rw, err := d.open(d.ctx)
		select {
		case d.openCh <- openResult{attempt: attempt, rw: rw, err: err}:
		case <-d.done:
			if rw != nil {
				rw.Close()
			}
		}
	}()
}

func (d *Driver) handleOpen(res openResult) {
	if d.state != Connecting || res.attempt != d.attempt {
		if res.rw != nil {
			res.rw.Close()
		}
		return
	}
	if res.err != nil {
		d.connectFailed(fault.LinkLost, res.err)
		return
	}

	d.writeMx.Lock()
	d.link = res.rw
	d.halting = false
	d.writeMx.Unlock()
	d.gen++
	go d.readLoop(d.gen, res.rw)

	d.cur = &exchange{m: newMatcher(Version()), connect: true}
	d.transmit()
}

func (d *Driver) connectFailed(kind fault.Kind, err error) {
	d.stopTimer()
	d.cur = nil
	d.closeLink()
	d.log.Warn("connect attempt failed", "attempt", d.attempt, "err", err)

	if d.attempt <= d.cfg.ConnectRetries {
		backoff := d.cfg.ConnectBackoff << uint(d.attempt-1)
		d.backoffC = time.After(backoff)
		return
	}

	e := fault.New(kind, "connect", err)
	d.setState(Faulted, e)
	for _, w := range d.waiters {
		w <- e
	}
	d.waiters = nil
}

func (d *Driver) connected(version string) {
	d.mx.Lock()
	d.version = version
	d.mx.Unlock()
	d.log.Info("device connected", "version", version, "attempts", d.attempt)
	d.attempt = 0
	d.setState(Ready, nil)
	for _, w := range d.waiters {
		w <- nil
	}
	d.waiters = nil
}

func (d *Driver) handleDisconnect() {
	x := d.cur
	d.cur = nil
	d.stopTimer()
	d.backoffC = nil
	d.closeLink()
	d.setState(Disconnected, nil)

	if x != nil && !x.connect && !x.stop {
		d.metrics.Command(x.m.cmd.Kind.String(), "abandoned", 0)
		reply(x, Ack{}, d.cmdError(fault.OutcomeUnknown, x, errors.New("disconnected before acknowledgment")))
	}
	for _, w := range d.waiters {
		w <- fault.Errorf(fault.Interrupted, "connect", "disconnected")
	}
	d.waiters = nil
}

func (d *Driver) handleInterrupt() {
	if !d.isHalting() {
		return
	}
	if d.cur != nil && d.cur.connect {
		d.clearHalting()
		return
	}
	if d.cur != nil && d.cur.stop {
		return
	}
	if x := d.cur; x != nil && !x.stop {
		d.log.Warn("command abandoned by stop", "cmd", x.m.cmd.Body())
		d.metrics.Command(x.m.cmd.Kind.String(), "abandoned", 0)
		reply(x, Ack{}, d.cmdError(fault.OutcomeUnknown, x, errors.New("stopped before acknowledgment")))
	}
	d.cur = &exchange{m: newMatcher(Stop()), stop: true, tries: 1, sent: time.Now(), timeout: d.cfg.StatusTimeout}
	d.setState(Busy, nil)
	d.startTimer(d.cfg.StatusTimeout)
}

func (d *Driver) discard(line string) {
	pending := ""
	if d.cur != nil {
		pending = d.cur.m.cmd.Body()
	}
	d.log.Warn("discarding unmatched line", "line", line, "pending", pending)
	d.metrics.Discarded()
}

func (d *Driver) handleLine(line string) {
	// the stop may be answered before the interrupt notice is handled
	if d.isHalting() && (d.cur == nil || !d.cur.stop) {
		d.handleInterrupt()
	}

	x := d.cur
	if x == nil {
		d.discard(line)
		return
	}

	switch x.m.feed(line) {
	case matchPending:
	case matchDiscard:
		d.discard(line)
	case matchDone:
		d.stopTimer()
		d.cur = nil
		switch {
		case x.connect:
			d.connected(x.m.value)
		case x.stop:
			d.clearHalting()
			d.metrics.Command(KindStop.String(), "ok", time.Since(x.sent))
			d.setState(Ready, nil)
		default:
			d.metrics.Command(x.m.cmd.Kind.String(), "ok", time.Since(x.sent))
			d.setState(Ready, nil)
			reply(x, Ack{Command: x.m.cmd.Body(), Value: x.m.value}, nil)
		}
	case matchDeviceError:
		if x.connect {
			d.connectFailed(fault.ConnectProtocolError, x.m.err)
			return
		}
		d.stopTimer()
		d.cur = nil
		if x.stop {
			d.clearHalting()
		}
		err := d.cmdError(fault.CommandProtocolError, x, x.m.err)
		d.log.Warn("device rejected command", "cmd", x.m.cmd.Body(), "err", x.m.err)
		d.metrics.Command(x.m.cmd.Kind.String(), "rejected", 0)
		d.setState(Ready, nil)
		reply(x, Ack{}, err)
	case matchCorrupt:
		if x.connect {
			d.connectFailed(fault.ConnectProtocolError, x.m.err)
			return
		}
		d.stopTimer()
		d.cur = nil
		err := d.cmdError(fault.CommandProtocolError, x, x.m.err)
		d.fault(err, x)
	}
}

func (d *Driver) handleTimeout() {
	x := d.cur
	if x == nil {
		return
	}
	if x.connect {
		d.connectFailed(fault.ConnectTimeout, fmt.Errorf("no identity response within %s", x.timeout))
		return
	}

	cmd := x.m.cmd
	if !x.stop && cmd.Kind.RetrySafe() && x.tries <= d.cfg.Retries {
		d.log.Warn("command timed out, resending", "cmd", cmd.Body(), "try", x.tries)
		d.metrics.Retry(cmd.Kind.String())
		x.m = newMatcher(cmd)
		d.transmit()
		return
	}

	d.cur = nil
	err := d.cmdError(fault.CommandTimeout, x, fmt.Errorf("no response within %s", x.timeout))
	d.fault(err, x)
}

// fault moves to Faulted; only an explicit Connect leaves it.
func (d *Driver) fault(err *fault.Error, x *exchange) {
	d.clearHalting()
	d.log.Error("device fault", "err", err)
	d.metrics.Command(x.m.cmd.Kind.String(), string(err.Kind), 0)
	d.setState(Faulted, err)
	if !x.stop {
		reply(x, Ack{}, err)
	}
}

func (d *Driver) handleLinkErr(err error) {
	if d.state == Connecting {
		d.connectFailed(fault.LinkLost, err)
		return
	}
	x := d.cur
	d.cur = nil
	d.stopTimer()
	d.closeLink()

	lost := fault.New(fault.LinkLost, "link", err)
	d.log.Error("link lost", "err", err)
	d.setState(Disconnected, lost)
	if x != nil {
		d.metrics.Command(x.m.cmd.Kind.String(), string(fault.LinkLost), 0)
		reply(x, Ack{}, d.cmdError(fault.LinkLost, x, err))
	}
}
