package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	logx "tickd/pkg/logx"
)

// DefaultPollInterval bounds firing precision; the monitor re-checks
// the queue head this often while idle.
const DefaultPollInterval = 25 * time.Millisecond

// Option customizes a Scheduler at construction.
type Option func(*Scheduler)

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// Scheduler owns one recurrence spec, its pending-tick queue, and the
// monitor goroutine that fires notifications.
type Scheduler struct {
	name  string
	spec  Spec
	log   logx.Logger
	clock Clock
	poll  time.Duration

	q    *queue
	disp *Dispatcher

	fired atomic.Uint64

	mu        sync.Mutex
	stopCh    chan struct{}
	done      chan struct{}
	runCancel context.CancelFunc
	err       error
}

// NewDaily builds a scheduler for a daily calendar recurrence and seeds
// its queue. The returned scheduler is not running; call Start.
func NewDaily(name string, cfg DailyConfig, opts ...Option) (*Scheduler, error) {
	sp, err := NewDailySpec(cfg)
	if err != nil {
		return nil, err
	}
	return newScheduler(name, sp, opts), nil
}

// NewInterval builds a scheduler for a fixed-period recurrence and
// seeds its queue. The returned scheduler is not running; call Start.
func NewInterval(name string, cfg IntervalConfig, opts ...Option) (*Scheduler, error) {
	sp, err := NewIntervalSpec(cfg)
	if err != nil {
		return nil, err
	}
	return newScheduler(name, sp, opts), nil
}

func newScheduler(name string, sp Spec, opts []Option) *Scheduler {
	s := &Scheduler{
		name:  name,
		spec:  sp,
		log:   logx.Nop(),
		clock: SystemClock(),
		poll:  DefaultPollInterval,
		q:     newQueue(sp.PrecalcLimit()),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(logx.String("schedule", name), logx.String("kind", sp.kind.String()))
	s.disp = newDispatcher(s.log)

	// Initial fill; the queue is allowed to be empty only before this.
	now := s.clock.Now()
	s.q.add(next(sp, time.Time{}, false, now, sp.PrecalcLimit()))
	return s
}

func (s *Scheduler) Name() string { return s.name }
func (s *Scheduler) Spec() Spec   { return s.spec }

// Start launches the monitor goroutine. Calling Start on a running
// scheduler is a no-op. Starting again after the monitor exited (Stop
// or window exhaustion) resumes monitoring with the current queue.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		select {
		case <-s.done:
			// Previous run already exited on its own; fall through and
			// replace it.
		default:
			return
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.runCancel = cancel
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ctx, s.stopCh, s.done)
	s.log.Info("monitor started",
		logx.Duration("poll", s.poll),
		logx.Int("pending", s.q.size()))
}

// Stop signals the monitor to exit at its next poll checkpoint and
// waits for it. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh, done, cancel := s.stopCh, s.done, s.runCancel
	s.stopCh = nil
	s.done = nil
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	cancel()
	<-done
	s.log.Info("monitor stopped")
}

// Running reports whether the monitor goroutine is alive.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Err returns the fatal error that stopped the monitor, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Scheduler) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Subscribe registers a tick handler and returns its subscription
// handle. Safe while the scheduler is running.
func (s *Scheduler) Subscribe(h Handler) Subscription {
	return s.disp.Subscribe(h)
}

// Unsubscribe removes a previously registered handler.
func (s *Scheduler) Unsubscribe(sub Subscription) bool {
	return s.disp.Unsubscribe(sub)
}

// PendingTimes returns an ascending copy of the materialized fire
// times. The internal queue is never exposed.
func (s *Scheduler) PendingTimes() []time.Time {
	return s.q.snapshot()
}

// ClearBefore removes pending entries strictly before t without firing
// them. Administrative; independent of the firing path.
func (s *Scheduler) ClearBefore(t time.Time) int {
	n := s.q.purgeBefore(t)
	if n > 0 {
		s.log.Debug("pending ticks cleared", logx.Int("removed", n), logx.Time("before", t))
	}
	return n
}

// Fired returns the number of notifications dispatched so far.
func (s *Scheduler) Fired() uint64 { return s.fired.Load() }

// HandlerFailures returns the number of handler errors and panics.
func (s *Scheduler) HandlerFailures() uint64 { return s.disp.Failures() }
