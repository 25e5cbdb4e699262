package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "tickd/pkg/logx"
)

// loop is the monitor: a single polling goroutine that compares the
// wall clock against the queue head, fires due ticks, and drives queue
// replenishment. It exits on stop, on window exhaustion, or on a
// recovered invariant violation (surfaced through Err).
func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tick monitor panic: %v", r)
			s.setErr(err)
			s.log.Error("tick monitor crashed", logx.Err(err), logx.Stack(string(debug.Stack())))
		}
	}()

	if s.spec.InitialTrigger() {
		now := s.clock.Now()
		s.fire(ctx, Notification{Scheduled: now, Fired: now})
	}

	timer := time.NewTimer(s.poll)
	defer timer.Stop()
	for {
		// One interruptible wait primitive: shutdown wins over the next
		// poll even mid-sleep.
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}
		if !s.tick(ctx) {
			return
		}
		timer.Reset(s.poll)
	}
}

// tick runs one poll pass. It reports false once the recurrence window
// is exhausted and monitoring should end.
func (s *Scheduler) tick(ctx context.Context) bool {
	now := s.clock.Now()

	// A forward clock jump may cover several entries in one pass; each
	// fires its own notification, in ascending order, with a deviation
	// reflecting its respective lag.
	for _, at := range s.q.takeDue(now) {
		s.fire(ctx, Notification{
			Scheduled: at,
			Fired:     now,
			Deviation: now.Sub(at),
		})
	}

	if s.q.needsRefill() {
		tail, ok := s.q.tail()
		if added := s.q.add(next(s.spec, tail, ok, now, s.spec.PrecalcLimit()-s.q.size())); added > 0 {
			s.log.Debug("queue refilled", logx.Int("added", added), logx.Int("pending", s.q.size()))
		}
	}

	if s.q.size() == 0 && s.spec.windowClosed(now) {
		s.log.Info("recurrence window exhausted", logx.Uint64("fired", s.fired.Load()))
		return false
	}
	return true
}

func (s *Scheduler) fire(ctx context.Context, n Notification) {
	s.fired.Add(1)
	// Fire-and-forget: handlers run detached, the loop does not wait.
	_ = s.disp.Dispatch(ctx, n)
	s.log.Debug("tick fired",
		logx.Time("scheduled", n.Scheduled),
		logx.Duration("deviation", n.Deviation))
}
