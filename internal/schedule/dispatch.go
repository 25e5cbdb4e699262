package schedule

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "tickd/pkg/logx"
)

// Notification is emitted once per fired queue entry.
type Notification struct {
	// Scheduled is the instant the tick was planned for.
	Scheduled time.Time
	// Fired is the instant the monitor observed the tick as due.
	Fired time.Time
	// Deviation = Fired - Scheduled. Never negative: a tick is only
	// detected after its scheduled instant has passed.
	Deviation time.Duration
}

// Handler consumes tick notifications. The context is canceled when the
// owning scheduler stops. A returned error is logged and counted; it
// never reaches other handlers or the monitor loop.
type Handler func(ctx context.Context, n Notification) error

// Subscription identifies a registered handler.
type Subscription uint64

// Dispatcher fans notifications out to subscribers.
//
// Dispatch is fire-and-forget with respect to the monitor loop: each
// handler runs on its own goroutine and the loop proceeds without
// waiting. Subscription management uses its own lock, decoupled from
// queue mutation, so slow subscriber churn never blocks firing
// detection.
type Dispatcher struct {
	log logx.Logger

	mu       sync.RWMutex
	seq      atomic.Uint64
	handlers map[Subscription]Handler

	failures atomic.Uint64
}

func newDispatcher(log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		log:      log,
		handlers: map[Subscription]Handler{},
	}
}

func (d *Dispatcher) Subscribe(h Handler) Subscription {
	id := Subscription(d.seq.Add(1))
	d.mu.Lock()
	d.handlers[id] = h
	d.mu.Unlock()
	return id
}

// Unsubscribe removes the handler. It returns false when the
// subscription is unknown or already removed. A dispatch already in
// flight may still invoke the removed handler once.
func (d *Dispatcher) Unsubscribe(s Subscription) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[s]; !ok {
		return false
	}
	delete(d.handlers, s)
	return true
}

func (d *Dispatcher) subscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

// Dispatch invokes every currently registered handler with n, each on
// its own goroutine. The returned channel closes once all handlers for
// this notification have returned; callers that only need
// fire-and-forget semantics may ignore it.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) <-chan struct{} {
	// Snapshot the handler set so concurrent (un)subscribes cannot tear
	// the iteration.
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers))
	for _, h := range d.handlers {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(hs))
	for _, h := range hs {
		go func(h Handler) {
			defer wg.Done()
			d.invoke(ctx, h, n)
		}(h)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			d.log.Error("panic in tick handler",
				logx.Any("panic", r),
				logx.Time("scheduled", n.Scheduled),
				logx.Stack(string(debug.Stack())))
		}
	}()
	if err := h(ctx, n); err != nil {
		d.failures.Add(1)
		d.log.Warn("tick handler failed",
			logx.Err(err),
			logx.Time("scheduled", n.Scheduled),
			logx.Duration("deviation", n.Deviation))
	}
}

// Failures returns the number of handler errors and panics observed
// since construction.
func (d *Dispatcher) Failures() uint64 { return d.failures.Load() }
