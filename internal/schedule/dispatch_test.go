package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "tickd/pkg/logx"
)

func TestDispatchReachesAllHandlers(t *testing.T) {
	t.Parallel()
	d := newDispatcher(logx.Nop())

	var a, b atomic.Int64
	d.Subscribe(func(context.Context, Notification) error { a.Add(1); return nil })
	d.Subscribe(func(context.Context, Notification) error { b.Add(1); return nil })

	<-d.Dispatch(context.Background(), Notification{Scheduled: time.Now()})
	if a.Load() != 1 || b.Load() != 1 {
		t.Fatalf("handler counts = %d/%d, want 1/1", a.Load(), b.Load())
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	t.Parallel()
	d := newDispatcher(logx.Nop())

	var ok atomic.Int64
	d.Subscribe(func(context.Context, Notification) error { panic("boom") })
	d.Subscribe(func(context.Context, Notification) error { return errors.New("nope") })
	d.Subscribe(func(context.Context, Notification) error { ok.Add(1); return nil })

	<-d.Dispatch(context.Background(), Notification{})
	if ok.Load() != 1 {
		t.Fatalf("well-behaved handler ran %d times, want 1", ok.Load())
	}
	if d.Failures() != 2 {
		t.Fatalf("Failures = %d, want 2", d.Failures())
	}

	// The dispatcher must stay usable after a panic.
	<-d.Dispatch(context.Background(), Notification{})
	if ok.Load() != 2 {
		t.Fatalf("handler did not run after earlier panic")
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	d := newDispatcher(logx.Nop())

	var n atomic.Int64
	sub := d.Subscribe(func(context.Context, Notification) error { n.Add(1); return nil })

	if !d.Unsubscribe(sub) {
		t.Fatal("Unsubscribe returned false for a live subscription")
	}
	if d.Unsubscribe(sub) {
		t.Fatal("second Unsubscribe returned true")
	}
	if d.subscriberCount() != 0 {
		t.Fatalf("subscriberCount = %d, want 0", d.subscriberCount())
	}

	<-d.Dispatch(context.Background(), Notification{})
	if n.Load() != 0 {
		t.Fatalf("removed handler still invoked %d times", n.Load())
	}
}

func TestDispatchWithNoHandlers(t *testing.T) {
	t.Parallel()
	d := newDispatcher(logx.Nop())
	select {
	case <-d.Dispatch(context.Background(), Notification{}):
	case <-time.After(time.Second):
		t.Fatal("dispatch with no handlers did not complete")
	}
}
