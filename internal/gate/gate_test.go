package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logx "tickd/pkg/logx"
)

func TestGateRunsUnitsInSubmissionOrder(t *testing.T) {
	t.Parallel()
	g := New(Config{Workers: 1, QueueSize: 32}, logx.Nop())
	g.Start()
	defer g.Stop()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	const n = 10
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		if err := g.Submit(func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit(%d): %v", i, err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d, want %d (full order %v)", i, got, i, order)
		}
	}
}

func TestGateBoundsConcurrency(t *testing.T) {
	t.Parallel()
	const workers = 2
	g := New(Config{Workers: workers, QueueSize: 32}, logx.Nop())
	g.Start()
	defer g.Stop()

	var (
		cur, peak atomic.Int64
		wg       sync.WaitGroup
	)
	const n = 8
	wg.Add(n)
	for i := 0; i < n; i++ {
		if err := g.Submit(func(context.Context) {
			c := cur.Add(1)
			for {
				m := peak.Load()
				if c <= m || peak.CompareAndSwap(m, c) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			cur.Add(-1)
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	if got := peak.Load(); got > workers {
		t.Fatalf("observed %d concurrent units, want <= %d", got, workers)
	}
}

func TestGateSubmitAfterStop(t *testing.T) {
	t.Parallel()
	g := New(Config{Workers: 1}, logx.Nop())
	g.Start()
	g.Stop()
	g.Stop() // idempotent

	if err := g.Submit(func(context.Context) {}); err != ErrStopped {
		t.Fatalf("Submit after Stop = %v, want ErrStopped", err)
	}
}

func TestGateSubmitBeforeStart(t *testing.T) {
	t.Parallel()
	g := New(Config{Workers: 1}, logx.Nop())
	if err := g.Submit(func(context.Context) {}); err != ErrStopped {
		t.Fatalf("Submit before Start = %v, want ErrStopped", err)
	}
}

func TestGateQueueFull(t *testing.T) {
	t.Parallel()
	g := New(Config{Workers: 1, QueueSize: 1}, logx.Nop())
	g.Start()
	defer g.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	_ = g.Submit(func(context.Context) { close(started); <-block })
	<-started

	// One unit blocks the worker; fill the queue, then overflow.
	var rejected int
	for i := 0; i < 8; i++ {
		if err := g.Submit(func(context.Context) {}); err != nil {
			rejected++
		}
	}
	close(block)

	if rejected == 0 {
		t.Fatal("expected at least one rejected submission")
	}
	if g.Dropped() != uint64(rejected) {
		t.Fatalf("Dropped = %d, want %d", g.Dropped(), rejected)
	}
}

func TestGateSurvivesPanickingUnit(t *testing.T) {
	t.Parallel()
	g := New(Config{Workers: 1}, logx.Nop())
	g.Start()
	defer g.Stop()

	done := make(chan struct{})
	_ = g.Submit(func(context.Context) { panic("unit bug") })
	if err := g.Submit(func(context.Context) { close(done) }); err != nil {
		t.Fatalf("Submit after panic: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("gate did not recover from panicking unit")
	}
}
