// Package gate provides a bounded-concurrency execution gate: submitted
// units of work start in submission order, throttled by a token bucket,
// with at most a fixed number running at once. Schedulers can route
// tick handlers through it when fired work needs throttling; the
// scheduler contract itself does not require the coupling.
package gate

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	logx "tickd/pkg/logx"
)

var ErrStopped = errors.New("gate stopped")

type Config struct {
	// Workers bounds how many units run concurrently. Zero means 2.
	Workers int
	// QueueSize bounds pending units; Submit fails once it is full.
	// Zero means 256.
	QueueSize int
	// RatePerSec limits unit starts per second (token bucket). Zero
	// disables rate limiting.
	RatePerSec int
	// Burst is the bucket size; zero means RatePerSec.
	Burst int
}

type unit struct {
	run func(ctx context.Context)
}

// Gate pumps queued units through a token-bucket limiter and a
// concurrency semaphore. A single pump goroutine takes the token and
// the slot before launching each unit, so starts happen strictly in
// submission order even under backpressure.
type Gate struct {
	log logx.Logger
	cfg Config
	lim *rate.Limiter

	mu     sync.Mutex
	queue  chan unit
	stopCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	pumpWG sync.WaitGroup
	unitWG sync.WaitGroup

	dropped atomic.Uint64
}

func New(cfg Config, log logx.Logger) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	g := &Gate{log: log, cfg: cfg}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RatePerSec
		}
		g.lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return g
}

// Start launches the worker pool. Idempotent.
func (g *Gate) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopCh != nil {
		return
	}
	workers := g.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	size := g.cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	g.stopCh = make(chan struct{})
	g.queue = make(chan unit, size)
	g.ctx, g.cancel = context.WithCancel(context.Background())

	ctx, stopCh, queue := g.ctx, g.stopCh, g.queue
	sem := make(chan struct{}, workers)
	g.pumpWG.Add(1)
	go func() {
		defer g.pumpWG.Done()
		g.pump(ctx, stopCh, queue, sem)
	}()
	g.log.Info("gate started", logx.Int("workers", workers), logx.Int("queue_cap", size))
}

// Stop signals workers to exit and waits for in-flight units. Queued
// but unstarted units are discarded. Idempotent.
func (g *Gate) Stop() {
	g.mu.Lock()
	if g.stopCh == nil {
		g.mu.Unlock()
		return
	}
	stopCh, cancel := g.stopCh, g.cancel
	g.stopCh = nil
	g.queue = nil
	g.cancel = nil
	g.mu.Unlock()

	close(stopCh)
	cancel()
	g.pumpWG.Wait()
	g.unitWG.Wait()
	g.log.Info("gate stopped")
}

// Submit enqueues one unit of work. Units start in submission order.
// It fails when the gate is stopped or the queue is full.
func (g *Gate) Submit(run func(ctx context.Context)) error {
	g.mu.Lock()
	q := g.queue
	g.mu.Unlock()
	if q == nil {
		return ErrStopped
	}
	select {
	case q <- unit{run: run}:
		return nil
	default:
		g.dropped.Add(1)
		g.log.Warn("gate queue full; dropping unit", logx.Int("queue_cap", cap(q)))
		return errors.New("gate queue full")
	}
}

// Dropped returns how many submissions were rejected for backpressure.
func (g *Gate) Dropped() uint64 { return g.dropped.Load() }

func (g *Gate) pump(ctx context.Context, stopCh <-chan struct{}, queue <-chan unit, sem chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case u := <-queue:
			if g.lim != nil {
				if err := g.lim.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case <-stopCh:
				return
			case sem <- struct{}{}:
			}
			g.unitWG.Add(1)
			go func() {
				defer g.unitWG.Done()
				defer func() { <-sem }()
				g.execOne(ctx, u)
			}()
		}
	}
}

func (g *Gate) execOne(ctx context.Context, u unit) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("panic in gated unit",
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
	}()
	u.run(ctx)
}
