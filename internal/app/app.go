// Package app wires the daemon together: configuration, logging,
// tick history, the execution gate and the schedulers themselves.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tickd/internal/config"
	"tickd/internal/gate"
	"tickd/internal/history"
	"tickd/internal/schedule"
	logx "tickd/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store history.Store
	gate  *gate.Gate
	clock schedule.Clock

	mu     sync.Mutex
	scheds []*schedule.Scheduler

	watchCancel context.CancelFunc
	watchDone   chan struct{}
	cfgCh       chan *config.Config
}

// New loads the config at path and builds the full daemon. Nothing is
// started yet; call Start.
func New(path string) (*App, error) {
	mgr := config.NewManager(path)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLogging(cfg.Logging))
	mgr.SetLogger(log.With(logx.String("component", "config")))
	mgr.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return Validate(cfg)
	})

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		clock:  schedule.SystemClock(),
	}

	if cfg.History != nil {
		store, err := history.Open(mapHistory(*cfg.History), log.With(logx.String("component", "history")))
		if err != nil {
			logSvc.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.store = store
	}

	if cfg.Gate != nil && cfg.Gate.Enabled {
		a.gate = gate.New(gate.Config{
			Workers:    cfg.Gate.Workers,
			QueueSize:  cfg.Gate.QueueSize,
			RatePerSec: cfg.Gate.RatePerSec,
			Burst:      cfg.Gate.Burst,
		}, log.With(logx.String("component", "gate")))
	}

	scheds, err := a.buildSchedulers(cfg)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.scheds = scheds
	return a, nil
}

// Validate checks a candidate config without side effects. The config
// watcher uses it to reject bad edits before they reach the daemon.
func Validate(cfg *config.Config) error {
	if cfg.PollInterval != "" {
		if _, err := config.ParseDurationField("poll_interval", cfg.PollInterval); err != nil {
			return err
		}
	}
	seen := make(map[string]struct{}, len(cfg.Schedules))
	for i, sc := range cfg.Schedules {
		if sc.Name == "" {
			return fmt.Errorf("schedules[%d]: name is required", i)
		}
		if _, dup := seen[sc.Name]; dup {
			return fmt.Errorf("schedules[%d]: duplicate name %q", i, sc.Name)
		}
		seen[sc.Name] = struct{}{}
		switch sc.Kind {
		case "daily":
			if _, err := mapDaily(sc); err != nil {
				return fmt.Errorf("schedules[%d] (%s): %w", i, sc.Name, err)
			}
		case "interval":
			if _, err := mapInterval(sc); err != nil {
				return fmt.Errorf("schedules[%d] (%s): %w", i, sc.Name, err)
			}
		default:
			return fmt.Errorf("schedules[%d] (%s): unknown kind %q", i, sc.Name, sc.Kind)
		}
	}
	return nil
}

func (a *App) buildSchedulers(cfg *config.Config) ([]*schedule.Scheduler, error) {
	poll := schedule.DefaultPollInterval
	if cfg.PollInterval != "" {
		d, err := config.ParseDurationField("poll_interval", cfg.PollInterval)
		if err != nil {
			return nil, err
		}
		poll = d
	}

	scheds := make([]*schedule.Scheduler, 0, len(cfg.Schedules))
	for i, sc := range cfg.Schedules {
		opts := []schedule.Option{
			schedule.WithLogger(a.log),
			schedule.WithClock(a.clock),
			schedule.WithPollInterval(poll),
		}

		var (
			s   *schedule.Scheduler
			err error
		)
		switch sc.Kind {
		case "daily":
			var dc schedule.DailyConfig
			dc, err = mapDaily(sc)
			if err == nil {
				s, err = schedule.NewDaily(sc.Name, dc, opts...)
			}
		case "interval":
			var ic schedule.IntervalConfig
			ic, err = mapInterval(sc)
			if err == nil {
				s, err = schedule.NewInterval(sc.Name, ic, opts...)
			}
		default:
			err = fmt.Errorf("unknown kind %q", sc.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("schedules[%d] (%s): %w", i, sc.Name, err)
		}

		s.Subscribe(a.tickHandler(sc.Name))
		scheds = append(scheds, s)
	}
	return scheds, nil
}

// tickHandler is the daemon-level subscriber attached to every
// scheduler: it logs the firing, records it to history and routes it
// through the gate when one is configured.
func (a *App) tickHandler(name string) schedule.Handler {
	return func(ctx context.Context, n schedule.Notification) error {
		record := func(ctx context.Context) {
			a.log.Info("tick",
				logx.String("schedule", name),
				logx.Time("scheduled", n.Scheduled),
				logx.Duration("deviation", n.Deviation))
			if a.store != nil {
				err := a.store.AppendTick(ctx, history.Entry{
					Schedule:    name,
					ScheduledAt: n.Scheduled,
					FiredAt:     n.Fired,
					DeviationMS: n.Deviation.Milliseconds(),
				})
				if err != nil {
					a.log.Warn("history append failed",
						logx.String("schedule", name), logx.Err(err))
				}
			}
		}
		if a.gate != nil {
			return a.gate.Submit(record)
		}
		record(ctx)
		return nil
	}
}

// Start brings the daemon up: gate, schedulers, config watcher.
func (a *App) Start(ctx context.Context) {
	if a.gate != nil {
		a.gate.Start()
	}

	a.mu.Lock()
	for _, s := range a.scheds {
		s.Start()
	}
	a.mu.Unlock()

	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.watchDone = make(chan struct{})
	a.cfgCh = a.cfgMgr.Subscribe(4)

	go func() {
		defer close(a.watchDone)
		if err := a.cfgMgr.Watch(wctx); err != nil {
			a.log.Warn("config watcher stopped", logx.Err(err))
		}
	}()
	go a.reloadLoop(wctx)

	a.log.Info("daemon started", logx.Int("schedules", len(a.scheds)))
}

func (a *App) reloadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgCh:
			if !ok {
				return
			}
			a.applyConfig(cfg)
		}
	}
}

// applyConfig handles a validated config update: logging is reapplied
// in place, schedulers are rebuilt. Gate and history changes need a
// restart and are only logged.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(mapLogging(cfg.Logging))

	scheds, err := a.buildSchedulers(cfg)
	if err != nil {
		a.log.Warn("config update rejected", logx.Err(err))
		return
	}

	a.mu.Lock()
	old := a.scheds
	a.scheds = scheds
	a.mu.Unlock()

	for _, s := range old {
		s.Stop()
	}
	for _, s := range scheds {
		s.Start()
	}
	a.log.Info("config applied", logx.Int("schedules", len(scheds)))
}

// Stop shuts the daemon down in reverse start order.
func (a *App) Stop() {
	if a.watchCancel != nil {
		a.watchCancel()
		<-a.watchDone
		a.cfgMgr.Unsubscribe(a.cfgCh)
	}

	a.mu.Lock()
	scheds := a.scheds
	a.mu.Unlock()
	for _, s := range scheds {
		s.Stop()
	}

	a.closeResources()
	a.log.Info("daemon stopped")
	a.logSvc.Close()
}

func (a *App) closeResources() {
	if a.gate != nil {
		a.gate.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("history close failed", logx.Err(err))
		}
		a.store = nil
	}
}

// Snapshot reports the live state of every scheduler.
func (a *App) Snapshot() []schedule.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]schedule.Snapshot, 0, len(a.scheds))
	for _, s := range a.scheds {
		out = append(out, s.Snapshot())
	}
	return out
}

// ---- config mapping ----

func mapLogging(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
}

func mapHistory(hc config.HistoryConfig) history.Config {
	var busy time.Duration
	if hc.BusyTimeout != "" {
		busy, _ = config.ParseDurationField("history.busy_timeout", hc.BusyTimeout)
	}
	return history.Config{
		Driver:      hc.Driver,
		Path:        hc.Path,
		BusyTimeout: busy,
	}
}

func mapDaily(sc config.ScheduleConfig) (schedule.DailyConfig, error) {
	var dc schedule.DailyConfig

	if sc.StartDate == "" {
		return dc, fmt.Errorf("start_date is required for daily schedules")
	}
	start, err := config.ParseDateField("start_date", sc.StartDate)
	if err != nil {
		return dc, err
	}
	dc.Start = start

	if sc.EndDate != "" {
		end, err := config.ParseDateField("end_date", sc.EndDate)
		if err != nil {
			return dc, err
		}
		dc.End = end
	}

	if sc.TimeOfDay != "" {
		at, err := schedule.ParseTimeOfDay(sc.TimeOfDay)
		if err != nil {
			return dc, err
		}
		dc.At = at
	}

	dc.EveryDays = sc.EveryDays
	dc.InitialTrigger = sc.InitialTrigger
	dc.PrecalcLimit = sc.PrecalcLimit
	return dc, nil
}

func mapInterval(sc config.ScheduleConfig) (schedule.IntervalConfig, error) {
	var ic schedule.IntervalConfig

	if sc.Period == "" {
		return ic, fmt.Errorf("period is required for interval schedules")
	}
	period, err := config.ParseDurationField("period", sc.Period)
	if err != nil {
		return ic, err
	}
	ic.Period = period

	if sc.SyncOffset != "" {
		off, err := config.ParseDurationField("sync_offset", sc.SyncOffset)
		if err != nil {
			return ic, err
		}
		ic.SyncOffset = off
	}

	if sc.StartDate != "" {
		start, err := config.ParseDateField("start_date", sc.StartDate)
		if err != nil {
			return ic, err
		}
		ic.Start = start
	}
	if sc.EndDate != "" {
		end, err := config.ParseDateField("end_date", sc.EndDate)
		if err != nil {
			return ic, err
		}
		ic.End = end
	}

	ic.InitialTrigger = sc.InitialTrigger
	ic.PrecalcLimit = sc.PrecalcLimit
	return ic, nil
}
