package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSpec is wrapped by all construction-time validation errors.
var ErrInvalidSpec = errors.New("invalid recurrence spec")

// Pre-calculation limits: the target number of future fire times kept
// materialized ahead of the current time.
const (
	DefaultDailyPrecalc    = 5
	DefaultIntervalPrecalc = 100
)

type Kind int

const (
	KindDaily Kind = iota + 1
	KindInterval
)

func (k Kind) String() string {
	switch k {
	case KindDaily:
		return "daily"
	case KindInterval:
		return "interval"
	default:
		return "unknown"
	}
}

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q, expected HH:MM[:SS]", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
		nums[i] = n
	}
	td := TimeOfDay{Hour: nums[0], Minute: nums[1]}
	if len(nums) == 3 {
		td.Second = nums[2]
	}
	if err := td.validate(); err != nil {
		return TimeOfDay{}, err
	}
	return td, nil
}

func (t TimeOfDay) validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return fmt.Errorf("%w: time of day %02d:%02d:%02d out of range", ErrInvalidSpec, t.Hour, t.Minute, t.Second)
	}
	return nil
}

// On returns the instant at this time of day on the date of ref,
// in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, t.Second, 0, ref.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// DailyConfig describes a calendar recurrence: fire at At on the start
// date and every EveryDays days thereafter, bounded by [Start, End].
type DailyConfig struct {
	Start time.Time
	End   time.Time // zero = open-ended
	At    TimeOfDay
	// EveryDays is the day step between fires. Zero means 1.
	EveryDays int
	// InitialTrigger requests one out-of-band notification immediately
	// when the monitor starts, before the first calendar fire. It is a
	// start-of-monitoring signal, so every Start emits it again,
	// restarts after Stop included.
	InitialTrigger bool
	// PrecalcLimit caps the queue of materialized fire times. Zero means
	// DefaultDailyPrecalc.
	PrecalcLimit int
}

// IntervalConfig describes a fixed-period recurrence. Fire instants are
// phase-aligned: (t - SyncOffset) mod Period == 0 relative to the Unix
// epoch, not relative to process start.
type IntervalConfig struct {
	Start time.Time // zero = anchor from current time
	End   time.Time // zero = open-ended

	Period     time.Duration
	SyncOffset time.Duration

	// InitialTrigger fires one out-of-band notification at every
	// monitor start; see DailyConfig.InitialTrigger.
	InitialTrigger bool
	// PrecalcLimit caps the queue of materialized fire times. Zero means
	// DefaultIntervalPrecalc.
	PrecalcLimit int
}

// Spec is an immutable, validated recurrence description. The zero
// value is not valid; build one through NewDailySpec or NewIntervalSpec.
type Spec struct {
	kind Kind

	start time.Time
	end   time.Time

	// daily
	at        TimeOfDay
	everyDays int

	// interval
	period     time.Duration
	syncOffset time.Duration

	precalc        int
	initialTrigger bool
}

func NewDailySpec(cfg DailyConfig) (Spec, error) {
	if cfg.Start.IsZero() {
		return Spec{}, fmt.Errorf("%w: daily start date required", ErrInvalidSpec)
	}
	if err := cfg.At.validate(); err != nil {
		return Spec{}, err
	}
	everyDays := cfg.EveryDays
	if everyDays == 0 {
		everyDays = 1
	}
	if everyDays < 1 {
		return Spec{}, fmt.Errorf("%w: recur every %d days, want >= 1", ErrInvalidSpec, cfg.EveryDays)
	}
	if !cfg.End.IsZero() && cfg.Start.After(cfg.End) {
		return Spec{}, fmt.Errorf("%w: start %s after end %s", ErrInvalidSpec,
			cfg.Start.Format(time.RFC3339), cfg.End.Format(time.RFC3339))
	}
	precalc := cfg.PrecalcLimit
	if precalc <= 0 {
		precalc = DefaultDailyPrecalc
	}
	return Spec{
		kind:           KindDaily,
		start:          cfg.Start,
		end:            cfg.End,
		at:             cfg.At,
		everyDays:      everyDays,
		precalc:        precalc,
		initialTrigger: cfg.InitialTrigger,
	}, nil
}

func NewIntervalSpec(cfg IntervalConfig) (Spec, error) {
	if cfg.Period <= 0 {
		return Spec{}, fmt.Errorf("%w: period %s, want > 0", ErrInvalidSpec, cfg.Period)
	}
	if !cfg.Start.IsZero() && !cfg.End.IsZero() && cfg.Start.After(cfg.End) {
		return Spec{}, fmt.Errorf("%w: start %s after end %s", ErrInvalidSpec,
			cfg.Start.Format(time.RFC3339), cfg.End.Format(time.RFC3339))
	}
	// Normalize the offset into [0, period) so alignment math can assume it.
	off := cfg.SyncOffset % cfg.Period
	if off < 0 {
		off += cfg.Period
	}
	precalc := cfg.PrecalcLimit
	if precalc <= 0 {
		precalc = DefaultIntervalPrecalc
	}
	return Spec{
		kind:           KindInterval,
		start:          cfg.Start,
		end:            cfg.End,
		period:         cfg.Period,
		syncOffset:     off,
		precalc:        precalc,
		initialTrigger: cfg.InitialTrigger,
	}, nil
}

func (sp Spec) Kind() Kind           { return sp.kind }
func (sp Spec) PrecalcLimit() int    { return sp.precalc }
func (sp Spec) InitialTrigger() bool { return sp.initialTrigger }

// windowClosed reports whether no further fire time can exist at or
// after now.
func (sp Spec) windowClosed(now time.Time) bool {
	return !sp.end.IsZero() && now.After(sp.end)
}
