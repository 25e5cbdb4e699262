package config

// Config is the root daemon configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Dates accept RFC 3339 ("2024-01-01T00:00:00Z") or a bare date
// ("2024-01-01", midnight local time).
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// PollInterval bounds firing precision of every monitor loop.
	// Empty means the scheduler default (25ms).
	PollInterval string `json:"poll_interval,omitempty"`

	// History controls tick-history persistence. Omitted = disabled.
	History *HistoryConfig `json:"history,omitempty"`

	// Gate controls the optional bounded-concurrency execution gate for
	// fired work. Omitted = handlers run ungated.
	Gate *GateConfig `json:"gate,omitempty"`

	Schedules []ScheduleConfig `json:"schedules"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HistoryConfig selects the persistence backend for fired ticks.
//
// Example:
//
//	"history": { "driver": "file", "path": "./tickd_history.jsonl" }
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type GateConfig struct {
	Enabled    bool `json:"enabled"`
	Workers    int  `json:"workers,omitempty"`
	QueueSize  int  `json:"queue_size,omitempty"`
	RatePerSec int  `json:"rate_per_sec,omitempty"`
	Burst      int  `json:"burst,omitempty"`
}

// ScheduleConfig declares one recurring schedule.
//
// Kind "daily" uses start_date/end_date/time_of_day/every_days.
// Kind "interval" uses period/sync_offset and optional start/end dates.
type ScheduleConfig struct {
	Name string `json:"name"`
	Kind string `json:"kind"`

	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	TimeOfDay string `json:"time_of_day,omitempty"`
	EveryDays int    `json:"every_days,omitempty"`

	Period     string `json:"period,omitempty"`
	SyncOffset string `json:"sync_offset,omitempty"`

	InitialTrigger bool `json:"initial_trigger,omitempty"`
	PrecalcLimit   int  `json:"precalc_limit,omitempty"`
}
