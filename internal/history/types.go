package history

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("history disabled")

// Config configures tick-history persistence.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", history is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one fired tick. Keep it compact and schema-stable.
type Entry struct {
	Schedule    string
	ScheduledAt time.Time
	FiredAt     time.Time
	DeviationMS int64
}
