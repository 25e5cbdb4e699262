package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "tickd/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one append-only
// JSON Lines file of fired ticks.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	f    *os.File
	path string
}

type tickRecord struct {
	Schedule    string `json:"schedule"`
	ScheduledAt string `json:"scheduled_at"`
	FiredAt     string `json:"fired_at"`
	DeviationMS int64  `json:"deviation_ms"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("history.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, f: f, path: path}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendTick(_ context.Context, e Entry) error {
	rec := tickRecord{
		Schedule:    e.Schedule,
		ScheduledAt: e.ScheduledAt.Format(time.RFC3339Nano),
		FiredAt:     e.FiredAt.Format(time.RFC3339Nano),
		DeviationMS: e.DeviationMS,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrDisabled
	}
	_, err = s.f.Write(b)
	return err
}

// RecentTicks scans the jsonl file and returns the last limit entries
// for the schedule (all schedules when the name is empty). Malformed
// lines are skipped.
func (s *fileStore) RecentTicks(_ context.Context, schedule string, limit int) ([]Entry, error) {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec tickRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if schedule != "" && rec.Schedule != schedule {
			continue
		}
		e := Entry{Schedule: rec.Schedule, DeviationMS: rec.DeviationMS}
		if t, err := time.Parse(time.RFC3339Nano, rec.ScheduledAt); err == nil {
			e.ScheduledAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, rec.FiredAt); err == nil {
			e.FiredAt = t
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
