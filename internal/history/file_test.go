package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "tickd/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		store, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if store != nil {
			t.Fatalf("Open(%q) returned a store, want nil", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenFileRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	store, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Schedule: "heartbeat", ScheduledAt: base, FiredAt: base.Add(12 * time.Millisecond), DeviationMS: 12},
		{Schedule: "report", ScheduledAt: base.Add(time.Minute), FiredAt: base.Add(time.Minute), DeviationMS: 0},
		{Schedule: "heartbeat", ScheduledAt: base.Add(2 * time.Minute), FiredAt: base.Add(2*time.Minute + 5*time.Millisecond), DeviationMS: 5},
	}
	for _, e := range entries {
		if err := store.AppendTick(ctx, e); err != nil {
			t.Fatalf("AppendTick: %v", err)
		}
	}

	got, err := store.RecentTicks(ctx, "heartbeat", 10)
	if err != nil {
		t.Fatalf("RecentTicks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d heartbeat entries, want 2", len(got))
	}
	if !got[0].ScheduledAt.Equal(base) || got[0].DeviationMS != 12 {
		t.Fatalf("first entry = %+v", got[0])
	}
	if !got[1].ScheduledAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("second entry = %+v", got[1])
	}

	all, err := store.RecentTicks(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentTicks all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}

	limited, err := store.RecentTicks(ctx, "", 2)
	if err != nil {
		t.Fatalf("RecentTicks limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("got %d entries with limit 2", len(limited))
	}
	// Limit keeps the most recent entries.
	if limited[len(limited)-1].Schedule != "heartbeat" || limited[len(limited)-1].DeviationMS != 5 {
		t.Fatalf("limited tail = %+v", limited[len(limited)-1])
	}
}

func TestFileStoreAppendAfterClose(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	store, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.AppendTick(context.Background(), Entry{Schedule: "x"}); err == nil {
		t.Fatal("expected error appending after Close")
	}
}
