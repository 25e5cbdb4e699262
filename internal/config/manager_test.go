package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const jsonConfig = `{
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "poll_interval": "10ms",
  "schedules": [
    {"name": "daily-report", "kind": "daily", "start_date": "2024-01-01", "time_of_day": "09:30", "every_days": 2},
    {"name": "heartbeat", "kind": "interval", "period": "1h", "sync_offset": "15m"}
  ]
}`

const yamlConfig = `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
poll_interval: 10ms
schedules:
  - name: daily-report
    kind: daily
    start_date: "2024-01-01"
    time_of_day: "09:30"
    every_days: 2
  - name: heartbeat
    kind: interval
    period: 1h
    sync_offset: 15m
`

func TestParseJSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	jm := NewManager(writeFile(t, "config.json", jsonConfig))
	jc, err := jm.Parse()
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}

	ym := NewManager(writeFile(t, "config.yaml", yamlConfig))
	yc, err := ym.Parse()
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}

	if hashConfig(jc) != hashConfig(yc) {
		t.Fatalf("json and yaml configs differ:\n%+v\n%+v", jc, yc)
	}
	if len(jc.Schedules) != 2 {
		t.Fatalf("schedules = %d, want 2", len(jc.Schedules))
	}
	if jc.Schedules[1].Period != "1h" || jc.Schedules[1].SyncOffset != "15m" {
		t.Fatalf("interval schedule parsed wrong: %+v", jc.Schedules[1])
	}
}

func TestParseAcceptsYMLExtension(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yml", yamlConfig))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("parse yml: %v", err)
	}
	if len(cfg.Schedules) != 2 {
		t.Fatalf("schedules = %d, want 2", len(cfg.Schedules))
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{"logging": {}, "schedules": [], "typo_field": 1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{"logging": {}, "schedules": []} {"more": 1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestLoadCommitGet(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", jsonConfig))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestSubscribeDeliversLatestWhenFull(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	old := &Config{PollInterval: "1s"}
	latest := &Config{PollInterval: "2s"}
	m.publish(old)
	m.publish(latest)

	got := <-ch
	if got != latest {
		t.Fatalf("got %+v, want the latest published config", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
	m.Unsubscribe(ch) // second call is a no-op
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("poll_interval", "25ms")
	if err != nil {
		t.Fatalf("ParseDurationField: %v", err)
	}
	if d != 25*time.Millisecond {
		t.Fatalf("d = %v, want 25ms", d)
	}
	if _, err := ParseDurationField("poll_interval", "soon"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestParseDateField(t *testing.T) {
	t.Parallel()
	rfc, err := ParseDateField("start_date", "2024-01-01T09:30:00Z")
	if err != nil {
		t.Fatalf("ParseDateField rfc3339: %v", err)
	}
	if !rfc.Equal(time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("rfc = %v", rfc)
	}

	bare, err := ParseDateField("start_date", "2024-01-01")
	if err != nil {
		t.Fatalf("ParseDateField bare: %v", err)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	if !bare.Equal(want) {
		t.Fatalf("bare = %v, want %v", bare, want)
	}

	if _, err := ParseDateField("start_date", "01/01/2024"); err == nil {
		t.Fatal("expected error for unsupported date format")
	}
}
