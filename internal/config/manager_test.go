package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const sampleYAML = `
logging:
  level: debug
  console: true
engine:
  workers: 4
  queue_size: 128
  default_timeout: 15s
cache:
  retention_months: 3
  load_timeout: 10s
exceptions:
  driver: memory
rota:
  anchor: "2026-01-01"
  cycle: six
  shift_types:
    - id: day
      name: Day
      start: "08:00"
      end: "16:00"
  teams:
    - id: A
    - id: B
      phase_offset_days: 2
  cycles:
    - name: six
      days:
        - [{shift: day, teams: [A]}]
        - [{shift: day, teams: [B]}]
        - []
  users:
    alice: A
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "cfg.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Engine.Workers != 4 || cfg.Engine.DefaultTimeout != "15s" {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
	if cfg.Rota.Anchor != "2026-01-01" || cfg.Rota.Cycle != "six" {
		t.Fatalf("rota = %+v", cfg.Rota)
	}
	if len(cfg.Rota.Cycles) != 1 || len(cfg.Rota.Cycles[0].Days) != 3 {
		t.Fatalf("cycles = %+v", cfg.Rota.Cycles)
	}
	if got := cfg.Rota.Cycles[0].Days[1][0]; got.Shift != "day" || got.Teams[0] != "B" {
		t.Fatalf("day 1 slot = %+v", got)
	}
	if len(cfg.Rota.Cycles[0].Days[2]) != 0 {
		t.Fatal("day 2 should be a rest day")
	}
	if cfg.Rota.Users["alice"] != "A" {
		t.Fatalf("users = %+v", cfg.Rota.Users)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "cfg.yaml", "rota:\n  anchor: \"2026-01-01\"\n  cyccle: typo\n"))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "cyccle") {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "cfg.json", `{"rota":{"anchor":"2026-01-01"}}{"extra":1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "cfg.json", `{"logging":{"level":"info","console":true},"rota":{"anchor":"2026-01-01"}}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Rota.Anchor != "2026-01-01" {
		t.Fatalf("anchor = %q", cfg.Rota.Anchor)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("config not delivered")
	}

	// A slow subscriber keeps the newest update.
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatal("expected newest config after overflow")
	}
}

func TestReloadValidatorRejects(t *testing.T) {
	t.Parallel()
	p := writeTemp(t, "cfg.yaml", sampleYAML)
	m := NewManager(p)
	committed, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		return context.DeadlineExceeded
	})

	if err := os.WriteFile(p, []byte(sampleYAML+"refresh:\n  enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())
	if m.Get() != committed {
		t.Fatal("rejected reload must keep the previous config")
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	t.Parallel()
	p := writeTemp(t, "cfg.yaml", sampleYAML)
	m := NewManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	m.reload(context.Background())
	select {
	case <-ch:
		t.Fatal("unchanged content must not publish")
	default:
	}
}

func TestDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", "15s"); err != nil || d.Seconds() != 15 {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-3s"); err == nil {
		t.Fatal("negative duration must fail")
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatal("garbage duration must fail")
	}
}
