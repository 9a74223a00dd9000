package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  remove_on_disappear: true
runner:
  tick_rate: 10ms
  max_ticks: 500
scenario:
  path: ./scenario.yaml
storage:
  driver: file
  path: ./journal
rules:
  - name: mine
    on: entity.new
    kind: scv
    constant: true
    state: mining
    done_when: "!alive"
  - name: research
    on: start
    trigger: "res.minerals > 100"
    toggle: true
    priority: 5
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
	if !cfg.Scheduler.RemoveOnDisappear || cfg.Runner.MaxTicks != 500 {
		t.Fatalf("unexpected scheduler/runner: %+v %+v", cfg.Scheduler, cfg.Runner)
	}
	if d, _ := cfg.Runner.TickInterval(); d != 10*time.Millisecond {
		t.Fatalf("TickInterval = %v", d)
	}
	if len(cfg.Rules) != 2 || cfg.Rules[1].Priority != 5 || !cfg.Rules[1].Toggle {
		t.Fatalf("unexpected rules: %+v", cfg.Rules)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "unknown field", file: "c.json", body: `{"runner":{"tick_rat":"1s"}}`},
		{name: "trailing data", file: "c.json", body: `{} {}`},
		{name: "bad yaml", file: "c.yaml", body: "runner: [1,"},
		{name: "bad duration", file: "c.json", body: `{"runner":{"tick_rate":"soon"}}`},
		{name: "bad driver", file: "c.json", body: `{"storage":{"driver":"mysql"}}`},
		{name: "bad rule on", file: "c.json", body: `{"rules":[{"name":"x","on":"tick"}]}`},
		{name: "duplicate rule", file: "c.json", body: `{"rules":[{"name":"x","on":"start"},{"name":"x","on":"start"}]}`},
		{name: "steps and state", file: "c.json", body: `{"rules":[{"name":"x","on":"start","state":"a","steps":[{"state":"b","until":"true"}]}]}`},
		{name: "kind on start", file: "c.json", body: `{"rules":[{"name":"x","on":"start","kind":"scv"}]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, t.TempDir(), tt.file, tt.body)
			if _, err := NewConfigManager(path).Parse(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	t.Parallel()
	err := Validate(&Config{Rules: []RuleConfig{{On: "start"}}})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Rules: []RuleConfig{{Name: "a", On: "start"}, {Name: "b", On: "start"}}}
	newCfg := &Config{
		Scheduler: SchedulerConfig{RemoveOnDisappear: true},
		Storage:   &StorageConfig{Driver: "sqlite"},
		Rules:     []RuleConfig{{Name: "a", On: "start", Priority: 2}, {Name: "c", On: "start"}},
	}
	changed, attrs, rules := SummarizeConfigChange(oldCfg, newCfg)
	wantSections := []string{"rules", "scheduler", "storage"}
	if len(changed) != len(wantSections) {
		t.Fatalf("changed = %v, want %v", changed, wantSections)
	}
	for i := range wantSections {
		if changed[i] != wantSections[i] {
			t.Fatalf("changed = %v, want %v", changed, wantSections)
		}
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
	wantRules := []string{"a", "b", "c"}
	for i := range wantRules {
		if i >= len(rules) || rules[i] != wantRules[i] {
			t.Fatalf("rules = %v, want %v", rules, wantRules)
		}
	}

	if c, _, _ := SummarizeConfigChange(newCfg, newCfg); len(c) != 0 {
		t.Fatalf("identical configs reported changes: %v", c)
	}
}

func TestSubscribeLatestWins(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(1)
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatal("slow subscriber should receive the newest config")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}

func TestWatchPublishesValidatedChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"runner":{"max_ticks":1}}`)

	m := NewConfigManager(path)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Runner.MaxTicks == 13 {
			return errors.New("unlucky")
		}
		return nil
	})
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "config.json", `{"runner":{"max_ticks":13}}`)
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "config.json", `{"runner":{"max_ticks":7}}`)

	select {
	case cfg := <-ch:
		if cfg.Runner.MaxTicks != 7 {
			t.Fatalf("published max_ticks = %d, want 7", cfg.Runner.MaxTicks)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if m.Get().Runner.MaxTicks != 7 {
		t.Fatalf("committed max_ticks = %d", m.Get().Runner.MaxTicks)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
