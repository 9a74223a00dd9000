package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tickbot/internal/world"
)

const scenarioYAML = `
name: opening
step: 2s
resources: {minerals: 50}
income: {minerals: 5}
timeline:
  - at: 3
    despawn: [u1]
    grant: {vespene: 25}
  - at: 0
    spawn:
      - {id: cc1, kind: command_center}
      - {id: u1, kind: scv, x: 3, y: 4}
  - at: 1
    spawn:
      - {id: u2, kind: scv}
      - {id: u1, kind: scv, x: 5, y: 6}
`

func ids(es []world.Entity) []world.ID {
	out := make([]world.ID, 0, len(es))
	for _, e := range es {
		out = append(out, e.EntityID())
	}
	return out
}

func equalIDs(a, b []world.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadAndReplay(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w, err := New(sc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Length() != 4 || w.Name() != "opening" {
		t.Fatalf("Length=%d Name=%q", w.Length(), w.Name())
	}

	steps := []struct {
		ids      []world.ID
		minerals float64
		vespene  float64
		time     time.Duration
	}{
		{ids: []world.ID{"cc1", "u1"}, minerals: 50, time: 0},
		{ids: []world.ID{"cc1", "u1", "u2"}, minerals: 55, time: 2 * time.Second},
		{ids: []world.ID{"cc1", "u1", "u2"}, minerals: 60, time: 4 * time.Second},
		{ids: []world.ID{"cc1", "u2"}, minerals: 65, vespene: 25, time: 6 * time.Second},
	}
	for i, want := range steps {
		if !w.Advance() {
			t.Fatalf("tick %d: Advance returned false", i)
		}
		if w.Tick() != uint64(i) {
			t.Fatalf("Tick = %d, want %d", w.Tick(), i)
		}
		if got := ids(w.Entities()); !equalIDs(got, want.ids) {
			t.Fatalf("tick %d: entities %v, want %v", i, got, want.ids)
		}
		res := w.Resources()
		if res["minerals"] != want.minerals || res["vespene"] != want.vespene {
			t.Fatalf("tick %d: resources %v", i, res)
		}
		if w.GameTime() != want.time {
			t.Fatalf("tick %d: time %v, want %v", i, w.GameTime(), want.time)
		}
	}
	if w.Advance() || !w.Done() {
		t.Fatal("scenario should be over")
	}
}

func TestSpawnExistingMoves(t *testing.T) {
	t.Parallel()
	w, err := New(&Scenario{Timeline: []Event{
		{At: 0, Spawn: []Spawn{{ID: "u1", Kind: "scv", X: 1}}},
		{At: 1, Spawn: []Spawn{{ID: "u1", Kind: "scv", X: 9}}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	w.Advance()
	first := w.Entities()[0]
	w.Advance()
	if len(w.Entities()) != 1 {
		t.Fatalf("entities = %d, want 1", len(w.Entities()))
	}
	if p := first.(world.Positioned).Position(); p.X != 9 {
		t.Fatalf("position = %+v, want x=9", p)
	}
}

func TestSpend(t *testing.T) {
	t.Parallel()
	w, err := New(&Scenario{Ticks: 1, Resources: map[string]float64{"minerals": 100, "vespene": 10}})
	if err != nil {
		t.Fatal(err)
	}
	if w.Spend(map[string]float64{"minerals": 50, "vespene": 20}) {
		t.Fatal("should not afford vespene")
	}
	if !w.Spend(map[string]float64{"minerals": 50, "vespene": 10}) {
		t.Fatal("should afford")
	}
	if r := w.Resources(); r["minerals"] != 50 || r["vespene"] != 0 {
		t.Fatalf("resources after spend: %v", r)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	bad := []*Scenario{
		{Step: "fast"},
		{Timeline: []Event{{Spawn: []Spawn{{Kind: "scv"}}}}},
		{Ticks: 2, Timeline: []Event{{At: 5}}},
	}
	for i, sc := range bad {
		if err := sc.Validate(); !errors.Is(err, ErrBadScenario) {
			t.Fatalf("case %d: err = %v, want ErrBadScenario", i, err)
		}
	}
}
