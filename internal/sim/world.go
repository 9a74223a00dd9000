package sim

import (
	"time"

	"tickbot/internal/world"
)

// World plays a Scenario one tick at a time. After each Advance it is the
// snapshot for that tick.
type World struct {
	sc     *Scenario
	step   time.Duration
	length uint64

	tick   uint64 // next tick Advance will produce
	now    time.Duration
	cursor int

	units map[world.ID]*world.Unit
	order []world.ID
	res   map[string]float64
}

// New validates sc and positions the world before tick 0.
func New(sc *Scenario) (*World, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	step, _ := sc.StepDuration()
	w := &World{
		sc:     sc,
		step:   step,
		length: sc.Length(),
		units:  map[world.ID]*world.Unit{},
		res:    map[string]float64{},
	}
	for k, v := range sc.Resources {
		w.res[k] = v
	}
	return w, nil
}

// Advance produces the next tick: income (from tick 1 on), clock, then the
// timeline events scheduled for it. It returns false once the scenario is over.
func (w *World) Advance() bool {
	if w.Done() {
		return false
	}
	if w.tick > 0 {
		for k, v := range w.sc.Income {
			w.res[k] += v
		}
	}
	w.now = time.Duration(w.tick) * w.step

	for w.cursor < len(w.sc.Timeline) && w.sc.Timeline[w.cursor].At <= w.tick {
		w.apply(w.sc.Timeline[w.cursor])
		w.cursor++
	}
	w.tick++
	return true
}

func (w *World) apply(ev Event) {
	for _, id := range ev.Despawn {
		if _, ok := w.units[id]; !ok {
			continue
		}
		delete(w.units, id)
		for i, v := range w.order {
			if v == id {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
	}
	for _, sp := range ev.Spawn {
		if u, ok := w.units[sp.ID]; ok {
			u.Type = sp.Kind
			u.Pos = world.Point{X: sp.X, Y: sp.Y}
			continue
		}
		w.units[sp.ID] = &world.Unit{ID: sp.ID, Type: sp.Kind, Pos: world.Point{X: sp.X, Y: sp.Y}}
		w.order = append(w.order, sp.ID)
	}
	for k, v := range ev.Grant {
		w.res[k] += v
	}
}

// Done reports whether every tick has been produced.
func (w *World) Done() bool { return w.tick >= w.length }

// Tick is the index of the last produced tick, or 0 before the first Advance.
func (w *World) Tick() uint64 {
	if w.tick == 0 {
		return 0
	}
	return w.tick - 1
}

func (w *World) Name() string { return w.sc.Name }

// Length is the number of ticks the scenario produces.
func (w *World) Length() uint64 { return w.length }

// Entities lists live units in spawn order.
func (w *World) Entities() []world.Entity {
	out := make([]world.Entity, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.units[id])
	}
	return out
}

func (w *World) GameTime() time.Duration { return w.now }

// Resources returns a copy of the stockpiles.
func (w *World) Resources() map[string]float64 {
	out := make(map[string]float64, len(w.res))
	for k, v := range w.res {
		out[k] = v
	}
	return out
}

// Spend deducts cost when every stockpile covers it.
func (w *World) Spend(cost map[string]float64) bool {
	for k, v := range cost {
		if w.res[k] < v {
			return false
		}
	}
	for k, v := range cost {
		w.res[k] -= v
	}
	return true
}

var (
	_ world.Snapshot  = (*World)(nil)
	_ world.Resourced = (*World)(nil)
)
