package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tickbot/internal/config"
	"tickbot/internal/world"
)

var ErrBadScenario = errors.New("sim: bad scenario")

// Scenario is a scripted game: starting stockpiles, per-tick income and a
// timeline of entities appearing and disappearing.
//
// Example (YAML):
//
//	name: opening
//	step: 1s
//	resources: {minerals: 50}
//	income: {minerals: 5}
//	timeline:
//	  - at: 0
//	    spawn: [{id: cc1, kind: command_center}, {id: u1, kind: scv, x: 3, y: 4}]
//	  - at: 12
//	    despawn: [u1]
type Scenario struct {
	Name string `json:"name,omitempty"`
	// Step is the game time that passes per tick. Default 1s.
	Step      string             `json:"step,omitempty"`
	Resources map[string]float64 `json:"resources,omitempty"`
	Income    map[string]float64 `json:"income,omitempty"`
	// Ticks is the scenario length. Zero means one past the last event.
	Ticks    uint64  `json:"ticks,omitempty"`
	Timeline []Event `json:"timeline"`
}

// Event is everything that happens at one tick.
type Event struct {
	At      uint64             `json:"at"`
	Spawn   []Spawn            `json:"spawn,omitempty"`
	Despawn []world.ID         `json:"despawn,omitempty"`
	Grant   map[string]float64 `json:"grant,omitempty"`
}

// Spawn adds an entity, or moves it when the id is already live.
type Spawn struct {
	ID   world.ID   `json:"id"`
	Kind world.Kind `json:"kind"`
	X    float64    `json:"x,omitempty"`
	Y    float64    `json:"y,omitempty"`
}

// Load reads a scenario file (JSON or YAML by extension).
func Load(path string) (*Scenario, error) {
	var sc Scenario
	if err := config.DecodeFile(path, &sc); err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario and sorts its timeline by tick.
func (sc *Scenario) Validate() error {
	if _, err := sc.StepDuration(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadScenario, err)
	}
	for i, ev := range sc.Timeline {
		for j, sp := range ev.Spawn {
			if strings.TrimSpace(string(sp.ID)) == "" {
				return fmt.Errorf("%w: timeline[%d].spawn[%d]: id required", ErrBadScenario, i, j)
			}
		}
		if sc.Ticks > 0 && ev.At >= sc.Ticks {
			return fmt.Errorf("%w: timeline[%d].at=%d is past ticks=%d", ErrBadScenario, i, ev.At, sc.Ticks)
		}
	}
	sort.SliceStable(sc.Timeline, func(i, j int) bool { return sc.Timeline[i].At < sc.Timeline[j].At })
	return nil
}

// StepDuration is the game time per tick.
func (sc *Scenario) StepDuration() (time.Duration, error) {
	return config.ParseDurationOrDefault("step", sc.Step, time.Second)
}

// Length is how many ticks the scenario produces.
func (sc *Scenario) Length() uint64 {
	if sc.Ticks > 0 {
		return sc.Ticks
	}
	var last uint64
	for _, ev := range sc.Timeline {
		if ev.At+1 > last {
			last = ev.At + 1
		}
	}
	return last
}
