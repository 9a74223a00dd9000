package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/config"
	"tickbot/internal/eventbus"
	"tickbot/internal/reactor"
	"tickbot/internal/sim"
	"tickbot/internal/world"
	logx "tickbot/pkg/logx"
)

type harness struct {
	t      *testing.T
	w      *sim.World
	s      *reactor.Scheduler
	events <-chan eventbus.Event
}

func newHarness(t *testing.T, sc *sim.Scenario, cfgs ...config.RuleConfig) (*harness, *Installation) {
	t.Helper()
	w, err := sim.New(sc)
	require.NoError(t, err)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	t.Cleanup(unsub)

	s := reactor.New(reactor.Config{}, logx.Nop(), bus)
	rs, err := Compile(cfgs)
	require.NoError(t, err)
	return &harness{t: t, w: w, s: s, events: events}, Install(s, logx.Nop(), rs)
}

// tick advances the world and the scheduler once.
func (h *harness) tick() {
	h.t.Helper()
	require.True(h.t, h.w.Advance(), "scenario ended early")
	h.s.Tick(context.Background(), h.w)
}

func (h *harness) ended() []reactor.TaskEvent {
	var out []reactor.TaskEvent
	for len(h.events) > 0 {
		ev := <-h.events
		if te, ok := ev.Data.(reactor.TaskEvent); ok && ev.Type == reactor.BusTaskEnded {
			out = append(out, te)
		}
	}
	return out
}

func opening(ticks uint64) *sim.Scenario {
	return &sim.Scenario{
		Ticks: ticks,
		Timeline: []sim.Event{{At: 0, Spawn: []sim.Spawn{
			{ID: "cc1", Kind: "command_center"},
			{ID: "u1", Kind: "scv", X: 1, Y: 2},
		}}},
	}
}

func TestEntityRuleAttachesToMatchingNewcomers(t *testing.T) {
	h, _ := newHarness(t, opening(6), config.RuleConfig{
		Name:     "mine",
		On:       config.RuleOnEntityNew,
		Kind:     "scv",
		State:    "worker_minerals",
		DoneWhen: "tick >= 3",
		Priority: 3,
	})

	h.tick()
	view, ok := h.s.Entity("u1")
	require.True(t, ok)
	assert.Equal(t, "worker_minerals", view.DisplayState)
	assert.Equal(t, world.StateWorkerMinerals, view.State)
	tasks := h.s.EntityTasks("u1")
	require.Len(t, tasks, 1)
	assert.Equal(t, "rule:mine", tasks[0].Tag)
	assert.Equal(t, 3, tasks[0].Priority)
	assert.True(t, tasks[0].Constant)
	assert.Empty(t, h.s.EntityTasks("cc1"))

	h.tick()
	h.tick()
	assert.Empty(t, h.ended())
	h.tick()
	ended := h.ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "done", ended[0].Status)
	assert.Equal(t, uint64(3), ended[0].EndedAtTick)
	assert.Equal(t, world.ID("u1"), ended[0].Entity)
	assert.Empty(t, h.s.EntityTasks("u1"))
}

func TestStartRuleWaitsForResourcesAndSpends(t *testing.T) {
	sc := &sim.Scenario{
		Ticks:     8,
		Resources: map[string]float64{"minerals": 50},
		Income:    map[string]float64{"minerals": 10},
	}
	h, _ := newHarness(t, sc, config.RuleConfig{
		Name:    "barracks",
		On:      config.RuleOnStart,
		Trigger: "res.minerals >= 100",
		Cost:    map[string]float64{"minerals": 100},
	})
	require.Len(t, h.s.GlobalTasks(), 1)

	for i := 0; i < 5; i++ {
		h.tick()
	}
	assert.Empty(t, h.ended())
	h.tick()
	ended := h.ended()
	require.Len(t, ended, 1)
	assert.Equal(t, uint64(5), ended[0].EndedAtTick)
	assert.Equal(t, 0.0, h.w.Resources()["minerals"])
	assert.Empty(t, h.s.GlobalTasks())
}

func TestPaidTaskKeepsRunningBelowCost(t *testing.T) {
	sc := &sim.Scenario{
		Ticks:     6,
		Resources: map[string]float64{"minerals": 150},
	}
	h, _ := newHarness(t, sc, config.RuleConfig{
		Name:     "factory",
		On:       config.RuleOnStart,
		Cost:     map[string]float64{"minerals": 100},
		DoneWhen: "tick >= 3",
	})

	for i := 0; i < 4; i++ {
		h.tick()
	}
	ended := h.ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "done", ended[0].Status)
	assert.Equal(t, uint64(3), ended[0].EndedAtTick)
	assert.Equal(t, 50.0, h.w.Resources()["minerals"])
	assert.Empty(t, h.s.GlobalTasks())
}

func TestPaidEntityTaskDoesNotStarveQueue(t *testing.T) {
	sc := opening(8)
	sc.Resources = map[string]float64{"minerals": 75}
	h, _ := newHarness(t, sc,
		config.RuleConfig{
			Name:     "gas",
			On:       config.RuleOnEntityNew,
			Kind:     "scv",
			Cost:     map[string]float64{"minerals": 75},
			Priority: 5,
			Steps: []config.StepConfig{
				{State: "worker_building", Until: "tick >= 1"},
				{State: "worker_gas", Until: "tick >= 2"},
			},
		},
		config.RuleConfig{
			Name:     "mine",
			On:       config.RuleOnEntityNew,
			Kind:     "scv",
			State:    "worker_minerals",
			DoneWhen: "tick >= 4",
		},
	)

	for i := 0; i < 5; i++ {
		h.tick()
	}
	var got []string
	for _, te := range h.ended() {
		got = append(got, te.Task+":"+te.Status)
	}
	assert.Equal(t, []string{"gas:done", "mine:done"}, got)
	assert.Equal(t, 0.0, h.w.Resources()["minerals"])
}

func TestStepsRunAsSequence(t *testing.T) {
	h, _ := newHarness(t, opening(8), config.RuleConfig{
		Name: "expand",
		On:   config.RuleOnEntityNew,
		Kind: "scv",
		Steps: []config.StepConfig{
			{State: "moving", Until: "tick >= 2"},
			{State: "worker_building", Until: "tick >= 4"},
		},
	})

	display := func() string {
		v, ok := h.s.Entity("u1")
		require.True(t, ok)
		return v.DisplayState
	}
	h.tick()
	assert.Equal(t, "moving", display())
	h.tick()
	assert.Equal(t, "moving", display())
	h.tick()
	assert.Equal(t, "worker_building", display())
	v, _ := h.s.Entity("u1")
	assert.Equal(t, world.StateWorkerBuilding, v.State)
	h.tick()
	assert.Empty(t, h.ended())
	h.tick()
	ended := h.ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "done", ended[0].Status)
	assert.Equal(t, uint64(4), ended[0].EndedAtTick)
}

func TestFailWhen(t *testing.T) {
	h, _ := newHarness(t, opening(4),
		config.RuleConfig{Name: "flat", On: config.RuleOnStart, Constant: true, FailWhen: "tick >= 1"},
		config.RuleConfig{
			Name:     "tree",
			On:       config.RuleOnEntityNew,
			FailWhen: "count.scv > 0",
			Steps:    []config.StepConfig{{State: "moving", Until: "false"}},
		},
	)
	h.tick()
	h.tick()
	var statuses []string
	for _, e := range h.ended() {
		statuses = append(statuses, e.Task+":"+e.Status)
	}
	// Both entities match the kind-less tree rule and fail on their first step.
	assert.ElementsMatch(t, []string{"tree:failed", "tree:failed", "flat:failed"}, statuses)
}

func TestEveryGatesOnGameClock(t *testing.T) {
	sc := &sim.Scenario{Step: "10s", Ticks: 10}
	h, _ := newHarness(t, sc, config.RuleConfig{Name: "scout", On: config.RuleOnStart, Every: "30s", Constant: true})

	var fired []uint64
	task := h.s.GlobalTasks()[0]
	for i := 0; i < 10; i++ {
		h.tick()
		if v := h.s.GlobalTasks(); len(v) == 1 && v[0].Started && len(fired) == 0 {
			fired = append(fired, uint64(i))
		}
	}
	assert.Equal(t, task.ID, h.s.GlobalTasks()[0].ID)
	assert.Equal(t, []uint64{3}, fired)
}

func TestUninstallAndReinstall(t *testing.T) {
	sc := &sim.Scenario{Ticks: 6, Timeline: []sim.Event{
		{At: 0, Spawn: []sim.Spawn{{ID: "u1", Kind: "scv"}}},
		{At: 2, Spawn: []sim.Spawn{{ID: "u2", Kind: "scv"}}},
	}}
	cfgs := []config.RuleConfig{
		{Name: "idle", On: config.RuleOnEntityNew, Kind: "scv", Constant: true, Tag: "workers"},
		{Name: "wait", On: config.RuleOnStart, Trigger: "false"},
	}
	h, in := newHarness(t, sc, cfgs...)
	h.tick()
	require.Len(t, h.s.EntityTasks("u1"), 1)

	assert.Equal(t, 2, in.Uninstall())
	assert.Empty(t, h.s.EntityTasks("u1"))
	assert.Empty(t, h.s.GlobalTasks())

	h.tick()
	h.tick()
	assert.Empty(t, h.s.EntityTasks("u2"), "uninstalled rules must not attach")

	rs, err := Compile(cfgs)
	require.NoError(t, err)
	in = Install(h.s, logx.Nop(), rs)
	assert.Len(t, in.Rules(), 2)
	assert.Len(t, h.s.EntityTasks("u1"), 1, "reinstall covers live entities")
	assert.Len(t, h.s.EntityTasks("u2"), 1)
	assert.Len(t, h.s.GlobalTasks(), 1)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RuleConfig
	}{
		{name: "bad on", cfg: config.RuleConfig{Name: "x", On: "tick"}},
		{name: "bad trigger", cfg: config.RuleConfig{Name: "x", On: "start", Trigger: "res.minerals >"}},
		{name: "non-bool done", cfg: config.RuleConfig{Name: "x", On: "start", DoneWhen: "tick + 1"}},
		{name: "unknown var", cfg: config.RuleConfig{Name: "x", On: "start", FailWhen: "hp < 10"}},
		{name: "bad every", cfg: config.RuleConfig{Name: "x", On: "start", Every: "sometimes"}},
		{name: "empty until", cfg: config.RuleConfig{Name: "x", On: "start", Steps: []config.StepConfig{{State: "a"}}}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile([]config.RuleConfig{tc.cfg})
			require.ErrorIs(t, err, ErrBadRule)
		})
	}
}
