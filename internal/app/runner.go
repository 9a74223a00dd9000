package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tickbot/internal/config"
	"tickbot/internal/reactor"
	"tickbot/internal/rules"
	"tickbot/internal/sim"
	logx "tickbot/pkg/logx"
)

// RunSettings is the effective runner config.
type RunSettings struct {
	Interval time.Duration
	MaxTicks uint64
	Realtime bool
	Burst    int
}

func mapRunSettings(cfg config.RunnerConfig) (RunSettings, error) {
	iv, err := cfg.TickInterval()
	if err != nil {
		return RunSettings{}, err
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return RunSettings{Interval: iv, MaxTicks: cfg.MaxTicks, Realtime: cfg.Realtime, Burst: burst}, nil
}

// RunStats is a point-in-time view of the runner. Safe to read from any goroutine.
type RunStats struct {
	Ticks     uint64        `json:"ticks"`
	GlobalRan uint64        `json:"global_ran"`
	EntityRan uint64        `json:"entity_ran"`
	Ended     uint64        `json:"ended"`
	Busy      time.Duration `json:"busy"`
}

// Runner drives the scheduler from the simulated world. It is the only
// goroutine that touches the scheduler once Run starts; everything else hands
// it work through Enqueue, which Run applies between ticks.
type Runner struct {
	log   logx.Logger
	sched *reactor.Scheduler
	world *sim.World

	mu      sync.Mutex
	pending []func()

	set     RunSettings
	limiter *rate.Limiter
	inst    *rules.Installation

	ticks     atomic.Uint64
	globalRan atomic.Uint64
	entityRan atomic.Uint64
	ended     atomic.Uint64
	busy      atomic.Int64

	done chan struct{}
}

func NewRunner(sched *reactor.Scheduler, w *sim.World, set RunSettings, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	if set.Burst <= 0 {
		set.Burst = 1
	}
	return &Runner{
		log:     log,
		sched:   sched,
		world:   w,
		set:     set,
		limiter: rate.NewLimiter(rate.Every(set.Interval), set.Burst),
		done:    make(chan struct{}),
	}
}

// Enqueue schedules fn to run on the runner goroutine before the next tick.
func (r *Runner) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.pending = append(r.pending, fn)
	r.mu.Unlock()
}

// Reinstall swaps the installed rules before the next tick.
func (r *Runner) Reinstall(rs []*rules.Rule) {
	r.Enqueue(func() {
		if r.inst != nil {
			n := r.inst.Uninstall()
			r.log.Debug("rules uninstalled", logx.Int("rules", len(r.inst.Rules())), logx.Int("dropped", n))
		}
		r.inst = rules.Install(r.sched, r.log.With(logx.String("comp", "rules")), rs)
		r.log.Info("rules installed", logx.Int("rules", len(rs)))
	})
}

// Apply swaps the runner settings before the next tick.
func (r *Runner) Apply(set RunSettings) {
	r.Enqueue(func() {
		if set.Burst <= 0 {
			set.Burst = 1
		}
		if set != r.set {
			r.log.Info("runner settings updated",
				logx.Duration("tick_rate", set.Interval),
				logx.Uint64("max_ticks", set.MaxTicks),
				logx.Bool("realtime", set.Realtime),
				logx.Int("burst", set.Burst),
			)
		}
		r.set = set
		r.limiter.SetLimit(rate.Every(set.Interval))
		r.limiter.SetBurst(set.Burst)
	})
}

func (r *Runner) drain() {
	r.mu.Lock()
	fns := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) Stats() RunStats {
	return RunStats{
		Ticks:     r.ticks.Load(),
		GlobalRan: r.globalRan.Load(),
		EntityRan: r.entityRan.Load(),
		Ended:     r.ended.Load(),
		Busy:      time.Duration(r.busy.Load()),
	}
}

// Run ticks until the scenario ends, max_ticks is reached or ctx is done.
// Running out of world is a clean finish and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	start := time.Now()
	reason := ""

	for reason == "" {
		r.drain()
		if err := ctx.Err(); err != nil {
			r.finish(start, "canceled")
			return err
		}
		if r.set.MaxTicks > 0 && r.sched.Ticks() >= r.set.MaxTicks {
			reason = "max_ticks"
			break
		}
		if !r.world.Advance() {
			reason = "scenario_end"
			break
		}

		rep := r.sched.Tick(ctx, r.world)
		r.ticks.Add(1)
		r.globalRan.Add(uint64(rep.GlobalRan))
		r.entityRan.Add(uint64(rep.EntityRan))
		r.ended.Add(uint64(rep.Ended))
		r.busy.Add(int64(rep.Took))
		if r.log.Enabled(logx.LevelTrace) {
			r.log.Trace("tick",
				logx.Uint64("tick", rep.Tick),
				logx.Duration("game_time", r.world.GameTime()),
				logx.Int("added", rep.Added),
				logx.Int("removed", rep.Removed),
				logx.Int("global_ran", rep.GlobalRan),
				logx.Int("entity_ran", rep.EntityRan),
				logx.Int("ended", rep.Ended),
				logx.Duration("took", rep.Took),
			)
		}

		if r.set.Realtime {
			if err := r.limiter.Wait(ctx); err != nil {
				r.finish(start, "canceled")
				return err
			}
		}
	}
	r.finish(start, reason)
	return nil
}

func (r *Runner) finish(start time.Time, reason string) {
	st := r.Stats()
	snap := r.sched.Snapshot()
	r.log.Info("run finished",
		logx.String("reason", reason),
		logx.String("scenario", r.world.Name()),
		logx.Uint64("ticks", st.Ticks),
		logx.Uint64("global_ran", st.GlobalRan),
		logx.Uint64("entity_ran", st.EntityRan),
		logx.Uint64("ended", st.Ended),
		logx.Int("global_queue", snap.GlobalQueue),
		logx.Int("entities", snap.Entities),
		logx.Int("live_entities", snap.LiveEntities),
		logx.Duration("busy", st.Busy),
		logx.Duration("elapsed", time.Since(start)),
	)
}
