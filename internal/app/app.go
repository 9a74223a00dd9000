package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"tickbot/internal/config"
	"tickbot/internal/eventbus"
	"tickbot/internal/reactor"
	"tickbot/internal/rules"
	"tickbot/internal/runtime/supervisor"
	"tickbot/internal/sim"
	"tickbot/internal/storage"
	logx "tickbot/pkg/logx"
)

type App struct {
	cfgPath string
	runID   string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log    logx.Logger
	logs   *logx.Service
	bus    *eventbus.MemBus
	store  storage.Store
	recent int

	sched  *reactor.Scheduler
	world  *sim.World
	runner *Runner
	rules  []*rules.Rule
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	runID := uuid.NewString()
	log = log.With(logx.String("run", runID[:8]))
	appLog := log.With(logx.String("comp", "app"))

	compiled, err := rules.Compile(cfg.Rules)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	set, err := mapRunSettings(cfg.Runner)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	scPath := resolvePath(cfgPath, cfg.Scenario.Path)
	if scPath == "" {
		_ = logSvc.Close()
		return nil, fmt.Errorf("%w: scenario.path: required", config.ErrInvalid)
	}
	sc, err := sim.Load(scPath)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	w, err := sim.New(sc)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if stc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(stc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		store = st
		appLog.Info("storage enabled", logx.String("driver", stc.Driver))
	}

	sched := reactor.New(mapSchedulerConfig(cfg), log.With(logx.String("comp", "scheduler")), bus)
	runner := NewRunner(sched, w, set, log.With(logx.String("comp", "runner")))

	appLog.Info("scenario loaded",
		logx.String("name", sc.Name),
		logx.String("path", scPath),
		logx.Uint64("ticks", w.Length()),
		logx.Int("rules", len(compiled)),
	)

	return &App{
		cfgPath: cfgPath,
		runID:   runID,
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		recent:  recentOutcomes(cfg),
		sched:   sched,
		world:   w,
		runner:  runner,
		rules:   compiled,
	}, nil
}

// resolvePath makes p relative to the config file's directory.
func resolvePath(cfgPath, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(cfgPath), p)
}

// RunID identifies this process in the outcome journal.
func (a *App) RunID() string { return a.runID }

func (a *App) Runner() *Runner { return a.runner }

// Done is closed when the app supervisor context is canceled (run finished,
// fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := rules.Compile(cfg.Rules); err != nil {
			return err
		}
		if _, err := mapRunSettings(cfg.Runner); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if a.store != nil {
		events, unsub := a.bus.Subscribe(1024)
		a.sup.Go0("journal", func(c context.Context) {
			defer unsub()
			a.journal(c, events)
		})
	}

	a.runner.Reinstall(a.rules)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	a.sup.Go("runner", func(c context.Context) error {
		if err := a.runner.Run(c); err != nil {
			return err
		}
		// A finished run ends the app.
		a.sup.Cancel()
		return nil
	})

	a.startSystemd()
	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, rulesChanged := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "storage", "scenario":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}

	a.logs.Apply(mapLogConfig(newCfg))

	schedCfg := mapSchedulerConfig(newCfg)
	a.runner.Enqueue(func() { a.sched.Apply(schedCfg) })

	if set, err := mapRunSettings(newCfg.Runner); err != nil {
		a.log.Warn("invalid runner config; keeping previous", logx.Err(err))
	} else {
		a.runner.Apply(set)
	}

	if slices.Contains(sections, "rules") {
		compiled, err := rules.Compile(newCfg.Rules)
		if err != nil {
			a.log.Warn("invalid rules; keeping previous", logx.Err(err))
		} else {
			a.log.Debug("rule changes detected", logx.Any("rules", rulesChanged))
			a.runner.Reinstall(compiled)
		}
	}

	a.log.Info("config reloaded", fields...)
}

// journal records task.ended events. On shutdown it flushes what is already
// buffered before returning.
func (a *App) journal(c context.Context, events <-chan eventbus.Event) {
	write := func(ctx context.Context, e eventbus.Event) {
		if e.Type != reactor.BusTaskEnded {
			return
		}
		te, ok := e.Data.(reactor.TaskEvent)
		if !ok {
			return
		}
		o := storage.Outcome{
			At:            e.Time,
			Run:           a.runID,
			Entry:         string(te.ID),
			Scope:         string(te.Scope),
			Entity:        string(te.Entity),
			Task:          te.Task,
			Tag:           te.Tag,
			Priority:      te.Priority,
			Status:        te.Status,
			CreatedAtTick: te.CreatedAtTick,
			EndedAtTick:   te.EndedAtTick,
		}
		if err := a.store.AppendOutcome(ctx, o); err != nil {
			a.log.Warn("outcome not recorded", logx.String("entry", o.Entry), logx.Err(err))
		}
	}

	for {
		select {
		case <-c.Done():
			flush, cancel := context.WithTimeout(context.WithoutCancel(c), 2*time.Second)
			defer cancel()
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return
					}
					write(flush, e)
				default:
					return
				}
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			write(c, e)
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.stopSystemd()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("runner", 2*time.Second, func(c context.Context) error {
		select {
		case <-a.runner.Done():
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	// Wait for supervised goroutines (journal, config watch/reload) before the store closes.
	step("supervisor", 3*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	a.reportDropped()
	step("summary", 1*time.Second, a.logRecent)
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped", logx.String("reason", string(reason)))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// reportDropped warns when subscribers (the journal among them) fell behind
// the bus and missed events.
func (a *App) reportDropped() uint64 {
	n := a.bus.Dropped()
	if n > 0 {
		a.log.Warn("bus events dropped; outcome journal may be incomplete", logx.Uint64("dropped", n))
	}
	return n
}

func (a *App) logRecent(ctx context.Context) error {
	if a.store == nil || a.recent <= 0 {
		return nil
	}
	outs, err := a.store.RecentOutcomes(ctx, a.recent)
	if err != nil {
		return err
	}
	for _, o := range outs {
		fields := []logx.Field{
			logx.String("task", o.Task),
			logx.String("status", o.Status),
			logx.String("scope", o.Scope),
			logx.Uint64("ended_at_tick", o.EndedAtTick),
		}
		if o.Entity != "" {
			fields = append(fields, logx.String("entity", o.Entity))
		}
		if o.Run != a.runID {
			fields = append(fields, logx.String("run", o.Run))
		}
		a.log.Info("recent outcome", fields...)
	}
	return nil
}
