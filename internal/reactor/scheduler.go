package reactor

import (
	"context"
	"time"

	"tickbot/internal/eventbus"
	"tickbot/internal/world"
	logx "tickbot/pkg/logx"
)

// Config controls scheduler policy.
type Config struct {
	// RemoveOnDisappear drops the record (and its queue) of an entity that is
	// missing from the snapshot and publishes entity.removed. When false the
	// record is kept, marked not live, and nothing is published.
	RemoveOnDisappear bool
}

// Bus event types published by the scheduler.
const (
	BusEntityNew     = "entity.new"
	BusEntityRemoved = "entity.removed"
	BusTaskEnded     = "task.ended"
)

// EntityEvent is the bus payload for entity.new / entity.removed.
type EntityEvent struct {
	ID   world.ID   `json:"id"`
	Kind world.Kind `json:"kind,omitempty"`
	Tick uint64     `json:"tick"`
}

// TaskEvent is the bus payload for task.ended.
type TaskEvent struct {
	ID            EntryID  `json:"id"`
	Scope         Scope    `json:"scope"`
	Entity        world.ID `json:"entity,omitempty"`
	Task          string   `json:"task,omitempty"`
	Tag           string   `json:"tag,omitempty"`
	Priority      int      `json:"priority"`
	Status        string   `json:"status"`
	CreatedAtTick uint64   `json:"created_at_tick"`
	EndedAtTick   uint64   `json:"ended_at_tick"`
}

// TickReport summarizes one Tick call.
type TickReport struct {
	Tick      uint64
	Added     int
	Removed   int
	GlobalRan int
	EntityRan int
	Ended     int
	Took      time.Duration
}

// Scheduler owns the entity registry, the global queue and the event registry.
type Scheduler struct {
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	ticks uint64
	last  world.Snapshot

	entities *entityRegistry
	global   []*entry
	index    map[EntryID]*entry
	events   *eventRegistry
}

// New builds a scheduler. bus may be nil.
func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		entities: newEntityRegistry(),
		index:    map[EntryID]*entry{},
		events:   newEventRegistry(),
	}
}

// Apply swaps the policy. Call it between ticks.
func (s *Scheduler) Apply(cfg Config) {
	if cfg != s.cfg {
		s.log.Info("scheduler policy updated", logx.Bool("remove_on_disappear", cfg.RemoveOnDisappear))
	}
	s.cfg = cfg
}

// Ticks returns how many times Tick has completed.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Tick runs change detection, the global pass and the per-entity passes.
func (s *Scheduler) Tick(ctx context.Context, snap world.Snapshot) TickReport {
	start := time.Now()
	if snap == nil {
		snap = world.Static{}
	}
	s.last = snap
	c := s.newContext(ctx, snap)
	rep := TickReport{Tick: s.ticks}

	rep.Added, rep.Removed = s.detect(c)
	s.runGlobal(c, &rep)
	s.runEntities(c, &rep)

	s.ticks++
	rep.Took = time.Since(start)
	return rep
}

// detect diffs the snapshot against the registry, records newcomers and
// applies the disappearance policy.
func (s *Scheduler) detect(c *Context) (added, removed int) {
	current := c.World.Entities()
	newcomers, gone := world.Diff(current, s.entities.known())

	for _, e := range current {
		if e == nil {
			continue
		}
		if rec := s.entities.get(e.EntityID()); rec != nil {
			rec.entity = e
			rec.live = true
		}
	}

	// Insert every newcomer before publishing so handlers can address any of them.
	for _, e := range newcomers {
		s.entities.insert(e, c.Tick)
	}
	for _, e := range newcomers {
		s.log.Debug("entity appeared", logx.String("entity", string(e.EntityID())), logx.String("kind", string(world.KindOf(e))), logx.Uint64("tick", c.Tick))
		s.publishBus(BusEntityNew, EntityEvent{ID: e.EntityID(), Kind: world.KindOf(e), Tick: c.Tick})
		s.events.publish(c, EventNewEntity, e)
	}

	for _, id := range gone {
		rec := s.entities.get(id)
		if rec == nil {
			continue
		}
		if !s.cfg.RemoveOnDisappear {
			if rec.live {
				rec.live = false
				s.log.Debug("entity missing; record kept", logx.String("entity", string(id)), logx.Uint64("tick", c.Tick))
			}
			continue
		}
		s.dropEntity(c, rec)
		removed++
	}
	return len(newcomers), removed
}

// dropEntity removes a departed entity. Tasks that already started are told
// they failed; tasks that never ran are dropped silently.
func (s *Scheduler) dropEntity(c *Context, rec *entityRecord) {
	s.entities.remove(rec.id)
	queue := rec.queue
	rec.queue = nil
	for _, e := range queue {
		if e.removed {
			continue
		}
		e.removed = true
		delete(s.index, e.id)
		if e.task.Started() {
			s.finish(c, e, StatusFailed)
		}
	}
	s.log.Debug("entity removed", logx.String("entity", string(rec.id)), logx.Int("dropped_tasks", len(queue)), logx.Uint64("tick", c.Tick))
	s.publishBus(BusEntityRemoved, EntityEvent{ID: rec.id, Kind: world.KindOf(rec.entity), Tick: c.Tick})
	s.events.publish(c, EventRemovedEntity, rec.id)
}

// AddGlobalTask queues t on the global queue. A nil trigger fires every tick
// and is not constant, so the task runs once.
func (s *Scheduler) AddGlobalTask(t *Task, trig *TriggerEvent, opts ...EntryOption) (EntryID, error) {
	if t == nil {
		return "", ErrNilTask
	}
	e := s.newEntry(ScopeGlobal, "", t, trig, opts)
	s.global = append(s.global, e)
	return e.id, nil
}

// AddEntityTask queues t on the queue of an entity the scheduler has seen.
func (s *Scheduler) AddEntityTask(id world.ID, t *Task, trig *TriggerEvent, opts ...EntryOption) (EntryID, error) {
	if t == nil {
		return "", ErrNilTask
	}
	rec, err := s.record(id)
	if err != nil {
		return "", err
	}
	e := s.newEntry(ScopeEntity, id, t, trig, opts)
	rec.queue = append(rec.queue, e)
	return e.id, nil
}

// Remove drops a queued entry without calling End. It is safe to call from
// inside a callback, including the step of the entry being removed.
func (s *Scheduler) Remove(id EntryID) bool {
	e := s.index[id]
	if e == nil {
		return false
	}
	s.detach(e)
	return true
}

// RemoveByTag drops every queued entry carrying tag and returns how many went.
func (s *Scheduler) RemoveByTag(tag string) int {
	if tag == "" {
		return 0
	}
	var hits []*entry
	for _, e := range s.index {
		if e.tag == tag {
			hits = append(hits, e)
		}
	}
	for _, e := range hits {
		s.detach(e)
	}
	return len(hits)
}

// GlobalTasks lists the global queue in its current order.
func (s *Scheduler) GlobalTasks() []EntryView {
	out := make([]EntryView, 0, len(s.global))
	for _, e := range s.global {
		out = append(out, e.view())
	}
	return out
}

// EntityTasks lists an entity's queue in its current order.
func (s *Scheduler) EntityTasks(id world.ID) []EntryView {
	rec := s.entities.get(id)
	if rec == nil {
		return nil
	}
	out := make([]EntryView, 0, len(rec.queue))
	for _, e := range rec.queue {
		out = append(out, e.view())
	}
	return out
}

// Snapshot is a diagnostics view of the scheduler.
type Snapshot struct {
	Tick              uint64
	RemoveOnDisappear bool
	GlobalQueue       int
	Entities          int
	LiveEntities      int
	EntityQueues      map[world.ID]int
	Subscribers       map[EventType]int
}

// Snapshot copies out queue and registry counts. Like Tick, it must not
// race with a tick in progress.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:              s.ticks,
		RemoveOnDisappear: s.cfg.RemoveOnDisappear,
		GlobalQueue:       len(s.global),
		Entities:          len(s.entities.order),
		EntityQueues:      map[world.ID]int{},
		Subscribers:       s.events.counts(),
	}
	for _, id := range s.entities.order {
		rec := s.entities.get(id)
		if rec == nil {
			continue
		}
		if rec.live {
			snap.LiveEntities++
		}
		if len(rec.queue) > 0 {
			snap.EntityQueues[id] = len(rec.queue)
		}
	}
	return snap
}

func (s *Scheduler) finish(c *Context, e *entry, st Status) {
	e.task.End(c, st)

	fields := []logx.Field{
		logx.String("entry", string(e.id)),
		logx.String("scope", string(e.scope)),
		logx.String("task", e.task.Name),
		logx.String("status", st.String()),
		logx.Uint64("tick", c.Tick),
	}
	if e.entity != "" {
		fields = append(fields, logx.String("entity", string(e.entity)))
	}
	if e.tag != "" {
		fields = append(fields, logx.String("tag", e.tag))
	}
	if st == StatusFailed {
		s.log.Warn("task failed", fields...)
	} else {
		s.log.Debug("task ended", fields...)
	}

	s.publishBus(BusTaskEnded, TaskEvent{
		ID:            e.id,
		Scope:         e.scope,
		Entity:        e.entity,
		Task:          e.task.Name,
		Tag:           e.tag,
		Priority:      e.priority,
		Status:        st.String(),
		CreatedAtTick: e.createdAt,
		EndedAtTick:   c.Tick,
	})
}

func (s *Scheduler) publishBus(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
