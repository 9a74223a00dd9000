package reactor

import (
	"sort"

	"github.com/google/uuid"

	"tickbot/internal/world"
)

// EntryID identifies a queued task.
type EntryID string

// Scope tells global entries from per-entity ones.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeEntity Scope = "entity"
)

type entry struct {
	id        EntryID
	priority  int
	task      *Task
	trigger   *TriggerEvent
	tag       string
	createdAt uint64
	entity    world.ID
	scope     Scope

	removed bool
}

// EntryOption sets optional fields of a queue entry.
type EntryOption func(*entry)

// WithPriority orders entries within a queue; higher runs first. Default 0.
func WithPriority(p int) EntryOption { return func(e *entry) { e.priority = p } }

// WithTag labels an entry so it can be found or removed later.
func WithTag(tag string) EntryOption { return func(e *entry) { e.tag = tag } }

// EntryView is a read-only copy of a queue entry.
type EntryView struct {
	ID            EntryID
	Scope         Scope
	Entity        world.ID
	Task          string
	Priority      int
	Tag           string
	CreatedAtTick uint64
	Started       bool
	Constant      bool
}

func (e *entry) view() EntryView {
	return EntryView{
		ID:            e.id,
		Scope:         e.scope,
		Entity:        e.entity,
		Task:          e.task.Name,
		Priority:      e.priority,
		Tag:           e.tag,
		CreatedAtTick: e.createdAt,
		Started:       e.task.Started(),
		Constant:      e.trigger.Constant,
	}
}

func (s *Scheduler) newEntry(scope Scope, id world.ID, t *Task, trig *TriggerEvent, opts []EntryOption) *entry {
	if trig == nil {
		trig = NewTrigger(nil)
	}
	e := &entry{
		id:        EntryID(uuid.NewString()),
		task:      t,
		trigger:   trig,
		createdAt: s.ticks,
		entity:    id,
		scope:     scope,
	}
	for _, o := range opts {
		o(e)
	}
	s.index[e.id] = e
	return e
}

// sortByPriority orders entries by descending priority, keeping insertion
// order among equals.
func sortByPriority(q []*entry) {
	sort.SliceStable(q, func(i, j int) bool { return q[i].priority > q[j].priority })
}

func compact(q []*entry) []*entry {
	out := q[:0]
	for _, e := range q {
		if !e.removed {
			out = append(out, e)
		}
	}
	for i := len(out); i < len(q); i++ {
		q[i] = nil
	}
	return out
}

// step runs one evaluation of e. It reports whether the trigger fired and,
// when the entry must leave its queue, the final status.
func (s *Scheduler) step(c *Context, e *entry) (fired, finished bool, st Status) {
	if !e.trigger.ShouldTrigger(c) {
		return false, false, 0
	}
	e.task.Step(c)
	if e.removed {
		// Removed by its own step (Remove/RemoveByTag); no End.
		return true, false, 0
	}
	st = e.task.Status(c)
	if !e.trigger.Constant || st != StatusRunning {
		return true, true, st
	}
	return true, false, st
}

// runGlobal evaluates every global entry in priority order. Entries added
// while the pass runs wait for the next tick.
func (s *Scheduler) runGlobal(c *Context, rep *TickReport) {
	sortByPriority(s.global)
	pending := append([]*entry(nil), s.global...)
	for _, e := range pending {
		if e.removed {
			continue
		}
		fired, finished, st := s.step(c, e)
		if fired {
			rep.GlobalRan++
		}
		if finished {
			s.detach(e)
			s.finish(c, e, st)
			rep.Ended++
		}
	}
}

// runEntities evaluates only the head of each live entity's queue.
func (s *Scheduler) runEntities(c *Context, rep *TickReport) {
	for _, id := range s.entities.known() {
		rec := s.entities.get(id)
		if rec == nil || !rec.live || len(rec.queue) == 0 {
			continue
		}
		sortByPriority(rec.queue)
		head := rec.queue[0]
		fired, finished, st := s.step(c, head)
		if fired {
			rep.EntityRan++
		}
		if finished {
			s.detach(head)
			s.finish(c, head, st)
			rep.Ended++
		}
	}
}

// detach takes e out of its queue and the index.
func (s *Scheduler) detach(e *entry) {
	if e.removed {
		return
	}
	e.removed = true
	delete(s.index, e.id)
	switch e.scope {
	case ScopeGlobal:
		s.global = compact(s.global)
	case ScopeEntity:
		if rec := s.entities.get(e.entity); rec != nil {
			rec.queue = compact(rec.queue)
		}
	}
}
