package reactor

import (
	"fmt"

	"tickbot/internal/world"
)

type entityRecord struct {
	id     world.ID
	entity world.Entity

	state          world.State
	displayState   string
	targetLocation *world.Point
	targetType     *world.Kind

	live      bool
	firstSeen uint64

	queue []*entry
}

// entityRegistry keeps one record per observed identity, in first-seen order.
type entityRegistry struct {
	records map[world.ID]*entityRecord
	order   []world.ID
}

func newEntityRegistry() *entityRegistry {
	return &entityRegistry{records: map[world.ID]*entityRecord{}}
}

func (r *entityRegistry) known() []world.ID {
	return append([]world.ID(nil), r.order...)
}

func (r *entityRegistry) get(id world.ID) *entityRecord { return r.records[id] }

func (r *entityRegistry) insert(e world.Entity, tick uint64) *entityRecord {
	rec := &entityRecord{
		id:        e.EntityID(),
		entity:    e,
		state:     world.StateIdle,
		live:      true,
		firstSeen: tick,
	}
	r.records[rec.id] = rec
	r.order = append(r.order, rec.id)
	return rec
}

func (r *entityRegistry) remove(id world.ID) *entityRecord {
	rec := r.records[id]
	if rec == nil {
		return nil
	}
	delete(r.records, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return rec
}

// EntityView is a copy of an entity record.
type EntityView struct {
	ID             world.ID
	Entity         world.Entity
	State          world.State
	DisplayState   string
	TargetLocation *world.Point
	TargetType     *world.Kind
	Live           bool
	FirstSeenTick  uint64
	QueueLen       int
}

func (rec *entityRecord) view() EntityView {
	v := EntityView{
		ID:            rec.id,
		Entity:        rec.entity,
		State:         rec.state,
		DisplayState:  rec.displayState,
		Live:          rec.live,
		FirstSeenTick: rec.firstSeen,
		QueueLen:      len(rec.queue),
	}
	if rec.targetLocation != nil {
		p := *rec.targetLocation
		v.TargetLocation = &p
	}
	if rec.targetType != nil {
		k := *rec.targetType
		v.TargetType = &k
	}
	return v
}

// Entity returns a copy of the record for id.
func (s *Scheduler) Entity(id world.ID) (EntityView, bool) {
	rec := s.entities.get(id)
	if rec == nil {
		return EntityView{}, false
	}
	return rec.view(), true
}

// Entities returns every known record in first-seen order.
func (s *Scheduler) Entities() []EntityView {
	out := make([]EntityView, 0, len(s.entities.order))
	for _, id := range s.entities.order {
		if rec := s.entities.get(id); rec != nil {
			out = append(out, rec.view())
		}
	}
	return out
}

func (s *Scheduler) record(id world.ID) (*entityRecord, error) {
	rec := s.entities.get(id)
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return rec, nil
}

// SetEntityState updates the lifecycle state of a known entity.
func (s *Scheduler) SetEntityState(id world.ID, st world.State) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	rec.state = st
	return nil
}

// SetDisplayState updates the free-form label shown for an entity.
func (s *Scheduler) SetDisplayState(id world.ID, label string) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	rec.displayState = label
	return nil
}

// SetTarget records where an entity is heading and what it is after.
// nil clears the field.
func (s *Scheduler) SetTarget(id world.ID, loc *world.Point, kind *world.Kind) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	rec.targetLocation = nil
	if loc != nil {
		p := *loc
		rec.targetLocation = &p
	}
	rec.targetType = nil
	if kind != nil {
		k := *kind
		rec.targetType = &k
	}
	return nil
}
