package world

import "time"

// ID is the stable identity of an entity (unit tag, object id, ...).
type ID string

// Kind is an opaque entity type label supplied by the world.
type Kind string

// Point is a position on the map.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// State is the scheduler-side lifecycle state of an entity.
type State int

const (
	StateIdle State = iota + 1
	StateWorkerBuilding
	StateWorkerMinerals
	StateWorkerGas
	StateArmyDefending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWorkerBuilding:
		return "worker_building"
	case StateWorkerMinerals:
		return "worker_minerals"
	case StateWorkerGas:
		return "worker_gas"
	case StateArmyDefending:
		return "army_defending"
	default:
		return "unknown"
	}
}

// ParseState maps a State name back to its value.
func ParseState(name string) (State, bool) {
	for st := StateIdle; st <= StateArmyDefending; st++ {
		if st.String() == name {
			return st, true
		}
	}
	return 0, false
}

// Entity is anything the world reports as live. Only its identity matters
// to the scheduler.
type Entity interface {
	EntityID() ID
}

// Kinded is implemented by entities that expose a type label.
type Kinded interface {
	Kind() Kind
}

// Positioned is implemented by entities that expose a position.
type Positioned interface {
	Position() Point
}

// Snapshot is the world as observed at the start of one tick.
type Snapshot interface {
	Entities() []Entity
	GameTime() time.Duration
}

// Resourced is implemented by snapshots that also report stockpiles
// (minerals, vespene, supply, ...).
type Resourced interface {
	Resources() map[string]float64
}

// KindOf returns the entity's kind, or "" when it has none.
func KindOf(e Entity) Kind {
	if k, ok := e.(Kinded); ok {
		return k.Kind()
	}
	return ""
}

// Diff compares the live entities against the known identities.
//
// added follows the order of current; removed follows the order of known.
func Diff(current []Entity, known []ID) (added []Entity, removed []ID) {
	live := make(map[ID]struct{}, len(current))
	for _, e := range current {
		if e == nil {
			continue
		}
		live[e.EntityID()] = struct{}{}
	}
	seen := make(map[ID]struct{}, len(known))
	for _, id := range known {
		seen[id] = struct{}{}
		if _, ok := live[id]; !ok {
			removed = append(removed, id)
		}
	}
	for _, e := range current {
		if e == nil {
			continue
		}
		id := e.EntityID()
		if _, ok := seen[id]; ok {
			continue
		}
		// Guard against the same id reported twice in one snapshot.
		seen[id] = struct{}{}
		added = append(added, e)
	}
	return added, removed
}

// Static is a fixed snapshot, handy for tests and one-off drivers.
type Static struct {
	List []Entity
	Time time.Duration
}

func (s Static) Entities() []Entity      { return s.List }
func (s Static) GameTime() time.Duration { return s.Time }

// Unit is a minimal concrete Entity.
type Unit struct {
	ID   ID    `json:"id" yaml:"id"`
	Type Kind  `json:"kind" yaml:"kind"`
	Pos  Point `json:"pos" yaml:"pos"`
}

func (u *Unit) EntityID() ID    { return u.ID }
func (u *Unit) Kind() Kind      { return u.Type }
func (u *Unit) Position() Point { return u.Pos }
