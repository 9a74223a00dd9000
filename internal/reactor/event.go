package reactor

// EventType tags a published occurrence. Any string is valid; the constants
// below are the ones the scheduler itself uses or reserves.
type EventType string

const (
	EventEmpty         EventType = "empty"
	EventTrigger       EventType = "trigger"
	EventConstant      EventType = "constant"
	EventNewEntity     EventType = "entity.new"
	EventRemovedEntity EventType = "entity.removed"
	EventUpgrade       EventType = "upgrade"
)

// Predicate gates a trigger. It is evaluated at most once per ShouldTrigger call.
type Predicate interface {
	Eval(c *Context) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(c *Context) bool

func (f PredicateFunc) Eval(c *Context) bool { return f(c) }

// Handler is invoked when a passive event fires.
type Handler interface {
	Handle(c *Context, args ...any)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(c *Context, args ...any)

func (f HandlerFunc) Handle(c *Context, args ...any) { f(c, args...) }

// Event carries the trigger semantics shared by TriggerEvent and
// PassiveEvent. Use those constructors rather than building one directly.
type Event struct {
	Type     EventType
	Constant bool
	Toggle   bool

	latched   bool
	predicate Predicate
	handler   Handler
}

// EventOption tweaks an event at construction.
type EventOption func(*Event)

// Constant keeps the owning queue entry alive while its task reports Running.
func Constant() EventOption { return func(e *Event) { e.Constant = true } }

// Toggle makes the trigger latch: after the first true it stays true.
func Toggle() EventOption { return func(e *Event) { e.Toggle = true } }

// Latched reports whether ShouldTrigger has returned true at least once.
func (e *Event) Latched() bool { return e.latched }

// ShouldTrigger reports whether the event fires this tick. Without a
// predicate it always fires.
func (e *Event) ShouldTrigger(c *Context) bool {
	if e.predicate == nil {
		return true
	}
	if e.predicate.Eval(c) || (e.Toggle && e.latched) {
		e.latched = true
		return true
	}
	return false
}

// Fire invokes the handler, if any.
func (e *Event) Fire(c *Context, args ...any) {
	if e.handler != nil {
		e.handler.Handle(c, args...)
	}
}

// TriggerEvent gates a task with a predicate.
type TriggerEvent struct {
	Event
}

// NewTrigger builds a trigger. A nil predicate fires every time.
func NewTrigger(p Predicate, opts ...EventOption) *TriggerEvent {
	t := &TriggerEvent{Event: Event{Type: EventTrigger, predicate: p}}
	for _, o := range opts {
		o(&t.Event)
	}
	return t
}

// When is shorthand for NewTrigger(PredicateFunc(f), opts...).
func When(f func(c *Context) bool, opts ...EventOption) *TriggerEvent {
	if f == nil {
		return NewTrigger(nil, opts...)
	}
	return NewTrigger(PredicateFunc(f), opts...)
}

// PassiveEvent is a callback registered under an event type.
type PassiveEvent struct {
	Event
}

// NewPassive builds a passive event for the given type.
func NewPassive(t EventType, h Handler, opts ...EventOption) *PassiveEvent {
	p := &PassiveEvent{Event: Event{Type: t, handler: h}}
	for _, o := range opts {
		o(&p.Event)
	}
	return p
}

// OnEvent is shorthand for NewPassive(t, HandlerFunc(f), opts...).
func OnEvent(t EventType, f func(c *Context, args ...any), opts ...EventOption) *PassiveEvent {
	if f == nil {
		return NewPassive(t, nil, opts...)
	}
	return NewPassive(t, HandlerFunc(f), opts...)
}
