package reactor

import "context"

type subscription struct {
	id uint64
	ev *PassiveEvent
}

// eventRegistry maps an event type to its subscribers in subscription order.
type eventRegistry struct {
	subs map[EventType][]subscription
	seq  uint64
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{subs: map[EventType][]subscription{}}
}

func (r *eventRegistry) subscribe(t EventType, ev *PassiveEvent) func() {
	r.seq++
	id := r.seq
	r.subs[t] = append(r.subs[t], subscription{id: id, ev: ev})

	done := false
	return func() {
		if done {
			return
		}
		done = true
		list := r.subs[t]
		kept := make([]subscription, 0, len(list))
		for _, s := range list {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(r.subs, t)
			return
		}
		r.subs[t] = kept
	}
}

// publish fires every subscriber of t over a copy of the list, so handlers
// may subscribe, unsubscribe or publish again without disturbing this round.
func (r *eventRegistry) publish(c *Context, t EventType, args ...any) int {
	list := append([]subscription(nil), r.subs[t]...)
	for _, s := range list {
		s.ev.Fire(c, args...)
	}
	return len(list)
}

func (r *eventRegistry) counts() map[EventType]int {
	out := make(map[EventType]int, len(r.subs))
	for t, list := range r.subs {
		out[t] = len(list)
	}
	return out
}

// SubscribeGlobalEvent registers ev under t. Several events may share a type;
// they fire in subscription order. The returned func unsubscribes.
func (s *Scheduler) SubscribeGlobalEvent(t EventType, ev *PassiveEvent) (unsubscribe func()) {
	if ev == nil {
		return func() {}
	}
	return s.events.subscribe(t, ev)
}

// PublishGlobalEvent fires every subscriber of t with args and returns how
// many were invoked. Subscribers are never filtered; a handler that only
// cares about some occurrences has to check its arguments itself.
//
// ctx may be the *Context of the callback in progress or any other context;
// outside a tick the handlers see the last snapshot.
func (s *Scheduler) PublishGlobalEvent(ctx context.Context, t EventType, args ...any) int {
	return s.events.publish(s.contextFor(ctx), t, args...)
}
