// Package reactor is the per-tick task/event scheduler that drives scripted
// game agents.
//
// Each call to Scheduler.Tick runs, in order:
//   - change detection against the world snapshot (publishing entity.new)
//   - the global queue pass: every ready entry runs, highest priority first
//   - one pass per live entity: only the head of that entity's
//     priority-sorted queue runs
//
// Entries are gated by a TriggerEvent. A non-constant trigger removes its
// entry after the first step; a constant trigger keeps the entry until the
// task reports a status other than Running. Toggle triggers latch: once the
// predicate has been true, the trigger stays true for good.
//
// The scheduler is single-threaded. Tick, the Add* methods and the event
// registry must be used from one goroutine (normally the runner loop and the
// callbacks it invokes synchronously).
package reactor
