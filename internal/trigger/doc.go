// Package trigger builds reactor.Predicate values for common gating needs:
// constants, tick thresholds, one-shots, boolean combinators, game-clock
// schedules (cron expressions or intervals) and expr-lang expressions.
//
// Schedules run on the game clock reported by the snapshot, not the wall
// clock, so a replayed or accelerated game fires them at the same ticks.
package trigger
