package trigger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tickbot/internal/reactor"
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// gameEpoch anchors the game clock so cron fields read as elapsed game time:
// "*/30 * * * * *" fires every 30 game seconds, "@every 2m" every two minutes.
var gameEpoch = time.Unix(0, 0).UTC()

// Schedule compiles spec into a cron schedule. Intervals are truncated to
// whole seconds (minimum one second).
func Schedule(spec string) (cron.Schedule, error) {
	ps, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	switch ps.Kind {
	case SpecInterval:
		return cron.Every(ps.Every), nil
	default:
		sched, err := cronParser.Parse(ps.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse cron %q: %w", ps.Cron, err)
		}
		return sched, nil
	}
}

// Every is true on the first tick whose game time reaches the next
// activation of spec. Activations missed between two ticks collapse into one.
func Every(spec string) (reactor.Predicate, error) {
	sched, err := Schedule(spec)
	if err != nil {
		return nil, err
	}
	return OnSchedule(sched), nil
}

// OnSchedule gates on an arbitrary cron.Schedule evaluated on the game clock.
func OnSchedule(sched cron.Schedule) reactor.Predicate {
	var next time.Time
	return Func(func(c *reactor.Context) bool {
		if sched == nil || c.World == nil {
			return false
		}
		now := gameEpoch.Add(c.World.GameTime())
		if next.IsZero() {
			next = sched.Next(gameEpoch)
		}
		if now.Before(next) {
			return false
		}
		next = sched.Next(now)
		return true
	})
}
