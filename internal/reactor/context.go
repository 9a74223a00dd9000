package reactor

import (
	"context"

	"tickbot/internal/world"
	logx "tickbot/pkg/logx"
)

// Context is handed to every task, trigger and passive event callback.
//
// It embeds the context.Context passed to Tick so callbacks can hand it to
// anything that takes a ctx.
type Context struct {
	context.Context

	Tick      uint64
	World     world.Snapshot
	Scheduler *Scheduler
	Log       logx.Logger
}

func (s *Scheduler) newContext(ctx context.Context, snap world.Snapshot) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Context:   ctx,
		Tick:      s.ticks,
		World:     snap,
		Scheduler: s,
		Log:       s.log,
	}
}

// contextFor reuses ctx when it already is a *Context (callbacks calling back
// into the scheduler) and otherwise builds one around the last snapshot.
func (s *Scheduler) contextFor(ctx context.Context) *Context {
	if c, ok := ctx.(*Context); ok && c != nil {
		return c
	}
	return s.newContext(ctx, s.last)
}
