package reactor

import (
	bt "github.com/joeycumines/go-behaviortree"

	logx "tickbot/pkg/logx"
)

type treeBehavior struct {
	node bt.Node
	cur  *Context
	last Status
}

// BehaviorTree returns a task body that ticks a go-behaviortree node once per
// step. Success maps to Done, Failure or a tick error to Failed, Running to
// Running.
//
// build receives an accessor for the Context of the step in progress so
// leaves can reach the world and the scheduler.
func BehaviorTree(build func(current func() *Context) bt.Node) Behavior {
	b := &treeBehavior{last: StatusRunning}
	b.node = build(func() *Context { return b.cur })
	return b
}

func (b *treeBehavior) Start(*Context) {}

func (b *treeBehavior) Step(c *Context) {
	if b.node == nil {
		b.last = StatusFailed
		return
	}
	b.cur = c
	defer func() { b.cur = nil }()

	st, err := b.node.Tick()
	if err != nil {
		c.Log.Debug("behavior tree tick failed", logx.Uint64("tick", c.Tick), logx.Err(err))
		b.last = StatusFailed
		return
	}
	switch st {
	case bt.Success:
		b.last = StatusDone
	case bt.Failure:
		b.last = StatusFailed
	default:
		b.last = StatusRunning
	}
}

func (b *treeBehavior) End(*Context, Status) {}

func (b *treeBehavior) Status(*Context) Status { return b.last }
