package rules

import (
	bt "github.com/joeycumines/go-behaviortree"

	"tickbot/internal/reactor"
	"tickbot/internal/trigger"
	"tickbot/internal/world"
	logx "tickbot/pkg/logx"
)

// Spender is implemented by worlds whose stockpiles tasks can draw on.
type Spender interface {
	Spend(cost map[string]float64) bool
}

func affordable(w world.Snapshot, cost map[string]float64) bool {
	r, ok := w.(world.Resourced)
	if !ok {
		return false
	}
	have := r.Resources()
	for k, v := range cost {
		if have[k] < v {
			return false
		}
	}
	return true
}

// newTask builds the task body for one activation of r. id is empty for
// global tasks.
func (r *Rule) newTask(id world.ID) *reactor.Task {
	if len(r.steps) > 0 {
		return reactor.NewTask(r.cfg.Name, &costed{Behavior: r.treeBody(id), rule: r})
	}
	return reactor.NewTask(r.cfg.Name, &costed{Behavior: r.flatBody(id), rule: r})
}

// flatBody writes the display state every step and finishes on
// fail_when/done_when. Without done_when it runs until removed.
func (r *Rule) flatBody(id world.ID) reactor.Behavior {
	fail, done := r.predicate(r.fail, id), r.predicate(r.done, id)
	return reactor.TaskFuncs{
		OnStep: func(c *reactor.Context) {
			if r.cfg.State != "" {
				label(c, id, r.cfg.State)
			}
		},
		GetStatus: func(c *reactor.Context) reactor.Status {
			if fail != nil && fail.Eval(c) {
				return reactor.StatusFailed
			}
			if done != nil && done.Eval(c) {
				return reactor.StatusDone
			}
			return reactor.StatusRunning
		},
	}
}

// treeBody runs the steps as a memorized sequence guarded by fail_when.
func (r *Rule) treeBody(id world.ID) reactor.Behavior {
	bind := binder(id)
	fail := r.predicate(r.fail, id)
	return reactor.BehaviorTree(func(current func() *reactor.Context) bt.Node {
		children := make([]bt.Node, 0, len(r.steps))
		for _, s := range r.steps {
			s := s
			until := s.until.Predicate(bind)
			children = append(children, bt.New(func([]bt.Node) (bt.Status, error) {
				c := current()
				if s.state != "" {
					label(c, id, s.state)
				}
				if until.Eval(c) {
					return bt.Success, nil
				}
				return bt.Running, nil
			}))
		}
		guard := bt.New(func([]bt.Node) (bt.Status, error) {
			if fail != nil && fail.Eval(current()) {
				return bt.Failure, nil
			}
			return bt.Success, nil
		})
		return bt.New(bt.Sequence, guard, bt.New(bt.Memorize(bt.Sequence), children...))
	})
}

func (r *Rule) predicate(p *trigger.Program, id world.ID) reactor.Predicate {
	if p == nil {
		return nil
	}
	return p.Predicate(binder(id))
}

// label records a display state. Entity tasks write it on the record (and
// the lifecycle state when the label names one); global tasks log it.
func label(c *reactor.Context, id world.ID, state string) {
	if id == "" {
		c.Log.Trace("rule state", logx.String("state", state), logx.Uint64("tick", c.Tick))
		return
	}
	if err := c.Scheduler.SetDisplayState(id, state); err != nil {
		c.Log.Debug("rule state not recorded", logx.String("entity", string(id)), logx.Err(err))
		return
	}
	if st, ok := world.ParseState(state); ok {
		_ = c.Scheduler.SetEntityState(id, st)
	}
}

// costed spends the rule's cost when the task starts.
type costed struct {
	reactor.Behavior
	rule *Rule
}

func (b *costed) Start(c *reactor.Context) {
	if cost := b.rule.cfg.Cost; len(cost) > 0 {
		sp, ok := c.World.(Spender)
		if !ok || !sp.Spend(cost) {
			c.Log.Warn("rule cost not paid", logx.String("rule", b.rule.cfg.Name), logx.Any("cost", cost), logx.Uint64("tick", c.Tick))
		}
	}
	b.Behavior.Start(c)
}
