package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"tickbot/internal/config"
	"tickbot/internal/reactor"
	"tickbot/internal/trigger"
	"tickbot/internal/world"
)

var ErrBadRule = errors.New("rules: bad rule")

// Rule is a compiled config.RuleConfig. Compiled rules are immutable; every
// task built from one gets its own trigger state.
type Rule struct {
	cfg config.RuleConfig

	trigger *trigger.Program
	every   cron.Schedule
	done    *trigger.Program
	fail    *trigger.Program
	steps   []step
}

type step struct {
	state string
	until *trigger.Program
}

func (r *Rule) Name() string { return r.cfg.Name }

// Tag is what the rule's tasks are queued under.
func (r *Rule) Tag() string {
	if r.cfg.Tag != "" {
		return r.cfg.Tag
	}
	return "rule:" + r.cfg.Name
}

// Compile type-checks every expression and schedule of cfgs.
func Compile(cfgs []config.RuleConfig) ([]*Rule, error) {
	out := make([]*Rule, 0, len(cfgs))
	var errs []error
	for i, c := range cfgs {
		r, err := compileOne(c)
		if err != nil {
			errs = append(errs, fmt.Errorf("rules[%d] %q: %w", i, c.Name, err))
			continue
		}
		out = append(out, r)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrBadRule, errors.Join(errs...))
	}
	return out, nil
}

func compileOne(c config.RuleConfig) (*Rule, error) {
	if c.On != config.RuleOnEntityNew && c.On != config.RuleOnStart {
		return nil, fmt.Errorf("on: unsupported %q", c.On)
	}
	r := &Rule{cfg: c}
	var err error
	if r.trigger, err = compileOptional("trigger", c.Trigger); err != nil {
		return nil, err
	}
	if r.done, err = compileOptional("done_when", c.DoneWhen); err != nil {
		return nil, err
	}
	if r.fail, err = compileOptional("fail_when", c.FailWhen); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Every) != "" {
		if r.every, err = trigger.Schedule(c.Every); err != nil {
			return nil, fmt.Errorf("every: %w", err)
		}
	}
	for i, s := range c.Steps {
		p, err := trigger.Compile(strings.TrimSpace(s.Until))
		if err != nil {
			return nil, fmt.Errorf("steps[%d].until: %w", i, err)
		}
		r.steps = append(r.steps, step{state: s.State, until: p})
	}
	return r, nil
}

func compileOptional(field, src string) (*trigger.Program, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	p, err := trigger.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return p, nil
}

// matches reports whether an entity.new rule applies to e.
func (r *Rule) matches(e world.Entity) bool {
	if r.cfg.On != config.RuleOnEntityNew || e == nil {
		return false
	}
	return r.cfg.Kind == "" || string(world.KindOf(e)) == r.cfg.Kind
}

// newTrigger builds a fresh trigger for t. id is empty for global tasks.
// The cost gate only holds t back until it has started and paid.
func (r *Rule) newTrigger(id world.ID, t *reactor.Task) *reactor.TriggerEvent {
	bind := binder(id)
	var preds []reactor.Predicate
	if r.trigger != nil {
		preds = append(preds, r.trigger.Predicate(bind))
	}
	if r.every != nil {
		preds = append(preds, trigger.OnSchedule(r.every))
	}
	if len(r.cfg.Cost) > 0 {
		cost := r.cfg.Cost
		preds = append(preds, trigger.Func(func(c *reactor.Context) bool {
			return t.Started() || affordable(c.World, cost)
		}))
	}

	var opts []reactor.EventOption
	if r.constant() {
		opts = append(opts, reactor.Constant())
	}
	if r.cfg.Toggle {
		opts = append(opts, reactor.Toggle())
	}
	if len(preds) == 0 {
		return reactor.NewTrigger(nil, opts...)
	}
	return reactor.NewTrigger(trigger.All(preds...), opts...)
}

// constant is implied by done_when and steps.
func (r *Rule) constant() bool {
	return r.cfg.Constant || r.done != nil || len(r.steps) > 0
}

func binder(id world.ID) trigger.Binder {
	return func(c *reactor.Context) trigger.Env { return trigger.EnvFor(c, id) }
}

func (r *Rule) entryOptions() []reactor.EntryOption {
	return []reactor.EntryOption{reactor.WithPriority(r.cfg.Priority), reactor.WithTag(r.Tag())}
}
