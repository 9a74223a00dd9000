package rules

import (
	"tickbot/internal/config"
	"tickbot/internal/reactor"
	"tickbot/internal/world"
	logx "tickbot/pkg/logx"
)

// Installation is a set of rules wired into a scheduler.
type Installation struct {
	s     *reactor.Scheduler
	log   logx.Logger
	rules []*Rule
	unsub func()
}

// Install wires rs into s: start rules queue one global task now, and
// entity.new rules attach a task to every matching newcomer. Entities the
// scheduler already tracks and that are live get their tasks immediately,
// so a reload covers units that appeared earlier.
func Install(s *reactor.Scheduler, log logx.Logger, rs []*Rule) *Installation {
	in := &Installation{s: s, log: log, rules: rs, unsub: func() {}}

	var onNew []*Rule
	for _, r := range rs {
		switch r.cfg.On {
		case config.RuleOnStart:
			in.addGlobal(r)
		case config.RuleOnEntityNew:
			onNew = append(onNew, r)
		}
	}
	if len(onNew) == 0 {
		return in
	}

	for _, v := range s.Entities() {
		if !v.Live {
			continue
		}
		for _, r := range onNew {
			if r.matches(v.Entity) {
				in.addEntity(r, v.ID)
			}
		}
	}

	in.unsub = s.SubscribeGlobalEvent(reactor.EventNewEntity, reactor.OnEvent(reactor.EventNewEntity, func(c *reactor.Context, args ...any) {
		if len(args) == 0 {
			return
		}
		e, ok := args[0].(world.Entity)
		if !ok {
			return
		}
		for _, r := range onNew {
			if r.matches(e) {
				in.addEntity(r, e.EntityID())
			}
		}
	}))
	return in
}

func (in *Installation) addGlobal(r *Rule) {
	t := r.newTask("")
	id, err := in.s.AddGlobalTask(t, r.newTrigger("", t), r.entryOptions()...)
	if err != nil {
		in.log.Warn("rule not queued", logx.String("rule", r.Name()), logx.Err(err))
		return
	}
	in.log.Debug("rule queued", logx.String("rule", r.Name()), logx.String("entry", string(id)))
}

func (in *Installation) addEntity(r *Rule, eid world.ID) {
	t := r.newTask(eid)
	id, err := in.s.AddEntityTask(eid, t, r.newTrigger(eid, t), r.entryOptions()...)
	if err != nil {
		in.log.Warn("rule not attached", logx.String("rule", r.Name()), logx.String("entity", string(eid)), logx.Err(err))
		return
	}
	in.log.Debug("rule attached", logx.String("rule", r.Name()), logx.String("entity", string(eid)), logx.String("entry", string(id)))
}

// Rules lists the installed rules.
func (in *Installation) Rules() []*Rule { return in.rules }

// Uninstall stops reacting to newcomers and drops every queued task the
// rules created. It returns how many tasks were dropped.
func (in *Installation) Uninstall() int {
	in.unsub()
	seen := map[string]struct{}{}
	n := 0
	for _, r := range in.rules {
		tag := r.Tag()
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		n += in.s.RemoveByTag(tag)
	}
	return n
}
