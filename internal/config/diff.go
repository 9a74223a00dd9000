package config

import (
	"reflect"
	"sort"
	"strings"

	logx "tickbot/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) the names of rules that were
// added, removed or changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.Bool("scheduler.remove_on_disappear", newCfg.Scheduler.RemoveOnDisappear))
	}

	if oldCfg.Runner != newCfg.Runner {
		changed = append(changed, "runner")
		attrs = append(attrs,
			logx.String("runner.tick_rate", strings.TrimSpace(newCfg.Runner.TickRate)),
			logx.Uint64("runner.max_ticks", newCfg.Runner.MaxTicks),
			logx.Bool("runner.realtime", newCfg.Runner.Realtime),
		)
	}

	if strings.TrimSpace(oldCfg.Scenario.Path) != strings.TrimSpace(newCfg.Scenario.Path) {
		changed = append(changed, "scenario")
		attrs = append(attrs, logx.String("scenario.path", strings.TrimSpace(newCfg.Scenario.Path)))
	}

	// Nil means disabled.
	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(nS.BusyTimeout)),
		)
	}

	ruleChanged := diffRules(oldCfg.Rules, newCfg.Rules)
	if len(ruleChanged) > 0 {
		changed = append(changed, "rules")
		attrs = append(attrs,
			logx.Int("rules.changed_count", len(ruleChanged)),
			logx.Int("rules.count", len(newCfg.Rules)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, ruleChanged
}

func diffRules(oldR, newR []RuleConfig) []string {
	index := func(rs []RuleConfig) map[string]RuleConfig {
		m := make(map[string]RuleConfig, len(rs))
		for _, r := range rs {
			m[r.Name] = r
		}
		return m
	}
	oldM, newM := index(oldR), index(newR)

	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, inOld := oldM[name]
		n, inNew := newM[name]
		if inOld != inNew || !reflect.DeepEqual(o, n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
