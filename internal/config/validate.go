package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalid = errors.New("invalid config")

// Validate checks shape only. Rule expressions are compiled by the rules
// package, which the app installs as the watch validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error
	if _, err := cfg.Runner.TickInterval(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Runner.Burst < 0 {
		errs = append(errs, fmt.Errorf("runner.burst: must be >= 0"))
	}
	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	names := map[string]struct{}{}
	for i, r := range cfg.Rules {
		at := fmt.Sprintf("rules[%d]", i)
		name := strings.TrimSpace(r.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", at))
		} else if _, dup := names[name]; dup {
			errs = append(errs, fmt.Errorf("%s.name: duplicate %q", at, name))
		}
		names[name] = struct{}{}

		switch r.On {
		case RuleOnEntityNew:
		case RuleOnStart:
			if r.Kind != "" {
				errs = append(errs, fmt.Errorf("%s.kind: only valid with on=%s", at, RuleOnEntityNew))
			}
		default:
			errs = append(errs, fmt.Errorf("%s.on: want %q or %q, got %q", at, RuleOnEntityNew, RuleOnStart, r.On))
		}
		if len(r.Steps) > 0 && (r.State != "" || r.DoneWhen != "") {
			errs = append(errs, fmt.Errorf("%s: steps cannot be combined with state/done_when", at))
		}
		for j, st := range r.Steps {
			if strings.TrimSpace(st.Until) == "" {
				errs = append(errs, fmt.Errorf("%s.steps[%d].until: required", at, j))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
