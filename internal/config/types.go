package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Runner    RunnerConfig    `json:"runner"`
	Scenario  ScenarioConfig  `json:"scenario"`

	// Storage is optional; nil (or driver "none") disables the outcome journal.
	Storage *StorageConfig `json:"storage,omitempty"`

	Rules []RuleConfig `json:"rules,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls scheduler policy. Safe to change at runtime.
type SchedulerConfig struct {
	// RemoveOnDisappear drops the record and queue of an entity that leaves
	// the snapshot. Default false keeps the record until it comes back.
	RemoveOnDisappear bool `json:"remove_on_disappear"`
}

// RunnerConfig controls the tick loop.
//
// Defaults (when fields are omitted/zero):
//   - tick_rate: "45ms" (one game step at "faster" speed)
//   - max_ticks: 0 (run until the scenario ends)
//   - realtime: false (tick as fast as possible)
type RunnerConfig struct {
	// TickRate is the wall-clock pause between ticks when realtime is set.
	TickRate string `json:"tick_rate,omitempty"`
	MaxTicks uint64 `json:"max_ticks,omitempty"`
	Realtime bool   `json:"realtime,omitempty"`
	// Burst lets a realtime runner catch up this many ticks after a stall.
	Burst int `json:"burst,omitempty"`
}

// ScenarioConfig points at the scripted world the runner plays.
type ScenarioConfig struct {
	Path string `json:"path"`
}

// StorageConfig controls the outcome journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tickbot.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// Recent is how many outcomes the shutdown summary reads back. Default 10.
	Recent int `json:"recent,omitempty"`
}

// RuleConfig declares one reaction. Expressions use the trigger package
// environment (tick, time, res, count, entity, alive).
type RuleConfig struct {
	Name string `json:"name"`
	// On is "entity.new" (one task per matching newcomer) or "start" (one
	// global task when the runner starts).
	On   string `json:"on"`
	Kind string `json:"kind,omitempty"`

	Trigger  string `json:"trigger,omitempty"`
	Every    string `json:"every,omitempty"`
	Constant bool   `json:"constant,omitempty"`
	Toggle   bool   `json:"toggle,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Tag      string `json:"tag,omitempty"`

	// Cost is spent from the world's stockpiles when the task starts. The
	// trigger waits until the world can afford it; once paid, later steps
	// are not gated on cost.
	Cost map[string]float64 `json:"cost,omitempty"`

	// State is the display state written on every step. DoneWhen and Steps
	// imply Constant.
	State    string `json:"state,omitempty"`
	DoneWhen string `json:"done_when,omitempty"`
	FailWhen string `json:"fail_when,omitempty"`

	// Steps run as a behaviour-tree sequence instead of State/DoneWhen.
	Steps []StepConfig `json:"steps,omitempty"`
}

type StepConfig struct {
	State string `json:"state"`
	Until string `json:"until"`
}

const (
	RuleOnEntityNew = "entity.new"
	RuleOnStart     = "start"
)
