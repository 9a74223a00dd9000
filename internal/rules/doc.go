// Package rules turns the declarative rules of the config file into
// scheduler work: passive entity.new handlers that attach per-entity tasks,
// and global tasks queued at start. Triggers, completion checks and steps
// are expr-lang expressions over the trigger package environment; steps run
// as a go-behaviortree sequence.
package rules
