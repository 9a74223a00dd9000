package reactor

import "fmt"

// Status is what a task reports after each step.
type Status int

const (
	StatusDone Status = iota + 1
	StatusRunning
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Behavior is the body of a task.
type Behavior interface {
	Start(c *Context)
	Step(c *Context)
	End(c *Context, st Status)
	Status(c *Context) Status
}

// TaskFuncs adapts plain functions to Behavior. Any field may be nil: nil
// callbacks are no-ops and a nil GetStatus reports Running.
type TaskFuncs struct {
	OnStart   func(c *Context)
	OnStep    func(c *Context)
	OnEnd     func(c *Context, st Status)
	GetStatus func(c *Context) Status
}

func (f TaskFuncs) Start(c *Context) {
	if f.OnStart != nil {
		f.OnStart(c)
	}
}

func (f TaskFuncs) Step(c *Context) {
	if f.OnStep != nil {
		f.OnStep(c)
	}
}

func (f TaskFuncs) End(c *Context, st Status) {
	if f.OnEnd != nil {
		f.OnEnd(c, st)
	}
}

func (f TaskFuncs) Status(c *Context) Status {
	if f.GetStatus != nil {
		return f.GetStatus(c)
	}
	return StatusRunning
}

// Task is a resumable unit of work. Start runs exactly once, right before
// the first step.
type Task struct {
	Name string

	body    Behavior
	started bool
}

// NewTask wraps a behavior. A nil behavior yields a task that does nothing
// and runs forever.
func NewTask(name string, b Behavior) *Task {
	if b == nil {
		b = TaskFuncs{}
	}
	return &Task{Name: name, body: b}
}

// Func is shorthand for NewTask with a TaskFuncs body.
func Func(name string, f TaskFuncs) *Task { return NewTask(name, f) }

// Started reports whether the first step has happened.
func (t *Task) Started() bool { return t.started }

// Step runs Start on the first call, then the step logic.
func (t *Task) Step(c *Context) {
	if !t.started {
		t.started = true
		t.body.Start(c)
	}
	t.body.Step(c)
}

func (t *Task) End(c *Context, st Status) { t.body.End(c, st) }

// Status probes the body. Values outside the known set count as Running.
func (t *Task) Status(c *Context) Status {
	switch st := t.body.Status(c); st {
	case StatusDone, StatusFailed:
		return st
	default:
		return StatusRunning
	}
}
