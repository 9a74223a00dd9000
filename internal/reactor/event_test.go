package reactor

import (
	"context"
	"errors"
	"testing"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "tickbot/pkg/logx"
)

func TestPublishFansOutInSubscriptionOrder(t *testing.T) {
	s := New(Config{}, logx.Nop(), nil)
	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.SubscribeGlobalEvent(EventUpgrade, OnEvent(EventUpgrade, func(_ *Context, args ...any) {
			got = append(got, name+":"+args[0].(string))
		}))
	}
	s.SubscribeGlobalEvent(EventEmpty, OnEvent(EventEmpty, func(*Context, ...any) { got = append(got, "other") }))

	n := s.PublishGlobalEvent(context.Background(), EventUpgrade, "stim")
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a:stim", "b:stim", "c:stim"}, got)
	assert.Zero(t, s.PublishGlobalEvent(context.Background(), "nobody"))
}

func TestUnsubscribeDuringPublishKeepsRound(t *testing.T) {
	s := New(Config{}, logx.Nop(), nil)
	var calls []string
	var unsubB func()
	s.SubscribeGlobalEvent(EventTrigger, OnEvent(EventTrigger, func(*Context, ...any) {
		calls = append(calls, "a")
		unsubB()
	}))
	unsubB = s.SubscribeGlobalEvent(EventTrigger, OnEvent(EventTrigger, func(*Context, ...any) {
		calls = append(calls, "b")
	}))

	s.PublishGlobalEvent(context.Background(), EventTrigger)
	s.PublishGlobalEvent(context.Background(), EventTrigger)
	assert.Equal(t, []string{"a", "b", "a"}, calls)

	unsubB()
	assert.Equal(t, 1, s.Snapshot().Subscribers[EventTrigger])
}

func TestHandlerMayPublishAndSubscribe(t *testing.T) {
	s := New(Config{}, logx.Nop(), nil)
	var calls []string
	s.SubscribeGlobalEvent(EventConstant, OnEvent(EventConstant, func(c *Context, _ ...any) {
		calls = append(calls, "outer")
		c.Scheduler.SubscribeGlobalEvent(EventConstant, OnEvent(EventConstant, func(*Context, ...any) {
			calls = append(calls, "late")
		}))
		c.Scheduler.PublishGlobalEvent(c, EventUpgrade)
	}))
	s.SubscribeGlobalEvent(EventUpgrade, OnEvent(EventUpgrade, func(c *Context, _ ...any) {
		calls = append(calls, "inner")
	}))

	s.PublishGlobalEvent(context.Background(), EventConstant)
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestPublishOutsideTickSeesLastSnapshot(t *testing.T) {
	s := New(Config{}, logx.Nop(), nil)
	var seen int
	var tick uint64
	s.SubscribeGlobalEvent(EventEmpty, OnEvent(EventEmpty, func(c *Context, _ ...any) {
		seen = len(c.World.Entities())
		tick = c.Tick
	}))
	s.Tick(context.Background(), snap("u1", "u2"))
	s.PublishGlobalEvent(context.Background(), EventEmpty)
	assert.Equal(t, 2, seen)
	assert.Equal(t, uint64(1), tick)
}

func TestNilSubscriptionIsIgnored(t *testing.T) {
	s := New(Config{}, logx.Nop(), nil)
	unsub := s.SubscribeGlobalEvent(EventEmpty, nil)
	unsub()
	assert.Zero(t, s.PublishGlobalEvent(context.Background(), EventEmpty))
}

func TestStatusStringAndUnknownStatus(t *testing.T) {
	assert.Equal(t, "done", StatusDone.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "status(9)", Status(9).String())

	task := Func("odd", TaskFuncs{GetStatus: func(*Context) Status { return Status(9) }})
	assert.Equal(t, StatusRunning, task.Status(&Context{}))
}

func TestBehaviorTreeTask(t *testing.T) {
	cases := []struct {
		name   string
		leaf   func(c *Context) (bt.Status, error)
		ticks  int
		ending Status
	}{
		{
			name: "success after two running ticks",
			leaf: func(c *Context) (bt.Status, error) {
				if c.Tick < 2 {
					return bt.Running, nil
				}
				return bt.Success, nil
			},
			ticks:  5,
			ending: StatusDone,
		},
		{
			name: "failure",
			leaf: func(*Context) (bt.Status, error) {
				return bt.Failure, nil
			},
			ticks:  3,
			ending: StatusFailed,
		},
		{
			name: "tick error",
			leaf: func(*Context) (bt.Status, error) {
				return bt.Running, errors.New("boom")
			},
			ticks:  3,
			ending: StatusFailed,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := New(Config{}, logx.Nop(), nil)
			var ends []Status
			body := BehaviorTree(func(current func() *Context) bt.Node {
				return bt.New(bt.Sequence,
					bt.New(func([]bt.Node) (bt.Status, error) { return bt.Success, nil }),
					bt.New(func([]bt.Node) (bt.Status, error) { return tc.leaf(current()) }),
				)
			})
			task := NewTask(tc.name, endRecorder{Behavior: body, ends: &ends})
			_, err := s.AddGlobalTask(task, When(always, Constant()))
			require.NoError(t, err)

			for i := 0; i < tc.ticks; i++ {
				s.Tick(context.Background(), snap())
			}
			assert.Equal(t, []Status{tc.ending}, ends)
			assert.Empty(t, s.GlobalTasks())
		})
	}
}

type endRecorder struct {
	Behavior
	ends *[]Status
}

func (r endRecorder) End(c *Context, st Status) {
	*r.ends = append(*r.ends, st)
	r.Behavior.End(c, st)
}
