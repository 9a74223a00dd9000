package trigger

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"tickbot/internal/reactor"
	"tickbot/internal/world"
	logx "tickbot/pkg/logx"
)

// ErrEmptyExpr is returned when compiling a blank expression.
var ErrEmptyExpr = errors.New("trigger: empty expression")

// Env is what an expression sees.
type Env struct {
	Tick   uint64             `expr:"tick"`
	Time   float64            `expr:"time"`
	Res    map[string]float64 `expr:"res"`
	Count  map[string]int     `expr:"count"`
	Entity EntityEnv          `expr:"entity"`
	Alive  bool               `expr:"alive"`
}

// EntityEnv describes the entity an expression is bound to. It is zero for
// global rules.
type EntityEnv struct {
	ID   string  `expr:"id"`
	Kind string  `expr:"kind"`
	X    float64 `expr:"x"`
	Y    float64 `expr:"y"`
}

// EnvFor builds the environment for the current tick. id may be empty;
// otherwise entity and alive describe that entity in the snapshot.
func EnvFor(c *reactor.Context, id world.ID) Env {
	env := Env{
		Tick:  c.Tick,
		Res:   map[string]float64{},
		Count: map[string]int{},
	}
	if c.World == nil {
		return env
	}
	env.Time = c.World.GameTime().Seconds()
	if r, ok := c.World.(world.Resourced); ok {
		for k, v := range r.Resources() {
			env.Res[k] = v
		}
	}
	for _, e := range c.World.Entities() {
		if e == nil {
			continue
		}
		if k := world.KindOf(e); k != "" {
			env.Count[string(k)]++
		}
		if id == "" || e.EntityID() != id {
			continue
		}
		env.Alive = true
		env.Entity = EntityEnv{ID: string(id), Kind: string(world.KindOf(e))}
		if p, ok := e.(world.Positioned); ok {
			pos := p.Position()
			env.Entity.X, env.Entity.Y = pos.X, pos.Y
		}
	}
	if !env.Alive && id != "" {
		env.Entity.ID = string(id)
	}
	return env
}

// Program is a compiled boolean expression.
type Program struct {
	src  string
	prog *vm.Program
}

// Compile type-checks src against Env and requires a boolean result.
func Compile(src string) (*Program, error) {
	if src == "" {
		return nil, ErrEmptyExpr
	}
	prog, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Program{src: src, prog: prog}, nil
}

func (p *Program) String() string { return p.src }

// Eval runs the program against env.
func (p *Program) Eval(env Env) (bool, error) {
	out, err := expr.Run(p.prog, env)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.src, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: non-boolean result %T", p.src, out)
	}
	return b, nil
}

// Binder produces the environment for one evaluation.
type Binder func(c *reactor.Context) Env

// Predicate gates on p. Evaluation errors count as false and are logged.
func (p *Program) Predicate(bind Binder) reactor.Predicate {
	if bind == nil {
		bind = func(c *reactor.Context) Env { return EnvFor(c, "") }
	}
	return Func(func(c *reactor.Context) bool {
		ok, err := p.Eval(bind(c))
		if err != nil {
			c.Log.Debug("expression failed", logx.String("expr", p.src), logx.Uint64("tick", c.Tick), logx.Err(err))
			return false
		}
		return ok
	})
}

// Expr compiles src and returns a predicate bound by bind. A nil bind
// evaluates against the global environment.
func Expr(src string, bind Binder) (reactor.Predicate, error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return p.Predicate(bind), nil
}
