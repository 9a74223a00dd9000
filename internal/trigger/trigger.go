package trigger

import "tickbot/internal/reactor"

// Always is true on every evaluation.
func Always() reactor.Predicate { return Func(func(*reactor.Context) bool { return true }) }

// Never is false on every evaluation.
func Never() reactor.Predicate { return Func(func(*reactor.Context) bool { return false }) }

// Func adapts f. A nil f behaves like Never.
func Func(f func(c *reactor.Context) bool) reactor.Predicate {
	if f == nil {
		return Never()
	}
	return reactor.PredicateFunc(f)
}

// AfterTick is true from tick n onwards.
func AfterTick(n uint64) reactor.Predicate {
	return Func(func(c *reactor.Context) bool { return c.Tick >= n })
}

// Once wraps p so it reports true at most once.
func Once(p reactor.Predicate) reactor.Predicate {
	fired := false
	return Func(func(c *reactor.Context) bool {
		if fired || p == nil {
			return false
		}
		if p.Eval(c) {
			fired = true
			return true
		}
		return false
	})
}

// Not negates p. A nil p counts as false.
func Not(p reactor.Predicate) reactor.Predicate {
	return Func(func(c *reactor.Context) bool { return p == nil || !p.Eval(c) })
}

// All is true when every predicate is. It short-circuits left to right.
func All(ps ...reactor.Predicate) reactor.Predicate {
	return Func(func(c *reactor.Context) bool {
		for _, p := range ps {
			if p != nil && !p.Eval(c) {
				return false
			}
		}
		return true
	})
}

// Any is true when at least one predicate is. It short-circuits left to right.
func Any(ps ...reactor.Predicate) reactor.Predicate {
	return Func(func(c *reactor.Context) bool {
		for _, p := range ps {
			if p != nil && p.Eval(c) {
				return true
			}
		}
		return false
	})
}
