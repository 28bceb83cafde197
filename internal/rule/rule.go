// Package rule implements the (condition, routine) pair the scheduler
// evaluates every tick (§3, §4.5).
package rule

import (
	"ctrlscript/internal/expr"
	"ctrlscript/internal/routine"
	"ctrlscript/internal/value"
)

// Rule is an immutable pair of a boolean condition expression and the
// routine it triggers. The routine is never restarted while already
// running (§4.5, §8 property 4).
type Rule struct {
	Condition expr.Node
	Routine   *routine.Routine
}

func New(condition expr.Node, r *routine.Routine) *Rule {
	return &Rule{Condition: condition, Routine: r}
}

// Step implements one tick of rule evaluation: evaluate the condition,
// start the routine if the condition is true and the routine is idle,
// then step it regardless. Condition evaluation errors are returned to
// the caller rather than swallowed here — the scheduler is the single
// place that converts them into a diagnostic and continues (§4.5, §5).
func (r *Rule) Step() error {
	cond, err := r.Condition.Evaluate()
	if err != nil {
		return err
	}
	if cond.Kind != value.Boolean {
		// Constructed rules always have a boolean condition (§4.2 item
		// 9); a non-boolean result here means a node misbehaved.
		return nil
	}
	if cond.Bool && r.Routine.IsIdle() {
		r.Routine.Start()
	}
	return r.Routine.Step()
}
