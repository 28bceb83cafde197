// Package action implements the compiled unit of work inside a routine
// (§3, §4.4): method calls, property/variable assignment, and the two
// cooperative-suspension variants, await-condition and await-routine.
package action

import (
	"ctrlscript/internal/expr"
	"ctrlscript/internal/value"
)

// Progress is the outcome of running one action for one tick.
type Progress int

const (
	// Advance means the routine's cursor should move to the next action
	// within the same tick.
	Advance Progress = iota
	// Stay means the cursor parks on the same action; it is retried on
	// the routine's next step.
	Stay
)

// Action is one polymorphic unit of work in a routine.
type Action interface {
	Run() (Progress, error)
}

// CallTarget is the subset of Module a MethodCall action needs. Module
// implementations satisfy it structurally; action never imports the
// module package.
type CallTarget interface {
	CallWithShadows(method string, args []value.Value) error
}

// PropertyTarget is the subset of Module a PropertyAssignment action
// needs.
type PropertyTarget interface {
	WriteProperty(name string, e expr.Node) error
}

// MethodCall invokes a module method with already-compiled argument
// expressions; it always advances.
type MethodCall struct {
	Target CallTarget
	Method string
	Args   []expr.Node
}

func (a *MethodCall) Run() (Progress, error) {
	args := make([]value.Value, len(a.Args))
	for i, e := range a.Args {
		v, err := e.Evaluate()
		if err != nil {
			return Stay, err
		}
		args[i] = v
	}
	if err := a.Target.CallWithShadows(a.Method, args); err != nil {
		return Stay, err
	}
	return Advance, nil
}

// PropertyAssignment writes a module property; it always advances.
type PropertyAssignment struct {
	Target PropertyTarget
	Name   string
	Expr   expr.Node
}

func (a *PropertyAssignment) Run() (Progress, error) {
	if err := a.Target.WriteProperty(a.Name, a.Expr); err != nil {
		return Stay, err
	}
	return Advance, nil
}

// VariableAssignment writes a registry variable; it always advances.
type VariableAssignment struct {
	Var  *value.Variable
	Expr expr.Node
}

func (a *VariableAssignment) Run() (Progress, error) {
	if err := a.Var.Assign(a.Expr); err != nil {
		return Stay, err
	}
	return Advance, nil
}

// AwaitCondition evaluates a boolean expression every tick; it advances
// exactly when the condition is true, never blocking the scheduler.
type AwaitCondition struct {
	Cond expr.Node
}

func (a *AwaitCondition) Run() (Progress, error) {
	v, err := a.Cond.Evaluate()
	if err != nil {
		return Stay, err
	}
	if v.Bool {
		return Advance, nil
	}
	return Stay, nil
}

// RoutineHandle is the subset of *routine.Routine an AwaitRoutine action
// needs. Defined here (rather than imported from package routine) so
// routine can depend on action without a cycle.
type RoutineHandle interface {
	Start()
	Step() error
	IsIdle() bool
}

// AwaitRoutine starts an inner routine on first entry, steps it every
// tick, and advances exactly when the inner routine has finished.
type AwaitRoutine struct {
	Inner   RoutineHandle
	started bool
}

func (a *AwaitRoutine) Run() (Progress, error) {
	if !a.started {
		a.Inner.Start()
		a.started = true
	}
	if err := a.Inner.Step(); err != nil {
		return Stay, err
	}
	if a.Inner.IsIdle() {
		a.started = false
		return Advance, nil
	}
	return Stay, nil
}

// Func wraps an arbitrary zero-argument effect as an action that
// always advances. Used by the compiler for statement effects that
// have no dedicated Action variant of their own (currently just the
// shadow configuration call, which needs a live module.Module
// reference the action package does not otherwise depend on).
type Func struct {
	Fn func() error
}

func (a *Func) Run() (Progress, error) {
	if err := a.Fn(); err != nil {
		return Stay, err
	}
	return Advance, nil
}

// RoutineCall starts a routine from inside another routine's action
// list (the original firmware's nested routine_call action, not listed
// among §3's Action variants but present in original_source and kept
// here as a supplemented feature). Per §9, starting an already-running
// routine is a no-op: the routine advances on its own via the
// scheduler's per-tick routine pass, so RoutineCall never steps it
// directly and always advances itself.
type RoutineCall struct {
	Target RoutineHandle
}

func (a *RoutineCall) Run() (Progress, error) {
	if a.Target.IsIdle() {
		a.Target.Start()
	}
	return Advance, nil
}
