// Package routine implements the ordered, immutable action sequence
// with a single mutable instruction cursor (§3, §4.4).
package routine

import "ctrlscript/internal/action"

// cursor states: idle (index < 0) or running(i) with 0 <= i < len.
const idleCursor = -1

// Routine is an ordered sequence of actions plus a mutable cursor.
// Routines are referenced by stable identity (their pointer) from
// top-level calls, RoutineCall actions and AwaitRoutine actions, so
// that only one cursor ever exists per routine (§9).
type Routine struct {
	Name    string
	Actions []action.Action
	cursor  int
}

// New creates an idle routine from a compiled action list.
func New(name string, actions []action.Action) *Routine {
	return &Routine{Name: name, Actions: actions, cursor: idleCursor}
}

// IsIdle reports whether the routine's cursor is parked (not running).
func (r *Routine) IsIdle() bool {
	return r.cursor == idleCursor
}

// IsRunning is the complement of IsIdle, kept for readability at call
// sites that check the running state rather than the idle state.
func (r *Routine) IsRunning() bool {
	return !r.IsIdle()
}

// Start resets the cursor to the first action. Per §9, callers that
// only want "ensure this routine is going" must check IsIdle first —
// Start unconditionally rewinds, matching a fresh top-level invocation.
func (r *Routine) Start() {
	r.cursor = 0
}

// Step implements §4.4's cooperative execution loop: every Stay parks
// the cursor on the same action for the next call; Advance proceeds
// immediately to the next action within the same tick, so a run of
// non-blocking actions completes atomically.
func (r *Routine) Step() error {
	if r.IsIdle() {
		return nil
	}
	for r.cursor < len(r.Actions) {
		progress, err := r.Actions[r.cursor].Run()
		if err != nil {
			return err
		}
		if progress == action.Stay {
			return nil
		}
		r.cursor++
	}
	r.cursor = idleCursor
	return nil
}
