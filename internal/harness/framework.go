// Package harness is a scripted-scenario test framework for scheduler
// integration tests, adapted from the teacher's internal/testing
// framework (suite/case/context/runner/reporter) to this repo's unit
// of work: a Scenario feeds a sequence of lines into a scheduler and
// asserts on the diagnostic output each tick produces, rather than
// running a script file end to end.
package harness

import (
	"fmt"
	"strings"
	"time"

	"ctrlscript/internal/module"
	"ctrlscript/internal/scheduler"
)

// Scenario is one named integration test: a sequence of lines fed to a
// fresh scheduler, one per tick, followed by a Check that inspects the
// accumulated output.
type Scenario struct {
	Name    string
	Drivers module.Drivers // nil uses module.NopDrivers{}
	Lines   []string       // fed one per tick, in order
	Ticks   int            // additional idle ticks to run after Lines are exhausted
	Check   func(ctx *Context)
}

// Result is one scenario's outcome.
type Result struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Failures []string
}

// Context is passed to a Scenario's Check function: the scheduler
// under test plus every diagnostic line emitted across all ticks, and
// assertion helpers that record failures instead of panicking.
type Context struct {
	Sched    *scheduler.Scheduler
	Output   []string
	failures []string
}

func (c *Context) Assert(condition bool, message string) {
	if !condition {
		c.failures = append(c.failures, message)
	}
}

func (c *Context) AssertEqual(expected, actual interface{}, message string) {
	if expected != actual {
		c.failures = append(c.failures, fmt.Sprintf("%s: expected %v, got %v", message, expected, actual))
	}
}

func (c *Context) AssertContains(needle, message string) {
	for _, line := range c.Output {
		if strings.Contains(line, needle) {
			return
		}
	}
	c.failures = append(c.failures, fmt.Sprintf("%s: no output line contained %q (got %v)", message, needle, c.Output))
}

func (c *Context) Fail(message string) { c.failures = append(c.failures, message) }

// Run executes one scenario against a fresh scheduler and backend-free
// registry, returning its Result.
func Run(s Scenario) Result {
	start := time.Now()
	sched, err := scheduler.New(s.Drivers, nil)
	if err != nil {
		return Result{Name: s.Name, Failures: []string{fmt.Sprintf("failed to construct scheduler: %s", err)}}
	}
	ctx := &Context{Sched: sched}
	drain := func() {
		for {
			select {
			case line := <-sched.Output:
				ctx.Output = append(ctx.Output, line)
			default:
				return
			}
		}
	}
	for _, line := range s.Lines {
		ctx.Output = append(ctx.Output, sched.ProcessLine(line)...)
		sched.Tick()
		drain()
	}
	for i := 0; i < s.Ticks; i++ {
		sched.Tick()
		drain()
	}
	if s.Check != nil {
		s.Check(ctx)
	}
	return Result{
		Name:     s.Name,
		Passed:   len(ctx.failures) == 0,
		Duration: time.Since(start),
		Failures: ctx.failures,
	}
}

// RunAll runs every scenario, reports each via a TextReporter, and
// returns the combined pass/fail outcome.
func RunAll(scenarios []Scenario) bool {
	reporter := NewTextReporter()
	allPassed := true
	for _, s := range scenarios {
		result := Run(s)
		if result.Passed {
			reporter.Passed(result)
		} else {
			reporter.Failed(result)
			allPassed = false
		}
	}
	reporter.Summary(len(scenarios), allPassed)
	return allPassed
}
