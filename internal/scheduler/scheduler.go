// Package scheduler implements the cooperative single-threaded main
// loop (§4.7): drain input, step modules (core last), step rules, step
// routines, sleep 10ms. Everything here runs on one goroutine; the
// only concurrency in this repo lives in internal/iolink, which feeds
// this loop's input channel from the outside.
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ctrlscript/internal/compiler"
	"ctrlscript/internal/errors"
	"ctrlscript/internal/lineproto"
	"ctrlscript/internal/module"
	"ctrlscript/internal/parser"
	"ctrlscript/internal/proxy"
	"ctrlscript/internal/registry"
	"ctrlscript/internal/store"
)

// TickPeriod is the fixed 10ms scheduler period (§4.7).
const TickPeriod = 10 * time.Millisecond

// Scheduler owns the registry, the compiler, an optional startup
// store, and the single tick counter the core module exposes.
type Scheduler struct {
	Reg      *registry.Registry
	compiler *compiler.Compiler
	backend  *store.Backend
	core     module.Module
	tick     uint64
	started  time.Time

	// Input is drained, one complete line at a time, at the start of
	// every tick (§4.7).
	Input chan string

	// Output receives every diagnostic/step/broadcast line this tick
	// produced, in emission order.
	Output chan string
}

// New creates a scheduler with a fresh registry, constructs and
// registers the implicit core module, and wires backend (may be nil)
// for startup-script persistence.
func New(drv module.Drivers, backend *store.Backend) (*Scheduler, error) {
	reg := registry.New(drv)
	core, err := module.Create(module.KindCore, "core", nil, reg.PeerLookup(), drv)
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterModule("core", core); err != nil {
		return nil, err
	}
	s := &Scheduler{
		Reg:      reg,
		compiler: compiler.New(reg),
		backend:  backend,
		core:     core,
		Input:    make(chan string, 256),
		Output:   make(chan string, 256),
	}
	return s, nil
}

// LoadStartup feeds every line from the startup store through
// ProcessLine, matching §4.7's "load startup script ... feed each line
// to process_line". A nil backend means no persistent startup script.
func (s *Scheduler) LoadStartup() {
	if s.backend == nil {
		return
	}
	for _, line := range s.backend.Startup() {
		s.emitAll(s.ProcessLine(line))
	}
}

// Run drives the scheduler loop until stop is closed.
func (s *Scheduler) Run(stop <-chan struct{}) {
	s.started = time.Now()
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs exactly one scheduler iteration (§4.7's loop body), for
// callers (tests, the harness package) that want to step deterministically rather
// than run the free-running ticker loop.
func (s *Scheduler) Tick() {
	s.drainInput()
	s.stepModules()
	s.stepRules()
	s.stepRoutines()
	s.tick++
}

func (s *Scheduler) drainInput() {
	for {
		select {
		case line := <-s.Input:
			s.emitAll(s.ProcessLine(line))
		default:
			return
		}
	}
}

func (s *Scheduler) stepModules() {
	for _, m := range s.Reg.Modules() {
		lines := func() (lines []string) {
			defer func() {
				if r := recover(); r != nil {
					lines = []string{fmt.Sprintf("error in module %q: %v", m.Name(), r)}
				}
			}()
			return m.Step(s.tick)
		}()
		s.emitAll(lines)
	}
}

func (s *Scheduler) stepRules() {
	for _, r := range s.Reg.Rules() {
		if err := r.Step(); err != nil {
			s.emit(fmt.Sprintf("error in rule: %s", err))
		}
	}
}

func (s *Scheduler) stepRoutines() {
	for _, r := range s.Reg.Routines() {
		if err := r.Step(); err != nil {
			s.emit(fmt.Sprintf("error in routine %q: %s", r.Name, err))
		}
	}
}

// Uptime renders a humanized elapsed-time string since Run started, for
// the REPL's end-of-session summary and the serve command's status log.
func (s *Scheduler) Uptime() string {
	if s.started.IsZero() {
		return "not started"
	}
	return humanize.Time(s.started)
}

// TickSummary renders the current tick count with thousands
// separators, for diagnostic output.
func (s *Scheduler) TickSummary() string {
	return humanize.Comma(int64(s.tick))
}

// emit frames line with its trailing "@XX" checksum (§6: "each
// diagnostic line is emitted with a trailing @XX checksum computed the
// same way" as inbound framing) before pushing it onto Output.
func (s *Scheduler) emit(line string) {
	select {
	case s.Output <- lineproto.Frame(line):
	default:
	}
}

func (s *Scheduler) emitAll(lines []string) {
	for _, l := range lines {
		s.emit(l)
	}
}

// ProcessLine implements §4.7's per-line dispatch: unframe an optional
// checksum, route "!"-prefixed control commands, otherwise parse and
// compile as a DSL statement. Errors are caught here and turned into a
// single diagnostic line rather than propagated, so one bad line never
// aborts a tick.
func (s *Scheduler) ProcessLine(raw string) []string {
	line, err := lineproto.Unframe(raw)
	if err != nil {
		return []string{fmt.Sprintf("error: %s", err)}
	}
	out, err := lineproto.Dispatch((*schedulerCommands)(s), line)
	if err != nil {
		return []string{fmt.Sprintf("error: %s", err)}
	}
	return out
}

// schedulerCommands adapts Scheduler to lineproto.Commands.
type schedulerCommands Scheduler

func (c *schedulerCommands) sched() *Scheduler { return (*Scheduler)(c) }

func (c *schedulerCommands) AppendStartup(line string) error {
	if c.backend == nil {
		return errors.NewDeviceError("no startup store configured")
	}
	return c.backend.AppendToStartup(line)
}

func (c *schedulerCommands) RemoveFromStartup(prefix string) error {
	if c.backend == nil {
		return errors.NewDeviceError("no startup store configured")
	}
	return c.backend.RemoveFromStartup(prefix)
}

func (c *schedulerCommands) PrintStartup(prefix string) ([]string, error) {
	if c.backend == nil {
		return nil, errors.NewDeviceError("no startup store configured")
	}
	return c.backend.PrintStartup(prefix)
}

func (c *schedulerCommands) SaveStartup() error {
	if c.backend == nil {
		return errors.NewDeviceError("no startup store configured")
	}
	return c.backend.SaveStartup()
}

// ApplyBroadcast routes an inbound "!!<module>.<prop>=<value>;..." line
// into the named proxies' property caches (§4.8). It claims the body
// only when every clause is such an assignment aimed at a registered
// proxy; anything else (a routine call, a declaration, an assignment to
// a local module) reports handled=false and Dispatch processes the body
// as a normal DSL line instead, matching the firmware's process_line.
// Targets are resolved before any clause is applied, so a body that is
// not claimed leaves no proxy half-updated.
func (c *schedulerCommands) ApplyBroadcast(body string) (bool, error) {
	s := c.sched()
	assigns := lineproto.ParseBroadcast(body)
	if len(assigns) == 0 {
		return false, nil
	}
	clauses := 0
	for _, cl := range strings.Split(body, ";") {
		if cl != "" {
			clauses++
		}
	}
	if clauses != len(assigns) {
		return false, nil
	}
	proxies := make([]*proxy.Proxy, len(assigns))
	for i, a := range assigns {
		m, ok := s.Reg.Module(a.Module)
		if !ok {
			return false, nil
		}
		p, ok := m.(*proxy.Proxy)
		if !ok {
			return false, nil
		}
		proxies[i] = p
	}
	for i, a := range assigns {
		if err := proxies[i].ApplyInboundValue(a.Property, a.RawValue); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (c *schedulerCommands) RunScript(line string) (string, error) {
	s := c.sched()
	if strings.TrimSpace(line) == "" {
		return "", nil
	}
	stmt, err := parser.Parse(line)
	if err != nil {
		return "", err
	}
	return s.compiler.Compile(stmt)
}
