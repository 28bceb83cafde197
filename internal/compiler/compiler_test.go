package compiler

import (
	"testing"

	"ctrlscript/internal/errors"
	"ctrlscript/internal/module"
	"ctrlscript/internal/parser"
	"ctrlscript/internal/registry"
	"ctrlscript/internal/value"
)

func newTestCompiler(t *testing.T) (*Compiler, *registry.Registry) {
	t.Helper()
	reg := registry.New(module.NopDrivers{})
	return New(reg), reg
}

func compileLine(t *testing.T, c *Compiler, line string) (string, error) {
	t.Helper()
	stmt, err := parser.Parse(line)
	if err != nil {
		t.Fatalf("parse %q: %s", line, err)
	}
	return c.Compile(stmt)
}

// item 1: expression statement formats its result.
func TestCompileExprStmt(t *testing.T) {
	c, _ := newTestCompiler(t)
	if _, err := compileLine(t, c, "number x = 1.5"); err != nil {
		t.Fatalf("decl: %s", err)
	}
	if _, err := compileLine(t, c, "x = x + 2"); err != nil {
		t.Fatalf("assign: %s", err)
	}
	out, err := compileLine(t, c, "x")
	if err != nil {
		t.Fatalf("expr stmt: %s", err)
	}
	if out != "3.500000" {
		t.Fatalf("got %q", out)
	}
}

// item 2: constructor registers a module under its name.
func TestCompileConstructorRegistersModule(t *testing.T) {
	c, reg := newTestCompiler(t)
	if _, err := compileLine(t, c, "m = Output(2)"); err != nil {
		t.Fatalf("constructor: %s", err)
	}
	m, ok := reg.Module("m")
	if !ok {
		t.Fatalf("expected module %q to be registered", "m")
	}
	if m.Kind() != module.KindOutput {
		t.Fatalf("got kind %s", m.Kind())
	}
	if _, err := compileLine(t, c, "m = Output(3)"); errors.KindOf(err) != errors.Duplicate {
		t.Fatalf("expected Duplicate re-registering a module name, got %v", err)
	}
}

// recordingChannel collects the lines a proxy forwards; NopDrivers'
// stub channel fails every write, which would abort NewProxy's eager
// constructor-line emit.
type recordingChannel struct {
	lines []string
}

func (c *recordingChannel) WriteLine(line string) error {
	c.lines = append(c.lines, line)
	return nil
}

type channelDrivers struct {
	module.NopDrivers
	channel *recordingChannel
}

func (d channelDrivers) Channel(string) (module.LineChannel, error) { return d.channel, nil }

// item 2 (expander-prefixed): constructs a proxy module.
func TestCompileExpanderPrefixedConstructorBuildsProxy(t *testing.T) {
	ch := &recordingChannel{}
	reg := registry.New(channelDrivers{channel: ch})
	c := New(reg)
	if _, err := compileLine(t, c, `exp = Expander("stub")`); err != nil {
		t.Fatalf("expander: %s", err)
	}
	if _, err := compileLine(t, c, "m = exp.Output(2)"); err != nil {
		t.Fatalf("proxied constructor: %s", err)
	}
	m, ok := reg.Module("m")
	if !ok {
		t.Fatalf("expected proxy module %q registered", "m")
	}
	if m.Kind() != module.KindProxy {
		t.Fatalf("got kind %s, want proxy", m.Kind())
	}
	if len(ch.lines) != 1 || ch.lines[0] != "m = Output(2)" {
		t.Fatalf("expected the constructor line forwarded over the expander channel, got %v", ch.lines)
	}
}

// item 3: method call dispatches to the module.
func TestCompileMethodCall(t *testing.T) {
	c, reg := newTestCompiler(t)
	if _, err := compileLine(t, c, "m = Output(2)"); err != nil {
		t.Fatalf("constructor: %s", err)
	}
	if _, err := compileLine(t, c, "m.unmute()"); err != nil {
		t.Fatalf("method call: %s", err)
	}
	if _, err := compileLine(t, c, "m.mute()"); err != nil {
		t.Fatalf("method call: %s", err)
	}
	m, _ := reg.Module("m")
	base := m.(interface{ OutputOn() bool })
	if base.OutputOn() {
		t.Fatalf("expected mute() to clear output_on")
	}
}

// item 3 (shadow special case): routes through Module.Shadow, not
// CallWithShadows.
func TestCompileMethodCallShadowWiresDirectly(t *testing.T) {
	c, reg := newTestCompiler(t)
	for _, line := range []string{"a = Output(2)", "b = Output(3)", "a.shadow(b)"} {
		if _, err := compileLine(t, c, line); err != nil {
			t.Fatalf("%q: %s", line, err)
		}
	}
	a, _ := reg.Module("a")
	if err := a.CallWithShadows("unmute", nil); err != nil {
		t.Fatalf("call_with_shadows: %s", err)
	}
	b, _ := reg.Module("b")
	bBase := b.(interface{ OutputOn() bool })
	if !bBase.OutputOn() {
		t.Fatalf("expected shadowed module b to have received unmute() too")
	}
}

// item 4: routine call starts an idle routine, rejects a running one.
func TestCompileRoutineCall(t *testing.T) {
	c, reg := newTestCompiler(t)
	for _, line := range []string{
		"boolean flag = false",
		"r := (flag = true)",
	} {
		if _, err := compileLine(t, c, line); err != nil {
			t.Fatalf("%q: %s", line, err)
		}
	}
	if _, err := compileLine(t, c, "r()"); err != nil {
		t.Fatalf("routine call: %s", err)
	}
	rt, _ := reg.Routine("r")
	if !rt.IsRunning() {
		t.Fatalf("expected routine to be running after start")
	}
	if _, err := compileLine(t, c, "r()"); errors.KindOf(err) != errors.AlreadyRunning {
		t.Fatalf("expected AlreadyRunning on second call, got %v", err)
	}
}

// item 5: property assignment writes through the module.
func TestCompilePropertyAssign(t *testing.T) {
	c, reg := newTestCompiler(t)
	if _, err := compileLine(t, c, "m = PWMOutput(2)"); err != nil {
		t.Fatalf("constructor: %s", err)
	}
	if _, err := compileLine(t, c, "m.duty = 50"); err != nil {
		t.Fatalf("property assign: %s", err)
	}
	m, _ := reg.Module("m")
	v, err := m.GetProperty("duty")
	if err != nil {
		t.Fatalf("get property: %s", err)
	}
	got, err := v.ReadAs(value.Integer)
	if err != nil {
		t.Fatalf("read duty: %s", err)
	}
	if got.Int != 50 {
		t.Fatalf("expected duty=50, got %d", got.Int)
	}
}

// item 6: variable assignment obeys the assignment contract.
func TestCompileVarAssignRejectsFloatIntoInteger(t *testing.T) {
	c, reg := newTestCompiler(t)
	if _, err := compileLine(t, c, "integer i = 0"); err != nil {
		t.Fatalf("decl: %s", err)
	}
	if _, err := compileLine(t, c, "i = 1.5"); errors.KindOf(err) != errors.TypeMismatch {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
	v, _ := reg.LookupVariable("i")
	got, err := v.ReadAs(value.Integer)
	if err != nil {
		t.Fatalf("read i: %s", err)
	}
	if got.Int != 0 {
		t.Fatalf("expected i to remain 0 after rejected assignment, got %d", got.Int)
	}
}

// item 7: variable declaration allocates, registers, and optionally
// initializes.
func TestCompileDeclWithoutInitializerUsesZeroValue(t *testing.T) {
	c, reg := newTestCompiler(t)
	if _, err := compileLine(t, c, "string s"); err != nil {
		t.Fatalf("decl: %s", err)
	}
	v, ok := reg.LookupVariable("s")
	if !ok {
		t.Fatalf("expected variable %q registered", "s")
	}
	got, err := v.ReadAs(value.String)
	if err != nil {
		t.Fatalf("read s: %s", err)
	}
	if got.Str != "" {
		t.Fatalf("expected zero value, got %q", got.Str)
	}
}

// item 8: routine definition rejects duplicate names.
func TestCompileRoutineDefDuplicate(t *testing.T) {
	c, _ := newTestCompiler(t)
	if _, err := compileLine(t, c, "boolean flag = false"); err != nil {
		t.Fatalf("decl: %s", err)
	}
	if _, err := compileLine(t, c, "r := (flag = true)"); err != nil {
		t.Fatalf("first def: %s", err)
	}
	if _, err := compileLine(t, c, "r := (flag = false)"); errors.KindOf(err) != errors.Duplicate {
		t.Fatalf("expected Duplicate, got %v", err)
	}
}

// item 9: rule definition requires a boolean condition and compiles
// its routine.
func TestCompileRuleDefRejectsNonBooleanCondition(t *testing.T) {
	c, _ := newTestCompiler(t)
	if _, err := compileLine(t, c, "integer i = 1"); err != nil {
		t.Fatalf("decl: %s", err)
	}
	if _, err := compileLine(t, c, "when i (i = 0)"); errors.KindOf(err) != errors.TypeMismatch {
		t.Fatalf("expected TypeMismatch for non-boolean condition, got %v", err)
	}
}

func TestCompileRuleDefRegistersRule(t *testing.T) {
	c, reg := newTestCompiler(t)
	if _, err := compileLine(t, c, "boolean flag = true"); err != nil {
		t.Fatalf("decl: %s", err)
	}
	if _, err := compileLine(t, c, "when flag (flag = false)"); err != nil {
		t.Fatalf("rule def: %s", err)
	}
	if len(reg.Rules()) != 1 {
		t.Fatalf("expected one rule registered, got %d", len(reg.Rules()))
	}
}
