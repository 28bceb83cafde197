package module

import (
	"testing"

	"ctrlscript/internal/expr"
	"ctrlscript/internal/value"
)

type fakePin struct {
	level bool
}

func (p *fakePin) Read() (bool, error)       { return p.level, nil }
func (p *fakePin) Write(level bool) error    { p.level = level; return nil }

type fakeDrivers struct {
	pins map[string]*fakePin
}

func newFakeDrivers() *fakeDrivers { return &fakeDrivers{pins: map[string]*fakePin{}} }

func (d *fakeDrivers) DigitalPin(name string, pin int64) (DigitalPin, error) {
	p := &fakePin{}
	d.pins[name] = p
	return p, nil
}
func (d *fakeDrivers) PWMPin(string, int64) (PWMPin, error)         { return NoPin(), nil }
func (d *fakeDrivers) Bus(string, int64, int64, int64) (Bus, error) { return NoPin(), nil }
func (d *fakeDrivers) Channel(string) (LineChannel, error)          { return NoPin(), nil }

func TestInputReflectsPinLevel(t *testing.T) {
	drv := newFakeDrivers()
	m, err := Create(KindInput, "limit", []value.Value{value.Int(4)}, nil, drv)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	drv.pins["limit"].level = true

	m.Step(0)
	level, err := m.GetProperty("level")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if level.Value() != value.Int(1) {
		t.Fatalf("got %+v", level.Value())
	}
}

func TestInputInvertedFlipsActive(t *testing.T) {
	drv := newFakeDrivers()
	m, err := Create(KindInput, "limit", []value.Value{value.Int(4)}, nil, drv)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	inv, _ := m.GetProperty("inverted")
	_ = inv.Set(value.Bool(true))
	drv.pins["limit"].level = true

	m.Step(0)
	active, _ := m.GetProperty("active")
	if active.Value() != value.Bool(false) {
		t.Fatalf("expected inverted active to be false when pin is high, got %+v", active.Value())
	}
}

func TestOutputOnOff(t *testing.T) {
	drv := newFakeDrivers()
	m, err := Create(KindOutput, "led", []value.Value{value.Int(2)}, nil, drv)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := m.Call("on", nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	m.Step(0)
	if !drv.pins["led"].level {
		t.Fatal("expected pin to be driven high after on()")
	}
	if err := m.Call("off", nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	m.Step(1)
	if drv.pins["led"].level {
		t.Fatal("expected pin to be driven low after off()")
	}
}

func TestUnknownPropertyAndMethod(t *testing.T) {
	m, err := Create(KindCore, "core", nil, nil, NopDrivers{})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := m.GetProperty("nope"); err == nil {
		t.Fatal("expected UnknownProperty error")
	}
	if err := m.Call("nope", nil); err == nil {
		t.Fatal("expected UnknownMethod error")
	}
}

func TestMuteUnmuteGateOutput(t *testing.T) {
	m, err := Create(KindCore, "core", nil, nil, NopDrivers{})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if lines := m.Step(5); len(lines) != 0 {
		t.Fatalf("expected no output before unmute, got %v", lines)
	}
	if err := m.Call("unmute", nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	lines := m.Step(5)
	if len(lines) != 1 || lines[0] != "core 5" {
		t.Fatalf("got %v", lines)
	}
	if err := m.Call("mute", nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if lines := m.Step(6); len(lines) != 0 {
		t.Fatalf("expected no output after mute, got %v", lines)
	}
}

func TestBroadcastEmitsAllProperties(t *testing.T) {
	m, err := Create(KindCore, "core", nil, nil, NopDrivers{})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := m.Call("broadcast", nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	lines := m.Step(3)
	if len(lines) != 1 || lines[0] != "!!core.tick=3;" {
		t.Fatalf("got %v", lines)
	}
}

func TestShadowMirrorsCalls(t *testing.T) {
	drv := newFakeDrivers()
	a, _ := Create(KindOutput, "a", []value.Value{value.Int(1)}, nil, drv)
	b, _ := Create(KindOutput, "b", []value.Value{value.Int(2)}, nil, drv)

	if err := a.Shadow(b); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := a.CallWithShadows("on", nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	a.Step(0)
	b.Step(0)
	if !drv.pins["a"].level || !drv.pins["b"].level {
		t.Fatal("expected shadow call to mirror onto b")
	}
}

func TestShadowRejectsDifferentKind(t *testing.T) {
	core, _ := Create(KindCore, "core", nil, nil, NopDrivers{})
	drv := newFakeDrivers()
	out, _ := Create(KindOutput, "out", []value.Value{value.Int(1)}, nil, drv)
	if err := out.Shadow(core); err == nil {
		t.Fatal("expected TypeMismatch shadowing across kinds")
	}
}

func TestShadowSelfIsNoOp(t *testing.T) {
	drv := newFakeDrivers()
	a, _ := Create(KindOutput, "a", []value.Value{value.Int(1)}, nil, drv)
	if err := a.Shadow(a); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// A self-shadow must not be recorded; on() should reach the pin once
	// and nothing should recurse.
	if err := a.CallWithShadows("on", nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	a.Step(0)
	if !drv.pins["a"].level {
		t.Fatal("expected the direct call to still reach a's pin")
	}
}

func TestShadowRejectsCycle(t *testing.T) {
	drv := newFakeDrivers()
	a, _ := Create(KindOutput, "a", []value.Value{value.Int(1)}, nil, drv)
	b, _ := Create(KindOutput, "b", []value.Value{value.Int(2)}, nil, drv)

	if err := a.Shadow(b); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := b.Shadow(a); err == nil {
		t.Fatal("expected cycle rejection when shadowing back onto a")
	}
}

func TestWritePropertyThroughExpression(t *testing.T) {
	m, err := Create(KindCore, "core", nil, nil, NopDrivers{})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	tickVar, _ := m.GetProperty("tick")
	lit := expr.NewLiteral(value.Int(42))
	if err := m.WriteProperty("tick", lit); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if tickVar.Value() != value.Int(42) {
		t.Fatalf("got %+v", tickVar.Value())
	}
}

func TestMotorAxisMoveSignsSpeedAgainstPosition(t *testing.T) {
	drv := newFakeDrivers()
	lo, _ := Create(KindInput, "lo", []value.Value{value.Int(1)}, nil, drv)
	hi, _ := Create(KindInput, "hi", []value.Value{value.Int(2)}, nil, drv)
	peers := func(name string) (Module, bool) {
		switch name {
		case "lo":
			return lo, true
		case "hi":
			return hi, true
		}
		return nil, false
	}
	axis, err := Create(KindMotorAxis, "axis", []value.Value{value.Ident("lo"), value.Ident("hi")}, peers, drv)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// Target ahead of the current position (0): speed stays positive,
	// even if the axis is already running fast in some direction.
	speedProp, _ := axis.GetProperty("speed")
	_ = speedProp.Set(value.Num(10))
	if err := axis.Call("move", []value.Value{value.Num(5), value.Num(3)}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if speedProp.Value() != value.Num(3) {
		t.Fatalf("expected speed +3 toward a target ahead of position, got %+v", speedProp.Value())
	}

	// Target behind the current position: speed is negated.
	if err := axis.Call("move", []value.Value{value.Num(-5), value.Num(3)}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if speedProp.Value() != value.Num(-3) {
		t.Fatalf("expected speed -3 toward a target behind position, got %+v", speedProp.Value())
	}
}

func TestCreateRejectsWrongArity(t *testing.T) {
	if _, err := Create(KindInput, "x", nil, nil, NopDrivers{}); err == nil {
		t.Fatal("expected ArityMismatch for missing pin argument")
	}
}

func TestCreateUnknownKindIsDeviceError(t *testing.T) {
	if _, err := Create(KindODriveMotor, "x", nil, nil, NopDrivers{}); err == nil {
		t.Fatal("expected DeviceError for reserved-but-unimplemented kind")
	}
}
