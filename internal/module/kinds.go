package module

import (
	"fmt"

	"ctrlscript/internal/errors"
	"ctrlscript/internal/value"
)

// PeerLookup resolves an identifier argument to an already-registered
// module, for constructor arguments that reference a peer (§4.2 item
// 2). It is supplied by the registry; module never imports it.
type PeerLookup func(name string) (Module, bool)

// expectArgs validates the constructor/method argument count and
// kinds, mirroring the original firmware's Module::expect.
func expectArgs(args []value.Value, kinds ...value.Kind) error {
	if len(args) != len(kinds) {
		return errors.NewArityMismatch("expected %d argument(s), got %d", len(kinds), len(args))
	}
	for i, k := range kinds {
		if k == value.Number {
			if !args[i].Kind.Numbery() {
				return errors.NewTypeMismatch("argument %d must be numbery, got %s", i+1, args[i].Kind)
			}
			continue
		}
		if args[i].Kind != k {
			return errors.NewTypeMismatch("argument %d must be %s, got %s", i+1, k, args[i].Kind)
		}
	}
	return nil
}

// Create is the constructor factory named in §4.2 item 2 and §4.3: the
// single place a new module kind must be wired in. args are the
// already-compiled and evaluated constructor expressions.
func Create(kind Kind, name string, args []value.Value, peers PeerLookup, drv Drivers) (Module, error) {
	if drv == nil {
		drv = NopDrivers{}
	}
	switch kind {
	case KindInput:
		return newInput(name, args, drv)
	case KindOutput:
		return newOutput(name, args, drv)
	case KindPWMOutput:
		return newPWMOutput(name, args, drv)
	case KindCan:
		return newCan(name, args, drv)
	case KindSerial:
		return newSerial(name, args, drv)
	case KindExpander:
		return newExpander(name, args, peers, drv)
	case KindMotorAxis:
		return newMotorAxis(name, args, peers)
	case KindCore:
		return newCore(name)
	case KindProxy:
		return nil, errors.NewDeviceError("proxy modules must be constructed via NewProxy, not Create")
	default:
		return nil, errors.NewDeviceError("module kind %q has no driver implementation in this build", kind)
	}
}

// --- Input -----------------------------------------------------------

// Input polls a digital pin and exposes level/change/inverted/active
// properties, grounded on main/modules/input.{h,cpp}.
type Input struct {
	Base
	pin      DigitalPin
	inverted *value.Variable
}

func newInput(name string, args []value.Value, drv Drivers) (*Input, error) {
	if err := expectArgs(args, value.Integer); err != nil {
		return nil, err
	}
	pin, err := drv.DigitalPin(name, args[0].Int)
	if err != nil {
		return nil, err
	}
	m := &Input{Base: NewBase(name, KindInput), pin: pin}
	m.DefineProperty(value.NewVariable("level", value.Integer))
	m.DefineProperty(value.NewVariable("change", value.Integer))
	m.inverted = value.NewVariable("inverted", value.Boolean)
	m.DefineProperty(m.inverted)
	m.DefineProperty(value.NewVariable("active", value.Boolean))
	m.Bind(m)
	return m, nil
}

func (m *Input) Step(tick uint64) []string {
	level, err := m.pin.Read()
	if err != nil {
		return []string{fmt.Sprintf("%s error: %s", m.Name(), err)}
	}
	levelProp, _ := m.GetProperty("level")
	changeProp, _ := m.GetProperty("change")
	activeProp, _ := m.GetProperty("active")
	newLevel := int64(0)
	if level {
		newLevel = 1
	}
	_ = changeProp.Set(value.Int(newLevel - levelProp.Value().Int))
	_ = levelProp.Set(value.Int(newLevel))
	active := level
	if m.inverted.Value().Bool {
		active = !active
	}
	_ = activeProp.Set(value.Bool(active))
	return m.StepOutput(fmt.Sprintf("%d", newLevel))
}

func (m *Input) Call(method string, args []value.Value) error {
	switch method {
	case "get":
		return expectArgs(args)
	case "pullup", "pulldown", "pulloff":
		return expectArgs(args)
	default:
		return m.Base.Call(method, args)
	}
}

// --- Output ------------------------------------------------------------

// Output drives a digital pin, optionally pulsing it at a configurable
// duty cycle, grounded on main/modules/output.{h,cpp}.
type Output struct {
	Base
	pin            DigitalPin
	targetLevel    bool
	pulseInterval  float64
	pulseDutyCycle float64
}

func newOutput(name string, args []value.Value, drv Drivers) (*Output, error) {
	if err := expectArgs(args, value.Integer); err != nil {
		return nil, err
	}
	pin, err := drv.DigitalPin(name, args[0].Int)
	if err != nil {
		return nil, err
	}
	m := &Output{Base: NewBase(name, KindOutput), pin: pin, pulseDutyCycle: 0.5}
	m.DefineProperty(value.NewVariable("level", value.Integer))
	m.DefineProperty(value.NewVariable("change", value.Integer))
	m.Bind(m)
	return m, nil
}

func (m *Output) applyLevel(tick uint64) {
	level := m.targetLevel
	if m.pulseInterval > 0 {
		phase := float64(tick)*0.01 // tick period is 10ms (§4.7)
		cycle := phase - float64(int64(phase/m.pulseInterval))*m.pulseInterval
		level = cycle/m.pulseInterval < m.pulseDutyCycle
	}
	_ = m.pin.Write(level)
	levelProp, _ := m.GetProperty("level")
	changeProp, _ := m.GetProperty("change")
	newLevel := int64(0)
	if level {
		newLevel = 1
	}
	_ = changeProp.Set(value.Int(newLevel - levelProp.Value().Int))
	_ = levelProp.Set(value.Int(newLevel))
}

func (m *Output) Step(tick uint64) []string {
	m.applyLevel(tick)
	levelProp, _ := m.GetProperty("level")
	return m.StepOutput(levelProp.Format())
}

func (m *Output) Call(method string, args []value.Value) error {
	switch method {
	case "on":
		if err := expectArgs(args); err != nil {
			return err
		}
		m.targetLevel, m.pulseInterval = true, 0
	case "off":
		if err := expectArgs(args); err != nil {
			return err
		}
		m.targetLevel, m.pulseInterval = false, 0
	case "level":
		if err := expectArgs(args, value.Boolean); err != nil {
			return err
		}
		m.targetLevel, m.pulseInterval = args[0].Bool, 0
	case "pulse":
		if len(args) < 1 || len(args) > 2 {
			return errors.NewArityMismatch("pulse takes one or two arguments")
		}
		interval, err := args[0].AsNumber()
		if err != nil {
			return err
		}
		m.pulseInterval = interval
		m.pulseDutyCycle = 0.5
		if len(args) == 2 {
			duty, err := args[1].AsNumber()
			if err != nil {
				return err
			}
			m.pulseDutyCycle = duty
		}
	default:
		return m.Base.Call(method, args)
	}
	return nil
}

// --- PWMOutput -----------------------------------------------------

// PWMOutput drives a PWM-capable pin via frequency/duty properties,
// grounded on main/modules/pwm_output.{h,cpp}.
type PWMOutput struct {
	Base
	pin  PWMPin
	isOn bool
}

func newPWMOutput(name string, args []value.Value, drv Drivers) (*PWMOutput, error) {
	if err := expectArgs(args, value.Integer); err != nil {
		return nil, err
	}
	pin, err := drv.PWMPin(name, args[0].Int)
	if err != nil {
		return nil, err
	}
	m := &PWMOutput{Base: NewBase(name, KindPWMOutput), pin: pin}
	freq := value.NewVariable("frequency", value.Integer)
	_ = freq.Set(value.Int(1000))
	m.DefineProperty(freq)
	duty := value.NewVariable("duty", value.Integer)
	_ = duty.Set(value.Int(128))
	m.DefineProperty(duty)
	m.Bind(m)
	return m, nil
}

func (m *PWMOutput) Step(tick uint64) []string {
	freqProp, _ := m.GetProperty("frequency")
	dutyProp, _ := m.GetProperty("duty")
	if err := m.pin.SetFrequency(freqProp.Value().Int); err != nil {
		return []string{fmt.Sprintf("%s error: %s", m.Name(), err)}
	}
	duty := int64(0)
	if m.isOn {
		duty = dutyProp.Value().Int
	}
	if err := m.pin.SetDuty(duty); err != nil {
		return []string{fmt.Sprintf("%s error: %s", m.Name(), err)}
	}
	return m.StepOutput(fmt.Sprintf("%d", duty))
}

func (m *PWMOutput) Call(method string, args []value.Value) error {
	switch method {
	case "on":
		if err := expectArgs(args); err != nil {
			return err
		}
		m.isOn = true
	case "off":
		if err := expectArgs(args); err != nil {
			return err
		}
		m.isOn = false
	default:
		return m.Base.Call(method, args)
	}
	return nil
}

// --- Can / Serial --------------------------------------------------

// Can wraps a CAN transceiver bus, grounded on main/modules/can.{h,cpp}.
type Can struct {
	Base
	bus Bus
}

func newCan(name string, args []value.Value, drv Drivers) (*Can, error) {
	if err := expectArgs(args, value.Integer, value.Integer, value.Integer); err != nil {
		return nil, err
	}
	bus, err := drv.Bus(name, args[0].Int, args[1].Int, args[2].Int)
	if err != nil {
		return nil, err
	}
	m := &Can{Base: NewBase(name, KindCan), bus: bus}
	m.Bind(m)
	return m, nil
}

func (m *Can) Step(tick uint64) []string {
	var lines []string
	for {
		frame, ok, err := m.bus.Recv()
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s error: %s", m.Name(), err))
			break
		}
		if !ok {
			break
		}
		lines = append(lines, fmt.Sprintf("%s recv %x", m.Name(), frame))
	}
	return append(lines, m.StepOutput("")...)
}

func (m *Can) Call(method string, args []value.Value) error {
	if method != "send" {
		return m.Base.Call(method, args)
	}
	if len(args) == 0 || args[0].Kind != value.String {
		return errors.NewTypeMismatch("send expects a string payload")
	}
	return m.bus.Send([]byte(args[0].Str))
}

// Serial wraps a UART, grounded on main/modules/serial.{h,cpp}.
type Serial struct {
	Base
	bus Bus
}

func newSerial(name string, args []value.Value, drv Drivers) (*Serial, error) {
	if err := expectArgs(args, value.Integer, value.Integer, value.Integer); err != nil {
		return nil, err
	}
	bus, err := drv.Bus(name, args[0].Int, args[1].Int, args[2].Int)
	if err != nil {
		return nil, err
	}
	m := &Serial{Base: NewBase(name, KindSerial), bus: bus}
	m.Bind(m)
	return m, nil
}

func (m *Serial) Step(tick uint64) []string {
	var lines []string
	for {
		frame, ok, err := m.bus.Recv()
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s error: %s", m.Name(), err))
			break
		}
		if !ok {
			break
		}
		lines = append(lines, string(frame))
	}
	return append(lines, m.StepOutput("")...)
}

func (m *Serial) Call(method string, args []value.Value) error {
	if method != "write" {
		return m.Base.Call(method, args)
	}
	if len(args) != 1 || args[0].Kind != value.String {
		return errors.NewTypeMismatch("write expects a single string argument")
	}
	return m.bus.Send([]byte(args[0].Str))
}

// WriteLine implements the LineChannel interface the proxy/expander
// layer needs, by framing the payload as a Send call.
func (m *Serial) WriteLine(line string) error {
	return m.bus.Send([]byte(line + "\n"))
}

// --- Expander --------------------------------------------------------

// Expander owns the byte channel proxies forward over (§4.8, §6),
// grounded on main/modules/expander.{h,cpp}.
type Expander struct {
	Base
	channel LineChannel
}

// newExpander accepts either an identifier naming a peer Serial module
// (the on-board UART channel) or a string naming a remote endpoint
// resolved through Drivers.Channel — the latter is how a
// WebSocketExpanderLink (internal/proxy) gets wired in for networked
// deployments, keeping this package free of a dependency on proxy.
func newExpander(name string, args []value.Value, peers PeerLookup, drv Drivers) (*Expander, error) {
	if len(args) != 1 {
		return nil, errors.NewArityMismatch("expander expects exactly one argument")
	}
	var channel LineChannel
	switch args[0].Kind {
	case value.Identifier:
		serialName := args[0].Str
		peer, ok := peers(serialName)
		if !ok {
			return nil, errors.NewUnknownName("unknown module %q", serialName)
		}
		if peer.Kind() != KindSerial {
			return nil, errors.NewTypeMismatch("expander requires a serial module, got kind %q", peer.Kind())
		}
		serial, ok := peer.(*Serial)
		if !ok {
			return nil, errors.NewTypeMismatch("expander's serial peer %q has no line channel", serialName)
		}
		channel = serial
	case value.String:
		c, err := drv.Channel(args[0].Str)
		if err != nil {
			return nil, err
		}
		channel = c
	default:
		return nil, errors.NewTypeMismatch("expander argument must be an identifier or a string, got %s", args[0].Kind)
	}
	m := &Expander{Base: NewBase(name, KindExpander), channel: channel}
	m.Bind(m)
	return m, nil
}

// Channel exposes the underlying line channel for Proxy construction;
// not part of the Module interface since only the compiler/proxy layer
// needs it.
func (m *Expander) Channel() LineChannel { return m.channel }

func (m *Expander) Step(tick uint64) []string { return m.StepOutput("") }

// --- MotorAxis -------------------------------------------------------

// MotorAxis composes a stepper motor with two limit-switch Input
// modules, grounded on main/modules/motor_axis.{h,cpp}. The concrete
// stepper driver is out of scope (§1); this models the axis purely in
// terms of its two Input endstops and a commanded position/speed.
type MotorAxis struct {
	Base
	limitMin, limitMax Module
	target             float64
}

func newMotorAxis(name string, args []value.Value, peers PeerLookup) (*MotorAxis, error) {
	if err := expectArgs(args, value.Identifier, value.Identifier); err != nil {
		return nil, err
	}
	lo, ok := peers(args[0].Str)
	if !ok || lo.Kind() != KindInput {
		return nil, errors.NewTypeMismatch("motor_axis requires two input modules as endstops")
	}
	hi, ok := peers(args[1].Str)
	if !ok || hi.Kind() != KindInput {
		return nil, errors.NewTypeMismatch("motor_axis requires two input modules as endstops")
	}
	m := &MotorAxis{Base: NewBase(name, KindMotorAxis), limitMin: lo, limitMax: hi}
	m.DefineProperty(value.NewVariable("position", value.Number))
	m.DefineProperty(value.NewVariable("speed", value.Number))
	m.Bind(m)
	return m, nil
}

func (m *MotorAxis) atLimit(limit Module) bool {
	active, err := limit.GetProperty("active")
	return err == nil && active.Value().Kind == value.Boolean && active.Value().Bool
}

func (m *MotorAxis) Step(tick uint64) []string {
	positionProp, _ := m.GetProperty("position")
	speedProp, _ := m.GetProperty("speed")
	pos := positionProp.Value().Num
	speed := speedProp.Value().Num
	if m.atLimit(m.limitMin) && speed < 0 {
		speed = 0
	}
	if m.atLimit(m.limitMax) && speed > 0 {
		speed = 0
	}
	step := speed * 0.01 // tick period 10ms (§4.7)
	if (speed > 0 && pos+step > m.target) || (speed < 0 && pos+step < m.target) {
		pos, speed = m.target, 0
	} else {
		pos += step
	}
	_ = positionProp.Set(value.Num(pos))
	_ = speedProp.Set(value.Num(speed))
	return m.StepOutput(fmt.Sprintf("%f", pos))
}

func (m *MotorAxis) Call(method string, args []value.Value) error {
	switch method {
	case "move":
		if len(args) != 2 {
			return errors.NewArityMismatch("move expects target and speed")
		}
		target, err := args[0].AsNumber()
		if err != nil {
			return err
		}
		speed, err := args[1].AsNumber()
		if err != nil {
			return err
		}
		m.target = target
		positionProp, _ := m.GetProperty("position")
		if target < positionProp.Value().Num {
			speed = -speed
		}
		speedProp, _ := m.GetProperty("speed")
		return speedProp.Set(value.Num(speed))
	case "stop":
		if err := expectArgs(args); err != nil {
			return err
		}
		speedProp, _ := m.GetProperty("speed")
		return speedProp.Set(value.Num(0))
	default:
		return m.Base.Call(method, args)
	}
}

// --- Core --------------------------------------------------------------

// Core is the implicit module constructed at scheduler startup and
// stepped last each tick (§4.7), grounded on main/modules/core.{h,cpp}.
// It tracks the scheduler tick counter as a readable property.
type Core struct {
	Base
}

func newCore(name string) (*Core, error) {
	m := &Core{Base: NewBase(name, KindCore)}
	m.DefineProperty(value.NewVariable("tick", value.Integer))
	m.Bind(m)
	return m, nil
}

func (m *Core) Step(tick uint64) []string {
	tickProp, _ := m.GetProperty("tick")
	_ = tickProp.Set(value.Int(int64(tick)))
	return m.StepOutput(tickProp.Format())
}

func (m *Core) Call(method string, args []value.Value) error {
	return m.Base.Call(method, args)
}
