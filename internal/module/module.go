// Package module implements the Module contract (§3, §4.3): a named
// object with typed properties, a method dispatch surface, shadow
// mirroring, and a per-tick step hook. The set of module kinds is
// closed and known at build time (§4.3, §9).
package module

import (
	"fmt"
	"sort"
	"strings"

	"ctrlscript/internal/errors"
	"ctrlscript/internal/expr"
	"ctrlscript/internal/value"
)

// Kind tags a module's variant for runtime constructor-argument
// type-checks (§3). It must be recoverable from the variant in O(1),
// so every concrete module stores it directly rather than deriving it
// from a type switch.
type Kind string

const (
	KindCore      Kind = "core"
	KindInput     Kind = "input"
	KindOutput    Kind = "output"
	KindPWMOutput Kind = "pwm_output"
	KindCan       Kind = "can"
	KindSerial    Kind = "serial"
	KindExpander  Kind = "expander"
	KindProxy     Kind = "proxy"
	KindMotorAxis Kind = "motor_axis"

	// Reserved kinds named in the original firmware's ModuleType enum
	// (main/modules/module.h) that this build does not implement a
	// bespoke driver for — concrete device drivers are out of scope
	// per §1. They are kept as named constants so the closed-kind-set
	// property (§4.3, §9) can be stated completely even though
	// Create() rejects them with a "not implemented" DeviceError rather
	// than UnknownName.
	KindODriveMotor   Kind = "odrive_motor"
	KindODriveWheels  Kind = "odrive_wheels"
	KindRMDMotor      Kind = "rmd_motor"
	KindRMDPair       Kind = "rmd_pair"
	KindRoboClaw      Kind = "roboclaw"
	KindRoboClawMotor Kind = "roboclaw_motor"
	KindStepperMotor  Kind = "stepper_motor"
	KindCanOpenMotor  Kind = "canopen_motor"
	KindCanOpenMaster Kind = "canopen_master"
	KindBluetooth     Kind = "bluetooth"
)

// Module is the interface every module kind implements.
type Module interface {
	Name() string
	Kind() Kind
	Step(tick uint64) []string
	Call(method string, args []value.Value) error
	CallWithShadows(method string, args []value.Value) error
	GetProperty(name string) (*value.Variable, error)
	WriteProperty(name string, e expr.Node) error
	Shadow(other Module) error
}

// Base implements the common plumbing every concrete module embeds:
// the property map, shadow list, and the four universal methods
// (§4.3). Concrete kinds embed Base and call its methods from their own
// Call/Step overrides for anything Base already covers.
type Base struct {
	name       string
	kind       Kind
	properties map[string]*value.Variable
	propOrder  []string
	shadows    []Module
	outputOn   bool
	broadcast  bool
	self       Module
}

func NewBase(name string, kind Kind) Base {
	return Base{name: name, kind: kind, properties: make(map[string]*value.Variable)}
}

// Bind records the concrete module embedding this Base, so Shadow and
// CallWithShadows can dispatch through the embedder's own Call
// override rather than Base's. Every concrete constructor must call
// this once immediately after allocating the module.
func (b *Base) Bind(self Module) { b.self = self }

func (b *Base) Name() string { return b.name }
func (b *Base) Kind() Kind   { return b.kind }

// DefineProperty registers a property variable and records its
// declaration order; StepOutput's broadcast line lists the properties
// sorted by name (§4.3).
func (b *Base) DefineProperty(v *value.Variable) {
	if _, exists := b.properties[v.Name]; !exists {
		b.propOrder = append(b.propOrder, v.Name)
	}
	b.properties[v.Name] = v
}

func (b *Base) GetProperty(name string) (*value.Variable, error) {
	v, ok := b.properties[name]
	if !ok {
		return nil, errors.NewUnknownProperty("unknown property %q on module %q", name, b.name)
	}
	return v, nil
}

func (b *Base) WriteProperty(name string, e expr.Node) error {
	v, err := b.GetProperty(name)
	if err != nil {
		return err
	}
	return v.Assign(e)
}

// Call dispatches the four built-ins every module understands (§4.3),
// except shadow, which needs the caller's own Module identity and is
// dispatched via Shadow instead.
func (b *Base) Call(method string, args []value.Value) error {
	switch method {
	case "mute":
		if len(args) != 0 {
			return errors.NewArityMismatch("mute takes no arguments")
		}
		b.outputOn = false
	case "unmute":
		if len(args) != 0 {
			return errors.NewArityMismatch("unmute takes no arguments")
		}
		b.outputOn = true
	case "broadcast":
		if len(args) != 0 {
			return errors.NewArityMismatch("broadcast takes no arguments")
		}
		b.broadcast = true
	default:
		return errors.NewUnknownMethod("unknown method %q on module %q", method, b.name)
	}
	return nil
}

type shadowLister interface {
	shadowList() []Module
}

func (b *Base) shadowList() []Module { return b.shadows }

// shadowReachable walks m's shadow list transitively, reporting whether
// target is reachable. Unlike the original firmware (§9 design notes),
// this repo rejects indirect shadow cycles rather than allowing
// infinite mutual dispatch.
func shadowReachable(m Module, target Module, seen map[Module]bool) bool {
	lister, ok := m.(shadowLister)
	if !ok {
		return false
	}
	for _, s := range lister.shadowList() {
		if s == target {
			return true
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		if shadowReachable(s, target, seen) {
			return true
		}
	}
	return false
}

// Shadow appends other to the shadow list if it is of the same kind,
// is not self, and adding it would not create a cycle (§4.6, §9).
func (b *Base) Shadow(other Module) error {
	if other.Kind() != b.kind {
		return errors.NewTypeMismatch("shadow module %q is not of kind %q", other.Name(), b.kind)
	}
	if other == b.self {
		return nil
	}
	if shadowReachable(other, b.self, map[Module]bool{b.self: true}) {
		return errors.NewDeviceError("shadowing %q onto %q would create a cycle", other.Name(), b.name)
	}
	b.shadows = append(b.shadows, other)
	return nil
}

// CallWithShadows invokes self's own Call (through the bound concrete
// type, so overrides apply), then each shadow's Call, in insertion
// order (§4.6).
func (b *Base) CallWithShadows(method string, args []value.Value) error {
	if method == "shadow" {
		return errors.NewUnknownMethod("shadow must be resolved by the compiler to a module reference, not called with an identifier argument")
	}
	if err := b.self.Call(method, args); err != nil {
		return err
	}
	for _, s := range b.shadows {
		if err := s.Call(method, args); err != nil {
			return err
		}
	}
	return nil
}

// StepOutput implements the default step emission (§4.3): an output
// line when OutputOn, and a single broadcast line of all properties
// when Broadcast.
func (b *Base) StepOutput(output string) []string {
	var lines []string
	if b.outputOn && output != "" {
		lines = append(lines, fmt.Sprintf("%s %s", b.name, output))
	}
	if b.broadcast && len(b.propOrder) > 0 {
		var sb strings.Builder
		sb.WriteString("!!")
		names := append([]string(nil), b.propOrder...)
		sort.Strings(names) // deterministic wire order across modules
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("%s.%s=%s;", b.name, name, b.properties[name].Format()))
		}
		lines = append(lines, sb.String())
	}
	return lines
}

func (b *Base) OutputOn() bool     { return b.outputOn }
func (b *Base) Broadcasting() bool { return b.broadcast }
