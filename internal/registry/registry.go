// Package registry implements the single shared namespace modules,
// routines, rules, and variables all live in (§3, §4.7, §9): one name
// maps to at most one entity, and the scheduler steps modules in
// declaration order with the implicit core module always stepped last.
package registry

import (
	"ctrlscript/internal/errors"
	"ctrlscript/internal/module"
	"ctrlscript/internal/routine"
	"ctrlscript/internal/rule"
	"ctrlscript/internal/value"
)

// Registry owns every named entity the compiler produces and the
// scheduler drains.
type Registry struct {
	names map[string]string // name -> "module" | "routine" | "variable", for the shared-namespace duplicate check

	modules     map[string]module.Module
	moduleOrder []string

	variables map[string]*value.Variable

	routines     map[string]*routine.Routine
	routineOrder []string

	rules []*rule.Rule

	drivers module.Drivers
}

// New creates an empty registry. drv supplies hardware collaborators
// to module constructors; a nil drv defaults to module.NopDrivers{}.
func New(drv module.Drivers) *Registry {
	if drv == nil {
		drv = module.NopDrivers{}
	}
	return &Registry{
		names:     make(map[string]string),
		modules:   make(map[string]module.Module),
		variables: make(map[string]*value.Variable),
		routines:  make(map[string]*routine.Routine),
		drivers:   drv,
	}
}

func (r *Registry) checkFree(name string) error {
	if owner, exists := r.names[name]; exists {
		return errors.NewDuplicate("name %q is already in use by a %s", name, owner)
	}
	return nil
}

// Drivers exposes the hardware-collaborator factory for the compiler's
// module construction step.
func (r *Registry) Drivers() module.Drivers { return r.drivers }

// PeerLookup adapts Modules() lookup to module.PeerLookup, for
// constructor arguments that reference a peer module (§4.2 item 2).
func (r *Registry) PeerLookup() module.PeerLookup {
	return func(name string) (module.Module, bool) {
		m, ok := r.modules[name]
		return m, ok
	}
}

// DefineVariable creates a user-declared variable cell (§4.2 item 7).
func (r *Registry) DefineVariable(name string, kind value.Kind) (*value.Variable, error) {
	if err := r.checkFree(name); err != nil {
		return nil, err
	}
	v := value.NewVariable(name, kind)
	r.variables[name] = v
	r.names[name] = "variable"
	return v, nil
}

// LookupVariable resolves a bare name to a variable cell; it does not
// look inside modules/routines (callers check those namespaces first
// via Module/Routine).
func (r *Registry) LookupVariable(name string) (*value.Variable, bool) {
	v, ok := r.variables[name]
	return v, ok
}

// Module resolves a bare name to a module, if any.
func (r *Registry) Module(name string) (module.Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// RegisterModule adds a newly constructed module under name, binding
// an implicit identifier variable of the same name so module
// references can appear as expression operands (§4.2 item 2, §9).
func (r *Registry) RegisterModule(name string, m module.Module) error {
	if err := r.checkFree(name); err != nil {
		return err
	}
	r.modules[name] = m
	r.moduleOrder = append(r.moduleOrder, name)
	r.variables[name] = value.NewIdentifierVariable(name)
	r.names[name] = "module"
	return nil
}

// Routine resolves a bare name to a routine, if any.
func (r *Registry) Routine(name string) (*routine.Routine, bool) {
	rt, ok := r.routines[name]
	return rt, ok
}

// RegisterRoutine adds a newly compiled routine under name (§4.2 item
// 8). Per the documented open-question resolution, redefinition is
// rejected rather than silently replacing the running routine.
func (r *Registry) RegisterRoutine(name string, rt *routine.Routine) error {
	if err := r.checkFree(name); err != nil {
		return err
	}
	r.routines[name] = rt
	r.routineOrder = append(r.routineOrder, name)
	r.variables[name] = value.NewIdentifierVariable(name)
	r.names[name] = "routine"
	return nil
}

// AddRule appends a compiled rule (§4.2 item 9). Rules have no name
// and so never participate in the shared-namespace check.
func (r *Registry) AddRule(ru *rule.Rule) {
	r.rules = append(r.rules, ru)
}

// Modules returns every module in declaration order, except that the
// implicit core module (if present) is moved to the end, matching the
// scheduler's per-tick module step order (§4.7: "modules (core last)").
func (r *Registry) Modules() []module.Module {
	var core module.Module
	ordered := make([]module.Module, 0, len(r.moduleOrder))
	for _, name := range r.moduleOrder {
		m := r.modules[name]
		if m.Kind() == module.KindCore {
			core = m
			continue
		}
		ordered = append(ordered, m)
	}
	if core != nil {
		ordered = append(ordered, core)
	}
	return ordered
}

// Routines returns every registered routine in declaration order, for
// deterministic scheduler ticks (§4.7).
func (r *Registry) Routines() []*routine.Routine {
	out := make([]*routine.Routine, 0, len(r.routineOrder))
	for _, name := range r.routineOrder {
		out = append(out, r.routines[name])
	}
	return out
}

// Rules returns every registered rule in declaration order (§4.7).
func (r *Registry) Rules() []*rule.Rule { return r.rules }
