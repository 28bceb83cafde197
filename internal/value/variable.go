package value

import "ctrlscript/internal/errors"

// Variable is a named cell carrying one value kind for its entire
// lifetime. It owns the storage for its current value.
type Variable struct {
	Name    string
	Kind    Kind
	current Value
}

// NewVariable creates a variable of the given kind with the kind's
// zero default.
func NewVariable(name string, kind Kind) *Variable {
	return &Variable{Name: name, Kind: kind, current: Zero(kind)}
}

// NewIdentifierVariable creates the implicit identifier-kind cell that
// registering a module or routine inserts into the variable namespace.
func NewIdentifierVariable(name string) *Variable {
	return &Variable{Name: name, Kind: Identifier, current: Ident(name)}
}

// Evaluator is satisfied by any expression node: it produces a typed
// Value on demand. Variable.Assign takes one so it never needs to know
// about the expr package (which itself depends on value).
type Evaluator interface {
	ResultKind() Kind
	Evaluate() (Value, error)
}

// Assign implements the §3 assignment contract: kinds match, or v is
// number and e is numbery, or v is integer and e is integer (no
// implicit float->int). Assigning to an identifier variable is always
// an error.
func (v *Variable) Assign(e Evaluator) error {
	if v.Kind == Identifier {
		return errors.NewTypeMismatch("assignment to identifier variable %q is forbidden", v.Name)
	}
	ek := e.ResultKind()
	switch {
	case v.Kind == ek:
	case v.Kind == Number && ek.Numbery():
	default:
		return errors.NewTypeMismatch("cannot assign %s to %s variable %q", ek, v.Kind, v.Name)
	}
	val, err := e.Evaluate()
	if err != nil {
		return err
	}
	coerced, err := val.As(v.Kind)
	if err != nil {
		return err
	}
	v.current = coerced
	return nil
}

// Set stores a value directly, bypassing expression evaluation and
// Assign's kind contract; the value is still coerced with As. Used by
// module step hooks and by the proxy's broadcast-driven property cache,
// where no expression tree exists.
func (v *Variable) Set(val Value) error {
	coerced, err := val.As(v.Kind)
	if err != nil {
		return err
	}
	v.current = coerced
	return nil
}

// ReadAs returns the current value coerced to the requested kind.
func (v *Variable) ReadAs(kind Kind) (Value, error) {
	return v.current.As(kind)
}

// Value returns the variable's current value at its own kind.
func (v *Variable) Value() Value {
	return v.current
}

// Format renders the variable's current value in canonical form.
func (v *Variable) Format() string {
	return v.current.Format()
}
