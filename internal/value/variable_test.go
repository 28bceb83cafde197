package value

import "testing"

// literal is a minimal Evaluator for exercising Variable.Assign without
// pulling in the expr package (which itself depends on value).
type literal struct {
	v Value
}

func (l literal) ResultKind() Kind         { return l.v.Kind }
func (l literal) Evaluate() (Value, error) { return l.v, nil }

func TestAssignExactKind(t *testing.T) {
	v := NewVariable("x", Integer)
	if err := v.Assign(literal{Int(5)}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v.Value() != Int(5) {
		t.Fatalf("got %+v", v.Value())
	}
}

func TestAssignNumberAcceptsNumbery(t *testing.T) {
	v := NewVariable("n", Number)
	if err := v.Assign(literal{Int(3)}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v.Value() != Num(3) {
		t.Fatalf("got %+v", v.Value())
	}
}

func TestAssignIntegerRejectsNumber(t *testing.T) {
	v := NewVariable("i", Integer)
	if err := v.Assign(literal{Num(1.0)}); err == nil {
		t.Fatal("expected TypeMismatch assigning number to integer variable")
	}
}

func TestAssignToIdentifierForbidden(t *testing.T) {
	v := NewIdentifierVariable("motor")
	if err := v.Assign(literal{Ident("other")}); err == nil {
		t.Fatal("expected error assigning to identifier variable")
	}
}

func TestSetBypassesKindMatch(t *testing.T) {
	// Assign rejects a boolean into an integer variable; Set widens it.
	v := NewVariable("i", Integer)
	if err := v.Set(Bool(true)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v.Value() != Int(1) {
		t.Fatalf("got %+v", v.Value())
	}
}

func TestReadAs(t *testing.T) {
	v := NewVariable("i", Integer)
	_ = v.Set(Int(2))
	got, err := v.ReadAs(Number)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != Num(2) {
		t.Fatalf("got %+v", got)
	}
}
