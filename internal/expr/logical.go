package expr

import (
	"ctrlscript/internal/errors"
	"ctrlscript/internal/value"
)

type logicalKind int

const (
	logAnd logicalKind = iota
	logOr
)

// Logical implements and/or. Operands must be boolean; result kind is
// always Boolean.
type Logical struct {
	op          logicalKind
	left, right Node
}

func newLogical(op logicalKind, left, right Node) (*Logical, error) {
	if left.ResultKind() != value.Boolean || right.ResultKind() != value.Boolean {
		return nil, errors.NewTypeMismatch("logical operands must be boolean, got %s and %s", left.ResultKind(), right.ResultKind())
	}
	return &Logical{op: op, left: left, right: right}, nil
}

func NewAnd(l, r Node) (*Logical, error) { return newLogical(logAnd, l, r) }
func NewOr(l, r Node) (*Logical, error)  { return newLogical(logOr, l, r) }

func (l *Logical) ResultKind() value.Kind { return value.Boolean }

func (l *Logical) Evaluate() (value.Value, error) {
	lv, err := l.left.Evaluate()
	if err != nil {
		return value.Value{}, err
	}
	rv, err := l.right.Evaluate()
	if err != nil {
		return value.Value{}, err
	}
	if l.op == logAnd {
		return value.Bool(lv.Bool && rv.Bool), nil
	}
	return value.Bool(lv.Bool || rv.Bool), nil
}

// Not implements the logical negation operator.
type Not struct {
	operand Node
}

func NewNot(operand Node) (*Not, error) {
	if operand.ResultKind() != value.Boolean {
		return nil, errors.NewTypeMismatch("not operand must be boolean, got %s", operand.ResultKind())
	}
	return &Not{operand: operand}, nil
}

func (n *Not) ResultKind() value.Kind { return value.Boolean }

func (n *Not) Evaluate() (value.Value, error) {
	v, err := n.operand.Evaluate()
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(!v.Bool), nil
}
