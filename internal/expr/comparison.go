package expr

import (
	"ctrlscript/internal/errors"
	"ctrlscript/internal/value"
)

type cmpKind int

const (
	cmpLess cmpKind = iota
	cmpLessEqual
	cmpGreater
	cmpGreaterEqual
	cmpEqual
	cmpUnequal
)

// Comparison implements < <= > >= == !=. Operands must be numbery;
// result kind is always Boolean.
type Comparison struct {
	op          cmpKind
	left, right Node
}

func newComparison(op cmpKind, left, right Node) (*Comparison, error) {
	if !left.ResultKind().Numbery() || !right.ResultKind().Numbery() {
		return nil, errors.NewTypeMismatch("comparison operands must be numbery, got %s and %s", left.ResultKind(), right.ResultKind())
	}
	return &Comparison{op: op, left: left, right: right}, nil
}

func NewLess(l, r Node) (*Comparison, error)         { return newComparison(cmpLess, l, r) }
func NewLessEqual(l, r Node) (*Comparison, error)    { return newComparison(cmpLessEqual, l, r) }
func NewGreater(l, r Node) (*Comparison, error)      { return newComparison(cmpGreater, l, r) }
func NewGreaterEqual(l, r Node) (*Comparison, error) { return newComparison(cmpGreaterEqual, l, r) }
func NewEqual(l, r Node) (*Comparison, error)        { return newComparison(cmpEqual, l, r) }
func NewUnequal(l, r Node) (*Comparison, error)      { return newComparison(cmpUnequal, l, r) }

func (c *Comparison) ResultKind() value.Kind { return value.Boolean }

func (c *Comparison) Evaluate() (value.Value, error) {
	l, err := evalNumber(c.left)
	if err != nil {
		return value.Value{}, err
	}
	r, err := evalNumber(c.right)
	if err != nil {
		return value.Value{}, err
	}
	var result bool
	switch c.op {
	case cmpLess:
		result = l < r
	case cmpLessEqual:
		result = l <= r
	case cmpGreater:
		result = l > r
	case cmpGreaterEqual:
		result = l >= r
	case cmpEqual:
		result = l == r
	case cmpUnequal:
		result = l != r
	}
	return value.Bool(result), nil
}
