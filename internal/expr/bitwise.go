package expr

import (
	"ctrlscript/internal/errors"
	"ctrlscript/internal/value"
)

type bitKind int

const (
	bitAnd bitKind = iota
	bitOr
	bitXor
	bitShl
	bitShr
)

// Bitwise implements & | ^ << >>. Result kind is always Integer;
// operands are treated as integers (boolean widens to 0/1, number is
// rejected by the kind check at construction), per §3.
type Bitwise struct {
	op          bitKind
	left, right Node
}

func isBitOperand(n Node) bool {
	k := n.ResultKind()
	return k == value.Boolean || k == value.Integer
}

func newBitwise(op bitKind, left, right Node) (*Bitwise, error) {
	if !isBitOperand(left) || !isBitOperand(right) {
		return nil, errors.NewTypeMismatch("bitwise operands must be boolean or integer, got %s and %s", left.ResultKind(), right.ResultKind())
	}
	return &Bitwise{op: op, left: left, right: right}, nil
}

func NewBitAnd(l, r Node) (*Bitwise, error)    { return newBitwise(bitAnd, l, r) }
func NewBitOr(l, r Node) (*Bitwise, error)     { return newBitwise(bitOr, l, r) }
func NewBitXor(l, r Node) (*Bitwise, error)    { return newBitwise(bitXor, l, r) }
func NewShiftLeft(l, r Node) (*Bitwise, error)  { return newBitwise(bitShl, l, r) }
func NewShiftRight(l, r Node) (*Bitwise, error) { return newBitwise(bitShr, l, r) }

func (b *Bitwise) ResultKind() value.Kind { return value.Integer }

func (b *Bitwise) Evaluate() (value.Value, error) {
	i, err := b.EvaluateInt()
	if err != nil {
		return value.Value{}, err
	}
	return value.Int(i), nil
}

func (b *Bitwise) EvaluateInt() (int64, error) {
	l, err := evalInt(b.left)
	if err != nil {
		return 0, err
	}
	r, err := evalInt(b.right)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case bitAnd:
		return l & r, nil
	case bitOr:
		return l | r, nil
	case bitXor:
		return l ^ r, nil
	case bitShl:
		return l << uint64(r), nil
	case bitShr:
		return l >> uint64(r), nil
	}
	return 0, errors.NewDeviceError("unknown bitwise operator")
}
