package interp

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/sasl-lang/sasl/pkg/ir"
)

func boolVal(b bool) int64 {
	if b { return 1 }
	return 0
}

func compare(op ir.Op, t *ir.Type, x, y any) int64 {
	if t.IsFloat() {
		a, b := x.(float64), y.(float64)
		switch op {
		case ir.OpCEq: return boolVal(a == b)
		case ir.OpCNeq: return boolVal(a != b)
		case ir.OpCLt: return boolVal(a < b)
		case ir.OpCLe: return boolVal(a <= b)
		case ir.OpCGt: return boolVal(a > b)
		}
		return boolVal(a >= b)
	}
	a, b := x.(int64), y.(int64)
	if !t.Signed || t.IsBool() {
		ua, ub := uint64(a), uint64(b)
		switch op {
		case ir.OpCEq: return boolVal(ua == ub)
		case ir.OpCNeq: return boolVal(ua != ub)
		case ir.OpCLt: return boolVal(ua < ub)
		case ir.OpCLe: return boolVal(ua <= ub)
		case ir.OpCGt: return boolVal(ua > ub)
		}
		return boolVal(ua >= ub)
	}
	switch op {
	case ir.OpCEq: return boolVal(a == b)
	case ir.OpCNeq: return boolVal(a != b)
	case ir.OpCLt: return boolVal(a < b)
	case ir.OpCLe: return boolVal(a <= b)
	case ir.OpCGt: return boolVal(a > b)
	}
	return boolVal(a >= b)
}

// convert applies a numeric conversion from lane type src to lane type dst.
// Integers are stored extended by their own signedness, so width changes
// reduce to wrapping to the destination.
func convert(op ir.Op, src, dst *ir.Type, x any) (any, error) {
	switch op {
	case ir.OpExt, ir.OpTrunc:
		return dst.Wrap(x.(int64)), nil
	case ir.OpIToF:
		i := x.(int64)
		if src.IsInt() && !src.Signed && src.Bits == 64 { return roundTo(dst, float64(uint64(i))), nil }
		return roundTo(dst, float64(i)), nil
	case ir.OpFToI:
		f := x.(float64)
		i, err := truncate(dst, f)
		if err != nil { return nil, fmt.Errorf("%w: %v does not fit %s", ErrTrap, f, dst) }
		return dst.Wrap(i), nil
	case ir.OpFToF:
		return roundTo(dst, x.(float64)), nil
	}
	return nil, fmt.Errorf("%w: %s is not a conversion", ErrTrap, op)
}

// truncate drops the fraction of f and range-checks it against the width
// of dst. Unsigned results come back in their int64 storage form.
func truncate(dst *ir.Type, f float64) (int64, error) {
	switch {
	case dst.IsBool(): return truncateTo[uint8](f, 1)
	case dst.Signed && dst.Bits <= 8: return truncateTo[int8](f, 0)
	case dst.Signed && dst.Bits <= 16: return truncateTo[int16](f, 0)
	case dst.Signed && dst.Bits <= 32: return truncateTo[int32](f, 0)
	case dst.Signed: return truncateTo[int64](f, 0)
	case dst.Bits <= 8: return truncateTo[uint8](f, 0)
	case dst.Bits <= 16: return truncateTo[uint16](f, 0)
	case dst.Bits <= 32: return truncateTo[uint32](f, 0)
	}
	return truncateTo[uint64](f, 0)
}

// truncateTo converts through T; a nonzero limit further caps the result.
func truncateTo[T safecast.Integer](f float64, limit T) (int64, error) {
	v, err := safecast.Truncate[T](f)
	if err != nil { return 0, err }
	if limit != 0 && v > limit { return 0, safecast.ErrOutOfRange }
	return int64(v), nil
}

func arith(op ir.Op, t *ir.Type, xs ...any) (any, error) {
	if t.IsFloat() {
		a := xs[0].(float64)
		if op == ir.OpNegF { return -a, nil }
		b := xs[1].(float64)
		switch op {
		case ir.OpAddF: return roundTo(t, a+b), nil
		case ir.OpSubF: return roundTo(t, a-b), nil
		case ir.OpMulF: return roundTo(t, a*b), nil
		case ir.OpDivF: return roundTo(t, a/b), nil
		}
		return nil, fmt.Errorf("%w: %s on %s", ErrTrap, op, t)
	}

	a, b := xs[0].(int64), xs[1].(int64)
	ua, ub := uint64(a), uint64(b)
	var r int64
	switch op {
	case ir.OpAdd: r = a + b
	case ir.OpSub: r = a - b
	case ir.OpMul: r = a * b
	case ir.OpAnd: r = a & b
	case ir.OpOr: r = a | b
	case ir.OpXor: r = a ^ b
	case ir.OpShl: r = a << (ub & 63)
	case ir.OpShr:
		if t.Signed { r = a >> (ub & 63) } else { r = int64(ua >> (ub & 63)) }
	case ir.OpDiv, ir.OpRem:
		if b == 0 { return nil, fmt.Errorf("%w: integer division by zero", ErrTrap) }
		switch {
		case t.Signed && op == ir.OpDiv: r = a / b
		case t.Signed: r = a % b
		case op == ir.OpDiv: r = int64(ua / ub)
		default: r = int64(ua % ub)
		}
	default:
		return nil, fmt.Errorf("%w: %s on %s", ErrTrap, op, t)
	}
	return t.Wrap(r), nil
}
