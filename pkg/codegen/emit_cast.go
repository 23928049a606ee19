package codegen

import (
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

// castCheck enforces the domain of a cast: both sides scalar or vectors of
// the same lane count, with the expected lane categories.
func castCheck(v Value, dest *TyInfo, src, dst func(syntax.ScalarKind) bool, name string) {
	st, dt := v.Type(), dest.ty
	if st.Lanes() != dt.Lanes() || st.IsVector() != dt.IsVector() || !src(st.Scalar) || !dst(dt.Scalar) {
		util.ContractViolation("%s from %s to %s", name, st, dt)
	}
}

func (s *SISD) convert(v Value, dest *TyInfo, op ir.Op) Value {
	x := s.Load(v)
	t := dest.IRType(ABILLVM)
	if x.Type().Equal(t) { return s.CreateValue(dest, x, KindValue, ABILLVM) }
	return s.CreateValue(dest, s.emit(op, t, x), KindValue, ABILLVM)
}

// CastInts changes width or signedness, extending by the source signedness.
func (s *SISD) CastInts(v Value, dest *TyInfo) Value {
	castCheck(v, dest, syntax.ScalarKind.IsInt, syntax.ScalarKind.IsInt, "cast_ints")
	if dest.ty.Scalar.Bits() < v.Type().Scalar.Bits() { return s.convert(v, dest, ir.OpTrunc) }
	return s.convert(v, dest, ir.OpExt)
}

func (s *SISD) CastI2F(v Value, dest *TyInfo) Value {
	castCheck(v, dest, syntax.ScalarKind.IsInt, syntax.ScalarKind.IsFloat, "cast_i2f")
	return s.convert(v, dest, ir.OpIToF)
}

// CastF2I truncates toward zero.
func (s *SISD) CastF2I(v Value, dest *TyInfo) Value {
	castCheck(v, dest, syntax.ScalarKind.IsFloat, syntax.ScalarKind.IsInt, "cast_f2i")
	return s.convert(v, dest, ir.OpFToI)
}

func (s *SISD) CastF2F(v Value, dest *TyInfo) Value {
	castCheck(v, dest, syntax.ScalarKind.IsFloat, syntax.ScalarKind.IsFloat, "cast_f2f")
	return s.convert(v, dest, ir.OpFToF)
}

func (s *SISD) nonzero(v Value) Value {
	x := s.Load(v)
	res := v.Type().WithScalar(syntax.SCALAR_BOOL)
	return s.value(res, s.emit(ir.OpCNeq, s.CreateTyInfo(res).IRType(ABILLVM), x, &ir.Zero{Typ: x.Type()}))
}

func (s *SISD) CastI2B(v Value) Value {
	if !v.Type().Scalar.IsInt() { util.ContractViolation("cast_i2b from %s", v.Type()) }
	return s.nonzero(v)
}

func (s *SISD) CastF2B(v Value) Value {
	if !v.Type().Scalar.IsFloat() { util.ContractViolation("cast_f2b from %s", v.Type()) }
	return s.nonzero(v)
}

// EmitCast picks the conversion for a builtin source and destination.
// Bool sources are widened to an integer first.
func (s *SISD) EmitCast(v Value, dest *TyInfo) Value {
	sk, dk := v.Type().Scalar, dest.ty.Scalar
	switch {
	case v.Type().Equal(dest.ty): return v
	case dk.IsBool() && sk.IsInt(): return s.CastI2B(v)
	case dk.IsBool() && sk.IsFloat(): return s.CastF2B(v)
	case sk.IsBool():
		wide := s.CreateTyInfo(v.Type().WithScalar(syntax.SCALAR_UINT32))
		return s.EmitCast(s.convert(v, wide, ir.OpExt), dest)
	case sk.IsInt() && dk.IsInt(): return s.CastInts(v, dest)
	case sk.IsInt() && dk.IsFloat(): return s.CastI2F(v, dest)
	case sk.IsFloat() && dk.IsInt(): return s.CastF2I(v, dest)
	case sk.IsFloat() && dk.IsFloat(): return s.CastF2F(v, dest)
	}
	util.Unimplemented("cast from %s to %s", v.Type(), dest.ty)
	return Value{}
}
