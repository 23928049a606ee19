package codegen

import (
	"fmt"

	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/util"
)

type IntrinsicID int

const (
	IntrinSqrt IntrinsicID = iota
	IntrinFabs
	intrinCount
)

var intrinNames = [intrinCount]string{
	IntrinSqrt: "sqrt",
	IntrinFabs: "fabs",
}

func (id IntrinsicID) String() string {
	if id >= 0 && id < intrinCount { return intrinNames[id] }
	return fmt.Sprintf("intrinsic(%d)", int(id))
}

type intrinKey struct {
	id       IntrinsicID
	ty       string
	external bool
}

// Mangle renders an IR type as an intrinsic name suffix: f32, v3f32.
func Mangle(t *ir.Type) string {
	if t.IsVector() { return fmt.Sprintf("v%d%s", t.Len, Mangle(t.Elem)) }
	return t.String()
}

func (s *SISD) PreferExternals() bool  { return s.cfg.IsFeatureEnabled(config.FeatPreferExternals) }
func (s *SISD) PreferScalarCode() bool { return s.cfg.IsFeatureEnabled(config.FeatPreferScalar) }

// Intrin returns the single-precision scalar instance of id.
func (s *SISD) Intrin(id IntrinsicID) *ir.Func { return s.IntrinOf(id, ir.F32) }

// IntrinOf returns the declaration of id instantiated at ty, declaring it on
// first use. The same key always yields the same *ir.Func.
func (s *SISD) IntrinOf(id IntrinsicID, ty *ir.Type) *ir.Func {
	key := intrinKey{id: id, ty: ty.String()}
	if f, ok := s.intrins[key]; ok { return f }
	name := "llvm." + id.String() + "." + Mangle(ty)
	f := s.mod.FindFunc(name)
	if f == nil {
		f = s.mod.DeclareFunc(name, ty, ir.NewParam("x", ty))
		f.Intrinsic = true
	}
	s.intrins[key] = f
	return f
}

// external returns the precompiled runtime routine for a scalar instance.
func (s *SISD) external(id IntrinsicID, ty *ir.Type) *ir.Func {
	key := intrinKey{id: id, ty: ty.String(), external: true}
	if f, ok := s.intrins[key]; ok { return f }
	name := "sasl_" + id.String() + "_" + Mangle(ty)
	f := s.mod.FindFunc(name)
	if f == nil {
		f = s.mod.DeclareFunc(name, ty, ir.NewParam("x", ty))
		f.CCompatible = true
	}
	s.intrins[key] = f
	return f
}

func (s *SISD) callRaw(f *ir.Func, args ...ir.Value) ir.Value {
	instr := &ir.Instruction{Op: ir.OpCall, Typ: f.ReturnType, Args: append([]ir.Value{f.Ref()}, args...)}
	if !f.ReturnType.IsVoid() { instr.Result = s.newTemp(f.ReturnType) }
	s.addInstr(instr)
	if instr.Result == nil { return nil }
	return instr.Result
}

// perLane applies fn to every lane of x and reassembles the vector.
func (s *SISD) perLane(x ir.Value, fn func(ir.Value) ir.Value) ir.Value {
	if !x.Type().IsVector() { return fn(x) }
	lanes := make([]ir.Value, x.Type().Len)
	for i := range lanes {
		lanes[i] = fn(s.extract(x, i))
	}
	return s.build(x.Type(), lanes)
}

// unaryMath lowers a float intrinsic, trying in order: the external
// routine, a scalar loop over lanes, the native instruction.
func (s *SISD) unaryMath(id IntrinsicID, v Value) Value {
	ty := v.Type()
	if !ty.Scalar.IsFloat() || !(ty.IsScalar() || ty.IsVector()) { util.ContractViolation("%s of %s", id, ty) }
	x := s.Load(v)
	lane := x.Type().Scalar()
	var res ir.Value
	switch {
	case s.PreferExternals():
		ext := s.external(id, lane)
		res = s.perLane(x, func(l ir.Value) ir.Value { return s.callRaw(ext, l) })
	case s.PreferScalarCode() && ty.IsVector():
		scalar := s.IntrinOf(id, lane)
		res = s.perLane(x, func(l ir.Value) ir.Value { return s.callRaw(scalar, l) })
	default:
		res = s.callRaw(s.IntrinOf(id, x.Type()), x)
	}
	return s.value(ty, res)
}

func (s *SISD) EmitSqrt(v Value) Value { return s.unaryMath(IntrinSqrt, v) }

func (s *SISD) EmitAbs(v Value) Value {
	if v.Type().Scalar.IsFloat() { return s.unaryMath(IntrinFabs, v) }
	if !v.Type().Scalar.IsSigned() { return v }
	neg := s.compare(v, s.NullValueBT(v.Type(), ABILLVM), ir.OpCLt)
	return s.EmitCondExpr(neg, s.EmitNeg(v), v)
}

// IsIntrinsicName reports whether name is a builtin the call lowering handles.
func IsIntrinsicName(name string) bool {
	switch name {
	case "sqrt", "abs", "dot", "cross", "mul":
		return true
	}
	return false
}

// EmitBuiltin dispatches a builtin call by name.
func (s *SISD) EmitBuiltin(name string, args []Value) Value {
	want := map[string]int{"sqrt": 1, "abs": 1, "dot": 2, "cross": 2, "mul": 2}
	if n, ok := want[name]; !ok || n != len(args) { util.Unimplemented("builtin %s/%d", name, len(args)) }
	switch name {
	case "sqrt": return s.EmitSqrt(args[0])
	case "abs": return s.EmitAbs(args[0])
	case "dot": return s.EmitDot(args[0], args[1])
	case "cross": return s.EmitCross(args[0], args[1])
	}
	return s.EmitMul(args[0], args[1])
}
