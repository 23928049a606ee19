package codegen

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/interp"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

var (
	tInt    = syntax.TypeInt
	tFloat  = syntax.TypeFloat
	tFloat3 = syntax.TypeFloat3
	tFloat4 = syntax.TypeFloat4
)

type harness struct {
	t   *testing.T
	cg  *SISD
	mod *ir.Module
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	mod := ir.NewModule(t.Name())
	return &harness{t: t, cg: New(cfg, mod), mod: mod}
}

func params(kv ...any) []*syntax.Node {
	var out []*syntax.Node
	for i := 0; i < len(kv); i += 2 {
		out = append(out, syntax.NewParam(kv[i+1].(*syntax.Type), kv[i].(string)))
	}
	return out
}

// define emits one function body; fatal errors fail the test.
func (h *harness) define(decl *syntax.Node, body func(fn Function)) Function {
	h.t.Helper()
	var fn Function
	err := func() (err error) {
		defer util.Recover(&err)
		f := h.cg.FetchFunction(decl)
		h.cg.PushFn(f)
		h.cg.NewBlock("entry", true)
		body(f)
		fn = h.cg.EndFnDecl()
		return nil
	}()
	if err != nil { h.t.Fatalf("%s: %v", decl.Data.(syntax.FuncDeclNode).Name, err) }
	return fn
}

func (h *harness) fn(name string, ret *syntax.Type, ps []*syntax.Node, body func(fn Function)) Function {
	h.t.Helper()
	return h.define(syntax.NewFuncDecl(name, ret, ps, nil, false), body)
}

func (h *harness) call(name string, args ...any) any {
	h.t.Helper()
	res, err := interp.New(h.mod).Call(name, args...)
	if err != nil { h.t.Fatalf("%s: %v", name, err) }
	return res
}

func (h *harness) ret(v Value) { h.cg.EmitReturnValue(v, ABIUnknown) }

func (h *harness) tyi(ty *syntax.Type) *TyInfo { return h.cg.CreateTyInfo(ty) }

func fatal(t *testing.T, kind util.FatalKind, fn func()) {
	t.Helper()
	var err error
	func() {
		defer util.Recover(&err)
		fn()
	}()
	if !util.IsFatal(err, kind) { t.Errorf("got %v, want %s", err, kind) }
}

func vec(xs ...float64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func TestDotAndCross(t *testing.T) {
	h := newHarness(t, nil)
	h.fn("dot3", tFloat, params("a", tFloat3, "b", tFloat3), func(fn Function) {
		h.ret(h.cg.EmitDot(fn.Arg(0), fn.Arg(1)))
	})
	h.fn("cross3", tFloat3, params("a", tFloat3, "b", tFloat3), func(fn Function) {
		h.ret(h.cg.EmitCross(fn.Arg(0), fn.Arg(1)))
	})
	h.fn("mv", syntax.TypeFloat2, params("m", syntax.Matrix(syntax.SCALAR_FLOAT, 2, 2), "v", syntax.TypeFloat2), func(fn Function) {
		h.ret(h.cg.EmitMul(fn.Arg(0), fn.Arg(1)))
	})

	if got := h.call("dot3", vec(1, 2, 3), vec(4, 5, 6)); got != 32.0 { t.Errorf("dot3 = %v, want 32", got) }
	if diff := cmp.Diff(vec(0, 0, 1), h.call("cross3", vec(1, 0, 0), vec(0, 1, 0))); diff != "" {
		t.Errorf("cross3 (-want +got):\n%s", diff)
	}
	m := []any{vec(1, 2), vec(3, 4)}
	if diff := cmp.Diff(vec(3, 7), h.call("mv", m, vec(1, 1))); diff != "" {
		t.Errorf("mv (-want +got):\n%s", diff)
	}

	fatal(t, util.FatalContract, func() {
		h.cg.EmitCross(h.cg.NullValueBT(tFloat4, ABILLVM), h.cg.NullValueBT(tFloat4, ABILLVM))
	})
}

func TestSwitchFallsToDefault(t *testing.T) {
	h := newHarness(t, nil)
	h.fn("pick", tInt, params("x", tInt), func(fn Function) {
		cg := h.cg
		zero, one := cg.NewBlock("zero", false), cg.NewBlock("one", false)
		def := cg.NewBlock("default", false)
		cg.SwitchTo(fn.Arg(0), []SwitchCase{
			{Value: ConstantScalar(cg, 0, h.tyi(tInt)), Block: zero},
			{Value: ConstantScalar(cg, 1, h.tyi(tInt)), Block: one},
		}, def)
		for ip, v := range map[InsertPoint]int{zero: 10, one: 30, def: -1} {
			cg.SetInsertPoint(ip)
			h.ret(ConstantScalar(cg, v, h.tyi(tInt)))
		}
	})
	for in, want := range map[int]int64{0: 10, 1: 30, 2: -1, -5: -1} {
		if got := h.call("pick", in); got != want { t.Errorf("pick(%d) = %v, want %d", in, got, want) }
	}
}

func TestFunctionContextStack(t *testing.T) {
	h := newHarness(t, nil)
	cg := h.cg
	if cg.InFunction() { t.Fatal("fresh service is inside a function") }
	fatal(t, util.FatalContract, cg.PopFn)
	fatal(t, util.FatalContract, func() { cg.Fn() })

	outerDecl := syntax.NewFuncDecl("outer", nil, nil, nil, false)
	h.define(outerDecl, func(outer Function) {
		ip := cg.InsertPoint()
		inner := cg.FetchFunction(syntax.NewFuncDecl("inner", nil, nil, nil, false))
		cg.PushFn(inner)
		if cg.InsertPoint().Valid() { t.Error("function without blocks has an insert point") }
		cg.NewBlock("entry", true)
		cg.EmitReturn()
		cg.EndFnDecl()

		if cg.InsertPoint() != ip { t.Error("insert point not restored by pop") }
		if cg.Fn().Fn != outer.Fn { t.Error("outer function not active after pop") }
		cg.EmitReturn()
	})
	if cg.InFunction() { t.Error("stack not empty after the outer function ended") }
	if cg.FetchFunction(outerDecl).Fn != h.mod.FindFunc("outer") { t.Error("FetchFunction declared outer twice") }
}

func TestIntrinsicCache(t *testing.T) {
	h := newHarness(t, nil)
	a, b := h.cg.Intrin(IntrinSqrt), h.cg.Intrin(IntrinSqrt)
	if a != b { t.Error("Intrin returned two declarations for one key") }
	if a.Name != "llvm.sqrt.f32" || !a.Intrinsic { t.Errorf("got %s (intrinsic %v)", a.Name, a.Intrinsic) }
	v := h.cg.IntrinOf(IntrinSqrt, ir.VectorOf(ir.F32, 3))
	if v.Name != "llvm.sqrt.v3f32" || v == a { t.Errorf("vector instance %s", v.Name) }
	if New(nil, h.mod).Intrin(IntrinSqrt) != a { t.Error("second service redeclared an existing intrinsic") }
	if got := IntrinsicID(7).String(); got != "intrinsic(7)" { t.Errorf("unknown id renders as %q", got) }
}

func TestMathLowering(t *testing.T) {
	tests := []struct {
		name     string
		feat     config.Feature
		declared []string
		absent   []string
	}{
		{"native", -1, []string{"llvm.sqrt.f32", "llvm.fabs.v3f32"}, []string{"sasl_sqrt_f32"}},
		{"externals", config.FeatPreferExternals, []string{"sasl_sqrt_f32", "sasl_fabs_f32"}, []string{"llvm.sqrt.f32"}},
		{"scalar", config.FeatPreferScalar, []string{"llvm.fabs.f32"}, []string{"llvm.fabs.v3f32"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			if tt.feat >= 0 { cfg.SetFeature(tt.feat, true) }
			h := newHarness(t, cfg)
			h.fn("length3", tFloat, params("v", tFloat3), func(fn Function) {
				h.ret(h.cg.EmitSqrt(h.cg.EmitDot(fn.Arg(0), fn.Arg(0))))
			})
			h.fn("abs3", tFloat3, params("v", tFloat3), func(fn Function) {
				h.ret(h.cg.EmitAbs(fn.Arg(0)))
			})
			if got := h.call("length3", vec(3, 4, 0)); got != 5.0 { t.Errorf("length3 = %v, want 5", got) }
			if diff := cmp.Diff(vec(1, 0, 2.5), h.call("abs3", vec(-1, 0, 2.5))); diff != "" {
				t.Errorf("abs3 (-want +got):\n%s", diff)
			}
			for _, name := range tt.declared {
				if h.mod.FindFunc(name) == nil { t.Errorf("%s not declared", name) }
			}
			for _, name := range tt.absent {
				if h.mod.FindFunc(name) != nil { t.Errorf("%s declared", name) }
			}
		})
	}
}

func TestIntegerAbs(t *testing.T) {
	h := newHarness(t, nil)
	h.fn("iabs", tInt, params("x", tInt), func(fn Function) { h.ret(h.cg.EmitAbs(fn.Arg(0))) })
	for in, want := range map[int]int64{-7: 7, 0: 0, 9: 9} {
		if got := h.call("iabs", in); got != want { t.Errorf("iabs(%d) = %v", in, got) }
	}
	if len(h.mod.SortedFuncs()) != 1 { t.Error("integer abs declared an intrinsic") }
}

func TestWriteMask(t *testing.T) {
	h := newHarness(t, nil)
	h.fn("masked", tFloat4, nil, func(fn Function) {
		cg := h.cg
		v := cg.CreateVariableBT(tFloat4, ABILLVM, "v")
		cg.Store(v, ConstantVector(cg, tFloat4, ABILLVM, 1.0, 2, 3, 4))
		cg.Store(cg.EmitWriteMask(v, SwizzleMask("yw")), ConstantVector(cg, syntax.TypeFloat2, ABILLVM, 9.0, 8))

		wz := cg.EmitExtractElemMask(v, SwizzleMask("wz"))
		if !wz.Storable() { t.Error("swizzle of a variable is not storable") }
		cg.Store(cg.EmitWriteMask(wz, SwizzleMask("y")), ConstantScalar(cg, 7.0, h.tyi(tFloat)))

		fatal(t, util.FatalContract, func() { cg.EmitWriteMask(v, SwizzleMask("xx")) })
		fatal(t, util.FatalContract, func() { cg.EmitWriteMask(wz, SwizzleMask("z")) })
		v3 := cg.CreateVariableBT(tFloat3, ABILLVM, "v3")
		fatal(t, util.FatalContract, func() { cg.EmitWriteMask(v3, SwizzleMask("xw")) })
		fatal(t, util.FatalContract, func() { cg.EmitExtractElemMask(cg.NullValueBT(tFloat3, ABILLVM), SwizzleMask("w")) })
		h.ret(v)
	})
	if diff := cmp.Diff(vec(1, 9, 7, 8), h.call("masked")); diff != "" {
		t.Errorf("masked (-want +got):\n%s", diff)
	}
}

func TestSwizzleReadsRepeatLanes(t *testing.T) {
	h := newHarness(t, nil)
	h.fn("sw", tFloat4, params("v", tFloat3), func(fn Function) {
		h.ret(h.cg.EmitExtractElemMask(fn.Arg(0), SwizzleMask("zzxy")))
	})
	if diff := cmp.Diff(vec(3, 3, 1, 2), h.call("sw", vec(1, 2, 3))); diff != "" {
		t.Errorf("sw (-want +got):\n%s", diff)
	}
}

func TestStoreThroughElementRef(t *testing.T) {
	h := newHarness(t, nil)
	int3 := syntax.Vector(syntax.SCALAR_SINT32, 3)
	h.fn("poke", int3, params("x", tInt), func(fn Function) {
		cg := h.cg
		v := cg.CreateVariableBT(int3, ABILLVM, "v")
		cg.Store(v, cg.NullValueBT(int3, ABILLVM))
		cg.Store(cg.EmitExtractRefAt(v, 2), fn.Arg(0))
		cg.Store(cg.EmitExtractRef(v, ConstantScalar(cg, 0, h.tyi(tInt))), ConstantScalar(cg, -4, h.tyi(tInt)))
		h.ret(v)
	})
	h.fn("peek", tInt, params("x", tInt), func(fn Function) {
		cg := h.cg
		v := cg.CreateVariableBT(int3, ABILLVM, "v")
		cg.Store(v, cg.NullValueBT(int3, ABILLVM))
		lane := cg.EmitExtractElemAt(v, 1)
		if !lane.Storable() { t.Error("lane of a variable is not a reference") }
		cg.Store(lane, fn.Arg(0))
		h.ret(cg.EmitExtractValAt(v, 1))
	})
	if diff := cmp.Diff([]any{int64(-4), int64(0), int64(7)}, h.call("poke", 7)); diff != "" {
		t.Errorf("poke (-want +got):\n%s", diff)
	}
	if got := h.call("peek", 11); got != int64(11) { t.Errorf("peek = %v, want 11", got) }
}

func TestCasts(t *testing.T) {
	h := newHarness(t, nil)
	u8 := syntax.Scalar(syntax.SCALAR_UINT8)
	h.fn("roundtrip", tInt, params("x", tInt), func(fn Function) {
		h.ret(h.cg.CastInts(h.cg.CastInts(fn.Arg(0), h.tyi(u8)), h.tyi(tInt)))
	})
	h.fn("f2i", tInt, params("x", tFloat), func(fn Function) { h.ret(h.cg.CastF2I(fn.Arg(0), h.tyi(tInt))) })
	h.fn("i2f", tFloat, params("x", tInt), func(fn Function) { h.ret(h.cg.CastI2F(fn.Arg(0), h.tyi(tFloat))) })
	h.fn("f2b", syntax.TypeBool, params("x", tFloat), func(fn Function) { h.ret(h.cg.CastF2B(fn.Arg(0))) })
	h.fn("b2f", tFloat, params("x", syntax.TypeBool), func(fn Function) { h.ret(h.cg.EmitCast(fn.Arg(0), h.tyi(tFloat))) })

	tests := []struct {
		fn   string
		in   any
		want any
	}{
		{"roundtrip", -1, int64(255)},
		{"roundtrip", 300, int64(44)},
		{"f2i", -2.75, int64(-2)},
		{"f2i", 2.75, int64(2)},
		{"i2f", 3, 3.0},
		{"f2b", 0.5, int64(1)},
		{"f2b", 0.0, int64(0)},
		{"b2f", true, 1.0},
	}
	for _, tt := range tests {
		if got := h.call(tt.fn, tt.in); got != tt.want { t.Errorf("%s(%v) = %v, want %v", tt.fn, tt.in, got, tt.want) }
	}

	h.fn("bad", nil, nil, func(fn Function) {
		fatal(t, util.FatalContract, func() { h.cg.CastInts(ConstantScalar(h.cg, 1.0, h.tyi(tFloat)), h.tyi(tInt)) })
		fatal(t, util.FatalContract, func() { h.cg.CastI2F(h.cg.NullValueBT(tFloat3, ABILLVM), h.tyi(tFloat)) })
		h.cg.EmitReturn()
	})
}

func TestIntegralRoundTrip(t *testing.T) {
	tests := []struct {
		kind     syntax.ScalarKind
		min, max Literal
		want     [2]any
	}{
		{syntax.SCALAR_SINT8, LiteralOf(int8(math.MinInt8)), LiteralOf(int8(math.MaxInt8)), [2]any{int64(math.MinInt8), int64(math.MaxInt8)}},
		{syntax.SCALAR_UINT8, LiteralOf(uint8(0)), LiteralOf(uint8(math.MaxUint8)), [2]any{int64(0), int64(math.MaxUint8)}},
		{syntax.SCALAR_SINT16, LiteralOf(int16(math.MinInt16)), LiteralOf(int16(math.MaxInt16)), [2]any{int64(math.MinInt16), int64(math.MaxInt16)}},
		{syntax.SCALAR_UINT16, LiteralOf(uint16(0)), LiteralOf(uint16(math.MaxUint16)), [2]any{int64(0), int64(math.MaxUint16)}},
		{syntax.SCALAR_SINT32, LiteralOf(int32(math.MinInt32)), LiteralOf(int32(math.MaxInt32)), [2]any{int64(math.MinInt32), int64(math.MaxInt32)}},
		{syntax.SCALAR_UINT32, LiteralOf(uint32(0)), LiteralOf(uint32(math.MaxUint32)), [2]any{int64(0), int64(math.MaxUint32)}},
		{syntax.SCALAR_SINT64, LiteralOf(int64(math.MinInt64)), LiteralOf(int64(math.MaxInt64)), [2]any{int64(math.MinInt64), int64(math.MaxInt64)}},
		{syntax.SCALAR_UINT64, LiteralOf(uint64(0)), LiteralOf(uint64(math.MaxUint64)), [2]any{uint64(0), uint64(math.MaxUint64)}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			h := newHarness(t, nil)
			ty := syntax.Scalar(tt.kind)
			flipped := syntax.Scalar(tt.kind + syntax.SCALAR_UINT8 - syntax.SCALAR_SINT8)
			if !tt.kind.IsSigned() { flipped = syntax.Scalar(tt.kind - syntax.SCALAR_UINT8 + syntax.SCALAR_SINT8) }
			for i, lit := range []Literal{tt.min, tt.max} {
				name := []string{"lo", "hi"}[i]
				h.fn(name, ty, nil, func(fn Function) {
					c := h.cg.CreateConstantScalar(lit, h.tyi(ty))
					h.ret(h.cg.CastInts(h.cg.CastInts(c, h.tyi(flipped)), h.tyi(ty)))
				})
				if got := h.call(name); got != tt.want[i] { t.Errorf("%s = %v (%T), want %v", name, got, got, tt.want[i]) }
			}
		})
	}
}

func TestIntFloatRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.fn("fi", tInt, params("x", tInt), func(fn Function) {
		h.ret(h.cg.CastF2I(h.cg.CastI2F(fn.Arg(0), h.tyi(tFloat)), h.tyi(tInt)))
	})
	for _, in := range []int{0, 1, -1, 123456, 1 << 24, -(1 << 24), 1 << 30} {
		if got := h.call("fi", in); got != int64(in) { t.Errorf("fi(%d) = %v", in, got) }
	}
}

func TestMatrixProducts(t *testing.T) {
	h := newHarness(t, nil)
	f2x3, f3x2 := syntax.Matrix(syntax.SCALAR_FLOAT, 2, 3), syntax.Matrix(syntax.SCALAR_FLOAT, 3, 2)
	h.fn("mm", syntax.Matrix(syntax.SCALAR_FLOAT, 2, 2), params("a", f2x3, "b", f3x2), func(fn Function) {
		h.ret(h.cg.EmitMulMM(fn.Arg(0), fn.Arg(1)))
	})
	h.fn("sm", f2x3, params("k", tFloat, "m", f2x3), func(fn Function) {
		h.ret(h.cg.EmitMulSM(fn.Arg(0), fn.Arg(1)))
	})
	h.fn("ms", f2x3, params("k", tFloat, "m", f2x3), func(fn Function) {
		h.ret(h.cg.EmitMul(fn.Arg(1), fn.Arg(0)))
	})
	h.fn("vm", tFloat3, params("v", syntax.TypeFloat2, "m", f2x3), func(fn Function) {
		h.ret(h.cg.EmitMulVM(fn.Arg(0), fn.Arg(1)))
	})
	h.fn("col", syntax.TypeFloat2, params("m", f2x3), func(fn Function) {
		h.ret(h.cg.EmitExtractCol(fn.Arg(0), 2))
	})

	a := []any{vec(1, 2, 3), vec(4, 5, 6)}
	b := []any{vec(7, 8), vec(9, 10), vec(11, 12)}
	tests := []struct {
		fn   string
		args []any
		want any
	}{
		{"mm", []any{a, b}, []any{vec(58, 64), vec(139, 154)}},
		{"sm", []any{2.0, a}, []any{vec(2, 4, 6), vec(8, 10, 12)}},
		{"ms", []any{0.5, a}, []any{vec(0.5, 1, 1.5), vec(2, 2.5, 3)}},
		{"vm", []any{vec(1, 1), a}, vec(5, 7, 9)},
		{"col", []any{a}, vec(3, 6)},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, h.call(tt.fn, tt.args...)); diff != "" { t.Errorf("%s (-want +got):\n%s", tt.fn, diff) }
	}

	h.fn("bad", nil, nil, func(fn Function) {
		m := h.cg.NullValueBT(f2x3, ABILLVM)
		fatal(t, util.FatalContract, func() { h.cg.EmitMulMM(m, m) })
		fatal(t, util.FatalContract, func() { h.cg.EmitMulVM(h.cg.NullValueBT(tFloat3, ABILLVM), m) })
		fatal(t, util.FatalContract, func() { h.cg.EmitExtractCol(h.cg.NullValueBT(tFloat3, ABILLVM), 0) })
		h.cg.EmitReturn()
	})
}

func TestInsertVal(t *testing.T) {
	h := newHarness(t, nil)
	h.fn("reg", tFloat3, params("v", tFloat3, "x", tFloat), func(fn Function) {
		h.ret(h.cg.EmitInsertValAt(fn.Arg(0), 1, fn.Arg(1)))
	})
	h.fn("dyn", tFloat3, params("v", tFloat3, "x", tFloat, "i", tInt), func(fn Function) {
		h.ret(h.cg.EmitInsertVal(fn.Arg(0), fn.Arg(2), fn.Arg(1)))
	})
	h.fn("ref", tFloat3, params("x", tFloat, "i", tInt), func(fn Function) {
		cg := h.cg
		v := cg.CreateVariableBT(tFloat3, ABILLVM, "v")
		cg.Store(v, ConstantVector(cg, tFloat3, ABILLVM, 1.0, 2, 3))
		if got := cg.EmitInsertVal(v, fn.Arg(1), fn.Arg(0)); !got.Storable() { t.Error("insert through a reference lost the reference") }
		cg.EmitInsertValAt(v, 0, ConstantScalar(cg, -1.0, h.tyi(tFloat)))
		h.ret(v)
	})

	tests := []struct {
		fn   string
		args []any
		want []any
	}{
		{"reg", []any{vec(1, 2, 3), 9.0}, vec(1, 9, 3)},
		{"dyn", []any{vec(1, 2, 3), 9.0, 2}, vec(1, 2, 9)},
		{"ref", []any{9.0, 2}, vec(-1, 2, 9)},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, h.call(tt.fn, tt.args...)); diff != "" { t.Errorf("%s (-want +got):\n%s", tt.fn, diff) }
	}
	if _, err := interp.New(h.mod).Call("dyn", vec(1, 2, 3), 9.0, 3); !errors.Is(err, interp.ErrTrap) { t.Errorf("dyn out of range: %v", err) }
}

func TestCondExprShapes(t *testing.T) {
	h := newHarness(t, nil)
	sel := h.fn("sel", tFloat, params("c", syntax.TypeBool, "a", tFloat, "b", tFloat), func(fn Function) {
		h.ret(h.cg.EmitCondExpr(fn.Arg(0), fn.Arg(1), fn.Arg(2)))
	})
	phi := h.fn("phi", tFloat3, params("c", syntax.TypeBool, "a", tFloat3, "b", tFloat3), func(fn Function) {
		h.ret(h.cg.EmitCondExpr(fn.Arg(0), fn.Arg(1), fn.Arg(2)))
	})

	if got := h.call("sel", true, 1.0, 2.0); got != 1.0 { t.Errorf("sel = %v", got) }
	if diff := cmp.Diff(vec(4, 5, 6), h.call("phi", false, vec(1, 2, 3), vec(4, 5, 6))); diff != "" {
		t.Errorf("phi (-want +got):\n%s", diff)
	}
	if n := len(sel.Fn.Blocks); n != 1 { t.Errorf("scalar select used %d blocks", n) }
	if !hasOp(sel.Fn, ir.OpSelect) || hasOp(sel.Fn, ir.OpPhi) { t.Error("scalar select not lowered to select") }
	if !hasOp(phi.Fn, ir.OpPhi) { t.Error("vector arms under a scalar condition not merged with a phi") }

	h.fn("bad", nil, nil, func(fn Function) {
		one := ConstantScalar(h.cg, 1.0, h.tyi(tFloat))
		fatal(t, util.FatalContract, func() { h.cg.EmitCondExpr(one, one, one) })
		h.cg.EmitReturn()
	})
}

func hasOp(f *ir.Func, op ir.Op) bool {
	for _, b := range f.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op == op { return true }
		}
	}
	return false
}

func TestCleanEmptyBlocks(t *testing.T) {
	h := newHarness(t, nil)
	fn := h.fn("f", nil, nil, func(fn Function) {
		cg := h.cg
		cg.NewBlock("a", false)
		cg.NewBlock("b", false)
		exit := cg.NewBlock("exit", false)
		cg.JumpTo(exit)
		cg.CleanEmptyBlocks()
		cg.SetInsertPoint(exit)
		cg.EmitReturn()
	})
	var labels []string
	for _, b := range fn.Fn.Blocks {
		labels = append(labels, b.Label)
	}
	if diff := cmp.Diff([]string{"entry", "exit"}, labels); diff != "" {
		t.Errorf("blocks (-want +got):\n%s", diff)
	}
}

func TestTerminatedBlockKeepsTerminator(t *testing.T) {
	h := newHarness(t, nil)
	fn := h.fn("f", tInt, nil, func(fn Function) {
		h.ret(ConstantScalar(h.cg, 1, h.tyi(tInt)))
		after := h.cg.NewBlock("after", false)
		h.cg.JumpTo(after)
		h.cg.SetInsertPoint(after)
		h.ret(ConstantScalar(h.cg, 2, h.tyi(tInt)))
	})
	if n := len(fn.Fn.Entry().Instructions); n != 1 { t.Errorf("entry has %d instructions, want 1", n) }
	if got := h.call("f"); got != int64(1) { t.Errorf("f = %v, want 1", got) }
}

func TestConstantFolding(t *testing.T) {
	h := newHarness(t, nil)
	cg := h.cg
	u8, i8 := h.tyi(syntax.Scalar(syntax.SCALAR_UINT8)), h.tyi(syntax.Scalar(syntax.SCALAR_SINT8))

	tests := []struct {
		name string
		got  ir.Value
		want ir.Value
	}{
		{"int to ubyte", ConstantScalar(cg, -1, u8).Raw(), ir.NewConst(ir.U8, 255)},
		{"ubyte to sbyte", ConstantScalar(cg, uint8(255), i8).Raw(), ir.NewConst(ir.I8, -1)},
		{"double to float", ConstantScalar(cg, 1.1, h.tyi(tFloat)).Raw(), ir.NewFloat(ir.F32, float64(float32(1.1)))},
		{"int to float", ConstantScalar(cg, 3, h.tyi(tFloat)).Raw(), ir.NewFloat(ir.F32, 3)},
		{"float to int", ConstantScalar(cg, float32(-2.5), h.tyi(tInt)).Raw(), ir.NewConst(ir.I32, -2)},
		{"int to bool", ConstantScalar(cg, 2, h.tyi(syntax.TypeBool)).Raw(), ir.NewConst(ir.Bool, 1)},
	}
	for _, tt := range tests {
		if tt.got.String() != tt.want.String() || !tt.got.Type().Equal(tt.want.Type()) {
			t.Errorf("%s: got %s %s, want %s %s", tt.name, tt.got.Type(), tt.got, tt.want.Type(), tt.want)
		}
	}

	fatal(t, util.FatalUnimplemented, func() { cg.CreateConstantScalar(LiteralOf(1), nil) })
	fatal(t, util.FatalContract, func() { cg.CreateConstantScalar(LiteralOf(1), h.tyi(tFloat3)) })
	fatal(t, util.FatalContract, func() { ConstantVector(cg, tFloat3, ABILLVM, 1, 2) })
}

func TestSwizzleMasks(t *testing.T) {
	if got := EncodeSwizzle(1, 0); got != 0x12 { t.Errorf("EncodeSwizzle(1, 0) = %#x", got) }
	if diff := cmp.Diff([]int{3, 2, 1, 0}, DecodeSwizzle(SwizzleMask("wzyx"))); diff != "" {
		t.Errorf("decode (-want +got):\n%s", diff)
	}
	if SwizzleMask("rgba") != SwizzleMask("xyzw") { t.Error("color and position letters differ") }
	fatal(t, util.FatalUnimplemented, func() { EncodeSwizzle(0, 1, 2, 3, 0, 1, 2, 3, 0) })
	fatal(t, util.FatalUnimplemented, func() { SwizzleMask("xq") })
}

func TestTyInfoLayouts(t *testing.T) {
	h := newHarness(t, nil)
	m := h.tyi(syntax.Matrix(syntax.SCALAR_FLOAT, 3, 4))
	if m != h.tyi(syntax.Matrix(syntax.SCALAR_FLOAT, 3, 4)) { t.Error("equal types got two descriptors") }
	if got := m.IRType(ABILLVM).String(); got != "[3 x <4 x f32>]" { t.Errorf("llvm layout %s", got) }
	if got := m.IRType(ABIC).String(); got != "[3 x [4 x f32]]" { t.Errorf("c layout %s", got) }
	if got := h.tyi(syntax.TypeBool).IRType(ABIC); !got.Equal(ir.U8) { t.Errorf("c bool is %s", got) }
	fatal(t, util.FatalUnimplemented, func() { m.IRType(ABIVectorize) })

	light := syntax.Struct("Light", syntax.Field{Name: "pos", Typ: tFloat3}, syntax.Field{Name: "i", Typ: tFloat})
	if got := h.cg.MemberTyInfo(h.tyi(light), 1).Type(); !got.Equal(tFloat) { t.Errorf("member 1 is %s", got) }
	fatal(t, util.FatalContract, func() { h.cg.MemberTyInfo(h.tyi(light), 2) })
}

func TestCFunctionReturnsThroughSlot(t *testing.T) {
	h := newHarness(t, nil)
	double := h.define(syntax.NewFuncDecl("double4", tFloat4, params("v", tFloat4), nil, true), func(fn Function) {
		if !fn.FirstArgIsReturnAddress() || !fn.ArgIsRef(0) { t.Error("C function does not pass float4 by address") }
		h.ret(h.cg.EmitMul(fn.Arg(0), ConstantScalar(h.cg, 2.0, h.tyi(tFloat))))
	})
	if n := len(double.Fn.Params); n != 2 || double.Fn.Params[0].Name != "ret" { t.Errorf("physical params %v", double.Fn.Params) }
	if !double.Fn.ReturnType.IsVoid() { t.Errorf("hidden-slot function returns %s", double.Fn.ReturnType) }

	h.fn("caller", tFloat4, nil, func(fn Function) {
		fatal(t, util.FatalContract, func() { fn.ReturnAddress() })
		fatal(t, util.FatalContract, func() { h.cg.EmitCall(double, nil) })
		res := h.cg.EmitCall(double, []Value{ConstantVector(h.cg, tFloat4, ABILLVM, 1.0, 2, 3, 4)})
		if !res.Storable() { t.Error("hidden-slot result is not a reference") }
		h.ret(res)
	})

	if diff := cmp.Diff(vec(2, 4, 6, 8), h.call("caller")); diff != "" {
		t.Errorf("caller (-want +got):\n%s", diff)
	}

	ret := interp.NewSlot(vec(0, 0, 0, 0))
	h.call("double4", ret, interp.NewSlot(vec(0.5, 1, 1.5, 2)))
	got, err := ret.Load()
	if err != nil { t.Fatal(err) }
	if diff := cmp.Diff(vec(1, 2, 3, 4), got); diff != "" {
		t.Errorf("double4 via slot (-want +got):\n%s", diff)
	}
}

func TestQBEFailureCarriesIL(t *testing.T) {
	cause := errors.New("invalid instruction")
	err := qbeFailed("function $f() {\n@start\n\tbogus\n}", cause)
	if !errors.Is(err, cause) { t.Errorf("cause not wrapped: %v", err) }
	if !strings.Contains(err.Error(), "\tbogus") { t.Errorf("IL missing from %q", err) }
}

func TestParseABI(t *testing.T) {
	for in, want := range map[string]ABI{"c": ABIC, "llvm": ABILLVM, "vectorize": ABIVectorize, "x86": ABIUnknown} {
		if got := ParseABI(in); got != want { t.Errorf("ParseABI(%q) = %s, want %s", in, got, want) }
	}
}
