// Package samples holds the built-in shader functions the tools compile
// and the tests execute. Each call to All builds fresh trees.
package samples

import (
	s "github.com/sasl-lang/sasl/pkg/syntax"
)

type Sample struct {
	Name  string
	Doc   string
	Decls []*s.Node
	Cases []Case
}

// Case is one call of a sample function. Args are Go values accepted by
// interp.Convert; Want is in the interpreter's runtime form.
type Case struct {
	Fn   string
	Args []any
	Want any
}

func vec(xs ...float64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

var (
	tInt    = s.TypeInt
	tBool   = s.TypeBool
	tFloat  = s.TypeFloat
	tFloat3 = s.TypeFloat3
	tFloat4 = s.TypeFloat4
	tBool4  = s.Vector(s.SCALAR_BOOL, 4)
	tMat4   = s.Matrix(s.SCALAR_FLOAT, 4, 4)
	tLight  = s.Struct("Light", s.Field{Name: "pos", Typ: s.TypeFloat3}, s.Field{Name: "intensity", Typ: s.TypeFloat})
)

func params(ps ...*s.Node) []*s.Node { return ps }

func fn(name string, ret *s.Type, ps []*s.Node, stmts ...*s.Node) *s.Node {
	return s.NewFuncDecl(name, ret, ps, s.NewBlock(stmts...), false)
}

func ident(t *s.Type, name string) *s.Node { return s.NewIdent(t, name) }
func num(v int64) *s.Node                 { return s.NewNumber(tInt, v) }
func flt(v float64) *s.Node               { return s.NewFloat(tFloat, v) }
func ret(e *s.Node) *s.Node               { return s.NewReturn(e) }

func bin(t *s.Type, op s.Operator, l, r *s.Node) *s.Node { return s.NewBinaryOp(t, op, l, r) }

func builtin(t *s.Type, name string, args ...*s.Node) *s.Node {
	return s.NewCall(t, name, nil, args...)
}

func Find(name string) (Sample, bool) {
	for _, smp := range All() {
		if smp.Name == name { return smp, true }
	}
	return Sample{}, false
}

func All() []Sample {
	return []Sample{
		{"dot4", "dot product of two float4", []*s.Node{
			fn("dot4", tFloat, params(s.NewParam(tFloat4, "a"), s.NewParam(tFloat4, "b")),
				ret(builtin(tFloat, "dot", ident(tFloat4, "a"), ident(tFloat4, "b")))),
		}, []Case{{"dot4", []any{[]float64{1, 2, 3, 4}, []float64{5, 6, 7, 8}}, 70.0}}},
		{"cross3", "cross product of two float3", []*s.Node{
			fn("cross3", tFloat3, params(s.NewParam(tFloat3, "a"), s.NewParam(tFloat3, "b")),
				ret(builtin(tFloat3, "cross", ident(tFloat3, "a"), ident(tFloat3, "b")))),
		}, []Case{
			{"cross3", []any{[]float64{1, 0, 0}, []float64{0, 1, 0}}, vec(0, 0, 1)},
			{"cross3", []any{[]float64{0, 1, 0}, []float64{1, 0, 0}}, vec(0, 0, -1)},
		}},
		{"transform", "row vector times a 4x4 matrix", []*s.Node{
			fn("transform", tFloat4, params(s.NewParam(tFloat4, "v"), s.NewParam(tMat4, "m")),
				ret(builtin(tFloat4, "mul", ident(tFloat4, "v"), ident(tMat4, "m")))),
		}, []Case{{"transform", []any{[]float64{1, 2, 3, 4}, [][]float64{{1, 0, 0, 0}, {0, 2, 0, 0}, {0, 0, 3, 0}, {1, 1, 1, 1}}}, vec(5, 8, 13, 4)}}},
		{"swizzle", "write mask and reversed read", []*s.Node{swizzle()}, []Case{
			{"swizzle", []any{[]float64{1, 2, 3, 4}}, vec(4, 1, 2, 2)},
		}},
		{"select", "conditional vectors, per lane and whole", []*s.Node{
			fn("pick", tFloat3, params(s.NewParam(tBool, "c"), s.NewParam(tFloat3, "a"), s.NewParam(tFloat3, "b")),
				ret(s.NewTernary(tFloat3, ident(tBool, "c"), ident(tFloat3, "a"), ident(tFloat3, "b")))),
			fn("vmin", tFloat4, params(s.NewParam(tFloat4, "a"), s.NewParam(tFloat4, "b")),
				ret(s.NewTernary(tFloat4, bin(tBool4, s.OpLess, ident(tFloat4, "a"), ident(tFloat4, "b")),
					ident(tFloat4, "a"), ident(tFloat4, "b")))),
			fn("clamp01", tFloat, params(s.NewParam(tFloat, "x")),
				ret(s.NewTernary(tFloat, bin(tBool, s.OpLess, ident(tFloat, "x"), flt(0)), flt(0),
					s.NewTernary(tFloat, bin(tBool, s.OpGreater, ident(tFloat, "x"), flt(1)), flt(1), ident(tFloat, "x"))))),
		}, []Case{
			{"pick", []any{true, []float64{1, 2, 3}, []float64{4, 5, 6}}, vec(1, 2, 3)},
			{"pick", []any{false, []float64{1, 2, 3}, []float64{4, 5, 6}}, vec(4, 5, 6)},
			{"vmin", []any{[]float64{1, 5, 3, 8}, []float64{2, 4, 3, 7}}, vec(1, 4, 3, 7)},
			{"clamp01", []any{-0.5}, 0.0},
			{"clamp01", []any{0.25}, 0.25},
			{"clamp01", []any{2.0}, 1.0},
		}},
		{"classify", "multi-way branch on an int", []*s.Node{classify()}, []Case{
			{"classify", []any{0}, int64(10)},
			{"classify", []any{1}, int64(20)},
			{"classify", []any{2}, int64(-1)},
			{"classify", []any{3}, int64(20)},
		}},
		{"sum", "loop summing 0..n-1", []*s.Node{sum()}, []Case{
			{"sum", []any{0}, int64(0)},
			{"sum", []any{5}, int64(10)},
		}},
		{"scale", "C-compatible function with a hidden return slot", scale(), []Case{
			{"scale_twice", []any{[]float64{1, 2, 3, 4}}, vec(2, 4, 6, 8)},
		}},
		{"length", "vector length through sqrt", []*s.Node{
			fn("length3", tFloat, params(s.NewParam(tFloat3, "v")),
				ret(builtin(tFloat, "sqrt", builtin(tFloat, "dot", ident(tFloat3, "v"), ident(tFloat3, "v"))))),
		}, []Case{{"length3", []any{[]float64{3, 4, 0}}, 5.0}}},
		{"abs", "absolute values of floats and ints", []*s.Node{
			fn("absdiff", tFloat, params(s.NewParam(tFloat, "a"), s.NewParam(tFloat, "b")),
				ret(builtin(tFloat, "abs", bin(tFloat, s.OpSub, ident(tFloat, "a"), ident(tFloat, "b"))))),
			fn("iabs", tInt, params(s.NewParam(tInt, "x")),
				ret(builtin(tInt, "abs", ident(tInt, "x")))),
		}, []Case{
			{"absdiff", []any{1.5, 4.0}, 2.5},
			{"iabs", []any{-7}, int64(7)},
			{"iabs", []any{7}, int64(7)},
		}},
		{"ftoi", "float to int truncation", []*s.Node{
			fn("ftoi", tInt, params(s.NewParam(tFloat, "x")),
				ret(s.NewTypeCast(ident(tFloat, "x"), tInt))),
		}, []Case{
			{"ftoi", []any{2.75}, int64(2)},
			{"ftoi", []any{-2.75}, int64(-2)},
		}},
		{"light", "struct construction and member access", []*s.Node{light()}, []Case{
			{"light", []any{[]float64{1, 3, 5}}, 7.0},
		}},
	}
}

// swizzle: r = v; r.xz = v.yx; return r.wzyx
func swizzle() *s.Node {
	v := func() *s.Node { return ident(tFloat4, "v") }
	r := func() *s.Node { return ident(tFloat4, "r") }
	return fn("swizzle", tFloat4, params(s.NewParam(tFloat4, "v")),
		s.NewVarDecl(tFloat4, "r", v()),
		s.NewAssign(s.NewSwizzle(s.TypeFloat2, r(), "xz"), s.NewSwizzle(s.TypeFloat2, v(), "yx")),
		ret(s.NewSwizzle(tFloat4, r(), "wzyx")))
}

// classify: 0 -> 10, 1 or 3 -> 20, otherwise -1
func classify() *s.Node {
	r := func() *s.Node { return ident(tInt, "r") }
	return fn("classify", tInt, params(s.NewParam(tInt, "x")),
		s.NewVarDecl(tInt, "r", nil),
		s.NewSwitch(ident(tInt, "x"), []s.CaseNode{
			{Values: []int64{0}, Body: s.NewAssign(r(), num(10))},
			{Values: []int64{1, 3}, Body: s.NewAssign(r(), num(20))},
		}, s.NewAssign(r(), num(-1))),
		ret(r()))
}

func sum() *s.Node {
	acc := func() *s.Node { return ident(tInt, "acc") }
	i := func() *s.Node { return ident(tInt, "i") }
	return fn("sum", tInt, params(s.NewParam(tInt, "n")),
		s.NewVarDecl(tInt, "acc", num(0)),
		s.NewVarDecl(tInt, "i", num(0)),
		s.NewWhile(bin(tBool, s.OpLess, i(), ident(tInt, "n")), s.NewBlock(
			s.NewAssign(acc(), bin(tInt, s.OpAdd, acc(), i())),
			s.NewAssign(i(), bin(tInt, s.OpAdd, i(), num(1))),
		)),
		ret(acc()))
}

// scale_c takes and returns float4 under the C convention; scale_twice
// calls it from the default convention.
func scale() []*s.Node {
	scaleC := s.NewFuncDecl("scale_c", tFloat4, params(s.NewParam(tFloat4, "v"), s.NewParam(tFloat, "k")),
		s.NewBlock(ret(bin(tFloat4, s.OpMul, ident(tFloat4, "v"), ident(tFloat, "k")))), true)
	twice := fn("scale_twice", tFloat4, params(s.NewParam(tFloat4, "v")),
		ret(s.NewCall(tFloat4, "scale_c", scaleC, ident(tFloat4, "v"), flt(2))))
	return []*s.Node{scaleC, twice}
}

// light builds a Light, doubles its intensity and adds pos.y.
func light() *s.Node {
	l := func() *s.Node { return ident(tLight, "l") }
	intensity := func() *s.Node { return s.NewMember(tFloat, l(), "intensity") }
	return fn("light", tFloat, params(s.NewParam(tFloat3, "p")),
		s.NewVarDecl(tLight, "l", s.NewConstructor(tLight, ident(tFloat3, "p"), flt(2))),
		s.NewAssign(intensity(), bin(tFloat, s.OpMul, intensity(), flt(2))),
		ret(bin(tFloat, s.OpAdd, intensity(),
			s.NewSwizzle(tFloat, s.NewMember(tFloat3, l(), "pos"), "y"))))
}
