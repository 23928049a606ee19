package codegen

import (
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

func opFor(k syntax.ScalarKind, iop, fop ir.Op) ir.Op {
	switch {
	case k.IsFloat(): return fop
	case k.IsInt(): return iop
	}
	util.ContractViolation("arithmetic on %s", k)
	return 0
}

func (s *SISD) binop(op ir.Op, x, y ir.Value) ir.Value { return s.emit(op, x.Type(), x, y) }

// broadcast splats a scalar operand to the shape of a vector operand.
func (s *SISD) broadcast(lhs, rhs Value) (ir.Value, ir.Value, *syntax.Type) {
	lt, rt := lhs.Type(), rhs.Type()
	x, y := s.Load(lhs), s.Load(rhs)
	switch {
	case lt.IsScalar() && rt.IsVector(): return s.splat(x, y.Type()), y, rt
	case lt.IsVector() && rt.IsScalar(): return x, s.splat(y, x.Type()), lt
	}
	if !lt.Equal(rt) { util.ContractViolation("operands of type %s and %s", lt, rt) }
	return x, y, lt
}

// elementwise applies op lane by lane; matrices are processed row by row.
func (s *SISD) elementwise(lhs, rhs Value, iop, fop ir.Op) Value {
	x, y, ty := s.broadcast(lhs, rhs)
	op := opFor(ty.Scalar, iop, fop)
	if ty.IsMatrix() {
		rows := make([]ir.Value, ty.Rows)
		for r := range rows {
			rows[r] = s.binop(op, s.extract(x, r), s.extract(y, r))
		}
		return s.value(ty, s.build(x.Type(), rows))
	}
	return s.value(ty, s.binop(op, x, y))
}

func (s *SISD) EmitAddSSVV(lhs, rhs Value) Value { return s.elementwise(lhs, rhs, ir.OpAdd, ir.OpAddF) }
func (s *SISD) EmitSubSSVV(lhs, rhs Value) Value { return s.elementwise(lhs, rhs, ir.OpSub, ir.OpSubF) }
func (s *SISD) EmitMulSSVV(lhs, rhs Value) Value { return s.elementwise(lhs, rhs, ir.OpMul, ir.OpMulF) }

func (s *SISD) EmitAdd(lhs, rhs Value) Value { return s.EmitAddSSVV(lhs, rhs) }
func (s *SISD) EmitSub(lhs, rhs Value) Value { return s.EmitSubSSVV(lhs, rhs) }

func (s *SISD) EmitDiv(lhs, rhs Value) Value { return s.elementwise(lhs, rhs, ir.OpDiv, ir.OpDivF) }

func (s *SISD) EmitMod(lhs, rhs Value) Value {
	if lhs.Type().Scalar.IsFloat() { util.Unimplemented("floating point remainder") }
	return s.elementwise(lhs, rhs, ir.OpRem, ir.OpRem)
}

func (s *SISD) EmitNeg(v Value) Value {
	x := s.Load(v)
	if v.Type().Scalar.IsFloat() { return s.value(v.Type(), s.emit(ir.OpNegF, x.Type(), x)) }
	return s.value(v.Type(), s.binop(opFor(v.Type().Scalar, ir.OpSub, ir.OpSubF), &ir.Zero{Typ: x.Type()}, x))
}

// EmitMul dispatches on operand shapes: same-shaped scalars and vectors
// multiply lane-wise, anything involving a matrix is a linear-algebra product.
func (s *SISD) EmitMul(lhs, rhs Value) Value {
	lt, rt := lhs.Type(), rhs.Type()
	switch {
	case lt.IsScalar() && rt.IsScalar(), lt.IsVector() && rt.IsVector():
		return s.EmitMulSSVV(lhs, rhs)
	case lt.IsScalar() && rt.IsVector(), lt.IsVector() && rt.IsScalar():
		return s.EmitMulSV(lhs, rhs)
	case lt.IsScalar() && rt.IsMatrix(), lt.IsMatrix() && rt.IsScalar():
		return s.EmitMulSM(lhs, rhs)
	case lt.IsVector() && rt.IsMatrix():
		return s.EmitMulVM(lhs, rhs)
	case lt.IsMatrix() && rt.IsVector():
		return s.EmitMulMV(lhs, rhs)
	case lt.IsMatrix() && rt.IsMatrix():
		return s.EmitMulMM(lhs, rhs)
	}
	util.ContractViolation("mul of %s and %s", lt, rt)
	return Value{}
}

func (s *SISD) EmitMulSV(lhs, rhs Value) Value {
	if lhs.Type().IsVector() { lhs, rhs = rhs, lhs }
	return s.EmitMulSSVV(lhs, rhs)
}

func (s *SISD) EmitMulSM(lhs, rhs Value) Value {
	if lhs.Type().IsMatrix() { lhs, rhs = rhs, lhs }
	ty := rhs.Type()
	k := s.Load(lhs)
	m := s.Load(rhs)
	op := opFor(ty.Scalar, ir.OpMul, ir.OpMulF)
	rows := make([]ir.Value, ty.Rows)
	for r := range rows {
		row := s.extract(m, r)
		rows[r] = s.binop(op, row, s.splat(k, row.Type()))
	}
	return s.value(ty, s.build(m.Type(), rows))
}

// vm computes the row vector v*M as a linear combination of M's rows.
func (s *SISD) vm(v, m ir.Value, ty *syntax.Type) ir.Value {
	mul := opFor(ty.Scalar, ir.OpMul, ir.OpMulF)
	add := opFor(ty.Scalar, ir.OpAdd, ir.OpAddF)
	var acc ir.Value
	for r := 0; r < ty.Rows; r++ {
		row := s.extract(m, r)
		term := s.binop(mul, row, s.splat(s.extract(v, r), row.Type()))
		if acc == nil {
			acc = term
		} else {
			acc = s.binop(add, acc, term)
		}
	}
	return acc
}

func (s *SISD) EmitMulVM(lhs, rhs Value) Value {
	ty := rhs.Type()
	if lhs.Type().Len != ty.Rows { util.ContractViolation("mul of %s and %s", lhs.Type(), ty) }
	return s.value(ty.RowType(), s.vm(s.Load(lhs), s.Load(rhs), ty))
}

func (s *SISD) EmitMulMV(lhs, rhs Value) Value {
	ty := lhs.Type()
	if rhs.Type().Len != ty.Cols { util.ContractViolation("mul of %s and %s", ty, rhs.Type()) }
	m, v := s.Load(lhs), s.Load(rhs)
	lanes := make([]ir.Value, ty.Rows)
	for r := range lanes {
		lanes[r] = s.dot(s.extract(m, r), v, ty.Scalar)
	}
	res := ty.ColType()
	return s.value(res, s.build(s.CreateTyInfo(res).IRType(ABILLVM), lanes))
}

func (s *SISD) EmitMulMM(lhs, rhs Value) Value {
	lt, rt := lhs.Type(), rhs.Type()
	if lt.Cols != rt.Rows { util.ContractViolation("mul of %s and %s", lt, rt) }
	a, b := s.Load(lhs), s.Load(rhs)
	res := syntax.Matrix(lt.Scalar, lt.Rows, rt.Cols)
	rows := make([]ir.Value, lt.Rows)
	for r := range rows {
		rows[r] = s.vm(s.extract(a, r), b, rt)
	}
	return s.value(res, s.build(s.CreateTyInfo(res).IRType(ABILLVM), rows))
}

// dot multiplies lane-wise, then sums the lanes left to right.
func (s *SISD) dot(x, y ir.Value, k syntax.ScalarKind) ir.Value {
	prod := s.binop(opFor(k, ir.OpMul, ir.OpMulF), x, y)
	add := opFor(k, ir.OpAdd, ir.OpAddF)
	sum := s.extract(prod, 0)
	for i := 1; i < x.Type().Lanes(); i++ {
		sum = s.binop(add, sum, s.extract(prod, i))
	}
	return sum
}

func (s *SISD) EmitDotVV(lhs, rhs Value) Value {
	lt := lhs.Type()
	if !lt.IsVector() || !lt.Equal(rhs.Type()) { util.ContractViolation("dot of %s and %s", lt, rhs.Type()) }
	return s.value(lt.ScalarType(), s.dot(s.Load(lhs), s.Load(rhs), lt.Scalar))
}

func (s *SISD) EmitDot(lhs, rhs Value) Value {
	if lhs.Type().IsScalar() && rhs.Type().IsScalar() { return s.EmitMulSSVV(lhs, rhs) }
	return s.EmitDotVV(lhs, rhs)
}

func (s *SISD) EmitCross(lhs, rhs Value) Value {
	ty := lhs.Type()
	if !ty.IsVector() || ty.Len != 3 || !ty.Equal(rhs.Type()) { util.ContractViolation("cross of %s and %s", ty, rhs.Type()) }
	a, b := s.Load(lhs), s.Load(rhs)
	mul := opFor(ty.Scalar, ir.OpMul, ir.OpMulF)
	sub := opFor(ty.Scalar, ir.OpSub, ir.OpSubF)
	ax, ay, az := s.extract(a, 0), s.extract(a, 1), s.extract(a, 2)
	bx, by, bz := s.extract(b, 0), s.extract(b, 1), s.extract(b, 2)
	det := func(p, q, r, t ir.Value) ir.Value { return s.binop(sub, s.binop(mul, p, q), s.binop(mul, r, t)) }
	lanes := []ir.Value{det(ay, bz, az, by), det(az, bx, ax, bz), det(ax, by, ay, bx)}
	return s.value(ty, s.build(a.Type(), lanes))
}

func (s *SISD) compare(lhs, rhs Value, op ir.Op) Value {
	x, y, ty := s.broadcast(lhs, rhs)
	if ty.IsMatrix() || ty.IsStruct() { util.ContractViolation("comparison of %s", ty) }
	res := ty.WithScalar(syntax.SCALAR_BOOL)
	return s.value(res, s.emit(op, s.CreateTyInfo(res).IRType(ABILLVM), x, y))
}

func (s *SISD) EmitCmpLT(lhs, rhs Value) Value { return s.compare(lhs, rhs, ir.OpCLt) }
func (s *SISD) EmitCmpLE(lhs, rhs Value) Value { return s.compare(lhs, rhs, ir.OpCLe) }
func (s *SISD) EmitCmpEQ(lhs, rhs Value) Value { return s.compare(lhs, rhs, ir.OpCEq) }
func (s *SISD) EmitCmpNE(lhs, rhs Value) Value { return s.compare(lhs, rhs, ir.OpCNeq) }
func (s *SISD) EmitCmpGE(lhs, rhs Value) Value { return s.compare(lhs, rhs, ir.OpCGe) }
func (s *SISD) EmitCmpGT(lhs, rhs Value) Value { return s.compare(lhs, rhs, ir.OpCGt) }

// EmitCondExpr picks a strategy from the operand shapes alone: a scalar
// condition over scalar arms is one select, a vector condition selects lane
// by lane, anything else branches and merges with a phi.
func (s *SISD) EmitCondExpr(cond, yes, no Value) Value {
	ct, ty := cond.Type(), yes.Type()
	if !ct.Scalar.IsBool() || !ty.Equal(no.Type()) { util.ContractViolation("?: over %s with arms %s and %s", ct, ty, no.Type()) }

	switch {
	case ct.IsVector():
		if !ty.IsVector() || ty.Len != ct.Len { util.ContractViolation("lane-wise ?: of %s over %s", ty, ct) }
		fallthrough
	case ct.IsScalar() && ty.IsScalar():
		y, n := s.Load(yes), s.Load(no)
		return s.value(ty, s.emit(ir.OpSelect, y.Type(), s.Load(cond), y, n))
	}

	yesIP := s.NewBlock("cond.yes", false)
	noIP := s.NewBlock("cond.no", false)
	merge := s.NewBlock("cond.merge", false)
	s.JumpCond(cond, yesIP, noIP)

	s.SetInsertPoint(yesIP)
	y := s.Load(yes)
	yesEnd := s.curBlock()
	s.JumpTo(merge)

	s.SetInsertPoint(noIP)
	n := s.Load(no)
	noEnd := s.curBlock()
	s.JumpTo(merge)

	s.SetInsertPoint(merge)
	res := s.newTemp(y.Type())
	s.addInstr(&ir.Instruction{Op: ir.OpPhi, Typ: y.Type(), Result: res, Args: []ir.Value{y, n}, Targets: []*ir.BasicBlock{yesEnd, noEnd}})
	return s.value(ty, res)
}
