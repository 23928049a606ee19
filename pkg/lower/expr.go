package lower

import (
	"github.com/sasl-lang/sasl/pkg/codegen"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

func (l *Lowerer) expr(node *syntax.Node) codegen.Value {
	if node == nil { util.ContractViolation("missing expression") }
	return l.record(node, l.lowerExpr(node))
}

func (l *Lowerer) lowerExpr(node *syntax.Node) codegen.Value {
	cg := l.cg
	switch node.Type {
	case syntax.Number:
		return codegen.ConstantScalar(cg, node.Data.(syntax.NumberNode).Value, cg.CreateTyInfo(node.Typ))
	case syntax.Float:
		return codegen.ConstantScalar(cg, node.Data.(syntax.FloatNode).Value, cg.CreateTyInfo(node.Typ))
	case syntax.Bool:
		var b int64
		if node.Data.(syntax.BoolNode).Value { b = 1 }
		return codegen.ConstantScalar(cg, b, cg.CreateTyInfo(syntax.TypeBool))
	case syntax.Ident:
		return l.lookup(node.Data.(syntax.IdentNode).Name)
	case syntax.BinaryOp:
		return l.binary(node.Data.(syntax.BinaryOpNode))
	case syntax.Call:
		return l.call(node.Data.(syntax.CallNode))
	case syntax.Constructor:
		return l.construct(node.Typ, node.Data.(syntax.ConstructorNode).Args)
	case syntax.Swizzle:
		d := node.Data.(syntax.SwizzleNode)
		return cg.EmitExtractElemMask(l.expr(d.Expr), codegen.SwizzleMask(d.Mask))
	case syntax.Member:
		d := node.Data.(syntax.MemberNode)
		base := l.expr(d.Expr)
		return cg.EmitExtractElemAt(base, fieldIndex(base.Type(), d.Field))
	case syntax.Subscript:
		d := node.Data.(syntax.SubscriptNode)
		base := l.expr(d.Expr)
		if d.Index.Type == syntax.Number { return cg.EmitExtractElemAt(base, int(d.Index.Data.(syntax.NumberNode).Value)) }
		return cg.EmitExtractElem(base, l.expr(d.Index))
	case syntax.Ternary:
		d := node.Data.(syntax.TernaryNode)
		return cg.EmitCondExpr(l.expr(d.Cond), l.expr(d.Then), l.expr(d.Else))
	case syntax.TypeCast:
		d := node.Data.(syntax.TypeCastNode)
		return cg.EmitCast(l.expr(d.Expr), cg.CreateTyInfo(d.Target))
	}
	util.Unimplemented("expression node %d", node.Type)
	return codegen.Value{}
}

func fieldIndex(t *syntax.Type, field string) int {
	i := t.FieldIndex(field)
	if i < 0 { util.ContractViolation("%s has no field '%s'", t, field) }
	return i
}

func (l *Lowerer) binary(d syntax.BinaryOpNode) codegen.Value {
	lhs, rhs := l.expr(d.Left), l.expr(d.Right)
	cg := l.cg
	switch d.Op {
	case syntax.OpAdd: return cg.EmitAdd(lhs, rhs)
	case syntax.OpSub: return cg.EmitSub(lhs, rhs)
	case syntax.OpMul: return cg.EmitMul(lhs, rhs)
	case syntax.OpDiv: return cg.EmitDiv(lhs, rhs)
	case syntax.OpMod: return cg.EmitMod(lhs, rhs)
	case syntax.OpLess: return cg.EmitCmpLT(lhs, rhs)
	case syntax.OpLessEq: return cg.EmitCmpLE(lhs, rhs)
	case syntax.OpEqual: return cg.EmitCmpEQ(lhs, rhs)
	case syntax.OpNotEqual: return cg.EmitCmpNE(lhs, rhs)
	case syntax.OpGreaterEq: return cg.EmitCmpGE(lhs, rhs)
	case syntax.OpGreater: return cg.EmitCmpGT(lhs, rhs)
	}
	util.Unimplemented("binary operator %d", d.Op)
	return codegen.Value{}
}

func (l *Lowerer) call(d syntax.CallNode) codegen.Value {
	args := make([]codegen.Value, len(d.Args))
	for i, a := range d.Args {
		args[i] = l.expr(a)
	}
	if d.Decl != nil { return l.cg.EmitCall(l.cg.FetchFunction(d.Decl), args) }
	if !codegen.IsIntrinsicName(d.Name) { util.ContractViolation("call of undeclared function '%s'", d.Name) }
	return l.cg.EmitBuiltin(d.Name, args)
}

// scalars flattens constructor arguments into lanes of kind k.
func (l *Lowerer) scalars(k syntax.ScalarKind, args []*syntax.Node) []codegen.Value {
	lane := l.cg.CreateTyInfo(syntax.Scalar(k))
	var out []codegen.Value
	for _, a := range args {
		v := l.expr(a)
		switch {
		case v.Type().IsScalar():
			out = append(out, v)
		case v.Type().IsVector():
			for i := 0; i < v.Type().Len; i++ {
				out = append(out, l.cg.EmitExtractValAt(v, i))
			}
		default:
			util.ContractViolation("%s in a vector constructor", v.Type())
		}
	}
	for i, v := range out {
		if v.Type().Scalar != k { out[i] = l.cg.EmitCast(v, lane) }
	}
	return out
}

// construct builds vectors from lanes and matrices or structs in a slot.
// A single scalar splats to every lane.
func (l *Lowerer) construct(ty *syntax.Type, args []*syntax.Node) codegen.Value {
	cg := l.cg
	switch {
	case ty.IsScalar():
		if len(args) != 1 { util.ContractViolation("%d arguments for %s", len(args), ty) }
		return cg.EmitCast(l.expr(args[0]), cg.CreateTyInfo(ty))

	case ty.IsVector():
		lanes := l.scalars(ty.Scalar, args)
		if len(lanes) == 1 {
			for len(lanes) < ty.Len {
				lanes = append(lanes, lanes[0])
			}
		}
		if len(lanes) != ty.Len { util.ContractViolation("%d lanes for %s", len(lanes), ty) }
		return cg.CreateVector(lanes, codegen.ABILLVM)

	case ty.IsMatrix():
		slot := cg.CreateVariableBT(ty, codegen.ABILLVM, "ctor")
		if len(args) == ty.Rows && args[0].Typ.IsVector() {
			for r, a := range args {
				cg.Store(cg.EmitExtractRefAt(slot, r), l.expr(a))
			}
			return slot
		}
		lanes := l.scalars(ty.Scalar, args)
		if len(lanes) != ty.Rows*ty.Cols { util.ContractViolation("%d lanes for %s", len(lanes), ty) }
		for r := 0; r < ty.Rows; r++ {
			row := cg.CreateVector(lanes[r*ty.Cols:(r+1)*ty.Cols], codegen.ABILLVM)
			cg.Store(cg.EmitExtractRefAt(slot, r), row)
		}
		return slot

	case ty.IsStruct():
		if len(args) != len(ty.Fields) { util.ContractViolation("%d arguments for %s", len(args), ty) }
		slot := cg.CreateVariableBT(ty, codegen.ABILLVM, "ctor")
		for i, a := range args {
			cg.Store(cg.EmitExtractRefAt(slot, i), l.expr(a))
		}
		return slot
	}
	util.Unimplemented("constructor of %s", ty)
	return codegen.Value{}
}

// lvalue resolves an assignable expression to a reference.
func (l *Lowerer) lvalue(node *syntax.Node) codegen.Value {
	cg := l.cg
	var v codegen.Value
	switch node.Type {
	case syntax.Ident:
		v = l.lookup(node.Data.(syntax.IdentNode).Name)
	case syntax.Swizzle:
		d := node.Data.(syntax.SwizzleNode)
		v = cg.EmitWriteMask(l.lvalue(d.Expr), codegen.SwizzleMask(d.Mask))
	case syntax.Member:
		d := node.Data.(syntax.MemberNode)
		base := l.lvalue(d.Expr)
		v = cg.EmitExtractRefAt(base, fieldIndex(base.Type(), d.Field))
	case syntax.Subscript:
		d := node.Data.(syntax.SubscriptNode)
		base := l.lvalue(d.Expr)
		if d.Index.Type == syntax.Number {
			v = cg.EmitExtractRefAt(base, int(d.Index.Data.(syntax.NumberNode).Value))
		} else {
			v = cg.EmitExtractRef(base, l.expr(d.Index))
		}
	default:
		util.ContractViolation("expression node %d is not assignable", node.Type)
	}
	if !v.Storable() { util.ContractViolation("assignment to a register value") }
	return l.record(node, v)
}
