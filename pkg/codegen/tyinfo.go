package codegen

import (
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

// TyInfo maps one semantic type to its IR layout. The layout for each ABI is
// computed on first use and kept for the lifetime of the service.
type TyInfo struct {
	ty     *syntax.Type
	layout [abiCount]*ir.Type
}

func (t *TyInfo) Type() *syntax.Type { return t.ty }

// IRType returns the representation of the type under abi.
func (t *TyInfo) IRType(abi ABI) *ir.Type {
	if abi == ABIVectorize { util.Unimplemented("vectorized layout of %s in SISD", t.ty) }
	if abi <= ABIUnknown || abi >= abiCount { util.ContractViolation("layout of %s under %s abi", t.ty, abi) }
	if t.layout[abi] == nil {
		t.layout[abi] = layoutOf(t.ty, abi)
	}
	return t.layout[abi]
}

func scalarIRType(k syntax.ScalarKind, abi ABI) *ir.Type {
	switch {
	case k.IsBool():
		if abi == ABIC { return ir.U8 }
		return ir.Bool
	case k.IsInt(): return ir.IntType(k.Bits(), k.IsSigned())
	case k.IsFloat(): return ir.FloatType(k.Bits())
	}
	util.Unimplemented("scalar kind %s", k)
	return nil
}

// layoutOf: ABILLVM keeps vectors in registers and matrices as arrays of row
// vectors; ABIC stores everything as plain arrays and structs.
func layoutOf(ty *syntax.Type, abi ABI) *ir.Type {
	switch ty.Kind {
	case syntax.TYPE_VOID: return ir.Void
	case syntax.TYPE_SCALAR: return scalarIRType(ty.Scalar, abi)
	case syntax.TYPE_VECTOR:
		lane := scalarIRType(ty.Scalar, abi)
		if abi == ABIC { return ir.ArrayOf(lane, ty.Len) }
		return ir.VectorOf(lane, ty.Len)
	case syntax.TYPE_MATRIX:
		return ir.ArrayOf(layoutOf(ty.RowType(), abi), ty.Rows)
	case syntax.TYPE_STRUCT:
		fields := make([]*ir.Type, len(ty.Fields))
		for i, f := range ty.Fields {
			fields[i] = layoutOf(f.Typ, abi)
		}
		return ir.StructOf(fields...)
	}
	util.Unimplemented("layout of type kind %d", ty.Kind)
	return nil
}

func (s *SISD) CreateTyInfo(ty *syntax.Type) *TyInfo {
	if ty == nil { util.ContractViolation("nil type") }
	key := ty.String()
	if tyi, ok := s.tyinfos[key]; ok { return tyi }
	tyi := &TyInfo{ty: ty}
	s.tyinfos[key] = tyi
	return tyi
}

func (s *SISD) MemberTyInfo(agg *TyInfo, index int) *TyInfo {
	m := agg.ty.Member(index)
	if m == nil || index >= agg.ty.Count() { util.ContractViolation("%s has no member %d", agg.ty, index) }
	return s.CreateTyInfo(m)
}

// NodeContext is the codegen state cached for one syntax node.
type NodeContext struct {
	Val   Value
	Ty    *TyInfo
	Fn    *Function
	Block InsertPoint
}

func (s *SISD) NodeCtxt(node *syntax.Node, createIfNeed bool) *NodeContext {
	if ctxt, ok := s.ctxts[node]; ok { return ctxt }
	if !createIfNeed { return nil }
	ctxt := &NodeContext{}
	s.ctxts[node] = ctxt
	return ctxt
}
