package codegen

import (
	"bytes"

	"fortio.org/safecast"
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/util"
)

// llvmBackend prints a module as LLVM assembly. Pointers are opaque in the
// generator's IR, so they travel as i8* and are cast at every access.
type llvmBackend struct{}

func NewLLVMBackend() Backend { return &llvmBackend{} }

func (b *llvmBackend) Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	text, err := b.GenerateIR(mod)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(text), nil
}

func (b *llvmBackend) GenerateIR(mod *ir.Module) (text string, err error) {
	defer util.Recover(&err)
	g := &llvmGen{m: llir.NewModule(), funcs: make(map[*ir.Func]*llir.Func)}
	g.m.SourceFilename = mod.Name
	funcs := mod.SortedFuncs()
	for _, f := range funcs {
		g.declare(f)
	}
	for _, f := range funcs {
		if !f.IsDecl() { g.genFunc(f) }
	}
	return g.m.String(), nil
}

type pendingPhi struct {
	phi *llir.InstPhi
	src *ir.Instruction
}

type llvmGen struct {
	m      *llir.Module
	funcs  map[*ir.Func]*llir.Func
	vals   map[ir.Value]value.Value
	blocks map[*ir.BasicBlock]*llir.Block
	phis   []pendingPhi
	cur    *llir.Block
}

func length(n int) uint64 {
	l, err := safecast.Conv[uint64](n)
	if err != nil { util.Internal("llvm: length %d: %v", n, err) }
	return l
}

func (g *llvmGen) typ(t *ir.Type) types.Type {
	switch t.Kind {
	case ir.KindVoid: return types.Void
	case ir.KindBool: return types.I1
	case ir.KindInt:
		switch t.Bits {
		case 8: return types.I8
		case 16: return types.I16
		case 32: return types.I32
		}
		return types.I64
	case ir.KindFloat:
		if t.Bits == 64 { return types.Double }
		return types.Float
	case ir.KindPtr: return types.I8Ptr
	case ir.KindVector: return types.NewVector(length(t.Len), g.typ(t.Elem))
	case ir.KindArray: return types.NewArray(length(t.Len), g.typ(t.Elem))
	case ir.KindStruct:
		fields := make([]types.Type, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = g.typ(f)
		}
		return types.NewStruct(fields...)
	}
	util.Internal("llvm: type %s", t)
	return nil
}

func (g *llvmGen) declare(f *ir.Func) {
	params := make([]*llir.Param, len(f.Params))
	for i, p := range f.Params {
		params[i] = llir.NewParam(p.Name, g.typ(p.Typ))
	}
	lf := g.m.NewFunc(f.Name, g.typ(f.ReturnType), params...)
	if f.InlineHint { lf.FuncAttrs = append(lf.FuncAttrs, enum.FuncAttrInlineHint) }
	g.funcs[f] = lf
}

func (g *llvmGen) constant(v ir.Value) constant.Constant {
	t := g.typ(v.Type())
	switch v := v.(type) {
	case *ir.Const:
		if v.Typ.IsBool() { return constant.NewBool(v.Value != 0) }
		return constant.NewInt(t.(*types.IntType), v.Value)
	case *ir.FloatConst:
		return constant.NewFloat(t.(*types.FloatType), v.Value)
	case *ir.Undef:
		return constant.NewUndef(t)
	case *ir.Zero:
		switch tt := t.(type) {
		case *types.IntType: return constant.NewInt(tt, 0)
		case *types.FloatType: return constant.NewFloat(tt, 0)
		}
		return constant.NewZeroInitializer(t)
	case *ir.ConstAgg:
		elems := make([]constant.Constant, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = g.constant(e)
		}
		switch tt := t.(type) {
		case *types.VectorType: return constant.NewVector(tt, elems...)
		case *types.ArrayType: return constant.NewArray(tt, elems...)
		case *types.StructType: return constant.NewStruct(tt, elems...)
		}
	}
	util.Internal("llvm: %s is not a constant", v)
	return nil
}

func (g *llvmGen) val(v ir.Value) value.Value {
	switch v := v.(type) {
	case *ir.Temporary, *ir.Param:
		if x, ok := g.vals[v]; ok { return x }
		util.Internal("llvm: %s used before its definition", v)
	case *ir.FuncRef:
		if f, ok := g.funcs[v.Func]; ok { return f }
		util.Internal("llvm: call to %s outside the module", v.Func.Name)
	}
	return g.constant(v)
}

func (g *llvmGen) index(v ir.Value) uint64 {
	k, ok := v.(*ir.Const)
	if !ok { util.Internal("llvm: aggregate index %s is not constant", v) }
	i, err := safecast.Conv[uint64](k.Value)
	if err != nil { util.Internal("llvm: aggregate index %d: %v", k.Value, err) }
	return i
}

// ptr reinterprets an opaque pointer as a pointer to t.
func (g *llvmGen) ptr(v ir.Value, t types.Type) value.Value {
	return g.cur.NewBitCast(g.val(v), types.NewPointer(t))
}

func (g *llvmGen) genFunc(f *ir.Func) {
	lf := g.funcs[f]
	g.vals = make(map[ir.Value]value.Value)
	g.blocks = make(map[*ir.BasicBlock]*llir.Block)
	g.phis = nil
	for i, p := range f.Params {
		g.vals[p] = lf.Params[i]
	}
	for _, b := range f.Blocks {
		g.blocks[b] = lf.NewBlock(b.Label)
	}
	for _, b := range f.ReversePostorder() {
		g.cur = g.blocks[b]
		for _, instr := range b.Instructions {
			g.genInstr(instr)
		}
	}
	for _, p := range g.phis {
		for i, a := range p.src.Args {
			p.phi.Incs = append(p.phi.Incs, llir.NewIncoming(g.val(a), g.blocks[p.src.Targets[i]]))
		}
	}
}

func (g *llvmGen) genInstr(instr *ir.Instruction) {
	n := len(g.cur.Insts)
	x := g.lower(instr)
	if instr.Result == nil { return }
	g.vals[instr.Result] = x
	if len(g.cur.Insts) > n {
		if last, ok := g.cur.Insts[len(g.cur.Insts)-1].(value.Named); ok && last == x {
			last.SetName(instr.Result.Name)
		}
	}
}

var (
	signedPreds   = map[ir.Op]enum.IPred{ir.OpCEq: enum.IPredEQ, ir.OpCNeq: enum.IPredNE, ir.OpCLt: enum.IPredSLT, ir.OpCLe: enum.IPredSLE, ir.OpCGt: enum.IPredSGT, ir.OpCGe: enum.IPredSGE}
	unsignedPreds = map[ir.Op]enum.IPred{ir.OpCEq: enum.IPredEQ, ir.OpCNeq: enum.IPredNE, ir.OpCLt: enum.IPredULT, ir.OpCLe: enum.IPredULE, ir.OpCGt: enum.IPredUGT, ir.OpCGe: enum.IPredUGE}
	floatPreds    = map[ir.Op]enum.FPred{ir.OpCEq: enum.FPredOEQ, ir.OpCNeq: enum.FPredUNE, ir.OpCLt: enum.FPredOLT, ir.OpCLe: enum.FPredOLE, ir.OpCGt: enum.FPredOGT, ir.OpCGe: enum.FPredOGE}
)

func (g *llvmGen) lower(instr *ir.Instruction) value.Value {
	b := g.cur
	arg := func(i int) value.Value { return g.val(instr.Args[i]) }
	signed := instr.Typ.Scalar().IsInt() && instr.Typ.Scalar().Signed

	switch instr.Op {
	case ir.OpAlloc:
		return b.NewBitCast(b.NewAlloca(g.typ(instr.Elem)), types.I8Ptr)
	case ir.OpLoad:
		t := g.typ(instr.Typ)
		return b.NewLoad(t, g.ptr(instr.Args[0], t))
	case ir.OpStore:
		b.NewStore(arg(0), g.ptr(instr.Args[1], g.typ(instr.Args[0].Type())))
		return nil
	case ir.OpElemPtr:
		et := g.typ(instr.Elem)
		indices := []value.Value{constant.NewInt(types.I32, 0)}
		for _, a := range instr.Args[1:] {
			indices = append(indices, g.val(a))
		}
		return b.NewBitCast(b.NewGetElementPtr(et, g.ptr(instr.Args[0], et), indices...), types.I8Ptr)
	case ir.OpAdd: return b.NewAdd(arg(0), arg(1))
	case ir.OpSub: return b.NewSub(arg(0), arg(1))
	case ir.OpMul: return b.NewMul(arg(0), arg(1))
	case ir.OpDiv:
		if signed { return b.NewSDiv(arg(0), arg(1)) }
		return b.NewUDiv(arg(0), arg(1))
	case ir.OpRem:
		if signed { return b.NewSRem(arg(0), arg(1)) }
		return b.NewURem(arg(0), arg(1))
	case ir.OpAnd: return b.NewAnd(arg(0), arg(1))
	case ir.OpOr: return b.NewOr(arg(0), arg(1))
	case ir.OpXor: return b.NewXor(arg(0), arg(1))
	case ir.OpShl: return b.NewShl(arg(0), arg(1))
	case ir.OpShr:
		if signed { return b.NewAShr(arg(0), arg(1)) }
		return b.NewLShr(arg(0), arg(1))
	case ir.OpAddF: return b.NewFAdd(arg(0), arg(1))
	case ir.OpSubF: return b.NewFSub(arg(0), arg(1))
	case ir.OpMulF: return b.NewFMul(arg(0), arg(1))
	case ir.OpDivF: return b.NewFDiv(arg(0), arg(1))
	case ir.OpNegF: return b.NewFNeg(arg(0))
	case ir.OpCEq, ir.OpCNeq, ir.OpCLt, ir.OpCGt, ir.OpCLe, ir.OpCGe:
		at := instr.Args[0].Type().Scalar()
		switch {
		case at.IsFloat(): return b.NewFCmp(floatPreds[instr.Op], arg(0), arg(1))
		case at.IsInt() && at.Signed: return b.NewICmp(signedPreds[instr.Op], arg(0), arg(1))
		}
		return b.NewICmp(unsignedPreds[instr.Op], arg(0), arg(1))
	case ir.OpExt, ir.OpTrunc, ir.OpIToF, ir.OpFToI, ir.OpFToF:
		return g.convert(instr)
	case ir.OpExtract:
		if instr.Args[0].Type().IsVector() { return b.NewExtractElement(arg(0), arg(1)) }
		return b.NewExtractValue(arg(0), g.index(instr.Args[1]))
	case ir.OpInsert:
		if instr.Typ.IsVector() { return b.NewInsertElement(arg(0), arg(1), arg(2)) }
		return b.NewInsertValue(arg(0), arg(1), g.index(instr.Args[2]))
	case ir.OpSelect:
		return b.NewSelect(arg(0), arg(1), arg(2))
	case ir.OpCopy:
		return arg(0)
	case ir.OpCall:
		args := make([]value.Value, len(instr.Args)-1)
		for i := range args {
			args[i] = arg(i + 1)
		}
		return b.NewCall(arg(0), args...)
	case ir.OpPhi:
		// Incoming values may not be generated yet; filled in after the body.
		phi := &llir.InstPhi{Typ: g.typ(instr.Typ)}
		b.Insts = append(b.Insts, phi)
		g.phis = append(g.phis, pendingPhi{phi: phi, src: instr})
		return phi
	case ir.OpJmp:
		b.NewBr(g.blocks[instr.Targets[0]])
	case ir.OpJnz:
		b.NewCondBr(arg(0), g.blocks[instr.Targets[0]], g.blocks[instr.Targets[1]])
	case ir.OpSwitch:
		it := g.typ(instr.Args[0].Type()).(*types.IntType)
		cases := make([]*llir.Case, len(instr.Cases))
		for i, c := range instr.Cases {
			cases[i] = llir.NewCase(constant.NewInt(it, c), g.blocks[instr.Targets[i+1]])
		}
		b.NewSwitch(arg(0), g.blocks[instr.Targets[0]], cases...)
	case ir.OpRet:
		if len(instr.Args) == 0 {
			b.NewRet(nil)
			return nil
		}
		b.NewRet(arg(0))
	case ir.OpUnreachable:
		b.NewUnreachable()
	default:
		util.Unimplemented("llvm: %s", instr.Op)
	}
	return nil
}

// convert lowers the numeric conversions. Same-width integer conversions
// only change signedness, which LLVM types do not carry.
func (g *llvmGen) convert(instr *ir.Instruction) value.Value {
	b := g.cur
	x := g.val(instr.Args[0])
	src, dst := instr.Args[0].Type().Scalar(), instr.Typ.Scalar()
	t := g.typ(instr.Typ)
	switch instr.Op {
	case ir.OpExt:
		if src.Bits == dst.Bits { return x }
		if src.IsInt() && src.Signed { return b.NewSExt(x, t) }
		return b.NewZExt(x, t)
	case ir.OpTrunc:
		if src.Bits == dst.Bits { return x }
		return b.NewTrunc(x, t)
	case ir.OpIToF:
		if src.IsInt() && src.Signed { return b.NewSIToFP(x, t) }
		return b.NewUIToFP(x, t)
	case ir.OpFToI:
		if dst.Signed { return b.NewFPToSI(x, t) }
		return b.NewFPToUI(x, t)
	}
	switch {
	case src.Bits == dst.Bits: return x
	case src.Bits < dst.Bits: return b.NewFPExt(x, t)
	}
	return b.NewFPTrunc(x, t)
}
