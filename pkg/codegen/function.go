package codegen

import (
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

// Function is the generation-time view of one IR function. ArgCache is
// aligned with the source parameter list; a hidden return slot, when
// present, is physical parameter 0 and is not part of ArgCache.
type Function struct {
	Fn          *ir.Func
	Fnty        *syntax.Node
	ArgCache    []*ir.Param
	CCompatible bool
	RetVoid     bool

	cg *SISD
}

func (f Function) Valid() bool { return f.Fn != nil }

func (f Function) ABI() ABI {
	if f.CCompatible { return ABIC }
	return f.cg.abi
}

func (f Function) decl() syntax.FuncDeclNode { return f.Fnty.Data.(syntax.FuncDeclNode) }

func (f Function) ArgSize() int { return len(f.ArgCache) }

func passedByRef(ty *syntax.Type, abi ABI) bool {
	return abi == ABIC && (ty.IsVector() || ty.IsMatrix() || ty.IsStruct())
}

// ArgIsRef reports whether argument i is passed by address.
func (f Function) ArgIsRef(i int) bool {
	return passedByRef(f.decl().Params[i].Typ, f.ABI())
}

// Arg returns logical argument i.
func (f Function) Arg(i int) Value {
	if i < 0 || i >= len(f.ArgCache) { util.ContractViolation("%s has no argument %d", f.Fn.Name, i) }
	tyi := f.cg.CreateTyInfo(f.decl().Params[i].Typ)
	if f.ArgIsRef(i) { return f.cg.CreateValue(tyi, f.ArgCache[i], KindReference, f.ABI()) }
	return f.cg.CreateValue(tyi, f.ArgCache[i], KindValue, f.ABI())
}

func (f Function) ArgName(i int, name string) { f.ArgCache[i].Name = name }

// ArgsName names the leading arguments; fewer names than arguments is fine.
func (f Function) ArgsName(names []string) {
	if len(names) > len(f.ArgCache) { util.ContractViolation("%d names for %d arguments", len(names), len(f.ArgCache)) }
	for i, n := range names {
		f.ArgName(i, n)
	}
}

func (f Function) FirstArgIsReturnAddress() bool {
	return !f.RetVoid && passedByRef(f.decl().Ret, f.ABI())
}

func (f Function) ReturnAddress() Value {
	if !f.FirstArgIsReturnAddress() { util.ContractViolation("%s has no return address", f.Fn.Name) }
	return f.cg.CreateValue(f.ReturnTy(), f.Fn.Params[0], KindReference, f.ABI())
}

func (f Function) ReturnName(name string) {
	if f.FirstArgIsReturnAddress() { f.Fn.Params[0].Name = name }
}

// InlineHint marks the function as an inlining candidate. Advisory only.
func (f Function) InlineHint() {
	if f.cg.cfg.IsFeatureEnabled(config.FeatInlineHints) { f.Fn.InlineHint = true }
}

func (f Function) ReturnTy() *TyInfo {
	ret := f.decl().Ret
	if ret == nil { ret = syntax.TypeVoid }
	return f.cg.CreateTyInfo(ret)
}

// BeginFnDecl declares the IR function for fnty without activating it.
func (s *SISD) BeginFnDecl(fnty *syntax.Node) Function {
	d, ok := fnty.Data.(syntax.FuncDeclNode)
	if !ok { util.ContractViolation("function declaration expected") }

	f := Function{Fnty: fnty, CCompatible: d.CCompatible, RetVoid: d.Ret.IsVoid(), cg: s}
	abi := f.ABI()

	var params []*ir.Param
	ret := ir.Void
	if f.FirstArgIsReturnAddress() {
		params = append(params, ir.NewParam("ret", ir.Ptr))
	} else if !f.RetVoid {
		ret = s.CreateTyInfo(d.Ret).IRType(abi)
	}
	for _, p := range d.Params {
		name := p.Data.(syntax.ParamNode).Name
		t := ir.Ptr
		if !passedByRef(p.Typ, abi) { t = s.CreateTyInfo(p.Typ).IRType(abi) }
		param := ir.NewParam(name, t)
		params = append(params, param)
		f.ArgCache = append(f.ArgCache, param)
	}

	f.Fn = s.mod.NewFunc(d.Name, ret, params...)
	f.Fn.CCompatible = d.CCompatible
	return f
}

// FetchFunction returns the declaration of fnty, creating it once.
func (s *SISD) FetchFunction(fnty *syntax.Node) Function {
	ctxt := s.NodeCtxt(fnty, true)
	if ctxt.Fn == nil {
		f := s.BeginFnDecl(fnty)
		ctxt.Fn = &f
	}
	return *ctxt.Fn
}

// EndFnDecl verifies the active function and pops it.
func (s *SISD) EndFnDecl() Function {
	f := s.Fn()
	if s.cfg.IsFeatureEnabled(config.FeatVerify) {
		if err := ir.VerifyFunc(f.Fn); err != nil { util.Internal("%v", err) }
	}
	s.PopFn()
	return *f
}

// PushFn makes fn the active function and moves the cursor to its last block.
// PopFn restores both.
func (s *SISD) PushFn(fn Function) {
	s.fnCtxts = append(s.fnCtxts, fnCtxt{fn: fn, ip: s.ip})
	s.ip = InsertPoint{}
	if n := len(fn.Fn.Blocks); n > 0 { s.ip = InsertPoint{Block: fn.Fn.Blocks[n-1]} }
}

func (s *SISD) PopFn() {
	if len(s.fnCtxts) == 0 { util.ContractViolation("pop_fn without push_fn") }
	top := s.fnCtxts[len(s.fnCtxts)-1]
	s.fnCtxts = s.fnCtxts[:len(s.fnCtxts)-1]
	s.ip = top.ip
}

func (s *SISD) InFunction() bool { return len(s.fnCtxts) > 0 }

func (s *SISD) Fn() *Function {
	if !s.InFunction() { util.ContractViolation("not in a function") }
	return &s.fnCtxts[len(s.fnCtxts)-1].fn
}

func (s *SISD) EmitReturn() {
	s.addInstr(&ir.Instruction{Op: ir.OpRet})
}

// EmitReturnValue returns v under abi, writing it through the hidden return
// slot when the function has one.
func (s *SISD) EmitReturnValue(v Value, abi ABI) {
	f := s.Fn()
	if f.FirstArgIsReturnAddress() {
		s.Store(f.ReturnAddress(), v)
		s.EmitReturn()
		return
	}
	if abi == ABIUnknown { abi = f.ABI() }
	s.addInstr(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{s.LoadABI(v, abi)}})
}
