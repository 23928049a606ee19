package codegen

import (
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

// ABI is the data layout and calling convention of a value or function.
type ABI int

const (
	ABIUnknown ABI = iota
	ABIC
	ABILLVM
	ABIVectorize
	abiCount
)

func (a ABI) String() string {
	switch a {
	case ABIC: return "c"
	case ABILLVM: return "llvm"
	case ABIVectorize: return "vectorize"
	}
	return "unknown"
}

// ParseABI maps a config name to an ABI.
func ParseABI(name string) ABI {
	switch name {
	case "c": return ABIC
	case "llvm": return ABILLVM
	case "vectorize": return ABIVectorize
	}
	return ABIUnknown
}

// Service is the emission surface shared by every lowering strategy.
// SISD is the scalar strategy; a lane-parallel one implements the same set.
type Service interface {
	Module() *ir.Module
	Config() *config.Config

	// Values and types
	CreateTyInfo(ty *syntax.Type) *TyInfo
	MemberTyInfo(agg *TyInfo, index int) *TyInfo
	CreateValue(tyi *TyInfo, raw ir.Value, kind ValueKind, abi ABI) Value
	CreateValueBT(bt *syntax.Type, raw ir.Value, kind ValueKind, abi ABI) Value
	CreateScalar(raw ir.Value, tyi *TyInfo) Value
	CreateConstantScalar(lit Literal, tyi *TyInfo) Value
	CreateConstantVector(lits []Literal, ty *syntax.Type, abi ABI) Value
	CreateVector(scalars []Value, abi ABI) Value
	CreateConstantMatrix(lits []Literal, ty *syntax.Type, abi ABI) Value
	NullValue(tyi *TyInfo, abi ABI) Value
	NullValueBT(bt *syntax.Type, abi ABI) Value
	UndefValue(bt *syntax.Type, abi ABI) Value
	CreateVariable(tyi *TyInfo, abi ABI, name string) Value
	CreateVariableBT(bt *syntax.Type, abi ABI, name string) Value
	NodeCtxt(node *syntax.Node, createIfNeed bool) *NodeContext

	// Loads and stores
	Load(v Value) ir.Value
	LoadABI(v Value, abi ABI) ir.Value
	LoadRef(v Value) ir.Value
	Store(lhs, rhs Value)

	// Functions
	BeginFnDecl(fnty *syntax.Node) Function
	EndFnDecl() Function
	FetchFunction(fnty *syntax.Node) Function
	PushFn(fn Function)
	PopFn()
	InFunction() bool
	Fn() *Function
	EmitReturn()
	EmitReturnValue(v Value, abi ABI)

	// Blocks
	NewBlock(hint string, setInsertPoint bool) InsertPoint
	SetInsertPoint(ip InsertPoint)
	InsertPoint() InsertPoint
	JumpTo(ip InsertPoint)
	JumpCond(cond Value, trueIP, falseIP InsertPoint)
	SwitchTo(cond Value, cases []SwitchCase, defaultBranch InsertPoint)
	CleanEmptyBlocks()

	// Expressions
	EmitCondExpr(cond, yes, no Value) Value
	EmitAdd(lhs, rhs Value) Value
	EmitSub(lhs, rhs Value) Value
	EmitMul(lhs, rhs Value) Value
	EmitDiv(lhs, rhs Value) Value
	EmitMod(lhs, rhs Value) Value
	EmitNeg(v Value) Value
	EmitDot(lhs, rhs Value) Value
	EmitCmpLT(lhs, rhs Value) Value
	EmitCmpLE(lhs, rhs Value) Value
	EmitCmpEQ(lhs, rhs Value) Value
	EmitCmpNE(lhs, rhs Value) Value
	EmitCmpGE(lhs, rhs Value) Value
	EmitCmpGT(lhs, rhs Value) Value
	EmitAddSSVV(lhs, rhs Value) Value
	EmitSubSSVV(lhs, rhs Value) Value
	EmitMulSSVV(lhs, rhs Value) Value
	EmitDotVV(lhs, rhs Value) Value
	EmitMulSV(lhs, rhs Value) Value
	EmitMulSM(lhs, rhs Value) Value
	EmitMulVM(lhs, rhs Value) Value
	EmitMulMV(lhs, rhs Value) Value
	EmitMulMM(lhs, rhs Value) Value
	EmitCross(lhs, rhs Value) Value
	EmitExtractCol(m Value, index int) Value
	EmitExtractElem(vec, idx Value) Value
	EmitExtractElemAt(vec Value, idx int) Value
	EmitExtractRef(v, idx Value) Value
	EmitExtractRefAt(v Value, idx int) Value
	EmitExtractVal(v, idx Value) Value
	EmitExtractValAt(v Value, idx int) Value
	EmitInsertVal(v, idx, elem Value) Value
	EmitInsertValAt(v Value, idx int, elem Value) Value
	EmitExtractElemMask(vec Value, mask uint32) Value
	EmitSwizzle(vec Value, mask uint32) Value
	EmitWriteMask(vec Value, mask uint32) Value
	EmitCall(fn Function, args []Value) Value

	// Intrinsics
	EmitSqrt(v Value) Value
	EmitAbs(v Value) Value
	Intrin(id IntrinsicID) *ir.Func
	IntrinOf(id IntrinsicID, ty *ir.Type) *ir.Func
	PreferExternals() bool
	PreferScalarCode() bool

	// Casts
	CastInts(v Value, dest *TyInfo) Value
	CastI2F(v Value, dest *TyInfo) Value
	CastF2I(v Value, dest *TyInfo) Value
	CastF2F(v Value, dest *TyInfo) Value
	CastI2B(v Value) Value
	CastF2B(v Value) Value
}

type fnCtxt struct {
	fn Function
	ip InsertPoint
}

// SISD lowers every operation to scalar or native-vector IR in a single module.
// It owns the generation cursor; one instance must only be used from one goroutine.
type SISD struct {
	cfg     *config.Config
	mod     *ir.Module
	abi     ABI
	fnCtxts []fnCtxt
	ip      InsertPoint
	tyinfos map[string]*TyInfo
	ctxts   map[*syntax.Node]*NodeContext
	intrins map[intrinKey]*ir.Func
}

var _ Service = (*SISD)(nil)

func New(cfg *config.Config, mod *ir.Module) *SISD {
	if cfg == nil { cfg = config.NewConfig() }
	abi := ParseABI(cfg.DefaultABI)
	if abi == ABIUnknown { abi = ABILLVM }
	return &SISD{
		cfg:     cfg,
		mod:     mod,
		abi:     abi,
		tyinfos: make(map[string]*TyInfo),
		ctxts:   make(map[*syntax.Node]*NodeContext),
		intrins: make(map[intrinKey]*ir.Func),
	}
}

func (s *SISD) Module() *ir.Module     { return s.mod }
func (s *SISD) Config() *config.Config { return s.cfg }

// DefaultABI is the convention used for functions that are not c-compatible.
func (s *SISD) DefaultABI() ABI { return s.abi }

func (s *SISD) curBlock() *ir.BasicBlock {
	if !s.ip.Valid() { util.ContractViolation("no insert point") }
	return s.ip.Block
}

func (s *SISD) newTemp(t *ir.Type) *ir.Temporary {
	return s.curBlock().Func.NewTemp(t, "")
}

func (s *SISD) addInstr(instr *ir.Instruction) {
	b := s.curBlock()
	if b.Terminated() { util.ContractViolation("emitting %s into terminated block %s", instr.Op, b.Label) }
	b.Append(instr)
}

// emit appends an instruction with a fresh result of type t.
func (s *SISD) emit(op ir.Op, t *ir.Type, args ...ir.Value) ir.Value {
	res := s.newTemp(t)
	s.addInstr(&ir.Instruction{Op: op, Typ: t, Result: res, Args: args})
	return res
}

func (s *SISD) extract(agg ir.Value, i int) ir.Value {
	if c, ok := agg.(*ir.ConstAgg); ok { return c.Elems[i] }
	t := agg.Type().Member(i)
	return s.emit(ir.OpExtract, t, agg, ir.NewConst(ir.I32, int64(i)))
}

func (s *SISD) insert(agg, elem ir.Value, i int) ir.Value {
	return s.emit(ir.OpInsert, agg.Type(), agg, elem, ir.NewConst(ir.I32, int64(i)))
}

// build assembles a vector, array or struct from its members.
func (s *SISD) build(t *ir.Type, elems []ir.Value) ir.Value {
	allConst := true
	for _, e := range elems {
		if !ir.IsConstant(e) { allConst = false; break }
	}
	if allConst { return &ir.ConstAgg{Typ: t, Elems: elems} }
	var agg ir.Value = &ir.Undef{Typ: t}
	for i, e := range elems {
		agg = s.insert(agg, e, i)
	}
	return agg
}

// splat broadcasts a scalar into every lane of a vector of type t.
func (s *SISD) splat(scalar ir.Value, t *ir.Type) ir.Value {
	elems := make([]ir.Value, t.Len)
	for i := range elems {
		elems[i] = scalar
	}
	return s.build(t, elems)
}

func (s *SISD) alloca(t *ir.Type, name string) ir.Value {
	fn := s.curBlock().Func
	res := fn.NewTemp(ir.Ptr, name)
	entry := fn.Entry()
	instr := &ir.Instruction{Op: ir.OpAlloc, Typ: ir.Ptr, Elem: t, Result: res}
	// Slots live in the entry block so every path sees them.
	n := 0
	for n < len(entry.Instructions) && entry.Instructions[n].Op == ir.OpAlloc {
		n++
	}
	entry.Instructions = append(entry.Instructions, nil)
	copy(entry.Instructions[n+1:], entry.Instructions[n:])
	entry.Instructions[n] = instr
	return res
}
