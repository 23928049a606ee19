package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/util"
)

// qbeBackend renders a module as QBE IL. QBE has no vector or aggregate
// registers: every vector, array and struct value lives in a stack slot and
// is passed around by address. Such slots are never written after they are
// filled, so extracting an aggregate member can hand out an interior address.
type qbeBackend struct {
	out    *strings.Builder
	mod    *ir.Module
	fn     *ir.Func
	body   strings.Builder
	pro    strings.Builder
	consts map[ir.Value]string
	ntemp  int
}

const retAddr = "%.ret"

func NewQBEBackend() Backend { return &qbeBackend{} }

// qbeFailed reports an assembler error together with the IL it rejected.
func qbeFailed(il string, err error) error {
	return fmt.Errorf("qbe rejected the generated IL: %w\n--- IL ---\n%s", err, il)
}

// GenerateIR returns the QBE IL for mod without assembling it.
func (b *qbeBackend) GenerateIR(mod *ir.Module) (qbeIR string, err error) {
	defer util.Recover(&err)
	var sb strings.Builder
	b.out = &sb
	b.mod = mod
	for _, fn := range mod.SortedFuncs() {
		if fn.IsDecl() { continue }
		b.genFunc(fn)
	}
	return sb.String(), nil
}

func qbeBase(t *ir.Type) string {
	switch {
	case t.IsFloat():
		if t.Bits == 64 { return "d" }
		return "s"
	case t.IsBool(): return "w"
	case t.IsInt() && t.Bits <= 32: return "w"
	}
	return "l"
}

func inMemory(t *ir.Type) bool { return t.IsVector() || t.IsAggregate() }

func loadOp(t *ir.Type) string {
	sign := "u"
	if t.IsInt() && t.Signed { sign = "s" }
	switch {
	case t.IsBool(): return "loadub"
	case t.IsInt() && t.Bits == 8: return "load" + sign + "b"
	case t.IsInt() && t.Bits == 16: return "load" + sign + "h"
	}
	return "load" + qbeBase(t)
}

func storeOp(t *ir.Type) string {
	switch {
	case t.IsBool(), t.IsInt() && t.Bits == 8: return "storeb"
	case t.IsInt() && t.Bits == 16: return "storeh"
	}
	return "store" + qbeBase(t)
}

func allocOp(align int64) string {
	if align <= 4 { return "alloc4" }
	if align <= 8 { return "alloc8" }
	return "alloc16"
}

func offsetOf(t *ir.Type, i int) int64 {
	if t.Kind == ir.KindStruct {
		var off int64
		for j, f := range t.Fields {
			off = util.AlignUp(off, f.Align())
			if j == i { return off }
			off += f.Size()
		}
		util.Internal("qbe: struct %s has no field %d", t, i)
	}
	return int64(i) * t.Elem.Size()
}

func floatLit(t *ir.Type, f float64) string {
	return qbeBase(t) + "_" + strconv.FormatFloat(f, 'g', -1, 64)
}

func scalarLit(v ir.Value) string {
	switch v := v.(type) {
	case *ir.Const: return strconv.FormatInt(v.Value, 10)
	case *ir.FloatConst: return floatLit(v.Typ, v.Value)
	case *ir.Zero, *ir.Undef:
		if v.Type().IsFloat() { return floatLit(v.Type(), 0) }
		return "0"
	}
	util.Internal("qbe: no literal for %s", v)
	return ""
}

func (b *qbeBackend) temp() string {
	b.ntemp++
	return "%.q" + strconv.Itoa(b.ntemp)
}

func (b *qbeBackend) emit(format string, args ...any) {
	b.body.WriteString("\t")
	fmt.Fprintf(&b.body, format, args...)
	b.body.WriteString("\n")
}

// op emits `r =T op args` and returns r.
func (b *qbeBackend) op(t *ir.Type, op string, args ...string) string {
	r := b.temp()
	line := op
	if len(args) > 0 { line += " " + strings.Join(args, ", ") }
	b.emit("%s =%s %s", r, qbeBase(t), line)
	return r
}

// slot reserves stack for t in the start block.
func (b *qbeBackend) slot(t *ir.Type) string {
	name := b.temp()
	fmt.Fprintf(&b.pro, "\t%s =l %s %d\n", name, allocOp(t.Align()), max(t.Size(), 1))
	return name
}

func (b *qbeBackend) val(v ir.Value) string {
	switch v := v.(type) {
	case *ir.Temporary: return "%" + v.Name
	case *ir.Param: return "%" + v.Name
	case *ir.FuncRef: return "$" + v.Func.Name
	}
	if inMemory(v.Type()) { return b.constSlot(v) }
	return scalarLit(v)
}

// constSlot materializes a constant aggregate once per function.
func (b *qbeBackend) constSlot(v ir.Value) string {
	if name, ok := b.consts[v]; ok { return name }
	name := b.slot(v.Type())
	b.fill(v, name)
	b.consts[v] = name
	return name
}

func (b *qbeBackend) fill(v ir.Value, base string) {
	if _, undef := v.(*ir.Undef); undef { return }
	t := v.Type()
	if !inMemory(t) {
		fmt.Fprintf(&b.pro, "\t%s %s, %s\n", storeOp(t), scalarLit(v), base)
		return
	}
	for i := 0; i < t.Count(); i++ {
		var m ir.Value = &ir.Zero{Typ: t.Member(i)}
		if agg, ok := v.(*ir.ConstAgg); ok { m = agg.Elems[i] }
		addr := b.temp()
		fmt.Fprintf(&b.pro, "\t%s =l add %s, %d\n", addr, base, offsetOf(t, i))
		b.fill(m, addr)
	}
}

// member addresses element idx of an in-memory value of type t at base.
func (b *qbeBackend) member(t *ir.Type, base string, idx ir.Value) string {
	if k, ok := idx.(*ir.Const); ok {
		i, err := safecast.Conv[int](k.Value)
		if err != nil { util.Internal("qbe: member index %d: %v", k.Value, err) }
		off := offsetOf(t, i)
		if off == 0 { return base }
		return b.op(ir.Ptr, "add", base, strconv.FormatInt(off, 10))
	}
	if t.Kind == ir.KindStruct { util.Internal("qbe: dynamic struct index") }
	i := b.val(idx)
	if qbeBase(idx.Type()) == "w" {
		ext := "extuw"
		if idx.Type().Signed { ext = "extsw" }
		i = b.op(ir.Ptr, ext, i)
	}
	off := b.op(ir.Ptr, "mul", i, strconv.FormatInt(t.Elem.Size(), 10))
	return b.op(ir.Ptr, "add", base, off)
}

func (b *qbeBackend) laneAddr(t *ir.Type, base string, lane int) string {
	return b.member(t, base, ir.NewConst(ir.I32, int64(lane)))
}

func (b *qbeBackend) loadLane(v ir.Value, lane int) string {
	t := v.Type()
	return b.op(t.Elem, loadOp(t.Elem), b.laneAddr(t, b.val(v), lane))
}

func memberType(t *ir.Type, idx ir.Value) *ir.Type {
	if k, ok := idx.(*ir.Const); ok && t.Kind == ir.KindStruct { return t.Member(int(k.Value)) }
	return t.Elem
}

func (b *qbeBackend) read(t *ir.Type, addr string) string {
	if inMemory(t) {
		dst := b.slot(t)
		b.emit("blit %s, %s, %d", addr, dst, t.Size())
		return dst
	}
	return b.op(t, loadOp(t), addr)
}

func (b *qbeBackend) write(t *ir.Type, v, addr string) {
	if inMemory(t) {
		b.emit("blit %s, %s, %d", v, addr, t.Size())
		return
	}
	b.emit("%s %s, %s", storeOp(t), v, addr)
}

func (b *qbeBackend) genFunc(fn *ir.Func) {
	b.fn = fn
	b.body.Reset()
	b.pro.Reset()
	b.consts = make(map[ir.Value]string)
	b.ntemp = 0

	for _, blk := range fn.Blocks {
		fmt.Fprintf(&b.body, "@%s\n", blk.Label)
		for _, instr := range blk.Instructions {
			b.genInstr(blk, instr)
		}
	}

	var params []string
	ret := ""
	switch {
	case inMemory(fn.ReturnType): params = append(params, "l "+retAddr)
	case !fn.ReturnType.IsVoid(): ret = " " + qbeBase(fn.ReturnType)
	}
	for _, p := range fn.Params {
		params = append(params, qbeBase(p.Typ)+" "+b.val(p))
	}
	fmt.Fprintf(b.out, "\nexport function%s $%s(%s) {\n@.start\n", ret, fn.Name, strings.Join(params, ", "))
	b.out.WriteString(b.pro.String())
	b.out.WriteString(b.body.String())
	b.out.WriteString("}\n")
}

func (b *qbeBackend) genInstr(blk *ir.BasicBlock, instr *ir.Instruction) {
	var r string
	switch instr.Op {
	case ir.OpAlloc:
		r = b.slot(instr.Elem)
	case ir.OpLoad:
		r = b.read(instr.Typ, b.val(instr.Args[0]))
	case ir.OpStore:
		b.write(instr.Args[0].Type(), b.val(instr.Args[0]), b.val(instr.Args[1]))
	case ir.OpElemPtr:
		r = b.val(instr.Args[0])
		t := instr.Elem
		for _, idx := range instr.Args[1:] {
			r = b.member(t, r, idx)
			t = memberType(t, idx)
		}
	case ir.OpExtract:
		addr := b.member(instr.Args[0].Type(), b.val(instr.Args[0]), instr.Args[1])
		r = addr
		if !inMemory(instr.Typ) { r = b.op(instr.Typ, loadOp(instr.Typ), addr) }
	case ir.OpInsert:
		t := instr.Typ
		r = b.slot(t)
		b.emit("blit %s, %s, %d", b.val(instr.Args[0]), r, t.Size())
		b.write(instr.Args[1].Type(), b.val(instr.Args[1]), b.member(t, r, instr.Args[2]))
	case ir.OpSelect:
		r = b.genSelect(instr)
	case ir.OpCopy:
		r = b.val(instr.Args[0])
	case ir.OpCall:
		r = b.genCall(instr)
	case ir.OpPhi:
		b.genPhi(blk, instr)
		return
	case ir.OpJmp, ir.OpJnz, ir.OpSwitch, ir.OpRet, ir.OpUnreachable:
		b.genTerm(blk, instr)
		return
	default:
		r = b.lanes(instr)
	}
	if instr.Result != nil {
		b.emit("%s =%s copy %s", b.val(instr.Result), qbeBase(instr.Typ), r)
	}
}

// lanes applies a scalar operation to every lane of vector operands.
func (b *qbeBackend) lanes(instr *ir.Instruction) string {
	argT := instr.Args[0].Type()
	if !instr.Typ.IsVector() {
		args := make([]string, len(instr.Args))
		for i, a := range instr.Args {
			args[i] = b.val(a)
		}
		return b.scalar(instr.Op, instr.Typ, argT, args)
	}
	dst := b.slot(instr.Typ)
	for l := 0; l < instr.Typ.Len; l++ {
		args := make([]string, len(instr.Args))
		for i, a := range instr.Args {
			args[i] = b.loadLane(a, l)
		}
		res := b.scalar(instr.Op, instr.Typ.Elem, argT.Elem, args)
		b.write(instr.Typ.Elem, res, b.laneAddr(instr.Typ, dst, l))
	}
	return dst
}

var (
	signedOps   = map[ir.Op]string{ir.OpDiv: "div", ir.OpRem: "rem", ir.OpShr: "sar"}
	unsignedOps = map[ir.Op]string{ir.OpDiv: "udiv", ir.OpRem: "urem", ir.OpShr: "shr"}
	floatOps    = map[ir.Op]string{ir.OpAddF: "add", ir.OpSubF: "sub", ir.OpMulF: "mul", ir.OpDivF: "div", ir.OpNegF: "neg"}
)

func (b *qbeBackend) scalar(op ir.Op, t, argT *ir.Type, args []string) string {
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl:
		return b.norm(t, b.op(t, op.String(), args...))
	case ir.OpDiv, ir.OpRem, ir.OpShr:
		name := unsignedOps[op]
		if t.Signed { name = signedOps[op] }
		return b.norm(t, b.op(t, name, args...))
	case ir.OpAddF, ir.OpSubF, ir.OpMulF, ir.OpDivF, ir.OpNegF:
		return b.op(t, floatOps[op], args...)
	case ir.OpExt, ir.OpTrunc, ir.OpIToF, ir.OpFToI, ir.OpFToF:
		return b.convert(op, t, argT, args[0])
	}
	if op.IsCompare() { return b.op(t, cmpOp(op, argT), args...) }
	util.Unimplemented("qbe: %s", op)
	return ""
}

// norm re-extends a sub-word integer held in a w register.
func (b *qbeBackend) norm(t *ir.Type, v string) string {
	if !t.IsInt() || t.Bits >= 32 { return v }
	ext := "extu"
	if t.Signed { ext = "exts" }
	if t.Bits == 8 { return b.op(t, ext+"b", v) }
	return b.op(t, ext+"h", v)
}

func cmpOp(op ir.Op, t *ir.Type) string {
	base := qbeBase(t)
	switch op {
	case ir.OpCEq: return "ceq" + base
	case ir.OpCNeq: return "cne" + base
	}
	rel := map[ir.Op]string{ir.OpCLt: "lt", ir.OpCLe: "le", ir.OpCGt: "gt", ir.OpCGe: "ge"}[op]
	switch {
	case t.IsFloat(): return "c" + rel + base
	case t.IsInt() && t.Signed: return "cs" + rel + base
	}
	return "cu" + rel + base
}

func (b *qbeBackend) convert(op ir.Op, dst, src *ir.Type, x string) string {
	switch op {
	case ir.OpExt, ir.OpTrunc:
		if dst.Bits == 64 && src.Bits < 64 {
			if src.IsInt() && src.Signed { return b.op(dst, "extsw", x) }
			return b.op(dst, "extuw", x)
		}
		return b.norm(dst, b.op(dst, "copy", x))
	case ir.OpIToF:
		name := "uwtof"
		switch {
		case src.Signed && src.Bits == 64: name = "sltof"
		case src.Signed: name = "swtof"
		case src.Bits == 64: name = "ultof"
		}
		return b.op(dst, name, x)
	case ir.OpFToI:
		sign := "u"
		if dst.Signed { sign = "s" }
		return b.norm(dst, b.op(dst, qbeBase(src)+"to"+sign+"i", x))
	case ir.OpFToF:
		if dst.Bits == src.Bits { return x }
		if dst.Bits == 64 { return b.op(dst, "exts", x) }
		return b.op(dst, "truncd", x)
	}
	util.Internal("qbe: %s is not a conversion", op)
	return ""
}

// pick selects x or y through a two-entry scratch slot indexed by c.
func (b *qbeBackend) pick(t *ir.Type, c, x, y string) string {
	base := qbeBase(t)
	size := "4"
	if base == "l" || base == "d" { size = "8" }
	tbl := b.temp()
	fmt.Fprintf(&b.pro, "\t%s =l alloc8 16\n", tbl)
	b.emit("store%s %s, %s", base, y, tbl)
	b.emit("store%s %s, %s", base, x, b.op(ir.Ptr, "add", tbl, size))
	off := b.op(ir.Ptr, "mul", b.op(ir.Ptr, "extuw", c), size)
	return b.op(t, "load"+base, b.op(ir.Ptr, "add", tbl, off))
}

func (b *qbeBackend) genSelect(instr *ir.Instruction) string {
	c, x, y := instr.Args[0], instr.Args[1], instr.Args[2]
	t := instr.Typ
	if !c.Type().IsVector() { return b.pick(t, b.val(c), b.val(x), b.val(y)) }
	dst := b.slot(t)
	for l := 0; l < t.Len; l++ {
		v := b.pick(t.Elem, b.loadLane(c, l), b.loadLane(x, l), b.loadLane(y, l))
		b.write(t.Elem, v, b.laneAddr(t, dst, l))
	}
	return dst
}

// libmRoutines maps an intrinsic instance to the C routine QBE calls.
var libmRoutines = map[string]string{
	"sqrt.f32": "sqrtf", "sqrt.f64": "sqrt",
	"fabs.f32": "fabsf", "fabs.f64": "fabs",
}

func (b *qbeBackend) genIntrinsic(f *ir.Func, args []ir.Value) string {
	t := f.ReturnType
	lane := t.Scalar()
	id, _, _ := strings.Cut(strings.TrimPrefix(f.Name, "llvm."), ".")
	routine, ok := libmRoutines[id+"."+lane.String()]
	if !ok { util.Unimplemented("qbe: intrinsic %s", f.Name) }
	call := func(x string) string {
		return b.op(lane, fmt.Sprintf("call $%s(%s %s)", routine, qbeBase(lane), x))
	}
	if !t.IsVector() { return call(b.val(args[0])) }
	dst := b.slot(t)
	for l := 0; l < t.Len; l++ {
		b.write(lane, call(b.loadLane(args[0], l)), b.laneAddr(t, dst, l))
	}
	return dst
}

func (b *qbeBackend) genCall(instr *ir.Instruction) string {
	callee := instr.Args[0].(*ir.FuncRef).Func
	args := instr.Args[1:]
	if callee.Intrinsic { return b.genIntrinsic(callee, args) }

	var parts []string
	var dst string
	if inMemory(callee.ReturnType) {
		dst = b.slot(callee.ReturnType)
		parts = append(parts, "l "+dst)
	}
	for _, a := range args {
		parts = append(parts, qbeBase(a.Type())+" "+b.val(a))
	}
	call := fmt.Sprintf("call $%s(%s)", callee.Name, strings.Join(parts, ", "))
	if dst != "" || callee.ReturnType.IsVoid() {
		b.emit("%s", call)
		return dst
	}
	return b.op(callee.ReturnType, call)
}

// chainLabel names the i-th compare block of a lowered switch.
func chainLabel(blk *ir.BasicBlock, i int) string {
	if i == 0 { return blk.Label }
	return fmt.Sprintf("%s.sw%d", blk.Label, i)
}

// exitLabels lists the QBE blocks through which from branches to to.
func exitLabels(from, to *ir.BasicBlock) []string {
	term := from.Terminator()
	if term == nil || term.Op != ir.OpSwitch { return []string{from.Label} }
	var labels []string
	seen := make(map[string]bool)
	add := func(l string) {
		if !seen[l] { seen[l] = true; labels = append(labels, l) }
	}
	for i := range term.Cases {
		if term.Targets[i+1] == to { add(chainLabel(from, i)) }
	}
	if term.Targets[0] == to { add(chainLabel(from, max(len(term.Cases)-1, 0))) }
	return labels
}

func (b *qbeBackend) genPhi(blk *ir.BasicBlock, instr *ir.Instruction) {
	var parts []string
	for i, pred := range instr.Targets {
		for _, l := range exitLabels(pred, blk) {
			parts = append(parts, fmt.Sprintf("@%s %s", l, b.val(instr.Args[i])))
		}
	}
	b.emit("%s =%s phi %s", b.val(instr.Result), qbeBase(instr.Typ), strings.Join(parts, ", "))
}

func (b *qbeBackend) genTerm(blk *ir.BasicBlock, instr *ir.Instruction) {
	switch instr.Op {
	case ir.OpJmp:
		b.emit("jmp @%s", instr.Targets[0].Label)
	case ir.OpJnz:
		b.emit("jnz %s, @%s, @%s", b.val(instr.Args[0]), instr.Targets[0].Label, instr.Targets[1].Label)
	case ir.OpSwitch:
		// QBE has no jump table; compare the cases in order.
		if len(instr.Cases) == 0 {
			b.emit("jmp @%s", instr.Targets[0].Label)
			return
		}
		x, base := b.val(instr.Args[0]), qbeBase(instr.Args[0].Type())
		for i, c := range instr.Cases {
			if i > 0 { fmt.Fprintf(&b.body, "@%s\n", chainLabel(blk, i)) }
			next := instr.Targets[0].Label
			if i+1 < len(instr.Cases) { next = chainLabel(blk, i+1) }
			eq := b.op(ir.Bool, "ceq"+base, x, strconv.FormatInt(c, 10))
			b.emit("jnz %s, @%s, @%s", eq, instr.Targets[i+1].Label, next)
		}
	case ir.OpRet:
		if len(instr.Args) == 0 {
			b.emit("ret")
			return
		}
		v := instr.Args[0]
		if inMemory(v.Type()) {
			b.write(v.Type(), b.val(v), retAddr)
			b.emit("ret")
			return
		}
		b.emit("ret %s", b.val(v))
	case ir.OpUnreachable:
		b.emit("hlt")
	}
}
