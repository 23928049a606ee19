package codegen

import (
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

// A swizzle mask packs one 4-bit selector per destination lane, lowest
// nibble first. A selector holds source lane + 1; zero ends the list.
const maxSwizzleLanes = 8

func EncodeSwizzle(lanes ...int) uint32 {
	if len(lanes) == 0 || len(lanes) > maxSwizzleLanes { util.Unimplemented("swizzle of %d lanes", len(lanes)) }
	var mask uint32
	for i, l := range lanes {
		if l < 0 || l > 14 { util.Unimplemented("swizzle selector %d", l) }
		mask |= uint32(l+1) << (4 * i)
	}
	return mask
}

func DecodeSwizzle(mask uint32) []int {
	var lanes []int
	for i := 0; i < maxSwizzleLanes; i++ {
		sel := (mask >> (4 * i)) & 0xF
		if sel == 0 { break }
		lanes = append(lanes, int(sel)-1)
	}
	return lanes
}

// SwizzleMask encodes a swizzle written as xyzw or rgba letters.
func SwizzleMask(letters string) uint32 {
	lanes := make([]int, len(letters))
	for i, c := range letters {
		switch c {
		case 'x', 'r': lanes[i] = 0
		case 'y', 'g': lanes[i] = 1
		case 'z', 'b': lanes[i] = 2
		case 'w', 'a': lanes[i] = 3
		default: util.Unimplemented("swizzle %q", letters)
		}
	}
	return EncodeSwizzle(lanes...)
}

func (s *SISD) constIndex(i int) ir.Value { return ir.NewConst(ir.I32, int64(i)) }

// EmitExtractCol gathers lane index of every row.
func (s *SISD) EmitExtractCol(m Value, index int) Value {
	ty := m.Type()
	if !ty.IsMatrix() { util.ContractViolation("column of %s", ty) }
	x := s.Load(m)
	lanes := make([]ir.Value, ty.Rows)
	for r := range lanes {
		lanes[r] = s.extract(s.extract(x, r), index)
	}
	col := ty.ColType()
	return s.value(col, s.build(s.CreateTyInfo(col).IRType(ABILLVM), lanes))
}

// EmitExtractElem yields an addressable element of a storable source and a
// copy otherwise.
func (s *SISD) EmitExtractElem(vec, idx Value) Value {
	if vec.Storable() { return s.EmitExtractRef(vec, idx) }
	return s.EmitExtractVal(vec, idx)
}

func (s *SISD) EmitExtractElemAt(vec Value, idx int) Value {
	if vec.Storable() { return s.EmitExtractRefAt(vec, idx) }
	return s.EmitExtractValAt(vec, idx)
}

func (s *SISD) EmitExtractRefAt(v Value, idx int) Value {
	if !v.Storable() { util.ContractViolation("reference into a register value") }
	if v.parent != nil {
		lanes := DecodeSwizzle(v.masks)
		return s.EmitExtractRefAt(*v.parent, lanes[idx])
	}
	return s.EmitExtractRef(v, s.value(syntax.TypeInt, s.constIndex(idx)))
}

// EmitExtractRef addresses member idx in place. The index is not range checked.
func (s *SISD) EmitExtractRef(v, idx Value) Value {
	if !v.Storable() || v.parent != nil { util.ContractViolation("dynamic reference into a non-addressable value") }
	member := s.MemberTyInfo(v.tyinfo, 0)
	i := s.Load(idx)
	if v.Type().IsStruct() {
		k, ok := i.(*ir.Const)
		if !ok { util.ContractViolation("dynamic struct member index") }
		member = s.MemberTyInfo(v.tyinfo, int(k.Value))
	}
	ptr := s.newTemp(ir.Ptr)
	s.addInstr(&ir.Instruction{Op: ir.OpElemPtr, Typ: ir.Ptr, Elem: v.tyinfo.IRType(v.abi), Result: ptr, Args: []ir.Value{v.raw[0], i}})
	return s.CreateValue(member, ptr, KindReference, v.abi)
}

func (s *SISD) EmitExtractValAt(v Value, idx int) Value {
	member := s.MemberTyInfo(v.tyinfo, idx)
	if v.kind == KindAggregate {
		return s.CreateValue(member, v.raw[idx], KindValue, v.abi)
	}
	return s.CreateValue(member, s.extract(s.Load(v), idx), KindValue, ABILLVM)
}

// EmitExtractVal copies member idx out. Vectors extract directly; arrays
// are spilled so the member can be addressed with a runtime index.
func (s *SISD) EmitExtractVal(v, idx Value) Value {
	if k, ok := s.Load(idx).(*ir.Const); ok { return s.EmitExtractValAt(v, int(k.Value)) }
	ty := v.Type()
	if ty.IsStruct() { util.ContractViolation("dynamic struct member index") }
	member := s.MemberTyInfo(v.tyinfo, 0)
	x := s.Load(v)
	if ty.IsVector() {
		return s.CreateValue(member, s.emit(ir.OpExtract, x.Type().Elem, x, s.Load(idx)), KindValue, ABILLVM)
	}
	slot := s.spill(v)
	return s.value(member.ty, s.Load(s.EmitExtractRef(slot, idx)))
}

func (s *SISD) spill(v Value) Value {
	slot := s.CreateVariable(v.tyinfo, ABILLVM, "spill")
	s.Store(slot, v)
	return slot
}

// EmitInsertValAt replaces member idx. Through a reference the update is
// stored and visible via v; otherwise a new value is returned.
func (s *SISD) EmitInsertValAt(v Value, idx int, elem Value) Value {
	if v.Storable() {
		s.Store(s.EmitExtractRefAt(v, idx), elem)
		return v
	}
	x := s.Load(v)
	return s.value(v.Type(), s.insert(x, s.Load(elem), idx))
}

func (s *SISD) EmitInsertVal(v, idx, elem Value) Value {
	if k, ok := s.Load(idx).(*ir.Const); ok { return s.EmitInsertValAt(v, int(k.Value), elem) }
	if v.Storable() {
		s.Store(s.EmitExtractRef(v, idx), elem)
		return v
	}
	ty := v.Type()
	x := s.Load(v)
	if ty.IsVector() {
		return s.value(ty, s.emit(ir.OpInsert, x.Type(), x, s.Load(elem), s.Load(idx)))
	}
	slot := s.spill(v)
	s.Store(s.EmitExtractRef(slot, idx), elem)
	return s.value(ty, s.Load(slot))
}

// EmitExtractElemMask reads the lanes selected by mask. From a storable
// vector the result is a masked reference that can be stored to.
func (s *SISD) EmitExtractElemMask(vec Value, mask uint32) Value {
	lanes := DecodeSwizzle(mask)
	ty := vec.Type()
	if !ty.IsVector() && !ty.IsScalar() { util.Unimplemented("swizzle of %s", ty) }
	for _, l := range lanes {
		if l >= ty.Lanes() { util.ContractViolation("swizzle lane %d of %s", l, ty) }
	}
	if vec.Storable() && ty.IsVector() { return s.maskedRef(vec, lanes) }
	return s.EmitSwizzle(vec, mask)
}

// EmitSwizzle always produces a register value; lanes may repeat.
func (s *SISD) EmitSwizzle(vec Value, mask uint32) Value {
	lanes := DecodeSwizzle(mask)
	ty := vec.Type()
	x := s.Load(vec)
	pick := func(l int) ir.Value {
		if ty.IsScalar() { return x }
		return s.extract(x, l)
	}
	if len(lanes) == 1 { return s.value(ty.ScalarType(), pick(lanes[0])) }
	res := syntax.Vector(ty.Scalar, len(lanes))
	elems := make([]ir.Value, len(lanes))
	for i, l := range lanes {
		elems[i] = pick(l)
	}
	return s.value(res, s.build(s.CreateTyInfo(res).IRType(ABILLVM), elems))
}

// EmitWriteMask returns a reference that, when stored to, only replaces the
// selected lanes of vec.
func (s *SISD) EmitWriteMask(vec Value, mask uint32) Value {
	if !vec.Storable() || !vec.Type().IsVector() { util.ContractViolation("write mask on %s", vec.Type()) }
	lanes := DecodeSwizzle(mask)
	seen := make(map[int]bool)
	for _, l := range lanes {
		if l >= vec.Type().Lanes() { util.ContractViolation("write mask lane %d of %s", l, vec.Type()) }
		if seen[l] { util.ContractViolation("write mask writes lane %d twice", l) }
		seen[l] = true
	}
	return s.maskedRef(vec, lanes)
}

func (s *SISD) maskedRef(vec Value, lanes []int) Value {
	if vec.parent != nil {
		outer := DecodeSwizzle(vec.masks)
		for i, l := range lanes {
			if l >= len(outer) { util.ContractViolation("lane %d of a %d-lane swizzle", l, len(outer)) }
			lanes[i] = outer[l]
		}
		vec = *vec.parent
	}
	ty := vec.Type()
	res := ty.ScalarType()
	if len(lanes) > 1 { res = syntax.Vector(ty.Scalar, len(lanes)) }
	parent := vec
	return Value{kind: KindReference, tyinfo: s.CreateTyInfo(res), abi: ABILLVM, parent: &parent, masks: EncodeSwizzle(lanes...)}
}
