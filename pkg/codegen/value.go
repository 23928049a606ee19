package codegen

import (
	"math"

	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/syntax"
	"github.com/sasl-lang/sasl/pkg/util"
)

type ValueKind int

const (
	KindUnknown ValueKind = iota
	// KindValue is a register value; it cannot be stored to.
	KindValue
	// KindReference is addressable: raw[0] points at the storage.
	KindReference
	// KindAggregate keeps one raw handle per member until it is loaded.
	KindAggregate
)

// Value is a typed handle to a computed or addressable quantity. It is
// copied freely; only Store writes through it.
type Value struct {
	kind   ValueKind
	raw    []ir.Value
	tyinfo *TyInfo
	abi    ABI

	// A masked reference selects lanes of parent.
	parent *Value
	masks  uint32
}

func (v Value) Kind() ValueKind     { return v.kind }
func (v Value) TyInfo() *TyInfo     { return v.tyinfo }
func (v Value) ABI() ABI            { return v.abi }
func (v Value) Valid() bool         { return v.kind != KindUnknown && v.tyinfo != nil }
func (v Value) Storable() bool      { return v.kind == KindReference }
func (v Value) Masks() uint32       { return v.masks }
func (v Value) Type() *syntax.Type {
	if v.tyinfo == nil { return nil }
	return v.tyinfo.ty
}

// Raw returns the single underlying IR handle, nil for masked references.
func (v Value) Raw() ir.Value {
	if len(v.raw) == 0 { return nil }
	return v.raw[0]
}

func (v Value) Raws() []ir.Value { return append([]ir.Value(nil), v.raw...) }

func (s *SISD) CreateValue(tyi *TyInfo, raw ir.Value, kind ValueKind, abi ABI) Value {
	if tyi == nil { util.ContractViolation("value without type information") }
	return Value{kind: kind, raw: []ir.Value{raw}, tyinfo: tyi, abi: abi}
}

func (s *SISD) CreateValueBT(bt *syntax.Type, raw ir.Value, kind ValueKind, abi ABI) Value {
	if !bt.IsBuiltin() { util.ContractViolation("%s is not a builtin type", bt) }
	return s.CreateValue(s.CreateTyInfo(bt), raw, kind, abi)
}

func (s *SISD) CreateScalar(raw ir.Value, tyi *TyInfo) Value {
	return s.CreateValue(tyi, raw, KindValue, ABILLVM)
}

func (s *SISD) value(ty *syntax.Type, raw ir.Value) Value {
	return s.CreateValue(s.CreateTyInfo(ty), raw, KindValue, ABILLVM)
}

// LiteralTag is the numeric category a constant builder dispatches on.
type LiteralTag int

const (
	TagSint LiteralTag = iota
	TagUint
	TagFloat
)

// Literal is a source immediate. Int holds the two's complement bits of
// integer literals; Bits is the width of the Go type it came from.
type Literal struct {
	Tag   LiteralTag
	Bits  int
	Int   int64
	Float float64
}

type Number interface {
	int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

func LiteralOf[T Number](v T) Literal {
	switch x := any(v).(type) {
	case int: return Literal{Tag: TagSint, Bits: 64, Int: int64(x)}
	case int8: return Literal{Tag: TagSint, Bits: 8, Int: int64(x)}
	case int16: return Literal{Tag: TagSint, Bits: 16, Int: int64(x)}
	case int32: return Literal{Tag: TagSint, Bits: 32, Int: int64(x)}
	case int64: return Literal{Tag: TagSint, Bits: 64, Int: x}
	case uint: return Literal{Tag: TagUint, Bits: 64, Int: int64(x)}
	case uint8: return Literal{Tag: TagUint, Bits: 8, Int: int64(x)}
	case uint16: return Literal{Tag: TagUint, Bits: 16, Int: int64(x)}
	case uint32: return Literal{Tag: TagUint, Bits: 32, Int: int64(x)}
	case uint64: return Literal{Tag: TagUint, Bits: 64, Int: int64(x)}
	case float32: return Literal{Tag: TagFloat, Bits: 32, Float: float64(x)}
	case float64: return Literal{Tag: TagFloat, Bits: 64, Float: x}
	}
	return Literal{}
}

// irConst builds the immediate with the literal's own width and
// signedness, then folds it to t when the descriptor differs.
func irConst(lit Literal, t *ir.Type) ir.Value {
	var c ir.Value
	switch lit.Tag {
	case TagSint: c = ir.NewConst(ir.IntType(lit.Bits, true), ir.IntType(lit.Bits, true).Wrap(lit.Int))
	case TagUint: c = ir.NewConst(ir.IntType(lit.Bits, false), ir.IntType(lit.Bits, false).Wrap(lit.Int))
	case TagFloat: c = ir.NewFloat(ir.FloatType(lit.Bits), lit.Float)
	default: util.Unimplemented("literal tag %d", lit.Tag)
	}
	if c.Type().Equal(t) { return c }
	return foldConst(c, t)
}

func foldConst(c ir.Value, t *ir.Type) ir.Value {
	switch c := c.(type) {
	case *ir.Const:
		switch {
		case t.IsBool(), t.IsInt(): return ir.NewConst(t, t.Wrap(c.Value))
		case t.IsFloat():
			f := float64(c.Value)
			if c.Typ.IsInt() && !c.Typ.Signed { f = float64(uint64(c.Value)) }
			return ir.NewFloat(t, roundFloat(f, t.Bits))
		}
	case *ir.FloatConst:
		switch {
		case t.IsBool(): return ir.NewBool(c.Value != 0)
		case t.IsInt():
			if !t.Signed && c.Value >= math.MaxInt64 { return ir.NewConst(t, t.Wrap(int64(uint64(c.Value)))) }
			return ir.NewConst(t, t.Wrap(int64(c.Value)))
		case t.IsFloat(): return ir.NewFloat(t, roundFloat(c.Value, t.Bits))
		}
	}
	util.Unimplemented("folding %s to %s", c.Type(), t)
	return nil
}

func roundFloat(f float64, bits int) float64 {
	if bits == 32 { return float64(float32(f)) }
	return f
}

// CreateConstantScalar builds a scalar immediate. A nil descriptor would
// require inferring the type from the literal, which is not supported.
func (s *SISD) CreateConstantScalar(lit Literal, tyi *TyInfo) Value {
	if tyi == nil { util.Unimplemented("type inference for %v literal without a descriptor", lit.Tag) }
	if !tyi.ty.IsScalar() { util.ContractViolation("scalar literal of type %s", tyi.ty) }
	return s.CreateScalar(irConst(lit, tyi.IRType(ABILLVM)), tyi)
}

func (s *SISD) CreateConstantVector(lits []Literal, ty *syntax.Type, abi ABI) Value {
	if !ty.IsVector() || len(lits) != ty.Len { util.ContractViolation("%d literals for %s", len(lits), ty) }
	tyi := s.CreateTyInfo(ty)
	t := tyi.IRType(abi)
	elems := make([]ir.Value, len(lits))
	for i, lit := range lits {
		elems[i] = irConst(lit, t.Elem)
	}
	return s.CreateValue(tyi, &ir.ConstAgg{Typ: t, Elems: elems}, KindValue, abi)
}

// CreateConstantMatrix takes the literals in row-major order.
func (s *SISD) CreateConstantMatrix(lits []Literal, ty *syntax.Type, abi ABI) Value {
	if !ty.IsMatrix() || len(lits) != ty.Rows*ty.Cols { util.ContractViolation("%d literals for %s", len(lits), ty) }
	tyi := s.CreateTyInfo(ty)
	t := tyi.IRType(abi)
	rows := make([]ir.Value, ty.Rows)
	for r := range rows {
		lanes := make([]ir.Value, ty.Cols)
		for c := range lanes {
			lanes[c] = irConst(lits[r*ty.Cols+c], t.Elem.Elem)
		}
		rows[r] = &ir.ConstAgg{Typ: t.Elem, Elems: lanes}
	}
	return s.CreateValue(tyi, &ir.ConstAgg{Typ: t, Elems: rows}, KindValue, abi)
}

func ConstantScalar[T Number](s *SISD, v T, tyi *TyInfo) Value {
	return s.CreateConstantScalar(LiteralOf(v), tyi)
}

func ConstantVector[T Number](s *SISD, ty *syntax.Type, abi ABI, vals ...T) Value {
	return s.CreateConstantVector(literals(vals), ty, abi)
}

func ConstantMatrix[T Number](s *SISD, ty *syntax.Type, abi ABI, vals ...T) Value {
	return s.CreateConstantMatrix(literals(vals), ty, abi)
}

func literals[T Number](vals []T) []Literal {
	lits := make([]Literal, len(vals))
	for i, v := range vals {
		lits[i] = LiteralOf(v)
	}
	return lits
}

// CreateVector groups scalars into a vector without emitting anything yet.
func (s *SISD) CreateVector(scalars []Value, abi ABI) Value {
	if len(scalars) == 0 { util.ContractViolation("empty vector") }
	ty := syntax.Vector(scalars[0].Type().Scalar, len(scalars))
	raws := make([]ir.Value, len(scalars))
	for i, sc := range scalars {
		if !sc.Type().IsScalar() { util.ContractViolation("vector lane of type %s", sc.Type()) }
		raws[i] = s.LoadABI(sc, abi)
	}
	return Value{kind: KindAggregate, raw: raws, tyinfo: s.CreateTyInfo(ty), abi: abi}
}

func (s *SISD) NullValue(tyi *TyInfo, abi ABI) Value {
	return s.CreateValue(tyi, &ir.Zero{Typ: tyi.IRType(abi)}, KindValue, abi)
}

func (s *SISD) NullValueBT(bt *syntax.Type, abi ABI) Value { return s.NullValue(s.CreateTyInfo(bt), abi) }

func (s *SISD) UndefValue(bt *syntax.Type, abi ABI) Value {
	tyi := s.CreateTyInfo(bt)
	return s.CreateValue(tyi, &ir.Undef{Typ: tyi.IRType(abi)}, KindValue, abi)
}

// CreateVariable allocates an uninitialized slot.
func (s *SISD) CreateVariable(tyi *TyInfo, abi ABI, name string) Value {
	return s.CreateValue(tyi, s.alloca(tyi.IRType(abi), name), KindReference, abi)
}

func (s *SISD) CreateVariableBT(bt *syntax.Type, abi ABI, name string) Value {
	return s.CreateVariable(s.CreateTyInfo(bt), abi, name)
}

func (s *SISD) Load(v Value) ir.Value { return s.LoadABI(v, ABILLVM) }

// LoadABI reads v as a register value laid out for abi.
func (s *SISD) LoadABI(v Value, abi ABI) ir.Value {
	switch v.kind {
	case KindValue:
		return s.convertABI(v.raw[0], v.tyinfo.ty, v.abi, abi)
	case KindAggregate:
		return s.convertABI(s.build(v.tyinfo.IRType(v.abi), v.raw), v.tyinfo.ty, v.abi, abi)
	case KindReference:
		if v.parent != nil {
			src := s.Load(*v.parent)
			lanes := DecodeSwizzle(v.masks)
			var x ir.Value
			if len(lanes) == 1 {
				x = s.extract(src, lanes[0])
			} else {
				elems := make([]ir.Value, len(lanes))
				for i, l := range lanes {
					elems[i] = s.extract(src, l)
				}
				x = s.build(v.tyinfo.IRType(ABILLVM), elems)
			}
			return s.convertABI(x, v.tyinfo.ty, ABILLVM, abi)
		}
		x := s.emit(ir.OpLoad, v.tyinfo.IRType(v.abi), v.raw[0])
		return s.convertABI(x, v.tyinfo.ty, v.abi, abi)
	}
	util.ContractViolation("load of an invalid value")
	return nil
}

// LoadRef returns the address of a reference.
func (s *SISD) LoadRef(v Value) ir.Value {
	if v.kind != KindReference || v.parent != nil { util.ContractViolation("address of a non-addressable value") }
	return v.raw[0]
}

// Store writes rhs through lhs. A masked lhs only replaces its selected lanes.
func (s *SISD) Store(lhs, rhs Value) {
	if lhs.kind != KindReference { util.ContractViolation("store to a register value") }
	if lhs.parent == nil {
		s.addInstr(&ir.Instruction{Op: ir.OpStore, Args: []ir.Value{s.LoadABI(rhs, lhs.abi), lhs.raw[0]}})
		return
	}
	whole := s.Load(*lhs.parent)
	src := s.Load(rhs)
	lanes := DecodeSwizzle(lhs.masks)
	for i, lane := range lanes {
		elem := src
		if src.Type().IsVector() { elem = s.extract(src, i) }
		whole = s.insert(whole, elem, lane)
	}
	s.Store(*lhs.parent, s.value(lhs.parent.Type(), whole))
}

// convertABI converts a register value between layouts.
func (s *SISD) convertABI(x ir.Value, ty *syntax.Type, from, to ABI) ir.Value {
	if from == to { return x }
	tyi := s.CreateTyInfo(ty)
	dst := tyi.IRType(to)
	if tyi.IRType(from).Equal(dst) { return x }

	switch x := x.(type) {
	case *ir.Zero: return &ir.Zero{Typ: dst}
	case *ir.Undef: return &ir.Undef{Typ: dst}
	case *ir.Const: return foldConst(x, dst)
	}

	if ty.IsScalar() {
		if dst.IsBool() { return s.emit(ir.OpCNeq, ir.Bool, x, ir.NewConst(x.Type(), 0)) }
		return s.emit(ir.OpExt, dst, x)
	}
	n := ty.Count()
	elems := make([]ir.Value, n)
	for i := 0; i < n; i++ {
		elems[i] = s.convertABI(s.extract(x, i), ty.Member(i), from, to)
	}
	return s.build(dst, elems)
}
