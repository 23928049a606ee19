package ir

import (
	"fmt"
	"strconv"
	"strings"
)

type Op int

const (
	OpAlloc Op = iota
	OpLoad
	OpStore
	OpElemPtr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpNegF
	OpCEq
	OpCNeq
	OpCLt
	OpCGt
	OpCLe
	OpCGe
	OpExt
	OpTrunc
	OpIToF
	OpFToI
	OpFToF
	OpExtract
	OpInsert
	OpSelect
	OpCopy
	OpCall
	OpPhi
	OpJmp
	OpJnz
	OpSwitch
	OpRet
	OpUnreachable
)

var opNames = [...]string{
	OpAlloc: "alloc", OpLoad: "load", OpStore: "store", OpElemPtr: "elemptr",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpShl: "shl", OpShr: "shr",
	OpAddF: "addf", OpSubF: "subf", OpMulF: "mulf", OpDivF: "divf", OpNegF: "negf",
	OpCEq: "ceq", OpCNeq: "cne", OpCLt: "clt", OpCGt: "cgt", OpCLe: "cle", OpCGe: "cge",
	OpExt: "ext", OpTrunc: "trunc", OpIToF: "itof", OpFToI: "ftoi", OpFToF: "ftof",
	OpExtract: "extract", OpInsert: "insert", OpSelect: "select", OpCopy: "copy",
	OpCall: "call", OpPhi: "phi", OpJmp: "jmp", OpJnz: "jnz", OpSwitch: "switch",
	OpRet: "ret", OpUnreachable: "unreachable",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" { return opNames[op] }
	return fmt.Sprintf("op(%d)", int(op))
}

func (op Op) IsTerminator() bool {
	switch op {
	case OpJmp, OpJnz, OpSwitch, OpRet, OpUnreachable: return true
	}
	return false
}

func (op Op) IsCompare() bool { return op >= OpCEq && op <= OpCGe }

type Kind int

const (
	KindVoid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindPtr
	KindVector
	KindArray
	KindStruct
)

// Type is a structural IR type. Integer types carry signedness so that
// division, shifts, comparisons and conversions need no separate opcodes.
type Type struct {
	Kind   Kind
	Bits   int
	Signed bool
	Len    int
	Elem   *Type
	Fields []*Type
}

var (
	Void = &Type{Kind: KindVoid}
	Bool = &Type{Kind: KindBool, Bits: 1}
	I8   = IntType(8, true)
	I16  = IntType(16, true)
	I32  = IntType(32, true)
	I64  = IntType(64, true)
	U8   = IntType(8, false)
	U16  = IntType(16, false)
	U32  = IntType(32, false)
	U64  = IntType(64, false)
	F32  = FloatType(32)
	F64  = FloatType(64)
	Ptr  = &Type{Kind: KindPtr, Bits: 64}
)

func IntType(bits int, signed bool) *Type { return &Type{Kind: KindInt, Bits: bits, Signed: signed} }
func FloatType(bits int) *Type           { return &Type{Kind: KindFloat, Bits: bits} }
func VectorOf(elem *Type, n int) *Type   { return &Type{Kind: KindVector, Elem: elem, Len: n} }
func ArrayOf(elem *Type, n int) *Type    { return &Type{Kind: KindArray, Elem: elem, Len: n} }
func StructOf(fields ...*Type) *Type     { return &Type{Kind: KindStruct, Fields: fields} }

func (t *Type) IsInt() bool       { return t != nil && t.Kind == KindInt }
func (t *Type) IsFloat() bool     { return t != nil && t.Kind == KindFloat }
func (t *Type) IsBool() bool      { return t != nil && t.Kind == KindBool }
func (t *Type) IsVector() bool    { return t != nil && t.Kind == KindVector }
func (t *Type) IsAggregate() bool { return t != nil && (t.Kind == KindArray || t.Kind == KindStruct) }
func (t *Type) IsVoid() bool      { return t == nil || t.Kind == KindVoid }

// Scalar returns the lane type of a vector, or t itself.
func (t *Type) Scalar() *Type {
	if t.IsVector() { return t.Elem }
	return t
}

// Lanes returns the lane count of a vector, 1 for anything else.
func (t *Type) Lanes() int {
	if t.IsVector() { return t.Len }
	return 1
}

// Member returns the type of element i of a vector, array or struct.
func (t *Type) Member(i int) *Type {
	switch t.Kind {
	case KindVector, KindArray: return t.Elem
	case KindStruct:
		if i >= 0 && i < len(t.Fields) { return t.Fields[i] }
	}
	return nil
}

// Count returns the number of members of an aggregate or vector.
func (t *Type) Count() int {
	switch t.Kind {
	case KindVector, KindArray: return t.Len
	case KindStruct: return len(t.Fields)
	}
	return 0
}

// Wrap truncates v to the width of an integer or bool type, extending it
// back to 64 bits by the type's signedness.
func (t *Type) Wrap(v int64) int64 {
	switch {
	case t.IsBool():
		if v != 0 { return 1 }
		return 0
	case t.IsInt() && t.Bits < 64:
		shift := 64 - uint(t.Bits)
		if t.Signed { return v << shift >> shift }
		return int64(uint64(v) << shift >> shift)
	}
	return v
}

func (t *Type) Equal(o *Type) bool {
	if t == o { return true }
	if t == nil || o == nil || t.Kind != o.Kind { return false }
	switch t.Kind {
	case KindInt: return t.Bits == o.Bits && t.Signed == o.Signed
	case KindFloat: return t.Bits == o.Bits
	case KindVector, KindArray: return t.Len == o.Len && t.Elem.Equal(o.Elem)
	case KindStruct:
		if len(t.Fields) != len(o.Fields) { return false }
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) { return false }
		}
	}
	return true
}

// Size is the in-memory size in bytes, using natural alignment.
func (t *Type) Size() int64 {
	switch t.Kind {
	case KindBool: return 1
	case KindInt, KindFloat, KindPtr: return int64(t.Bits / 8)
	case KindVector, KindArray: return int64(t.Len) * t.Elem.Size()
	case KindStruct:
		var off int64
		for _, f := range t.Fields {
			a := f.Align()
			off = (off + a - 1) / a * a
			off += f.Size()
		}
		a := t.Align()
		return (off + a - 1) / a * a
	}
	return 0
}

func (t *Type) Align() int64 {
	switch t.Kind {
	case KindVector, KindArray: return t.Elem.Align()
	case KindStruct:
		var a int64 = 1
		for _, f := range t.Fields {
			a = max(a, f.Align())
		}
		return a
	}
	return max(t.Size(), 1)
}

func (t *Type) String() string {
	if t == nil { return "void" }
	switch t.Kind {
	case KindVoid: return "void"
	case KindBool: return "bool"
	case KindInt:
		if t.Signed { return "i" + strconv.Itoa(t.Bits) }
		return "u" + strconv.Itoa(t.Bits)
	case KindFloat: return "f" + strconv.Itoa(t.Bits)
	case KindPtr: return "ptr"
	case KindVector: return fmt.Sprintf("<%d x %s>", t.Len, t.Elem)
	case KindArray: return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case KindStruct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}

type Value interface {
	Type() *Type
	String() string
}

type Const struct{ Typ *Type; Value int64 }
type FloatConst struct{ Typ *Type; Value float64 }
type Undef struct{ Typ *Type }
type Zero struct{ Typ *Type }
type Temporary struct{ Name string; ID int; Typ *Type }
type Param struct{ Name string; Typ *Type; Index int }
type FuncRef struct{ Func *Func }

// ConstAgg is a constant vector, array or struct built from constant members.
type ConstAgg struct{ Typ *Type; Elems []Value }

func (c *Const) Type() *Type      { return c.Typ }
func (f *FloatConst) Type() *Type { return f.Typ }
func (u *Undef) Type() *Type      { return u.Typ }
func (z *Zero) Type() *Type       { return z.Typ }
func (t *Temporary) Type() *Type  { return t.Typ }
func (p *Param) Type() *Type      { return p.Typ }
func (f *FuncRef) Type() *Type    { return Ptr }
func (c *ConstAgg) Type() *Type   { return c.Typ }

func (c *Const) String() string {
	if c.Typ.IsBool() {
		if c.Value != 0 { return "true" }
		return "false"
	}
	return strconv.FormatInt(c.Value, 10)
}
func (f *FloatConst) String() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }
func (u *Undef) String() string      { return "undef" }
func (z *Zero) String() string       { return "zero" }
func (t *Temporary) String() string  { return "%" + t.Name }
func (p *Param) String() string      { return "%" + p.Name }
func (f *FuncRef) String() string    { return "@" + f.Func.Name }
func (c *ConstAgg) String() string {
	parts := make([]string, len(c.Elems))
	for i, e := range c.Elems {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func NewConst(t *Type, v int64) *Const          { return &Const{Typ: t, Value: v} }
func NewFloat(t *Type, v float64) *FloatConst   { return &FloatConst{Typ: t, Value: v} }
func NewBool(v bool) *Const {
	if v { return &Const{Typ: Bool, Value: 1} }
	return &Const{Typ: Bool, Value: 0}
}

// IsConstant reports whether v needs no instruction to materialize.
func IsConstant(v Value) bool {
	switch v := v.(type) {
	case *Const, *FloatConst, *Undef, *Zero: return true
	case *ConstAgg:
		for _, e := range v.Elems {
			if !IsConstant(e) { return false }
		}
		return true
	}
	return false
}

// Instruction fields by opcode:
//   Alloc      Elem = allocated type, Result ptr
//   ElemPtr    Elem = pointee type of Args[0], Args[1:] member indices
//   Jnz        Targets = [then, else]
//   Switch     Targets[0] = default, Targets[1:] aligned with Cases
//   Phi        Args[i] flows in from Targets[i]
//   Call       Args[0] is a *FuncRef
type Instruction struct {
	Op      Op
	Typ     *Type
	Elem    *Type
	Result  *Temporary
	Args    []Value
	Targets []*BasicBlock
	Cases   []int64
}
