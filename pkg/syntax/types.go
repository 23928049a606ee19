package syntax

import (
	"fmt"
	"strings"
)

// TypeKind defines the shape of a Type
type TypeKind int

const (
	TYPE_VOID TypeKind = iota
	TYPE_SCALAR
	TYPE_VECTOR
	TYPE_MATRIX
	TYPE_STRUCT
)

// ScalarKind is the builtin scalar category of a type or of its lanes
type ScalarKind int

const (
	SCALAR_NONE ScalarKind = iota
	SCALAR_BOOL
	SCALAR_SINT8
	SCALAR_SINT16
	SCALAR_SINT32
	SCALAR_SINT64
	SCALAR_UINT8
	SCALAR_UINT16
	SCALAR_UINT32
	SCALAR_UINT64
	SCALAR_FLOAT
	SCALAR_DOUBLE
)

var scalarNames = map[ScalarKind]string{
	SCALAR_BOOL: "bool", SCALAR_SINT8: "sbyte", SCALAR_SINT16: "short", SCALAR_SINT32: "int", SCALAR_SINT64: "long",
	SCALAR_UINT8: "ubyte", SCALAR_UINT16: "ushort", SCALAR_UINT32: "uint", SCALAR_UINT64: "ulong",
	SCALAR_FLOAT: "float", SCALAR_DOUBLE: "double",
}

func (k ScalarKind) String() string {
	if n, ok := scalarNames[k]; ok { return n }
	return "none"
}

func (k ScalarKind) IsFloat() bool  { return k == SCALAR_FLOAT || k == SCALAR_DOUBLE }
func (k ScalarKind) IsInt() bool    { return k >= SCALAR_SINT8 && k <= SCALAR_UINT64 }
func (k ScalarKind) IsSigned() bool { return k >= SCALAR_SINT8 && k <= SCALAR_SINT64 }
func (k ScalarKind) IsBool() bool   { return k == SCALAR_BOOL }

// Bits is the storage width of one scalar.
func (k ScalarKind) Bits() int {
	switch k {
	case SCALAR_BOOL: return 1
	case SCALAR_SINT8, SCALAR_UINT8: return 8
	case SCALAR_SINT16, SCALAR_UINT16: return 16
	case SCALAR_SINT32, SCALAR_UINT32, SCALAR_FLOAT: return 32
	case SCALAR_SINT64, SCALAR_UINT64, SCALAR_DOUBLE: return 64
	}
	return 0
}

type Field struct {
	Name string
	Typ  *Type
}

// Type is a semantic type. Matrices have Rows rows of Cols lanes each and
// are laid out row-major.
type Type struct {
	Kind   TypeKind
	Scalar ScalarKind
	Len    int
	Rows   int
	Cols   int
	Name   string
	Fields []Field
}

var (
	TypeVoid   = &Type{Kind: TYPE_VOID}
	TypeBool   = Scalar(SCALAR_BOOL)
	TypeInt    = Scalar(SCALAR_SINT32)
	TypeUint   = Scalar(SCALAR_UINT32)
	TypeFloat  = Scalar(SCALAR_FLOAT)
	TypeDouble = Scalar(SCALAR_DOUBLE)
	TypeFloat2 = Vector(SCALAR_FLOAT, 2)
	TypeFloat3 = Vector(SCALAR_FLOAT, 3)
	TypeFloat4 = Vector(SCALAR_FLOAT, 4)
)

func Scalar(k ScalarKind) *Type            { return &Type{Kind: TYPE_SCALAR, Scalar: k} }
func Vector(k ScalarKind, n int) *Type     { return &Type{Kind: TYPE_VECTOR, Scalar: k, Len: n} }
func Matrix(k ScalarKind, rows, cols int) *Type {
	return &Type{Kind: TYPE_MATRIX, Scalar: k, Rows: rows, Cols: cols}
}
func Struct(name string, fields ...Field) *Type { return &Type{Kind: TYPE_STRUCT, Name: name, Fields: fields} }

func (t *Type) IsVoid() bool   { return t == nil || t.Kind == TYPE_VOID }
func (t *Type) IsScalar() bool { return t != nil && t.Kind == TYPE_SCALAR }
func (t *Type) IsVector() bool { return t != nil && t.Kind == TYPE_VECTOR }
func (t *Type) IsMatrix() bool { return t != nil && t.Kind == TYPE_MATRIX }
func (t *Type) IsStruct() bool { return t != nil && t.Kind == TYPE_STRUCT }

// IsBuiltin reports scalars, vectors and matrices.
func (t *Type) IsBuiltin() bool { return t.IsScalar() || t.IsVector() || t.IsMatrix() }

// IsAggregate reports types that are lowered to arrays or structs in memory.
func (t *Type) IsAggregate() bool { return t.IsMatrix() || t.IsStruct() }

// Lanes is the lane count of a vector, 1 for a scalar.
func (t *Type) Lanes() int {
	if t.IsVector() { return t.Len }
	return 1
}

// RowType is the row vector of a matrix.
func (t *Type) RowType() *Type { return Vector(t.Scalar, t.Cols) }

// ColType is the column vector of a matrix.
func (t *Type) ColType() *Type { return Vector(t.Scalar, t.Rows) }

// ScalarType is the lane type of a builtin.
func (t *Type) ScalarType() *Type { return Scalar(t.Scalar) }

// Member returns the type of member i: lane, row or field.
func (t *Type) Member(i int) *Type {
	switch t.Kind {
	case TYPE_VECTOR: return t.ScalarType()
	case TYPE_MATRIX: return t.RowType()
	case TYPE_STRUCT:
		if i >= 0 && i < len(t.Fields) { return t.Fields[i].Typ }
	}
	return nil
}

// Count returns the number of members: lanes, rows or fields.
func (t *Type) Count() int {
	switch t.Kind {
	case TYPE_VECTOR: return t.Len
	case TYPE_MATRIX: return t.Rows
	case TYPE_STRUCT: return len(t.Fields)
	}
	return 0
}

func (t *Type) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name { return i }
	}
	return -1
}

// WithScalar returns a type of the same shape with a different lane type.
func (t *Type) WithScalar(k ScalarKind) *Type {
	switch t.Kind {
	case TYPE_SCALAR: return Scalar(k)
	case TYPE_VECTOR: return Vector(k, t.Len)
	case TYPE_MATRIX: return Matrix(k, t.Rows, t.Cols)
	}
	return t
}

func (t *Type) Equal(o *Type) bool { return t.String() == o.String() }

func (t *Type) String() string {
	if t == nil { return "void" }
	switch t.Kind {
	case TYPE_VOID: return "void"
	case TYPE_SCALAR: return t.Scalar.String()
	case TYPE_VECTOR: return fmt.Sprintf("%s%d", t.Scalar, t.Len)
	case TYPE_MATRIX: return fmt.Sprintf("%s%dx%d", t.Scalar, t.Rows, t.Cols)
	case TYPE_STRUCT:
		var sb strings.Builder
		sb.WriteString("struct " + t.Name + " {")
		for i, f := range t.Fields {
			if i > 0 { sb.WriteString(";") }
			fmt.Fprintf(&sb, " %s %s", f.Typ, f.Name)
		}
		sb.WriteString(" }")
		return sb.String()
	}
	return "?"
}
