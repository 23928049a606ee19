package syntax

import "testing"

func TestTypeStrings(t *testing.T) {
	light := Struct("Light", Field{Name: "pos", Typ: TypeFloat3}, Field{Name: "intensity", Typ: TypeFloat})
	tests := []struct {
		typ  *Type
		want string
	}{
		{nil, "void"},
		{TypeInt, "int"},
		{Scalar(SCALAR_UINT8), "ubyte"},
		{TypeFloat4, "float4"},
		{Matrix(SCALAR_FLOAT, 3, 4), "float3x4"},
		{light, "struct Light { float3 pos; float intensity }"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want { t.Errorf("got %q, want %q", got, tt.want) }
	}
}

func TestTypeShape(t *testing.T) {
	m := Matrix(SCALAR_DOUBLE, 2, 3)
	if !m.RowType().Equal(Vector(SCALAR_DOUBLE, 3)) || !m.ColType().Equal(Vector(SCALAR_DOUBLE, 2)) { t.Error("row/column types") }
	if m.Count() != 2 || !m.Member(1).Equal(m.RowType()) { t.Error("matrix members are its rows") }
	if TypeFloat3.Lanes() != 3 || TypeFloat.Lanes() != 1 { t.Error("lanes") }
	if got := m.WithScalar(SCALAR_BOOL).String(); got != "bool2x3" { t.Errorf("WithScalar = %s", got) }
	if !m.IsAggregate() || TypeFloat4.IsAggregate() || !m.IsBuiltin() { t.Error("classification") }

	light := Struct("Light", Field{Name: "pos", Typ: TypeFloat3}, Field{Name: "intensity", Typ: TypeFloat})
	if light.FieldIndex("intensity") != 1 || light.FieldIndex("color") != -1 { t.Error("FieldIndex") }
	if light.Member(2) != nil || light.IsBuiltin() { t.Error("struct members") }
	if !TypeVoid.IsVoid() || !(*Type)(nil).IsVoid() { t.Error("void") }
}

func TestScalarKinds(t *testing.T) {
	for k, bits := range map[ScalarKind]int{SCALAR_BOOL: 1, SCALAR_SINT8: 8, SCALAR_UINT16: 16, SCALAR_FLOAT: 32, SCALAR_UINT64: 64} {
		if got := k.Bits(); got != bits { t.Errorf("%s.Bits() = %d, want %d", k, got, bits) }
	}
	if !SCALAR_SINT64.IsSigned() || SCALAR_UINT32.IsSigned() || SCALAR_FLOAT.IsInt() || !SCALAR_DOUBLE.IsFloat() {
		t.Error("kind predicates")
	}
	if OpAdd.IsCompare() || !OpGreater.IsCompare() { t.Error("IsCompare") }
}
