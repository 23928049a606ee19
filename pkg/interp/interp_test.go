package interp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sasl-lang/sasl/pkg/ir"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		typ  *ir.Type
		in   any
		want any
	}{
		{ir.I32, 7, int64(7)},
		{ir.U8, -1, int64(255)},
		{ir.I32, uint16(9), int64(9)},
		{ir.I32, 3.0, int64(3)},
		{ir.Bool, true, int64(1)},
		{ir.F32, 1.1, float64(float32(1.1))},
		{ir.F64, 2, 2.0},
		{ir.VectorOf(ir.F32, 2), []float64{1, 2}, []any{1.0, 2.0}},
		{ir.StructOf(ir.I32, ir.F32), []any{1, 0.5}, []any{int64(1), 0.5}},
		{ir.ArrayOf(ir.VectorOf(ir.I32, 2), 2), [][]int{{1, 2}, {3, 4}}, []any{[]any{int64(1), int64(2)}, []any{int64(3), int64(4)}}},
	}
	for _, tt := range tests {
		got, err := Convert(tt.typ, tt.in)
		if err != nil {
			t.Errorf("Convert(%s, %v): %v", tt.typ, tt.in, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" { t.Errorf("Convert(%s, %v) (-want +got):\n%s", tt.typ, tt.in, diff) }
	}

	for _, bad := range []struct {
		typ *ir.Type
		in  any
	}{{ir.I32, 1.5}, {ir.F32, "x"}, {ir.VectorOf(ir.F32, 3), []float64{1, 2}}, {ir.Ptr, 0}} {
		if _, err := Convert(bad.typ, bad.in); !errors.Is(err, ErrArgs) { t.Errorf("Convert(%s, %v) = %v", bad.typ, bad.in, err) }
	}
}

func TestSlots(t *testing.T) {
	src := []any{1.0, []any{2.0, 3.0}}
	p := NewSlot(src)
	src[0] = 99.0
	if err := p.Elem(1).Elem(0).Store(7.0); err != nil { t.Fatal(err) }
	got, err := p.Load()
	if err != nil { t.Fatal(err) }
	if diff := cmp.Diff([]any{1.0, []any{7.0, 3.0}}, got); diff != "" { t.Errorf("slot (-want +got):\n%s", diff) }

	if _, err := p.Elem(5).Load(); !errors.Is(err, ErrTrap) { t.Errorf("out of range load: %v", err) }
	if err := (*Pointer)(nil).Store(1); !errors.Is(err, ErrTrap) { t.Errorf("null store: %v", err) }
}

func unary(m *ir.Module, name string, op ir.Op, ret, arg *ir.Type, extra ...ir.Value) {
	f := m.NewFunc(name, ret, ir.NewParam("x", arg))
	b := f.NewBlock("entry")
	t := f.NewTemp(ret, "")
	b.Append(&ir.Instruction{Op: op, Typ: ret, Result: t, Args: append([]ir.Value{f.Params[0]}, extra...)})
	b.Append(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{t}})
}

func TestTraps(t *testing.T) {
	m := ir.NewModule("m")
	unary(m, "div", ir.OpDiv, ir.I32, ir.I32, ir.NewConst(ir.I32, 0))
	unary(m, "ftoi", ir.OpFToI, ir.I32, ir.F32)

	loop := m.NewFunc("loop", ir.Void)
	head := loop.NewBlock("head")
	head.Append(&ir.Instruction{Op: ir.OpJmp, Targets: []*ir.BasicBlock{head}})

	rec := m.NewFunc("rec", ir.Void)
	rec.NewBlock("entry").Append(&ir.Instruction{Op: ir.OpCall, Typ: ir.Void, Args: []ir.Value{rec.Ref()}})
	rec.Blocks[0].Append(&ir.Instruction{Op: ir.OpRet})

	e := New(m)
	e.MaxSteps = 1000
	e.MaxDepth = 16
	tests := []struct {
		fn   string
		args []any
		want error
	}{
		{"div", []any{1}, ErrTrap},
		{"ftoi", []any{1e12}, ErrTrap},
		{"loop", nil, ErrStepLimit},
		{"rec", nil, ErrTrap},
		{"div", nil, ErrArgs},
		{"missing", nil, ErrUnknownFunc},
	}
	for _, tt := range tests {
		if _, err := e.Call(tt.fn, tt.args...); !errors.Is(err, tt.want) { t.Errorf("%s%v: got %v, want %v", tt.fn, tt.args, err, tt.want) }
	}
	if got, err := e.Call("ftoi", -2.75); err != nil || got != int64(-2) { t.Errorf("ftoi(-2.75) = %v, %v", got, err) }
}

func TestFloatToInt(t *testing.T) {
	tests := []struct {
		name string
		dst  *ir.Type
		in   float64
		want any
	}{
		{"i8 min", ir.I8, -128.9, int64(-128)},
		{"i8 over", ir.I8, 128, nil},
		{"u8 max", ir.U8, 255.5, int64(255)},
		{"u8 negative", ir.U8, -1, nil},
		{"i16 over", ir.IntType(16, true), 40000, nil},
		{"i32 over", ir.I32, 1e12, nil},
		{"u32 max", ir.IntType(32, false), 4294967295, int64(4294967295)},
		{"i64", ir.I64, -1e15, int64(-1e15)},
		{"u64 high", ir.IntType(64, false), 1 << 63, uint64(1 << 63)},
		{"u64 negative", ir.IntType(64, false), -2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.NewModule("m")
			unary(m, "ftoi", ir.OpFToI, tt.dst, ir.F64)
			got, err := New(m).Call("ftoi", tt.in)
			if tt.want == nil {
				if !errors.Is(err, ErrTrap) { t.Errorf("ftoi(%v) = %v, %v; want trap", tt.in, got, err) }
				return
			}
			if err != nil || got != tt.want { t.Errorf("ftoi(%v) = %v (%T), %v; want %v", tt.in, got, got, err, tt.want) }
		})
	}
}

func TestUnsignedResults(t *testing.T) {
	u64, u32 := ir.IntType(64, false), ir.IntType(32, false)
	m := ir.NewModule("m")
	unary(m, "id64", ir.OpCopy, u64, u64)
	unary(m, "id32", ir.OpCopy, u32, u32)
	unary(m, "vec64", ir.OpCopy, ir.VectorOf(u64, 2), ir.VectorOf(u64, 2))

	e := New(m)
	if got, err := e.Call("id64", uint64(1<<64-1)); err != nil || got != uint64(1<<64-1) { t.Errorf("id64 = %v (%T), %v", got, got, err) }
	if got, err := e.Call("id32", -1); err != nil || got != int64(1<<32-1) { t.Errorf("id32 = %v (%T), %v", got, got, err) }
	got, err := e.Call("vec64", []uint64{0, 1<<64 - 1})
	if err != nil { t.Fatal(err) }
	if diff := cmp.Diff([]any{uint64(0), uint64(1<<64 - 1)}, got); diff != "" { t.Errorf("vec64 (-want +got):\n%s", diff) }
}

func TestExterns(t *testing.T) {
	m := ir.NewModule("m")
	host := m.DeclareFunc("host_twice", ir.I32, ir.NewParam("x", ir.I32))
	f := m.NewFunc("f", ir.I32, ir.NewParam("x", ir.I32))
	b := f.NewBlock("entry")
	res := f.NewTemp(ir.I32, "")
	b.Append(&ir.Instruction{Op: ir.OpCall, Typ: ir.I32, Result: res, Args: []ir.Value{host.Ref(), f.Params[0]}})
	b.Append(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{res}})
	m.DeclareFunc("sasl_sqrt_f32", ir.F32, ir.NewParam("x", ir.F32))

	e := New(m)
	if _, err := e.Call("f", 4); !errors.Is(err, ErrUnknownFunc) { t.Errorf("unbound extern: %v", err) }
	e.Externs["host_twice"] = func(args []any) (any, error) { return args[0].(int64) * 2, nil }
	call, err := e.Func("f")
	if err != nil { t.Fatal(err) }
	if got, err := call(4); err != nil || got != int64(8) { t.Errorf("f(4) = %v, %v", got, err) }
	if got, err := e.Call("sasl_sqrt_f32", 9.0); err != nil || got != 3.0 { t.Errorf("sasl_sqrt_f32(9) = %v, %v", got, err) }
}
