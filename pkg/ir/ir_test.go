package ir

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// addOne builds: func @add1(i32 %x) i32 { entry: %t.1 = add i32 %x, 1; ret %t.1 }
func addOne(m *Module) *Func {
	f := m.NewFunc("add1", I32, NewParam("x", I32))
	b := f.NewBlock("entry")
	t := f.NewTemp(I32, "")
	b.Append(&Instruction{Op: OpAdd, Typ: I32, Result: t, Args: []Value{f.Params[0], NewConst(I32, 1)}})
	b.Append(&Instruction{Op: OpRet, Args: []Value{t}})
	return f
}

func TestPrint(t *testing.T) {
	m := NewModule("m")
	addOne(m)
	m.DeclareFunc("ext", Void, NewParam("p", Ptr))
	want := `module m

func @add1(i32 %x) i32 {
entry:
	%t.1 = add i32 %x, 1
	ret %t.1
}

declare @ext(ptr %p) void
`
	if diff := cmp.Diff(want, m.String()); diff != "" {
		t.Errorf("module text (-want +got):\n%s", diff)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		typ  *Type
		in   int64
		want int64
	}{
		{I8, 255, -1},
		{U8, -1, 255},
		{I16, 1 << 15, -(1 << 15)},
		{U32, -1, 1<<32 - 1},
		{I64, -5, -5},
		{Bool, 7, 1},
		{Bool, 0, 0},
	}
	for _, tt := range tests {
		if got := tt.typ.Wrap(tt.in); got != tt.want {
			t.Errorf("%s.Wrap(%d) = %d, want %d", tt.typ, tt.in, got, tt.want)
		}
	}
}

func TestLayout(t *testing.T) {
	s := StructOf(VectorOf(F32, 3), F32, U8)
	if got := s.Size(); got != 20 { t.Errorf("size of %s = %d, want 20", s, got) }
	if got := s.Align(); got != 4 { t.Errorf("align of %s = %d, want 4", s, got) }
	if got := ArrayOf(VectorOf(F32, 4), 4).Size(); got != 64 { t.Errorf("float4x4 size = %d, want 64", got) }
	if !VectorOf(F32, 4).Equal(VectorOf(FloatType(32), 4)) { t.Error("structurally equal vectors compare unequal") }
	if I32.Equal(U32) { t.Error("signedness ignored by Equal") }
}

func TestBlockLabelsAreUnique(t *testing.T) {
	f := NewModule("m").NewFunc("f", Void)
	var labels []string
	for _, hint := range []string{"if.then", "if.then", "", "if.then", "bb"} {
		labels = append(labels, f.NewBlock(hint).Label)
	}
	want := []string{"if.then", "if.then.1", "bb", "if.then.2", "bb.1"}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestVerify(t *testing.T) {
	m := NewModule("m")
	if err := VerifyFunc(addOne(m)); err != nil { t.Fatalf("valid function rejected: %v", err) }

	tests := []struct {
		name  string
		build func(f *Func)
		want  error
	}{
		{"no blocks", func(f *Func) {}, ErrNoBlocks},
		{"unterminated", func(f *Func) { f.NewBlock("entry") }, ErrUnterminated},
		{"mid terminator", func(f *Func) {
			b := f.NewBlock("entry")
			b.Append(&Instruction{Op: OpRet, Args: []Value{NewConst(I32, 0)}})
			b.Append(&Instruction{Op: OpRet, Args: []Value{NewConst(I32, 0)}})
		}, ErrMidTerminator},
		{"return type", func(f *Func) {
			f.NewBlock("entry").Append(&Instruction{Op: OpRet, Args: []Value{NewFloat(F32, 1)}})
		}, ErrRetType},
		{"foreign target", func(f *Func) {
			other := NewModule("o").NewFunc("o", Void).NewBlock("x")
			f.NewBlock("entry").Append(&Instruction{Op: OpJmp, Targets: []*BasicBlock{other}})
		}, ErrForeignTarget},
		{"phi predecessor", func(f *Func) {
			entry, a, b := f.NewBlock("entry"), f.NewBlock("a"), f.NewBlock("b")
			entry.Append(&Instruction{Op: OpJmp, Targets: []*BasicBlock{b}})
			a.Append(&Instruction{Op: OpJmp, Targets: []*BasicBlock{b}})
			res := f.NewTemp(I32, "")
			b.Append(&Instruction{Op: OpPhi, Typ: I32, Result: res, Args: []Value{NewConst(I32, 1), NewConst(I32, 2)}, Targets: []*BasicBlock{entry, b}})
			b.Append(&Instruction{Op: OpRet, Args: []Value{res}})
		}, ErrPhiPred},
		{"operand count", func(f *Func) {
			b := f.NewBlock("entry")
			res := f.NewTemp(I32, "")
			b.Append(&Instruction{Op: OpAdd, Typ: I32, Result: res, Args: []Value{NewConst(I32, 1)}})
			b.Append(&Instruction{Op: OpRet, Args: []Value{res}})
		}, ErrOperand},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewModule("m").NewFunc("f"+string(rune('a'+i)), I32)
			tt.build(f)
			if err := VerifyFunc(f); !errors.Is(err, tt.want) { t.Errorf("got %v, want %v", err, tt.want) }
		})
	}
}

func TestMerge(t *testing.T) {
	a := NewModule("a")
	addOne(a)
	a.DeclareFunc("llvm.sqrt.f32", F32, NewParam("x", F32))

	b := NewModule("b")
	sq := b.DeclareFunc("llvm.sqrt.f32", F32, NewParam("x", F32))
	user := b.NewFunc("root", F32, NewParam("v", F32))
	blk := user.NewBlock("entry")
	res := user.NewTemp(F32, "")
	blk.Append(&Instruction{Op: OpCall, Typ: F32, Result: res, Args: []Value{sq.Ref(), user.Params[0]}})
	blk.Append(&Instruction{Op: OpRet, Args: []Value{res}})

	if err := a.Merge(b); err != nil { t.Fatalf("Merge: %v", err) }
	if n := len(a.Funcs); n != 3 { t.Errorf("merged module has %d functions, want 3", n) }
	callee := a.FindFunc("root").Blocks[0].Instructions[0].Args[0].(*FuncRef).Func
	if callee != a.FindFunc("llvm.sqrt.f32") { t.Error("call not relinked to the shared declaration") }

	c := NewModule("c")
	addOne(c)
	if err := a.Merge(c); err == nil { t.Error("duplicate definition merged without error") }
}

func TestReversePostorder(t *testing.T) {
	f := NewModule("m").NewFunc("f", Void)
	entry, exit, dead, mid := f.NewBlock("entry"), f.NewBlock("exit"), f.NewBlock("dead"), f.NewBlock("mid")
	entry.Append(&Instruction{Op: OpJmp, Targets: []*BasicBlock{mid}})
	mid.Append(&Instruction{Op: OpJmp, Targets: []*BasicBlock{exit}})
	exit.Append(&Instruction{Op: OpRet})
	dead.Append(&Instruction{Op: OpRet})

	var got []string
	for _, b := range f.ReversePostorder() {
		got = append(got, b.Label)
	}
	if diff := cmp.Diff([]string{"entry", "mid", "exit", "dead"}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestFingerprint(t *testing.T) {
	a, b := NewModule("m"), NewModule("m")
	addOne(a)
	addOne(b)
	if a.Fingerprint() != b.Fingerprint() { t.Error("identical modules fingerprint differently") }
	b.DeclareFunc("x", Void)
	if a.Fingerprint() == b.Fingerprint() { t.Error("different modules share a fingerprint") }
}
