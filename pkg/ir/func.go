package ir

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

type BasicBlock struct {
	Label        string
	Instructions []*Instruction
	Func         *Func
}

func (b *BasicBlock) Append(instr *Instruction) { b.Instructions = append(b.Instructions, instr) }

func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instructions) == 0 { return nil }
	last := b.Instructions[len(b.Instructions)-1]
	if !last.Op.IsTerminator() { return nil }
	return last
}

func (b *BasicBlock) Terminated() bool { return b.Terminator() != nil }

func (b *BasicBlock) Empty() bool { return len(b.Instructions) == 0 }

func (b *BasicBlock) Successors() []*BasicBlock {
	if t := b.Terminator(); t != nil { return t.Targets }
	return nil
}

// Predecessors lists the blocks of the same function whose terminator targets b.
func (b *BasicBlock) Predecessors() []*BasicBlock {
	var preds []*BasicBlock
	for _, other := range b.Func.Blocks {
		for _, s := range other.Successors() {
			if s == b {
				preds = append(preds, other)
				break
			}
		}
	}
	return preds
}

func (b *BasicBlock) String() string { return "@" + b.Label }

type Func struct {
	Name        string
	Params      []*Param
	ReturnType  *Type
	Blocks      []*BasicBlock
	Extern      bool
	Intrinsic   bool
	InlineHint  bool
	CCompatible bool
	Module      *Module

	tempCount int
	labels    map[string]int
}

func NewParam(name string, t *Type) *Param { return &Param{Name: name, Typ: t} }

func (f *Func) IsDecl() bool { return len(f.Blocks) == 0 }

func (f *Func) Entry() *BasicBlock {
	if len(f.Blocks) == 0 { return nil }
	return f.Blocks[0]
}

// NewBlock appends a block; hint is made unique within the function.
func (f *Func) NewBlock(hint string) *BasicBlock {
	if hint == "" { hint = "bb" }
	if f.labels == nil { f.labels = make(map[string]int) }
	label := hint
	if n, seen := f.labels[hint]; seen {
		for {
			n++
			label = hint + "." + strconv.Itoa(n)
			if _, taken := f.labels[label]; !taken { break }
		}
		f.labels[hint] = n
	}
	f.labels[label] = 0
	b := &BasicBlock{Label: label, Func: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Func) RemoveBlock(b *BasicBlock) {
	for i, other := range f.Blocks {
		if other == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}

func (f *Func) NewTemp(t *Type, hint string) *Temporary {
	f.tempCount++
	name := hint
	if name == "" { name = "t" }
	return &Temporary{Name: name + "." + strconv.Itoa(f.tempCount), ID: f.tempCount, Typ: t}
}

func (f *Func) Ref() *FuncRef { return &FuncRef{Func: f} }

// ReversePostorder lists the blocks reachable from the entry so that every
// block comes after its dominators, followed by the unreachable ones.
func (f *Func) ReversePostorder() []*BasicBlock {
	seen := make(map[*BasicBlock]bool, len(f.Blocks))
	var post []*BasicBlock
	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if seen[b] { return }
		seen[b] = true
		for _, s := range b.Successors() {
			visit(s)
		}
		post = append(post, b)
	}
	if entry := f.Entry(); entry != nil { visit(entry) }
	slices.Reverse(post)
	for _, b := range f.Blocks {
		if !seen[b] { post = append(post, b) }
	}
	return post
}

type Module struct {
	Name  string
	Funcs []*Func
	index map[string]*Func
}

func NewModule(name string) *Module { return &Module{Name: name, index: make(map[string]*Func)} }

func (m *Module) add(f *Func) *Func {
	if _, dup := m.index[f.Name]; dup {
		panic(fmt.Sprintf("ir: function %q already defined in module %q", f.Name, m.Name))
	}
	for i, p := range f.Params {
		p.Index = i
	}
	f.Module = m
	m.Funcs = append(m.Funcs, f)
	m.index[f.Name] = f
	return f
}

func (m *Module) NewFunc(name string, ret *Type, params ...*Param) *Func {
	return m.add(&Func{Name: name, ReturnType: ret, Params: params})
}

// DeclareFunc adds a body-less external declaration.
func (m *Module) DeclareFunc(name string, ret *Type, params ...*Param) *Func {
	return m.add(&Func{Name: name, ReturnType: ret, Params: params, Extern: true})
}

func (m *Module) FindFunc(name string) *Func { return m.index[name] }

// Merge moves every function of other into m. External declarations with a
// matching signature are shared; any other name clash is an error.
func (m *Module) Merge(other *Module) error {
	for _, f := range other.Funcs {
		if existing := m.index[f.Name]; existing != nil {
			if f.IsDecl() && sameSignature(existing, f) { continue }
			if existing.IsDecl() && sameSignature(existing, f) {
				*existing = *f
				existing.Module = m
				for _, b := range existing.Blocks {
					b.Func = existing
				}
				continue
			}
			return fmt.Errorf("merge %s into %s: duplicate function %q", other.Name, m.Name, f.Name)
		}
		f.Module = m
		m.Funcs = append(m.Funcs, f)
		m.index[f.Name] = f
	}
	m.relinkCalls()
	return nil
}

// relinkCalls points every call at the function object owned by m.
func (m *Module) relinkCalls() {
	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			for _, instr := range b.Instructions {
				if instr.Op != OpCall { continue }
				if ref, ok := instr.Args[0].(*FuncRef); ok {
					if own := m.index[ref.Func.Name]; own != nil && own != ref.Func {
						instr.Args[0] = own.Ref()
					}
				}
			}
		}
	}
}

func sameSignature(a, b *Func) bool {
	if !a.ReturnType.Equal(b.ReturnType) || len(a.Params) != len(b.Params) { return false }
	for i := range a.Params {
		if !a.Params[i].Typ.Equal(b.Params[i].Typ) { return false }
	}
	return true
}

// SortedFuncs returns definitions by name, followed by declarations by name.
func (m *Module) SortedFuncs() []*Func {
	out := append([]*Func(nil), m.Funcs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDecl() != out[j].IsDecl() { return !out[i].IsDecl() }
		return out[i].Name < out[j].Name
	})
	return out
}

// Fingerprint hashes the printed module; equal fingerprints mean identical IR.
func (m *Module) Fingerprint() uint64 { return xxhash.Sum64String(m.String()) }
