// Package interp executes generated modules directly. It stands in for a
// JIT engine: functions are looked up by name and called with Go values.
package interp

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sasl-lang/sasl/pkg/ir"
)

var (
	ErrUnknownFunc = errors.New("unknown function")
	ErrArgs        = errors.New("bad arguments")
	ErrTrap        = errors.New("trap")
	ErrStepLimit   = errors.New("step limit exceeded")
)

// Extern is a host implementation of a declared function.
type Extern func(args []any) (any, error)

type Engine struct {
	mod     *ir.Module
	Externs map[string]Extern
	// MaxSteps bounds the instructions executed by one Call.
	MaxSteps int
	MaxDepth int

	steps int
}

func New(mod *ir.Module) *Engine {
	return &Engine{mod: mod, Externs: make(map[string]Extern), MaxSteps: 1 << 22, MaxDepth: 256}
}

// Func returns a callable bound to the named function.
func (e *Engine) Func(name string) (func(args ...any) (any, error), error) {
	if e.mod.FindFunc(name) == nil { return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, name) }
	return func(args ...any) (any, error) { return e.Call(name, args...) }, nil
}

// Call runs the named function. Arguments are converted to the parameter
// types; the result is in runtime form (see Convert), except that 64-bit
// unsigned values come back as uint64.
func (e *Engine) Call(name string, args ...any) (any, error) {
	f := e.mod.FindFunc(name)
	if f == nil { return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, name) }
	if len(args) != len(f.Params) { return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgs, name, len(f.Params), len(args)) }
	vals := make([]any, len(args))
	for i, a := range args {
		v, err := Convert(f.Params[i].Typ, a)
		if err != nil { return nil, fmt.Errorf("%s argument %d: %w", name, i, err) }
		vals[i] = v
	}
	e.steps = 0
	res, err := e.call(f, vals, 0)
	if err != nil { return nil, err }
	return Export(f.ReturnType, res), nil
}

func (e *Engine) call(f *ir.Func, args []any, depth int) (any, error) {
	if depth > e.MaxDepth { return nil, fmt.Errorf("%w: call depth exceeds %d", ErrTrap, e.MaxDepth) }
	if f.IsDecl() { return e.external(f, args) }

	fr := &frame{e: e, fn: f, vals: make(map[ir.Value]any), depth: depth}
	for i, p := range f.Params {
		fr.vals[p] = args[i]
	}
	var prev *ir.BasicBlock
	blk := f.Entry()
	for {
		next, ret, done, err := fr.runBlock(blk, prev)
		if err != nil { return nil, fmt.Errorf("%s/%s: %w", f.Name, blk.Label, err) }
		if done { return ret, nil }
		prev, blk = blk, next
	}
}

// external resolves a body-less function: host externs first, then the
// math intrinsics and their runtime routines.
func (e *Engine) external(f *ir.Func, args []any) (any, error) {
	if ext, ok := e.Externs[f.Name]; ok { return ext(args) }
	var id string
	switch {
	case strings.HasPrefix(f.Name, "llvm."):
		id, _, _ = strings.Cut(strings.TrimPrefix(f.Name, "llvm."), ".")
	case strings.HasPrefix(f.Name, "sasl_"):
		id, _, _ = strings.Cut(strings.TrimPrefix(f.Name, "sasl_"), "_")
	}
	var op func(float64) float64
	switch id {
	case "sqrt": op = math.Sqrt
	case "fabs": op = math.Abs
	default: return nil, fmt.Errorf("%w: no implementation of %s", ErrUnknownFunc, f.Name)
	}
	if len(args) != 1 { return nil, fmt.Errorf("%w: %s takes one argument", ErrArgs, f.Name) }
	t := f.ReturnType
	return lanewise(t, func(lt *ir.Type, xs ...any) (any, error) {
		return roundTo(lt, op(xs[0].(float64))), nil
	}, args[0])
}

type frame struct {
	e     *Engine
	fn    *ir.Func
	vals  map[ir.Value]any
	depth int
}

func (fr *frame) value(v ir.Value) (any, error) {
	switch v := v.(type) {
	case *ir.Temporary, *ir.Param:
		x, ok := fr.vals[v]
		if !ok { return nil, fmt.Errorf("%w: %s read before it is defined", ErrTrap, v) }
		return x, nil
	case *ir.Const: return v.Value, nil
	case *ir.FloatConst: return v.Value, nil
	case *ir.Zero: return Zero(v.Typ), nil
	case *ir.Undef: return Zero(v.Typ), nil
	case *ir.FuncRef: return v.Func, nil
	case *ir.ConstAgg:
		out := make([]any, len(v.Elems))
		for i, m := range v.Elems {
			x, err := fr.value(m)
			if err != nil { return nil, err }
			out[i] = x
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: operand %v", ErrTrap, v)
}

// runBlock executes blk, entered from prev. It returns the successor, or the
// return value with done set.
func (fr *frame) runBlock(blk, prev *ir.BasicBlock) (next *ir.BasicBlock, ret any, done bool, err error) {
	// Phis read their inputs before any of them is written.
	type pending struct {
		res *ir.Temporary
		v   any
	}
	var phis []pending
	for _, instr := range blk.Instructions {
		if instr.Op != ir.OpPhi { break }
		idx := -1
		for i, t := range instr.Targets {
			if t == prev { idx = i; break }
		}
		if idx < 0 { return nil, nil, false, fmt.Errorf("%w: phi has no input from %v", ErrTrap, prev) }
		v, err := fr.value(instr.Args[idx])
		if err != nil { return nil, nil, false, err }
		phis = append(phis, pending{instr.Result, v})
	}
	for _, p := range phis {
		fr.vals[p.res] = p.v
	}

	for _, instr := range blk.Instructions[len(phis):] {
		fr.e.steps++
		if fr.e.steps > fr.e.MaxSteps { return nil, nil, false, ErrStepLimit }
		if instr.Op.IsTerminator() { return fr.branch(instr) }
		v, err := fr.exec(instr)
		if err != nil { return nil, nil, false, fmt.Errorf("%s: %w", instr.Op, err) }
		if instr.Result != nil { fr.vals[instr.Result] = v }
	}
	return nil, nil, false, fmt.Errorf("%w: fell off the end of the block", ErrTrap)
}

func (fr *frame) branch(instr *ir.Instruction) (*ir.BasicBlock, any, bool, error) {
	switch instr.Op {
	case ir.OpJmp:
		return instr.Targets[0], nil, false, nil
	case ir.OpJnz:
		c, err := fr.value(instr.Args[0])
		if err != nil { return nil, nil, false, err }
		if c.(int64) != 0 { return instr.Targets[0], nil, false, nil }
		return instr.Targets[1], nil, false, nil
	case ir.OpSwitch:
		c, err := fr.value(instr.Args[0])
		if err != nil { return nil, nil, false, err }
		for i, k := range instr.Cases {
			if instr.Args[0].Type().Wrap(k) == c.(int64) { return instr.Targets[i+1], nil, false, nil }
		}
		return instr.Targets[0], nil, false, nil
	case ir.OpRet:
		if len(instr.Args) == 0 { return nil, nil, true, nil }
		v, err := fr.value(instr.Args[0])
		return nil, v, true, err
	}
	return nil, nil, false, fmt.Errorf("%w: unreachable executed", ErrTrap)
}

func (fr *frame) exec(instr *ir.Instruction) (any, error) {
	args := make([]any, len(instr.Args))
	for i, a := range instr.Args {
		v, err := fr.value(a)
		if err != nil { return nil, err }
		args[i] = v
	}

	switch instr.Op {
	case ir.OpAlloc:
		return NewSlot(Zero(instr.Elem)), nil
	case ir.OpLoad:
		return args[0].(*Pointer).Load()
	case ir.OpStore:
		return nil, args[1].(*Pointer).Store(args[0])
	case ir.OpElemPtr:
		p := args[0].(*Pointer)
		for _, i := range args[1:] {
			p = p.Elem(int(i.(int64)))
		}
		return p, nil
	case ir.OpExtract:
		agg := args[0].([]any)
		i := args[1].(int64)
		if i < 0 || i >= int64(len(agg)) { return nil, fmt.Errorf("%w: member %d out of range", ErrTrap, i) }
		return agg[i], nil
	case ir.OpInsert:
		agg := append([]any(nil), args[0].([]any)...)
		i := args[2].(int64)
		if i < 0 || i >= int64(len(agg)) { return nil, fmt.Errorf("%w: member %d out of range", ErrTrap, i) }
		agg[i] = args[1]
		return agg, nil
	case ir.OpSelect:
		if !instr.Args[0].Type().IsVector() {
			if args[0].(int64) != 0 { return args[1], nil }
			return args[2], nil
		}
		return lanewise(instr.Typ, func(_ *ir.Type, xs ...any) (any, error) {
			if xs[0].(int64) != 0 { return xs[1], nil }
			return xs[2], nil
		}, args...)
	case ir.OpCopy:
		return args[0], nil
	case ir.OpCall:
		return fr.e.call(args[0].(*ir.Func), args[1:], fr.depth+1)
	}

	if instr.Op.IsCompare() {
		opT := instr.Args[0].Type()
		return lanewise(opT, func(lt *ir.Type, xs ...any) (any, error) {
			return compare(instr.Op, lt, xs[0], xs[1]), nil
		}, args...)
	}
	switch instr.Op {
	case ir.OpExt, ir.OpTrunc, ir.OpIToF, ir.OpFToI, ir.OpFToF:
		src := instr.Args[0].Type().Scalar()
		return lanewise(instr.Typ, func(lt *ir.Type, xs ...any) (any, error) {
			return convert(instr.Op, src, lt, xs[0])
		}, args...)
	}
	return lanewise(instr.Typ, func(lt *ir.Type, xs ...any) (any, error) {
		return arith(instr.Op, lt, xs...)
	}, args...)
}

// lanewise applies fn to each lane when t is a vector, or once otherwise.
func lanewise(t *ir.Type, fn func(lane *ir.Type, xs ...any) (any, error), args ...any) (any, error) {
	if !t.IsVector() { return fn(t, args...) }
	out := make([]any, t.Len)
	lane := make([]any, len(args))
	for i := range out {
		for j, a := range args {
			lane[j] = a.([]any)[i]
		}
		v, err := fn(t.Elem, lane...)
		if err != nil { return nil, err }
		out[i] = v
	}
	return out, nil
}
