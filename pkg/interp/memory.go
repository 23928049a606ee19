package interp

import (
	"fmt"
	"math"
	"reflect"

	"github.com/sasl-lang/sasl/pkg/ir"
)

// Runtime values: integers and bools are int64 holding the value wrapped to
// the IR width, floats are float64 (rounded to float32 for f32), vectors,
// arrays and structs are []any, pointers are *Pointer.

type cell struct{ v any }

// Pointer addresses a member path inside one allocation.
type Pointer struct {
	c    *cell
	path []int
}

// NewSlot allocates a fresh cell holding v.
func NewSlot(v any) *Pointer { return &Pointer{c: &cell{v: clone(v)}} }

func (p *Pointer) String() string { return fmt.Sprintf("ptr%v", p.path) }

// Elem returns a pointer to member i of the pointee.
func (p *Pointer) Elem(i int) *Pointer {
	path := append(append([]int(nil), p.path...), i)
	return &Pointer{c: p.c, path: path}
}

func (p *Pointer) Load() (any, error) {
	if p == nil || p.c == nil { return nil, fmt.Errorf("%w: load through null pointer", ErrTrap) }
	v := p.c.v
	for _, i := range p.path {
		agg, ok := v.([]any)
		if !ok || i < 0 || i >= len(agg) { return nil, fmt.Errorf("%w: member %d out of range", ErrTrap, i) }
		v = agg[i]
	}
	return clone(v), nil
}

func (p *Pointer) Store(v any) error {
	if p == nil || p.c == nil { return fmt.Errorf("%w: store through null pointer", ErrTrap) }
	if len(p.path) == 0 {
		p.c.v = clone(v)
		return nil
	}
	parent := p.c.v
	for _, i := range p.path[:len(p.path)-1] {
		agg, ok := parent.([]any)
		if !ok || i < 0 || i >= len(agg) { return fmt.Errorf("%w: member %d out of range", ErrTrap, i) }
		parent = agg[i]
	}
	agg, ok := parent.([]any)
	last := p.path[len(p.path)-1]
	if !ok || last < 0 || last >= len(agg) { return fmt.Errorf("%w: member %d out of range", ErrTrap, last) }
	agg[last] = clone(v)
	return nil
}

// clone deep-copies aggregates so memory never shares storage with registers.
func clone(v any) any {
	agg, ok := v.([]any)
	if !ok { return v }
	out := make([]any, len(agg))
	for i, e := range agg {
		out[i] = clone(e)
	}
	return out
}

// Zero returns the all-zero runtime value of t.
func Zero(t *ir.Type) any {
	switch t.Kind {
	case ir.KindFloat: return 0.0
	case ir.KindPtr: return (*Pointer)(nil)
	case ir.KindVector, ir.KindArray, ir.KindStruct:
		out := make([]any, t.Count())
		for i := range out {
			out[i] = Zero(t.Member(i))
		}
		return out
	case ir.KindVoid: return nil
	}
	return int64(0)
}

func roundTo(t *ir.Type, f float64) float64 {
	if t.Bits == 32 { return float64(float32(f)) }
	return f
}

// Convert turns a Go value into the runtime representation of t. Slices of
// any element type are accepted for vectors, arrays and structs.
func Convert(t *ir.Type, v any) (any, error) {
	switch t.Kind {
	case ir.KindBool, ir.KindInt:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Bool:
			if rv.Bool() { return int64(1), nil }
			return int64(0), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return t.Wrap(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return t.Wrap(int64(rv.Uint())), nil
		case reflect.Float32, reflect.Float64:
			// Decoded JSON numbers arrive as floats.
			if f := rv.Float(); f == math.Trunc(f) && math.Abs(f) < 1<<63 { return t.Wrap(int64(f)), nil }
		}
	case ir.KindFloat:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64: return roundTo(t, rv.Float()), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64: return roundTo(t, float64(rv.Int())), nil
		}
	case ir.KindPtr:
		if p, ok := v.(*Pointer); ok { return p, nil }
	case ir.KindVector, ir.KindArray, ir.KindStruct:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array { break }
		if rv.Len() != t.Count() { return nil, fmt.Errorf("%w: %s needs %d members, got %d", ErrArgs, t, t.Count(), rv.Len()) }
		out := make([]any, rv.Len())
		for i := range out {
			m, err := Convert(t.Member(i), rv.Index(i).Interface())
			if err != nil { return nil, err }
			out[i] = m
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: cannot use %T as %s", ErrArgs, v, t)
}

// Export converts a runtime value of type t for callers outside the engine:
// 64-bit unsigned integers become uint64, everything else is unchanged.
func Export(t *ir.Type, v any) any {
	if t == nil { return v }
	switch t.Kind {
	case ir.KindInt:
		if i, ok := v.(int64); ok && !t.Signed && t.Bits == 64 { return uint64(i) }
	case ir.KindVector, ir.KindArray, ir.KindStruct:
		xs, ok := v.([]any)
		if !ok { break }
		out := make([]any, len(xs))
		for i, x := range xs {
			out[i] = Export(t.Member(i), x)
		}
		return out
	}
	return v
}
