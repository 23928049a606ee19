package codegen

import (
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/util"
)

// EmitCall marshals args into fn's physical layout. Callees that return
// through a hidden slot get a caller-allocated slot as argument 0, and the
// result is a reference to that slot.
func (s *SISD) EmitCall(fn Function, args []Value) Value {
	if !fn.Valid() { util.ContractViolation("call of an unbound function") }
	if len(args) != fn.ArgSize() { util.ContractViolation("%s takes %d arguments, got %d", fn.Fn.Name, fn.ArgSize(), len(args)) }
	abi := fn.ABI()

	var phys []ir.Value
	var slot Value
	if fn.FirstArgIsReturnAddress() {
		slot = s.CreateVariable(fn.ReturnTy(), abi, "ret.slot")
		phys = append(phys, slot.raw[0])
	}
	for i, arg := range args {
		if !fn.ArgIsRef(i) {
			phys = append(phys, s.LoadABI(arg, abi))
			continue
		}
		if arg.Storable() && arg.parent == nil && arg.abi == abi {
			phys = append(phys, arg.raw[0])
			continue
		}
		tmp := s.CreateVariable(arg.tyinfo, abi, "arg.tmp")
		s.Store(tmp, arg)
		phys = append(phys, tmp.raw[0])
	}

	res := s.callRaw(fn.Fn, phys...)
	switch {
	case fn.FirstArgIsReturnAddress(): return slot
	case fn.RetVoid: return Value{}
	}
	return s.CreateValue(fn.ReturnTy(), res, KindValue, abi)
}
