package ir

import (
	"errors"
	"fmt"
)

var (
	ErrNoBlocks      = errors.New("function has no blocks")
	ErrUnterminated  = errors.New("block is not terminated")
	ErrMidTerminator = errors.New("terminator in the middle of a block")
	ErrForeignTarget = errors.New("branch to a block of another function")
	ErrRetType       = errors.New("return value does not match the function type")
	ErrRedefined     = errors.New("temporary defined twice")
	ErrPhiPred       = errors.New("phi names a block that is not a predecessor")
	ErrOperand       = errors.New("malformed operands")
)

// VerifyFunc checks the structural invariants every backend relies on.
func VerifyFunc(f *Func) error {
	if f.IsDecl() { return fmt.Errorf("%s: %w", f.Name, ErrNoBlocks) }

	owned := make(map[*BasicBlock]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		owned[b] = true
	}
	defined := make(map[*Temporary]bool)

	for _, b := range f.Blocks {
		where := func(err error, format string, args ...interface{}) error {
			return fmt.Errorf("%s/%s: %w%s", f.Name, b.Label, err, fmt.Sprintf(format, args...))
		}
		if !b.Terminated() { return where(ErrUnterminated, "") }

		for i, instr := range b.Instructions {
			if instr.Op.IsTerminator() && i != len(b.Instructions)-1 {
				return where(ErrMidTerminator, " (%s)", instr.Op)
			}
			if instr.Result != nil {
				if defined[instr.Result] { return where(ErrRedefined, " (%s)", instr.Result) }
				defined[instr.Result] = true
			}
			for _, t := range instr.Targets {
				if !owned[t] && instr.Op != OpPhi { return where(ErrForeignTarget, " (%s)", t) }
			}
			if err := checkOperands(f, b, instr); err != nil { return where(err, "") }
		}
	}
	return nil
}

func checkOperands(f *Func, b *BasicBlock, instr *Instruction) error {
	want := func(n int) error {
		if len(instr.Args) != n {
			return fmt.Errorf("%w: %s takes %d operands, got %d", ErrOperand, instr.Op, n, len(instr.Args))
		}
		return nil
	}
	switch instr.Op {
	case OpRet:
		if f.ReturnType.IsVoid() { return want(0) }
		if err := want(1); err != nil { return err }
		if !instr.Args[0].Type().Equal(f.ReturnType) {
			return fmt.Errorf("%w: got %s, want %s", ErrRetType, instr.Args[0].Type(), f.ReturnType)
		}
	case OpJmp:
		if len(instr.Targets) != 1 { return fmt.Errorf("%w: jmp needs one target", ErrOperand) }
	case OpJnz:
		if err := want(1); err != nil { return err }
		if len(instr.Targets) != 2 { return fmt.Errorf("%w: jnz needs two targets", ErrOperand) }
	case OpSwitch:
		if err := want(1); err != nil { return err }
		if len(instr.Targets) != len(instr.Cases)+1 { return fmt.Errorf("%w: switch cases and targets disagree", ErrOperand) }
	case OpPhi:
		if len(instr.Args) != len(instr.Targets) { return fmt.Errorf("%w: phi values and blocks disagree", ErrOperand) }
		preds := make(map[*BasicBlock]bool)
		for _, p := range b.Predecessors() {
			preds[p] = true
		}
		for _, t := range instr.Targets {
			if !preds[t] { return fmt.Errorf("%w: %s", ErrPhiPred, t) }
		}
	case OpStore:
		return want(2)
	case OpLoad, OpCopy, OpNegF, OpExt, OpTrunc, OpIToF, OpFToI, OpFToF:
		return want(1)
	case OpSelect:
		return want(3)
	case OpCall:
		if len(instr.Args) == 0 { return fmt.Errorf("%w: call without callee", ErrOperand) }
		ref, ok := instr.Args[0].(*FuncRef)
		if !ok { return fmt.Errorf("%w: callee is not a function", ErrOperand) }
		if len(instr.Args)-1 != len(ref.Func.Params) {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrOperand, ref.Func.Name, len(ref.Func.Params), len(instr.Args)-1)
		}
	default:
		if instr.Op >= OpAdd && instr.Op <= OpCGe && instr.Op != OpNegF { return want(2) }
	}
	return nil
}
