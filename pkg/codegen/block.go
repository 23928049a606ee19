package codegen

import (
	"github.com/sasl-lang/sasl/pkg/config"
	"github.com/sasl-lang/sasl/pkg/ir"
	"github.com/sasl-lang/sasl/pkg/util"
)

// InsertPoint is the block new instructions are appended to.
type InsertPoint struct {
	Block *ir.BasicBlock
}

func (ip InsertPoint) Valid() bool { return ip.Block != nil }

type SwitchCase struct {
	Value Value
	Block InsertPoint
}

func (s *SISD) NewBlock(hint string, setInsertPoint bool) InsertPoint {
	ip := InsertPoint{Block: s.Fn().Fn.NewBlock(hint)}
	if setInsertPoint { s.ip = ip }
	return ip
}

func (s *SISD) SetInsertPoint(ip InsertPoint) { s.ip = ip }

func (s *SISD) InsertPoint() InsertPoint { return s.ip }

// terminate ends the current block. A block that already returned or
// branched keeps its terminator; the later branch is unreachable.
func (s *SISD) terminate(instr *ir.Instruction) {
	if s.curBlock().Terminated() { return }
	s.addInstr(instr)
}

func (s *SISD) JumpTo(ip InsertPoint) {
	s.terminate(&ir.Instruction{Op: ir.OpJmp, Targets: []*ir.BasicBlock{ip.Block}})
}

func (s *SISD) JumpCond(cond Value, trueIP, falseIP InsertPoint) {
	if !cond.Type().IsScalar() || !cond.Type().Scalar.IsBool() { util.ContractViolation("branch on %s", cond.Type()) }
	s.terminate(&ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{s.Load(cond)}, Targets: []*ir.BasicBlock{trueIP.Block, falseIP.Block}})
}

// SwitchTo branches on cond; case values must be integer constants and are
// not deduplicated.
func (s *SISD) SwitchTo(cond Value, cases []SwitchCase, defaultBranch InsertPoint) {
	instr := &ir.Instruction{Op: ir.OpSwitch, Args: []ir.Value{s.Load(cond)}, Targets: []*ir.BasicBlock{defaultBranch.Block}}
	for _, c := range cases {
		k, ok := s.Load(c.Value).(*ir.Const)
		if !ok { util.ContractViolation("switch case is not a constant") }
		instr.Cases = append(instr.Cases, k.Value)
		instr.Targets = append(instr.Targets, c.Block.Block)
	}
	s.terminate(instr)
}

// CleanEmptyBlocks drops empty blocks that nothing branches to. The entry
// block and empty blocks that still have predecessors are kept.
func (s *SISD) CleanEmptyBlocks() {
	fn := s.Fn().Fn
	var dead []*ir.BasicBlock
	for _, b := range fn.Blocks[min(1, len(fn.Blocks)):] {
		if b.Empty() && len(b.Predecessors()) == 0 { dead = append(dead, b) }
	}
	for _, b := range dead {
		fn.RemoveBlock(b)
		if s.ip.Block == b { s.ip = InsertPoint{} }
	}
	if len(dead) > 0 {
		util.Warn(s.cfg, config.WarnDeadBlock, "%s: removed %d empty block(s)", fn.Name, len(dead))
	}
}
