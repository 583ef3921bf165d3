// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

// CfgType selects the control flow graph overlay of a disassembly:
// CfgNone is a plain listing, CfgCompact models non-exceptional flow only,
// CfgVerbose also breaks blocks at exception-handling boundaries.
type CfgType int

const (
	CfgNone CfgType = iota
	CfgCompact
	CfgVerbose
)

// Region is a run of instructions, inclusive on both ends.
type Region struct {
	First Instruction
	Last  Instruction
}

// BasicBlock is a maximal single-entry single-exit run of the instruction
// stream.
type BasicBlock struct {
	ID     int
	Region Region
}

// ControlFlowGraph partitions a method's instruction stream into basic
// blocks with stable, increasing ids. Blocks are non-empty, do not overlap
// and cover every instruction exactly once.
type ControlFlowGraph struct {
	BasicBlocks []BasicBlock
}

// NewControlFlowGraph builds the block partition over a lowered method.
func NewControlFlowGraph(ci *CodeIR, verbose bool) *ControlFlowGraph {
	cfg := &ControlFlowGraph{}
	instrs := ci.Instructions
	if len(instrs) == 0 {
		return cfg
	}

	start := 0
	closeBlock := func(last int) {
		if last < start {
			return
		}
		cfg.BasicBlocks = append(cfg.BasicBlocks, BasicBlock{
			ID: len(cfg.BasicBlocks),
			Region: Region{
				First: instrs[start],
				Last:  instrs[last],
			},
		})
		start = last + 1
	}

	for i, instr := range instrs {
		if i > start && blockStartsAt(instr, verbose) {
			closeBlock(i - 1)
		}
		if blockEndsAt(instr) {
			closeBlock(i)
		}
	}
	closeBlock(len(instrs) - 1)

	return cfg
}

// blockStartsAt reports whether a boundary is introduced before instr:
// branch and switch targets, payload starts, and in verbose mode the try
// region markers.
func blockStartsAt(instr Instruction, verbose bool) bool {
	switch instr.(type) {
	case *Label:
		return true
	case *PackedSwitchPayload, *SparseSwitchPayload, *ArrayData:
		return true
	case *TryBlockBegin, *TryBlockEnd:
		return verbose
	}
	return false
}

// blockEndsAt reports whether instr terminates its block: branches,
// switches, returns and throw.
func blockEndsAt(instr Instruction) bool {
	bc, ok := instr.(*Bytecode)
	if !ok {
		return false
	}
	switch bc.Opcode {
	case 0x0E, 0x0F, 0x10, 0x11: // return family
		return true
	case 0x27: // throw
		return true
	case 0x28, 0x29, 0x2A: // goto family
		return true
	case 0x2B, 0x2C: // switches
		return true
	}
	return bc.Opcode >= 0x32 && bc.Opcode <= 0x3D // if family
}
