// Copyright 2022 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import "testing"

func TestCompactCFGBranchAndFallThrough(t *testing.T) {
	// One unconditional branch plus its fall-through target.
	ci := lowerTestMethod(t, []uint16{0x0128, 0x000E})

	cfg := NewControlFlowGraph(ci, false)
	if len(cfg.BasicBlocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(cfg.BasicBlocks))
	}
	if cfg.BasicBlocks[0].ID != 0 || cfg.BasicBlocks[1].ID != 1 {
		t.Errorf("block ids = %d, %d, want 0, 1",
			cfg.BasicBlocks[0].ID, cfg.BasicBlocks[1].ID)
	}

	branch, ok := cfg.BasicBlocks[0].Region.Last.(*Bytecode)
	if !ok || branch.Opcode != 0x28 {
		t.Errorf("block 0 does not end at the branch, got %#v",
			cfg.BasicBlocks[0].Region.Last)
	}
}

// Blocks must be non-empty, non-overlapping, and cover every instruction
// exactly once, in stream order.
func TestCFGPartitionsStream(t *testing.T) {
	streams := [][]uint16{
		{0x000E},
		{0x0128, 0x000E},
		{0x0038, 0x0002, 0x000E, 0x000E},
	}

	for _, insns := range streams {
		ci := lowerTestMethod(t, insns)

		for _, verbose := range []bool{false, true} {
			cfg := NewControlFlowGraph(ci, verbose)

			next := 0
			for _, block := range cfg.BasicBlocks {
				if next >= len(ci.Instructions) {
					t.Fatalf("block %d starts past the stream end", block.ID)
				}
				if ci.Instructions[next] != block.Region.First {
					t.Fatalf("block %d does not start at instruction %d", block.ID, next)
				}
				for ci.Instructions[next] != block.Region.Last {
					next++
					if next >= len(ci.Instructions) {
						t.Fatalf("block %d never ends", block.ID)
					}
				}
				next++
			}
			if next != len(ci.Instructions) {
				t.Errorf("blocks cover %d of %d instructions", next, len(ci.Instructions))
			}
		}
	}
}
