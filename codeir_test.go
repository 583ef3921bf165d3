// Copyright 2022 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import "testing"

func lowerTestMethod(t *testing.T, insns []uint16) *CodeIR {
	t.Helper()
	d := newTestDex(t, insns)
	ir := d.CreateFullIR()
	if len(ir.EncodedMethods) != 1 {
		t.Fatalf("got %d encoded methods, want 1", len(ir.EncodedMethods))
	}
	ci, err := NewCodeIR(d, ir.EncodedMethods[0])
	if err != nil {
		t.Fatalf("NewCodeIR failed, reason: %v", err)
	}
	return ci
}

func TestCodeIRReturnVoid(t *testing.T) {
	ci := lowerTestMethod(t, []uint16{0x000E})

	if len(ci.Instructions) != 1 {
		t.Fatalf("got %d instructions, want 1", len(ci.Instructions))
	}
	bc, ok := ci.Instructions[0].(*Bytecode)
	if !ok || bc.Opcode != 0x0E || bc.Offset != 0 {
		t.Errorf("instruction = %#v, want return-void at offset 0", ci.Instructions[0])
	}
}

func TestCodeIRBranchTarget(t *testing.T) {
	// goto +1 followed by return-void; the branch target gets a label.
	ci := lowerTestMethod(t, []uint16{0x0128, 0x000E})

	if len(ci.Instructions) != 3 {
		t.Fatalf("got %d instructions, want goto, label, return-void", len(ci.Instructions))
	}

	branch, ok := ci.Instructions[0].(*Bytecode)
	if !ok || branch.Opcode != 0x28 {
		t.Fatalf("first instruction = %#v, want goto", ci.Instructions[0])
	}
	label, ok := ci.Instructions[1].(*Label)
	if !ok || label.Offset != 1 {
		t.Fatalf("second instruction = %#v, want the label at offset 1", ci.Instructions[1])
	}

	loc, ok := branch.Operands[len(branch.Operands)-1].(*CodeLoc)
	if !ok {
		t.Fatal("goto carries no code location operand")
	}
	if loc.Label != label {
		t.Error("goto's code location does not point at the label in the stream")
	}
}

// Every code location operand must resolve to a label present in the same
// method's instruction stream.
func TestCodeIRLabelsResolve(t *testing.T) {
	streams := [][]uint16{
		{0x0128, 0x000E},                 // goto
		{0x0038, 0x0002, 0x000E, 0x000E}, // if-eqz v0, +2
	}

	for _, insns := range streams {
		ci := lowerTestMethod(t, insns)

		labels := make(map[*Label]bool)
		for _, instr := range ci.Instructions {
			if l, ok := instr.(*Label); ok {
				labels[l] = true
			}
		}
		for _, instr := range ci.Instructions {
			bc, ok := instr.(*Bytecode)
			if !ok {
				continue
			}
			for _, op := range bc.Operands {
				if loc, ok := op.(*CodeLoc); ok && !labels[loc.Label] {
					t.Errorf("code location of %s points outside the stream",
						GetOpcodeName(bc.Opcode))
				}
			}
		}
	}
}

func TestCodeIRPackedSwitch(t *testing.T) {
	// packed-switch v0 with a payload of two targets, then two return
	// paths. Layout: 0: packed-switch (3 units), 3: return-void,
	// 4: return-void, 5: nop (alignment), 6: payload.
	insns := []uint16{
		0x002B, 0x0006, 0x0000, // packed-switch v0, +6
		0x000E,
		0x000E,
		0x0000,                                         // alignment nop
		0x0100, 0x0002, 0x000A, 0x0000,                 // ident, size, first key
		0x0003, 0x0000, 0x0004, 0x0000,                 // targets +3, +4
	}
	ci := lowerTestMethod(t, insns)

	var payload *PackedSwitchPayload
	var payloadLabel *Label
	for _, instr := range ci.Instructions {
		switch in := instr.(type) {
		case *PackedSwitchPayload:
			payload = in
		case *Label:
			if in.Offset == 6 {
				payloadLabel = in
			}
		}
	}

	if payload == nil {
		t.Fatal("no packed switch payload in the stream")
	}
	if payload.FirstKey != 10 {
		t.Errorf("first key = %d, want 10", payload.FirstKey)
	}
	if len(payload.Targets) != 2 {
		t.Fatalf("payload has %d targets, want 2", len(payload.Targets))
	}
	if payload.Targets[0].Offset != 3 || payload.Targets[1].Offset != 4 {
		t.Errorf("targets at %d and %d, want 3 and 4",
			payload.Targets[0].Offset, payload.Targets[1].Offset)
	}
	if payloadLabel == nil || !payloadLabel.Aligned {
		t.Error("the payload label is missing or not marked aligned")
	}
}
