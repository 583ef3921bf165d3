// Copyright 2022 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"bytes"
	"strings"
	"testing"
)

func printOperandToString(op Operand) string {
	var buf bytes.Buffer
	p := &lirPrinter{w: &buf}
	p.printOperand(op)
	return buf.String()
}

func TestOperandFormatting(t *testing.T) {
	hello := "hi"
	tests := []struct {
		name string
		op   Operand
		out  string
	}{
		{"vreg", VReg{Reg: 3}, "v3"},
		{"vreg pair", VRegPair{BaseReg: 4}, "v4:v5"},
		{"empty list", VRegList{}, "{}"},
		{"list", VRegList{Registers: []uint32{1, 2}}, "{v1,v2}"},
		{"empty range", VRegRange{BaseReg: 7, Count: 0}, "{}"},
		{"single range", VRegRange{BaseReg: 7, Count: 1}, "{v7..v7}"},
		{"range", VRegRange{BaseReg: 2, Count: 3}, "{v2..v4}"},
		{"string", StringOp{Value: &hello}, "\"hi\""},
		{"null string", StringOp{}, "<null>"},
		{"type", TypeOp{Type: &IRType{Descriptor: "Lpkg/T;"}}, "pkg.T"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := printOperandToString(tt.op); got != tt.out {
				t.Errorf("printOperand(%#v) = %q, want %q", tt.op, got, tt.out)
			}
		})
	}
}

func TestConst32NaN(t *testing.T) {
	// Both NaN bit patterns, regardless of sign, render as NaN.
	for _, bits := range []uint32{0x7FC00000, 0xFFC00000} {
		out := printOperandToString(Const32{Value: bits})
		if !strings.HasSuffix(out, "| NaN)") {
			t.Errorf("Const32(0x%08x) = %q, want a NaN suffix", bits, out)
		}
	}

	out := printOperandToString(Const32{Value: 0})
	if out != "#+0 (0x00000000 | 0.00000)" {
		t.Errorf("Const32(0) = %q", out)
	}
}

func TestConst64NaN(t *testing.T) {
	out := printOperandToString(Const64{Value: 0x7FF8000000000000})
	if !strings.HasSuffix(out, "| NaN)") {
		t.Errorf("Const64(NaN) = %q, want a NaN suffix", out)
	}
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		in  string
		out string
	}{
		{"hello\n", "hello\\n"},
		{"tab\there", "tab\\there"},
		{"quote\"", "quote\\\""},
		{"back\\slash", "back\\\\slash"},
		{"\x01", "\\x01"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			if got := escapeString(tt.in); got != tt.out {
				t.Errorf("escapeString(%q) = %q, want %q", tt.in, got, tt.out)
			}
		})
	}
}

func TestDisassembleWithCompactCFG(t *testing.T) {
	d := newTestDex(t, []uint16{0x0128, 0x000E})

	var sink bytes.Buffer
	if !d.Disassemble("com.example.Foo.bar", &sink, CfgCompact) {
		t.Fatal("Disassemble did not find the method")
	}

	out := sink.String()
	if !strings.Contains(out, "begin block 0") || !strings.Contains(out, "end block 1") {
		t.Errorf("listing misses block banners:\n%s", out)
	}
	if !strings.Contains(out, "Label_0:") {
		t.Errorf("listing misses the branch target label:\n%s", out)
	}
	if !strings.Contains(out, "goto Label_0") {
		t.Errorf("listing misses the goto operand:\n%s", out)
	}
}
