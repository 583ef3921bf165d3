// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

// Instruction formats. The mnemonic encodes unit count, register count and
// operand shape, e.g. 22c = 2 units, 2 registers, a constant-pool index.
type opFormat uint8

const (
	fmt10x opFormat = iota
	fmt12x
	fmt11n
	fmt11x
	fmt10t
	fmt20t
	fmt22x
	fmt21t
	fmt21s
	fmt21h
	fmt21c
	fmt23x
	fmt22b
	fmt22t
	fmt22s
	fmt22c
	fmt30t
	fmt32x
	fmt31i
	fmt31t
	fmt31c
	fmt35c
	fmt3rc
	fmt45cc
	fmt4rcc
	fmt51l
	fmtUnused
)

// unitCount returns the format's size in 16-bit code units.
func (f opFormat) unitCount() int {
	switch f {
	case fmt10x, fmt12x, fmt11n, fmt11x, fmt10t:
		return 1
	case fmt20t, fmt22x, fmt21t, fmt21s, fmt21h, fmt21c, fmt23x, fmt22b,
		fmt22t, fmt22s, fmt22c:
		return 2
	case fmt30t, fmt32x, fmt31i, fmt31t, fmt31c, fmt35c, fmt3rc:
		return 3
	case fmt45cc, fmt4rcc:
		return 4
	case fmt51l:
		return 5
	default:
		return 1
	}
}

// Constant-pool index kinds referenced by an instruction.
type indexKind uint8

const (
	idxNone indexKind = iota
	idxString
	idxType
	idxField
	idxMethod
)

// Register-width flags; a set bit means the virtual register holds a 64-bit
// value and renders as a pair. Register lists and ranges ignore them.
const (
	wideA = 1 << iota
	wideB
	wideC
)

type opcodeInfo struct {
	name   string
	format opFormat
	index  indexKind
	wide   uint8
}

// opcodeTable maps every opcode byte to its mnemonic, format, index kind
// and register widths.
var opcodeTable = [256]opcodeInfo{
	0x00: {"nop", fmt10x, idxNone, 0},
	0x01: {"move", fmt12x, idxNone, 0},
	0x02: {"move/from16", fmt22x, idxNone, 0},
	0x03: {"move/16", fmt32x, idxNone, 0},
	0x04: {"move-wide", fmt12x, idxNone, wideA | wideB},
	0x05: {"move-wide/from16", fmt22x, idxNone, wideA | wideB},
	0x06: {"move-wide/16", fmt32x, idxNone, wideA | wideB},
	0x07: {"move-object", fmt12x, idxNone, 0},
	0x08: {"move-object/from16", fmt22x, idxNone, 0},
	0x09: {"move-object/16", fmt32x, idxNone, 0},
	0x0A: {"move-result", fmt11x, idxNone, 0},
	0x0B: {"move-result-wide", fmt11x, idxNone, wideA},
	0x0C: {"move-result-object", fmt11x, idxNone, 0},
	0x0D: {"move-exception", fmt11x, idxNone, 0},
	0x0E: {"return-void", fmt10x, idxNone, 0},
	0x0F: {"return", fmt11x, idxNone, 0},
	0x10: {"return-wide", fmt11x, idxNone, wideA},
	0x11: {"return-object", fmt11x, idxNone, 0},
	0x12: {"const/4", fmt11n, idxNone, 0},
	0x13: {"const/16", fmt21s, idxNone, 0},
	0x14: {"const", fmt31i, idxNone, 0},
	0x15: {"const/high16", fmt21h, idxNone, 0},
	0x16: {"const-wide/16", fmt21s, idxNone, wideA},
	0x17: {"const-wide/32", fmt31i, idxNone, wideA},
	0x18: {"const-wide", fmt51l, idxNone, wideA},
	0x19: {"const-wide/high16", fmt21h, idxNone, wideA},
	0x1A: {"const-string", fmt21c, idxString, 0},
	0x1B: {"const-string/jumbo", fmt31c, idxString, 0},
	0x1C: {"const-class", fmt21c, idxType, 0},
	0x1D: {"monitor-enter", fmt11x, idxNone, 0},
	0x1E: {"monitor-exit", fmt11x, idxNone, 0},
	0x1F: {"check-cast", fmt21c, idxType, 0},
	0x20: {"instance-of", fmt22c, idxType, 0},
	0x21: {"array-length", fmt12x, idxNone, 0},
	0x22: {"new-instance", fmt21c, idxType, 0},
	0x23: {"new-array", fmt22c, idxType, 0},
	0x24: {"filled-new-array", fmt35c, idxType, 0},
	0x25: {"filled-new-array/range", fmt3rc, idxType, 0},
	0x26: {"fill-array-data", fmt31t, idxNone, 0},
	0x27: {"throw", fmt11x, idxNone, 0},
	0x28: {"goto", fmt10t, idxNone, 0},
	0x29: {"goto/16", fmt20t, idxNone, 0},
	0x2A: {"goto/32", fmt30t, idxNone, 0},
	0x2B: {"packed-switch", fmt31t, idxNone, 0},
	0x2C: {"sparse-switch", fmt31t, idxNone, 0},
	0x2D: {"cmpl-float", fmt23x, idxNone, 0},
	0x2E: {"cmpg-float", fmt23x, idxNone, 0},
	0x2F: {"cmpl-double", fmt23x, idxNone, wideB | wideC},
	0x30: {"cmpg-double", fmt23x, idxNone, wideB | wideC},
	0x31: {"cmp-long", fmt23x, idxNone, wideB | wideC},
	0x32: {"if-eq", fmt22t, idxNone, 0},
	0x33: {"if-ne", fmt22t, idxNone, 0},
	0x34: {"if-lt", fmt22t, idxNone, 0},
	0x35: {"if-ge", fmt22t, idxNone, 0},
	0x36: {"if-gt", fmt22t, idxNone, 0},
	0x37: {"if-le", fmt22t, idxNone, 0},
	0x38: {"if-eqz", fmt21t, idxNone, 0},
	0x39: {"if-nez", fmt21t, idxNone, 0},
	0x3A: {"if-ltz", fmt21t, idxNone, 0},
	0x3B: {"if-gez", fmt21t, idxNone, 0},
	0x3C: {"if-gtz", fmt21t, idxNone, 0},
	0x3D: {"if-lez", fmt21t, idxNone, 0},
	0x3E: {"unused-3e", fmtUnused, idxNone, 0},
	0x3F: {"unused-3f", fmtUnused, idxNone, 0},
	0x40: {"unused-40", fmtUnused, idxNone, 0},
	0x41: {"unused-41", fmtUnused, idxNone, 0},
	0x42: {"unused-42", fmtUnused, idxNone, 0},
	0x43: {"unused-43", fmtUnused, idxNone, 0},
	0x44: {"aget", fmt23x, idxNone, 0},
	0x45: {"aget-wide", fmt23x, idxNone, wideA},
	0x46: {"aget-object", fmt23x, idxNone, 0},
	0x47: {"aget-boolean", fmt23x, idxNone, 0},
	0x48: {"aget-byte", fmt23x, idxNone, 0},
	0x49: {"aget-char", fmt23x, idxNone, 0},
	0x4A: {"aget-short", fmt23x, idxNone, 0},
	0x4B: {"aput", fmt23x, idxNone, 0},
	0x4C: {"aput-wide", fmt23x, idxNone, wideA},
	0x4D: {"aput-object", fmt23x, idxNone, 0},
	0x4E: {"aput-boolean", fmt23x, idxNone, 0},
	0x4F: {"aput-byte", fmt23x, idxNone, 0},
	0x50: {"aput-char", fmt23x, idxNone, 0},
	0x51: {"aput-short", fmt23x, idxNone, 0},
	0x52: {"iget", fmt22c, idxField, 0},
	0x53: {"iget-wide", fmt22c, idxField, wideA},
	0x54: {"iget-object", fmt22c, idxField, 0},
	0x55: {"iget-boolean", fmt22c, idxField, 0},
	0x56: {"iget-byte", fmt22c, idxField, 0},
	0x57: {"iget-char", fmt22c, idxField, 0},
	0x58: {"iget-short", fmt22c, idxField, 0},
	0x59: {"iput", fmt22c, idxField, 0},
	0x5A: {"iput-wide", fmt22c, idxField, wideA},
	0x5B: {"iput-object", fmt22c, idxField, 0},
	0x5C: {"iput-boolean", fmt22c, idxField, 0},
	0x5D: {"iput-byte", fmt22c, idxField, 0},
	0x5E: {"iput-char", fmt22c, idxField, 0},
	0x5F: {"iput-short", fmt22c, idxField, 0},
	0x60: {"sget", fmt21c, idxField, 0},
	0x61: {"sget-wide", fmt21c, idxField, wideA},
	0x62: {"sget-object", fmt21c, idxField, 0},
	0x63: {"sget-boolean", fmt21c, idxField, 0},
	0x64: {"sget-byte", fmt21c, idxField, 0},
	0x65: {"sget-char", fmt21c, idxField, 0},
	0x66: {"sget-short", fmt21c, idxField, 0},
	0x67: {"sput", fmt21c, idxField, 0},
	0x68: {"sput-wide", fmt21c, idxField, wideA},
	0x69: {"sput-object", fmt21c, idxField, 0},
	0x6A: {"sput-boolean", fmt21c, idxField, 0},
	0x6B: {"sput-byte", fmt21c, idxField, 0},
	0x6C: {"sput-char", fmt21c, idxField, 0},
	0x6D: {"sput-short", fmt21c, idxField, 0},
	0x6E: {"invoke-virtual", fmt35c, idxMethod, 0},
	0x6F: {"invoke-super", fmt35c, idxMethod, 0},
	0x70: {"invoke-direct", fmt35c, idxMethod, 0},
	0x71: {"invoke-static", fmt35c, idxMethod, 0},
	0x72: {"invoke-interface", fmt35c, idxMethod, 0},
	0x73: {"unused-73", fmtUnused, idxNone, 0},
	0x74: {"invoke-virtual/range", fmt3rc, idxMethod, 0},
	0x75: {"invoke-super/range", fmt3rc, idxMethod, 0},
	0x76: {"invoke-direct/range", fmt3rc, idxMethod, 0},
	0x77: {"invoke-static/range", fmt3rc, idxMethod, 0},
	0x78: {"invoke-interface/range", fmt3rc, idxMethod, 0},
	0x79: {"unused-79", fmtUnused, idxNone, 0},
	0x7A: {"unused-7a", fmtUnused, idxNone, 0},
	0x7B: {"neg-int", fmt12x, idxNone, 0},
	0x7C: {"not-int", fmt12x, idxNone, 0},
	0x7D: {"neg-long", fmt12x, idxNone, wideA | wideB},
	0x7E: {"not-long", fmt12x, idxNone, wideA | wideB},
	0x7F: {"neg-float", fmt12x, idxNone, 0},
	0x80: {"neg-double", fmt12x, idxNone, wideA | wideB},
	0x81: {"int-to-long", fmt12x, idxNone, wideA},
	0x82: {"int-to-float", fmt12x, idxNone, 0},
	0x83: {"int-to-double", fmt12x, idxNone, wideA},
	0x84: {"long-to-int", fmt12x, idxNone, wideB},
	0x85: {"long-to-float", fmt12x, idxNone, wideB},
	0x86: {"long-to-double", fmt12x, idxNone, wideA | wideB},
	0x87: {"float-to-int", fmt12x, idxNone, 0},
	0x88: {"float-to-long", fmt12x, idxNone, wideA},
	0x89: {"float-to-double", fmt12x, idxNone, wideA},
	0x8A: {"double-to-int", fmt12x, idxNone, wideB},
	0x8B: {"double-to-long", fmt12x, idxNone, wideA | wideB},
	0x8C: {"double-to-float", fmt12x, idxNone, wideB},
	0x8D: {"int-to-byte", fmt12x, idxNone, 0},
	0x8E: {"int-to-char", fmt12x, idxNone, 0},
	0x8F: {"int-to-short", fmt12x, idxNone, 0},
	0x90: {"add-int", fmt23x, idxNone, 0},
	0x91: {"sub-int", fmt23x, idxNone, 0},
	0x92: {"mul-int", fmt23x, idxNone, 0},
	0x93: {"div-int", fmt23x, idxNone, 0},
	0x94: {"rem-int", fmt23x, idxNone, 0},
	0x95: {"and-int", fmt23x, idxNone, 0},
	0x96: {"or-int", fmt23x, idxNone, 0},
	0x97: {"xor-int", fmt23x, idxNone, 0},
	0x98: {"shl-int", fmt23x, idxNone, 0},
	0x99: {"shr-int", fmt23x, idxNone, 0},
	0x9A: {"ushr-int", fmt23x, idxNone, 0},
	0x9B: {"add-long", fmt23x, idxNone, wideA | wideB | wideC},
	0x9C: {"sub-long", fmt23x, idxNone, wideA | wideB | wideC},
	0x9D: {"mul-long", fmt23x, idxNone, wideA | wideB | wideC},
	0x9E: {"div-long", fmt23x, idxNone, wideA | wideB | wideC},
	0x9F: {"rem-long", fmt23x, idxNone, wideA | wideB | wideC},
	0xA0: {"and-long", fmt23x, idxNone, wideA | wideB | wideC},
	0xA1: {"or-long", fmt23x, idxNone, wideA | wideB | wideC},
	0xA2: {"xor-long", fmt23x, idxNone, wideA | wideB | wideC},
	0xA3: {"shl-long", fmt23x, idxNone, wideA | wideB},
	0xA4: {"shr-long", fmt23x, idxNone, wideA | wideB},
	0xA5: {"ushr-long", fmt23x, idxNone, wideA | wideB},
	0xA6: {"add-float", fmt23x, idxNone, 0},
	0xA7: {"sub-float", fmt23x, idxNone, 0},
	0xA8: {"mul-float", fmt23x, idxNone, 0},
	0xA9: {"div-float", fmt23x, idxNone, 0},
	0xAA: {"rem-float", fmt23x, idxNone, 0},
	0xAB: {"add-double", fmt23x, idxNone, wideA | wideB | wideC},
	0xAC: {"sub-double", fmt23x, idxNone, wideA | wideB | wideC},
	0xAD: {"mul-double", fmt23x, idxNone, wideA | wideB | wideC},
	0xAE: {"div-double", fmt23x, idxNone, wideA | wideB | wideC},
	0xAF: {"rem-double", fmt23x, idxNone, wideA | wideB | wideC},
	0xB0: {"add-int/2addr", fmt12x, idxNone, 0},
	0xB1: {"sub-int/2addr", fmt12x, idxNone, 0},
	0xB2: {"mul-int/2addr", fmt12x, idxNone, 0},
	0xB3: {"div-int/2addr", fmt12x, idxNone, 0},
	0xB4: {"rem-int/2addr", fmt12x, idxNone, 0},
	0xB5: {"and-int/2addr", fmt12x, idxNone, 0},
	0xB6: {"or-int/2addr", fmt12x, idxNone, 0},
	0xB7: {"xor-int/2addr", fmt12x, idxNone, 0},
	0xB8: {"shl-int/2addr", fmt12x, idxNone, 0},
	0xB9: {"shr-int/2addr", fmt12x, idxNone, 0},
	0xBA: {"ushr-int/2addr", fmt12x, idxNone, 0},
	0xBB: {"add-long/2addr", fmt12x, idxNone, wideA | wideB},
	0xBC: {"sub-long/2addr", fmt12x, idxNone, wideA | wideB},
	0xBD: {"mul-long/2addr", fmt12x, idxNone, wideA | wideB},
	0xBE: {"div-long/2addr", fmt12x, idxNone, wideA | wideB},
	0xBF: {"rem-long/2addr", fmt12x, idxNone, wideA | wideB},
	0xC0: {"and-long/2addr", fmt12x, idxNone, wideA | wideB},
	0xC1: {"or-long/2addr", fmt12x, idxNone, wideA | wideB},
	0xC2: {"xor-long/2addr", fmt12x, idxNone, wideA | wideB},
	0xC3: {"shl-long/2addr", fmt12x, idxNone, wideA},
	0xC4: {"shr-long/2addr", fmt12x, idxNone, wideA},
	0xC5: {"ushr-long/2addr", fmt12x, idxNone, wideA},
	0xC6: {"add-float/2addr", fmt12x, idxNone, 0},
	0xC7: {"sub-float/2addr", fmt12x, idxNone, 0},
	0xC8: {"mul-float/2addr", fmt12x, idxNone, 0},
	0xC9: {"div-float/2addr", fmt12x, idxNone, 0},
	0xCA: {"rem-float/2addr", fmt12x, idxNone, 0},
	0xCB: {"add-double/2addr", fmt12x, idxNone, wideA | wideB},
	0xCC: {"sub-double/2addr", fmt12x, idxNone, wideA | wideB},
	0xCD: {"mul-double/2addr", fmt12x, idxNone, wideA | wideB},
	0xCE: {"div-double/2addr", fmt12x, idxNone, wideA | wideB},
	0xCF: {"rem-double/2addr", fmt12x, idxNone, wideA | wideB},
	0xD0: {"add-int/lit16", fmt22s, idxNone, 0},
	0xD1: {"rsub-int", fmt22s, idxNone, 0},
	0xD2: {"mul-int/lit16", fmt22s, idxNone, 0},
	0xD3: {"div-int/lit16", fmt22s, idxNone, 0},
	0xD4: {"rem-int/lit16", fmt22s, idxNone, 0},
	0xD5: {"and-int/lit16", fmt22s, idxNone, 0},
	0xD6: {"or-int/lit16", fmt22s, idxNone, 0},
	0xD7: {"xor-int/lit16", fmt22s, idxNone, 0},
	0xD8: {"add-int/lit8", fmt22b, idxNone, 0},
	0xD9: {"rsub-int/lit8", fmt22b, idxNone, 0},
	0xDA: {"mul-int/lit8", fmt22b, idxNone, 0},
	0xDB: {"div-int/lit8", fmt22b, idxNone, 0},
	0xDC: {"rem-int/lit8", fmt22b, idxNone, 0},
	0xDD: {"and-int/lit8", fmt22b, idxNone, 0},
	0xDE: {"or-int/lit8", fmt22b, idxNone, 0},
	0xDF: {"xor-int/lit8", fmt22b, idxNone, 0},
	0xE0: {"shl-int/lit8", fmt22b, idxNone, 0},
	0xE1: {"shr-int/lit8", fmt22b, idxNone, 0},
	0xE2: {"ushr-int/lit8", fmt22b, idxNone, 0},
	0xE3: {"unused-e3", fmtUnused, idxNone, 0},
	0xE4: {"unused-e4", fmtUnused, idxNone, 0},
	0xE5: {"unused-e5", fmtUnused, idxNone, 0},
	0xE6: {"unused-e6", fmtUnused, idxNone, 0},
	0xE7: {"unused-e7", fmtUnused, idxNone, 0},
	0xE8: {"unused-e8", fmtUnused, idxNone, 0},
	0xE9: {"unused-e9", fmtUnused, idxNone, 0},
	0xEA: {"unused-ea", fmtUnused, idxNone, 0},
	0xEB: {"unused-eb", fmtUnused, idxNone, 0},
	0xEC: {"unused-ec", fmtUnused, idxNone, 0},
	0xED: {"unused-ed", fmtUnused, idxNone, 0},
	0xEE: {"unused-ee", fmtUnused, idxNone, 0},
	0xEF: {"unused-ef", fmtUnused, idxNone, 0},
	0xF0: {"unused-f0", fmtUnused, idxNone, 0},
	0xF1: {"unused-f1", fmtUnused, idxNone, 0},
	0xF2: {"unused-f2", fmtUnused, idxNone, 0},
	0xF3: {"unused-f3", fmtUnused, idxNone, 0},
	0xF4: {"unused-f4", fmtUnused, idxNone, 0},
	0xF5: {"unused-f5", fmtUnused, idxNone, 0},
	0xF6: {"unused-f6", fmtUnused, idxNone, 0},
	0xF7: {"unused-f7", fmtUnused, idxNone, 0},
	0xF8: {"unused-f8", fmtUnused, idxNone, 0},
	0xF9: {"unused-f9", fmtUnused, idxNone, 0},
	0xFA: {"invoke-polymorphic", fmt45cc, idxMethod, 0},
	0xFB: {"invoke-polymorphic/range", fmt4rcc, idxMethod, 0},
	0xFC: {"invoke-custom", fmt35c, idxNone, 0},
	0xFD: {"invoke-custom/range", fmt3rc, idxNone, 0},
	0xFE: {"const-method-handle", fmt21c, idxNone, 0},
	0xFF: {"const-method-type", fmt21c, idxNone, 0},
}

// Pseudo-opcode idents of inline payloads; they appear where the opcode
// byte is nop (0x00) with a payload selector in the high byte.
const (
	packedSwitchIdent = 0x0100
	sparseSwitchIdent = 0x0200
	arrayDataIdent    = 0x0300
)

// GetOpcodeName returns the mnemonic of an opcode byte.
func GetOpcodeName(opcode uint8) string {
	return opcodeTable[opcode].name
}
