// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"errors"
	"fmt"
	"sort"
)

// Errors
var (
	// ErrBadBytecode is returned when a method body cannot be lowered.
	ErrBadBytecode = errors.New("malformed bytecode")
)

// Debug info state machine opcodes.
const (
	dbgEndSequence        = 0x00
	dbgAdvancePC          = 0x01
	dbgAdvanceLine        = 0x02
	dbgStartLocal         = 0x03
	dbgStartLocalExtended = 0x04
	dbgEndLocal           = 0x05
	dbgRestartLocal       = 0x06
	dbgSetPrologueEnd     = 0x07
	dbgSetEpilogueBegin   = 0x08
	dbgSetFile            = 0x09
	dbgFirstSpecial       = 0x0A
	dbgLineBase           = -4
	dbgLineRange          = 15
)

// Operand is a formatted operand of a lowered instruction.
type Operand interface {
	isOperand()
}

// VReg is a virtual register.
type VReg struct {
	Reg uint32
}

// VRegPair is a 64-bit value held in two consecutive registers.
type VRegPair struct {
	BaseReg uint32
}

// VRegList is an explicit register list.
type VRegList struct {
	Registers []uint32
}

// VRegRange is a contiguous register range; Count may be zero.
type VRegRange struct {
	BaseReg uint32
	Count   int
}

// Const32 is a 32-bit literal; the printer derives the signed and float
// views from the bit pattern.
type Const32 struct {
	Value uint32
}

// Const64 is a 64-bit literal.
type Const64 struct {
	Value uint64
}

// StringOp references a constant-pool string. Value is nil for an absent
// index.
type StringOp struct {
	Index uint32
	Value *string
}

// TypeOp references a type.
type TypeOp struct {
	Index uint32
	Type  *IRType
}

// FieldOp references a field.
type FieldOp struct {
	Index uint32
	Field *IRField
}

// MethodOp references a method.
type MethodOp struct {
	Index  uint32
	Method *IRMethod
}

// CodeLoc points at a label elsewhere in the same method.
type CodeLoc struct {
	Label *Label
}

// LineNum is a source line number operand of a debug annotation.
type LineNum struct {
	Line int32
}

func (VReg) isOperand()      {}
func (VRegPair) isOperand()  {}
func (VRegList) isOperand()  {}
func (VRegRange) isOperand() {}
func (Const32) isOperand()   {}
func (Const64) isOperand()   {}
func (StringOp) isOperand()  {}
func (TypeOp) isOperand()    {}
func (FieldOp) isOperand()   {}
func (MethodOp) isOperand()  {}
func (*CodeLoc) isOperand()  {}
func (LineNum) isOperand()   {}

// Instruction is one element of the linear instruction representation.
type Instruction interface {
	isInstruction()
}

// Bytecode is a decoded dalvik instruction.
type Bytecode struct {
	Offset   uint32
	Opcode   uint8
	Operands []Operand
}

// Label marks a branch, switch or handler target. Aligned labels precede
// payloads that require 4-byte alignment.
type Label struct {
	Offset  uint32
	ID      int
	Aligned bool
}

// TryBlockBegin opens a try region.
type TryBlockBegin struct {
	Offset uint32
	ID     int
}

// CatchHandler is one typed handler of a try region.
type CatchHandler struct {
	Type  *IRType
	Label *Label
}

// TryBlockEnd closes a try region and lists its handlers.
type TryBlockEnd struct {
	Offset   uint32
	Begin    *TryBlockBegin
	Handlers []CatchHandler
	CatchAll *Label
}

// SwitchCase is one key/target pair of a sparse switch payload.
type SwitchCase struct {
	Key    int32
	Target *Label
}

// PackedSwitchPayload is the inline data of a packed-switch.
type PackedSwitchPayload struct {
	Offset   uint32
	FirstKey int32
	Targets  []*Label
}

// SparseSwitchPayload is the inline data of a sparse-switch.
type SparseSwitchPayload struct {
	Offset uint32
	Cases  []SwitchCase
}

// ArrayData is the inline data of a fill-array-data.
type ArrayData struct {
	Offset       uint32
	ElementWidth uint16
	Size         uint32
}

// DbgInfoHeader carries the method's debug parameter names.
type DbgInfoHeader struct {
	Offset     uint32
	ParamNames []*string
}

// DbgInfoAnnotation is one decoded debug state machine directive.
type DbgInfoAnnotation struct {
	Offset   uint32
	Opcode   uint8
	Operands []Operand
}

func (*Bytecode) isInstruction()            {}
func (*Label) isInstruction()               {}
func (*TryBlockBegin) isInstruction()       {}
func (*TryBlockEnd) isInstruction()         {}
func (*PackedSwitchPayload) isInstruction() {}
func (*SparseSwitchPayload) isInstruction() {}
func (*ArrayData) isInstruction()           {}
func (*DbgInfoHeader) isInstruction()       {}
func (*DbgInfoAnnotation) isInstruction()   {}

// CodeIR is the lowered, linear form of one method body.
type CodeIR struct {
	Method       *IREncodedMethod
	Instructions []Instruction
}

// rawInsn is a decoded stream element before labels and try markers are
// threaded in.
type rawInsn struct {
	offset uint32
	units  int
	instr  Instruction

	// Unresolved control transfers, filled during assembly.
	branchTarget  uint32
	hasBranch     bool
	payloadTarget uint32
	hasPayload    bool

	// Raw switch payload content, resolved once the owning switch is known.
	packedFirstKey int32
	rawTargets     []int32
	rawKeys        []int32
}

type codeDecoder struct {
	dex  *Dex
	ir   *DexIR
	code *IRCode

	raws []rawInsn

	// payload offset -> offset of the referencing switch instruction
	payloadOwner map[uint32]uint32

	labels map[uint32]*Label

	dbgHeader      *DbgInfoHeader
	dbgAnnotations []rawDbgAnnotation
}

type rawDbgAnnotation struct {
	addr  uint32
	instr *DbgInfoAnnotation
}

// NewCodeIR lowers an encoded method's code block into the linear
// instruction representation.
func NewCodeIR(d *Dex, m *IREncodedMethod) (*CodeIR, error) {
	ci := &CodeIR{Method: m}
	if m.Code == nil {
		return ci, nil
	}

	dec := &codeDecoder{
		dex:          d,
		ir:           d.ensureBaseIR(),
		code:         m.Code,
		payloadOwner: make(map[uint32]uint32),
		labels:       make(map[uint32]*Label),
	}

	if err := dec.decodeInsns(); err != nil {
		return nil, err
	}
	if err := dec.decodeDebugInfo(); err != nil {
		// Debug info is best effort; a broken stream only loses
		// annotations.
		d.logger.Warnf("debug info of %s.%s unreadable: %v",
			m.Decl.Parent.Decl(), m.Decl.Name, err)
	}
	ci.Instructions = dec.assemble()
	return ci, nil
}

func (dec *codeDecoder) label(offset uint32, aligned bool) *Label {
	l, ok := dec.labels[offset]
	if !ok {
		l = &Label{Offset: offset}
		dec.labels[offset] = l
	}
	if aligned {
		l.Aligned = true
	}
	return l
}

func (dec *codeDecoder) decodeInsns() error {
	insns := dec.code.Insns
	for off := 0; off < len(insns); {
		u0 := insns[off]
		opcode := uint8(u0 & 0xFF)

		if opcode == 0x00 && u0>>8 != 0 {
			raw, err := dec.decodePayload(uint32(off), insns)
			if err != nil {
				return err
			}
			dec.raws = append(dec.raws, raw)
			off += raw.units
			continue
		}

		raw, err := dec.decodeBytecode(uint32(off), insns)
		if err != nil {
			return err
		}
		dec.raws = append(dec.raws, raw)
		off += raw.units
	}
	return nil
}

func (dec *codeDecoder) decodePayload(off uint32, insns []uint16) (rawInsn, error) {
	ident := insns[off]
	switch ident {
	case packedSwitchIdent:
		if int(off)+4 > len(insns) {
			return rawInsn{}, ErrBadBytecode
		}
		size := int(insns[off+1])
		if int(off)+4+size*2 > len(insns) {
			return rawInsn{}, ErrBadBytecode
		}
		firstKey := int32(uint32(insns[off+2]) | uint32(insns[off+3])<<16)
		targets := make([]int32, size)
		for i := 0; i < size; i++ {
			base := int(off) + 4 + i*2
			targets[i] = int32(uint32(insns[base]) | uint32(insns[base+1])<<16)
		}
		return rawInsn{
			offset:         off,
			units:          4 + size*2,
			instr:          &PackedSwitchPayload{Offset: off, FirstKey: firstKey},
			packedFirstKey: firstKey,
			rawTargets:     targets,
		}, nil

	case sparseSwitchIdent:
		if int(off)+2 > len(insns) {
			return rawInsn{}, ErrBadBytecode
		}
		size := int(insns[off+1])
		if int(off)+2+size*4 > len(insns) {
			return rawInsn{}, ErrBadBytecode
		}
		keys := make([]int32, size)
		targets := make([]int32, size)
		for i := 0; i < size; i++ {
			base := int(off) + 2 + i*2
			keys[i] = int32(uint32(insns[base]) | uint32(insns[base+1])<<16)
		}
		for i := 0; i < size; i++ {
			base := int(off) + 2 + size*2 + i*2
			targets[i] = int32(uint32(insns[base]) | uint32(insns[base+1])<<16)
		}
		return rawInsn{
			offset:     off,
			units:      2 + size*4,
			instr:      &SparseSwitchPayload{Offset: off},
			rawKeys:    keys,
			rawTargets: targets,
		}, nil

	case arrayDataIdent:
		if int(off)+4 > len(insns) {
			return rawInsn{}, ErrBadBytecode
		}
		width := insns[off+1]
		size := uint32(insns[off+2]) | uint32(insns[off+3])<<16
		dataUnits := (int(width)*int(size) + 1) / 2
		if int(off)+4+dataUnits > len(insns) {
			return rawInsn{}, ErrBadBytecode
		}
		return rawInsn{
			offset: off,
			units:  4 + dataUnits,
			instr:  &ArrayData{Offset: off, ElementWidth: width, Size: size},
		}, nil

	default:
		return rawInsn{}, fmt.Errorf("%w: unknown payload ident 0x%04x",
			ErrBadBytecode, ident)
	}
}

func (dec *codeDecoder) reg(n uint32, wide bool) Operand {
	if wide {
		return VRegPair{BaseReg: n}
	}
	return VReg{Reg: n}
}

func (dec *codeDecoder) stringOperand(idx uint32) Operand {
	op := StringOp{Index: idx}
	if idx < uint32(len(dec.ir.Strings)) {
		op.Value = &dec.ir.Strings[idx]
	}
	return op
}

func (dec *codeDecoder) indexOperand(kind indexKind, idx uint32) Operand {
	switch kind {
	case idxString:
		return dec.stringOperand(idx)
	case idxType:
		op := TypeOp{Index: idx}
		if idx < uint32(len(dec.ir.Types)) {
			op.Type = dec.ir.Types[idx]
		}
		return op
	case idxField:
		op := FieldOp{Index: idx}
		if idx < uint32(len(dec.ir.Fields)) {
			op.Field = dec.ir.Fields[idx]
		}
		return op
	case idxMethod:
		op := MethodOp{Index: idx}
		if idx < uint32(len(dec.ir.Methods)) {
			op.Method = dec.ir.Methods[idx]
		}
		return op
	default:
		return Const32{Value: idx}
	}
}

func (dec *codeDecoder) decodeBytecode(off uint32, insns []uint16) (rawInsn, error) {
	u0 := insns[off]
	opcode := uint8(u0 & 0xFF)
	info := opcodeTable[opcode]

	units := info.format.unitCount()
	if int(off)+units > len(insns) {
		return rawInsn{}, ErrBadBytecode
	}
	unit := func(i int) uint16 { return insns[int(off)+i] }

	bc := &Bytecode{Offset: off, Opcode: opcode}
	raw := rawInsn{offset: off, units: units, instr: bc}

	switch info.format {
	case fmt10x, fmtUnused:
		// no operands

	case fmt12x:
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8)&0xF, info.wide&wideA != 0),
			dec.reg(uint32(u0>>12)&0xF, info.wide&wideB != 0),
		}

	case fmt11n:
		lit := int32(int16(u0)) >> 12
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8)&0xF, false),
			Const32{Value: uint32(lit)},
		}

	case fmt11x:
		bc.Operands = []Operand{dec.reg(uint32(u0>>8), info.wide&wideA != 0)}

	case fmt10t:
		raw.hasBranch = true
		raw.branchTarget = uint32(int32(off) + int32(int8(u0>>8)))

	case fmt20t:
		raw.hasBranch = true
		raw.branchTarget = uint32(int32(off) + int32(int16(unit(1))))

	case fmt30t:
		rel := int32(uint32(unit(1)) | uint32(unit(2))<<16)
		raw.hasBranch = true
		raw.branchTarget = uint32(int32(off) + rel)

	case fmt22x:
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8), info.wide&wideA != 0),
			dec.reg(uint32(unit(1)), info.wide&wideB != 0),
		}

	case fmt32x:
		bc.Operands = []Operand{
			dec.reg(uint32(unit(1)), info.wide&wideA != 0),
			dec.reg(uint32(unit(2)), info.wide&wideB != 0),
		}

	case fmt21t:
		bc.Operands = []Operand{dec.reg(uint32(u0>>8), false)}
		raw.hasBranch = true
		raw.branchTarget = uint32(int32(off) + int32(int16(unit(1))))

	case fmt22t:
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8)&0xF, false),
			dec.reg(uint32(u0>>12)&0xF, false),
		}
		raw.hasBranch = true
		raw.branchTarget = uint32(int32(off) + int32(int16(unit(1))))

	case fmt21s:
		regOp := dec.reg(uint32(u0>>8), info.wide&wideA != 0)
		if info.wide&wideA != 0 {
			bc.Operands = []Operand{regOp, Const64{Value: uint64(int64(int16(unit(1))))}}
		} else {
			bc.Operands = []Operand{regOp, Const32{Value: uint32(int32(int16(unit(1))))}}
		}

	case fmt21h:
		regOp := dec.reg(uint32(u0>>8), info.wide&wideA != 0)
		if info.wide&wideA != 0 {
			bc.Operands = []Operand{regOp, Const64{Value: uint64(unit(1)) << 48}}
		} else {
			bc.Operands = []Operand{regOp, Const32{Value: uint32(unit(1)) << 16}}
		}

	case fmt21c:
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8), info.wide&wideA != 0),
			dec.indexOperand(info.index, uint32(unit(1))),
		}

	case fmt23x:
		u1 := unit(1)
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8), info.wide&wideA != 0),
			dec.reg(uint32(u1&0xFF), info.wide&wideB != 0),
			dec.reg(uint32(u1>>8), info.wide&wideC != 0),
		}

	case fmt22b:
		u1 := unit(1)
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8), false),
			dec.reg(uint32(u1&0xFF), false),
			Const32{Value: uint32(int32(int8(u1 >> 8)))},
		}

	case fmt22s:
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8)&0xF, false),
			dec.reg(uint32(u0>>12)&0xF, false),
			Const32{Value: uint32(int32(int16(unit(1))))},
		}

	case fmt22c:
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8)&0xF, info.wide&wideA != 0),
			dec.reg(uint32(u0>>12)&0xF, false),
			dec.indexOperand(info.index, uint32(unit(1))),
		}

	case fmt31i:
		value := uint32(unit(1)) | uint32(unit(2))<<16
		regOp := dec.reg(uint32(u0>>8), info.wide&wideA != 0)
		if info.wide&wideA != 0 {
			bc.Operands = []Operand{regOp, Const64{Value: uint64(int64(int32(value)))}}
		} else {
			bc.Operands = []Operand{regOp, Const32{Value: value}}
		}

	case fmt31t:
		rel := int32(uint32(unit(1)) | uint32(unit(2))<<16)
		bc.Operands = []Operand{dec.reg(uint32(u0>>8), false)}
		raw.hasPayload = true
		raw.payloadTarget = uint32(int32(off) + rel)
		dec.payloadOwner[raw.payloadTarget] = off

	case fmt31c:
		idx := uint32(unit(1)) | uint32(unit(2))<<16
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8), false),
			dec.indexOperand(info.index, idx),
		}

	case fmt35c, fmt45cc:
		count := uint32(u0>>12) & 0xF
		u2 := unit(2)
		regs := []uint32{
			uint32(u2) & 0xF,
			uint32(u2>>4) & 0xF,
			uint32(u2>>8) & 0xF,
			uint32(u2>>12) & 0xF,
			uint32(u0>>8) & 0xF,
		}
		if count > 5 {
			return rawInsn{}, fmt.Errorf("%w: register list of %d", ErrBadBytecode, count)
		}
		bc.Operands = []Operand{
			VRegList{Registers: regs[:count]},
			dec.indexOperand(info.index, uint32(unit(1))),
		}

	case fmt3rc, fmt4rcc:
		bc.Operands = []Operand{
			VRegRange{BaseReg: uint32(unit(2)), Count: int(u0 >> 8)},
			dec.indexOperand(info.index, uint32(unit(1))),
		}

	case fmt51l:
		value := uint64(unit(1)) | uint64(unit(2))<<16 |
			uint64(unit(3))<<32 | uint64(unit(4))<<48
		bc.Operands = []Operand{
			dec.reg(uint32(u0>>8), true),
			Const64{Value: value},
		}
	}

	return raw, nil
}

func (dec *codeDecoder) decodeDebugInfo() error {
	if dec.code.DebugInfoOff == 0 {
		return nil
	}
	cur, err := dec.dex.cursorAt(dec.code.DebugInfoOff)
	if err != nil {
		return err
	}

	line, err := cur.uleb128()
	if err != nil {
		return err
	}
	paramsSize, err := cur.uleb128()
	if err != nil {
		return err
	}
	header := &DbgInfoHeader{}
	for i := uint32(0); i < paramsSize; i++ {
		nameIdx, err := cur.uleb128p1()
		if err != nil {
			return err
		}
		if nameIdx >= 0 && nameIdx < int32(len(dec.ir.Strings)) {
			header.ParamNames = append(header.ParamNames, &dec.ir.Strings[nameIdx])
		} else {
			header.ParamNames = append(header.ParamNames, nil)
		}
	}
	dec.dbgHeader = header

	addr := uint32(0)
	curLine := int32(line)
	annotate := func(opcode uint8, operands ...Operand) {
		dec.dbgAnnotations = append(dec.dbgAnnotations, rawDbgAnnotation{
			addr: addr,
			instr: &DbgInfoAnnotation{
				Offset:   addr,
				Opcode:   opcode,
				Operands: operands,
			},
		})
	}
	stringOrNil := func() (Operand, error) {
		idx, err := cur.uleb128p1()
		if err != nil {
			return nil, err
		}
		if idx < 0 {
			return StringOp{Index: NoIndex}, nil
		}
		return dec.stringOperand(uint32(idx)), nil
	}
	typeOrNil := func() (Operand, error) {
		idx, err := cur.uleb128p1()
		if err != nil {
			return nil, err
		}
		if idx < 0 {
			return TypeOp{Index: NoIndex}, nil
		}
		return dec.indexOperand(idxType, uint32(idx)), nil
	}

	for {
		opcode, err := cur.uint8()
		if err != nil {
			return err
		}
		switch opcode {
		case dbgEndSequence:
			return nil

		case dbgAdvancePC:
			diff, err := cur.uleb128()
			if err != nil {
				return err
			}
			addr += diff

		case dbgAdvanceLine:
			diff, err := cur.sleb128()
			if err != nil {
				return err
			}
			curLine += diff
			annotate(opcode, LineNum{Line: curLine})

		case dbgStartLocal, dbgStartLocalExtended:
			reg, err := cur.uleb128()
			if err != nil {
				return err
			}
			name, err := stringOrNil()
			if err != nil {
				return err
			}
			typ, err := typeOrNil()
			if err != nil {
				return err
			}
			operands := []Operand{VReg{Reg: reg}, name, typ}
			if opcode == dbgStartLocalExtended {
				sig, err := stringOrNil()
				if err != nil {
					return err
				}
				operands = append(operands, sig)
			}
			annotate(opcode, operands...)

		case dbgEndLocal, dbgRestartLocal:
			reg, err := cur.uleb128()
			if err != nil {
				return err
			}
			annotate(opcode, VReg{Reg: reg})

		case dbgSetPrologueEnd, dbgSetEpilogueBegin:
			annotate(opcode)

		case dbgSetFile:
			name, err := stringOrNil()
			if err != nil {
				return err
			}
			annotate(opcode, name)

		default:
			adjusted := int32(opcode) - dbgFirstSpecial
			curLine += dbgLineBase + adjusted%dbgLineRange
			addr += uint32(adjusted / dbgLineRange)
		}
	}
}

// assemble threads labels, try markers and debug annotations into the
// decoded stream and resolves every code location.
func (dec *codeDecoder) assemble() []Instruction {
	// Labels for branch and payload targets.
	for i := range dec.raws {
		raw := &dec.raws[i]
		if raw.hasBranch {
			dec.label(raw.branchTarget, false)
		}
		if raw.hasPayload {
			dec.label(raw.payloadTarget, true)
		}
	}

	// Switch payload case targets are relative to the owning switch.
	for i := range dec.raws {
		raw := &dec.raws[i]
		owner, owned := dec.payloadOwner[raw.offset]
		switch p := raw.instr.(type) {
		case *PackedSwitchPayload:
			if !owned {
				continue
			}
			for _, rel := range raw.rawTargets {
				p.Targets = append(p.Targets,
					dec.label(uint32(int32(owner)+rel), false))
			}
		case *SparseSwitchPayload:
			if !owned {
				continue
			}
			for j, rel := range raw.rawTargets {
				p.Cases = append(p.Cases, SwitchCase{
					Key:    raw.rawKeys[j],
					Target: dec.label(uint32(int32(owner)+rel), false),
				})
			}
		}
	}

	// Try regions and handler labels.
	type tryMarker struct {
		begin *TryBlockBegin
		end   *TryBlockEnd
	}
	markers := make([]tryMarker, 0, len(dec.code.Tries))
	for i, try := range dec.code.Tries {
		begin := &TryBlockBegin{Offset: try.StartAddr, ID: i}
		end := &TryBlockEnd{
			Offset: try.StartAddr + uint32(try.InsnCount),
			Begin:  begin,
		}
		for _, h := range try.Handlers {
			end.Handlers = append(end.Handlers, CatchHandler{
				Type:  h.Type,
				Label: dec.label(h.Addr, false),
			})
		}
		if try.HasCatchAll {
			end.CatchAll = dec.label(try.CatchAllAddr, false)
		}
		markers = append(markers, tryMarker{begin: begin, end: end})
	}

	// Stable label ids in stream order.
	offsets := make([]uint32, 0, len(dec.labels))
	for off := range dec.labels {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	for id, off := range offsets {
		dec.labels[off].ID = id
	}

	byOffset := func(off uint32) []Instruction {
		var out []Instruction
		for _, m := range markers {
			if m.end.Offset == off {
				out = append(out, m.end)
			}
		}
		for _, m := range markers {
			if m.begin.Offset == off {
				out = append(out, m.begin)
			}
		}
		if l, ok := dec.labels[off]; ok {
			out = append(out, l)
		}
		for _, a := range dec.dbgAnnotations {
			if a.addr == off {
				out = append(out, a.instr)
			}
		}
		return out
	}

	var instructions []Instruction
	if dec.dbgHeader != nil {
		instructions = append(instructions, dec.dbgHeader)
	}

	for i := range dec.raws {
		raw := &dec.raws[i]
		instructions = append(instructions, byOffset(raw.offset)...)

		if bc, ok := raw.instr.(*Bytecode); ok {
			if raw.hasBranch {
				bc.Operands = append(bc.Operands,
					&CodeLoc{Label: dec.labels[raw.branchTarget]})
			}
			if raw.hasPayload {
				bc.Operands = append(bc.Operands,
					&CodeLoc{Label: dec.labels[raw.payloadTarget]})
			}
		}
		instructions = append(instructions, raw.instr)
	}

	// Markers and labels that sit exactly at the end of the stream.
	endOff := uint32(len(dec.code.Insns))
	instructions = append(instructions, byOffset(endOff)...)

	return instructions
}
