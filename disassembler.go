// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"
)

var (
	mnemonicColor    = color.New(color.FgHiCyan)
	registerColor    = color.New(color.FgHiBlue)
	fieldColor       = color.New(color.FgWhite)
	methodClassColor = color.New(color.FgGreen)
	methodNameColor  = color.New(color.FgHiYellow)
)

// Disassembler formats lowered method bodies to a text sink, optionally
// overlaying a control flow graph.
type Disassembler struct {
	dex     *Dex
	cfgType CfgType
	w       io.Writer
}

// NewDisassembler returns a disassembler writing to w.
func NewDisassembler(d *Dex, cfgType CfgType, w io.Writer) *Disassembler {
	return &Disassembler{dex: d, cfgType: cfgType, w: w}
}

// DumpMethod formats one encoded method, header and body.
func (dis *Disassembler) DumpMethod(m *IREncodedMethod) error {
	fmt.Fprintf(dis.w, "\nmethod %s.%s%s\n{\n",
		m.Decl.Parent.Decl(), m.Decl.Name, methodDeclaration(m.Decl.Proto))
	if err := dis.disassemble(m); err != nil {
		return err
	}
	fmt.Fprintf(dis.w, "}\n")
	return nil
}

func (dis *Disassembler) disassemble(m *IREncodedMethod) error {
	ci, err := NewCodeIR(dis.dex, m)
	if err != nil {
		return err
	}

	var cfg *ControlFlowGraph
	switch dis.cfgType {
	case CfgCompact:
		cfg = NewControlFlowGraph(ci, false)
	case CfgVerbose:
		cfg = NewControlFlowGraph(ci, true)
	}

	p := &lirPrinter{w: dis.w, cfg: cfg}
	for _, instr := range ci.Instructions {
		p.printInstruction(instr)
	}
	return nil
}

// methodDeclaration builds a human readable method declaration, not
// including the name, ex:
// "(android.content.Context, android.content.pm.ActivityInfo):java.lang.String"
func methodDeclaration(proto *IRProto) string {
	if proto == nil {
		return "():?"
	}
	var b strings.Builder
	b.WriteString("(")
	for i, t := range proto.ParamTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Decl())
	}
	b.WriteString("):")
	if proto.ReturnType != nil {
		b.WriteString(proto.ReturnType.Decl())
	}
	return b.String()
}

type lirPrinter struct {
	w        io.Writer
	cfg      *ControlFlowGraph
	blockIdx int
}

func (p *lirPrinter) startInstruction(instr Instruction) {
	if p.cfg == nil || p.blockIdx >= len(p.cfg.BasicBlocks) {
		return
	}
	block := p.cfg.BasicBlocks[p.blockIdx]
	if instr == block.Region.First {
		fmt.Fprintf(p.w, "............................. begin block %d .............................\n", block.ID)
	}
}

func (p *lirPrinter) endInstruction(instr Instruction) {
	if p.cfg == nil || p.blockIdx >= len(p.cfg.BasicBlocks) {
		return
	}
	block := p.cfg.BasicBlocks[p.blockIdx]
	if instr == block.Region.Last {
		fmt.Fprintf(p.w, ".............................. end block %d ..............................\n", block.ID)
		p.blockIdx++
	}
}

func (p *lirPrinter) printInstruction(instr Instruction) {
	p.startInstruction(instr)

	switch in := instr.(type) {
	case *Bytecode:
		fmt.Fprintf(p.w, "\t%5d| ", in.Offset)
		mnemonicColor.Fprintf(p.w, "%s", GetOpcodeName(in.Opcode))
		for i, op := range in.Operands {
			if i == 0 {
				fmt.Fprint(p.w, " ")
			} else {
				fmt.Fprint(p.w, ", ")
			}
			p.printOperand(op)
		}
		fmt.Fprintln(p.w)

	case *Label:
		suffix := ""
		if in.Aligned {
			suffix = " <aligned>"
		}
		fmt.Fprintf(p.w, "Label_%d:%s\n", in.ID, suffix)

	case *PackedSwitchPayload:
		fmt.Fprintf(p.w, "\t%5d| packed-switch-payload\n", in.Offset)
		key := in.FirstKey
		for _, target := range in.Targets {
			fmt.Fprintf(p.w, "\t\t%5d: Label_%d\n", key, target.ID)
			key++
		}

	case *SparseSwitchPayload:
		fmt.Fprintf(p.w, "\t%5d| sparse-switch-payload\n", in.Offset)
		for _, c := range in.Cases {
			fmt.Fprintf(p.w, "\t\t%5d: Label_%d\n", c.Key, c.Target.ID)
		}

	case *ArrayData:
		fmt.Fprintf(p.w, "\t%5d| fill-array-data-payload\n", in.Offset)

	case *TryBlockBegin:
		fmt.Fprintf(p.w, "\t.try_begin_%d\n", in.ID)

	case *TryBlockEnd:
		fmt.Fprintf(p.w, "\t.try_end_%d\n", in.Begin.ID)
		for _, h := range in.Handlers {
			decl := "<null>"
			if h.Type != nil {
				decl = h.Type.Decl()
			}
			fmt.Fprintf(p.w, "\t  catch(%s) : Label_%d\n", decl, h.Label.ID)
		}
		if in.CatchAll != nil {
			fmt.Fprintf(p.w, "\t  catch(...) : Label_%d\n", in.CatchAll.ID)
		}

	case *DbgInfoHeader:
		fmt.Fprint(p.w, "\t.params")
		for i, name := range in.ParamNames {
			if i == 0 {
				fmt.Fprint(p.w, " ")
			} else {
				fmt.Fprint(p.w, ", ")
			}
			if name != nil {
				fmt.Fprintf(p.w, "%q", *name)
			} else {
				fmt.Fprint(p.w, "\"?\"")
			}
		}
		fmt.Fprintln(p.w)

	case *DbgInfoAnnotation:
		p.printAnnotation(in)
	}

	p.endInstruction(instr)
}

func (p *lirPrinter) printAnnotation(in *DbgInfoAnnotation) {
	var name string
	switch in.Opcode {
	case dbgStartLocal:
		name = ".local"
	case dbgStartLocalExtended:
		name = ".local_ex"
	case dbgEndLocal:
		name = ".end_local"
	case dbgRestartLocal:
		name = ".restart_local"
	case dbgSetPrologueEnd:
		name = ".prologue_end"
	case dbgSetEpilogueBegin:
		name = ".epilogue_begin"
	case dbgAdvanceLine, dbgSetFile:
		// .line and .src carry no value in a listing; drop them.
		return
	default:
		name = ".dbg_???"
	}

	fmt.Fprintf(p.w, "\t%s", name)
	for i, op := range in.Operands {
		if i == 0 {
			fmt.Fprint(p.w, " ")
		} else {
			fmt.Fprint(p.w, ", ")
		}
		p.printOperand(op)
	}
	fmt.Fprintln(p.w)
}

func (p *lirPrinter) printOperand(op Operand) {
	switch o := op.(type) {
	case VReg:
		registerColor.Fprintf(p.w, "v%d", o.Reg)

	case VRegPair:
		registerColor.Fprintf(p.w, "v%d:v%d", o.BaseReg, o.BaseReg+1)

	case VRegList:
		fmt.Fprint(p.w, "{")
		for i, reg := range o.Registers {
			if i > 0 {
				fmt.Fprint(p.w, ",")
			}
			registerColor.Fprintf(p.w, "v%d", reg)
		}
		fmt.Fprint(p.w, "}")

	case VRegRange:
		if o.Count == 0 {
			fmt.Fprint(p.w, "{}")
		} else {
			fmt.Fprintf(p.w, "{v%d..v%d}", o.BaseReg, o.BaseReg+uint32(o.Count)-1)
		}

	case Const32:
		f := math.Float32frombits(o.Value)
		if f != f {
			fmt.Fprintf(p.w, "#%+d (0x%08x | NaN)", int32(o.Value), o.Value)
		} else {
			fmt.Fprintf(p.w, "#%+d (0x%08x | %#.6g)", int32(o.Value), o.Value, f)
		}

	case Const64:
		f := math.Float64frombits(o.Value)
		if f != f {
			fmt.Fprintf(p.w, "#%+d (0x%016x | NaN)", int64(o.Value), o.Value)
		} else {
			fmt.Fprintf(p.w, "#%+d (0x%016x | %#.6g)", int64(o.Value), o.Value, f)
		}

	case StringOp:
		if o.Value == nil {
			fmt.Fprint(p.w, "<null>")
			return
		}
		fmt.Fprintf(p.w, "\"%s\"", escapeString(*o.Value))

	case TypeOp:
		if o.Type == nil {
			fmt.Fprint(p.w, "<null>")
			return
		}
		fmt.Fprint(p.w, o.Type.Decl())

	case FieldOp:
		if o.Field == nil {
			fmt.Fprint(p.w, "<null>")
			return
		}
		fieldColor.Fprintf(p.w, "%s.%s", o.Field.Parent.Decl(), o.Field.Name)

	case MethodOp:
		if o.Method == nil {
			fmt.Fprint(p.w, "<null>")
			return
		}
		methodClassColor.Fprintf(p.w, "%s", o.Method.Parent.Decl())
		fmt.Fprint(p.w, ".")
		methodNameColor.Fprintf(p.w, "%s%s", o.Method.Name,
			methodDeclaration(o.Method.Proto))

	case *CodeLoc:
		fmt.Fprintf(p.w, "Label_%d", o.Label.ID)

	case LineNum:
		fmt.Fprintf(p.w, "%d", o.Line)
	}
}

// escapeString renders s with C style escapes; other non printable bytes
// become \xHH.
func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7F {
			switch c {
			case '\'':
				b.WriteString("\\'")
			case '"':
				b.WriteString("\\\"")
			case '?':
				b.WriteString("\\?")
			case '\\':
				b.WriteString("\\\\")
			default:
				b.WriteByte(c)
			}
			continue
		}
		switch c {
		case '\a':
			b.WriteString("\\a")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\v':
			b.WriteString("\\v")
		default:
			fmt.Fprintf(&b, "\\x%02x", c)
		}
	}
	return b.String()
}
