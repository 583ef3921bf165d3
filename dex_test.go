// Copyright 2022 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/secrary/andromeda/log"
)

func testLogger() *log.Helper {
	return log.NewHelper(log.NewFilter(log.NewStdLogger(ioutil.Discard),
		log.FilterLevel(log.LevelFatal)))
}

func putULEB(b *bytes.Buffer, v uint32) {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b.WriteByte(c | 0x80)
		} else {
			b.WriteByte(c)
			return
		}
	}
}

// buildTestDex assembles a minimal image defining com.example.Foo with a
// single method bar():void whose body is the given code units.
func buildTestDex(t *testing.T, insns []uint16) []byte {
	t.Helper()

	strs := []string{
		"Lcom/example/Foo;", // 0
		"V",                 // 1
		"bar",               // 2
		"  hello\n",         // 3
	}

	const (
		stringIdsOff = uint32(DexHeaderSize)
		typeIdsOff   = stringIdsOff + 4*4
		protoIdsOff  = typeIdsOff + 2*4
		methodIdsOff = protoIdsOff + 12
		classDefsOff = methodIdsOff + 8
		dataOff      = classDefsOff + 32
	)

	// Data section: string entries, then the code item, then class data.
	var data bytes.Buffer
	stringOffs := make([]uint32, len(strs))
	for i, s := range strs {
		stringOffs[i] = dataOff + uint32(data.Len())
		putULEB(&data, uint32(len([]rune(s))))
		data.WriteString(s)
		data.WriteByte(0)
	}

	codeOff := dataOff + uint32(data.Len())
	binary.Write(&data, binary.LittleEndian, uint16(1)) // registers
	binary.Write(&data, binary.LittleEndian, uint16(1)) // ins
	binary.Write(&data, binary.LittleEndian, uint16(0)) // outs
	binary.Write(&data, binary.LittleEndian, uint16(0)) // tries
	binary.Write(&data, binary.LittleEndian, uint32(0)) // debug info
	binary.Write(&data, binary.LittleEndian, uint32(len(insns)))
	for _, u := range insns {
		binary.Write(&data, binary.LittleEndian, u)
	}

	classDataOff := dataOff + uint32(data.Len())
	putULEB(&data, 0) // static fields
	putULEB(&data, 0) // instance fields
	putULEB(&data, 1) // direct methods
	putULEB(&data, 0) // virtual methods
	putULEB(&data, 0) // method idx diff
	putULEB(&data, 1) // access flags
	putULEB(&data, codeOff)

	var out bytes.Buffer
	out.Write([]byte("dex\n035\x00"))
	binary.Write(&out, binary.LittleEndian, uint32(0))  // checksum
	out.Write(make([]byte, 20))                         // signature
	fileSize := dataOff + uint32(data.Len())
	binary.Write(&out, binary.LittleEndian, fileSize)
	binary.Write(&out, binary.LittleEndian, uint32(DexHeaderSize))
	binary.Write(&out, binary.LittleEndian, uint32(DexEndianTag))
	binary.Write(&out, binary.LittleEndian, uint32(0)) // link size
	binary.Write(&out, binary.LittleEndian, uint32(0)) // link off
	binary.Write(&out, binary.LittleEndian, uint32(0)) // map off
	binary.Write(&out, binary.LittleEndian, uint32(len(strs)))
	binary.Write(&out, binary.LittleEndian, stringIdsOff)
	binary.Write(&out, binary.LittleEndian, uint32(2))
	binary.Write(&out, binary.LittleEndian, typeIdsOff)
	binary.Write(&out, binary.LittleEndian, uint32(1))
	binary.Write(&out, binary.LittleEndian, protoIdsOff)
	binary.Write(&out, binary.LittleEndian, uint32(0)) // field ids size
	binary.Write(&out, binary.LittleEndian, uint32(0)) // field ids off
	binary.Write(&out, binary.LittleEndian, uint32(1))
	binary.Write(&out, binary.LittleEndian, methodIdsOff)
	binary.Write(&out, binary.LittleEndian, uint32(1))
	binary.Write(&out, binary.LittleEndian, classDefsOff)
	binary.Write(&out, binary.LittleEndian, fileSize-dataOff)
	binary.Write(&out, binary.LittleEndian, dataOff)

	// string ids
	for _, off := range stringOffs {
		binary.Write(&out, binary.LittleEndian, off)
	}
	// type ids: Lcom/example/Foo; and V
	binary.Write(&out, binary.LittleEndian, uint32(0))
	binary.Write(&out, binary.LittleEndian, uint32(1))
	// proto id: shorty "V", returns void, no parameters
	binary.Write(&out, binary.LittleEndian, uint32(1))
	binary.Write(&out, binary.LittleEndian, uint32(1))
	binary.Write(&out, binary.LittleEndian, uint32(0))
	// method id: Foo.bar():void
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint32(2))
	// class def
	binary.Write(&out, binary.LittleEndian, uint32(0))       // class idx
	binary.Write(&out, binary.LittleEndian, uint32(1))       // access
	binary.Write(&out, binary.LittleEndian, uint32(NoIndex)) // superclass
	binary.Write(&out, binary.LittleEndian, uint32(0))       // interfaces
	binary.Write(&out, binary.LittleEndian, uint32(NoIndex)) // source file
	binary.Write(&out, binary.LittleEndian, uint32(0))       // annotations
	binary.Write(&out, binary.LittleEndian, classDataOff)
	binary.Write(&out, binary.LittleEndian, uint32(0)) // static values

	out.Write(data.Bytes())

	if uint32(out.Len()) != fileSize {
		t.Fatalf("builder produced %d bytes, header says %d", out.Len(), fileSize)
	}
	return out.Bytes()
}

func newTestDex(t *testing.T, insns []uint16) *Dex {
	t.Helper()
	d, err := NewDex("classes.dex", buildTestDex(t, insns), testLogger())
	if err != nil {
		t.Fatalf("NewDex failed, reason: %v", err)
	}
	return d
}

func TestNewDexRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too small", []byte{1, 2, 3}},
		{"bad magic", bytes.Repeat([]byte{0x41}, DexHeaderSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDex("x.dex", tt.data, testLogger()); err == nil {
				t.Error("NewDex accepted invalid input")
			}
		})
	}
}

func TestClassesRoundTrip(t *testing.T) {
	d := newTestDex(t, []uint16{0x000E})

	classes, err := d.Classes()
	if err != nil {
		t.Fatalf("Classes failed, reason: %v", err)
	}
	if len(classes) != 1 || classes[0] != "com.example.Foo" {
		t.Fatalf("Classes() = %v, want [com.example.Foo]", classes)
	}

	// Every listed class must round trip to a valid index.
	for _, class := range classes {
		idx, ok := d.FindClassIndex(nameToDescriptor(class))
		if !ok || idx >= uint32(len(d.ClassDefs())) {
			t.Errorf("class %q does not round trip, idx=%d ok=%v", class, idx, ok)
		}
	}
}

func TestFindClassIndexAbsent(t *testing.T) {
	d := newTestDex(t, []uint16{0x000E})
	if _, ok := d.FindClassIndex("Lcom/example/Missing;"); ok {
		t.Error("FindClassIndex found a class that is not there")
	}
}

func TestStringsTrimmed(t *testing.T) {
	d := newTestDex(t, []uint16{0x000E})
	strs := d.Strings()
	if !stringInSlice("hello", strs) {
		t.Errorf("Strings() = %v, want a trimmed \"hello\"", strs)
	}
	for _, s := range strs {
		if s == "" || s != strings.TrimSpace(s) {
			t.Errorf("Strings() returned untrimmed or empty entry %q", s)
		}
	}
}

func TestMethods(t *testing.T) {
	d := newTestDex(t, []uint16{0x000E})
	methods := d.Methods()
	if len(methods) != 1 {
		t.Fatalf("Methods() returned %d entries, want 1", len(methods))
	}
	if methods[0].ParentDecl != "com.example.Foo" || methods[0].Name != "bar" {
		t.Errorf("Methods()[0] = %+v, want com.example.Foo.bar", methods[0])
	}
}

func TestClassMethods(t *testing.T) {
	d := newTestDex(t, []uint16{0x000E})

	methods := d.ClassMethods("com.example.Foo")
	if !stringInSlice("bar", methods) {
		t.Errorf("ClassMethods() = %v, want it to include bar", methods)
	}

	if got := d.ClassMethods("com.example.Missing"); got != nil {
		t.Errorf("ClassMethods() of an absent class = %v, want nil", got)
	}
}

func TestDisassembleReturnVoid(t *testing.T) {
	d := newTestDex(t, []uint16{0x000E})

	var sink bytes.Buffer
	if !d.Disassemble("com.example.Foo.bar", &sink, CfgNone) {
		t.Fatal("Disassemble did not find com.example.Foo.bar")
	}

	out := sink.String()
	if !strings.Contains(out, "method com.example.Foo.bar") {
		t.Errorf("listing misses the method header:\n%s", out)
	}
	if !strings.Contains(out, "\t    0| return-void\n") {
		t.Errorf("listing misses the return-void line:\n%s", out)
	}
}

func TestDisassembleMissingMethod(t *testing.T) {
	d := newTestDex(t, []uint16{0x000E})

	var sink bytes.Buffer
	if d.Disassemble("com.example.Foo.missing", &sink, CfgNone) {
		t.Error("Disassemble claimed to find a method that is not there")
	}
	if d.Disassemble("bare", &sink, CfgNone) {
		t.Error("Disassemble accepted a path without a class component")
	}
}

func TestCreateIRIdempotent(t *testing.T) {
	d := newTestDex(t, []uint16{0x000E})

	first := d.CreateFullIR()
	second := d.CreateFullIR()
	if first != second {
		t.Error("CreateFullIR built the IR twice")
	}
	if len(first.EncodedMethods) != 1 {
		t.Fatalf("full IR holds %d encoded methods, want 1", len(first.EncodedMethods))
	}

	// A later class scoped build shares the same IR without duplication.
	scoped := d.CreateClassIR(0)
	if scoped != first || len(scoped.EncodedMethods) != 1 {
		t.Errorf("class IR does not share the memoized IR")
	}
}
