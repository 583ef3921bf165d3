// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/secrary/andromeda/log"
)

// NoIndex is the on-disk sentinel for an absent table index. Lookups such
// as FindClassIndex report absence with a boolean alongside it.
const NoIndex = 0xFFFFFFFF

const (
	// DexHeaderSize is the fixed size of the image header.
	DexHeaderSize = 0x70

	// DexEndianTag is the constant endianness marker of a little-endian
	// image.
	DexEndianTag = 0x12345678
)

// dexMagicPrefix is the leading part of the image magic, "dex\n", followed
// by a 3-digit version and a NUL.
var dexMagicPrefix = []byte{0x64, 0x65, 0x78, 0x0A}

// Errors
var (
	// ErrInvalidDexSize is returned when the buffer cannot hold a header.
	ErrInvalidDexSize = errors.New("not a dex image, smaller than the header")

	// ErrBadDexMagic is returned when the image magic is wrong.
	ErrBadDexMagic = errors.New("dex magic not found")

	// ErrBadDexEndianTag is returned on a byte-swapped or corrupt image.
	ErrBadDexEndianTag = errors.New("unexpected dex endian tag")

	// ErrBadDexHeader is returned when header fields contradict the buffer.
	ErrBadDexHeader = errors.New("corrupt dex header")
)

// DexHeader is the on-disk image header.
type DexHeader struct {
	Magic         [8]byte
	Checksum      uint32
	Signature     [20]byte
	FileSize      uint32
	HeaderSize    uint32
	EndianTag     uint32
	LinkSize      uint32
	LinkOff       uint32
	MapOff        uint32
	StringIdsSize uint32
	StringIdsOff  uint32
	TypeIdsSize   uint32
	TypeIdsOff    uint32
	ProtoIdsSize  uint32
	ProtoIdsOff   uint32
	FieldIdsSize  uint32
	FieldIdsOff   uint32
	MethodIdsSize uint32
	MethodIdsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

// TypeID is a type_id_item: an index into the string table holding the
// type descriptor.
type TypeID struct {
	DescriptorIdx uint32
}

// ProtoID is a proto_id_item.
type ProtoID struct {
	ShortyIdx     uint32
	ReturnTypeIdx uint32
	ParametersOff uint32
}

// FieldID is a field_id_item.
type FieldID struct {
	ClassIdx uint16
	TypeIdx  uint16
	NameIdx  uint32
}

// MethodID is a method_id_item.
type MethodID struct {
	ClassIdx uint16
	ProtoIdx uint16
	NameIdx  uint32
}

// ClassDef is a class_def_item.
type ClassDef struct {
	ClassIdx        uint32
	AccessFlags     uint32
	SuperclassIdx   uint32
	InterfacesOff   uint32
	SourceFileIdx   uint32
	AnnotationsOff  uint32
	ClassDataOff    uint32
	StaticValuesOff uint32
}

// MethodRef names an encoded method by its parent declaration and name.
type MethodRef struct {
	ParentDecl string
	Name       string
}

// A Dex is an open executable image. The input buffer is borrowed and must
// outlive the image. The IR is built lazily and memoized; queries after the
// first build are lookups.
type Dex struct {
	Header DexHeader

	name string
	data []byte

	stringIDs []uint32
	typeIDs   []TypeID
	protoIDs  []ProtoID
	fieldIDs  []FieldID
	methodIDs []MethodID
	classDefs []ClassDef

	ir           *DexIR
	classesBuilt map[uint32]bool

	logger *log.Helper
}

// NewDex parses the header and the id tables of an executable image.
func NewDex(name string, data []byte, logger *log.Helper) (*Dex, error) {
	if len(data) < DexHeaderSize {
		return nil, ErrInvalidDexSize
	}

	d := &Dex{
		name:         name,
		data:         data,
		classesBuilt: make(map[uint32]bool),
		logger:       logger,
	}

	if err := d.structUnpack(&d.Header, 0, DexHeaderSize); err != nil {
		return nil, err
	}
	if !bytes.Equal(d.Header.Magic[:4], dexMagicPrefix) {
		return nil, ErrBadDexMagic
	}
	if d.Header.EndianTag != DexEndianTag {
		return nil, ErrBadDexEndianTag
	}
	if d.Header.HeaderSize < DexHeaderSize || int(d.Header.FileSize) > len(data) {
		return nil, ErrBadDexHeader
	}

	if err := d.parseIDTables(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dex) structUnpack(iface interface{}, offset, size uint32) error {
	totalSize := offset + size
	if (totalSize > offset) != (size > 0) {
		return ErrOutsideBoundary
	}
	if int(offset) >= len(d.data) || int(totalSize) > len(d.data) {
		return ErrOutsideBoundary
	}
	buf := bytes.NewReader(d.data[offset : offset+size])
	return binary.Read(buf, binary.LittleEndian, iface)
}

func (d *Dex) cursorAt(offset uint32) (*byteCursor, error) {
	if int(offset) > len(d.data) {
		return nil, ErrOutsideBoundary
	}
	return &byteCursor{data: d.data, off: int(offset)}, nil
}

func (d *Dex) parseIDTables() error {
	h := &d.Header

	d.stringIDs = make([]uint32, h.StringIdsSize)
	if h.StringIdsSize > 0 {
		if err := d.structUnpack(d.stringIDs, h.StringIdsOff, h.StringIdsSize*4); err != nil {
			return err
		}
	}

	d.typeIDs = make([]TypeID, h.TypeIdsSize)
	if h.TypeIdsSize > 0 {
		if err := d.structUnpack(d.typeIDs, h.TypeIdsOff, h.TypeIdsSize*4); err != nil {
			return err
		}
	}

	d.protoIDs = make([]ProtoID, h.ProtoIdsSize)
	if h.ProtoIdsSize > 0 {
		if err := d.structUnpack(d.protoIDs, h.ProtoIdsOff, h.ProtoIdsSize*12); err != nil {
			return err
		}
	}

	d.fieldIDs = make([]FieldID, h.FieldIdsSize)
	if h.FieldIdsSize > 0 {
		if err := d.structUnpack(d.fieldIDs, h.FieldIdsOff, h.FieldIdsSize*8); err != nil {
			return err
		}
	}

	d.methodIDs = make([]MethodID, h.MethodIdsSize)
	if h.MethodIdsSize > 0 {
		if err := d.structUnpack(d.methodIDs, h.MethodIdsOff, h.MethodIdsSize*8); err != nil {
			return err
		}
	}

	d.classDefs = make([]ClassDef, h.ClassDefsSize)
	if h.ClassDefsSize > 0 {
		if err := d.structUnpack(d.classDefs, h.ClassDefsOff, h.ClassDefsSize*32); err != nil {
			return err
		}
	}

	return nil
}

// Name returns the image's file name within the archive.
func (d *Dex) Name() string {
	return d.name
}

// TypeIds returns the raw type-id table.
func (d *Dex) TypeIds() []TypeID {
	return d.typeIDs
}

// ClassDefs returns the raw class-definition table.
func (d *Dex) ClassDefs() []ClassDef {
	return d.classDefs
}

// stringAt decodes the constant-pool string with the given index.
func (d *Dex) stringAt(idx uint32) (string, error) {
	if idx >= uint32(len(d.stringIDs)) {
		return "", ErrOutsideBoundary
	}
	cur, err := d.cursorAt(d.stringIDs[idx])
	if err != nil {
		return "", err
	}
	if _, err := cur.uleb128(); err != nil { // utf16 length, unused
		return "", err
	}
	start := cur.off
	for cur.off < len(cur.data) && cur.data[cur.off] != 0 {
		cur.off++
	}
	return decodeMUTF8(cur.data[start:cur.off]), nil
}

func (d *Dex) descriptorAt(typeIdx uint32) (string, error) {
	if typeIdx >= uint32(len(d.typeIDs)) {
		return "", ErrOutsideBoundary
	}
	return d.stringAt(d.typeIDs[typeIdx].DescriptorIdx)
}

// Classes lists every defined class in human readable declaration form.
func (d *Dex) Classes() ([]string, error) {
	classes := make([]string, 0, len(d.classDefs))
	for _, def := range d.classDefs {
		descriptor, err := d.descriptorAt(def.ClassIdx)
		if err != nil {
			return nil, err
		}
		classes = append(classes, descriptorToDecl(descriptor))
	}
	return classes, nil
}

// FindClassIndex locates the class definition with the given descriptor.
// The second return is false when the descriptor is absent.
func (d *Dex) FindClassIndex(descriptor string) (uint32, bool) {
	for i, def := range d.classDefs {
		current, err := d.descriptorAt(def.ClassIdx)
		if err != nil {
			continue
		}
		if current == descriptor {
			return uint32(i), true
		}
	}
	return NoIndex, false
}

// Strings returns the constant-pool strings, trimmed of surrounding
// whitespace, with empty entries dropped.
func (d *Dex) Strings() []string {
	ir := d.CreateFullIR()
	out := make([]string, 0, len(ir.Strings))
	for _, s := range ir.Strings {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Methods returns every encoded method as a parent/name pair.
func (d *Dex) Methods() []MethodRef {
	ir := d.CreateFullIR()
	refs := make([]MethodRef, 0, len(ir.EncodedMethods))
	for _, m := range ir.EncodedMethods {
		refs = append(refs, MethodRef{
			ParentDecl: m.Decl.Parent.Decl(),
			Name:       m.Decl.Name,
		})
	}
	return refs
}

// ClassMethods returns the names of the methods declared by the class with
// the given dotted path. The result is empty when the class is absent.
func (d *Dex) ClassMethods(classDecl string) []string {
	classIdx, ok := d.FindClassIndex(nameToDescriptor(classDecl))
	if !ok {
		return nil
	}

	ir := d.CreateClassIR(classIdx)
	var methods []string
	for _, m := range ir.EncodedMethods {
		if m.Decl.Parent.Decl() != classDecl {
			continue
		}
		methods = append(methods, m.Decl.Name)
	}
	return methods
}

// Disassemble formats the method with the given dotted path to the sink and
// reports whether the method was found.
func (d *Dex) Disassemble(methodPath string, w io.Writer, cfgType CfgType) bool {
	classPath, methodName := splitMethodPath(methodPath)
	if classPath == "" || methodName == "" {
		return false
	}

	classIdx, ok := d.FindClassIndex(nameToDescriptor(classPath))
	if !ok {
		return false
	}

	ir := d.CreateClassIR(classIdx)
	found := false
	for _, m := range ir.EncodedMethods {
		if m.Decl.Parent.Decl() != classPath || m.Decl.Name != methodName {
			continue
		}
		found = true
		dis := NewDisassembler(d, cfgType, w)
		if err := dis.DumpMethod(m); err != nil {
			d.logger.Errorf("disassembly of %s failed: %v", methodPath, err)
		}
	}
	return found
}

// DisassembleAll formats every encoded method of the image.
func (d *Dex) DisassembleAll(w io.Writer, cfgType CfgType) error {
	ir := d.CreateFullIR()
	dis := NewDisassembler(d, cfgType, w)
	for _, m := range ir.EncodedMethods {
		if err := dis.DumpMethod(m); err != nil {
			return fmt.Errorf("disassembly of %s.%s: %w",
				m.Decl.Parent.Decl(), m.Decl.Name, err)
		}
	}
	return nil
}
