// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

// IRType is an interned type of the image IR.
type IRType struct {
	Descriptor string
}

// Decl renders the type in human readable form.
func (t *IRType) Decl() string {
	return descriptorToDecl(t.Descriptor)
}

// IRProto is a method prototype: parameter types plus return type.
type IRProto struct {
	Shorty     string
	ReturnType *IRType
	ParamTypes []*IRType
}

// IRField is a field declaration.
type IRField struct {
	Parent *IRType
	Type   *IRType
	Name   string
}

// IRMethod is a method declaration.
type IRMethod struct {
	Parent *IRType
	Proto  *IRProto
	Name   string
}

// IRHandler is a typed exception handler of a try region.
type IRHandler struct {
	Type *IRType
	Addr uint32
}

// IRTry is a try region of a code block, with its typed handlers and the
// optional catch-all address.
type IRTry struct {
	StartAddr    uint32
	InsnCount    uint16
	Handlers     []IRHandler
	HasCatchAll  bool
	CatchAllAddr uint32
}

// IRCode is the code block of an encoded method.
type IRCode struct {
	Registers    uint16
	Ins          uint16
	Outs         uint16
	DebugInfoOff uint32
	Insns        []uint16
	Tries        []IRTry
}

// IREncodedMethod is a method declaration together with its code block.
// Abstract and native methods carry no code.
type IREncodedMethod struct {
	Decl   *IRMethod
	Access uint32
	Code   *IRCode
}

// DexIR is the in-memory intermediate representation of an image. The base
// tables (strings, types, prototypes, fields, methods) are shared between
// the full build and class-scoped builds; encoded methods accumulate per
// populated class.
type DexIR struct {
	Strings        []string
	Types          []*IRType
	Protos         []*IRProto
	Fields         []*IRField
	Methods        []*IRMethod
	EncodedMethods []*IREncodedMethod
}

// ensureBaseIR materializes the interned tables once.
func (d *Dex) ensureBaseIR() *DexIR {
	if d.ir != nil {
		return d.ir
	}

	ir := &DexIR{}

	ir.Strings = make([]string, len(d.stringIDs))
	for i := range d.stringIDs {
		s, err := d.stringAt(uint32(i))
		if err != nil {
			d.logger.Warnf("string %d of %s unreadable: %v", i, d.name, err)
			continue
		}
		ir.Strings[i] = s
	}

	ir.Types = make([]*IRType, len(d.typeIDs))
	for i, t := range d.typeIDs {
		descriptor := ""
		if t.DescriptorIdx < uint32(len(ir.Strings)) {
			descriptor = ir.Strings[t.DescriptorIdx]
		}
		ir.Types[i] = &IRType{Descriptor: descriptor}
	}

	ir.Protos = make([]*IRProto, len(d.protoIDs))
	for i, p := range d.protoIDs {
		proto := &IRProto{}
		if p.ShortyIdx < uint32(len(ir.Strings)) {
			proto.Shorty = ir.Strings[p.ShortyIdx]
		}
		if p.ReturnTypeIdx < uint32(len(ir.Types)) {
			proto.ReturnType = ir.Types[p.ReturnTypeIdx]
		}
		if p.ParametersOff != 0 {
			params, err := d.parseTypeList(p.ParametersOff, ir)
			if err != nil {
				d.logger.Warnf("prototype %d of %s unreadable: %v", i, d.name, err)
			} else {
				proto.ParamTypes = params
			}
		}
		ir.Protos[i] = proto
	}

	ir.Fields = make([]*IRField, len(d.fieldIDs))
	for i, f := range d.fieldIDs {
		field := &IRField{}
		if uint32(f.ClassIdx) < uint32(len(ir.Types)) {
			field.Parent = ir.Types[f.ClassIdx]
		}
		if uint32(f.TypeIdx) < uint32(len(ir.Types)) {
			field.Type = ir.Types[f.TypeIdx]
		}
		if f.NameIdx < uint32(len(ir.Strings)) {
			field.Name = ir.Strings[f.NameIdx]
		}
		ir.Fields[i] = field
	}

	ir.Methods = make([]*IRMethod, len(d.methodIDs))
	for i, m := range d.methodIDs {
		method := &IRMethod{}
		if uint32(m.ClassIdx) < uint32(len(ir.Types)) {
			method.Parent = ir.Types[m.ClassIdx]
		}
		if uint32(m.ProtoIdx) < uint32(len(ir.Protos)) {
			method.Proto = ir.Protos[m.ProtoIdx]
		}
		if m.NameIdx < uint32(len(ir.Strings)) {
			method.Name = ir.Strings[m.NameIdx]
		}
		ir.Methods[i] = method
	}

	d.ir = ir
	return ir
}

func (d *Dex) parseTypeList(offset uint32, ir *DexIR) ([]*IRType, error) {
	cur, err := d.cursorAt(offset)
	if err != nil {
		return nil, err
	}
	size, err := cur.uint32()
	if err != nil {
		return nil, err
	}
	types := make([]*IRType, 0, size)
	for i := uint32(0); i < size; i++ {
		idx, err := cur.uint16()
		if err != nil {
			return nil, err
		}
		if uint32(idx) >= uint32(len(ir.Types)) {
			return nil, ErrOutsideBoundary
		}
		types = append(types, ir.Types[idx])
	}
	return types, nil
}

// CreateFullIR builds the complete IR, including every class's encoded
// methods. Repeated calls return the memoized IR.
func (d *Dex) CreateFullIR() *DexIR {
	ir := d.ensureBaseIR()
	for i := range d.classDefs {
		d.populateClass(uint32(i), ir)
	}
	return ir
}

// CreateClassIR builds the IR restricted to one class's encoded methods.
// The base tables are shared with the full build; repeated calls for
// different classes accumulate.
func (d *Dex) CreateClassIR(classIdx uint32) *DexIR {
	ir := d.ensureBaseIR()
	if classIdx < uint32(len(d.classDefs)) {
		d.populateClass(classIdx, ir)
	}
	return ir
}

func (d *Dex) populateClass(classIdx uint32, ir *DexIR) {
	if d.classesBuilt[classIdx] {
		return
	}
	d.classesBuilt[classIdx] = true

	def := d.classDefs[classIdx]
	if def.ClassDataOff == 0 {
		return
	}
	if err := d.parseClassData(def.ClassDataOff, ir); err != nil {
		d.logger.Errorf("class data of class %d in %s: %v", classIdx, d.name, err)
	}
}

func (d *Dex) parseClassData(offset uint32, ir *DexIR) error {
	cur, err := d.cursorAt(offset)
	if err != nil {
		return err
	}

	staticFields, err := cur.uleb128()
	if err != nil {
		return err
	}
	instanceFields, err := cur.uleb128()
	if err != nil {
		return err
	}
	directMethods, err := cur.uleb128()
	if err != nil {
		return err
	}
	virtualMethods, err := cur.uleb128()
	if err != nil {
		return err
	}

	// Encoded fields carry no code; walk past them.
	for i := uint32(0); i < staticFields+instanceFields; i++ {
		if _, err := cur.uleb128(); err != nil { // field_idx_diff
			return err
		}
		if _, err := cur.uleb128(); err != nil { // access_flags
			return err
		}
	}

	if err := d.parseEncodedMethods(cur, directMethods, ir); err != nil {
		return err
	}
	return d.parseEncodedMethods(cur, virtualMethods, ir)
}

func (d *Dex) parseEncodedMethods(cur *byteCursor, count uint32, ir *DexIR) error {
	methodIdx := uint32(0)
	for i := uint32(0); i < count; i++ {
		diff, err := cur.uleb128()
		if err != nil {
			return err
		}
		access, err := cur.uleb128()
		if err != nil {
			return err
		}
		codeOff, err := cur.uleb128()
		if err != nil {
			return err
		}

		methodIdx += diff
		if methodIdx >= uint32(len(ir.Methods)) {
			return ErrOutsideBoundary
		}

		encoded := &IREncodedMethod{
			Decl:   ir.Methods[methodIdx],
			Access: access,
		}
		if codeOff != 0 {
			code, err := d.parseCodeItem(codeOff, ir)
			if err != nil {
				return err
			}
			encoded.Code = code
		}
		ir.EncodedMethods = append(ir.EncodedMethods, encoded)
	}
	return nil
}

func (d *Dex) parseCodeItem(offset uint32, ir *DexIR) (*IRCode, error) {
	cur, err := d.cursorAt(offset)
	if err != nil {
		return nil, err
	}

	code := &IRCode{}
	if code.Registers, err = cur.uint16(); err != nil {
		return nil, err
	}
	if code.Ins, err = cur.uint16(); err != nil {
		return nil, err
	}
	if code.Outs, err = cur.uint16(); err != nil {
		return nil, err
	}
	triesSize, err := cur.uint16()
	if err != nil {
		return nil, err
	}
	if code.DebugInfoOff, err = cur.uint32(); err != nil {
		return nil, err
	}
	insnsSize, err := cur.uint32()
	if err != nil {
		return nil, err
	}

	code.Insns = make([]uint16, insnsSize)
	for i := uint32(0); i < insnsSize; i++ {
		if code.Insns[i], err = cur.uint16(); err != nil {
			return nil, err
		}
	}

	if triesSize == 0 {
		return code, nil
	}

	// Tries are 4-byte aligned after an odd number of code units.
	if insnsSize%2 == 1 {
		if err := cur.skip(2); err != nil {
			return nil, err
		}
	}

	type rawTry struct {
		startAddr  uint32
		insnCount  uint16
		handlerOff uint16
	}
	raws := make([]rawTry, triesSize)
	for i := range raws {
		if raws[i].startAddr, err = cur.uint32(); err != nil {
			return nil, err
		}
		if raws[i].insnCount, err = cur.uint16(); err != nil {
			return nil, err
		}
		if raws[i].handlerOff, err = cur.uint16(); err != nil {
			return nil, err
		}
	}

	handlerListStart := cur.off
	if _, err := cur.uleb128(); err != nil { // handler list size
		return nil, err
	}

	code.Tries = make([]IRTry, 0, triesSize)
	for _, raw := range raws {
		try := IRTry{StartAddr: raw.startAddr, InsnCount: raw.insnCount}

		hcur := &byteCursor{data: d.data, off: handlerListStart + int(raw.handlerOff)}
		size, err := hcur.sleb128()
		if err != nil {
			return nil, err
		}
		pairs := size
		if pairs < 0 {
			pairs = -pairs
		}
		for i := int32(0); i < pairs; i++ {
			typeIdx, err := hcur.uleb128()
			if err != nil {
				return nil, err
			}
			addr, err := hcur.uleb128()
			if err != nil {
				return nil, err
			}
			if typeIdx >= uint32(len(ir.Types)) {
				return nil, ErrOutsideBoundary
			}
			try.Handlers = append(try.Handlers, IRHandler{
				Type: ir.Types[typeIdx],
				Addr: addr,
			})
		}
		if size <= 0 {
			addr, err := hcur.uleb128()
			if err != nil {
				return nil, err
			}
			try.HasCatchAll = true
			try.CatchAllAddr = addr
		}
		code.Tries = append(code.Tries, try)
	}

	return code, nil
}
