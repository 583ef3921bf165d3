// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// Chunk magic numbers of the compiled XML format.
const (
	axmlChunkHead     = 0x00080003
	axmlChunkString   = 0x001C0001
	axmlChunkResource = 0x00080180

	axmlChunkStartNS  = 0x00100100
	axmlChunkEndNS    = 0x00100101
	axmlChunkStartTag = 0x00100102
	axmlChunkEndTag   = 0x00100103
	axmlChunkText     = 0x00100104
)

// Attribute value types.
const (
	attrNull      = 0
	attrReference = 1
	attrAttribute = 2
	attrString    = 3
	attrFloat     = 4
	attrDimension = 5
	attrFraction  = 6

	attrFirstInt = 16
	attrHex      = 17
	attrBoolean  = 18

	attrFirstColor = 28
	attrLastColor  = 31
	attrLastInt    = 31
)

// The string chunk flag selecting UTF-8 payloads over UTF-16LE.
const axmlUTF8Flag = 1 << 8

// Errors
var (
	// ErrBadAxmlMagic is returned when the document chunk magic is wrong.
	ErrBadAxmlMagic = errors.New("not a valid binary XML document")

	// ErrBadAxmlChunk is returned on a structurally invalid chunk.
	ErrBadAxmlChunk = errors.New("invalid binary XML chunk")

	// ErrAxmlDecode is returned when the event stream collapses to an error
	// event during XML emission.
	ErrAxmlDecode = errors.New("binary XML decoding failed")
)

// axmlStringPool is the decoded-on-demand string table of a compiled XML
// document. The encoding flag is pool wide. Out of range lookups yield the
// empty string so a single bad index cannot abort an otherwise valid
// document.
type axmlStringPool struct {
	utf8    bool
	offsets []uint32
	data    []byte
	cache   []string
	decoded []bool
}

func (p *axmlStringPool) get(idx uint32) string {
	if idx >= uint32(len(p.offsets)) {
		return ""
	}
	if p.decoded[idx] {
		return p.cache[idx]
	}

	s := p.decodeAt(p.offsets[idx])
	p.cache[idx] = s
	p.decoded[idx] = true
	return s
}

func (p *axmlStringPool) decodeAt(offset uint32) string {
	if p.utf8 {
		// A pair of length bytes precedes the payload: character count,
		// then byte count.
		if int(offset)+2 > len(p.data) {
			return ""
		}
		byteCount := int(p.data[offset+1])
		start := int(offset) + 2
		if start+byteCount > len(p.data) {
			return ""
		}
		return string(p.data[start : start+byteCount])
	}

	// UTF-16LE: a 16-bit character count, then the code units.
	if int(offset)+2 > len(p.data) {
		return ""
	}
	chNum := int(p.data[offset]) | int(p.data[offset+1])<<8
	start := int(offset) + 2
	if start+chNum*2 > len(p.data) {
		return ""
	}
	raw := p.data[start : start+chNum*2]
	if !validUTF16LE(raw) {
		return ""
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return ""
	}
	return string(out)
}

// validUTF16LE checks surrogate pairing: every high surrogate must be
// followed by a low surrogate and no low surrogate may appear alone.
func validUTF16LE(raw []byte) bool {
	for i := 0; i+1 < len(raw); i += 2 {
		u := uint16(raw[i]) | uint16(raw[i+1])<<8
		switch {
		case u >= 0xD800 && u <= 0xDBFF:
			if i+3 >= len(raw) {
				return false
			}
			lo := uint16(raw[i+2]) | uint16(raw[i+3])<<8
			if lo < 0xDC00 || lo > 0xDFFF {
				return false
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return false
		}
	}
	return true
}

// AxmlEventKind discriminates decoder events.
type AxmlEventKind int

const (
	AxmlStartDoc AxmlEventKind = iota
	AxmlStartTag
	AxmlEndTag
	AxmlText
	AxmlEndDoc
	AxmlError
)

// AxmlNamespace is a prefix to URI binding in scope at a start tag.
type AxmlNamespace struct {
	Prefix string
	URI    string
}

// AxmlAttribute is a fully resolved attribute of a start tag.
type AxmlAttribute struct {
	Prefix string
	Name   string
	Value  string
}

// AxmlEvent is one event of the decoder's iterator. Namespace chunks are
// consumed internally; a StartTag following newly opened namespaces carries
// the bindings to declare in Namespaces.
type AxmlEvent struct {
	Kind       AxmlEventKind
	Prefix     string
	Name       string
	Namespaces []AxmlNamespace
	Attrs      []AxmlAttribute
	Text       string
	Err        error
}

type axmlNsEntry struct {
	prefix uint32
	uri    uint32
}

type axmlRawAttr struct {
	uri  uint32
	name uint32
	str  uint32
	typ  uint32
	data uint32
}

// AxmlDecoder decodes a compiled XML buffer into an event stream. It owns
// the string pool, the namespace stack and the attribute frames it
// allocates; the input buffer is borrowed.
type AxmlDecoder struct {
	cur     *byteCursor
	pool    *axmlStringPool
	nsStack []axmlNsEntry
	nsNew   bool
	started bool
	done    bool
}

// NewAxmlDecoder validates the document, string and resource chunks and
// positions the decoder before the first element chunk.
func NewAxmlDecoder(data []byte) (*AxmlDecoder, error) {
	d := &AxmlDecoder{cur: newByteCursor(data)}

	magic, err := d.cur.uint32()
	if err != nil {
		return nil, err
	}
	if magic != axmlChunkHead {
		return nil, ErrBadAxmlMagic
	}
	size, err := d.cur.uint32()
	if err != nil {
		return nil, err
	}
	if int(size) != len(data) {
		return nil, fmt.Errorf("%w: document size %d does not match buffer %d",
			ErrBadAxmlChunk, size, len(data))
	}

	if err := d.parseStringChunk(); err != nil {
		return nil, err
	}
	if err := d.parseResourceChunk(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *AxmlDecoder) parseStringChunk() error {
	magic, err := d.cur.uint32()
	if err != nil {
		return err
	}
	if magic != axmlChunkString {
		return fmt.Errorf("%w: bad string chunk magic 0x%08x", ErrBadAxmlChunk, magic)
	}

	chunkSize, err := d.cur.uint32()
	if err != nil {
		return err
	}
	count, err := d.cur.uint32()
	if err != nil {
		return err
	}
	styleCount, err := d.cur.uint32()
	if err != nil {
		return err
	}
	flags, err := d.cur.uint32()
	if err != nil {
		return err
	}
	stringsOffset, err := d.cur.uint32()
	if err != nil {
		return err
	}
	stylesOffset, err := d.cur.uint32()
	if err != nil {
		return err
	}

	if styleCount != 0 && stylesOffset == 0 {
		return fmt.Errorf("%w: style entries without a style offset", ErrBadAxmlChunk)
	}

	pool := &axmlStringPool{
		utf8:    flags&axmlUTF8Flag != 0,
		offsets: make([]uint32, count),
		cache:   make([]string, count),
		decoded: make([]bool, count),
	}
	for i := uint32(0); i < count; i++ {
		if pool.offsets[i], err = d.cur.uint32(); err != nil {
			return err
		}
	}

	// The style offset table carries no strings; skip it.
	if err := d.cur.skip(int(styleCount) * 4); err != nil {
		return err
	}

	rawEnd := chunkSize
	if stylesOffset != 0 {
		rawEnd = stylesOffset
	}
	if rawEnd < stringsOffset || rawEnd > chunkSize {
		return fmt.Errorf("%w: string data bounds [%d, %d]", ErrBadAxmlChunk,
			stringsOffset, rawEnd)
	}
	if pool.data, err = d.cur.bytes(int(rawEnd - stringsOffset)); err != nil {
		return err
	}

	// Style raw data is skipped entirely.
	if stylesOffset != 0 {
		if err := d.cur.skip(int(chunkSize-stylesOffset) / 4 * 4); err != nil {
			return err
		}
	}

	d.pool = pool
	return nil
}

func (d *AxmlDecoder) parseResourceChunk() error {
	magic, err := d.cur.uint32()
	if err != nil {
		return err
	}
	if magic != axmlChunkResource {
		return fmt.Errorf("%w: bad resource chunk magic 0x%08x", ErrBadAxmlChunk, magic)
	}
	chunkSize, err := d.cur.uint32()
	if err != nil {
		return err
	}
	if chunkSize%4 != 0 || chunkSize < 8 {
		return fmt.Errorf("%w: resource chunk size %d", ErrBadAxmlChunk, chunkSize)
	}
	return d.cur.skip(int(chunkSize) - 8)
}

func errorEvent(err error) AxmlEvent {
	return AxmlEvent{Kind: AxmlError, Err: err}
}

// Next returns the next event. Namespace chunks never surface; they update
// the namespace stack and mark the next StartTag with the bindings.
func (d *AxmlDecoder) Next() AxmlEvent {
	if !d.started {
		d.started = true
		return AxmlEvent{Kind: AxmlStartDoc}
	}
	if d.done {
		return AxmlEvent{Kind: AxmlEndDoc}
	}

	for {
		if d.cur.atEnd() {
			d.done = true
			return AxmlEvent{Kind: AxmlEndDoc}
		}

		chunkType, err := d.cur.uint32()
		if err != nil {
			return errorEvent(err)
		}
		// Chunk size, line number and one reserved word are unused.
		if err := d.cur.skip(12); err != nil {
			return errorEvent(err)
		}

		switch chunkType {
		case axmlChunkStartTag:
			return d.nextStartTag()

		case axmlChunkEndTag:
			uri, err := d.cur.uint32()
			if err != nil {
				return errorEvent(err)
			}
			name, err := d.cur.uint32()
			if err != nil {
				return errorEvent(err)
			}
			return AxmlEvent{
				Kind:   AxmlEndTag,
				Prefix: d.prefixForURI(uri),
				Name:   d.pool.get(name),
			}

		case axmlChunkStartNS:
			prefix, err := d.cur.uint32()
			if err != nil {
				return errorEvent(err)
			}
			uri, err := d.cur.uint32()
			if err != nil {
				return errorEvent(err)
			}
			d.nsStack = append(d.nsStack, axmlNsEntry{prefix: prefix, uri: uri})
			d.nsNew = true

		case axmlChunkEndNS:
			if len(d.nsStack) == 0 {
				return errorEvent(fmt.Errorf("%w: namespace end without start", ErrBadAxmlChunk))
			}
			if err := d.cur.skip(8); err != nil {
				return errorEvent(err)
			}
			d.nsStack = d.nsStack[:len(d.nsStack)-1]

		case axmlChunkText:
			text, err := d.cur.uint32()
			if err != nil {
				return errorEvent(err)
			}
			if err := d.cur.skip(8); err != nil {
				return errorEvent(err)
			}
			return AxmlEvent{Kind: AxmlText, Text: d.pool.get(text)}

		default:
			return errorEvent(fmt.Errorf("%w: unknown chunk type 0x%08x",
				ErrBadAxmlChunk, chunkType))
		}
	}
}

func (d *AxmlDecoder) nextStartTag() AxmlEvent {
	uri, err := d.cur.uint32()
	if err != nil {
		return errorEvent(err)
	}
	name, err := d.cur.uint32()
	if err != nil {
		return errorEvent(err)
	}
	// Flags word, unknown usage.
	if err := d.cur.skip(4); err != nil {
		return errorEvent(err)
	}
	attrWord, err := d.cur.uint32()
	if err != nil {
		return errorEvent(err)
	}
	attrCount := attrWord & 0xFFFF
	// Class attribute word, unknown usage.
	if err := d.cur.skip(4); err != nil {
		return errorEvent(err)
	}

	attrs := make([]AxmlAttribute, 0, attrCount)
	for i := uint32(0); i < attrCount; i++ {
		var raw axmlRawAttr
		if raw.uri, err = d.cur.uint32(); err != nil {
			return errorEvent(err)
		}
		if raw.name, err = d.cur.uint32(); err != nil {
			return errorEvent(err)
		}
		if raw.str, err = d.cur.uint32(); err != nil {
			return errorEvent(err)
		}
		if raw.typ, err = d.cur.uint32(); err != nil {
			return errorEvent(err)
		}
		raw.typ >>= 24
		if raw.data, err = d.cur.uint32(); err != nil {
			return errorEvent(err)
		}

		attrs = append(attrs, AxmlAttribute{
			Prefix: d.prefixForURI(raw.uri),
			Name:   d.pool.get(raw.name),
			Value:  d.formatAttrValue(raw),
		})
	}

	ev := AxmlEvent{
		Kind:   AxmlStartTag,
		Prefix: d.prefixForURI(uri),
		Name:   d.pool.get(name),
		Attrs:  attrs,
	}
	if d.nsNew {
		d.nsNew = false
		ev.Namespaces = make([]AxmlNamespace, 0, len(d.nsStack))
		for _, ns := range d.nsStack {
			ev.Namespaces = append(ev.Namespaces, AxmlNamespace{
				Prefix: d.pool.get(ns.prefix),
				URI:    d.pool.get(ns.uri),
			})
		}
	}
	return ev
}

func (d *AxmlDecoder) prefixForURI(uri uint32) string {
	for _, ns := range d.nsStack {
		if ns.uri == uri {
			return d.pool.get(ns.prefix)
		}
	}
	return ""
}

var (
	axmlRadixTable     = [4]float32{1.0 / 256, 1.0 / 8192, 1.0 / (1 << 23), 1.0 / (1 << 30)}
	axmlDimensionTable = [8]string{"px", "dip", "sp", "pt", "in", "mm", "", ""}
	axmlFractionTable  = [8]string{"%", "%p", "", "", "", "", "", ""}
)

func (d *AxmlDecoder) formatAttrValue(raw axmlRawAttr) string {
	typ, data := raw.typ, raw.data
	switch {
	case typ == attrNull:
		return ""
	case typ == attrReference:
		if data>>24 == 1 {
			return fmt.Sprintf("@android:%08X", data)
		}
		return fmt.Sprintf("@%08X", data)
	case typ == attrAttribute:
		if data>>24 == 1 {
			return fmt.Sprintf("?android:%08x", data)
		}
		return fmt.Sprintf("?%08X", data)
	case typ == attrString:
		return d.pool.get(raw.str)
	case typ == attrFloat:
		return fmt.Sprintf("%g", math.Float32frombits(data))
	case typ == attrDimension:
		return fmt.Sprintf("%f%s",
			float32(data&0xFFFFFF00)*axmlRadixTable[(data>>4)&0x03],
			axmlDimensionTable[data&0x0F])
	case typ == attrFraction:
		return fmt.Sprintf("%f%s",
			float32(data&0xFFFFFF00)*axmlRadixTable[(data>>4)&0x03],
			axmlFractionTable[data&0x0F])
	case typ == attrHex:
		return fmt.Sprintf("0x%08x", data)
	case typ == attrBoolean:
		if data == 0 {
			return "false"
		}
		return "true"
	case typ >= attrFirstColor && typ <= attrLastColor:
		return fmt.Sprintf("#%08x", data)
	case typ >= attrFirstInt && typ <= attrLastInt:
		return fmt.Sprintf("%d", int32(data))
	default:
		return fmt.Sprintf("<0x%x, type 0x%02x>", data, typ)
	}
}
