// Copyright 2022 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"strings"
	"testing"
	"unicode/utf16"
)

const noStringIndex = 0xFFFFFFFF

func putU32(b *bytes.Buffer, values ...uint32) {
	for _, v := range values {
		binary.Write(b, binary.LittleEndian, v)
	}
}

func encodeUTF16Entry(s string) []byte {
	units := utf16.Encode([]rune(s))
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint16(len(units)))
	for _, u := range units {
		binary.Write(&b, binary.LittleEndian, u)
	}
	binary.Write(&b, binary.LittleEndian, uint16(0))
	return b.Bytes()
}

func buildStringChunk(strs []string) []byte {
	var data bytes.Buffer
	offsets := make([]uint32, 0, len(strs))
	for _, s := range strs {
		offsets = append(offsets, uint32(data.Len()))
		data.Write(encodeUTF16Entry(s))
	}

	stringsOffset := uint32(28 + 4*len(strs))
	var chunk bytes.Buffer
	putU32(&chunk, axmlChunkString, stringsOffset+uint32(data.Len()),
		uint32(len(strs)), 0, 0, stringsOffset, 0)
	putU32(&chunk, offsets...)
	chunk.Write(data.Bytes())
	return chunk.Bytes()
}

func buildElementChunk(chunkType uint32, words ...uint32) []byte {
	var chunk bytes.Buffer
	putU32(&chunk, chunkType, uint32(16+4*len(words)), 0, 0xFFFFFFFF)
	putU32(&chunk, words...)
	return chunk.Bytes()
}

func buildAxml(strs []string, elements ...[]byte) []byte {
	var body bytes.Buffer
	body.Write(buildStringChunk(strs))
	putU32(&body, axmlChunkResource, 8)
	for _, e := range elements {
		body.Write(e)
	}

	var doc bytes.Buffer
	putU32(&doc, axmlChunkHead, uint32(8+body.Len()))
	doc.Write(body.Bytes())
	return doc.Bytes()
}

func TestDecodeXMLRoundTrip(t *testing.T) {
	doc := buildAxml(
		[]string{"a", "u", "root", "b"},
		buildElementChunk(axmlChunkStartNS, 0, 1),
		buildElementChunk(axmlChunkStartTag, 1, 2, 0, 0, 0),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 3, 0, 0, 0),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 3),
		buildElementChunk(axmlChunkEndTag, 1, 2),
		buildElementChunk(axmlChunkEndNS, 0, 1),
	)

	out, err := DecodeXML(doc)
	if err != nil {
		t.Fatalf("DecodeXML failed, reason: %v", err)
	}

	want := "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" +
		"<a:root xmlns:a=\"u\" >\n" +
		"    <b >\n" +
		"    </b>\n" +
		"</a:root>\n"
	if out != want {
		t.Errorf("decoded XML mismatch, got:\n%s\nwant:\n%s", out, want)
	}

	// The emitted document must be well formed.
	dec := xml.NewDecoder(strings.NewReader(out))
	var rootName xml.Name
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if start, ok := tok.(xml.StartElement); ok && rootName.Local == "" {
			rootName = start.Name
		}
	}
	if rootName.Local != "root" || rootName.Space != "u" {
		t.Errorf("parsed root element is %v, want {u root}", rootName)
	}
}

func TestDecodeXMLAttributes(t *testing.T) {
	doc := buildAxml(
		[]string{"a", "u", "root", "flag", "num"},
		buildElementChunk(axmlChunkStartNS, 0, 1),
		buildElementChunk(axmlChunkStartTag, 1, 2, 0, 2, 0,
			1, 3, noStringIndex, 18<<24, 1,
			noStringIndex, 4, noStringIndex, 17<<24, 0x1234),
		buildElementChunk(axmlChunkEndTag, 1, 2),
		buildElementChunk(axmlChunkEndNS, 0, 1),
	)

	out, err := DecodeXML(doc)
	if err != nil {
		t.Fatalf("DecodeXML failed, reason: %v", err)
	}
	want := "<a:root xmlns:a=\"u\" a:flag=\"true\" num=\"0x00001234\" >"
	if !strings.Contains(out, want) {
		t.Errorf("decoded XML misses %q, got:\n%s", want, out)
	}
}

func TestDecodeXMLBadMagic(t *testing.T) {
	if _, err := DecodeXML([]byte{1, 2, 3, 4, 5, 6, 7, 8}); err == nil {
		t.Error("DecodeXML accepted a buffer with a bad magic")
	}
}

func TestAttrValueFormatting(t *testing.T) {
	d := &AxmlDecoder{pool: &axmlStringPool{}}

	tests := []struct {
		typ  uint32
		data uint32
		out  string
	}{
		{attrNull, 0, ""},
		{attrReference, 0x01020304, "@android:01020304"},
		{attrReference, 0x7F020304, "@7F020304"},
		{attrAttribute, 0x0102FFFF, "?android:0102ffff"},
		{attrHex, 0xDEAD, "0x0000dead"},
		{attrBoolean, 0, "false"},
		{attrBoolean, 0xFFFFFFFF, "true"},
		{attrFirstColor, 0xFF00FF00, "#ff00ff00"},
		{attrFirstInt, 0xFFFFFFFF, "-1"},
		{attrFirstInt, 42, "42"},
		{0x20, 0xAB, "<0xab, type 0x20>"},
	}

	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			got := d.formatAttrValue(axmlRawAttr{typ: tt.typ, data: tt.data})
			if got != tt.out {
				t.Errorf("formatAttrValue(type %d, data 0x%x) = %q, want %q",
					tt.typ, tt.data, got, tt.out)
			}
		})
	}
}

func newTestPool(utf8 bool, offsets []uint32, data []byte) *axmlStringPool {
	return &axmlStringPool{
		utf8:    utf8,
		offsets: offsets,
		data:    data,
		cache:   make([]string, len(offsets)),
		decoded: make([]bool, len(offsets)),
	}
}

func TestStringPoolUTF8(t *testing.T) {
	pool := newTestPool(true, []uint32{0}, []byte{5, 5, 'h', 'e', 'l', 'l', 'o'})
	if got := pool.get(0); got != "hello" {
		t.Errorf("pool.get(0) = %q, want hello", got)
	}
}

func TestStringPoolLoneSurrogate(t *testing.T) {
	// A high surrogate without its pair must decode to the empty string.
	pool := newTestPool(false, []uint32{0}, []byte{0x01, 0x00, 0x00, 0xD8})
	if got := pool.get(0); got != "" {
		t.Errorf("pool.get(0) = %q, want empty string", got)
	}
}

func TestStringPoolSurrogatePair(t *testing.T) {
	// U+1F600 as a UTF-16LE surrogate pair.
	pool := newTestPool(false, []uint32{0},
		[]byte{0x02, 0x00, 0x3D, 0xD8, 0x00, 0xDE})
	if got := pool.get(0); got != "\U0001F600" {
		t.Errorf("pool.get(0) = %q, want \U0001F600", got)
	}
}

func TestStringPoolOutOfRange(t *testing.T) {
	pool := newTestPool(false, nil, nil)
	if got := pool.get(7); got != "" {
		t.Errorf("pool.get(7) = %q, want empty string", got)
	}
}

func TestStringPoolDeterministic(t *testing.T) {
	raw := encodeUTF16Entry("stable")
	first := newTestPool(false, []uint32{0}, raw).get(0)
	second := newTestPool(false, []uint32{0}, raw).get(0)
	if first != second || first != "stable" {
		t.Errorf("string decoding not deterministic: %q vs %q", first, second)
	}
}

func TestStringChunkStyleWithoutOffset(t *testing.T) {
	// styleCount != 0 with a zero style offset is malformed.
	var chunk bytes.Buffer
	putU32(&chunk, axmlChunkString, 28, 0, 3, 0, 28, 0)

	var doc bytes.Buffer
	putU32(&doc, axmlChunkHead, uint32(8+chunk.Len()))
	doc.Write(chunk.Bytes())

	if _, err := NewAxmlDecoder(doc.Bytes()); err == nil {
		t.Error("decoder accepted style entries without a style offset")
	}
}
