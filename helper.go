// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"encoding/binary"
	"errors"
	"strings"
)

// Errors
var (
	// ErrTruncated is returned when a cursor read runs past the end of the
	// input buffer.
	ErrTruncated = errors.New("truncated input, read beyond buffer end")

	// ErrOutsideBoundary is reported when attempting to read an address
	// beyond file image limits.
	ErrOutsideBoundary = errors.New("reading data outside boundary")
)

// byteCursor is a bounds-checked little-endian reader over an immutable
// buffer. It borrows the buffer; callers must keep the buffer alive for the
// cursor's lifetime. Every read advances the offset.
type byteCursor struct {
	data []byte
	off  int
}

func newByteCursor(data []byte) *byteCursor {
	return &byteCursor{data: data}
}

func (c *byteCursor) uint32() (uint32, error) {
	if c.off+4 > len(c.data) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

func (c *byteCursor) uint16() (uint16, error) {
	if c.off+2 > len(c.data) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(c.data[c.off:])
	c.off += 2
	return v, nil
}

func (c *byteCursor) uint8() (uint8, error) {
	if c.off+1 > len(c.data) {
		return 0, ErrTruncated
	}
	v := c.data[c.off]
	c.off++
	return v, nil
}

func (c *byteCursor) skip(n int) error {
	if n < 0 || c.off+n > len(c.data) {
		return ErrTruncated
	}
	c.off += n
	return nil
}

// bytes returns a view of the next n bytes without copying.
func (c *byteCursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.data) {
		return nil, ErrTruncated
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *byteCursor) remaining() int {
	return len(c.data) - c.off
}

func (c *byteCursor) atEnd() bool {
	return c.off >= len(c.data)
}

// findCaseInsensitive reports whether needle occurs in haystack ignoring
// case.
func findCaseInsensitive(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// splitMethodPath splits a dotted method path into the class path and the
// method name. "com.example.Foo.bar" -> ("com.example.Foo", "bar").
func splitMethodPath(methodPath string) (string, string) {
	idx := strings.LastIndexByte(methodPath, '.')
	if idx < 0 {
		return "", ""
	}
	return methodPath[:idx], methodPath[idx+1:]
}

// nameToDescriptor renders a dotted class path in descriptor form,
// "pkg.Name" -> "Lpkg/Name;".
func nameToDescriptor(name string) string {
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}

// descriptorToDecl renders a type descriptor in human readable form.
// "Lpkg/Name;" -> "pkg.Name", "[I" -> "int[]", "V" -> "void".
func descriptorToDecl(descriptor string) string {
	dims := 0
	for dims < len(descriptor) && descriptor[dims] == '[' {
		dims++
	}
	base := descriptor[dims:]

	var decl string
	switch {
	case base == "":
		decl = "?"
	case base[0] == 'L' && base[len(base)-1] == ';':
		decl = strings.ReplaceAll(base[1:len(base)-1], "/", ".")
	default:
		switch base[0] {
		case 'V':
			decl = "void"
		case 'Z':
			decl = "boolean"
		case 'B':
			decl = "byte"
		case 'S':
			decl = "short"
		case 'C':
			decl = "char"
		case 'I':
			decl = "int"
		case 'J':
			decl = "long"
		case 'F':
			decl = "float"
		case 'D':
			decl = "double"
		default:
			decl = base
		}
	}

	return decl + strings.Repeat("[]", dims)
}

func stringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}
