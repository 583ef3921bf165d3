// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import "unicode/utf16"

// uleb128 reads an unsigned LEB128 value.
func (c *byteCursor) uleb128() (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := c.uint8()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, ErrTruncated
		}
	}
}

// sleb128 reads a signed LEB128 value.
func (c *byteCursor) sleb128() (int32, error) {
	var result int32
	var shift uint
	for {
		b, err := c.uint8()
		if err != nil {
			return 0, err
		}
		result |= int32(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
		if shift >= 35 {
			return 0, ErrTruncated
		}
	}
}

// uleb128p1 reads the offset-by-one encoding used for optional indices;
// the encoded value 0 decodes to -1.
func (c *byteCursor) uleb128p1() (int32, error) {
	v, err := c.uleb128()
	if err != nil {
		return 0, err
	}
	return int32(v) - 1, nil
}

// decodeMUTF8 converts a modified-UTF-8 byte sequence (no embedded NULs,
// supplementary characters as surrogate pairs of 3-byte sequences) into a
// Go string.
func decodeMUTF8(raw []byte) string {
	units := make([]uint16, 0, len(raw))
	for i := 0; i < len(raw); {
		b := raw[i]
		switch {
		case b&0x80 == 0:
			units = append(units, uint16(b))
			i++
		case b&0xE0 == 0xC0:
			if i+1 >= len(raw) {
				return string(utf16.Decode(units))
			}
			units = append(units, uint16(b&0x1F)<<6|uint16(raw[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0:
			if i+2 >= len(raw) {
				return string(utf16.Decode(units))
			}
			units = append(units,
				uint16(b&0x0F)<<12|uint16(raw[i+1]&0x3F)<<6|uint16(raw[i+2]&0x3F))
			i += 3
		default:
			// Not a valid modified-UTF-8 lead byte; stop here.
			return string(utf16.Decode(units))
		}
	}
	return string(utf16.Decode(units))
}
