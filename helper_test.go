// Copyright 2022 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"errors"
	"strings"
	"testing"
)

func TestByteCursorReads(t *testing.T) {
	cur := newByteCursor([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})

	v32, err := cur.uint32()
	if err != nil || v32 != 0x04030201 {
		t.Errorf("uint32() = 0x%08x, %v, want 0x04030201", v32, err)
	}
	v16, err := cur.uint16()
	if err != nil || v16 != 0x0605 {
		t.Errorf("uint16() = 0x%04x, %v, want 0x0605", v16, err)
	}
	v8, err := cur.uint8()
	if err != nil || v8 != 0x07 {
		t.Errorf("uint8() = 0x%02x, %v, want 0x07", v8, err)
	}
	if !cur.atEnd() || cur.remaining() != 0 {
		t.Error("cursor did not reach the end")
	}
}

func TestByteCursorTruncated(t *testing.T) {
	tests := []struct {
		name string
		read func(*byteCursor) error
	}{
		{"uint32", func(c *byteCursor) error { _, err := c.uint32(); return err }},
		{"uint16", func(c *byteCursor) error { _, err := c.uint16(); return err }},
		{"uint8", func(c *byteCursor) error { _, err := c.uint8(); return err }},
		{"skip", func(c *byteCursor) error { return c.skip(2) }},
		{"bytes", func(c *byteCursor) error { _, err := c.bytes(5); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := newByteCursor(nil)
			if err := tt.read(cur); !errors.Is(err, ErrTruncated) {
				t.Errorf("%s on empty buffer = %v, want ErrTruncated", tt.name, err)
			}
		})
	}
}

func TestDescriptorToDecl(t *testing.T) {
	tests := []struct {
		in  string
		out string
	}{
		{"Lpkg/Name;", "pkg.Name"},
		{"Ljava/lang/String;", "java.lang.String"},
		{"V", "void"},
		{"I", "int"},
		{"J", "long"},
		{"[I", "int[]"},
		{"[[Ljava/lang/String;", "java.lang.String[][]"},
		{"Z", "boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := descriptorToDecl(tt.in); got != tt.out {
				t.Errorf("descriptorToDecl(%q) = %q, want %q", tt.in, got, tt.out)
			}
		})
	}
}

func TestNameToDescriptor(t *testing.T) {
	if got := nameToDescriptor("com.example.Foo"); got != "Lcom/example/Foo;" {
		t.Errorf("nameToDescriptor = %q, want Lcom/example/Foo;", got)
	}
}

func TestSplitMethodPath(t *testing.T) {
	class, method := splitMethodPath("com.example.Foo.bar")
	if class != "com.example.Foo" || method != "bar" {
		t.Errorf("splitMethodPath = %q, %q", class, method)
	}

	class, method = splitMethodPath("nodot")
	if class != "" || method != "" {
		t.Errorf("splitMethodPath of a bare name = %q, %q, want empty", class, method)
	}
}

func TestFindCaseInsensitive(t *testing.T) {
	tests := []struct {
		haystack string
		needle   string
		want     bool
	}{
		{"com.example.MainActivity", "mainactivity", true},
		{"COM.EXAMPLE", "example", true},
		{"short", "longer than haystack", false},
		{"abc", "d", false},
	}

	for _, tt := range tests {
		t.Run(tt.needle, func(t *testing.T) {
			if got := findCaseInsensitive(tt.haystack, tt.needle); got != tt.want {
				t.Errorf("findCaseInsensitive(%q, %q) = %v, want %v",
					tt.haystack, tt.needle, got, tt.want)
			}
			// Case manipulation on either side must not change the verdict.
			if got := findCaseInsensitive(strings.ToUpper(tt.haystack),
				strings.ToLower(tt.needle)); got != tt.want {
				t.Errorf("case-flipped findCaseInsensitive(%q, %q) = %v, want %v",
					tt.haystack, tt.needle, got, tt.want)
			}
		})
	}
}
