// Copyright 2022 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import "testing"

func TestIsURL(t *testing.T) {
	tests := []struct {
		in  string
		out bool
	}{
		{"http://example.com", true},
		{"HTTPS://Example.Com/path", true},
		{"ftp://x", true},
		{"ftps://files.example.com", true},
		{"see https://example.com for details", true},
		{"mailto:a@b.c", false},
		{"example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsURL(tt.in); got != tt.out {
				t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.out)
			}
		})
	}
}

func TestIsEmail(t *testing.T) {
	tests := []struct {
		in  string
		out bool
	}{
		{"name@domain.co", true},
		{"first.last@sub.domain.org", true},
		{"@lead", false},
		{"a@b", false},
		{"a@b.c", false},
		{"no-at-sign", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsEmail(tt.in); got != tt.out {
				t.Errorf("IsEmail(%q) = %v, want %v", tt.in, got, tt.out)
			}
		})
	}
}
