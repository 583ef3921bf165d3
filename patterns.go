// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import "strings"

var urlSchemes = []string{"http://", "https://", "ftp://", "ftps://"}

// IsURL reports whether s carries a web or file-transfer URL scheme.
func IsURL(s string) bool {
	for _, scheme := range urlSchemes {
		if findCaseInsensitive(s, scheme) {
			return true
		}
	}
	return false
}

// IsEmail reports whether s looks like an email address: a non-empty local
// part, and a domain with a dot followed by at least two characters.
func IsEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 {
		return false
	}
	return len(domain)-dot-1 >= 2
}
