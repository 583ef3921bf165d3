// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"fmt"
	"strings"
)

// DecodeXML decodes a compiled XML buffer into its textual form. An error
// event in the stream aborts emission.
func DecodeXML(data []byte) (string, error) {
	d, err := NewAxmlDecoder(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	depth := 0

	for {
		ev := d.Next()
		switch ev.Kind {
		case AxmlStartDoc:
			b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")

		case AxmlStartTag:
			indent(&b, depth)
			depth++
			if ev.Prefix != "" {
				fmt.Fprintf(&b, "<%s:%s ", ev.Prefix, ev.Name)
			} else {
				fmt.Fprintf(&b, "<%s ", ev.Name)
			}
			for _, ns := range ev.Namespaces {
				fmt.Fprintf(&b, "xmlns:%s=\"%s\" ", ns.Prefix, ns.URI)
			}
			for _, attr := range ev.Attrs {
				if attr.Prefix != "" {
					fmt.Fprintf(&b, "%s:%s=\"%s\" ", attr.Prefix, attr.Name, attr.Value)
				} else {
					fmt.Fprintf(&b, "%s=\"%s\" ", attr.Name, attr.Value)
				}
			}
			b.WriteString(">\n")

		case AxmlEndTag:
			depth--
			indent(&b, depth)
			if ev.Prefix != "" {
				fmt.Fprintf(&b, "</%s:%s>\n", ev.Prefix, ev.Name)
			} else {
				fmt.Fprintf(&b, "</%s>\n", ev.Name)
			}

		case AxmlText:
			b.WriteString(ev.Text)
			b.WriteByte('\n')

		case AxmlError:
			if ev.Err != nil {
				return "", fmt.Errorf("%w: %v", ErrAxmlDecode, ev.Err)
			}
			return "", ErrAxmlDecode

		case AxmlEndDoc:
			return b.String(), nil
		}
	}
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("    ")
	}
}
