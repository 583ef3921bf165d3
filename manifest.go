// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import (
	"encoding/xml"
	"strings"
)

// MainIntentAction marks the activity started as the application's main
// entry point.
const MainIntentAction = "android.intent.action.MAIN"

// Component is a declared application component together with the intent
// actions it filters on.
type Component struct {
	Name    string
	Intents []string
}

// Manifest is the decoded application manifest: the textual XML plus the
// semantic fields queried by the session.
type Manifest struct {
	Content          string
	Package          string
	ApplicationClass string
	Debuggable       bool
	Permissions      []string
	Activities       []Component
	Services         []Component
	Receivers        []Component
}

type xmlAction struct {
	Name string `xml:"name,attr"`
}

type xmlIntentFilter struct {
	Actions []xmlAction `xml:"action"`
}

type xmlComponent struct {
	Name           string            `xml:"name,attr"`
	TargetActivity string            `xml:"targetActivity,attr"`
	IntentFilters  []xmlIntentFilter `xml:"intent-filter"`
}

type xmlApplication struct {
	Name       string         `xml:"name,attr"`
	Debuggable string         `xml:"debuggable,attr"`
	Activities []xmlComponent `xml:"activity"`
	Aliases    []xmlComponent `xml:"activity-alias"`
	Services   []xmlComponent `xml:"service"`
	Receivers  []xmlComponent `xml:"receiver"`
}

type xmlPermission struct {
	Name string `xml:"name,attr"`
}

type xmlManifest struct {
	XMLName     xml.Name        `xml:"manifest"`
	Package     string          `xml:"package,attr"`
	Permissions []xmlPermission `xml:"uses-permission"`
	Application xmlApplication  `xml:"application"`
}

// NewManifest decodes a compiled manifest buffer and extracts its semantic
// content.
func NewManifest(data []byte) (*Manifest, error) {
	content, err := DecodeXML(data)
	if err != nil {
		return nil, err
	}

	var doc xmlManifest
	if err := xml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, err
	}

	m := &Manifest{
		Content:    content,
		Package:    doc.Package,
		Debuggable: doc.Application.Debuggable == "true",
	}
	m.ApplicationClass = m.qualify(doc.Application.Name)

	for _, p := range doc.Permissions {
		m.Permissions = append(m.Permissions, p.Name)
	}
	for _, a := range doc.Application.Activities {
		m.Activities = append(m.Activities, m.component(a))
	}
	for _, a := range doc.Application.Aliases {
		m.Activities = append(m.Activities, m.component(a))
	}
	for _, s := range doc.Application.Services {
		m.Services = append(m.Services, m.component(s))
	}
	for _, r := range doc.Application.Receivers {
		m.Receivers = append(m.Receivers, m.component(r))
	}
	return m, nil
}

func (m *Manifest) component(c xmlComponent) Component {
	name := c.Name
	if c.TargetActivity != "" {
		name = c.TargetActivity
	}

	var intents []string
	for _, f := range c.IntentFilters {
		for _, a := range f.Actions {
			intents = append(intents, a.Name)
		}
	}
	return Component{Name: m.qualify(name), Intents: intents}
}

// qualify expands a component name relative to the manifest package,
// ".Main" -> "com.example.Main".
func (m *Manifest) qualify(name string) string {
	if strings.HasPrefix(name, ".") && m.Package != "" {
		return m.Package + name
	}
	return name
}

// MainActivity returns the activity filtered on the main intent action, or
// the empty string when none is declared.
func (m *Manifest) MainActivity() string {
	for _, a := range m.Activities {
		if stringInSlice(MainIntentAction, a.Intents) {
			return a.Name
		}
	}
	return ""
}

// IsDebuggable reports the manifest's application debuggable flag.
func (m *Manifest) IsDebuggable() bool {
	return m.Debuggable
}
