// Copyright 2022 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package andromeda

import "testing"

// buildTestManifest assembles a compiled manifest declaring a debuggable
// application with one main activity and one permission.
func buildTestManifest() []byte {
	strs := []string{
		"android", // 0
		"http://schemas.android.com/apk/res/android", // 1
		"manifest",                      // 2
		"package",                       // 3
		"com.example.app",               // 4
		"application",                   // 5
		"debuggable",                    // 6
		"uses-permission",               // 7
		"name",                          // 8
		"android.permission.INTERNET",   // 9
		"activity",                      // 10
		".Main",                         // 11
		"intent-filter",                 // 12
		"action",                        // 13
		"android.intent.action.MAIN",    // 14
	}

	return buildAxml(strs,
		buildElementChunk(axmlChunkStartNS, 0, 1),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 2, 0, 1, 0,
			noStringIndex, 3, 4, 3<<24, 4),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 7, 0, 1, 0,
			1, 8, 9, 3<<24, 9),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 7),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 5, 0, 2, 0,
			1, 6, noStringIndex, 18<<24, 1,
			1, 8, 11, 3<<24, 11),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 10, 0, 1, 0,
			1, 8, 11, 3<<24, 11),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 12, 0, 0, 0),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 13, 0, 1, 0,
			1, 8, 14, 3<<24, 14),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 13),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 12),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 10),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 5),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 2),
		buildElementChunk(axmlChunkEndNS, 0, 1),
	)
}

func TestManifestSemantics(t *testing.T) {
	m, err := NewManifest(buildTestManifest())
	if err != nil {
		t.Fatalf("NewManifest failed, reason: %v", err)
	}

	if m.Package != "com.example.app" {
		t.Errorf("package = %q, want com.example.app", m.Package)
	}
	if !m.IsDebuggable() {
		t.Error("IsDebuggable() = false, want true")
	}
	if !stringInSlice("android.permission.INTERNET", m.Permissions) {
		t.Errorf("permissions %v miss android.permission.INTERNET", m.Permissions)
	}
	if m.ApplicationClass != "com.example.app.Main" {
		t.Errorf("application class = %q, want com.example.app.Main", m.ApplicationClass)
	}

	if len(m.Activities) != 1 {
		t.Fatalf("got %d activities, want 1", len(m.Activities))
	}
	if m.Activities[0].Name != "com.example.app.Main" {
		t.Errorf("activity name = %q, want com.example.app.Main", m.Activities[0].Name)
	}
	if main := m.MainActivity(); main != "com.example.app.Main" {
		t.Errorf("MainActivity() = %q, want com.example.app.Main", main)
	}
}

func TestManifestNotDebuggable(t *testing.T) {
	strs := []string{"android", "http://schemas.android.com/apk/res/android",
		"manifest", "application"}
	doc := buildAxml(strs,
		buildElementChunk(axmlChunkStartNS, 0, 1),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 2, 0, 0, 0),
		buildElementChunk(axmlChunkStartTag, noStringIndex, 3, 0, 0, 0),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 3),
		buildElementChunk(axmlChunkEndTag, noStringIndex, 2),
		buildElementChunk(axmlChunkEndNS, 0, 1),
	)

	m, err := NewManifest(doc)
	if err != nil {
		t.Fatalf("NewManifest failed, reason: %v", err)
	}
	if m.IsDebuggable() {
		t.Error("IsDebuggable() = true for a manifest without the flag")
	}
}
