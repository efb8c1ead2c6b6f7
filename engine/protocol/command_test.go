// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/godoctor/slicedoctor/config"
	"github.com/godoctor/slicedoctor/engine"
)

const circle = `class Circle {
  double size;

  double report(double scale) {
    double d = size * 2;
    double c = d * 3.14;
    print(c * scale);
    return scale;
  }
}
`

func newState(t *testing.T) *State {
	return &State{State: 1, Config: config.DefaultConfig()}
}

func webState(t *testing.T) *State {
	state := newState(t)
	if _, err := (&Setdir{}).Run(state, map[string]interface{}{"mode": "web"}); err != nil {
		t.Fatal("Setdir.Run: ", err)
	}
	put := map[string]interface{}{"filename": "Circle.java", "content": circle}
	if _, err := (&Put{}).Run(state, put); err != nil {
		t.Fatal("Put.Run: ", err)
	}
	return state
}

func TestAboutValidatePass(t *testing.T) {
	// about requires state > 0 to pass validation
	state := State{State: 1}
	about := About{}
	if pass, err := about.Validate(&state, nil); !pass {
		t.Fatal("About.Validate: ", err)
	}
}

func TestAboutValidateFail(t *testing.T) {
	state := State{State: 0}
	about := About{}
	if pass, err := about.Validate(&state, nil); pass {
		t.Fatal("About.Validate: should fail with state < 1")
	} else if err.Error() != "The about command requires a state of non-zero" {
		t.Fatal("About.Validate: error message is not as expected")
	}
}

func TestAboutRunFail(t *testing.T) {
	state := State{State: 0}
	about := About{}
	if reply, err := about.Run(&state, nil); err == nil {
		t.Fatal("About.Run: should fail with state < 1")
	} else if reply.Params["message"] != err.Error() {
		t.Fatal("About.Run: error in reply does not match programmatic error")
	}
}

func TestAboutRunPass(t *testing.T) {
	state := State{State: 1}
	about := About{}
	if reply, err := about.Run(&state, nil); err != nil {
		t.Fatal("About.Run: should pass validate with state of 1")
	} else {
		if reply.Params["reply"] != "OK" {
			t.Fatal("About.Run: reply does not indicate command was successful")
		}
		if reply.Params["text"] != aboutText {
			t.Fatal("About.Run: reply has incorrect about text")
		}
	}
}

func TestList(t *testing.T) {
	state := newState(t)
	reply, err := (&List{}).Run(state, map[string]interface{}{})
	if err != nil {
		t.Fatal("List.Run: ", err)
	}
	names := reply.Params["transformations"].([]map[string]string)
	if len(names) != 1 || names[0]["shortName"] != "extract" {
		t.Fatalf("List.Run: expected only extract, got %v", names)
	}

	reply, _ = (&List{}).Run(state, map[string]interface{}{"hidden": true})
	if names := reply.Params["transformations"].([]map[string]string); len(names) != 2 {
		t.Fatalf("List.Run: expected hidden refactorings, got %v", names)
	}

	if _, err := (&List{}).Run(state, map[string]interface{}{"hidden": "yes"}); err == nil {
		t.Fatal("List.Run: should reject a non-boolean hidden key")
	}
}

func TestParams(t *testing.T) {
	state := newState(t)
	reply, err := (&Params{}).Run(state, map[string]interface{}{"transformation": "debug"})
	if err != nil {
		t.Fatal("Params.Run: ", err)
	}
	params := reply.Params["params"].([]map[string]interface{})
	if len(params) != 1 || params[0]["type"] != "string" {
		t.Fatalf("Params.Run: expected one string parameter, got %v", params)
	}

	if _, err := (&Params{}).Run(state, map[string]interface{}{"transformation": "rename"}); err == nil {
		t.Fatal("Params.Run: should reject an unknown transformation")
	}
}

func TestSetdirValidate(t *testing.T) {
	state := newState(t)
	setdir := &Setdir{}
	for _, input := range []map[string]interface{}{
		{},
		{"mode": "remote"},
		{"mode": "local"},
		{"mode": "local", "directory": filepath.Join(t.TempDir(), "missing")},
	} {
		if pass, _ := setdir.Validate(state, input); pass {
			t.Fatalf("Setdir.Validate: should fail for %v", input)
		}
	}
	if pass, err := setdir.Validate(state, map[string]interface{}{"mode": "local", "directory": t.TempDir()}); !pass {
		t.Fatal("Setdir.Validate: ", err)
	}
	if pass, _ := setdir.Validate(&State{}, map[string]interface{}{"mode": "web"}); pass {
		t.Fatal("Setdir.Validate: should fail with state < 1")
	}
}

func TestPutRequiresWebMode(t *testing.T) {
	state := newState(t)
	dir := t.TempDir()
	if _, err := (&Setdir{}).Run(state, map[string]interface{}{"mode": "local", "directory": dir}); err != nil {
		t.Fatal("Setdir.Run: ", err)
	}
	put := map[string]interface{}{"filename": "Circle.java", "content": circle}
	if _, err := (&Put{}).Run(state, put); err == nil {
		t.Fatal("Put.Run: should fail in local mode")
	}

	state = webState(t)
	if _, err := (&Put{}).Run(state, map[string]interface{}{"filename": "notes.txt", "content": ""}); err == nil {
		t.Fatal("Put.Run: should reject a non-Java file")
	}
}

func TestXRunExtract(t *testing.T) {
	state := webState(t)
	reply, err := (&XRun{}).Run(state, map[string]interface{}{
		"transformation": "extract",
		"textselection":  map[string]interface{}{"filename": "Circle.java", "line": float64(6)},
		"var":            "c",
	})
	if err != nil {
		t.Fatal("XRun.Run: ", err)
	}
	slices := reply.Params["slices"].([]engine.SliceSummary)
	if len(slices) == 0 {
		t.Fatalf("XRun.Run: expected slices on c, got log %v", reply.Params["log"])
	}
	for _, s := range slices {
		if s.Variable != "c" || s.Method != "Circle.report(scale)" {
			t.Fatalf("XRun.Run: unexpected slice %+v", s)
		}
	}
}

func TestXRunOffset(t *testing.T) {
	state := webState(t)
	offset := strings.Index(circle, "double c")
	reply, err := (&XRun{}).Run(state, map[string]interface{}{
		"transformation": "extract",
		"textselection":  map[string]interface{}{"filename": "Circle.java", "offset": float64(offset)},
	})
	if err != nil {
		t.Fatal("XRun.Run: ", err)
	}
	for _, s := range reply.Params["slices"].([]engine.SliceSummary) {
		if s.StartLine > 6 || s.EndLine < 6 {
			t.Fatalf("XRun.Run: slice %+v does not cover line 6", s)
		}
	}
}

func TestXRunDebug(t *testing.T) {
	state := webState(t)
	reply, err := (&XRun{}).Run(state, map[string]interface{}{
		"transformation": "debug",
		"textselection":  map[string]interface{}{"filename": "Circle.java", "line": float64(5)},
		"arguments":      []interface{}{"showcfg"},
	})
	if err != nil {
		t.Fatal("XRun.Run: ", err)
	}
	if out, _ := reply.Params["output"].(string); !strings.Contains(out, "digraph mgraph {") {
		t.Fatalf("XRun.Run: expected a DOT graph, got %q", out)
	}
}

func TestXRunValidate(t *testing.T) {
	xrun := &XRun{}
	if pass, _ := xrun.Validate(newState(t), map[string]interface{}{"transformation": "extract"}); pass {
		t.Fatal("XRun.Validate: should fail before setdir")
	}
	state := webState(t)
	for _, input := range []map[string]interface{}{
		{"transformation": "rename", "textselection": map[string]interface{}{"filename": "Circle.java"}},
		{"transformation": "extract"},
		{"transformation": "extract", "textselection": map[string]interface{}{}},
		{"transformation": "extract", "textselection": map[string]interface{}{"filename": "Circle.java"}, "arguments": "x"},
	} {
		if pass, _ := xrun.Validate(state, input); pass {
			t.Fatalf("XRun.Validate: should fail for %v", input)
		}
	}
	_, err := xrun.Run(state, map[string]interface{}{
		"transformation": "extract",
		"textselection":  map[string]interface{}{"filename": "Missing.java", "line": float64(1)},
	})
	if err == nil {
		t.Fatal("XRun.Run: should fail for a file that was never put")
	}
}

func TestScanLocal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Circle.java"), []byte(circle), 0o644); err != nil {
		t.Fatal(err)
	}
	square := strings.NewReplacer("Circle", "Square", "report", "summary", "scale", "factor").Replace(circle)
	if err := os.MkdirAll(filepath.Join(dir, "shapes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shapes", "Square.java"), []byte(square), 0o644); err != nil {
		t.Fatal(err)
	}

	state := newState(t)
	if _, err := (&Setdir{}).Run(state, map[string]interface{}{"mode": "local", "directory": dir}); err != nil {
		t.Fatal("Setdir.Run: ", err)
	}
	reply, err := (&Scan{}).Run(state, map[string]interface{}{})
	if err != nil {
		t.Fatal("Scan.Run: ", err)
	}
	if reply.Params["files"] != 2 || reply.Params["methods"] != 2 {
		t.Fatalf("Scan.Run: expected 2 files and 2 methods, got %v", reply.Params)
	}
	if groups := reply.Params["groups"].([]map[string]interface{}); len(groups) == 0 {
		t.Fatal("Scan.Run: expected a duplicate group")
	}
	for _, s := range reply.Params["opportunities"].([]engine.SliceSummary) {
		if s.File != "Circle.java" && s.File != "shapes/Square.java" {
			t.Fatalf("Scan.Run: file names should be relative, got %s", s.File)
		}
	}
}

func TestScanDiagnostics(t *testing.T) {
	state := webState(t)
	broken := "class Broken {\n  void good() { int x = 1; }\n  void bad() { int x = ; }\n}\n"
	if _, err := (&Put{}).Run(state, map[string]interface{}{"filename": "Broken.java", "content": broken}); err != nil {
		t.Fatal("Put.Run: ", err)
	}
	reply, err := (&Scan{}).Run(state, map[string]interface{}{})
	if err != nil {
		t.Fatal("Scan.Run: ", err)
	}
	if reply.Params["diagnostics"] != 1 || reply.Params["errors"] != 0 {
		t.Fatalf("Scan.Run: expected one diagnostic, got %v", reply.Params)
	}
	entry := reply.Params["log"].([]map[string]interface{})[0]
	if entry["filename"] != "Broken.java" || entry["line"] != 3 {
		t.Fatalf("Scan.Run: diagnostic should point at Broken.java:3, got %v", entry)
	}
}

func TestRunSingle(t *testing.T) {
	in := strings.Join([]string{
		`{"command":"about"}`,
		`{"command":"open"}`,
		`{"command":"about"}`,
		`not json`,
		`{"command":"bogus"}`,
		`{"command":"setdir","mode":"web"}`,
		`{"command":"put","filename":"Circle.java","content":` + quote(circle) + `}`,
		`{"command":"scan"}`,
		`{"command":"close"}`,
		`{"command":"about"}`,
	}, "\n")
	var out bytes.Buffer
	Run(context.Background(), strings.NewReader(in), &out, nil, nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{"Error", "OK", "OK", "Error", "Error", "OK", "OK", "OK"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d replies, got %d:\n%s", len(want), len(lines), out.String())
	}
	for i, line := range lines {
		var reply map[string]interface{}
		if err := json.Unmarshal([]byte(line), &reply); err != nil {
			t.Fatalf("reply %d is not JSON: %s", i, line)
		}
		if reply["reply"] != want[i] {
			t.Errorf("reply %d: expected %s, got %s", i, want[i], line)
		}
	}
}

func TestRunBatch(t *testing.T) {
	var out bytes.Buffer
	batch := `[{"command":"setdir","mode":"web"},` +
		`{"command":"put","filename":"Circle.java","content":` + quote(circle) + `},` +
		`{"command":"xrun","transformation":"extract","textselection":{"filename":"Circle.java","line":6}}]`
	Run(context.Background(), strings.NewReader(""), &out, nil, []string{batch})

	var reply map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &reply); err != nil {
		t.Fatalf("reply is not JSON: %s", out.String())
	}
	if reply["reply"] != "OK" || reply["description"] != "Extract Method" {
		t.Fatalf("expected the xrun reply, got %s", out.String())
	}

	out.Reset()
	Run(context.Background(), strings.NewReader(""), &out, nil, []string{`[{"command":"xrun"}]`})
	if !strings.Contains(out.String(), `"Error"`) {
		t.Fatalf("expected an error reply, got %s", out.String())
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
