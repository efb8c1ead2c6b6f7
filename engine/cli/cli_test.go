// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/godoctor/slicedoctor/engine/cli"
)

const (
	circle = `class Circle {
  double size;

  double report(double scale) {
    double d = size * 2;
    double c = d * 3.14;
    print(c * scale);
    return scale;
  }
}
`
	square = `class Square {
  double size;

  double summary(double factor) {
    double p = size * 2;
    double q = p * 3.14;
    print(q * factor);
    return factor;
  }
}
`
)

// writeProject writes the test sources to a new directory and returns its
// path.
func writeProject(t *testing.T) string {
	dir := t.TempDir()
	for name, src := range map[string]string{"Circle.java": circle, "Square.java": square} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runCLI(args ...string) (exit int, stdout string, stderr string) {
	args = append([]string{"slicedoctor"}, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	exit = cli.Run(strings.NewReader(""), &stdoutBuf, &stderrBuf, args)
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()
	return
}

func TestNoArgs(t *testing.T) {
	exit, stdout, _ := runCLI()
	if exit != cli.ExitUsage || !strings.Contains(stdout, "slicedoctor") {
		t.Fatalf("No args expected usage with exit 1, got %d:\n%s", exit, stdout)
	}
}

func TestHelp(t *testing.T) {
	exit, stdout, _ := runCLI("--help")
	if exit != cli.ExitOK || !strings.Contains(stdout, "scan") {
		t.Fatalf("--help expected command list with exit 0, got %d:\n%s", exit, stdout)
	}
}

func TestInvalidFlag(t *testing.T) {
	exit, _, stderr := runCLI("scan", "--somethinginvalid")
	if exit != cli.ExitUsage || stderr == "" {
		t.Fatalf("Invalid flag expected exit 1, got %d", exit)
	}

	exit, _, stderr = runCLI("scan", "--format", "xml", writeProject(t))
	if exit != cli.ExitUsage || !strings.Contains(stderr, "output.format") {
		t.Fatalf("Invalid format expected exit 1, got %d: %s", exit, stderr)
	}
}

func TestInvalidCommand(t *testing.T) {
	exit, stdout, stderr := runCLI("rename")
	if exit != cli.ExitUsage || stdout != "" ||
		!strings.Contains(stderr, "there is no command named") {
		t.Fatalf("Invalid command expected exit 1, got %d: %s", exit, stderr)
	}
}

func TestList(t *testing.T) {
	exit, stdout, _ := runCLI("list", "--no-color")
	if exit != cli.ExitOK || !strings.Contains(stdout, "extract") || strings.Contains(stdout, "debug") {
		t.Fatalf("list expected visible refactorings with exit 0, got %d:\n%s", exit, stdout)
	}

	exit, stdout, _ = runCLI("list", "--all", "--format", "json")
	var refactorings []map[string]string
	if err := json.Unmarshal([]byte(stdout), &refactorings); err != nil {
		t.Fatalf("list --format json produced invalid JSON: %v", err)
	}
	if exit != cli.ExitOK || len(refactorings) != 2 {
		t.Fatalf("list --all expected 2 refactorings, got %v", refactorings)
	}

	exit, _, _ = runCLI("list", "somearg")
	if exit != cli.ExitUsage {
		t.Fatal("list with an argument expected exit 1")
	}
}

func TestScanText(t *testing.T) {
	dir := writeProject(t)
	exit, stdout, stderr := runCLI("scan", "--no-color", dir)
	if exit != cli.ExitOK {
		t.Fatalf("scan expected clean exit, got %d: %s", exit, stderr)
	}
	for _, want := range []string{"Extract Method opportunities", "Duplicate slices", "report", "summary"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("scan output does not contain %q:\n%s", want, stdout)
		}
	}
}

func TestScanJSON(t *testing.T) {
	dir := writeProject(t)
	exit, stdout, stderr := runCLI("scan", "--format", "json", dir)
	if exit != cli.ExitOK {
		t.Fatalf("scan expected clean exit, got %d: %s", exit, stderr)
	}
	var result struct {
		Files         int
		Methods       int
		Opportunities []struct {
			File        string
			Variable    string
			Extractable bool
		}
		Groups []struct {
			Signature string
			Slices    []struct{ File string }
		}
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("scan produced invalid JSON: %v\n%s", err, stdout)
	}
	if result.Files != 2 || result.Methods != 2 {
		t.Errorf("expected 2 files and 2 methods, got %d and %d", result.Files, result.Methods)
	}
	if len(result.Opportunities) == 0 {
		t.Fatal("expected Extract Method opportunities")
	}
	for _, o := range result.Opportunities {
		if !o.Extractable {
			t.Errorf("%s: opportunity on %s is not extractable", o.File, o.Variable)
		}
	}
	if len(result.Groups) == 0 || len(result.Groups[0].Slices) < 2 {
		t.Fatalf("expected a duplicate group, got %+v", result.Groups)
	}
}

func TestScanMarkdown(t *testing.T) {
	exit, stdout, _ := runCLI("scan", "--format", "markdown", writeProject(t))
	if exit != cli.ExitOK || !strings.Contains(stdout, "## Extract Method opportunities") ||
		!strings.Contains(stdout, "| File | Lines |") {
		t.Fatalf("scan --format markdown expected markdown tables, got %d:\n%s", exit, stdout)
	}
}

func TestScanMissingPath(t *testing.T) {
	exit, stdout, _ := runCLI("scan", filepath.Join(t.TempDir(), "missing"))
	if exit != cli.ExitUsage || stdout != "" {
		t.Fatalf("scan of a missing path expected exit 1, got %d", exit)
	}
}

func TestScanEmptyDirectory(t *testing.T) {
	exit, stdout, stderr := runCLI("scan", t.TempDir())
	if exit != cli.ExitOK || stdout != "" || !strings.Contains(stderr, "No Java source files found") {
		t.Fatalf("scan of an empty directory expected a warning, got %d: %s", exit, stderr)
	}
}

func TestSlice(t *testing.T) {
	file := filepath.Join(writeProject(t), "Circle.java")
	exit, stdout, stderr := runCLI("slice", "--no-color", "--file", file, "--line", "6", "--var", "c")
	if exit != cli.ExitOK {
		t.Fatalf("slice expected clean exit, got %d: %s", exit, stderr)
	}
	if !strings.Contains(stdout, "Slices of Circle.report(scale)") || !strings.Contains(stdout, "extractable") {
		t.Fatalf("slice output did not list the slice on c:\n%s", stdout)
	}
}

func TestSliceBadCriterion(t *testing.T) {
	file := filepath.Join(writeProject(t), "Circle.java")
	exit, stdout, stderr := runCLI("slice", "--file", file, "--line", "6", "--var", "zzz")
	if exit != cli.ExitAnalysis || stdout != "" || !strings.Contains(stderr, "invalid slicing criterion") {
		t.Fatalf("slice on an unassigned variable expected exit 2, got %d: %s", exit, stderr)
	}
}

func TestSliceNoMethod(t *testing.T) {
	file := filepath.Join(writeProject(t), "Circle.java")
	exit, _, stderr := runCLI("slice", "--file", file, "--line", "2")
	if exit != cli.ExitUsage || !strings.Contains(stderr, "no method contains line 2") {
		t.Fatalf("slice outside a method expected exit 1, got %d: %s", exit, stderr)
	}

	exit, _, _ = runCLI("slice", "--file", file)
	if exit != cli.ExitUsage {
		t.Fatalf("slice without --line expected exit 1, got %d", exit)
	}
}

func TestDebug(t *testing.T) {
	file := filepath.Join(writeProject(t), "Circle.java")
	exit, stdout, stderr := runCLI("debug", "--file", file, "--line", "5", "showpdg")
	if exit != cli.ExitOK || !strings.Contains(stdout, "digraph pdg {") {
		t.Fatalf("debug showpdg expected a DOT graph, got %d: %s", exit, stderr)
	}

	exit, stdout, _ = runCLI("debug", "--file", file, "showmethods")
	if exit != cli.ExitOK || !strings.Contains(stdout, "Circle.report(scale)") {
		t.Fatalf("debug showmethods expected the method list, got %d:\n%s", exit, stdout)
	}

	exit, _, stderr = runCLI("debug", "--file", file, "--line", "5")
	if exit != cli.ExitAnalysis || !strings.Contains(stderr, "Usage: debug") {
		t.Fatalf("debug without a command expected usage with exit 2, got %d: %s", exit, stderr)
	}
}

func TestConfig(t *testing.T) {
	exit, stdout, _ := runCLI("config", "--as", "json", "--min-statements", "3")
	if exit != cli.ExitOK {
		t.Fatalf("config expected clean exit, got %d", exit)
	}
	var cfg struct {
		Analysis struct {
			MinStatements int `json:"min_statements"`
		} `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(stdout), &cfg); err != nil {
		t.Fatalf("config --as json produced invalid JSON: %v\n%s", err, stdout)
	}
	if cfg.Analysis.MinStatements != 3 {
		t.Errorf("min_statements = %d, want 3", cfg.Analysis.MinStatements)
	}

	exit, _, _ = runCLI("config", "--as", "xml")
	if exit != cli.ExitUsage {
		t.Fatalf("config --as xml expected exit 1, got %d", exit)
	}
}

func TestServe(t *testing.T) {
	var stdoutBuf, stderrBuf bytes.Buffer
	in := "{\"command\":\"open\"}\n{\"command\":\"list\"}\n"
	exit := cli.Run(strings.NewReader(in), &stdoutBuf, &stderrBuf, []string{"slicedoctor", "serve"})
	if exit != cli.ExitOK {
		t.Fatalf("serve expected clean exit, got %d: %s", exit, stderrBuf.String())
	}
	replies := strings.Split(strings.TrimSpace(stdoutBuf.String()), "\n")
	if len(replies) != 2 || !strings.Contains(replies[1], `"shortName":"extract"`) {
		t.Fatalf("serve expected open and list replies, got:\n%s", stdoutBuf.String())
	}
}
