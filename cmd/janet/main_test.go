package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const calcSource = `package demo;

class Calc {
	native static int add(int a, int b) {
		return ` + "`a + b`" + `;
	}
}
`

func writeInput(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no files", nil},
		{"unknown flag", []string{"-frobnicate", "a.janet"}},
		{"bad language", []string{"-lang", "fortran", "a.janet"}},
		{"bad log format", []string{"-log-format", "xml", "a.janet"}},
		{"missing config", []string{"-config", "does-not-exist.yaml", "a.janet"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != exitUsage {
				t.Errorf("exit code = %d, want %d; stderr:\n%s", code, exitUsage, stderr.String())
			}
		})
	}
}

func TestRunGeneratesFiles(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "Calc.janet", calcSource)
	out := filepath.Join(dir, "gen")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-o", out, "-lang", "C++", in}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d; stderr:\n%s", code, stderr.String())
	}
	for _, name := range []string{"Calc.c", "CalcImpl.cc"} {
		path := filepath.Join(out, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
		if !strings.Contains(stdout.String(), path) {
			t.Errorf("stdout does not list %s:\n%s", path, stdout.String())
		}
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	bad := writeInput(t, dir, "Bad.janet", "class Bad {\n\tnative void run() { `undefined();` }\n}\n")
	good := writeInput(t, dir, "Calc.janet", calcSource)
	out := filepath.Join(dir, "gen")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-o", out, bad, good}, &stdout, &stderr)
	if code != exitFail {
		t.Fatalf("exit code = %d, want %d", code, exitFail)
	}
	if !strings.Contains(stderr.String(), "Bad.janet:2:") {
		t.Errorf("diagnostic not rendered:\n%s", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(out, "CalcImpl.c")); err != nil {
		t.Errorf("good file was not generated: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "Bad.c")); err == nil {
		t.Errorf("output written for a failed file")
	}
}

func TestRunConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "Calc.janet", calcSource)
	out := filepath.Join(dir, "fromconfig")
	cfg := writeInput(t, dir, "janet.yaml", "output_dir: "+out+"\nlanguage: cplusplus\nsource_comments: true\n")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg, in}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code = %d; stderr:\n%s", code, stderr.String())
	}
	data, err := os.ReadFile(filepath.Join(out, "CalcImpl.cc"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "/* beg: a + b */") {
		t.Errorf("source comments missing:\n%s", data)
	}
}
