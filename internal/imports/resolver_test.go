package imports

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"janet/internal/ast"
	"janet/internal/types"
)

// writeFiles creates the given files under a temp dir and returns it.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func unitIn(dir string, imports ...string) *ast.Unit {
	u := &ast.Unit{File: filepath.Join(dir, "main.janet")}
	for i, path := range imports {
		u.Imports = append(u.Imports, &ast.Import{Path: path, Span: ast.Span{Pos: ast.Position{Line: i + 1, Column: 1}}})
	}
	return u
}

// ---------------------------------------------------------------------------
// Loading and defining
// ---------------------------------------------------------------------------

func TestResolveDefinesClasses(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"io.yaml": `
imports: [base.yaml]
classes:
  - name: java.io.IOException
    super: java.lang.Exception
    constructors:
      - params: [String]
  - name: java.io.File
    interfaces: [java.io.Serializable]
    fields:
      - {name: separator, type: String, static: true, final: true}
    methods:
      - {name: delete, returns: boolean, throws: [java.io.IOException]}
      - {name: list, returns: "String[]"}
      - {name: create, returns: java.io.File, params: [String], static: true}
    constructors:
      - params: [String]
`,
		"base.yaml": `
classes:
  - name: java.lang.String
    methods:
      - {name: charAt, returns: char, params: [int]}
`,
	})
	u := types.NewUniverse()
	r := NewResolver(u, nil)
	if diags := r.Resolve(unitIn(dir, "io.yaml")); len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}

	var loaded []string
	for _, lib := range r.Libraries() {
		loaded = append(loaded, filepath.Base(lib.Path))
	}
	if diff := cmp.Diff([]string{"base.yaml", "io.yaml"}, loaded); diff != "" {
		t.Errorf("load order mismatch (-want +got):\n%s", diff)
	}

	file := u.Lookup("java.io.File")
	if file == nil {
		t.Fatal("java.io.File not defined")
	}
	if file.Super != u.Object {
		t.Errorf("File super = %v, want Object", file.Super)
	}
	if f := file.LookupField("separator"); f == nil || !f.Static || f.Type != u.String.Type() {
		t.Errorf("separator field: %+v", f)
	}
	del := file.MethodsNamed("delete")
	if len(del) != 1 || len(del[0].Throws) != 1 || del[0].Throws[0].Name != "java.io.IOException" {
		t.Errorf("delete: %+v", del)
	}
	if got := file.MethodsNamed("list")[0].Return; got != types.ArrayType(u.String.Type(), 1) {
		t.Errorf("list returns %s", got)
	}
	if len(file.Ctors) != 1 || file.Ctors[0].Descriptor() != "(Ljava/lang/String;)V" {
		t.Errorf("ctors: %+v", file.Ctors)
	}
	if !u.IsChecked(u.Lookup("java.io.IOException")) {
		t.Error("IOException must be checked")
	}
	if len(u.String.MethodsNamed("charAt")) != 1 {
		t.Error("built-in String was not extended")
	}
}

func TestResolveSharedImportLoadedOnce(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.yaml":      "imports: [common.yaml]\n",
		"b.yaml":      "imports: [common.yaml]\n",
		"common.yaml": "classes:\n  - name: demo.Shared\n",
	})
	u := types.NewUniverse()
	r := NewResolver(u, nil)
	if diags := r.Resolve(unitIn(dir, "a.yaml", "b.yaml")); len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(r.Libraries()) != 3 {
		t.Errorf("expected 3 libraries, got %d", len(r.Libraries()))
	}
	if u.Lookup("demo.Shared") == nil {
		t.Error("demo.Shared not defined")
	}
}

func TestResolveSearchPaths(t *testing.T) {
	lib := writeFiles(t, map[string]string{"sys/io.yaml": "classes:\n  - name: sys.Io\n"})
	src := t.TempDir()
	u := types.NewUniverse()
	r := NewResolver(u, []string{lib})
	if diags := r.Resolve(unitIn(src, "sys/io.yaml")); len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if u.Lookup("sys.Io") == nil {
		t.Error("class from search path not defined")
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		imp   string
		want  string
	}{
		{
			name:  "missing file",
			files: map[string]string{},
			imp:   "nope.yaml",
			want:  `class library not found: "nope.yaml"`,
		},
		{
			name: "cycle",
			files: map[string]string{
				"a.yaml": "imports: [b.yaml]\n",
				"b.yaml": "imports: [a.yaml]\n",
			},
			imp:  "a.yaml",
			want: "import cycle: a.yaml -> b.yaml -> a.yaml",
		},
		{
			name: "duplicate class",
			files: map[string]string{
				"a.yaml": "imports: [b.yaml]\nclasses:\n  - name: x.Dup\n",
				"b.yaml": "classes:\n  - name: x.Dup\n",
			},
			imp:  "a.yaml",
			want: "class x.Dup is already defined in b.yaml",
		},
		{
			name:  "unknown field",
			files: map[string]string{"a.yaml": "classes:\n  - name: x.A\n    colour: red\n"},
			imp:   "a.yaml",
			want:  "field colour not found",
		},
		{
			name:  "unknown type",
			files: map[string]string{"a.yaml": "classes:\n  - name: x.A\n    methods:\n      - {name: f, returns: Missing}\n"},
			imp:   "a.yaml",
			want:  "unknown type Missing",
		},
		{
			name:  "not throwable",
			files: map[string]string{"a.yaml": "classes:\n  - name: x.A\n    methods:\n      - {name: f, throws: [java.lang.String]}\n"},
			imp:   "a.yaml",
			want:  "java.lang.String is not throwable",
		},
		{
			name:  "final super",
			files: map[string]string{"a.yaml": "classes:\n  - name: x.A\n    super: java.lang.String\n"},
			imp:   "a.yaml",
			want:  "cannot extend final class",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, tt.files)
			r := NewResolver(types.NewUniverse(), nil)
			diags := r.Resolve(unitIn(dir, tt.imp))
			if !diags.HasErrors() {
				t.Fatal("expected errors")
			}
			if !strings.Contains(diags.Error(), tt.want) {
				t.Errorf("diagnostics %q do not mention %q", diags.Error(), tt.want)
			}
		})
	}
}

func TestDuplicateClassPosition(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.yaml": "classes:\n  - name: x.One\n  - name: x.One\n",
	})
	diags := NewResolver(types.NewUniverse(), nil).Resolve(unitIn(dir, "a.yaml"))
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic, got %v", diags)
	}
	if diags[0].Pos.Line != 3 {
		t.Errorf("duplicate reported at line %d, want 3", diags[0].Pos.Line)
	}
}
