package codegen

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"janet/internal/diag"
	"janet/internal/parser"
	"janet/internal/semantic"
	"janet/internal/types"
)

// helper: parse source, run semantic analysis, return the analysed unit.
func mustAnalyze(t *testing.T, src string) *semantic.Unit {
	t.Helper()
	unit, errs := parser.Parse("Test.janet", src)
	if len(errs) > 0 {
		t.Fatalf("parse errors:\n%s", errs.Error())
	}
	res, diags := semantic.Analyze(unit, types.NewUniverse())
	if diags.HasErrors() {
		t.Fatalf("semantic errors:\n%s", diags.Error())
	}
	return res
}

// helper: lower the native method name and return its body.
func mustLower(t *testing.T, src, name string) (string, *lowerer) {
	t.Helper()
	res := mustAnalyze(t, src)
	for _, c := range res.Classes {
		for _, nm := range c.Natives {
			if nm.Decl.Name != name {
				continue
			}
			l := newLowerer(res.AST, nm.Decl, nm.Usage, false)
			body, err := l.lowerBody()
			if err != nil {
				t.Fatalf("lowering %s: %v", name, err)
			}
			return body, l
		}
	}
	t.Fatalf("no native method %s", name)
	return "", nil
}

func fixedOptions() *Options {
	return &Options{
		Language:        "c",
		TimestampFormat: "%Y-%m-%d %H:%M:%S",
		Now:             func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) },
	}
}

func fileNamed(t *testing.T, files []*File, name string) string {
	t.Helper()
	for _, f := range files {
		if f.Name == name {
			return string(f.Data)
		}
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	t.Fatalf("no file %s among %v", name, names)
	return ""
}

// inOrder fails unless every part occurs in text, each after the previous.
func inOrder(t *testing.T, text string, parts ...string) {
	t.Helper()
	at := 0
	for _, p := range parts {
		i := strings.Index(text[at:], p)
		if i < 0 {
			t.Fatalf("%q not found after offset %d in:\n%s", p, at, text)
		}
		at += i + len(p)
	}
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

const calcSource = `
package demo;

class Calc {
	native "c" static int add(int a, int b) {
		return ` + "`a`" + ` + ` + "`b`" + `;
	}
}
`

func TestGenerateFileNames(t *testing.T) {
	files, err := Generate(mustAnalyze(t, calcSource), fixedOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"Calc.c", "CalcImpl.c"}, names); diff != "" {
		t.Errorf("file names mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateStubFile(t *testing.T) {
	files, err := Generate(mustAnalyze(t, calcSource), fixedOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	stub := fileNamed(t, files, "Calc.c")

	header := "/**\n * file:      Calc.c\n * basefile:  Test.janet\n * generated: 2024-03-09 14:05:00\n */\n\n#include <janet_base.h>\n\n"
	if !strings.HasPrefix(stub, header) {
		t.Errorf("header mismatch:\n%s", stub)
	}
	inOrder(t, stub,
		"static _janet_cls _janet_depclasses[] = {\n   { 0, 1, \"demo/Calc\" },\n};",
		"#define _janet_depfields ((void*)0)",
		"#define _janet_depmethods ((void*)0)",
		"#define _janet_depstrings ((void*)0)",
		"Java_demo_Calc_janetClassInit_00024(",
		"_JANET_LINK(_janet_depclasses, 1, _janet_depfields, 0, _janet_depmethods, 0, _janet_depstrings, 0);",
		"Java_demo_Calc_janetClassFinalize_00024(",
		"_JANET_UNLINK(_janet_depclasses, 1);",
		"jint Janet_demo_Calc_add(\n        JNIEnv*,\n        jclass,\n        jint,\n        jint);",
		"JNIEXPORT jint JNICALL\nJava_demo_Calc_add(\n        JNIEnv* _janet_jnienv,\n        jclass _janet_jthisclass,\n        jint _janet_arg_a,\n        jint _janet_arg_b)\n{",
		"    jint _janet_result;",
		"    _janet_result = Janet_demo_Calc_add(\n        _janet_jnienv,\n        _janet_jthisclass,\n        _janet_arg_a,\n        _janet_arg_b);",
		"    return _janet_result;\n}",
	)
	if strings.Contains(stub, "_janet_arrhtable") || strings.Contains(stub, "_janet_monitors") {
		t.Errorf("stub declares tables it does not use:\n%s", stub)
	}
}

func TestGenerateImplFile(t *testing.T) {
	files, err := Generate(mustAnalyze(t, calcSource), fixedOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	impl := fileNamed(t, files, "CalcImpl.c")
	inOrder(t, impl,
		" * file:      CalcImpl.c\n",
		"#include <janet.h>\n",
		"\njint Janet_demo_Calc_add(\n    JNIEnv* _janet_jnienv,\n    jclass _janet_jthisclass,\n    jint _janet_arg_a,\n    jint _janet_arg_b)\n{",
		"return _janet_arg_a + _janet_arg_b;",
		"\n}\n",
	)
	if strings.Contains(impl, "extern") {
		t.Errorf("C output must not carry a linkage prefix:\n%s", impl)
	}
}

func TestGenerateCPlusPlus(t *testing.T) {
	res := mustAnalyze(t, `
class Widget {
	native "C++" { static int helper(void) { return 1; } }
	native "C++" void run() { helper(); }
}
`)
	files, err := Generate(res, fixedOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	impl := fileNamed(t, files, "WidgetImpl.cc")
	inOrder(t, impl,
		"static int helper(void) { return 1; }",
		"\nextern \"C\"\nvoid Janet_Widget_run(\n    JNIEnv* _janet_jnienv,\n    jobject _janet_jthis)",
	)
}

func TestGenerateDefaultLanguage(t *testing.T) {
	res := mustAnalyze(t, `
class Plain {
	native void run() { }
}
`)
	opts := fixedOptions()
	opts.Language = "cplusplus"
	files, err := Generate(res, opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	fileNamed(t, files, "PlainImpl.cc")
}

func TestGenerateUnknownLanguage(t *testing.T) {
	res := mustAnalyze(t, `
class Odd {
	native "fortran" void run() { }
}
`)
	files, err := Generate(res, fixedOptions())
	if err == nil {
		t.Fatalf("expected an error, got files %v", files)
	}
	if !strings.Contains(err.Error(), `unsupported native language "fortran"`) {
		t.Errorf("error = %v", err)
	}
}

func TestGenerateLoweringError(t *testing.T) {
	res := mustAnalyze(t, `
class Bad {
	native "c" void ok() { }
	native "c" void run(int x) { use(`+"`&x`"+`); }
}
`)
	files, err := Generate(res, fixedOptions())
	if err == nil {
		t.Fatalf("expected a lowering error, got %d files", len(files))
	}
	list, ok := err.(diag.List)
	if !ok || len(list) != 1 {
		t.Fatalf("error = %#v, want one diagnostic", err)
	}
	d := list[0]
	if d.Phase != diag.PhaseLower || d.File != "Test.janet" || d.Pos.Line != 4 {
		t.Errorf("diagnostic = %+v", d)
	}
	if !strings.Contains(d.Message, "address fetch needs a primitive array or a String, found int") {
		t.Errorf("message = %q", d.Message)
	}
	if files != nil {
		t.Errorf("files returned despite the error")
	}
}

func TestGenerateDependencyLoads(t *testing.T) {
	res := mustAnalyze(t, `
class Counter {
	int count;
	int next();
	native "c" void bump() {
		`+"`count += next();`"+`
		`+"`String s = \"hi\";`"+`
	}
}
`)
	opts := fixedOptions()
	files, err := Generate(res, opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	stub := fileNamed(t, files, "Counter.c")
	inOrder(t, stub,
		"static _janet_fld _janet_depfields[] = {\n   { 0, &_janet_depclasses[0], 0, \"count\", \"I\" },\n};",
		"static _janet_mth _janet_depmethods[] = {\n   { 0, &_janet_depclasses[0], 0, \"next\", \"()I\" },\n};",
		"static _janet_str _janet_depstrings[] = {\n   { 0, \"hi\" },\n};",
		"    _JANET_LOAD_FIELD_V(0);\n",
		"    _JANET_LOAD_METHOD_V(0);\n",
		"    _JANET_LOAD_STRING_V(0);\n",
		"    Janet_Counter_bump(\n        _janet_jnienv,\n        _janet_depclasses,\n        _janet_depfields,\n        _janet_depmethods,\n        _janet_depstrings,\n        _janet_jthis);",
	)
	impl := fileNamed(t, files, "CounterImpl.c")
	inOrder(t, impl, "void Janet_Counter_bump(\n    JNIEnv* _janet_jnienv,\n    _janet_cls* _janet_classes,\n    _janet_fld* _janet_fields,\n    _janet_mth* _janet_methods,\n    _janet_str* _janet_strings,\n    jobject _janet_jthis)")
}

func TestGenerateSourceComments(t *testing.T) {
	res := mustAnalyze(t, `
class Counter {
	int count;
	native "c" int get() {
		return `+"`count`"+`;
	}
}
`)
	opts := fixedOptions()
	opts.Comments = true
	files, err := Generate(res, opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	stub := fileNamed(t, files, "Counter.c")
	if !strings.Contains(stub, "_JANET_LOAD_FIELD_N(0); /* Counter/count I */") {
		t.Errorf("missing load comment:\n%s", stub)
	}
	impl := fileNamed(t, files, "CounterImpl.c")
	if !strings.Contains(impl, "/* beg: count */ ") || !strings.Contains(impl, " /* end: count */") {
		t.Errorf("missing source comments:\n%s", impl)
	}
}

func TestGeneratePinnedArrays(t *testing.T) {
	res := mustAnalyze(t, `
class Buf {
	native "c" void clear(int[] a) { memset(`+"`&a`"+`, 0, 4); }
}
`)
	files, err := Generate(res, fixedOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	stub := fileNamed(t, files, "Buf.c")
	inOrder(t, stub,
		"    _janet_arr _janet_arrhtdata[19] = { { 0, 0, 0, 0, 0, 0, 0, 0, 0 } };\n",
		"    _janet_arrHashTable _janet_arrhtable = { 4, 0, 14, 0 };\n",
		"    _janet_arrhtable.data = _janet_arrhtdata;\n",
		"        &_janet_arrhtable,",
		"    _jh3_releaseHashTable(_janet_jnienv, &_janet_arrhtable);\n",
	)
	impl := fileNamed(t, files, "BufImpl.c")
	if !strings.Contains(impl, "    _janet_arrHashTable* _janet_arrhtable,\n    jobject _janet_jthis,\n    jintArray _janet_arg_a)") {
		t.Errorf("impl header:\n%s", impl)
	}
}

func TestGenerateMonitors(t *testing.T) {
	res := mustAnalyze(t, `
class Locks {
	native "c" void run() {
		`+"`synchronized (this) { }`"+`
		`+"`synchronized (this) { }`"+`
	}
}
`)
	files, err := Generate(res, fixedOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	stub := fileNamed(t, files, "Locks.c")
	inOrder(t, stub,
		"    jobject _janet_monitors[2] = { 0 };\n",
		"        _janet_monitors,\n        _janet_jthis);",
		"    _jm1_releaseMonitors(_janet_jnienv, _janet_monitors, 2);\n",
	)
}

func TestGenerateSkipsClassesWithoutNatives(t *testing.T) {
	res := mustAnalyze(t, `
class Pure {
	int x;
}
`)
	files, err := Generate(res, fixedOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files, want none", len(files))
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir() + "/out"
	files := []*File{{Name: "A.c", Data: []byte("a")}, {Name: "AImpl.c", Data: []byte("bb")}}
	paths, err := WriteFiles(dir, files)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if diff := cmp.Diff([]string{dir + "/A.c", dir + "/AImpl.c"}, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Languages
// ---------------------------------------------------------------------------

func TestLookupLanguage(t *testing.T) {
	tests := []struct {
		name string
		want string
		ext  string
	}{
		{"c", "c", ".c"},
		{"C", "c", ".c"},
		{"C++", "cplusplus", ".cc"},
		{"cplusplus", "cplusplus", ".cc"},
	}
	for _, tt := range tests {
		lang, err := LookupLanguage(tt.name)
		if err != nil {
			t.Errorf("LookupLanguage(%q): %v", tt.name, err)
			continue
		}
		if lang.Name != tt.want || lang.ImplExt != tt.ext {
			t.Errorf("LookupLanguage(%q) = %+v", tt.name, lang)
		}
	}
	if _, err := LookupLanguage("pascal"); err == nil {
		t.Errorf("pascal accepted")
	}
}
