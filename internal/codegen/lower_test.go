package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"janet/internal/ast"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Reference model
// ---------------------------------------------------------------------------

func testFunction() *function {
	owner := &types.Class{Name: "p.A"}
	decl := &ast.MethodDecl{Name: "m", Method: &types.Method{Name: "m", Owner: owner, Return: types.VoidType}}
	return newFunction(decl, nil)
}

func TestRefClassificationIsMonotonic(t *testing.T) {
	fn := testFunction()
	r := fn.addVariable(newRef(types.NullType, prefixAux, ""))

	r.classify(refLocalVariable)
	r.classify(refMultiref)
	r.classify(refSimple)
	if r.class != refLocalVariable {
		t.Errorf("class = %s, want LOCAL_VARIABLE", r.class)
	}
	if fn.slots != 1 {
		t.Errorf("slots = %d, want 1", fn.slots)
	}
}

func TestRefPrimitiveStaysSimple(t *testing.T) {
	fn := testFunction()
	r := fn.addVariable(newRef(types.IntType, prefixAux, ""))
	r.classify(refLocalVariable)
	if r.class != refSimple || fn.slots != 0 {
		t.Errorf("class = %s, slots = %d", r.class, fn.slots)
	}
	if got := r.declaration(); got != "jint _janet_auxI_1 = 0;" {
		t.Errorf("declaration = %q", got)
	}
}

func TestRefRings(t *testing.T) {
	fn := testFunction()
	arr := types.ArrayType(types.IntType, 2)
	names := []string{
		fn.addVariable(newRef(types.IntType, prefixAux, "")).name(),
		fn.addVariable(newRef(types.IntType, prefixAux, "")).name(),
		fn.addVariable(newRef(arr, prefixVar, "x")).name(),
		fn.addVariable(newRef(arr, prefixVar, "x")).name(),
		fn.addVariable(newRef(types.NullType, prefixExc, "e")).name(),
	}
	want := []string{"_janet_auxI_1", "_janet_auxI_2", "_janet_varArrArrI_x", "_janet_varArrArrI_x0", "_janet_excObj_e"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestRefAssignAndRelease(t *testing.T) {
	fn := testFunction()
	r := fn.addVariable(newRef(types.NullType, prefixVar, "o"))

	if got := r.assignPrefix(false) + "v" + r.assignSuffix(false); got != "_JANET_ASSIGN_SIMPLE2SIMPLE(_janet_varObj_o, v)" {
		t.Errorf("simple assign = %q", got)
	}
	r.classify(refMultiref)
	if got := r.assignPrefix(true) + "v" + r.assignSuffix(true); got != "_JANET_ASSIGN_MULTI2MULTI(_janet_varObj_o, v)" {
		t.Errorf("multi assign = %q", got)
	}
	if got := r.use(false); got != "_JANET_DEREF(_janet_varObj_o)" {
		t.Errorf("use = %q", got)
	}
	r.classify(refLocalVariable)
	if got := r.release(); got != "_JANET_DEC_MULTIREF(_janet_varObj_o);" {
		t.Errorf("release = %q", got)
	}
}

func TestRefReleaseOfSimplePanics(t *testing.T) {
	fn := testFunction()
	r := fn.addVariable(newRef(types.NullType, prefixAux, ""))
	defer func() {
		p := recover()
		if p == nil {
			t.Fatalf("expected a panic")
		}
		if !strings.Contains(p.(error).Error(), "codegen: internal error") {
			t.Errorf("panic = %v", p)
		}
	}()
	r.release()
}

// ---------------------------------------------------------------------------
// Scope tracker
// ---------------------------------------------------------------------------

func TestScopeFinalizedTwicePanics(t *testing.T) {
	fn := testFunction()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	fn.root.finalCheck()
	fn.root.finalCheck()
}

func TestScopeShapes(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(s *scope)
		try      bool
		destruct bool
	}{
		{"quiet", func(s *scope) {}, false, false},
		{"local throw", func(s *scope) {
			s.throws.Add(&types.Class{Name: "E"})
			s.usesLocalExceptions = true
		}, true, false},
		{"release", func(s *scope) {
			s.throws.Add(&types.Class{Name: "E"})
			r := s.fn.addVariable(newRef(types.NullType, prefixVar, "v"))
			r.classify(refLocalVariable)
			s.own(r)
		}, true, true},
		{"monitor", func(s *scope) {
			s.abruptsUsed = true
			s.monitor = 0
		}, true, true},
		{"delegates", func(s *scope) {
			s.escapingChildren = 1
		}, false, false},
		{"forced", func(s *scope) {
			s.forced = true
		}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := testFunction()
			s := newScope(fn, fn.root)
			tt.setup(s)
			s.finalCheck()
			if s.requiresTry != tt.try || s.requiresDestruct != tt.destruct {
				t.Errorf("try=%v destruct=%v, want try=%v destruct=%v",
					s.requiresTry, s.requiresDestruct, tt.try, tt.destruct)
			}
		})
	}
}

func TestScopeDelegationReachesRoot(t *testing.T) {
	fn := testFunction()
	child := newScope(fn, fn.root)
	child.abruptsUsed = true
	child.finalCheck()
	if child.requiresTry {
		t.Errorf("child intercepts")
	}
	fn.root.finalCheck()
	if !fn.root.requiresTry {
		t.Errorf("root does not intercept the delegated completion")
	}
}

// cleanupImpliesGuard checks requiresDestruct => requiresTry over every
// scope of l.
func cleanupImpliesGuard(t *testing.T, l *lowerer) {
	t.Helper()
	for _, s := range l.scopes {
		if s.requiresDestruct && !s.requiresTry {
			t.Errorf("scope with destruct but no try")
		}
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestTwoPlainCalls(t *testing.T) {
	body, l := mustLower(t, `
class S {
	void f();
	void g();
	native "c" void run() { `+"`f(); g();`"+` }
}
`, "run")
	if strings.Contains(body, "_JANET_TRY") || strings.Contains(body, "_JANET_DESTRUCT") {
		t.Errorf("unexpected interception region:\n%s", body)
	}
	if got := strings.Count(body, "(*_janet_jnienv)->CallVoidMethod(_janet_jnienv, _janet_jthis, _janet_methods["); got != 2 {
		t.Errorf("got %d calls, want 2:\n%s", got, body)
	}
	if got := strings.Count(body, "_JANET_GLOBAL_HANDLE_EXCEPTION_V()"); got != 2 {
		t.Errorf("got %d exception checks, want 2:\n%s", got, body)
	}
	if l.fn.root.requiresTry || l.fn.root.requiresDestruct {
		t.Errorf("root: try=%v destruct=%v", l.fn.root.requiresTry, l.fn.root.requiresDestruct)
	}
}

func TestLocalReleasedOnce(t *testing.T) {
	body, l := mustLower(t, `
class R {
	void risky() throws Exception;
	native "c" void run() throws Exception {
		`+"`RuntimeException e = new RuntimeException(); risky();`"+`
	}
}
`, "run")
	const release = "_JANET_DEC_MULTIREF(_janet_varObj_e);"
	if got := strings.Count(body, release); got != 1 {
		t.Fatalf("got %d releases, want 1:\n%s", got, body)
	}
	inOrder(t, body,
		"_JANET_DECLARE_MULTIREFS(2);",
		"_JANET_DECLARE_LOCAL_ABRUPT_STATEMENTS_V;",
		"_janet_multiref *volatile _janet_varObj_e = (void*)0;",
		"_JANET_EXCEPTION_CONTEXT_BEGIN",
		"_JANET_TRY {",
		"_JANET_ASSIGN_MULTI2LOCV(_janet_varObj_e, ",
		"JNI_ALLOC_OBJECT(_janet_classes[",
		"CallNonvirtualVoidMethod(",
		"CallVoidMethod(",
		"} _JANET_DESTRUCT {",
		release,
		"} _JANET_END_TRY;",
		"_JANET_EXCEPTION_CONTEXT_END_GLOBAL_V",
	)
	if strings.Contains(body, "_JANET_EXCEPTION_CONTEXT_END_GLOBAL_V;") {
		t.Errorf("context end carries a second semicolon")
	}
	cleanupImpliesGuard(t, l)
}

func TestSynchronizedMonitor(t *testing.T) {
	body, l := mustLower(t, `
class L {
	void risky() throws Exception;
	native "c" void run(Object o) throws Exception {
		`+"`synchronized (o) { risky(); }`"+`
	}
}
`, "run")
	inOrder(t, body,
		"_JANET_TRY {",
		`_JANET_LOCAL_ENSURE_NOT_NULL(_janet_arg_o, "trying to synchronize on a null reference");`,
		"_JANET_MONITOR_ENTER(0, _janet_arg_o);",
		"CallVoidMethod(",
		"_JANET_LOCAL_HANDLE_EXCEPTION()",
		"} _JANET_DESTRUCT {",
		"_JANET_MONITOR_EXIT(0);",
		"} _JANET_END_TRY;",
	)
	if got := strings.Count(body, "_janet_arg_o"); got != 2 {
		t.Errorf("lock read %d times, want 2 (check and enter):\n%s", got, body)
	}
	if got := strings.Count(body, "_JANET_MONITOR_EXIT"); got != 1 {
		t.Errorf("got %d monitor exits, want 1", got)
	}
	cleanupImpliesGuard(t, l)
}

func TestTryFinallyWithoutReleases(t *testing.T) {
	body, l := mustLower(t, `
class T {
	void risky() throws Exception;
	void cleanup();
	native "c" void run() throws Exception {
		`+"`try { risky(); } finally { cleanup(); }`"+`
	}
}
`, "run")
	var try *scope
	for n, s := range l.scopes {
		if _, ok := n.(*ast.TryStmt); ok {
			try = s
		}
	}
	if try == nil {
		t.Fatalf("no scope for the try statement")
	}
	if !try.requiresTry || try.requiresDestruct {
		t.Errorf("try scope: try=%v destruct=%v, want true/false", try.requiresTry, try.requiresDestruct)
	}
	inOrder(t, body,
		"_JANET_TRY {",
		"CallVoidMethod(",
		"} _JANET_FINALLY {",
		"CallVoidMethod(",
		"} _JANET_END_TRY;",
		"_JANET_EXCEPTION_CONTEXT_END_GLOBAL_V",
	)
	if strings.Contains(body, "_JANET_DESTRUCT") {
		t.Errorf("unexpected destruct section:\n%s", body)
	}
	if got := strings.Count(body, "_JANET_LOCAL_HANDLE_EXCEPTION()"); got != 2 {
		t.Errorf("got %d local checks, want 2:\n%s", got, body)
	}
}

func TestCatchClause(t *testing.T) {
	body, _ := mustLower(t, `
class C {
	void risky() throws Exception;
	native "c" void run() {
		`+"`try { risky(); } catch (Exception e) { }`"+`
	}
}
`, "run")
	inOrder(t, body,
		"_JANET_TRY {",
		"} _JANET_CATCH_MULTIREF(_janet_classes[",
		"_janet_excObj_e) {",
		"_JANET_DEC_MULTIREF(_janet_excObj_e);",
		"} _JANET_END_TRY;",
		"_JANET_EXCEPTION_CONTEXT_END_GLOBAL_V",
	)
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func TestIntegerDivision(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		expr string
		want string
	}{
		{"int zero literal", "int", "x / 0",
			"(_JANET_LOCAL_ENSURE_DIVISOR_NOT_ZERO(((jint)0)), ((((jint)0)) == -1 ? ((jint)(0u - (unsigned int)(_janet_arg_x))) : (_janet_arg_x) / (((jint)0))))"},
		{"int", "int", "x / y",
			"(_JANET_LOCAL_ENSURE_DIVISOR_NOT_ZERO(_janet_arg_y), ((_janet_arg_y) == -1 ? ((jint)(0u - (unsigned int)(_janet_arg_x))) : (_janet_arg_x) / (_janet_arg_y)))"},
		{"long", "long", "x / y",
			"(_JANET_LOCAL_ENSURE_DIVISOR_NOT_ZERO(_janet_arg_y), ((_janet_arg_y) == -1 ? ((jlong)(0ull - (unsigned long long)(_janet_arg_x))) : (_janet_arg_x) / (_janet_arg_y)))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := mustLower(t, `
class D {
	native "c" `+tt.typ+` run(`+tt.typ+` x, `+tt.typ+` y) { return `+"`"+tt.expr+"`"+`; }
}
`, "run")
			if !strings.Contains(body, tt.want) {
				t.Errorf("want %s in:\n%s", tt.want, body)
			}
			if strings.Contains(body, "_JANET_INTEGER_DIVISION") {
				t.Errorf("unguarded MIN / -1:\n%s", body)
			}
			inOrder(t, body,
				"_JANET_DECLARE_LOCAL_ABRUPT_STATEMENTS(j"+tt.typ+");",
				"_JANET_TRY {",
				"_JANET_LOCAL_ENSURE_DIVISOR_NOT_ZERO(",
			)
		})
	}
}

// A dividend with side effects runs before the divisor is checked.
func TestDividendRunsBeforeDivisorCheck(t *testing.T) {
	body, _ := mustLower(t, `
class D {
	int next();
	native "c" int run(int y) { return `+"`next() / y`"+`; }
}
`, "run")
	if got := strings.Count(body, "CallIntMethod"); got != 1 {
		t.Errorf("CallIntMethod appears %d times, want 1:\n%s", got, body)
	}
	inOrder(t, body, "CallIntMethod", "_JANET_LOCAL_ENSURE_DIVISOR_NOT_ZERO(_janet_arg_y)")
}

func TestOperatorSpelling(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"x % y", "(_JANET_LOCAL_ENSURE_DIVISOR_NOT_ZERO(_janet_arg_y), ((_janet_arg_y) == -1 ? 0 : (_janet_arg_x) % (_janet_arg_y)))"},
		{"x >>> 3", "((jint)((unsigned int)_janet_arg_x >> (((jint)3) & 0x1f)))"},
		{"x << y", "(_janet_arg_x << (_janet_arg_y & 0x1f))"},
		{"x - y", "(_janet_arg_x - _janet_arg_y)"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			body, _ := mustLower(t, `
class O {
	native "c" int run(int x, int y) { return `+"`"+tt.expr+"`"+`; }
}
`, "run")
			if !strings.Contains(body, tt.want) {
				t.Errorf("want %s in:\n%s", tt.want, body)
			}
		})
	}
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		x    ast.Expr
		want string
	}{
		{&ast.IntLit{Value: 42}, "((jint)42)"},
		{&ast.IntLit{Value: -2147483648}, "((jint)(-2147483647 - 1))"},
		{&ast.IntLit{Value: 7, Long: true}, "((jlong)7LL)"},
		{&ast.FloatLit{Value: 1.5, Double: true}, "((jdouble)1.5)"},
		{&ast.FloatLit{Value: 2}, "((jfloat)2.0)"},
		{&ast.CharLit{Value: 'A'}, "((jchar)0x41)"},
		{&ast.BoolLit{Value: true}, "((jboolean)JNI_TRUE)"},
		{&ast.NullLit{}, "((jobject)0)"},
	}
	for _, tt := range tests {
		if got := literal(tt.x); got != tt.want {
			t.Errorf("literal(%#v) = %q, want %q", tt.x, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Access and invocation
// ---------------------------------------------------------------------------

func TestCallNullCheckFollowsArguments(t *testing.T) {
	body, _ := mustLower(t, `
class P {
	int size(int x);
	native "c" int run(P p, int a) { return `+"`p.size(a)`"+`; }
}
`, "run")
	inOrder(t, body,
		`_JANET_LOCAL_ENSURE_NOT_NULL(_janet_arg_p, "trying to invoke method size(int) on a null target reference")`,
		"_janet_auxI_1 = (*_janet_jnienv)->CallIntMethod(_janet_jnienv, _janet_arg_p, _janet_methods[0].id, _janet_arg_a)",
		"_JANET_LOCAL_HANDLE_EXCEPTION()",
	)
	if !strings.Contains(body, "jint _janet_auxI_1 = 0;") {
		t.Errorf("missing temporary declaration:\n%s", body)
	}
}

func TestCompoundFieldAssignmentReadsOnce(t *testing.T) {
	body, _ := mustLower(t, `
class Counter {
	int count;
	int next();
	native "c" void bump() { `+"`count += next();`"+` }
}
`, "bump")
	for _, s := range []string{"GetIntField", "SetIntField", "CallIntMethod"} {
		if got := strings.Count(body, s); got != 1 {
			t.Errorf("%s appears %d times, want 1:\n%s", s, got, body)
		}
	}
	inOrder(t, body, "GetIntField", "CallIntMethod", "SetIntField")
}

func TestPrimitiveArrayPointer(t *testing.T) {
	body, l := mustLower(t, `
class Buf {
	native "c" void clear(int[] a) { memset(`+"`&a`"+`, 0, 4); }
}
`, "clear")
	inOrder(t, body,
		"_JANET_DECLARE_MULTIREFS(1);",
		"_janet_multiref *volatile _janet_argArrI_a = (void*)0;",
		"_JANET_ASSIGN_SIMPLE2LOCV(_janet_argArrI_a, _janet_arg_a);",
		"_JANET_TRY {",
		"memset(",
		`_JANET_LOCAL_ENSURE_NOT_NULL(_JANET_DEREF(_janet_argArrI_a), "trying to fetch the address of a null reference")`,
		"(jint*)_JANET_ARRAY_GET_JPTR(_janet_argArrI_a, I)",
		"} _JANET_DESTRUCT {",
		"_JANET_DEC_MULTIREF(_janet_argArrI_a);",
	)
	cleanupImpliesGuard(t, l)
}

func TestThrowAndReturn(t *testing.T) {
	body, _ := mustLower(t, `
class X {
	native "c" int run(RuntimeException r, int v) {
		`+"`throw r;`"+`
		`+"`return v;`"+`
	}
}
`, "run")
	inOrder(t, body,
		`do { if (!(_janet_arg_r)) _JANET_THROW_GLOBAL(_JANET_NEW_EXCEPTION(_janet_jnienv, _JANET_EXC_NULL_POINTER, _JANET__FILE__, _JANET__LINE__, "trying to throw a null exception"), 0); _JANET_THROW_GLOBAL(_janet_arg_r, 0); } while(0);`,
		"do { _JANET_RETURN_GLOBAL_0(_janet_arg_v); } while(0);",
	)
	if strings.Contains(body, "_JANET_TRY") {
		t.Errorf("explicit completions alone opened a region:\n%s", body)
	}
}

func TestThrowFromVoidMethod(t *testing.T) {
	body, _ := mustLower(t, `
class X {
	native "c" void run(RuntimeException r) { `+"`throw r;`"+` }
}
`, "run")
	inOrder(t, body,
		`if (!(_janet_arg_r)) _JANET_THROW_GLOBAL(_JANET_NEW_EXCEPTION(`,
		`"trying to throw a null exception"), );`,
		"_JANET_THROW_GLOBAL(_janet_arg_r, );",
	)
}

// ---------------------------------------------------------------------------
// Native expressions and evaluation order
// ---------------------------------------------------------------------------

func TestNativeExpressionStatement(t *testing.T) {
	body, _ := mustLower(t, `
class N {
	native "c" void run() { `+"`#(puts(\"hello\"));`"+` }
}
`, "run")
	if got := strings.Count(body, `puts("hello")`); got != 1 {
		t.Errorf(`puts("hello") appears %d times, want 1:\n%s`, got, body)
	}
}

func TestNativeExpressionValue(t *testing.T) {
	body, _ := mustLower(t, `
class N {
	native "c" int run() { `+"`return #(abs(-3));`"+` }
}
`, "run")
	if got := strings.Count(body, "abs(-3)"); got != 1 {
		t.Errorf("abs(-3) appears %d times, want 1:\n%s", got, body)
	}
}

// An argument that reassigns an earlier operand must not change the value
// already passed for it.
func TestArgumentReassignsEarlierOperand(t *testing.T) {
	body, _ := mustLower(t, `
class F {
	void f(int a, int b);
	native "c" void run(int x) { `+"`f(x, x = 5);`"+` }
}
`, "run")
	inOrder(t, body,
		"_janet_auxI_1 = ",
		"((jint)5)",
		"_janet_methods[0].id, _janet_auxI_1, ",
	)
	if got := strings.Count(body, "CallVoidMethod"); got != 1 {
		t.Errorf("CallVoidMethod appears %d times, want 1:\n%s", got, body)
	}
}

func TestMangle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"demo.My_Class", "demo_My_1Class"},
		{"[I", "_3I"},
		{"Ljava/lang/String;", "Ljava_lang_String_2"},
		{"janetClassInit$", "janetClassInit_00024"},
		{"café", "caf_000e9"},
	}
	for _, tt := range tests {
		if got := mangle(tt.in); got != tt.want {
			t.Errorf("mangle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSymbolOverloads(t *testing.T) {
	u := types.NewUniverse()
	c := &types.Class{Name: "p.C"}
	one := c.AddMethod(&types.Method{Name: "m", Params: []*types.Type{types.IntType}, Return: types.VoidType, Native: true})
	two := c.AddMethod(&types.Method{Name: "m", Params: []*types.Type{u.String.Type(), types.ArrayType(types.ByteType, 1)}, Return: types.VoidType, Native: true})
	solo := c.AddMethod(&types.Method{Name: "n", Return: types.VoidType, Native: true})

	tests := []struct {
		m    *types.Method
		want string
	}{
		{one, "Java_p_C_m__I"},
		{two, "Java_p_C_m__Ljava_lang_String_2_3B"},
		{solo, "Java_p_C_n"},
	}
	for _, tt := range tests {
		if got := symbol("Java", tt.m); got != tt.want {
			t.Errorf("symbol = %q, want %q", got, tt.want)
		}
	}
}

func TestCString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{`a"b\c`, `a\"b\\c`},
		{"\x00", `\300\200`},
		{"é", `\303\251`},
		{"\n", `\012`},
	}
	for _, tt := range tests {
		if got := cString(tt.in); got != tt.want {
			t.Errorf("cString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
