package ast

import (
	"strings"
	"testing"
)

func TestExprString(t *testing.T) {
	x := &Ident{Name: "x"}
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"ident", x, "x"},
		{"long literal", &IntLit{Value: 7, Long: true}, "7L"},
		{"float literal", &FloatLit{Value: 1.5}, "1.5f"},
		{"string", &StringLit{Value: "a\"b"}, `"a\"b"`},
		{"call", &Call{X: x, Name: "f", Args: []Expr{&IntLit{Value: 1}, &NullLit{}}}, "x.f(1, null)"},
		{"super call", &Call{Name: "g", Super: true}, "super.g()"},
		{"index", &Index{X: x, Index: &IntLit{Value: 2}}, "x[2]"},
		{"new array", &NewArray{Elem: &TypeRef{Name: "int"}, Dims: []Expr{&IntLit{Value: 3}}, ExtraDims: 1}, "new int[3][]"},
		{"assign", &Assign{Op: "+=", L: x, R: &IntLit{Value: 1}}, "(x += 1)"},
		{"cast", &Cast{Target: &TypeRef{Name: "String", Dims: 1}, X: x}, "((String[]) x)"},
		{"ptr fetch", &PtrFetch{X: x, Native: true}, "#&x"},
		{"native string", &NativeString{Unicode: true}, "#unicode(...)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExprString(tt.expr); got != tt.want {
				t.Errorf("ExprString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDebugString(t *testing.T) {
	u := &Unit{
		Package: "demo",
		Imports: []*Import{{Path: "lib.yaml"}},
		Classes: []*ClassDecl{{
			Name:   "Foo",
			Fields: []*FieldDecl{{Name: "n", Type: &TypeRef{Name: "int"}, Static: true}},
			Methods: []*MethodDecl{{
				Name:   "run",
				Return: &TypeRef{Name: "void"},
				Lang:   "c",
				Body: &NativeCode{Parts: []NativePart{
					&NativeText{Text: "int a = "},
					&HostExpr{X: &Ident{Name: "n"}},
					&HostStmts{Stmts: []Stmt{&ReturnStmt{}}},
				}},
			}},
		}},
	}
	got := DebugString(u)
	for _, want := range []string{
		"Unit package demo",
		`Import: "lib.yaml"`,
		"Class Foo",
		"Field static int n",
		`Native "c" void run()`,
		"HostExpr n",
		"Return",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("DebugString() missing %q in:\n%s", want, got)
		}
	}
}

func TestNativeMethods(t *testing.T) {
	c := &ClassDecl{Methods: []*MethodDecl{
		{Name: "a"},
		{Name: "b", Body: &NativeCode{}},
	}}
	ms := c.NativeMethods()
	if len(ms) != 1 || ms[0].Name != "b" {
		t.Fatalf("NativeMethods() = %v", ms)
	}
}
