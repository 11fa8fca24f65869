package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTypeNames(t *testing.T) {
	u := NewUniverse()
	tests := []struct {
		typ   *Type
		name  string
		sig   string
		abi   string
		infix string
	}{
		{IntType, "int", "I", "jint", "Int"},
		{BooleanType, "boolean", "Z", "jboolean", "Boolean"},
		{LongType, "long", "J", "jlong", "Long"},
		{VoidType, "void", "V", "void", "Void"},
		{u.String.Type(), "java.lang.String", "Ljava/lang/String;", "jstring", "Object"},
		{u.NullPointerException.Type(), "java.lang.NullPointerException", "Ljava/lang/NullPointerException;", "jthrowable", "Object"},
		{u.Object.Type(), "java.lang.Object", "Ljava/lang/Object;", "jobject", "Object"},
		{IntType.ArrayOf(), "int[]", "[I", "jintArray", "Object"},
		{ArrayType(u.String.Type(), 2), "java.lang.String[][]", "[[Ljava/lang/String;", "jobjectArray", "Object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.Name(); got != tt.name {
				t.Errorf("Name() = %q, want %q", got, tt.name)
			}
			if got := tt.typ.Signature(); got != tt.sig {
				t.Errorf("Signature() = %q, want %q", got, tt.sig)
			}
			if got := tt.typ.ABIName(); got != tt.abi {
				t.Errorf("ABIName() = %q, want %q", got, tt.abi)
			}
			if got := tt.typ.InfixName(); got != tt.infix {
				t.Errorf("InfixName() = %q, want %q", got, tt.infix)
			}
		})
	}
}

func TestArrayInterning(t *testing.T) {
	if IntType.ArrayOf() != IntType.ArrayOf() {
		t.Fatal("array types of the same element must be identical")
	}
	a := ArrayType(DoubleType, 3)
	if a.Depth() != 3 || a.BaseType() != DoubleType {
		t.Errorf("depth %d base %s", a.Depth(), a.BaseType())
	}
}

func TestDescriptor(t *testing.T) {
	u := NewUniverse()
	c := &Class{Name: "pkg.Foo", Super: u.Object}
	m := c.AddMethod(&Method{
		Name:   "bar",
		Params: []*Type{IntType, ByteType.ArrayOf(), u.String.Type()},
		Return: VoidType,
	})
	if got, want := m.Descriptor(), "(I[BLjava/lang/String;)V"; got != want {
		t.Errorf("Descriptor() = %q, want %q", got, want)
	}
	ctor := c.AddMethod(&Method{Ctor: true})
	if ctor.Name != "<init>" || ctor.Descriptor() != "()V" {
		t.Errorf("ctor = %s %s", ctor.Name, ctor.Descriptor())
	}
}

func TestAssignable(t *testing.T) {
	u := NewUniverse()
	tests := []struct {
		from, to *Type
		want     bool
	}{
		{ByteType, IntType, true},
		{IntType, ByteType, false},
		{CharType, ShortType, false},
		{LongType, FloatType, true},
		{BooleanType, IntType, false},
		{NullType, u.String.Type(), true},
		{NullType, IntType, false},
		{u.String.Type(), u.Object.Type(), true},
		{u.Object.Type(), u.String.Type(), false},
		{IntType.ArrayOf(), u.Object.Type(), true},
		{IntType.ArrayOf(), LongType.ArrayOf(), false},
		{u.String.Type().ArrayOf(), u.Object.Type().ArrayOf(), true},
		{u.NullPointerException.Type(), u.Throwable.Type(), true},
	}
	for _, tt := range tests {
		if got := u.AssignableTo(tt.from, tt.to); got != tt.want {
			t.Errorf("AssignableTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCast(t *testing.T) {
	u := NewUniverse()
	runnable := &Class{Name: "java.lang.Runnable", Interface: true}
	tests := []struct {
		from, to *Type
		want     CastKind
	}{
		{IntType, ByteType, CastCorrect},
		{DoubleType, IntType, CastCorrect},
		{BooleanType, IntType, CastIncorrect},
		{u.String.Type(), u.Object.Type(), CastCorrect},
		{u.Object.Type(), u.String.Type(), CastRTCheck},
		{u.String.Type(), u.Throwable.Type(), CastIncorrect},
		{u.Object.Type(), IntType.ArrayOf(), CastRTCheck},
		{u.Object.Type().ArrayOf(), u.String.Type().ArrayOf(), CastRTCheck},
		{IntType.ArrayOf(), LongType.ArrayOf(), CastIncorrect},
		{u.Throwable.Type(), runnable.Type(), CastRTCheck},
		{u.String.Type(), runnable.Type(), CastIncorrect},
		{IntType, u.Object.Type(), CastIncorrect},
	}
	for _, tt := range tests {
		if got := u.Cast(tt.from, tt.to); got != tt.want {
			t.Errorf("Cast(%s, %s) = %s, want %s", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPromotion(t *testing.T) {
	if BinaryPromote(ByteType, ShortType) != IntType {
		t.Error("byte+short should promote to int")
	}
	if BinaryPromote(IntType, LongType) != LongType {
		t.Error("int+long should promote to long")
	}
	if BinaryPromote(FloatType, LongType) != FloatType {
		t.Error("float+long should promote to float")
	}
	if UnaryPromote(CharType) != IntType || UnaryPromote(DoubleType) != DoubleType {
		t.Error("unary promotion")
	}
}

func TestCheckedExceptions(t *testing.T) {
	u := NewUniverse()
	if u.IsChecked(u.NullPointerException) {
		t.Error("NullPointerException must be unchecked")
	}
	if !u.IsChecked(u.Exception) {
		t.Error("Exception must be checked")
	}
	if u.IsChecked(u.Error) {
		t.Error("Error must be unchecked")
	}
}

func TestExceptionSet(t *testing.T) {
	u := NewUniverse()
	var s ExceptionSet
	if !s.Empty() {
		t.Fatal("zero set must be empty")
	}
	s.Add(u.NullPointerException)
	s.Add(u.ArithmeticException)
	s.Add(u.NullPointerException)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	names := func(cs []*Class) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.SimpleName())
		}
		return out
	}
	if diff := cmp.Diff([]string{"ArithmeticException", "NullPointerException"}, names(s.Classes())); diff != "" {
		t.Errorf("Classes() mismatch (-want +got):\n%s", diff)
	}
	rest := s.Without(u.RuntimeException)
	if !rest.Empty() {
		t.Errorf("catching RuntimeException should remove both, left %v", names(rest.Classes()))
	}
	rest = s.Without(u.ArithmeticException)
	if diff := cmp.Diff([]string{"NullPointerException"}, names(rest.Classes())); diff != "" {
		t.Errorf("Without mismatch (-want +got):\n%s", diff)
	}

	a, b := s, s
	a.Add(u.ClassCastException)
	b.Add(u.NegativeArraySizeException)
	if a.Contains(u.NegativeArraySizeException) || !a.Contains(u.ClassCastException) {
		t.Errorf("copies share additions: %v", names(a.Classes()))
	}
}

func TestMethodsNamed(t *testing.T) {
	u := NewUniverse()
	base := &Class{Name: "a.Base", Super: u.Object}
	base.AddMethod(&Method{Name: "run", Return: VoidType})
	base.AddMethod(&Method{Name: "run", Params: []*Type{IntType}, Return: VoidType})
	derived := &Class{Name: "a.Derived", Super: base}
	over := derived.AddMethod(&Method{Name: "run", Return: VoidType})

	ms := derived.MethodsNamed("run")
	if len(ms) != 2 {
		t.Fatalf("got %d methods, want 2", len(ms))
	}
	if ms[0] != over {
		t.Error("override should shadow the inherited method")
	}
	if !base.DeclaresOverloads("run") || derived.DeclaresOverloads("run") {
		t.Error("DeclaresOverloads")
	}
}

func TestParseType(t *testing.T) {
	u := NewUniverse()
	file := &Class{Name: "java.io.File", Super: u.Object}
	if err := u.Define(file); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		in   string
		pkg  string
		want *Type
	}{
		{"int", "", IntType},
		{"byte[]", "", ByteType.ArrayOf()},
		{"String", "", u.String.Type()},
		{"java.lang.String[][]", "", ArrayType(u.String.Type(), 2)},
		{"File", "java.io", file.Type()},
		{"java.io.File", "demo", file.Type()},
	}
	for _, tt := range tests {
		got, err := u.ParseType(tt.in, tt.pkg)
		if err != nil {
			t.Errorf("ParseType(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"File", "void[]", "x.Missing"} {
		if _, err := u.ParseType(bad, ""); err == nil {
			t.Errorf("ParseType(%q): expected an error", bad)
		}
	}
	if err := u.Define(&Class{Name: "java.io.File"}); err == nil {
		t.Error("redefining a class must fail")
	}
}
