package types

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Kinds
// ---------------------------------------------------------------------------

// Kind classifies a Type.
type Kind int

const (
	Void Kind = iota
	Boolean
	Byte
	Char
	Short
	Int
	Long
	Float
	Double
	Null      // type of the null literal
	Reference // class or interface
	Array
	Native // value of an embedded native expression
)

// ---------------------------------------------------------------------------
// Type
// ---------------------------------------------------------------------------

// Type is a host-language type. Primitive types are package singletons, class
// types are owned by their Class and array types are interned on their
// element type, so types can be compared with ==.
type Type struct {
	Kind  Kind
	Class *Class // Reference only
	Elem  *Type  // Array only

	arrayOf *Type
}

// Primitive and special type singletons.
var (
	VoidType    = &Type{Kind: Void}
	BooleanType = &Type{Kind: Boolean}
	ByteType    = &Type{Kind: Byte}
	CharType    = &Type{Kind: Char}
	ShortType   = &Type{Kind: Short}
	IntType     = &Type{Kind: Int}
	LongType    = &Type{Kind: Long}
	FloatType   = &Type{Kind: Float}
	DoubleType  = &Type{Kind: Double}
	NullType    = &Type{Kind: Null}
	NativeType  = &Type{Kind: Native}
)

var primitivesByName = map[string]*Type{
	"void":    VoidType,
	"boolean": BooleanType,
	"byte":    ByteType,
	"char":    CharType,
	"short":   ShortType,
	"int":     IntType,
	"long":    LongType,
	"float":   FloatType,
	"double":  DoubleType,
}

// Primitive returns the primitive (or void) type with the given keyword, or
// nil.
func Primitive(name string) *Type {
	return primitivesByName[name]
}

// ArrayOf returns the array type whose element type is t.
func (t *Type) ArrayOf() *Type {
	if t.arrayOf == nil {
		t.arrayOf = &Type{Kind: Array, Elem: t}
	}
	return t.arrayOf
}

// ArrayType applies ArrayOf dims times.
func ArrayType(t *Type, dims int) *Type {
	for i := 0; i < dims; i++ {
		t = t.ArrayOf()
	}
	return t
}

// BaseType strips all array dimensions.
func (t *Type) BaseType() *Type {
	for t.Kind == Array {
		t = t.Elem
	}
	return t
}

// Depth returns the number of array dimensions of t.
func (t *Type) Depth() int {
	n := 0
	for ; t.Kind == Array; t = t.Elem {
		n++
	}
	return n
}

// IsPrimitive reports whether t is one of the eight primitive value types.
func (t *Type) IsPrimitive() bool {
	return t.Kind >= Boolean && t.Kind <= Double
}

// IsReference reports whether values of t are managed handles.
func (t *Type) IsReference() bool {
	return t.Kind == Reference || t.Kind == Array || t.Kind == Null
}

// IsArray reports whether t is an array type.
func (t *Type) IsArray() bool { return t.Kind == Array }

// IsNumeric reports whether t is a primitive numeric type.
func (t *Type) IsNumeric() bool {
	return t.Kind >= Byte && t.Kind <= Double
}

// IsIntegral reports whether t is byte, char, short, int or long.
func (t *Type) IsIntegral() bool {
	return t.Kind >= Byte && t.Kind <= Long
}

// IsFloating reports whether t is float or double.
func (t *Type) IsFloating() bool {
	return t.Kind == Float || t.Kind == Double
}

// IsPrimitiveArray reports whether t is an array with a primitive element.
func (t *Type) IsPrimitiveArray() bool {
	return t.Kind == Array && t.Elem.IsPrimitive()
}

// Name returns the host-language spelling of t.
func (t *Type) Name() string {
	switch t.Kind {
	case Reference:
		return t.Class.Name
	case Array:
		return t.Elem.Name() + "[]"
	case Null:
		return "null"
	case Native:
		return "native"
	}
	for name, p := range primitivesByName {
		if p == t {
			return name
		}
	}
	return "<invalid>"
}

func (t *Type) String() string { return t.Name() }

// Signature returns the JVM type descriptor of t.
func (t *Type) Signature() string {
	switch t.Kind {
	case Void:
		return "V"
	case Boolean:
		return "Z"
	case Byte:
		return "B"
	case Char:
		return "C"
	case Short:
		return "S"
	case Int:
		return "I"
	case Long:
		return "J"
	case Float:
		return "F"
	case Double:
		return "D"
	case Reference:
		return "L" + t.Class.JNIName() + ";"
	case Array:
		return "[" + t.Elem.Signature()
	}
	return "Ljava/lang/Object;"
}

// JNIName returns the name FindClass expects for a reference type: the
// slash-separated class name, or the descriptor for arrays.
func (t *Type) JNIName() string {
	if t.Kind == Reference {
		return t.Class.JNIName()
	}
	return t.Signature()
}

// ABIName returns the JNI C type used to carry values of t.
func (t *Type) ABIName() string {
	switch t.Kind {
	case Void:
		return "void"
	case Native:
		return ""
	case Boolean:
		return "jboolean"
	case Byte:
		return "jbyte"
	case Char:
		return "jchar"
	case Short:
		return "jshort"
	case Int:
		return "jint"
	case Long:
		return "jlong"
	case Float:
		return "jfloat"
	case Double:
		return "jdouble"
	case Array:
		if t.Elem.IsPrimitive() {
			return t.Elem.ABIName() + "Array"
		}
		return "jobjectArray"
	case Reference:
		switch t.Class.Name {
		case "java.lang.String":
			return "jstring"
		case "java.lang.Class":
			return "jclass"
		}
		for c := t.Class; c != nil; c = c.Super {
			if c.Name == "java.lang.Throwable" {
				return "jthrowable"
			}
		}
	}
	return "jobject"
}

// InfixName returns the type part of JNI accessor names, as in
// Call<Infix>Method or Get<Infix>Field.
func (t *Type) InfixName() string {
	switch t.Kind {
	case Void:
		return "Void"
	case Boolean:
		return "Boolean"
	case Byte:
		return "Byte"
	case Char:
		return "Char"
	case Short:
		return "Short"
	case Int:
		return "Int"
	case Long:
		return "Long"
	case Float:
		return "Float"
	case Double:
		return "Double"
	}
	return "Object"
}

// CName returns the plain C type matching a primitive element type, used
// when array contents are exposed as native data.
func (t *Type) CName() string {
	switch t.Kind {
	case Boolean:
		return "unsigned char"
	case Byte:
		return "signed char"
	case Char:
		return "unsigned short"
	case Short:
		return "short"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	}
	panic(fmt.Sprintf("types: no C type for %s", t.Name()))
}

// ---------------------------------------------------------------------------
// Classes and members
// ---------------------------------------------------------------------------

// Class describes a host class or interface known to the compiler.
type Class struct {
	Name       string // fully qualified, dot separated
	Super      *Class
	Interfaces []*Class
	Interface  bool
	Final      bool
	Fields     []*Field
	Methods    []*Method
	Ctors      []*Method

	typ *Type
}

// Type returns the reference type of c.
func (c *Class) Type() *Type {
	if c.typ == nil {
		c.typ = &Type{Kind: Reference, Class: c}
	}
	return c.typ
}

// SimpleName returns the class name without its package.
func (c *Class) SimpleName() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// JNIName returns the slash-separated class name used by FindClass.
func (c *Class) JNIName() string {
	return strings.ReplaceAll(c.Name, ".", "/")
}

// IsSubclassOf reports whether c is d, extends d or implements d.
func (c *Class) IsSubclassOf(d *Class) bool {
	if c == nil || d == nil {
		return false
	}
	if c == d {
		return true
	}
	if c.Super != nil && c.Super.IsSubclassOf(d) {
		return true
	}
	for _, i := range c.Interfaces {
		if i.IsSubclassOf(d) {
			return true
		}
	}
	return false
}

// AddField attaches f to c.
func (c *Class) AddField(f *Field) *Field {
	f.Owner = c
	c.Fields = append(c.Fields, f)
	return f
}

// AddMethod attaches m to c, as a constructor when m.Ctor is set.
func (c *Class) AddMethod(m *Method) *Method {
	m.Owner = c
	if m.Ctor {
		m.Name = "<init>"
		m.Return = VoidType
		c.Ctors = append(c.Ctors, m)
	} else {
		c.Methods = append(c.Methods, m)
	}
	return m
}

// LookupField finds a field by name in c or its supertypes.
func (c *Class) LookupField(name string) *Field {
	for k := c; k != nil; k = k.Super {
		for _, f := range k.Fields {
			if f.Name == name {
				return f
			}
		}
		for _, i := range k.Interfaces {
			if f := i.LookupField(name); f != nil {
				return f
			}
		}
	}
	return nil
}

// MethodsNamed returns the methods called name visible in c, most derived
// first. Methods overridden by a subclass are not repeated.
func (c *Class) MethodsNamed(name string) []*Method {
	var out []*Method
	seen := map[string]bool{}
	var walk func(k *Class)
	walk = func(k *Class) {
		if k == nil {
			return
		}
		for _, m := range k.Methods {
			if m.Name != name {
				continue
			}
			d := m.Descriptor()
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, m)
		}
		walk(k.Super)
		for _, i := range k.Interfaces {
			walk(i)
		}
	}
	walk(c)
	return out
}

// DeclaresOverloads reports whether c itself declares more than one method
// called name. JNI stubs of such methods carry the parameter signature.
func (c *Class) DeclaresOverloads(name string) bool {
	n := 0
	for _, m := range c.Methods {
		if m.Name == name {
			n++
		}
	}
	return n > 1
}

func (c *Class) String() string { return c.Name }

// Field is a field of a host class.
type Field struct {
	Name   string
	Type   *Type
	Owner  *Class
	Static bool
	Final  bool
}

// Method is a method or constructor of a host class.
type Method struct {
	Name   string
	Owner  *Class
	Params []*Type
	Return *Type
	Throws []*Class
	Static bool
	Final  bool
	Native bool
	Ctor   bool
}

// Descriptor returns the JVM method descriptor, e.g. "(I[B)V".
func (m *Method) Descriptor() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		b.WriteString(p.Signature())
	}
	b.WriteByte(')')
	b.WriteString(m.Return.Signature())
	return b.String()
}

// ParamNames returns the comma separated host names of the parameter types.
func (m *Method) ParamNames() string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name()
	}
	return strings.Join(names, ", ")
}

func (m *Method) String() string {
	return fmt.Sprintf("%s.%s(%s)", m.Owner.Name, m.Name, m.ParamNames())
}
