package types

import (
	"fmt"
	"sort"
	"strings"
)

// Universe is the set of classes visible to one compilation. It always holds
// the java.lang classes the lowering engine relies on.
type Universe struct {
	classes map[string]*Class

	Object       *Class
	String       *Class
	ClassClass   *Class
	Cloneable    *Class
	Serializable *Class
	Throwable    *Class
	Exception    *Class
	Error        *Class

	RuntimeException               *Class
	NullPointerException           *Class
	ArithmeticException            *Class
	ArrayIndexOutOfBoundsException *Class
	ClassCastException             *Class
	NegativeArraySizeException     *Class
}

// NewUniverse returns a universe seeded with the built-in classes.
func NewUniverse() *Universe {
	u := &Universe{classes: make(map[string]*Class)}
	def := func(name string, super *Class) *Class {
		c := &Class{Name: name, Super: super}
		u.classes[name] = c
		return c
	}
	u.Object = def("java.lang.Object", nil)
	u.Cloneable = def("java.lang.Cloneable", nil)
	u.Cloneable.Interface = true
	u.Serializable = def("java.io.Serializable", nil)
	u.Serializable.Interface = true
	u.String = def("java.lang.String", u.Object)
	u.String.Final = true
	u.String.Interfaces = []*Class{u.Serializable}
	u.String.AddMethod(&Method{Name: "length", Return: IntType})
	u.ClassClass = def("java.lang.Class", u.Object)
	u.ClassClass.Final = true

	u.Throwable = def("java.lang.Throwable", u.Object)
	u.Throwable.Interfaces = []*Class{u.Serializable}
	u.Throwable.AddMethod(&Method{Name: "getMessage", Return: u.String.Type()})
	u.Throwable.AddMethod(&Method{Ctor: true})
	u.Throwable.AddMethod(&Method{Ctor: true, Params: []*Type{u.String.Type()}})
	u.Exception = def("java.lang.Exception", u.Throwable)
	u.Error = def("java.lang.Error", u.Throwable)
	u.RuntimeException = def("java.lang.RuntimeException", u.Exception)
	u.NullPointerException = def("java.lang.NullPointerException", u.RuntimeException)
	u.ArithmeticException = def("java.lang.ArithmeticException", u.RuntimeException)
	u.ClassCastException = def("java.lang.ClassCastException", u.RuntimeException)
	u.NegativeArraySizeException = def("java.lang.NegativeArraySizeException", u.RuntimeException)
	iob := def("java.lang.IndexOutOfBoundsException", u.RuntimeException)
	u.ArrayIndexOutOfBoundsException = def("java.lang.ArrayIndexOutOfBoundsException", iob)
	for _, c := range []*Class{u.Exception, u.Error, u.RuntimeException, u.NullPointerException,
		u.ArithmeticException, u.ClassCastException, u.NegativeArraySizeException, iob,
		u.ArrayIndexOutOfBoundsException} {
		c.AddMethod(&Method{Ctor: true})
		c.AddMethod(&Method{Ctor: true, Params: []*Type{u.String.Type()}})
	}
	return u
}

// Lookup returns the class with the given fully qualified name, or nil.
func (u *Universe) Lookup(name string) *Class {
	return u.classes[name]
}

// Resolve finds a class by a name as written in source. Qualified names are
// taken as is; simple names are tried in pkg and then in java.lang.
func (u *Universe) Resolve(name, pkg string) *Class {
	if c := u.classes[name]; c != nil {
		return c
	}
	if strings.Contains(name, ".") {
		return nil
	}
	if pkg != "" {
		if c := u.classes[pkg+"."+name]; c != nil {
			return c
		}
	}
	return u.classes["java.lang."+name]
}

// ParseType resolves a type written as a string such as "int",
// "java.io.File" or "String[][]".
func (u *Universe) ParseType(s, pkg string) (*Type, error) {
	s = strings.TrimSpace(s)
	dims := 0
	for strings.HasSuffix(s, "[]") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
		dims++
	}
	if t := Primitive(s); t != nil {
		if t == VoidType && dims > 0 {
			return nil, fmt.Errorf("array of void")
		}
		return ArrayType(t, dims), nil
	}
	c := u.Resolve(s, pkg)
	if c == nil {
		return nil, fmt.Errorf("unknown type %s", s)
	}
	return ArrayType(c.Type(), dims), nil
}

// Define adds c to the universe. Redefining a name is an error.
func (u *Universe) Define(c *Class) error {
	if _, ok := u.classes[c.Name]; ok {
		return fmt.Errorf("class %s is already defined", c.Name)
	}
	u.classes[c.Name] = c
	return nil
}

// Classes returns every class sorted by name.
func (u *Universe) Classes() []*Class {
	out := make([]*Class, 0, len(u.classes))
	for _, c := range u.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsChecked reports whether throwing c has to be declared.
func (u *Universe) IsChecked(c *Class) bool {
	return c.IsSubclassOf(u.Throwable) &&
		!c.IsSubclassOf(u.RuntimeException) &&
		!c.IsSubclassOf(u.Error)
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

var widening = map[Kind][]Kind{
	Byte:  {Short, Int, Long, Float, Double},
	Short: {Int, Long, Float, Double},
	Char:  {Int, Long, Float, Double},
	Int:   {Long, Float, Double},
	Long:  {Float, Double},
	Float: {Double},
}

// AssignableTo reports whether a value of type from may be assigned to a
// variable of type to without an explicit cast.
func (u *Universe) AssignableTo(from, to *Type) bool {
	if from == to {
		return true
	}
	if from.Kind == Native {
		return to.Kind != Void
	}
	if from.IsPrimitive() || to.IsPrimitive() {
		if !from.IsPrimitive() || !to.IsPrimitive() {
			return false
		}
		for _, k := range widening[from.Kind] {
			if k == to.Kind {
				return true
			}
		}
		return false
	}
	if !from.IsReference() || !to.IsReference() || to.Kind == Null {
		return false
	}
	switch from.Kind {
	case Null:
		return true
	case Reference:
		return to.Kind == Reference && from.Class.IsSubclassOf(to.Class)
	case Array:
		switch to.Kind {
		case Reference:
			return to.Class == u.Object || to.Class == u.Cloneable || to.Class == u.Serializable
		case Array:
			if from.Elem.IsPrimitive() || to.Elem.IsPrimitive() {
				return from.Elem == to.Elem
			}
			return u.AssignableTo(from.Elem, to.Elem)
		}
	}
	return false
}

// CastKind classifies an explicit conversion.
type CastKind int

const (
	CastIncorrect CastKind = iota // rejected at compile time
	CastCorrect                   // always succeeds
	CastRTCheck                   // needs a run-time instance check
)

func (k CastKind) String() string {
	switch k {
	case CastCorrect:
		return "correct"
	case CastRTCheck:
		return "rtcheck"
	}
	return "incorrect"
}

// Cast classifies the explicit conversion of a value of type from to type to.
func (u *Universe) Cast(from, to *Type) CastKind {
	if from == to || from.Kind == Native && to.Kind != Void {
		return CastCorrect
	}
	if from.IsPrimitive() || to.IsPrimitive() {
		switch {
		case from.IsNumeric() && to.IsNumeric():
			return CastCorrect
		default:
			return CastIncorrect
		}
	}
	if !from.IsReference() || !to.IsReference() || to.Kind == Null {
		return CastIncorrect
	}
	if u.AssignableTo(from, to) {
		return CastCorrect
	}
	switch {
	case from.Kind == Reference && to.Kind == Reference:
		f, t := from.Class, to.Class
		if t.IsSubclassOf(f) {
			return CastRTCheck
		}
		if f.Interface && !t.Final || t.Interface && !f.Final {
			return CastRTCheck
		}
		return CastIncorrect
	case from.Kind == Reference && to.Kind == Array:
		if from.Class == u.Object || from.Class == u.Cloneable || from.Class == u.Serializable {
			return CastRTCheck
		}
		return CastIncorrect
	case from.Kind == Array && to.Kind == Array:
		if from.Elem.IsPrimitive() || to.Elem.IsPrimitive() {
			return CastIncorrect
		}
		return u.Cast(from.Elem, to.Elem)
	}
	return CastIncorrect
}

// ---------------------------------------------------------------------------
// Numeric promotion
// ---------------------------------------------------------------------------

// UnaryPromote widens byte, short and char to int.
func UnaryPromote(t *Type) *Type {
	switch t.Kind {
	case Byte, Short, Char:
		return IntType
	}
	return t
}

// BinaryPromote returns the common type of a numeric binary operation.
func BinaryPromote(a, b *Type) *Type {
	switch {
	case a.Kind == Double || b.Kind == Double:
		return DoubleType
	case a.Kind == Float || b.Kind == Float:
		return FloatType
	case a.Kind == Long || b.Kind == Long:
		return LongType
	}
	return IntType
}
