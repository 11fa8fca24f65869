// Package deps assigns the stable table indices under which generated code
// reaches classes, fields, methods and string literals.
package deps

import (
	"sort"

	"janet/internal/types"
)

// FieldRef is a field entry of the dependency table.
type FieldRef struct {
	Field *types.Field
	Class int // index of the declaring class
}

// MethodRef is a method entry of the dependency table.
type MethodRef struct {
	Method *types.Method
	Class  int
}

// Registry holds the dependency tables of one class. Indices are assigned in
// first-use order and never change. The class itself is always entry 0.
type Registry struct {
	Classes []*types.Type
	Fields  []FieldRef
	Methods []MethodRef
	Strings []string

	classIdx  map[string]int
	fieldIdx  map[string]int
	methodIdx map[string]int
	stringIdx map[string]int
}

// New returns the registry of class self.
func New(self *types.Class) *Registry {
	r := &Registry{
		classIdx:  make(map[string]int),
		fieldIdx:  make(map[string]int),
		methodIdx: make(map[string]int),
		stringIdx: make(map[string]int),
	}
	r.Class(self.Type())
	return r
}

// Class returns the index of a class or array type.
func (r *Registry) Class(t *types.Type) int {
	key := t.JNIName()
	if i, ok := r.classIdx[key]; ok {
		return i
	}
	i := len(r.Classes)
	r.Classes = append(r.Classes, t)
	r.classIdx[key] = i
	return i
}

// Field returns the index of f, declared by the class at index cls.
func (r *Registry) Field(cls int, f *types.Field) int {
	key := f.Name + " in " + f.Owner.JNIName()
	if i, ok := r.fieldIdx[key]; ok {
		return i
	}
	i := len(r.Fields)
	r.Fields = append(r.Fields, FieldRef{Field: f, Class: cls})
	r.fieldIdx[key] = i
	return i
}

// Method returns the index of m, declared by the class at index cls.
func (r *Registry) Method(cls int, m *types.Method) int {
	key := m.Name + " " + m.Descriptor() + " in " + m.Owner.JNIName()
	if i, ok := r.methodIdx[key]; ok {
		return i
	}
	i := len(r.Methods)
	r.Methods = append(r.Methods, MethodRef{Method: m, Class: cls})
	r.methodIdx[key] = i
	return i
}

// String returns the index of a string literal.
func (r *Registry) String(s string) int {
	if i, ok := r.stringIdx[s]; ok {
		return i
	}
	i := len(r.Strings)
	r.Strings = append(r.Strings, s)
	r.stringIdx[s] = i
	return i
}

// IndexSet is a set of table indices.
type IndexSet map[int]struct{}

// Add inserts i.
func (s IndexSet) Add(i int) { s[i] = struct{}{} }

// Sorted returns the members in ascending order.
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Usage records which dependencies one native method uses, together with
// the sizing facts of its pinned-array table and monitor array.
type Usage struct {
	reg *Registry

	Classes IndexSet
	Fields  IndexSet
	Methods IndexSet
	Strings IndexSet

	pins  PinTable
	syncs int
}

// NewUsage starts recording for one native method.
func (r *Registry) NewUsage() *Usage {
	return &Usage{
		reg:     r,
		Classes: IndexSet{},
		Fields:  IndexSet{},
		Methods: IndexSet{},
		Strings: IndexSet{},
		pins:    NewPinTable(),
	}
}

// Registry returns the class-level tables u records into.
func (u *Usage) Registry() *Registry { return u.reg }

// Class registers t and marks it used by the method.
func (u *Usage) Class(t *types.Type) int {
	i := u.reg.Class(t)
	u.Classes.Add(i)
	return i
}

// DeclaringClass registers the owner of a member without marking it used;
// the member entry carries the class index.
func (u *Usage) DeclaringClass(c *types.Class) int {
	return u.reg.Class(c.Type())
}

// Field registers f and marks it used.
func (u *Usage) Field(f *types.Field) (cls, idx int) {
	cls = u.DeclaringClass(f.Owner)
	idx = u.reg.Field(cls, f)
	u.Fields.Add(idx)
	return cls, idx
}

// Method registers m and marks it used.
func (u *Usage) Method(m *types.Method) (cls, idx int) {
	cls = u.DeclaringClass(m.Owner)
	idx = u.reg.Method(cls, m)
	u.Methods.Add(idx)
	return cls, idx
}

// String registers a literal and marks it used.
func (u *Usage) String(s string) int {
	i := u.reg.String(s)
	u.Strings.Add(i)
	return i
}

// UsesClassTable reports whether the method needs the class table, which
// field and method entries also resolve through.
func (u *Usage) UsesClassTable() bool {
	return len(u.Classes) > 0 || len(u.Fields) > 0 || len(u.Methods) > 0
}

// AddPinnedArray records one more site that pins a primitive array.
func (u *Usage) AddPinnedArray() { u.pins.Add() }

// UsesPrimitiveArrays reports whether any site pins a primitive array.
func (u *Usage) UsesPrimitiveArrays() bool { return u.pins.Sites() > 0 }

// PinTable returns the pinned-array table sizing state.
func (u *Usage) PinTable() PinTable { return u.pins }

// AddSynchronized allocates the monitor slot of one synchronized statement.
func (u *Usage) AddSynchronized() int {
	i := u.syncs
	u.syncs++
	return i
}

// Synchronized returns the number of monitor slots.
func (u *Usage) Synchronized() int { return u.syncs }
