package deps

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"janet/internal/types"
)

func newFixture() (*types.Universe, *types.Class) {
	u := types.NewUniverse()
	c := &types.Class{Name: "demo.Foo", Super: u.Object}
	c.AddField(&types.Field{Name: "n", Type: types.IntType})
	c.AddMethod(&types.Method{Name: "run", Return: types.VoidType})
	return u, c
}

func TestRegistrySelfFirst(t *testing.T) {
	_, c := newFixture()
	r := New(c)
	if len(r.Classes) != 1 || r.Classes[0] != c.Type() {
		t.Fatalf("Classes = %v, want the class itself at 0", r.Classes)
	}
	if got := r.Class(c.Type()); got != 0 {
		t.Errorf("re-registering self = %d, want 0", got)
	}
}

func TestRegistryStableIndices(t *testing.T) {
	u, c := newFixture()
	r := New(c)
	if got := r.Class(u.String.Type()); got != 1 {
		t.Errorf("String index = %d, want 1", got)
	}
	if got := r.Class(types.IntType.ArrayOf()); got != 2 {
		t.Errorf("int[] index = %d, want 2", got)
	}
	if got := r.Class(u.String.Type()); got != 1 {
		t.Errorf("String index changed to %d", got)
	}
	if r.String("a") != 0 || r.String("b") != 1 || r.String("a") != 0 {
		t.Error("string indices not stable")
	}
	f := c.Fields[0]
	if r.Field(0, f) != 0 || r.Field(0, f) != 0 {
		t.Error("field index not stable")
	}
	m := c.Methods[0]
	if r.Method(0, m) != 0 || r.Method(0, u.String.Methods[0]) != 1 || r.Method(0, m) != 0 {
		t.Error("method index not stable")
	}
}

func TestUsage(t *testing.T) {
	u, c := newFixture()
	r := New(c)
	use := r.NewUsage()
	if use.UsesClassTable() {
		t.Fatal("fresh usage must not need the class table")
	}
	use.String("x")
	if use.UsesClassTable() {
		t.Error("strings alone do not need the class table")
	}
	cls, idx := use.Method(u.String.Methods[0])
	if cls != 1 || idx != 0 {
		t.Errorf("Method() = %d, %d", cls, idx)
	}
	if !use.UsesClassTable() {
		t.Error("a method needs the class table")
	}
	if len(use.Classes) != 0 {
		t.Error("declaring classes of members are not marked used")
	}
	use.Class(u.NullPointerException.Type())
	if diff := cmp.Diff([]int{2}, use.Classes.Sorted()); diff != "" {
		t.Errorf("Classes mismatch (-want +got):\n%s", diff)
	}

	other := r.NewUsage()
	other.Method(c.Methods[0])
	if diff := cmp.Diff([]int{1}, other.Methods.Sorted()); diff != "" {
		t.Errorf("second method usage mismatch (-want +got):\n%s", diff)
	}
}

func TestSynchronizedSlots(t *testing.T) {
	_, c := newFixture()
	use := New(c).NewUsage()
	if use.AddSynchronized() != 0 || use.AddSynchronized() != 1 {
		t.Fatal("slots must be numbered from 0")
	}
	if use.Synchronized() != 2 {
		t.Errorf("Synchronized() = %d, want 2", use.Synchronized())
	}
}

func TestPinTableGrowth(t *testing.T) {
	p := NewPinTable()
	if p.Size() != 19 || p.HighWater() != 14 {
		t.Fatalf("initial size %d high water %d", p.Size(), p.HighWater())
	}
	tests := []struct {
		sites int
		size  int
	}{
		{1, 19},
		{9, 19},
		{10, 43},
		{21, 43},
		{22, 67},
		{34, 139},
	}
	for _, tt := range tests {
		p := NewPinTable()
		for i := 0; i < tt.sites; i++ {
			p.Add()
		}
		if p.Size() != tt.size {
			t.Errorf("%d sites: size %d, want %d", tt.sites, p.Size(), tt.size)
		}
	}
}
