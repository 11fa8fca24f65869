package codegen

import (
	"sort"

	"janet/internal/ast"
	"janet/internal/deps"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Function context
// ---------------------------------------------------------------------------

// function holds the lowering state of one native method.
type function struct {
	decl  *ast.MethodDecl
	class *types.Class
	// usage also carries the per-method lowering facts the generator needs
	// outside the body: UsesPrimitiveArrays for the pin table and
	// Synchronized for the monitor count.
	usage *deps.Usage

	// rings groups references by base name, in creation order.
	rings map[string][]*ref

	// slots is the size of the multiref tracking array.
	slots int

	usesExceptions bool

	// this caches the receiver once it has to be held as a multiref.
	this *ref
	// params maps parameters to their references. Parameters that are only
	// read through their incoming JNI handle have none.
	params map[*ast.VarDecl]*ref

	root *scope
}

func newFunction(decl *ast.MethodDecl, usage *deps.Usage) *function {
	fn := &function{
		decl:   decl,
		class:  decl.Method.Owner,
		usage:  usage,
		rings:  make(map[string][]*ref),
		params: make(map[*ast.VarDecl]*ref),
	}
	fn.root = newScope(fn, nil)
	return fn
}

// addVariable registers r, giving it the next index of its ring.
func (fn *function) addVariable(r *ref) *ref {
	if r.fn != nil {
		panic(internalError("reference %s registered twice", r.base))
	}
	r.fn = fn
	ring := fn.rings[r.base]
	if n := len(ring); n > 0 {
		r.idx = ring[n-1].idx + 1
	}
	fn.rings[r.base] = append(ring, r)
	return r
}

// variables returns every registered reference, rings in sorted base-name
// order.
func (fn *function) variables() []*ref {
	names := make([]string, 0, len(fn.rings))
	for name := range fn.rings {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []*ref
	for _, name := range names {
		out = append(out, fn.rings[name]...)
	}
	return out
}

// materializeReceiver returns the multiref copy of the receiver, creating it
// on first use.
func (fn *function) materializeReceiver() *ref {
	if fn.this == nil {
		r := newRef(fn.class.Type(), prefixReceiver, "this")
		r.fn = fn
		r.classify(refMultiref)
		fn.this = r
	}
	return fn.this
}

// thisUse is how the receiver is read.
func (fn *function) thisUse(multi bool) string {
	if fn.this == nil {
		return "_janet_jthis"
	}
	return fn.this.use(multi)
}

// retSuffix selects the _V or _0 flavour of the GLOBAL exception macros.
func (fn *function) retSuffix() string {
	if fn.decl.Method.Return == types.VoidType {
		return "_V"
	}
	return "_0"
}

// retValue is what a GLOBAL exit returns alongside a pending exception.
func (fn *function) retValue() string {
	if fn.decl.Method.Return == types.VoidType {
		return ""
	}
	return "0"
}

// paramRef returns the reference of parameter d, creating it.
func (fn *function) paramRef(d *ast.VarDecl) *ref {
	if r, ok := fn.params[d]; ok {
		return r
	}
	r := fn.addVariable(newRef(d.Type.Type, prefixArg, mangle(d.Name)))
	fn.root.own(r)
	fn.params[d] = r
	return r
}

// argName is the C parameter that carries the incoming value of d.
func argName(d *ast.VarDecl) string {
	return "_janet_arg_" + mangle(d.Name)
}

// prologue writes the declarations and initializers that open the body.
// It reports whether a nested block was opened for the initializers.
func (fn *function) prologue(e *emitter) bool {
	if fn.slots > 0 {
		e.linef("_JANET_DECLARE_MULTIREFS(%d);", fn.slots)
	}
	if fn.usesExceptions {
		if rt := fn.decl.Method.Return; rt == types.VoidType {
			e.line("_JANET_DECLARE_LOCAL_ABRUPT_STATEMENTS_V;")
		} else {
			e.linef("_JANET_DECLARE_LOCAL_ABRUPT_STATEMENTS(%s);", rt.ABIName())
		}
	}

	wrote := false
	for _, r := range fn.variables() {
		if r.mustRelease() {
			continue
		}
		e.line(r.declaration())
		wrote = true
	}
	if wrote {
		e.blank()
	}
	if released := fn.root.releasedRefs(); len(released) > 0 {
		for _, r := range released {
			e.line(r.declaration())
		}
		e.blank()
	}

	inits := false
	if fn.this != nil {
		e.line(fn.this.declaration())
		e.line(fn.this.assignPrefix(false) + "_janet_jthis" + fn.this.assignSuffix(false) + ";")
		inits = true
	}
	for _, p := range fn.decl.Params {
		r, ok := fn.params[p]
		if !ok {
			continue
		}
		e.line(r.assignPrefix(false) + argName(p) + r.assignSuffix(false) + ";")
		inits = true
	}
	if inits {
		e.open("{")
	}
	return inits
}
