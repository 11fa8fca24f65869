package codegen

import (
	"strconv"

	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Reference model
// ---------------------------------------------------------------------------

// refClass says how the managed handle held by a native temporary is
// tracked. Classes only ever move forward.
type refClass int

const (
	// refSimple is a plain native local that is never released.
	refSimple refClass = iota
	// refMultiref lives in the per-function slot array so it survives
	// other calls and can be found during an unwind.
	refMultiref
	// refLocalVariable is a multiref that must also be released when its
	// declaring block ends.
	refLocalVariable
)

func (c refClass) String() string {
	switch c {
	case refMultiref:
		return "MULTIREF"
	case refLocalVariable:
		return "LOCAL_VARIABLE"
	}
	return "SIMPLE"
}

// ref is a named native temporary.
type ref struct {
	base  string
	idx   int // -1 when the name carries no index
	fn    *function
	typ   *types.Type
	class refClass
}

// Name prefixes of the different kinds of temporaries.
const (
	prefixAux      = "aux"
	prefixVar      = "var"
	prefixArg      = "arg"
	prefixExc      = "exc"
	prefixReceiver = "___"
)

// refBaseName builds "_janet_<prefix><type suffix>[_<name>]". Anonymous
// references end in "_" so the index that follows stays readable.
func refBaseName(t *types.Type, prefix, name string, numbered bool) string {
	s := "_janet_" + prefix
	for ; t.Kind == types.Array; t = t.Elem {
		s += "Arr"
	}
	if t.IsPrimitive() {
		s += t.Signature()
	} else {
		s += "Obj"
	}
	switch {
	case name != "":
		s += "_" + name
	case numbered:
		s += "_"
	}
	return s
}

// newRef returns an unregistered reference. Anonymous references are
// numbered from 1; named ones carry no index until a second reference with
// the same base name appears.
func newRef(t *types.Type, prefix, name string) *ref {
	r := &ref{base: refBaseName(t, prefix, name, name == ""), idx: -1, typ: t}
	if name == "" {
		r.idx = 1
	}
	return r
}

func (r *ref) name() string {
	if r.fn == nil {
		panic(internalError("reference %s used before registration", r.base))
	}
	if r.idx < 0 {
		return r.base
	}
	return r.base + strconv.Itoa(r.idx)
}

// multi reports whether the reference is held in a tracking slot.
func (r *ref) multi() bool { return r.class != refSimple }

// mustRelease reports whether the declaring block has to release r.
func (r *ref) mustRelease() bool { return r.class == refLocalVariable }

// classify raises r to at least c. Leaving refSimple takes one tracking
// slot; values of primitive type never leave it.
func (r *ref) classify(c refClass) {
	if c <= r.class || !r.typ.IsReference() {
		return
	}
	if r.class == refSimple {
		r.fn.slots++
	}
	r.class = c
}

// use returns the text that reads r: the handle itself, or the tracking
// slot when the caller asks for a multiref.
func (r *ref) use(multi bool) string {
	if !multi {
		if r.class == refSimple {
			return r.name()
		}
		return "_JANET_DEREF(" + r.name() + ")"
	}
	if r.class == refSimple && !r.typ.IsPrimitive() {
		panic(internalError("multiref use of simple reference %s", r.name()))
	}
	return r.name()
}

// declaration returns the C declaration of r.
func (r *ref) declaration() string {
	vol := ""
	if r.fn.usesExceptions {
		vol = "volatile "
	}
	if r.class == refSimple {
		if !r.typ.IsReference() {
			vol = ""
		}
		return vol + abiName(r.typ) + " " + r.name() + " = 0;"
	}
	return "_janet_multiref *" + vol + r.name() + " = (void*)0;"
}

// assignPrefix opens an assignment into r. multi tells whether the
// assigned value is itself a multiref.
func (r *ref) assignPrefix(multi bool) string {
	switch r.class {
	case refSimple:
		if !r.typ.IsReference() {
			return r.name() + " = "
		}
		if multi {
			panic(internalError("multiref assigned to simple reference %s", r.name()))
		}
		return "_JANET_ASSIGN_SIMPLE2SIMPLE(" + r.name() + ", "
	case refMultiref:
		if multi {
			return "_JANET_ASSIGN_MULTI2MULTI(" + r.name() + ", "
		}
		return "_JANET_ASSIGN_SIMPLE2MULTI(" + r.name() + ", "
	default:
		if multi {
			return "_JANET_ASSIGN_MULTI2LOCV(" + r.name() + ", "
		}
		return "_JANET_ASSIGN_SIMPLE2LOCV(" + r.name() + ", "
	}
}

// assignSuffix closes what assignPrefix opened.
func (r *ref) assignSuffix(multi bool) string {
	if r.class == refSimple {
		if multi && !r.typ.IsPrimitive() {
			panic(internalError("multiref assigned to simple reference %s", r.name()))
		}
		if !r.typ.IsReference() {
			return ""
		}
	}
	return ")"
}

// release returns the statement that drops r at the end of its block.
func (r *ref) release() string {
	if r.class != refLocalVariable {
		panic(internalError("release of %s reference %s", r.class, r.name()))
	}
	return "_JANET_DEC_MULTIREF(" + r.name() + ");"
}

// macroSuffix selects the multiref flavour of runtime macros.
func (r *ref) macroSuffix() string {
	if r.class == refSimple {
		return ""
	}
	return "_MULTIREF"
}

// abiName is the JNI C type of t; native values travel as jobject-free
// plain C and have no JNI spelling of their own.
func abiName(t *types.Type) string {
	if t.Kind == types.Null {
		return "jobject"
	}
	return t.ABIName()
}
