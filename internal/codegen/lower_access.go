package codegen

import (
	"fmt"
	"strings"

	"janet/internal/ast"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Member targets
// ---------------------------------------------------------------------------

// target returns the expression evaluated as the object of a member access,
// nil when the access goes through the receiver or a class name.
func target(x ast.Expr) ast.Expr {
	switch x.(type) {
	case nil, *ast.This, *ast.TypeName:
		return nil
	}
	return x
}

// classRef names the class object of a static access. A static method
// reaches its own class through the jclass it was called with.
func (l *lowerer) classRef(slot int, owner *types.Class) string {
	if l.fn.decl.Static && owner == l.fn.class {
		return "_janet_jthisclass"
	}
	return fmt.Sprintf("_janet_classes[%d].id", slot)
}

// object returns the text of the object a member access works on; tgt has
// been evaluated already.
func (l *lowerer) object(tgt ast.Expr) string {
	if tgt == nil {
		return l.fn.thisUse(false)
	}
	return l.use(tgt, false)
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

func (l *lowerer) prepareField(x *ast.FieldAccess, f flags) {
	if tgt := target(x.X); tgt != nil {
		tf := flags(0)
		if !l.isStatic(x) && !ast.NonNull(tgt) {
			tf = flagReusable
		}
		l.prepare(tgt, tf)
	}
	l.materialize(x, f, false)
}

func (l *lowerer) isStatic(x *ast.FieldAccess) bool {
	return !x.Length && x.Field != nil && x.Field.Static
}

// fieldTarget evaluates the target of x into pre and returns the object or
// class the field lives in, plus the null check that guards it.
func (l *lowerer) fieldTarget(x *ast.FieldAccess, pre *[]string) (obj, check string) {
	tgt := target(x.X)
	if tgt != nil {
		l.hoist(pre, tgt)
	}
	if l.isStatic(x) {
		return l.classRef(x.Class, x.Field.Owner), ""
	}
	obj = l.object(tgt)
	if tgt != nil && !ast.NonNull(tgt) {
		what := "field " + x.Name
		if x.Length {
			what = "the length of an array"
		}
		check = l.nullCheck(obj, "trying to access "+what+" using a null target reference")
	}
	return obj, check
}

func (l *lowerer) fieldGet(x *ast.FieldAccess, obj string) string {
	if x.Length {
		if tgt := target(x.X); tgt != nil && l.isMulti(tgt) {
			return "_JANET_MULTIARRAY_GET_LENGTH(" + l.use(tgt, true) + ")"
		}
		return "JNI_GET_ARRAY_LENGTH(" + obj + ")"
	}
	static := ""
	if l.isStatic(x) {
		static = "Static"
	}
	return jniResult(x.Field.Type, fmt.Sprintf("(*_janet_jnienv)->Get%s%sField(_janet_jnienv, %s, _janet_fields[%d].id)",
		static, x.Field.Type.InfixName(), obj, x.Slot))
}

func (l *lowerer) fieldSet(x *ast.FieldAccess, obj, val string) string {
	static := ""
	if l.isStatic(x) {
		static = "Static"
	}
	return fmt.Sprintf("(*_janet_jnienv)->Set%s%sField(_janet_jnienv, %s, _janet_fields[%d].id, %s)",
		static, x.Field.Type.InfixName(), obj, x.Slot, val)
}

func (l *lowerer) lowerField(x *ast.FieldAccess) *lowered {
	lw := &lowered{}
	obj, check := l.fieldTarget(x, &lw.pre)
	if check != "" {
		lw.pre = append(lw.pre, check)
	}
	lw.op = l.fieldGet(x, obj)
	return lw
}

// ---------------------------------------------------------------------------
// Array elements
// ---------------------------------------------------------------------------

// prepareArray prepares the array operand of an element access. Primitive
// arrays are read through their pinned data, which needs the array held as
// a local multiref.
func (l *lowerer) prepareArray(x *ast.ArrayAccess, later bool) {
	tf := flagReusable
	if later {
		tf |= flagStable
	}
	if x.Type != nil && x.Type.IsPrimitive() {
		l.prepare(x.X, tf|flagMultiref)
		l.holdLocal(x.X)
		return
	}
	l.prepare(x.X, tf)
}

func (l *lowerer) prepareElement(x *ast.ArrayAccess, f flags) {
	l.prepareArray(x, effectful(x.Index))
	l.prepare(x.Index, flagReusable)
	l.materialize(x, f, !x.Type.IsPrimitive())
}

// elementTarget evaluates array and index into pre and appends the checks
// guarding the access.
func (l *lowerer) elementTarget(x *ast.ArrayAccess, pre *[]string) (arr, idx string) {
	l.hoist(pre, x.X)
	l.hoist(pre, x.Index)
	return l.use(x.X, false), l.use(x.Index, false)
}

func (l *lowerer) elementChecks(x *ast.ArrayAccess, arr, idx string) []string {
	var out []string
	if !ast.NonNull(x.X) {
		out = append(out, l.nullCheck(arr, "trying to access an array using a null target reference"))
	}
	if !x.Type.IsPrimitive() {
		return out
	}
	if l.isMulti(x.X) {
		out = append(out, "_JANET_MULTIARRAY_CHECK_BOUNDS("+l.use(x.X, true)+", "+idx+")")
	} else {
		out = append(out, "_JANET_ARRAY_CHECK_BOUNDS("+arr+", "+idx+")")
	}
	return out
}

// element is the lvalue text of a primitive element.
func (l *lowerer) element(x *ast.ArrayAccess, idx string) string {
	return "((" + x.Type.ABIName() + "*)_JANET_ARRAY_GET_JPTR(" + l.use(x.X, true) + ", " +
		x.Type.Signature() + "))[" + idx + "]"
}

func (l *lowerer) lowerElement(x *ast.ArrayAccess) *lowered {
	lw := &lowered{}
	arr, idx := l.elementTarget(x, &lw.pre)
	lw.pre = append(lw.pre, l.elementChecks(x, arr, idx)...)
	if x.Type.IsPrimitive() {
		lw.op = l.element(x, idx)
		return lw
	}
	lw.op = jniResult(x.Type, "JNI_GET_OBJECT_ARRAY_ELEMENT("+arr+", "+idx+")")
	lw.post = []string{l.handle()}
	return lw
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

func (l *lowerer) prepareCall(x *ast.Call, f flags) {
	if tgt := target(x.X); tgt != nil {
		tf := flags(0)
		if x.Mode != ast.CallStatic && !ast.NonNull(tgt) {
			tf = flagReusable
		}
		if anyEffectful(x.Args) {
			tf |= flagReusable | flagStable
		}
		l.prepare(tgt, tf)
	}
	l.prepareOperands(x.Args, 0)
	l.materialize(x, f, true)
}

func (l *lowerer) args(xs []ast.Expr, pre *[]string) string {
	for _, a := range xs {
		l.hoist(pre, a)
	}
	var sb strings.Builder
	for _, a := range xs {
		sb.WriteString(", ")
		sb.WriteString(l.use(a, false))
	}
	return sb.String()
}

func (l *lowerer) lowerCall(x *ast.Call) *lowered {
	lw := &lowered{}
	tgt := target(x.X)
	if tgt != nil {
		l.hoist(&lw.pre, tgt)
	}
	args := l.args(x.Args, &lw.pre)
	m := x.Method

	if x.Mode == ast.CallStatic {
		lw.op = jniResult(m.Return, fmt.Sprintf("(*_janet_jnienv)->CallStatic%sMethod(_janet_jnienv, %s, _janet_methods[%d].id%s)",
			m.Return.InfixName(), l.classRef(x.Class, m.Owner), x.Slot, args))
		lw.post = []string{l.handle()}
		return lw
	}

	obj := l.object(tgt)
	if tgt != nil && !ast.NonNull(tgt) {
		lw.pre = append(lw.pre, l.nullCheck(obj,
			"trying to invoke method "+m.Name+"("+m.ParamNames()+") on a null target reference"))
	}
	if x.Slot < 0 {
		lw.op = "JNI_GET_STRING_LENGTH(" + obj + ")"
		return lw
	}
	switch x.Mode {
	case ast.CallNonvirtual, ast.CallSuper:
		lw.op = fmt.Sprintf("(*_janet_jnienv)->CallNonvirtual%sMethod(_janet_jnienv, %s, _janet_classes[%d].id, _janet_methods[%d].id%s)",
			m.Return.InfixName(), obj, x.Class, x.Slot, args)
	default:
		lw.op = fmt.Sprintf("(*_janet_jnienv)->Call%sMethod(_janet_jnienv, %s, _janet_methods[%d].id%s)",
			m.Return.InfixName(), obj, x.Slot, args)
	}
	lw.op = jniResult(m.Return, lw.op)
	lw.post = []string{l.handle()}
	return lw
}

// ---------------------------------------------------------------------------
// Instance and array creation
// ---------------------------------------------------------------------------

func (l *lowerer) prepareNew(x *ast.New, f flags) {
	l.prepareOperands(x.Args, 0)
	l.materialize(x, f, true)
}

// lowerNew allocates first and runs the constructor once the arguments are
// evaluated.
func (l *lowerer) lowerNew(x *ast.New) *lowered {
	cls := fmt.Sprintf("_janet_classes[%d].id", x.ClsIdx)
	lw := &lowered{
		op:   jniResult(x.Type, "JNI_ALLOC_OBJECT("+cls+")"),
		post: []string{l.handle()},
	}
	args := l.args(x.Args, &lw.post)
	lw.post = append(lw.post,
		fmt.Sprintf("(*_janet_jnienv)->CallNonvirtualVoidMethod(_janet_jnienv, %s, %s, _janet_methods[%d].id%s)",
			l.tags[x].use(false), cls, x.Slot, args),
		l.handle())
	return lw
}

func (l *lowerer) prepareNewArray(x *ast.NewArray, f flags) {
	l.prepareOperands(x.Dims, flagReusable)
	l.materialize(x, f, true)
}

// lowerNewArray checks every dimension before anything is allocated; the
// runtime builds all levels in one call.
func (l *lowerer) lowerNewArray(x *ast.NewArray) *lowered {
	lw := &lowered{}
	dims := make([]string, len(x.Dims))
	for i, d := range x.Dims {
		l.hoist(&lw.pre, d)
		dims[i] = l.use(d, false)
	}
	for i, d := range dims {
		lw.pre = append(lw.pre, fmt.Sprintf("%s(%d, %s)", l.local("ENSURE_ARRSIZE_NONNEGATIVE"), i, d))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "_JANET_CREATE_ARRAY(_janet_jnienv, %d, _JANET__FILE__, _JANET__LINE__", len(dims))
	for i, d := range dims {
		if k := x.ClsIdx[i]; k >= 0 {
			fmt.Fprintf(&sb, ", %s, _janet_classes[%d].id", d, k)
		} else {
			fmt.Fprintf(&sb, ", %s, (jclass)0, (*_janet_jnienv)->New%sArray", d, x.Type.BaseType().InfixName())
		}
	}
	sb.WriteString(")")
	lw.op = jniResult(x.Type, sb.String())
	lw.post = []string{l.handle()}
	return lw
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// into reports whether x can be evaluated straight into the destination of
// an assignment. Its operands are all read before the store.
func into(x ast.Expr) bool {
	switch x.(type) {
	case *ast.Call, *ast.NewArray, *ast.NativeString:
		return true
	}
	return false
}

func (l *lowerer) prepareAssign(x *ast.Assign, f flags) {
	lt := x.L.Meta().Type
	if x.Op != "=" && (lt == nil || !lt.IsPrimitive()) {
		if isString(lt) && x.Op == "+=" {
			l.fail(x, "string concatenation is not supported")
		}
		l.fail(x, "operator %s cannot be applied to %s", x.Op, lt)
	}
	later := effectful(x.R)

	var dst *ref
	switch lv := x.L.(type) {
	case *ast.LocalAccess:
		dst = l.lvalueLocal(lv)
		if x.Op != "=" && later {
			// The old value is read before the right side runs.
			l.materialize(lv, flagStable, true)
		}
	case *ast.FieldAccess:
		if tgt := target(lv.X); tgt != nil {
			tf := flags(0)
			if !l.isStatic(lv) && !ast.NonNull(tgt) {
				tf = flagReusable
			}
			if later {
				tf |= flagReusable | flagStable
			}
			l.prepare(tgt, tf)
		}
		dst = l.materialize(lv, flagReusable, true)
	case *ast.ArrayAccess:
		l.prepareArray(lv, later || effectful(lv.Index))
		idxf := flagReusable
		if later {
			idxf |= flagStable
		}
		l.prepare(lv.Index, idxf)
		dst = l.materialize(lv, flagReusable, true)
	default:
		panic(internalError("cannot assign to %T", x.L))
	}

	rf := flags(0)
	if x.Op == "=" {
		if dst.multi() {
			rf = flagMultiref
		}
		if into(x.R) && l.tags[x.R] == nil {
			l.tags[x.R] = dst
		}
	} else if divides(strings.TrimSuffix(x.Op, "="), x.L.Meta().Type) {
		rf = flagReusable
	}
	l.prepare(x.R, rf)
}

// store writes the value of x into dst.
func (l *lowerer) store(dst *ref, x ast.Expr) string {
	if l.tags[x] == dst {
		return l.eval(x)
	}
	m := dst.multi() && l.isMulti(x)
	return dst.assignPrefix(m) + l.value(x, m) + dst.assignSuffix(m)
}

func (l *lowerer) lowerAssign(x *ast.Assign) *lowered {
	lw := &lowered{}
	compound := x.Op != "="

	switch lv := x.L.(type) {
	case *ast.LocalAccess:
		dst := l.lvalueLocal(lv)
		if !compound {
			lw.pre = append(lw.pre, l.store(dst, x.R))
			break
		}
		l.hoist(&lw.pre, lv)
		old := l.use(lv, false)
		l.hoist(&lw.pre, x.R)
		lw.pre = append(lw.pre, dst.assignPrefix(false)+l.compound(x, old)+dst.assignSuffix(false))

	case *ast.FieldAccess:
		own := l.tags[lv]
		obj, check := l.fieldTarget(lv, &lw.pre)
		if !compound {
			lw.pre = append(lw.pre, l.store(own, x.R))
			if check != "" {
				lw.pre = append(lw.pre, check)
			}
		} else {
			if check != "" {
				lw.pre = append(lw.pre, check)
			}
			lw.pre = append(lw.pre, own.assignPrefix(false)+l.fieldGet(lv, obj)+own.assignSuffix(false))
			l.hoist(&lw.pre, x.R)
			lw.pre = append(lw.pre, own.assignPrefix(false)+l.compound(x, own.use(false))+own.assignSuffix(false))
		}
		lw.pre = append(lw.pre, l.fieldSet(lv, obj, own.use(false)))

	case *ast.ArrayAccess:
		own := l.tags[lv]
		arr, idx := l.elementTarget(lv, &lw.pre)
		checks := l.elementChecks(lv, arr, idx)
		if !compound {
			lw.pre = append(lw.pre, l.store(own, x.R))
			lw.pre = append(lw.pre, checks...)
		} else {
			lw.pre = append(lw.pre, checks...)
			lw.pre = append(lw.pre, own.assignPrefix(false)+l.element(lv, idx)+own.assignSuffix(false))
			l.hoist(&lw.pre, x.R)
			lw.pre = append(lw.pre, own.assignPrefix(false)+l.compound(x, own.use(false))+own.assignSuffix(false))
		}
		if lv.Type.IsPrimitive() {
			lw.pre = append(lw.pre, l.element(lv, idx)+" = "+own.use(false))
		} else {
			lw.pre = append(lw.pre, "JNI_SET_OBJECT_ARRAY_ELEMENT("+arr+", "+idx+", "+own.use(false)+")", l.handle())
		}
	}
	return lw
}

// assignUse reads the variable an assignment stored into.
func (l *lowerer) assignUse(x *ast.Assign, multi bool) string {
	if lv, ok := x.L.(*ast.LocalAccess); ok {
		return l.lvalueLocal(lv).use(multi)
	}
	return l.tags[x.L].use(multi)
}

// compound returns old op= x.R as a value of the left side's type.
func (l *lowerer) compound(x *ast.Assign, old string) string {
	op := strings.TrimSuffix(x.Op, "=")
	lt := x.L.Meta().Type
	rt := refType(x.R)
	if rt == nil {
		rt = lt
	}
	r := l.use(x.R, false)

	var t *types.Type
	switch {
	case op == "<<" || op == ">>" || op == ">>>":
		t = types.UnaryPromote(lt)
		r = conv(rt, types.UnaryPromote(rt), r)
	case lt == types.BooleanType:
		t = lt
	default:
		t = types.BinaryPromote(lt, rt)
		r = conv(rt, t, r)
	}
	return "((" + abiName(lt) + ")" + l.arith(op, t, conv(lt, t, old), r) + ")"
}
