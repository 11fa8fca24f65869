package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"janet/internal/ast"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// PREPARE
// ---------------------------------------------------------------------------

// prepare walks x before any text is written. It decides which values are
// held in references and records exception facts on the current scope.
func (l *lowerer) prepare(x ast.Expr, f flags) {
	switch x := x.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.CharLit, *ast.BoolLit, *ast.NullLit, *ast.TypeName:
	case *ast.StringLit:
		if f&flagMultiref != 0 {
			l.materialize(x, f, true)
		}
	case *ast.This:
		if f&flagMultiref != 0 {
			l.fn.materializeReceiver()
		}
	case *ast.LocalAccess:
		l.prepareLocal(x, f)
	case *ast.FieldAccess:
		l.prepareField(x, f)
	case *ast.ArrayAccess:
		l.prepareElement(x, f)
	case *ast.Call:
		l.prepareCall(x, f)
	case *ast.New:
		l.prepareNew(x, f)
	case *ast.NewArray:
		l.prepareNewArray(x, f)
	case *ast.Assign:
		l.prepareAssign(x, f)
	case *ast.Binary:
		l.prepareBinary(x, f)
	case *ast.Relational:
		l.prepareOperands([]ast.Expr{x.L, x.R}, 0)
		l.materialize(x, f, false)
	case *ast.Unary:
		l.prepare(x.X, 0)
		l.materialize(x, f, false)
	case *ast.InstanceOf:
		l.prepare(x.X, 0)
		l.materialize(x, f, false)
	case *ast.Cast:
		xf := f & (flagReusable | flagStable | flagMultiref)
		if x.RTCheck {
			xf |= flagReusable
		}
		l.prepare(x.X, xf)
	case *ast.PtrFetch:
		l.fail(x, "address fetch must be the whole embedded expression")
	case *ast.NativeExpr:
		l.prepareInline(x.Code.Parts)
		l.materialize(x, f, false)
	case *ast.NativeString:
		l.prepareInline(x.Code.Parts)
		l.cur.usesLocalExceptions = true
		l.materialize(x, f, true)
	default:
		panic(internalError("cannot prepare %T", x))
	}
	if !x.Meta().Throws.Empty() {
		l.cur.usesLocalExceptions = true
	}
}

// prepareOperands prepares xs in evaluation order. An operand followed by
// an effectful one must keep its value until that one has run.
func (l *lowerer) prepareOperands(xs []ast.Expr, f flags) {
	for i, x := range xs {
		xf := f
		if anyEffectful(xs[i+1:]) {
			xf |= flagReusable | flagStable
		}
		l.prepare(x, xf)
	}
}

// materialize gives x a reference of its own when the flags ask for a
// reusable value, or always when force is set. Values without a JNI type
// cannot be held.
func (l *lowerer) materialize(x ast.Expr, f flags, force bool) *ref {
	if r := l.tags[x]; r != nil {
		if f&flagMultiref != 0 {
			r.classify(refMultiref)
		}
		return r
	}
	if !force && f&(flagReusable|flagStable|flagMultiref) == 0 {
		return nil
	}
	t := refType(x)
	if t == nil {
		return nil
	}
	r := l.fn.addVariable(newRef(t, prefixAux, ""))
	l.cur.own(r)
	if f&flagMultiref != 0 {
		r.classify(refMultiref)
	}
	l.tags[x] = r
	return r
}

// holdLocal makes the reference behind x a LOCAL_VARIABLE, so whatever is
// pinned through it is released with the enclosing block.
func (l *lowerer) holdLocal(x ast.Expr) {
	if r := l.tags[x]; r != nil {
		r.classify(refLocalVariable)
		return
	}
	switch x := x.(type) {
	case *ast.Cast:
		l.holdLocal(x.X)
	case *ast.Assign:
		l.holdLocal(x.L)
	case *ast.LocalAccess:
		l.lvalueLocal(x)
	}
}

func (l *lowerer) prepareLocal(x *ast.LocalAccess, f flags) {
	d := x.Decl
	if d.Kind == ast.VarParam && f&flagMultiref != 0 && d.Type.Type.IsReference() {
		l.fn.paramRef(d).classify(refLocalVariable)
	}
	if f&flagStable != 0 {
		l.materialize(x, f, true)
	}
}

// lvalueLocal returns the reference a variable is written through. A
// parameter gets one on first write.
func (l *lowerer) lvalueLocal(x *ast.LocalAccess) *ref {
	d := x.Decl
	if d.Kind == ast.VarParam {
		r := l.fn.paramRef(d)
		r.classify(refLocalVariable)
		return r
	}
	r, ok := l.locals[d]
	if !ok {
		panic(internalError("variable %s used before its declaration", d.Name))
	}
	return r
}

func (l *lowerer) localRef(d *ast.VarDecl) *ref {
	if d.Kind == ast.VarParam {
		return l.fn.params[d]
	}
	return l.locals[d]
}

// ---------------------------------------------------------------------------
// WRITE
// ---------------------------------------------------------------------------

// eval returns the text that performs the effects of x and stores its value
// in its reference, if it has one. It is empty for pure unheld values.
func (l *lowerer) eval(x ast.Expr) string {
	lw := l.lowered(x)
	r := l.tags[x]
	if r == nil {
		if lw.post == nil {
			return seq(lw.pre...)
		}
		return seq(concat(lw.pre, []string{lw.op}, lw.post)...)
	}
	cp := ""
	if !lw.multi {
		cp = l.castPrefix(x)
	}
	set := r.assignPrefix(lw.multi) + cp + lw.op + r.assignSuffix(lw.multi)
	return seq(concat(lw.pre, []string{set}, lw.post)...)
}

// use returns the text reading the value of x once eval has run. It is
// empty for void values.
func (l *lowerer) use(x ast.Expr, multi bool) string {
	if r := l.tags[x]; r != nil {
		return r.use(multi)
	}
	cp := ""
	if !multi {
		cp = l.castPrefix(x)
	}
	switch x := x.(type) {
	case *ast.LocalAccess:
		r := l.localRef(x.Decl)
		if r == nil {
			if multi {
				panic(internalError("multiref use of parameter %s", x.Decl.Name))
			}
			return cp + argName(x.Decl)
		}
		return cp + r.use(multi)
	case *ast.This:
		return cp + l.fn.thisUse(multi)
	case *ast.Cast:
		return cp + l.castUse(x, multi)
	case *ast.Assign:
		return cp + l.assignUse(x, multi)
	}
	if multi {
		panic(internalError("multiref use of unheld %T", x))
	}
	lw := l.lowered(x)
	if lw.post != nil {
		return ""
	}
	return cp + lw.op
}

// value returns the full text of x: effects followed by the value.
func (l *lowerer) value(x ast.Expr, multi bool) string {
	e := l.eval(x)
	u := l.use(x, multi)
	if u == "" {
		return e
	}
	return seq(e, u)
}

// hoist appends the evaluation of x to pre.
func (l *lowerer) hoist(pre *[]string, x ast.Expr) {
	if s := l.eval(x); s != "" {
		*pre = append(*pre, s)
	}
}

// isMulti reports whether x can be read as a multiref.
func (l *lowerer) isMulti(x ast.Expr) bool {
	if r := l.tags[x]; r != nil {
		return r.multi()
	}
	switch x := x.(type) {
	case *ast.LocalAccess:
		r := l.localRef(x.Decl)
		return r != nil && r.multi()
	case *ast.This:
		return l.fn.this != nil
	case *ast.Cast:
		return l.isMulti(x.X)
	case *ast.Assign:
		switch lv := x.L.(type) {
		case *ast.LocalAccess:
			return l.localRef(lv.Decl).multi()
		default:
			return l.tags[lv].multi()
		}
	}
	return false
}

func (l *lowerer) lowered(x ast.Expr) *lowered {
	if lw, ok := l.low[x]; ok {
		return lw
	}
	lw := l.lower(x)
	l.low[x] = lw
	return lw
}

func (l *lowerer) lower(x ast.Expr) *lowered {
	switch x := x.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.CharLit, *ast.BoolLit, *ast.NullLit:
		return &lowered{op: literal(x)}
	case *ast.StringLit:
		return &lowered{op: fmt.Sprintf("_janet_strings[%d].strref", x.Index)}
	case *ast.This:
		return &lowered{op: l.fn.thisUse(false)}
	case *ast.LocalAccess:
		return l.lowerLocal(x)
	case *ast.FieldAccess:
		return l.lowerField(x)
	case *ast.ArrayAccess:
		return l.lowerElement(x)
	case *ast.Call:
		return l.lowerCall(x)
	case *ast.New:
		return l.lowerNew(x)
	case *ast.NewArray:
		return l.lowerNewArray(x)
	case *ast.Assign:
		return l.lowerAssign(x)
	case *ast.Binary:
		return l.lowerBinary(x)
	case *ast.Relational:
		return l.lowerRelational(x)
	case *ast.Unary:
		return l.lowerUnary(x)
	case *ast.InstanceOf:
		return l.lowerInstanceOf(x)
	case *ast.Cast:
		return l.lowerCast(x)
	case *ast.NativeExpr:
		return &lowered{op: "(" + l.inlineCode(x.Code.Parts) + ")"}
	case *ast.NativeString:
		fn := "JNI_NEW_STRING_UTF("
		if x.Unicode {
			fn = "JNI_NEW_STRING("
		}
		return &lowered{
			op:   fn + l.inlineCode(x.Code.Parts) + ")",
			post: []string{l.handle()},
		}
	}
	panic(internalError("cannot write %T", x))
}

// lowerLocal copies a variable into its own reference.
func (l *lowerer) lowerLocal(x *ast.LocalAccess) *lowered {
	src := l.localRef(x.Decl)
	if src == nil {
		return &lowered{op: argName(x.Decl)}
	}
	m := src.multi() && l.tags[x] != nil && l.tags[x].multi()
	return &lowered{op: src.use(m), multi: m}
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

func literal(x ast.Expr) string {
	switch x := x.(type) {
	case *ast.IntLit:
		if x.Long {
			if x.Value == math.MinInt64 {
				return "((jlong)(-9223372036854775807LL - 1))"
			}
			return "((jlong)" + strconv.FormatInt(x.Value, 10) + "LL)"
		}
		if x.Value == math.MinInt32 {
			return "((jint)(-2147483647 - 1))"
		}
		return "((jint)" + strconv.FormatInt(x.Value, 10) + ")"
	case *ast.FloatLit:
		abi := "jdouble"
		bits := 64
		if !x.Double {
			abi, bits = "jfloat", 32
		}
		return "((" + abi + ")" + floatText(x.Value, bits) + ")"
	case *ast.CharLit:
		return fmt.Sprintf("((jchar)0x%x)", x.Value)
	case *ast.BoolLit:
		if x.Value {
			return "((jboolean)JNI_TRUE)"
		}
		return "((jboolean)JNI_FALSE)"
	case *ast.NullLit:
		return "((jobject)0)"
	}
	panic(internalError("not a literal: %T", x))
}

func floatText(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "(0.0/0.0)"
	case math.IsInf(v, 1):
		return "(1.0/0.0)"
	case math.IsInf(v, -1):
		return "(-1.0/0.0)"
	}
	s := strconv.FormatFloat(v, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// refType is the type a reference holding x would have, nil for values
// without a JNI representation.
func refType(x ast.Expr) *types.Type {
	m := x.Meta()
	t := m.Type
	if m.CastTo != nil && m.CastTo.Kind != types.Native {
		t = m.CastTo
	}
	if t == nil || t.Kind == types.Native || t.Kind == types.Void {
		return nil
	}
	return t
}

// castPrefix converts x to its implicit cast target when the JNI types
// differ.
func (l *lowerer) castPrefix(x ast.Expr) string {
	m := x.Meta()
	if m.CastTo == nil || m.Type == nil || m.CastTo.Kind == types.Native {
		return ""
	}
	to := abiName(m.CastTo)
	if m.Type.Kind != types.Native && abiName(m.Type) == to {
		return ""
	}
	return "(" + to + ")"
}

// conv converts text of type from to type to.
func conv(from, to *types.Type, text string) string {
	if from != nil && abiName(from) == abiName(to) {
		return text
	}
	return "(" + abiName(to) + ")" + text
}

// jniResult casts the jobject returned by a JNI function to the JNI type of
// t.
func jniResult(t *types.Type, op string) string {
	if t.IsReference() {
		if abi := abiName(t); abi != "jobject" {
			return "(" + abi + ")" + op
		}
	}
	return op
}

func isString(t *types.Type) bool {
	return t != nil && t.Kind == types.Reference && t.Class.Name == "java.lang.String"
}

func (l *lowerer) castUse(x *ast.Cast, multi bool) string {
	inner := l.use(x.X, multi)
	if multi {
		return inner
	}
	return conv(refType(x.X), x.Type, inner)
}

func (l *lowerer) lowerCast(x *ast.Cast) *lowered {
	lw := &lowered{}
	l.hoist(&lw.pre, x.X)
	if x.RTCheck {
		lw.pre = append(lw.pre, fmt.Sprintf("_JANET_CAST_RTCHECK((jobject)%s, &_janet_classes[%d])",
			l.use(x.X, false), x.ClsIdx))
	}
	lw.op = l.castUse(x, false)
	return lw
}

func (l *lowerer) lowerInstanceOf(x *ast.InstanceOf) *lowered {
	lw := &lowered{}
	l.hoist(&lw.pre, x.X)
	obj := l.use(x.X, false)
	if x.Always {
		lw.op = "((jboolean)(" + obj + " ? JNI_TRUE : JNI_FALSE))"
	} else {
		lw.op = fmt.Sprintf("_JANET_IS_INSTANCE_OF(%s, _janet_classes[%d].id)", obj, x.ClsIdx)
	}
	return lw
}

// ---------------------------------------------------------------------------
// Exception checks
// ---------------------------------------------------------------------------

// handle propagates a pending exception after a JNI call.
func (l *lowerer) handle() string {
	if l.cur.intercepting() {
		return "_JANET_LOCAL_HANDLE_EXCEPTION()"
	}
	return "_JANET_GLOBAL_HANDLE_EXCEPTION" + l.fn.retSuffix() + "()"
}

// local names a runtime check that only exists inside an interception
// region.
func (l *lowerer) local(macro string) string {
	if !l.cur.intercepting() {
		panic(internalError("%s outside an interception region", macro))
	}
	return "_JANET_LOCAL_" + macro
}

func (l *lowerer) nullCheck(obj, msg string) string {
	return l.local("ENSURE_NOT_NULL") + "(" + obj + ", " + strconv.Quote(msg) + ")"
}

// ---------------------------------------------------------------------------
// Address fetch
// ---------------------------------------------------------------------------

func (l *lowerer) preparePtrFetch(p *ast.PtrFetch) {
	t := p.X.Meta().Type
	if t == nil || !(t.IsPrimitiveArray() || isString(t)) {
		l.fail(p, "address fetch needs a primitive array or a String, found %s", t)
	}
	l.prepare(p.X, flagReusable|flagMultiref)
	l.holdLocal(p.X)
	if !p.Throws.Empty() {
		l.cur.usesLocalExceptions = true
	}
}

func (l *lowerer) ptrFetch(p *ast.PtrFetch) string {
	var pre []string
	l.hoist(&pre, p.X)
	if !ast.NonNull(p.X) {
		pre = append(pre, l.nullCheck(l.use(p.X, false), "trying to fetch the address of a null reference"))
	}
	base := l.use(p.X, true)
	t := p.X.Meta().Type
	var op string
	switch {
	case isString(t) && p.Native:
		op = "_JANET_STRING_GET_UTF(" + base + ")"
	case isString(t):
		op = "_JANET_STRING_GET_UNICODE(" + base + ")"
	case p.Native:
		op = "(" + t.Elem.CName() + "*)_JANET_ARRAY_GET_CPTR(" + base + ", " + t.Elem.Signature() + ")"
	default:
		op = "(" + t.Elem.ABIName() + "*)_JANET_ARRAY_GET_JPTR(" + base + ", " + t.Elem.Signature() + ")"
	}
	return seq(append(pre, op)...)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// effectful reports whether evaluating x can change state other operands
// read.
func effectful(x ast.Expr) bool {
	switch x := x.(type) {
	case *ast.Call, *ast.New, *ast.Assign, *ast.NativeExpr, *ast.NativeString:
		return true
	case *ast.NewArray:
		return anyEffectful(x.Dims)
	case *ast.FieldAccess:
		return x.X != nil && effectful(x.X)
	case *ast.ArrayAccess:
		return effectful(x.X) || effectful(x.Index)
	case *ast.Binary:
		return effectful(x.L) || effectful(x.R)
	case *ast.Relational:
		return effectful(x.L) || effectful(x.R)
	case *ast.Unary:
		return effectful(x.X)
	case *ast.Cast:
		return effectful(x.X)
	case *ast.InstanceOf:
		return effectful(x.X)
	case *ast.PtrFetch:
		return effectful(x.X)
	}
	return false
}

func anyEffectful(xs []ast.Expr) bool {
	for _, x := range xs {
		if effectful(x) {
			return true
		}
	}
	return false
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
