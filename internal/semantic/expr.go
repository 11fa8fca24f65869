package semantic

import (
	"strings"

	"janet/internal/ast"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Expression entry points
// ---------------------------------------------------------------------------

// rvalue resolves x as a value. The returned node replaces x in its parent.
func (a *Analyzer) rvalue(x ast.Expr) ast.Expr {
	x = a.operand(x)
	if tn, ok := x.(*ast.TypeName); ok {
		a.errorf(tn.Pos, "class %s cannot be used as a value", tn.Class.Name)
		tn.Type = nil
	}
	return x
}

// operand resolves x, allowing it to name a class.
func (a *Analyzer) operand(x ast.Expr) ast.Expr {
	switch x := x.(type) {
	case *ast.Ident:
		return a.ident(x)
	case *ast.Select:
		return a.selectExpr(x)
	case *ast.Index:
		return a.index(x)
	case *ast.Call:
		return a.call(x)
	case *ast.New:
		return a.newObject(x)
	case *ast.NewArray:
		return a.newArray(x)
	case *ast.Assign:
		return a.assign(x)
	case *ast.Binary:
		return a.binary(x)
	case *ast.Relational:
		return a.relational(x)
	case *ast.Unary:
		return a.unary(x)
	case *ast.InstanceOf:
		return a.instanceOf(x)
	case *ast.Cast:
		return a.cast(x)
	case *ast.PtrFetch:
		return a.ptrFetch(x)
	case *ast.NativeExpr:
		a.nativeCode(x.Code)
		x.Type = types.NativeType
		x.Throws = x.Code.Throws
	case *ast.NativeString:
		a.nativeCode(x.Code)
		x.Type = a.u.String.Type()
		x.Throws = x.Code.Throws
	case *ast.IntLit:
		x.Type = types.IntType
		if x.Long {
			x.Type = types.LongType
		}
	case *ast.FloatLit:
		x.Type = types.FloatType
		if x.Double {
			x.Type = types.DoubleType
		}
	case *ast.CharLit:
		x.Type = types.CharType
	case *ast.BoolLit:
		x.Type = types.BooleanType
	case *ast.NullLit:
		x.Type = types.NullType
	case *ast.StringLit:
		x.Type = a.u.String.Type()
		x.Index = a.usage.String(x.Value)
	case *ast.This:
		if !a.inStaticContext(x.Pos, "variable this") {
			x.Type = a.cls.Type()
		}
	}
	return x
}

func typeOf(x ast.Expr) *types.Type { return x.Meta().Type }

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

func (a *Analyzer) ident(id *ast.Ident) ast.Expr {
	if id.Name == "<error>" {
		return id
	}
	if d := a.scope.lookup(id.Name); d != nil {
		return &ast.LocalAccess{Decl: d, Typed: ast.Typed{Type: d.Type.Type}, Span: id.Span}
	}
	if f := a.cls.LookupField(id.Name); f != nil {
		if !f.Static && a.inStaticContext(id.Pos, "field "+f.Name) {
			return id
		}
		return a.fieldAccess(nil, f, id.Span)
	}
	if c := a.u.Resolve(id.Name, a.pkg); c != nil {
		return &ast.TypeName{Class: c, Span: id.Span}
	}
	a.errorf(id.Pos, "cannot find symbol: %s", id.Name)
	return id
}

// qualifiedName flattens a chain of simple names such as a.b.C.
func qualifiedName(x ast.Expr) ([]string, bool) {
	switch x := x.(type) {
	case *ast.Ident:
		return []string{x.Name}, true
	case *ast.Select:
		parts, ok := qualifiedName(x.X)
		if !ok {
			return nil, false
		}
		return append(parts, x.Name), true
	}
	return nil, false
}

// isValueOrClass reports whether a simple name resolves without a package
// prefix.
func (a *Analyzer) isValueOrClass(name string) bool {
	return a.scope.lookup(name) != nil || a.cls.LookupField(name) != nil || a.u.Resolve(name, a.pkg) != nil
}

func (a *Analyzer) selectExpr(s *ast.Select) ast.Expr {
	if parts, ok := qualifiedName(s); ok && !a.isValueOrClass(parts[0]) {
		return a.packageQualified(parts, s.Span)
	}
	target := a.operand(s.X)
	return a.selectOn(target, s.Name, s.Span)
}

// packageQualified resolves a name that starts with a package, using the
// shortest prefix that names a class.
func (a *Analyzer) packageQualified(parts []string, span ast.Span) ast.Expr {
	for k := 2; k <= len(parts); k++ {
		c := a.u.Lookup(strings.Join(parts[:k], "."))
		if c == nil {
			continue
		}
		var x ast.Expr = &ast.TypeName{Class: c, Span: span}
		for _, name := range parts[k:] {
			x = a.selectOn(x, name, span)
		}
		return x
	}
	a.errorf(span.Pos, "cannot find symbol: %s", strings.Join(parts, "."))
	return &ast.Ident{Name: "<error>", Span: span}
}

// selectOn resolves member name of an already resolved target.
func (a *Analyzer) selectOn(target ast.Expr, name string, span ast.Span) ast.Expr {
	if tn, ok := target.(*ast.TypeName); ok {
		f := tn.Class.LookupField(name)
		if f == nil {
			a.errorf(span.Pos, "cannot find symbol: field %s in class %s", name, tn.Class.Name)
			return &ast.Ident{Name: "<error>", Span: span}
		}
		if !f.Static {
			a.errorf(span.Pos, "non-static field %s cannot be referenced from a static context", name)
		}
		return a.fieldAccess(nil, f, span)
	}

	t := typeOf(target)
	if t == nil {
		return &ast.Ident{Name: "<error>", Span: span}
	}
	switch {
	case t.Kind == types.Array && name == "length":
		fa := &ast.FieldAccess{X: target, Name: name, Length: true, Span: span}
		fa.Type = types.IntType
		fa.Throws = a.nullCheck(target)
		return fa
	case t.Kind == types.Reference:
		f := t.Class.LookupField(name)
		if f == nil {
			a.errorf(span.Pos, "cannot find symbol: field %s in class %s", name, t.Class.Name)
			return &ast.Ident{Name: "<error>", Span: span}
		}
		if f.Static {
			a.errorf(span.Pos, "static field %s must be accessed through its class", name)
		}
		return a.fieldAccess(target, f, span)
	}
	a.errorf(span.Pos, "%s cannot be dereferenced", t)
	return &ast.Ident{Name: "<error>", Span: span}
}

// fieldAccess builds a resolved field access and registers the field.
func (a *Analyzer) fieldAccess(x ast.Expr, f *types.Field, span ast.Span) *ast.FieldAccess {
	fa := &ast.FieldAccess{X: x, Name: f.Name, Field: f, Span: span}
	fa.Type = f.Type
	if f.Static {
		a.usage.Class(f.Owner.Type())
	}
	fa.Class, fa.Slot = a.usage.Field(f)
	if x != nil {
		fa.Throws = a.nullCheck(x)
	}
	return fa
}

// nullCheck returns the exceptions of dereferencing x: its own, plus a
// NullPointerException unless x is provably non-null.
func (a *Analyzer) nullCheck(x ast.Expr) types.ExceptionSet {
	set := x.Meta().Throws
	if !ast.NonNull(x) {
		set.Add(a.u.NullPointerException)
	}
	return set
}

func (a *Analyzer) index(ix *ast.Index) ast.Expr {
	x := a.rvalue(ix.X)
	i := a.rvalue(ix.Index)
	aa := &ast.ArrayAccess{X: x, Index: i, Span: ix.Span}
	aa.Throws = a.nullCheck(x)
	aa.Throws.AddAll(i.Meta().Throws)
	aa.Throws.Add(a.u.ArrayIndexOutOfBoundsException)

	a.intOperand(i, "array index")
	t := typeOf(x)
	if t == nil {
		return aa
	}
	if t.Kind != types.Array {
		a.errorf(x.GetPos(), "array required, but %s found", t)
		return aa
	}
	aa.Type = t.Elem
	if t.Elem.IsPrimitive() {
		a.usage.AddPinnedArray()
	}
	return aa
}

// intOperand checks that x promotes to int and converts it.
func (a *Analyzer) intOperand(x ast.Expr, what string) {
	t := typeOf(x)
	if t == nil {
		return
	}
	if t.Kind == types.Native {
		x.Meta().CastTo = types.IntType
		return
	}
	if !t.IsIntegral() || types.UnaryPromote(t) != types.IntType {
		a.errorf(x.GetPos(), "incompatible types: %s cannot be used as %s", t, what)
		return
	}
	convert(x, types.IntType)
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// convert records an implicit conversion of x to t when the native
// representations differ.
func convert(x ast.Expr, t *types.Type) {
	m := x.Meta()
	if m.Type == nil || t == nil || m.Type == t {
		return
	}
	if m.Type.Kind == types.Native || t.IsPrimitive() {
		m.CastTo = t
	}
}

// assignConv checks that x can be assigned to a variable of type t.
func (a *Analyzer) assignConv(x ast.Expr, t *types.Type) {
	from := typeOf(x)
	if from == nil || t == nil {
		return
	}
	if a.u.AssignableTo(from, t) {
		convert(x, t)
		return
	}
	if constantFits(x, t) {
		x.Meta().CastTo = t
		return
	}
	a.errorf(x.GetPos(), "incompatible types: %s cannot be converted to %s", from, t)
}

// constantFits implements the narrowing of int constants to byte, short
// and char in assignments.
func constantFits(x ast.Expr, t *types.Type) bool {
	var v int64
	switch x := x.(type) {
	case *ast.IntLit:
		if x.Long {
			return false
		}
		v = x.Value
	case *ast.CharLit:
		v = int64(x.Value)
	default:
		return false
	}
	switch t.Kind {
	case types.Byte:
		return v >= -128 && v <= 127
	case types.Short:
		return v >= -32768 && v <= 32767
	case types.Char:
		return v >= 0 && v <= 0xffff
	}
	return false
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (a *Analyzer) assign(as *ast.Assign) ast.Expr {
	as.L = a.rvalue(as.L)
	as.R = a.rvalue(as.R)
	as.Throws = as.L.Meta().Throws
	as.Throws.AddAll(as.R.Meta().Throws)

	switch l := as.L.(type) {
	case *ast.LocalAccess, *ast.ArrayAccess:
	case *ast.FieldAccess:
		if l.Length {
			a.errorf(l.Pos, "cannot assign a value to final variable length")
		} else if l.Field != nil && l.Field.Final {
			a.errorf(l.Pos, "cannot assign a value to final variable %s", l.Name)
		}
	case *ast.Ident:
	default:
		a.errorf(as.L.GetPos(), "invalid assignment target")
	}

	lt, rt := typeOf(as.L), typeOf(as.R)
	as.Type = lt
	if lt == nil || rt == nil {
		return as
	}
	if as.Op == "=" {
		a.assignConv(as.R, lt)
		return as
	}
	if !lt.IsPrimitive() {
		// Rejected during lowering: references support plain assignment only.
		return as
	}
	op := strings.TrimSuffix(as.Op, "=")
	if a.operatorType(op, as.L, as.R, as.Pos, false) == nil {
		return as
	}
	if (op == "/" || op == "%") && types.BinaryPromote(lt, rt).IsIntegral() {
		as.Throws.Add(a.u.ArithmeticException)
	}
	return as
}

func (a *Analyzer) binary(b *ast.Binary) ast.Expr {
	b.L = a.rvalue(b.L)
	b.R = a.rvalue(b.R)
	b.Throws = b.L.Meta().Throws
	b.Throws.AddAll(b.R.Meta().Throws)
	b.Type = a.operatorType(b.Op, b.L, b.R, b.Pos, true)
	if (b.Op == "/" || b.Op == "%") && b.Type != nil && b.Type.IsIntegral() {
		b.Throws.Add(a.u.ArithmeticException)
	}
	return b
}

// operatorType types the binary operator op on l and r and returns the
// result type, or nil after an error. With promote set, the operands are
// converted to the operation type.
func (a *Analyzer) operatorType(op string, l, r ast.Expr, pos ast.Position, promote bool) *types.Type {
	lt, rt := typeOf(l), typeOf(r)
	if lt == nil || rt == nil {
		return nil
	}
	if lt, rt = a.nativeOperands(l, r, op, pos); lt == nil {
		return nil
	}
	bad := func() *types.Type {
		if op == "+" && (lt.Kind == types.Reference || rt.Kind == types.Reference) {
			a.errorf(pos, "string concatenation is not supported")
			return nil
		}
		a.errorf(pos, "bad operand types for binary operator '%s': %s and %s", op, lt, rt)
		return nil
	}

	switch op {
	case "&&", "||":
		if lt != types.BooleanType || rt != types.BooleanType {
			return bad()
		}
		return types.BooleanType

	case "+", "-", "*", "/", "%":
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return bad()
		}
		t := types.BinaryPromote(lt, rt)
		if promote {
			convert(l, t)
			convert(r, t)
		}
		return t

	case "&", "|", "^":
		if lt == types.BooleanType && rt == types.BooleanType {
			return types.BooleanType
		}
		if !lt.IsIntegral() || !rt.IsIntegral() {
			return bad()
		}
		t := types.BinaryPromote(lt, rt)
		if promote {
			convert(l, t)
			convert(r, t)
		}
		return t

	case "<<", ">>", ">>>":
		if !lt.IsIntegral() || !rt.IsIntegral() {
			return bad()
		}
		t := types.UnaryPromote(lt)
		if promote {
			convert(l, t)
			convert(r, types.UnaryPromote(rt))
		}
		return t
	}
	return bad()
}

// nativeOperands gives a native operand the type of the other operand.
// Two native operands cannot be typed.
func (a *Analyzer) nativeOperands(l, r ast.Expr, op string, pos ast.Position) (*types.Type, *types.Type) {
	lt, rt := typeOf(l), typeOf(r)
	ln, rn := lt.Kind == types.Native, rt.Kind == types.Native
	switch {
	case ln && rn:
		a.errorf(pos, "operator '%s' cannot be applied to two native values; cast one of them", op)
		return nil, nil
	case ln:
		if rt.Kind != types.Null {
			l.Meta().CastTo = rt
		}
		return rt, rt
	case rn:
		if lt.Kind != types.Null {
			r.Meta().CastTo = lt
		}
		return lt, lt
	}
	return lt, rt
}

func (a *Analyzer) relational(r *ast.Relational) ast.Expr {
	r.L = a.rvalue(r.L)
	r.R = a.rvalue(r.R)
	r.Throws = r.L.Meta().Throws
	r.Throws.AddAll(r.R.Meta().Throws)
	r.Type = types.BooleanType

	if typeOf(r.L) == nil || typeOf(r.R) == nil {
		return r
	}
	lt, rt := a.nativeOperands(r.L, r.R, r.Op, r.Pos)
	if lt == nil {
		return r
	}
	switch {
	case lt.IsNumeric() && rt.IsNumeric():
		t := types.BinaryPromote(lt, rt)
		convert(r.L, t)
		convert(r.R, t)
		return r
	case r.Op != "==" && r.Op != "!=":
		a.errorf(r.Pos, "bad operand types for binary operator '%s': %s and %s", r.Op, lt, rt)
	case lt == types.BooleanType && rt == types.BooleanType:
	case lt.IsReference() && rt.IsReference():
		if a.u.Cast(lt, rt) == types.CastIncorrect && a.u.Cast(rt, lt) == types.CastIncorrect {
			a.errorf(r.Pos, "incomparable types: %s and %s", lt, rt)
		}
	default:
		a.errorf(r.Pos, "incomparable types: %s and %s", lt, rt)
	}
	return r
}

func (a *Analyzer) unary(u *ast.Unary) ast.Expr {
	u.X = a.rvalue(u.X)
	u.Throws = u.X.Meta().Throws
	t := typeOf(u.X)
	if t == nil {
		return u
	}
	if t.Kind == types.Native {
		a.errorf(u.Pos, "operator '%s' cannot be applied to a native value; cast it first", u.Op)
		return u
	}
	switch u.Op {
	case "-", "+":
		if t.IsNumeric() {
			u.Type = types.UnaryPromote(t)
		}
	case "~":
		if t.IsIntegral() {
			u.Type = types.UnaryPromote(t)
		}
	case "!":
		if t == types.BooleanType {
			u.Type = t
		}
	}
	if u.Type == nil {
		a.errorf(u.Pos, "bad operand type %s for unary operator '%s'", t, u.Op)
		return u
	}
	convert(u.X, u.Type)
	return u
}

// ---------------------------------------------------------------------------
// Type tests and conversions
// ---------------------------------------------------------------------------

func (a *Analyzer) instanceOf(io *ast.InstanceOf) ast.Expr {
	io.X = a.rvalue(io.X)
	io.Throws = io.X.Meta().Throws
	io.Type = types.BooleanType
	io.ClsIdx = -1

	from, to := typeOf(io.X), a.resolveTypeRef(io.Target)
	if from == nil || to == nil {
		return io
	}
	if !from.IsReference() {
		a.errorf(io.X.GetPos(), "unexpected type: required reference, found %s", from)
		return io
	}
	if !to.IsReference() {
		a.errorf(io.Target.Pos, "unexpected type: required reference, found %s", to)
		return io
	}
	switch a.u.Cast(from, to) {
	case types.CastIncorrect:
		a.errorf(io.Pos, "incompatible types: %s cannot be converted to %s", from, to)
	case types.CastCorrect:
		io.Always = true
	default:
		io.ClsIdx = a.usage.Class(to)
	}
	return io
}

func (a *Analyzer) cast(c *ast.Cast) ast.Expr {
	c.X = a.rvalue(c.X)
	c.Throws = c.X.Meta().Throws
	c.ClsIdx = -1

	from, to := typeOf(c.X), a.resolveTypeRef(c.Target)
	c.Type = to
	if from == nil || to == nil {
		return c
	}
	switch a.u.Cast(from, to) {
	case types.CastIncorrect:
		a.errorf(c.Pos, "incompatible types: %s cannot be converted to %s", from, to)
	case types.CastRTCheck:
		c.RTCheck = true
		c.ClsIdx = a.usage.Class(to)
		c.Throws.Add(a.u.ClassCastException)
	}
	return c
}

// ptrFetch types &x and #&x. Which operand types are supported is decided
// during lowering.
func (a *Analyzer) ptrFetch(p *ast.PtrFetch) ast.Expr {
	p.X = a.rvalue(p.X)
	p.Type = types.NativeType
	p.Throws = a.nullCheck(p.X)
	if t := typeOf(p.X); t != nil && t.IsPrimitiveArray() {
		a.usage.AddPinnedArray()
	}
	return p
}
