package semantic

import (
	"strings"

	"janet/internal/ast"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

func (a *Analyzer) call(c *ast.Call) ast.Expr {
	var target ast.Expr
	var owner *types.Class
	static := false // the target names a class

	switch {
	case c.Super:
		if a.inStaticContext(c.Pos, "variable super") {
			break
		}
		owner = a.cls.Super
	case c.X == nil:
		owner = a.cls
	default:
		if parts, ok := qualifiedName(c.X); ok && !a.isValueOrClass(parts[0]) {
			target = a.packageQualified(parts, spanOf(c.X))
		} else {
			target = a.operand(c.X)
		}
		c.X = target
		if tn, ok := target.(*ast.TypeName); ok {
			owner, static = tn.Class, true
			break
		}
		owner = a.receiverClass(target, c.Pos)
	}

	argTypes := a.args(c.Args)
	for _, arg := range c.Args {
		c.Throws.AddAll(arg.Meta().Throws)
	}
	if owner == nil || argTypes == nil {
		return c
	}

	m := a.chooseMethod(owner.MethodsNamed(c.Name), c.Args, argTypes, c.Name, owner, c.Pos)
	if m == nil {
		return c
	}
	c.Method = m
	c.Type = m.Return

	switch {
	case c.Super:
		if m.Static {
			a.errorf(c.Pos, "static method %s cannot be called through super", m)
		}
		c.Mode = ast.CallSuper
	case m.Static:
		if target != nil && !static {
			a.errorf(c.Pos, "static method %s must be called through its class", m)
		}
		c.Mode = ast.CallStatic
		a.usage.Class(m.Owner.Type())
	case static:
		a.errorf(c.Pos, "non-static method %s cannot be referenced from a static context", m)
	case target == nil && a.inStaticContext(c.Pos, "method "+m.String()):
	case m.Final || m.Owner.Final:
		c.Mode = ast.CallNonvirtual
	default:
		c.Mode = ast.CallVirtual
	}

	if target != nil && !static {
		c.Throws = a.nullCheck(target)
		for _, arg := range c.Args {
			c.Throws.AddAll(arg.Meta().Throws)
		}
	}
	for _, t := range m.Throws {
		a.raise(&c.Throws, t, c.Pos)
	}

	if isStringLength(a.u, m) {
		c.Class, c.Slot = -1, -1
	} else {
		c.Class, c.Slot = a.usage.Method(m)
	}
	return c
}

// isStringLength reports whether m is String.length(), which lowers to a
// direct JNI call without a method ID.
func isStringLength(u *types.Universe, m *types.Method) bool {
	return m.Owner == u.String && m.Name == "length" && len(m.Params) == 0
}

// receiverClass returns the class whose methods an instance call on target
// can see.
func (a *Analyzer) receiverClass(target ast.Expr, pos ast.Position) *types.Class {
	t := typeOf(target)
	if t == nil {
		return nil
	}
	switch t.Kind {
	case types.Reference:
		return t.Class
	case types.Array:
		return a.u.Object
	case types.Native:
		a.errorf(pos, "cannot invoke a method on a native value; cast it first")
	default:
		a.errorf(pos, "%s cannot be dereferenced", t)
	}
	return nil
}

// args resolves call arguments in place. It returns nil when some argument
// could not be typed.
func (a *Analyzer) args(args []ast.Expr) []*types.Type {
	ts := make([]*types.Type, len(args))
	ok := true
	for i := range args {
		args[i] = a.rvalue(args[i])
		ts[i] = typeOf(args[i])
		ok = ok && ts[i] != nil
	}
	if !ok {
		return nil
	}
	return ts
}

func spanOf(n ast.Node) ast.Span {
	return ast.Span{Pos: n.GetPos(), End: n.GetEnd()}
}

// ---------------------------------------------------------------------------
// Overload resolution
// ---------------------------------------------------------------------------

// chooseMethod picks the most specific applicable candidate and converts the
// arguments to its parameter types.
func (a *Analyzer) chooseMethod(cands []*types.Method, args []ast.Expr, argTypes []*types.Type,
	name string, owner *types.Class, pos ast.Position) *types.Method {
	what := "method " + name
	if name == "<init>" {
		what = "constructor " + owner.SimpleName()
	}
	if len(cands) == 0 {
		a.errorf(pos, "cannot find symbol: %s in class %s", what, owner.Name)
		return nil
	}

	var applicable []*types.Method
	for _, m := range cands {
		if a.applicable(m, argTypes) {
			applicable = append(applicable, m)
		}
	}
	if len(applicable) == 0 {
		a.errorf(pos, "no suitable %s found for argument types (%s)", what, typeList(argTypes))
		return nil
	}

	var best *types.Method
	for _, m := range applicable {
		most := true
		for _, n := range applicable {
			if n != m && !a.moreSpecific(m, n) {
				most = false
				break
			}
		}
		if most {
			best = m
			break
		}
	}
	if best == nil {
		a.errorf(pos, "reference to %s is ambiguous for argument types (%s)", name, typeList(argTypes))
		return nil
	}

	for i, arg := range args {
		convert(arg, best.Params[i])
	}
	return best
}

func (a *Analyzer) applicable(m *types.Method, argTypes []*types.Type) bool {
	if len(m.Params) != len(argTypes) {
		return false
	}
	for i, p := range m.Params {
		if !a.u.AssignableTo(argTypes[i], p) {
			return false
		}
	}
	return true
}

// moreSpecific reports whether every parameter of m converts to the
// matching parameter of n.
func (a *Analyzer) moreSpecific(m, n *types.Method) bool {
	for i, p := range m.Params {
		if !a.u.AssignableTo(p, n.Params[i]) {
			return false
		}
	}
	return true
}

func typeList(ts []*types.Type) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return strings.Join(names, ", ")
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

func (a *Analyzer) newObject(n *ast.New) ast.Expr {
	t := a.resolveTypeRef(n.Class)
	argTypes := a.args(n.Args)
	for _, arg := range n.Args {
		n.Throws.AddAll(arg.Meta().Throws)
	}
	if t == nil {
		return n
	}
	if t.Kind != types.Reference {
		a.errorf(n.Class.Pos, "cannot instantiate %s", t)
		return n
	}
	cls := t.Class
	if cls.Interface {
		a.errorf(n.Class.Pos, "%s is abstract; cannot be instantiated", cls.Name)
		return n
	}
	n.Type = t
	if argTypes == nil {
		return n
	}
	if len(cls.Ctors) == 0 {
		// Classes that declare no constructor get the default one.
		cls.AddMethod(&types.Method{Ctor: true})
	}
	ctor := a.chooseMethod(cls.Ctors, n.Args, argTypes, "<init>", cls, n.Pos)
	if ctor == nil {
		return n
	}
	n.Ctor = ctor
	for _, c := range ctor.Throws {
		a.raise(&n.Throws, c, n.Pos)
	}
	n.ClsIdx = a.usage.Class(t)
	_, n.Slot = a.usage.Method(ctor)
	return n
}

func (a *Analyzer) newArray(n *ast.NewArray) ast.Expr {
	for i := range n.Dims {
		n.Dims[i] = a.rvalue(n.Dims[i])
		n.Throws.AddAll(n.Dims[i].Meta().Throws)
		a.intOperand(n.Dims[i], "array dimension")
	}
	n.Throws.Add(a.u.NegativeArraySizeException)

	elem := a.resolveTypeRef(n.Elem)
	if elem == nil {
		return n
	}
	if elem == types.VoidType {
		a.errorf(n.Elem.Pos, "illegal array of void")
		return n
	}
	total := len(n.Dims) + n.ExtraDims
	n.Type = types.ArrayType(elem, total)
	n.ClsIdx = make([]int, len(n.Dims))
	for i := range n.Dims {
		comp := types.ArrayType(elem, total-i-1)
		if comp.IsPrimitive() {
			n.ClsIdx[i] = -1
			continue
		}
		n.ClsIdx[i] = a.usage.Class(comp)
	}
	return n
}
