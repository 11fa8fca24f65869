// Package semantic binds names, resolves overloads, types expressions and
// computes exception sets for a parsed unit. It leaves the AST in the
// resolved form the lowering engine consumes.
package semantic

import (
	"janet/internal/ast"
	"janet/internal/deps"
	"janet/internal/diag"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// Unit is the analysed form of one source file.
type Unit struct {
	AST     *ast.Unit
	Classes []*Class
}

// Class pairs a class declaration with its dependency registry.
type Class struct {
	Decl    *ast.ClassDecl
	Deps    *deps.Registry
	Natives []*NativeMethod
}

// NativeMethod is a native method together with the dependencies its body
// uses.
type NativeMethod struct {
	Decl  *ast.MethodDecl
	Usage *deps.Usage
}

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

// Scope maps variable names to their declarations within one block.
type Scope struct {
	parent  *Scope
	symbols map[string]*ast.VarDecl
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*ast.VarDecl)}
}

func (s *Scope) define(d *ast.VarDecl) {
	s.symbols[d.Name] = d
}

func (s *Scope) lookup(name string) *ast.VarDecl {
	for sc := s; sc != nil; sc = sc.parent {
		if d, ok := sc.symbols[name]; ok {
			return d
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Analyzer
// ---------------------------------------------------------------------------

// Analyzer walks one unit. The per-method fields are reset for every native
// method.
type Analyzer struct {
	u     *types.Universe
	file  string
	pkg   string
	diags diag.List

	cls    *types.Class
	method *types.Method
	usage  *deps.Usage
	scope  *Scope

	// handlers holds the exception classes caught or declared at each
	// enclosing level, innermost last.
	handlers [][]*types.Class
}

// Analyze resolves unit against the classes of u. The unit's own classes
// are defined in u as a side effect.
func Analyze(unit *ast.Unit, u *types.Universe) (*Unit, diag.List) {
	a := &Analyzer{u: u, file: unit.File, pkg: unit.Package}

	a.declareClasses(unit)
	for _, c := range unit.Classes {
		a.defineSuper(c)
	}
	for _, c := range unit.Classes {
		a.defineMembers(c)
	}

	out := &Unit{AST: unit}
	for _, c := range unit.Classes {
		if c.Class == nil {
			continue
		}
		info := &Class{Decl: c, Deps: deps.New(c.Class)}
		for _, m := range c.NativeMethods() {
			if m.Method == nil {
				continue
			}
			usage := info.Deps.NewUsage()
			a.analyzeNative(c.Class, m, usage)
			info.Natives = append(info.Natives, &NativeMethod{Decl: m, Usage: usage})
		}
		out.Classes = append(out.Classes, info)
	}

	a.diags.Sort()
	return out, a.diags
}

func (a *Analyzer) errorf(pos ast.Position, format string, args ...any) {
	a.diags.Errorf(diag.PhaseSemantic, a.file, pos, format, args...)
}

func (a *Analyzer) qualify(name string) string {
	if a.pkg == "" {
		return name
	}
	return a.pkg + "." + name
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (a *Analyzer) declareClasses(unit *ast.Unit) {
	for _, c := range unit.Classes {
		cls := &types.Class{Name: a.qualify(c.Name), Final: c.Final}
		if err := a.u.Define(cls); err != nil {
			a.errorf(c.Pos, "%v", err)
			continue
		}
		c.Class = cls
	}
}

func (a *Analyzer) defineSuper(c *ast.ClassDecl) {
	cls := c.Class
	if cls == nil {
		return
	}
	cls.Super = a.u.Object
	if c.Super == nil {
		return
	}
	t := a.resolveTypeRef(c.Super)
	if t == nil {
		return
	}
	switch {
	case t.Kind != types.Reference:
		a.errorf(c.Super.Pos, "cannot extend %s", t)
	case t.Class.Interface:
		a.errorf(c.Super.Pos, "cannot extend interface %s", t)
	case t.Class.Final:
		a.errorf(c.Super.Pos, "cannot extend final class %s", t)
	case t.Class.IsSubclassOf(cls):
		a.errorf(c.Super.Pos, "cyclic inheritance involving %s", cls.Name)
	default:
		cls.Super = t.Class
	}
}

func (a *Analyzer) defineMembers(c *ast.ClassDecl) {
	cls := c.Class
	if cls == nil {
		return
	}
	a.cls = cls

	seenFields := map[string]bool{}
	for _, f := range c.Fields {
		if seenFields[f.Name] {
			a.errorf(f.Pos, "field %s is already defined in class %s", f.Name, cls.Name)
			continue
		}
		seenFields[f.Name] = true
		t := a.resolveTypeRef(f.Type)
		if t == nil {
			continue
		}
		if t == types.VoidType {
			a.errorf(f.Type.Pos, "field %s cannot have type void", f.Name)
			continue
		}
		f.Field = cls.AddField(&types.Field{Name: f.Name, Type: t, Static: f.Static, Final: f.Final})
	}

	seenMethods := map[string]bool{}
	for _, m := range c.Methods {
		method := a.methodSignature(m)
		if method == nil {
			continue
		}
		key := m.Name + paramKey(method.Params)
		if seenMethods[key] {
			a.errorf(m.Pos, "method %s(%s) is already defined in class %s", m.Name, method.ParamNames(), cls.Name)
			continue
		}
		seenMethods[key] = true
		m.Method = cls.AddMethod(method)
	}
}

func paramKey(params []*types.Type) string {
	s := "("
	for _, p := range params {
		s += p.Signature()
	}
	return s + ")"
}

// methodSignature builds the types.Method of a declaration, or returns nil
// after reporting why it cannot.
func (a *Analyzer) methodSignature(m *ast.MethodDecl) *types.Method {
	ok := true
	method := &types.Method{Name: m.Name, Static: m.Static, Final: m.Final, Native: m.Body != nil, Ctor: m.Ctor}

	if m.Ctor {
		if m.Static {
			a.errorf(m.Pos, "constructor %s cannot be static", m.Name)
			ok = false
		}
		if m.Body != nil {
			a.errorf(m.Pos, "constructor %s cannot be native", m.Name)
			ok = false
		}
	} else {
		method.Return = a.resolveTypeRef(m.Return)
		ok = ok && method.Return != nil
	}

	seen := map[string]bool{}
	for _, p := range m.Params {
		t := a.resolveTypeRef(p.Type)
		switch {
		case t == nil:
			ok = false
			continue
		case t == types.VoidType:
			a.errorf(p.Type.Pos, "parameter %s cannot have type void", p.Name)
			ok = false
			continue
		case seen[p.Name]:
			a.errorf(p.Pos, "variable %s is already defined in method %s", p.Name, m.Name)
			ok = false
		}
		seen[p.Name] = true
		method.Params = append(method.Params, t)
	}

	for _, tr := range m.Throws {
		t := a.resolveTypeRef(tr)
		if t == nil {
			ok = false
			continue
		}
		if t.Kind != types.Reference || !t.Class.IsSubclassOf(a.u.Throwable) {
			a.errorf(tr.Pos, "incompatible types: %s cannot be converted to Throwable", t)
			ok = false
			continue
		}
		method.Throws = append(method.Throws, t.Class)
	}

	if !ok {
		return nil
	}
	return method
}

// resolveTypeRef resolves a written type and records it on the node.
func (a *Analyzer) resolveTypeRef(t *ast.TypeRef) *types.Type {
	if t == nil {
		return nil
	}
	if t.Type != nil {
		return t.Type
	}
	base := types.Primitive(t.Name)
	if base == nil {
		c := a.u.Resolve(t.Name, a.pkg)
		if c == nil {
			a.errorf(t.Pos, "cannot find symbol: class %s", t.Name)
			return nil
		}
		base = c.Type()
	}
	if base == types.VoidType && t.Dims > 0 {
		a.errorf(t.Pos, "illegal array of void")
		return nil
	}
	t.Type = types.ArrayType(base, t.Dims)
	return t.Type
}

// ---------------------------------------------------------------------------
// Native methods
// ---------------------------------------------------------------------------

func (a *Analyzer) analyzeNative(cls *types.Class, m *ast.MethodDecl, usage *deps.Usage) {
	a.cls = cls
	a.method = m.Method
	a.usage = usage
	a.scope = newScope(nil)
	a.handlers = [][]*types.Class{m.Method.Throws}

	for _, p := range m.Params {
		a.scope.define(p)
	}
	a.nativeCode(m.Body)

	a.scope = nil
	a.handlers = nil
}

// checkThrown reports c when it is a checked exception that no enclosing
// catch clause or throws declaration covers.
func (a *Analyzer) checkThrown(c *types.Class, pos ast.Position) {
	if !a.u.IsChecked(c) {
		return
	}
	for i := len(a.handlers) - 1; i >= 0; i-- {
		for _, h := range a.handlers[i] {
			if c.IsSubclassOf(h) {
				return
			}
		}
	}
	a.errorf(pos, "unreported exception %s; must be caught or declared to be thrown", c.Name)
}

// raise adds c to set and checks that it is handled.
func (a *Analyzer) raise(set *types.ExceptionSet, c *types.Class, pos ast.Position) {
	set.Add(c)
	a.checkThrown(c, pos)
}

func (a *Analyzer) inStaticContext(pos ast.Position, what string) bool {
	if a.method.Static {
		a.errorf(pos, "non-static %s cannot be referenced from a static context", what)
		return true
	}
	return false
}
