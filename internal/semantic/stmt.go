package semantic

import (
	"janet/internal/ast"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Native code
// ---------------------------------------------------------------------------

// nativeCode analyses a native region. The region is a scope of its own;
// host statements of all its segments share it.
func (a *Analyzer) nativeCode(code *ast.NativeCode) {
	a.pushScope()
	code.Throws = a.nativeParts(code.Parts)
	a.popScope()
}

func (a *Analyzer) nativeParts(parts []ast.NativePart) types.ExceptionSet {
	var set types.ExceptionSet
	for _, part := range parts {
		switch part := part.(type) {
		case *ast.NativeText:
		case *ast.NativeBlock:
			a.pushScope()
			part.Throws = a.nativeParts(part.Parts)
			a.popScope()
			set.AddAll(part.Throws)
		case *ast.HostExpr:
			part.X = a.rvalue(part.X)
			set.AddAll(part.X.Meta().Throws)
		case *ast.HostStmts:
			for _, s := range part.Stmts {
				a.stmt(s)
				set.AddAll(*s.Effects())
			}
		}
	}
	return set
}

func (a *Analyzer) pushScope() { a.scope = newScope(a.scope) }
func (a *Analyzer) popScope()  { a.scope = a.scope.parent }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (a *Analyzer) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.NativeCode:
		a.nativeCode(s)
	case *ast.Block:
		a.block(s)
	case *ast.LocalVarStmt:
		a.localVars(s)
	case *ast.ExprStmt:
		a.exprStmt(s)
	case *ast.SynchronizedStmt:
		a.synchronized(s)
	case *ast.TryStmt:
		a.try(s)
	case *ast.ThrowStmt:
		a.throw(s)
	case *ast.ReturnStmt:
		a.ret(s)
	}
}

func (a *Analyzer) block(b *ast.Block) {
	a.pushScope()
	var set types.ExceptionSet
	for _, s := range b.Stmts {
		a.stmt(s)
		set.AddAll(*s.Effects())
	}
	b.Throws = set
	a.popScope()
}

func (a *Analyzer) localVars(s *ast.LocalVarStmt) {
	var set types.ExceptionSet
	for _, d := range s.Decls {
		a.localVar(d)
		set.AddAll(d.Throws)
	}
	s.Throws = set
}

func (a *Analyzer) localVar(d *ast.VarDecl) {
	t := a.resolveTypeRef(d.Type)
	if t == types.VoidType {
		a.errorf(d.Type.Pos, "variable %s cannot have type void", d.Name)
		t = nil
	}
	if d.Init != nil {
		d.Init = a.rvalue(d.Init)
		d.Throws = d.Init.Meta().Throws
		if t != nil {
			a.assignConv(d.Init, t)
		}
	}
	a.declare(d)
}

// declare binds d in the current scope. Locals may not hide other locals or
// parameters of the same method.
func (a *Analyzer) declare(d *ast.VarDecl) {
	if prev := a.scope.lookup(d.Name); prev != nil {
		a.errorf(d.Pos, "variable %s is already defined in method %s", d.Name, a.method.Name)
		return
	}
	a.scope.define(d)
}

func (a *Analyzer) exprStmt(s *ast.ExprStmt) {
	switch s.X.(type) {
	case *ast.Assign, *ast.Call, *ast.New, *ast.NativeExpr:
	default:
		a.errorf(s.X.GetPos(), "not a statement")
	}
	s.X = a.rvalue(s.X)
	s.Throws = s.X.Meta().Throws
}

func (a *Analyzer) synchronized(s *ast.SynchronizedStmt) {
	s.Lock = a.rvalue(s.Lock)
	lock := s.Lock.Meta()
	set := lock.Throws
	if lock.Type != nil && !lock.Type.IsReference() {
		a.errorf(s.Lock.GetPos(), "unexpected type: required reference, found %s", lock.Type)
	}
	if !ast.NonNull(s.Lock) {
		set.Add(a.u.NullPointerException)
	}
	s.Index = a.usage.AddSynchronized()
	a.block(s.Body)
	set.AddAll(s.Body.Throws)
	s.Throws = set
}

func (a *Analyzer) try(s *ast.TryStmt) {
	var caught []*types.Class
	for _, c := range s.Catches {
		t := a.resolveTypeRef(c.Param.Type)
		if t == nil {
			continue
		}
		if t.Kind != types.Reference || !t.Class.IsSubclassOf(a.u.Throwable) {
			a.errorf(c.Param.Type.Pos, "incompatible types: %s cannot be converted to Throwable", t)
			continue
		}
		c.ClsIdx = a.usage.Class(t)
		caught = append(caught, t.Class)
	}

	a.handlers = append(a.handlers, caught)
	a.block(s.Body)
	a.handlers = a.handlers[:len(a.handlers)-1]

	set := s.Body.Throws
	for _, c := range caught {
		set = set.Without(c)
	}
	for _, c := range s.Catches {
		a.pushScope()
		a.declare(c.Param)
		a.block(c.Body)
		a.popScope()
		set.AddAll(c.Body.Throws)
	}
	if s.Finally != nil {
		a.block(s.Finally)
		set.AddAll(s.Finally.Throws)
	}
	s.Throws = set
}

func (a *Analyzer) throw(s *ast.ThrowStmt) {
	s.X = a.rvalue(s.X)
	x := s.X.Meta()
	set := x.Throws
	switch {
	case x.Type == nil:
	case x.Type.Kind == types.Null:
		set.Add(a.u.NullPointerException)
	case x.Type.Kind != types.Reference || !x.Type.Class.IsSubclassOf(a.u.Throwable):
		a.errorf(s.X.GetPos(), "incompatible types: %s cannot be converted to Throwable", x.Type)
	default:
		a.raise(&set, x.Type.Class, s.Pos)
		if !ast.NonNull(s.X) {
			set.Add(a.u.NullPointerException)
		}
	}
	s.Throws = set
}

func (a *Analyzer) ret(s *ast.ReturnStmt) {
	want := a.method.Return
	if s.X == nil {
		if want != types.VoidType {
			a.errorf(s.Pos, "missing return value")
		}
		return
	}
	s.X = a.rvalue(s.X)
	s.Throws = s.X.Meta().Throws
	if want == types.VoidType {
		a.errorf(s.X.GetPos(), "incompatible types: unexpected return value")
		return
	}
	a.assignConv(s.X, want)
}
