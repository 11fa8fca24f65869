package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"janet/internal/ast"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// PREPARE
// ---------------------------------------------------------------------------

func (l *lowerer) prepareStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.NativeCode:
		l.pushScope(s, s.Throws)
		l.prepareParts(s.Parts)
		l.popScope()
	case *ast.Block:
		l.pushScope(s, s.Throws)
		for _, st := range s.Stmts {
			l.prepareStmt(st)
		}
		l.popScope()
	case *ast.LocalVarStmt:
		for _, d := range s.Decls {
			l.prepareVarDecl(d)
		}
	case *ast.ExprStmt:
		l.prepare(s.X, 0)
	case *ast.SynchronizedStmt:
		l.prepareSynchronized(s)
	case *ast.TryStmt:
		l.prepareTry(s)
	case *ast.ThrowStmt:
		l.prepare(s.X, flagReusable)
		l.cur.abruptsUsed = true
	case *ast.ReturnStmt:
		if s.X != nil {
			l.prepare(s.X, 0)
		}
		l.cur.abruptsUsed = true
		l.cur.returns = true
	default:
		panic(internalError("cannot prepare statement %T", s))
	}
}

// prepareVarDecl registers the variable in the current block. Reference
// variables are always released with it.
func (l *lowerer) prepareVarDecl(d *ast.VarDecl) {
	t := d.Type.Type
	r := l.fn.addVariable(newRef(t, prefixVar, mangle(d.Name)))
	r.classify(refLocalVariable)
	l.cur.own(r)
	l.locals[d] = r
	if d.Init == nil {
		return
	}
	f := flags(0)
	if r.multi() {
		f = flagMultiref
	}
	if into(d.Init) {
		l.tags[d.Init] = r
	}
	l.prepare(d.Init, f)
}

// prepareSynchronized runs the lock and the body in one scope that holds
// the monitor.
func (l *lowerer) prepareSynchronized(s *ast.SynchronizedStmt) {
	sc := l.pushScope(s, s.Throws)
	sc.monitor = s.Index
	f := flags(0)
	if !ast.NonNull(s.Lock) {
		f = flagReusable
		sc.usesLocalExceptions = true
	}
	l.prepare(s.Lock, f)
	for _, st := range s.Body.Stmts {
		l.prepareStmt(st)
	}
	l.popScope()
}

// prepareTry opens the forced scope of a try statement. The body runs in it
// directly; catch and finally blocks are its children.
func (l *lowerer) prepareTry(s *ast.TryStmt) {
	ts := l.pushScope(s, s.Body.Throws)
	ts.forced = true
	for _, st := range s.Body.Stmts {
		l.prepareStmt(st)
	}
	for _, c := range s.Catches {
		r := l.fn.addVariable(newRef(c.Param.Type.Type, prefixExc, mangle(c.Param.Name)))
		r.classify(refLocalVariable)
		ts.own(r)
		l.locals[c.Param] = r
		l.prepareStmt(c.Body)
	}
	if s.Finally != nil {
		l.prepareStmt(s.Finally)
	}
	ts.escapes = !s.Throws.Empty() || ts.returns
	l.popScope()
}

// ---------------------------------------------------------------------------
// WRITE
// ---------------------------------------------------------------------------

func (l *lowerer) writeStmt(s ast.Stmt) {
	if l.comments {
		l.e.line(strings.TrimSpace(l.begComment(s)))
	}
	switch s := s.(type) {
	case *ast.NativeCode:
		sc := l.enter(s)
		l.e.open("{")
		l.beginScope(sc)
		l.writeParts(s.Parts)
		l.endScope(sc)
		l.leave(sc)
		l.e.close("}")
	case *ast.Block:
		l.writeBlock(s)
	case *ast.LocalVarStmt:
		for _, d := range s.Decls {
			if d.Init != nil {
				l.e.line(l.store(l.locals[d], d.Init) + ";")
			}
		}
	case *ast.ExprStmt:
		text := l.eval(s.X)
		if _, ok := s.X.(*ast.NativeExpr); ok && l.tags[s.X] == nil {
			// Its effect is the value itself.
			text = l.value(s.X, false)
		}
		if text != "" {
			l.e.line(text + ";")
		}
	case *ast.SynchronizedStmt:
		l.writeSynchronized(s)
	case *ast.TryStmt:
		l.writeTry(s)
	case *ast.ThrowStmt:
		l.writeThrow(s)
	case *ast.ReturnStmt:
		l.writeReturn(s)
	default:
		panic(internalError("cannot write statement %T", s))
	}
	if l.comments {
		l.e.line(strings.TrimSpace(l.endComment(s)))
	}
}

func (l *lowerer) writeBlock(b *ast.Block) {
	l.e.open("{")
	l.writeBlockBody(b)
	l.e.close("}")
}

// writeBlockBody writes the statements of b inside braces opened by the
// caller.
func (l *lowerer) writeBlockBody(b *ast.Block) {
	sc := l.enter(b)
	l.beginScope(sc)
	for _, st := range b.Stmts {
		l.writeStmt(st)
	}
	l.endScope(sc)
	l.leave(sc)
}

func (l *lowerer) writeSynchronized(s *ast.SynchronizedStmt) {
	sc := l.enter(s)
	l.e.open("{")
	l.beginScope(sc)
	if text := l.eval(s.Lock); text != "" {
		l.e.line(text + ";")
	}
	lock := l.use(s.Lock, false)
	if !ast.NonNull(s.Lock) {
		l.e.line(l.nullCheck(lock, "trying to synchronize on a null reference") + ";")
	}
	l.e.linef("_JANET_MONITOR_ENTER(%d, %s);", s.Index, lock)
	for _, st := range s.Body.Stmts {
		l.writeStmt(st)
	}
	l.endScope(sc)
	l.leave(sc)
	l.e.close("}")
}

func (l *lowerer) writeTry(s *ast.TryStmt) {
	ts := l.enter(s)
	l.e.open("{")
	l.beginScope(ts)
	for _, st := range s.Body.Stmts {
		l.writeStmt(st)
	}
	for _, c := range s.Catches {
		r := l.locals[c.Param]
		l.e.close(fmt.Sprintf("} _JANET_CATCH%s(_janet_classes[%d].id, %s) {", r.macroSuffix(), c.ClsIdx, r.name()))
		l.e.indent++
		l.writeBlockBody(c.Body)
	}
	if s.Finally != nil {
		l.e.close("} _JANET_FINALLY {")
		l.e.indent++
		l.writeBlockBody(s.Finally)
	}
	l.endScope(ts)
	l.leave(ts)
	l.e.close("}")
}

// writeThrow raises x. Outside an interception region it goes through
// _JANET_THROW_GLOBAL directly: the _V and _0 wrappers and
// _JANET_GLOBAL_ENSURE_NOT_NULL of the runtime header are unusable.
func (l *lowerer) writeThrow(s *ast.ThrowStmt) {
	var steps []string
	if text := l.eval(s.X); text != "" {
		steps = append(steps, text+";")
	}
	x := l.use(s.X, false)
	local := l.cur.intercepting()
	if !ast.NonNull(s.X) {
		msg := strconv.Quote("trying to throw a null exception")
		if local {
			steps = append(steps, "_JANET_LOCAL_ENSURE_NOT_NULL("+x+", "+msg+");")
		} else {
			npe := "_JANET_NEW_EXCEPTION(_janet_jnienv, _JANET_EXC_NULL_POINTER, _JANET__FILE__, _JANET__LINE__, " + msg + ")"
			steps = append(steps, "if (!("+x+")) _JANET_THROW_GLOBAL("+npe+", "+l.fn.retValue()+");")
		}
	}
	if local {
		steps = append(steps, "_JANET_THROW_LOCAL("+x+");")
	} else {
		steps = append(steps, "_JANET_THROW_GLOBAL("+x+", "+l.fn.retValue()+");")
	}
	l.e.line("do { " + strings.Join(steps, " ") + " } while(0);")
}

func (l *lowerer) writeReturn(s *ast.ReturnStmt) {
	var steps []string
	x := ""
	if s.X != nil {
		if text := l.eval(s.X); text != "" {
			steps = append(steps, text+";")
		}
		x = l.use(s.X, false)
	}
	void := l.fn.decl.Method.Return == types.VoidType
	switch {
	case l.cur.intercepting() && void:
		steps = append(steps, "(_janet_return_in_progress = JNI_TRUE, _JANET_LOCAL_PROPAGATE_RETURN());")
	case l.cur.intercepting():
		steps = append(steps, "_JANET_RETURN_LOCAL("+x+");")
	case void:
		steps = append(steps, "_JANET_RETURN_GLOBAL_V();")
	default:
		steps = append(steps, "_JANET_RETURN_GLOBAL_0("+x+");")
	}
	l.e.line("do { " + strings.Join(steps, " ") + " } while(0);")
}
