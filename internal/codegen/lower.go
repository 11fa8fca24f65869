package codegen

import (
	"fmt"
	"strings"

	"janet/internal/ast"
	"janet/internal/deps"
	"janet/internal/diag"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Emitter
// ---------------------------------------------------------------------------

const tabSize = 4

// emitter accumulates C text with block indentation.
type emitter struct {
	sb     strings.Builder
	indent int
}

// raw appends s as is.
func (e *emitter) raw(s string) { e.sb.WriteString(s) }

// line starts a new indented line holding s.
func (e *emitter) line(s string) {
	e.sb.WriteByte('\n')
	e.sb.WriteString(strings.Repeat(" ", e.indent*tabSize))
	e.sb.WriteString(s)
}

func (e *emitter) linef(format string, args ...any) {
	e.line(fmt.Sprintf(format, args...))
}

func (e *emitter) blank() { e.sb.WriteByte('\n') }

// open writes s and indents what follows.
func (e *emitter) open(s string) {
	e.line(s)
	e.indent++
}

// close dedents and writes s.
func (e *emitter) close(s string) {
	if e.indent > 0 {
		e.indent--
	}
	e.line(s)
}

func (e *emitter) String() string { return e.sb.String() }

// seq joins the non-empty parts into a parenthesised comma expression. A
// single part is returned unwrapped.
func seq(parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p != "" {
			keep = append(keep, p)
		}
	}
	switch len(keep) {
	case 0:
		return ""
	case 1:
		return keep[0]
	}
	return "(" + strings.Join(keep, ", ") + ")"
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// internalError reports a broken lowering invariant. It is always panicked.
func internalError(format string, args ...any) error {
	return fmt.Errorf("codegen: internal error: "+format, args...)
}

// lowerFailure carries a source-level lowering error out of the traversal.
type lowerFailure struct{ d *diag.Diagnostic }

// ---------------------------------------------------------------------------
// Lowerer
// ---------------------------------------------------------------------------

type flags uint8

const (
	// flagReusable asks for a value that can be read more than once.
	flagReusable flags = 1 << iota
	// flagStable asks for a value that survives the effects of operands
	// evaluated after it. Plain variable reads get copied.
	flagStable
	// flagMultiref asks for a value readable as a tracked multiref.
	flagMultiref
)

// lowered is the WRITE-phase shape of one expression: what runs before the
// operation, the operation itself and the checks that follow it.
type lowered struct {
	pre   []string
	op    string
	multi bool // op yields a multiref
	post  []string
}

// lowerer translates the host code of one native method.
type lowerer struct {
	fn  *function
	cur *scope

	unit     *ast.Unit
	comments bool

	// tags are the references materialized for expressions.
	tags map[ast.Expr]*ref
	// locals are the references of local variables and catch parameters.
	locals map[*ast.VarDecl]*ref
	scopes map[ast.Node]*scope

	low map[ast.Expr]*lowered
	e   *emitter
}

func newLowerer(unit *ast.Unit, decl *ast.MethodDecl, usage *deps.Usage, comments bool) *lowerer {
	fn := newFunction(decl, usage)
	return &lowerer{
		fn:       fn,
		cur:      fn.root,
		unit:     unit,
		comments: comments,
		tags:     make(map[ast.Expr]*ref),
		locals:   make(map[*ast.VarDecl]*ref),
		scopes:   make(map[ast.Node]*scope),
		low:      make(map[ast.Expr]*lowered),
		e:        &emitter{indent: 1},
	}
}

// fail aborts lowering with an error at the position of n.
func (l *lowerer) fail(n ast.Node, format string, args ...any) {
	panic(lowerFailure{diag.Errorf(diag.PhaseLower, l.unit.File, n.GetPos(), format, args...)})
}

// lowerBody runs both phases over the method body and returns its text,
// without the enclosing braces.
func (l *lowerer) lowerBody() (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(lowerFailure)
			if !ok {
				panic(r)
			}
			err = f.d
		}
	}()

	body := l.fn.decl.Body
	root := l.fn.root
	root.throws = body.Throws
	l.scopes[body] = root
	l.prepareParts(body.Parts)
	root.finalCheck()

	l.cur = root
	nested := l.fn.prologue(l.e)
	l.beginScope(root)
	l.writeParts(body.Parts)
	l.endScope(root)
	if nested {
		l.e.close("}")
	}
	return l.e.String(), nil
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

// pushScope opens a child scope of the current one for node n.
func (l *lowerer) pushScope(n ast.Node, throws types.ExceptionSet) *scope {
	s := newScope(l.fn, l.cur)
	s.throws = throws
	l.scopes[n] = s
	l.cur = s
	return s
}

func (l *lowerer) popScope() {
	s := l.cur
	s.finalCheck()
	l.cur = s.parent
}

// enter makes the scope prepared for n current again.
func (l *lowerer) enter(n ast.Node) *scope {
	s, ok := l.scopes[n]
	if !ok {
		panic(internalError("no scope prepared for node at %s", n.GetPos()))
	}
	l.cur = s
	return s
}

func (l *lowerer) leave(s *scope) { l.cur = s.parent }

// beginScope declares what s releases and opens its interception region.
func (l *lowerer) beginScope(s *scope) {
	if s.parent != nil {
		for _, r := range s.releasedRefs() {
			l.e.line(r.declaration())
		}
	}
	if s.requiresTry {
		l.e.line("_JANET_EXCEPTION_CONTEXT_BEGIN")
		l.e.open("_JANET_TRY {")
	}
}

// endScope writes the cleanup section of s and closes its region.
func (l *lowerer) endScope(s *scope) {
	if s.requiresDestruct {
		l.e.close("} _JANET_DESTRUCT {")
		l.e.indent++
	}
	l.releases(s)
	if s.requiresTry {
		l.e.close("} _JANET_END_TRY;")
		l.e.line("_JANET_EXCEPTION_CONTEXT_END_" + s.endSuffix())
	}
}

func (l *lowerer) releases(s *scope) {
	if s.monitor >= 0 {
		l.e.linef("_JANET_MONITOR_EXIT(%d);", s.monitor)
	}
	for _, r := range s.releasedRefs() {
		l.e.line(r.release())
	}
}

// ---------------------------------------------------------------------------
// Native parts
// ---------------------------------------------------------------------------

func (l *lowerer) prepareParts(parts []ast.NativePart) {
	for _, part := range parts {
		switch part := part.(type) {
		case *ast.NativeText:
		case *ast.NativeBlock:
			l.pushScope(part, part.Throws)
			l.prepareParts(part.Parts)
			l.popScope()
		case *ast.HostExpr:
			l.prepareHostExpr(part)
		case *ast.HostStmts:
			for _, s := range part.Stmts {
				l.prepareStmt(s)
			}
		}
	}
}

func (l *lowerer) writeParts(parts []ast.NativePart) {
	for _, part := range parts {
		switch part := part.(type) {
		case *ast.NativeText:
			l.e.raw(part.Text)
		case *ast.NativeBlock:
			l.e.raw(part.Open)
			s := l.enter(part)
			l.e.indent++
			l.beginScope(s)
			l.writeParts(part.Parts)
			l.endScope(s)
			l.e.indent--
			l.leave(s)
			l.e.raw(part.Close)
		case *ast.HostExpr:
			l.e.raw(l.hostExpr(part))
		case *ast.HostStmts:
			for _, s := range part.Stmts {
				l.writeStmt(s)
			}
		}
	}
}

// prepareHostExpr prepares an expression written in place. Only here may
// an address fetch appear.
func (l *lowerer) prepareHostExpr(h *ast.HostExpr) {
	if p, ok := h.X.(*ast.PtrFetch); ok {
		l.preparePtrFetch(p)
		return
	}
	l.prepare(h.X, 0)
}

func (l *lowerer) hostExpr(h *ast.HostExpr) string {
	var text string
	if p, ok := h.X.(*ast.PtrFetch); ok {
		text = l.ptrFetch(p)
	} else {
		text = l.value(h.X, false)
	}
	if !l.comments {
		return text
	}
	return l.begComment(h.X) + text + l.endComment(h.X)
}

// inlineCode writes native code embedded in an expression as one string.
// Host expressions inside are written in full.
func (l *lowerer) inlineCode(parts []ast.NativePart) string {
	var sb strings.Builder
	for _, part := range parts {
		switch part := part.(type) {
		case *ast.NativeText:
			sb.WriteString(part.Text)
		case *ast.NativeBlock:
			sb.WriteString(part.Open)
			sb.WriteString(l.inlineCode(part.Parts))
			sb.WriteString(part.Close)
		case *ast.HostExpr:
			if p, ok := part.X.(*ast.PtrFetch); ok {
				sb.WriteString(l.ptrFetch(p))
			} else {
				sb.WriteString(l.value(part.X, false))
			}
		case *ast.HostStmts:
			panic(internalError("host statements inside a native expression"))
		}
	}
	return sb.String()
}

// prepareInline prepares the host expressions of embedded native code.
func (l *lowerer) prepareInline(parts []ast.NativePart) {
	for _, part := range parts {
		switch part := part.(type) {
		case *ast.NativeBlock:
			l.prepareInline(part.Parts)
		case *ast.HostExpr:
			l.prepareHostExpr(part)
		}
	}
}

// ---------------------------------------------------------------------------
// Source comments
// ---------------------------------------------------------------------------

// excerpt returns a one-line rendering of the source of n.
func (l *lowerer) excerpt(n ast.Node) string {
	src := l.unit.Source
	beg, end := n.GetPos().Offset, n.GetEnd().Offset
	if beg < 0 || end > len(src) || beg >= end {
		return ""
	}
	text := strings.TrimSpace(src[beg:end])
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first := strings.TrimSpace(text[:i])
		last := strings.TrimSpace(text[strings.LastIndexByte(text, '\n')+1:])
		text = first + " ... " + last
	}
	return strings.ReplaceAll(text, "*/", "* /")
}

func (l *lowerer) begComment(n ast.Node) string {
	return "/* beg: " + l.excerpt(n) + " */ "
}

func (l *lowerer) endComment(n ast.Node) string {
	s := " /* end: " + l.excerpt(n)
	if x, ok := n.(ast.Expr); ok {
		if r := l.tags[x]; r != nil {
			s += ", hold in: " + r.name()
		}
	}
	return s + " */"
}
