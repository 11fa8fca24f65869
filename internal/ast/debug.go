package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Debug printer – produces a human-readable tree representation
// ---------------------------------------------------------------------------

// DebugString returns a readable multi-line representation of the AST.
func DebugString(u *Unit) string {
	var b strings.Builder
	writeIndent(&b, 0)
	b.WriteString("Unit")
	if u.Package != "" {
		fmt.Fprintf(&b, " package %s", u.Package)
	}
	b.WriteByte('\n')
	for _, imp := range u.Imports {
		writeIndent(&b, 1)
		fmt.Fprintf(&b, "Import: %q\n", imp.Path)
	}
	for _, c := range u.Classes {
		debugClass(&b, c, 1)
	}
	return b.String()
}

func writeIndent(b *strings.Builder, level int) {
	for i := 0; i < level; i++ {
		b.WriteString("  ")
	}
}

func debugClass(b *strings.Builder, c *ClassDecl, level int) {
	writeIndent(b, level)
	fmt.Fprintf(b, "Class %s", c.Name)
	if c.Super != nil {
		fmt.Fprintf(b, " extends %s", c.Super)
	}
	b.WriteByte('\n')
	for _, f := range c.Fields {
		writeIndent(b, level+1)
		fmt.Fprintf(b, "Field %s%s %s\n", modifiers(f.Static, f.Final), f.Type, f.Name)
	}
	for _, sn := range c.StaticNatives {
		writeIndent(b, level+1)
		fmt.Fprintf(b, "StaticNative %q [%d bytes]\n", sn.Lang, len(sn.Text))
	}
	for _, m := range c.Methods {
		debugMethod(b, m, level+1)
	}
}

func modifiers(static, final bool) string {
	s := ""
	if static {
		s += "static "
	}
	if final {
		s += "final "
	}
	return s
}

func debugMethod(b *strings.Builder, m *MethodDecl, level int) {
	writeIndent(b, level)
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type.String() + " " + p.Name
	}
	switch {
	case m.Ctor:
		fmt.Fprintf(b, "Ctor %s(%s)", m.Name, strings.Join(params, ", "))
	case m.Body != nil:
		fmt.Fprintf(b, "Native %q %s%s %s(%s)", m.Lang, modifiers(m.Static, m.Final), m.Return, m.Name, strings.Join(params, ", "))
	default:
		fmt.Fprintf(b, "Method %s%s %s(%s)", modifiers(m.Static, m.Final), m.Return, m.Name, strings.Join(params, ", "))
	}
	if len(m.Throws) > 0 {
		names := make([]string, len(m.Throws))
		for i, t := range m.Throws {
			names[i] = t.String()
		}
		fmt.Fprintf(b, " throws %s", strings.Join(names, ", "))
	}
	b.WriteByte('\n')
	if m.Body != nil {
		debugParts(b, m.Body.Parts, level+1)
	}
}

func debugParts(b *strings.Builder, parts []NativePart, level int) {
	for _, p := range parts {
		switch p := p.(type) {
		case *NativeText:
			writeIndent(b, level)
			fmt.Fprintf(b, "Text %q\n", p.Text)
		case *NativeBlock:
			writeIndent(b, level)
			b.WriteString("NativeBlock\n")
			debugParts(b, p.Parts, level+1)
		case *HostExpr:
			writeIndent(b, level)
			fmt.Fprintf(b, "HostExpr %s\n", ExprString(p.X))
		case *HostStmts:
			writeIndent(b, level)
			fmt.Fprintf(b, "HostStmts [%d statements]\n", len(p.Stmts))
			for _, s := range p.Stmts {
				debugStmt(b, s, level+1)
			}
		}
	}
}

func debugBlock(b *strings.Builder, block *Block, level int) {
	writeIndent(b, level)
	fmt.Fprintf(b, "Block [%d statements]\n", len(block.Stmts))
	for _, s := range block.Stmts {
		debugStmt(b, s, level+1)
	}
}

func debugStmt(b *strings.Builder, s Stmt, level int) {
	switch s := s.(type) {
	case *Block:
		debugBlock(b, s, level)
	case *LocalVarStmt:
		for _, d := range s.Decls {
			writeIndent(b, level)
			if d.Init != nil {
				fmt.Fprintf(b, "Local %s %s = %s\n", d.Type, d.Name, ExprString(d.Init))
			} else {
				fmt.Fprintf(b, "Local %s %s\n", d.Type, d.Name)
			}
		}
	case *ExprStmt:
		writeIndent(b, level)
		fmt.Fprintf(b, "ExprStmt %s\n", ExprString(s.X))
	case *SynchronizedStmt:
		writeIndent(b, level)
		fmt.Fprintf(b, "Synchronized (%s)\n", ExprString(s.Lock))
		debugBlock(b, s.Body, level+1)
	case *TryStmt:
		writeIndent(b, level)
		b.WriteString("Try\n")
		debugBlock(b, s.Body, level+1)
		for _, c := range s.Catches {
			writeIndent(b, level)
			fmt.Fprintf(b, "Catch (%s %s)\n", c.Param.Type, c.Param.Name)
			debugBlock(b, c.Body, level+1)
		}
		if s.Finally != nil {
			writeIndent(b, level)
			b.WriteString("Finally\n")
			debugBlock(b, s.Finally, level+1)
		}
	case *ThrowStmt:
		writeIndent(b, level)
		fmt.Fprintf(b, "Throw %s\n", ExprString(s.X))
	case *ReturnStmt:
		writeIndent(b, level)
		if s.X != nil {
			fmt.Fprintf(b, "Return %s\n", ExprString(s.X))
		} else {
			b.WriteString("Return\n")
		}
	case *NativeCode:
		writeIndent(b, level)
		b.WriteString("NativeStmts\n")
		debugParts(b, s.Parts, level+1)
	default:
		writeIndent(b, level)
		b.WriteString("<unknown stmt>\n")
	}
}

// ExprString returns a concise one-line representation of an expression.
func ExprString(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch e := e.(type) {
	case *Ident:
		return e.Name
	case *Select:
		return ExprString(e.X) + "." + e.Name
	case *Index:
		return fmt.Sprintf("%s[%s]", ExprString(e.X), ExprString(e.Index))
	case *TypeName:
		return e.Class.Name
	case *IntLit:
		s := strconv.FormatInt(e.Value, 10)
		if e.Long {
			s += "L"
		}
		return s
	case *FloatLit:
		s := strconv.FormatFloat(e.Value, 'g', -1, 64)
		if !e.Double {
			s += "f"
		}
		return s
	case *CharLit:
		return strconv.QuoteRune(e.Value)
	case *BoolLit:
		return strconv.FormatBool(e.Value)
	case *StringLit:
		return strconv.Quote(e.Value)
	case *NullLit:
		return "null"
	case *This:
		return "this"
	case *LocalAccess:
		return e.Decl.Name
	case *FieldAccess:
		if e.X == nil {
			return e.Name
		}
		return ExprString(e.X) + "." + e.Name
	case *ArrayAccess:
		return fmt.Sprintf("%s[%s]", ExprString(e.X), ExprString(e.Index))
	case *Call:
		args := exprList(e.Args)
		switch {
		case e.Super:
			return fmt.Sprintf("super.%s(%s)", e.Name, args)
		case e.X == nil:
			return fmt.Sprintf("%s(%s)", e.Name, args)
		}
		return fmt.Sprintf("%s.%s(%s)", ExprString(e.X), e.Name, args)
	case *New:
		return fmt.Sprintf("new %s(%s)", e.Class, exprList(e.Args))
	case *NewArray:
		s := "new " + e.Elem.String()
		for _, d := range e.Dims {
			s += "[" + ExprString(d) + "]"
		}
		return s + strings.Repeat("[]", e.ExtraDims)
	case *Assign:
		return fmt.Sprintf("(%s %s %s)", ExprString(e.L), e.Op, ExprString(e.R))
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", ExprString(e.L), e.Op, ExprString(e.R))
	case *Relational:
		return fmt.Sprintf("(%s %s %s)", ExprString(e.L), e.Op, ExprString(e.R))
	case *Unary:
		return fmt.Sprintf("(%s%s)", e.Op, ExprString(e.X))
	case *InstanceOf:
		return fmt.Sprintf("(%s instanceof %s)", ExprString(e.X), e.Target)
	case *Cast:
		return fmt.Sprintf("((%s) %s)", e.Target, ExprString(e.X))
	case *PtrFetch:
		if e.Native {
			return "#&" + ExprString(e.X)
		}
		return "&" + ExprString(e.X)
	case *NativeExpr:
		return "#(...)"
	case *NativeString:
		if e.Unicode {
			return "#unicode(...)"
		}
		return "#utf(...)"
	default:
		return "<unknown expr>"
	}
}

func exprList(es []Expr) string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = ExprString(e)
	}
	return strings.Join(out, ", ")
}
