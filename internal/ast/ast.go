package ast

import (
	"fmt"

	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Source position
// ---------------------------------------------------------------------------

// Position represents a line/column pair in source code (1-based) together
// with the byte offset into the file.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is the source range covered by a node. End is exclusive.
type Span struct {
	Pos Position
	End Position
}

func (s Span) GetPos() Position { return s.Pos }
func (s Span) GetEnd() Position { return s.End }

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Node is implemented by every AST node.
type Node interface {
	GetPos() Position
	GetEnd() Position
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	Effects() *types.ExceptionSet
	stmtNode()
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	Meta() *Typed
	exprNode()
}

// Typed carries what semantic analysis learns about an expression.
type Typed struct {
	Type   *types.Type
	CastTo *types.Type // implicit conversion target, nil when none
	Throws types.ExceptionSet
}

func (t *Typed) Meta() *Typed { return t }

// Flow carries the exception set of a statement.
type Flow struct {
	Throws types.ExceptionSet
}

func (f *Flow) Effects() *types.ExceptionSet { return &f.Throws }

// ---------------------------------------------------------------------------
// Unit (root)
// ---------------------------------------------------------------------------

// Unit is one parsed source file.
type Unit struct {
	File    string
	Source  string
	Package string
	Imports []*Import
	Classes []*ClassDecl
	Span
}

// Import names a class-library file: import "lib.yaml";
type Import struct {
	Path string
	Span
}

// TypeRef is a type as written in source; Type is filled in by semantic
// analysis.
type TypeRef struct {
	Name string // "int", "String", "java.io.File"
	Dims int
	Type *types.Type
	Span
}

func (t *TypeRef) String() string {
	s := t.Name
	for i := 0; i < t.Dims; i++ {
		s += "[]"
	}
	return s
}

// ClassDecl: class Name [extends Super] { members }
type ClassDecl struct {
	Name          string
	Super         *TypeRef // nil means java.lang.Object
	Final         bool
	Fields        []*FieldDecl
	Methods       []*MethodDecl
	StaticNatives []*StaticNative
	Class         *types.Class // set by semantic analysis
	Span
}

// NativeMethods returns the methods with a native body, in source order.
func (c *ClassDecl) NativeMethods() []*MethodDecl {
	var out []*MethodDecl
	for _, m := range c.Methods {
		if m.Body != nil {
			out = append(out, m)
		}
	}
	return out
}

// FieldDecl: [static] [final] Type name;
type FieldDecl struct {
	Name   string
	Type   *TypeRef
	Static bool
	Final  bool
	Field  *types.Field // set by semantic analysis
	Span
}

// MethodDecl is a method signature, a constructor, or a native method when
// Body is set.
type MethodDecl struct {
	Name   string
	Return *TypeRef // nil for constructors
	Params []*VarDecl
	Throws []*TypeRef
	Static bool
	Final  bool
	Ctor   bool
	Lang   string      // native language, e.g. "c"
	Body   *NativeCode // nil unless native
	Method *types.Method
	Span
}

// StaticNative is a class-level native block copied verbatim into the
// implementation file: native "c" { ... }
type StaticNative struct {
	Lang string
	Text string
	Span
}

// ---------------------------------------------------------------------------
// Native code
// ---------------------------------------------------------------------------

// NativePart is a piece of native code: plain text, a braced native block,
// or embedded host code.
type NativePart interface {
	Node
	nativePart()
}

// NativeCode is a run of native parts. It is the body of a native method and
// the content of #{ }, #( ) and native string constructs. As a statement it
// is the #{ } form.
type NativeCode struct {
	Parts []NativePart
	Flow
	Span
}

// NativeText is native source copied verbatim.
type NativeText struct {
	Text string
	Span
}

// NativeBlock is a brace-delimited native block that contains host code.
// Open and Close hold the brace text; Parts the content in between.
type NativeBlock struct {
	Open  string
	Parts []NativePart
	Close string
	Flow
	Span
}

// HostExpr is a backtick segment holding a single host expression whose
// value is written in place.
type HostExpr struct {
	X Expr
	Span
}

// HostStmts is a backtick segment holding host statements.
type HostStmts struct {
	Stmts []Stmt
	Span
}

func (*NativeText) nativePart()  {}
func (*NativeBlock) nativePart() {}
func (*HostExpr) nativePart()    {}
func (*HostStmts) nativePart()   {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Block is a brace-delimited list of host statements.
type Block struct {
	Stmts []Stmt
	Flow
	Span
}

// VarKind tells locals, parameters and catch parameters apart.
type VarKind int

const (
	VarLocal VarKind = iota
	VarParam
	VarCatch
)

// VarDecl declares one variable.
type VarDecl struct {
	Kind VarKind
	Name string
	Type *TypeRef
	Init Expr // locals only, may be nil
	Flow
	Span
}

// LocalVarStmt: Type a = x, b;
type LocalVarStmt struct {
	Decls []*VarDecl
	Flow
	Span
}

// ExprStmt wraps a bare expression used as a statement.
type ExprStmt struct {
	X Expr
	Flow
	Span
}

// SynchronizedStmt: synchronized (lock) { body }
type SynchronizedStmt struct {
	Lock  Expr
	Body  *Block
	Index int // per-method monitor slot, set by semantic analysis
	Flow
	Span
}

// TryStmt: try { } catch (T e) { } finally { }
type TryStmt struct {
	Body    *Block
	Catches []*CatchClause
	Finally *Block
	Flow
	Span
}

// CatchClause is one catch of a try statement.
type CatchClause struct {
	Param  *VarDecl
	Body   *Block
	ClsIdx int // dependency slot of the caught class
	Span
}

// ThrowStmt: throw x;
type ThrowStmt struct {
	X Expr
	Flow
	Span
}

// ReturnStmt: return [x];
type ReturnStmt struct {
	X Expr // nil for bare "return;"
	Flow
	Span
}

func (*NativeCode) stmtNode()       {}
func (*NativeBlock) stmtNode()      {}
func (*Block) stmtNode()            {}
func (*VarDecl) stmtNode()          {}
func (*LocalVarStmt) stmtNode()     {}
func (*ExprStmt) stmtNode()         {}
func (*SynchronizedStmt) stmtNode() {}
func (*TryStmt) stmtNode()          {}
func (*ThrowStmt) stmtNode()        {}
func (*ReturnStmt) stmtNode()       {}

// ---------------------------------------------------------------------------
// Expressions produced by the parser and replaced during analysis
// ---------------------------------------------------------------------------

// Ident is an unresolved simple name.
type Ident struct {
	Name string
	Typed
	Span
}

// Select is an unresolved qualified name or field access: X.Name
type Select struct {
	X    Expr
	Name string
	Typed
	Span
}

// Index is an unresolved element access: X[Index]
type Index struct {
	X     Expr
	Index Expr
	Typed
	Span
}

// TypeName is a name that resolved to a class. It only appears as the
// target of a static member access.
type TypeName struct {
	Class *types.Class
	Typed
	Span
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

type IntLit struct {
	Value int64
	Long  bool
	Typed
	Span
}

type FloatLit struct {
	Value  float64
	Double bool
	Typed
	Span
}

type CharLit struct {
	Value rune
	Typed
	Span
}

type BoolLit struct {
	Value bool
	Typed
	Span
}

type StringLit struct {
	Value string
	Index int // dependency registry slot, set by semantic analysis
	Typed
	Span
}

type NullLit struct {
	Typed
	Span
}

// ---------------------------------------------------------------------------
// Resolved expressions
// ---------------------------------------------------------------------------

// This is the receiver of an instance method.
type This struct {
	Typed
	Span
}

// LocalAccess reads or writes a local, parameter or catch parameter.
type LocalAccess struct {
	Decl *VarDecl
	Typed
	Span
}

// FieldAccess reads or writes a field. X is nil for static fields and for
// fields of the receiver. Length marks the array length pseudo-field.
type FieldAccess struct {
	X      Expr
	Name   string
	Field  *types.Field
	Length bool
	Class  int // dependency slot of the declaring class
	Slot   int // dependency slot of the field
	Typed
	Span
}

// ArrayAccess is an element access on an array value.
type ArrayAccess struct {
	X     Expr
	Index Expr
	Typed
	Span
}

// CallMode is the dispatch used for a method invocation.
type CallMode int

const (
	CallVirtual CallMode = iota
	CallNonvirtual
	CallStatic
	CallSuper
)

func (m CallMode) String() string {
	switch m {
	case CallNonvirtual:
		return "nonvirtual"
	case CallStatic:
		return "static"
	case CallSuper:
		return "super"
	}
	return "virtual"
}

// Call is a method invocation. X is nil for calls on the receiver or on the
// current class; Super marks super.m(...).
type Call struct {
	X      Expr
	Name   string
	Args   []Expr
	Super  bool
	Method *types.Method
	Mode   CallMode
	Class  int // dependency slot of the method's class
	Slot   int // dependency slot of the method
	Typed
	Span
}

// New is an instance creation: new T(args)
type New struct {
	Class  *TypeRef
	Args   []Expr
	Ctor   *types.Method
	ClsIdx int
	Slot   int
	Typed
	Span
}

// NewArray: new T[d1][d2][]...
type NewArray struct {
	Elem      *TypeRef
	Dims      []Expr
	ExtraDims int
	ClsIdx    []int // per dimension, -1 for primitive element arrays
	Typed
	Span
}

// Assign: L = R, or L op= R when Op is not "=".
type Assign struct {
	Op string
	L  Expr
	R  Expr
	Typed
	Span
}

// Binary covers arithmetic, bitwise, shift and conditional-logical
// operators.
type Binary struct {
	Op string
	L  Expr
	R  Expr
	Typed
	Span
}

// Relational covers == != < <= > >=.
type Relational struct {
	Op string
	L  Expr
	R  Expr
	Typed
	Span
}

// Unary: -x +x ~x !x
type Unary struct {
	Op string
	X  Expr
	Typed
	Span
}

// InstanceOf: X instanceof T
type InstanceOf struct {
	X      Expr
	Target *TypeRef
	ClsIdx int
	Always bool // holds for every non-null value
	Typed
	Span
}

// Cast: (T) X
type Cast struct {
	Target  *TypeRef
	X       Expr
	RTCheck bool
	ClsIdx  int
	Typed
	Span
}

// PtrFetch exposes the contents of an array or string as native data:
// &x (JNI types) or #&x (C types, UTF characters).
type PtrFetch struct {
	X      Expr
	Native bool
	Typed
	Span
}

// NativeExpr embeds native code as a host expression: #( ... )
type NativeExpr struct {
	Code *NativeCode
	Typed
	Span
}

// NativeString creates a host string from native characters:
// #utf( ... ) or #unicode( ... )
type NativeString struct {
	Code    *NativeCode
	Unicode bool
	Typed
	Span
}

func (*Ident) exprNode()        {}
func (*Select) exprNode()       {}
func (*Index) exprNode()        {}
func (*TypeName) exprNode()     {}
func (*IntLit) exprNode()       {}
func (*FloatLit) exprNode()     {}
func (*CharLit) exprNode()      {}
func (*BoolLit) exprNode()      {}
func (*StringLit) exprNode()    {}
func (*NullLit) exprNode()      {}
func (*This) exprNode()         {}
func (*LocalAccess) exprNode()  {}
func (*FieldAccess) exprNode()  {}
func (*ArrayAccess) exprNode()  {}
func (*Call) exprNode()         {}
func (*New) exprNode()          {}
func (*NewArray) exprNode()     {}
func (*Assign) exprNode()       {}
func (*Binary) exprNode()       {}
func (*Relational) exprNode()   {}
func (*Unary) exprNode()        {}
func (*InstanceOf) exprNode()   {}
func (*Cast) exprNode()         {}
func (*PtrFetch) exprNode()     {}
func (*NativeExpr) exprNode()   {}
func (*NativeString) exprNode() {}

// NonNull reports whether x can never evaluate to null, so accesses through
// it need no null check.
func NonNull(x Expr) bool {
	switch x := x.(type) {
	case *This, *New, *NewArray, *StringLit, *NativeString:
		return true
	case *Cast:
		return NonNull(x.X)
	case *Assign:
		return x.Op == "=" && NonNull(x.R)
	}
	return false
}
