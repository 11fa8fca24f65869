package parser

import (
	"fmt"
	"strconv"
	"strings"

	"janet/internal/ast"
	"janet/internal/lexer"
)

// ---------------------------------------------------------------------------
// Precedence levels for Pratt expression parsing
// ---------------------------------------------------------------------------

const (
	precNone       = iota
	precAssign     // = += -= ...
	precOr         // ||
	precAnd        // &&
	precBitOr      // |
	precBitXor     // ^
	precBitAnd     // &
	precEquality   // == !=
	precComparison // < > <= >= instanceof
	precShift      // << >> >>>
	precAdditive   // + -
	precMultiply   // * / %
	precUnary      // ! - + ~ & casts
	precCall       // () . []
)

// =========================================================================
// Statements
// =========================================================================

func (p *Parser) parseBlock() *ast.Block {
	tok := p.expect(lexer.LBRACE, "expected '{'")
	block := &ast.Block{}

	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) && !p.check(lexer.BACKTICK) {
		before := p.tok.Offset
		if stmt := p.parseStatement(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		// Safety: if no tokens were consumed, skip one to avoid an infinite loop.
		if p.tok.Offset == before && !p.check(lexer.EOF) && !p.check(lexer.BACKTICK) {
			p.advance()
		}
	}

	p.expect(lexer.RBRACE, "expected '}'")
	block.Span = p.span(tok)
	return block
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.peek().Type {
	case lexer.SEMICOLON:
		p.advance()
		return nil
	case lexer.LBRACE:
		return p.parseBlock()
	case lexer.SYNCHRONIZED:
		return p.parseSynchronized()
	case lexer.TRY:
		return p.parseTry()
	case lexer.THROW:
		tok := p.advance()
		x := p.parseExpression()
		p.expect(lexer.SEMICOLON, "expected ';' after throw")
		return &ast.ThrowStmt{X: x, Span: p.span(tok)}
	case lexer.RETURN:
		tok := p.advance()
		var x ast.Expr
		if !p.check(lexer.SEMICOLON) {
			x = p.parseExpression()
		}
		p.expect(lexer.SEMICOLON, "expected ';' after return")
		return &ast.ReturnStmt{X: x, Span: p.span(tok)}
	case lexer.HASH:
		if p.peekAt(1).Type == lexer.LBRACE {
			p.advance() // '#', the current token is now the '{'
			code := &ast.NativeCode{}
			start := p.prev
			code.Parts = p.parseNativeParts('}')
			code.Span = p.span(start)
			return code
		}
	}
	if p.isTypeStart() {
		return p.parseLocalVars()
	}
	tok := p.peek()
	x := p.parseExpression()
	if !p.expectStmtEnd() {
		p.synchronize()
	}
	return &ast.ExprStmt{X: x, Span: p.span(tok)}
}

// expectStmtEnd consumes a ';'. It reports whether one was found.
func (p *Parser) expectStmtEnd() bool {
	if p.match(lexer.SEMICOLON) {
		return true
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("expected ';' after statement (got %s %q)", tok.Type, tok.Value))
	return false
}

// parseLocalVars parses: Type a [= x] {, b [= y]} ;
func (p *Parser) parseLocalVars() ast.Stmt {
	start := p.peek()
	typ := p.parseType()
	stmt := &ast.LocalVarStmt{}
	for {
		name := p.expect(lexer.IDENT, "expected variable name")
		decl := &ast.VarDecl{Kind: ast.VarLocal, Name: name.Value, Type: typ}
		if p.match(lexer.ASSIGN) {
			decl.Init = p.parseExpressionPrec(precAssign)
		}
		decl.Span = p.span(name)
		stmt.Decls = append(stmt.Decls, decl)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.SEMICOLON, "expected ';' after variable declaration")
	stmt.Span = p.span(start)
	return stmt
}

// parseSynchronized: synchronized ( lock ) { body }
func (p *Parser) parseSynchronized() ast.Stmt {
	tok := p.advance()
	p.expect(lexer.LPAREN, "expected '(' after synchronized")
	lock := p.parseExpression()
	p.expect(lexer.RPAREN, "expected ')' after lock expression")
	body := p.parseBlock()
	return &ast.SynchronizedStmt{Lock: lock, Body: body, Span: p.span(tok)}
}

// parseTry: try { } catch (T e) { } ... [finally { }]
func (p *Parser) parseTry() ast.Stmt {
	tok := p.advance()
	stmt := &ast.TryStmt{Body: p.parseBlock()}
	for p.check(lexer.CATCH) {
		ctok := p.advance()
		p.expect(lexer.LPAREN, "expected '(' after catch")
		ptok := p.peek()
		p.match(lexer.FINAL)
		typ := p.parseType()
		name := p.expect(lexer.IDENT, "expected catch parameter name")
		param := &ast.VarDecl{Kind: ast.VarCatch, Name: name.Value, Type: typ, Span: p.span(ptok)}
		p.expect(lexer.RPAREN, "expected ')' after catch parameter")
		body := p.parseBlock()
		stmt.Catches = append(stmt.Catches, &ast.CatchClause{Param: param, Body: body, Span: p.span(ctok)})
	}
	if p.match(lexer.FINALLY) {
		stmt.Finally = p.parseBlock()
	}
	if len(stmt.Catches) == 0 && stmt.Finally == nil {
		p.addError(tok, "try requires at least one catch or a finally clause")
	}
	stmt.Span = p.span(tok)
	return stmt
}

// =========================================================================
// Expressions (Pratt parser)
// =========================================================================

// parseExpression is the public entry point for expression parsing.
func (p *Parser) parseExpression() ast.Expr {
	return p.parseExpressionPrec(precAssign)
}

func (p *Parser) parseExpressionPrec(minPrec int) ast.Expr {
	left := p.parsePrefix()

	for {
		prec := infixPrecedence(p.peek().Type)
		if prec < minPrec || prec == precNone {
			break
		}
		left = p.parseInfix(left, prec)
	}

	return left
}

// ---- Prefix (atoms & unary operators) ----

func (p *Parser) parsePrefix() ast.Expr {
	tok := p.peek()

	switch tok.Type {
	case lexer.IDENT:
		p.advance()
		if p.check(lexer.LPAREN) {
			args := p.parseArgs()
			return &ast.Call{Name: tok.Value, Args: args, Span: p.span(tok)}
		}
		return &ast.Ident{Name: tok.Value, Span: p.span(tok)}

	case lexer.INT:
		p.advance()
		return p.intLiteral(tok)

	case lexer.FLOAT:
		p.advance()
		return p.floatLiteral(tok)

	case lexer.CHAR:
		p.advance()
		s, err := lexer.Unquote(tok.Value)
		r := []rune(s)
		if err != nil || len(r) != 1 {
			p.addError(tok, fmt.Sprintf("invalid character literal %s", tok.Value))
			r = []rune{0}
		}
		return &ast.CharLit{Value: r[0], Span: p.span(tok)}

	case lexer.STRING:
		p.advance()
		s, err := lexer.Unquote(tok.Value)
		if err != nil {
			p.addError(tok, err.Error())
		}
		return &ast.StringLit{Value: s, Span: p.span(tok)}

	case lexer.TRUE, lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Value: tok.Type == lexer.TRUE, Span: p.span(tok)}

	case lexer.NULL:
		p.advance()
		return &ast.NullLit{Span: p.span(tok)}

	case lexer.THIS:
		p.advance()
		return &ast.This{Span: p.span(tok)}

	case lexer.SUPER:
		p.advance()
		p.expect(lexer.DOT, "expected '.' after super")
		name := p.expect(lexer.IDENT, "expected method name after super.")
		if !p.check(lexer.LPAREN) {
			p.addError(p.peek(), "only method calls are allowed on super")
			return &ast.Ident{Name: "<error>", Span: p.span(tok)}
		}
		args := p.parseArgs()
		return &ast.Call{Name: name.Value, Args: args, Super: true, Span: p.span(tok)}

	case lexer.NEW:
		return p.parseNew()

	case lexer.LPAREN:
		if p.isCast() {
			return p.parseCast()
		}
		p.advance()
		expr := p.parseExpression()
		p.expect(lexer.RPAREN, "expected ')' after expression")
		return expr

	case lexer.BANG, lexer.MINUS, lexer.PLUS, lexer.TILDE:
		p.advance()
		if tok.Type == lexer.MINUS && (p.check(lexer.INT) || p.check(lexer.FLOAT)) {
			// Fold the sign into the literal so the minimum values parse.
			lit := p.advance()
			lit.Value = "-" + lit.Value
			var x ast.Expr
			if lit.Type == lexer.INT {
				x = p.intLiteral(lit)
			} else {
				x = p.floatLiteral(lit)
			}
			return p.parsePostfix(x)
		}
		operand := p.parseExpressionPrec(precUnary)
		return &ast.Unary{Op: tok.Value, X: operand, Span: p.span(tok)}

	case lexer.AMPERSAND:
		p.advance()
		operand := p.parseExpressionPrec(precUnary)
		return &ast.PtrFetch{X: operand, Span: p.span(tok)}

	case lexer.HASH:
		return p.parseHashExpr()

	default:
		p.addError(tok, fmt.Sprintf("unexpected token %s in expression", tok.Type))
		if tok.Type != lexer.BACKTICK && tok.Type != lexer.EOF {
			p.advance() // consume the bad token so we make progress
		}
		return &ast.Ident{Name: "<error>", Span: ast.Span{Pos: p.position(tok), End: p.position(tok)}}
	}
}

// parsePostfix applies member, call and index suffixes to x, for prefix
// forms that return before the infix loop sees them.
func (p *Parser) parsePostfix(x ast.Expr) ast.Expr {
	for p.check(lexer.DOT) || p.check(lexer.LBRACKET) {
		x = p.parseInfix(x, precCall)
	}
	return x
}

// parseHashExpr parses #&x, #( native ), #utf( native ) and
// #unicode( native ).
func (p *Parser) parseHashExpr() ast.Expr {
	tok := p.advance() // '#'
	switch {
	case p.check(lexer.AMPERSAND):
		p.advance()
		operand := p.parseExpressionPrec(precUnary)
		return &ast.PtrFetch{X: operand, Native: true, Span: p.span(tok)}
	case p.check(lexer.LPAREN):
		code := p.parseNativeExprCode()
		return &ast.NativeExpr{Code: code, Span: p.span(tok)}
	case p.check(lexer.IDENT) && (p.tok.Value == "utf" || p.tok.Value == "unicode") && p.peekAt(1).Type == lexer.LPAREN:
		unicode := p.tok.Value == "unicode"
		p.advance() // the current token is now the '('
		code := p.parseNativeExprCode()
		return &ast.NativeString{Code: code, Unicode: unicode, Span: p.span(tok)}
	}
	p.addError(p.peek(), "expected '&', '(', 'utf(' or 'unicode(' after '#'")
	return &ast.Ident{Name: "<error>", Span: p.span(tok)}
}

func (p *Parser) intLiteral(tok lexer.Token) ast.Expr {
	text := tok.Value
	long := strings.HasSuffix(text, "L") || strings.HasSuffix(text, "l")
	text = strings.TrimRight(text, "lL")
	neg := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")

	bits := 32
	if long {
		bits = 64
	}
	u, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		p.addError(tok, fmt.Sprintf("invalid integer literal %s", tok.Value))
		return &ast.IntLit{Long: long, Span: p.span(tok)}
	}
	var v int64
	isHex := strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") || (len(text) > 1 && text[0] == '0')
	switch {
	case isHex && bits == 32 && u <= 0xFFFFFFFF:
		v = int64(int32(uint32(u)))
	case isHex && bits == 64:
		v = int64(u)
	case neg && u == 1<<(bits-1):
		v = -int64(u)
		neg = false
	case u < 1<<(bits-1):
		v = int64(u)
	default:
		p.addError(tok, fmt.Sprintf("integer literal %s out of range", tok.Value))
	}
	if neg {
		v = -v
	}
	return &ast.IntLit{Value: v, Long: long, Span: p.span(tok)}
}

func (p *Parser) floatLiteral(tok lexer.Token) ast.Expr {
	text := tok.Value
	double := true
	switch text[len(text)-1] {
	case 'f', 'F':
		double = false
		text = text[:len(text)-1]
	case 'd', 'D':
		text = text[:len(text)-1]
	}
	bits := 64
	if !double {
		bits = 32
	}
	v, err := strconv.ParseFloat(text, bits)
	if err != nil {
		p.addError(tok, fmt.Sprintf("invalid floating literal %s", tok.Value))
	}
	return &ast.FloatLit{Value: v, Double: double, Span: p.span(tok)}
}

// parseArgs parses ( [args] ).
func (p *Parser) parseArgs() []ast.Expr {
	p.expect(lexer.LPAREN, "expected '('")
	var args []ast.Expr
	if !p.check(lexer.RPAREN) {
		args = append(args, p.parseExpression())
		for p.match(lexer.COMMA) {
			args = append(args, p.parseExpression())
		}
	}
	p.expect(lexer.RPAREN, "expected ')' after arguments")
	return args
}

// parseNew parses new T(args) and new T[d]...[]...
func (p *Parser) parseNew() ast.Expr {
	tok := p.advance()
	elem := &ast.TypeRef{}
	ttok := p.peek()
	switch {
	case lexer.IsPrimitiveType(ttok.Type):
		p.advance()
		elem.Name = ttok.Value
	case ttok.Type == lexer.IDENT:
		elem.Name = p.parseQualifiedName()
	default:
		p.addError(ttok, "expected type after new")
		return &ast.Ident{Name: "<error>", Span: p.span(tok)}
	}
	elem.Span = p.span(ttok)

	if p.check(lexer.LPAREN) {
		args := p.parseArgs()
		return &ast.New{Class: elem, Args: args, Span: p.span(tok)}
	}

	arr := &ast.NewArray{Elem: elem}
	for p.check(lexer.LBRACKET) && p.peekAt(1).Type != lexer.RBRACKET {
		p.advance()
		arr.Dims = append(arr.Dims, p.parseExpression())
		p.expect(lexer.RBRACKET, "expected ']' after array dimension")
	}
	for p.check(lexer.LBRACKET) && p.peekAt(1).Type == lexer.RBRACKET {
		p.advance()
		p.advance()
		arr.ExtraDims++
	}
	if len(arr.Dims) == 0 {
		p.addError(p.peek(), "array creation requires at least one dimension")
	}
	arr.Span = p.span(tok)
	return arr
}

// isCast reports whether the '(' at the current token opens a cast. A
// primitive type in parentheses is always a cast; a class name only when
// the next token can start an operand that is not a binary operator.
func (p *Parser) isCast() bool {
	st := p.sc.Save()
	defer p.sc.Restore(st)
	tok := p.sc.Next()
	primitive := lexer.IsPrimitiveType(tok.Type)
	if !primitive && tok.Type != lexer.IDENT {
		return false
	}
	tok = p.sc.Next()
	for !primitive && tok.Type == lexer.DOT {
		if tok = p.sc.Next(); tok.Type != lexer.IDENT {
			return false
		}
		tok = p.sc.Next()
	}
	dims := 0
	for tok.Type == lexer.LBRACKET {
		if tok = p.sc.Next(); tok.Type != lexer.RBRACKET {
			return false
		}
		dims++
		tok = p.sc.Next()
	}
	if tok.Type != lexer.RPAREN {
		return false
	}
	if primitive || dims > 0 {
		return true
	}
	switch p.sc.Next().Type {
	case lexer.IDENT, lexer.INT, lexer.FLOAT, lexer.CHAR, lexer.STRING, lexer.TRUE, lexer.FALSE,
		lexer.NULL, lexer.THIS, lexer.SUPER, lexer.NEW, lexer.LPAREN, lexer.BANG, lexer.TILDE, lexer.HASH:
		return true
	}
	return false
}

func (p *Parser) parseCast() ast.Expr {
	tok := p.advance() // '('
	target := p.parseType()
	p.expect(lexer.RPAREN, "expected ')' after cast type")
	x := p.parseExpressionPrec(precUnary)
	return &ast.Cast{Target: target, X: x, Span: p.span(tok)}
}

// ---- Infix precedence table ----

func infixPrecedence(typ string) int {
	switch typ {
	case lexer.ASSIGN, lexer.ASSIGN_OP:
		return precAssign
	case lexer.OR:
		return precOr
	case lexer.AND:
		return precAnd
	case lexer.PIPE:
		return precBitOr
	case lexer.CARET:
		return precBitXor
	case lexer.AMPERSAND:
		return precBitAnd
	case lexer.EQ, lexer.NEQ:
		return precEquality
	case lexer.LT, lexer.GT, lexer.LTE, lexer.GTE, lexer.INSTANCEOF:
		return precComparison
	case lexer.SHL, lexer.SHR, lexer.USHR:
		return precShift
	case lexer.PLUS, lexer.MINUS:
		return precAdditive
	case lexer.STAR, lexer.SLASH, lexer.PERCENT:
		return precMultiply
	case lexer.DOT, lexer.LBRACKET:
		return precCall
	default:
		return precNone
	}
}

// ---- Infix / postfix dispatch ----

func (p *Parser) parseInfix(left ast.Expr, prec int) ast.Expr {
	tok := p.peek()
	sp := func() ast.Span { return ast.Span{Pos: left.GetPos(), End: p.endOf(p.prev)} }

	switch tok.Type {
	case lexer.DOT:
		p.advance()
		name := p.expect(lexer.IDENT, "expected member name after '.'")
		if name.Type != lexer.IDENT {
			return left
		}
		if p.check(lexer.LPAREN) {
			args := p.parseArgs()
			return &ast.Call{X: left, Name: name.Value, Args: args, Span: sp()}
		}
		return &ast.Select{X: left, Name: name.Value, Span: sp()}

	case lexer.LBRACKET:
		p.advance()
		index := p.parseExpression()
		p.expect(lexer.RBRACKET, "expected ']' after index expression")
		return &ast.Index{X: left, Index: index, Span: sp()}

	case lexer.INSTANCEOF:
		p.advance()
		target := p.parseType()
		return &ast.InstanceOf{X: left, Target: target, Span: sp()}

	case lexer.ASSIGN, lexer.ASSIGN_OP:
		p.advance()
		if !isAssignable(left) {
			p.addError(tok, "invalid assignment target")
		}
		// Right-associative.
		right := p.parseExpressionPrec(precAssign)
		return &ast.Assign{Op: tok.Value, L: left, R: right, Span: sp()}

	case lexer.EQ, lexer.NEQ, lexer.LT, lexer.GT, lexer.LTE, lexer.GTE:
		p.advance()
		right := p.parseExpressionPrec(prec + 1)
		return &ast.Relational{Op: tok.Value, L: left, R: right, Span: sp()}

	default:
		// Binary operator (left-associative: recurse with prec+1).
		p.advance()
		right := p.parseExpressionPrec(prec + 1)
		return &ast.Binary{Op: tok.Value, L: left, R: right, Span: sp()}
	}
}

func isAssignable(x ast.Expr) bool {
	switch x.(type) {
	case *ast.Ident, *ast.Select, *ast.Index:
		return true
	}
	return false
}
