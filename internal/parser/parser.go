package parser

import (
	"fmt"
	"strings"

	"janet/internal/ast"
	"janet/internal/diag"
	"janet/internal/lexer"
)

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parser holds the state for a single parse pass over one unit file. It
// pulls tokens from the scanner one at a time so it can hand the scanner
// over to native-text mode when a native body starts.
type Parser struct {
	file string
	src  string
	sc   *lexer.Scanner
	tok  lexer.Token // current token
	prev lexer.Token // most recently consumed token
	errs diag.List
}

// Parse is the main entry point. It parses a unit file and returns the
// unresolved AST plus any lex and parse diagnostics.
func Parse(file, src string) (*ast.Unit, diag.List) {
	p := &Parser{file: file, src: src, sc: lexer.NewScanner(src)}
	p.tok = p.sc.Next()
	unit := p.parseUnit()
	for _, le := range p.sc.Errors() {
		p.errs.Errorf(diag.PhaseLex, file, ast.Position{Line: le.Line, Column: le.Column}, "%s", le.Message)
	}
	p.errs.Sort()
	return unit, p.errs
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

// peek returns the current token without consuming it.
func (p *Parser) peek() lexer.Token { return p.tok }

// peekAt returns the token offset positions ahead of the current one. It
// lexes ahead and rewinds the scanner.
func (p *Parser) peekAt(offset int) lexer.Token {
	if offset == 0 {
		return p.tok
	}
	st := p.sc.Save()
	var tok lexer.Token
	for i := 0; i < offset; i++ {
		tok = p.sc.Next()
	}
	p.sc.Restore(st)
	return tok
}

// advance consumes and returns the current token.
func (p *Parser) advance() lexer.Token {
	tok := p.tok
	if tok.Type != lexer.EOF {
		p.prev = tok
		p.tok = p.sc.Next()
	}
	return tok
}

// check returns true if the current token has the given type.
func (p *Parser) check(typ string) bool {
	return p.tok.Type == typ
}

// match consumes the current token if it matches any of the given types.
func (p *Parser) match(types ...string) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes the current token if it matches typ; otherwise it records
// an error and returns the current token WITHOUT advancing.
func (p *Parser) expect(typ string, msg string) lexer.Token {
	if p.check(typ) {
		return p.advance()
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("%s (got %s %q)", msg, tok.Type, tok.Value))
	return tok
}

// addError records a parse diagnostic at the given token's location.
func (p *Parser) addError(tok lexer.Token, msg string) {
	p.errs.Errorf(diag.PhaseParse, p.file, p.position(tok), "%s", msg)
}

// synchronize advances past tokens until it reaches a likely statement
// boundary, allowing the parser to recover from an error and keep going.
func (p *Parser) synchronize() {
	p.advance()
	for !p.check(lexer.EOF) {
		if p.prev.Type == lexer.SEMICOLON {
			return
		}
		switch p.peek().Type {
		case lexer.CLASS, lexer.NATIVE, lexer.STATIC, lexer.FINAL, lexer.IMPORT,
			lexer.RBRACE, lexer.BACKTICK:
			return
		}
		p.advance()
	}
}

// position converts a token into an ast.Position.
func (p *Parser) position(tok lexer.Token) ast.Position {
	return ast.Position{Line: tok.Line, Column: tok.Column, Offset: tok.Offset}
}

// span returns the range from start to the end of the last consumed token.
func (p *Parser) span(start lexer.Token) ast.Span {
	return ast.Span{Pos: p.position(start), End: p.endOf(p.prev)}
}

func (p *Parser) endOf(tok lexer.Token) ast.Position {
	return ast.Position{Line: tok.Line, Column: tok.Column + len(tok.Value), Offset: tok.End()}
}

// scannerPos is the scanner's current location.
func (p *Parser) scannerPos() ast.Position {
	return ast.Position{Line: p.sc.Line(), Column: p.sc.Column(), Offset: p.sc.Offset()}
}

// =========================================================================
// Top-level parsing
// =========================================================================

func (p *Parser) parseUnit() *ast.Unit {
	unit := &ast.Unit{File: p.file, Source: p.src}
	unit.Pos = p.position(p.peek())

	if p.check(lexer.PACKAGE) {
		p.advance()
		unit.Package = p.parseQualifiedName()
		p.expect(lexer.SEMICOLON, "expected ';' after package declaration")
	}

	for p.check(lexer.IMPORT) {
		if imp := p.parseImport(); imp != nil {
			unit.Imports = append(unit.Imports, imp)
		}
	}

	for !p.check(lexer.EOF) {
		if p.check(lexer.CLASS) || (p.check(lexer.FINAL) && p.peekAt(1).Type == lexer.CLASS) {
			unit.Classes = append(unit.Classes, p.parseClass())
			continue
		}
		p.addError(p.peek(), fmt.Sprintf("expected class declaration, got %s", p.peek().Type))
		p.synchronize()
	}
	unit.End = p.scannerPos()
	return unit
}

// parseImport parses: import "path";
func (p *Parser) parseImport() *ast.Import {
	tok := p.advance() // consume IMPORT
	pathTok := p.expect(lexer.STRING, "expected quoted class-library path")
	p.expect(lexer.SEMICOLON, "expected ';' after import declaration")
	if pathTok.Type != lexer.STRING {
		return nil
	}
	path, err := lexer.Unquote(pathTok.Value)
	if err != nil {
		p.addError(pathTok, err.Error())
		return nil
	}
	return &ast.Import{Path: path, Span: p.span(tok)}
}

// parseQualifiedName parses IDENT { . IDENT }.
func (p *Parser) parseQualifiedName() string {
	first := p.expect(lexer.IDENT, "expected name")
	parts := []string{first.Value}
	for p.check(lexer.DOT) && p.peekAt(1).Type == lexer.IDENT {
		p.advance()
		parts = append(parts, p.advance().Value)
	}
	return strings.Join(parts, ".")
}

func (p *Parser) parseClass() *ast.ClassDecl {
	start := p.peek()
	final := p.match(lexer.FINAL)
	p.expect(lexer.CLASS, "expected 'class'")
	name := p.expect(lexer.IDENT, "expected class name")
	cls := &ast.ClassDecl{Name: name.Value, Final: final}
	if p.match(lexer.EXTENDS) {
		cls.Super = p.parseType()
	}
	p.expect(lexer.LBRACE, "expected '{' after class header")

	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		before := p.tok.Offset
		p.parseMember(cls)
		if p.tok.Offset == before && !p.check(lexer.EOF) {
			p.advance()
		}
	}
	p.expect(lexer.RBRACE, "expected '}' after class body")
	cls.Span = p.span(start)
	return cls
}

// parseMember parses one field, method, constructor or static native block
// and appends it to cls.
func (p *Parser) parseMember(cls *ast.ClassDecl) {
	start := p.peek()
	var static, final, native bool
	lang := ""
	for {
		switch {
		case p.match(lexer.STATIC):
			static = true
			continue
		case p.match(lexer.FINAL):
			final = true
			continue
		case p.check(lexer.NATIVE):
			p.advance()
			native = true
			// A bare native takes the configured default language.
			lang = ""
			if p.check(lexer.STRING) {
				tok := p.advance()
				if s, err := lexer.Unquote(tok.Value); err == nil {
					lang = s
				}
			}
			continue
		}
		break
	}

	// native "c" { text }
	if native && p.check(lexer.LBRACE) {
		if static || final {
			p.addError(start, "static native blocks take no modifiers")
		}
		text := p.parseStaticNative()
		cls.StaticNatives = append(cls.StaticNatives, &ast.StaticNative{Lang: lang, Text: text, Span: p.span(start)})
		return
	}

	// Constructor: Name(params)
	if p.check(lexer.IDENT) && p.peek().Value == cls.Name && p.peekAt(1).Type == lexer.LPAREN {
		nameTok := p.advance()
		m := &ast.MethodDecl{Name: nameTok.Value, Ctor: true, Static: static, Final: final}
		p.parseSignatureRest(m)
		if native {
			p.addError(nameTok, "constructors cannot be native")
		}
		p.expect(lexer.SEMICOLON, "expected ';' after constructor declaration")
		m.Span = p.span(start)
		if static {
			p.addError(start, "constructors cannot be static")
		}
		cls.Methods = append(cls.Methods, m)
		return
	}

	typ := p.parseType()
	nameTok := p.expect(lexer.IDENT, "expected member name")
	if nameTok.Type != lexer.IDENT {
		p.synchronize()
		return
	}

	if !p.check(lexer.LPAREN) {
		if native {
			p.addError(nameTok, "fields cannot be native")
		}
		p.expect(lexer.SEMICOLON, "expected ';' after field declaration")
		cls.Fields = append(cls.Fields, &ast.FieldDecl{
			Name: nameTok.Value, Type: typ, Static: static, Final: final, Span: p.span(start),
		})
		return
	}

	m := &ast.MethodDecl{Name: nameTok.Value, Return: typ, Static: static, Final: final}
	p.parseSignatureRest(m)
	if native {
		m.Lang = lang
		if !p.check(lexer.LBRACE) {
			p.addError(p.peek(), "expected '{' to open native method body")
			p.synchronize()
			return
		}
		m.Body = p.parseNativeBody()
	} else {
		p.expect(lexer.SEMICOLON, "expected ';' after method declaration")
	}
	m.Span = p.span(start)
	cls.Methods = append(cls.Methods, m)
}

// parseSignatureRest parses (params) [throws T, ...] after a member name.
func (p *Parser) parseSignatureRest(m *ast.MethodDecl) {
	p.expect(lexer.LPAREN, "expected '(' after method name")
	if !p.check(lexer.RPAREN) {
		m.Params = append(m.Params, p.parseParam())
		for p.match(lexer.COMMA) {
			m.Params = append(m.Params, p.parseParam())
		}
	}
	p.expect(lexer.RPAREN, "expected ')' after parameters")
	if p.match(lexer.THROWS) {
		m.Throws = append(m.Throws, p.parseType())
		for p.match(lexer.COMMA) {
			m.Throws = append(m.Throws, p.parseType())
		}
	}
}

func (p *Parser) parseParam() *ast.VarDecl {
	start := p.peek()
	p.match(lexer.FINAL)
	typ := p.parseType()
	name := p.expect(lexer.IDENT, "expected parameter name")
	return &ast.VarDecl{Kind: ast.VarParam, Name: name.Value, Type: typ, Span: p.span(start)}
}

// parseType parses a type: a primitive keyword or a qualified class name,
// followed by any number of [] pairs.
func (p *Parser) parseType() *ast.TypeRef {
	tok := p.peek()
	ref := &ast.TypeRef{}
	switch {
	case lexer.IsPrimitiveType(tok.Type):
		p.advance()
		ref.Name = tok.Value
	case tok.Type == lexer.IDENT:
		ref.Name = p.parseQualifiedName()
	default:
		p.addError(tok, fmt.Sprintf("expected type name, got %s", tok.Type))
		ref.Name = "<error>"
		ref.Span = ast.Span{Pos: p.position(tok), End: p.position(tok)}
		return ref
	}
	for p.check(lexer.LBRACKET) && p.peekAt(1).Type == lexer.RBRACKET {
		p.advance()
		p.advance()
		ref.Dims++
	}
	ref.Span = p.span(tok)
	return ref
}

// isTypeStart reports whether a type followed by an identifier starts at
// the current token, which is how local variable declarations are told
// apart from expression statements.
func (p *Parser) isTypeStart() bool {
	if lexer.IsPrimitiveType(p.tok.Type) {
		return true
	}
	if p.tok.Type != lexer.IDENT {
		return false
	}
	st := p.sc.Save()
	defer p.sc.Restore(st)
	next := p.sc.Next()
	for next.Type == lexer.DOT {
		if next = p.sc.Next(); next.Type != lexer.IDENT {
			return false
		}
		next = p.sc.Next()
	}
	for next.Type == lexer.LBRACKET {
		if next = p.sc.Next(); next.Type != lexer.RBRACKET {
			return false
		}
		next = p.sc.Next()
	}
	return next.Type == lexer.IDENT
}
