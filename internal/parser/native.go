package parser

import (
	"janet/internal/ast"
	"janet/internal/diag"
	"janet/internal/lexer"
)

// The functions in this file run while the current token is the opener of
// a native region ('{' or '('). At that point the scanner sits just past the
// opener, so native text can be read without losing lookahead. Each returns
// with the closer consumed and the next host token loaded.

// parseNativeBody parses a native method body.
func (p *Parser) parseNativeBody() *ast.NativeCode {
	start := p.position(p.tok)
	parts := p.parseNativeParts('}')
	code := &ast.NativeCode{Parts: parts}
	code.Span = ast.Span{Pos: start, End: p.endOf(p.prev)}
	return code
}

// parseStaticNative reads a class-level native block. It may nest braces
// but cannot embed host code.
func (p *Parser) parseStaticNative() string {
	var text []byte
	depth := 0
	for {
		c := p.sc.ScanNative('}', &depth)
		text = append(text, c.Text...)
		switch c.Stop {
		case lexer.StopOpenBrace:
			depth++
			text = append(text, '{')
			continue
		case lexer.StopClose:
			if depth > 0 {
				depth--
				text = append(text, '}')
				continue
			}
		case lexer.StopBacktick:
			p.errs.Errorf(diag.PhaseParse, p.file, ast.Position{Line: p.sc.Line(), Column: p.sc.Column() - 1, Offset: p.sc.Offset() - 1},
				"host code is not allowed in static native blocks")
			text = append(text, '`')
			continue
		}
		break
	}
	p.resume()
	return string(text)
}

// resume loads the next host token after a native region and marks the
// region's closer as consumed.
func (p *Parser) resume() {
	off := p.sc.Offset() - 1
	if off < 0 {
		off = 0
	}
	closer := ""
	if off < len(p.src) {
		closer = p.src[off : off+1]
	}
	p.prev = lexer.Token{Type: lexer.RBRACE, Value: closer, Line: p.sc.Line(), Column: p.sc.Column() - 1, Offset: off}
	p.tok = p.sc.Next()
}

// parseNativeParts reads native text up to the closer, splitting out
// nested brace blocks and backtick host segments.
func (p *Parser) parseNativeParts(closer byte) []ast.NativePart {
	var parts []ast.NativePart
	depth := 0
	for {
		c := p.sc.ScanNative(closer, &depth)
		parts = appendText(parts, c)
		switch c.Stop {
		case lexer.StopBacktick:
			if seg := p.parseHostSegment(); seg != nil {
				parts = append(parts, seg)
			}
			continue
		case lexer.StopOpenBrace:
			parts = append(parts, p.parseNativeBlock())
			continue
		}
		break
	}
	p.resume()
	return parts
}

// parseNativeBlock parses a nested brace block whose '{' was just consumed
// by the scanner. Blocks without host code collapse into plain text.
func (p *Parser) parseNativeBlock() ast.NativePart {
	open := ast.Position{Line: p.sc.Line(), Column: p.sc.Column() - 1, Offset: p.sc.Offset() - 1}
	var parts []ast.NativePart
	depth := 0
	for {
		c := p.sc.ScanNative('}', &depth)
		parts = appendText(parts, c)
		switch c.Stop {
		case lexer.StopBacktick:
			if seg := p.parseHostSegment(); seg != nil {
				parts = append(parts, seg)
			}
			continue
		case lexer.StopOpenBrace:
			parts = append(parts, p.parseNativeBlock())
			continue
		}
		break
	}
	end := p.scannerPos()
	span := ast.Span{Pos: open, End: end}
	if !hasHostCode(parts) {
		return &ast.NativeText{Text: p.src[open.Offset:end.Offset], Span: span}
	}
	return &ast.NativeBlock{Open: "{", Parts: parts, Close: "}", Span: span}
}

func hasHostCode(parts []ast.NativePart) bool {
	for _, part := range parts {
		switch part := part.(type) {
		case *ast.HostExpr, *ast.HostStmts:
			return true
		case *ast.NativeBlock:
			if hasHostCode(part.Parts) {
				return true
			}
		}
	}
	return false
}

// appendText adds the chunk's text, merging it with a preceding text part.
func appendText(parts []ast.NativePart, c lexer.NativeChunk) []ast.NativePart {
	if c.Text == "" {
		return parts
	}
	pos := ast.Position{Line: c.Line, Column: c.Column, Offset: c.Offset}
	end := ast.Position{Offset: c.Offset + len(c.Text)}
	if n := len(parts); n > 0 {
		if prev, ok := parts[n-1].(*ast.NativeText); ok && prev.End.Offset == c.Offset {
			prev.Text += c.Text
			prev.End = end
			return parts
		}
	}
	return append(parts, &ast.NativeText{Text: c.Text, Span: ast.Span{Pos: pos, End: end}})
}

// parseHostSegment parses the host code between a pair of backticks. The
// opening backtick has been consumed by the scanner. A single expression
// without a terminating ';' is a HostExpr; anything else is HostStmts.
func (p *Parser) parseHostSegment() ast.NativePart {
	p.tok = p.sc.Next()
	start := p.tok
	if p.check(lexer.BACKTICK) {
		p.closeSegment()
		return &ast.HostStmts{Span: p.span(start)}
	}

	var stmts []ast.Stmt
	if !p.startsStatement() {
		x := p.parseExpression()
		if p.check(lexer.BACKTICK) {
			p.closeSegment()
			return &ast.HostExpr{X: x, Span: ast.Span{Pos: x.GetPos(), End: x.GetEnd()}}
		}
		p.expect(lexer.SEMICOLON, "expected ';' or '`' after host expression")
		stmts = append(stmts, &ast.ExprStmt{X: x, Span: p.span(start)})
	}
	for !p.check(lexer.BACKTICK) && !p.check(lexer.EOF) {
		before := p.tok.Offset
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
		if p.tok.Offset == before && !p.check(lexer.BACKTICK) && !p.check(lexer.EOF) {
			p.advance()
		}
	}
	span := ast.Span{Pos: p.position(start), End: p.endOf(p.prev)}
	p.closeSegment()
	return &ast.HostStmts{Stmts: stmts, Span: span}
}

// closeSegment checks for the closing backtick without loading the next
// host token: native scanning continues right after it.
func (p *Parser) closeSegment() {
	if !p.check(lexer.BACKTICK) {
		p.addError(p.tok, "expected '`' to close host code")
		return
	}
	p.prev = p.tok
}

// startsStatement reports whether the current token can only begin a
// statement.
func (p *Parser) startsStatement() bool {
	switch p.tok.Type {
	case lexer.LBRACE, lexer.SYNCHRONIZED, lexer.TRY, lexer.THROW, lexer.RETURN, lexer.SEMICOLON:
		return true
	case lexer.HASH:
		return p.peekAt(1).Type == lexer.LBRACE
	}
	return p.isTypeStart()
}

// parseNativeExprCode parses the inside of #( ... ). Only host expressions
// may be embedded there.
func (p *Parser) parseNativeExprCode() *ast.NativeCode {
	start := p.position(p.tok)
	parts := p.parseNativeParts(')')
	for _, part := range parts {
		if hs, ok := part.(*ast.HostStmts); ok {
			p.errs.Errorf(diag.PhaseParse, p.file, hs.Pos, "host statements are not allowed inside a native expression")
		}
	}
	code := &ast.NativeCode{Parts: parts}
	code.Span = ast.Span{Pos: start, End: p.endOf(p.prev)}
	return code
}
