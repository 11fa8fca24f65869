package lexer

import (
	"fmt"
	"strings"
)

const (
	// Special
	EOF     = "EOF"
	ILLEGAL = "ILLEGAL"

	// Literals
	IDENT  = "IDENT"  // identifiers: count, java, String, …
	INT    = "INT"    // integer literals: 0, 42, 0xFF, 7L, …
	FLOAT  = "FLOAT"  // floating literals: 3.14, 1e10, 2.5f, …
	STRING = "STRING" // string literals: "hello"
	CHAR   = "CHAR"   // character literals: 'a', '\n'

	// Keywords
	PACKAGE      = "PACKAGE"
	IMPORT       = "IMPORT"
	CLASS        = "CLASS"
	EXTENDS      = "EXTENDS"
	STATIC       = "STATIC"
	FINAL        = "FINAL"
	NATIVE       = "NATIVE"
	THROWS       = "THROWS"
	NEW          = "NEW"
	THIS         = "THIS"
	SUPER        = "SUPER"
	NULL         = "NULL"
	TRUE         = "TRUE"
	FALSE        = "FALSE"
	INSTANCEOF   = "INSTANCEOF"
	SYNCHRONIZED = "SYNCHRONIZED"
	TRY          = "TRY"
	CATCH        = "CATCH"
	FINALLY      = "FINALLY"
	THROW        = "THROW"
	RETURN       = "RETURN"

	// Primitive type keywords
	VOID    = "VOID"
	BOOLEAN = "BOOLEAN"
	BYTE    = "BYTE"
	CHARKW  = "CHARKW"
	SHORT   = "SHORT"
	INTKW   = "INTKW"
	LONG    = "LONG"
	FLOATKW = "FLOATKW"
	DOUBLE  = "DOUBLE"

	// Delimiters
	LPAREN    = "LPAREN"    // (
	RPAREN    = "RPAREN"    // )
	LBRACE    = "LBRACE"    // {
	RBRACE    = "RBRACE"    // }
	LBRACKET  = "LBRACKET"  // [
	RBRACKET  = "RBRACKET"  // ]
	SEMICOLON = "SEMICOLON" // ;
	COMMA     = "COMMA"     // ,
	DOT       = "DOT"       // .
	HASH      = "HASH"      // #
	BACKTICK  = "BACKTICK"  // `

	// Operators
	ASSIGN    = "ASSIGN"    // =
	ASSIGN_OP = "ASSIGN_OP" // += -= *= /= %= &= |= ^= <<= >>= >>>=
	PLUS      = "PLUS"      // +
	MINUS     = "MINUS"     // -
	STAR      = "STAR"      // *
	SLASH     = "SLASH"     // /
	PERCENT   = "PERCENT"   // %
	AMPERSAND = "AMPERSAND" // &
	BANG      = "BANG"      // !
	PIPE      = "PIPE"      // |
	CARET     = "CARET"     // ^
	TILDE     = "TILDE"     // ~
	SHL       = "SHL"       // <<
	SHR       = "SHR"       // >>
	USHR      = "USHR"      // >>>

	// Comparison operators
	EQ  = "EQ"  // ==
	NEQ = "NEQ" // !=
	LT  = "LT"  // <
	GT  = "GT"  // >
	LTE = "LTE" // <=
	GTE = "GTE" // >=

	// Logical operators
	AND = "AND" // &&
	OR  = "OR"  // ||
)

// keywords maps reserved words to their token types.
var keywords = map[string]string{
	"package":      PACKAGE,
	"import":       IMPORT,
	"class":        CLASS,
	"extends":      EXTENDS,
	"static":       STATIC,
	"final":        FINAL,
	"native":       NATIVE,
	"throws":       THROWS,
	"new":          NEW,
	"this":         THIS,
	"super":        SUPER,
	"null":         NULL,
	"true":         TRUE,
	"false":        FALSE,
	"instanceof":   INSTANCEOF,
	"synchronized": SYNCHRONIZED,
	"try":          TRY,
	"catch":        CATCH,
	"finally":      FINALLY,
	"throw":        THROW,
	"return":       RETURN,
	"void":         VOID,
	"boolean":      BOOLEAN,
	"byte":         BYTE,
	"char":         CHARKW,
	"short":        SHORT,
	"int":          INTKW,
	"long":         LONG,
	"float":        FLOATKW,
	"double":       DOUBLE,
}

// IsPrimitiveType reports whether typ is one of the primitive type keywords
// (void included).
func IsPrimitiveType(typ string) bool {
	switch typ {
	case VOID, BOOLEAN, BYTE, CHARKW, SHORT, INTKW, LONG, FLOATKW, DOUBLE:
		return true
	}
	return false
}

// Token represents a single lexical token produced by the lexer.
type Token struct {
	Type   string
	Value  string
	Line   int
	Column int
	Offset int
}

// End returns the byte offset just past the token.
func (t Token) End() int { return t.Offset + len(t.Value) }

// LexError represents a recoverable error encountered during lexing.
type LexError struct {
	Message string
	Lexeme  string
	Line    int
	Column  int
}

func (e LexError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s (got %q)", e.Line, e.Column, e.Message, e.Lexeme)
}

// Lex tokenizes host-language input completely. Native text is not
// recognized; use a Scanner to switch modes.
func Lex(input string) ([]Token, []LexError) {
	s := NewScanner(input)
	var tokens []Token
	for {
		tok := s.Next()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			break
		}
	}
	return tokens, s.Errors()
}

// ---------------------------------------------------------------------------
// Scanner
// ---------------------------------------------------------------------------

// Scanner reads a unit file one token or one run of native text at a time,
// so the parser can switch between host and native modes.
type Scanner struct {
	src  string
	off  int
	line int
	col  int
	errs []LexError
}

// State is a saved scanner position.
type State struct {
	off, line, col, nerrs int
}

// NewScanner returns a scanner positioned at the start of src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: src, line: 1, col: 1}
}

// Errors returns the errors recorded so far.
func (s *Scanner) Errors() []LexError { return s.errs }

// Save records the current position.
func (s *Scanner) Save() State {
	return State{s.off, s.line, s.col, len(s.errs)}
}

// Restore rewinds to a saved position, dropping errors recorded since.
func (s *Scanner) Restore(st State) {
	s.off, s.line, s.col = st.off, st.line, st.col
	s.errs = s.errs[:st.nerrs]
}

// Offset returns the current byte offset.
func (s *Scanner) Offset() int { return s.off }

// Line returns the current line.
func (s *Scanner) Line() int { return s.line }

// Column returns the current column.
func (s *Scanner) Column() int { return s.col }

func (s *Scanner) errorf(line, col int, lexeme, format string, args ...any) {
	s.errs = append(s.errs, LexError{
		Message: fmt.Sprintf(format, args...),
		Lexeme:  lexeme,
		Line:    line,
		Column:  col,
	})
}

func (s *Scanner) peekByte(n int) byte {
	if s.off+n < len(s.src) {
		return s.src[s.off+n]
	}
	return 0
}

// step consumes one byte. Columns count runes, so UTF-8 continuation bytes
// do not advance the column.
func (s *Scanner) step() {
	ch := s.src[s.off]
	s.off++
	switch {
	case ch == '\n':
		s.line++
		s.col = 1
	case ch == '\r', ch&0xC0 == 0x80:
	default:
		s.col++
	}
}

func (s *Scanner) stepN(n int) {
	for i := 0; i < n && s.off < len(s.src); i++ {
		s.step()
	}
}

// skipTrivia skips whitespace and host comments.
func (s *Scanner) skipTrivia() {
	for s.off < len(s.src) {
		ch := s.src[s.off]
		if isWhitespace(ch) {
			s.step()
			continue
		}
		if ch == '/' && s.peekByte(1) == '/' {
			s.skipLineComment()
			continue
		}
		if ch == '/' && s.peekByte(1) == '*' {
			s.skipBlockComment()
			continue
		}
		return
	}
}

func (s *Scanner) skipLineComment() {
	for s.off < len(s.src) && s.src[s.off] != '\n' {
		s.step()
	}
}

func (s *Scanner) skipBlockComment() {
	line, col := s.line, s.col
	s.stepN(2)
	for s.off < len(s.src) {
		if s.src[s.off] == '*' && s.peekByte(1) == '/' {
			s.stepN(2)
			return
		}
		s.step()
	}
	s.errorf(line, col, "/*", "unterminated block comment")
}

// Next returns the next host token.
func (s *Scanner) Next() Token {
	for {
		s.skipTrivia()
		if s.off >= len(s.src) {
			return Token{EOF, "", s.line, s.col, s.off}
		}
		if tok, ok := s.lexToken(); ok {
			return tok
		}
	}
}

func (s *Scanner) lexToken() (Token, bool) {
	ch := s.src[s.off]
	switch {
	case ch == '"':
		return s.lexQuoted(STRING, '"')
	case ch == '\'':
		return s.lexQuoted(CHAR, '\'')
	case isDigit(ch), ch == '.' && isDigit(s.peekByte(1)):
		return s.lexNumber(), true
	case isIdentStart(ch):
		return s.lexIdentifier(), true
	}
	if tok, width := lexOperatorOrDelimiter(s.src, s.off, s.line, s.col); width > 0 {
		s.stepN(width)
		return tok, true
	}
	s.errorf(s.line, s.col, string(ch), "unexpected character")
	s.step()
	return Token{}, false
}

// lexQuoted scans a string or character literal. The token value keeps the
// quotes and escapes; Unquote decodes it.
func (s *Scanner) lexQuoted(typ string, quote byte) (Token, bool) {
	start, line, col := s.off, s.line, s.col
	s.step()
	for s.off < len(s.src) {
		ch := s.src[s.off]
		if ch == '\n' || ch == '\r' {
			s.errorf(line, col, s.src[start:s.off], "unterminated literal (newline in literal)")
			return Token{}, false
		}
		if ch == '\\' {
			if s.off+1 >= len(s.src) {
				s.step()
				break
			}
			s.stepN(2)
			continue
		}
		s.step()
		if ch == quote {
			return Token{typ, s.src[start:s.off], line, col, start}, true
		}
	}
	s.errorf(line, col, s.src[start:], "unterminated literal (reached end of input)")
	return Token{}, false
}

// lexNumber scans an integer or floating literal.
// Supports: decimal (42), hexadecimal (0xFF), fractions (3.14, .5),
// exponents (1.5e10, 2.0E-3) and the L, F and D suffixes.
// A trailing dot is only consumed as part of a float if followed by a digit,
// so that `obj.method` after an integer is not mis-parsed.
func (s *Scanner) lexNumber() Token {
	start, line, col := s.off, s.line, s.col
	isFloat := false

	// Hexadecimal: 0x… / 0X…
	if s.src[s.off] == '0' && (s.peekByte(1) == 'x' || s.peekByte(1) == 'X') {
		s.stepN(2)
		for s.off < len(s.src) && isHexDigit(s.src[s.off]) {
			s.step()
		}
		if c := s.peekByte(0); c == 'l' || c == 'L' {
			s.step()
		}
		return Token{INT, s.src[start:s.off], line, col, start}
	}

	for s.off < len(s.src) && isDigit(s.src[s.off]) {
		s.step()
	}
	if s.peekByte(0) == '.' && isDigit(s.peekByte(1)) {
		isFloat = true
		s.step()
		for s.off < len(s.src) && isDigit(s.src[s.off]) {
			s.step()
		}
	}
	if c := s.peekByte(0); c == 'e' || c == 'E' {
		isFloat = true
		s.step()
		if c := s.peekByte(0); c == '+' || c == '-' {
			s.step()
		}
		for s.off < len(s.src) && isDigit(s.src[s.off]) {
			s.step()
		}
	}
	switch s.peekByte(0) {
	case 'l', 'L':
		if !isFloat {
			s.step()
		}
	case 'f', 'F', 'd', 'D':
		isFloat = true
		s.step()
	}

	tokType := INT
	if isFloat {
		tokType = FLOAT
	}
	return Token{tokType, s.src[start:s.off], line, col, start}
}

func (s *Scanner) lexIdentifier() Token {
	start, line, col := s.off, s.line, s.col
	for s.off < len(s.src) && isIdentPart(s.src[s.off]) {
		s.step()
	}
	word := s.src[start:s.off]
	tokType := IDENT
	if kw, ok := keywords[word]; ok {
		tokType = kw
	}
	return Token{tokType, word, line, col, start}
}

// lexOperatorOrDelimiter tries to match an operator or delimiter starting
// at input[i], longest match first. Returns the token and the number of
// characters consumed (0 if nothing matched).
func lexOperatorOrDelimiter(input string, i int, line int, col int) (Token, int) {
	rest := input[i:]
	tok := func(typ, val string) (Token, int) {
		return Token{typ, val, line, col, i}, len(val)
	}

	for _, op := range []string{">>>=", "<<=", ">>="} {
		if strings.HasPrefix(rest, op) {
			return tok(ASSIGN_OP, op)
		}
	}
	if strings.HasPrefix(rest, ">>>") {
		return tok(USHR, ">>>")
	}

	var next byte
	if len(rest) > 1 {
		next = rest[1]
	}
	ch := rest[0]

	// Two-character tokens
	switch ch {
	case '=':
		if next == '=' {
			return tok(EQ, "==")
		}
		return tok(ASSIGN, "=")
	case '!':
		if next == '=' {
			return tok(NEQ, "!=")
		}
		return tok(BANG, "!")
	case '<':
		if next == '=' {
			return tok(LTE, "<=")
		}
		if next == '<' {
			return tok(SHL, "<<")
		}
		return tok(LT, "<")
	case '>':
		if next == '=' {
			return tok(GTE, ">=")
		}
		if next == '>' {
			return tok(SHR, ">>")
		}
		return tok(GT, ">")
	case '&':
		if next == '&' {
			return tok(AND, "&&")
		}
		if next == '=' {
			return tok(ASSIGN_OP, "&=")
		}
		return tok(AMPERSAND, "&")
	case '|':
		if next == '|' {
			return tok(OR, "||")
		}
		if next == '=' {
			return tok(ASSIGN_OP, "|=")
		}
		return tok(PIPE, "|")
	case '+', '-', '*', '/', '%', '^':
		if next == '=' {
			return tok(ASSIGN_OP, rest[:2])
		}
	}

	// Single-character tokens
	switch ch {
	case '(':
		return tok(LPAREN, "(")
	case ')':
		return tok(RPAREN, ")")
	case '{':
		return tok(LBRACE, "{")
	case '}':
		return tok(RBRACE, "}")
	case '[':
		return tok(LBRACKET, "[")
	case ']':
		return tok(RBRACKET, "]")
	case ';':
		return tok(SEMICOLON, ";")
	case ',':
		return tok(COMMA, ",")
	case '.':
		return tok(DOT, ".")
	case '+':
		return tok(PLUS, "+")
	case '-':
		return tok(MINUS, "-")
	case '*':
		return tok(STAR, "*")
	case '/':
		return tok(SLASH, "/")
	case '%':
		return tok(PERCENT, "%")
	case '^':
		return tok(CARET, "^")
	case '~':
		return tok(TILDE, "~")
	case '#':
		return tok(HASH, "#")
	case '`':
		return tok(BACKTICK, "`")
	}

	return Token{}, 0
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentStart(ch byte) bool {
	return isLetter(ch) || ch == '_' || ch == '$'
}

func isIdentPart(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '_' || ch == '$'
}
