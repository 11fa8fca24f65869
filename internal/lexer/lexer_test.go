package lexer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tokenTypes(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Type
	}
	return out
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	tokens, errs := Lex("package import class extends static final native throws new this super instanceof synchronized try catch finally throw return foo _bar $baz42")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []string{
		PACKAGE, IMPORT, CLASS, EXTENDS, STATIC, FINAL, NATIVE, THROWS, NEW, THIS,
		SUPER, INSTANCEOF, SYNCHRONIZED, TRY, CATCH, FINALLY, THROW, RETURN,
		IDENT, IDENT, IDENT, EOF,
	}
	if diff := cmp.Diff(want, tokenTypes(tokens)); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
	if tokens[20].Value != "$baz42" {
		t.Errorf("identifier value = %q", tokens[20].Value)
	}
}

func TestPrimitiveTypeKeywords(t *testing.T) {
	tokens, _ := Lex("void boolean byte char short int long float double String")
	for _, tok := range tokens[:9] {
		if !IsPrimitiveType(tok.Type) {
			t.Errorf("%q should be a primitive type keyword", tok.Value)
		}
	}
	if IsPrimitiveType(tokens[9].Type) {
		t.Error("String is not a primitive type")
	}
}

func TestNumberLiterals(t *testing.T) {
	tests := []struct {
		input string
		typ   string
	}{
		{"0", INT},
		{"42", INT},
		{"0xFF", INT},
		{"0x7fffffffL", INT},
		{"10L", INT},
		{"3.14", FLOAT},
		{".5", FLOAT},
		{"1e10", FLOAT},
		{"2.0E-3", FLOAT},
		{"2.5f", FLOAT},
		{"7d", FLOAT},
	}
	for _, tt := range tests {
		tokens, errs := Lex(tt.input)
		if len(errs) > 0 {
			t.Fatalf("%s: unexpected errors: %v", tt.input, errs)
		}
		if tokens[0].Type != tt.typ || tokens[0].Value != tt.input {
			t.Errorf("Lex(%q) = (%s, %q), want (%s, %q)",
				tt.input, tokens[0].Type, tokens[0].Value, tt.typ, tt.input)
		}
	}
}

func TestNumberDotIdentifier(t *testing.T) {
	tokens, _ := Lex("a[1].length")
	want := []string{IDENT, LBRACKET, INT, RBRACKET, DOT, IDENT, EOF}
	if diff := cmp.Diff(want, tokenTypes(tokens)); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
}

func TestStringAndCharLiterals(t *testing.T) {
	tokens, errs := Lex(`"hi \"there\"" 'x' '\n'`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []Token{
		{STRING, `"hi \"there\""`, 1, 1, 0},
		{CHAR, `'x'`, 1, 16, 15},
		{CHAR, `'\n'`, 1, 20, 19},
		{EOF, "", 1, 24, 23},
	}
	if diff := cmp.Diff(want, tokens); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestOperators(t *testing.T) {
	tokens, errs := Lex("= == != < <= << <<= > >= >> >>= >>> >>>= + += - -= * *= / /= % %= & && &= | || |= ^ ^= ! ~ # `")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []string{
		ASSIGN, EQ, NEQ, LT, LTE, SHL, ASSIGN_OP, GT, GTE, SHR, ASSIGN_OP, USHR, ASSIGN_OP,
		PLUS, ASSIGN_OP, MINUS, ASSIGN_OP, STAR, ASSIGN_OP, SLASH, ASSIGN_OP, PERCENT, ASSIGN_OP,
		AMPERSAND, AND, ASSIGN_OP, PIPE, OR, ASSIGN_OP, CARET, ASSIGN_OP, BANG, TILDE, HASH, BACKTICK,
		EOF,
	}
	if diff := cmp.Diff(want, tokenTypes(tokens)); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
	if tokens[12].Value != ">>>=" {
		t.Errorf("compound shift value = %q", tokens[12].Value)
	}
}

func TestComments(t *testing.T) {
	tokens, errs := Lex("a // line\n/* block\n */ b")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(tokens) != 3 || tokens[1].Value != "b" || tokens[1].Line != 3 || tokens[1].Column != 5 {
		t.Errorf("tokens = %+v", tokens)
	}
}

func TestLineColumnTracking(t *testing.T) {
	tokens, _ := Lex("int x;\n  \"é\" y")
	// the column of y counts the two-byte rune once
	last := tokens[len(tokens)-2]
	if last.Value != "y" || last.Line != 2 || last.Column != 7 {
		t.Errorf("y at %d:%d, want 2:7", last.Line, last.Column)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"abc`, "unterminated literal"},
		{"\"ab\ncd\"", "newline in literal"},
		{"/* never closed", "unterminated block comment"},
		{"a @ b", "unexpected character"},
	}
	for _, tt := range tests {
		_, errs := Lex(tt.input)
		if len(errs) == 0 {
			t.Errorf("Lex(%q): expected an error", tt.input)
			continue
		}
		if !strings.Contains(errs[0].Message, tt.want) {
			t.Errorf("Lex(%q): error %q does not mention %q", tt.input, errs[0].Message, tt.want)
		}
	}
}

func TestSaveRestore(t *testing.T) {
	s := NewScanner("a @ b")
	st := s.Save()
	s.Next()
	s.Next()
	if len(s.Errors()) != 1 {
		t.Fatalf("expected one error, got %v", s.Errors())
	}
	s.Restore(st)
	if len(s.Errors()) != 0 {
		t.Error("Restore should drop errors recorded after Save")
	}
	if tok := s.Next(); tok.Value != "a" {
		t.Errorf("after Restore got %q, want a", tok.Value)
	}
}

func TestScanNativeBrace(t *testing.T) {
	s := NewScanner(" int n = `x`; /* } ` */ if (n) { f(\"}\"); } }rest")
	depth := 0
	c := s.ScanNative('}', &depth)
	if c.Stop != StopBacktick || c.Text != " int n = " {
		t.Fatalf("first chunk = %+v", c)
	}
	if tok := s.Next(); tok.Value != "x" {
		t.Fatalf("host token = %q", tok.Value)
	}
	if tok := s.Next(); tok.Type != BACKTICK {
		t.Fatalf("closing backtick = %q", tok.Type)
	}
	c = s.ScanNative('}', &depth)
	if c.Stop != StopOpenBrace || c.Text != "; /* } ` */ if (n) " {
		t.Fatalf("second chunk = %+v", c)
	}
	c = s.ScanNative('}', &depth)
	if c.Stop != StopClose || c.Text != ` f("}"); ` {
		t.Fatalf("nested chunk = %+v", c)
	}
	c = s.ScanNative('}', &depth)
	if c.Stop != StopClose || c.Text != " " {
		t.Fatalf("tail chunk = %+v", c)
	}
	if tok := s.Next(); tok.Value != "rest" {
		t.Errorf("after native code got %q", tok.Value)
	}
}

func TestScanNativeParen(t *testing.T) {
	s := NewScanner("f(a, (b)) + {c}) tail")
	depth := 0
	c := s.ScanNative(')', &depth)
	if c.Stop != StopClose || c.Text != "f(a, (b)) + {c}" {
		t.Errorf("chunk = %+v", c)
	}
	if depth != 0 {
		t.Errorf("depth = %d", depth)
	}
}

func TestScanNativeParenAcrossHostCode(t *testing.T) {
	s := NewScanner("g(`x`) )")
	depth := 0
	if c := s.ScanNative(')', &depth); c.Stop != StopBacktick || depth != 1 {
		t.Fatalf("chunk = %+v depth %d", c, depth)
	}
	s.Next()
	s.Next()
	c := s.ScanNative(')', &depth)
	if c.Stop != StopClose || c.Text != ") " {
		t.Errorf("chunk = %+v", c)
	}
}

func TestScanNativeUnterminated(t *testing.T) {
	s := NewScanner("int a = 1;")
	depth := 0
	c := s.ScanNative('}', &depth)
	if c.Stop != StopEOF || len(s.Errors()) != 1 {
		t.Errorf("chunk = %+v errors %v", c, s.Errors())
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		lit  string
		want string
	}{
		{`"plain"`, "plain"},
		{`"a\tb\n"`, "a\tb\n"},
		{`"q\"q\\"`, `q"q\`},
		{`"é"`, "é"},
		{`"\101\0"`, "A\x00"},
		{`'\''`, "'"},
	}
	for _, tt := range tests {
		got, err := Unquote(tt.lit)
		if err != nil {
			t.Errorf("Unquote(%s): %v", tt.lit, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Unquote(%s) = %q, want %q", tt.lit, got, tt.want)
		}
	}
	for _, bad := range []string{`"\q"`, `"\u12"`, `x`} {
		if _, err := Unquote(bad); err == nil {
			t.Errorf("Unquote(%s): expected an error", bad)
		}
	}
}
