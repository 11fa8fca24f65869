package lexer

import (
	"fmt"
	"strconv"
	"strings"
)

// NativeStop tells why ScanNative returned.
type NativeStop int

const (
	StopEOF       NativeStop = iota
	StopBacktick             // '`' opens embedded host code
	StopOpenBrace            // '{' opens a nested native block
	StopClose                // the closer at depth 0
)

func (s NativeStop) String() string {
	switch s {
	case StopBacktick:
		return "backtick"
	case StopOpenBrace:
		return "open brace"
	case StopClose:
		return "close"
	default:
		return "EOF"
	}
}

// NativeChunk is a run of native text.
type NativeChunk struct {
	Text   string
	Offset int
	Line   int
	Column int
	Stop   NativeStop
}

// ScanNative consumes native text until a backtick, a nested '{', or the
// closer. closer is '}' for native blocks and ')' for native expressions.
// In parenthesis mode braces are plain text and depth carries the paren
// nesting across calls. The stop character is consumed and not part of Text.
// C comments and string or character literals are copied verbatim.
func (s *Scanner) ScanNative(closer byte, depth *int) NativeChunk {
	start, line, col := s.off, s.line, s.col
	chunk := func(stop NativeStop, end int) NativeChunk {
		return NativeChunk{s.src[start:end], start, line, col, stop}
	}
	for s.off < len(s.src) {
		ch := s.src[s.off]
		switch {
		case ch == '`':
			end := s.off
			s.step()
			return chunk(StopBacktick, end)
		case ch == '/' && s.peekByte(1) == '/':
			s.skipLineComment()
			continue
		case ch == '/' && s.peekByte(1) == '*':
			s.skipBlockComment()
			continue
		case ch == '"' || ch == '\'':
			s.skipNativeQuoted(ch)
			continue
		case closer == '}' && ch == '{':
			end := s.off
			s.step()
			return chunk(StopOpenBrace, end)
		case closer == ')' && ch == '(':
			*depth++
		case ch == closer:
			if closer == ')' && *depth > 0 {
				*depth--
				break
			}
			end := s.off
			s.step()
			return chunk(StopClose, end)
		}
		s.step()
	}
	s.errorf(line, col, "", "unterminated native code (missing %q)", closer)
	return chunk(StopEOF, s.off)
}

// skipNativeQuoted skips a C string or character literal. C literals may
// not span lines either, so an unterminated one stops at the newline.
func (s *Scanner) skipNativeQuoted(quote byte) {
	line, col := s.line, s.col
	s.step()
	for s.off < len(s.src) {
		ch := s.src[s.off]
		switch ch {
		case '\\':
			s.stepN(2)
			continue
		case '\n':
			s.errorf(line, col, string(quote), "unterminated native literal")
			return
		}
		s.step()
		if ch == quote {
			return
		}
	}
	s.errorf(line, col, string(quote), "unterminated native literal")
}

// Unquote decodes a host string or character literal, quotes included.
func Unquote(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != lit[len(lit)-1] || (lit[0] != '"' && lit[0] != '\'') {
		return "", fmt.Errorf("malformed literal %s", lit)
	}
	body := lit[1 : len(lit)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' {
			sb.WriteByte(ch)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("trailing backslash in %s", lit)
		}
		switch c := body[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'r':
			sb.WriteByte('\r')
		case 'f':
			sb.WriteByte('\f')
		case '\'', '"', '\\':
			sb.WriteByte(c)
		case 'u':
			for i+1 < len(body) && body[i+1] == 'u' {
				i++
			}
			if i+5 > len(body) {
				return "", fmt.Errorf("short unicode escape in %s", lit)
			}
			r, err := strconv.ParseUint(body[i+1:i+5], 16, 16)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape in %s", lit)
			}
			sb.WriteRune(rune(r))
			i += 4
		default:
			if c < '0' || c > '7' {
				return "", fmt.Errorf("unknown escape \\%c in %s", c, lit)
			}
			// Octal: up to three digits, at most \377.
			j := i
			max := 3
			if c > '3' {
				max = 2
			}
			for j < len(body) && j-i < max && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(body[i:j], 8, 8)
			sb.WriteRune(rune(v))
			i = j - 1
		}
	}
	return sb.String(), nil
}
