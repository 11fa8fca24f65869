package diag

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
)

const (
	colorRed    = "\x1b[31;1m"
	colorYellow = "\x1b[33;1m"
	colorBold   = "\x1b[1m"
	colorReset  = "\x1b[0m"
)

// Renderer prints diagnostics with the offending source line and a caret.
type Renderer struct {
	out   io.Writer
	color bool
}

// NewRenderer returns a renderer writing to f. Color is enabled only when f
// is a terminal.
func NewRenderer(f *os.File) *Renderer {
	fd := f.Fd()
	return &Renderer{
		out:   f,
		color: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// NewPlainRenderer returns a renderer that never uses color.
func NewPlainRenderer(w io.Writer) *Renderer {
	return &Renderer{out: w}
}

// Writer returns the destination of rendered diagnostics.
func (r *Renderer) Writer() io.Writer { return r.out }

// Render writes d followed by an excerpt of source, if source covers d's
// line.
func (r *Renderer) Render(d *Diagnostic, source string) {
	fmt.Fprint(r.out, r.Format(d, source))
}

// RenderAll renders every diagnostic in l against the same source.
func (r *Renderer) RenderAll(l List, source string) {
	for _, d := range l {
		r.Render(d, source)
	}
}

// Format returns the rendered text of d.
func (r *Renderer) Format(d *Diagnostic, source string) string {
	var b strings.Builder
	sev := d.Severity.String()
	if r.color {
		c := colorRed
		if d.Severity == Warning {
			c = colorYellow
		}
		sev = c + sev + colorReset
	}
	loc := fmt.Sprintf("%s:%d:%d", d.File, d.Pos.Line, d.Pos.Column)
	if r.color {
		loc = colorBold + loc + colorReset
	}
	fmt.Fprintf(&b, "%s: %s: %s\n", loc, sev, d.Message)

	line, ok := sourceLine(source, d.Pos.Line)
	if !ok {
		return b.String()
	}
	gutter := fmt.Sprintf("%4d | ", d.Pos.Line)
	b.WriteString(gutter)
	b.WriteString(line)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", len(gutter)-2))
	b.WriteString("| ")
	b.WriteString(caretPad(line, d.Pos.Column))
	if r.color {
		b.WriteString(colorRed + "^" + colorReset)
	} else {
		b.WriteByte('^')
	}
	b.WriteByte('\n')
	return b.String()
}

func sourceLine(source string, n int) (string, bool) {
	if n < 1 {
		return "", false
	}
	lines := strings.Split(source, "\n")
	if n > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[n-1], "\r"), true
}

// caretPad returns the whitespace that puts a caret under the col-th rune of
// line. Tabs are kept so the terminal expands them the same way, and wide
// runes take their display width.
func caretPad(line string, col int) string {
	var b strings.Builder
	i := 1
	for _, r := range line {
		if i >= col {
			break
		}
		if r == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
		}
		i++
	}
	return b.String()
}
