// Package diag holds positioned compiler messages and renders them with a
// source excerpt.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"janet/internal/ast"
)

// Severity indicates how serious a diagnostic is.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Phase names the compiler stage that produced a diagnostic.
type Phase string

const (
	PhaseLex      Phase = "lex"
	PhaseParse    Phase = "parse"
	PhaseImport   Phase = "import"
	PhaseSemantic Phase = "semantic"
	PhaseLower    Phase = "lower"
)

// Diagnostic is one positioned message.
type Diagnostic struct {
	File     string
	Pos      ast.Position
	Phase    Phase
	Severity Severity
	Message  string
}

func (d *Diagnostic) Error() string {
	loc := fmt.Sprintf("line %d, col %d", d.Pos.Line, d.Pos.Column)
	if d.File != "" {
		loc = fmt.Sprintf("%s:%d:%d", d.File, d.Pos.Line, d.Pos.Column)
	}
	return fmt.Sprintf("%s: %s %s: %s", loc, d.Phase, d.Severity, d.Message)
}

// Errorf builds an error-severity diagnostic.
func Errorf(phase Phase, file string, pos ast.Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		File:     file,
		Pos:      pos,
		Phase:    phase,
		Severity: Error,
		Message:  fmt.Sprintf(format, args...),
	}
}

// List collects the diagnostics of one or more phases.
type List []*Diagnostic

// Add appends d.
func (l *List) Add(d *Diagnostic) { *l = append(*l, d) }

// Errorf appends an error-severity diagnostic.
func (l *List) Errorf(phase Phase, file string, pos ast.Position, format string, args ...any) {
	l.Add(Errorf(phase, file, pos, format, args...))
}

// Warnf appends a warning.
func (l *List) Warnf(phase Phase, file string, pos ast.Position, format string, args ...any) {
	d := Errorf(phase, file, pos, format, args...)
	d.Severity = Warning
	l.Add(d)
}

// HasErrors reports whether any diagnostic has error severity.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Sort orders diagnostics by file and position, keeping the insertion order
// of diagnostics at the same place.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i], l[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		return a.Pos.Column < b.Pos.Column
	})
}

// Err returns l as an error when it holds at least one error, nil otherwise.
func (l List) Err() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

func (l List) Error() string {
	msgs := make([]string, len(l))
	for i, d := range l {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}
