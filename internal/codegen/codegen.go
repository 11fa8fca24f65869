// Package codegen lowers the host code embedded in native methods into C
// and writes the JNI stub and implementation files of every class.
package codegen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"

	"janet/internal/ast"
	"janet/internal/diag"
	"janet/internal/logger"
	"janet/internal/semantic"
)

// ---------------------------------------------------------------------------
// Options controls the behaviour of the generator.
// ---------------------------------------------------------------------------

// Options configures Generate.
type Options struct {
	// Language is used by native declarations that name none.
	Language string

	// Comments brackets every lowered construct with an excerpt of its
	// source.
	Comments bool

	// TimestampFormat is the strftime layout of the generated: header line.
	TimestampFormat string

	// Now stamps the headers. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() *Options {
	return &Options{
		Language:        "c",
		TimestampFormat: "%Y-%m-%d %H:%M:%S",
	}
}

// ---------------------------------------------------------------------------
// File is one generated output.
// ---------------------------------------------------------------------------

type File struct {
	Name string // base name inside the output directory
	Data []byte
}

// ---------------------------------------------------------------------------
// Generate
//
// Per class: lower every native method, then write <Class>.c with the JNI
// stubs and one <Class>Impl file per native language.
// ---------------------------------------------------------------------------

// Generate returns the files of unit. Lowering errors are collected over all
// methods and returned together as a diag.List; no files are returned then.
func Generate(unit *semantic.Unit, opts *Options) ([]*File, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	g := &generator{unit: unit, opts: opts}
	var files []*File
	for _, cls := range unit.Classes {
		files = append(files, g.class(cls)...)
	}
	if err := g.diags.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

type generator struct {
	unit  *semantic.Unit
	opts  *Options
	diags diag.List
	stamp string
}

// implFile collects the implementation file of one language.
type implFile struct {
	lang *Language
	b    strings.Builder
}

func (g *generator) class(cls *semantic.Class) []*File {
	decl := cls.Decl
	if len(cls.Natives) == 0 && len(decl.StaticNatives) == 0 {
		return nil
	}
	base := mangle(decl.Class.SimpleName())

	var order []*implFile
	impls := map[string]*implFile{}
	impl := func(n ast.Node, name string) *implFile {
		lang, err := g.language(n, name)
		if err != nil {
			return nil
		}
		f, ok := impls[lang.Name]
		if !ok {
			f = &implFile{lang: lang}
			f.b.WriteString(g.header(base+"Impl"+lang.ImplExt, "janet.h"))
			impls[lang.Name] = f
			order = append(order, f)
		}
		return f
	}

	for _, s := range decl.StaticNatives {
		if f := impl(s, s.Lang); f != nil {
			f.b.WriteString(staticNative(s))
		}
	}

	stub := &stubWriter{cls: cls, comments: g.opts.Comments}
	stub.b.WriteString(g.header(base+".c", "janet_base.h"))
	stub.tables()
	stub.lifecycle()

	for _, nm := range cls.Natives {
		f := impl(nm.Decl, nm.Decl.Lang)
		if f == nil {
			continue
		}
		l := newLowerer(g.unit.AST, nm.Decl, nm.Usage, g.opts.Comments)
		body, err := l.lowerBody()
		if err != nil {
			g.addError(err)
			continue
		}
		logger.LogLowering(decl.Class.Name, nm.Decl.Name, l.fn.slots, l.fn.usesExceptions)
		f.b.WriteString(implHeader(nm, f.lang))
		f.b.WriteString("\n{")
		f.b.WriteString(body)
		f.b.WriteString("\n}\n")
		stub.stub(nm)
	}

	files := []*File{{Name: base + ".c", Data: []byte(stub.b.String())}}
	for _, f := range order {
		files = append(files, &File{Name: base + "Impl" + f.lang.ImplExt, Data: []byte(f.b.String())})
	}
	return files
}

// language resolves the native language named at n.
func (g *generator) language(n ast.Node, name string) (*Language, error) {
	if name == "" {
		name = g.opts.Language
	}
	if name == "" {
		name = "c"
	}
	lang, err := LookupLanguage(name)
	if err != nil {
		g.diags.Errorf(diag.PhaseLower, g.unit.AST.File, n.GetPos(), "%v", err)
		return nil, err
	}
	return lang, nil
}

func (g *generator) addError(err error) {
	if d, ok := err.(*diag.Diagnostic); ok {
		g.diags.Add(d)
		return
	}
	g.diags.Errorf(diag.PhaseLower, g.unit.AST.File, ast.Position{}, "%v", err)
}

// header returns the comment block and include that open every file.
func (g *generator) header(name, include string) string {
	if g.stamp == "" {
		now := time.Now
		if g.opts.Now != nil {
			now = g.opts.Now
		}
		format := g.opts.TimestampFormat
		if format == "" {
			format = DefaultOptions().TimestampFormat
		}
		g.stamp = timefmt.Format(now(), format)
	}
	return fmt.Sprintf("/**\n * file:      %s\n * basefile:  %s\n * generated: %s\n */\n\n#include <%s>\n\n",
		name, filepath.Base(g.unit.AST.File), g.stamp, include)
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// WriteFiles writes files into dir, creating it when needed, and returns
// the written paths.
func WriteFiles(dir string, files []*File) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create output directory %s: %w", dir, err)
	}
	var paths []string
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			return paths, fmt.Errorf("cannot write %s: %w", path, err)
		}
		logger.LogOutput(path, len(f.Data))
		paths = append(paths, path)
	}
	return paths, nil
}
