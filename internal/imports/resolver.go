// Package imports loads the class libraries a unit imports. A class library
// is a YAML file describing host classes by signature only:
//
//	imports: [base.yaml]
//	classes:
//	  - name: java.io.File
//	    super: java.lang.Object
//	    fields:
//	      - {name: separator, type: String, static: true}
//	    methods:
//	      - {name: delete, returns: boolean, throws: [java.io.IOException]}
//	    constructors:
//	      - {params: [String]}
package imports

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"janet/internal/ast"
	"janet/internal/diag"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Library file model
// ---------------------------------------------------------------------------

type libraryDoc struct {
	Imports []string    `yaml:"imports"`
	Classes []classSpec `yaml:"classes"`
}

type classSpec struct {
	Name         string       `yaml:"name"`
	Super        string       `yaml:"super"`
	Interfaces   []string     `yaml:"interfaces"`
	Interface    bool         `yaml:"interface"`
	Final        bool         `yaml:"final"`
	Fields       []fieldSpec  `yaml:"fields"`
	Methods      []methodSpec `yaml:"methods"`
	Constructors []methodSpec `yaml:"constructors"`
}

type fieldSpec struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Static bool   `yaml:"static"`
	Final  bool   `yaml:"final"`
}

type methodSpec struct {
	Name    string   `yaml:"name"`
	Returns string   `yaml:"returns"`
	Params  []string `yaml:"params"`
	Throws  []string `yaml:"throws"`
	Static  bool     `yaml:"static"`
	Final   bool     `yaml:"final"`
	Native  bool     `yaml:"native"`
}

// Library is one loaded class-library file.
type Library struct {
	Path    string // absolute file path
	Imports []string
	classes []classSpec
	pos     []ast.Position // per class, from the YAML node
	ipos    []ast.Position // per import
}

// ---------------------------------------------------------------------------
// Resolver loads the class libraries of a unit, handling:
//   - File resolution (relative to the importing file, then search paths)
//   - Circular import detection
//   - Files imported more than once are loaded once
//   - Transitive imports
//   - Duplicate class definitions across files
// ---------------------------------------------------------------------------

type Resolver struct {
	// SearchPaths are tried, in order, for imports not found next to the
	// importing file.
	SearchPaths []string

	universe *types.Universe

	// resolved maps absolute paths to loaded libraries.
	resolved map[string]*Library

	// importStack tracks the current chain of imports for circular detection.
	importStack []string

	// definedIn maps class names to the library that defined them.
	definedIn map[string]string

	diags diag.List

	// libraries is the ordered list of loaded files (depth-first, imports
	// before importers).
	libraries []*Library
}

// NewResolver returns a resolver defining classes into u.
func NewResolver(u *types.Universe, searchPaths []string) *Resolver {
	return &Resolver{
		SearchPaths: searchPaths,
		universe:    u,
		resolved:    make(map[string]*Library),
		definedIn:   make(map[string]string),
	}
}

// Resolve loads every library the unit imports, transitively, and defines
// their classes in the universe.
func (r *Resolver) Resolve(unit *ast.Unit) diag.List {
	absSource, _ := filepath.Abs(unit.File)
	r.importStack = append(r.importStack, absSource)
	for _, imp := range unit.Imports {
		r.resolveImport(imp.Path, filepath.Dir(absSource), unit.File, imp.Pos)
	}
	r.importStack = r.importStack[:len(r.importStack)-1]
	if r.diags.HasErrors() {
		return r.diags
	}

	r.define()
	return r.diags
}

// Libraries returns the loaded files in load order.
func (r *Resolver) Libraries() []*Library {
	return r.libraries
}

// locate finds an import on disk.
func (r *Resolver) locate(path, baseDir string) (string, bool) {
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		candidates = []string{filepath.Join(baseDir, path)}
		for _, sp := range r.SearchPaths {
			candidates = append(candidates, filepath.Join(sp, path))
		}
	}
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return abs, true
		}
	}
	return "", false
}

// resolveImport loads one import and its own imports.
func (r *Resolver) resolveImport(path, baseDir, importer string, pos ast.Position) {
	absPath, ok := r.locate(path, baseDir)
	if !ok {
		r.diags.Errorf(diag.PhaseImport, importer, pos, "class library not found: %q", path)
		return
	}

	for i, stackPath := range r.importStack {
		if stackPath == absPath {
			chain := append(append([]string(nil), r.importStack[i:]...), absPath)
			for j := range chain {
				chain[j] = filepath.Base(chain[j])
			}
			r.diags.Errorf(diag.PhaseImport, importer, pos, "import cycle: %s", strings.Join(chain, " -> "))
			return
		}
	}

	if _, ok := r.resolved[absPath]; ok {
		return
	}

	lib, err := readLibrary(absPath)
	if err != nil {
		r.diags.Add(asDiagnostic(err, absPath))
		return
	}
	r.resolved[absPath] = lib

	r.importStack = append(r.importStack, absPath)
	for i, sub := range lib.Imports {
		r.resolveImport(sub, filepath.Dir(absPath), absPath, lib.ipos[i])
	}
	r.importStack = r.importStack[:len(r.importStack)-1]

	r.libraries = append(r.libraries, lib)
}

// readLibrary parses a class-library file. The file is decoded twice: once
// strictly into the typed model and once into a node tree for positions.
func readLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read class library: %w", err)
	}
	var doc libraryDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid class library: %w", err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid class library: %w", err)
	}

	lib := &Library{Path: path, Imports: doc.Imports, classes: doc.Classes}
	lib.ipos = itemPositions(&root, "imports", len(doc.Imports))
	lib.pos = itemPositions(&root, "classes", len(doc.Classes))
	return lib, nil
}

// itemPositions returns the positions of the items of a top-level sequence.
func itemPositions(root *yaml.Node, key string, n int) []ast.Position {
	out := make([]ast.Position, n)
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != key {
			continue
		}
		for j, item := range doc.Content[i+1].Content {
			if j < n {
				out[j] = ast.Position{Line: item.Line, Column: item.Column}
			}
		}
	}
	return out
}

// asDiagnostic turns a read error into a diagnostic, using the line that
// yaml.v3 reports when there is one.
func asDiagnostic(err error, path string) *diag.Diagnostic {
	pos := ast.Position{Line: 1, Column: 1}
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		var line int
		if _, scanErr := fmt.Sscanf(te.Errors[0], "line %d:", &line); scanErr == nil {
			pos.Line = line
		}
	}
	return diag.Errorf(diag.PhaseImport, path, pos, "%v", err)
}

// ---------------------------------------------------------------------------
// Defining classes
// ---------------------------------------------------------------------------

// define creates the classes of all loaded libraries in three passes, so
// that classes may refer to each other regardless of file order: shells,
// then supertypes, then members.
func (r *Resolver) define() {
	type pending struct {
		lib  *Library
		spec *classSpec
		pos  ast.Position
		cls  *types.Class
	}
	var all []pending

	for _, lib := range r.libraries {
		for i := range lib.classes {
			spec := &lib.classes[i]
			pos := lib.pos[i]
			if spec.Name == "" {
				r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "class entry without a name")
				continue
			}
			if prev, ok := r.definedIn[spec.Name]; ok {
				r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "class %s is already defined in %s", spec.Name, filepath.Base(prev))
				continue
			}
			r.definedIn[spec.Name] = lib.Path
			// A built-in class may be extended with further members.
			cls := r.universe.Lookup(spec.Name)
			if cls == nil {
				cls = &types.Class{Name: spec.Name, Interface: spec.Interface, Final: spec.Final}
				if err := r.universe.Define(cls); err != nil {
					r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "%v", err)
					continue
				}
			}
			all = append(all, pending{lib, spec, pos, cls})
		}
	}

	for _, p := range all {
		r.defineSupertypes(p.lib, p.spec, p.pos, p.cls)
	}
	for _, p := range all {
		r.defineMembers(p.lib, p.spec, p.pos, p.cls)
	}
}

func (r *Resolver) classRef(lib *Library, pos ast.Position, name string) *types.Class {
	c := r.universe.Resolve(name, "")
	if c == nil {
		r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "unknown class %s", name)
	}
	return c
}

func (r *Resolver) defineSupertypes(lib *Library, spec *classSpec, pos ast.Position, cls *types.Class) {
	if spec.Super != "" {
		super := r.classRef(lib, pos, spec.Super)
		switch {
		case super == nil:
		case cls.Super != nil && cls.Super != super:
			r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "class %s already extends %s", cls.Name, cls.Super.Name)
		case super.IsSubclassOf(cls):
			r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "class %s cannot extend its own subclass %s", cls.Name, super.Name)
		case super.Final:
			r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "class %s cannot extend final class %s", cls.Name, super.Name)
		default:
			cls.Super = super
		}
	}
	if cls.Super == nil && !cls.Interface && cls != r.universe.Object {
		cls.Super = r.universe.Object
	}
	for _, name := range spec.Interfaces {
		if i := r.classRef(lib, pos, name); i != nil {
			cls.Interfaces = append(cls.Interfaces, i)
		}
	}
}

func (r *Resolver) defineMembers(lib *Library, spec *classSpec, pos ast.Position, cls *types.Class) {
	typeOf := func(s string) *types.Type {
		t, err := r.universe.ParseType(s, "")
		if err != nil {
			r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "%s: %v", cls.Name, err)
			return nil
		}
		return t
	}

	for _, fs := range spec.Fields {
		t := typeOf(fs.Type)
		if t == nil {
			continue
		}
		if t == types.VoidType {
			r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "%s.%s: field of type void", cls.Name, fs.Name)
			continue
		}
		cls.AddField(&types.Field{Name: fs.Name, Type: t, Static: fs.Static, Final: fs.Final})
	}

	build := func(ms methodSpec, ctor bool) {
		m := &types.Method{Name: ms.Name, Static: ms.Static, Final: ms.Final, Native: ms.Native, Ctor: ctor}
		ok := true
		if !ctor {
			if ms.Name == "" {
				r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "%s: method without a name", cls.Name)
				return
			}
			m.Return = types.VoidType
			if ms.Returns != "" {
				if m.Return = typeOf(ms.Returns); m.Return == nil {
					ok = false
				}
			}
		}
		for _, p := range ms.Params {
			t := typeOf(p)
			if t == nil {
				ok = false
				continue
			}
			m.Params = append(m.Params, t)
		}
		for _, name := range ms.Throws {
			c := r.classRef(lib, pos, name)
			if c == nil {
				ok = false
				continue
			}
			if !c.IsSubclassOf(r.universe.Throwable) {
				r.diags.Errorf(diag.PhaseImport, lib.Path, pos, "%s: %s is not throwable", cls.Name, c.Name)
				ok = false
				continue
			}
			m.Throws = append(m.Throws, c)
		}
		if ok {
			cls.AddMethod(m)
		}
	}
	for _, ms := range spec.Methods {
		build(ms, false)
	}
	for _, ms := range spec.Constructors {
		build(ms, true)
	}
}
