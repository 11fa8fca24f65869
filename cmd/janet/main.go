package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"janet/internal/ast"
	"janet/internal/codegen"
	"janet/internal/config"
	"janet/internal/diag"
	"janet/internal/imports"
	"janet/internal/logger"
	"janet/internal/parser"
	"janet/internal/semantic"
	"janet/internal/types"
)

const VERSION = "0.2.0"

// defaultConfigFile is read from the working directory when -config is not
// given and the file exists.
const defaultConfigFile = "janet.yaml"

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	start := time.Now()

	fs := flag.NewFlagSet("janet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Janet native lowering engine v%s\n\n", VERSION)
		fmt.Fprintln(stderr, "Usage: janet [flags] <file.janet>...")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "YAML configuration `file` (default ./"+defaultConfigFile+" when present)")
	outDir := fs.String("o", "", "output `directory`")
	lang := fs.String("lang", "", "default native language: c or cplusplus")
	comments := fs.Bool("comments", false, "bracket lowered constructs with source excerpts")
	check := fs.Bool("check", false, "syntax check generated files with the configured C compiler")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")
	logFormat := fs.String("log-format", "", "log format: text or json")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitUsage
	}

	// Flags given on the command line override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.OutputDir = *outDir
		case "lang":
			cfg.Language = codegen.CanonicalLanguage(*lang)
		case "comments":
			cfg.SourceComments = *comments
		case "check":
			cfg.Check.Enabled = *check
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitUsage
	}

	lc := cfg.LoggerConfig()
	lc.Output = stderr
	if err := logger.Init(lc); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitUsage
	}

	d := &driver{cfg: cfg, stdout: stdout, renderer: newRenderer(stderr)}
	if cfg.Check.Enabled {
		d.checker = codegen.NewChecker(cfg.Check.Command, cfg.Check.Args)
		if !d.checker.Available() {
			fmt.Fprintf(stderr, "Error: compiler %q not found for -check\n", cfg.Check.Command)
			return exitUsage
		}
	}

	failed := 0
	written := 0
	for _, file := range fs.Args() {
		n, ok := d.compile(file)
		written += n
		if !ok {
			failed++
		}
	}

	logger.LogCompilerComplete(failed == 0, written, time.Since(start).String())
	if failed > 0 {
		fmt.Fprintf(stderr, "%d of %d file(s) failed\n", failed, fs.NArg())
		return exitFail
	}
	return exitOK
}

// loadConfig reads path, or the default file when path is empty and the
// file exists. Without either the built-in defaults are used.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return config.Default(), nil
		}
		path = defaultConfigFile
	}
	return config.Load(path)
}

func newRenderer(w io.Writer) *diag.Renderer {
	if f, ok := w.(*os.File); ok {
		return diag.NewRenderer(f)
	}
	return diag.NewPlainRenderer(w)
}

// ---------------------------------------------------------------------------
// Per-file pipeline
// ---------------------------------------------------------------------------

type driver struct {
	cfg      config.Config
	stdout   io.Writer
	renderer *diag.Renderer
	checker  *codegen.Checker
}

// compile runs one file through every phase. It returns the number of
// files written and whether the input succeeded; a failure never stops the
// remaining inputs.
func (d *driver) compile(file string) (int, bool) {
	logger.LogFileProcessing(file)

	data, err := os.ReadFile(file)
	if err != nil {
		logger.LogError("read", file, err)
		fmt.Fprintf(d.renderer.Writer(), "Error: cannot read %s: %s\n", file, err)
		return 0, false
	}
	src := string(data)

	unit, diags := parser.Parse(file, src)
	if !d.report(diags, src) {
		logger.LogError(string(diag.PhaseParse), file, diags.Err())
		return 0, false
	}
	logger.LogPhase(string(diag.PhaseParse), file, "classes", len(unit.Classes))
	logger.Debug("Parsed tree", "file", file, "ast", ast.DebugString(unit))

	u := types.NewUniverse()
	resolver := imports.NewResolver(u, d.cfg.LibraryPaths)
	if diags := resolver.Resolve(unit); !d.report(diags, src) {
		logger.LogError(string(diag.PhaseImport), file, diags.Err())
		return 0, false
	}
	logger.LogPhase(string(diag.PhaseImport), file, "libraries", len(resolver.Libraries()))

	res, diags := semantic.Analyze(unit, u)
	if !d.report(diags, src) {
		logger.LogError(string(diag.PhaseSemantic), file, diags.Err())
		return 0, false
	}
	logger.LogPhase(string(diag.PhaseSemantic), file)

	opts := codegen.DefaultOptions()
	opts.Language = d.cfg.Language
	opts.Comments = d.cfg.SourceComments
	opts.TimestampFormat = d.cfg.TimestampFormat
	files, err := codegen.Generate(res, opts)
	if err != nil {
		var list diag.List
		if errors.As(err, &list) {
			d.report(list, src)
		} else {
			fmt.Fprintf(d.renderer.Writer(), "Error: %s\n", err)
		}
		logger.LogError(string(diag.PhaseLower), file, err)
		return 0, false
	}
	logger.LogPhase(string(diag.PhaseLower), file, "files", len(files))

	paths, err := codegen.WriteFiles(d.cfg.OutputDir, files)
	for _, p := range paths {
		fmt.Fprintln(d.stdout, p)
	}
	if err != nil {
		logger.LogError("write", file, err)
		fmt.Fprintf(d.renderer.Writer(), "Error: %s\n", err)
		return len(paths), false
	}

	if d.checker != nil {
		if err := d.checker.Check(context.Background(), paths); err != nil {
			logger.LogError("check", file, err)
			fmt.Fprintf(d.renderer.Writer(), "Error: %s\n", err)
			return len(paths), false
		}
	}
	return len(paths), true
}

// report renders diags and reports whether none of them is an error.
func (d *driver) report(diags diag.List, src string) bool {
	diags.Sort()
	d.renderer.RenderAll(diags, src)
	return !diags.HasErrors()
}
