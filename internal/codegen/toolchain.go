package codegen

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"janet/internal/logger"
)

// ---------------------------------------------------------------------------
// Checker: syntax check of generated files with an external C compiler
// ---------------------------------------------------------------------------

// Checker runs a C compiler over generated files without producing output.
type Checker struct {
	Command string   // e.g. "cc"
	Args    []string // e.g. ["-fsyntax-only"]
	// IncludeDirs are passed as -I, typically the runtime headers and the
	// JDK include directories.
	IncludeDirs []string
}

// NewChecker returns a checker running command with args.
func NewChecker(command string, args []string) *Checker {
	return &Checker{Command: command, Args: args}
}

// Available reports whether the compiler can be found.
func (c *Checker) Available() bool {
	_, err := exec.LookPath(c.Command)
	return err == nil
}

// Check compiles every C or C++ file in paths.
func (c *Checker) Check(ctx context.Context, paths []string) error {
	for _, path := range paths {
		switch filepath.Ext(path) {
		case ".c", ".cc":
		default:
			continue
		}
		args := append([]string{}, c.Args...)
		for _, dir := range c.IncludeDirs {
			args = append(args, "-I", dir)
		}
		args = append(args, path)
		cmd := exec.CommandContext(ctx, c.Command, args...)
		if err := c.runCmd(cmd, "check "+path); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) runCmd(cmd *exec.Cmd, stage string) error {
	logger.Debug("Running compiler", "stage", stage, "command", strings.Join(cmd.Args, " "))

	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", stage, err, stderr.String())
	}
	return nil
}
