// Package diag provides the diagnostic sink the Run Helper owns: an
// injected, prefixable interface in place of a package-level logger, so
// sub-helpers can namespace their output without a global.
package diag

import (
	"fmt"
	"log"
	"os"
)

// Console is the diagnostic sink passed down into workflow runs. It is
// deliberately narrow: Info/Warn for progress, Prompt for the
// PROMPT_TO_CONTINUE confirmation gate workflow modes use.
type Console interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	// Prompt asks the operator to confirm continuing and reports their
	// answer. Implementations backing an unattended run should return
	// false (decline) rather than block forever.
	Prompt(format string, args ...any) bool
	// WithPrefix returns a Console that prefixes every message, used by
	// ITERATIVE to namespace output per change ("[change 3/5] ...").
	WithPrefix(prefix string) Console
}

// stdConsole is the default Console, backed by the standard library
// logger.
type stdConsole struct {
	logger *log.Logger
	prefix string
}

// NewConsole builds a Console writing to the given *log.Logger. Pass
// log.Default() for the usual stderr-with-timestamp format.
func NewConsole(logger *log.Logger) Console {
	return &stdConsole{logger: logger}
}

// NewStderrConsole is a convenience wrapper building a Console over a
// fresh standard logger writing to os.Stderr, as cmd/migrate does for
// the CLI entry point.
func NewStderrConsole() Console {
	return NewConsole(log.New(os.Stderr, "", log.LstdFlags))
}

func (c *stdConsole) Info(format string, args ...any) {
	c.logger.Printf(c.prefix+format, args...)
}

func (c *stdConsole) Warn(format string, args ...any) {
	c.logger.Printf(c.prefix+"warning: "+format, args...)
}

func (c *stdConsole) Prompt(format string, args ...any) bool {
	msg := fmt.Sprintf(c.prefix+format, args...)
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", msg)
	var answer string
	_, _ = fmt.Scanln(&answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}

func (c *stdConsole) WithPrefix(prefix string) Console {
	return &stdConsole{logger: c.logger, prefix: c.prefix + prefix}
}

// NoPromptConsole wraps an existing Console so Prompt always declines
// without touching stdin, for non-interactive runs (tests, CI).
func NoPromptConsole(inner Console) Console {
	return &nonInteractive{Console: inner}
}

type nonInteractive struct {
	Console
}

func (n *nonInteractive) Prompt(format string, args ...any) bool {
	n.Console.Warn("prompt suppressed (non-interactive): "+format, args...)
	return false
}

func (n *nonInteractive) WithPrefix(prefix string) Console {
	return &nonInteractive{Console: n.Console.WithPrefix(prefix)}
}
