// Package termcolor resolves the COLOR configuration knob (auto, always,
// never) against whether stdout is actually a terminal, the way the
// teacher's internal/progress package decides whether to draw a progress
// bar.
package termcolor

import (
	"os"

	"golang.org/x/term"
)

// IsTerminalFunc is the terminal-detection function, overridable in tests.
var IsTerminalFunc = term.IsTerminal

const (
	Auto   = "auto"
	Always = "always"
	Never  = "never"
)

// Enabled resolves mode (one of Auto/Always/Never) against whether fd is a
// terminal. An unrecognized mode is treated as Auto.
func Enabled(mode string, fd uintptr) bool {
	switch mode {
	case Always:
		return true
	case Never:
		return false
	default:
		return IsTerminalFunc(int(fd))
	}
}

// Stdout resolves mode against os.Stdout.
func Stdout(mode string) bool {
	return Enabled(mode, os.Stdout.Fd())
}

const (
	reset = "\033[0m"
	red   = "\033[31m"
	green = "\033[32m"
	yellow = "\033[33m"
	bold  = "\033[1m"
)

// Paint wraps s in color if enabled is true, otherwise returns s unchanged.
func Paint(enabled bool, code, s string) string {
	if !enabled {
		return s
	}
	return code + s + reset
}

func Red(enabled bool, s string) string    { return Paint(enabled, red, s) }
func Green(enabled bool, s string) string   { return Paint(enabled, green, s) }
func Yellow(enabled bool, s string) string  { return Paint(enabled, yellow, s) }
func Bold(enabled bool, s string) string    { return Paint(enabled, bold, s) }
