// Package errkind tags errors with a fixed taxonomy so the orchestrator can
// decide fatal-vs-warning propagation without inspecting error strings,
// the way an ErrType tag classifies a fetch failure by category rather
// than by message text.
package errkind

import "fmt"

// Kind enumerates the error categories the pipeline can raise.
type Kind int

const (
	// Configuration: missing required recipe field, unresolvable target, unknown command.
	Configuration Kind = iota
	// ExternalTool: a required external command is missing.
	ExternalTool
	// Network: HTTP failure, exhausted retries, git clone/pull failure.
	Network
	// Unpack: unknown archive format, archive corruption, patch rejection.
	Unpack
	// Build: non-zero exit of a configure/build/install step.
	Build
	// Filesystem: failure writing to the live root or the database.
	Filesystem
	// Dependency: cycles or unresolved names (soft, non-fatal).
	Dependency
	// Hook: non-zero hook exit (soft, non-fatal).
	Hook
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case ExternalTool:
		return "external-tool"
	case Network:
		return "network"
	case Unpack:
		return "unpack"
	case Build:
		return "build"
	case Filesystem:
		return "filesystem"
	case Dependency:
		return "dependency"
	case Hook:
		return "hook"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind abort the orchestrator's queue.
// Configuration, ExternalTool, Network, Unpack, Build, and Filesystem are
// fatal; Dependency and Hook are warnings that the caller logs and continues
// past.
func (k Kind) Fatal() bool {
	return k == Configuration || k == ExternalTool || k == Network ||
		k == Unpack || k == Build || k == Filesystem
}

// Error wraps an underlying error with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. Returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Of extracts the Kind from err if it (or something it wraps) is an *Error.
// Returns (Configuration, false) if no tagged kind is found in the chain.
func Of(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Configuration, false
}
