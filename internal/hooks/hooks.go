// Package hooks implements the hook runner: it reads phase scripts
// from the hooks directory in lexicographic order and invokes each with the
// package's identity as arguments and recipe variables in its environment. Hook failures
// are warnings, never fatal, matching the soft-error policy for the
// Hook error kind.
package hooks

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/log"
)

// Recognized hook phases.
const (
	PhasePreBuild  = "pre-build"
	PhasePostBuild = "post-build"
)

// Runner invokes phase scripts found under Dir.
type Runner struct {
	Dir    string
	Logger log.Logger
}

// New returns a Runner rooted at dir.
func New(dir string, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Dir: dir, Logger: logger}
}

// Run invokes every "<phase>-*.sh" entry under Dir, in lexicographic order,
// passing packageName, packageVersion, and recipeDir as positional
// arguments and vars as additional environment variables. Each failure is
// logged as a warning and wrapped with errkind.Hook, but does not stop the
// remaining hooks from running.
func (r *Runner) Run(phase, packageName, packageVersion, recipeDir string, vars map[string]string) error {
	pattern := filepath.Join(r.Dir, phase+"-*.sh")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return errkind.Wrap(errkind.Hook, fmt.Errorf("glob hooks %s: %w", pattern, err))
	}
	sort.Strings(matches)

	var firstErr error
	for _, script := range matches {
		r.Logger.Debug("running hook", "phase", phase, "script", script, "package", packageName)
		cmd := exec.Command(script, packageName, packageVersion, recipeDir)
		cmd.Env = append(os.Environ(), envPairs(vars)...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			wrapped := errkind.Wrap(errkind.Hook, fmt.Errorf("hook %s: %w", script, err))
			r.Logger.Warn("hook failed", "script", script, "error", err)
			if firstErr == nil {
				firstErr = wrapped
			}
		}
	}
	return firstErr
}

func envPairs(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	return out
}
