// Package build implements the build driver: it detects a recipe's
// build system as a tagged variant and drives configure/build/stage-install
// through it, logging combined output to the per-package log file. The
// variant dispatch follows the design note to represent build systems as a
// closed set rather than chained presence tests scattered through the
// driver.
package build

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/hooks"
	"github.com/forgepm/forge/internal/log"
	"github.com/forgepm/forge/internal/recipe"
	"github.com/forgepm/forge/internal/unpack"
)

// System is the tagged variant of build systems the driver can dispatch on.
type System int

const (
	None System = iota
	Meson
	CMake
	Autoconf
	Make
	RecipeProvided
)

func (s System) String() string {
	switch s {
	case Meson:
		return "meson"
	case CMake:
		return "cmake"
	case Autoconf:
		return "autoconf"
	case Make:
		return "make"
	case RecipeProvided:
		return "recipe-provided"
	default:
		return "none"
	}
}

// RecipeBuildFunc is the recipe-provided extension point: when no standard
// build system is detected but the caller supplies one (e.g. from a
// recipe-embedded build function), it is invoked directly with the
// effective source root and destdir.
type RecipeBuildFunc func(ctx context.Context, sourceRoot, destDir string) error

// Detect picks the build system for sourceRoot using the priority order
// Meson > CMake > Autoconf > Make > RecipeProvided > None. A Makefile only
// counts for the Make branch when it declares an "all" target (directly or
// via .PHONY); a Makefile with no "all" target falls through to
// RecipeProvided/None instead of being driven as if it had one.
func Detect(sourceRoot string, r *recipe.Recipe, hasRecipeBuildFunc bool) System {
	if exists(filepath.Join(sourceRoot, "meson.build")) || r.MesonOpts != "" {
		return Meson
	}
	if exists(filepath.Join(sourceRoot, "CMakeLists.txt")) || r.CMakeOpts != "" {
		return CMake
	}
	if exists(filepath.Join(sourceRoot, "configure")) {
		return Autoconf
	}
	if makefile := filepath.Join(sourceRoot, "Makefile"); exists(makefile) && makefileHasAllTarget(makefile) {
		return Make
	}
	if hasRecipeBuildFunc {
		return RecipeProvided
	}
	return None
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var (
	makeAllTargetRe = regexp.MustCompile(`^all\s*:`)
	makePhonyAllRe  = regexp.MustCompile(`^\.PHONY\s*:.*\ball\b`)
)

// makefileHasAllTarget reports whether path declares an "all" target, either
// as a direct rule or via a .PHONY declaration naming it. Unlike make's own
// default goal, the first target, when none is named "all", does not
// satisfy this check.
func makefileHasAllTarget(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if makeAllTargetRe.MatchString(trimmed) || makePhonyAllRe.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// Driver drives the build for one recipe.
type Driver struct {
	Unpacker   *unpack.Unpacker
	HookRunner *hooks.Runner
	Logger     log.Logger
}

// New returns a Driver wired to the given hooks directory.
func New(hooksDir string, logger log.Logger) *Driver {
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{
		Unpacker:   unpack.New(logger),
		HookRunner: hooks.New(hooksDir, logger),
		Logger:     logger,
	}
}

// Result is what Build returns on success.
type Result struct {
	SourceRoot string
	System     System
	LogPath    string
}

// Build runs the full build pipeline for r: pre-build hook, unpack and
// patch, erase and recreate destdir, detect and drive the build system,
// post-build hook. workspace and archivePaths come from the caller's source
// cache resolution; logPath is where combined command output is appended.
// gitCloneDir, when non-empty, is a fetched git working tree whose contents
// are copied into the workspace after archive extraction — the source
// fetcher hands git clones to the caller rather than the unpacker, since
// they are not one of the archive formats the unpacker extracts.
func Build(ctx context.Context, d *Driver, r *recipe.Recipe, workspace string, archivePaths []string, gitCloneDir string, logPath string, recipeBuildFunc RecipeBuildFunc) (*Result, error) {
	vars := r.Vars

	if err := d.HookRunner.Run(hooks.PhasePreBuild, r.Name, r.Version, r.Dir, vars); err != nil {
		d.Logger.Warn("pre-build hook reported failure", "error", err)
	}

	sourceRoot, err := d.Unpacker.PrepareWorkspace(workspace, archivePaths)
	if err != nil {
		return nil, err
	}

	if gitCloneDir != "" {
		if err := CopyGitTree(gitCloneDir, sourceRoot); err != nil {
			return nil, errkind.Wrap(errkind.Unpack, fmt.Errorf("copy git source %s into workspace: %w", gitCloneDir, err))
		}
	}

	if patches, perr := r.PatchFiles(); perr != nil {
		return nil, errkind.Wrap(errkind.Unpack, perr)
	} else if len(patches) > 0 {
		if err := d.Unpacker.ApplyPatches(sourceRoot, patches, r.PatchStrip); err != nil {
			return nil, err
		}
	}

	if r.BuildSubdir != "" {
		sourceRoot = filepath.Join(sourceRoot, r.BuildSubdir)
	}

	if err := os.RemoveAll(r.DestDir); err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, fmt.Errorf("erase destdir %s: %w", r.DestDir, err))
	}
	if err := os.MkdirAll(r.DestDir, 0o755); err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, fmt.Errorf("recreate destdir %s: %w", r.DestDir, err))
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, fmt.Errorf("open build log %s: %w", logPath, err))
	}
	defer logFile.Close()

	system := Detect(sourceRoot, r, recipeBuildFunc != nil)
	d.Logger.Info("detected build system", "name", r.Name, "version", r.Version, "system", system)

	var buildErr error
	switch system {
	case Meson:
		buildErr = runMeson(ctx, sourceRoot, r, logFile)
	case CMake:
		buildErr = runCMake(ctx, sourceRoot, r, logFile)
	case Autoconf:
		buildErr = runAutoconf(ctx, sourceRoot, r, logFile)
	case Make:
		buildErr = runMake(ctx, sourceRoot, r, logFile)
	case RecipeProvided:
		buildErr = recipeBuildFunc(ctx, sourceRoot, r.DestDir)
	default:
		buildErr = fmt.Errorf("no build system detected under %s", sourceRoot)
	}
	if buildErr != nil {
		return nil, errkind.Wrap(errkind.Build, buildErr)
	}

	if err := d.HookRunner.Run(hooks.PhasePostBuild, r.Name, r.Version, r.Dir, vars); err != nil {
		d.Logger.Warn("post-build hook reported failure", "error", err)
	}

	return &Result{SourceRoot: sourceRoot, System: system, LogPath: logPath}, nil
}

// CopyGitTree copies every entry under src into dst (which must already
// exist), skipping the top-level ".git" directory, preserving symlinks and
// regular file permissions.
func CopyGitTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(linkTarget, target)
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode())
		default:
			info, err := d.Info()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return os.WriteFile(target, data, info.Mode())
		}
	})
}

func run(ctx context.Context, dir string, logFile *os.File, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", name, args, err)
	}
	return nil
}

func makeOptsArgs(opts string) []string {
	if opts == "" {
		return nil
	}
	return splitFields(opts)
}

func splitFields(s string) []string {
	var out []string
	field := ""
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if field != "" {
				out = append(out, field)
				field = ""
			}
			continue
		}
		field += string(r)
	}
	if field != "" {
		out = append(out, field)
	}
	return out
}

func runMeson(ctx context.Context, sourceRoot string, r *recipe.Recipe, logFile *os.File) error {
	args := append([]string{"setup", "build"}, makeOptsArgs(r.MesonOpts)...)
	if err := run(ctx, sourceRoot, logFile, "meson", args...); err != nil {
		return err
	}
	buildArgs := append([]string{"-C", "build"}, makeOptsArgs(r.MakeOpts)...)
	if err := run(ctx, sourceRoot, logFile, "ninja", buildArgs...); err != nil {
		return err
	}
	installCmd := exec.CommandContext(ctx, "ninja", "-C", "build", "install")
	installCmd.Dir = sourceRoot
	installCmd.Env = append(os.Environ(), "DESTDIR="+r.DestDir)
	installCmd.Stdout = logFile
	installCmd.Stderr = logFile
	if err := installCmd.Run(); err != nil {
		return fmt.Errorf("ninja install: %w", err)
	}
	return nil
}

func runCMake(ctx context.Context, sourceRoot string, r *recipe.Recipe, logFile *os.File) error {
	buildDir := filepath.Join(sourceRoot, "build")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return fmt.Errorf("create cmake build dir: %w", err)
	}
	args := append([]string{".."}, makeOptsArgs(r.CMakeOpts)...)
	if err := run(ctx, buildDir, logFile, "cmake", args...); err != nil {
		return err
	}
	if err := run(ctx, buildDir, logFile, "make", makeOptsArgs(r.MakeOpts)...); err != nil {
		return err
	}
	installCmd := exec.CommandContext(ctx, "make", "DESTDIR="+r.DestDir, "install")
	installCmd.Dir = buildDir
	installCmd.Stdout = logFile
	installCmd.Stderr = logFile
	if err := installCmd.Run(); err != nil {
		return fmt.Errorf("make install: %w", err)
	}
	return nil
}

func runAutoconf(ctx context.Context, sourceRoot string, r *recipe.Recipe, logFile *os.File) error {
	configureArgs := makeOptsArgs(r.ConfigureOpts)
	if err := run(ctx, sourceRoot, logFile, "./configure", configureArgs...); err != nil {
		return err
	}
	if err := run(ctx, sourceRoot, logFile, "make", makeOptsArgs(r.MakeOpts)...); err != nil {
		return err
	}
	installCmd := exec.CommandContext(ctx, "make", "DESTDIR="+r.DestDir, "install")
	installCmd.Dir = sourceRoot
	installCmd.Stdout = logFile
	installCmd.Stderr = logFile
	if err := installCmd.Run(); err != nil {
		return fmt.Errorf("make install: %w", err)
	}
	return nil
}

func runMake(ctx context.Context, sourceRoot string, r *recipe.Recipe, logFile *os.File) error {
	if err := run(ctx, sourceRoot, logFile, "make", makeOptsArgs(r.MakeOpts)...); err != nil {
		return err
	}
	installCmd := exec.CommandContext(ctx, "make", "DESTDIR="+r.DestDir, "install")
	installCmd.Dir = sourceRoot
	installCmd.Stdout = logFile
	installCmd.Stderr = logFile
	if err := installCmd.Run(); err != nil {
		return fmt.Errorf("make install: %w", err)
	}
	return nil
}
