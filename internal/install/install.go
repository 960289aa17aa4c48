// Package install implements the installer: it extracts a package
// archive into a scratch root, then copies every path under "/" with
// elevated privileges, recording a manifest as it goes, and reverses that
// process by replaying the manifest backward. All live-root mutation is
// funneled through a single Executor, the privilege boundary the design
// notes call for, so the rest of the pipeline runs unprivileged.
package install

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/forgepm/forge/internal/db"
	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/log"
	"github.com/forgepm/forge/internal/unpack"
)

// Executor performs the filesystem mutations an install needs, optionally
// under SUDO or FAKEROOT. The rest of the installer never touches "/"
// directly.
type Executor interface {
	MkdirAll(path string) error
	InstallFile(src, dst string) error
	InstallSymlink(target, dst string) error
	Remove(path string) error
	Rmdir(path string) error
}

// ShellExecutor runs coreutils through an optional privilege wrapper: when
// Fakeroot is set it takes priority (for sandboxed/test environments),
// otherwise Sudo is used. An empty Sudo runs commands directly, for callers
// that are already privileged.
type ShellExecutor struct {
	Sudo     string
	Fakeroot string
}

// NewShellExecutor builds a ShellExecutor from the resolved configuration values.
func NewShellExecutor(sudo, fakeroot string) *ShellExecutor {
	return &ShellExecutor{Sudo: sudo, Fakeroot: fakeroot}
}

func (e *ShellExecutor) wrap(name string, args ...string) *exec.Cmd {
	switch {
	case e.Fakeroot != "":
		return exec.Command(e.Fakeroot, append([]string{name}, args...)...)
	case e.Sudo != "":
		return exec.Command(e.Sudo, append([]string{name}, args...)...)
	default:
		return exec.Command(name, args...)
	}
}

func (e *ShellExecutor) MkdirAll(path string) error {
	cmd := e.wrap("mkdir", "-p", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mkdir -p %s: %w: %s", path, err, out)
	}
	return nil
}

// InstallFile copies src to dst, trying 0755 then 0644 then a
// mode-preserving copy, matching the best-effort mode policy.
func (e *ShellExecutor) InstallFile(src, dst string) error {
	if err := e.MkdirAll(filepath.Dir(dst)); err != nil {
		return err
	}
	for _, mode := range []string{"0755", "0644"} {
		cmd := e.wrap("install", "-m", mode, src, dst)
		if _, err := cmd.CombinedOutput(); err == nil {
			return nil
		}
	}
	cmd := e.wrap("cp", "-p", src, dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("install %s to %s: %w: %s", src, dst, err, out)
	}
	return nil
}

func (e *ShellExecutor) InstallSymlink(target, dst string) error {
	if err := e.MkdirAll(filepath.Dir(dst)); err != nil {
		return err
	}
	cmd := e.wrap("ln", "-sfn", target, dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w: %s", dst, target, err, out)
	}
	return nil
}

func (e *ShellExecutor) Remove(path string) error {
	cmd := e.wrap("rm", "-f", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("rm -f %s: %w: %s", path, err, out)
	}
	return nil
}

func (e *ShellExecutor) Rmdir(path string) error {
	cmd := e.wrap("rmdir", path)
	// A non-empty directory failing to remove is expected and ignored:
	// shared directories may outlive one package's presence.
	_ = cmd.Run()
	return nil
}

// Installer drives the install/uninstall operations for one database.
type Installer struct {
	Executor Executor
	Unpacker *unpack.Unpacker
	DB       *db.DB
	Logger   log.Logger
}

// New returns an Installer wired to executor and database.
func New(executor Executor, database *db.DB, logger log.Logger) *Installer {
	if logger == nil {
		logger = log.Default()
	}
	return &Installer{
		Executor: executor,
		Unpacker: unpack.New(logger),
		DB:       database,
		Logger:   logger,
	}
}

// Install extracts archivePath to scratchRoot (cleared first), then copies
// every path it contains to the live root under elevated privileges,
// recording a manifest entry for each, and finally marks the package
// installed.
func (in *Installer) Install(name, version, archivePath, scratchRoot string) error {
	if err := os.RemoveAll(scratchRoot); err != nil {
		return errkind.Wrap(errkind.Filesystem, fmt.Errorf("clear scratch root: %w", err))
	}
	if err := in.Unpacker.ExtractArchive(archivePath, scratchRoot); err != nil {
		return err
	}

	writer, err := in.DB.NewManifestWriter(name, version)
	if err != nil {
		return err
	}
	defer writer.Close()

	paths, err := enumerate(scratchRoot)
	if err != nil {
		return errkind.Wrap(errkind.Filesystem, err)
	}

	for _, p := range paths {
		rel, err := filepath.Rel(scratchRoot, p.path)
		if err != nil {
			return errkind.Wrap(errkind.Filesystem, err)
		}
		liveTarget := filepath.Join("/", rel)

		switch {
		case p.info.IsDir():
			if err := in.Executor.MkdirAll(liveTarget); err != nil {
				return errkind.Wrap(errkind.Filesystem, err)
			}
		case p.info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(p.path)
			if err != nil {
				return errkind.Wrap(errkind.Filesystem, err)
			}
			if err := in.Executor.InstallSymlink(target, liveTarget); err != nil {
				return errkind.Wrap(errkind.Filesystem, err)
			}
		default:
			if err := in.Executor.InstallFile(p.path, liveTarget); err != nil {
				return errkind.Wrap(errkind.Filesystem, err)
			}
		}

		if err := writer.Append(liveTarget); err != nil {
			return err
		}
	}

	if err := in.DB.MarkInstalled(name, version, time.Now()); err != nil {
		return err
	}
	in.Logger.Info("installed package", "name", name, "version", version, "paths", len(paths))
	return nil
}

// Uninstall reverses a previous Install: it replays the manifest in reverse
// order, removing directories (ignoring non-empty failures) and files or
// symlinks (ignoring already-missing targets), then deletes the manifest
// and installed flag. If there is no manifest, Uninstall is a no-op.
func (in *Installer) Uninstall(name, version string) error {
	paths, err := in.DB.Manifest(name, version)
	if err != nil {
		return err
	}
	if paths == nil {
		in.Logger.Info("nothing to remove", "name", name, "version", version)
		return nil
	}

	for i := len(paths) - 1; i >= 0; i-- {
		p := paths[i]
		info, err := os.Lstat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			in.Logger.Warn("stat during uninstall failed", "path", p, "error", err)
			continue
		}
		if info.IsDir() {
			if err := in.Executor.Rmdir(p); err != nil {
				in.Logger.Warn("rmdir failed", "path", p, "error", err)
			}
			continue
		}
		if err := in.Executor.Remove(p); err != nil {
			in.Logger.Warn("rm failed", "path", p, "error", err)
		}
	}

	return in.DB.Remove(name, version)
}

type entry struct {
	path string
	info fs.FileInfo
}

// enumerate walks root and returns every path beneath it (not root itself),
// in a deterministic lexicographic order.
func enumerate(root string) ([]entry, error) {
	var out []entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, entry{path: path, info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}
