// Package unpack implements the unpacker/patcher: it clears and
// recreates the build workspace, extracts each cached source archive by
// format (detected from the filename suffix), and applies ordered patches.
// Archive walking uses an always-extract-to-root, no strip_dirs shape,
// with path-escape and symlink-target guards against a hostile archive.
package unpack

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"

	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/log"
)

// Unpacker extracts archives and applies patches into a build workspace.
type Unpacker struct {
	Logger log.Logger
}

// New returns an Unpacker that logs through the given logger.
func New(logger log.Logger) *Unpacker {
	if logger == nil {
		logger = log.Default()
	}
	return &Unpacker{Logger: logger}
}

// PrepareWorkspace clears and recreates workspace, then extracts every
// cached archive into it. archivePaths is the set of cached source files to
// unpack (git clones are handled by the caller, not here). It returns the
// effective source root: the workspace itself, or its sole top-level
// directory when extraction produced exactly one.
func (u *Unpacker) PrepareWorkspace(workspace string, archivePaths []string) (string, error) {
	if err := os.RemoveAll(workspace); err != nil {
		return "", errkind.Wrap(errkind.Filesystem, fmt.Errorf("clear workspace %s: %w", workspace, err))
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", errkind.Wrap(errkind.Filesystem, fmt.Errorf("create workspace %s: %w", workspace, err))
	}

	for _, archive := range archivePaths {
		if err := u.extract(archive, workspace); err != nil {
			return "", err
		}
	}

	return effectiveRoot(workspace)
}

// ExtractArchive extracts one archive (any supported suffix) into dest,
// without touching anything else in dest. Used by the installer to unpack
// its own tar.zst package format into a scratch root.
func (u *Unpacker) ExtractArchive(archivePath, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errkind.Wrap(errkind.Filesystem, fmt.Errorf("create %s: %w", dest, err))
	}
	return u.extract(archivePath, dest)
}

// ApplyPatches applies each patch file, in the given order, at strip level
// against root using the system "patch" tool.
func (u *Unpacker) ApplyPatches(root string, patches []string, stripLevel int) error {
	for _, p := range patches {
		u.Logger.Info("applying patch", "patch", p, "root", root)
		cmd := exec.Command("patch", fmt.Sprintf("-p%d", stripLevel), "-i", p)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		if err != nil {
			return errkind.Wrap(errkind.Unpack, fmt.Errorf("apply patch %s: %w\n%s", p, err, out))
		}
	}
	return nil
}

// effectiveRoot returns workspace's sole top-level directory if there is
// exactly one entry and it is a directory; otherwise workspace itself.
func effectiveRoot(workspace string) (string, error) {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return "", errkind.Wrap(errkind.Filesystem, fmt.Errorf("read workspace %s: %w", workspace, err))
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(workspace, entries[0].Name()), nil
	}
	return workspace, nil
}

func (u *Unpacker) extract(archivePath, dest string) error {
	name := strings.ToLower(filepath.Base(archivePath))

	switch {
	case hasAnySuffix(name, ".tar.gz", ".tgz"):
		return u.extractTarGz(archivePath, dest)
	case hasAnySuffix(name, ".tar.bz2", ".tbz2"):
		return u.extractTarBz2(archivePath, dest)
	case hasAnySuffix(name, ".tar.xz", ".txz"):
		return u.extractTarXz(archivePath, dest)
	case hasAnySuffix(name, ".tar.zst", ".tzst"):
		return u.extractTarZst(archivePath, dest)
	case hasAnySuffix(name, ".tar.lz", ".tlz"):
		return u.extractTarLz(archivePath, dest)
	case hasAnySuffix(name, ".tar"):
		return u.extractPlainTar(archivePath, dest)
	case hasAnySuffix(name, ".zip"):
		return u.extractZip(archivePath, dest)
	case hasAnySuffix(name, ".gz"):
		return u.extractSingleFile(archivePath, dest, gzipDecompressor)
	case hasAnySuffix(name, ".bz2"):
		return u.extractSingleFile(archivePath, dest, bzip2Decompressor)
	case hasAnySuffix(name, ".xz"):
		return u.extractSingleFile(archivePath, dest, xzDecompressor)
	case hasAnySuffix(name, ".zst"):
		return u.extractSingleFile(archivePath, dest, zstdDecompressor)
	default:
		return errkind.Wrap(errkind.Unpack, fmt.Errorf("unknown archive format: %s", archivePath))
	}
}

func hasAnySuffix(name string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func (u *Unpacker) extractTarGz(archivePath, dest string) error {
	return withFile(archivePath, func(f *os.File) error {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gzr.Close()
		return extractTarReader(tar.NewReader(gzr), dest)
	})
}

func (u *Unpacker) extractTarBz2(archivePath, dest string) error {
	return withFile(archivePath, func(f *os.File) error {
		return extractTarReader(tar.NewReader(bzip2.NewReader(f)), dest)
	})
}

func (u *Unpacker) extractTarXz(archivePath, dest string) error {
	return withFile(archivePath, func(f *os.File) error {
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("xz reader: %w", err)
		}
		return extractTarReader(tar.NewReader(xzr), dest)
	})
}

func (u *Unpacker) extractTarZst(archivePath, dest string) error {
	return withFile(archivePath, func(f *os.File) error {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		return extractTarReader(tar.NewReader(zr), dest)
	})
}

func (u *Unpacker) extractTarLz(archivePath, dest string) error {
	return withFile(archivePath, func(f *os.File) error {
		lr, err := lzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("lzip reader: %w", err)
		}
		return extractTarReader(tar.NewReader(lr), dest)
	})
}

func (u *Unpacker) extractPlainTar(archivePath, dest string) error {
	return withFile(archivePath, func(f *os.File) error {
		return extractTarReader(tar.NewReader(f), dest)
	})
}

func withFile(path string, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errkind.Wrap(errkind.Unpack, fmt.Errorf("open archive %s: %w", path, err))
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return errkind.Wrap(errkind.Unpack, fmt.Errorf("extract %s: %w", path, err))
	}
	return nil
}

func extractTarReader(tr *tar.Reader, destPath string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		cleanPath := strings.TrimPrefix(header.Name, "./")
		if cleanPath == "" || cleanPath == "." {
			continue
		}
		target := filepath.Join(destPath, cleanPath)
		if !isPathWithinDirectory(target, destPath) {
			return fmt.Errorf("archive entry escapes destination directory: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent of %s: %w", target, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("create file %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("write file %s: %w", target, err)
			}
			f.Close()
		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, destPath); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent of %s: %w", target, err)
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}
		}
	}
	return nil
}

func (u *Unpacker) extractZip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errkind.Wrap(errkind.Unpack, fmt.Errorf("open zip %s: %w", archivePath, err))
	}
	defer r.Close()

	for _, f := range r.File {
		cleanPath := strings.TrimPrefix(f.Name, "./")
		if cleanPath == "" {
			continue
		}
		target := filepath.Join(dest, cleanPath)
		if !isPathWithinDirectory(target, dest) {
			return errkind.Wrap(errkind.Unpack, fmt.Errorf("zip entry escapes destination directory: %s", f.Name))
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errkind.Wrap(errkind.Unpack, fmt.Errorf("create directory %s: %w", target, err))
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errkind.Wrap(errkind.Unpack, fmt.Errorf("create parent of %s: %w", target, err))
		}

		rc, err := f.Open()
		if err != nil {
			return errkind.Wrap(errkind.Unpack, fmt.Errorf("open zip entry %s: %w", f.Name, err))
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return errkind.Wrap(errkind.Unpack, fmt.Errorf("create file %s: %w", target, err))
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return errkind.Wrap(errkind.Unpack, fmt.Errorf("write file %s: %w", target, err))
		}
		out.Close()
		rc.Close()
	}
	return nil
}

type decompressor func(io.Reader) (io.ReadCloser, error)

func gzipDecompressor(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }

func bzip2Decompressor(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(r)), nil
}

func xzDecompressor(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

func zstdDecompressor(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}

// extractSingleFile decompresses a single-file archive into dest, stripping
// the compression suffix from the filename.
func (u *Unpacker) extractSingleFile(archivePath, dest string, dec decompressor) error {
	return withFile(archivePath, func(f *os.File) error {
		rc, err := dec(f)
		if err != nil {
			return fmt.Errorf("decompressor: %w", err)
		}
		defer rc.Close()

		base := filepath.Base(archivePath)
		base = base[:strings.LastIndex(base, ".")]
		target := filepath.Join(dest, base)

		out, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}
		defer out.Close()
		if _, err := io.Copy(out, rc); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		return nil
	})
}

func isPathWithinDirectory(target, base string) bool {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

func validateSymlinkTarget(linkTarget, linkLocation, destPath string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("absolute symlink targets are not allowed: %s -> %s", linkLocation, linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if !isPathWithinDirectory(resolved, destPath) {
		return fmt.Errorf("symlink target escapes destination directory: %s -> %s", linkLocation, linkTarget)
	}
	return nil
}
