// Package pack implements the packager: it walks a staging tree and
// writes a zstd-compressed tar archive with numeric-owner headers, rooted at
// ".", suitable for later installation to a live root by package install.
package pack

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/forgepm/forge/internal/errkind"
)

// Pack writes stagingDir's contents (rooted at ".") to outputPath as a
// zstd-compressed tar, using high compression and numeric owner metadata.
func Pack(stagingDir, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errkind.Wrap(errkind.Filesystem, fmt.Errorf("create package dir: %w", err))
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return errkind.Wrap(errkind.Filesystem, fmt.Errorf("create %s: %w", outputPath, err))
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return errkind.Wrap(errkind.Filesystem, fmt.Errorf("zstd writer: %w", err))
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	err = filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = "./" + filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		// Numeric-owner: never resolve local user/group names.
		hdr.Uname = ""
		hdr.Gname = ""
		hdr.Uid = 0
		hdr.Gid = 0

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errkind.Wrap(errkind.Filesystem, fmt.Errorf("pack %s: %w", stagingDir, err))
	}

	return nil
}
