// Package db implements the package database: a flat directory of
// manifest and installed-flag files keyed by "<name>-<version>". There is no
// locking across processes; the core assumes one invocation at a time, the
// same assumption a flat on-disk store makes.
package db

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/vercompare"
)

const (
	manifestSuffix  = ".manifest"
	installedSuffix = ".installed"
)

// DB is a handle to the flat-file package database rooted at Dir.
type DB struct {
	Dir string
}

// Open returns a handle to the database at dir, creating dir if absent.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, fmt.Errorf("create db dir %s: %w", dir, err))
	}
	return &DB{Dir: dir}, nil
}

func id(name, version string) string {
	return fmt.Sprintf("%s-%s", name, version)
}

func (d *DB) manifestPath(name, version string) string {
	return filepath.Join(d.Dir, id(name, version)+manifestSuffix)
}

func (d *DB) installedFlagPath(name, version string) string {
	return filepath.Join(d.Dir, id(name, version)+installedSuffix)
}

// IsInstalled reports whether the installed flag for (name, version) exists.
func (d *DB) IsInstalled(name, version string) bool {
	_, err := os.Stat(d.installedFlagPath(name, version))
	return err == nil
}

// Manifest returns the ordered list of paths recorded for (name, version).
func (d *DB) Manifest(name, version string) ([]string, error) {
	f, err := os.Open(d.manifestPath(name, version))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, fmt.Errorf("open manifest for %s: %w", id(name, version), err))
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, err)
	}
	return paths, nil
}

// ManifestWriter appends paths to the manifest for (name, version) one at a
// time, as the installer writes each path to the live root, so a partial
// install still leaves an accurate manifest.
type ManifestWriter struct {
	f *os.File
}

// NewManifestWriter truncates and opens the manifest file for appending.
func (d *DB) NewManifestWriter(name, version string) (*ManifestWriter, error) {
	f, err := os.OpenFile(d.manifestPath(name, version), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, fmt.Errorf("create manifest for %s: %w", id(name, version), err))
	}
	return &ManifestWriter{f: f}, nil
}

// Append records path as having been installed.
func (w *ManifestWriter) Append(path string) error {
	if _, err := fmt.Fprintln(w.f, path); err != nil {
		return errkind.Wrap(errkind.Filesystem, err)
	}
	return w.f.Sync()
}

// Close closes the underlying file.
func (w *ManifestWriter) Close() error {
	return w.f.Close()
}

// MarkInstalled writes the installed-flag file with the current timestamp,
// completing the install only once every path has been written.
func (d *DB) MarkInstalled(name, version string, at time.Time) error {
	content := at.UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(d.installedFlagPath(name, version), []byte(content), 0o644); err != nil {
		return errkind.Wrap(errkind.Filesystem, fmt.Errorf("write installed flag for %s: %w", id(name, version), err))
	}
	return nil
}

// Remove deletes the manifest and installed flag for (name, version).
func (d *DB) Remove(name, version string) error {
	if err := os.Remove(d.manifestPath(name, version)); err != nil && !os.IsNotExist(err) {
		return errkind.Wrap(errkind.Filesystem, err)
	}
	if err := os.Remove(d.installedFlagPath(name, version)); err != nil && !os.IsNotExist(err) {
		return errkind.Wrap(errkind.Filesystem, err)
	}
	return nil
}

// Installed is one (name, version) pair found in the database.
type Installed struct {
	Name    string
	Version string
}

// ListInstalled returns every (name, version) with an installed flag,
// sorted by name then by natural version order.
func (d *DB) ListInstalled() ([]Installed, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, fmt.Errorf("read db dir %s: %w", d.Dir, err))
	}

	var out []Installed
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), installedSuffix) {
			continue
		}
		base := strings.TrimSuffix(e.Name(), installedSuffix)
		name, version, ok := splitID(base)
		if !ok {
			continue
		}
		out = append(out, Installed{Name: name, Version: version})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return vercompare.Compare(out[i].Version, out[j].Version) < 0
	})
	return out, nil
}

// InstalledVersions returns every version of name with an installed flag,
// sorted by natural version order ascending.
func (d *DB) InstalledVersions(name string) ([]string, error) {
	all, err := d.ListInstalled()
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, p := range all {
		if p.Name == name {
			versions = append(versions, p.Version)
		}
	}
	return versions, nil
}

// splitID splits "<name>-<version>" back into name and version at the last
// hyphen. A version containing a hyphen (e.g. "1.0-rc1") is not
// representable in this split; such recipes must avoid hyphenated versions.
func splitID(base string) (name, version string, ok bool) {
	idx := strings.LastIndex(base, "-")
	if idx < 0 || idx == len(base)-1 {
		return "", "", false
	}
	return base[:idx], base[idx+1:], true
}
