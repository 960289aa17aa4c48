// Package revdep implements a bounded reverse-dependency scan: it samples
// executables and shared libraries under a fixed set of system directories
// and reports which ones have broken dynamic-linker resolution, via the
// external `ldd` tool. The scan is unconditional and bounded at up to 5000
// files, a deliberate resource bound rather than a placeholder for a
// full-tree scan.
package revdep

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/log"
)

// DefaultMaxFiles bounds how many candidate files a scan inspects.
const DefaultMaxFiles = 5000

// DefaultDirs are the standard system directories sampled by a scan.
var DefaultDirs = []string{"/usr/bin", "/usr/lib", "/usr/lib64", "/bin", "/lib", "/lib64"}

// Broken describes one file whose dynamic-linker resolution is missing a library.
type Broken struct {
	Path    string
	Missing []string
}

// Scan samples up to maxFiles regular files under dirs and runs `ldd` on
// each, reporting those with at least one "not found" dependency. Files
// `ldd` refuses to process (not a dynamic executable, permission denied)
// are skipped silently; that is the expected outcome for the majority of
// files in a typical system directory.
func Scan(dirs []string, maxFiles int, logger log.Logger) ([]Broken, error) {
	if logger == nil {
		logger = log.Default()
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	var candidates []string
	for _, dir := range dirs {
		if len(candidates) >= maxFiles {
			break
		}
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil // missing or unreadable system dir: skip, not fatal
			}
			if len(candidates) >= maxFiles {
				return filepath.SkipAll
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil || info.Mode()&0o111 == 0 {
				return nil
			}
			candidates = append(candidates, path)
			return nil
		})
		if err != nil {
			return nil, errkind.Wrap(errkind.Filesystem, err)
		}
	}

	logger.Info("revdep scanning candidates", "count", len(candidates))

	var broken []Broken
	for _, path := range candidates {
		missing := lddMissing(path)
		if len(missing) > 0 {
			broken = append(broken, Broken{Path: path, Missing: missing})
		}
	}
	return broken, nil
}

// lddMissing runs `ldd path` and returns the names of any libraries it
// reports as "not found". A non-zero exit (not a dynamic executable, etc.)
// is treated as no findings, not an error.
func lddMissing(path string) []string {
	out, err := exec.Command("ldd", path).CombinedOutput()
	if err != nil {
		return nil
	}
	var missing []string
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "not found") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			missing = append(missing, fields[0])
		}
	}
	return missing
}
