package install

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/forgepm/forge/internal/db"
	"github.com/forgepm/forge/internal/log"
	"github.com/forgepm/forge/internal/pack"
)

// fakeExecutor performs operations under a temporary directory instead of
// the real filesystem root, so tests don't need privilege.
type fakeExecutor struct {
	root string
}

func newFakeExecutor(t *testing.T) *fakeExecutor {
	return &fakeExecutor{root: t.TempDir()}
}

func (e *fakeExecutor) live(path string) string {
	return filepath.Join(e.root, path)
}

func (e *fakeExecutor) MkdirAll(path string) error {
	return os.MkdirAll(e.live(path), 0o755)
}

func (e *fakeExecutor) InstallFile(src, dst string) error {
	target := e.live(dst)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

func (e *fakeExecutor) InstallSymlink(target, dst string) error {
	live := e.live(dst)
	if err := os.MkdirAll(filepath.Dir(live), 0o755); err != nil {
		return err
	}
	os.Remove(live)
	return os.Symlink(target, live)
}

func (e *fakeExecutor) Remove(path string) error {
	return os.Remove(e.live(path))
}

func (e *fakeExecutor) Rmdir(path string) error {
	_ = os.Remove(e.live(path))
	return nil
}

func buildFixtureArchive(t *testing.T) string {
	t.Helper()
	staging := t.TempDir()
	if err := os.MkdirAll(filepath.Join(staging, "usr", "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staging, "usr", "bin", "hello"), []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(staging, "usr", "share", "doc"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staging, "usr", "share", "doc", "README"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(t.TempDir(), "hello-1.0.tar.zst")
	if err := pack.Pack(staging, archivePath); err != nil {
		t.Fatalf("pack fixture: %v", err)
	}
	return archivePath
}

func TestInstallThenUninstallLifecycle(t *testing.T) {
	dbDir := t.TempDir()
	database, err := db.Open(dbDir)
	if err != nil {
		t.Fatal(err)
	}

	exec := newFakeExecutor(t)
	inst := New(exec, database, log.NewNoop())

	archive := buildFixtureArchive(t)
	scratch := filepath.Join(t.TempDir(), "install-root")

	if err := inst.Install("hello", "1.0", archive, scratch); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if !database.IsInstalled("hello", "1.0") {
		t.Fatal("expected hello-1.0 to be marked installed")
	}

	if _, err := os.Stat(exec.live("/usr/bin/hello")); err != nil {
		t.Errorf("expected installed binary: %v", err)
	}
	if _, err := os.Stat(exec.live("/usr/share/doc/README")); err != nil {
		t.Errorf("expected installed doc: %v", err)
	}

	manifest, err := database.Manifest("hello", "1.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest) == 0 {
		t.Fatal("expected non-empty manifest")
	}
	sorted := append([]string(nil), manifest...)
	sort.Strings(sorted)
	foundBin := false
	for _, p := range sorted {
		if p == "/usr/bin/hello" {
			foundBin = true
		}
	}
	if !foundBin {
		t.Errorf("manifest missing /usr/bin/hello: %v", manifest)
	}

	if err := inst.Uninstall("hello", "1.0"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	if database.IsInstalled("hello", "1.0") {
		t.Error("expected hello-1.0 to no longer be installed")
	}
	if _, err := os.Stat(exec.live("/usr/bin/hello")); !os.IsNotExist(err) {
		t.Errorf("expected binary removed, stat err = %v", err)
	}
}

func TestUninstallAbsentManifestIsNoop(t *testing.T) {
	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	inst := New(newFakeExecutor(t), database, log.NewNoop())

	if err := inst.Uninstall("never-installed", "1.0"); err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
}

func TestUninstallToleratesAlreadyMissingPaths(t *testing.T) {
	dbDir := t.TempDir()
	database, err := db.Open(dbDir)
	if err != nil {
		t.Fatal(err)
	}
	exec := newFakeExecutor(t)
	inst := New(exec, database, log.NewNoop())

	archive := buildFixtureArchive(t)
	scratch := filepath.Join(t.TempDir(), "install-root")
	if err := inst.Install("hello", "1.0", archive, scratch); err != nil {
		t.Fatal(err)
	}

	// Remove one installed file out-of-band before uninstalling.
	if err := os.Remove(exec.live("/usr/bin/hello")); err != nil {
		t.Fatal(err)
	}

	if err := inst.Uninstall("hello", "1.0"); err != nil {
		t.Fatalf("expected uninstall to tolerate missing path, got %v", err)
	}
	if database.IsInstalled("hello", "1.0") {
		t.Error("expected package removed from database")
	}
}
