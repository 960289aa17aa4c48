package functional

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
)

func registerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a recipe "([^"]*)" with:$`, aRecipeWith)
	sc.Step(`^a fake source archive containing a Makefile that installs "([^"]*)"$`, aFakeSourceArchive)
	sc.Step(`^network access is cut off$`, networkAccessIsCutOff)
	sc.Step(`^I run "forge ([^"]*)"$`, iRunForge)
	sc.Step(`^the exit code is (\d+)$`, theExitCodeIs)
	sc.Step(`^the output contains "([^"]*)"$`, theOutputContains)
	sc.Step(`^the file "([^"]*)" exists$`, theFileExists)
	sc.Step(`^the file "([^"]*)" does not exist$`, theFileDoesNotExist)
	sc.Step(`^"([^"]*)" is installed$`, packageIsInstalled)
	sc.Step(`^"([^"]*)" is not installed$`, packageIsNotInstalled)
	sc.Step(`^the manifest for "([^"]*)" contains "([^"]*)"$`, theManifestContains)
}

// expand substitutes the per-scenario directory placeholders and the fake
// archive server URL into a step argument.
func expand(state *testState, s string) string {
	r := strings.NewReplacer(
		"$REPO", state.repo,
		"$BUILDDIR", state.buildDir,
		"$SRCDIR", state.srcDir,
		"$PKGDIR", state.pkgDir,
		"$DBDIR", state.dbDir,
		"$LOGDIR", state.logDir,
		"$HOOKSD", state.hooksDir,
		"$SRC_URL", state.archiveServerURL,
	)
	return r.Replace(s)
}

func aRecipeWith(ctx context.Context, dir string, content *godog.DocString) error {
	state := getState(ctx)
	full := filepath.Join(state.repo, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(full, "recipe"), []byte(expand(state, content.Content)), 0o644)
}

// aFakeSourceArchive starts a one-scenario HTTP file server and records its
// URL in $SRC_URL, serving a tar.gz whose Makefile's "install" target
// writes liveFilePath under $(DESTDIR). The default "all" target is a
// no-op, since the build driver runs a bare "make" before "make
// DESTDIR=... install" and must not touch the live path before DESTDIR is set.
func aFakeSourceArchive(ctx context.Context, liveFilePath string) error {
	state := getState(ctx)
	archiveDir, err := os.MkdirTemp("", "forge-fixture-*")
	if err != nil {
		return err
	}

	archivePath := filepath.Join(archiveDir, "source.tar.gz")
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	makefile := fmt.Sprintf("all:\n\t@echo building\n\ninstall:\n\tmkdir -p $(dir $(DESTDIR)%s)\n\techo installed > $(DESTDIR)%s\n", liveFilePath, liveFilePath)
	hdr := &tar.Header{Name: "source/Makefile", Mode: 0o644, Size: int64(len(makefile))}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := tw.Write([]byte(makefile)); err != nil {
		return err
	}
	tw.Close()
	gzw.Close()
	f.Close()

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(archiveDir)))
	server := httptest.NewServer(mux)
	state.archiveServerURL = server.URL
	state.archiveServer = server
	return nil
}

// networkAccessIsCutOff shuts down the scenario's fake archive server, so a
// later fetch only succeeds if it is served from the source cache.
func networkAccessIsCutOff(ctx context.Context) error {
	state := getState(ctx)
	if state.archiveServer != nil {
		state.archiveServer.Close()
	}
	return nil
}

func iRunForge(ctx context.Context, argLine string) error {
	state := getState(ctx)
	args := strings.Fields(expand(state, argLine))

	cmd := exec.Command(state.binPath, args...)
	cmd.Env = append(os.Environ(),
		"REPO="+state.repo,
		"BUILDDIR="+state.buildDir,
		"SRCDIR="+state.srcDir,
		"PKGDIR="+state.pkgDir,
		"DBDIR="+state.dbDir,
		"LOGDIR="+state.logDir,
		"HOOKSD="+state.hooksDir,
		"SUDO=",
		"PATH="+state.fakeBin+string(os.PathListSeparator)+os.Getenv("PATH"),
	)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
			return nil
		}
		return fmt.Errorf("running forge: %w", err)
	}
	state.exitCode = 0
	return nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s", expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, expand(state, text)) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theFileExists(ctx context.Context, path string) error {
	state := getState(ctx)
	if _, err := os.Stat(expand(state, path)); err != nil {
		return fmt.Errorf("expected %s to exist: %w", path, err)
	}
	return nil
}

func theFileDoesNotExist(ctx context.Context, path string) error {
	state := getState(ctx)
	if _, err := os.Stat(expand(state, path)); !os.IsNotExist(err) {
		return fmt.Errorf("expected %s not to exist", path)
	}
	return nil
}

func packageIsInstalled(ctx context.Context, nameVersion string) error {
	state := getState(ctx)
	name, version := splitNameVersion(nameVersion)
	if _, err := os.Stat(filepath.Join(state.dbDir, name+"-"+version+".installed")); err != nil {
		return fmt.Errorf("expected %s to be installed: %w", nameVersion, err)
	}
	return nil
}

func packageIsNotInstalled(ctx context.Context, nameVersion string) error {
	state := getState(ctx)
	name, version := splitNameVersion(nameVersion)
	if _, err := os.Stat(filepath.Join(state.dbDir, name+"-"+version+".installed")); !os.IsNotExist(err) {
		return fmt.Errorf("expected %s not to be installed", nameVersion)
	}
	return nil
}

func theManifestContains(ctx context.Context, nameVersion, path string) error {
	state := getState(ctx)
	name, version := splitNameVersion(nameVersion)
	data, err := os.ReadFile(filepath.Join(state.dbDir, name+"-"+version+".manifest"))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), path) {
		return fmt.Errorf("expected manifest for %s to contain %s, got:\n%s", nameVersion, path, data)
	}
	return nil
}

func splitNameVersion(s string) (string, string) {
	name, version, _ := strings.Cut(s, "@")
	return name, version
}
