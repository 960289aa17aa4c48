// Package functional drives the compiled forge binary as a subprocess and
// asserts on its exit code, stdout, and the on-disk state it produces,
// covering the concrete end-to-end scenarios. Live-root scenarios (install,
// remove) mutate "/" through the configured SUDO or FAKEROOT wrapper; run
// this suite as root or under fakeroot, the way a from-scratch build host
// would.
package functional

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

type testState struct {
	binPath string

	repo     string
	buildDir string
	srcDir   string
	pkgDir   string
	dbDir    string
	logDir   string
	hooksDir string
	fakeBin  string

	archiveServerURL string
	archiveServer    *httptest.Server

	stdout   string
	stderr   string
	exitCode int
}

func getState(ctx context.Context) *testState {
	s, _ := ctx.Value(stateKey).(*testState)
	return s
}

func setState(ctx context.Context, s *testState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	binPath := os.Getenv("FORGE_TEST_BINARY")
	if binPath == "" {
		t.Skip("FORGE_TEST_BINARY not set; build cmd/forge and set it to run this suite")
	}
	absBin, err := filepath.Abs(binPath)
	if err != nil {
		t.Fatalf("resolving binary path: %v", err)
	}

	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}
	if tags := os.Getenv("FORGE_TEST_TAGS"); tags != "" {
		opts.Tags = tags
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) { initializeScenario(sc, absBin) },
		Options:             opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(sc *godog.ScenarioContext, binPath string) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		root := mustTempDir()
		state := &testState{
			binPath:  binPath,
			repo:     filepath.Join(root, "repo"),
			buildDir: filepath.Join(root, "build"),
			srcDir:   filepath.Join(root, "sources"),
			pkgDir:   filepath.Join(root, "packages"),
			dbDir:    filepath.Join(root, "db"),
			logDir:   filepath.Join(root, "logs"),
			hooksDir: filepath.Join(root, "hooks"),
			fakeBin:  filepath.Join(root, "fakebin"),
		}
		for _, dir := range []string{state.repo, state.buildDir, state.srcDir, state.pkgDir, state.dbDir, state.logDir, state.hooksDir, state.fakeBin} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return ctx, err
			}
		}
		return setState(ctx, state), nil
	})

	registerSteps(sc)
}

func mustTempDir() string {
	dir, err := os.MkdirTemp("", "forge-functional-*")
	if err != nil {
		panic(err)
	}
	return dir
}
