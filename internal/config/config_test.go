package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvRepo, EnvBuildDir, EnvSrcDir, EnvPkgDir, EnvDBDir, EnvLogDir,
		EnvHooksDir, EnvJobs, EnvSudo, EnvFakeroot, EnvFetchRetries,
		EnvColor, EnvForce, EnvConfigFile,
	} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Jobs < 1 {
		t.Errorf("Jobs = %d, want >= 1", cfg.Jobs)
	}
	if cfg.FetchRetries != DefaultFetchRetries {
		t.Errorf("FetchRetries = %d, want %d", cfg.FetchRetries, DefaultFetchRetries)
	}
	if cfg.Color != ColorAuto {
		t.Errorf("Color = %q, want %q", cfg.Color, ColorAuto)
	}
	if cfg.Sudo != "sudo" {
		t.Errorf("Sudo = %q, want %q", cfg.Sudo, "sudo")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	os.Setenv(EnvRepo, "/custom/repo")
	os.Setenv(EnvJobs, "8")
	os.Setenv(EnvColor, "ALWAYS")
	os.Setenv(EnvForce, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Repo != "/custom/repo" {
		t.Errorf("Repo = %q", cfg.Repo)
	}
	if cfg.Jobs != 8 {
		t.Errorf("Jobs = %d, want 8", cfg.Jobs)
	}
	if cfg.Color != ColorAlways {
		t.Errorf("Color = %q, want %q", cfg.Color, ColorAlways)
	}
	if !cfg.Force {
		t.Errorf("Force = false, want true")
	}
}

func TestLoadInvalidEnvFallsBackWithWarning(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	os.Setenv(EnvJobs, "not-a-number")
	os.Setenv(EnvColor, "rainbow")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Jobs < 1 {
		t.Errorf("Jobs = %d, want default retained", cfg.Jobs)
	}
	if cfg.Color != ColorAuto {
		t.Errorf("Color = %q, want default %q retained", cfg.Color, ColorAuto)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	toml := "repo = \"/file/repo\"\njobs = 4\ncolor = \"never\"\n"
	if err := os.WriteFile(filepath.Join(dir, "forge.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Repo != "/file/repo" {
		t.Errorf("Repo = %q, want /file/repo", cfg.Repo)
	}
	if cfg.Jobs != 4 {
		t.Errorf("Jobs = %d, want 4", cfg.Jobs)
	}
	if cfg.Color != "never" {
		t.Errorf("Color = %q, want never", cfg.Color)
	}

	// Env takes precedence over the file.
	os.Setenv(EnvJobs, "16")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Jobs != 16 {
		t.Errorf("Jobs = %d, want env override 16", cfg.Jobs)
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := &Config{
		SrcDir:   "/src",
		BuildDir: "/build",
		PkgDir:   "/pkg",
		LogDir:   "/log",
		DBDir:    "/db",
	}
	if got := cfg.SourceCacheDir("hello", "1.0"); got != filepath.Join("/src", "hello-1.0") {
		t.Errorf("SourceCacheDir = %q", got)
	}
	if got := cfg.PackagePath("hello", "1.0", "1"); got != filepath.Join("/pkg", "hello-1.0-1.tar.zst") {
		t.Errorf("PackagePath = %q", got)
	}
	if got := cfg.ManifestPath("hello", "1.0"); got != filepath.Join("/db", "hello-1.0.manifest") {
		t.Errorf("ManifestPath = %q", got)
	}
}
