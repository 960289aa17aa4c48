// Package config resolves the environment-controlled configuration knobs
// REPO, BUILDDIR, SRCDIR, PKGDIR, DBDIR, LOGDIR, HOOKSD, JOBS, SUDO,
// FAKEROOT, FETCH_RETRIES, COLOR, and FORCE. Each has a documented default;
// an invalid value logs a warning and the default is kept.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Environment variable names recognized by the core.
const (
	EnvRepo         = "REPO"
	EnvBuildDir     = "BUILDDIR"
	EnvSrcDir       = "SRCDIR"
	EnvPkgDir       = "PKGDIR"
	EnvDBDir        = "DBDIR"
	EnvLogDir       = "LOGDIR"
	EnvHooksDir     = "HOOKSD"
	EnvJobs         = "JOBS"
	EnvSudo         = "SUDO"
	EnvFakeroot     = "FAKEROOT"
	EnvFetchRetries = "FETCH_RETRIES"
	EnvColor        = "COLOR"
	EnvForce        = "FORCE"

	// EnvConfigFile overrides the location of the optional TOML config file.
	EnvConfigFile = "FORGE_CONFIG"
)

// Color modes accepted by COLOR.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// DefaultFetchRetries is the default retry count for a single source URL.
const DefaultFetchRetries = 3

// Config holds the resolved configuration for one invocation.
type Config struct {
	Repo         string
	BuildDir     string
	SrcDir       string
	PkgDir       string
	DBDir        string
	LogDir       string
	HooksDir     string
	Jobs         int
	Sudo         string
	Fakeroot     string
	FetchRetries int
	Color        string
	Force        bool
}

// fileOverrides mirrors the subset of Config that may be persisted in the
// optional TOML config file. Field names match the lowercased env var names
// so the file reads naturally next to the environment variable docs.
type fileOverrides struct {
	Repo         string `toml:"repo"`
	BuildDir     string `toml:"builddir"`
	SrcDir       string `toml:"srcdir"`
	PkgDir       string `toml:"pkgdir"`
	DBDir        string `toml:"dbdir"`
	LogDir       string `toml:"logdir"`
	HooksDir     string `toml:"hooksd"`
	Jobs         int    `toml:"jobs"`
	Sudo         string `toml:"sudo"`
	Fakeroot     string `toml:"fakeroot"`
	FetchRetries int    `toml:"fetch_retries"`
	Color        string `toml:"color"`
}

// Load resolves the configuration from, in increasing priority:
//  1. built-in defaults
//  2. an optional TOML config file (FORGE_CONFIG, default "./forge.toml")
//  3. environment variables
//
// Environment overrides apply to the default-providing configuration,
// never to an already-loaded recipe.
func Load() (*Config, error) {
	cfg := defaults()

	if fo, err := loadFileOverrides(); err == nil && fo != nil {
		applyFileOverrides(cfg, fo)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Repo:         filepath.Join(cwd, "repo"),
		BuildDir:     filepath.Join(cwd, "build"),
		SrcDir:       filepath.Join(cwd, "sources"),
		PkgDir:       filepath.Join(cwd, "packages"),
		DBDir:        filepath.Join(cwd, "db"),
		LogDir:       filepath.Join(cwd, "logs"),
		HooksDir:     filepath.Join(cwd, "hooks"),
		Jobs:         runtime.NumCPU(),
		Sudo:         "sudo",
		Fakeroot:     "",
		FetchRetries: DefaultFetchRetries,
		Color:        ColorAuto,
		Force:        false,
	}
}

func configFilePath() string {
	if v := os.Getenv(EnvConfigFile); v != "" {
		return v
	}
	return "forge.toml"
}

func loadFileOverrides() (*fileOverrides, error) {
	path := configFilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fo fileOverrides
	if _, err := toml.Decode(string(data), &fo); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fo, nil
}

func applyFileOverrides(cfg *Config, fo *fileOverrides) {
	if fo.Repo != "" {
		cfg.Repo = fo.Repo
	}
	if fo.BuildDir != "" {
		cfg.BuildDir = fo.BuildDir
	}
	if fo.SrcDir != "" {
		cfg.SrcDir = fo.SrcDir
	}
	if fo.PkgDir != "" {
		cfg.PkgDir = fo.PkgDir
	}
	if fo.DBDir != "" {
		cfg.DBDir = fo.DBDir
	}
	if fo.LogDir != "" {
		cfg.LogDir = fo.LogDir
	}
	if fo.HooksDir != "" {
		cfg.HooksDir = fo.HooksDir
	}
	if fo.Jobs > 0 {
		cfg.Jobs = fo.Jobs
	}
	if fo.Sudo != "" {
		cfg.Sudo = fo.Sudo
	}
	if fo.Fakeroot != "" {
		cfg.Fakeroot = fo.Fakeroot
	}
	if fo.FetchRetries > 0 {
		cfg.FetchRetries = fo.FetchRetries
	}
	if fo.Color != "" {
		cfg.Color = fo.Color
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvRepo); v != "" {
		cfg.Repo = v
	}
	if v := os.Getenv(EnvBuildDir); v != "" {
		cfg.BuildDir = v
	}
	if v := os.Getenv(EnvSrcDir); v != "" {
		cfg.SrcDir = v
	}
	if v := os.Getenv(EnvPkgDir); v != "" {
		cfg.PkgDir = v
	}
	if v := os.Getenv(EnvDBDir); v != "" {
		cfg.DBDir = v
	}
	if v := os.Getenv(EnvLogDir); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv(EnvHooksDir); v != "" {
		cfg.HooksDir = v
	}
	if v := os.Getenv(EnvJobs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Jobs = n
		} else {
			fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using %d\n", EnvJobs, v, cfg.Jobs)
		}
	}
	if v := os.Getenv(EnvSudo); v != "" {
		cfg.Sudo = v
	}
	if v := os.Getenv(EnvFakeroot); v != "" {
		cfg.Fakeroot = v
	}
	if v := os.Getenv(EnvFetchRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.FetchRetries = n
		} else {
			fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using %d\n", EnvFetchRetries, v, cfg.FetchRetries)
		}
	}
	if v := os.Getenv(EnvColor); v != "" {
		switch strings.ToLower(v) {
		case ColorAuto, ColorAlways, ColorNever:
			cfg.Color = strings.ToLower(v)
		default:
			fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using %q\n", EnvColor, v, cfg.Color)
		}
	}
	if v := os.Getenv(EnvForce); v != "" {
		cfg.Force = v == "1" || strings.EqualFold(v, "true")
	}
}

// EnsureDirectories creates the directories the pipeline writes to.
// REPO is external input and is never created by the core.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.BuildDir, c.SrcDir, c.PkgDir, c.DBDir, c.LogDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SourceCacheDir returns SRCDIR/<name>-<version>.
func (c *Config) SourceCacheDir(name, version string) string {
	return filepath.Join(c.SrcDir, fmt.Sprintf("%s-%s", name, version))
}

// Workspace returns BUILDDIR/<name>-<version>.
func (c *Config) Workspace(name, version string) string {
	return filepath.Join(c.BuildDir, fmt.Sprintf("%s-%s", name, version))
}

// PackagePath returns PKGDIR/<name>-<version>-<release>.tar.zst.
func (c *Config) PackagePath(name, version, release string) string {
	return filepath.Join(c.PkgDir, fmt.Sprintf("%s-%s-%s.tar.zst", name, version, release))
}

// LogPath returns LOGDIR/<name>-<version>.log.
func (c *Config) LogPath(name, version string) string {
	return filepath.Join(c.LogDir, fmt.Sprintf("%s-%s.log", name, version))
}

// ManifestPath returns DBDIR/<name>-<version>.manifest.
func (c *Config) ManifestPath(name, version string) string {
	return filepath.Join(c.DBDir, fmt.Sprintf("%s-%s.manifest", name, version))
}

// InstalledFlagPath returns DBDIR/<name>-<version>.installed.
func (c *Config) InstalledFlagPath(name, version string) string {
	return filepath.Join(c.DBDir, fmt.Sprintf("%s-%s.installed", name, version))
}
