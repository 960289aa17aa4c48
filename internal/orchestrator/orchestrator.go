// Package orchestrator composes the recipe loader, fetcher, unpacker,
// build driver, packager, installer, dependency engine, and database into
// the high-level operations: install, install-deps, world,
// upgrade, orphans, revdep. It is the only component that knows the shape
// of a full package lifecycle; everything it calls is a leaf that knows
// only its own concern.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/forgepm/forge/internal/build"
	"github.com/forgepm/forge/internal/config"
	"github.com/forgepm/forge/internal/db"
	"github.com/forgepm/forge/internal/depgraph"
	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/install"
	"github.com/forgepm/forge/internal/log"
	"github.com/forgepm/forge/internal/pack"
	"github.com/forgepm/forge/internal/recipe"
	"github.com/forgepm/forge/internal/revdep"
	"github.com/forgepm/forge/internal/source"
	"github.com/forgepm/forge/internal/vercompare"
)

// Orchestrator drives the full pipeline over one configuration.
type Orchestrator struct {
	Cfg       *config.Config
	DB        *db.DB
	Fetcher   *source.Fetcher
	Driver    *build.Driver
	Installer *install.Installer
	Logger    log.Logger
}

// New wires an Orchestrator from a resolved configuration and database.
func New(cfg *config.Config, database *db.DB, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	fetcher := source.New(cfg.FetchRetries)
	fetcher.Logger = logger

	return &Orchestrator{
		Cfg:       cfg,
		DB:        database,
		Fetcher:   fetcher,
		Driver:    build.New(cfg.HooksDir, logger),
		Installer: install.New(install.NewShellExecutor(cfg.Sudo, cfg.Fakeroot), database, logger),
		Logger:    logger,
	}
}

// ResolveTarget turns a CLI target into a recipe directory: an absolute
// path, a path relative to REPO, or a unique suffix match under REPO.
func (o *Orchestrator) ResolveTarget(target string) (string, error) {
	if filepath.IsAbs(target) && hasRecipeFile(target) {
		return target, nil
	}

	candidate := filepath.Join(o.Cfg.Repo, target)
	if hasRecipeFile(candidate) {
		return candidate, nil
	}

	var matches []string
	err := filepath.WalkDir(o.Cfg.Repo, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != recipe.FileName {
			return nil
		}
		dir := filepath.Dir(p)
		rel, err := filepath.Rel(o.Cfg.Repo, dir)
		if err != nil {
			return nil
		}
		if strings.HasSuffix(rel, target) {
			matches = append(matches, dir)
		}
		return nil
	})
	if err != nil {
		return "", errkind.Wrap(errkind.Filesystem, err)
	}

	switch len(matches) {
	case 0:
		return "", errkind.Wrap(errkind.Configuration, fmt.Errorf("target %q not found under %s", target, o.Cfg.Repo))
	case 1:
		return matches[0], nil
	default:
		return "", errkind.Wrap(errkind.Configuration, fmt.Errorf("target %q is ambiguous: matches %v", target, matches))
	}
}

// Sync fast-forward pulls REPO from its upstream remote. REPO must already
// be a git working copy; a non-fast-forward history is reported as an
// error rather than merged or rebased.
func (o *Orchestrator) Sync(ctx context.Context) error {
	repo, err := git.PlainOpen(o.Cfg.Repo)
	if err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("open %s as a git repository: %w", o.Cfg.Repo, err))
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("worktree for %s: %w", o.Cfg.Repo, err))
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return errkind.Wrap(errkind.Network, fmt.Errorf("fast-forward pull %s: %w", o.Cfg.Repo, err))
	}
	o.Logger.Info("synced repository", "repo", o.Cfg.Repo)
	return nil
}

func hasRecipeFile(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, recipe.FileName))
	return err == nil
}

// LoadRecipe loads the recipe at dir, defaulting PKG_DESTDIR under the
// package's build workspace when the recipe does not set one.
func (o *Orchestrator) LoadRecipe(dir string) (*recipe.Recipe, error) {
	r, err := recipe.Load(dir, o.Cfg.Jobs, "")
	if err != nil {
		return nil, errkind.Wrap(errkind.Configuration, err)
	}
	if r.DestDir == "" {
		r.DestDir = filepath.Join(o.Cfg.Workspace(r.Name, r.Version), "destdir")
	}
	return r, nil
}

// Fetch retrieves r's sources into the source cache and returns the cached
// archive paths (in source_urls order) plus the git clone directory, if any.
func (o *Orchestrator) Fetch(ctx context.Context, r *recipe.Recipe) (archivePaths []string, gitCloneDir string, err error) {
	cacheDir := o.Cfg.SourceCacheDir(r.Name, r.Version)
	if err := o.Fetcher.Fetch(ctx, cacheDir, r.SourceURLs, r.GitURL); err != nil {
		return nil, "", err
	}
	for _, u := range r.SourceURLs {
		archivePaths = append(archivePaths, filepath.Join(cacheDir, urlBasename(u)))
	}
	if r.GitURL != "" {
		gitCloneDir = filepath.Join(cacheDir, source.CloneDirName(r.GitURL))
	}
	return archivePaths, gitCloneDir, nil
}

func urlBasename(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// Unpack fetches r's sources, then extracts and patches them
// into the workspace, without running the build system. Returns the
// effective source root.
func (o *Orchestrator) Unpack(ctx context.Context, r *recipe.Recipe) (string, error) {
	archivePaths, gitCloneDir, err := o.Fetch(ctx, r)
	if err != nil {
		return "", err
	}
	workspace := o.Cfg.Workspace(r.Name, r.Version)
	sourceRoot, err := o.Driver.Unpacker.PrepareWorkspace(workspace, archivePaths)
	if err != nil {
		return "", err
	}
	if gitCloneDir != "" {
		if err := build.CopyGitTree(gitCloneDir, sourceRoot); err != nil {
			return "", errkind.Wrap(errkind.Unpack, fmt.Errorf("copy git source %s into workspace: %w", gitCloneDir, err))
		}
	}
	patches, err := r.PatchFiles()
	if err != nil {
		return "", errkind.Wrap(errkind.Unpack, err)
	}
	if len(patches) > 0 {
		if err := o.Driver.Unpacker.ApplyPatches(sourceRoot, patches, r.PatchStrip); err != nil {
			return "", err
		}
	}
	return sourceRoot, nil
}

// Build extracts, patches, and builds r (bracketed by hook invocations) and returns the
// build result.
func (o *Orchestrator) Build(ctx context.Context, r *recipe.Recipe) (*build.Result, error) {
	archivePaths, gitCloneDir, err := o.Fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	workspace := o.Cfg.Workspace(r.Name, r.Version)
	logPath := o.Cfg.LogPath(r.Name, r.Version)
	return build.Build(ctx, o.Driver, r, workspace, archivePaths, gitCloneDir, logPath, nil)
}

// Package archives r's DestDir, reading from r.DestDir and writing the archive
// under PKGDIR.
func (o *Orchestrator) Package(r *recipe.Recipe) (string, error) {
	outputPath := o.Cfg.PackagePath(r.Name, r.Version, r.Release)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", errkind.Wrap(errkind.Filesystem, err)
	}
	if err := pack.Pack(r.DestDir, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// InstallOne runs the full build -> package -> install pipeline for one
// recipe directory, with no dependency expansion.
func (o *Orchestrator) InstallOne(ctx context.Context, recipeDir string) error {
	r, err := o.LoadRecipe(recipeDir)
	if err != nil {
		return err
	}
	o.Logger.Info("building", "name", r.Name, "version", r.Version)
	if _, err := o.Build(ctx, r); err != nil {
		return err
	}
	archivePath, err := o.Package(r)
	if err != nil {
		return err
	}
	scratchRoot := filepath.Join(o.Cfg.BuildDir, "install-root")
	if err := o.Installer.Install(r.Name, r.Version, archivePath, scratchRoot); err != nil {
		return err
	}
	o.Logger.Info("installed", "name", r.Name, "version", r.Version)
	return nil
}

// Install implements the `install <targets>` operation: build and install
// each target directly, with no dependency expansion.
func (o *Orchestrator) Install(ctx context.Context, targets []string) error {
	for _, t := range targets {
		dir, err := o.ResolveTarget(t)
		if err != nil {
			return err
		}
		if err := o.InstallOne(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

// Remove implements `remove <name[@version]>`: uninstall the named package,
// defaulting to its highest installed version when none is given.
func (o *Orchestrator) Remove(spec string) error {
	name, version, _ := strings.Cut(spec, "@")
	if version == "" {
		versions, err := o.DB.InstalledVersions(name)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			return errkind.Wrap(errkind.Configuration, fmt.Errorf("%s is not installed", name))
		}
		version = vercompare.SortDescending(versions)[0]
	}
	return o.Installer.Uninstall(name, version)
}

// repoNodes builds depgraph.Node values for every recipe directory found
// under o.Cfg.Repo, along with a name -> directory index for later lookup.
func (o *Orchestrator) repoNodes() ([]depgraph.Node, map[string]string, error) {
	var nodes []depgraph.Node
	dirByName := make(map[string]string)

	err := filepath.WalkDir(o.Cfg.Repo, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != recipe.FileName {
			return nil
		}
		dir := filepath.Dir(p)
		r, err := o.LoadRecipe(dir)
		if err != nil {
			o.Logger.Warn("skipping unloadable recipe", "dir", dir, "error", err)
			return nil
		}
		if _, exists := dirByName[r.Name]; !exists {
			dirByName[r.Name] = dir
		}
		nodes = append(nodes, depgraph.Node{Name: r.Name, Depends: r.Depends})
		return nil
	})
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.Filesystem, err)
	}
	return nodes, dirByName, nil
}

// InstallDeps implements `install-deps <targets>`: expand targets through
// the dependency engine over the full repository, then build-and-install
// each resolved node in order, skipping already-installed packages unless
// FORCE is set.
func (o *Orchestrator) InstallDeps(ctx context.Context, targets []string) error {
	nodes, dirByName, err := o.repoNodes()
	if err != nil {
		return err
	}

	closure, err := closeOver(nodes, targets)
	if err != nil {
		return err
	}

	ordered := depgraph.Order(closure, o.Logger)
	return o.installOrdered(ctx, ordered, dirByName)
}

// closeOver restricts nodes to the transitive closure of targets by name.
func closeOver(nodes []depgraph.Node, targets []string) ([]depgraph.Node, error) {
	byName := make(map[string]depgraph.Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}

	included := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if included[name] {
			return
		}
		included[name] = true
		if n, ok := byName[name]; ok {
			for _, dep := range n.Depends {
				visit(dep)
			}
		}
	}
	for _, t := range targets {
		visit(t)
	}

	var out []depgraph.Node
	for _, n := range nodes {
		if included[n.Name] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (o *Orchestrator) installOrdered(ctx context.Context, ordered []depgraph.Node, dirByName map[string]string) error {
	for _, n := range ordered {
		dir, ok := dirByName[n.Name]
		if !ok {
			o.Logger.Warn("unresolved dependency name, skipping", "name", n.Name)
			continue
		}
		r, err := o.LoadRecipe(dir)
		if err != nil {
			return err
		}
		if o.DB.IsInstalled(r.Name, r.Version) && !o.Cfg.Force {
			o.Logger.Info("already installed", "name", r.Name, "version", r.Version)
			continue
		}
		if err := o.InstallOne(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

// World implements `world`: order every recipe in the repository and
// build-and-install each in order.
func (o *Orchestrator) World(ctx context.Context) error {
	nodes, dirByName, err := o.repoNodes()
	if err != nil {
		return err
	}
	ordered := depgraph.Order(nodes, o.Logger)
	return o.installOrdered(ctx, ordered, dirByName)
}

// Upgrade implements `upgrade`: for each installed name, find the highest
// available version under the repository and install-deps it if different
// (or if FORCE is set).
func (o *Orchestrator) Upgrade(ctx context.Context) error {
	installed, err := o.DB.ListInstalled()
	if err != nil {
		return err
	}

	versionsByName, dirsByNameVersion, err := o.repoVersionIndex()
	if err != nil {
		return err
	}
	nodes, dirByName, err := o.repoNodes()
	if err != nil {
		return err
	}

	for _, p := range installed {
		versions, ok := versionsByName[p.Name]
		if !ok || len(versions) == 0 {
			continue
		}
		sorted := vercompare.SortDescending(versions)
		latest := sorted[0]
		if latest == p.Version && !o.Cfg.Force {
			continue
		}
		dir := dirsByNameVersion[p.Name+"@"+latest]
		if dir == "" {
			continue
		}
		o.Logger.Info("upgrading", "name", p.Name, "from", p.Version, "to", latest)
		dirByName[p.Name] = dir
		closure, err := closeOver(nodes, []string{p.Name})
		if err != nil {
			return err
		}
		if err := o.installOrdered(ctx, depgraph.Order(closure, o.Logger), dirByName); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) repoVersionIndex() (map[string][]string, map[string]string, error) {
	versionsByName := make(map[string][]string)
	dirsByNameVersion := make(map[string]string)

	err := filepath.WalkDir(o.Cfg.Repo, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != recipe.FileName {
			return nil
		}
		dir := filepath.Dir(p)
		r, err := o.LoadRecipe(dir)
		if err != nil {
			o.Logger.Warn("skipping unloadable recipe", "dir", dir, "error", err)
			return nil
		}
		versionsByName[r.Name] = append(versionsByName[r.Name], r.Version)
		dirsByNameVersion[r.Name+"@"+r.Version] = dir
		return nil
	})
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.Filesystem, err)
	}
	return versionsByName, dirsByNameVersion, nil
}

// Orphans implements `orphans`: installed packages whose name does not
// appear in any repository recipe's depends list.
func (o *Orchestrator) Orphans() ([]db.Installed, error) {
	installed, err := o.DB.ListInstalled()
	if err != nil {
		return nil, err
	}

	nodes, _, err := o.repoNodes()
	if err != nil {
		return nil, err
	}
	depended := make(map[string]bool)
	for _, n := range nodes {
		for _, dep := range n.Depends {
			depended[dep] = true
		}
	}

	var orphans []db.Installed
	for _, p := range installed {
		if !depended[p.Name] {
			orphans = append(orphans, p)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Name < orphans[j].Name })
	return orphans, nil
}

// Revdep implements `revdep`: scan standard system directories for broken
// dynamic-linker resolution, triggering a world rebuild when anything is found.
func (o *Orchestrator) Revdep(ctx context.Context) ([]revdep.Broken, error) {
	broken, err := revdep.Scan(revdep.DefaultDirs, revdep.DefaultMaxFiles, o.Logger)
	if err != nil {
		return nil, err
	}
	if len(broken) > 0 {
		o.Logger.Warn("revdep found broken binaries, triggering world rebuild", "count", len(broken))
		if err := o.World(ctx); err != nil {
			return broken, err
		}
	}
	return broken, nil
}
