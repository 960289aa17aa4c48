// Package source implements the source fetcher: retrieving HTTP archives and
// git repositories into the source cache, idempotently. Cache hits are
// detected by filename alone and skip the network entirely, matching the
// "re-fetch is idempotent" requirement.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/httpclient"
	"github.com/forgepm/forge/internal/log"
)

// Fetcher retrieves source_urls and git_url into a per-recipe cache directory.
type Fetcher struct {
	Client  *http.Client
	Retries int
	Logger  log.Logger
}

// New builds a Fetcher with the given retry budget.
func New(retries int) *Fetcher {
	return &Fetcher{
		Client:  httpclient.New(httpclient.DefaultOptions()),
		Retries: retries,
		Logger:  log.Default(),
	}
}

// Fetch downloads every URL in urls, and clones/pulls gitURL if set, into
// cacheDir. Existing files are never re-downloaded.
func (f *Fetcher) Fetch(ctx context.Context, cacheDir string, urls []string, gitURL string) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return errkind.Wrap(errkind.Filesystem, fmt.Errorf("create source cache %s: %w", cacheDir, err))
	}

	for _, u := range urls {
		if err := f.fetchOne(ctx, cacheDir, u); err != nil {
			return err
		}
	}

	if gitURL != "" {
		if err := f.fetchGit(ctx, cacheDir, gitURL); err != nil {
			return err
		}
	}

	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, cacheDir, rawURL string) error {
	name := basename(rawURL)
	dest := filepath.Join(cacheDir, name)

	if _, err := os.Stat(dest); err == nil {
		f.Logger.Debug("source cache hit", "url", rawURL, "path", dest)
		return nil
	}

	var lastErr error
	retries := f.Retries
	if retries < 0 {
		retries = 0
	}
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			f.Logger.Warn("retrying fetch", "url", rawURL, "attempt", attempt)
		}
		if err := f.download(ctx, rawURL, dest); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return errkind.Wrap(errkind.Network, fmt.Errorf("fetch %s: exhausted %d retries: %w", rawURL, retries, lastErr))
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: HTTP %d", rawURL, resp.StatusCode)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, dest, err)
	}

	f.Logger.Info("fetched source", "url", rawURL, "path", dest)
	return nil
}

// CloneDirName derives the directory a git clone lands in: the URL's
// basename with a trailing ".git" stripped.
func CloneDirName(gitURL string) string {
	name := basename(gitURL)
	return strings.TrimSuffix(name, ".git")
}

func (f *Fetcher) fetchGit(ctx context.Context, cacheDir, gitURL string) error {
	dir := filepath.Join(cacheDir, CloneDirName(gitURL))

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		repo, err := git.PlainOpen(dir)
		if err != nil {
			return errkind.Wrap(errkind.Network, fmt.Errorf("open git clone %s: %w", dir, err))
		}
		wt, err := repo.Worktree()
		if err != nil {
			return errkind.Wrap(errkind.Network, fmt.Errorf("worktree for %s: %w", dir, err))
		}
		err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return errkind.Wrap(errkind.Network, fmt.Errorf("fast-forward pull %s: %w", gitURL, err))
		}
		f.Logger.Info("pulled git source", "url", gitURL, "path", dir)
		return nil
	}

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: gitURL})
	if err != nil {
		return errkind.Wrap(errkind.Network, fmt.Errorf("clone %s: %w", gitURL, err))
	}
	f.Logger.Info("cloned git source", "url", gitURL, "path", dir)
	return nil
}

func basename(rawURL string) string {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}
