// Package search implements a regex scan over recipe names and
// descriptions under a repository root, the supplemented `search <regex>`
// CLI feature.
package search

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/recipe"
)

// Result is one recipe directory matching a search.
type Result struct {
	Dir         string
	Name        string
	Version     string
	Description string
}

// Recipes walks repoRoot for recipe directories (REPO/<category>/<pkg>/<version>/recipe)
// and returns every one whose name or description matches pattern.
func Recipes(repoRoot, pattern string) ([]Result, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errkind.Wrap(errkind.Configuration, err)
	}

	var results []Result
	err = filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != recipe.FileName {
			return nil
		}
		dir := filepath.Dir(path)
		r, loadErr := recipe.Load(dir, 1, "")
		if loadErr != nil {
			// A malformed recipe is skipped during a scan rather than
			// aborting the whole search.
			return nil
		}
		if re.MatchString(r.Name) || re.MatchString(r.Description) {
			results = append(results, Result{
				Dir:         dir,
				Name:        r.Name,
				Version:     r.Version,
				Description: r.Description,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.Filesystem, err)
	}
	return results, nil
}
