package search

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRecipeAt(t *testing.T, repoRoot, category, pkg, version, content string) {
	t.Helper()
	dir := filepath.Join(repoRoot, category, pkg, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "recipe"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRecipesMatchesNameAndDescription(t *testing.T) {
	repo := t.TempDir()
	writeRecipeAt(t, repo, "base", "gcc", "12.2.0", "PKG_NAME=gcc\nPKG_VERSION=12.2.0\nPKG_DESC=GNU Compiler Collection\n")
	writeRecipeAt(t, repo, "base", "hello", "1.0", "PKG_NAME=hello\nPKG_VERSION=1.0\nPKG_DESC=friendly greeting program\n")

	results, err := Recipes(repo, "Compiler")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "gcc" {
		t.Errorf("got %+v, want exactly gcc", results)
	}

	results, err = Recipes(repo, "^hel")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "hello" {
		t.Errorf("got %+v, want exactly hello", results)
	}
}

func TestRecipesInvalidPatternIsConfigurationError(t *testing.T) {
	repo := t.TempDir()
	if _, err := Recipes(repo, "("); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestRecipesSkipsMalformedRecipe(t *testing.T) {
	repo := t.TempDir()
	writeRecipeAt(t, repo, "base", "broken", "1.0", "not a valid line\n")
	writeRecipeAt(t, repo, "base", "hello", "1.0", "PKG_NAME=hello\nPKG_VERSION=1.0\n")

	results, err := Recipes(repo, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected malformed recipe to be skipped, got %+v", results)
	}
}
