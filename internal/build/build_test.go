package build

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/forgepm/forge/internal/log"
	"github.com/forgepm/forge/internal/recipe"
)

func writeTarGzFixture(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gzw := gzip.NewWriter(f)
	defer gzw.Close()
	tw := tar.NewWriter(gzw)
	defer tw.Close()
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}

func writeRecipeFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, recipe.FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectPriorityOrder(t *testing.T) {
	dir := t.TempDir()
	r := &recipe.Recipe{}

	if got := Detect(dir, r, false); got != None {
		t.Errorf("empty dir = %v, want None", got)
	}

	os.WriteFile(filepath.Join(dir, "Makefile"), []byte("build:\n\tcc -o out main.c\n"), 0o644)
	if got := Detect(dir, r, false); got != None {
		t.Errorf("with Makefile lacking an all target = %v, want None", got)
	}

	os.WriteFile(filepath.Join(dir, "Makefile"), []byte("all:\n"), 0o644)
	if got := Detect(dir, r, false); got != Make {
		t.Errorf("with Makefile = %v, want Make", got)
	}

	os.WriteFile(filepath.Join(dir, "configure"), []byte("#!/bin/sh\n"), 0o755)
	if got := Detect(dir, r, false); got != Autoconf {
		t.Errorf("with configure = %v, want Autoconf", got)
	}

	os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte(""), 0o644)
	if got := Detect(dir, r, false); got != CMake {
		t.Errorf("with CMakeLists.txt = %v, want CMake", got)
	}

	os.WriteFile(filepath.Join(dir, "meson.build"), []byte(""), 0o644)
	if got := Detect(dir, r, false); got != Meson {
		t.Errorf("with meson.build = %v, want Meson", got)
	}
}

func TestDetectMakefilePhonyAllTarget(t *testing.T) {
	dir := t.TempDir()
	r := &recipe.Recipe{}

	// The "all" target is only named via .PHONY; the actual rule is built
	// from a variable, so no literal "all:" line ever appears.
	os.WriteFile(filepath.Join(dir, "Makefile"), []byte(".PHONY: all clean\nTARGETS = all\n$(TARGETS):\n\tcc -o out main.c\n"), 0o644)
	if got := Detect(dir, r, false); got != Make {
		t.Errorf("with .PHONY all declaration = %v, want Make", got)
	}
}

func TestDetectRecipeProvidedFallback(t *testing.T) {
	dir := t.TempDir()
	r := &recipe.Recipe{}
	if got := Detect(dir, r, true); got != RecipeProvided {
		t.Errorf("got %v, want RecipeProvided", got)
	}
}

func TestBuildRunsMakeDriverAndHooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}

	repoDir := t.TempDir()
	writeRecipeFile(t, repoDir, "PKG_NAME=hello\nPKG_VERSION=1.0\n")
	r, err := recipe.Load(repoDir, 1, filepath.Join(t.TempDir(), "destdir"))
	if err != nil {
		t.Fatal(err)
	}

	// Fake "make" on PATH that always succeeds.
	binDir := t.TempDir()
	fakeMake := filepath.Join(binDir, "make")
	os.WriteFile(fakeMake, []byte("#!/bin/sh\nexit 0\n"), 0o755)
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	workspace := t.TempDir()
	srcArchiveDir := t.TempDir()

	// Minimal workspace prep: build a fake archive with a Makefile inside.
	archive := filepath.Join(srcArchiveDir, "hello-1.0.tar.gz")
	writeTarGzFixture(t, archive, map[string]string{
		"hello-1.0/Makefile": "all:\n\techo hi\n",
	})

	hooksDir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "post-build-ran")
	os.WriteFile(filepath.Join(hooksDir, "post-build-10-mark.sh"), []byte("#!/bin/sh\ntouch "+marker+"\n"), 0o755)
	d := New(hooksDir, log.NewNoop())

	logPath := filepath.Join(t.TempDir(), "hello-1.0.log")
	_, err = Build(context.Background(), d, r, workspace, []string{archive}, "", logPath, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := os.Stat(r.DestDir); err != nil {
		t.Errorf("expected destdir to exist: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("expected post-build hook to run: %v", err)
	}
}
