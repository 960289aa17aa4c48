package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgepm/forge/internal/config"
	"github.com/forgepm/forge/internal/recipe"
)

const toolchainRecipeTemplate = `PKG_NAME=%s
PKG_VERSION=%s
PKG_RELEASE=1
PKG_DESC=
PKG_SOURCE_URLS=
PKG_DEPENDS=
`

var mkToolchainCmd = &cobra.Command{
	Use:   "mk-toolchain <cat/pkg> <version>",
	Short: "Scaffold a new recipe directory under REPO",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		catPkg, version := args[0], args[1]
		parts := strings.Split(catPkg, "/")
		if len(parts) != 2 {
			fail(fmt.Errorf("expected <category>/<package>, got %q", catPkg))
		}
		pkg := parts[1]

		cfg, err := config.Load()
		if err != nil {
			fail(err)
		}

		dir := filepath.Join(cfg.Repo, catPkg, version)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fail(err)
		}
		recipePath := filepath.Join(dir, recipe.FileName)
		if _, err := os.Stat(recipePath); err == nil {
			fail(fmt.Errorf("%s already exists", recipePath))
		}
		content := fmt.Sprintf(toolchainRecipeTemplate, pkg, version)
		if err := os.WriteFile(recipePath, []byte(content), 0o644); err != nil {
			fail(err)
		}
		fmt.Println(recipePath)
	},
}
