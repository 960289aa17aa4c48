package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgepm/forge/internal/config"
	"github.com/forgepm/forge/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <regex>",
	Short: "Search recipe names and descriptions under REPO",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fail(err)
		}
		results, err := search.Recipes(cfg.Repo, args[0])
		if err != nil {
			fail(err)
		}
		if len(results) == 0 {
			fmt.Println("no matching recipes")
			return
		}
		for _, r := range results {
			fmt.Printf("%s-%s\t%s\n", r.Name, r.Version, r.Description)
		}
	},
}
