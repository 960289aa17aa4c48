package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <target...>",
	Short: "Show recipe details and installed status for one or more targets",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		for _, target := range args {
			dir, err := orc.ResolveTarget(target)
			if err != nil {
				fail(err)
			}
			r, err := orc.LoadRecipe(dir)
			if err != nil {
				fail(err)
			}

			installed := "no"
			if orc.DB.IsInstalled(r.Name, r.Version) {
				installed = "yes"
			}

			fmt.Printf("name:        %s\n", r.Name)
			fmt.Printf("version:     %s\n", r.Version)
			fmt.Printf("release:     %s\n", r.Release)
			fmt.Printf("description: %s\n", r.Description)
			fmt.Printf("depends:     %s\n", strings.Join(r.Depends, " "))
			fmt.Printf("source_urls: %s\n", strings.Join(r.SourceURLs, " "))
			if r.GitURL != "" {
				fmt.Printf("git_url:     %s\n", r.GitURL)
			}
			fmt.Printf("installed:   %s\n", installed)
			fmt.Printf("recipe_dir:  %s\n", dir)
			fmt.Println()
		}
	},
}
