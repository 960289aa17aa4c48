package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <target...>",
	Short: "Fetch a recipe's sources into the source cache",
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
			archivePaths, gitCloneDir, err := orc.Fetch(globalCtx, r)
			if err != nil {
				fail(err)
			}
			for _, p := range archivePaths {
				fmt.Println(p)
			}
			if gitCloneDir != "" {
				fmt.Println(gitCloneDir)
			}
		}
	},
}
