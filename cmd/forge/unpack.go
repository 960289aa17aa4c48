package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <target...>",
	Short: "Fetch, extract, and patch a recipe's sources without building",
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
			sourceRoot, err := orc.Unpack(globalCtx, r)
			if err != nil {
				fail(err)
			}
			fmt.Println(sourceRoot)
		}
	},
}
