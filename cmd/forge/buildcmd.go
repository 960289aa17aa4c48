package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build <target...>",
	Short: "Build a recipe into its destdir, without packaging or installing",
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
			result, err := orc.Build(globalCtx, r)
			if err != nil {
				fail(err)
			}
			fmt.Printf("%s-%s built with %s, destdir %s\n", r.Name, r.Version, result.System, r.DestDir)
		}
	},
}
