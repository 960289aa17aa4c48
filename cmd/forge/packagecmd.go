package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var packageCmd = &cobra.Command{
	Use:   "package <target...>",
	Short: "Package a recipe's destdir into a tar.zst archive under PKGDIR",
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
			archivePath, err := orc.Package(r)
			if err != nil {
				fail(err)
			}
			fmt.Println(archivePath)
		}
	},
}
