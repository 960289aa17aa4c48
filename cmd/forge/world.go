package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var worldCmd = &cobra.Command{
	Use:   "world",
	Short: "Order and build-and-install every recipe in the repository",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		if err := orc.World(globalCtx); err != nil {
			fail(err)
		}
		fmt.Println("world built")
	},
}
