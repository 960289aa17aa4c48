package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fast-forward pull REPO from its upstream remote",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		if err := orc.Sync(globalCtx); err != nil {
			fail(err)
		}
		fmt.Println("repository synced")
	},
}
