package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Install the highest available version of every installed package that has a newer one in REPO",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		if err := orc.Upgrade(globalCtx); err != nil {
			fail(err)
		}
		fmt.Println("upgraded")
	},
}
