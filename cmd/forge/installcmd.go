package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <target...>",
	Short: "Build and install targets directly, with no dependency expansion",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		if err := orc.Install(globalCtx, args); err != nil {
			fail(err)
		}
		fmt.Println("installed")
	},
}
