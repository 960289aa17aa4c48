package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installDepsCmd = &cobra.Command{
	Use:   "install-deps <target...>",
	Short: "Expand targets through the dependency engine, then build and install in order",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		if err := orc.InstallDeps(globalCtx, args); err != nil {
			fail(err)
		}
		fmt.Println("installed")
	},
}
