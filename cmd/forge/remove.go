package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name[@version]>",
	Short: "Uninstall an installed package by replaying its manifest in reverse",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		if err := orc.Remove(args[0]); err != nil {
			fail(err)
		}
		fmt.Println("removed")
	},
}
