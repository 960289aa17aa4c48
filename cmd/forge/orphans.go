package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List installed packages no repository recipe depends on",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		orphans, err := orc.Orphans()
		if err != nil {
			fail(err)
		}
		if len(orphans) == 0 {
			fmt.Println("no orphans")
			return
		}
		for _, p := range orphans {
			fmt.Printf("%s-%s\n", p.Name, p.Version)
		}
	},
}
