package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var revdepCmd = &cobra.Command{
	Use:   "revdep",
	Short: "Scan for broken dynamic-linker dependencies, rebuilding the world if any are found",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		orc, err := newOrchestrator()
		if err != nil {
			fail(err)
		}
		broken, err := orc.Revdep(globalCtx)
		if err != nil {
			fail(err)
		}
		if len(broken) == 0 {
			fmt.Println("no broken binaries found")
			return
		}
		for _, b := range broken {
			fmt.Printf("%s: missing %s\n", b.Path, strings.Join(b.Missing, ", "))
		}
	},
}
