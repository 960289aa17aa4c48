package main

import "os"

// Exit codes let scripts distinguish failure modes without parsing stderr.
const (
	ExitSuccess = 0

	// ExitGeneral is an unclassified failure.
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments or an unknown subcommand.
	ExitUsage = 2

	// ExitConfiguration maps errkind.Configuration: a missing recipe field,
	// an unresolvable target, or an unknown command reached past cobra.
	ExitConfiguration = 3

	// ExitExternalTool maps errkind.ExternalTool: a required command is missing.
	ExitExternalTool = 4

	// ExitNetwork maps errkind.Network.
	ExitNetwork = 5

	// ExitUnpack maps errkind.Unpack.
	ExitUnpack = 6

	// ExitBuild maps errkind.Build.
	ExitBuild = 7

	// ExitFilesystem maps errkind.Filesystem.
	ExitFilesystem = 8
)

func exitWithCode(code int) {
	os.Exit(code)
}
