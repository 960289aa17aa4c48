package main

import (
	"fmt"
	"os"

	"github.com/forgepm/forge/internal/config"
	"github.com/forgepm/forge/internal/db"
	"github.com/forgepm/forge/internal/errkind"
	"github.com/forgepm/forge/internal/log"
	"github.com/forgepm/forge/internal/orchestrator"
	"github.com/forgepm/forge/internal/termcolor"
)

func printError(err error) {
	msg := err.Error()
	if termcolor.Stdout(colorMode) {
		msg = termcolor.Red(true, msg)
	}
	fmt.Fprintln(os.Stderr, msg)
}

// exitCodeFor maps a tagged error to one of the process exit codes; an
// untagged error falls back to ExitGeneral.
func exitCodeFor(err error) int {
	kind, tagged := errkind.Of(err)
	if !tagged {
		return ExitGeneral
	}
	switch kind {
	case errkind.Configuration:
		return ExitConfiguration
	case errkind.ExternalTool:
		return ExitExternalTool
	case errkind.Network:
		return ExitNetwork
	case errkind.Unpack:
		return ExitUnpack
	case errkind.Build:
		return ExitBuild
	case errkind.Filesystem:
		return ExitFilesystem
	default:
		return ExitGeneral
	}
}

func fail(err error) {
	printError(err)
	exitWithCode(exitCodeFor(err))
}

// newOrchestrator loads configuration, ensures the working directories
// exist, opens the database, and wires an Orchestrator over all of it.
func newOrchestrator() (*orchestrator.Orchestrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if forceFlag {
		cfg.Force = true
	}
	database, err := db.Open(cfg.DBDir)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(cfg, database, log.Default()), nil
}
