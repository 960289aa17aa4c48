// Command forge is the command-line dispatcher for the core: it parses
// flags, resolves configuration, and hands off to internal/orchestrator for
// every operation beyond plain recipe inspection.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgepm/forge/internal/log"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
	colorMode   string
	forceFlag   bool
)

// globalCtx is canceled on SIGINT/SIGTERM; commands use it for anything
// that should stop cleanly on interrupt.
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "A source-based package manager in the Linux From Scratch style",
	Long: `forge builds packages from recipes: fetch the upstream source,
unpack and patch it, run the detected build system into a scratch
DESTDIR, package that DESTDIR into a tar.zst archive, and install the
archive into the live root with a recorded manifest.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output, including source locations")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "Colorize output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&forceFlag, "force", false, "Rebuild and reinstall even if already installed")

	rootCmd.PersistentPreRun = initLogger

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(unpackCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(installDepsCmd)
	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(revdepCmd)
	rootCmd.AddCommand(worldCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(mkToolchainCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling operation...\n", sig)
		globalCancel()
		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		exitWithCode(ExitGeneral)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitGeneral)
		}
		exitWithCode(ExitUsage)
	}
}

// initLogger installs the global logger based on verbosity flags, then
// environment variables, then the WARN-level default. Flags win.
func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}
	if isTruthy(os.Getenv("FORGE_DEBUG")) {
		return slog.LevelDebug
	}
	if isTruthy(os.Getenv("FORGE_VERBOSE")) {
		return slog.LevelInfo
	}
	if isTruthy(os.Getenv("FORGE_QUIET")) {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func isTruthy(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
