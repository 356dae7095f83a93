// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/simplensm/simplensm/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simplensm",
		Short: "Run Suricata and EveBox as containers",
		Long: TitleStyle.Render("simplensm") + SubtitleStyle.Render(" - Suricata and EveBox on Docker or Podman") + `

simplensm manages two containers: Suricata capturing on a host interface
and EveBox serving its events on port 5636. Docker is preferred; Podman is
used when Docker is unavailable or requested with --podman.

` + SubtitleStyle.Render("Quick Start:") + `
  1. simplensm config init
  2. simplensm config set suricata.interface eth0
  3. simplensm update --images-only
  4. simplensm start

` + SubtitleStyle.Render("Examples:") + `
  simplensm status          Show the state of both containers
  simplensm run             Run both containers in the foreground
  simplensm logs -f         Follow the logs of both containers
  simplensm update-rules    Update the Suricata rule set`,
	}

	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "",
		fmt.Sprintf("config file (default is ./%s or $%s)", config.ConfigFileName, config.ConfigPathEnv))
	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&app.flags.podman, "podman", false, "use Podman instead of Docker")

	rootCmd.AddCommand(
		newStartCommand(app),
		newStopCommand(app),
		newRestartCommand(app),
		newStatusCommand(app),
		newRunCommand(app),
		newLogsCommand(app),
		newUpdateCommand(app),
		newUpdateRulesCommand(app),
		newRotateLogsCommand(app),
		newResetPasswordCommand(app),
		newShellCommand(app),
		newConfigCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})

	// fang.WithVersion is required since fang overrides rootCmd.Version.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
