// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/simplensm/simplensm/internal/issue"
	"github.com/simplensm/simplensm/internal/service"
)

// errStatusDegraded is the exit error of `status` when the engine could not
// answer for a service.
var errStatusDegraded = errors.New("status degraded")

func newStartCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start Suricata and EveBox in the background",
		Long: `Start Suricata and EveBox in the background.

Existing containers with the same names are removed first. With Docker and
start_on_boot enabled, the containers are restarted when the host boots.`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.controller.Start(cmd.Context()); err != nil {
				return startError(err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓")+" Services started")
			return nil
		}),
	}
}

func newStopCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop and remove the containers",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.controller.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓")+" Services stopped")
			return nil
		}),
	}
}

func newRestartCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop, then start both containers",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.controller.Restart(cmd.Context()); err != nil {
				return startError(err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓")+" Services restarted")
			return nil
		}),
	}
}

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of both containers",
		Long: `Show the state of both containers.

The last line logged by Suricata is shown below its status.
Exits with status 1 when the container engine could not be queried; a
container that does not exist is reported as not running.`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			report := sess.controller.Status(cmd.Context())
			renderStatus(app.stdout, report, app.flags.verbose)
			if report.Degraded() {
				return &ExitError{Code: 1, Err: errStatusDegraded}
			}
			return nil
		}),
	}
}

// startError attaches the matching issue guide to a start failure.
func startError(err error) error {
	if errors.Is(err, service.ErrNoInterface) {
		return newServiceError(err, issue.InterfaceNotSetId)
	}
	return newServiceError(err, issue.ServiceStartFailedId)
}

// renderStatus prints one line per service. Query errors other than a
// missing container are only shown in verbose mode.
func renderStatus(w io.Writer, report *service.StatusReport, verbose bool) {
	fmt.Fprintf(w, "%s %s\n\n", KeyStyle.Render("Container engine:"), report.Engine)

	for _, st := range report.Services {
		summary := st.Summary()
		line := fmt.Sprintf("  %-10s %-20s %s", st.Role, st.Name, statusStyle(summary).Render(fmt.Sprintf("%-12s", summary)))
		if !st.Disabled {
			line += " " + SubtitleStyle.Render(st.Image)
			if !st.ImagePresent {
				line += " " + WarningStyle.Render("(not pulled)")
			}
		}
		fmt.Fprintln(w, line)

		if st.LastLog != "" {
			fmt.Fprintf(w, "    %s\n", SubtitleStyle.Render(st.LastLog))
		}
		if verbose && st.Err != nil && summary == "unknown" {
			fmt.Fprintf(w, "    %s\n", ErrorStyle.Render(st.Err.Error()))
		}
	}
}
