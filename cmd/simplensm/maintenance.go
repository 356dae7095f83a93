// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simplensm/simplensm/internal/issue"
	"github.com/simplensm/simplensm/internal/service"
)

// errNoTerminal is returned by commands that prompt through a container.
var errNoTerminal = errors.New("an interactive terminal is required")

func newUpdateRulesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update-rules",
		Short: "Update the Suricata rule set",
		Long: `Update the Suricata rule set with suricata-update.

enable.conf and disable.conf in the current directory are used when present.
Restart Suricata afterwards to load the new rules.`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			stdio, tty := app.stdio()
			return sess.controller.UpdateRules(cmd.Context(), stdio, tty)
		}),
	}
}

func newResetPasswordCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password",
		Short: "Reset the EveBox admin password",
		Long: `Reset the EveBox admin password.

The admin user is removed and created again; EveBox prompts for the new
password, so this must be run from a terminal.`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			stdio, tty := app.stdio()
			if !tty {
				return errNoTerminal
			}
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.controller.ResetPassword(cmd.Context(), stdio, tty); err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓")+" EveBox admin password reset")
			return nil
		}),
	}
}

func newRotateLogsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-logs",
		Short: "Force a log rotation inside the Suricata container",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			stdio, _ := app.stdio()
			return sess.controller.RotateLogs(cmd.Context(), stdio)
		}),
	}
}

func newShellCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "shell [suricata|evebox]",
		Short:     "Open a shell in a running container",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(service.RoleSuricata), string(service.RoleEveBox)},
		RunE: app.runE(func(cmd *cobra.Command, args []string) error {
			role := service.RoleSuricata
			if len(args) == 1 {
				parsed, err := service.ParseRole(args[0])
				if err != nil {
					return err
				}
				role = parsed
			}

			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			stdio, _ := app.stdio()
			stdio.Stdin = app.stdin
			return notRunningHint(sess.controller.Shell(cmd.Context(), role, stdio))
		}),
	}
}

// notRunningHint suggests starting the services when err says a container
// is not running.
func notRunningHint(err error) error {
	if err == nil || !errors.Is(err, service.ErrNotRunning) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation("open container").
		WithSuggestion("Start the services with 'simplensm start'").
		Wrap(err).
		BuildError()
}
