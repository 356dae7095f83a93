// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simplensm/simplensm/internal/container"
	"github.com/simplensm/simplensm/internal/service"
	"github.com/simplensm/simplensm/internal/supervisor"
)

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run both containers in the foreground",
		Long: `Run both containers in the foreground.

The output of both containers is interleaved on the terminal, each line
prefixed with the container name. The first Ctrl-C stops EveBox, then
Suricata, and waits for both to exit. Further interrupts are ignored.`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}

			units, err := supervisedUnits(sess.controller)
			if err != nil {
				return startError(err)
			}

			sup := supervisor.New(sess.engine, units,
				supervisor.WithOutput(app.stdout),
				supervisor.WithLogger(sess.logger),
				supervisor.WithMultiplexerOptions(supervisor.WithLabelStyle(supervisorLabelStyle)),
				supervisor.WithAfterLaunch(sess.controller.StartLogRotation),
			)

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(interrupts)

			return sup.Run(cmd.Context(), interrupts)
		}),
	}
}

// supervisedUnits builds attached run specs for every enabled service in
// start order.
func supervisedUnits(ctrl *service.Controller) ([]supervisor.Unit, error) {
	var units []supervisor.Unit
	for _, svc := range ctrl.Topology().StartOrder() {
		if !svc.Enabled {
			continue
		}
		spec, err := ctrl.RunSpec(svc.Role, false)
		if err != nil {
			return nil, err
		}
		units = append(units, supervisor.Unit{Label: svc.Name, Spec: spec, StopSignal: svc.StopSignal})
	}
	return units, nil
}

func newLogsCommand(app *App) *cobra.Command {
	var opts container.LogsOptions

	cmd := &cobra.Command{
		Use:   "logs [suricata|evebox]",
		Short: "Show container logs",
		Long: `Show container logs.

Without an argument the logs of every enabled container are interleaved.`,
		Example: `  # Follow both containers
  simplensm logs -f

  # Last 100 lines of Suricata
  simplensm logs suricata --tail 100`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(service.RoleSuricata), string(service.RoleEveBox)},
		RunE: app.runE(func(cmd *cobra.Command, args []string) error {
			sess, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}

			roles, err := logRoles(sess.controller.Topology(), args)
			if err != nil {
				return err
			}

			sources := make([]supervisor.LogSource, 0, len(roles))
			for _, role := range roles {
				logsCmd, err := sess.controller.LogsCommand(cmd.Context(), role, opts)
				if err != nil {
					return err
				}
				svc, _ := sess.controller.Topology().Service(role)
				sources = append(sources, supervisor.LogSource{Label: svc.Name, Cmd: logsCmd})
			}

			return supervisor.Follow(app.stdout, sources, supervisor.WithLabelStyle(supervisorLabelStyle))
		}),
	}

	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "follow log output")
	cmd.Flags().IntVar(&opts.Tail, "tail", 0, "number of lines to show from the end of the logs (0 for all)")

	return cmd
}

// logRoles resolves the optional role argument. No argument selects every
// enabled service.
func logRoles(topology *service.Topology, args []string) ([]service.Role, error) {
	if len(args) == 1 {
		role, err := service.ParseRole(args[0])
		if err != nil {
			return nil, err
		}
		return []service.Role{role}, nil
	}

	var roles []service.Role
	for _, svc := range topology.StartOrder() {
		if svc.Enabled {
			roles = append(roles, svc.Role)
		}
	}
	return roles, nil
}
