// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simplensm/simplensm/internal/config"
	"github.com/simplensm/simplensm/internal/issue"
)

// newConfigCommand creates the `simplensm config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage simplensm configuration",
		Long: fmt.Sprintf(`Manage simplensm configuration.

Configuration is read from ./%s, or from the file named by --config or
$%s. Every key can be overridden with a %s_ environment variable, for
example %s_SURICATA_INTERFACE=eth1.`, config.ConfigFileName, config.ConfigPathEnv, config.EnvPrefix, config.EnvPrefix),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context(), app)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			return initConfig(app)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(app.stdout, config.ResolvePath(app.loadOptions()))
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Known keys:
  ` + strings.Join(config.KnownKeys(), "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: app.runE(func(cmd *cobra.Command, args []string) error {
			return setConfigValue(app, args[0], args[1])
		}),
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, _, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)

	path := config.ResolvePath(app.loadOptions())
	if fileExistsCheck(path) {
		fmt.Fprintf(app.stdout, "%s: %s\n", KeyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(app.stdout)

	content, err := config.GenerateTOML(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(app.stdout, content)
	return nil
}

func initConfig(app *App) error {
	path := config.ResolvePath(app.loadOptions())

	created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	if created {
		fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	} else {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", SubtitleStyle.Render("•"), path)
	}
	return nil
}

func setConfigValue(app *App, key, value string) error {
	path := config.ResolvePath(app.loadOptions())

	if _, err := config.Set(path, key, value); err != nil {
		if errors.Is(err, config.ErrUnknownKey) {
			return issue.NewErrorContext().
				WithOperation("set configuration value").
				WithResource(key).
				WithSuggestion("Known keys: " + strings.Join(config.KnownKeys(), ", ")).
				Wrap(err).
				BuildError()
		}
		return err
	}

	fmt.Fprintf(app.stdout, "%s %s = %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(key), value)
	return nil
}

// fileExistsCheck checks if a file exists and is not a directory.
func fileExistsCheck(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
