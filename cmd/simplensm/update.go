// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simplensm/simplensm/internal/issue"
	"github.com/simplensm/simplensm/internal/selfupdate"
)

// updateParams bundles the flags for the update command.
type updateParams struct {
	imagesOnly bool
	selfOnly   bool
}

// newUpdateCommand creates the `simplensm update` command, which pulls the
// container images and replaces the binary with the latest published build.
func newUpdateCommand(app *App) *cobra.Command {
	var p updateParams

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Pull the latest container images and update simplensm",
		Long: `Pull the latest container images and update simplensm.

The new binary is only installed after its SHA256 checksum matches the
published one. Running containers keep their current image until restarted.
Builds from source and go install builds are never replaced.`,
		Example: `  # Update images and simplensm
  simplensm update

  # Only pull images
  simplensm update --images-only`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd.Context(), app, p)
		}),
	}

	cmd.Flags().BoolVar(&p.imagesOnly, "images-only", false, "only pull container images")
	cmd.Flags().BoolVar(&p.selfOnly, "self-only", false, "only update the simplensm binary")
	cmd.MarkFlagsMutuallyExclusive("images-only", "self-only")

	return cmd
}

// runUpdate pulls images and self-updates. An image pull failure does not
// prevent the self-update; both failures are reported.
func runUpdate(ctx context.Context, app *App, p updateParams) error {
	cfg, logger, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	var errs []error
	if !p.selfOnly {
		sess, err := app.connect(ctx, cfg, logger)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.stdout, "Pulling container images...")
		if err := sess.controller.PullImages(ctx); err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓")+" Images up to date")
		}
	}

	if !p.imagesOnly {
		if err := selfUpdate(ctx, app, app.NewUpdater(cfg, logger)); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

func selfUpdate(ctx context.Context, app *App, updater SelfUpdater) error {
	result, err := updater.Update(ctx)
	if err != nil {
		return updateError(err)
	}

	switch result {
	case selfupdate.ResultSkipped:
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("Not a release build, skipping self-update"))
	case selfupdate.ResultUpToDate:
		fmt.Fprintln(app.stdout, SuccessStyle.Render("✓")+" simplensm is up to date")
	case selfupdate.ResultUpdated:
		fmt.Fprintln(app.stdout, SuccessStyle.Render("✓")+" simplensm updated, please restart")
	}
	return nil
}

// updateError attaches the matching issue guide to a self-update failure.
func updateError(err error) error {
	switch {
	case errors.Is(err, selfupdate.ErrChecksumMismatch):
		return newServiceError(err, issue.ChecksumMismatchId)
	case errors.Is(err, os.ErrPermission):
		return newServiceError(err, issue.PermissionDeniedId)
	default:
		return newServiceError(err, issue.UpdateDownloadFailedId)
	}
}
