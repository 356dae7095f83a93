// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/simplensm/simplensm/internal/container"
	"github.com/simplensm/simplensm/internal/issue"
	"github.com/simplensm/simplensm/internal/selfupdate"
)

func TestUpdateCommand_SelfOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		result selfupdate.Result
		want   string
	}{
		{selfupdate.ResultSkipped, "Not a release build, skipping self-update"},
		{selfupdate.ResultUpToDate, "simplensm is up to date"},
		{selfupdate.ResultUpdated, "simplensm updated, please restart"},
	}

	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			t.Parallel()

			updater := &fakeUpdater{result: tt.result}
			app, stdout, _ := newTestApp(t, Dependencies{
				Probe:      failingProbe(t),
				NewUpdater: updater.factory,
			})

			if err := executeRoot(t, app, "update", "--self-only"); err != nil {
				t.Fatalf("update --self-only error: %v", err)
			}
			if updater.calls != 1 {
				t.Errorf("updater called %d times, want 1", updater.calls)
			}
			if !strings.Contains(stdout.String(), tt.want) {
				t.Errorf("stdout = %q, want it to contain %q", stdout.String(), tt.want)
			}
			if strings.Contains(stdout.String(), "Pulling container images") {
				t.Error("--self-only must not pull images")
			}
		})
	}
}

func TestUpdateCommand_SelfUpdateFailure(t *testing.T) {
	t.Parallel()

	mismatch := &selfupdate.ChecksumError{Filename: "simplensm", Expected: strings.Repeat("a", 64), Got: strings.Repeat("b", 64)}
	updater := &fakeUpdater{result: selfupdate.ResultFailed, err: fmt.Errorf("verifying download: %w", mismatch)}
	app, _, stderr := newTestApp(t, Dependencies{
		Probe:      failingProbe(t),
		NewUpdater: updater.factory,
	})

	err := executeRoot(t, app, "update", "--self-only")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("update error = %v, want *ExitError with code 1", err)
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.IssueID != issue.ChecksumMismatchId {
		t.Errorf("error = %v, want ServiceError with the checksum issue", err)
	}
	if !strings.Contains(stderr.String(), "checksum") {
		t.Errorf("stderr should report the checksum mismatch:\n%s", stderr.String())
	}
}

func TestUpdateCommand_ImagesOnlyWithoutEngine(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{result: selfupdate.ResultUpdated}
	app, _, _ := newTestApp(t, Dependencies{
		Probe:      engineProbe(nil, &container.ErrEngineNotAvailable{Engine: "any", Reason: "none found"}, nil),
		NewUpdater: updater.factory,
	})

	err := executeRoot(t, app, "update", "--images-only")

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.IssueID != issue.ContainerEngineNotFoundId {
		t.Errorf("error = %v, want ServiceError with the engine-not-found issue", err)
	}
	if updater.calls != 0 {
		t.Errorf("--images-only must not self-update (called %d times)", updater.calls)
	}
}

func TestUpdateCommand_FlagsMutuallyExclusive(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{result: selfupdate.ResultUpdated}
	app, _, _ := newTestApp(t, Dependencies{
		Probe:      failingProbe(t),
		NewUpdater: updater.factory,
	})

	if err := executeRoot(t, app, "update", "--images-only", "--self-only"); err == nil {
		t.Fatal("--images-only together with --self-only should be rejected")
	}
	if updater.calls != 0 {
		t.Errorf("updater called %d times, want 0", updater.calls)
	}
}

func TestUpdateError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"checksum mismatch", &selfupdate.ChecksumError{Filename: "simplensm", Expected: "a", Got: "b"}, issue.ChecksumMismatchId},
		{"permission denied", fmt.Errorf("replacing binary: %w", os.ErrPermission), issue.PermissionDeniedId},
		{"download failed", &selfupdate.StatusError{StatusCode: 502}, issue.UpdateDownloadFailedId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var svcErr *ServiceError
			if !errors.As(updateError(tt.err), &svcErr) {
				t.Fatal("updateError() should return a *ServiceError")
			}
			if svcErr.IssueID != tt.want {
				t.Errorf("IssueID = %d, want %d", svcErr.IssueID, tt.want)
			}
		})
	}
}
