// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/mod/semver"
)

// podmanMinVersion is the oldest Podman whose run/stop flags we rely on.
const podmanMinVersion = "v4.6"

// PodmanEngine implements the Engine interface using Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
// On Linux with SELinux enabled, bind mounts are automatically labeled with :z.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := lookPath("podman")

	e := &PodmanEngine{}
	// Podman needs SELinux volume labels on Linux (prepend to user options)
	allOpts := append([]BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(func(v VolumeMount) VolumeMount {
			return addSELinuxLabel(v, e.selinuxCheck)
		}),
	}, opts...)
	e.BaseCLIEngine = NewBaseCLIEngine(path, allOpts...)
	return e
}

// Type returns EngineTypePodman.
func (e *PodmanEngine) Type() EngineType {
	return EngineTypePodman
}

// Version returns the Podman client version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommand(ctx, "version", "--format", "{{json .}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return decodeVersion(out, "Client")
}

// checkVersion rejects Podman releases older than 4.6.
func (e *PodmanEngine) checkVersion(version string) error {
	v := "v" + strings.TrimPrefix(strings.TrimSpace(version), "v")
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: cannot parse podman version %q", ErrUnexpectedEngineBehavior, version)
	}
	if semver.Compare(semver.MajorMinor(v), podmanMinVersion) < 0 {
		return fmt.Errorf("%w: podman %s is older than the minimum supported %s",
			ErrEngineVersionTooOld, version, strings.TrimPrefix(podmanMinVersion, "v"))
	}
	return nil
}

// SupportsStopSignal is false: podman stop always uses the image's stop signal.
func (e *PodmanEngine) SupportsStopSignal() bool { return false }

// SupportsRestartPolicy is false: without a daemon, boot restarts need systemd units.
func (e *PodmanEngine) SupportsRestartPolicy() bool { return false }

// RequiresPrivilege is always false for Podman.
func (e *PodmanEngine) RequiresPrivilege() bool { return false }

// Stop stops a container. The signal is ignored.
func (e *PodmanEngine) Stop(ctx context.Context, name, _ string) error {
	return e.RunCommandStatus(ctx, "stop", name)
}

// QuietRemove removes a container with --force, which Podman needs to remove
// a container that is still running, and --ignore so a missing one is not an error.
func (e *PodmanEngine) QuietRemove(ctx context.Context, name string) {
	_ = e.RunCommandStatus(ctx, "rm", "--force", "--ignore", name)
}

// HasImage checks if an image exists locally.
func (e *PodmanEngine) HasImage(ctx context.Context, image string) bool {
	return e.RunCommandStatus(ctx, "image", "exists", image) == nil
}

// isSELinuxEnabled checks if SELinux is enabled on the system
func isSELinuxEnabled() bool {
	// Check /sys/fs/selinux/enforce for SELinux status
	data, err := os.ReadFile("/sys/fs/selinux/enforce")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// addSELinuxLabel adds the :z label to a bind mount if SELinux is enabled and
// the mount has no label yet. Named volumes are labeled by Podman itself.
func addSELinuxLabel(v VolumeMount, enabled SELinuxCheckFunc) VolumeMount {
	if !v.IsBindMount() || v.SELinux != SELinuxLabelNone {
		return v
	}
	if enabled == nil || !enabled() {
		return v
	}
	v.SELinux = SELinuxLabelShared
	return v
}
