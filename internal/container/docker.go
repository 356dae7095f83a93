// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
)

// defaultStopSignal is what Docker sends when no signal is requested.
const defaultStopSignal = "SIGTERM"

// DockerEngine implements the Engine interface using Docker CLI.
// It embeds BaseCLIEngine for common CLI operations.
type DockerEngine struct {
	*BaseCLIEngine
}

// NewDockerEngine creates a new Docker engine.
func NewDockerEngine(opts ...BaseCLIEngineOption) *DockerEngine {
	path, _ := lookPath("docker")
	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypeDocker))}, opts...)
	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Type returns EngineTypeDocker.
func (e *DockerEngine) Type() EngineType {
	return EngineTypeDocker
}

// Version returns the Docker server version.
func (e *DockerEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommand(ctx, "version", "--format", "{{json .}}")
	if err != nil {
		return "", fmt.Errorf("failed to get docker version: %w", err)
	}
	return decodeVersion(out, "Server")
}

// SupportsStopSignal is true: docker stop accepts --signal.
func (e *DockerEngine) SupportsStopSignal() bool { return true }

// SupportsRestartPolicy is true: the Docker daemon restarts containers on boot.
func (e *DockerEngine) SupportsRestartPolicy() bool { return true }

// RequiresPrivilege reports whether this host needs --privileged containers.
// Raspberry Pi OS ships a seccomp/capability setup under which Suricata and
// EveBox fail without it. The os-release file is re-read on every call.
func (e *DockerEngine) RequiresPrivilege() bool {
	return hostNeedsPrivilege(osReleasePath)
}

// Stop stops a container with the given signal (SIGTERM when empty).
func (e *DockerEngine) Stop(ctx context.Context, name, signal string) error {
	if signal == "" {
		signal = defaultStopSignal
	}
	return e.RunCommandStatus(ctx, "stop", "--signal="+signal, name)
}

// QuietRemove force-removes a container and ignores any failure.
func (e *DockerEngine) QuietRemove(ctx context.Context, name string) {
	_ = e.RunCommandStatus(ctx, "rm", "-f", name)
}

// HasImage checks if an image exists locally.
func (e *DockerEngine) HasImage(ctx context.Context, image string) bool {
	return e.RunCommandStatus(ctx, "image", "inspect", image) == nil
}
