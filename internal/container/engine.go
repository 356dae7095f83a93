// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

const (
	EngineTypeDocker EngineType = "docker"
	EngineTypePodman EngineType = "podman"
)

var (
	// ErrEngineLaunch is wrapped by LaunchError when the engine binary could not be started.
	ErrEngineLaunch = errors.New("container engine failed to launch")

	// ErrEngineCommand is wrapped by CommandError when the engine exited non-zero.
	ErrEngineCommand = errors.New("container engine command failed")

	// ErrEngineVersionTooOld is wrapped by ErrEngineNotAvailable when the
	// installed engine is older than the minimum supported version.
	ErrEngineVersionTooOld = errors.New("container engine version too old")

	// ErrNotAContainer is returned by InspectState when the name resolves to
	// something other than a container (usually an image).
	ErrNotAContainer = errors.New("not a container")

	// ErrUnexpectedEngineBehavior is returned when engine output does not have
	// the expected shape (empty inspect array, missing version field, bad JSON).
	ErrUnexpectedEngineBehavior = errors.New("unexpected container engine behavior")
)

type (
	// EngineType identifies the container engine type
	EngineType string

	// Engine defines the operations the lifecycle code needs from a container
	// engine. DockerEngine and PodmanEngine implement it on top of their CLIs.
	Engine interface {
		// Name returns the engine name (docker or podman)
		Name() string
		// Type returns the engine variant.
		Type() EngineType
		// BinaryPath returns the resolved path of the engine executable.
		BinaryPath() string
		// Version returns the engine version reported by `version --format {{json .}}`.
		Version(ctx context.Context) (string, error)

		// SupportsStopSignal reports whether Stop honors a custom signal.
		SupportsStopSignal() bool
		// SupportsRestartPolicy reports whether --restart survives a host reboot.
		SupportsRestartPolicy() bool
		// RequiresPrivilege reports whether containers must run with --privileged
		// on this host. It is re-derived on every call.
		RequiresPrivilege() bool

		// NewRun starts a run invocation for image.
		NewRun(image string) *RunBuilder
		// Run executes a detached RunSpec and returns the new container ID.
		Run(ctx context.Context, spec *RunSpec) (string, error)
		// RunAttached executes a RunSpec wired to the given stdio and waits for it.
		RunAttached(ctx context.Context, spec *RunSpec, stdio Stdio) error
		// Exec runs a command inside a running container.
		Exec(ctx context.Context, name string, command []string, opts ExecOptions) error
		// Stop stops a container. Engines without SupportsStopSignal ignore signal.
		Stop(ctx context.Context, name, signal string) error
		// QuietRemove force-removes a container, swallowing every failure.
		QuietRemove(ctx context.Context, name string)
		// InspectState returns the current state of a container.
		InspectState(ctx context.Context, name string) (*InspectState, error)
		// ContainerExists reports whether InspectState succeeds for name.
		ContainerExists(ctx context.Context, name string) bool
		// HasImage reports whether image is present locally.
		HasImage(ctx context.Context, image string) bool
		// Pull pulls an image.
		Pull(ctx context.Context, image string) error
		// LogsCommand returns an unstarted command streaming a container's logs.
		LogsCommand(ctx context.Context, name string, opts LogsOptions) *exec.Cmd
	}

	// InspectState is a snapshot of a container's state. It is never cached.
	InspectState struct {
		Status  string `json:"Status"`
		Running bool   `json:"Running"`
	}

	// Stdio groups the standard streams for attached commands.
	// Nil fields leave the corresponding stream unconnected.
	Stdio struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// ExecOptions contains options for running a command in a container
	ExecOptions struct {
		Stdio
		// Interactive keeps stdin open and allocates a TTY.
		Interactive bool
		// Env contains environment variables in KEY=VALUE form.
		Env []string
	}

	// LogsOptions contains options for streaming container logs.
	LogsOptions struct {
		Follow bool
		// Tail limits output to the last N lines; zero means all.
		Tail int
	}

	// ProbeOptions controls engine selection.
	ProbeOptions struct {
		// DisableDocker skips Docker and goes straight to Podman.
		DisableDocker bool
		// DisablePodman skips the Podman fallback.
		DisablePodman bool
		// EngineOptions are applied to every engine that is probed.
		EngineOptions []BaseCLIEngineOption
	}

	// ErrEngineNotAvailable is returned when a container engine is not available
	ErrEngineNotAvailable struct {
		Engine string
		Reason string
		Cause  error
	}

	// LaunchError is the failure shape for an engine process that never started.
	LaunchError struct {
		Engine string
		Args   []string
		Err    error
	}

	// CommandError is the failure shape for an engine process that exited non-zero.
	// Stderr carries the engine's own explanation.
	CommandError struct {
		Engine   string
		Args     []string
		ExitCode int
		Stderr   string
	}
)

func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrEngineNotAvailable) Unwrap() error { return e.Cause }

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s %s: %v", e.Engine, subcommand(e.Args), e.Err)
}

// Unwrap returns both ErrEngineLaunch and the exec error.
func (e *LaunchError) Unwrap() []error { return []error{ErrEngineLaunch, e.Err} }

// Error returns the engine's stderr, falling back to the exit status.
func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("%s %s: %s", e.Engine, subcommand(e.Args), msg)
}

// Unwrap returns ErrEngineCommand for errors.Is() compatibility.
func (e *CommandError) Unwrap() error { return ErrEngineCommand }

// Probe selects the container engine to use. Docker is tried first unless
// disabled, then Podman. An engine is usable only when its binary is on PATH
// and its version query returns JSON with a version field; Podman must also
// meet the minimum version.
func Probe(ctx context.Context, opts ProbeOptions) (Engine, error) {
	var errs []error

	if !opts.DisableDocker {
		docker := NewDockerEngine(opts.EngineOptions...)
		err := probeEngine(ctx, docker)
		if err == nil {
			return docker, nil
		}
		errs = append(errs, err)
	}

	if !opts.DisablePodman {
		podman := NewPodmanEngine(opts.EngineOptions...)
		err := probeEngine(ctx, podman)
		if err == nil {
			return podman, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 1 {
		return nil, errs[0]
	}
	return nil, &ErrEngineNotAvailable{
		Engine: "any",
		Reason: "no usable container engine (docker or podman) was found",
		Cause:  errors.Join(errs...),
	}
}

// versionChecker is implemented by engines that enforce a minimum version.
type versionChecker interface {
	checkVersion(version string) error
}

func probeEngine(ctx context.Context, e Engine) error {
	if e.BinaryPath() == "" {
		return &ErrEngineNotAvailable{Engine: e.Name(), Reason: "executable not found in PATH"}
	}
	version, err := e.Version(ctx)
	if err != nil {
		return &ErrEngineNotAvailable{Engine: e.Name(), Reason: "version query failed", Cause: err}
	}
	if vc, ok := e.(versionChecker); ok {
		if err := vc.checkVersion(version); err != nil {
			return &ErrEngineNotAvailable{Engine: e.Name(), Reason: err.Error(), Cause: err}
		}
	}
	return nil
}

// decodeVersion extracts <section>.Version from `version --format {{json .}}` output.
func decodeVersion(out []byte, section string) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		return "", fmt.Errorf("%w: version output is not JSON: %w", ErrUnexpectedEngineBehavior, err)
	}
	raw, ok := doc[section]
	if !ok {
		return "", fmt.Errorf("%w: version output has no %s section", ErrUnexpectedEngineBehavior, section)
	}
	var info struct {
		Version string `json:"Version"`
	}
	if err := json.Unmarshal(raw, &info); err != nil || info.Version == "" {
		return "", fmt.Errorf("%w: version output has no %s.Version field", ErrUnexpectedEngineBehavior, section)
	}
	return info.Version, nil
}

func subcommand(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
