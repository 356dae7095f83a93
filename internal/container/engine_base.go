// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

const (
	// PortProtocolTCP is the TCP transport protocol for port mappings.
	PortProtocolTCP PortProtocol = "tcp"
	// PortProtocolUDP is the UDP transport protocol for port mappings.
	PortProtocolUDP PortProtocol = "udp"

	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"

	// RestartPolicyNone leaves the engine default (no restart).
	RestartPolicyNone RestartPolicy = ""
	// RestartPolicyUnlessStopped restarts the container on boot unless it was stopped explicitly.
	RestartPolicyUnlessStopped RestartPolicy = "unless-stopped"

	// maxCapturedStderr bounds how much engine stderr is kept for error messages.
	maxCapturedStderr = 64 << 10
)

var (
	// ErrInvalidPortProtocol is the sentinel error wrapped by InvalidPortProtocolError.
	ErrInvalidPortProtocol = errors.New("invalid port protocol")

	// ErrInvalidNetworkPort is the sentinel error wrapped by InvalidNetworkPortError.
	ErrInvalidNetworkPort = errors.New("invalid network port")

	// ErrInvalidVolumeMount is the sentinel error wrapped by InvalidVolumeMountError.
	ErrInvalidVolumeMount = errors.New("invalid volume mount")

	// ErrInvalidHostIP is returned when a PortMapping binds a host name or
	// a malformed address.
	ErrInvalidHostIP = errors.New("invalid host address")

	//nolint:gochecknoglobals // Test seam for exec.LookPath().
	lookPath = exec.LookPath

	// Engines accept [a-zA-Z0-9][a-zA-Z0-9_.-]* as a volume name; anything
	// else that is not an absolute path is rejected.
	//
	//nolint:gochecknoglobals // compiled once, read-only
	volumeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc adjusts a volume mount before it is rendered.
	// Podman uses this to add SELinux labels to bind mounts.
	VolumeFormatFunc func(volume VolumeMount) VolumeMount

	// SELinuxCheckFunc is a function that checks if SELinux is enabled.
	// This allows injection of mock implementations for testing.
	SELinuxCheckFunc func() bool

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides common implementation for CLI-based container engines.
	// Docker and Podman engines embed this struct. Operations whose CLI form is
	// the same for both engines live here; dialect-specific ones (Version, Stop,
	// QuietRemove, HasImage) remain on the concrete types.
	BaseCLIEngine struct {
		name            string
		binaryPath      string
		execCommand     ExecCommandFunc
		volumeFormatter VolumeFormatFunc
		selinuxCheck    SELinuxCheckFunc
	}

	// PortProtocol represents a network transport protocol for port mappings.
	// The zero value ("") is valid and means "default to tcp".
	PortProtocol string

	// InvalidPortProtocolError is returned when a PortProtocol is not a recognized protocol.
	InvalidPortProtocolError struct {
		Value PortProtocol
	}

	// SELinuxLabel represents an SELinux volume labeling option.
	// The zero value ("") means no SELinux label is applied.
	SELinuxLabel string

	// NetworkPort represents a TCP/UDP port number for container port mappings.
	// A valid port must be greater than zero.
	NetworkPort uint16

	// InvalidNetworkPortError is returned when a NetworkPort value is zero.
	InvalidNetworkPortError struct {
		Value NetworkPort
	}

	// RestartPolicy is the value of the run --restart flag.
	RestartPolicy string

	// VolumeMount binds a named volume or an absolute host path (Source) to
	// a path inside the container (Target).
	VolumeMount struct {
		Source   string
		Target   string
		ReadOnly bool
		SELinux  SELinuxLabel
	}

	// PortMapping represents a port mapping specification.
	// An empty HostIP binds all interfaces.
	PortMapping struct {
		HostIP        string
		HostPort      NetworkPort
		ContainerPort NetworkPort
		Protocol      PortProtocol
	}

	// InvalidVolumeMountError is returned when a VolumeMount has one or more invalid fields.
	// It wraps the individual field validation errors for inspection.
	InvalidVolumeMountError struct {
		Value     VolumeMount
		FieldErrs []error
	}

	// inspectEntry is one element of the `inspect` JSON array. Images have no State.
	inspectEntry struct {
		State *InspectState `json:"State"`
	}

	// cappedBuffer keeps the first max bytes written to it and discards the rest.
	cappedBuffer struct {
		buf bytes.Buffer
		max int
	}
)

// Error implements the error interface.
func (e *InvalidPortProtocolError) Error() string {
	return fmt.Sprintf("invalid port protocol %q (valid: tcp, udp)", e.Value)
}

// Unwrap returns ErrInvalidPortProtocol so callers can use errors.Is for programmatic detection.
func (e *InvalidPortProtocolError) Unwrap() error { return ErrInvalidPortProtocol }

// Validate returns an error if the PortProtocol is not one of the defined protocols.
func (p PortProtocol) Validate() error {
	switch p {
	case PortProtocolTCP, PortProtocolUDP, "":
		return nil
	default:
		return &InvalidPortProtocolError{Value: p}
	}
}

// Validate returns an error if the NetworkPort is zero.
func (p NetworkPort) Validate() error {
	if p == 0 {
		return &InvalidNetworkPortError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidNetworkPortError.
func (e *InvalidNetworkPortError) Error() string {
	return fmt.Sprintf("invalid network port %d: must be greater than zero", e.Value)
}

// Unwrap returns ErrInvalidNetworkPort for errors.Is() compatibility.
func (e *InvalidNetworkPortError) Unwrap() error { return ErrInvalidNetworkPort }

// Error implements the error interface for InvalidVolumeMountError.
func (e *InvalidVolumeMountError) Error() string {
	return fmt.Sprintf("invalid volume mount %s:%s: %v", e.Value.Source, e.Value.Target, errors.Join(e.FieldErrs...))
}

// Unwrap returns ErrInvalidVolumeMount for errors.Is() compatibility.
func (e *InvalidVolumeMountError) Unwrap() error { return ErrInvalidVolumeMount }

// Validate returns an error if Source is neither a volume name nor an
// absolute path, Target is relative, or the SELinux label is unknown.
// A relative data_directory ends up here as a relative Source.
func (v VolumeMount) Validate() error {
	var errs []error
	switch {
	case strings.TrimSpace(v.Source) == "":
		errs = append(errs, errors.New("source must be non-empty"))
	case !v.IsBindMount() && !volumeNamePattern.MatchString(v.Source):
		errs = append(errs, fmt.Errorf("source %q must be a volume name or an absolute path", v.Source))
	}
	if !strings.HasPrefix(v.Target, "/") {
		errs = append(errs, fmt.Errorf("target %q must be an absolute path", v.Target))
	}
	if v.SELinux != SELinuxLabelNone && v.SELinux != SELinuxLabelShared {
		errs = append(errs, fmt.Errorf("unknown SELinux label %q", v.SELinux))
	}
	if len(errs) > 0 {
		return &InvalidVolumeMountError{Value: v, FieldErrs: errs}
	}
	return nil
}

// IsBindMount reports whether Source is a host path rather than a named volume.
func (v VolumeMount) IsBindMount() bool {
	return strings.HasPrefix(v.Source, "/")
}

// String returns the volume mount in "source:target[:options]" format.
func (v VolumeMount) String() string {
	return FormatVolumeMount(v)
}

// Validate returns an error if HostIP is not an IP address or any port or
// protocol field is invalid.
func (p PortMapping) Validate() error {
	var errs []error
	if p.HostIP != "" && net.ParseIP(p.HostIP) == nil {
		errs = append(errs, fmt.Errorf("%w %q: not an IP address", ErrInvalidHostIP, p.HostIP))
	}
	if err := p.HostPort.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := p.ContainerPort.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := p.Protocol.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// String returns the port mapping in the form accepted by --publish.
func (p PortMapping) String() string {
	return FormatPortMapping(p)
}

// Write implements io.Writer, never failing.
func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.max - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *cappedBuffer) String() string { return c.buf.String() }

// --- Option Functions ---

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithBinaryPath overrides the engine executable resolved from PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
// This is used by Podman to add SELinux labels on Linux.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithSELinuxCheck overrides SELinux detection.
func WithSELinuxCheck(fn SELinuxCheckFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.selinuxCheck = fn
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:      binaryPath,
		execCommand:     exec.CommandContext,
		volumeFormatter: func(v VolumeMount) VolumeMount { return v },
		selinuxCheck:    isSELinuxEnabled,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- Accessor Methods ---

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// ExecArgs constructs arguments for a container exec command.
//
// Generated command: <binary> exec [-i -t] [--env=K=V]... <container> <command...>
func (e *BaseCLIEngine) ExecArgs(name string, command []string, opts ExecOptions) []string {
	args := []string{"exec"}

	if opts.Interactive {
		args = append(args, "-i", "-t")
	}

	for _, kv := range opts.Env {
		args = append(args, "--env="+kv)
	}

	args = append(args, name)
	args = append(args, command...)

	return args
}

// LogsArgs constructs arguments for a container logs command.
//
// Generated command: <binary> logs --timestamps [--follow] [--tail=N] <container>
func (e *BaseCLIEngine) LogsArgs(name string, opts LogsOptions) []string {
	args := []string{"logs", "--timestamps"}
	if opts.Follow {
		args = append(args, "--follow")
	}
	if opts.Tail > 0 {
		args = append(args, "--tail="+strconv.Itoa(opts.Tail))
	}
	return append(args, name)
}

// --- Command Execution ---

// CreateCommand creates an exec.Cmd for the given arguments.
// This is useful when the caller needs to customize stdin/stdout/stderr.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// RunCommand executes a command and returns its stdout. Failures are
// reported as *LaunchError or *CommandError.
func (e *BaseCLIEngine) RunCommand(ctx context.Context, args ...string) ([]byte, error) {
	cmd := e.CreateCommand(ctx, args...)
	var stdout bytes.Buffer
	stderr := &cappedBuffer{max: maxCapturedStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), e.classify(args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	_, err := e.RunCommand(ctx, args...)
	return err
}

// runCommandWithStdio executes a command attached to stdio. Stderr is still
// captured for the error message when the caller does not consume it.
func (e *BaseCLIEngine) runCommandWithStdio(ctx context.Context, stdio Stdio, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	captured := &cappedBuffer{max: maxCapturedStderr}
	cmd.Stdin = stdio.Stdin
	cmd.Stdout = stdio.Stdout
	if stdio.Stderr != nil {
		cmd.Stderr = io.MultiWriter(stdio.Stderr, captured)
	} else {
		cmd.Stderr = captured
	}

	if err := cmd.Run(); err != nil {
		return e.classify(args, err, captured.String())
	}
	return nil
}

// classify maps an exec error onto the two failure shapes.
func (e *BaseCLIEngine) classify(args []string, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Engine:   e.name,
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr,
		}
	}
	return &LaunchError{Engine: e.name, Args: args, Err: err}
}

// --- Promoted Engine Methods (shared by Docker and Podman) ---

// NewRun starts a RunBuilder bound to this engine.
func (e *BaseCLIEngine) NewRun(image string) *RunBuilder {
	return newRunBuilder(e, image)
}

// Run executes a detached RunSpec and returns the container ID printed by the engine.
func (e *BaseCLIEngine) Run(ctx context.Context, spec *RunSpec) (string, error) {
	out, err := e.RunCommand(ctx, spec.args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// RunAttached executes a RunSpec attached to stdio and waits for it to exit.
func (e *BaseCLIEngine) RunAttached(ctx context.Context, spec *RunSpec, stdio Stdio) error {
	return e.runCommandWithStdio(ctx, stdio, spec.args...)
}

// Exec runs a command in a running container.
func (e *BaseCLIEngine) Exec(ctx context.Context, name string, command []string, opts ExecOptions) error {
	return e.runCommandWithStdio(ctx, opts.Stdio, e.ExecArgs(name, command, opts)...)
}

// InspectState returns the State object of the first entry of `inspect NAME`.
func (e *BaseCLIEngine) InspectState(ctx context.Context, name string) (*InspectState, error) {
	out, err := e.RunCommand(ctx, "inspect", name)
	if err != nil {
		return nil, err
	}
	return decodeInspectState(out)
}

// ContainerExists reports whether name is an existing container.
func (e *BaseCLIEngine) ContainerExists(ctx context.Context, name string) bool {
	_, err := e.InspectState(ctx, name)
	return err == nil
}

// Pull pulls an image.
func (e *BaseCLIEngine) Pull(ctx context.Context, image string) error {
	return e.RunCommandStatus(ctx, "pull", image)
}

// LogsCommand returns an unstarted command streaming the logs of name.
func (e *BaseCLIEngine) LogsCommand(ctx context.Context, name string, opts LogsOptions) *exec.Cmd {
	return e.CreateCommand(ctx, e.LogsArgs(name, opts)...)
}

func decodeInspectState(out []byte) (*InspectState, error) {
	var entries []inspectEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("%w: inspect output is not a JSON array: %w", ErrUnexpectedEngineBehavior, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: inspect returned an empty array", ErrUnexpectedEngineBehavior)
	}
	if entries[0].State == nil {
		return nil, ErrNotAContainer
	}
	return entries[0].State, nil
}

// --- Volume Mount Formatting ---

// FormatVolumeMount formats a volume mount as a string for the --volume flag.
func FormatVolumeMount(mount VolumeMount) string {
	var result strings.Builder
	result.WriteString(mount.Source)
	result.WriteString(":")
	result.WriteString(mount.Target)

	var options []string
	if mount.ReadOnly {
		options = append(options, "ro")
	}
	if mount.SELinux != "" {
		options = append(options, string(mount.SELinux))
	}

	if len(options) > 0 {
		result.WriteString(":")
		result.WriteString(strings.Join(options, ","))
	}

	return result.String()
}

// --- Port Mapping Formatting ---

// FormatPortMapping formats a port mapping for the --publish flag:
// [hostIP:]hostPort:containerPort[/udp].
func FormatPortMapping(mapping PortMapping) string {
	result := fmt.Sprintf("%d:%d", mapping.HostPort, mapping.ContainerPort)
	if mapping.HostIP != "" {
		result = mapping.HostIP + ":" + result
	}
	if mapping.Protocol != "" && mapping.Protocol != PortProtocolTCP {
		result += "/" + string(mapping.Protocol)
	}
	return result
}
