// SPDX-License-Identifier: MPL-2.0

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/simplensm/simplensm/internal/config"
	"github.com/simplensm/simplensm/internal/container"
)

const (
	// StateAbsent means no container with the service's name exists.
	StateAbsent State = iota
	// StateStarting covers removal of a stale container and the run call.
	StateStarting
	// StateRunning means the run call succeeded.
	StateRunning
	// StateStopping covers the stop and remove calls.
	StateStopping

	defaultLocaltimePath = "/etc/localtime"

	// bindDirMode is applied to host directories backing bind mounts.
	// The setgid bit keeps files written by the containers in the directory's group.
	bindDirMode = os.ModeSetgid | 0o750
)

var (
	// ErrNoInterface is returned when Suricata is started without a capture interface.
	ErrNoInterface = errors.New("no capture interface configured")

	// ErrServiceDisabled is returned when an operation targets a disabled service.
	ErrServiceDisabled = errors.New("service is disabled")
)

type (
	// State is the lifecycle state of one service as seen by the controller.
	State int

	// Controller sequences the lifecycle of the two managed containers.
	// Operations are sequential; the controller holds no container state of
	// its own and re-queries the engine whenever it needs to know something.
	Controller struct {
		engine   container.Engine
		cfg      *config.Config
		topology *Topology
		logger   *log.Logger

		workDir string
		// localtime is bind-mounted read-only into both containers when it exists.
		localtime     string
		readyTimeout  time.Duration
		readyInterval time.Duration
	}

	// ControllerOption configures a Controller.
	ControllerOption func(*Controller)

	// ServiceStatus is the outcome of querying one service.
	ServiceStatus struct {
		Role  Role
		Name  string
		Image string
		// Disabled services are reported but never queried.
		Disabled     bool
		ImagePresent bool
		State        *container.InspectState
		Err          error
		// LastLog is the most recent line of Suricata's container log, empty
		// when the container does not exist or logged nothing.
		LastLog string
	}

	// StatusReport collects the status of every service.
	StatusReport struct {
		Engine   string
		Services []ServiceStatus
	}
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// WithLogger sets the logger used for state transitions and non-fatal failures.
func WithLogger(logger *log.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithWorkDir sets the directory searched for enable.conf and disable.conf.
func WithWorkDir(dir string) ControllerOption {
	return func(c *Controller) {
		c.workDir = dir
	}
}

// WithReadyTimeout bounds the wait for Suricata to report running before
// log rotation is started.
func WithReadyTimeout(timeout, interval time.Duration) ControllerOption {
	return func(c *Controller) {
		c.readyTimeout = timeout
		c.readyInterval = interval
	}
}

// NewController creates a controller for the topology described by cfg.
func NewController(engine container.Engine, cfg *config.Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		engine:        engine,
		cfg:           cfg,
		topology:      NewTopology(cfg),
		logger:        log.New(io.Discard),
		workDir:       ".",
		localtime:     defaultLocaltimePath,
		readyTimeout:  container.DefaultReadyTimeout,
		readyInterval: container.DefaultReadyInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engine returns the container engine the controller drives.
func (c *Controller) Engine() container.Engine { return c.engine }

// Topology returns the managed services.
func (c *Controller) Topology() *Topology { return c.topology }

// RunSpec builds the run invocation for role. Detached specs carry the
// restart policy; attached ones are what the foreground supervisor runs.
func (c *Controller) RunSpec(role Role, detached bool) (*container.RunSpec, error) {
	svc, err := c.topology.Service(role)
	if err != nil {
		return nil, err
	}

	b := c.engine.NewRun(svc.Image).Name(svc.Name)
	if detached {
		b.Detached()
		if c.cfg.StartOnBoot && c.engine.SupportsRestartPolicy() {
			b.Restart(container.RestartPolicyUnlessStopped)
		}
	}
	b.Privileged(c.engine.RequiresPrivilege())

	switch role {
	case RoleSuricata:
		if c.cfg.Suricata.Interface == "" {
			return nil, ErrNoInterface
		}
		b.Network("host").CapAdd("sys_nice", "net_admin", "net_raw")
		c.addVolumes(b, svc)
		for _, v := range c.ruleConfigMounts() {
			b.Volume(v)
		}
		b.Args("-k", "none", "-i", c.cfg.Suricata.Interface)
		if c.cfg.Suricata.BPF != "" {
			b.Args(c.cfg.Suricata.BPF)
		}
	case RoleEveBox:
		hostIP := "127.0.0.1"
		if c.cfg.EveBox.AllowRemote {
			hostIP = "0.0.0.0"
		}
		b.Publish(container.PortMapping{HostIP: hostIP, HostPort: EveBoxPort, ContainerPort: EveBoxPort})
		c.addVolumes(b, svc)
		b.Args("evebox", "server", "-D", eveBoxDataDir, "--datastore", "sqlite",
			"--input", suricataLogDir+"/eve.json")
		if c.cfg.EveBox.NoTLS {
			b.Args("--no-tls")
		}
		if c.cfg.EveBox.NoAuth {
			b.Args("--no-auth")
		}
	}

	spec, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid %s container: %w", svc.Role, err)
	}
	return spec, nil
}

func (c *Controller) addVolumes(b *container.RunBuilder, svc Service) {
	if _, err := os.Stat(c.localtime); err == nil {
		b.Volume(container.VolumeMount{Source: c.localtime, Target: "/etc/localtime", ReadOnly: true})
	}
	for _, v := range svc.Volumes {
		b.Volume(v)
	}
}

// Start starts Suricata and then EveBox when it is enabled. A failure to
// start one service does not prevent an attempt at the other.
func (c *Controller) Start(ctx context.Context) error {
	var errs []error
	for _, svc := range c.topology.StartOrder() {
		if !svc.Enabled {
			c.logger.Debug("service disabled, not starting", "service", svc.Role)
			continue
		}
		if err := c.StartService(ctx, svc.Role); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartService replaces any existing container for role with a fresh detached one.
func (c *Controller) StartService(ctx context.Context, role Role) error {
	svc, err := c.topology.Service(role)
	if err != nil {
		return err
	}
	if !svc.Enabled {
		return fmt.Errorf("%s: %w", svc.Role, ErrServiceDisabled)
	}

	spec, err := c.RunSpec(role, true)
	if err != nil {
		return fmt.Errorf("%s: %w", svc.Role, err)
	}

	c.transition(svc, StateAbsent, StateStarting)
	if c.engine.ContainerExists(ctx, svc.Name) {
		c.logger.Debug("removing existing container", "container", svc.Name)
		c.engine.QuietRemove(ctx, svc.Name)
	}
	c.ensureBindDirs(svc)

	c.logger.Debug("running container", "command", spec.String())
	id, err := c.engine.Run(ctx, spec)
	if err != nil {
		c.transition(svc, StateStarting, StateAbsent)
		return fmt.Errorf("failed to start %s: %w", svc.Role, err)
	}
	c.transition(svc, StateStarting, StateRunning)
	c.logger.Info("service started", "service", svc.Role, "container", svc.Name, "id", shortID(id))

	if role == RoleSuricata {
		if err := c.StartLogRotation(ctx); err != nil {
			c.logger.Warn("log rotation not started", "service", svc.Role, "error", err)
		}
	}
	return nil
}

// StartLogRotation waits briefly for Suricata to report running, then
// starts crond inside it. Callers treat failure as non-fatal.
func (c *Controller) StartLogRotation(ctx context.Context) error {
	name := c.topology.Suricata.Name
	if err := container.WaitRunning(ctx, c.engine, name, c.readyTimeout, c.readyInterval); err != nil {
		return err
	}
	if err := c.engine.Exec(ctx, name, []string{"crond"}, container.ExecOptions{}); err != nil {
		return fmt.Errorf("failed to start crond: %w", err)
	}
	c.logger.Debug("log rotation started", "container", name)
	return nil
}

// Stop stops EveBox and then Suricata. Each existing container is stopped
// and then removed; removal happens even if the stop failed.
func (c *Controller) Stop(ctx context.Context) error {
	order := c.topology.StartOrder()
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := c.StopService(ctx, order[i].Role); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopService stops and removes the container for role if it exists.
// Disabled services are still stopped so that disabling EveBox and
// stopping leaves nothing behind.
func (c *Controller) StopService(ctx context.Context, role Role) error {
	svc, err := c.topology.Service(role)
	if err != nil {
		return err
	}
	if !c.engine.ContainerExists(ctx, svc.Name) {
		c.logger.Debug("container does not exist, nothing to stop", "container", svc.Name)
		return nil
	}

	c.transition(svc, StateRunning, StateStopping)
	stopErr := c.engine.Stop(ctx, svc.Name, svc.StopSignal)
	if stopErr != nil {
		c.logger.Error("failed to stop container", "container", svc.Name, "error", stopErr)
	}
	c.engine.QuietRemove(ctx, svc.Name)
	c.transition(svc, StateStopping, StateAbsent)

	if stopErr != nil {
		return fmt.Errorf("failed to stop %s: %w", svc.Role, stopErr)
	}
	c.logger.Info("service stopped", "service", svc.Role, "container", svc.Name)
	return nil
}

// Restart stops every service and starts them again. Start is attempted
// even when stopping failed.
func (c *Controller) Restart(ctx context.Context) error {
	stopErr := c.Stop(ctx)
	startErr := c.Start(ctx)
	return errors.Join(stopErr, startErr)
}

// Status queries every enabled service independently.
func (c *Controller) Status(ctx context.Context) *StatusReport {
	report := &StatusReport{Engine: c.engine.Name()}
	for _, svc := range c.topology.StartOrder() {
		st := ServiceStatus{Role: svc.Role, Name: svc.Name, Image: svc.Image}
		if !svc.Enabled {
			st.Disabled = true
			report.Services = append(report.Services, st)
			continue
		}
		st.ImagePresent = c.engine.HasImage(ctx, svc.Image)
		st.State, st.Err = c.engine.InspectState(ctx, svc.Name)
		if svc.Role == RoleSuricata && st.Err == nil {
			st.LastLog = c.lastLogLine(ctx, svc.Name)
		}
		report.Services = append(report.Services, st)
	}
	return report
}

// lastLogLine returns the last line the container logged. The engine
// replays the container's stderr on its own stderr, which takes precedence.
func (c *Controller) lastLogLine(ctx context.Context, name string) string {
	cmd := c.engine.LogsCommand(ctx, name, container.LogsOptions{Tail: 1})
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		c.logger.Debug("failed to read container log", "container", name, "error", err)
		return ""
	}
	for _, out := range []string{stderr.String(), stdout.String()} {
		if line := strings.TrimSpace(out); line != "" {
			return line[strings.LastIndexByte(line, '\n')+1:]
		}
	}
	return ""
}

// Degraded reports whether the engine failed to answer for any queried
// service. A container that does not exist is reported as not running and
// does not degrade the report.
func (r *StatusReport) Degraded() bool {
	for _, s := range r.Services {
		if s.queryFailed() {
			return true
		}
	}
	return false
}

// queryFailed is true when inspect failed for a reason other than the
// engine rejecting the lookup, e.g. a missing container.
func (s ServiceStatus) queryFailed() bool {
	return s.Err != nil && !errors.Is(s.Err, container.ErrEngineCommand)
}

// Running reports whether the service was inspected and is running.
func (s ServiceStatus) Running() bool {
	return s.Err == nil && s.State != nil && s.State.Running
}

// Summary is a one-word description of the service state.
func (s ServiceStatus) Summary() string {
	switch {
	case s.Disabled:
		return "disabled"
	case s.queryFailed():
		return "unknown"
	case s.Err != nil:
		return "not running"
	case s.State.Running:
		return "running"
	case s.State.Status != "":
		return s.State.Status
	default:
		return "not running"
	}
}

func (c *Controller) transition(svc Service, from, to State) {
	c.logger.Debug("service state", "service", svc.Role, "from", from, "to", to)
}

// ensureBindDirs creates host directories for bind-mounted volumes. Docker
// creates missing sources itself; Podman refuses to, so failures are logged.
func (c *Controller) ensureBindDirs(svc Service) {
	for _, v := range svc.Volumes {
		if !v.IsBindMount() || v.ReadOnly {
			continue
		}
		if err := ensureDir(v.Source); err != nil {
			c.logger.Warn("failed to create data directory", "path", v.Source, "error", err)
		}
	}
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, bindDirMode.Perm()); err != nil {
		return err
	}
	// MkdirAll is subject to the umask and never sets setgid.
	return os.Chmod(path, bindDirMode)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
