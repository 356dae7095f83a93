// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/simplensm/simplensm/internal/config"
	"github.com/simplensm/simplensm/internal/container"
	"github.com/simplensm/simplensm/internal/issue"
	"github.com/simplensm/simplensm/internal/selfupdate"
	"github.com/simplensm/simplensm/internal/service"
)

// ErrPodmanRequiresRoot is returned when Podman is selected by a non-root user.
// Suricata needs host networking and raw socket capabilities.
var ErrPodmanRequiresRoot = errors.New("the Podman container engine requires running as root")

type (
	// App wires CLI services and shared dependencies. It is the composition root
	// for the CLI layer; every Cobra command handler receives an App reference.
	App struct {
		Config     ConfigProvider
		Probe      EngineProber
		NewUpdater UpdaterFactory

		stdin   io.Reader
		stdout  io.Writer
		stderr  io.Writer
		geteuid func() int
		workDir string
		flags   globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     ConfigProvider
		Probe      EngineProber
		NewUpdater UpdaterFactory
		Stdin      io.Reader
		Stdout     io.Writer
		Stderr     io.Writer
		// Geteuid reports the effective user ID; Podman is only accepted for root.
		Geteuid func() int
		// WorkDir holds the rule update overrides (enable.conf, disable.conf).
		WorkDir string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// EngineProber selects the container engine.
	EngineProber func(ctx context.Context, opts container.ProbeOptions) (container.Engine, error)

	// SelfUpdater replaces the running binary.
	SelfUpdater interface {
		Update(ctx context.Context) (selfupdate.Result, error)
	}

	// UpdaterFactory builds the SelfUpdater for a loaded configuration.
	UpdaterFactory func(cfg *config.Config, logger *log.Logger) SelfUpdater

	// globalFlags holds the persistent root flags.
	globalFlags struct {
		configPath string
		verbose    bool
		podman     bool
	}

	// session is the per-command state: the loaded config and, for commands
	// that touch containers, the selected engine and its controller.
	session struct {
		cfg        *config.Config
		logger     *log.Logger
		engine     container.Engine
		controller *service.Controller
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Probe == nil {
		deps.Probe = container.Probe
	}
	if deps.NewUpdater == nil {
		deps.NewUpdater = newSelfUpdater
	}
	if deps.Geteuid == nil {
		deps.Geteuid = os.Geteuid
	}
	if deps.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			deps.WorkDir = wd
		} else {
			deps.WorkDir = "."
		}
	}

	return &App{
		Config:     deps.Config,
		Probe:      deps.Probe,
		NewUpdater: deps.NewUpdater,
		stdin:      deps.Stdin,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		geteuid:    deps.Geteuid,
		workDir:    deps.WorkDir,
	}
}

// newSelfUpdater is the production UpdaterFactory.
func newSelfUpdater(cfg *config.Config, logger *log.Logger) SelfUpdater {
	client := selfupdate.NewClient(
		selfupdate.WithBaseURL(cfg.Update.URL),
		selfupdate.WithUserAgent("simplensm/"+Version),
	)
	return selfupdate.NewUpdater(Version, selfupdate.WithClient(client), selfupdate.WithLogger(logger))
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}

// newLogger creates the process logger. Debug output is enabled by --verbose
// or ui.verbose.
func (a *App) newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{
		Prefix:          "simplensm",
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadConfig loads the configuration and creates the logger. The logger is
// returned even on failure so the caller can report the error.
func (a *App) loadConfig(ctx context.Context) (*config.Config, *log.Logger, error) {
	opts := a.loadOptions()
	cfg, err := a.Config.Load(ctx, opts)
	if err != nil {
		logger := a.newLogger(a.flags.verbose)
		// The file loader already explains its own failures.
		var ae *issue.ActionableError
		if !errors.As(err, &ae) {
			err = issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(config.ResolvePath(opts)).
				WithSuggestion("Run 'simplensm config init' to create a default configuration").
				Wrap(err).
				BuildError()
		}
		return nil, logger, newServiceError(err, issue.ConfigLoadFailedId)
	}
	return cfg, a.newLogger(a.flags.verbose || cfg.UI.Verbose), nil
}

// openSession loads the configuration and selects the container engine.
func (a *App) openSession(ctx context.Context) (*session, error) {
	cfg, logger, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return a.connect(ctx, cfg, logger)
}

// connect selects the container engine for an already loaded configuration.
func (a *App) connect(ctx context.Context, cfg *config.Config, logger *log.Logger) (*session, error) {
	engine, err := a.Probe(ctx, probeOptions(cfg, a.flags.podman))
	if err != nil {
		id := issue.ContainerEngineNotFoundId
		if errors.Is(err, container.ErrEngineVersionTooOld) {
			id = issue.EngineVersionTooOldId
		}
		return nil, newServiceError(err, id)
	}
	logger.Debug("found container engine", "engine", engine.Name(), "path", engine.BinaryPath())

	if engine.Type() == container.EngineTypePodman && a.geteuid() != 0 {
		return nil, newServiceError(ErrPodmanRequiresRoot, issue.PermissionDeniedId)
	}

	controller := service.NewController(engine, cfg,
		service.WithLogger(logger),
		service.WithWorkDir(a.workDir),
	)
	return &session{cfg: cfg, logger: logger, engine: engine, controller: controller}, nil
}

// probeOptions maps the engine preference to probe options. --podman wins
// over the config file.
func probeOptions(cfg *config.Config, podman bool) container.ProbeOptions {
	var opts container.ProbeOptions
	switch {
	case podman:
		opts.DisableDocker = true
	case cfg.Engine() == config.ContainerEngineDocker:
		opts.DisablePodman = true
	case cfg.Engine() == config.ContainerEnginePodman:
		opts.DisableDocker = true
	}
	return opts
}

// runE adapts a command handler to the CLI error convention: failures are
// rendered once here and surface to Execute as an *ExitError with code 1.
func (a *App) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		err := fn(cmd, args)
		if err == nil {
			return nil
		}

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			// Already reported by the handler.
			return err
		}
		renderError(a.stderr, a.newLogger(a.flags.verbose), err, a.flags.verbose)
		return &ExitError{Code: 1, Err: err}
	}
}

// stdio returns the process streams for attached container commands. Stdin
// is only connected when it is a terminal.
func (a *App) stdio() (container.Stdio, bool) {
	tty := isTerminal(a.stdin)
	stdio := container.Stdio{Stdout: a.stdout, Stderr: a.stderr}
	if tty {
		stdio.Stdin = a.stdin
	}
	return stdio, tty
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
