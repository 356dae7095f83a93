// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/simplensm/simplensm/internal/container"
)

type (
	// Unit is one container run in the foreground.
	Unit struct {
		// Label prefixes every output line; normally the container name.
		Label string
		// Spec must not be detached.
		Spec *container.RunSpec
		// StopSignal is passed to Engine.Stop on shutdown.
		StopSignal string
	}

	// Supervisor runs units attached, multiplexes their output and stops
	// them in reverse order when interrupted.
	Supervisor struct {
		engine      container.Engine
		units       []Unit
		out         io.Writer
		logger      *log.Logger
		muxOpts     []MultiplexerOption
		afterLaunch func(context.Context) error
	}

	// Option configures a Supervisor.
	Option func(*Supervisor)

	// LogSource is one command whose output is followed by Follow.
	LogSource struct {
		Label string
		Cmd   *exec.Cmd
	}
)

// WithOutput sets where multiplexed lines are written. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) {
		s.out = w
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger *log.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithMultiplexerOptions passes options to the output multiplexer.
func WithMultiplexerOptions(opts ...MultiplexerOption) Option {
	return func(s *Supervisor) {
		s.muxOpts = append(s.muxOpts, opts...)
	}
}

// WithAfterLaunch registers a hook run in the background once every unit
// has been launched. Its failure is logged.
func WithAfterLaunch(fn func(context.Context) error) Option {
	return func(s *Supervisor) {
		s.afterLaunch = fn
	}
}

// New creates a supervisor for units, given in start order.
func New(engine container.Engine, units []Unit, opts ...Option) *Supervisor {
	s := &Supervisor{
		engine: engine,
		units:  units,
		out:    os.Stdout,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run removes stale containers, launches every unit and streams their
// output until the first interrupt (or ctx cancellation). It then stops
// the units in reverse order, waits for every child and drains the output.
//
// Children are not bound to ctx: a cancelled context starts the ordered
// shutdown instead of killing the engine clients mid-stream.
func (s *Supervisor) Run(ctx context.Context, interrupts <-chan os.Signal) error {
	for _, u := range s.units {
		s.engine.QuietRemove(ctx, u.Spec.Name())
	}

	childCtx := context.WithoutCancel(ctx)
	procs := make([]*process, 0, len(s.units))
	for _, u := range s.units {
		s.logger.Debug("launching container", "command", u.Spec.String())
		p, err := startProcess(u.Label, u.Spec.Command(childCtx))
		if err != nil {
			s.abort(childCtx, procs)
			return err
		}
		procs = append(procs, p)
		s.logger.Info("container launched", "container", u.Spec.Name())
	}

	sd := newShutdown()
	go watchInterrupts(ctx, interrupts, sd, s.logger)

	labels := make([]string, len(s.units))
	for i, u := range s.units {
		labels[i] = u.Label
	}
	mux := NewMultiplexer(s.out, labels, s.muxOpts...)
	for _, p := range procs {
		mux.Add(p.label, StreamStdout, p.stdout)
		mux.Add(p.label, StreamStderr, p.stderr)
		go s.reportExit(p, sd)
	}

	var hooks sync.WaitGroup
	if s.afterLaunch != nil {
		hooks.Go(func() {
			if err := s.afterLaunch(childCtx); err != nil {
				s.logger.Warn("post-launch hook failed", "error", err)
			}
		})
	}

	<-sd.Done()

	stopErr := s.stopAll(childCtx, procs)
	for _, p := range procs {
		_ = p.wait()
	}
	for _, u := range s.units {
		s.engine.QuietRemove(childCtx, u.Spec.Name())
	}
	muxErr := mux.Wait()
	hooks.Wait()

	if muxErr != nil {
		s.logger.Warn("output stream ended with error", "error", muxErr)
	}
	return stopErr
}

// stopAll stops each launched unit once, last launched first.
func (s *Supervisor) stopAll(ctx context.Context, procs []*process) error {
	var errs []error
	for i := len(procs) - 1; i >= 0; i-- {
		u := s.units[i]
		s.logger.Info("stopping container", "container", u.Spec.Name())
		if err := s.engine.Stop(ctx, u.Spec.Name(), u.StopSignal); err != nil {
			s.logger.Error("failed to stop container", "container", u.Spec.Name(), "error", err)
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", u.Spec.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// abort stops the units that did launch after a later one failed to.
// Their output is discarded.
func (s *Supervisor) abort(ctx context.Context, procs []*process) {
	for _, p := range procs {
		go func() { _, _ = io.Copy(io.Discard, p.stdout) }()
		go func() { _, _ = io.Copy(io.Discard, p.stderr) }()
	}
	_ = s.stopAll(ctx, procs)
	for i, p := range procs {
		_ = p.wait()
		s.engine.QuietRemove(ctx, s.units[i].Spec.Name())
	}
}

// reportExit logs a child that exits before shutdown. An early exit does
// not trigger shutdown: the other unit keeps running until interrupted.
func (s *Supervisor) reportExit(p *process, sd *shutdown) {
	select {
	case <-p.done:
	case <-sd.Done():
		return
	}
	select {
	case <-sd.Done():
	default:
		s.logger.Warn("container exited before shutdown", "container", p.label, "error", p.err)
	}
}

// Follow streams the output of every source through one multiplexer until
// all of them exit. Cancelling the context the commands were built with
// ends a follow.
func Follow(out io.Writer, sources []LogSource, opts ...MultiplexerOption) error {
	labels := make([]string, len(sources))
	for i, src := range sources {
		labels[i] = src.Label
	}
	mux := NewMultiplexer(out, labels, opts...)

	var (
		procs []*process
		errs  []error
	)
	for _, src := range sources {
		p, err := startProcess(src.Label, src.Cmd)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		procs = append(procs, p)
		mux.Add(p.label, StreamStdout, p.stdout)
		mux.Add(p.label, StreamStderr, p.stderr)
	}

	for _, p := range procs {
		if err := p.wait(); err != nil && !isInterrupted(err) {
			errs = append(errs, fmt.Errorf("%s: %w", p.label, err))
		}
	}
	if err := mux.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// isInterrupted reports whether err is the exit of a child killed because
// its context was cancelled.
func isInterrupted(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return errors.Is(err, context.Canceled)
	}
	return !exitErr.Exited()
}
