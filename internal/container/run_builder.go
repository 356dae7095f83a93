// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

type (
	// RunBuilder accumulates options for one `run` invocation.
	// Setters return the builder so calls can be chained; Build never mutates it.
	RunBuilder struct {
		engine       *BaseCLIEngine
		image        string
		name         string
		detached     bool
		interactive  bool
		remove       bool
		network      string
		capabilities []string
		privileged   bool
		publish      []PortMapping
		restart      RestartPolicy
		env          []string
		volumes      []VolumeMount
		args         []string
	}

	// RunSpec is an immutable, fully ordered container invocation.
	RunSpec struct {
		engine *BaseCLIEngine
		image  string
		name   string
		args   []string
	}
)

func newRunBuilder(engine *BaseCLIEngine, image string) *RunBuilder {
	return &RunBuilder{engine: engine, image: image}
}

// Name sets --name.
func (b *RunBuilder) Name(name string) *RunBuilder {
	b.name = name
	return b
}

// Detached sets --detach.
func (b *RunBuilder) Detached() *RunBuilder {
	b.detached = true
	return b
}

// Interactive sets -i -t.
func (b *RunBuilder) Interactive() *RunBuilder {
	b.interactive = true
	return b
}

// RemoveOnExit sets --rm.
func (b *RunBuilder) RemoveOnExit() *RunBuilder {
	b.remove = true
	return b
}

// Network sets --net.
func (b *RunBuilder) Network(network string) *RunBuilder {
	b.network = network
	return b
}

// CapAdd appends --cap-add flags.
func (b *RunBuilder) CapAdd(caps ...string) *RunBuilder {
	b.capabilities = append(b.capabilities, caps...)
	return b
}

// Privileged toggles --privileged.
func (b *RunBuilder) Privileged(privileged bool) *RunBuilder {
	b.privileged = privileged
	return b
}

// Publish appends a --publish binding.
func (b *RunBuilder) Publish(mapping PortMapping) *RunBuilder {
	b.publish = append(b.publish, mapping)
	return b
}

// Restart sets --restart; RestartPolicyNone omits the flag.
func (b *RunBuilder) Restart(policy RestartPolicy) *RunBuilder {
	b.restart = policy
	return b
}

// Env appends an --env KEY=VALUE pair.
func (b *RunBuilder) Env(key, value string) *RunBuilder {
	b.env = append(b.env, key+"="+value)
	return b
}

// Volume appends a --volume binding. Order is preserved.
func (b *RunBuilder) Volume(mount VolumeMount) *RunBuilder {
	b.volumes = append(b.volumes, mount)
	return b
}

// Args appends trailing arguments passed to the image entrypoint.
func (b *RunBuilder) Args(args ...string) *RunBuilder {
	b.args = append(b.args, args...)
	return b
}

// Build validates every published port and volume, then materializes the
// invocation. It is pure: repeated calls return specs with identical
// argument lists.
//
// Generated command: <binary> run [--detach] [--name=N] [-i -t] [--rm] [--net=X]
// [--cap-add=C]... [--privileged] [--publish=P]... [--restart=R] [--env=K=V]...
// [--volume=S:T]... <image> [args...]
func (b *RunBuilder) Build() (*RunSpec, error) {
	var errs []error
	for _, p := range b.publish {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", p, err))
		}
	}
	for _, v := range b.volumes {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%s: %w", b.image, err)
	}

	args := []string{"run"}

	if b.detached {
		args = append(args, "--detach")
	}

	if b.name != "" {
		args = append(args, "--name="+b.name)
	}

	if b.interactive {
		args = append(args, "-i", "-t")
	}

	if b.remove {
		args = append(args, "--rm")
	}

	if b.network != "" {
		args = append(args, "--net="+b.network)
	}

	for _, c := range b.capabilities {
		args = append(args, "--cap-add="+c)
	}

	if b.privileged {
		args = append(args, "--privileged")
	}

	for _, p := range b.publish {
		args = append(args, "--publish="+FormatPortMapping(p))
	}

	if b.restart != RestartPolicyNone {
		args = append(args, "--restart="+string(b.restart))
	}

	for _, kv := range b.env {
		args = append(args, "--env="+kv)
	}

	for _, v := range b.volumes {
		args = append(args, "--volume="+FormatVolumeMount(b.engine.volumeFormatter(v)))
	}

	args = append(args, b.image)
	args = append(args, b.args...)

	return &RunSpec{
		engine: b.engine,
		image:  b.image,
		name:   b.name,
		args:   args,
	}, nil
}

// Image returns the image reference.
func (s *RunSpec) Image() string { return s.image }

// Name returns the container name, empty when unnamed.
func (s *RunSpec) Name() string { return s.name }

// Args returns a copy of the engine arguments, starting with "run".
func (s *RunSpec) Args() []string { return slices.Clone(s.args) }

// Command returns a new, unstarted command for this spec.
func (s *RunSpec) Command(ctx context.Context) *exec.Cmd {
	return s.engine.CreateCommand(ctx, s.args...)
}

// String renders the invocation as a shell command line for logs.
func (s *RunSpec) String() string {
	parts := make([]string, 0, len(s.args)+1)
	for _, arg := range append([]string{s.engine.name}, s.args...) {
		quoted, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			quoted = arg
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}
