// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func mustBuild(t *testing.T, b *RunBuilder) *RunSpec {
	t.Helper()

	spec, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return spec
}

func TestRunBuilder_FlagOrder(t *testing.T) {
	t.Parallel()

	engine := NewDockerEngine(WithBinaryPath("/usr/bin/docker"))

	// Setters are called out of order.
	spec := mustBuild(t, engine.NewRun("docker.io/jasonish/evebox:master").
		Args("evebox", "server").
		Volume(VolumeMount{Source: "simplensm-evebox-data", Target: "/data"}).
		Env("TZ", "UTC").
		Restart(RestartPolicyUnlessStopped).
		Publish(PortMapping{HostIP: "127.0.0.1", HostPort: 5636, ContainerPort: 5636}).
		Privileged(true).
		CapAdd("net_admin", "net_raw").
		Network("host").
		RemoveOnExit().
		Interactive().
		Name("simplensm-evebox").
		Detached())

	want := []string{
		"run",
		"--detach",
		"--name=simplensm-evebox",
		"-i", "-t",
		"--rm",
		"--net=host",
		"--cap-add=net_admin",
		"--cap-add=net_raw",
		"--privileged",
		"--publish=127.0.0.1:5636:5636",
		"--restart=unless-stopped",
		"--env=TZ=UTC",
		"--volume=simplensm-evebox-data:/data",
		"docker.io/jasonish/evebox:master",
		"evebox", "server",
	}
	if got := spec.Args(); !slices.Equal(got, want) {
		t.Errorf("Build().Args() =\n  %q\nwant\n  %q", got, want)
	}
	if spec.Name() != "simplensm-evebox" {
		t.Errorf("Name() = %q", spec.Name())
	}
	if spec.Image() != "docker.io/jasonish/evebox:master" {
		t.Errorf("Image() = %q", spec.Image())
	}
}

func TestRunBuilder_Minimal(t *testing.T) {
	t.Parallel()

	engine := NewDockerEngine(WithBinaryPath("/usr/bin/docker"))
	spec := mustBuild(t, engine.NewRun("alpine"))

	if got := spec.Args(); !slices.Equal(got, []string{"run", "alpine"}) {
		t.Errorf("Build().Args() = %q", got)
	}
}

func TestRunBuilder_Deterministic(t *testing.T) {
	t.Parallel()

	engine := NewDockerEngine(WithBinaryPath("/usr/bin/docker"))
	b := engine.NewRun("alpine").
		Name("x").
		Volume(VolumeMount{Source: "a", Target: "/a"}).
		Volume(VolumeMount{Source: "b", Target: "/b"}).
		Env("A", "1").
		Env("B", "2")

	first := mustBuild(t, b).Args()
	second := mustBuild(t, b).Args()
	if !slices.Equal(first, second) {
		t.Errorf("Build() not deterministic:\n  %q\n  %q", first, second)
	}

	// Mutating a returned slice must not leak into the spec.
	spec := mustBuild(t, b)
	args := spec.Args()
	args[0] = "mutated"
	if spec.Args()[0] != "run" {
		t.Error("RunSpec.Args() exposed its internal slice")
	}
}

func TestRunBuilder_PrivilegedToggle(t *testing.T) {
	t.Parallel()

	engine := NewDockerEngine(WithBinaryPath("/usr/bin/docker"))
	spec := mustBuild(t, engine.NewRun("alpine").Privileged(true).Privileged(false))
	if slices.Contains(spec.Args(), "--privileged") {
		t.Errorf("Privileged(false) still emitted --privileged: %q", spec.Args())
	}
}

func TestRunBuilder_PodmanLabelsBindMounts(t *testing.T) {
	t.Parallel()

	engine := NewPodmanEngine(
		WithBinaryPath("/usr/bin/podman"),
		WithSELinuxCheck(func() bool { return true }),
	)
	spec := mustBuild(t, engine.NewRun("alpine").
		Volume(VolumeMount{Source: "/var/lib/simplensm/log", Target: "/var/log/suricata"}).
		Volume(VolumeMount{Source: "simplensm-suricata-lib", Target: "/var/lib/suricata"}))

	args := spec.Args()
	if !slices.Contains(args, "--volume=/var/lib/simplensm/log:/var/log/suricata:z") {
		t.Errorf("bind mount not labeled: %q", args)
	}
	if !slices.Contains(args, "--volume=simplensm-suricata-lib:/var/lib/suricata") {
		t.Errorf("named volume should be left alone: %q", args)
	}
}

func TestRunBuilder_RejectsInvalidVolumesAndPorts(t *testing.T) {
	t.Parallel()

	engine := NewDockerEngine(WithBinaryPath("/usr/bin/docker"))

	tests := []struct {
		name    string
		builder *RunBuilder
		wantErr error
	}{
		{
			"relative host path",
			engine.NewRun("evebox").Volume(VolumeMount{Source: "nsm-data/simplensm-evebox-data", Target: "/data"}),
			ErrInvalidVolumeMount,
		},
		{
			"relative target",
			engine.NewRun("evebox").Volume(VolumeMount{Source: "simplensm-evebox-data", Target: "data"}),
			ErrInvalidVolumeMount,
		},
		{
			"zero host port",
			engine.NewRun("evebox").Publish(PortMapping{HostIP: "127.0.0.1", ContainerPort: 5636}),
			ErrInvalidNetworkPort,
		},
		{
			"unknown protocol",
			engine.NewRun("evebox").Publish(PortMapping{HostPort: 5636, ContainerPort: 5636, Protocol: "sctp"}),
			ErrInvalidPortProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spec, err := tt.builder.Build()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
			}
			if spec != nil {
				t.Errorf("Build() returned a spec alongside an error: %q", spec.Args())
			}
			if !strings.HasPrefix(err.Error(), "evebox: ") {
				t.Errorf("error should name the image, got %q", err)
			}
		})
	}
}

func TestRunSpec_String(t *testing.T) {
	t.Parallel()

	engine := NewDockerEngine(WithBinaryPath("/usr/bin/docker"))
	spec := mustBuild(t, engine.NewRun("docker.io/jasonish/suricata:latest").
		Name("simplensm-suricata").
		Args("-k", "none", "-i", "eth0", "tcp port 80"))

	got := spec.String()
	if !strings.HasPrefix(got, "docker run ") {
		t.Errorf("String() = %q, want docker run prefix", got)
	}
	if !strings.Contains(got, "'tcp port 80'") {
		t.Errorf("String() = %q, want the BPF filter quoted", got)
	}
}

func TestRunSpec_Command(t *testing.T) {
	engine, recorder := newMockDocker(t)
	spec := mustBuild(t, engine.NewRun("alpine").Name("x"))

	cmd := spec.Command(t.Context())
	if cmd == nil {
		t.Fatal("Command() returned nil")
	}
	recorder.AssertCommandName(t, "/usr/bin/docker")
	recorder.AssertArgs(t, "run", "--name=x", "alpine")
}
