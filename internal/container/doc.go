// SPDX-License-Identifier: MPL-2.0

// Package container provides a unified abstraction layer for container engines (Docker/Podman).
//
// The Engine interface covers what the service lifecycle needs: run (through a
// RunBuilder), stop, remove, inspect, exec, pull and logs. DockerEngine and
// PodmanEngine both embed BaseCLIEngine for shared argument construction and
// command execution; dialect differences are exposed as capability queries
// (SupportsStopSignal, SupportsRestartPolicy, RequiresPrivilege).
//
// Engine selection uses Probe, which tries Docker first and falls back to
// Podman 4.6 or newer.
//
// Every failed engine invocation is reported as either a *LaunchError (the
// binary could not be started) or a *CommandError (it exited non-zero, with
// its stderr attached).
package container
