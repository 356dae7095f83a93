// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for simplensm.
//
// This package implements the Cobra command hierarchy: lifecycle commands
// (start, stop, restart, status), the foreground supervisor (run), log
// streaming, maintenance tasks, self-update and configuration management.
package cmd
