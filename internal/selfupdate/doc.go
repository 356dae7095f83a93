// SPDX-License-Identifier: MPL-2.0

// Package selfupdate replaces the running simplensm binary with the latest
// published build.
//
// The package is organized into four concerns:
//   - client.go: HTTP client for <base>/<os>-<arch>/simplensm and its .sha256 file
//   - detect.go: install method detection (release, development, go install)
//   - checksum.go: SHA256 checksum parsing and file verification
//   - selfupdate.go: Updater type that composes the above
package selfupdate
