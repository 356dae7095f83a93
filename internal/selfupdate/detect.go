// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

const (
	// modulePath is the expected Go module path used to confirm go-install origin.
	modulePath = "github.com/simplensm/simplensm"

	// devVersion is the version reported by builds without release ldflags.
	devVersion = "dev"

	// InstallMethodUnknown indicates a downloaded release binary or a custom
	// installation. Only these are self-updated.
	InstallMethodUnknown InstallMethod = 0

	// InstallMethodDevelopment indicates a binary produced by go run or
	// go test, or a build without a release version.
	InstallMethodDevelopment InstallMethod = 1

	// InstallMethodGoInstall indicates installation via `go install`.
	// Upgrades should be handled by re-running `go install` with the desired version.
	InstallMethodGoInstall InstallMethod = 2
)

var (
	// installMethodHint is set via -ldflags at build time to override detection.
	// When non-empty, it takes priority over all path heuristics.
	//
	//nolint:gochecknoglobals // Build-time ldflags injection requires a package-level variable.
	installMethodHint string

	// readBuildInfo is a test seam for debug.ReadBuildInfo. Production code uses the
	// real implementation; tests replace it to simulate different build info scenarios.
	//
	//nolint:gochecknoglobals // Test seam requires a package-level variable.
	readBuildInfo = debug.ReadBuildInfo
)

// InstallMethod identifies how the running binary was produced. Only
// release binaries replace themselves; the others are skipped.
type InstallMethod int

// String returns a human-readable name for the install method.
func (m InstallMethod) String() string {
	switch m {
	case InstallMethodUnknown:
		return "unknown"
	case InstallMethodDevelopment:
		return "development"
	case InstallMethodGoInstall:
		return "goinstall"
	}
	return "unknown"
}

// DetectInstallMethod determines how the binary at execPath was produced.
// Detection priority:
//  1. Build-time ldflags hint
//  2. Development builds: a dev version or an executable inside a go-build temp dir
//  3. go install: GOPATH/bin confirmed by the build info module path
//  4. Fallback to Unknown
func DetectInstallMethod(execPath, version string) InstallMethod {
	if installMethodHint != "" {
		return parseMethodHint(installMethodHint)
	}

	if version == "" || version == devVersion || isGoBuildTemp(execPath) {
		return InstallMethodDevelopment
	}

	// Both conditions are required to avoid false positives from binaries
	// that happen to be placed in GOPATH/bin manually.
	if isInGOPATHBin(execPath) && hasModulePath() {
		return InstallMethodGoInstall
	}

	return InstallMethodUnknown
}

// parseMethodHint converts a build-time ldflags hint string to an InstallMethod.
func parseMethodHint(hint string) InstallMethod {
	switch strings.ToLower(hint) {
	case "development":
		return InstallMethodDevelopment
	case "goinstall":
		return InstallMethodGoInstall
	default:
		return InstallMethodUnknown
	}
}

// isGoBuildTemp reports whether execPath lives in a directory created by the
// go tool for go run and go test binaries.
func isGoBuildTemp(execPath string) bool {
	for dir := filepath.Dir(filepath.Clean(execPath)); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		if strings.HasPrefix(filepath.Base(dir), "go-build") {
			return true
		}
	}
	return false
}

// isInGOPATHBin checks whether the given path is inside $GOPATH/bin.
// It uses the GOPATH environment variable, falling back to ~/go if unset
// (matching the Go toolchain's default behavior).
func isInGOPATHBin(execPath string) bool {
	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return false
		}
		gopath = filepath.Join(home, "go")
	}

	gopathBin := filepath.Clean(filepath.Join(gopath, "bin"))
	cleanExec := filepath.Clean(execPath)

	// The trailing separator ensures we match the directory boundary, not
	// a prefix like /home/user/gobin vs /home/user/go/bin.
	return strings.HasPrefix(cleanExec, gopathBin+string(filepath.Separator)) ||
		cleanExec == gopathBin
}

// hasModulePath checks whether the current binary's build info names this module.
func hasModulePath() bool {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return false
	}
	return strings.Contains(info.Path, modulePath)
}
