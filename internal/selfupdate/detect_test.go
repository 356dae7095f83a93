// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"path/filepath"
	"runtime/debug"
	"testing"
)

// clearDetectionSeams resets the ldflags hint and stubs build info for the
// duration of the test.
func clearDetectionSeams(t *testing.T, info *debug.BuildInfo) {
	t.Helper()

	savedHint := installMethodHint
	savedReadBuildInfo := readBuildInfo
	t.Cleanup(func() {
		installMethodHint = savedHint
		readBuildInfo = savedReadBuildInfo
	})

	installMethodHint = ""
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return info, info != nil
	}
}

func TestDetectInstallMethod_LdflagsHint(t *testing.T) {
	// Not parallel: subtests mutate the package-level installMethodHint global.

	tests := []struct {
		name    string
		hint    string
		path    string
		version string
		want    InstallMethod
	}{
		{"development hint overrides release version", "development", "/usr/local/bin/simplensm", "0.3.0", InstallMethodDevelopment},
		{"goinstall hint", "goinstall", "/usr/local/bin/simplensm", "0.3.0", InstallMethodGoInstall},
		{"hint is case-insensitive", "GoInstall", "/usr/local/bin/simplensm", "0.3.0", InstallMethodGoInstall},
		{"unknown hint value overrides dev version", "release", "/usr/local/bin/simplensm", devVersion, InstallMethodUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Not parallel: mutates package-level installMethodHint.

			saved := installMethodHint
			t.Cleanup(func() { installMethodHint = saved })
			installMethodHint = tt.hint

			got := DetectInstallMethod(tt.path, tt.version)
			if got != tt.want {
				t.Errorf("DetectInstallMethod(%q, %q) with hint=%q = %v, want %v", tt.path, tt.version, tt.hint, got, tt.want)
			}
		})
	}
}

func TestDetectInstallMethod_Development(t *testing.T) {
	// Not parallel: mutates package-level installMethodHint and readBuildInfo.
	clearDetectionSeams(t, nil)

	tests := []struct {
		name    string
		path    string
		version string
	}{
		{"dev version", "/usr/local/bin/simplensm", devVersion},
		{"empty version", "/usr/local/bin/simplensm", ""},
		{"go run binary", "/tmp/go-build1234567/b001/exe/simplensm", "0.3.0"},
		{"go test binary", "/tmp/go-build98765/b123/selfupdate.test", "0.3.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectInstallMethod(tt.path, tt.version)
			if got != InstallMethodDevelopment {
				t.Errorf("DetectInstallMethod(%q, %q) = %v, want %v", tt.path, tt.version, got, InstallMethodDevelopment)
			}
		})
	}
}

func TestDetectInstallMethod_GoInstall(t *testing.T) {
	// Not parallel: subtests mutate package-level readBuildInfo and use t.Setenv.

	tests := []struct {
		name       string
		modulePath string
		hasBuild   bool
		want       InstallMethod
	}{
		{"path in GOPATH/bin with matching module path", "github.com/simplensm/simplensm", true, InstallMethodGoInstall},
		{"path in GOPATH/bin with foreign module path", "github.com/other/tool", true, InstallMethodUnknown},
		{"path in GOPATH/bin without build info", "", false, InstallMethodUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info *debug.BuildInfo
			if tt.hasBuild {
				info = &debug.BuildInfo{Path: tt.modulePath}
			}
			clearDetectionSeams(t, info)

			gopath := filepath.Join(t.TempDir(), "go")
			t.Setenv("GOPATH", gopath)
			path := filepath.Join(gopath, "bin", "simplensm")

			got := DetectInstallMethod(path, "0.3.0")
			if got != tt.want {
				t.Errorf("DetectInstallMethod(%q) = %v, want %v", path, got, tt.want)
			}
		})
	}
}

func TestDetectInstallMethod_Unknown(t *testing.T) {
	// Not parallel: mutates package-level installMethodHint and readBuildInfo.
	clearDetectionSeams(t, nil)

	tests := []struct {
		name string
		path string
	}{
		{"system path", "/usr/local/bin/simplensm"},
		{"custom path", "/opt/simplensm/simplensm"},
		{"current directory", "./simplensm"},
		{"home bin", "/home/user/bin/simplensm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectInstallMethod(tt.path, "0.3.0")
			if got != InstallMethodUnknown {
				t.Errorf("DetectInstallMethod(%q) = %v, want %v", tt.path, got, InstallMethodUnknown)
			}
		})
	}
}

func TestInstallMethod_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method InstallMethod
		want   string
	}{
		{InstallMethodUnknown, "unknown"},
		{InstallMethodDevelopment, "development"},
		{InstallMethodGoInstall, "goinstall"},
		{InstallMethod(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			got := tt.method.String()
			if got != tt.want {
				t.Errorf("InstallMethod(%d).String() = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestIsGoBuildTemp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"/tmp/go-build1234/b001/exe/simplensm", true},
		{"/var/folders/xy/T/go-build55/b001/simplensm.test", true},
		{"/usr/local/bin/simplensm", false},
		{"/go-build", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			if got := isGoBuildTemp(tt.path); got != tt.want {
				t.Errorf("isGoBuildTemp(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsInGOPATHBin(t *testing.T) {
	// Not parallel: subtests use t.Setenv which mutates process-wide state.

	tests := []struct {
		name   string
		gopath string
		path   string
		want   bool
	}{
		{"exact match in GOPATH/bin", "/home/user/go", "/home/user/go/bin/simplensm", true},
		{"not in GOPATH/bin", "/home/user/go", "/usr/local/bin/simplensm", false},
		{"similar prefix but not GOPATH/bin", "/home/user/go", "/home/user/gobin/simplensm", false},
		{"subdirectory of GOPATH/bin", "/home/user/go", "/home/user/go/bin/subdir/simplensm", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Not parallel: t.Setenv mutates process-wide state.
			t.Setenv("GOPATH", tt.gopath)

			got := isInGOPATHBin(tt.path)
			if got != tt.want {
				t.Errorf("isInGOPATHBin(%q) with GOPATH=%q = %v, want %v", tt.path, tt.gopath, got, tt.want)
			}
		})
	}
}
