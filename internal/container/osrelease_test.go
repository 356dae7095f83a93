// SPDX-License-Identifier: MPL-2.0

package container

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const raspbianOSRelease = `PRETTY_NAME="Raspbian GNU/Linux 11 (bullseye)"
NAME="Raspbian GNU/Linux"
VERSION_ID="11"
VERSION="11 (bullseye)"
VERSION_CODENAME=bullseye
ID=raspbian
ID_LIKE=debian
HOME_URL="http://www.raspbian.org/"
`

const fedoraOSRelease = `NAME="Fedora Linux"
VERSION="40 (Workstation Edition)"
ID=fedora
VERSION_ID=40
PRETTY_NAME='Fedora Linux 40 (Workstation Edition)'
# comment lines are ignored
CPE_NAME="cpe:/o:fedoraproject:fedora:40"
`

func TestParseOSRelease(t *testing.T) {
	t.Parallel()

	fields, err := parseOSRelease(strings.NewReader(fedoraOSRelease), "os-release")
	if err != nil {
		t.Fatalf("parseOSRelease() error: %v", err)
	}

	want := map[string]string{
		"NAME":        "Fedora Linux",
		"ID":          "fedora",
		"VERSION_ID":  "40",
		"PRETTY_NAME": "Fedora Linux 40 (Workstation Edition)",
		"CPE_NAME":    "cpe:/o:fedoraproject:fedora:40",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestParseOSRelease_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := parseOSRelease(strings.NewReader(`NAME="unterminated`), "os-release"); err == nil {
		t.Error("parseOSRelease() accepted an unterminated quote")
	}
}

func TestHostNeedsPrivilege(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"raspbian", write("raspbian", raspbianOSRelease), true},
		{"raspberry pi os by pretty name", write("rpios", "ID=debian\nPRETTY_NAME=\"Raspberry Pi OS\"\n"), true},
		{"fedora", write("fedora", fedoraOSRelease), false},
		{"missing file", filepath.Join(dir, "nope"), false},
		{"unparsable", write("broken", "ID=\"raspbian\n"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := hostNeedsPrivilege(tt.path); got != tt.want {
				t.Errorf("hostNeedsPrivilege() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDockerEngine_RequiresPrivilege(t *testing.T) {
	path := filepath.Join(t.TempDir(), "os-release")
	if err := os.WriteFile(path, []byte(raspbianOSRelease), 0o644); err != nil {
		t.Fatal(err)
	}

	orig := osReleasePath
	osReleasePath = path
	t.Cleanup(func() { osReleasePath = orig })

	engine, _ := newMockDocker(t)
	if !engine.RequiresPrivilege() {
		t.Error("RequiresPrivilege() = false on Raspbian")
	}

	// Re-derived on every call.
	if err := os.WriteFile(path, []byte(fedoraOSRelease), 0o644); err != nil {
		t.Fatal(err)
	}
	if engine.RequiresPrivilege() {
		t.Error("RequiresPrivilege() = true after os-release changed to Fedora")
	}
}
