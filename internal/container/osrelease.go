// SPDX-License-Identifier: MPL-2.0

package container

import (
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

//nolint:gochecknoglobals // Test seam for the host identification file.
var osReleasePath = "/etc/os-release"

// privilegedDistroMarker matches Raspberry Pi OS (ID=raspbian, NAME="Raspbian ...").
const privilegedDistroMarker = "rasp"

// hostNeedsPrivilege reports whether the os-release file at path identifies
// a distribution that needs privileged containers. Unreadable or unparsable
// files mean no.
func hostNeedsPrivilege(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }() // read-only

	fields, err := parseOSRelease(f, path)
	if err != nil {
		return false
	}
	for _, key := range []string{"ID", "NAME", "PRETTY_NAME"} {
		if strings.Contains(strings.ToLower(fields[key]), privilegedDistroMarker) {
			return true
		}
	}
	return false
}

// parseOSRelease reads an os-release(5) file. The format is a list of shell
// variable assignments, so it is parsed with a shell parser and each value is
// expanded as a literal (quotes and escapes removed, no substitutions).
func parseOSRelease(r io.Reader, name string) (map[string]string, error) {
	file, err := syntax.NewParser().Parse(r, name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	fields := make(map[string]string)
	for _, stmt := range file.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok || len(call.Args) > 0 {
			continue
		}
		for _, assign := range call.Assigns {
			if assign.Name == nil {
				continue
			}
			if assign.Value == nil {
				fields[assign.Name.Value] = ""
				continue
			}
			value, err := expand.Literal(nil, assign.Value)
			if err != nil {
				continue
			}
			fields[assign.Name.Value] = value
		}
	}
	return fields, nil
}
