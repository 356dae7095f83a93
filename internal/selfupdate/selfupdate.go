// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

const (
	// ResultFailed accompanies a non-nil error.
	ResultFailed Result = iota
	// ResultSkipped means the binary is not a release build and was left alone.
	ResultSkipped
	// ResultUpToDate means the published checksum matches the running binary.
	ResultUpToDate
	// ResultUpdated means the executable was replaced; the process should exit.
	ResultUpdated

	// maxBinaryBytes is the upper bound on a downloaded binary (500 MB).
	// A truncated download fails checksum verification.
	maxBinaryBytes = 500 << 20

	// executableMode is applied to the replaced executable.
	executableMode = 0o755
)

var (
	//nolint:gochecknoglobals // Test seam for os.Executable().
	osExecutable = os.Executable

	//nolint:gochecknoglobals // Test seam for filepath.EvalSymlinks().
	evalSymlinks = filepath.EvalSymlinks
)

type (
	// Result is the outcome of Update.
	Result int

	// Updater composes the download client, install method detection and
	// checksum verification into the self-update flow.
	Updater struct {
		client  *Client
		version string
		logger  *log.Logger
	}

	// UpdaterOption configures an Updater during construction.
	UpdaterOption func(*Updater)
)

// String returns a human-readable result name.
func (r Result) String() string {
	switch r {
	case ResultFailed:
		return "failed"
	case ResultSkipped:
		return "skipped"
	case ResultUpToDate:
		return "up to date"
	case ResultUpdated:
		return "updated"
	}
	return "unknown"
}

// WithClient overrides the default Client used by the Updater.
func WithClient(c *Client) UpdaterOption {
	return func(u *Updater) {
		u.client = c
	}
}

// WithLogger sets the logger for progress messages.
func WithLogger(logger *log.Logger) UpdaterOption {
	return func(u *Updater) {
		u.logger = logger
	}
}

// NewUpdater creates an Updater for the running binary's version. If no
// WithClient option is provided, a default Client is created.
func NewUpdater(version string, opts ...UpdaterOption) *Updater {
	u := &Updater{
		version: version,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = NewClient()
	}
	return u
}

// Update replaces the running executable with the published binary when
// their checksums differ. The executable is only touched after the download
// has been verified against the published checksum; any failure before that
// point leaves it as it was.
func (u *Updater) Update(ctx context.Context) (Result, error) {
	execPath, err := resolveExecPath()
	if err != nil {
		return ResultFailed, fmt.Errorf("resolving executable path: %w", err)
	}
	u.logger.Info("current executable", "path", execPath)

	if method := DetectInstallMethod(execPath, u.version); method != InstallMethodUnknown {
		u.logger.Info("not self-updating", "install", method)
		return ResultSkipped, nil
	}

	current, err := ComputeFileHash(execPath)
	if err != nil {
		// Unknown local checksum: fall through and update.
		u.logger.Warn("failed to checksum current executable", "error", err)
	}

	u.logger.Info("fetching checksum", "url", u.client.ChecksumURL())
	remote, err := u.client.FetchChecksum(ctx)
	if err != nil {
		return ResultFailed, fmt.Errorf("fetching remote checksum: %w", err)
	}
	u.logger.Debug("remote checksum", "sha256", remote)

	if current == remote {
		u.logger.Info("no update available")
		return ResultUpToDate, nil
	}

	u.logger.Info("downloading update", "url", u.client.BinaryURL())
	tmpPath, err := downloadToTempFile(ctx, u.client)
	if err != nil {
		return ResultFailed, fmt.Errorf("downloading update: %w", err)
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if err := VerifyFile(tmpPath, remote); err != nil {
		return ResultFailed, fmt.Errorf("verifying download: %w", err)
	}

	u.logger.Info("replacing current executable", "path", execPath)
	if err := u.replaceExecutable(execPath, tmpPath); err != nil {
		return ResultFailed, err
	}
	return ResultUpdated, nil
}

// replaceExecutable removes the running executable and writes src in its
// place. Unlinking first lets a running binary be replaced on Linux without
// ETXTBSY; the old inode stays valid for the current process.
func (u *Updater) replaceExecutable(execPath, src string) (err error) {
	if err := os.Remove(execPath); err != nil {
		u.logger.Warn("failed to remove current executable", "path", execPath, "error", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening download: %w", err)
	}
	defer func() { _ = in.Close() }() // read-only temp file

	out, err := os.Create(execPath)
	if err != nil {
		return fmt.Errorf("replacing executable: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("replacing executable: %w", closeErr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("replacing executable: %w", err)
	}
	if err := os.Chmod(execPath, executableMode); err != nil {
		return fmt.Errorf("setting executable permissions: %w", err)
	}
	return nil
}

// resolveExecPath returns the absolute, symlink-resolved path to the currently
// running binary.
func resolveExecPath() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("determining executable path: %w", err)
	}

	resolved, err := evalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", p, err)
	}

	return resolved, nil
}

// downloadToTempFile downloads the binary into a temporary file and returns
// its path. The caller is responsible for removing the file when done.
func downloadToTempFile(ctx context.Context, client *Client) (_ string, err error) {
	body, err := client.DownloadBinary(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	tmp, err := os.CreateTemp("", binaryName+"-download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(tmp, io.LimitReader(body, maxBinaryBytes)); err != nil {
		// Best-effort removal of partially written temp file.
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("writing to temp file: %w", err)
	}

	return tmp.Name(), nil
}
