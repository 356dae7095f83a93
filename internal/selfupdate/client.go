// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
)

const (
	// DefaultBaseURL is where release binaries are published.
	DefaultBaseURL = "https://evebox.org/files/simplensm"

	// binaryName is the published file name under each target directory.
	binaryName = "simplensm"
)

// ErrUnexpectedStatus is wrapped by StatusError.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

type (
	// StatusError is returned when the download server answers with anything
	// other than 200 OK.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// Client fetches published binaries and their checksums. Files are laid
	// out as <base>/<os>-<arch>/simplensm and <base>/<os>-<arch>/simplensm.sha256.
	Client struct {
		httpClient *http.Client
		baseURL    string
		target     string
		userAgent  string
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns ErrUnexpectedStatus for errors.Is() compatibility.
func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the download base URL.
func WithBaseURL(base string) ClientOption {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTarget overrides the <os>-<arch> directory, which defaults to the
// platform the binary was built for.
func WithTarget(target string) ClientOption {
	return func(cl *Client) {
		cl.target = target
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient creates a Client with sensible defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		target:     runtime.GOOS + "-" + runtime.GOARCH,
		userAgent:  binaryName + "/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BinaryURL returns the download URL of the binary for the client's target.
func (c *Client) BinaryURL() string {
	return c.baseURL + "/" + c.target + "/" + binaryName
}

// ChecksumURL returns the download URL of the binary's checksum file.
func (c *Client) ChecksumURL() string {
	return c.BinaryURL() + ".sha256"
}

// FetchChecksum downloads and parses the published checksum.
func (c *Client) FetchChecksum(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.ChecksumURL())
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }() // read-only response body

	return ParseChecksum(body)
}

// DownloadBinary returns the binary as a streaming reader. The caller is
// responsible for closing it.
func (c *Client) DownloadBinary(ctx context.Context) (io.ReadCloser, error) {
	return c.get(ctx, c.BinaryURL())
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", redactURL(rawURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: redactURL(rawURL), StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}

// redactURL strips query parameters and fragments from a URL for safe inclusion
// in error messages, preventing accidental exposure of tokens or sensitive data.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
