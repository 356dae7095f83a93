// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/simplensm/simplensm/internal/issue"
)

// ServiceError is an error that carries an optional issue guide for the CLI
// layer. When the CLI layer receives a ServiceError, it renders the guide
// before formatting the underlying error.
// Always create via newServiceError to enforce the Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderError prints err to stderr. The issue guide of a ServiceError comes
// first so the one-line error stays at the bottom of the terminal.
func renderError(stderr io.Writer, logger *log.Logger, err error, verbose bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.IssueID != 0 {
		if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
			rendered, renderErr := catalogEntry.Render("")
			if renderErr != nil {
				logger.Warn("failed to render issue guide", "issue", svcErr.IssueID, "error", renderErr)
			} else {
				fmt.Fprint(stderr, rendered)
			}
		}
	}

	fmt.Fprintln(stderr, ErrorStyle.Render("Error:")+" "+formatErrorForDisplay(err, verbose))
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
