package cmd

import (
	"fmt"
)

// ExitCodeError carries a process exit code up to main. It lets a
// subcommand propagate the exact exit status of a remote command.
type ExitCodeError struct {
	Code int
	Err  error
}

// Error returns the underlying error message, or a generic one.
func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// Unwrap returns the wrapped error.
func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// exitWithCode builds an ExitCodeError with no message of its own,
// for when the output has already been printed.
func exitWithCode(code int) error {
	return &ExitCodeError{Code: code}
}
