package main

import "errors"

// Command-level errors surfaced by runServe.
var (
	// ErrSetupFailure marks a fatal startup error (spec.md §7 "Setup
	// failure"): the process exits non-zero without attempting teardown of
	// components it never brought up.
	ErrSetupFailure = errors.New("setup failure")
)

// FormatUserError returns err's message for a one-line stderr print. The
// text is passed through unchanged; cobra's own "Error:" prefix is already
// suppressed by SilenceErrors on the root command.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
