// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/aideck/internal/backend"
	"github.com/jeranaias/aideck/internal/dashboard"
	"github.com/jeranaias/aideck/internal/settings"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	ExitConflictError = 9
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is returned for malformed command lines.
type UsageError struct {
	Reason string
	Usage  string
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return fmt.Sprintf("%s\nUsage: aideck %s", e.Reason, e.Usage)
	}
	return e.Reason
}

// CommandError wraps a failure with the command and action that hit it.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ConfigError marks a failure to load or save the config file.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func wrap(cmd Command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: cmd.String(), Action: action, Err: err}
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ue *UsageError
	if errors.As(err, &ue) {
		return ExitUsageError
	}
	var cfe *ConfigError
	if errors.As(err, &cfe) {
		return ExitConfigError
	}
	var ce *backend.ClientError
	if errors.As(err, &ce) {
		switch ce.Type {
		case backend.ErrTypeUnauthorized:
			return ExitAuthError
		case backend.ErrTypeNotFound:
			return ExitNotFoundError
		case backend.ErrTypeTimeout:
			return ExitTimeoutError
		case backend.ErrTypeConflict:
			return ExitConflictError
		default:
			return ExitNetworkError
		}
	}
	if errors.Is(err, settings.ErrUnknownAlgorithm) {
		return ExitNotFoundError
	}

	switch dashboard.Classify(err) {
	case dashboard.FailureValidation, dashboard.FailureInput:
		return ExitUsageError
	default:
		return ExitGeneralError
	}
}

// PrintError writes err to w in the error style.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("Error:"), err)
}
