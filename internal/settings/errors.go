// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError is returned when a value does not fit a setting's kind or
// bounds. It is always detected locally, before any network call.
type ValidationError struct {
	Setting string
	Value   any
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %v for setting %q: %s", e.Value, e.Setting, e.Reason)
}

// Sentinel errors.
var (
	// ErrUnknownAlgorithm is returned when no store exists for an algorithm id.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrClosed is returned by writes attempted after Store.Close.
	ErrClosed = errors.New("settings store closed")
)

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
