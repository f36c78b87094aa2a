// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"errors"

	"github.com/jeranaias/aideck/internal/backend"
	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/proposal"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/stream"
)

// =============================================================================
// FAILURE CLASSES
// =============================================================================

// Failure groups errors by how the user should react to them.
type Failure int

const (
	// FailureNone means err was nil.
	FailureNone Failure = iota
	// FailureValidation: the value was rejected locally. Nothing was sent.
	FailureValidation
	// FailureNetwork: the backend could not be reached or refused the write.
	FailureNetwork
	// FailureConflict: the backend rejected the write as stale.
	FailureConflict
	// FailureStream: the chat stream failed. Only the current turn is lost.
	FailureStream
	// FailureInput: the request made no sense in the current state.
	FailureInput
)

// String returns a short label for the failure class.
func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureValidation:
		return "validation"
	case FailureNetwork:
		return "network"
	case FailureConflict:
		return "conflict"
	case FailureStream:
		return "stream"
	case FailureInput:
		return "input"
	default:
		return "unknown"
	}
}

// ErrNoActiveTurn is returned by CancelChatTurn when nothing is streaming.
var ErrNoActiveTurn = errors.New("no chat turn in progress")

// Classify tags err with its failure class.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case settings.IsValidation(err):
		return FailureValidation
	case backend.IsConflict(err):
		return FailureConflict
	case backend.IsNetwork(err):
		return FailureNetwork
	case stream.IsStreamError(err), errors.Is(err, stream.ErrCanceled):
		return FailureStream
	case errors.Is(err, chatsession.ErrEmptyInput),
		errors.Is(err, proposal.ErrNoProposal),
		errors.Is(err, settings.ErrUnknownAlgorithm),
		errors.Is(err, settings.ErrClosed),
		errors.Is(err, ErrNoActiveTurn):
		return FailureInput
	default:
		return FailureNetwork
	}
}
