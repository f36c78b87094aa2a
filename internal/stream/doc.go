// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream opens cancellable, ordered streams of assistant reply
// fragments.
//
// A Transport turns a Request into a Handle. A Handle yields text fragments
// in the order the backend produced them and then ends with io.EOF (done)
// or a *Error. Concatenating every fragment reconstructs the reply. A
// finished handle is never resumed; open a new one instead.
//
//	h, err := transport.Open(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer h.Cancel()
//	for {
//	    frag, err := h.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(frag)
//	}
//
// Cancel is idempotent. Once it returns, Next reports ErrCanceled and any
// fragment still in flight is dropped.
//
// Two transports are provided: HTTPTransport speaks the line-oriented data
// stream protocol of the workflow chat route, and OllamaTransport talks to a
// local model directly.
package stream
