// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package debounce coalesces bursts of keyed events into a single action.
//
// A Scheduler keeps at most one pending action per key. Every Schedule call
// for a key resets that key's timer and replaces its action, so a burst of N
// calls inside the window runs exactly one action: the last one registered.
//
// # Usage
//
//	s := debounce.New()
//	defer s.Stop()
//
//	s.Schedule("anomaly/threshold", time.Second, func() {
//	    store.ConfirmWrite(ctx, "threshold")
//	})
//
// Cancel, Stop and Flush are safe to call from any goroutine and any number
// of times.
package debounce
