// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP side of aideck.
//
// Endpoints:
//   - POST /api/ai/chat         - workflow assistant chat, data stream encoded
//   - GET  /ai/stats            - algorithm configs (sandbox backend)
//   - PUT  /ai/{id}/settings    - replace an algorithm's config (sandbox backend)
//   - GET  /health              - health check
//
// The sandbox backend keeps configs in memory and validates every write
// the same way the dashboard does, so the dashboard can be exercised
// without a running platform.
//
// # Middleware
//
// Requests pass through panic recovery, security headers, access logging,
// CORS, optional API key checks, and a per-client token bucket.
package server
