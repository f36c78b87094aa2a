// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records usage of the dashboard: settings writes,
// backend polls, and chat turns.
//
// Counts are always kept in process for the status bar. When an OTLP
// endpoint is configured they are also exported as OpenTelemetry metrics.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, "aideck", version, cfg.Telemetry.Insecure)
//	defer shutdown(context.Background())
//
//	rec, err := telemetry.NewRecorder(telemetry.Meter("aideck"))
//	rec.Capture(ctx, telemetry.EventChatMessageSubmitted)
//
// # Privacy
//
// Only counts and outcomes are recorded. Message content and setting
// values are never captured.
package telemetry
