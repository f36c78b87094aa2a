// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/stream"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// MaxRequestBodySize is the maximum allowed request body (1MB).
	MaxRequestBodySize = 1 << 20

	// MaxMessageCount is the maximum number of messages in one chat request.
	MaxMessageCount = 100

	// FinishReasonStop ends a completed reply.
	FinishReasonStop = "stop"
)

// validRoles are the message roles accepted from clients.
var validRoles = map[string]bool{
	stream.RoleSystem:    true,
	stream.RoleUser:      true,
	stream.RoleAssistant: true,
}

// =============================================================================
// TYPES
// =============================================================================

// StatsResponse is the body of GET /ai/stats.
type StatsResponse struct {
	AlgorithmConfigs []settings.AlgorithmConfig `json:"algorithm_configs"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Algorithms int    `json:"algorithms"`
	Chat       bool   `json:"chat"`
}

// Options configures a Server.
type Options struct {
	Addr    string
	Version string

	// Chat answers POST /api/ai/chat. When nil the route replies 503.
	Chat stream.Transport

	// Sandbox serves the settings routes. When nil DefaultSeed is used.
	Sandbox *Sandbox

	// APIKey, when set, is required in X-API-KEY on every route but /health.
	APIKey string

	// RateLimit is requests per second per client; RateBurst its burst.
	RateLimit float64
	RateBurst int

	CORS   *CORSConfig
	Logger *slog.Logger
}

// Server serves the chat stream and the sandbox settings backend.
type Server struct {
	opts    Options
	chat    stream.Transport
	sandbox *Sandbox
	logger  *slog.Logger
	limiter *RateLimiter

	mux        *http.ServeMux
	httpServer *http.Server
}

// New creates a server. Routes are registered but nothing listens yet.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sandbox == nil {
		opts.Sandbox = NewSandbox(DefaultSeed())
	}
	if opts.CORS == nil {
		opts.CORS = DefaultCORSConfig()
	}

	s := &Server{
		opts:    opts,
		chat:    opts.Chat,
		sandbox: opts.Sandbox,
		logger:  opts.Logger,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateBurst),
		mux:     http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /api/ai/chat", s.handleChat)
	s.mux.HandleFunc("GET /ai/stats", s.handleStats)
	s.mux.HandleFunc("PUT /ai/{id}/settings", s.handleUpdateSettings)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	chain := Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.opts.CORS),
		RateLimitMiddleware(s.limiter, s.logger),
		APIKeyMiddleware(s.opts.APIKey, s.logger),
	)
	return chain(s.mux)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: chat replies stream for as long as the model talks.
		IdleTimeout: 120 * time.Second,
	}
	s.logger.Info("server: listening", "addr", ln.Addr().String(), "auth", s.opts.APIKey != "")

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    s.opts.Version,
		Algorithms: len(s.sandbox.Configs()),
		Chat:       s.chat != nil,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{AlgorithmConfigs: s.sandbox.Configs()})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var cfg settings.AlgorithmConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if cfg.AlgorithmID != "" && cfg.AlgorithmID != id {
		writeError(w, http.StatusBadRequest, "algorithm_id does not match path")
		return
	}

	updated, err := s.sandbox.Update(id, cfg)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case settings.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("server: settings updated", "algorithm_id", id, "settings", len(cfg.Settings))
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	req, err := stream.DecodeBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateMessages(req.Messages); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h, err := s.chat.Open(r.Context(), req)
	if err != nil {
		s.logger.Warn("server: chat open failed", "request_id", req.ID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer h.Cancel()

	w.Header().Set("Content-Type", stream.DataStreamContentType)
	w.Header().Set(stream.DataStreamHeader, "v1")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	dw := stream.NewDataStreamWriter(w, flusher.Flush)
	messageID := "msg-" + uuid.NewString()
	if err := dw.Start(messageID); err != nil {
		return
	}

	chars := 0
	for {
		frag, err := h.Next(r.Context())
		if errors.Is(err, io.EOF) {
			_ = dw.Finish(FinishReasonStop)
			s.logger.Debug("server: chat done", "request_id", req.ID, "chars", chars)
			return
		}
		if err != nil {
			if r.Context().Err() != nil {
				s.logger.Debug("server: chat client gone", "request_id", req.ID)
				return
			}
			s.logger.Warn("server: chat stream failed", "request_id", req.ID, "error", err)
			_ = dw.Error(err.Error())
			return
		}
		chars += len(frag)
		if err := dw.Text(frag); err != nil {
			return
		}
	}
}

// validateMessages returns a client-facing reason, or "" when msgs are
// acceptable.
func validateMessages(msgs []stream.Message) string {
	if len(msgs) == 0 {
		return "messages are required"
	}
	if len(msgs) > MaxMessageCount {
		return fmt.Sprintf("too many messages (max %d)", MaxMessageCount)
	}
	for i, m := range msgs {
		if !validRoles[m.Role] {
			return fmt.Sprintf("message %d: invalid role %q", i, m.Role)
		}
	}
	return ""
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
