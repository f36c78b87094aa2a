// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/aideck/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete aideck configuration.
type Config struct {
	Backend   BackendConfig   `toml:"backend" json:"backend"`
	Settings  SettingsConfig  `toml:"settings" json:"settings"`
	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Server    ServerConfig    `toml:"server" json:"server"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
	Log       LogConfig       `toml:"log" json:"log"`
}

// BackendConfig points at the AI backend that runs the algorithms.
type BackendConfig struct {
	URL         string `toml:"url" json:"url"`
	APIKey      string `toml:"api_key" json:"api_key"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
	// WriteRate caps settings writes per second (0 = unlimited).
	WriteRate float64 `toml:"write_rate" json:"write_rate"`
}

// SettingsConfig tunes edit reconciliation.
type SettingsConfig struct {
	DebounceMS     int `toml:"debounce_ms" json:"debounce_ms"`
	PollIntervalMS int `toml:"poll_interval_ms" json:"poll_interval_ms"`
}

// ChatConfig selects where chat turns are sent.
type ChatConfig struct {
	// Transport is "http" (a chat route) or "ollama" (a local model).
	Transport string `toml:"transport" json:"transport"`
	URL       string `toml:"url" json:"url"`
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	Model     string `toml:"model" json:"model"`
	// WorkflowFile is a JSON context or YAML workflow sent with each turn.
	WorkflowFile string `toml:"workflow_file" json:"workflow_file"`
}

// ServerConfig configures `aideck serve`.
type ServerConfig struct {
	Host      string  `toml:"host" json:"host"`
	Port      int     `toml:"port" json:"port"`
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`
	// SeedFile holds the sandbox backend's initial algorithm configs.
	SeedFile string `toml:"seed_file" json:"seed_file"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme"`
	Markdown bool   `toml:"markdown" json:"markdown"`
}

// TelemetryConfig enables OTLP metric export.
type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint" json:"otlp_endpoint"`
	Insecure     bool   `toml:"insecure" json:"insecure"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:         "http://127.0.0.1:8787",
			TimeoutSecs: 30,
			WriteRate:   5,
		},
		Settings: SettingsConfig{
			DebounceMS:     1000,
			PollIntervalMS: 5000,
		},
		Chat: ChatConfig{
			Transport: "http",
			URL:       "http://127.0.0.1:8787/api/ai/chat",
			OllamaURL: "http://127.0.0.1:11434",
			Model:     "qwen2.5-coder:7b",
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8787,
			RateLimit: 10,
			RateBurst: 20,
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DebounceWindow returns the edit debounce window.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Settings.DebounceMS) * time.Millisecond
}

// PollInterval returns the stats poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Settings.PollIntervalMS) * time.Millisecond
}

// BackendTimeout returns the backend request timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the aideck configuration directory path. AIDECK_HOME
// overrides the default ~/.aideck.
func ConfigDir() (string, error) {
	if dir := os.Getenv("AIDECK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".aideck"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens config files to 0600; they hold the
// backend API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file. TOML is tried first, then
// JSON, then built-in defaults. A .env file in the working directory is
// read next, and AIDECK_* environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	loaded := false
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
				cfg = Default()
			} else {
				loaded = true
			}
		}
	}
	if !loaded {
		if jsonPath, err := ConfigPathJSON(); err == nil {
			if _, statErr := os.Stat(jsonPath); statErr == nil {
				if err := LoadJSON(cfg, jsonPath); err != nil {
					loadErr = errors.Join(loadErr, fmt.Errorf("failed to load JSON config: %w", err))
					cfg = Default()
				}
			}
		}
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

func finish(cfg *Config) error {
	loadDotEnv()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadDotEnv reads ./.env without overriding variables already set.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# aideck configuration file\n")
	buf.WriteString("# Generated by aideck - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every validation failure.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	checkURL := func(field, raw string) {
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)})
		}
	}

	checkURL("backend.url", c.Backend.URL)
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.Backend.TimeoutSecs),
		})
	}
	if c.Backend.WriteRate < 0 {
		errs = append(errs, ValidationError{Field: "backend.write_rate", Message: "cannot be negative"})
	}

	if c.Settings.DebounceMS < 0 || c.Settings.DebounceMS > 60000 {
		errs = append(errs, ValidationError{
			Field:   "settings.debounce_ms",
			Message: fmt.Sprintf("must be 0-60000, got %d", c.Settings.DebounceMS),
		})
	}
	if c.Settings.PollIntervalMS < 250 {
		errs = append(errs, ValidationError{
			Field:   "settings.poll_interval_ms",
			Message: fmt.Sprintf("must be at least 250, got %d", c.Settings.PollIntervalMS),
		})
	}

	validTransports := map[string]bool{"http": true, "ollama": true}
	if !validTransports[strings.ToLower(c.Chat.Transport)] {
		errs = append(errs, ValidationError{
			Field:   "chat.transport",
			Message: fmt.Sprintf("invalid transport '%s', must be one of: http, ollama", c.Chat.Transport),
		})
	}
	checkURL("chat.url", c.Chat.URL)
	checkURL("chat.ollama_url", c.Chat.OllamaURL)

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("must be 1-65535, got %d", c.Server.Port),
		})
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "rate and burst cannot be negative"})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty fields with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Settings.PollIntervalMS == 0 {
		c.Settings.PollIntervalMS = d.Settings.PollIntervalMS
	}
	if c.Chat.Transport == "" {
		c.Chat.Transport = d.Chat.Transport
	}
	if c.Chat.URL == "" {
		c.Chat.URL = d.Chat.URL
	}
	if c.Chat.OllamaURL == "" {
		c.Chat.OllamaURL = d.Chat.OllamaURL
	}
	if c.Chat.Model == "" {
		c.Chat.Model = d.Chat.Model
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - AIDECK_BACKEND_URL: overrides backend.url
//   - AIDECK_API_KEY: overrides backend.api_key
//   - AIDECK_DEBOUNCE_MS: overrides settings.debounce_ms
//   - AIDECK_POLL_INTERVAL_MS: overrides settings.poll_interval_ms
//   - AIDECK_CHAT_URL: overrides chat.url
//   - AIDECK_CHAT_TRANSPORT: overrides chat.transport
//   - AIDECK_OLLAMA_URL: overrides chat.ollama_url
//   - AIDECK_MODEL: overrides chat.model
//   - AIDECK_WORKFLOW_FILE: overrides chat.workflow_file
//   - AIDECK_OTLP_ENDPOINT: overrides telemetry.otlp_endpoint
//   - AIDECK_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("AIDECK_BACKEND_URL", &c.Backend.URL)
	str("AIDECK_API_KEY", &c.Backend.APIKey)
	num("AIDECK_DEBOUNCE_MS", &c.Settings.DebounceMS)
	num("AIDECK_POLL_INTERVAL_MS", &c.Settings.PollIntervalMS)
	str("AIDECK_CHAT_URL", &c.Chat.URL)
	str("AIDECK_CHAT_TRANSPORT", &c.Chat.Transport)
	str("AIDECK_OLLAMA_URL", &c.Chat.OllamaURL)
	str("AIDECK_MODEL", &c.Chat.Model)
	str("AIDECK_WORKFLOW_FILE", &c.Chat.WorkflowFile)
	str("AIDECK_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	str("AIDECK_LOG_LEVEL", &c.Log.Level)
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "chat.model").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type
// conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"backend.url",
		"backend.api_key",
		"backend.timeout_secs",
		"backend.write_rate",
		"settings.debounce_ms",
		"settings.poll_interval_ms",
		"chat.transport",
		"chat.url",
		"chat.ollama_url",
		"chat.model",
		"chat.workflow_file",
		"server.host",
		"server.port",
		"server.rate_limit",
		"server.rate_burst",
		"server.seed_file",
		"ui.theme",
		"ui.markdown",
		"telemetry.otlp_endpoint",
		"telemetry.insecure",
		"log.level",
		"log.file",
	}
}

// Clone creates a copy of the configuration. Config holds only values, so
// a struct copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Backend.APIKey != "" {
		safe.Backend.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. A later Global call
// returns cfg rather than loading from disk.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
