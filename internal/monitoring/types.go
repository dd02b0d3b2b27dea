// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by relay/, channels/ and ops/.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - TurnOutcome: How a turn ended
//   - TurnEvent:   Telemetry data for each turn
//   - Config types: TelemetryConfig, LoggerConfig, AlertConfig
package monitoring

import "time"

// =============================================================================
// TURN OUTCOMES - Used by relay and telemetry
// =============================================================================

// TurnOutcome identifies how a turn ended.
type TurnOutcome string

const (
	OutcomeReplied TurnOutcome = "replied"
	OutcomeReset   TurnOutcome = "reset"
	OutcomeFailed  TurnOutcome = "failed"
	OutcomeIgnored TurnOutcome = "ignored"
)

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// TurnEvent captures one inbound message through the relay.
type TurnEvent struct {
	TurnID            string      `json:"turn_id"`
	Timestamp         time.Time   `json:"timestamp"`
	Channel           string      `json:"channel"`
	ChannelID         string      `json:"channel_id"`
	UserID            string      `json:"user_id"`
	Provider          string      `json:"provider,omitempty"`
	Model             string      `json:"model,omitempty"`
	Outcome           TurnOutcome `json:"outcome"`
	HistoryBefore     int         `json:"history_before"`
	HistoryAfter      int         `json:"history_after"`
	PromptTokens      int         `json:"prompt_tokens,omitempty"` // local estimate
	InputTokens       int         `json:"input_tokens,omitempty"`  // reported by provider
	OutputTokens      int         `json:"output_tokens,omitempty"`
	ReplyChars        int         `json:"reply_chars"`
	ReplyTruncated    bool        `json:"reply_truncated"`
	Error             string      `json:"error,omitempty"`
	CompletionLatency int64       `json:"completion_latency_ms"`
	TotalLatency      int64       `json:"total_latency_ms"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	SlowCompletionThreshold time.Duration `yaml:"slow_completion_threshold"`
}
