// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagSlowCompletion:   Warn when the upstream call exceeds threshold
//   - FlagCompletionFailure: Warn when a turn is abandoned
//   - FlagDeliveryFailure:  Error when a reply cannot be sent
//   - FlagPanic:            Error on recovered panics
package monitoring

import "time"

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger        *Logger
	slowThreshold time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	threshold := cfg.SlowCompletionThreshold
	if threshold == 0 {
		threshold = 10 * time.Second
	}
	return &AlertManager{logger: logger, slowThreshold: threshold}
}

// FlagSlowCompletion logs when completion latency exceeds threshold.
func (am *AlertManager) FlagSlowCompletion(turnID, provider string, latency time.Duration) {
	if am == nil || latency < am.slowThreshold {
		return
	}
	am.logger.Warn().
		Str("turn_id", turnID).
		Str("provider", provider).
		Dur("latency", latency).
		Msg("slow_completion")
}

// FlagCompletionFailure logs an abandoned turn.
func (am *AlertManager) FlagCompletionFailure(turnID, provider string, err error) {
	if am == nil {
		return
	}
	am.logger.Warn().
		Str("turn_id", turnID).
		Str("provider", provider).
		Err(err).
		Msg("completion_failed")
}

// FlagDeliveryFailure logs a reply that could not be delivered.
func (am *AlertManager) FlagDeliveryFailure(turnID, channel string, err error) {
	if am == nil {
		return
	}
	am.logger.Error().
		Str("turn_id", turnID).
		Str("channel", channel).
		Err(err).
		Msg("delivery_failed")
}

// FlagPanic logs recovered panic.
func (am *AlertManager) FlagPanic(turnID string, panicValue interface{}, stack string) {
	if am == nil {
		return
	}
	am.logger.Error().
		Str("turn_id", turnID).
		Interface("panic", panicValue).
		Str("stack", stack).
		Msg("panic_recovered")
}
