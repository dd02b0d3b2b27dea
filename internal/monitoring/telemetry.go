// Package monitoring - telemetry.go records turn events to a JSONL file.
//
// DESIGN: Tracker writes one TurnEvent per line, appended immediately after
// each turn. Telemetry is analytics only; the relay never reads it back.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tracker handles telemetry event recording to file and stdout.
type Tracker struct {
	config    TelemetryConfig
	logPath   string
	turnCount int
	mu        sync.Mutex
}

// NewTracker creates a new telemetry tracker.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{
		config: cfg,
	}

	if !cfg.Enabled {
		return t, nil
	}

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
			return nil, err
		}
		t.logPath = cfg.LogPath
		if _, err := os.Stat(cfg.LogPath); os.IsNotExist(err) {
			if f, err := os.Create(cfg.LogPath); err == nil {
				f.Close()
			}
		}
	}

	return t, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// RecordTurn records a turn event. Safe to call on a nil Tracker.
func (t *Tracker) RecordTurn(event *TurnEvent) {
	if t == nil || !t.config.Enabled || event == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.LogToStdout {
		turnID := event.TurnID
		if len(turnID) > 8 {
			turnID = turnID[:8]
		}
		log.Info().
			Str("turn_id", turnID).
			Str("outcome", string(event.Outcome)).
			Int("history_after", event.HistoryAfter).
			Int64("total_ms", event.TotalLatency).
			Msg("telemetry")
	}

	if t.logPath != "" {
		if err := appendJSONL(t.logPath, event); err != nil {
			log.Error().Err(err).Str("path", t.logPath).Msg("telemetry: failed to write turn event")
		} else {
			t.turnCount++
		}
	}
}

// Close logs a summary of the session.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logPath != "" && t.turnCount > 0 {
		log.Info().
			Str("path", t.logPath).
			Int("events", t.turnCount).
			Msg("telemetry: session complete")
	}

	return nil
}
