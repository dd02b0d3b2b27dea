package monitoring_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazylearner/chatrelay/internal/monitoring"
)

// =============================================================================
// LOGGER
// =============================================================================

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewWithWriter(monitoring.LoggerConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewWithWriter(monitoring.LoggerConfig{Level: "chatty"}, &buf)

	logger.Debug().Msg("debug line")
	logger.Info().Msg("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestTurnIDContext(t *testing.T) {
	ctx := monitoring.WithTurnIDContext(context.Background(), "turn-1")

	assert.Equal(t, "turn-1", monitoring.TurnIDFromContext(ctx))
	assert.Empty(t, monitoring.TurnIDFromContext(context.Background()))
}

// =============================================================================
// TELEMETRY
// =============================================================================

func TestTracker_WritesOneLinePerTurn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "turns.jsonl")
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{Enabled: true, LogPath: path})
	require.NoError(t, err)

	tracker.RecordTurn(&monitoring.TurnEvent{TurnID: "a", Outcome: monitoring.OutcomeReplied, HistoryAfter: 2})
	tracker.RecordTurn(&monitoring.TurnEvent{TurnID: "b", Outcome: monitoring.OutcomeReset})
	require.NoError(t, tracker.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []monitoring.TurnEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev monitoring.TurnEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].TurnID)
	assert.Equal(t, monitoring.OutcomeReset, events[1].Outcome)
}

func TestTracker_DisabledAndNilAreNoops(t *testing.T) {
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{Enabled: false, LogPath: "/nonexistent/x.jsonl"})
	require.NoError(t, err)
	tracker.RecordTurn(&monitoring.TurnEvent{TurnID: "a"})

	var nilTracker *monitoring.Tracker
	nilTracker.RecordTurn(&monitoring.TurnEvent{TurnID: "a"})
	assert.NoError(t, nilTracker.Close())
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetricsCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc := monitoring.NewMetricsCollector(reg)

	mc.RecordTurn("discord", monitoring.OutcomeReplied)
	mc.RecordTurn("discord", monitoring.OutcomeReplied)
	mc.RecordTurn("discord", monitoring.OutcomeFailed)
	mc.RecordCompletion("openai", true, 250*time.Millisecond)
	mc.RecordOutbound("discord", false)
	mc.RecordTruncation()
	mc.SetHistory(3, 10)

	count, err := testutil.GatherAndCount(reg, "chatrelay_relay_turns_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "two label combinations recorded")

	n, err := testutil.GatherAndCount(reg, "chatrelay_completion_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetricsCollector_NilSafe(t *testing.T) {
	var mc *monitoring.MetricsCollector
	mc.RecordTurn("discord", monitoring.OutcomeReplied)
	mc.RecordCompletion("openai", false, time.Second)
	mc.RecordOutbound("discord", true)
	mc.RecordTruncation()
	mc.SetHistory(1, 2)
}

// =============================================================================
// ALERTS
// =============================================================================

func TestAlertManager_SlowCompletionThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewWithWriter(monitoring.LoggerConfig{Level: "debug"}, &buf)
	am := monitoring.NewAlertManager(logger, monitoring.AlertConfig{SlowCompletionThreshold: time.Second})

	am.FlagSlowCompletion("t1", "openai", 500*time.Millisecond)
	assert.Empty(t, buf.String())

	am.FlagSlowCompletion("t1", "openai", 2*time.Second)
	assert.Contains(t, buf.String(), "slow_completion")

	am.FlagCompletionFailure("t1", "openai", errors.New("boom"))
	assert.Contains(t, buf.String(), "completion_failed")
}
