package relay

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crazylearner/chatrelay/internal/channels"
	"github.com/crazylearner/chatrelay/internal/monitoring"
	"github.com/crazylearner/chatrelay/internal/store"
)

// ReplyConfig shapes what is sent back to the channel.
type ReplyConfig struct {
	ErrorPrefix   string // e.g. "Error: "
	MaxReplyChars int    // 1900 for Discord
	Ellipsis      string // appended to cut replies
}

// Handler is the channels.EventHandler for the relay.
type Handler struct {
	proc    *Processor
	store   store.Store
	reply   ReplyConfig
	metrics *monitoring.MetricsCollector
	tracker *monitoring.Tracker
	alerts  *monitoring.AlertManager
}

// HandlerOption configures optional collaborators.
type HandlerOption func(*Handler)

// WithMetrics records Prometheus metrics.
func WithMetrics(mc *monitoring.MetricsCollector) HandlerOption {
	return func(h *Handler) { h.metrics = mc }
}

// WithTracker records one telemetry event per turn.
func WithTracker(t *monitoring.Tracker) HandlerOption {
	return func(h *Handler) { h.tracker = t }
}

// WithAlerts flags slow and failed turns.
func WithAlerts(am *monitoring.AlertManager) HandlerOption {
	return func(h *Handler) { h.alerts = am }
}

// NewHandler creates a Handler.
func NewHandler(proc *Processor, st store.Store, reply ReplyConfig, opts ...HandlerOption) *Handler {
	h := &Handler{proc: proc, store: st, reply: reply}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleEvent filters, runs and answers one inbound message. The only error
// returned is a failure to deliver the reply; completion failures are
// answered in-channel.
func (h *Handler) HandleEvent(ctx context.Context, ev channels.Event, sender channels.Sender) (err error) {
	if ev.FromSelf() || strings.TrimSpace(ev.Text) == "" {
		h.metrics.RecordTurn(ev.Channel, monitoring.OutcomeIgnored)
		return nil
	}

	turnID := uuid.New().String()
	ctx = monitoring.WithTurnIDContext(ctx, turnID)
	logger := log.With().
		Str("turn_id", turnID).
		Str("channel", ev.Channel).
		Str("user_id", ev.AuthorID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			h.alerts.FlagPanic(turnID, r, string(debug.Stack()))
			err = fmt.Errorf("panic handling turn %s: %v", turnID, r)
		}
	}()

	start := time.Now()
	event := &monitoring.TurnEvent{
		TurnID:    turnID,
		Timestamp: start,
		Channel:   ev.Channel,
		ChannelID: ev.ChannelID,
		UserID:    ev.AuthorID,
		Provider:  h.proc.Provider(),
		Model:     h.proc.Model(),
	}

	logger.Debug().Int("text_len", len(ev.Text)).Msg("turn started")

	// In-flight turns run to completion even if the adapter shuts down.
	res, procErr := h.proc.Process(context.WithoutCancel(ctx), ev.AuthorID, ev.Text)
	if res != nil {
		event.HistoryBefore = res.HistoryBefore
		event.HistoryAfter = res.HistoryAfter
		event.PromptTokens = res.PromptTokens
		event.InputTokens = res.InputTokens
		event.OutputTokens = res.OutputTokens
		event.CompletionLatency = res.CompletionLatency.Milliseconds()
	}

	var text string
	switch {
	case procErr != nil:
		event.Outcome = monitoring.OutcomeFailed
		event.Error = procErr.Error()
		text = h.reply.ErrorPrefix + procErr.Error()
		h.alerts.FlagCompletionFailure(turnID, h.proc.Provider(), procErr)
		if res != nil {
			h.metrics.RecordCompletion(h.proc.Provider(), false, res.CompletionLatency)
		}
	case res.Reset:
		event.Outcome = monitoring.OutcomeReset
		text = res.Reply
		logger.Info().Int("cleared", res.HistoryBefore).Msg("history reset")
	default:
		event.Outcome = monitoring.OutcomeReplied
		text = res.Reply
		h.metrics.RecordCompletion(h.proc.Provider(), true, res.CompletionLatency)
		h.alerts.FlagSlowCompletion(turnID, h.proc.Provider(), res.CompletionLatency)
	}

	text, truncated := TruncateReply(text, h.reply.MaxReplyChars, h.reply.Ellipsis)
	if truncated {
		h.metrics.RecordTruncation()
	}
	event.ReplyChars = len([]rune(text))
	event.ReplyTruncated = truncated

	sendErr := sender.Send(ctx, ev.ChannelID, text)
	h.metrics.RecordOutbound(ev.Channel, sendErr == nil)
	if sendErr != nil {
		h.alerts.FlagDeliveryFailure(turnID, ev.Channel, sendErr)
		if event.Error == "" {
			event.Error = sendErr.Error()
		}
	}

	event.TotalLatency = time.Since(start).Milliseconds()
	h.metrics.RecordTurn(ev.Channel, event.Outcome)
	st := h.store.Stats()
	h.metrics.SetHistory(st.Users, st.Messages)
	h.tracker.RecordTurn(event)

	logger.Info().
		Str("outcome", string(event.Outcome)).
		Int("history", event.HistoryAfter).
		Int64("completion_ms", event.CompletionLatency).
		Int64("total_ms", event.TotalLatency).
		Msg("turn finished")

	if sendErr != nil {
		return fmt.Errorf("send reply: %w", sendErr)
	}
	return nil
}

// Ensure Handler implements channels.EventHandler
var _ channels.EventHandler = (*Handler)(nil)
