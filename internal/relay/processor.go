// Package relay turns inbound chat messages into completion replies.
//
// DESIGN: Two layers:
//   - Processor: one turn = [system prompt] + stored history + new message
//     → completion → append the pair to the store
//   - Handler:   channel-facing glue (self/empty filtering, reset command,
//     error replies, reply truncation, telemetry)
//
// A turn holds its user's store lock from reading the history to appending
// the reply, so concurrent messages from one user are applied in order.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crazylearner/chatrelay/internal/completion"
	"github.com/crazylearner/chatrelay/internal/store"
)

// ErrEmptyText is returned for blank input. Callers filter it first.
var ErrEmptyText = errors.New("empty message text")

// Options configures a Processor.
type Options struct {
	Provider     string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	ResetCommand string
	ResetReply   string
	Tokens       *completion.TokenEstimator // optional prompt estimate
}

// TurnResult describes a finished turn.
type TurnResult struct {
	Reply             string
	Reset             bool
	HistoryBefore     int
	HistoryAfter      int
	PromptTokens      int
	InputTokens       int
	OutputTokens      int
	CompletionLatency time.Duration
}

// Processor runs turns against a store and a completion client.
type Processor struct {
	store  store.Store
	client completion.Client
	opts   Options
}

// NewProcessor creates a Processor.
func NewProcessor(st store.Store, client completion.Client, opts Options) *Processor {
	if opts.ResetCommand == "" {
		opts.ResetCommand = "!reset"
	}
	return &Processor{store: st, client: client, opts: opts}
}

// Provider returns the configured provider label.
func (p *Processor) Provider() string { return p.opts.Provider }

// Model returns the fixed model identifier.
func (p *Processor) Model() string { return p.opts.Model }

// IsReset reports whether text is the reset command (trimmed, any case).
func (p *Processor) IsReset(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), p.opts.ResetCommand)
}

// HandleTurn returns the assistant reply for text.
func (p *Processor) HandleTurn(ctx context.Context, userID, text string) (string, error) {
	res, err := p.Process(ctx, userID, text)
	if err != nil {
		return "", err
	}
	return res.Reply, nil
}

// Process runs one turn. The reset command clears the history without
// contacting the completion client. On failure the history is unchanged.
func (p *Processor) Process(ctx context.Context, userID, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	unlock := p.store.Lock(userID)
	defer unlock()

	if p.IsReset(text) {
		before := len(p.store.GetOrCreate(userID))
		if err := p.store.Reset(userID); err != nil {
			return nil, fmt.Errorf("reset history: %w", err)
		}
		return &TurnResult{Reply: p.opts.ResetReply, Reset: true, HistoryBefore: before}, nil
	}

	history := p.store.GetOrCreate(userID)
	userMsg := store.UserMessage(text)
	messages := p.BuildMessages(history, userMsg)

	res := &TurnResult{HistoryBefore: len(history), HistoryAfter: len(history)}
	if p.opts.Tokens != nil {
		res.PromptTokens = p.opts.Tokens.CountMessages(messages)
	}

	start := time.Now()
	out, err := p.client.Complete(ctx, completion.Request{
		Model:       p.opts.Model,
		Messages:    messages,
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
	})
	res.CompletionLatency = time.Since(start)
	if err != nil {
		return res, err
	}
	if out == nil {
		return res, completion.ErrEmptyResponse
	}

	if err := p.store.AppendPair(userID, userMsg, store.AssistantMessage(out.Content)); err != nil {
		return res, fmt.Errorf("append history: %w", err)
	}

	res.Reply = out.Content
	res.InputTokens = out.InputTokens
	res.OutputTokens = out.OutputTokens
	res.HistoryAfter = len(p.store.GetOrCreate(userID))
	return res, nil
}

// BuildMessages composes the request: system prompt, history, new message.
func (p *Processor) BuildMessages(history []store.Message, next store.Message) []store.Message {
	messages := make([]store.Message, 0, len(history)+2)
	messages = append(messages, store.SystemMessage(p.opts.SystemPrompt))
	messages = append(messages, history...)
	return append(messages, next)
}
