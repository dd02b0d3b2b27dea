// Package completion calls the hosted language-model endpoint.
//
// DESIGN: The relay treats the completion endpoint as a black box:
// a role-tagged message sequence goes in, one assistant string comes out.
// Client hides which wire format is spoken:
//
//   - huggingface / openai: Chat Completions ({model, messages, max_tokens, temperature})
//   - anthropic:            Messages API (system prompt hoisted to "system")
//   - bedrock:              Messages API body on InvokeModel, SigV4 signed
//
// There are no retries. A failed call returns one error and the caller
// abandons the turn.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/crazylearner/chatrelay/internal/store"
)

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("completion response has no content")

// Client produces one completion for a message sequence.
type Client interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// Request is a single completion request.
type Request struct {
	Model       string
	Messages    []store.Message // system message first, then history, then the new user message
	MaxTokens   int
	Temperature float64
}

// Result contains the response from a completion call.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Provider     string
}

// APIError is a non-success answer from the provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (*Result, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
