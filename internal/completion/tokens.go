package completion

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/crazylearner/chatrelay/internal/store"
)

// Per-message framing overhead of the chat format (role markers).
const tokensPerMessage = 4

// TokenEstimator approximates the prompt size of a message sequence.
// Counts are estimates: the relay does not know the remote model's tokenizer.
type TokenEstimator struct {
	once     sync.Once
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewTokenEstimator creates an estimator using the named tiktoken encoding
// (cl100k_base when empty). The encoding is loaded on first use.
func NewTokenEstimator(encoding string) *TokenEstimator {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TokenEstimator{encoding: encoding}
}

func (e *TokenEstimator) load() {
	enc, err := tiktoken.GetEncoding(e.encoding)
	if err != nil {
		log.Warn().Err(err).Str("encoding", e.encoding).Msg("tiktoken unavailable, using byte estimate")
		return
	}
	e.enc = enc
}

// Count returns the estimated token count of a single string.
func (e *TokenEstimator) Count(text string) int {
	if e == nil {
		return len(text) / 4
	}
	e.once.Do(e.load)
	if e.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(e.enc.Encode(text, nil, nil))
}

// CountMessages returns the estimated prompt tokens of messages.
func (e *TokenEstimator) CountMessages(messages []store.Message) int {
	total := 0
	for _, m := range messages {
		total += tokensPerMessage + e.Count(string(m.Role)) + e.Count(m.Content)
	}
	return total
}
