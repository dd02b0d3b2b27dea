// Package store provides per-user conversation memory for the relay.
//
// DESIGN: Each user owns an ordered history of user/assistant messages:
//   - The system prompt is never stored; it is synthesised per request
//   - Pairs are appended together, then the history is cut to the newest N
//   - Histories are created lazily and only ever emptied by Reset
//
// Currently only MemoryStore is implemented. Nothing survives a restart.
package store

import (
	"sync"
)

// DefaultHistoryLimit keeps the last 8 exchanges.
const DefaultHistoryLimit = 16

// Role tags a message with its speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged chat message. Treat as immutable.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Store defines the interface for conversation memory.
type Store interface {
	// GetOrCreate returns a snapshot of the user's history, creating an
	// empty one if the user is unseen.
	GetOrCreate(userID string) []Message

	// AppendPair appends the user and assistant messages in order, then
	// drops the oldest entries beyond the history limit.
	AppendPair(userID string, user, assistant Message) error

	// Reset replaces the user's history with an empty one.
	Reset(userID string) error

	// Lock serialises turns for one user. The returned func releases it.
	Lock(userID string) (unlock func())

	// Stats reports the number of known users and stored messages.
	Stats() Stats

	// Close releases all histories.
	Close() error
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Users    int `json:"users"`
	Messages int `json:"messages"`
}

// MemoryStore is an in-process implementation of Store.
type MemoryStore struct {
	histories map[string][]Message
	locks     map[string]*sync.Mutex
	mu        sync.RWMutex
	limit     int
	stopped   bool
}

// NewMemoryStore creates a store that keeps at most limit messages per user.
// A non-positive limit falls back to DefaultHistoryLimit.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryStore{
		histories: make(map[string][]Message),
		locks:     make(map[string]*sync.Mutex),
		limit:     limit,
	}
}

// Limit returns the per-user history cap.
func (s *MemoryStore) Limit() int {
	return s.limit
}

// GetOrCreate returns a copy of the user's history.
func (s *MemoryStore) GetOrCreate(userID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.histories[userID]
	if !exists {
		if !s.stopped {
			s.histories[userID] = []Message{}
		}
		return []Message{}
	}

	out := make([]Message, len(h))
	copy(out, h)
	return out
}

// AppendPair appends both messages and truncates as a single step.
func (s *MemoryStore) AppendPair(userID string, user, assistant Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	h := append(s.histories[userID], user, assistant)
	if len(h) > s.limit {
		// Copy so the dropped prefix is not kept alive by the backing array.
		h = append([]Message(nil), h[len(h)-s.limit:]...)
	}
	s.histories[userID] = h
	return nil
}

// Reset empties the user's history. Unseen users get an empty history.
func (s *MemoryStore) Reset(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.histories[userID] = []Message{}
	return nil
}

// Lock acquires the per-user turn lock.
func (s *MemoryStore) Lock(userID string) func() {
	s.mu.Lock()
	l, exists := s.locks[userID]
	if !exists {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Stats returns the current user and message counts.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Users: len(s.histories)}
	for _, h := range s.histories {
		st.Messages += len(h)
	}
	return st
}

// Close drops all histories. Later writes are ignored.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		s.histories = make(map[string][]Message)
	}
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
