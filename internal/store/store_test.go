package store_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazylearner/chatrelay/internal/store"
)

func appendTurns(t *testing.T, s store.Store, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.AppendPair(userID,
			store.UserMessage(fmt.Sprintf("q%d", i)),
			store.AssistantMessage(fmt.Sprintf("a%d", i)),
		)
		require.NoError(t, err)
	}
}

// =============================================================================
// GET OR CREATE
// =============================================================================

func TestMemoryStore_GetOrCreate_UnseenUserIsEmpty(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)

	h := s.GetOrCreate("u1")

	assert.NotNil(t, h)
	assert.Empty(t, h)
	assert.Equal(t, 1, s.Stats().Users, "history should be created lazily on first access")
}

func TestMemoryStore_GetOrCreate_ReturnsCopy(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)
	appendTurns(t, s, "u1", 1)

	h := s.GetOrCreate("u1")
	h[0] = store.UserMessage("tampered")

	assert.Equal(t, "q0", s.GetOrCreate("u1")[0].Content, "callers must not mutate stored history")
}

// =============================================================================
// APPEND + TRUNCATION
// =============================================================================

func TestMemoryStore_AppendPair_LengthIsMinOfTwiceTurnsAndLimit(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7, 8, 9, 20} {
		t.Run(fmt.Sprintf("%d_turns", n), func(t *testing.T) {
			s := store.NewMemoryStore(store.DefaultHistoryLimit)
			appendTurns(t, s, "u1", n)

			assert.Len(t, s.GetOrCreate("u1"), min(2*n, 16))
		})
	}
}

func TestMemoryStore_AppendPair_KeepsChronologicalOrder(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)
	appendTurns(t, s, "u1", 3)

	h := s.GetOrCreate("u1")
	want := []store.Message{
		store.UserMessage("q0"), store.AssistantMessage("a0"),
		store.UserMessage("q1"), store.AssistantMessage("a1"),
		store.UserMessage("q2"), store.AssistantMessage("a2"),
	}
	assert.Equal(t, want, h)
}

func TestMemoryStore_AppendPair_AtCapacityDropsOldestPair(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)
	appendTurns(t, s, "u1", 8)
	before := s.GetOrCreate("u1")
	require.Len(t, before, 16)

	require.NoError(t, s.AppendPair("u1", store.UserMessage("new q"), store.AssistantMessage("new a")))

	after := s.GetOrCreate("u1")
	require.Len(t, after, 16)
	assert.Equal(t, before[2:], after[:14], "the most recent 14 prior entries should survive")
	assert.Equal(t, store.UserMessage("new q"), after[14])
	assert.Equal(t, store.AssistantMessage("new a"), after[15])
}

func TestMemoryStore_AppendPair_UsersAreIndependent(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)
	appendTurns(t, s, "u1", 2)
	appendTurns(t, s, "u2", 1)

	assert.Len(t, s.GetOrCreate("u1"), 4)
	assert.Len(t, s.GetOrCreate("u2"), 2)
	assert.Equal(t, store.Stats{Users: 2, Messages: 6}, s.Stats())
}

func TestMemoryStore_NonPositiveLimitUsesDefault(t *testing.T) {
	s := store.NewMemoryStore(0)
	assert.Equal(t, store.DefaultHistoryLimit, s.Limit())
}

// =============================================================================
// RESET
// =============================================================================

func TestMemoryStore_Reset_ClearsHistory(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)
	appendTurns(t, s, "u1", 5)

	require.NoError(t, s.Reset("u1"))

	assert.Empty(t, s.GetOrCreate("u1"))
}

func TestMemoryStore_Reset_IsIdempotent(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)
	appendTurns(t, s, "u1", 2)

	require.NoError(t, s.Reset("u1"))
	once := s.GetOrCreate("u1")
	require.NoError(t, s.Reset("u1"))
	twice := s.GetOrCreate("u1")

	assert.Equal(t, once, twice)
	assert.Empty(t, twice)
}

func TestMemoryStore_Reset_UnseenUserSucceeds(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)

	require.NoError(t, s.Reset("never-seen"))
	assert.Empty(t, s.GetOrCreate("never-seen"))
}

func TestMemoryStore_Reset_LeavesOtherUsersAlone(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)
	appendTurns(t, s, "u1", 2)
	appendTurns(t, s, "u2", 2)

	require.NoError(t, s.Reset("u1"))

	assert.Empty(t, s.GetOrCreate("u1"))
	assert.Len(t, s.GetOrCreate("u2"), 4)
}

// =============================================================================
// LOCKING + LIFECYCLE
// =============================================================================

func TestMemoryStore_Lock_SerialisesSameUser(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := s.Lock("u1")
			defer unlock()
			_ = s.GetOrCreate("u1")
			_ = s.AppendPair("u1",
				store.UserMessage(fmt.Sprintf("q%d", i)),
				store.AssistantMessage(fmt.Sprintf("a%d", i)),
			)
		}(i)
	}
	wg.Wait()

	h := s.GetOrCreate("u1")
	require.Len(t, h, 16)
	for i := 0; i < len(h); i += 2 {
		assert.Equal(t, store.RoleUser, h[i].Role)
		assert.Equal(t, store.RoleAssistant, h[i+1].Role)
		assert.Equal(t, h[i].Content[1:], h[i+1].Content[1:], "pairs must stay adjacent")
	}
}

func TestMemoryStore_Close_IgnoresLaterWrites(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultHistoryLimit)
	appendTurns(t, s, "u1", 1)

	require.NoError(t, s.Close())
	require.NoError(t, s.AppendPair("u1", store.UserMessage("q"), store.AssistantMessage("a")))

	assert.Empty(t, s.GetOrCreate("u1"))
	assert.Equal(t, store.Stats{}, s.Stats())
}
