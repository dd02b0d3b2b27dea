package ops_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazylearner/chatrelay/internal/monitoring"
	"github.com/crazylearner/chatrelay/internal/ops"
	"github.com/crazylearner/chatrelay/internal/store"
)

func newTestServer(t *testing.T) (*store.MemoryStore, *monitoring.MetricsCollector, http.Handler) {
	t.Helper()
	st := store.NewMemoryStore(store.DefaultHistoryLimit)
	reg := prometheus.NewRegistry()
	mc := monitoring.NewMetricsCollector(reg)
	srv := ops.New("127.0.0.1:0", st, reg, ops.WithMetrics(mc))
	return st, mc, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	st, _, h := newTestServer(t)
	require.NoError(t, st.AppendPair("u1", store.UserMessage("q"), store.AssistantMessage("a")))

	rec := do(t, h, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["users"])
	assert.EqualValues(t, 2, body["messages"])
	assert.NotEmpty(t, rec.Header().Get(ops.HeaderRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, _, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(ops.HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(ops.HeaderRequestID))
}

func TestMemory_GetReportsLengthOnly(t *testing.T) {
	st, _, h := newTestServer(t)
	require.NoError(t, st.AppendPair("u1", store.UserMessage("secret question"), store.AssistantMessage("secret answer")))

	rec := do(t, h, http.MethodGet, "/v1/memory/u1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","messages":2}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestMemory_DeleteResets(t *testing.T) {
	st, _, h := newTestServer(t)
	require.NoError(t, st.AppendPair("u1", store.UserMessage("q"), store.AssistantMessage("a")))
	require.NoError(t, st.AppendPair("u2", store.UserMessage("q"), store.AssistantMessage("a")))

	rec := do(t, h, http.MethodDelete, "/v1/memory/u1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, st.GetOrCreate("u1"))
	assert.Len(t, st.GetOrCreate("u2"), 2)
}

func TestMemory_DeleteUnseenUserSucceeds(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := do(t, h, http.MethodDelete, "/v1/memory/nobody")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, mc, h := newTestServer(t)
	mc.RecordTurn("discord", monitoring.OutcomeReplied)

	rec := do(t, h, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "chatrelay_relay_turns_total"))
}

func TestUnknownRouteIs404(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/unknown")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
