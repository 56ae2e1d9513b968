package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/shared-care-platform/internal/model"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, response any) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.auth = r.Header.Get("Authorization")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&captured.body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if response != nil {
			_ = json.NewEncoder(w).Encode(response)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestHTTPClientSend(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusCreated, model.SendResult{MessageID: 501})
	c := NewHTTPClient(srv.URL, "tok-123")

	res, err := c.Send(context.Background(), "conv-1", "hello")

	require.NoError(t, err)
	assert.Equal(t, int64(501), res.MessageID)
	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/api/v1/conversations/conv-1/messages", captured.path)
	assert.Equal(t, "Bearer tok-123", captured.auth)
	assert.Equal(t, "hello", captured.body["content"])
}

func TestHTTPClientCurrentConversationAlias(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, model.LoadResult{
		Conversation: &model.Conversation{ID: "conv-1"},
	})
	c := NewHTTPClient(srv.URL+"/", "")

	res, err := c.Load(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "conv-1", res.Conversation.ID)
	assert.Equal(t, "/api/v1/conversations/current", captured.path)
	assert.Empty(t, captured.auth)
}

func TestHTTPClientPollCarriesWatermark(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, model.PollResult{
		Messages: []model.Message{{ID: 502, Content: "new"}},
	})
	c := NewHTTPClient(srv.URL, "")

	msgs, err := c.PollMessages(context.Background(), "conv-1", 501)

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(502), msgs[0].ID)
	assert.Equal(t, "after=501", captured.query)
}

func TestHTTPClientMarkReadNoBody(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusNoContent, nil)
	c := NewHTTPClient(srv.URL, "")

	require.NoError(t, c.MarkRead(context.Background(), "conv-1"))
	assert.Equal(t, "/api/v1/conversations/conv-1/read", captured.path)
}

func TestHTTPClientListScoped(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, model.ListResult{
		Stats: model.GroupStats{Total: 2},
	})
	c := NewHTTPClient(srv.URL, "")

	res, err := c.ListConversations(context.Background(), "group a")

	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, "group=group+a", captured.query)
}

func TestHTTPClientActionEcho(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, map[string]any{"risk": "high"})
	c := NewHTTPClient(srv.URL, "")

	got, err := c.SetRisk(context.Background(), "conv-1", model.RiskHigh)

	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, got)
	assert.Equal(t, "/api/v1/conversations/conv-1/risk", captured.path)
	assert.Equal(t, "high", captured.body["risk"])
}

func TestHTTPClientErrorStatus(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusForbidden, map[string]string{"error": "therapist role required"})
	c := NewHTTPClient(srv.URL, "")

	_, err := c.GenerateDraft(context.Background(), "conv-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "therapist role required")
}

func TestHTTPClientDirectory(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, map[string]any{
		"entries": []model.DirectoryEntry{{ID: "t-1", Name: "Dr. Chen", Handle: "chen"}},
	})
	c := NewHTTPClient(srv.URL, "")

	entries, err := c.Directory(context.Background(), "ch")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "chen", entries[0].Handle)
	assert.Equal(t, "q=ch", captured.query)
}
