package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/VoiceClient/internal/domain"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_HistoryQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":7,"sender_id":2,"receiver_id":"u1","content":"hi","created_at":"2024-05-01T10:00:00Z"}]`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, "secret")
	msgs, err := c.History(context.Background(), domain.Private("2"), 50)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/messages", got.URL.Path)
	assert.Equal(t, "private", got.URL.Query().Get("scope"))
	assert.Equal(t, "2", got.URL.Query().Get("peer_id"))
	assert.Equal(t, "50", got.URL.Query().Get("limit"))
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))

	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageID("7"), msgs[0].ID)
	assert.Equal(t, domain.UserID("2"), msgs[0].SenderID)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestClient_HistoryGroupScope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "group", r.URL.Query().Get("scope"))
		assert.Equal(t, "g1", r.URL.Query().Get("group_id"))
		assert.Empty(t, r.URL.Query().Get("peer_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	msgs, err := NewClient(Config{BaseURL: srv.URL}, "t").History(context.Background(), domain.Group("g1"), 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body sendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body.Content)
		assert.Equal(t, domain.UserID("u2"), body.ReceiverID)
		assert.Equal(t, "local-1", body.ClientID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"srv-9","sender_id":"u1","receiver_id":"u2","content":"hello"}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, "t")
	out, err := c.Send(context.Background(), domain.Private("u2"), domain.ChatMessage{ID: "local-1", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageID("srv-9"), out.ID)
}

func TestClient_AuthFailures(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		_, err := NewClient(Config{BaseURL: srv.URL}, "stale").History(context.Background(), domain.Global(), 10)
		assert.ErrorIs(t, err, domain.ErrAuthExpired, "status %d", code)
		srv.Close()
	}
}

func TestClient_ServerErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"content too long"}`)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, "t").Send(context.Background(), domain.Global(), domain.ChatMessage{Content: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAuthExpired)
	assert.Contains(t, err.Error(), "content too long")
}

func TestClient_RejectsInvalidConversation(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0"}, "t")
	_, err := c.History(context.Background(), domain.ConversationRef{Kind: domain.ConversationPrivate}, 10)
	assert.ErrorIs(t, err, domain.ErrBadConversation)
}
