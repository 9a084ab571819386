package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/chatsync/internal/metrics"
	"github.com/raphaelgruber/chatsync/internal/models"
)

func TestFetchHistory(t *testing.T) {
	var got models.HistoryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathHistory, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"sender":"bob","text":"hi"},{"sender":"me","text":"yo"}]`))
	}))
	defer srv.Close()

	m := metrics.NewCollector()
	c := New(srv.URL+"/", time.Second, WithMetrics(m))

	records, err := c.FetchHistory(context.Background(), models.HistoryRequest{RequesterID: "me", PeerID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, models.HistoryRequest{RequesterID: "me", PeerID: "bob"}, got)
	assert.Equal(t, []models.HistoryRecord{
		{SenderID: "bob", Text: "hi"},
		{SenderID: "me", Text: "yo"},
	}, records)

	snap := m.Snapshot()
	require.NotNil(t, snap.FetchHistory)
	assert.Equal(t, int64(1), snap.FetchHistory.Count)
}

func TestFetchHistoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.FetchHistory(context.Background(), models.HistoryRequest{RequesterID: "me", PeerID: "bob"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "db down", statusErr.Body)
}

func TestFetchHistoryMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).FetchHistory(context.Background(), models.HistoryRequest{})
	assert.ErrorContains(t, err, "unmarshal response")
}

func TestPersistMessage(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathPersist, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).PersistMessage(context.Background(), models.PersistRequest{
		SenderID: "me",
		PeerID:   "bob",
		Message:  models.PersistPayload{Text: "hey"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"from":    "me",
		"to":      "bob",
		"message": map[string]any{"text": "hey"},
	}, body)
}

func TestPersistMessageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := metrics.NewCollector()
	err := New(srv.URL, time.Second, WithMetrics(m)).PersistMessage(context.Background(), models.PersistRequest{})
	assert.ErrorContains(t, err, "persist message")
	assert.Equal(t, int64(1), m.Snapshot().PersistMessage.Failures)
}

func TestClientHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := New(srv.URL, time.Minute).PersistMessage(ctx, models.PersistRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
