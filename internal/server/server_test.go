package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/chatsync/internal/chat"
	"github.com/raphaelgruber/chatsync/internal/client"
	"github.com/raphaelgruber/chatsync/internal/metrics"
	"github.com/raphaelgruber/chatsync/internal/models"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func startRelay(t *testing.T, store Store) (*Server, *httptest.Server, *metrics.Collector) {
	t.Helper()
	m := metrics.NewCollector()
	srv := New(store, testLogger(), m)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, m
}

func socketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + socketPath
}

func TestHealth(t *testing.T) {
	_, ts, _ := startRelay(t, NewMemoryStore())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPersistThenFetchHistory(t *testing.T) {
	_, ts, m := startRelay(t, NewMemoryStore())
	c := client.New(ts.URL, time.Second)
	ctx := context.Background()

	require.NoError(t, c.PersistMessage(ctx, models.PersistRequest{SenderID: "bob", PeerID: "me", Message: models.PersistPayload{Text: "hi"}}))
	require.NoError(t, c.PersistMessage(ctx, models.PersistRequest{SenderID: "me", PeerID: "bob", Message: models.PersistPayload{Text: "yo"}}))
	require.NoError(t, c.PersistMessage(ctx, models.PersistRequest{SenderID: "me", PeerID: "carol", Message: models.PersistPayload{Text: "other"}}))

	records, err := c.FetchHistory(ctx, models.HistoryRequest{RequesterID: "me", PeerID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, []models.HistoryRecord{
		{SenderID: "bob", Text: "hi"},
		{SenderID: "me", Text: "yo"},
	}, records)

	snap := m.Snapshot()
	assert.Contains(t, snap.Routes(), "POST "+client.PathPersist)
	assert.Contains(t, snap.Routes(), "POST "+client.PathHistory)
	require.NotNil(t, snap.StoreQuery)
	assert.Equal(t, int64(4), snap.StoreQuery.Count)
}

func TestFetchHistoryEmptyConversation(t *testing.T) {
	_, ts, _ := startRelay(t, NewMemoryStore())

	records, err := client.New(ts.URL, time.Second).FetchHistory(context.Background(),
		models.HistoryRequest{RequesterID: "me", PeerID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRejectsInvalidRequests(t *testing.T) {
	_, ts, _ := startRelay(t, NewMemoryStore())

	tests := []struct {
		name string
		path string
		body string
	}{
		{"history missing peer", client.PathHistory, `{"from":"me"}`},
		{"history malformed", client.PathHistory, `{`},
		{"persist blank text", client.PathPersist, `{"from":"me","to":"bob","message":{"text":"  "}}`},
		{"persist missing sender", client.PathPersist, `{"to":"bob","message":{"text":"hi"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+tt.path, "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

type failingStore struct{}

func (failingStore) SaveMessage(context.Context, string, string, string) error {
	return errors.New("disk full")
}

func (failingStore) ListConversation(context.Context, string, string) ([]models.StoredMessage, error) {
	return nil, errors.New("disk full")
}

func TestStoreFailureIsServerError(t *testing.T) {
	_, ts, m := startRelay(t, failingStore{})
	c := client.New(ts.URL, time.Second)

	err := c.PersistMessage(context.Background(), models.PersistRequest{SenderID: "me", PeerID: "bob", Message: models.PersistPayload{Text: "hi"}})
	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)

	assert.Equal(t, int64(1), m.Snapshot().Requests["POST "+client.PathPersist].Failures)
}

func TestHubForwardsToOnlineRecipient(t *testing.T) {
	srv, ts, _ := startRelay(t, NewMemoryStore())
	ctx := context.Background()

	me, err := client.Dial(ctx, socketURL(ts), "me")
	require.NoError(t, err)
	defer me.Close()
	bob, err := client.Dial(ctx, socketURL(ts), "bob")
	require.NoError(t, err)
	defer bob.Close()

	received := make(chan models.InboundEvent, 1)
	unsubscribe, err := bob.Subscribe(func(e models.InboundEvent) { received <- e })
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool { return srv.Hub().Online("me") && srv.Hub().Online("bob") },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, me.Emit(ctx, models.OutboundEvent{To: "bob", From: "me", Text: "ping"}))

	select {
	case e := <-received:
		assert.Equal(t, models.InboundEvent{Text: "ping", From: "me"}, e)
	case <-time.After(2 * time.Second):
		t.Fatal("message not forwarded")
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	srv, ts, _ := startRelay(t, NewMemoryStore())

	bob, err := client.Dial(context.Background(), socketURL(ts), "bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Hub().Online("bob") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Close())
	assert.Eventually(t, func() bool { return !srv.Hub().Online("bob") }, 2*time.Second, 10*time.Millisecond)
}

// TestEnginesOverRelay runs two chat engines against the relay.
func TestEnginesOverRelay(t *testing.T) {
	srv, ts, _ := startRelay(t, NewMemoryStore())
	ctx := context.Background()

	newEngine := func(user string) *chat.Engine {
		ch, err := client.Dial(ctx, socketURL(ts), user)
		require.NoError(t, err)
		t.Cleanup(func() { ch.Close() })

		api := client.New(ts.URL, time.Second)
		e, err := chat.NewEngine(chat.Config{
			LocalUserID: user,
			History:     api,
			Persister:   api,
			Channel:     ch,
			Logger:      testLogger(),
		})
		require.NoError(t, err)
		require.NoError(t, e.Start())
		t.Cleanup(e.Close)
		return e
	}

	me := newEngine("me")
	bob := newEngine("bob")
	require.Eventually(t, func() bool { return srv.Hub().Online("me") && srv.Hub().Online("bob") },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, me.Select(ctx, "bob"))
	require.NoError(t, bob.Select(ctx, "me"))

	key, ok := me.ActiveKey()
	require.True(t, ok)
	msg, err := me.Send(ctx, key, "hi bob")
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySent, msg.DeliveryState)

	require.Eventually(t, func() bool { return len(bob.Snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := bob.Snapshot()[0]
	assert.Equal(t, models.OriginPeer, got.Origin)
	assert.Equal(t, "hi bob", got.Text)

	// A fresh activation sees the same message through history.
	require.NoError(t, bob.Refresh(ctx))
	snap := bob.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.OriginPeer, snap[0].Origin)

	mine := me.Snapshot()
	require.Len(t, mine, 1)
	assert.Equal(t, models.OriginSelf, mine[0].Origin)
}
