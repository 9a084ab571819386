//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/chatsync/internal/models"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func resetDB(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.WipeData(context.Background()))
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.InitSchema(ctx))

	result, err := testDB.Query(ctx, "INFO FOR DB", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestSaveAndListConversation(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	require.NoError(t, testDB.SaveMessage(ctx, "bob", "me", "hi"))
	require.NoError(t, testDB.SaveMessage(ctx, "me", "bob", "yo"))
	require.NoError(t, testDB.SaveMessage(ctx, "me", "carol", "elsewhere"))

	msgs, err := testDB.ListConversation(ctx, "me", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "bob", msgs[0].SenderID)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "me", msgs[1].SenderID)
	assert.Equal(t, "yo", msgs[1].Text)
	assert.Equal(t, []string{"bob", "me"}, msgs[0].Users)
	assert.False(t, msgs[0].CreatedAt.After(msgs[1].CreatedAt))

	id, err := models.RecordIDString(msgs[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	reversed, err := testDB.ListConversation(ctx, "bob", "me")
	require.NoError(t, err)
	assert.Len(t, reversed, 2)
}

func TestListConversationEmpty(t *testing.T) {
	resetDB(t)

	msgs, err := testDB.ListConversation(context.Background(), "me", "nobody")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSaveMessageRejectsEmptySender(t *testing.T) {
	resetDB(t)

	err := testDB.SaveMessage(context.Background(), "", "bob", "hi")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestConcurrentSaves(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, testDB.SaveMessage(ctx, "me", "bob", fmt.Sprintf("msg %d", i)))
		}()
	}
	wg.Wait()

	count, err := testDB.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}
