package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreConversationIsSymmetric(t *testing.T) {
	s := NewMemoryStore()
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	ctx := context.Background()

	require.NoError(t, s.SaveMessage(ctx, "bob", "me", "hi"))
	require.NoError(t, s.SaveMessage(ctx, "me", "bob", "yo"))
	require.NoError(t, s.SaveMessage(ctx, "me", "carol", "elsewhere"))

	fromMe, err := s.ListConversation(ctx, "me", "bob")
	require.NoError(t, err)
	fromBob, err := s.ListConversation(ctx, "bob", "me")
	require.NoError(t, err)
	assert.Equal(t, fromMe, fromBob)

	require.Len(t, fromMe, 2)
	assert.Equal(t, "hi", fromMe[0].Text)
	assert.Equal(t, "bob", fromMe[0].SenderID)
	assert.Equal(t, []string{"bob", "me"}, fromMe[0].Users)
	assert.True(t, fromMe[0].CreatedAt.Before(fromMe[1].CreatedAt))
}

func TestMemoryStoreReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveMessage(ctx, "me", "bob", "hi"))

	got, err := s.ListConversation(ctx, "me", "bob")
	require.NoError(t, err)
	got[0].Text = "changed"

	again, err := s.ListConversation(ctx, "me", "bob")
	require.NoError(t, err)
	assert.Equal(t, "hi", again[0].Text)
}
