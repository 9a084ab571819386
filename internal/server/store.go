package server

import (
	"context"
	"sync"
	"time"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// Store persists messages for the relay.
type Store interface {
	SaveMessage(ctx context.Context, senderID, peerID, text string) error
	// ListConversation returns the messages exchanged between a and b,
	// oldest first.
	ListConversation(ctx context.Context, a, b string) ([]models.StoredMessage, error)
}

// MemoryStore keeps messages in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]models.StoredMessage
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]models.StoredMessage),
		now:      time.Now,
	}
}

func conversationID(a, b string) string {
	users := models.ParticipantKey(a, b)
	return users[0] + "\x00" + users[1]
}

func (s *MemoryStore) SaveMessage(ctx context.Context, senderID, peerID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := conversationID(senderID, peerID)
	s.messages[id] = append(s.messages[id], models.StoredMessage{
		SenderID:  senderID,
		PeerID:    peerID,
		Users:     models.ParticipantKey(senderID, peerID),
		Text:      text,
		CreatedAt: s.now(),
	})
	return nil
}

func (s *MemoryStore) ListConversation(ctx context.Context, a, b string) ([]models.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[conversationID(a, b)]
	out := make([]models.StoredMessage, len(stored))
	copy(out, stored)
	return out, nil
}
