package chat

import (
	"sync"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// Timeline is the ordered message sequence of one conversation activation.
// Messages are kept in insertion order and are never removed or reordered.
// All methods are thread-safe.
type Timeline struct {
	mu       sync.RWMutex
	key      models.ConversationKey
	messages []*models.Message
}

// NewTimeline creates an empty timeline for key.
func NewTimeline(key models.ConversationKey) *Timeline {
	return &Timeline{key: key}
}

// Key returns the conversation the timeline belongs to.
func (t *Timeline) Key() models.ConversationKey {
	return t.key
}

// Replace discards the current contents and installs messages in the given
// order.
func (t *Timeline) Replace(messages []*models.Message) {
	installed := make([]*models.Message, len(messages))
	copy(installed, messages)

	t.mu.Lock()
	t.messages = installed
	t.mu.Unlock()
}

// Append adds msg to the end and returns the new length.
func (t *Timeline) Append(msg *models.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, msg)
	return len(t.messages)
}

// SetDeliveryState updates the delivery state of msg in place. It returns
// false if msg is not part of this timeline.
func (t *Timeline) SetDeliveryState(msg *models.Message, state models.DeliveryState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range t.messages {
		if m == msg {
			m.DeliveryState = state
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current sequence.
func (t *Timeline) Snapshot() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
