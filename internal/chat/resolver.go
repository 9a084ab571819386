package chat

import (
	"strings"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// ResolveKey derives the conversation key for the local user and the selected
// peer. It returns false when no peer is selected. The key is a plain value, so
// repeated calls with the same pair yield equal keys and a different peer
// always yields a different key.
func ResolveKey(localUserID, peerID string) (models.ConversationKey, bool) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return models.ConversationKey{}, false
	}
	return models.NewConversationKey(localUserID, peerID), true
}
