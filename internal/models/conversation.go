package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ConversationKey identifies the conversation between the local user and one
// peer. Keys are comparable: equal inputs produce equal keys.
type ConversationKey struct {
	localUserID string
	peerID      string
}

// NewConversationKey builds a key for the pair. Callers normally go through
// chat.ResolveKey, which also handles an absent peer.
func NewConversationKey(localUserID, peerID string) ConversationKey {
	return ConversationKey{localUserID: localUserID, peerID: peerID}
}

// LocalUserID returns the local side of the pair.
func (k ConversationKey) LocalUserID() string { return k.localUserID }

// PeerID returns the remote side of the pair.
func (k ConversationKey) PeerID() string { return k.peerID }

// IsZero reports whether the key names no conversation.
func (k ConversationKey) IsZero() bool { return k.peerID == "" }

func (k ConversationKey) String() string {
	if k.IsZero() {
		return "<none>"
	}
	return k.localUserID + "->" + k.peerID
}

// StoredMessage is a message as the relay persists it.
type StoredMessage struct {
	ID        surrealmodels.RecordID `json:"id,omitempty"`
	SenderID  string                 `json:"sender"`
	PeerID    string                 `json:"peer"`
	Users     []string               `json:"users"`
	Text      string                 `json:"text"`
	CreatedAt time.Time              `json:"created_at"`
}
