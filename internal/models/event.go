package models

import "encoding/json"

// Push channel event types. The names match the socket events of the chat
// backend.
const (
	EventAddUser         = "add-user"
	EventSendMessage     = "send-msg"
	EventMessageReceived = "msg-receive"
)

// Envelope is the frame exchanged on the push channel.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AddUserPayload registers a socket for a user id.
type AddUserPayload struct {
	UserID string `json:"userId"`
}

// OutboundEvent is emitted when the local user sends a message.
type OutboundEvent struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

// InboundEvent is delivered when a message arrives for the local user.
// From is optional: the transport scopes the channel to one pairing, so
// servers may omit it.
type InboundEvent struct {
	Text string `json:"text"`
	From string `json:"from,omitempty"`
}

// HistoryRequest asks for the messages exchanged between two users.
type HistoryRequest struct {
	RequesterID string `json:"from"`
	PeerID      string `json:"to"`
}

// HistoryRecord is one entry of a history response, oldest first.
type HistoryRecord struct {
	SenderID string `json:"sender"`
	Text     string `json:"text"`
}

// PersistRequest stores one message.
type PersistRequest struct {
	SenderID string         `json:"from"`
	PeerID   string         `json:"to"`
	Message  PersistPayload `json:"message"`
}

// PersistPayload carries the body of a persisted message.
type PersistPayload struct {
	Text string `json:"text"`
}

// NewEnvelope encodes payload into an envelope of the given type.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: raw}, nil
}
