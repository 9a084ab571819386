// Package models defines the data structures shared by the chat core, the
// transport clients and the relay.
package models

// Origin identifies who authored a message.
type Origin int

const (
	OriginSelf Origin = iota + 1
	OriginPeer
)

func (o Origin) String() string {
	switch o {
	case OriginSelf:
		return "self"
	case OriginPeer:
		return "peer"
	default:
		return "unknown"
	}
}

// DeliveryState tracks the local delivery status of a message.
// Peer messages are always DeliverySent.
type DeliveryState int

const (
	DeliveryPending DeliveryState = iota + 1
	DeliverySent
	DeliveryFailed
)

func (s DeliveryState) String() string {
	switch s {
	case DeliveryPending:
		return "pending"
	case DeliverySent:
		return "sent"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is one entry of a conversation timeline.
//
// Text is immutable once created. Identity is a locally generated rendering
// key; it never leaves the client and is never used to deduplicate or order
// messages. DeliveryState is the only field that changes after creation.
type Message struct {
	Origin        Origin
	Text          string
	Identity      string
	DeliveryState DeliveryState
}

// FromSelf reports whether the local user authored the message.
func (m Message) FromSelf() bool {
	return m.Origin == OriginSelf
}
