package chat

import "errors"

// Sentinel errors for chat operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrFetchFailed indicates the history request failed. The timeline was
	// not populated; the caller decides whether to show an empty or error
	// state and whether to Refresh.
	ErrFetchFailed = errors.New("fetch history failed")

	// ErrPersistFailed indicates the persistence call for a sent message
	// failed. The message stays in the timeline marked DeliveryFailed.
	ErrPersistFailed = errors.New("persist message failed")

	// ErrChannelUnavailable indicates the push channel is not connected.
	// Sends degrade to request/response only; this is never returned from Send.
	ErrChannelUnavailable = errors.New("push channel unavailable")

	// ErrNoConversation indicates no peer is selected.
	ErrNoConversation = errors.New("no active conversation")

	// ErrInactiveConversation indicates an operation targeted a conversation
	// that is no longer the active one.
	ErrInactiveConversation = errors.New("conversation is not active")

	// ErrEmptyMessage indicates an attempt to send a blank message.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrAlreadySubscribed indicates a second live subscription was requested
	// while one is still held.
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("engine closed")
)
