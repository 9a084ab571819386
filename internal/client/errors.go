package client

import "errors"

var (
	// ErrNotConnected is returned by Emit once the socket is closed or broken.
	ErrNotConnected = errors.New("push channel not connected")
	// ErrAlreadySubscribed is returned when a second handler is registered.
	ErrAlreadySubscribed = errors.New("push channel already has a subscriber")
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return "server error: " + e.Status + " - " + e.Body
}
