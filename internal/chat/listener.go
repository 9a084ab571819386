package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// PushChannel is the already-connected bidirectional event channel.
type PushChannel interface {
	// Emit sends an outbound event. Implementations return an error when the
	// channel is not connected.
	Emit(ctx context.Context, event models.OutboundEvent) error

	// Subscribe registers handler for inbound message events and returns the
	// function that releases the subscription.
	Subscribe(handler func(models.InboundEvent)) (unsubscribe func(), err error)
}

// InboundRoute receives each inbound event together with its normalized
// message.
type InboundRoute func(event models.InboundEvent, msg *models.Message)

// Listener holds the single live subscription to inbound messages. The
// subscription lives as long as the channel, not a conversation; routing to
// the active timeline is the caller's job.
type Listener struct {
	channel PushChannel
	logger  *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
}

// NewListener creates a listener for channel. Pass nil logger for default.
func NewListener(channel PushChannel, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		channel: channel,
		logger:  logger.With("component", "listener"),
	}
}

// Start subscribes to inbound messages. Each event becomes a Sent message
// from the peer with a fresh identity and is passed to route. Starting a
// listener that is already subscribed fails with ErrAlreadySubscribed.
func (l *Listener) Start(route InboundRoute) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unsubscribe != nil {
		return ErrAlreadySubscribed
	}

	unsubscribe, err := l.channel.Subscribe(func(event models.InboundEvent) {
		route(event, &models.Message{
			Origin:        models.OriginPeer,
			Text:          event.Text,
			Identity:      newIdentity(),
			DeliveryState: models.DeliverySent,
		})
	})
	if err != nil {
		return err
	}

	var once sync.Once
	l.unsubscribe = func() { once.Do(unsubscribe) }
	l.logger.Debug("subscribed to inbound messages")
	return nil
}

// Stop releases the subscription. It is safe to call multiple times; the
// underlying unsubscribe runs exactly once per Start.
func (l *Listener) Stop() {
	l.mu.Lock()
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil
	l.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
		l.logger.Debug("unsubscribed from inbound messages")
	}
}

// Active reports whether the listener holds a subscription.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unsubscribe != nil
}
