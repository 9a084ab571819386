package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// MessagePersister is the request/response call that stores a sent message.
type MessagePersister interface {
	PersistMessage(ctx context.Context, req models.PersistRequest) error
}

// Sink receives optimistic appends and delivery updates for one activation.
type Sink interface {
	Append(msg *models.Message) int
	SetDeliveryState(msg *models.Message, state models.DeliveryState)
}

// Dispatcher sends locally composed messages.
type Dispatcher struct {
	channel   PushChannel
	persister MessagePersister
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. channel may be nil, in which case sends
// go over request/response only.
func NewDispatcher(channel PushChannel, persister MessagePersister, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		channel:   channel,
		persister: persister,
		logger:    logger.With("component", "dispatcher"),
	}
}

// Send appends the message to sink as Pending before anything touches the
// network, then emits it on the push channel while persisting it. The
// message ends up Sent when persistence succeeds and Failed otherwise; a
// failed message is never removed or retried. A missing push channel only
// means the peer sees the message on its next history fetch.
func (d *Dispatcher) Send(ctx context.Context, sink Sink, key models.ConversationKey, text string) (models.Message, error) {
	if key.IsZero() {
		return models.Message{}, ErrNoConversation
	}
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}

	msg := &models.Message{
		Origin:        models.OriginSelf,
		Text:          text,
		Identity:      newIdentity(),
		DeliveryState: models.DeliveryPending,
	}
	sink.Append(msg)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.emit(ctx, key, text)
	}()

	err := d.persister.PersistMessage(ctx, models.PersistRequest{
		SenderID: key.LocalUserID(),
		PeerID:   key.PeerID(),
		Message:  models.PersistPayload{Text: text},
	})
	wg.Wait()

	result := models.Message{
		Origin:   msg.Origin,
		Text:     msg.Text,
		Identity: msg.Identity,
	}
	if err != nil {
		sink.SetDeliveryState(msg, models.DeliveryFailed)
		d.logger.Warn("persist failed", "conversation", key.String(), "error", err)
		result.DeliveryState = models.DeliveryFailed
		return result, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	sink.SetDeliveryState(msg, models.DeliverySent)
	result.DeliveryState = models.DeliverySent
	return result, nil
}

func (d *Dispatcher) emit(ctx context.Context, key models.ConversationKey, text string) {
	if d.channel == nil {
		d.logger.Debug("push emit skipped", "conversation", key.String(), "reason", ErrChannelUnavailable)
		return
	}

	err := d.channel.Emit(ctx, models.OutboundEvent{
		To:   key.PeerID(),
		From: key.LocalUserID(),
		Text: text,
	})
	if err != nil {
		d.logger.Debug("push emit skipped", "conversation", key.String(),
			"reason", fmt.Errorf("%w: %w", ErrChannelUnavailable, err))
	}
}
