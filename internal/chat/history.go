package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// HistoryFetcher is the request/response call that returns prior messages.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, req models.HistoryRequest) ([]models.HistoryRecord, error)
}

// HistoryLoader fetches and normalizes conversation history.
type HistoryLoader struct {
	fetcher HistoryFetcher
	logger  *slog.Logger
}

// NewHistoryLoader creates a loader. Pass nil logger for default.
func NewHistoryLoader(fetcher HistoryFetcher, logger *slog.Logger) *HistoryLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryLoader{
		fetcher: fetcher,
		logger:  logger.With("component", "history"),
	}
}

// Load fetches the history of key, oldest first. Each record becomes a Sent
// message whose origin is Self when the record's sender is the local user.
// Failures wrap ErrFetchFailed and are not retried.
func (l *HistoryLoader) Load(ctx context.Context, key models.ConversationKey) ([]*models.Message, error) {
	if key.IsZero() {
		return nil, ErrNoConversation
	}

	records, err := l.fetcher.FetchHistory(ctx, models.HistoryRequest{
		RequesterID: key.LocalUserID(),
		PeerID:      key.PeerID(),
	})
	if err != nil {
		l.logger.Warn("history fetch failed", "conversation", key.String(), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	messages := make([]*models.Message, len(records))
	for i, r := range records {
		origin := models.OriginPeer
		if r.SenderID == key.LocalUserID() {
			origin = models.OriginSelf
		}
		messages[i] = &models.Message{
			Origin:        origin,
			Text:          r.Text,
			Identity:      newIdentity(),
			DeliveryState: models.DeliverySent,
		}
	}

	l.logger.Debug("history loaded", "conversation", key.String(), "count", len(messages))
	return messages, nil
}

// newIdentity returns a fresh rendering key.
func newIdentity() string {
	return uuid.New().String()
}
