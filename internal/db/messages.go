package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// SaveMessage stores one message from senderID to peerID.
func (c *Client) SaveMessage(ctx context.Context, senderID, peerID, text string) error {
	_, err := surrealdb.Query[[]models.StoredMessage](ctx, c.db, `
		CREATE message SET
			sender = $sender,
			peer = $peer,
			users = $users,
			text = $text,
			created_at = time::now()
	`, map[string]any{
		"sender": senderID,
		"peer":   peerID,
		"users":  models.ParticipantKey(senderID, peerID),
		"text":   text,
	})
	if err != nil {
		return fmt.Errorf("save message: %w", wrapQueryError(err))
	}
	return nil
}

// ListConversation returns the messages exchanged between a and b, oldest
// first. The order of a and b does not matter.
func (c *Client) ListConversation(ctx context.Context, a, b string) ([]models.StoredMessage, error) {
	results, err := surrealdb.Query[[]models.StoredMessage](ctx, c.db, `
		SELECT * FROM message WHERE users = $users ORDER BY created_at ASC
	`, map[string]any{"users": models.ParticipantKey(a, b)})
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.StoredMessage{}, nil
	}
	return (*results)[0].Result, nil
}

// CountMessages returns the number of stored messages.
func (c *Client) CountMessages(ctx context.Context) (int, error) {
	type countRow struct {
		Count int `json:"count"`
	}
	results, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM message GROUP ALL
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
