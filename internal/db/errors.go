package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// Callers may retry the operation.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrInvalidMessage indicates the message failed a schema assertion,
	// e.g. an empty sender or peer.
	ErrInvalidMessage = errors.New("invalid message")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query error type. Returns the original error
// if it's not a QueryError or doesn't match known patterns.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
		if strings.Contains(msg, "ASSERT") || strings.Contains(msg, "assertion") {
			return fmt.Errorf("%w: %s", ErrInvalidMessage, msg)
		}
	}

	return err
}
