package models

import (
	"fmt"
	"slices"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// ParticipantKey returns the order-independent pair used to look up the
// messages exchanged between two users.
func ParticipantKey(a, b string) []string {
	users := []string{a, b}
	slices.Sort(users)
	return users
}
