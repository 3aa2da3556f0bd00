package models

import "time"

// User represents a registered user account.
// Users are provisioned outside the ledger and are only referenced here.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// DisplayName is the name shown to other users.
	DisplayName string

	// Email is the user's email address (unique).
	Email string

	CreatedAt time.Time
}
