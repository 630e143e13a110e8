// Package account implements the account lifecycle: registration with
// email verification, password login with transparent rehashing, password
// reset, and OAuth identity linking. All durable state lives in the
// account Store; side effects like email delivery go through the job
// queue.
package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registered user. Emails are unique case-insensitively.
// Accounts are never hard-deleted; Verified and the timestamps carry the
// lifecycle.
type Account struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Verified     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is an external OAuth identity linked to an account. The pair
// (provider, lower(username)) maps to at most one account.
type Identity struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	Provider     string
	Username     string
	Name         string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
