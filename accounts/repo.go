package accounts

import (
	"context"
	"time"
)

// Repo defines storage for linked portal accounts and per-chat-user settings.
type Repo interface {
	// Add creates or updates an account. The added account becomes the chat
	// user's active account; any previously active account is deactivated.
	Add(ctx context.Context, account *Account) error

	// Get retrieves one account by chat user and portal username
	Get(ctx context.Context, chatID int64, username string) (*Account, error)

	// GetActive retrieves the chat user's active account
	GetActive(ctx context.Context, chatID int64) (*Account, error)

	// List returns all of the chat user's accounts, active first
	List(ctx context.Context, chatID int64) ([]*Account, error)

	// SetActive switches the active account for a chat user
	SetActive(ctx context.Context, chatID int64, username string) error

	// Remove deletes one account
	Remove(ctx context.Context, chatID int64, username string) error

	// RemoveAll deletes every account of a chat user
	RemoveAll(ctx context.Context, chatID int64) error

	// UpdateTokens stores a freshly obtained token pair and its expiry
	UpdateTokens(ctx context.Context, chatID int64, username, token, legacyToken string, expiry time.Time) error

	// Preferred check-in campus, per chat user
	GetPreferredCampus(ctx context.Context, chatID int64) (string, error)
	SetPreferredCampus(ctx context.Context, chatID int64, campus string) error
	ClearPreferredCampus(ctx context.Context, chatID int64) error

	// Privacy-policy consent, per chat user
	HasConsented(ctx context.Context, chatID int64) (bool, error)
	SetConsent(ctx context.Context, chatID int64, consented bool) error
}
