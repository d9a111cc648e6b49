package accounts

import (
	"fmt"
	"time"
)

// Account is one linked HUTECH credential set owned by a single chat user.
// A chat user may link several accounts; exactly one is active at a time and
// is the target of single-account commands. The portal password is stored
// encrypted and is only decrypted for a portal login.
type Account struct {
	ChatID            int64     // Telegram chat user ID
	Username          string    // portal username (student code)
	EncryptedPassword []byte    // XChaCha20-Poly1305, nonce-prefixed
	DeviceUUID        string    // generated once per login, sent as "diuu"
	Active            bool      // the account current single-account commands act on
	DisplayName       string    // student's full name from the login response
	PreferredCampus   string    // default check-in campus, empty if unset
	Token             string    // permission-v2 API token (JWT)
	LegacyToken       string    // old_login_info token, preferred by the elearning APIs
	TokenExpiry       time.Time // zero means no usable token
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Key returns the identifier used to scope per-account locking and caching.
func Key(chatID int64, username string) string {
	return fmt.Sprintf("%d/%s", chatID, username)
}

// Key returns the account's identifier.
func (a *Account) Key() string {
	return Key(a.ChatID, a.Username)
}

// Label returns the name shown to the user for this account.
func (a *Account) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}
