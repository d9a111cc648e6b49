package sessions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/hutechbot/backend/accounts"
	apperrors "github.com/hutechbot/backend/internal/errors"
	"github.com/hutechbot/backend/portal"
)

// Tokens are treated as expired this long before their actual expiry, so a
// call started just under the wire does not die mid-flight to clock skew.
const expirySkew = 2 * time.Minute

// Portal is the subset of the portal client the manager drives.
type Portal interface {
	Login(ctx context.Context, username, password, deviceUUID string) (*portal.LoginResult, error)
	SubmitCheckin(ctx context.Context, token, code, deviceUUID string, loc portal.Location) (*portal.CheckinResult, error)
}

// Manager hands out valid portal sessions, guaranteeing at most one
// authentication refresh in flight per account. Concurrent callers for the
// same account share a single refresh instead of racing logins that would
// invalidate each other portal-side; unrelated accounts never contend.
type Manager struct {
	repo   accounts.Repo
	cipher *accounts.Cipher
	portal Portal

	group singleflight.Group

	mu   sync.RWMutex
	live map[string]*Session // accountID -> last known good session

	fallbackTTL time.Duration
	maxAttempts int
	backoff     time.Duration
	nowFunc     func() time.Time
	log         zerolog.Logger
}

// ManagerOption modifies a Manager.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = nowFunc
	}
}

// WithFallbackTTL sets the token lifetime assumed when the portal JWT
// carries no exp claim.
func WithFallbackTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.fallbackTTL = ttl
	}
}

// WithRetry sets the transient-failure retry budget for a refresh.
func WithRetry(maxAttempts int, backoff time.Duration) ManagerOption {
	return func(m *Manager) {
		m.maxAttempts = maxAttempts
		m.backoff = backoff
	}
}

// NewManager creates a session manager.
func NewManager(repo accounts.Repo, cipher *accounts.Cipher, portalClient Portal, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] accounts repo is required")
	}
	if cipher == nil {
		return nil, errors.New("[NewManager] cipher is required")
	}
	if portalClient == nil {
		return nil, errors.New("[NewManager] portal client is required")
	}

	m := &Manager{
		repo:        repo,
		cipher:      cipher,
		portal:      portalClient,
		live:        make(map[string]*Session),
		fallbackTTL: 30 * time.Minute,
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
		nowFunc:     time.Now,
		log:         log.With().Str("component", "sessions").Logger(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Acquire returns a valid session for the account. A cached, non-expired
// token is returned without portal traffic. Otherwise exactly one re-login
// runs per account regardless of how many callers arrive concurrently; they
// all receive that refresh's result. ErrAuth means the stored credentials
// were rejected and the user must log in again.
func (m *Manager) Acquire(ctx context.Context, chatID int64, username string) (*Session, error) {
	id := accounts.Key(chatID, username)

	if s := m.cached(id); s != nil {
		return s, nil
	}

	v, err, _ := m.group.Do(id, func() (interface{}, error) {
		// A caller that queued behind a finished refresh takes its result
		if s := m.cached(id); s != nil {
			return s, nil
		}
		// The refresh runs detached from the triggering caller's context:
		// if the user abandons the command mid-flight the login still
		// completes and the account is never left half-refreshed. The
		// abandoned caller simply discards the result.
		return m.refresh(context.WithoutCancel(ctx), chatID, username)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// AcquireActive resolves the chat user's active account and acquires a
// session for it.
func (m *Manager) AcquireActive(ctx context.Context, chatID int64) (*Session, error) {
	account, err := m.repo.GetActive(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return m.Acquire(ctx, chatID, account.Username)
}

// Invalidate drops the cached session state for one account. Used on logout
// and re-login.
func (m *Manager) Invalidate(chatID int64, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, accounts.Key(chatID, username))
}

// InvalidateChat drops cached session state for every account of a chat user.
func (m *Manager) InvalidateChat(chatID int64) {
	prefix := accounts.Key(chatID, "")
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.live {
		if strings.HasPrefix(id, prefix) {
			delete(m.live, id)
		}
	}
}

func (m *Manager) cached(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.live[id]; ok && m.tokenValid(s.token) {
		return s
	}
	return nil
}

func (m *Manager) store(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[s.AccountID] = s
}

func (m *Manager) tokenValid(t *oauth2.Token) bool {
	if t == nil || t.AccessToken == "" || t.Expiry.IsZero() {
		return false
	}
	return m.nowFunc().Add(expirySkew).Before(t.Expiry)
}

// refresh re-logs the account in and persists the new token pair. Transient
// failures are retried with doubling backoff up to the configured budget;
// rejected credentials are terminal.
func (m *Manager) refresh(ctx context.Context, chatID int64, username string) (*Session, error) {
	account, err := m.repo.Get(ctx, chatID, username)
	if err != nil {
		return nil, err
	}

	// A token persisted by a previous process may still be usable
	if stored := m.sessionFromAccount(account); stored != nil {
		m.store(stored)
		return stored, nil
	}

	password, err := m.cipher.Decrypt(account.EncryptedPassword)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.refresh] decrypt credentials")
	}

	var result *portal.LoginResult
	for attempt := 1; ; attempt++ {
		result, err = m.portal.Login(ctx, account.Username, password, account.DeviceUUID)
		if err == nil {
			break
		}
		if apperrors.Classify(err) != apperrors.KindTransient || attempt >= m.maxAttempts {
			m.log.Warn().Err(err).Int64("chat_id", chatID).Str("account", username).
				Int("attempt", attempt).Msg("refresh failed")
			return nil, err
		}
		m.log.Debug().Err(err).Int64("chat_id", chatID).Str("account", username).
			Int("attempt", attempt).Msg("transient refresh failure, retrying")
		if err := sleepContext(ctx, m.backoff<<(attempt-1)); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrTransient, "refresh interrupted: %v", err)
		}
	}

	now := m.nowFunc()
	expiry := TokenExpiry(result.Token, now, m.fallbackTTL)
	if err := m.repo.UpdateTokens(ctx, chatID, username, result.Token, result.LegacyToken, expiry); err != nil {
		return nil, errors.Wrap(err, "[Manager.refresh] persist tokens")
	}

	displayName := result.DisplayName
	if displayName == "" {
		displayName = account.DisplayName
	}
	s := &Session{
		AccountID:   account.Key(),
		ChatID:      chatID,
		Username:    username,
		DisplayName: displayName,
		DeviceUUID:  account.DeviceUUID,
		token: &oauth2.Token{
			AccessToken: result.Token,
			TokenType:   "JWT",
			Expiry:      expiry,
		},
		legacyToken: result.LegacyToken,
	}
	m.store(s)
	m.log.Info().Int64("chat_id", chatID).Str("account", username).
		Time("expiry", expiry).Msg("session refreshed")
	return s, nil
}

// sessionFromAccount builds a session from the account's persisted token
// pair, or nil when the stored token is missing or (nearly) expired.
func (m *Manager) sessionFromAccount(account *accounts.Account) *Session {
	t := &oauth2.Token{
		AccessToken: account.Token,
		TokenType:   "JWT",
		Expiry:      account.TokenExpiry,
	}
	if !m.tokenValid(t) {
		return nil
	}
	return &Session{
		AccountID:   account.Key(),
		ChatID:      account.ChatID,
		Username:    account.Username,
		DisplayName: account.DisplayName,
		DeviceUUID:  account.DeviceUUID,
		token:       t,
		legacyToken: account.LegacyToken,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
