package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/hutechbot/backend/internal/errors"
)

// InMemoryRepo is an in-memory implementation of Repo. It backs the tests
// and local development without a database.
type InMemoryRepo struct {
	mu       sync.RWMutex
	accounts map[int64]map[string]*Account // chatID -> username -> account
	consents map[int64]bool
	nowFunc  func() time.Time
}

// NewInMemoryRepo creates a new in-memory account repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		accounts: make(map[int64]map[string]*Account),
		consents: make(map[int64]bool),
		nowFunc:  time.Now,
	}
}

func (r *InMemoryRepo) Add(_ context.Context, account *Account) error {
	if account.ChatID == 0 {
		return apperrors.Wrapf(apperrors.ErrValidation, "[InMemoryRepo.Add] chatID is required")
	}
	if account.Username == "" {
		return apperrors.Wrapf(apperrors.ErrValidation, "[InMemoryRepo.Add] username is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ChatID]; !ok {
		r.accounts[account.ChatID] = make(map[string]*Account)
	}
	for _, existing := range r.accounts[account.ChatID] {
		existing.Active = false
	}

	// Copy so callers cannot mutate stored state afterwards
	stored := *account
	stored.Active = true
	now := r.nowFunc()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if prev, ok := r.accounts[account.ChatID][account.Username]; ok {
		stored.CreatedAt = prev.CreatedAt
		if stored.PreferredCampus == "" {
			stored.PreferredCampus = prev.PreferredCampus
		}
	}
	r.accounts[account.ChatID][account.Username] = &stored
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, chatID int64, username string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[chatID][username]
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *InMemoryRepo) GetActive(_ context.Context, chatID int64) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts[chatID] {
		if account.Active {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNoActiveAccount
}

func (r *InMemoryRepo) List(_ context.Context, chatID int64) ([]*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Account, 0, len(r.accounts[chatID]))
	for _, account := range r.accounts[chatID] {
		copied := *account
		result = append(result, &copied)
	}
	// Active account first, then newest, matching the postgres ordering
	sort.Slice(result, func(i, j int) bool {
		if result[i].Active != result[j].Active {
			return result[i].Active
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Username < result[j].Username
	})
	return result, nil
}

func (r *InMemoryRepo) SetActive(_ context.Context, chatID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.accounts[chatID][username]
	if !ok {
		return apperrors.ErrAccountNotFound
	}
	for _, account := range r.accounts[chatID] {
		account.Active = false
	}
	target.Active = true
	target.UpdatedAt = r.nowFunc()
	return nil
}

func (r *InMemoryRepo) Remove(_ context.Context, chatID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chatAccounts, ok := r.accounts[chatID]
	if !ok {
		return nil // already gone
	}
	delete(chatAccounts, username)
	if len(chatAccounts) == 0 {
		delete(r.accounts, chatID)
	}
	return nil
}

func (r *InMemoryRepo) RemoveAll(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, chatID)
	return nil
}

func (r *InMemoryRepo) UpdateTokens(_ context.Context, chatID int64, username, token, legacyToken string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[chatID][username]
	if !ok {
		return apperrors.ErrAccountNotFound
	}
	account.Token = token
	account.LegacyToken = legacyToken
	account.TokenExpiry = expiry
	account.UpdatedAt = r.nowFunc()
	return nil
}

func (r *InMemoryRepo) GetPreferredCampus(_ context.Context, chatID int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts[chatID] {
		if account.PreferredCampus != "" {
			return account.PreferredCampus, nil
		}
	}
	return "", nil
}

func (r *InMemoryRepo) SetPreferredCampus(_ context.Context, chatID int64, campus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts[chatID] {
		account.PreferredCampus = campus
	}
	return nil
}

func (r *InMemoryRepo) ClearPreferredCampus(ctx context.Context, chatID int64) error {
	return r.SetPreferredCampus(ctx, chatID, "")
}

func (r *InMemoryRepo) HasConsented(_ context.Context, chatID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.consents[chatID], nil
}

func (r *InMemoryRepo) SetConsent(_ context.Context, chatID int64, consented bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consents[chatID] = consented
	return nil
}

var _ Repo = (*InMemoryRepo)(nil)
