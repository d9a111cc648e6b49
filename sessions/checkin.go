package sessions

import (
	"context"
	"sync"

	"github.com/hutechbot/backend/accounts"
	apperrors "github.com/hutechbot/backend/internal/errors"
	"github.com/hutechbot/backend/portal"
)

// CheckinOutcome is the per-account result of a QR check-in. Err is nil on
// success; Message carries the portal's own wording either way.
type CheckinOutcome struct {
	Username    string
	DisplayName string
	OK          bool
	Message     string
	Err         error
}

// Label returns the name to show for the account in a result line.
func (o CheckinOutcome) Label() string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.Username
}

// CheckIn acquires a session for one account and submits the QR check-in.
func (m *Manager) CheckIn(ctx context.Context, chatID int64, username, code string, loc portal.Location) CheckinOutcome {
	account, err := m.repo.Get(ctx, chatID, username)
	if err != nil {
		return CheckinOutcome{Username: username, Err: err, Message: messageFor(err)}
	}
	return m.checkInAccount(ctx, account, code, loc)
}

// CheckInAll submits the check-in for every linked account of the chat user,
// one goroutine per account. Each account's failure is independent: a
// rejected login or portal error on one account never aborts the others.
// The returned error covers only the account listing itself.
func (m *Manager) CheckInAll(ctx context.Context, chatID int64, code string, loc portal.Location) ([]CheckinOutcome, error) {
	accts, err := m.repo.List(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(accts) == 0 {
		return nil, apperrors.ErrNotLoggedIn
	}

	outcomes := make([]CheckinOutcome, len(accts))
	var wg sync.WaitGroup
	for i, account := range accts {
		wg.Add(1)
		go func(i int, account *accounts.Account) {
			defer wg.Done()
			outcomes[i] = m.checkInAccount(ctx, account, code, loc)
		}(i, account)
	}
	wg.Wait()
	return outcomes, nil
}

func (m *Manager) checkInAccount(ctx context.Context, account *accounts.Account, code string, loc portal.Location) CheckinOutcome {
	outcome := CheckinOutcome{
		Username:    account.Username,
		DisplayName: account.DisplayName,
	}

	session, err := m.Acquire(ctx, account.ChatID, account.Username)
	if err != nil {
		outcome.Err = err
		outcome.Message = messageFor(err)
		return outcome
	}

	// The check-in endpoint belongs to the elearning API family
	result, err := m.portal.SubmitCheckin(ctx, session.LegacyToken(), code, session.DeviceUUID, loc)
	if err != nil {
		outcome.Err = err
		outcome.Message = messageFor(err)
		return outcome
	}

	outcome.OK = true
	outcome.Message = result.Message
	return outcome
}

// messageFor maps a classified error onto the Vietnamese message shown in
// per-account result lines.
func messageFor(err error) string {
	switch apperrors.Classify(err) {
	case apperrors.KindAuth:
		return "Phiên đăng nhập không hợp lệ, vui lòng đăng nhập lại"
	case apperrors.KindValidation:
		return "Yêu cầu không hợp lệ"
	default:
		return "Không thể kết nối đến hệ thống HUTECH, vui lòng thử lại sau"
	}
}
