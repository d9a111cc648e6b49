package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/hutechbot/backend/accounts"
	apperrors "github.com/hutechbot/backend/internal/errors"
	"github.com/hutechbot/backend/sessions"
)

type loginStep int

const (
	stepUsername loginStep = iota
	stepPassword
)

type loginState struct {
	step     loginStep
	username string
}

func (b *Bot) startLogin(ctx context.Context, chatID int64) {
	b.mu.Lock()
	b.logins[chatID] = &loginState{step: stepUsername}
	b.mu.Unlock()

	b.send(chatID, msgLoginAskUsername)
}

// continueLogin advances an in-progress login conversation. Credential
// messages are deleted from the chat as soon as they are read.
func (b *Bot) continueLogin(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.mu.Lock()
	state, ok := b.logins[chatID]
	b.mu.Unlock()
	if !ok {
		return
	}

	text := strings.TrimSpace(msg.Text)
	b.deleteMessage(chatID, msg.MessageID)

	switch state.step {
	case stepUsername:
		if text == "" {
			b.send(chatID, msgLoginAskUsername)
			return
		}
		b.mu.Lock()
		state.username = text
		state.step = stepPassword
		b.mu.Unlock()
		b.send(chatID, msgLoginAskPassword)

	case stepPassword:
		b.mu.Lock()
		delete(b.logins, chatID)
		b.mu.Unlock()
		if text == "" {
			b.send(chatID, msgLoginAborted)
			return
		}
		b.finishLogin(ctx, chatID, state.username, text)
	}
}

// finishLogin verifies the credentials against the portal before anything is
// stored. The device UUID is minted per account link and kept for its
// lifetime: the portal ties sessions to it.
func (b *Bot) finishLogin(ctx context.Context, chatID int64, username, password string) {
	deviceUUID := uuid.NewString()

	result, err := b.portal.Login(ctx, username, password, deviceUUID)
	if err != nil {
		if apperrors.Classify(err) == apperrors.KindAuth {
			b.send(chatID, msgLoginRejected)
		} else {
			b.errorReply(chatID, err, "login")
		}
		return
	}

	encrypted, err := b.cipher.Encrypt(password)
	if err != nil {
		b.errorReply(chatID, err, "encrypt credentials")
		return
	}

	account := &accounts.Account{
		ChatID:            chatID,
		Username:          username,
		EncryptedPassword: encrypted,
		DeviceUUID:        deviceUUID,
		DisplayName:       result.DisplayName,
	}
	if err := b.repo.Add(ctx, account); err != nil {
		b.errorReply(chatID, err, "store account")
		return
	}

	now := time.Now()
	expiry := sessions.TokenExpiry(result.Token, now, 30*time.Minute)
	if err := b.repo.UpdateTokens(ctx, chatID, username, result.Token, result.LegacyToken, expiry); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("token persist failed after login")
	}

	// A fresh login replaces any cached state for this account
	b.manager.Invalidate(chatID, username)
	if err := b.cache.ClearUser(ctx, chatID); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("cache clear failed after login")
	}

	name := result.DisplayName
	if name == "" {
		name = username
	}
	b.send(chatID, fmt.Sprintf(msgLoginSuccess, name))
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64, args string) {
	if args == "all" || args == "tatca" {
		b.logoutAll(ctx, chatID)
		return
	}

	account, err := b.repo.GetActive(ctx, chatID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoActiveAccount) {
			b.send(chatID, msgNotLoggedIn)
			return
		}
		b.errorReply(chatID, err, "logout")
		return
	}

	b.portalLogout(ctx, account)
	if err := b.repo.Remove(ctx, chatID, account.Username); err != nil {
		b.errorReply(chatID, err, "logout")
		return
	}
	b.manager.Invalidate(chatID, account.Username)
	if err := b.cache.ClearUser(ctx, chatID); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("cache clear failed after logout")
	}

	remaining, err := b.repo.List(ctx, chatID)
	if err == nil && len(remaining) > 0 {
		b.send(chatID, fmt.Sprintf(msgLogoutSwitchHint, account.Label(), len(remaining)))
		return
	}
	b.send(chatID, fmt.Sprintf(msgLogoutDone, account.Label()))
}

func (b *Bot) logoutAll(ctx context.Context, chatID int64) {
	list, err := b.repo.List(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "logout all")
		return
	}
	if len(list) == 0 {
		b.send(chatID, msgNotLoggedIn)
		return
	}

	for _, account := range list {
		b.portalLogout(ctx, account)
	}
	if err := b.repo.RemoveAll(ctx, chatID); err != nil {
		b.errorReply(chatID, err, "logout all")
		return
	}
	b.manager.InvalidateChat(chatID)
	if err := b.cache.ClearUser(ctx, chatID); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("cache clear failed after logout")
	}
	b.send(chatID, fmt.Sprintf(msgLogoutAllDone, len(list)))
}

// portalLogout tells the portal to drop the session. Best effort: the account
// is removed locally no matter what the portal says.
func (b *Bot) portalLogout(ctx context.Context, account *accounts.Account) {
	if account.Token == "" {
		return
	}
	if err := b.portal.Logout(ctx, account.Token, account.DeviceUUID); err != nil {
		b.log.Debug().Err(err).Str("account", account.Username).Msg("portal logout failed")
	}
}

func (b *Bot) handleAccountList(ctx context.Context, chatID int64) {
	list, err := b.repo.List(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "account list")
		return
	}
	if len(list) == 0 {
		b.send(chatID, msgNotLoggedIn)
		return
	}

	var sb strings.Builder
	sb.WriteString(msgAccountListHeader)
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, account := range list {
		marker := "▫️"
		if account.Active {
			marker = "✅"
		}
		fmt.Fprintf(&sb, "%s %d. *%s* (`%s`)\n", marker, i+1, account.Label(), account.Username)
		if !account.Active {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Chuyển sang "+account.Username, "switch:"+account.Username),
			))
		}
	}

	if len(rows) == 0 {
		b.send(chatID, sb.String())
		return
	}
	b.sendWithKeyboard(chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleAccountSwitch(ctx context.Context, chatID int64, username string) {
	if err := b.repo.SetActive(ctx, chatID, username); err != nil {
		b.errorReply(chatID, err, "account switch")
		return
	}
	// Cached portal data belongs to the previous active account
	if err := b.cache.ClearUser(ctx, chatID); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("cache clear failed after switch")
	}
	b.send(chatID, fmt.Sprintf(msgAccountSwitched, username))
}

func (b *Bot) handlePolicy(ctx context.Context, chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Đồng ý", "consent:yes"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Từ chối", "consent:no"),
		),
	)
	b.sendWithKeyboard(chatID, msgPolicy, keyboard)
}

func (b *Bot) handleConsentAnswer(ctx context.Context, chatID int64, answer string) {
	consented := answer == "yes"
	if err := b.repo.SetConsent(ctx, chatID, consented); err != nil {
		b.errorReply(chatID, err, "consent")
		return
	}
	if consented {
		b.send(chatID, msgConsentAccepted)
	} else {
		b.send(chatID, msgConsentDeclined)
	}
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Debug().Err(err).Int64("chat_id", chatID).Msg("message delete failed")
	}
}
