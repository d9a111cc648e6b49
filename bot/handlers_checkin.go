package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hutechbot/backend/portal"
)

func campusKeyboard(action string, withClear bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, name := range portal.CampusNames() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📍 "+name, action+":"+name),
		))
	}
	if withClear {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Xóa vị trí đã lưu", action+":clear"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleCampus(ctx context.Context, chatID int64) {
	current, err := b.repo.GetPreferredCampus(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "campus lookup")
		return
	}

	text := msgCampusPrompt
	if current != "" {
		text = fmt.Sprintf(msgCampusCurrent, current)
	}
	b.sendWithKeyboard(chatID, text, campusKeyboard("campus", current != ""))
}

func (b *Bot) handleCampusPick(ctx context.Context, chatID int64, name string) {
	if name == "clear" {
		if err := b.repo.ClearPreferredCampus(ctx, chatID); err != nil {
			b.errorReply(chatID, err, "campus clear")
			return
		}
		b.send(chatID, msgCampusCleared)
		return
	}
	if _, ok := portal.Campuses[name]; !ok {
		b.send(chatID, msgCampusUnknown)
		return
	}
	if err := b.repo.SetPreferredCampus(ctx, chatID, name); err != nil {
		b.errorReply(chatID, err, "campus set")
		return
	}
	b.send(chatID, fmt.Sprintf(msgCampusSaved, name))
}

// handleCheckin runs /diemdanh (active account) and /diemdanhtatca (all
// accounts). When no campus preference is stored the code is parked and the
// user picks the campus from a keyboard.
func (b *Bot) handleCheckin(ctx context.Context, chatID int64, code string, all bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		b.send(chatID, msgCheckinNoCode)
		return
	}

	campus, err := b.repo.GetPreferredCampus(ctx, chatID)
	if err != nil {
		b.errorReply(chatID, err, "campus lookup")
		return
	}
	if campus == "" {
		b.mu.Lock()
		b.pending[chatID] = pendingCheckin(code, all)
		b.mu.Unlock()
		b.sendWithKeyboard(chatID, msgCheckinPickCampus, campusKeyboard("checkin", false))
		return
	}

	b.runCheckin(ctx, chatID, code, campus, all)
}

// handlePendingCheckin resumes a check-in once the user picked a campus.
func (b *Bot) handlePendingCheckin(ctx context.Context, chatID int64, campus string) {
	b.mu.Lock()
	parked, ok := b.pending[chatID]
	delete(b.pending, chatID)
	b.mu.Unlock()
	if !ok {
		b.send(chatID, msgCheckinExpiredPick)
		return
	}
	if _, valid := portal.Campuses[campus]; !valid {
		b.send(chatID, msgCampusUnknown)
		return
	}

	code, all := parsePendingCheckin(parked)
	b.runCheckin(ctx, chatID, code, campus, all)
}

func (b *Bot) runCheckin(ctx context.Context, chatID int64, code, campus string, all bool) {
	location := portal.Campuses[campus]

	if !all {
		account, err := b.repo.GetActive(ctx, chatID)
		if err != nil {
			b.errorReply(chatID, err, "check-in")
			return
		}
		outcome := b.manager.CheckIn(ctx, chatID, account.Username, code, location)
		b.send(chatID, formatCheckinOutcomes(campus, outcome))
		return
	}

	outcomes, err := b.manager.CheckInAll(ctx, chatID, code, location)
	if err != nil {
		b.errorReply(chatID, err, "check-in all")
		return
	}
	b.send(chatID, formatCheckinOutcomes(campus, outcomes...))
}

// The parked code carries the all-accounts flag so the campus pick callback
// can resume the right variant.
func pendingCheckin(code string, all bool) string {
	if all {
		return "all\x00" + code
	}
	return "one\x00" + code
}

func parsePendingCheckin(parked string) (code string, all bool) {
	mode, code, found := strings.Cut(parked, "\x00")
	if !found {
		return parked, false
	}
	return code, mode == "all"
}
