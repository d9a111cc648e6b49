package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hutechbot/backend/accounts"
	"github.com/hutechbot/backend/cache"
	"github.com/hutechbot/backend/portal"
	"github.com/hutechbot/backend/sessions"
)

const commandTimeout = 45 * time.Second

// Commands that must work before the user has accepted the privacy policy.
var consentExempt = map[string]bool{
	"start":     true,
	"trogiup":   true,
	"chinhsach": true,
}

// Bot is the Telegram front end. It owns no portal state of its own; every
// authenticated call goes through the session manager.
type Bot struct {
	api     *tgbotapi.BotAPI
	repo    accounts.Repo
	cipher  *accounts.Cipher
	manager *sessions.Manager
	portal  *portal.Client
	cache   cache.Store

	mu      sync.Mutex
	logins  map[int64]*loginState // chatID -> login conversation in progress
	pending map[int64]string      // chatID -> check-in code awaiting a campus pick

	log zerolog.Logger
}

// New connects to the Telegram API and builds the bot.
func New(token string, repo accounts.Repo, cipher *accounts.Cipher, manager *sessions.Manager, portalClient *portal.Client, store cache.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "[bot.New] connect to Telegram")
	}
	return &Bot{
		api:     api,
		repo:    repo,
		cipher:  cipher,
		manager: manager,
		portal:  portalClient,
		cache:   store,
		logins:  make(map[int64]*loginState),
		pending: make(map[int64]string),
		log:     log.With().Str("component", "bot").Logger(),
	}, nil
}

// Username returns the bot's Telegram username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run polls Telegram for updates until ctx is cancelled. Each update is
// handled on its own goroutine so a slow portal call never blocks other
// chats.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	updates := b.api.GetUpdatesChan(updateConfig)
	b.log.Info().Str("username", b.Username()).Msg("bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(parent context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.continueLogin(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	b.log.Debug().Int64("chat_id", chatID).Str("command", command).Msg("command received")

	if !consentExempt[command] {
		consented, err := b.repo.HasConsented(ctx, chatID)
		if err != nil {
			b.log.Error().Err(err).Int64("chat_id", chatID).Msg("consent lookup failed")
			b.send(chatID, msgInternalError)
			return
		}
		if !consented {
			b.send(chatID, msgConsentRequired)
			return
		}
	}

	switch command {
	case "start", "trogiup":
		b.send(chatID, msgHelp)
	case "chinhsach":
		b.handlePolicy(ctx, chatID)
	case "dangnhap":
		b.startLogin(ctx, chatID)
	case "dangxuat":
		b.handleLogout(ctx, chatID, args)
	case "danhsach":
		b.handleAccountList(ctx, chatID)
	case "vitri":
		b.handleCampus(ctx, chatID)
	case "diemdanh":
		b.handleCheckin(ctx, chatID, args, false)
	case "diemdanhtatca":
		b.handleCheckin(ctx, chatID, args, true)
	case "tkb":
		b.handleTimetable(ctx, chatID, parseOffset(args))
	case "lichthi":
		b.handleExams(ctx, chatID)
	case "diem":
		b.handleGrades(ctx, chatID)
	case "hocphan":
		b.handleCourses(ctx, chatID)
	default:
		b.send(chatID, msgUnknownCommand)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID
	data := query.Data

	// Stop the button spinner regardless of the outcome
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			b.log.Debug().Err(err).Msg("callback ack failed")
		}
	}()

	action, arg := data, ""
	if i := strings.IndexByte(data, ':'); i >= 0 {
		action, arg = data[:i], data[i+1:]
	}

	switch action {
	case "consent":
		b.handleConsentAnswer(ctx, chatID, arg)
	case "switch":
		b.handleAccountSwitch(ctx, chatID, arg)
	case "campus":
		b.handleCampusPick(ctx, chatID, arg)
	case "checkin":
		b.handlePendingCheckin(ctx, chatID, arg)
	case "tkb":
		b.handleTimetable(ctx, chatID, parseOffset(arg))
	case "tkb_ics":
		b.handleTimetableExport(ctx, chatID, parseOffset(arg))
	case "diem":
		b.handleGradeDetail(ctx, chatID, arg)
	case "diem_xlsx":
		b.handleGradesExport(ctx, chatID)
	case "hocphan":
		b.handleCourseDetail(ctx, chatID, arg)
	}
}

// errorReply maps a failed portal/session operation to the message the user
// sees, logging the original error.
func (b *Bot) errorReply(chatID int64, err error, operation string) {
	b.log.Warn().Err(err).Int64("chat_id", chatID).Str("operation", operation).Msg("command failed")
	b.send(chatID, userMessage(err))
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) sendDocument(chatID int64, name string, data []byte) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send document failed")
	}
}

// parseOffset reads a week offset argument; anything unparseable means the
// current week.
func parseOffset(arg string) int {
	offset, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0
	}
	return offset
}
