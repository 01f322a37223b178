package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/skinlog-bot/internal/catalog"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/llm"
	"github.com/raine/skinlog-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Options configures a Bot.
type Options struct {
	AdminID     int64
	OpenAccess  bool // skip the allow-list
	DefaultLang i18n.Language
	Catalog     *catalog.Catalog
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg          BotAPI
	state       BotState
	store       storage.Store
	analyzer    llm.Analyzer
	catalog     *catalog.Catalog
	downloader  *ImageDownloader
	adminID     int64
	openAccess  bool
	defaultLang i18n.Language
	now         func() time.Time

	// Background analyses, waited on at shutdown
	analyses sync.WaitGroup
	running  int64
	runMu    sync.Mutex
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, store storage.Store, analyzer llm.Analyzer, opts Options) *Bot {
	lang := opts.DefaultLang
	if !lang.Valid() {
		lang = i18n.Default
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	bot := &Bot{
		tg:          tg,
		store:       store,
		analyzer:    analyzer,
		catalog:     cat,
		downloader:  NewImageDownloader(),
		adminID:     opts.AdminID,
		openAccess:  opts.OpenAccess,
		defaultLang: lang,
		now:         time.Now,
	}
	bot.state = bot.NewBotState()
	return bot
}

// Sessions exposes the session registry to the maintenance service.
func (b *Bot) Sessions() *BotState {
	return &b.state
}

// Shutdown stops all session workers and waits for in-flight analyses.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
	b.analyses.Wait()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// isAllowed checks the allow-list. Errors fail closed.
func (b *Bot) isAllowed(userId int64) bool {
	if b.openAccess || userId == b.adminID {
		return true
	}
	if b.store == nil {
		return false
	}
	allowed, err := b.store.IsUserAllowed(userId)
	if err != nil {
		log.Error().Err(err).Int64("userId", userId).Msg("allow-list check failed")
		return false
	}
	return allowed
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var from *tgbotapi.User
	if update.CallbackQuery != nil {
		from = update.CallbackQuery.From
	} else if update.Message != nil {
		from = update.Message.From
	}
	if from == nil {
		return
	}

	// MUST be before getUserSession to prevent memory exhaustion from random user IDs
	if !b.isAllowed(from.ID) {
		log.Debug().Int64("userId", from.ID).Msg("dropped update from user not on allow-list")
		return
	}

	session := b.state.getUserSession(from.ID, from.LanguageCode)
	session.touch()

	// Helper to send sync or async based on flag
	send := func(msg SessionMessage) {
		if sync {
			session.SendSync(msg)
		} else {
			session.Send(msg)
		}
	}

	if update.CallbackQuery != nil {
		send(SessionMessage{
			Type:          "callback",
			Ctx:           ctx,
			CallbackQuery: update.CallbackQuery,
		})
		return
	}

	message := update.Message
	log.Info().Int64("userId", from.ID).Str("text", message.Text).Bool("photo", len(message.Photo) > 0).Msg("got message")

	switch {
	case len(message.Photo) > 0:
		send(SessionMessage{Type: "photo", Ctx: ctx, Message: message})
	case message.Document != nil:
		send(SessionMessage{Type: "document", Ctx: ctx, Message: message})
	default:
		send(SessionMessage{Type: "text", Ctx: ctx, Message: message})
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case "callback":
		b.handleCallbackQuery(session, msg.CallbackQuery)
	case "photo":
		b.handlePhotoMessage(ctx, session, msg.Message)
	case "document":
		b.handleDocumentMessage(ctx, session, msg.Message)
	case "text":
		b.handleCommand(session, msg.Message)
	case "analysis_complete":
		b.handleAnalysisOutcome(session, msg.Outcome)
	case "noop":
	default:
		log.Warn().Str("type", msg.Type).Msg("unknown session message type")
	}
}

// handleCommand processes bot commands.
// Called from session worker - no locking needed.
func (b *Bot) handleCommand(session *UserSession, message *tgbotapi.Message) {
	command, args := parseCommand(message.Text)
	switch command {
	case "/start":
		b.handleStart(session)
	case "/reset":
		session.endTyping()
		session.flow.Reset()
		session.replyPlain(session.strings().ResetDone)
		b.sendHome(session)
	case "/lang":
		b.handleLangCommand(session, args)
	case "/help":
		session.replyPlain(session.strings().Help)
	case "/version":
		session.replyPlain(fmt.Sprintf(MsgVersionInfo, Version, BuildTime))
	case "/admin":
		b.handleAdminCommand(session, args)
	default:
		session.replyPlain(session.strings().Help)
	}
}

// handleLangCommand sets the language from an argument or toggles it.
func (b *Bot) handleLangCommand(session *UserSession, args []string) {
	if len(args) > 0 {
		lang := i18n.Language(strings.ToLower(args[0]))
		if !lang.Valid() {
			session.replyPlain(session.strings().Help)
			return
		}
		session.flow.SetLanguage(lang)
	} else {
		session.flow.ToggleLanguage()
	}
	b.languageChanged(session)
}

// languageChanged persists the session language and re-renders the result.
func (b *Bot) languageChanged(session *UserSession) {
	lang := session.flow.Language()
	if b.store != nil {
		if err := b.store.SetLanguage(session.userId, lang); err != nil {
			log.Error().Err(err).Int64("userId", session.userId).Msg("failed to persist language")
		}
	}
	session.replyPlain(session.strings().LanguageChanged)

	if snap := session.flow.Snapshot(); snap.Result != nil {
		b.sendResult(session, snap.Result)
	}
}

// handleCallbackQuery handles inline keyboard button presses.
// Called from session worker - no locking needed.
func (b *Bot) handleCallbackQuery(session *UserSession, query *tgbotapi.CallbackQuery) {
	// Answer the callback to remove the loading state
	if _, err := b.tg.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Debug().Err(err).Msg("failed to answer callback")
	}

	switch query.Data {
	case callbackGetStarted:
		b.handleStart(session)
	case callbackNewAnalysis:
		session.endTyping()
		session.flow.Reset()
		b.sendHome(session)
	case callbackGoBack:
		b.handleGoBack(session)
	case callbackToggleLang:
		session.flow.ToggleLanguage()
		b.languageChanged(session)
	default:
		log.Warn().Str("data", query.Data).Msg("unknown callback data")
	}
}

// handleAdminCommand handles /admin command with subcommands.
// Only the admin user can use this command (defense in depth check).
func (b *Bot) handleAdminCommand(session *UserSession, parts []string) {
	// Defense in depth: verify caller is admin even though allow-list check passed
	if b.adminID == 0 || session.userId != b.adminID {
		return // Silent drop for non-admin users
	}

	if len(parts) == 0 {
		session.reply(MsgAdminUsage)
		return
	}

	switch parts[0] {
	case "users":
		if len(parts) < 2 {
			session.reply(MsgAdminUsage)
			return
		}
		b.handleAdminUsersCommand(session, parts[1], parts[2:])
	case "stats":
		session.replyPlain(fmt.Sprintf(MsgAdminStats, b.state.Count(), b.runningAnalyses()))
	default:
		session.reply(MsgAdminUsage)
	}
}

// handleAdminUsersCommand handles /admin users subcommands.
func (b *Bot) handleAdminUsersCommand(session *UserSession, action string, args []string) {
	if b.store == nil {
		session.replyPlain(MsgUnexpectedErr)
		return
	}

	switch action {
	case "add":
		if len(args) < 1 {
			session.reply(MsgAdminUserAddUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.AddAllowedUser(userID, session.userId); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserAdded, userID)

	case "remove":
		if len(args) < 1 {
			session.reply(MsgAdminUserRemoveUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.RemoveAllowedUser(userID); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserRemoved, userID)

	case "list":
		users, err := b.store.GetAllowedUsers()
		if err != nil {
			session.replyWithError(err)
			return
		}
		if len(users) == 0 {
			session.reply(MsgAdminNoUsers)
			return
		}
		var sb strings.Builder
		sb.WriteString(MsgAdminAllowedUsers)
		for _, u := range users {
			sb.WriteString(fmt.Sprintf("• `%d` (added %s)\n", u.TelegramID, u.AddedAt.Format("2006-01-02")))
		}
		session.reply(sb.String())

	default:
		session.reply(MsgAdminUsage)
	}
}
