package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/skinlog-bot/internal/flow"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/llm"
	"github.com/rs/zerolog/log"
)

// SessionMessage represents a message to be processed by the session worker.
type SessionMessage struct {
	Type string
	Ctx  context.Context
	Done chan struct{} // Closed when processing is complete (for synchronous dispatch)

	// Message data (only one is set based on Type)
	Message       *tgbotapi.Message
	CallbackQuery *tgbotapi.CallbackQuery
	Text          string
	Outcome       *AnalysisOutcome // For analysis_complete messages
}

// AnalysisOutcome is posted back to the worker when a background analysis ends.
type AnalysisOutcome struct {
	RunID    string
	Analysis *llm.Analysis
	Err      error
}

// MessageSender abstracts the ability to send Telegram messages.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MessageHandler is the interface for processing session messages.
// This allows the session to dispatch to external handlers without circular dependencies.
type MessageHandler interface {
	HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage)
}

// UserSession represents a user's session with the bot.
//
// Threading model:
//   - Each session has a dedicated worker goroutine that processes messages sequentially
//   - Handlers run only on the worker and may touch worker-owned fields without locks
//   - The flow controller is safe for concurrent use and may be read from anywhere
//   - lastActivity is guarded by mu so the maintenance service can read it
type UserSession struct {
	userId int64
	sender MessageSender
	flow   *flow.Controller

	mu           sync.Mutex
	lastActivity time.Time

	// Worker channel for sequential message processing
	inbox   chan SessionMessage
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handler MessageHandler // Set after construction to avoid circular deps

	// Worker-owned
	stopTyping context.CancelFunc
}

func newUserSession(userId int64, sender MessageSender, lang i18n.Language) *UserSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &UserSession{
		userId:       userId,
		sender:       sender,
		flow:         flow.NewController(lang),
		lastActivity: time.Now(),
		inbox:        make(chan SessionMessage, 10), // Buffered to avoid blocking
		ctx:          ctx,
		cancel:       cancel,
	}
	s.flow.OnTransition(func(from, to flow.State) {
		log.Info().Int64("userId", userId).Str("from", from.String()).Str("to", to.String()).Msg("flow transition")
	})
	return s
}

// Flow returns the session's state controller.
func (s *UserSession) Flow() *flow.Controller {
	return s.flow
}

func (s *UserSession) strings() i18n.Strings {
	return i18n.For(s.flow.Language())
}

func (s *UserSession) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns when the user last interacted with the bot.
func (s *UserSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *UserSession) replyWithError(err error) tgbotapi.Message {
	log.Error().Stack().Err(err).Int64("userId", s.userId).Send()
	return s.replyPlain(MsgUnexpectedErr)
}

// sendTypingAction sends a "typing" chat action to show the user that the bot is processing.
// The typing indicator automatically expires after ~5 seconds in Telegram.
func (s *UserSession) sendTypingAction() {
	action := tgbotapi.NewChatAction(s.userId, tgbotapi.ChatTyping)
	// Use Request instead of Send because sendChatAction returns a boolean, not a Message
	_, err := s.sender.Request(action)
	if err != nil {
		log.Debug().Err(err).Int64("userId", s.userId).Msg("failed to send typing action")
	}
}

// startTypingLoop sends a typing action every 4 seconds until the context is cancelled.
// Run this in a goroutine and cancel the context when done.
func (s *UserSession) startTypingLoop(ctx context.Context) {
	s.sendTypingAction()

	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendTypingAction()
		}
	}
}

// beginTyping starts the typing loop, replacing any running one.
// Called from session worker - no locking needed.
func (s *UserSession) beginTyping() {
	s.endTyping()
	ctx, cancel := context.WithCancel(s.ctx)
	s.stopTyping = cancel
	go s.startTypingLoop(ctx)
}

// endTyping stops the typing loop if one is running.
// Called from session worker - no locking needed.
func (s *UserSession) endTyping() {
	if s.stopTyping != nil {
		s.stopTyping()
		s.stopTyping = nil
	}
}

func (s *UserSession) replyWithMessage(msg tgbotapi.MessageConfig) tgbotapi.Message {
	sent, err := s.trySend(msg)
	if err != nil {
		log.Error().Stack().
			Int64("userId", s.userId).
			Err(fmt.Errorf("failed to send reply message: %w", err)).Send()
	}
	return sent
}

// trySend sends msg to the session's chat and leaves error handling to the caller.
func (s *UserSession) trySend(msg tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	msg.ChatID = s.userId
	sent, err := s.sender.Send(msg)
	if err != nil {
		return sent, err
	}
	log.Debug().Int64("userId", s.userId).Int("messageId", sent.MessageID).Msg("sent message")
	return sent, nil
}

// reply sends Markdown text after dedenting and formatting it.
func (s *UserSession) reply(text string, a ...any) tgbotapi.Message {
	return s.replyWithMessage(tgbotapi.MessageConfig{
		Text:      formatReplyText(text, a...),
		ParseMode: tgbotapi.ModeMarkdown,
	})
}

// replyPlain sends text without any parse mode.
func (s *UserSession) replyPlain(text string) tgbotapi.Message {
	return s.replyWithMessage(tgbotapi.MessageConfig{Text: text})
}

// replyWithKeyboard sends prepared Markdown with an inline keyboard.
func (s *UserSession) replyWithKeyboard(text string, keyboard tgbotapi.InlineKeyboardMarkup) tgbotapi.Message {
	return s.replyWithMessage(tgbotapi.MessageConfig{
		Text:        text,
		ParseMode:   tgbotapi.ModeMarkdown,
		ReplyMarkup: keyboard,
	})
}

// --- Worker methods ---

// StartWorker starts the session's message processing worker goroutine.
// Must be called after setting the handler.
func (s *UserSession) StartWorker() {
	s.wg.Add(1)
	go s.runWorker()
}

// SetHandler sets the message handler for this session.
func (s *UserSession) SetHandler(handler MessageHandler) {
	s.handler = handler
}

// runWorker is the main worker loop that processes messages sequentially.
func (s *UserSession) runWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case msg := <-s.inbox:
			s.processMessage(msg)
		}
	}
}

// processMessage handles a single message from the inbox.
func (s *UserSession) processMessage(msg SessionMessage) {
	defer func() {
		// Recover from any panics to keep the worker running
		if r := recover(); r != nil {
			log.Error().
				Int64("userId", s.userId).
				Str("type", msg.Type).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		if msg.Done != nil {
			close(msg.Done)
		}
	}()

	if s.handler == nil {
		log.Error().Int64("userId", s.userId).Msg("session handler not set")
		return
	}

	ctx := msg.Ctx
	if ctx == nil {
		ctx = s.ctx
	}
	s.handler.HandleSessionMessage(ctx, s, msg)
}

// Send queues a message for processing by the worker.
// This is non-blocking - it returns immediately after queuing.
// On a stopped session the message is dropped and Done is closed.
func (s *UserSession) Send(msg SessionMessage) {
	if s.ctx.Err() == nil {
		select {
		case s.inbox <- msg:
			return
		case <-s.ctx.Done():
		}
	}
	if msg.Done != nil {
		close(msg.Done)
	}
}

// SendSync queues a message and waits for it to be processed.
// Returns when the message has been fully processed by the worker.
func (s *UserSession) SendSync(msg SessionMessage) {
	msg.Done = make(chan struct{})
	s.Send(msg)
	<-msg.Done
}

// Stop stops the worker and waits for it to finish.
func (s *UserSession) Stop() {
	s.cancel()
	s.wg.Wait()
	s.drain()
}

// drain releases messages queued after the worker exited.
func (s *UserSession) drain() {
	for {
		select {
		case msg := <-s.inbox:
			if msg.Done != nil {
				close(msg.Done)
			}
		default:
			return
		}
	}
}
