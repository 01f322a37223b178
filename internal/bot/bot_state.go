package bot

import (
	"strings"
	"sync"
	"time"

	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/rs/zerolog/log"
)

type BotState struct {
	bot      *Bot
	mu       sync.Mutex
	sessions map[int64]*UserSession
}

// initialLanguage picks the stored preference, then the Telegram client
// language, then the configured default.
func (bs *BotState) initialLanguage(userId int64, clientLang string) i18n.Language {
	if bs.bot.store != nil {
		lang, err := bs.bot.store.GetLanguage(userId)
		if err != nil {
			log.Warn().Err(err).Int64("userId", userId).Msg("failed to get stored language")
		} else if lang.Valid() {
			return lang
		}
	}
	// Parse falls back to the default for unknown tags, so only trust an exact match.
	if lang := i18n.Parse(clientLang); strings.HasPrefix(strings.ToLower(clientLang), string(lang)) {
		return lang
	}
	return bs.bot.defaultLang
}

func (bs *BotState) getUserSession(userId int64, clientLang string) *UserSession {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if session, ok := bs.sessions[userId]; ok {
		return session
	}

	session := newUserSession(userId, bs.bot.tg, bs.initialLanguage(userId, clientLang))
	// Set the bot as the message handler and start the worker
	session.SetHandler(bs.bot)
	session.StartWorker()
	bs.sessions[userId] = session
	log.Info().Int64("userId", userId).Str("lang", string(session.flow.Language())).Msg("new user session created")
	return session
}

func (b *Bot) NewBotState() BotState {
	return BotState{
		bot:      b,
		sessions: make(map[int64]*UserSession),
	}
}

// Count returns the number of live sessions.
func (bs *BotState) Count() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return len(bs.sessions)
}

// StopIdle stops and forgets sessions without activity for longer than ttl.
// Their flow state (captured image, result) is discarded with them.
func (bs *BotState) StopIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	bs.mu.Lock()
	var idle []*UserSession
	for id, session := range bs.sessions {
		if session.LastActivity().Before(cutoff) {
			idle = append(idle, session)
			delete(bs.sessions, id)
		}
	}
	bs.mu.Unlock()

	for _, session := range idle {
		session.Stop()
		log.Info().Int64("userId", session.userId).Msg("stopped idle session")
	}
	return len(idle)
}

// Shutdown stops all session workers gracefully.
func (bs *BotState) Shutdown() {
	bs.mu.Lock()
	sessions := make([]*UserSession, 0, len(bs.sessions))
	for _, session := range bs.sessions {
		sessions = append(sessions, session)
	}
	bs.mu.Unlock()

	// Stop all workers (outside the lock to avoid blocking)
	for _, session := range sessions {
		session.Stop()
	}
	log.Info().Int("count", len(sessions)).Msg("stopped all session workers")
}
