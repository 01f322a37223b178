package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/dashboard"
	"github.com/raine/skinlog-bot/internal/flow"
	"github.com/raine/skinlog-bot/internal/llm"
	"github.com/raine/skinlog-bot/internal/skin"
	"github.com/rs/zerolog/log"
)

// Callback data for inline keyboard buttons.
const (
	callbackGetStarted  = "get_started"
	callbackNewAnalysis = "new_analysis"
	callbackToggleLang  = "toggle_lang"
	callbackGoBack      = "go_back"
)

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func (b *Bot) homeKeyboard(session *UserSession) tgbotapi.InlineKeyboardMarkup {
	s := session.strings()
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.AnalyzeMySkin, callbackGetStarted),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.SwitchLanguage, callbackToggleLang),
		),
	)
}

func (b *Bot) captureKeyboard(session *UserSession) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(session.strings().GoBack, callbackGoBack),
		),
	)
}

func (b *Bot) resultKeyboard(session *UserSession) tgbotapi.InlineKeyboardMarkup {
	s := session.strings()
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.NewAnalysis, callbackNewAnalysis),
			tgbotapi.NewInlineKeyboardButtonData(s.SwitchLanguage, callbackToggleLang),
		),
	)
}

// sendHome shows the landing message with the get started button.
func (b *Bot) sendHome(session *UserSession) {
	s := session.strings()
	text := fmt.Sprintf("*%s*\n\n*%s*\n%s", esc(s.Title), esc(s.HeroTitle), esc(s.HeroSubtitle))
	session.replyWithKeyboard(text, b.homeKeyboard(session))
}

// sendCapturePrompt asks for a photo.
func (b *Bot) sendCapturePrompt(session *UserSession) {
	s := session.strings()
	text := fmt.Sprintf("📸 *%s*\n%s\n\n%s", esc(s.ReadyTitle), esc(s.ReadySubtitle), esc(s.TakePhoto))
	session.replyWithKeyboard(text, b.captureKeyboard(session))
}

// handleGoBack leaves the capture prompt. Pressing it once an analysis has
// started does nothing.
func (b *Bot) handleGoBack(session *UserSession) {
	if session.flow.State() != flow.StateCapture {
		return
	}
	session.flow.Reset()
	b.sendHome(session)
}

// handleStart enters Capture unless an analysis is running.
func (b *Bot) handleStart(session *UserSession) {
	if err := session.flow.Start(); err != nil {
		if errors.Is(err, flow.ErrAnalysisInProgress) {
			session.replyPlain(session.strings().AnalysisInFlight)
			return
		}
		session.replyWithError(err)
		return
	}
	b.sendCapturePrompt(session)
}

// ensureCapture moves a session that is not yet capturing into Capture so a
// photo sent straight away is analyzed. It returns false when the photo must
// be refused.
func (b *Bot) ensureCapture(session *UserSession) bool {
	switch session.flow.State() {
	case flow.StateAnalyzing:
		session.replyPlain(session.strings().AnalysisInFlight)
		return false
	case flow.StateCapture:
		return true
	default:
		if err := session.flow.Start(); err != nil {
			session.replyWithError(err)
			return false
		}
		return true
	}
}

// handlePhotoMessage processes compressed photos.
// Called from session worker - no locking needed.
func (b *Bot) handlePhotoMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	if !b.ensureCapture(session) {
		return
	}

	// Telegram sends several sizes, the last is the largest
	largest := message.Photo[len(message.Photo)-1]
	if largest.FileSize > capture.MaxImageSize {
		session.replyPlain(session.strings().ImageTooLarge)
		return
	}
	b.downloadAndAnalyze(ctx, session, largest.FileID, "image/jpeg")
}

// handleDocumentMessage processes files sent uncompressed.
// Called from session worker - no locking needed.
func (b *Bot) handleDocumentMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	doc := message.Document
	if !isImageMIME(doc.MimeType) {
		session.replyPlain(session.strings().NotAnImage)
		return
	}
	if doc.FileSize > capture.MaxImageSize {
		session.replyPlain(session.strings().ImageTooLarge)
		return
	}
	if !b.ensureCapture(session) {
		return
	}
	b.downloadAndAnalyze(ctx, session, doc.FileID, doc.MimeType)
}

func (b *Bot) downloadAndAnalyze(ctx context.Context, session *UserSession, fileID, declaredMIME string) {
	session.sendTypingAction()
	img, err := b.downloader.DownloadTelegramImage(ctx, b.tg.GetFileDirectURL, fileID, declaredMIME)
	if err != nil {
		log.Warn().Err(err).Int64("userId", session.userId).Msg("failed to load photo")
		s := session.strings()
		switch {
		case errors.Is(err, capture.ErrNotImage):
			session.replyPlain(s.NotAnImage)
		case errors.Is(err, capture.ErrTooLarge):
			session.replyPlain(s.ImageTooLarge)
		default:
			session.replyPlain(s.DownloadFailed)
		}
		return
	}
	b.startAnalysis(session, img)
}

// startAnalysis enters Analyzing and runs the model call in the background.
// The outcome comes back through the session inbox as "analysis_complete".
func (b *Bot) startAnalysis(session *UserSession, img capture.Image) {
	runID, err := session.flow.BeginAnalysis(img)
	if err != nil {
		if errors.Is(err, flow.ErrAnalysisInProgress) {
			session.replyPlain(session.strings().AnalysisInFlight)
			return
		}
		session.replyWithError(err)
		return
	}

	s := session.strings()
	session.replyWithMessage(tgbotapi.MessageConfig{
		Text:      fmt.Sprintf("🔬 *%s*\n%s", esc(s.AnalyzingTitle), esc(s.AnalyzingSubtitle)),
		ParseMode: tgbotapi.ModeMarkdown,
	})
	session.beginTyping()

	lang := session.flow.Language()
	b.trackAnalysis(1)
	b.analyses.Add(1)
	go func() {
		defer b.analyses.Done()
		defer b.trackAnalysis(-1)

		// The session context outlives the update that triggered the analysis
		analysis, err := b.analyzer.AnalyzeSkin(session.ctx, img, lang)
		if err == nil && (analysis == nil || analysis.Result == nil) {
			err = fmt.Errorf("%w: %w", llm.ErrAnalysisFailed, llm.ErrEmptyResponse)
		}
		if err == nil {
			log.Info().
				Int64("userId", session.userId).
				Str("runId", runID).
				Bool("cached", analysis.Cached).
				Float64("costUsd", analysis.Usage.CostUSD).
				Msg("skin analysis complete")
		}
		session.Send(SessionMessage{
			Type:    "analysis_complete",
			Outcome: &AnalysisOutcome{RunID: runID, Analysis: analysis, Err: err},
		})
	}()
}

func (b *Bot) trackAnalysis(delta int64) {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	b.running += delta
}

func (b *Bot) runningAnalyses() int64 {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	return b.running
}

// handleAnalysisOutcome applies a finished analysis. Outcomes of runs that
// were reset or superseded are dropped.
// Called from session worker - no locking needed.
func (b *Bot) handleAnalysisOutcome(session *UserSession, outcome *AnalysisOutcome) {
	if outcome == nil {
		return
	}

	if outcome.Err != nil {
		if !session.flow.FailAnalysis(outcome.RunID, outcome.Err) {
			return
		}
		session.endTyping()
		snap := session.flow.Snapshot()
		session.replyPlain(snap.Error + "\n\n" + session.strings().ReadySubtitle)
		return
	}

	if !session.flow.CompleteAnalysis(outcome.RunID, outcome.Analysis.Result) {
		return
	}
	session.endTyping()
	b.sendResult(session, outcome.Analysis.Result)
}

// sendResult renders the dashboard for the session language. If Telegram
// rejects the Markdown the same dashboard is sent as plain text.
func (b *Bot) sendResult(session *UserSession, result *skin.AnalysisResult) {
	view := dashboard.Build(result, session.flow.Language(), b.catalog, b.now())
	keyboard := b.resultKeyboard(session)
	// Not through reply: the dashboard is already escaped and may contain '%'
	_, err := session.trySend(tgbotapi.MessageConfig{
		Text:        dashboard.RenderMarkdown(view),
		ParseMode:   tgbotapi.ModeMarkdown,
		ReplyMarkup: keyboard,
	})
	if err == nil {
		return
	}
	log.Warn().Err(err).Int64("userId", session.userId).Msg("markdown dashboard rejected, sending plain text")
	session.replyWithMessage(tgbotapi.MessageConfig{
		Text:        dashboard.RenderPlain(view),
		ReplyMarkup: keyboard,
	})
}
