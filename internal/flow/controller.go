package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/llm"
	"github.com/raine/skinlog-bot/internal/skin"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAnalysisInProgress is returned when a capture arrives while a run is in flight.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrInvalidTransition is returned for transitions the current state does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Snapshot is a read-only copy of the controller state for rendering.
type Snapshot struct {
	State    State
	Language i18n.Language
	HasImage bool
	Result   *skin.AnalysisResult
	Error    string
	RunID    string
}

// Controller is the single owner of one user's flow state. It is safe for
// concurrent use.
type Controller struct {
	mu       sync.Mutex
	state    State
	lang     i18n.Language
	image    *capture.Image
	result   *skin.AnalysisResult
	errorMsg string
	runID    string

	onTransition func(from, to State)
}

// NewController starts at Home in lang.
func NewController(lang i18n.Language) *Controller {
	if !lang.Valid() {
		lang = i18n.Default
	}
	return &Controller{state: StateHome, lang: lang}
}

// OnTransition registers fn to be called after every state change. fn runs
// outside the controller lock.
func (c *Controller) OnTransition(fn func(from, to State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTransition = fn
}

// transitionLocked moves to `to` and returns the notifier to run after unlock.
func (c *Controller) transitionLocked(to State) func() {
	from := c.state
	c.state = to
	fn := c.onTransition
	if fn == nil || from == to {
		return func() {}
	}
	return func() { fn(from, to) }
}

// Start opens the capture screen. It is rejected while an analysis runs.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state == StateAnalyzing {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start capture while analyzing", ErrAnalysisInProgress)
	}
	c.image = nil
	c.result = nil
	c.errorMsg = ""
	notify := c.transitionLocked(StateCapture)
	c.mu.Unlock()

	notify()
	return nil
}

// BeginAnalysis stores img and enters Analyzing. The returned run id must be
// passed to CompleteAnalysis or FailAnalysis.
func (c *Controller) BeginAnalysis(img capture.Image) (string, error) {
	c.mu.Lock()
	switch c.state {
	case StateAnalyzing:
		c.mu.Unlock()
		return "", ErrAnalysisInProgress
	case StateCapture:
	default:
		state := c.state
		c.mu.Unlock()
		return "", fmt.Errorf("%w: cannot analyze from %s", ErrInvalidTransition, state)
	}
	if img.Size() == 0 {
		c.mu.Unlock()
		return "", capture.ErrEmpty
	}

	c.image = &img
	c.result = nil
	c.errorMsg = ""
	c.runID = uuid.NewString()
	runID := c.runID
	notify := c.transitionLocked(StateAnalyzing)
	c.mu.Unlock()

	notify()
	return runID, nil
}

// CompleteAnalysis moves to Result. A nil result is handled as a failure. It
// returns false when runID is no longer current, for example after Reset.
func (c *Controller) CompleteAnalysis(runID string, result *skin.AnalysisResult) bool {
	if result == nil {
		return c.FailAnalysis(runID, llm.ErrEmptyResponse)
	}

	c.mu.Lock()
	if !c.currentRunLocked(runID) {
		c.mu.Unlock()
		log.Debug().Str("runId", runID).Msg("ignoring completion of stale analysis run")
		return false
	}
	c.result = result.Clone()
	c.errorMsg = ""
	c.runID = ""
	notify := c.transitionLocked(StateResult)
	c.mu.Unlock()

	notify()
	return true
}

// FailAnalysis returns to Capture with a localized error message. The cause
// is only logged.
func (c *Controller) FailAnalysis(runID string, cause error) bool {
	c.mu.Lock()
	if !c.currentRunLocked(runID) {
		c.mu.Unlock()
		log.Debug().Str("runId", runID).Msg("ignoring failure of stale analysis run")
		return false
	}
	log.Warn().Err(cause).Str("runId", runID).Msg("skin analysis failed")
	c.result = nil
	c.image = nil
	c.errorMsg = i18n.For(c.lang).AnalysisFailed
	c.runID = ""
	notify := c.transitionLocked(StateCapture)
	c.mu.Unlock()

	notify()
	return true
}

func (c *Controller) currentRunLocked(runID string) bool {
	return c.state == StateAnalyzing && runID != "" && runID == c.runID
}

// Reset returns to Home and forgets the image, result, error and run.
// Calling it repeatedly has the same effect as calling it once.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.image = nil
	c.result = nil
	c.errorMsg = ""
	c.runID = ""
	notify := c.transitionLocked(StateHome)
	c.mu.Unlock()

	notify()
}

// ToggleLanguage switches between Korean and English and returns the new language.
func (c *Controller) ToggleLanguage() i18n.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lang = i18n.Toggle(c.lang)
	c.relocalizeLocked()
	return c.lang
}

// SetLanguage sets the display language. Unsupported values are ignored.
func (c *Controller) SetLanguage(lang i18n.Language) {
	if !lang.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lang = lang
	c.relocalizeLocked()
}

func (c *Controller) relocalizeLocked() {
	if c.errorMsg != "" {
		c.errorMsg = i18n.For(c.lang).AnalysisFailed
	}
}

// Language returns the current display language.
func (c *Controller) Language() i18n.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:    c.state,
		Language: c.lang,
		HasImage: c.image != nil,
		Result:   c.result.Clone(),
		Error:    c.errorMsg,
		RunID:    c.runID,
	}
}

// Analyze runs one analysis synchronously: BeginAnalysis, the analyzer call,
// then CompleteAnalysis or FailAnalysis.
func (c *Controller) Analyze(ctx context.Context, analyzer llm.Analyzer, img capture.Image) (*llm.Analysis, error) {
	runID, err := c.BeginAnalysis(img)
	if err != nil {
		return nil, err
	}

	analysis, err := analyzer.AnalyzeSkin(ctx, img, c.Language())
	if err != nil {
		c.FailAnalysis(runID, err)
		return nil, err
	}
	if analysis == nil || analysis.Result == nil {
		c.FailAnalysis(runID, llm.ErrEmptyResponse)
		return nil, fmt.Errorf("%w: %w", llm.ErrAnalysisFailed, llm.ErrEmptyResponse)
	}
	if !c.CompleteAnalysis(runID, analysis.Result) {
		return nil, fmt.Errorf("analysis run %s was superseded", runID)
	}
	return analysis, nil
}
