package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/skin"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("failed to get analysis result from AI")
	// ErrAnalysisFailed wraps every other analysis failure.
	ErrAnalysisFailed = errors.New("skin analysis failed")
)

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Analysis is a validated skin report and what it cost to produce.
type Analysis struct {
	Result *skin.AnalysisResult
	Usage  Usage
	Cached bool
}

// Analyzer turns a face photo into a skin report. Free-text fields of the
// result are written in lang.
type Analyzer interface {
	AnalyzeSkin(ctx context.Context, img capture.Image, lang i18n.Language) (*Analysis, error)
}

const basePrompt = `Act as a world-class dermatologist. %s
Analyze the provided facial photo for skin health.
Assess the following categories: hydration, oil balance, acne/troubles, pigmentation/spots, pore size, and wrinkles.
Provide numeric scores (0-100) where higher hydration is good, but higher troubles/wrinkles is bad.
Determine the skin type (Dry, Oily, Combination, Sensitive, Normal). Offer expert advice and recommend key ingredients (e.g., Hyaluronic Acid, Salicylic Acid, Niacinamide).`

// jsonShapeHint spells out the response shape for providers without
// schema-constrained output.
const jsonShapeHint = `

Respond ONLY with a JSON object of this shape, no markdown or other text:
{"overallScore": number 0-100, "skinType": "Dry"|"Oily"|"Combination"|"Sensitive"|"Normal", "metrics": {"hydration": number, "oiliness": number, "troubles": number, "pigmentation": number, "pores": number, "wrinkles": number}, "expertCommentary": string, "recommendedIngredients": [string], "suggestedRoutine": {"morning": [string], "evening": [string]}}`

// BuildPrompt returns the analysis prompt with the language instruction for lang.
func BuildPrompt(lang i18n.Language) string {
	return fmt.Sprintf(basePrompt, i18n.For(lang).Instruction)
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

// parseAnalysis decodes and validates a model response. Nothing partial is
// ever returned.
func parseAnalysis(text string) (*skin.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, ErrEmptyResponse)
	}
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	var result skin.AnalysisResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response JSON: %v (response: %s)", ErrAnalysisFailed, err, jsonStr)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return &result, nil
}

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}

func mimeTypeOf(img capture.Image) string {
	if img.MIMEType == "" {
		return capture.DefaultMIMEType
	}
	return img.MIMEType
}
