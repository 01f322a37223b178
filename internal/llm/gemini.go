package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/skin"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiModel = "gemini-3-flash-preview"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.50 // $0.50 per 1M input tokens (text/image/video)
	geminiOutputPricePerMillion = 3.00 // $3.00 per 1M output tokens (including thinking)
)

// GeminiAnalyzer uses Google's Gemini API with schema-constrained JSON output.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

// NewGeminiAnalyzer creates a new Gemini-based analyzer.
func NewGeminiAnalyzer(ctx context.Context, apiKey string) (*GeminiAnalyzer, error) {
	return newGeminiAnalyzer(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func newGeminiAnalyzer(ctx context.Context, cfg *genai.ClientConfig) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAnalyzer{client: client, model: geminiModel}, nil
}

// analysisSchema declares the report shape. Every field is required so the
// model cannot return a partial report.
func analysisSchema() *genai.Schema {
	number := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Description: desc}
	}
	stringArray := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

	skinTypes := make([]string, len(skin.SkinTypes))
	for i, t := range skin.SkinTypes {
		skinTypes[i] = string(t)
	}

	metrics := make(map[string]*genai.Schema, len(skin.MetricNames))
	for _, name := range skin.MetricNames {
		metrics[name] = number("")
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallScore": number("A health score from 0 to 100"),
			"skinType": {
				Type:        genai.TypeString,
				Description: "One of: Dry, Oily, Combination, Sensitive, Normal",
				Enum:        skinTypes,
			},
			"metrics": {
				Type:             genai.TypeObject,
				Properties:       metrics,
				Required:         skin.MetricNames,
				PropertyOrdering: skin.MetricNames,
			},
			"expertCommentary":       {Type: genai.TypeString, Description: "A friendly, professional summary of the skin condition."},
			"recommendedIngredients": stringArray,
			"suggestedRoutine": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"morning": stringArray,
					"evening": stringArray,
				},
				Required: []string{"morning", "evening"},
			},
		},
		Required: []string{"overallScore", "skinType", "metrics", "expertCommentary", "recommendedIngredients", "suggestedRoutine"},
		PropertyOrdering: []string{
			"overallScore", "skinType", "metrics", "expertCommentary", "recommendedIngredients", "suggestedRoutine",
		},
	}
}

// AnalyzeSkin sends the image and prompt in one request. There is no retry.
func (g *GeminiAnalyzer) AnalyzeSkin(ctx context.Context, img capture.Image, lang i18n.Language) (*Analysis, error) {
	if img.Size() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, capture.ErrEmpty)
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: img.Data, MIMEType: mimeTypeOf(img)}},
		genai.NewPartFromText(BuildPrompt(lang)),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate content: %w", ErrAnalysisFailed, err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, ErrEmptyResponse)
	}

	report, err := parseAnalysis(result.Text())
	if err != nil {
		return nil, err
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}

	log.Info().
		Str("model", g.model).
		Str("lang", string(lang)).
		Int("imageBytes", img.Size()).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Dur("duration", time.Since(start)).
		Msg("skin analysis llm call")

	return &Analysis{Result: report, Usage: usage}, nil
}
