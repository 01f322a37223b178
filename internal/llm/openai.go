package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const openaiModel = "gpt-4o"

// GPT-4o pricing (per million tokens)
const (
	openaiInputPricePerMillion  = 2.50
	openaiOutputPricePerMillion = 10.00
)

// OpenAIAnalyzer uses an OpenAI vision model in JSON mode.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

// NewOpenAIAnalyzer creates a new OpenAI-based analyzer.
func NewOpenAIAnalyzer(apiKey string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{client: openai.NewClient(apiKey), model: openaiModel}
}

func newOpenAIAnalyzerWithConfig(cfg openai.ClientConfig) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{client: openai.NewClientWithConfig(cfg), model: openaiModel}
}

// AnalyzeSkin implements Analyzer using a single chat completion.
func (o *OpenAIAnalyzer) AnalyzeSkin(ctx context.Context, img capture.Image, lang i18n.Language) (*Analysis, error) {
	if img.Size() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, capture.ErrEmpty)
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    img.DataURL(),
							Detail: openai.ImageURLDetailHigh,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: BuildPrompt(lang) + jsonShapeHint,
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create chat completion: %w", ErrAnalysisFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, ErrEmptyResponse)
	}

	report, err := parseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	usage := Usage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
		TotalTokens:  int64(resp.Usage.TotalTokens),
	}
	usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, openaiInputPricePerMillion, openaiOutputPricePerMillion)

	log.Info().
		Str("model", o.model).
		Str("lang", string(lang)).
		Int("imageBytes", img.Size()).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Dur("duration", time.Since(start)).
		Msg("skin analysis llm call")

	return &Analysis{Result: report, Usage: usage}, nil
}
