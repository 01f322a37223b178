package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIAnalyzer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return newOpenAIAnalyzerWithConfig(cfg)
}

func TestOpenAIAnalyzer_AnalyzeSkin(t *testing.T) {
	var req openai.ChatCompletionRequest
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "chatcmpl-1",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: validResponse},
			}},
			Usage: openai.Usage{PromptTokens: 900, CompletionTokens: 200, TotalTokens: 1100},
		})
	})

	img := capture.Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"}
	analysis, err := o.AnalyzeSkin(context.Background(), img, i18n.Korean)
	require.NoError(t, err)
	assert.Equal(t, 82.0, analysis.Result.OverallScore)
	assert.Equal(t, int64(1100), analysis.Usage.TotalTokens)

	require.Len(t, req.Messages, 1)
	parts := req.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, "data:image/png;base64,AQID", parts[0].ImageURL.URL)
	assert.Contains(t, parts[1].Text, i18n.For(i18n.Korean).Instruction)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
}

func TestOpenAIAnalyzer_InvalidReport(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: `{"overallScore": -5}`},
			}},
		})
	})

	_, err := o.AnalyzeSkin(context.Background(), capture.Image{Data: []byte{1}}, i18n.English)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}
