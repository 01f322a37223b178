package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/skin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) AnalyzeSkin(ctx context.Context, img capture.Image, lang i18n.Language) (*Analysis, error) {
	args := m.Called(ctx, img, lang)
	if a := args.Get(0); a != nil {
		return a.(*Analysis), args.Error(1)
	}
	return nil, args.Error(1)
}

type memoryCache struct {
	entries map[string]*skin.AnalysisResult
	getErr  error
}

func (m *memoryCache) GetAnalysisCache(key string) (*skin.AnalysisResult, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[key], nil
}

func (m *memoryCache) SetAnalysisCache(key string, result *skin.AnalysisResult) error {
	m.entries[key] = result
	return nil
}

func testResult() *skin.AnalysisResult {
	return &skin.AnalysisResult{OverallScore: 64, SkinType: skin.Oily}
}

func TestCacheKey(t *testing.T) {
	a := capture.Image{Data: []byte("face-a")}
	b := capture.Image{Data: []byte("face-b")}

	assert.Equal(t, CacheKey(a, i18n.Korean), CacheKey(a, i18n.Korean))
	assert.NotEqual(t, CacheKey(a, i18n.Korean), CacheKey(a, i18n.English))
	assert.NotEqual(t, CacheKey(a, i18n.Korean), CacheKey(b, i18n.Korean))
}

func TestCachedAnalyzer_MissThenHit(t *testing.T) {
	inner := new(MockAnalyzer)
	store := &memoryCache{entries: map[string]*skin.AnalysisResult{}}
	c := NewCachedAnalyzer(inner, store)
	img := capture.Image{Data: []byte("face")}

	inner.On("AnalyzeSkin", mock.Anything, img, i18n.English).
		Return(&Analysis{Result: testResult(), Usage: Usage{TotalTokens: 10}}, nil).Once()

	first, err := c.AnalyzeSkin(context.Background(), img, i18n.English)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, store.entries, 1)

	second, err := c.AnalyzeSkin(context.Background(), img, i18n.English)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, int64(0), second.Usage.TotalTokens)
	assert.Equal(t, skin.Oily, second.Result.SkinType)

	inner.AssertExpectations(t)
}

func TestCachedAnalyzer_ErrorsAreNotCached(t *testing.T) {
	inner := new(MockAnalyzer)
	store := &memoryCache{entries: map[string]*skin.AnalysisResult{}}
	c := NewCachedAnalyzer(inner, store)
	img := capture.Image{Data: []byte("face")}

	inner.On("AnalyzeSkin", mock.Anything, img, i18n.Korean).Return(nil, ErrAnalysisFailed).Once()

	_, err := c.AnalyzeSkin(context.Background(), img, i18n.Korean)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Empty(t, store.entries)
}

func TestCachedAnalyzer_StoreErrorFallsThrough(t *testing.T) {
	inner := new(MockAnalyzer)
	store := &memoryCache{entries: map[string]*skin.AnalysisResult{}, getErr: errors.New("db locked")}
	c := NewCachedAnalyzer(inner, store)
	img := capture.Image{Data: []byte("face")}

	inner.On("AnalyzeSkin", mock.Anything, img, i18n.Korean).Return(&Analysis{Result: testResult()}, nil).Once()

	analysis, err := c.AnalyzeSkin(context.Background(), img, i18n.Korean)
	require.NoError(t, err)
	assert.False(t, analysis.Cached)
	inner.AssertExpectations(t)
}
