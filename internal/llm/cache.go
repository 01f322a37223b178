package llm

import (
	"context"
	"encoding/hex"

	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/skin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

// CacheStore persists analysis results by key. Get returns nil, nil on a miss.
type CacheStore interface {
	GetAnalysisCache(key string) (*skin.AnalysisResult, error)
	SetAnalysisCache(key string, result *skin.AnalysisResult) error
}

// CachedAnalyzer wraps an Analyzer with a result cache. Only the report is
// stored, never the image.
type CachedAnalyzer struct {
	inner Analyzer
	store CacheStore
}

// NewCachedAnalyzer creates a cached analyzer.
func NewCachedAnalyzer(inner Analyzer, store CacheStore) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store}
}

// CacheKey identifies an image and output language.
func CacheKey(img capture.Image, lang i18n.Language) string {
	sum := blake2b.Sum256(img.Data)
	return hex.EncodeToString(sum[:]) + ":" + string(lang)
}

// AnalyzeSkin implements Analyzer with caching. Cache errors are logged and
// fall through to the wrapped analyzer.
func (c *CachedAnalyzer) AnalyzeSkin(ctx context.Context, img capture.Image, lang i18n.Language) (*Analysis, error) {
	key := CacheKey(img, lang)

	if c.store != nil {
		cached, err := c.store.GetAnalysisCache(key)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check analysis cache")
		} else if cached != nil {
			log.Debug().Str("key", key[:16]).Msg("analysis cache hit")
			return &Analysis{Result: cached, Cached: true}, nil
		}
	}

	analysis, err := c.inner.AnalyzeSkin(ctx, img, lang)
	if err != nil {
		return nil, err
	}

	if c.store != nil && analysis.Result != nil {
		if err := c.store.SetAnalysisCache(key, analysis.Result); err != nil {
			log.Warn().Err(err).Msg("failed to cache analysis result")
		} else {
			log.Debug().Str("key", key[:16]).Msg("analysis result cached")
		}
	}

	return analysis, nil
}
