package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// SweepInterval is the time between idle session sweeps.
	SweepInterval = 10 * time.Minute

	// SessionTTL is how long a session may stay untouched before it is stopped.
	SessionTTL = 2 * time.Hour

	// PruneInterval is how often to prune the analysis cache.
	PruneInterval = 24 * time.Hour

	// CacheMaxAge is how long to keep cached analyses before pruning.
	CacheMaxAge = 30 * 24 * time.Hour // 30 days
)

// CachePruner deletes cached analyses older than a given age.
type CachePruner interface {
	PruneAnalysisCache(olderThan time.Duration) (int64, error)
}

// SessionReaper stops sessions that have been idle for longer than ttl.
type SessionReaper interface {
	StopIdle(ttl time.Duration) int
}

// Config overrides the default intervals. Zero values use the defaults.
type Config struct {
	SweepInterval time.Duration
	SessionTTL    time.Duration
	PruneInterval time.Duration
	CacheMaxAge   time.Duration
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = SweepInterval
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = SessionTTL
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = PruneInterval
	}
	if c.CacheMaxAge <= 0 {
		c.CacheMaxAge = CacheMaxAge
	}
	return c
}

// Service is the background maintenance loop. Either dependency may be nil.
type Service struct {
	cache    CachePruner
	sessions SessionReaper
	cfg      Config
}

// NewService creates a new maintenance service.
func NewService(cache CachePruner, sessions SessionReaper, cfg Config) *Service {
	return &Service{
		cache:    cache,
		sessions: sessions,
		cfg:      cfg.withDefaults(),
	}
}

// Run starts the maintenance loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log.Info().
		Dur("sweepInterval", s.cfg.SweepInterval).
		Dur("pruneInterval", s.cfg.PruneInterval).
		Msg("starting maintenance service")

	// Expired entries from a previous run are dropped right away
	s.pruneCache()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(s.cfg.PruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("maintenance service stopped")
			return nil
		case <-ticker.C:
			s.sweepSessions()
		case <-pruneTicker.C:
			s.pruneCache()
		}
	}
}

func (s *Service) sweepSessions() {
	if s.sessions == nil {
		return
	}
	if n := s.sessions.StopIdle(s.cfg.SessionTTL); n > 0 {
		log.Info().Int("count", n).Dur("ttl", s.cfg.SessionTTL).Msg("stopped idle sessions")
	}
}

func (s *Service) pruneCache() {
	if s.cache == nil {
		return
	}
	deleted, err := s.cache.PruneAnalysisCache(s.cfg.CacheMaxAge)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune analysis cache")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("pruned analysis cache")
	}
}
