package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"updown/internal/client/marketcap"
	"updown/internal/engine"
	"updown/internal/models"
	"updown/internal/repository"
)

const (
	tickSourceREST   = "rest"
	tickSourceStream = "stream"
)

// ValuationService owns the reference asset's market cap feed. It keeps
// the newest observation in memory, persists every tick, and serves both
// the public valuation endpoint and settlement lookups.
type ValuationService struct {
	Repo         repository.Repository
	Client       *marketcap.Client
	Logger       *zap.Logger
	TokenAddress string
	StreamURL    string
	PollInterval time.Duration
	MaxTickAge   time.Duration

	mu     sync.RWMutex
	latest *models.ValuationTick
}

// Observation is a point-in-time valuation answer.
type Observation struct {
	MarketCap  decimal.Decimal
	Source     string
	ObservedAt time.Time
}

// LatestMarketCap returns the freshest valuation, preferring the in-memory
// tick, then the newest persisted tick, then a direct upstream fetch.
// Ticks older than MaxTickAge are treated as unavailable.
func (s *ValuationService) LatestMarketCap(ctx context.Context) (Observation, error) {
	now := time.Now().UTC()

	s.mu.RLock()
	cached := s.latest
	s.mu.RUnlock()
	if cached != nil && s.fresh(cached.ObservedAt, now) {
		return Observation{MarketCap: cached.MarketCap, Source: cached.Source, ObservedAt: cached.ObservedAt}, nil
	}

	if tick, err := s.Repo.LatestValuationTick(ctx); err == nil && tick != nil && s.fresh(tick.ObservedAt, now) {
		s.remember(tick)
		return Observation{MarketCap: tick.MarketCap, Source: tick.Source, ObservedAt: tick.ObservedAt}, nil
	}

	mc, err := s.Client.GetMarketCap(ctx, s.TokenAddress)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("valuation fetch failed", zap.Error(err))
		}
		return Observation{}, engine.ErrUpstreamUnavailable
	}
	tick := &models.ValuationTick{Source: tickSourceREST, MarketCap: mc, ObservedAt: now}
	s.record(ctx, tick)
	return Observation{MarketCap: mc, Source: tickSourceREST, ObservedAt: now}, nil
}

// MarketCapAt returns the valuation that was in force at cutoff: the last
// tick observed at or before it. Settlement uses this so late ticks never
// leak into an earlier round.
func (s *ValuationService) MarketCapAt(ctx context.Context, cutoff time.Time) (Observation, error) {
	tick, err := s.Repo.LatestValuationTickBefore(ctx, cutoff)
	if err != nil {
		return Observation{}, err
	}
	if tick != nil {
		return Observation{MarketCap: tick.MarketCap, Source: tick.Source, ObservedAt: tick.ObservedAt}, nil
	}
	// No history before the cutoff; fall back to the live valuation.
	return s.LatestMarketCap(ctx)
}

// Run keeps the feed warm until ctx is cancelled. With a stream URL
// configured it consumes the trade websocket; otherwise it polls the REST
// API on PollInterval.
func (s *ValuationService) Run(ctx context.Context) error {
	if s.StreamURL != "" {
		stream := marketcap.NewTickStream(marketcap.TickStreamOptions{
			URL:    s.StreamURL,
			Tokens: []string{s.TokenAddress},
			Logger: s.Logger,
		})
		return stream.Run(ctx, func(tick marketcap.Tick, _ []byte) {
			mc, ok := tick.MarketCap()
			if !ok {
				return
			}
			s.record(ctx, &models.ValuationTick{
				Source:     tickSourceStream,
				MarketCap:  mc,
				ObservedAt: time.Now().UTC(),
			})
		})
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			mc, err := s.Client.GetMarketCap(ctx, s.TokenAddress)
			if err != nil {
				if s.Logger != nil {
					s.Logger.Warn("valuation poll failed", zap.Error(err))
				}
				continue
			}
			s.record(ctx, &models.ValuationTick{
				Source:     tickSourceREST,
				MarketCap:  mc,
				ObservedAt: time.Now().UTC(),
			})
		}
	}
}

func (s *ValuationService) fresh(observedAt, now time.Time) bool {
	if s.MaxTickAge <= 0 {
		return true
	}
	return now.Sub(observedAt) <= s.MaxTickAge
}

func (s *ValuationService) record(ctx context.Context, tick *models.ValuationTick) {
	s.remember(tick)
	if err := s.Repo.InsertValuationTick(ctx, tick); err != nil && s.Logger != nil {
		s.Logger.Warn("valuation tick insert failed", zap.Error(err))
	}
}

func (s *ValuationService) remember(tick *models.ValuationTick) {
	s.mu.Lock()
	if s.latest == nil || tick.ObservedAt.After(s.latest.ObservedAt) {
		s.latest = tick
	}
	s.mu.Unlock()
}
