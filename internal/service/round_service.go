package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"updown/internal/engine"
	"updown/internal/models"
	"updown/internal/repository"
)

// RoundService creates and resolves the time-boxed markets. Round identity
// is derived from the clock, so any number of concurrent requests for the
// same duration land on the same row.
type RoundService struct {
	Repo      repository.Repository
	Valuation *ValuationService
	Logger    *zap.Logger

	Durations        []int
	InitialLiquidity decimal.Decimal
}

// RoundID builds the deterministic identifier for the round of the given
// duration that contains t: "<minutes>m-<endUnix>".
func RoundID(durationMinutes int, endTime time.Time) string {
	return fmt.Sprintf("%dm-%d", durationMinutes, endTime.Unix())
}

// Boundaries returns the UTC window of the current round for a duration:
// the start is t truncated to a whole multiple of the duration, the end
// one duration later.
func Boundaries(durationMinutes int, t time.Time) (start, end time.Time) {
	d := time.Duration(durationMinutes) * time.Minute
	start = t.UTC().Truncate(d)
	return start, start.Add(d)
}

func (s *RoundService) supported(durationMinutes int) bool {
	for _, d := range s.Durations {
		if d == durationMinutes {
			return true
		}
	}
	return false
}

// GetOrCreateActiveRound returns the round covering now for the duration,
// creating it (with a seeded pool and start valuation) on first touch.
func (s *RoundService) GetOrCreateActiveRound(ctx context.Context, durationMinutes int) (*models.Round, error) {
	if !s.supported(durationMinutes) {
		return nil, engine.ErrUnsupportedDuration
	}
	now := time.Now().UTC()
	start, end := Boundaries(durationMinutes, now)
	id := RoundID(durationMinutes, end)

	if round, err := s.Repo.GetRoundByID(ctx, id); err != nil {
		return nil, err
	} else if round != nil {
		return round, nil
	}

	// The start valuation is captured outside the transaction; a feed
	// outage degrades the round to a refund-on-tie outcome rather than
	// blocking trading.
	startValuation := decimal.Zero
	if s.Valuation != nil {
		if obs, err := s.Valuation.LatestMarketCap(ctx); err == nil {
			startValuation = obs.MarketCap
		} else if s.Logger != nil {
			s.Logger.Warn("start valuation unavailable", zap.String("round_id", id), zap.Error(err))
		}
	}

	round := &models.Round{
		ID:              id,
		DurationMinutes: durationMinutes,
		StartTime:       start,
		EndTime:         end,
		Status:          models.RoundStatusActive,
		StartValuation:  startValuation,
	}
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		created, err := s.Repo.CreateRoundIfAbsentTx(tx, round)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		pool := engine.NewPool(s.InitialLiquidity)
		if err := s.Repo.AppendPoolSnapshotTx(tx, &models.PoolSnapshot{
			RoundID:       id,
			HigherReserve: pool.Higher,
			LowerReserve:  pool.Lower,
			K:             pool.K,
		}); err != nil {
			return err
		}
		if s.Logger != nil {
			s.Logger.Info("round created",
				zap.String("round_id", id),
				zap.Int("duration_minutes", durationMinutes),
				zap.String("start_valuation", startValuation.String()),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Repo.GetRoundByID(ctx, id)
}

func (s *RoundService) GetRound(ctx context.Context, id string) (*models.Round, error) {
	round, err := s.Repo.GetRoundByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, engine.ErrRoundNotFound
	}
	return round, nil
}

// CloseExpired flips every active round whose end time has passed to
// closed. It is idempotent and safe to run from multiple sweepers.
func (s *RoundService) CloseExpired(ctx context.Context) (int64, error) {
	n, err := s.Repo.CloseExpiredRounds(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 && s.Logger != nil {
		s.Logger.Info("rounds closed", zap.Int64("count", n))
	}
	return n, nil
}
