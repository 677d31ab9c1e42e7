package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"updown/internal/engine"
	"updown/internal/models"
	"updown/internal/repository"
)

// SettlementService resolves closed rounds pari-mutuel style and pays
// claims. Settling is idempotent: a settled round is a no-op, and a
// re-settle (before any claim) recomputes every unclaimed row while
// claimed rows are never rewritten.
type SettlementService struct {
	Repo      repository.Repository
	Rounds    *RoundService
	Valuation *ValuationService
	Audit     *AuditService
	Logger    *zap.Logger

	SettleBatchSize int
}

// ClaimResult is returned from a successful claim.
type ClaimResult struct {
	RoundID  string          `json:"round_id"`
	Side     string          `json:"side"`
	Payout   decimal.Decimal `json:"payout"`
	ClaimRef string          `json:"claim_ref"`
}

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	RoundsClosed  int64    `json:"rounds_closed"`
	RoundsSettled int      `json:"rounds_settled"`
	Deferred      []string `json:"deferred,omitempty"`
}

// SettleRound computes and stores the pari-mutuel outcome of a closed
// round. The final valuation is the last tick at or before the round's
// end time; with the feed unavailable the round stays closed and the
// call returns ErrUpstreamUnavailable so a later sweep retries it.
// Re-settling an already-settled round recomputes its unclaimed rows;
// claimed rows are never rewritten.
func (s *SettlementService) SettleRound(ctx context.Context, roundID string) error {
	round, err := s.Rounds.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if round.Status == models.RoundStatusActive {
		return engine.ErrRoundNotClosed
	}

	obs, err := s.Valuation.MarketCapAt(ctx, round.EndTime)
	if err != nil {
		return engine.ErrUpstreamUnavailable
	}

	now := time.Now().UTC()
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.Repo.GetRoundForUpdateTx(tx, roundID)
		if err != nil {
			return err
		}
		if locked == nil {
			return engine.ErrRoundNotFound
		}
		if locked.Status == models.RoundStatusActive {
			return engine.ErrRoundNotClosed
		}

		positions, err := s.Repo.ListPositionsByRoundTx(tx, roundID)
		if err != nil {
			return err
		}
		stakes := make([]engine.Stake, 0, len(positions))
		for _, p := range positions {
			if !p.Amount.IsPositive() {
				continue
			}
			stakes = append(stakes, engine.Stake{
				UserID:    p.UserID,
				Side:      engine.Side(p.Side),
				Amount:    p.Amount,
				AvgPrice:  p.AvgPrice,
				TotalCost: p.TotalCost,
			})
		}

		plan := engine.ComputeSettlement(locked.StartValuation, obs.MarketCap, stakes)
		for _, award := range plan.Awards {
			if err := s.Repo.UpsertUnclaimedSettlementTx(tx, &models.Settlement{
				UserID:     award.UserID,
				RoundID:    roundID,
				Side:       award.Side.String(),
				Amount:     award.Amount,
				AvgPrice:   award.AvgPrice,
				TotalCost:  award.TotalCost,
				Won:        award.Won,
				Payout:     award.Payout,
				ProfitLoss: award.ProfitLoss,
			}); err != nil {
				return err
			}
		}
		return s.Repo.MarkRoundSettledTx(tx, roundID, plan.WinningSide.String(), obs.MarketCap, now)
	})
	if err != nil {
		return err
	}

	if s.Logger != nil {
		s.Logger.Info("round settled",
			zap.String("round_id", roundID),
			zap.String("final_valuation", obs.MarketCap.String()),
		)
	}
	return nil
}

// SweepOnce closes every expired round and settles closed rounds in
// batches. Feed outages defer the affected rounds to the next sweep.
func (s *SettlementService) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	closed, err := s.Rounds.CloseExpired(ctx)
	if err != nil {
		return report, err
	}
	report.RoundsClosed = closed

	rounds, err := s.Repo.ListRoundsToSettle(ctx, time.Now().UTC(), s.SettleBatchSize)
	if err != nil {
		return report, err
	}
	for _, round := range rounds {
		if err := s.SettleRound(ctx, round.ID); err != nil {
			if errors.Is(err, engine.ErrUpstreamUnavailable) {
				report.Deferred = append(report.Deferred, round.ID)
				continue
			}
			return report, err
		}
		report.RoundsSettled++
	}
	return report, nil
}

// Claim pays out the caller's best settlement row for a round exactly
// once, tagging it with a fresh claim reference and the on-chain tx hash
// when the caller supplies one.
func (s *SettlementService) Claim(ctx context.Context, walletAddress, roundID, txHash string) (*ClaimResult, error) {
	user, err := s.Repo.GetOrCreateUser(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	var result *ClaimResult
	now := time.Now().UTC()
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		row, err := s.Repo.GetSettlementForClaimTx(tx, user.ID, roundID)
		if err != nil {
			return err
		}
		if row == nil {
			return engine.ErrSettlementNotFound
		}
		if row.Claimed {
			return engine.ErrAlreadyClaimed
		}
		if !row.Payout.IsPositive() {
			return engine.ErrNoPayout
		}
		ref := uuid.NewString()
		if err := s.Repo.MarkSettlementClaimedTx(tx, row.ID, now, ref, txHash); err != nil {
			return err
		}
		result = &ClaimResult{
			RoundID:  roundID,
			Side:     row.Side,
			Payout:   row.Payout,
			ClaimRef: ref,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Audit != nil {
		uid := user.ID
		s.Audit.Record(ctx, AuditContext{UserID: &uid}, "settlement.claim", map[string]any{
			"round_id": roundID, "payout": result.Payout.String(),
			"claim_ref": result.ClaimRef, "tx_hash": txHash,
		})
	}
	return result, nil
}

// ListForUser returns a user's settlement rows, optionally only the
// still-claimable ones.
func (s *SettlementService) ListForUser(ctx context.Context, walletAddress string, unclaimedOnly bool, limit int) ([]models.Settlement, error) {
	user, err := s.Repo.GetUserByWallet(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []models.Settlement{}, nil
	}
	return s.Repo.ListSettlementsByUser(ctx, repository.ListSettlementsParams{
		UserID:        user.ID,
		UnclaimedOnly: unclaimedOnly,
		Limit:         limit,
	})
}
