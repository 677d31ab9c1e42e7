package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"updown/internal/engine"
	"updown/internal/models"
	"updown/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but only the claim path is fleshed out.
type stubRepo struct {
	users       map[string]*models.User
	rounds      map[string]*models.Round
	positions   []models.Position
	ticks       []*models.ValuationTick
	settlements []*models.Settlement
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) GetOrCreateUser(ctx context.Context, walletAddress string) (*models.User, error) {
	if u, ok := s.users[walletAddress]; ok {
		return u, nil
	}
	if s.users == nil {
		s.users = map[string]*models.User{}
	}
	u := &models.User{ID: uint64(len(s.users) + 1), WalletAddress: walletAddress}
	s.users[walletAddress] = u
	return u, nil
}
func (s *stubRepo) GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	return s.users[walletAddress], nil
}
func (s *stubRepo) AddUserVolumeTx(tx *gorm.DB, userID uint64, volume decimal.Decimal, trades int64) error {
	return nil
}

func (s *stubRepo) GetRoundByID(ctx context.Context, id string) (*models.Round, error) {
	return s.rounds[id], nil
}
func (s *stubRepo) CreateRoundIfAbsentTx(tx *gorm.DB, round *models.Round) (bool, error) {
	return false, nil
}
func (s *stubRepo) GetRoundForUpdateTx(tx *gorm.DB, id string) (*models.Round, error) {
	return s.rounds[id], nil
}
func (s *stubRepo) CloseExpiredRounds(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ListRoundsToSettle(ctx context.Context, now time.Time, limit int) ([]models.Round, error) {
	return nil, nil
}
func (s *stubRepo) MarkRoundSettledTx(tx *gorm.DB, id string, winningSide string, finalValuation decimal.Decimal, settledAt time.Time) error {
	if round, ok := s.rounds[id]; ok {
		round.Status = models.RoundStatusSettled
		round.WinningSide = winningSide
		round.FinalValuation = &finalValuation
		round.SettledAt = &settledAt
	}
	return nil
}

func (s *stubRepo) LatestPoolSnapshot(ctx context.Context, roundID string) (*models.PoolSnapshot, error) {
	return nil, nil
}
func (s *stubRepo) LatestPoolSnapshotTx(tx *gorm.DB, roundID string) (*models.PoolSnapshot, error) {
	return nil, nil
}
func (s *stubRepo) AppendPoolSnapshotTx(tx *gorm.DB, snap *models.PoolSnapshot) error { return nil }

func (s *stubRepo) InsertOrderTx(tx *gorm.DB, order *models.LimitOrder) error { return nil }
func (s *stubRepo) GetOrderByID(ctx context.Context, id uint64) (*models.LimitOrder, error) {
	return nil, nil
}
func (s *stubRepo) ListOpenOrdersTx(tx *gorm.DB, roundID string, side string) ([]models.LimitOrder, error) {
	return nil, nil
}
func (s *stubRepo) ApplyOrderFillTx(tx *gorm.DB, orderID uint64, fillAmount decimal.Decimal, filledAt time.Time) error {
	return nil
}
func (s *stubRepo) CancelOrderTx(tx *gorm.DB, orderID uint64, userID uint64, cancelledAt time.Time) (bool, error) {
	return false, nil
}
func (s *stubRepo) AggregatedBook(ctx context.Context, roundID string, maxLevels int) (map[string][]repository.BookLevel, error) {
	return nil, nil
}

func (s *stubRepo) InsertTradeTx(tx *gorm.DB, trade *models.Trade) error { return nil }
func (s *stubRepo) ListRecentTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	return nil, nil
}

func (s *stubRepo) UpsertPositionTx(tx *gorm.DB, userID uint64, roundID string, side string, amount, cost decimal.Decimal) error {
	return nil
}
func (s *stubRepo) ListPositionsByRoundTx(tx *gorm.DB, roundID string) ([]models.Position, error) {
	var out []models.Position
	for _, p := range s.positions {
		if p.RoundID == roundID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertUnclaimedSettlementTx(tx *gorm.DB, row *models.Settlement) error {
	for _, existing := range s.settlements {
		if existing.UserID != row.UserID || existing.RoundID != row.RoundID || existing.Side != row.Side {
			continue
		}
		if existing.Claimed {
			return nil
		}
		existing.Won = row.Won
		existing.Payout = row.Payout
		existing.ProfitLoss = row.ProfitLoss
		existing.Amount = row.Amount
		existing.TotalCost = row.TotalCost
		return nil
	}
	row.ID = uint64(len(s.settlements) + 1)
	s.settlements = append(s.settlements, row)
	return nil
}
func (s *stubRepo) GetSettlementForClaimTx(tx *gorm.DB, userID uint64, roundID string) (*models.Settlement, error) {
	var best *models.Settlement
	for _, row := range s.settlements {
		if row.UserID != userID || row.RoundID != roundID {
			continue
		}
		if best == nil || row.Payout.GreaterThan(best.Payout) {
			best = row
		}
	}
	return best, nil
}
func (s *stubRepo) MarkSettlementClaimedTx(tx *gorm.DB, id uint64, claimedAt time.Time, claimRef, txHash string) error {
	for _, row := range s.settlements {
		if row.ID == id && !row.Claimed {
			row.Claimed = true
			row.ClaimedAt = &claimedAt
			row.ClaimRef = claimRef
			row.ClaimTxHash = txHash
		}
	}
	return nil
}
func (s *stubRepo) ListSettlementsByUser(ctx context.Context, params repository.ListSettlementsParams) ([]models.Settlement, error) {
	return nil, nil
}

func (s *stubRepo) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error { return nil }

func (s *stubRepo) InsertValuationTick(ctx context.Context, tick *models.ValuationTick) error {
	return nil
}
func (s *stubRepo) LatestValuationTick(ctx context.Context) (*models.ValuationTick, error) {
	return nil, nil
}
func (s *stubRepo) LatestValuationTickBefore(ctx context.Context, cutoff time.Time) (*models.ValuationTick, error) {
	var best *models.ValuationTick
	for _, tick := range s.ticks {
		if tick.ObservedAt.After(cutoff) {
			continue
		}
		if best == nil || tick.ObservedAt.After(best.ObservedAt) {
			best = tick
		}
	}
	return best, nil
}

func TestClaimPaysOutExactlyOnce(t *testing.T) {
	repo := &stubRepo{
		settlements: []*models.Settlement{
			{
				ID:      1,
				UserID:  1,
				RoundID: "15m-1760021100",
				Side:    "higher",
				Won:     true,
				Payout:  decimal.NewFromInt(800),
			},
		},
	}
	svc := &SettlementService{Repo: repo}

	result, err := svc.Claim(context.Background(), "wallet-1", "15m-1760021100", "0xabc123")
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if result.Payout.Cmp(decimal.NewFromInt(800)) != 0 {
		t.Fatalf("payout = %s, want 800", result.Payout)
	}
	if result.ClaimRef == "" {
		t.Fatalf("claim ref not assigned")
	}
	row := repo.settlements[0]
	if !row.Claimed || row.ClaimRef != result.ClaimRef {
		t.Fatalf("row not marked claimed: claimed=%v ref=%q", row.Claimed, row.ClaimRef)
	}
	if row.ClaimTxHash != "0xabc123" {
		t.Fatalf("claim tx hash = %q, want 0xabc123", row.ClaimTxHash)
	}

	_, err = svc.Claim(context.Background(), "wallet-1", "15m-1760021100", "")
	if !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Fatalf("second claim err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestClaimRejectsZeroPayout(t *testing.T) {
	repo := &stubRepo{
		settlements: []*models.Settlement{
			{ID: 1, UserID: 1, RoundID: "15m-1760021100", Side: "lower", Payout: decimal.Zero},
		},
	}
	svc := &SettlementService{Repo: repo}

	_, err := svc.Claim(context.Background(), "wallet-1", "15m-1760021100", "")
	if !errors.Is(err, engine.ErrNoPayout) {
		t.Fatalf("err = %v, want ErrNoPayout", err)
	}
}

func TestSettleRoundRecomputesUnclaimedRowsOnly(t *testing.T) {
	end := time.Date(2025, 10, 9, 14, 45, 0, 0, time.UTC)
	roundID := RoundID(15, end)
	repo := &stubRepo{
		users: map[string]*models.User{
			"wallet-1": {ID: 1, WalletAddress: "wallet-1"},
			"wallet-2": {ID: 2, WalletAddress: "wallet-2"},
		},
		rounds: map[string]*models.Round{
			roundID: {
				ID:              roundID,
				DurationMinutes: 15,
				EndTime:         end,
				Status:          models.RoundStatusClosed,
				StartValuation:  decimal.NewFromInt(50000),
			},
		},
		positions: []models.Position{
			{UserID: 1, RoundID: roundID, Side: "higher", Amount: decimal.NewFromInt(100), TotalCost: decimal.NewFromInt(500)},
			{UserID: 2, RoundID: roundID, Side: "lower", Amount: decimal.NewFromInt(60), TotalCost: decimal.NewFromInt(300)},
		},
		// The only tick on record predates the round's end and shows a rise.
		ticks: []*models.ValuationTick{
			{Source: "rest", MarketCap: decimal.NewFromInt(60000), ObservedAt: end.Add(-time.Minute)},
		},
	}
	rounds := &RoundService{Repo: repo, Durations: []int{15}}
	valuation := &ValuationService{Repo: repo}
	svc := &SettlementService{Repo: repo, Rounds: rounds, Valuation: valuation}

	if err := svc.SettleRound(context.Background(), roundID); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	round := repo.rounds[roundID]
	if round.Status != models.RoundStatusSettled || round.WinningSide != "higher" {
		t.Fatalf("round status=%s winner=%s after settle", round.Status, round.WinningSide)
	}
	if len(repo.settlements) != 2 {
		t.Fatalf("settlement rows = %d, want 2", len(repo.settlements))
	}

	// The winner claims; then a corrected tick lands closer to the end
	// time and settlement re-runs with the opposite outcome.
	winner, _ := repo.GetSettlementForClaimTx(nil, 1, roundID)
	firstPayout := winner.Payout
	winner.Claimed = true
	repo.ticks = append(repo.ticks, &models.ValuationTick{
		Source: "rest", MarketCap: decimal.NewFromInt(40000), ObservedAt: end.Add(-time.Second),
	})

	if err := svc.SettleRound(context.Background(), roundID); err != nil {
		t.Fatalf("re-settle failed: %v", err)
	}
	if winner.Payout.Cmp(firstPayout) != 0 {
		t.Fatalf("claimed row rewritten: payout %s -> %s", firstPayout, winner.Payout)
	}
	loser, _ := repo.GetSettlementForClaimTx(nil, 2, roundID)
	if !loser.Won || !loser.Payout.IsPositive() {
		t.Fatalf("unclaimed row not recomputed: won=%v payout=%s", loser.Won, loser.Payout)
	}
}

func TestClaimUnknownRound(t *testing.T) {
	svc := &SettlementService{Repo: &stubRepo{}}
	_, err := svc.Claim(context.Background(), "wallet-1", "15m-1760021100", "")
	if !errors.Is(err, engine.ErrSettlementNotFound) {
		t.Fatalf("err = %v, want ErrSettlementNotFound", err)
	}
}
