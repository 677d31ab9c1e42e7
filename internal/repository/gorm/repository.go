package gormrepository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"updown/internal/models"
	"updown/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InTx runs fn inside a single serializable transaction. Concurrent
// operations against the same round additionally serialize on the round
// row lock taken by GetRoundForUpdateTx.
func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// --- users -------------------------------------------------------------

func (s *Store) GetOrCreateUser(ctx context.Context, walletAddress string) (*models.User, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return nil, gorm.ErrRecordNotFound
	}
	now := time.Now().UTC()
	user := models.User{WalletAddress: walletAddress, LastSeenAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.Assignments(map[string]any{"last_seen_at": now}),
	}).Create(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		if err := s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func (s *Store) GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("wallet_address = ?", strings.TrimSpace(walletAddress)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) AddUserVolumeTx(tx *gorm.DB, userID uint64, volume decimal.Decimal, trades int64) error {
	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"total_volume": gorm.Expr("total_volume + ?", volume),
			"total_trades": gorm.Expr("total_trades + ?", trades),
		}).Error
}

// --- rounds ------------------------------------------------------------

func (s *Store) GetRoundByID(ctx context.Context, id string) (*models.Round, error) {
	var round models.Round
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

func (s *Store) CreateRoundIfAbsentTx(tx *gorm.DB, round *models.Round) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(round)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetRoundForUpdateTx(tx *gorm.DB, id string) (*models.Round, error) {
	var round models.Round
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

func (s *Store) CloseExpiredRounds(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Round{}).
		Where("status = ?", models.RoundStatusActive).
		Where("end_time < ?", now).
		Updates(map[string]any{
			"status":    models.RoundStatusClosed,
			"closed_at": now,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) ListRoundsToSettle(ctx context.Context, now time.Time, limit int) ([]models.Round, error) {
	if limit <= 0 {
		limit = 10
	}
	var rounds []models.Round
	err := s.db.WithContext(ctx).
		Where("status = ?", models.RoundStatusClosed).
		Where("end_time < ?", now).
		Order("end_time asc").
		Limit(limit).
		Find(&rounds).Error
	if err != nil {
		return nil, err
	}
	return rounds, nil
}

func (s *Store) MarkRoundSettledTx(tx *gorm.DB, id string, winningSide string, finalValuation decimal.Decimal, settledAt time.Time) error {
	return tx.Model(&models.Round{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          models.RoundStatusSettled,
			"winning_side":    winningSide,
			"final_valuation": finalValuation,
			"settled_at":      settledAt,
		}).Error
}

// --- pool snapshots ----------------------------------------------------

func (s *Store) LatestPoolSnapshot(ctx context.Context, roundID string) (*models.PoolSnapshot, error) {
	return latestSnapshot(s.db.WithContext(ctx), roundID)
}

func (s *Store) LatestPoolSnapshotTx(tx *gorm.DB, roundID string) (*models.PoolSnapshot, error) {
	return latestSnapshot(tx, roundID)
}

func latestSnapshot(db *gorm.DB, roundID string) (*models.PoolSnapshot, error) {
	var snap models.PoolSnapshot
	err := db.Where("round_id = ?", roundID).
		Order("id desc").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) AppendPoolSnapshotTx(tx *gorm.DB, snap *models.PoolSnapshot) error {
	return tx.Create(snap).Error
}

// --- limit orders ------------------------------------------------------

func (s *Store) InsertOrderTx(tx *gorm.DB, order *models.LimitOrder) error {
	return tx.Create(order).Error
}

func (s *Store) GetOrderByID(ctx context.Context, id uint64) (*models.LimitOrder, error) {
	var order models.LimitOrder
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOpenOrdersTx locks the active orders of one side of a round's book.
// Ranking is done in the engine (price-time priority), not in SQL.
func (s *Store) ListOpenOrdersTx(tx *gorm.DB, roundID string, side string) ([]models.LimitOrder, error) {
	var orders []models.LimitOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("round_id = ?", roundID).
		Where("side = ?", side).
		Where("status = ?", models.OrderStatusActive).
		Where("amount > filled").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) ApplyOrderFillTx(tx *gorm.DB, orderID uint64, fillAmount decimal.Decimal, filledAt time.Time) error {
	return tx.Model(&models.LimitOrder{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"filled": gorm.Expr("filled + ?", fillAmount),
			"status": gorm.Expr(
				"CASE WHEN filled + ? >= amount THEN ? ELSE status END",
				fillAmount, models.OrderStatusFilled,
			),
			"filled_at": gorm.Expr(
				"CASE WHEN filled + ? >= amount THEN ? ELSE filled_at END",
				fillAmount, filledAt,
			),
		}).Error
}

func (s *Store) CancelOrderTx(tx *gorm.DB, orderID uint64, userID uint64, cancelledAt time.Time) (bool, error) {
	res := tx.Model(&models.LimitOrder{}).
		Where("id = ?", orderID).
		Where("user_id = ?", userID).
		Where("status = ?", models.OrderStatusActive).
		Updates(map[string]any{
			"status":       models.OrderStatusCancelled,
			"cancelled_at": cancelledAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) AggregatedBook(ctx context.Context, roundID string, maxLevels int) (map[string][]repository.BookLevel, error) {
	if maxLevels <= 0 {
		maxLevels = 15
	}
	type row struct {
		Side   string
		Price  decimal.Decimal
		Amount decimal.Decimal
		Orders int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.LimitOrder{}).
		Select("side, price, SUM(amount - filled) AS amount, COUNT(*) AS orders").
		Where("round_id = ?", roundID).
		Where("status = ?", models.OrderStatusActive).
		Where("amount > filled").
		Group("side, price").
		Order("CASE WHEN side = 'higher' THEN price END DESC").
		Order("CASE WHEN side = 'lower' THEN price END ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	book := map[string][]repository.BookLevel{
		"higher": {},
		"lower":  {},
	}
	for _, r := range rows {
		if len(book[r.Side]) >= maxLevels {
			continue
		}
		book[r.Side] = append(book[r.Side], repository.BookLevel{
			Price:  r.Price,
			Amount: r.Amount,
			Orders: r.Orders,
		})
	}
	return book, nil
}

// --- trades ------------------------------------------------------------

func (s *Store) InsertTradeTx(tx *gorm.DB, trade *models.Trade) error {
	return tx.Create(trade).Error
}

func (s *Store) ListRecentTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var trades []models.Trade
	query := s.db.WithContext(ctx).Model(&models.Trade{})
	if strings.TrimSpace(params.RoundID) != "" {
		query = query.Where("round_id = ?", params.RoundID)
	}
	if err := query.Order("id desc").Limit(limit).Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// --- positions ---------------------------------------------------------

// UpsertPositionTx is additive: fills only ever grow a position, and the
// average price is recomputed from the running totals.
func (s *Store) UpsertPositionTx(tx *gorm.DB, userID uint64, roundID string, side string, amount, cost decimal.Decimal) error {
	avg := decimal.Zero
	if amount.IsPositive() {
		avg = cost.DivRound(amount, 10)
	}
	pos := models.Position{
		UserID:    userID,
		RoundID:   roundID,
		Side:      side,
		Amount:    amount,
		AvgPrice:  avg,
		TotalCost: cost,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "round_id"}, {Name: "side"}},
		DoUpdates: clause.Assignments(map[string]any{
			"amount":     gorm.Expr("user_positions.amount + ?", amount),
			"total_cost": gorm.Expr("user_positions.total_cost + ?", cost),
			"avg_price": gorm.Expr(
				"(user_positions.total_cost + ?) / NULLIF(user_positions.amount + ?, 0)",
				cost, amount,
			),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&pos).Error
}

func (s *Store) ListPositionsByRoundTx(tx *gorm.DB, roundID string) ([]models.Position, error) {
	var positions []models.Position
	if err := tx.Where("round_id = ?", roundID).Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// --- settlements -------------------------------------------------------

// UpsertUnclaimedSettlementTx writes a settlement row, overwriting a
// previous unsettled computation but never a row that was already
// claimed: claims are final.
func (s *Store) UpsertUnclaimedSettlementTx(tx *gorm.DB, row *models.Settlement) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "round_id"}, {Name: "side"}},
		DoUpdates: clause.Assignments(map[string]any{
			"amount":      row.Amount,
			"avg_price":   row.AvgPrice,
			"total_cost":  row.TotalCost,
			"won":         row.Won,
			"payout":      row.Payout,
			"profit_loss": row.ProfitLoss,
			"updated_at":  time.Now().UTC(),
		}),
		Where: clause.Where{
			Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "user_settlements", Name: "claimed"}, Value: false},
			},
		},
	}).Create(row).Error
}

func (s *Store) GetSettlementForClaimTx(tx *gorm.DB, userID uint64, roundID string) (*models.Settlement, error) {
	var row models.Settlement
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Where("round_id = ?", roundID).
		Order("payout desc").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) MarkSettlementClaimedTx(tx *gorm.DB, id uint64, claimedAt time.Time, claimRef, txHash string) error {
	return tx.Model(&models.Settlement{}).
		Where("id = ?", id).
		Where("claimed = ?", false).
		Updates(map[string]any{
			"claimed":       true,
			"claimed_at":    claimedAt,
			"claim_ref":     claimRef,
			"claim_tx_hash": txHash,
		}).Error
}

func (s *Store) ListSettlementsByUser(ctx context.Context, params repository.ListSettlementsParams) ([]models.Settlement, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("user_id = ?", params.UserID)
	if params.UnclaimedOnly {
		query = query.Where("claimed = ?", false).Where("payout > 0")
	}
	var rows []models.Settlement
	if err := query.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// --- audit -------------------------------------------------------------

func (s *Store) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	if s == nil || s.db == nil || entry == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// --- valuation ticks ---------------------------------------------------

func (s *Store) InsertValuationTick(ctx context.Context, tick *models.ValuationTick) error {
	return s.db.WithContext(ctx).Create(tick).Error
}

func (s *Store) LatestValuationTick(ctx context.Context) (*models.ValuationTick, error) {
	var tick models.ValuationTick
	err := s.db.WithContext(ctx).Order("observed_at desc").First(&tick).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tick, nil
}

func (s *Store) LatestValuationTickBefore(ctx context.Context, cutoff time.Time) (*models.ValuationTick, error) {
	var tick models.ValuationTick
	err := s.db.WithContext(ctx).
		Where("observed_at <= ?", cutoff).
		Order("observed_at desc").
		First(&tick).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tick, nil
}
