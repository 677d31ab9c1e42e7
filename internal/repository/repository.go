package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"updown/internal/models"
)

// BookLevel is one aggregated price level of the resting book.
type BookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Orders int64           `json:"orders"`
}

type ListTradesParams struct {
	RoundID string
	Limit   int
}

type ListSettlementsParams struct {
	UserID        uint64
	UnclaimedOnly bool
	Limit         int
}

// Repository is the persistence surface of the exchange. Methods with a
// Tx suffix participate in a caller-owned transaction; InTx opens one
// with serializable isolation, which is how every mutating engine
// operation runs.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Users
	GetOrCreateUser(ctx context.Context, walletAddress string) (*models.User, error)
	GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	AddUserVolumeTx(tx *gorm.DB, userID uint64, volume decimal.Decimal, trades int64) error

	// Rounds
	GetRoundByID(ctx context.Context, id string) (*models.Round, error)
	CreateRoundIfAbsentTx(tx *gorm.DB, round *models.Round) (created bool, err error)
	GetRoundForUpdateTx(tx *gorm.DB, id string) (*models.Round, error)
	CloseExpiredRounds(ctx context.Context, now time.Time) (int64, error)
	ListRoundsToSettle(ctx context.Context, now time.Time, limit int) ([]models.Round, error)
	MarkRoundSettledTx(tx *gorm.DB, id string, winningSide string, finalValuation decimal.Decimal, settledAt time.Time) error

	// Pool snapshots (append-only)
	LatestPoolSnapshot(ctx context.Context, roundID string) (*models.PoolSnapshot, error)
	LatestPoolSnapshotTx(tx *gorm.DB, roundID string) (*models.PoolSnapshot, error)
	AppendPoolSnapshotTx(tx *gorm.DB, snap *models.PoolSnapshot) error

	// Limit orders
	InsertOrderTx(tx *gorm.DB, order *models.LimitOrder) error
	GetOrderByID(ctx context.Context, id uint64) (*models.LimitOrder, error)
	ListOpenOrdersTx(tx *gorm.DB, roundID string, side string) ([]models.LimitOrder, error)
	ApplyOrderFillTx(tx *gorm.DB, orderID uint64, fillAmount decimal.Decimal, filledAt time.Time) error
	CancelOrderTx(tx *gorm.DB, orderID uint64, userID uint64, cancelledAt time.Time) (bool, error)
	AggregatedBook(ctx context.Context, roundID string, maxLevels int) (map[string][]BookLevel, error)

	// Trades
	InsertTradeTx(tx *gorm.DB, trade *models.Trade) error
	ListRecentTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)

	// Positions
	UpsertPositionTx(tx *gorm.DB, userID uint64, roundID string, side string, amount, cost decimal.Decimal) error
	ListPositionsByRoundTx(tx *gorm.DB, roundID string) ([]models.Position, error)

	// Settlements
	UpsertUnclaimedSettlementTx(tx *gorm.DB, row *models.Settlement) error
	GetSettlementForClaimTx(tx *gorm.DB, userID uint64, roundID string) (*models.Settlement, error)
	MarkSettlementClaimedTx(tx *gorm.DB, id uint64, claimedAt time.Time, claimRef, txHash string) error
	ListSettlementsByUser(ctx context.Context, params ListSettlementsParams) ([]models.Settlement, error)

	// Audit
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error

	// Valuation ticks
	InsertValuationTick(ctx context.Context, tick *models.ValuationTick) error
	LatestValuationTick(ctx context.Context) (*models.ValuationTick, error)
	LatestValuationTickBefore(ctx context.Context, cutoff time.Time) (*models.ValuationTick, error)
}
