package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"updown/internal/engine"
	"updown/internal/models"
	"updown/internal/repository"
)

// ExchangeService executes orders against the hybrid venue: the resting
// limit book first, then the constant-product pool. Every mutating call
// runs in one serializable transaction that starts by locking the round
// row, so executions within a round are strictly serial.
type ExchangeService struct {
	Repo   repository.Repository
	Rounds *RoundService
	Audit  *AuditService
	Logger *zap.Logger

	BookLevels     int
	TradeListLimit int
}

// ExecutedFill is one slice of an executed order, either against a maker
// order ("book") or against the pool ("pool").
type ExecutedFill struct {
	Source       string          `json:"source"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	Cost         decimal.Decimal `json:"cost"`
	MakerOrderID *uint64         `json:"maker_order_id,omitempty"`
}

// OrderResult summarizes a place-order call.
type OrderResult struct {
	RoundID     string          `json:"round_id"`
	Side        string          `json:"side"`
	OrderID     *uint64         `json:"order_id,omitempty"`
	OrderStatus string          `json:"order_status,omitempty"`
	Fills       []ExecutedFill  `json:"fills"`
	FilledTotal decimal.Decimal `json:"filled_total"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	Resting     decimal.Decimal `json:"resting"`
}

// QuoteResult prices a hypothetical market order without executing it.
type QuoteResult struct {
	RoundID        string          `json:"round_id"`
	Side           string          `json:"side"`
	Amount         decimal.Decimal `json:"amount"`
	Cost           decimal.Decimal `json:"cost"`
	AvgPrice       decimal.Decimal `json:"avg_price"`
	MarginalPrice  decimal.Decimal `json:"marginal_price"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
}

// PoolState is the public view of the AMM reserves.
type PoolState struct {
	HigherReserve decimal.Decimal `json:"higher_reserve"`
	LowerReserve  decimal.Decimal `json:"lower_reserve"`
	HigherPrice   decimal.Decimal `json:"higher_price"`
	LowerPrice    decimal.Decimal `json:"lower_price"`
}

// BookSnapshot is the aggregated order book plus the pool state.
type BookSnapshot struct {
	RoundID string                 `json:"round_id"`
	Higher  []repository.BookLevel `json:"higher"`
	Lower   []repository.BookLevel `json:"lower"`
	Pool    PoolState              `json:"pool"`
}

func (s *ExchangeService) loadPoolTx(tx *gorm.DB, roundID string) (engine.Pool, error) {
	snap, err := s.Repo.LatestPoolSnapshotTx(tx, roundID)
	if err != nil {
		return engine.Pool{}, err
	}
	if snap == nil {
		return engine.Pool{}, engine.ErrRoundNotFound
	}
	return engine.Pool{Higher: snap.HigherReserve, Lower: snap.LowerReserve, K: snap.K}, nil
}

// lockActiveRoundTx takes the per-round row lock and verifies the round
// still accepts orders.
func (s *ExchangeService) lockActiveRoundTx(tx *gorm.DB, roundID string, now time.Time) (*models.Round, error) {
	round, err := s.Repo.GetRoundForUpdateTx(tx, roundID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, engine.ErrRoundNotFound
	}
	if round.Status != models.RoundStatusActive || !now.Before(round.EndTime) {
		return nil, engine.ErrRoundNotActive
	}
	return round, nil
}

func (s *ExchangeService) oppositeBookTx(tx *gorm.DB, roundID string, takerSide engine.Side) ([]engine.RestingOrder, error) {
	rows, err := s.Repo.ListOpenOrdersTx(tx, roundID, takerSide.Opposite().String())
	if err != nil {
		return nil, err
	}
	book := make([]engine.RestingOrder, 0, len(rows))
	for _, row := range rows {
		book = append(book, engine.RestingOrder{
			ID:        row.ID,
			UserID:    row.UserID,
			Side:      engine.Side(row.Side),
			Price:     row.Price,
			Remaining: row.Remaining(),
			CreatedAt: row.CreatedAt.UnixNano(),
		})
	}
	engine.RankBook(takerSide.Opposite(), book)
	return book, nil
}

// settleFillTx books one book fill: maker order progress, the trade row,
// and both parties' positions and volume stats.
func (s *ExchangeService) settleFillTx(tx *gorm.DB, round *models.Round, takerID uint64, takerSide engine.Side, fill engine.Fill, tradeType string, takerOrderID *uint64, now time.Time) (decimal.Decimal, error) {
	takerCost := fill.Amount.Mul(fill.TakerPrice)
	makerCost := fill.Amount.Mul(fill.MakerPrice)

	if err := s.Repo.ApplyOrderFillTx(tx, fill.MakerOrderID, fill.Amount, now); err != nil {
		return decimal.Zero, err
	}
	makerOrderID := fill.MakerOrderID
	makerUserID := fill.MakerUserID
	if err := s.Repo.InsertTradeTx(tx, &models.Trade{
		RoundID:     round.ID,
		Side:        takerSide.String(),
		Amount:      fill.Amount,
		Price:       fill.TakerPrice,
		TotalCost:   takerCost,
		BuyerID:     takerID,
		SellerID:    &makerUserID,
		BuyOrderID:  takerOrderID,
		SellOrderID: &makerOrderID,
		TradeType:   tradeType,
	}); err != nil {
		return decimal.Zero, err
	}
	if err := s.Repo.UpsertPositionTx(tx, takerID, round.ID, takerSide.String(), fill.Amount, takerCost); err != nil {
		return decimal.Zero, err
	}
	if err := s.Repo.UpsertPositionTx(tx, makerUserID, round.ID, takerSide.Opposite().String(), fill.Amount, makerCost); err != nil {
		return decimal.Zero, err
	}
	if err := s.Repo.AddUserVolumeTx(tx, makerUserID, makerCost, 1); err != nil {
		return decimal.Zero, err
	}
	return takerCost, nil
}

// Quote prices a market order against the live pool without mutating it.
func (s *ExchangeService) Quote(ctx context.Context, roundID string, side string, amount decimal.Decimal) (*QuoteResult, error) {
	sd, err := engine.ParseSide(side)
	if err != nil {
		return nil, err
	}
	round, err := s.Rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	snap, err := s.Repo.LatestPoolSnapshot(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, engine.ErrRoundNotFound
	}
	pool := engine.Pool{Higher: snap.HigherReserve, Lower: snap.LowerReserve, K: snap.K}
	q, err := pool.QuoteBuy(sd, amount)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{
		RoundID:        round.ID,
		Side:           sd.String(),
		Amount:         q.Amount,
		Cost:           q.Cost,
		AvgPrice:       q.AvgPrice,
		MarginalPrice:  pool.MarginalPrice(sd),
		PriceImpactPct: q.PriceImpactPct,
	}, nil
}

// PlaceMarketOrder fills an order immediately: against crossing makers
// first, then the remainder against the pool. The whole execution is
// atomic, so a pool rejection (for example the 50% reserve guard) rolls
// back any book fills with it.
func (s *ExchangeService) PlaceMarketOrder(ctx context.Context, walletAddress, roundID, side string, amount decimal.Decimal) (*OrderResult, error) {
	sd, err := engine.ParseSide(side)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, engine.ErrInvalidAmount
	}
	user, err := s.Repo.GetOrCreateUser(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	result := &OrderResult{RoundID: roundID, Side: sd.String(), Fills: []ExecutedFill{}}
	now := time.Now().UTC()
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		round, err := s.lockActiveRoundTx(tx, roundID, now)
		if err != nil {
			return err
		}
		book, err := s.oppositeBookTx(tx, round.ID, sd)
		if err != nil {
			return err
		}
		fills, remaining := engine.MatchIncoming(sd, amount, nil, book)

		totalCost := decimal.Zero
		for _, fill := range fills {
			cost, err := s.settleFillTx(tx, round, user.ID, sd, fill, models.TradeTypeMarket, nil, now)
			if err != nil {
				return err
			}
			totalCost = totalCost.Add(cost)
			makerOrderID := fill.MakerOrderID
			result.Fills = append(result.Fills, ExecutedFill{
				Source:       "book",
				Amount:       fill.Amount,
				Price:        fill.TakerPrice,
				Cost:         cost,
				MakerOrderID: &makerOrderID,
			})
		}

		if remaining.IsPositive() {
			pool, err := s.loadPoolTx(tx, round.ID)
			if err != nil {
				return err
			}
			q, err := pool.QuoteBuy(sd, remaining)
			if err != nil {
				return err
			}
			next := pool.Apply(q)
			if err := s.Repo.AppendPoolSnapshotTx(tx, &models.PoolSnapshot{
				RoundID:       round.ID,
				HigherReserve: next.Higher,
				LowerReserve:  next.Lower,
				K:             next.K,
			}); err != nil {
				return err
			}
			if err := s.Repo.InsertTradeTx(tx, &models.Trade{
				RoundID:   round.ID,
				Side:      sd.String(),
				Amount:    q.Amount,
				Price:     q.AvgPrice,
				TotalCost: q.Cost,
				BuyerID:   user.ID,
				TradeType: models.TradeTypeMarket,
			}); err != nil {
				return err
			}
			if err := s.Repo.UpsertPositionTx(tx, user.ID, round.ID, sd.String(), q.Amount, q.Cost); err != nil {
				return err
			}
			totalCost = totalCost.Add(q.Cost)
			result.Fills = append(result.Fills, ExecutedFill{
				Source: "pool",
				Amount: q.Amount,
				Price:  q.AvgPrice,
				Cost:   q.Cost,
			})
		}

		if err := s.Repo.AddUserVolumeTx(tx, user.ID, totalCost, int64(len(result.Fills))); err != nil {
			return err
		}
		result.FilledTotal = amount
		result.TotalCost = totalCost
		result.AvgPrice = totalCost.DivRound(amount, 10)
		result.Resting = decimal.Zero
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, "order.market", map[string]any{
		"round_id": roundID, "side": sd.String(),
		"amount": amount.String(), "total_cost": result.TotalCost.String(),
	})
	return result, nil
}

// PlaceLimitOrder matches the incoming order against crossing makers at
// the mean price, then rests any remainder in the book.
func (s *ExchangeService) PlaceLimitOrder(ctx context.Context, walletAddress, roundID, side string, amount, price decimal.Decimal) (*OrderResult, error) {
	sd, err := engine.ParseSide(side)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, engine.ErrInvalidAmount
	}
	if !price.IsPositive() || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, engine.ErrInvalidPrice
	}
	user, err := s.Repo.GetOrCreateUser(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	result := &OrderResult{RoundID: roundID, Side: sd.String(), Fills: []ExecutedFill{}}
	now := time.Now().UTC()
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		round, err := s.lockActiveRoundTx(tx, roundID, now)
		if err != nil {
			return err
		}
		book, err := s.oppositeBookTx(tx, round.ID, sd)
		if err != nil {
			return err
		}
		fills, remaining := engine.MatchIncoming(sd, amount, &price, book)

		order := &models.LimitOrder{
			UserID:  user.ID,
			RoundID: round.ID,
			Side:    sd.String(),
			Amount:  amount,
			Price:   price,
			Filled:  amount.Sub(remaining),
			Status:  models.OrderStatusActive,
		}
		if remaining.IsZero() {
			order.Status = models.OrderStatusFilled
			order.FilledAt = &now
		}
		if err := s.Repo.InsertOrderTx(tx, order); err != nil {
			return err
		}

		totalCost := decimal.Zero
		for _, fill := range fills {
			orderID := order.ID
			cost, err := s.settleFillTx(tx, round, user.ID, sd, fill, models.TradeTypeLimit, &orderID, now)
			if err != nil {
				return err
			}
			totalCost = totalCost.Add(cost)
			makerOrderID := fill.MakerOrderID
			result.Fills = append(result.Fills, ExecutedFill{
				Source:       "book",
				Amount:       fill.Amount,
				Price:        fill.TakerPrice,
				Cost:         cost,
				MakerOrderID: &makerOrderID,
			})
		}
		if len(fills) > 0 {
			if err := s.Repo.AddUserVolumeTx(tx, user.ID, totalCost, int64(len(fills))); err != nil {
				return err
			}
		}

		orderID := order.ID
		result.OrderID = &orderID
		result.OrderStatus = order.Status
		result.FilledTotal = amount.Sub(remaining)
		result.TotalCost = totalCost
		if result.FilledTotal.IsPositive() {
			result.AvgPrice = totalCost.DivRound(result.FilledTotal, 10)
		}
		result.Resting = remaining
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, "order.limit", map[string]any{
		"round_id": roundID, "side": sd.String(),
		"amount": amount.String(), "price": price.String(),
		"filled": result.FilledTotal.String(),
	})
	return result, nil
}

// CancelOrder withdraws the unfilled remainder of the caller's order.
// Already-executed fills stand.
func (s *ExchangeService) CancelOrder(ctx context.Context, walletAddress string, orderID uint64) (*models.LimitOrder, error) {
	user, err := s.Repo.GetUserByWallet(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, engine.ErrOrderNotFound
	}
	order, err := s.Repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != user.ID {
		return nil, engine.ErrOrderNotFound
	}

	now := time.Now().UTC()
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.Repo.GetRoundForUpdateTx(tx, order.RoundID); err != nil {
			return err
		}
		cancelled, err := s.Repo.CancelOrderTx(tx, orderID, user.ID, now)
		if err != nil {
			return err
		}
		if !cancelled {
			return engine.ErrOrderNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, "order.cancel", map[string]any{"order_id": orderID, "round_id": order.RoundID})
	return s.Repo.GetOrderByID(ctx, orderID)
}

// OrderBook returns the aggregated book (top levels per side) and the
// current pool state for a round.
func (s *ExchangeService) OrderBook(ctx context.Context, roundID string) (*BookSnapshot, error) {
	round, err := s.Rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	levels, err := s.Repo.AggregatedBook(ctx, round.ID, s.BookLevels)
	if err != nil {
		return nil, err
	}
	snap, err := s.Repo.LatestPoolSnapshot(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	out := &BookSnapshot{
		RoundID: round.ID,
		Higher:  levels[engine.SideHigher.String()],
		Lower:   levels[engine.SideLower.String()],
	}
	if out.Higher == nil {
		out.Higher = []repository.BookLevel{}
	}
	if out.Lower == nil {
		out.Lower = []repository.BookLevel{}
	}
	if snap != nil {
		pool := engine.Pool{Higher: snap.HigherReserve, Lower: snap.LowerReserve, K: snap.K}
		out.Pool = PoolState{
			HigherReserve: pool.Higher,
			LowerReserve:  pool.Lower,
			HigherPrice:   pool.MarginalPrice(engine.SideHigher),
			LowerPrice:    pool.MarginalPrice(engine.SideLower),
		}
	}
	return out, nil
}

// RecentTrades lists the newest trades of a round, newest first.
func (s *ExchangeService) RecentTrades(ctx context.Context, roundID string) ([]models.Trade, error) {
	round, err := s.Rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return s.Repo.ListRecentTrades(ctx, repository.ListTradesParams{
		RoundID: round.ID,
		Limit:   s.TradeListLimit,
	})
}

func (s *ExchangeService) audit(ctx context.Context, userID uint64, action string, details map[string]any) {
	if s.Audit == nil {
		return
	}
	uid := userID
	s.Audit.Record(ctx, AuditContext{UserID: &uid}, action, details)
}
