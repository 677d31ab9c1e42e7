package engine

import (
	"github.com/shopspring/decimal"
)

// moneyScale is the rounding policy for every division in the engine:
// 10 fractional digits, half-up, matching the numeric(…,10) columns.
const moneyScale = 10

var (
	two     = decimal.NewFromInt(2)
	half    = decimal.New(5, -1)
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Pool is the AMM reserve pair under the constant-product invariant
// higher * lower = k. It is a value type; executions derive a new Pool
// that the caller persists as a fresh snapshot.
type Pool struct {
	Higher decimal.Decimal
	Lower  decimal.Decimal
	K      decimal.Decimal
}

func NewPool(initialReserve decimal.Decimal) Pool {
	return Pool{
		Higher: initialReserve,
		Lower:  initialReserve,
		K:      initialReserve.Mul(initialReserve),
	}
}

func (p Pool) reserve(side Side) decimal.Decimal {
	if side == SideHigher {
		return p.Higher
	}
	return p.Lower
}

// MarginalPrice is the pre-trade price for a side: opposite reserve over
// side reserve (how much of the other outcome one unit currently costs).
func (p Pool) MarginalPrice(side Side) decimal.Decimal {
	res := p.reserve(side)
	if res.IsZero() {
		return decimal.Zero
	}
	return p.reserve(side.Opposite()).DivRound(res, moneyScale)
}

// Quote holds the outcome of pricing a market order against the pool.
type Quote struct {
	Side           Side
	Amount         decimal.Decimal
	Cost           decimal.Decimal
	AvgPrice       decimal.Decimal
	PriceImpactPct decimal.Decimal
	NewHigher      decimal.Decimal
	NewLower       decimal.Decimal
}

// QuoteBuy prices a market order of size amount on side without mutating
// the pool. The order may not consume more than half of the side reserve.
func (p Pool) QuoteBuy(side Side, amount decimal.Decimal) (Quote, error) {
	if !amount.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}
	sideRes := p.reserve(side)
	oppRes := p.reserve(side.Opposite())
	if amount.GreaterThan(sideRes.Mul(half)) {
		return Quote{}, ErrOrderTooLarge
	}

	newSide := sideRes.Sub(amount)
	newOpp := p.K.DivRound(newSide, moneyScale)
	cost := newOpp.Sub(oppRes)
	avg := cost.DivRound(amount, moneyScale)

	marginal := p.MarginalPrice(side)
	impact := decimal.Zero
	if marginal.IsPositive() {
		impact = avg.DivRound(marginal, moneyScale).Sub(one).Mul(hundred)
	}

	q := Quote{
		Side:           side,
		Amount:         amount,
		Cost:           cost,
		AvgPrice:       avg,
		PriceImpactPct: impact,
	}
	if side == SideHigher {
		q.NewHigher, q.NewLower = newSide, newOpp
	} else {
		q.NewHigher, q.NewLower = newOpp, newSide
	}
	return q, nil
}

// Apply returns the post-trade pool for a quote. K carries over unchanged;
// the reserves land on k within the rounding of a single division.
func (p Pool) Apply(q Quote) Pool {
	return Pool{Higher: q.NewHigher, Lower: q.NewLower, K: p.K}
}
