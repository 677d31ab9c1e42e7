package engine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestQuoteBuy_HigherMovesReserves(t *testing.T) {
	pool := NewPool(decimal.NewFromInt(10000))
	q, err := pool.QuoteBuy(SideHigher, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if q.NewHigher.Cmp(decimal.NewFromInt(9000)) != 0 {
		t.Fatalf("newHigher=%s want=9000", q.NewHigher)
	}
	// 100000000 / 9000 = 11111.1111111111
	if q.NewLower.Cmp(mustDec(t, "11111.1111111111")) != 0 {
		t.Fatalf("newLower=%s", q.NewLower)
	}
	if q.Cost.Cmp(mustDec(t, "1111.1111111111")) != 0 {
		t.Fatalf("cost=%s", q.Cost)
	}
	if q.AvgPrice.Cmp(mustDec(t, "1.1111111111")) != 0 {
		t.Fatalf("avgPrice=%s", q.AvgPrice)
	}
	if !q.PriceImpactPct.IsPositive() {
		t.Fatalf("priceImpact=%s want positive", q.PriceImpactPct)
	}
}

func TestQuoteBuy_RejectsOversizedOrder(t *testing.T) {
	pool := NewPool(decimal.NewFromInt(10000))
	_, err := pool.QuoteBuy(SideLower, decimal.NewFromInt(6000))
	if err != ErrOrderTooLarge {
		t.Fatalf("err=%v want ErrOrderTooLarge", err)
	}
	// Quote is pure: reserves are untouched either way.
	if pool.Higher.Cmp(decimal.NewFromInt(10000)) != 0 || pool.Lower.Cmp(decimal.NewFromInt(10000)) != 0 {
		t.Fatalf("pool mutated: %s/%s", pool.Higher, pool.Lower)
	}
}

func TestQuoteBuy_RejectsNonPositiveAmount(t *testing.T) {
	pool := NewPool(decimal.NewFromInt(10000))
	if _, err := pool.QuoteBuy(SideHigher, decimal.Zero); err != ErrInvalidAmount {
		t.Fatalf("err=%v want ErrInvalidAmount", err)
	}
	if _, err := pool.QuoteBuy(SideHigher, decimal.NewFromInt(-5)); err != ErrInvalidAmount {
		t.Fatalf("err=%v want ErrInvalidAmount", err)
	}
}

func TestApply_ConstantProductHoldsAcrossSequence(t *testing.T) {
	pool := NewPool(decimal.NewFromInt(10000))
	k := pool.K
	tolerance := mustDec(t, "0.01")

	steps := []struct {
		side   Side
		amount int64
	}{
		{SideHigher, 1000},
		{SideLower, 2500},
		{SideHigher, 300},
		{SideLower, 4000},
		{SideHigher, 2000},
	}
	for i, step := range steps {
		q, err := pool.QuoteBuy(step.side, decimal.NewFromInt(step.amount))
		if err != nil {
			t.Fatalf("step %d: err=%v", i, err)
		}
		pool = pool.Apply(q)
		product := pool.Higher.Mul(pool.Lower)
		if product.Sub(k).Abs().GreaterThan(tolerance) {
			t.Fatalf("step %d: H*L=%s drifted from k=%s", i, product, k)
		}
	}
}

func TestMarginalPrice_Symmetry(t *testing.T) {
	pool := Pool{
		Higher: decimal.NewFromInt(8000),
		Lower:  decimal.NewFromInt(12500),
		K:      decimal.NewFromInt(100000000),
	}
	if pool.MarginalPrice(SideHigher).Cmp(mustDec(t, "1.5625")) != 0 {
		t.Fatalf("higher price=%s", pool.MarginalPrice(SideHigher))
	}
	if pool.MarginalPrice(SideLower).Cmp(mustDec(t, "0.64")) != 0 {
		t.Fatalf("lower price=%s", pool.MarginalPrice(SideLower))
	}
}
