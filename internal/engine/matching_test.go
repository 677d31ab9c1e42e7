package engine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMatchIncoming_LimitCrossAtMeanPrice(t *testing.T) {
	// Resting lower at 0.5; incoming higher limit at 0.6. 0.6+0.5=1.1 >= 1,
	// so they cross for the full 100 at (0.6+0.5)/2 = 0.55.
	book := []RestingOrder{
		{ID: 1, UserID: 7, Side: SideLower, Price: mustDec(t, "0.5"), Remaining: decimal.NewFromInt(100)},
	}
	limit := mustDec(t, "0.6")
	fills, remaining := MatchIncoming(SideHigher, decimal.NewFromInt(100), &limit, book)
	if len(fills) != 1 {
		t.Fatalf("fills=%d want 1", len(fills))
	}
	if fills[0].Amount.Cmp(decimal.NewFromInt(100)) != 0 {
		t.Fatalf("amount=%s want 100", fills[0].Amount)
	}
	if fills[0].TakerPrice.Cmp(mustDec(t, "0.55")) != 0 || fills[0].MakerPrice.Cmp(mustDec(t, "0.55")) != 0 {
		t.Fatalf("prices=%s/%s want 0.55", fills[0].TakerPrice, fills[0].MakerPrice)
	}
	if !remaining.IsZero() {
		t.Fatalf("remaining=%s want 0", remaining)
	}
}

func TestMatchIncoming_IncompatiblePricesDoNotCross(t *testing.T) {
	book := []RestingOrder{
		{ID: 1, UserID: 7, Side: SideLower, Price: mustDec(t, "0.3"), Remaining: decimal.NewFromInt(100)},
	}
	limit := mustDec(t, "0.6")
	fills, remaining := MatchIncoming(SideHigher, decimal.NewFromInt(100), &limit, book)
	if len(fills) != 0 {
		t.Fatalf("fills=%d want 0", len(fills))
	}
	if remaining.Cmp(decimal.NewFromInt(100)) != 0 {
		t.Fatalf("remaining=%s want 100", remaining)
	}
}

func TestMatchIncoming_MarketTakerPaysComplement(t *testing.T) {
	book := []RestingOrder{
		{ID: 1, UserID: 7, Side: SideLower, Price: mustDec(t, "0.4"), Remaining: decimal.NewFromInt(60)},
		{ID: 2, UserID: 8, Side: SideLower, Price: mustDec(t, "0.45"), Remaining: decimal.NewFromInt(60)},
	}
	fills, remaining := MatchIncoming(SideHigher, decimal.NewFromInt(100), nil, book)
	if len(fills) != 2 {
		t.Fatalf("fills=%d want 2", len(fills))
	}
	if fills[0].TakerPrice.Cmp(mustDec(t, "0.6")) != 0 || fills[0].MakerPrice.Cmp(mustDec(t, "0.4")) != 0 {
		t.Fatalf("fill0 prices=%s/%s", fills[0].TakerPrice, fills[0].MakerPrice)
	}
	if fills[1].Amount.Cmp(decimal.NewFromInt(40)) != 0 {
		t.Fatalf("fill1 amount=%s want 40", fills[1].Amount)
	}
	if !remaining.IsZero() {
		t.Fatalf("remaining=%s want 0", remaining)
	}
}

func TestMatchIncoming_PartialFillLeavesRemainder(t *testing.T) {
	book := []RestingOrder{
		{ID: 1, UserID: 7, Side: SideHigher, Price: mustDec(t, "0.7"), Remaining: decimal.NewFromInt(30)},
	}
	limit := mustDec(t, "0.5")
	fills, remaining := MatchIncoming(SideLower, decimal.NewFromInt(100), &limit, book)
	if len(fills) != 1 {
		t.Fatalf("fills=%d want 1", len(fills))
	}
	if fills[0].Amount.Cmp(decimal.NewFromInt(30)) != 0 {
		t.Fatalf("amount=%s want 30", fills[0].Amount)
	}
	if remaining.Cmp(decimal.NewFromInt(70)) != 0 {
		t.Fatalf("remaining=%s want 70", remaining)
	}
}

func TestRankBook_PriceTimePriority(t *testing.T) {
	book := []RestingOrder{
		{ID: 3, Side: SideHigher, Price: mustDec(t, "0.6"), CreatedAt: 200},
		{ID: 1, Side: SideHigher, Price: mustDec(t, "0.6"), CreatedAt: 100},
		{ID: 2, Side: SideHigher, Price: mustDec(t, "0.8"), CreatedAt: 300},
	}
	RankBook(SideHigher, book)
	if book[0].ID != 2 {
		t.Fatalf("best higher order id=%d want 2 (highest price)", book[0].ID)
	}
	// Same price: the earlier-created order fills first.
	if book[1].ID != 1 || book[2].ID != 3 {
		t.Fatalf("tie-break order=%d,%d want 1,3", book[1].ID, book[2].ID)
	}

	lower := []RestingOrder{
		{ID: 5, Side: SideLower, Price: mustDec(t, "0.4"), CreatedAt: 100},
		{ID: 6, Side: SideLower, Price: mustDec(t, "0.2"), CreatedAt: 200},
	}
	RankBook(SideLower, lower)
	if lower[0].ID != 6 {
		t.Fatalf("best lower order id=%d want 6 (lowest price)", lower[0].ID)
	}
}

func TestCrosses_Boundary(t *testing.T) {
	if !Crosses(mustDec(t, "0.5"), mustDec(t, "0.5")) {
		t.Fatalf("0.5+0.5 should cross")
	}
	if Crosses(mustDec(t, "0.5"), mustDec(t, "0.49")) {
		t.Fatalf("0.99 should not cross")
	}
}
