package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RestingOrder is the slice of a limit order the matcher needs.
type RestingOrder struct {
	ID        uint64
	UserID    uint64
	Side      Side
	Price     decimal.Decimal
	Remaining decimal.Decimal
	CreatedAt int64
}

// Fill pairs an incoming order with one resting maker order.
type Fill struct {
	MakerOrderID uint64
	MakerUserID  uint64
	Amount       decimal.Decimal

	// TakerPrice is the trade price on the taker's side; MakerPrice is the
	// price the maker's position is booked at.
	TakerPrice decimal.Decimal
	MakerPrice decimal.Decimal
}

// Crosses reports whether a higher-side price and a lower-side price are
// compatible: the two sides must jointly commit at least 100% of notional.
func Crosses(higherPrice, lowerPrice decimal.Decimal) bool {
	return higherPrice.Add(lowerPrice).GreaterThanOrEqual(one)
}

// CrossPrice is the fill price for two crossing limit orders: the
// arithmetic mean of the posted prices.
func CrossPrice(higherPrice, lowerPrice decimal.Decimal) decimal.Decimal {
	return higherPrice.Add(lowerPrice).DivRound(two, moneyScale)
}

// RankBook orders one side of the book by price-time priority: best price
// first (descending for higher, ascending for lower), then earliest
// creation, then lowest id for orders created in the same instant.
func RankBook(side Side, book []RestingOrder) {
	sort.SliceStable(book, func(i, j int) bool {
		a, b := book[i], book[j]
		if !a.Price.Equal(b.Price) {
			if side == SideHigher {
				return a.Price.GreaterThan(b.Price)
			}
			return a.Price.LessThan(b.Price)
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
}

// MatchIncoming greedily fills an incoming order against the ranked
// opposite-side book and returns the fills plus the unfilled remainder.
//
// A limit taker at price p crosses maker q while p + q >= 1 and both
// positions book at the mean price. A market taker (limitPrice nil)
// accepts every maker at posted limit price: the maker books their own
// price q and the taker pays the complement 1 - q, so the pair still
// commits exactly 100% of notional.
func MatchIncoming(takerSide Side, amount decimal.Decimal, limitPrice *decimal.Decimal, book []RestingOrder) ([]Fill, decimal.Decimal) {
	remaining := amount
	var fills []Fill
	for i := range book {
		if !remaining.IsPositive() {
			break
		}
		maker := book[i]
		if !maker.Remaining.IsPositive() {
			continue
		}

		var takerPrice, makerPrice decimal.Decimal
		if limitPrice != nil {
			hp, lp := *limitPrice, maker.Price
			if takerSide == SideLower {
				hp, lp = maker.Price, *limitPrice
			}
			if !Crosses(hp, lp) {
				// Book is ranked best-first, so nothing further crosses.
				break
			}
			mean := CrossPrice(hp, lp)
			takerPrice, makerPrice = mean, mean
		} else {
			takerPrice = one.Sub(maker.Price)
			makerPrice = maker.Price
		}

		size := remaining
		if maker.Remaining.LessThan(size) {
			size = maker.Remaining
		}
		fills = append(fills, Fill{
			MakerOrderID: maker.ID,
			MakerUserID:  maker.UserID,
			Amount:       size,
			TakerPrice:   takerPrice,
			MakerPrice:   makerPrice,
		})
		remaining = remaining.Sub(size)
	}
	return fills, remaining
}
