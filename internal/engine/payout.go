package engine

import (
	"github.com/shopspring/decimal"
)

// Stake is one position entering settlement.
type Stake struct {
	UserID    uint64
	Side      Side
	Amount    decimal.Decimal
	AvgPrice  decimal.Decimal
	TotalCost decimal.Decimal
}

// Award is the settlement outcome for one stake.
type Award struct {
	Stake
	Won        bool
	Payout     decimal.Decimal
	ProfitLoss decimal.Decimal
}

// SettlementPlan is the full pari-mutuel result for a round.
type SettlementPlan struct {
	WinningSide        Side
	TotalWinningAmount decimal.Decimal
	TotalLosingCost    decimal.Decimal
	Awards             []Award
}

// ComputeSettlement runs the pari-mutuel redistribution.
//
// Winners split the losers' pooled cost pro rata to their winning amount
// on top of their own cost back: payout = cost + losingCost * (a / W),
// with the share truncated at moneyScale so the payouts never sum past
// the staked total. With no winners (W = 0) nothing is redistributed. A round without a
// positive start valuation has no reliable baseline, so every stake is
// refunded at cost and the outcome is recorded as a tie.
func ComputeSettlement(startValuation, finalValuation decimal.Decimal, stakes []Stake) SettlementPlan {
	plan := SettlementPlan{
		TotalWinningAmount: decimal.Zero,
		TotalLosingCost:    decimal.Zero,
	}

	if !startValuation.IsPositive() {
		plan.WinningSide = SideTie
		for _, s := range stakes {
			plan.Awards = append(plan.Awards, Award{
				Stake:      s,
				Won:        false,
				Payout:     s.TotalCost,
				ProfitLoss: decimal.Zero,
			})
		}
		return plan
	}

	if finalValuation.GreaterThan(startValuation) {
		plan.WinningSide = SideHigher
	} else {
		plan.WinningSide = SideLower
	}

	for _, s := range stakes {
		if s.Side == plan.WinningSide {
			plan.TotalWinningAmount = plan.TotalWinningAmount.Add(s.Amount)
		} else {
			plan.TotalLosingCost = plan.TotalLosingCost.Add(s.TotalCost)
		}
	}

	for _, s := range stakes {
		award := Award{Stake: s}
		if s.Side == plan.WinningSide && plan.TotalWinningAmount.IsPositive() {
			// Shares truncate at moneyScale: rounding up could mint dust
			// across winners and pay out more than was staked.
			winnings, _ := plan.TotalLosingCost.Mul(s.Amount).QuoRem(plan.TotalWinningAmount, moneyScale)
			award.Won = true
			award.Payout = s.TotalCost.Add(winnings)
			award.ProfitLoss = winnings
		} else {
			award.Won = false
			award.Payout = decimal.Zero
			award.ProfitLoss = s.TotalCost.Neg()
		}
		plan.Awards = append(plan.Awards, award)
	}
	return plan
}
