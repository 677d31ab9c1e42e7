package engine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeSettlement_SoleWinnerTakesLosingPool(t *testing.T) {
	stakes := []Stake{
		{UserID: 1, Side: SideHigher, Amount: decimal.NewFromInt(50), TotalCost: decimal.NewFromInt(500)},
		{UserID: 2, Side: SideLower, Amount: decimal.NewFromInt(40), TotalCost: decimal.NewFromInt(300)},
	}
	plan := ComputeSettlement(decimal.NewFromInt(1000), decimal.NewFromInt(1200), stakes)
	if plan.WinningSide != SideHigher {
		t.Fatalf("winningSide=%s want higher", plan.WinningSide)
	}
	winner := plan.Awards[0]
	if !winner.Won {
		t.Fatalf("winner not marked won")
	}
	if winner.Payout.Cmp(decimal.NewFromInt(800)) != 0 {
		t.Fatalf("payout=%s want 800", winner.Payout)
	}
	if winner.ProfitLoss.Cmp(decimal.NewFromInt(300)) != 0 {
		t.Fatalf("profit=%s want 300", winner.ProfitLoss)
	}
	loser := plan.Awards[1]
	if loser.Won || !loser.Payout.IsZero() {
		t.Fatalf("loser award=%+v want payout 0", loser)
	}
	if loser.ProfitLoss.Cmp(decimal.NewFromInt(-300)) != 0 {
		t.Fatalf("loser profit=%s want -300", loser.ProfitLoss)
	}
}

func TestComputeSettlement_ZeroSum(t *testing.T) {
	stakes := []Stake{
		{UserID: 1, Side: SideHigher, Amount: decimal.NewFromInt(30), TotalCost: decimal.NewFromInt(200)},
		{UserID: 2, Side: SideHigher, Amount: decimal.NewFromInt(70), TotalCost: decimal.NewFromInt(450)},
		{UserID: 3, Side: SideLower, Amount: decimal.NewFromInt(55), TotalCost: decimal.NewFromInt(310)},
		{UserID: 4, Side: SideLower, Amount: decimal.NewFromInt(10), TotalCost: decimal.NewFromInt(75)},
	}
	plan := ComputeSettlement(decimal.NewFromInt(500), decimal.NewFromInt(800), stakes)

	totalCost := decimal.Zero
	totalPayout := decimal.Zero
	winningCost := decimal.Zero
	losingCost := decimal.Zero
	for _, a := range plan.Awards {
		totalCost = totalCost.Add(a.TotalCost)
		totalPayout = totalPayout.Add(a.Payout)
		if a.Won {
			winningCost = winningCost.Add(a.TotalCost)
		} else {
			losingCost = losingCost.Add(a.TotalCost)
		}
	}
	if totalPayout.GreaterThan(totalCost) {
		t.Fatalf("payouts %s exceed stakes %s", totalPayout, totalCost)
	}
	// W > 0, so everything staked is redistributed up to share truncation.
	want := winningCost.Add(losingCost)
	if totalPayout.GreaterThan(want) {
		t.Fatalf("totalPayout=%s exceeds pot %s", totalPayout, want)
	}
	if want.Sub(totalPayout).GreaterThan(mustDec(t, "0.0000001")) {
		t.Fatalf("totalPayout=%s want=%s", totalPayout, want)
	}
}

func TestComputeSettlement_ShareTruncationNeverMintsValue(t *testing.T) {
	// 2/3 has no finite decimal expansion; three equal winners would each
	// round a 0.666... share up and jointly overdraw the pot.
	stakes := []Stake{
		{UserID: 1, Side: SideHigher, Amount: decimal.NewFromInt(1), TotalCost: decimal.NewFromInt(1)},
		{UserID: 2, Side: SideHigher, Amount: decimal.NewFromInt(1), TotalCost: decimal.NewFromInt(1)},
		{UserID: 3, Side: SideHigher, Amount: decimal.NewFromInt(1), TotalCost: decimal.NewFromInt(1)},
		{UserID: 4, Side: SideLower, Amount: decimal.NewFromInt(4), TotalCost: decimal.NewFromInt(2)},
	}
	plan := ComputeSettlement(decimal.NewFromInt(500), decimal.NewFromInt(800), stakes)

	totalCost := decimal.Zero
	totalPayout := decimal.Zero
	for _, a := range plan.Awards {
		totalCost = totalCost.Add(a.TotalCost)
		totalPayout = totalPayout.Add(a.Payout)
		if a.Won {
			if got, want := a.Payout, mustDec(t, "1.6666666666"); got.Cmp(want) != 0 {
				t.Fatalf("winner payout=%s want %s", got, want)
			}
		}
	}
	if totalPayout.GreaterThan(totalCost) {
		t.Fatalf("payouts %s exceed stakes %s", totalPayout, totalCost)
	}
}

func TestComputeSettlement_FinalBelowOrEqualStartFavorsLower(t *testing.T) {
	stakes := []Stake{
		{UserID: 1, Side: SideLower, Amount: decimal.NewFromInt(10), TotalCost: decimal.NewFromInt(50)},
	}
	plan := ComputeSettlement(decimal.NewFromInt(1000), decimal.NewFromInt(1000), stakes)
	if plan.WinningSide != SideLower {
		t.Fatalf("winningSide=%s want lower on unchanged valuation", plan.WinningSide)
	}
}

func TestComputeSettlement_NoBaselineRefundsEveryone(t *testing.T) {
	stakes := []Stake{
		{UserID: 1, Side: SideHigher, Amount: decimal.NewFromInt(10), TotalCost: decimal.NewFromInt(90)},
		{UserID: 2, Side: SideLower, Amount: decimal.NewFromInt(20), TotalCost: decimal.NewFromInt(120)},
	}
	plan := ComputeSettlement(decimal.Zero, decimal.NewFromInt(500), stakes)
	if plan.WinningSide != SideTie {
		t.Fatalf("winningSide=%s want tie", plan.WinningSide)
	}
	for _, a := range plan.Awards {
		if a.Payout.Cmp(a.TotalCost) != 0 {
			t.Fatalf("user %d payout=%s want refund %s", a.UserID, a.Payout, a.TotalCost)
		}
		if !a.ProfitLoss.IsZero() {
			t.Fatalf("user %d profit=%s want 0", a.UserID, a.ProfitLoss)
		}
	}
}

func TestComputeSettlement_NoWinnersNoRedistribution(t *testing.T) {
	stakes := []Stake{
		{UserID: 1, Side: SideLower, Amount: decimal.NewFromInt(10), TotalCost: decimal.NewFromInt(60)},
	}
	plan := ComputeSettlement(decimal.NewFromInt(100), decimal.NewFromInt(200), stakes)
	if plan.WinningSide != SideHigher {
		t.Fatalf("winningSide=%s want higher", plan.WinningSide)
	}
	if plan.TotalWinningAmount.IsPositive() {
		t.Fatalf("W=%s want 0", plan.TotalWinningAmount)
	}
	a := plan.Awards[0]
	if a.Won || !a.Payout.IsZero() || a.ProfitLoss.Cmp(decimal.NewFromInt(-60)) != 0 {
		t.Fatalf("award=%+v want total loss", a)
	}
}
