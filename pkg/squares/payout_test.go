package squares

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFeePlusNetEqualsGross(t *testing.T) {
	for _, gross := range []string{"0", "1", "100", "2500.50", "0.01", "999999.99"} {
		g := decimal.RequireFromString(gross)
		if !NetRewards(g).Add(TreasuryFee(g)).Equal(g) {
			t.Errorf("net + fee != gross for %s", gross)
		}
	}
}

func TestQuartersOnlySplitSumsToNet(t *testing.T) {
	calc := NewCalculator(DefaultSchedule())
	gross := decimal.RequireFromString("1000")

	total := decimal.Zero
	for q := 1; q <= 4; q++ {
		amt, err := calc.QuarterAmount(gross, StrategyQuartersOnly, q)
		if err != nil {
			t.Fatalf("quarter %d: %v", q, err)
		}
		total = total.Add(amt)
	}
	if !total.Equal(NetRewards(gross)) {
		t.Errorf("quarter amounts sum to %s, want net %s", total, NetRewards(gross))
	}
}

func TestQuartersOnlyFinalIsLargest(t *testing.T) {
	calc := NewCalculator(DefaultSchedule())
	gross := decimal.RequireFromString("1000")

	finalAmt, _ := calc.QuarterAmount(gross, StrategyQuartersOnly, 4)
	for q := 1; q <= 3; q++ {
		amt, _ := calc.QuarterAmount(gross, StrategyQuartersOnly, q)
		if amt.GreaterThanOrEqual(finalAmt) {
			t.Errorf("quarter %d amount %s should be below final %s", q, amt, finalAmt)
		}
	}
}

func TestScoreChangesSplit(t *testing.T) {
	calc := NewCalculator(DefaultSchedule())
	gross := decimal.RequireFromString("2000")
	net := NetRewards(gross)

	// Quarter half sums to 50% of net.
	quarterTotal := decimal.Zero
	for q := 1; q <= 4; q++ {
		amt, err := calc.QuarterAmount(gross, StrategyScoreChanges, q)
		if err != nil {
			t.Fatalf("quarter %d: %v", q, err)
		}
		quarterTotal = quarterTotal.Add(amt)
	}
	if !quarterTotal.Equal(net.Mul(half)) {
		t.Errorf("quarter half sums to %s, want %s", quarterTotal, net.Mul(half))
	}

	// n plays times the per-play amount reassembles the other half.
	for _, n := range []int{1, 2, 7, 13} {
		per, err := calc.ScoreChangeAmount(gross, StrategyScoreChanges, n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		got := per.Mul(decimal.NewFromInt(int64(n)))
		diff := got.Sub(net.Mul(half)).Abs()
		if diff.GreaterThan(decimal.RequireFromString("0.0000001")) {
			t.Errorf("n=%d: plays reassemble to %s, want %s", n, got, net.Mul(half))
		}
	}
}

func TestScoreChangesZeroPlays(t *testing.T) {
	calc := NewCalculator(DefaultSchedule())
	amt, err := calc.ScoreChangeAmount(decimal.RequireFromString("500"), StrategyScoreChanges, 0)
	if err != nil {
		t.Fatalf("zero plays must not error: %v", err)
	}
	if !amt.IsZero() {
		t.Errorf("zero plays should pay zero, got %s", amt)
	}
}

func TestZeroGrossPaysZero(t *testing.T) {
	calc := NewCalculator(DefaultSchedule())
	for q := 1; q <= 4; q++ {
		amt, err := calc.QuarterAmount(decimal.Zero, StrategyQuartersOnly, q)
		if err != nil {
			t.Fatalf("quarter %d: %v", q, err)
		}
		if !amt.IsZero() {
			t.Errorf("quarter %d with zero gross should pay zero, got %s", q, amt)
		}
	}
}

func TestUnknownStrategyDeclines(t *testing.T) {
	calc := NewCalculator(DefaultSchedule())
	gross := decimal.RequireFromString("100")

	if _, err := calc.QuarterAmount(gross, StrategyUnknown, 1); !errors.Is(err, ErrUnsupportedStrategy) {
		t.Errorf("QuarterAmount error = %v, want ErrUnsupportedStrategy", err)
	}
	if _, err := calc.ScoreChangeAmount(gross, StrategyUnknown, 3); !errors.Is(err, ErrUnsupportedStrategy) {
		t.Errorf("ScoreChangeAmount error = %v, want ErrUnsupportedStrategy", err)
	}
}

func TestParsePayoutStrategy(t *testing.T) {
	cases := []struct {
		id   string
		want PayoutStrategy
	}{
		{"0", StrategyQuartersOnly},
		{"quarters_only", StrategyQuartersOnly},
		{"1", StrategyScoreChanges},
		{"score_changes", StrategyScoreChanges},
		{"ScoreChanges", StrategyScoreChanges},
		{"", StrategyUnknown},
		{"7", StrategyUnknown},
		{"jackpot", StrategyUnknown},
	}
	for _, tc := range cases {
		if got := ParsePayoutStrategy(tc.id); got != tc.want {
			t.Errorf("ParsePayoutStrategy(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestEventAmountDispatch(t *testing.T) {
	calc := NewCalculator(DefaultSchedule())
	gross := decimal.RequireFromString("1000")

	quarterEv := SettlementEvent{Kind: EventQuarter, Quarter: 4, PlayIndex: -1}
	amt, err := calc.EventAmount(gross, StrategyQuartersOnly, quarterEv, 0)
	if err != nil {
		t.Fatalf("quarter event: %v", err)
	}
	want, _ := calc.QuarterAmount(gross, StrategyQuartersOnly, 4)
	if !amt.Equal(want) {
		t.Errorf("quarter event amount = %s, want %s", amt, want)
	}

	playEv := SettlementEvent{Kind: EventScoreChange, Quarter: 2, PlayIndex: 3}
	amt, err = calc.EventAmount(gross, StrategyScoreChanges, playEv, 10)
	if err != nil {
		t.Fatalf("score change event: %v", err)
	}
	want, _ = calc.ScoreChangeAmount(gross, StrategyScoreChanges, 10)
	if !amt.Equal(want) {
		t.Errorf("score change amount = %s, want %s", amt, want)
	}
}
