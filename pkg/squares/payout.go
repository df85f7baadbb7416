package squares

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedStrategy is returned when a payout is requested for a
// contest whose strategy did not resolve. The calculator declines to
// compute rather than guessing a split.
var ErrUnsupportedStrategy = errors.New("squares: unsupported payout strategy")

// TreasuryFeeRate is the fixed protocol fee deducted from gross rewards
// before any split is computed.
var TreasuryFeeRate = decimal.NewFromFloat(0.02)

// PayoutSchedule is the single owner of the quarter split percentages.
// Every consumer (settlement computation, display) reads this value object;
// no other module may hold its own copy of the constants.
type PayoutSchedule struct {
	Q1    decimal.Decimal
	Q2    decimal.Decimal
	Q3    decimal.Decimal
	Final decimal.Decimal
}

// DefaultSchedule returns the canonical net-based split: 15/20/15/50.
func DefaultSchedule() PayoutSchedule {
	return PayoutSchedule{
		Q1:    decimal.NewFromFloat(0.15),
		Q2:    decimal.NewFromFloat(0.20),
		Q3:    decimal.NewFromFloat(0.15),
		Final: decimal.NewFromFloat(0.50),
	}
}

// Fraction returns the schedule fraction for a quarter (1-4).
func (s PayoutSchedule) Fraction(quarter int) decimal.Decimal {
	switch quarter {
	case 1:
		return s.Q1
	case 2:
		return s.Q2
	case 3:
		return s.Q3
	case 4:
		return s.Final
	default:
		return decimal.Zero
	}
}

// TreasuryFee returns the protocol fee owed on a gross reward pool.
func TreasuryFee(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(TreasuryFeeRate)
}

// NetRewards returns the pool available for payout after the treasury fee.
func NetRewards(gross decimal.Decimal) decimal.Decimal {
	return gross.Sub(TreasuryFee(gross))
}

// Calculator computes per-event payout amounts for a contest.
type Calculator struct {
	schedule PayoutSchedule
}

// NewCalculator creates a calculator with the given schedule; a zero-value
// schedule falls back to the canonical default.
func NewCalculator(schedule PayoutSchedule) *Calculator {
	if schedule.Final.IsZero() {
		schedule = DefaultSchedule()
	}
	return &Calculator{schedule: schedule}
}

// Schedule exposes the split so display consumers read the same constants.
func (c *Calculator) Schedule() PayoutSchedule {
	return c.schedule
}

var half = decimal.NewFromFloat(0.5)

// QuarterAmount returns the amount paid for a quarter boundary (1-4) under
// the given strategy. Under StrategyScoreChanges, quarter payouts come from
// the half of the pool not reserved for scoring plays.
func (c *Calculator) QuarterAmount(gross decimal.Decimal, strategy PayoutStrategy, quarter int) (decimal.Decimal, error) {
	if quarter < 1 || quarter > 4 {
		return decimal.Zero, nil
	}
	net := NetRewards(gross)
	switch strategy {
	case StrategyQuartersOnly:
		return net.Mul(c.schedule.Fraction(quarter)), nil
	case StrategyScoreChanges:
		return net.Mul(half).Mul(c.schedule.Fraction(quarter)), nil
	default:
		return decimal.Zero, ErrUnsupportedStrategy
	}
}

// ScoreChangeAmount returns the amount paid per scoring play under
// StrategyScoreChanges: half the net pool divided evenly across all plays.
// The play count is only known once the game is final; zero plays pays
// zero rather than dividing by zero.
func (c *Calculator) ScoreChangeAmount(gross decimal.Decimal, strategy PayoutStrategy, totalPlays int) (decimal.Decimal, error) {
	switch strategy {
	case StrategyScoreChanges:
		if totalPlays <= 0 {
			return decimal.Zero, nil
		}
		return NetRewards(gross).Mul(half).Div(decimal.NewFromInt(int64(totalPlays))), nil
	case StrategyQuartersOnly:
		return decimal.Zero, nil
	default:
		return decimal.Zero, ErrUnsupportedStrategy
	}
}

// EventAmount dispatches to the quarter or score-change computation for a
// settlement event. totalPlays is the final count of scoring plays and is
// ignored for quarter events.
func (c *Calculator) EventAmount(gross decimal.Decimal, strategy PayoutStrategy, ev SettlementEvent, totalPlays int) (decimal.Decimal, error) {
	if ev.Kind == EventScoreChange {
		return c.ScoreChangeAmount(gross, strategy, totalPlays)
	}
	return c.QuarterAmount(gross, strategy, ev.Quarter)
}
