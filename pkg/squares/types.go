// Package squares contains the domain model for 10x10 squares contests:
// grid/token mapping, winning-cell attribution and payout math.
package squares

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// GridSize is the number of rows (and columns) on a contest grid.
	GridSize = 10

	// BoxesPerContest is the number of boxes on a contest grid.
	BoxesPerContest = GridSize * GridSize
)

// PayoutStrategy selects how a contest's reward pool is split across
// settlement events.
type PayoutStrategy int

const (
	StrategyUnknown PayoutStrategy = iota
	StrategyQuartersOnly
	StrategyScoreChanges
)

func (s PayoutStrategy) String() string {
	switch s {
	case StrategyQuartersOnly:
		return "quarters_only"
	case StrategyScoreChanges:
		return "score_changes"
	default:
		return "unknown"
	}
}

// ParsePayoutStrategy resolves the external strategy identifier stored on
// chain. Unrecognized values resolve to StrategyUnknown; callers must treat
// that as "decline to compute", not as a default split.
func ParsePayoutStrategy(id string) PayoutStrategy {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "0", "quarters", "quarters_only", "quartersonly":
		return StrategyQuartersOnly
	case "1", "score_changes", "scorechanges":
		return StrategyScoreChanges
	default:
		return StrategyUnknown
	}
}

// RewardsPaid tracks which settlement windows have already been paid out.
// Each flag is a one-way false-to-true transition.
type RewardsPaid struct {
	Q1    bool `json:"q1"`
	Q2    bool `json:"q2"`
	Q3    bool `json:"q3"`
	Final bool `json:"final"`
}

// Settled reports whether every settlement window has been paid.
func (r RewardsPaid) Settled() bool {
	return r.Q1 && r.Q2 && r.Q3 && r.Final
}

// Contest is one 10x10 squares game tied to an external sporting event.
type Contest struct {
	ID      int64  `json:"id"`
	ChainID int64  `json:"chainId"`
	GameID  string `json:"gameId"`

	// Rows and Cols hold the digit assignment per row/column index. Each is
	// a permutation of 0-9 once RandomValuesSet is true; before that the
	// values are undefined and must not be consulted.
	Rows [GridSize]int `json:"rows"`
	Cols [GridSize]int `json:"cols"`

	BoxCost  decimal.Decimal `json:"boxCost"`
	Currency string          `json:"currency"`

	BoxesClaimed    int  `json:"boxesClaimed"`
	RandomValuesSet bool `json:"randomValuesSet"`

	// TotalRewards is the gross pool, before the treasury fee.
	TotalRewards decimal.Decimal `json:"totalRewards"`

	PayoutStrategy PayoutStrategy `json:"payoutStrategy"`
	RewardsPaid    RewardsPaid    `json:"rewardsPaid"`
}

// Active reports whether the contest still needs polling: boxes remain
// claimable, randomness is pending, or some settlement window is unpaid.
func (c *Contest) Active() bool {
	if c == nil {
		return false
	}
	if c.BoxesClaimed < BoxesPerContest {
		return true
	}
	if !c.RandomValuesSet {
		return true
	}
	return !c.RewardsPaid.Settled()
}

// QuarterDigits is the last-digit pair recorded at one quarter boundary.
// Known marks a pair actually derived from the feed; a completed quarter
// whose pair never arrived stays unresolvable rather than defaulting to 0/0.
type QuarterDigits struct {
	Home  int  `json:"home"`
	Away  int  `json:"away"`
	Known bool `json:"known"`
}

// ScoringPlay is one cumulative score snapshot. The list on GameScore is
// append-only and ordered by occurrence.
type ScoringPlay struct {
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
	Quarter   int    `json:"quarter"`
	Text      string `json:"text,omitempty"`
}

// HomeDigit returns the last digit of the cumulative home score.
func (p ScoringPlay) HomeDigit() int { return LastDigit(p.HomeScore) }

// AwayDigit returns the last digit of the cumulative away score.
func (p ScoringPlay) AwayDigit() int { return LastDigit(p.AwayScore) }

// GameScore is a snapshot of one sporting event's running score. Digit
// fields always store score mod 10; QComplete never decreases within a
// contest's lifetime.
type GameScore struct {
	GameID   string `json:"gameId"`
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`

	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
	Status    string `json:"status"`

	// QComplete is the number of completed quarters, 0-4. 4 means final.
	QComplete int `json:"qComplete"`

	// Quarters[q-1] holds the digit pair at the end of quarter q. Only
	// entries with q <= QComplete are meaningful.
	Quarters [4]QuarterDigits `json:"quarters"`

	ScoringPlays []ScoringPlay `json:"scoringPlays,omitempty"`

	// RequestInProgress is true while an upstream refresh is pending; the
	// client poller tightens its interval while set.
	RequestInProgress bool `json:"requestInProgress"`
}

// Final reports whether the game has ended.
func (g *GameScore) Final() bool {
	return g != nil && g.QComplete >= 4
}

// BoxOwner is a point-in-time read of one box's ownership.
type BoxOwner struct {
	TokenID int64  `json:"tokenId"`
	Owner   string `json:"owner"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
}

// Unowned reports whether the box has no owner (zero address or empty).
func (b BoxOwner) Unowned() bool {
	if b.Owner == "" {
		return true
	}
	trimmed := strings.TrimPrefix(strings.ToLower(b.Owner), "0x")
	return strings.Trim(trimmed, "0") == ""
}

// EventKind distinguishes the two classes of settlement event.
type EventKind int

const (
	EventQuarter EventKind = iota
	EventScoreChange
)

// SettlementEvent identifies one point at which winners are determined:
// a quarter boundary, or (under StrategyScoreChanges) one scoring play.
type SettlementEvent struct {
	Kind EventKind `json:"kind"`

	// Quarter is 1-4 for quarter events, and the quarter a scoring play
	// occurred in for score-change events.
	Quarter int `json:"quarter"`

	// PlayIndex is the zero-based position in GameScore.ScoringPlays for
	// score-change events; -1 for quarter events.
	PlayIndex int `json:"playIndex"`
}

// Label renders the event for display: "Q1".."Q3", "Final", or
// "Score change #n".
func (e SettlementEvent) Label() string {
	if e.Kind == EventScoreChange {
		return "Score change #" + strconv.Itoa(e.PlayIndex+1)
	}
	if e.Quarter >= 4 {
		return "Final"
	}
	return "Q" + strconv.Itoa(e.Quarter)
}

// Recency orders events by how recently they settled: quarter events sort
// by quarter, score changes interleave by play order within their quarter.
// Higher is more recent.
func (e SettlementEvent) Recency() int {
	if e.Kind == EventQuarter {
		// Quarter boundaries settle after every play in that quarter.
		return e.Quarter*1000 + 999
	}
	return e.Quarter*1000 + e.PlayIndex
}

// WinningBoxEntry is a derived view row: one token's winnings for one
// settlement event. Entries for the same token accumulate at the boundary.
type WinningBoxEntry struct {
	TokenID int64           `json:"tokenId"`
	Owner   string          `json:"owner"`
	Row     int             `json:"row"`
	Col     int             `json:"col"`
	Event   SettlementEvent `json:"event"`
	Amount  decimal.Decimal `json:"amount"`

	// Pending is set when the contest's payout strategy is unresolved and
	// no amount can be computed.
	Pending bool `json:"pending,omitempty"`
}
