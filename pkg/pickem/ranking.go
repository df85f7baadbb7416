// Package pickem ranks pick'em entries against live game results.
package pickem

import "sort"

// Pick side values, aligned with how picks are stored on chain.
const (
	PickAway = 0
	PickHome = 1
)

// GameResult is the live state of one game an entry picked.
type GameResult struct {
	GameID    string `json:"gameId"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
	Status    string `json:"status"`
}

// Started reports whether the game has begun: any score on the board, or a
// status other than scheduled.
func (g GameResult) Started() bool {
	if g.HomeScore != 0 || g.AwayScore != 0 {
		return true
	}
	return g.Status != "" && g.Status != "scheduled"
}

// Winner returns the current winning side and whether a strict winner
// exists. Ties and games that have not started have no winner.
func (g GameResult) Winner() (int, bool) {
	if !g.Started() || g.HomeScore == g.AwayScore {
		return 0, false
	}
	if g.HomeScore > g.AwayScore {
		return PickHome, true
	}
	return PickAway, true
}

// Entry is one participant's pick'em slate.
type Entry struct {
	TokenID int64 `json:"tokenId"`

	// Picks holds one side per game, aligned to the contest's game order.
	Picks []int `json:"picks"`

	// TiebreakerPoints is the participant's total-points guess, used only
	// to break ties in ranking.
	TiebreakerPoints int `json:"tiebreakerPoints"`

	// Derived by Rank.
	CorrectPicks int `json:"correctPicks"`
	Rank         int `json:"rank"`
}

// tiebreakReference is the fixed point tiebreaker guesses are measured
// against. Historical behavior; preserved as-is.
const tiebreakReference = 50

func tiebreakDistance(points int) int {
	d := points - tiebreakReference
	if d < 0 {
		return -d
	}
	return d
}

// CorrectPicks counts an entry's picks that match the strict winner of a
// started game. Games without a winner yet contribute nothing.
func CorrectPicks(games []GameResult, e Entry) int {
	correct := 0
	for i, g := range games {
		if i >= len(e.Picks) {
			break
		}
		winner, ok := g.Winner()
		if !ok {
			continue
		}
		if e.Picks[i] == winner {
			correct++
		}
	}
	return correct
}

// Rank computes correctness counts and the total order for a slate of
// entries: descending correct picks, then ascending distance of the
// tiebreaker guess from the fixed reference. Remaining ties keep their
// stable sort order. Returned entries carry 1-based ranks.
func Rank(games []GameResult, entries []Entry) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)

	for i := range ranked {
		ranked[i].CorrectPicks = CorrectPicks(games, ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CorrectPicks != ranked[j].CorrectPicks {
			return ranked[i].CorrectPicks > ranked[j].CorrectPicks
		}
		return tiebreakDistance(ranked[i].TiebreakerPoints) < tiebreakDistance(ranked[j].TiebreakerPoints)
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
