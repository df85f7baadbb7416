package cache

import (
	"time"

	"github.com/mykcryptodev/football-onchain/pkg/squares"
)

// Layer-2 poll cadences. The score interval tightens while an upstream
// refresh is marked in progress.
const (
	ContestPollEvery   = 15 * time.Second
	GameScorePollEvery = 12 * time.Second
	GameScorePollFast  = 5 * time.Second
)

// ContestPollInterval is the adaptive interval for a contest key: poll
// every 15s while the contest is active, stop once it settles. Pure; the
// poll scheduler consumes it.
func ContestPollInterval(c *squares.Contest, ok bool) (time.Duration, bool) {
	if !ok || c == nil {
		return ContestPollEvery, true
	}
	if !c.Active() {
		return 0, false
	}
	return ContestPollEvery, true
}

// ScorePollInterval is the adaptive interval for a game-score key: 12s
// normally, 5s while an upstream fetch is pending, stopped once the game
// is final.
func ScorePollInterval(g *squares.GameScore, ok bool) (time.Duration, bool) {
	if !ok || g == nil {
		return GameScorePollEvery, true
	}
	if g.Final() {
		return 0, false
	}
	if g.RequestInProgress {
		return GameScorePollFast, true
	}
	return GameScorePollEvery, true
}
