package sportsfeed

import (
	"strings"

	"github.com/mykcryptodev/football-onchain/pkg/squares"
)

// Game status values after normalization.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusFinal      = "final"
)

// normalizeEvent is the single boundary between the upstream payload and
// the engine's GameScore. Unknown shapes fail closed: missing fields are
// dropped, never guessed at downstream.
func normalizeEvent(gameID string, ev *rawEvent) *squares.GameScore {
	home, away := pickCompetitors(ev)

	status := normalizeStatus(ev.effectiveStatus())
	qComplete := completedQuarters(ev.effectiveStatus(), status)

	gs := &squares.GameScore{
		GameID:    gameID,
		Status:    status,
		QComplete: qComplete,
	}
	if gs.GameID == "" {
		gs.GameID = ev.ID.String()
	}

	if home != nil {
		gs.HomeTeam = teamName(home.Team)
		gs.HomeScore = home.Score.Int()
	}
	if away != nil {
		gs.AwayTeam = teamName(away.Team)
		gs.AwayScore = away.Score.Int()
	}

	fillQuarterDigits(gs, home, away)
	fillScoringPlays(gs, ev)
	return gs
}

func (ev *rawEvent) effectiveStatus() rawStatus {
	if len(ev.Competitions) > 0 && ev.Competitions[0].Status != nil {
		return *ev.Competitions[0].Status
	}
	return ev.Status
}

func normalizeStatus(s rawStatus) string {
	state := strings.ToLower(s.State)
	name := strings.ToLower(s.Name)
	switch {
	case s.Completed, state == "post", strings.Contains(name, "final"):
		return StatusFinal
	case state == "pre", state == "scheduled", name == "scheduled":
		return StatusScheduled
	case state == "":
		return StatusScheduled
	default:
		return StatusInProgress
	}
}

// completedQuarters maps the upstream period to the count of completed
// quarters. Only a final status yields 4: an overtime period with the game
// still in progress reports 3, since "four quarters complete" is the
// engine's game-over signal.
func completedQuarters(s rawStatus, status string) int {
	if status == StatusFinal {
		return 4
	}
	if s.Period > 1 {
		q := s.Period - 1
		if q > 3 {
			q = 3
		}
		return q
	}
	return 0
}

// pickCompetitors resolves the home and away sides across payload shapes:
// the explicit homeAway marker when present, otherwise the event's
// "AWY @ HOM" short name, otherwise positional convention (home first).
func pickCompetitors(ev *rawEvent) (home, away *rawCompetitor) {
	comps := ev.Competitors
	if len(ev.Competitions) > 0 && len(ev.Competitions[0].Competitors) > 0 {
		comps = ev.Competitions[0].Competitors
	}
	if len(comps) == 0 {
		return nil, nil
	}

	for i := range comps {
		switch strings.ToLower(comps[i].HomeAway) {
		case "home":
			home = &comps[i]
		case "away":
			away = &comps[i]
		}
	}
	if home != nil && away != nil {
		return home, away
	}

	if len(comps) >= 2 {
		if h, a, ok := matchByShortName(ev.ShortName, comps); ok {
			return h, a
		}
		return &comps[0], &comps[1]
	}
	return home, away
}

// matchByShortName resolves sides from a "AWY @ HOM" event short name.
func matchByShortName(shortName string, comps []rawCompetitor) (home, away *rawCompetitor, ok bool) {
	parts := strings.Split(shortName, "@")
	if len(parts) != 2 {
		return nil, nil, false
	}
	awayAbbr := NormalizeName(parts[0])
	homeAbbr := NormalizeName(parts[1])
	if awayAbbr == "" || homeAbbr == "" {
		return nil, nil, false
	}

	for i := range comps {
		abbr := NormalizeName(comps[i].Team.Abbreviation)
		switch abbr {
		case homeAbbr:
			home = &comps[i]
		case awayAbbr:
			away = &comps[i]
		}
	}
	if home != nil && away != nil {
		return home, away, true
	}
	return nil, nil, false
}

func teamName(t rawTeam) string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

// fillQuarterDigits derives the last-digit pair at each completed quarter
// boundary from cumulative linescore sums. Points on the board with no
// per-quarter breakdown cannot be placed at any boundary: summing empty
// linescores would stamp a fabricated 0/0 pair, so those boundaries stay
// unknown instead.
func fillQuarterDigits(gs *squares.GameScore, home, away *rawCompetitor) {
	homeLines := linescores(home)
	awayLines := linescores(away)

	breakdownMissing := len(homeLines) == 0 && len(awayLines) == 0 &&
		(gs.HomeScore != 0 || gs.AwayScore != 0)

	if !breakdownMissing {
		homeTotal, awayTotal := 0, 0
		for q := 1; q <= gs.QComplete && q <= 4; q++ {
			if q-1 < len(homeLines) {
				homeTotal += homeLines[q-1].points()
			}
			if q-1 < len(awayLines) {
				awayTotal += awayLines[q-1].points()
			}
			gs.Quarters[q-1] = squares.QuarterDigits{
				Home:  squares.LastDigit(homeTotal),
				Away:  squares.LastDigit(awayTotal),
				Known: true,
			}
		}
	}

	// A final score includes overtime; the final digit pair comes from the
	// full score, not the fourth linescore sum.
	if gs.QComplete >= 4 {
		gs.Quarters[3] = squares.QuarterDigits{
			Home:  squares.LastDigit(gs.HomeScore),
			Away:  squares.LastDigit(gs.AwayScore),
			Known: true,
		}
	}
}

func linescores(c *rawCompetitor) []rawLinescore {
	if c == nil {
		return nil
	}
	if len(c.Linescores) > 0 {
		return c.Linescores
	}
	return c.LineScores
}

func fillScoringPlays(gs *squares.GameScore, ev *rawEvent) {
	plays := ev.ScoringPlays
	if len(plays) == 0 {
		plays = ev.Plays
	}
	if len(plays) == 0 {
		return
	}

	gs.ScoringPlays = make([]squares.ScoringPlay, 0, len(plays))
	for _, p := range plays {
		gs.ScoringPlays = append(gs.ScoringPlays, squares.ScoringPlay{
			HomeScore: p.HomeScore.Int(),
			AwayScore: p.AwayScore.Int(),
			Quarter:   p.quarter(),
			Text:      p.Text,
		})
	}
}
