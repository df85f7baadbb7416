package squares

// WinningCellForQuarter determines the winning grid cell for a completed
// quarter. Returns ok=false when the quarter is not yet final, when its
// digit pair never arrived from the feed, or when the contest's row/column
// digits have not been assigned.
func WinningCellForQuarter(c *Contest, g *GameScore, quarter int) (row, col int, ok bool) {
	if c == nil || g == nil || !c.RandomValuesSet {
		return 0, 0, false
	}
	if quarter < 1 || quarter > 4 || quarter > g.QComplete {
		return 0, 0, false
	}
	d := g.Quarters[quarter-1]
	if !d.Known {
		return 0, 0, false
	}
	return matchCell(c, d.Home, d.Away)
}

// WinningCellForScoringPlay applies the same digit-match logic to a single
// scoring play's cumulative score snapshot.
func WinningCellForScoringPlay(c *Contest, play ScoringPlay) (row, col int, ok bool) {
	if c == nil || !c.RandomValuesSet {
		return 0, 0, false
	}
	return matchCell(c, play.HomeDigit(), play.AwayDigit())
}

// matchCell finds the row index whose digit equals homeDigit and the column
// index whose digit equals awayDigit. Rows and Cols are permutations of 0-9
// once randomness is set, so at most one pair matches; should duplicates
// ever appear, the first match in index order wins.
func matchCell(c *Contest, homeDigit, awayDigit int) (int, int, bool) {
	row, col := -1, -1
	for i := 0; i < GridSize; i++ {
		if row < 0 && c.Rows[i] == homeDigit {
			row = i
		}
		if col < 0 && c.Cols[i] == awayDigit {
			col = i
		}
	}
	if row < 0 || col < 0 {
		return 0, 0, false
	}
	return row, col, true
}
