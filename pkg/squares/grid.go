package squares

import "fmt"

// GridRef locates one box inside a contest grid.
type GridRef struct {
	BoxPosition int `json:"boxPosition"`
	Row         int `json:"row"`
	Col         int `json:"col"`
}

// OutOfRangeError reports a token id that does not map into its contest's
// grid. This is a programmer or data error; callers log it and skip the
// offending entry rather than surfacing it to end users.
type OutOfRangeError struct {
	TokenID     int64
	ContestID   int64
	BoxPosition int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("token %d maps to box position %d outside contest %d grid",
		e.TokenID, e.BoxPosition, e.ContestID)
}

// ToTokenID computes the global token id for a box position within a
// contest. Inverse of ToGrid.
func ToTokenID(contestID int64, boxPosition int) int64 {
	return contestID*BoxesPerContest + int64(boxPosition)
}

// ToGrid resolves a global token id to its grid coordinates within the
// given contest. Fails with *OutOfRangeError when the token does not
// belong to the contest.
func ToGrid(tokenID, contestID int64) (GridRef, error) {
	pos := tokenID - contestID*BoxesPerContest
	if pos < 0 || pos >= BoxesPerContest {
		return GridRef{}, &OutOfRangeError{TokenID: tokenID, ContestID: contestID, BoxPosition: pos}
	}
	p := int(pos)
	return GridRef{
		BoxPosition: p,
		Row:         p / GridSize,
		Col:         p % GridSize,
	}, nil
}
