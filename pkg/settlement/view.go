package settlement

import (
	"context"

	"github.com/mykcryptodev/football-onchain/pkg/squares"
)

// PageSize is the fixed page size of the winning-box view.
const PageSize = 10

// Pagination describes one page of a larger result set. Page is 1-based.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// WinnersPage is the settlement read boundary consumed by the UI.
type WinnersPage struct {
	WinningBoxes []squares.WinningBoxEntry `json:"winningBoxes"`
	Pagination   Pagination                `json:"pagination"`
}

// WinnersPage computes the contest's winners and returns the requested
// page. Pages past the end come back empty, not as an error.
func (o *Orchestrator) WinnersPage(ctx context.Context, contestID int64, page int) (*WinnersPage, error) {
	winners, err := o.ComputeWinners(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return paginate(winners, page), nil
}

func paginate(winners []squares.WinningBoxEntry, page int) *WinnersPage {
	if page < 1 {
		page = 1
	}

	total := len(winners)
	start := (page - 1) * PageSize
	if start > total {
		start = total
	}
	end := start + PageSize
	if end > total {
		end = total
	}

	boxes := winners[start:end]
	if boxes == nil {
		boxes = []squares.WinningBoxEntry{}
	}
	return &WinnersPage{
		WinningBoxes: boxes,
		Pagination:   Pagination{Page: page, PageSize: PageSize, Total: total},
	}
}
