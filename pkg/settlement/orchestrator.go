// Package settlement composes the contest, score and cache layers into the
// winning-box and pick'em views served at the boundary. All operations are
// idempotent reads; invalidation is fire-and-forget and converges on the
// next poll cycle.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mykcryptodev/football-onchain/pkg/cache"
	"github.com/mykcryptodev/football-onchain/pkg/pickem"
	"github.com/mykcryptodev/football-onchain/pkg/settlement/metrics"
	"github.com/mykcryptodev/football-onchain/pkg/sportsfeed"
	"github.com/mykcryptodev/football-onchain/pkg/squares"
)

// discoverEvery is how often the run loop re-scans the contract for new
// contests to poll.
const discoverEvery = time.Minute

// ContestSource reads contest and box-ownership state from the chain.
// contracts.Reader satisfies it.
type ContestSource interface {
	ChainID() int64
	ContestCount(ctx context.Context) (int64, error)
	Contest(ctx context.Context, contestID int64) (*squares.Contest, error)
	BoxOwner(ctx context.Context, contestID int64, boxPosition int) (squares.BoxOwner, error)
}

// ScoreSource reads game-score snapshots from the sports feed.
// sportsfeed.Client satisfies it.
type ScoreSource interface {
	GameScore(ctx context.Context, gameID string) (*squares.GameScore, error)
	Scoreboard(ctx context.Context) ([]*squares.GameScore, error)
}

// Orchestrator owns the per-contest and per-game reactive cache entries and
// derives settlement views from them.
type Orchestrator struct {
	contests ContestSource
	scores   ScoreSource
	layer1   *cache.Layered
	calc     *squares.Calculator
	log      zerolog.Logger
	metrics  *metrics.EngineMetrics

	mu            sync.Mutex
	contestEntry  map[int64]*cache.Reactive[*squares.Contest]
	scoreEntry    map[string]*cache.Reactive[*squares.GameScore]
	polling       map[string]bool
	onScoreUpdate []func(*squares.GameScore)
	onSettlement  []func(contestID int64, winners []squares.WinningBoxEntry)
}

// New creates an orchestrator over the given sources. A nil layer1 degrades
// to a no-op shared cache.
func New(contests ContestSource, scores ScoreSource, layer1 *cache.Layered, log zerolog.Logger, m *metrics.EngineMetrics) *Orchestrator {
	if m == nil {
		m = metrics.Default()
	}
	if layer1 == nil {
		layer1 = cache.NewLayered(cache.NopStore{}, log, m)
	}
	return &Orchestrator{
		contests:     contests,
		scores:       scores,
		layer1:       layer1,
		calc:         squares.NewCalculator(squares.DefaultSchedule()),
		log:          log.With().Str("component", "settlement").Logger(),
		metrics:      m,
		contestEntry: make(map[int64]*cache.Reactive[*squares.Contest]),
		scoreEntry:   make(map[string]*cache.Reactive[*squares.GameScore]),
		polling:      make(map[string]bool),
	}
}

// OnScoreUpdate registers a callback invoked whenever a game-score entry
// refreshes. Callbacks must not block.
func (o *Orchestrator) OnScoreUpdate(fn func(*squares.GameScore)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onScoreUpdate = append(o.onScoreUpdate, fn)
}

// OnSettlement registers a callback invoked after each winner computation.
func (o *Orchestrator) OnSettlement(fn func(contestID int64, winners []squares.WinningBoxEntry)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSettlement = append(o.onSettlement, fn)
}

// Contest returns the contest snapshot through both cache tiers.
func (o *Orchestrator) Contest(ctx context.Context, contestID int64) (*squares.Contest, error) {
	return o.contestReactive(contestID).Get(ctx)
}

// GameScore returns the score snapshot for a game through the reactive tier.
// Scores are never stored in the shared tier; they change too often for a
// TTL to be meaningful.
func (o *Orchestrator) GameScore(ctx context.Context, gameID string) (*squares.GameScore, error) {
	return o.scoreReactive(gameID).Get(ctx)
}

// GameDetails is the slow-moving identity of one game: the matchup, not the
// live score state.
type GameDetails struct {
	GameID   string `json:"gameId"`
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
}

// GameDetails reads a game's identity through the shared tier. Team names
// never change once a game is scheduled, so the lookup takes the long
// game-details TTL instead of riding the score poll.
func (o *Orchestrator) GameDetails(ctx context.Context, gameID string) (*GameDetails, error) {
	raw, err := o.layer1.GetOrLoad(ctx, cache.GameKey(gameID), cache.TTLGameDetails, func(ctx context.Context) ([]byte, error) {
		gs, err := o.GameScore(ctx, gameID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(GameDetails{GameID: gs.GameID, HomeTeam: gs.HomeTeam, AwayTeam: gs.AwayTeam})
	})
	if err != nil {
		return nil, fmt.Errorf("load details for game %s: %w", gameID, err)
	}
	var d GameDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode cached game details: %w", err)
	}
	return &d, nil
}

// Contests lists every contest on the contract, reading each through the
// cache tiers.
func (o *Orchestrator) Contests(ctx context.Context) ([]*squares.Contest, error) {
	count, err := o.contests.ContestCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("contest count: %w", err)
	}

	list := make([]*squares.Contest, 0, count)
	for id := int64(0); id < count; id++ {
		c, err := o.Contest(ctx, id)
		if err != nil {
			o.log.Warn().Err(err).Int64("contest_id", id).Msg("skipping unreadable contest")
			continue
		}
		list = append(list, c)
	}
	return list, nil
}

// Refresh forces the next read of a contest to recompute from source:
// the shared-tier key is deleted first, then the reactive entries are
// marked stale. Returns a correlation id for tracing the refresh.
func (o *Orchestrator) Refresh(ctx context.Context, contestID int64) string {
	id := uuid.NewString()
	o.metrics.RecordRefresh()

	key := cache.ContestKey(o.contests.ChainID(), contestID)
	o.layer1.Invalidate(ctx, key)

	o.mu.Lock()
	entry := o.contestEntry[contestID]
	o.mu.Unlock()

	if entry != nil {
		if c, ok := entry.Peek(); ok && c != nil && c.GameID != "" {
			o.mu.Lock()
			score := o.scoreEntry[c.GameID]
			o.mu.Unlock()
			if score != nil {
				score.MarkStale()
			}
		}
		entry.MarkStale()
	}

	o.log.Info().Str("refresh_id", id).Int64("contest_id", contestID).Msg("contest refresh requested")
	return id
}

// ComputeWinners resolves every winning box for the contest's settlement
// events so far and accumulates per-token totals. The result is sorted most
// recent settlement window first.
func (o *Orchestrator) ComputeWinners(ctx context.Context, contestID int64) ([]squares.WinningBoxEntry, error) {
	started := time.Now()

	contest, err := o.Contest(ctx, contestID)
	if err != nil {
		o.metrics.RecordSettlement("error", time.Since(started).Seconds(), 0)
		return nil, fmt.Errorf("load contest %d: %w", contestID, err)
	}

	score, err := o.GameScore(ctx, contest.GameID)
	if err != nil {
		o.metrics.RecordSettlement("error", time.Since(started).Seconds(), 0)
		return nil, fmt.Errorf("load score for game %s: %w", contest.GameID, err)
	}

	winners := o.accumulate(ctx, contest, score)

	sort.SliceStable(winners, func(i, j int) bool {
		ri, rj := winners[i].Event.Recency(), winners[j].Event.Recency()
		if ri != rj {
			return ri > rj
		}
		return winners[i].TokenID < winners[j].TokenID
	})

	o.metrics.RecordSettlement("ok", time.Since(started).Seconds(), len(winners))
	for _, w := range winners {
		if !w.Pending {
			o.metrics.RecordPayout(w.Amount)
		}
	}
	o.notifySettlement(contestID, winners)
	return winners, nil
}

// accumulate walks every settlement event visible in the score snapshot and
// folds repeated wins for the same token into one entry.
func (o *Orchestrator) accumulate(ctx context.Context, contest *squares.Contest, score *squares.GameScore) []squares.WinningBoxEntry {
	byToken := make(map[int64]*squares.WinningBoxEntry)
	var order []int64

	record := func(row, col int, ev squares.SettlementEvent) {
		pos := row*squares.GridSize + col
		tokenID := squares.ToTokenID(contest.ID, pos)

		ref, err := squares.ToGrid(tokenID, contest.ID)
		if err != nil {
			// Bad coordinates are a data error scoped to one entry.
			var oor *squares.OutOfRangeError
			if errors.As(err, &oor) {
				o.log.Warn().Err(err).Int64("token_id", tokenID).Msg("skipping out-of-range winner")
				o.metrics.RecordSkippedEntry("out_of_range")
				return
			}
			o.log.Warn().Err(err).Int64("token_id", tokenID).Msg("skipping unmappable winner")
			o.metrics.RecordSkippedEntry("unmappable")
			return
		}

		amount, err := o.calc.EventAmount(contest.TotalRewards, contest.PayoutStrategy, ev, len(score.ScoringPlays))
		pending := false
		if err != nil {
			if !errors.Is(err, squares.ErrUnsupportedStrategy) {
				o.log.Warn().Err(err).Int64("token_id", tokenID).Msg("skipping uncomputable payout")
				o.metrics.RecordSkippedEntry("payout")
				return
			}
			// Unresolved strategy: surface the win as pending, no amount.
			pending = true
		}

		entry, seen := byToken[tokenID]
		if !seen {
			owner := o.lookupOwner(ctx, contest.ID, ref)
			// The first event always wins the slot; a zero-value Event is
			// not a real settlement point and must never outrank one.
			entry = &squares.WinningBoxEntry{
				TokenID: tokenID,
				Owner:   owner,
				Row:     ref.Row,
				Col:     ref.Col,
				Event:   ev,
			}
			byToken[tokenID] = entry
			order = append(order, tokenID)
		} else if ev.Recency() >= entry.Event.Recency() {
			entry.Event = ev
		}
		entry.Amount = entry.Amount.Add(amount)
		entry.Pending = entry.Pending || pending
	}

	for q := 1; q <= score.QComplete && q <= 4; q++ {
		if row, col, ok := squares.WinningCellForQuarter(contest, score, q); ok {
			record(row, col, squares.SettlementEvent{Kind: squares.EventQuarter, Quarter: q, PlayIndex: -1})
		}
	}

	if contest.PayoutStrategy == squares.StrategyScoreChanges {
		for i, play := range score.ScoringPlays {
			if row, col, ok := squares.WinningCellForScoringPlay(contest, play); ok {
				record(row, col, squares.SettlementEvent{Kind: squares.EventScoreChange, Quarter: play.Quarter, PlayIndex: i})
			}
		}
	}

	winners := make([]squares.WinningBoxEntry, 0, len(order))
	for _, tokenID := range order {
		winners = append(winners, *byToken[tokenID])
	}
	return winners
}

// lookupOwner reads the box owner, degrading to unowned when the chain read
// fails. Ownership is a point-in-time read; a miss here only affects the
// displayed owner, never the settlement math.
func (o *Orchestrator) lookupOwner(ctx context.Context, contestID int64, ref squares.GridRef) string {
	box, err := o.contests.BoxOwner(ctx, contestID, ref.BoxPosition)
	if err != nil {
		o.log.Warn().Err(err).Int64("contest_id", contestID).Int("box", ref.BoxPosition).Msg("owner lookup failed")
		return ""
	}
	return box.Owner
}

// Standings ranks pick'em entries against the live scoreboard. gameIDs
// fixes the order picks are aligned to; games missing from the scoreboard
// count as not started.
func (o *Orchestrator) Standings(ctx context.Context, gameIDs []string, entries []pickem.Entry) ([]pickem.Entry, error) {
	board, err := o.scores.Scoreboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scoreboard: %w", err)
	}

	byID := make(map[string]*squares.GameScore, len(board))
	for _, g := range board {
		byID[g.GameID] = g
	}

	games := make([]pickem.GameResult, len(gameIDs))
	for i, id := range gameIDs {
		games[i] = pickem.GameResult{GameID: id}
		if g, ok := byID[id]; ok {
			games[i].HomeScore = g.HomeScore
			games[i].AwayScore = g.AwayScore
			games[i].Status = g.Status
		}
	}

	return pickem.Rank(games, entries), nil
}

// contestReactive returns the reactive entry for a contest, creating it on
// first use. The entry reads through the shared tier.
func (o *Orchestrator) contestReactive(contestID int64) *cache.Reactive[*squares.Contest] {
	o.mu.Lock()
	defer o.mu.Unlock()

	if entry, ok := o.contestEntry[contestID]; ok {
		return entry
	}

	key := cache.ContestKey(o.contests.ChainID(), contestID)
	fetch := func(ctx context.Context) (*squares.Contest, error) {
		raw, err := o.layer1.GetOrLoad(ctx, key, cache.TTLContest, func(ctx context.Context) ([]byte, error) {
			started := time.Now()
			c, err := o.contests.Contest(ctx, contestID)
			if err != nil {
				o.metrics.RecordUpstream("chain", "error", time.Since(started).Seconds())
				return nil, err
			}
			o.metrics.RecordUpstream("chain", "ok", time.Since(started).Seconds())
			return json.Marshal(c)
		})
		if err != nil {
			return nil, err
		}
		var c squares.Contest
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode cached contest: %w", err)
		}
		return &c, nil
	}

	entry := cache.NewReactive[*squares.Contest](cache.ContestPollEvery, fetch, cache.ContestPollInterval)
	o.contestEntry[contestID] = entry
	return entry
}

// scoreReactive returns the reactive entry for a game, creating it on first
// use. Timeouts serve the last good snapshot marked request-in-progress so
// the poller tightens its interval instead of surfacing an error.
func (o *Orchestrator) scoreReactive(gameID string) *cache.Reactive[*squares.GameScore] {
	o.mu.Lock()
	defer o.mu.Unlock()

	if entry, ok := o.scoreEntry[gameID]; ok {
		return entry
	}

	var entry *cache.Reactive[*squares.GameScore]
	fetch := func(ctx context.Context) (*squares.GameScore, error) {
		started := time.Now()
		gs, err := o.scores.GameScore(ctx, gameID)
		if err != nil {
			if errors.Is(err, sportsfeed.ErrUpstreamTimeout) {
				o.metrics.RecordUpstreamTimeout("sportsfeed")
				if last, ok := entry.Peek(); ok && last != nil {
					held := *last
					held.RequestInProgress = true
					return &held, nil
				}
			}
			o.metrics.RecordUpstream("sportsfeed", "error", time.Since(started).Seconds())
			return nil, err
		}
		o.metrics.RecordUpstream("sportsfeed", "ok", time.Since(started).Seconds())

		// QComplete never decreases; a feed hiccup must not roll back
		// already-settled quarters.
		if last, ok := entry.Peek(); ok && last != nil && gs.QComplete < last.QComplete {
			gs.QComplete = last.QComplete
			gs.Quarters = last.Quarters
		}
		return gs, nil
	}

	entry = cache.NewReactive[*squares.GameScore](cache.GameScorePollEvery, fetch, cache.ScorePollInterval)
	entry.OnUpdate(func(gs *squares.GameScore) {
		o.metrics.RecordPollRefresh("gameScore")
		o.notifyScore(gs)
	})
	o.scoreEntry[gameID] = entry
	return entry
}

func (o *Orchestrator) notifyScore(gs *squares.GameScore) {
	o.mu.Lock()
	callbacks := make([]func(*squares.GameScore), len(o.onScoreUpdate))
	copy(callbacks, o.onScoreUpdate)
	o.mu.Unlock()

	for _, fn := range callbacks {
		fn(gs)
	}
}

func (o *Orchestrator) notifySettlement(contestID int64, winners []squares.WinningBoxEntry) {
	o.mu.Lock()
	callbacks := make([]func(int64, []squares.WinningBoxEntry), len(o.onSettlement))
	copy(callbacks, o.onSettlement)
	o.mu.Unlock()

	for _, fn := range callbacks {
		fn(contestID, winners)
	}
}

// Run discovers contests and keeps pollers alive for active ones until the
// context is canceled. Safe to run in a single goroutine alongside request
// traffic.
func (o *Orchestrator) Run(ctx context.Context) {
	o.log.Info().Msg("settlement run loop started")
	defer o.log.Info().Msg("settlement run loop stopped")

	ticker := time.NewTicker(discoverEvery)
	defer ticker.Stop()

	o.discover(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.discover(ctx)
		}
	}
}

func (o *Orchestrator) discover(ctx context.Context) {
	count, err := o.contests.ContestCount(ctx)
	if err != nil {
		o.log.Warn().Err(err).Msg("contest discovery failed")
		return
	}

	for id := int64(0); id < count; id++ {
		contest, err := o.Contest(ctx, id)
		if err != nil {
			o.log.Warn().Err(err).Int64("contest_id", id).Msg("contest read failed during discovery")
			continue
		}
		o.ensurePolling(ctx, cache.ContestKey(o.contests.ChainID(), id), func(ctx context.Context) {
			o.contestReactive(id).Poll(ctx)
		})
		if contest.Active() && contest.GameID != "" {
			gameID := contest.GameID
			o.ensurePolling(ctx, "score:"+gameID, func(ctx context.Context) {
				o.scoreReactive(gameID).Poll(ctx)
			})
		}
	}
}

// ensurePolling starts one poll goroutine per key for the process lifetime.
// Poll returns on its own once the interval function signals done.
func (o *Orchestrator) ensurePolling(ctx context.Context, key string, poll func(context.Context)) {
	o.mu.Lock()
	if o.polling[key] {
		o.mu.Unlock()
		return
	}
	o.polling[key] = true
	o.mu.Unlock()

	resource := "gameScore"
	if strings.HasPrefix(key, "contest:") {
		resource = "contest"
	}

	o.metrics.PollStarted(resource)
	go func() {
		defer func() {
			o.metrics.PollStopped(resource)
			o.mu.Lock()
			delete(o.polling, key)
			o.mu.Unlock()
		}()
		poll(ctx)
	}()
}
