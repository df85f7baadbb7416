package sportsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/mykcryptodev/football-onchain/pkg/squares"
)

const (
	// DefaultBaseURL is the sports-data API base URL.
	DefaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports/football/nfl"

	defaultRateLimit = 5.0 // requests per second
	defaultBurst     = 3
)

// ErrUpstreamTimeout wraps score-source timeouts. Callers serve the last
// good snapshot and retry on the next poll cycle instead of surfacing it.
var ErrUpstreamTimeout = errors.New("sportsfeed: upstream timeout")

// Client is a sports-data API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new sports-data API client with a bounded request
// timeout.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GameScore fetches one game and normalizes it to the engine's model.
func (c *Client) GameScore(ctx context.Context, gameID string) (*squares.GameScore, error) {
	params := url.Values{}
	params.Set("event", gameID)

	var raw rawEvent
	if err := c.get(ctx, "/summary", params, &raw); err != nil {
		return nil, err
	}
	return normalizeEvent(gameID, &raw), nil
}

// Scoreboard fetches the current slate of games as pick'em results.
func (c *Client) Scoreboard(ctx context.Context) ([]*squares.GameScore, error) {
	var payload struct {
		Events []rawEvent `json:"events"`
	}
	if err := c.get(ctx, "/scoreboard", nil, &payload); err != nil {
		return nil, err
	}

	scores := make([]*squares.GameScore, 0, len(payload.Events))
	for i := range payload.Events {
		ev := &payload.Events[i]
		scores = append(scores, normalizeEvent(ev.ID.String(), ev))
	}
	return scores, nil
}

// get performs a GET request with rate limiting and timeout classification.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
