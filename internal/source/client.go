package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"npbstats/internal/config"
	"npbstats/internal/domain"
	"npbstats/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Client)(nil)

// Client fetches schedule and box-score pages from the NPB stats source
// over HTTP. Requests are rate limited and retried; any request that still
// fails after retries fails the whole month.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *util.RateLimiter
	maxRetries int
	userAgent  string
	log        *slog.Logger
}

// NewClient creates a Client from the source configuration.
func NewClient(cfg config.Source) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    util.NewRateLimiter(cfg.RateLimitPerMin),
		maxRetries: retries,
		userAgent:  cfg.UserAgent,
		log:        slog.Default().With("component", "source"),
	}
}

// FetchMonth downloads the schedule page of a league-month and the box
// score of every finalized game on it.
func (c *Client) FetchMonth(ctx context.Context, league domain.League, year int, month string, opts FetchOptions) (*domain.RawMonth, error) {
	scheduleURL := fmt.Sprintf("%s/%s/schedule/%d/%s", c.baseURL, leaguePath(league), year, month)

	body, err := c.get(ctx, scheduleURL)
	if err != nil {
		return nil, fmt.Errorf("fetching schedule %s %d-%s: %w", league, year, month, err)
	}

	games, err := ParseSchedule(bytes.NewReader(body), league)
	if err != nil {
		return nil, fmt.Errorf("schedule %s %d-%s: %w", league, year, month, err)
	}

	if opts.GameID != "" {
		filtered := games[:0]
		for _, g := range games {
			if g.GameID == opts.GameID {
				filtered = append(filtered, g)
			}
		}
		games = filtered
	}

	m := &domain.RawMonth{League: league, Year: year, Month: month, Games: games}

	for _, g := range games {
		if g.Status != domain.GameFinal {
			continue
		}
		boxURL := fmt.Sprintf("%s/game/%s/box", c.baseURL, g.GameID)
		body, err := c.get(ctx, boxURL)
		if err != nil {
			return nil, fmt.Errorf("fetching box score %s: %w", g.GameID, err)
		}
		batting, pitching, err := ParseBoxScore(bytes.NewReader(body), g.GameID)
		if err != nil {
			return nil, fmt.Errorf("box score %s: %w", g.GameID, err)
		}
		m.Batting = append(m.Batting, batting...)
		m.Pitching = append(m.Pitching, pitching...)
	}

	c.log.Debug("month fetched", "league", league, "year", year, "month", month,
		"games", len(m.Games), "batting", len(m.Batting), "pitching", len(m.Pitching))
	return m, nil
}

// get performs one rate-limited GET with retries and returns the body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := util.Retry(ctx, c.maxRetries, time.Second, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func leaguePath(league domain.League) string {
	if league == domain.LeagueFarm {
		return "farm"
	}
	return "npb"
}
