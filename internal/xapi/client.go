// Package xapi fetches an account's posts from the X API v2.
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cognicore/handlepulse/pkg/pulse/ingest"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	BearerToken       string
	MaxResults        int
	RequestsPerMinute int
	MaxRetries        int
	MaxRateWait       time.Duration
	Timeout           time.Duration
	Logger            *slog.Logger
}

// Client is a minimal X API v2 client covering user lookup and the user
// timeline.
type Client struct {
	cfg        Config
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client. Zero values fall back to the public API defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.com/2"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.MaxResults <= 0 || cfg.MaxResults > 100 {
		cfg.MaxResults = 100
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRateWait <= 0 {
		cfg.MaxRateWait = 15 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type userResponse struct {
	Data *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
	Errors []apiError `json:"errors"`
}

type tweet struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	PublicMetrics *struct {
		ImpressionCount *int64 `json:"impression_count"`
	} `json:"public_metrics"`
	Entities struct {
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
		Mentions []struct {
			Username string `json:"username"`
		} `json:"mentions"`
	} `json:"entities"`
}

type timelineResponse struct {
	Data []tweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
	Errors []apiError `json:"errors"`
}

// UserID resolves a handle to its numeric user ID.
func (c *Client) UserID(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "", fmt.Errorf("%w: empty handle", internalerr.ErrInvalidInput)
	}
	var resp userResponse
	if err := c.get(ctx, "/users/by/username/"+url.PathEscape(handle), nil, &resp); err != nil {
		return "", fmt.Errorf("lookup %s: %w", handle, err)
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return "", fmt.Errorf("lookup %s: %w%s", handle, internalerr.ErrNotFound, describe(resp.Errors))
	}
	return resp.Data.ID, nil
}

// FetchPosts returns every post the account published in [start, end),
// following pagination until the timeline is exhausted.
func (c *Client) FetchPosts(ctx context.Context, handle string, start, end time.Time) ([]ingest.RawPost, error) {
	id, err := c.UserID(ctx, handle)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"start_time":   {start.UTC().Format(time.RFC3339)},
		"end_time":     {end.UTC().Format(time.RFC3339)},
		"max_results":  {strconv.Itoa(c.cfg.MaxResults)},
		"tweet.fields": {"created_at,public_metrics,entities"},
	}

	var posts []ingest.RawPost
	for page := 1; ; page++ {
		var resp timelineResponse
		if err := c.get(ctx, "/users/"+id+"/tweets", params, &resp); err != nil {
			return nil, fmt.Errorf("timeline %s page %d: %w", handle, page, err)
		}
		for _, t := range resp.Data {
			posts = append(posts, t.raw(handle))
		}
		if resp.Meta.NextToken == "" {
			break
		}
		params.Set("pagination_token", resp.Meta.NextToken)
	}

	c.logger.Debug("timeline fetched", "handle", handle, "posts", len(posts))
	return posts, nil
}

func (t tweet) raw(handle string) ingest.RawPost {
	p := ingest.RawPost{
		ID:           t.ID,
		AuthorHandle: handle,
		Text:         t.Text,
		CreatedAt:    t.CreatedAt,
	}
	if t.PublicMetrics != nil {
		p.Impressions = t.PublicMetrics.ImpressionCount
	}
	for _, h := range t.Entities.Hashtags {
		p.Hashtags = append(p.Hashtags, h.Tag)
	}
	for _, m := range t.Entities.Mentions {
		p.Mentions = append(p.Mentions, m.Username)
	}
	return p
}

// get performs one API call, waiting on the limiter first. A 429 is retried
// after the reset the server announces, up to MaxRetries times, as long as
// the wait stays within MaxRateWait.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.cfg.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
		req.Header.Set("User-Agent", "handlepulse")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := c.resetWait(resp.Header)
			if attempt >= c.cfg.MaxRetries || wait > c.cfg.MaxRateWait {
				return fmt.Errorf("%w: reset in %s", internalerr.ErrRateLimited, wait.Round(time.Second))
			}
			c.logger.Warn("rate limited, waiting for reset", "path", path, "wait", wait.Round(time.Second), "attempt", attempt+1)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			var e struct {
				Errors []apiError `json:"errors"`
				apiError
			}
			_ = json.Unmarshal(body, &e)
			if e.Title != "" {
				e.Errors = append(e.Errors, e.apiError)
			}
			return fmt.Errorf("status %d%s", resp.StatusCode, describe(e.Errors))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

// resetWait reads x-rate-limit-reset (epoch seconds). A missing or past
// reset waits one second.
func (c *Client) resetWait(h http.Header) time.Duration {
	reset, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64)
	if err != nil {
		return time.Second
	}
	wait := time.Unix(reset, 0).Sub(c.now()) + time.Second
	if wait < time.Second {
		return time.Second
	}
	return wait
}

func describe(errs []apiError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Detail
		if msg == "" {
			msg = e.Title
		}
		parts = append(parts, msg)
	}
	return ": " + strings.Join(parts, "; ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
