// Package pulse runs the daily account analysis: fetch each account's posts
// for a day, classify and aggregate them, store the summaries, then render
// and mail the report.
package pulse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/ingest"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/store"
	"github.com/cognicore/handlepulse/pkg/pulse/store/memstore"
)

// Fetcher retrieves the posts an account published in [start, end).
type Fetcher interface {
	FetchPosts(ctx context.Context, handle string, start, end time.Time) ([]ingest.RawPost, error)
}

// Publisher receives every summary after it is stored.
type Publisher interface {
	Publish(ctx context.Context, s analytics.AccountSummary) error
}

// Pulse is the run facade.
type Pulse struct {
	store     store.Store
	fetcher   Fetcher
	pipeline  *ingest.Pipeline
	publisher Publisher
	logger    *slog.Logger
	batch     BatchConfig
	now       func() time.Time
}

// Options configures a Pulse instance. Pipeline is required. A nil Store
// keeps summaries in memory; Fetcher is only needed for fetching runs.
type Options struct {
	Store     store.Store
	Fetcher   Fetcher
	Pipeline  *ingest.Pipeline
	Publisher Publisher
	Logger    *slog.Logger
	Batch     BatchConfig
}

// New creates a Pulse instance with the given dependencies.
func New(opts Options) *Pulse {
	if opts.Store == nil {
		opts.Store = memstore.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pulse{
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		pipeline:  opts.Pipeline,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		batch:     opts.Batch.withDefaults(),
		now:       time.Now,
	}
}

// Close shuts down the store.
func (p *Pulse) Close() error {
	return p.store.Close()
}

// Store returns the summary store.
func (p *Pulse) Store() store.Store { return p.store }

// Location returns the timezone calendar dates are interpreted in.
func (p *Pulse) Location() *time.Location { return p.pipeline.Location() }

// Today returns the current calendar date in the pipeline's timezone.
func (p *Pulse) Today() string { return Today(p.now(), p.Location()) }

// ProcessAccount fetches one account's posts for date and summarizes them.
// Nothing is stored.
func (p *Pulse) ProcessAccount(ctx context.Context, handle, date string) (analytics.AccountSummary, error) {
	if p.fetcher == nil {
		return analytics.AccountSummary{}, fmt.Errorf("%w: no fetcher configured", internalerr.ErrInvalidConfig)
	}
	start, end, err := DayWindow(date, p.Location())
	if err != nil {
		return analytics.AccountSummary{}, err
	}

	raws, err := p.fetcher.FetchPosts(ctx, handle, start, end)
	if err != nil {
		return analytics.AccountSummary{}, fmt.Errorf("fetch %s: %w", handle, err)
	}
	return p.Summarize(handle, date, raws)
}

// Summarize classifies and aggregates posts already in hand. Posts outside
// the day window are ignored; malformed posts are logged and dropped.
func (p *Pulse) Summarize(handle, date string, raws []ingest.RawPost) (analytics.AccountSummary, error) {
	start, end, err := DayWindow(date, p.Location())
	if err != nil {
		return analytics.AccountSummary{}, err
	}

	inDay := make([]ingest.RawPost, 0, len(raws))
	outside := 0
	for _, r := range raws {
		// Undated posts go through so the pipeline reports them as malformed.
		if !r.CreatedAt.IsZero() && (r.CreatedAt.Before(start) || !r.CreatedAt.Before(end)) {
			outside++
			continue
		}
		inDay = append(inDay, r)
	}
	if outside > 0 {
		p.logger.Debug("posts outside day window ignored", "handle", handle, "date", date, "ignored", outside)
	}

	posts := p.pipeline.Process(handle, inDay)
	a := analytics.NewAnalyzer(p.pipeline.Taxonomy(), handle, date)
	for _, cp := range posts {
		a.Process(cp)
	}
	return a.Snapshot(), nil
}
