package pulse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
)

// BatchConfig controls how RunBatch spreads accounts over time.
type BatchConfig struct {
	Size           int           // accounts per group
	Workers        int           // concurrent accounts within a group
	Cooldown       time.Duration // pause between groups
	AccountTimeout time.Duration // per-account deadline, 0 = none
	Budget         time.Duration // wall-clock limit for the whole run, 0 = none
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.Size <= 0 {
		c.Size = 5
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Workers > c.Size {
		c.Workers = c.Size
	}
	return c
}

// Failure records an account that did not produce a summary.
type Failure struct {
	Handle string
	Err    error
}

func (f Failure) Error() string { return f.Handle + ": " + f.Err.Error() }

func (f Failure) Unwrap() error { return f.Err }

// BatchResult is the outcome of one RunBatch call.
type BatchResult struct {
	RunID      string
	Date       string
	Summaries  []analytics.AccountSummary // input order
	Failures   []Failure                  // input order
	Skipped    []string                   // never started
	StartedAt  time.Time
	FinishedAt time.Time
}

// Handles returns the accounts that produced a summary.
func (r *BatchResult) Handles() []string {
	out := make([]string, len(r.Summaries))
	for i, s := range r.Summaries {
		out[i] = s.Handle
	}
	return out
}

type outcome struct {
	sum  *analytics.AccountSummary
	err  error
	done bool
}

// RunBatch processes handles for date, stores each summary under a fresh
// run ID and publishes it. Accounts fail independently; a failed account is
// reported and the run continues. Once the budget is spent no new group is
// started and the remaining handles are reported as skipped.
//
// The returned error is non-nil only for an invalid date or when ctx itself
// is cancelled.
func (p *Pulse) RunBatch(ctx context.Context, date string, handles []string) (*BatchResult, error) {
	if _, _, err := DayWindow(date, p.Location()); err != nil {
		return nil, err
	}

	res := &BatchResult{
		RunID:     uuid.NewString(),
		Date:      date,
		StartedAt: p.now(),
	}
	log := p.logger.With("run_id", res.RunID, "date", date)
	log.Info("batch started", "accounts", len(handles), "groups", (len(handles)+p.batch.Size-1)/p.batch.Size)

	runCtx := ctx
	if p.batch.Budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.batch.Budget)
		defer cancel()
	}

	outcomes := make([]outcome, len(handles))
	for g := 0; g < len(handles); g += p.batch.Size {
		if g > 0 && p.batch.Cooldown > 0 {
			log.Debug("cooling down", "wait", p.batch.Cooldown)
			_ = sleepCtx(runCtx, p.batch.Cooldown)
		}
		if runCtx.Err() != nil {
			log.Warn("batch stopped early", "remaining", len(handles)-g, "err", runCtx.Err())
			break
		}

		end := min(g+p.batch.Size, len(handles))
		p.runGroup(runCtx, res.RunID, date, handles[g:end], outcomes[g:end])
	}

	budgetSpent := runCtx.Err() != nil && ctx.Err() == nil
	for i, o := range outcomes {
		switch {
		case !o.done:
			res.Skipped = append(res.Skipped, handles[i])
		case o.err != nil:
			err := o.err
			if budgetSpent && errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %w", internalerr.ErrBudgetExceeded, err)
			}
			res.Failures = append(res.Failures, Failure{Handle: handles[i], Err: err})
		default:
			res.Summaries = append(res.Summaries, *o.sum)
		}
	}

	res.FinishedAt = p.now()
	log.Info("batch finished",
		"succeeded", len(res.Summaries),
		"failed", len(res.Failures),
		"skipped", len(res.Skipped),
		"elapsed", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// runGroup runs one group with at most Workers accounts in flight. Once ctx
// is done no further account is started; those outcomes stay not done.
func (p *Pulse) runGroup(ctx context.Context, runID, date string, group []string, out []outcome) {
	sem := make(chan struct{}, p.batch.Workers)
	var wg sync.WaitGroup
	for i, handle := range group {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			sum, err := p.runAccount(ctx, runID, handle, date)
			out[i] = outcome{sum: sum, err: err, done: true}
		}()
	}
	wg.Wait()
}

// runAccount processes, stores and publishes one account. Panics are
// turned into errors so one bad account cannot take down the run.
func (p *Pulse) runAccount(ctx context.Context, runID, handle, date string) (sum *analytics.AccountSummary, err error) {
	log := p.logger.With("run_id", runID, "handle", handle)
	defer func() {
		if r := recover(); r != nil {
			sum, err = nil, fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			log.Error("account failed", "err", err)
		}
	}()

	if p.batch.AccountTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.batch.AccountTimeout)
		defer cancel()
	}

	started := time.Now()
	s, err := p.ProcessAccount(ctx, handle, date)
	if err != nil {
		return nil, err
	}
	s.RunID = runID
	if err := p.store.SaveSummary(ctx, &s); err != nil {
		return nil, fmt.Errorf("save %s: %w", handle, err)
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, s); err != nil {
			log.Warn("publish failed", "err", err)
		}
	}

	log.Info("account done", "posts", s.Total, "elapsed", time.Since(started).Round(time.Millisecond))
	return &s, nil
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
