// Package schedule runs a task once a day at a fixed local time.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner bound to one timezone. A run that is still
// going when the next one is due is skipped rather than overlapped.
type Scheduler struct {
	cron     *cron.Cron
	mu       sync.Mutex
	entryID  cron.EntryID
	location *time.Location
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a Scheduler in loc. A nil logger falls back to slog.Default().
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger.With("component", "cron")}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, location: loc, logger: logger, ctx: ctx, cancel: cancel}
}

// Daily schedules task at clock ("HH:MM") every day, replacing any earlier
// schedule. The task's context is cancelled by Stop.
func (s *Scheduler) Daily(clock string, task func(ctx context.Context)) error {
	hour, minute, err := parseClock(clock)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	expr := fmt.Sprintf("%d %d * * *", minute, hour)
	id, err := s.cron.AddFunc(expr, func() { task(s.ctx) })
	if err != nil {
		return fmt.Errorf("adding cron entry: %w", err)
	}
	s.entryID = id
	s.logger.Info("daily run scheduled", "time", clock, "cron", expr, "timezone", s.location.String())
	return nil
}

// Next returns the next scheduled run, or the zero time if nothing is
// scheduled or the scheduler is not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Start begins the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running tasks and returns a context that is done once they
// have returned.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}

// cronLogger routes cron's own messages to slog. Cron reports every wake-up
// through Info, so those go to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]interface{}{"err", err}, keysAndValues...)...)
}

func parseClock(clock string) (int, int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: must be HH:MM", clock)
	}
	return t.Hour(), t.Minute(), nil
}
