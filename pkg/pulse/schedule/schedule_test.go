package schedule

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDailyValidTime(t *testing.T) {
	s := New(time.UTC, nil)
	defer s.Stop()

	if err := s.Daily("14:30", func(context.Context) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Start()

	next := s.Next()
	if next.IsZero() {
		t.Fatal("expected a next run once started")
	}
	if next.Hour() != 14 || next.Minute() != 30 {
		t.Errorf("next run = %v", next)
	}
}

func TestDailyInvalidTime(t *testing.T) {
	s := New(time.UTC, nil)
	defer s.Stop()

	for _, clock := range []string{"25:00", "abc", "7:5pm"} {
		if err := s.Daily(clock, func(context.Context) {}); err == nil {
			t.Errorf("expected error for %q", clock)
		}
	}
}

func TestDailyReplaces(t *testing.T) {
	s := New(time.UTC, nil)
	defer s.Stop()

	if err := s.Daily("08:00", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}
	first := s.entryID
	if err := s.Daily("10:00", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}
	if s.entryID == first {
		t.Error("expected entry ID to change after reschedule")
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Errorf("expected 1 cron entry, got %d", n)
	}
}

func TestUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	s := New(loc, nil)
	defer s.Stop()
	if err := s.Daily("23:30", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}
	s.Start()

	next := s.Next().In(loc)
	if next.Hour() != 23 || next.Minute() != 30 {
		t.Errorf("next run in IST = %v", next)
	}
}

func TestStopCancelsTaskContext(t *testing.T) {
	s := New(time.UTC, nil)
	<-s.Stop().Done()
	if s.ctx.Err() == nil {
		t.Error("task context should be cancelled after Stop")
	}
}

func TestNextWithoutSchedule(t *testing.T) {
	s := New(nil, nil)
	defer s.Stop()
	if !s.Next().IsZero() {
		t.Error("expected zero time without a schedule")
	}
}

func TestPanickingJobIsLoggedThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := New(time.UTC, logger)
	defer s.Stop()

	id, err := s.cron.AddFunc("@daily", func() { panic("boom") })
	if err != nil {
		t.Fatal(err)
	}
	s.cron.Entry(id).WrappedJob.Run()

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "err=boom") || !strings.Contains(out, "component=cron") {
		t.Errorf("panic not logged through slog: %s", out)
	}
}
