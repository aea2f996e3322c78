package pulse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/mailer"
	"github.com/cognicore/handlepulse/pkg/pulse/report"
)

// Delivery describes where the daily report goes.
type Delivery struct {
	ReportDir string
	Sheet     string
	Title     string

	// Mailer may be nil, in which case the report is only written to disk.
	Mailer mailer.Mailer
	// Message carries sender, recipients and body. Subject and attachments
	// are filled in per report.
	Message mailer.Message
}

// DailyResult is the outcome of RunDaily.
type DailyResult struct {
	Batch      *BatchResult
	ReportPath string
	Mailed     bool
}

// ReportPath returns the workbook path for date.
func ReportPath(dir, date string) string {
	return filepath.Join(dir, "pulse-"+date+".xlsx")
}

// RunDaily runs the batch for date, then renders and delivers the report.
// Failed accounts are left out of the report.
func (p *Pulse) RunDaily(ctx context.Context, date string, handles []string, d Delivery) (*DailyResult, error) {
	batch, err := p.RunBatch(ctx, date, handles)
	if err != nil {
		return &DailyResult{Batch: batch}, err
	}

	path, mailed, err := p.deliver(ctx, date, batch.Summaries, d)
	return &DailyResult{Batch: batch, ReportPath: path, Mailed: mailed}, err
}

// Deliver renders the stored summaries for date and mails the report. When
// handles is non-empty the rows follow that order and other accounts are
// left out; otherwise rows are ordered by handle.
func (p *Pulse) Deliver(ctx context.Context, date string, handles []string, d Delivery) (string, bool, error) {
	stored, err := p.store.ListSummaries(ctx, date)
	if err != nil {
		return "", false, fmt.Errorf("list summaries: %w", err)
	}
	if len(handles) > 0 {
		stored = orderBy(stored, handles)
	}
	return p.deliver(ctx, date, stored, d)
}

func (p *Pulse) deliver(ctx context.Context, date string, sums []analytics.AccountSummary, d Delivery) (string, bool, error) {
	dir := d.ReportDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false, fmt.Errorf("report dir: %w", err)
	}

	path := ReportPath(dir, date)
	if err := report.WriteFile(path, d.Sheet, p.pipeline.Taxonomy(), sums); err != nil {
		return "", false, fmt.Errorf("write report: %w", err)
	}
	p.logger.Info("report written", "path", path, "accounts", len(sums))

	if d.Mailer == nil {
		return path, false, nil
	}
	if len(sums) == 0 {
		p.logger.Warn("no summaries, report not mailed", "date", date)
		return path, false, nil
	}

	day, err := time.ParseInLocation(DateLayout, date, p.Location())
	if err != nil {
		return path, false, err
	}
	msg := d.Message
	msg.Subject = mailer.Subject(d.Title, day)
	msg.Attachments = []string{path}
	if err := d.Mailer.Send(ctx, msg); err != nil {
		return path, false, fmt.Errorf("mail report: %w", err)
	}
	p.logger.Info("report mailed", "to", msg.To, "cc", msg.Cc)
	return path, true, nil
}

func orderBy(sums []analytics.AccountSummary, handles []string) []analytics.AccountSummary {
	byHandle := make(map[string]analytics.AccountSummary, len(sums))
	for _, s := range sums {
		byHandle[s.Handle] = s
	}
	out := make([]analytics.AccountSummary, 0, len(handles))
	for _, h := range handles {
		if s, ok := byHandle[h]; ok {
			out = append(out, s)
		}
	}
	return out
}
