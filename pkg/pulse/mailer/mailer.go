// Package mailer delivers the daily report by email.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
)

// XLSXType is the MIME type of the report attachment.
const XLSXType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Message is one outgoing email. Attachments are file paths.
type Message struct {
	From        string
	To          []string
	Cc          []string
	Subject     string
	Body        string
	HTML        bool
	Attachments []string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Subject formats a dated subject line, e.g. "Daily Report – 01 July 2025".
func Subject(title string, day time.Time) string {
	return fmt.Sprintf("%s – %s", title, day.Format("02 January 2006"))
}

// Validate checks the envelope.
func (m Message) Validate() error {
	if m.From == "" {
		return fmt.Errorf("%w: message has no sender", internalerr.ErrInvalidInput)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("%w: message has no recipients", internalerr.ErrInvalidInput)
	}
	return nil
}
