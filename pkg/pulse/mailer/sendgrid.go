package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendPath = "/v3/mail/send"

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	apiKey string
	host   string
}

// NewSendGrid creates a SendGrid mailer. An empty host uses the public API.
func NewSendGrid(apiKey, host string) *SendGrid {
	if host == "" {
		host = "https://api.sendgrid.com"
	}
	return &SendGrid{apiKey: apiKey, host: strings.TrimSuffix(host, "/")}
}

// Send delivers m. Any non-2xx response is an error.
func (s *SendGrid) Send(ctx context.Context, m Message) error {
	v3, err := buildV3(m)
	if err != nil {
		return err
	}

	client := sendgrid.NewSendClient(s.apiKey)
	client.BaseURL = s.host + sendPath

	resp, err := client.SendWithContext(ctx, v3)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func buildV3(m Message) (*sgmail.SGMailV3, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(sgmail.NewEmail("", m.From))
	v3.Subject = m.Subject

	p := sgmail.NewPersonalization()
	p.AddTos(emails(m.To)...)
	if len(m.Cc) > 0 {
		p.AddCCs(emails(m.Cc)...)
	}
	v3.AddPersonalizations(p)

	contentType := "text/plain"
	if m.HTML {
		contentType = "text/html"
	}
	v3.AddContent(sgmail.NewContent(contentType, m.Body))

	for _, path := range m.Attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("attachment: %w", err)
		}
		a := sgmail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(data))
		a.SetType(attachmentType(path))
		a.SetFilename(filepath.Base(path))
		a.SetDisposition("attachment")
		v3.AddAttachment(a)
	}
	return v3, nil
}

func emails(addrs []string) []*sgmail.Email {
	out := make([]*sgmail.Email, len(addrs))
	for i, a := range addrs {
		out[i] = sgmail.NewEmail("", a)
	}
	return out
}

func attachmentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return XLSXType
	}
	return "application/octet-stream"
}
