// Package publish streams stored summaries to NATS so downstream
// dashboards can follow a run as it progresses.
package publish

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
)

// Headers set on every published summary.
const (
	HeaderRunID = "Pulse-Run-Id"
	HeaderDate  = "Pulse-Date"
)

// msgPublisher is the part of *nats.Conn used here.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATS publishes each summary as JSON on "<subject>.<handle>".
type NATS struct {
	pub     msgPublisher
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server at url.
func Connect(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("handlepulse"))
	if err != nil {
		return nil, err
	}
	return &NATS{pub: nc, conn: nc, subject: subject}, nil
}

// Subject returns the subject a handle's summaries are published on.
func (n *NATS) Subject(handle string) string {
	return n.subject + "." + token(handle)
}

// Publish sends one summary.
func (n *NATS) Publish(ctx context.Context, s analytics.AccountSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: n.Subject(s.Handle),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(HeaderDate, s.Date)
	if s.RunID != "" {
		msg.Header.Set(HeaderRunID, s.RunID)
	}
	return n.pub.PublishMsg(msg)
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	err := n.conn.Flush()
	n.conn.Close()
	return err
}

// token makes s safe to use as one subject token.
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
