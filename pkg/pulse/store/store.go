package store

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
)

// Store persists per-account daily summaries.
type Store interface {
	Close() error

	// SaveSummary inserts or replaces the summary for (Handle, Date). An
	// empty ID is filled in; replacing keeps the existing ID.
	SaveSummary(ctx context.Context, s *analytics.AccountSummary) error
	// GetSummary returns the summary for one account and date.
	GetSummary(ctx context.Context, handle, date string) (analytics.AccountSummary, bool, error)
	// ListSummaries returns all summaries for a date ordered by handle.
	ListSummaries(ctx context.Context, date string) ([]analytics.AccountSummary, error)
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new ULID string. Safe for concurrent use.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Now(), idEntropy).String()
}
