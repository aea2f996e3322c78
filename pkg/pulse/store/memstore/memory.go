package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/store"
)

// Store is an in-memory implementation of store.Store for tests and dry runs.
type Store struct {
	mu        sync.RWMutex
	summaries map[key]analytics.AccountSummary
}

type key struct {
	handle string
	date   string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{summaries: make(map[key]analytics.AccountSummary)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveSummary inserts or replaces a summary, keyed by handle and date.
func (s *Store) SaveSummary(ctx context.Context, sum *analytics.AccountSummary) error {
	if sum.Handle == "" || sum.Date == "" {
		return fmt.Errorf("%w: summary needs handle and date", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{sum.Handle, sum.Date}
	if existing, ok := s.summaries[k]; ok && sum.ID == "" {
		sum.ID = existing.ID
	}
	if sum.ID == "" {
		sum.ID = store.NewID()
	}
	s.summaries[k] = copySummary(*sum)
	return nil
}

// GetSummary returns the summary for one account and date.
func (s *Store) GetSummary(ctx context.Context, handle, date string) (analytics.AccountSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.summaries[key{handle, date}]
	if !ok {
		return analytics.AccountSummary{}, false, nil
	}
	return copySummary(sum), true, nil
}

// ListSummaries returns the summaries for date ordered by handle.
func (s *Store) ListSummaries(ctx context.Context, date string) ([]analytics.AccountSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []analytics.AccountSummary
	for k, sum := range s.summaries {
		if k.date == date {
			out = append(out, copySummary(sum))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func copySummary(s analytics.AccountSummary) analytics.AccountSummary {
	s.Categories = slices.Clone(s.Categories)
	s.Buckets = slices.Clone(s.Buckets)
	s.Keywords = slices.Clone(s.Keywords)
	s.TopPosts = slices.Clone(s.TopPosts)
	s.TopHashtags = slices.Clone(s.TopHashtags)
	s.TopMentions = slices.Clone(s.TopMentions)
	s.TopWords = slices.Clone(s.TopWords)
	return s
}
