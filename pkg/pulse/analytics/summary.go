package analytics

import "time"

// LabelCount is one labelled tally (a category, bucket or tracked keyword).
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TermCount is one entry of a frequency table.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// PostRef identifies one of an account's most-viewed posts. The zero value
// is the padding sentinel used when an account has fewer than K posts.
type PostRef struct {
	Views int64  `json:"views"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// IsEmpty reports whether p is the padding sentinel.
func (p PostRef) IsEmpty() bool { return p == PostRef{} }

// AccountSummary is the per-account, per-day aggregate. Every slice has a
// fixed shape given the taxonomy: one entry per declared category, bucket and
// tracked keyword, and exactly K top posts.
type AccountSummary struct {
	ID          string       `json:"id,omitempty"`
	RunID       string       `json:"run_id,omitempty"`
	Handle      string       `json:"handle"`
	Date        string       `json:"date"`
	Total       int          `json:"total"`
	Categories  []LabelCount `json:"categories"`
	Buckets     []LabelCount `json:"buckets"`
	TopPosts    []PostRef    `json:"top_posts"`
	TopHashtags []TermCount  `json:"top_hashtags"`
	TopMentions []TermCount  `json:"top_mentions"`
	TopWords    []TermCount  `json:"top_words"`
	Keywords    []LabelCount `json:"keywords"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Count returns the tally for label in counts, or 0.
func Count(counts []LabelCount, label string) int {
	for _, c := range counts {
		if c.Label == label {
			return c.Count
		}
	}
	return 0
}

// BucketTotal sums the bucket tallies; it always equals Total.
func (s AccountSummary) BucketTotal() int {
	n := 0
	for _, b := range s.Buckets {
		n += b.Count
	}
	return n
}
