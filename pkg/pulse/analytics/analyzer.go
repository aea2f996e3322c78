// Package analytics folds classified posts into per-account summaries.
package analytics

import (
	"sort"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/ingest"
	"github.com/cognicore/handlepulse/pkg/pulse/taxonomy"
)

// Analyzer aggregates one account's classified posts. Feed posts in the
// order they were fetched: top-post and top-term ties keep that order.
// An Analyzer is not safe for concurrent use; use one per account.
type Analyzer struct {
	tax        *taxonomy.Taxonomy
	handle     string
	date       string
	total      int
	categories map[string]int
	buckets    map[string]int
	keywords   map[string]int
	posts      []PostRef
	hashtags   *termCounter
	mentions   *termCounter
	words      *termCounter
	now        func() time.Time
}

// NewAnalyzer creates an empty analyzer for one account and date.
func NewAnalyzer(tax *taxonomy.Taxonomy, handle, date string) *Analyzer {
	return &Analyzer{
		tax:        tax,
		handle:     handle,
		date:       date,
		categories: make(map[string]int),
		buckets:    make(map[string]int),
		keywords:   make(map[string]int),
		hashtags:   newTermCounter(),
		mentions:   newTermCounter(),
		words:      newTermCounter(),
		now:        time.Now,
	}
}

// Process consumes one classified post.
func (a *Analyzer) Process(p ingest.ClassifiedPost) {
	a.total++
	a.buckets[p.Bucket]++
	for _, c := range p.Categories {
		a.categories[c]++
	}
	for _, kw := range p.Tracked {
		a.keywords[kw]++
	}
	a.posts = append(a.posts, PostRef{Views: p.Impressions, Text: p.Text, URL: p.URL})
	a.hashtags.add(p.Hashtags...)
	a.mentions.add(p.Mentions...)
	a.words.add(p.Words...)
}

// Snapshot returns the summary of everything processed so far. It does not
// reset the analyzer and may be called repeatedly.
func (a *Analyzer) Snapshot() AccountSummary {
	s := AccountSummary{
		Handle:      a.handle,
		Date:        a.date,
		Total:       a.total,
		Categories:  tally(a.tax.CategoryLabels(), a.categories),
		Buckets:     tally(a.tax.BucketLabels(), a.buckets),
		TopPosts:    topPosts(a.posts, a.tax.TopPosts()),
		TopHashtags: a.hashtags.top(a.tax.TopTerms()),
		TopMentions: a.mentions.top(a.tax.TopTerms()),
		Keywords:    tally(a.tax.Tracked(), a.keywords),
		GeneratedAt: a.now().UTC(),
	}
	if a.tax.TopWords() > 0 {
		s.TopWords = a.words.top(a.tax.TopWords())
	}
	// Only reachable with a hand-built post; a validated taxonomy covers
	// every hour. Kept so bucket counts still sum to the total.
	if n := a.buckets[taxonomy.UnknownBucket]; n > 0 {
		s.Buckets = append(s.Buckets, LabelCount{Label: taxonomy.UnknownBucket, Count: n})
	}
	return s
}

// Aggregate folds posts for one account into a summary.
func Aggregate(tax *taxonomy.Taxonomy, handle, date string, posts []ingest.ClassifiedPost) AccountSummary {
	a := NewAnalyzer(tax, handle, date)
	for _, p := range posts {
		a.Process(p)
	}
	return a.Snapshot()
}

func tally(labels []string, counts map[string]int) []LabelCount {
	out := make([]LabelCount, len(labels))
	for i, l := range labels {
		out[i] = LabelCount{Label: l, Count: counts[l]}
	}
	return out
}

// topPosts returns exactly k posts by descending views, ties in input order,
// padded with empty refs.
func topPosts(posts []PostRef, k int) []PostRef {
	sorted := append([]PostRef(nil), posts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Views > sorted[j].Views
	})
	out := make([]PostRef, k)
	copy(out, sorted)
	return out
}

// termCounter counts terms and remembers first-seen order for tie-breaks.
type termCounter struct {
	counts map[string]int
	order  []string
}

func newTermCounter() *termCounter {
	return &termCounter{counts: make(map[string]int)}
}

func (c *termCounter) add(terms ...string) {
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, seen := c.counts[t]; !seen {
			c.order = append(c.order, t)
		}
		c.counts[t]++
	}
}

// top returns up to n terms by descending count, ties by first appearance.
func (c *termCounter) top(n int) []TermCount {
	if n <= 0 || len(c.order) == 0 {
		return []TermCount{}
	}
	terms := append([]string(nil), c.order...)
	sort.SliceStable(terms, func(i, j int) bool {
		return c.counts[terms[i]] > c.counts[terms[j]]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	out := make([]TermCount, len(terms))
	for i, t := range terms {
		out[i] = TermCount{Term: t, Count: c.counts[t]}
	}
	return out
}
