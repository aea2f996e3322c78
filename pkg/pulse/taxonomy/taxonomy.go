// Package taxonomy holds the immutable keyword and time-bucket configuration
// that drives post classification.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
)

// UnknownBucket is returned by BucketFor when no bucket covers an hour.
const UnknownBucket = "Unknown"

// DefaultPostDomain is the host used to build post URLs.
const DefaultPostDomain = "x.com"

// Policy selects how a category is evaluated against a post.
type Policy string

const (
	// FirstMatch categories are mutually exclusive: they are tried in
	// ascending Priority and evaluation stops at the first hit.
	FirstMatch Policy = "first_match"
	// Independent categories are tested on every post.
	Independent Policy = "independent"
	// ExclusionGated categories are independent but only fire when none of
	// their Exclude keywords is present.
	ExclusionGated Policy = "exclusion_gated"
)

// TimeBucket is a half-open local hour range [Start, End).
type TimeBucket struct {
	Label string
	Start int
	End   int
}

// Contains reports whether hour falls in the bucket.
func (b TimeBucket) Contains(hour int) bool {
	return b.Start <= hour && hour < b.End
}

// Category is one taxonomy label with its keywords.
type Category struct {
	Label    string
	Policy   Policy
	Priority int
	Keywords []string
	Exclude  []string
}

// Spec is the raw, unvalidated input to New.
type Spec struct {
	Version    string
	PostDomain string
	Buckets    []TimeBucket
	Categories []Category
	Tracked    []string
	TopPosts   int
	TopTerms   int
	TopWords   int
}

// Taxonomy is a validated, read-only classification configuration.
// It is safe for concurrent use.
type Taxonomy struct {
	version    string
	postDomain string
	buckets    []TimeBucket
	categories []Category
	firstMatch []int // indexes into categories, ascending priority
	tracked    []string // folded, for matching
	trackedAs  []string // declared spelling, for display
	topPosts   int
	topTerms   int
	topWords   int
}

// Fold lower-cases s and puts it in canonical composed form. Keywords and
// post text go through the same folding so visually identical strings match.
func Fold(s string) string {
	return norm.NFC.String(strings.ToLower(norm.NFC.String(s)))
}

// foldAll folds keywords, dropping blanks and duplicates that only differed
// by case or encoding.
func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = Fold(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// New validates spec and returns an immutable taxonomy. Errors wrap
// internalerr.ErrInvalidConfig.
func New(spec Spec) (*Taxonomy, error) {
	if err := validateBuckets(spec.Buckets); err != nil {
		return nil, err
	}
	if spec.TopPosts < 0 || spec.TopTerms < 0 || spec.TopWords < 0 {
		return nil, fmt.Errorf("%w: top_posts, top_terms and top_words must be >= 0", internalerr.ErrInvalidConfig)
	}

	t := &Taxonomy{
		version:    spec.Version,
		postDomain: spec.PostDomain,
		buckets:    append([]TimeBucket(nil), spec.Buckets...),
		topPosts:   spec.TopPosts,
		topTerms:   spec.TopTerms,
		topWords:   spec.TopWords,
	}
	if t.postDomain == "" {
		t.postDomain = DefaultPostDomain
	}
	seenTracked := make(map[string]struct{}, len(spec.Tracked))
	for _, kw := range spec.Tracked {
		kw = strings.TrimSpace(kw)
		folded := Fold(kw)
		if folded == "" {
			continue
		}
		if _, dup := seenTracked[folded]; dup {
			continue
		}
		seenTracked[folded] = struct{}{}
		t.tracked = append(t.tracked, folded)
		t.trackedAs = append(t.trackedAs, kw)
	}

	seen := make(map[string]struct{}, len(spec.Categories))
	priorities := make(map[int]string)
	for _, c := range spec.Categories {
		if c.Label == "" {
			return nil, fmt.Errorf("%w: category with empty label", internalerr.ErrInvalidConfig)
		}
		if _, dup := seen[c.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", internalerr.ErrInvalidConfig, c.Label)
		}
		seen[c.Label] = struct{}{}

		switch c.Policy {
		case FirstMatch:
			if other, ok := priorities[c.Priority]; ok {
				return nil, fmt.Errorf("%w: categories %q and %q share first_match priority %d",
					internalerr.ErrInvalidConfig, other, c.Label, c.Priority)
			}
			priorities[c.Priority] = c.Label
		case Independent:
		case ExclusionGated:
			if len(foldAll(c.Exclude)) == 0 {
				return nil, fmt.Errorf("%w: exclusion_gated category %q has no exclude keywords",
					internalerr.ErrInvalidConfig, c.Label)
			}
		default:
			return nil, fmt.Errorf("%w: category %q has unknown policy %q", internalerr.ErrInvalidConfig, c.Label, c.Policy)
		}

		t.categories = append(t.categories, Category{
			Label:    c.Label,
			Policy:   c.Policy,
			Priority: c.Priority,
			Keywords: foldAll(c.Keywords),
			Exclude:  foldAll(c.Exclude),
		})
	}

	for i, c := range t.categories {
		if c.Policy == FirstMatch {
			t.firstMatch = append(t.firstMatch, i)
		}
	}
	sort.SliceStable(t.firstMatch, func(a, b int) bool {
		return t.categories[t.firstMatch[a]].Priority < t.categories[t.firstMatch[b]].Priority
	})

	return t, nil
}

// validateBuckets checks that buckets partition hours 0..23.
func validateBuckets(buckets []TimeBucket) error {
	if len(buckets) == 0 {
		return fmt.Errorf("%w: no time buckets", internalerr.ErrInvalidConfig)
	}
	labels := make(map[string]struct{}, len(buckets))
	for _, b := range buckets {
		if b.Label == "" {
			return fmt.Errorf("%w: time bucket with empty label", internalerr.ErrInvalidConfig)
		}
		if b.Label == UnknownBucket {
			return fmt.Errorf("%w: time bucket label %q is reserved", internalerr.ErrInvalidConfig, UnknownBucket)
		}
		if _, dup := labels[b.Label]; dup {
			return fmt.Errorf("%w: duplicate time bucket %q", internalerr.ErrInvalidConfig, b.Label)
		}
		labels[b.Label] = struct{}{}
		if b.Start < 0 || b.End > 24 || b.Start >= b.End {
			return fmt.Errorf("%w: time bucket %q has invalid range [%d,%d)", internalerr.ErrInvalidConfig, b.Label, b.Start, b.End)
		}
	}
	for h := 0; h < 24; h++ {
		n := 0
		for _, b := range buckets {
			if b.Contains(h) {
				n++
			}
		}
		switch {
		case n == 0:
			return fmt.Errorf("%w: hour %d is not covered by any time bucket", internalerr.ErrInvalidConfig, h)
		case n > 1:
			return fmt.Errorf("%w: hour %d is covered by %d time buckets", internalerr.ErrInvalidConfig, h, n)
		}
	}
	return nil
}

// BucketFor returns the label of the bucket containing hour.
func (t *Taxonomy) BucketFor(hour int) string {
	for _, b := range t.buckets {
		if b.Contains(hour) {
			return b.Label
		}
	}
	return UnknownBucket
}

// Version returns the taxonomy version label.
func (t *Taxonomy) Version() string { return t.version }

// PostDomain returns the host used in post URLs.
func (t *Taxonomy) PostDomain() string { return t.postDomain }

// TopPosts is K, the number of most-viewed posts kept per account.
func (t *Taxonomy) TopPosts() int { return t.topPosts }

// TopTerms is N, the number of hashtags and mentions kept per account.
func (t *Taxonomy) TopTerms() int { return t.topTerms }

// TopWords is the number of frequent words kept per account; 0 disables word counting.
func (t *Taxonomy) TopWords() int { return t.topWords }

// Buckets returns the time buckets in declared order.
func (t *Taxonomy) Buckets() []TimeBucket {
	return append([]TimeBucket(nil), t.buckets...)
}

// BucketLabels returns the bucket labels in declared order.
func (t *Taxonomy) BucketLabels() []string {
	out := make([]string, len(t.buckets))
	for i, b := range t.buckets {
		out[i] = b.Label
	}
	return out
}

// Categories returns copies of the categories in declared order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		c.Keywords = append([]string(nil), c.Keywords...)
		c.Exclude = append([]string(nil), c.Exclude...)
		out[i] = c
	}
	return out
}

// CategoryLabels returns the category labels in declared order.
func (t *Taxonomy) CategoryLabels() []string {
	out := make([]string, len(t.categories))
	for i, c := range t.categories {
		out[i] = c.Label
	}
	return out
}

// Tracked returns the folded tracked keywords in declared order.
func (t *Taxonomy) Tracked() []string {
	return append([]string(nil), t.tracked...)
}

// TrackedLabels returns the tracked keywords as declared, aligned with
// Tracked.
func (t *Taxonomy) TrackedLabels() []string {
	return append([]string(nil), t.trackedAs...)
}

// MatchCategories returns the labels of the categories that match folded
// text, in declared order.
func (t *Taxonomy) MatchCategories(folded string) []string {
	hit := make([]bool, len(t.categories))

	for _, i := range t.firstMatch {
		if t.categories[i].matches(folded) {
			hit[i] = true
			break
		}
	}
	for i, c := range t.categories {
		if c.Policy != FirstMatch && c.matches(folded) {
			hit[i] = true
		}
	}

	var labels []string
	for i, ok := range hit {
		if ok {
			labels = append(labels, t.categories[i].Label)
		}
	}
	return labels
}

// MatchTracked returns every tracked keyword contained in folded text.
func (t *Taxonomy) MatchTracked(folded string) []string {
	var out []string
	for _, kw := range t.tracked {
		if strings.Contains(folded, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// matches is plain substring containment. Exclusions veto a keyword hit.
func (c Category) matches(folded string) bool {
	if !containsAny(folded, c.Keywords) {
		return false
	}
	return !containsAny(folded, c.Exclude)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
