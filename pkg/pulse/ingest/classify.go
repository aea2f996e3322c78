package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/handlepulse/pkg/pulse/taxonomy"
)

// minWordRunes is the shortest word counted in the frequent-words table.
const minWordRunes = 4

// Classify assigns a bucket and the matching categories and tracked keywords
// to a normalized post. Each post is classified on its own.
func Classify(post NormalizedPost, tax *taxonomy.Taxonomy) ClassifiedPost {
	cp := ClassifiedPost{
		Bucket:      tax.BucketFor(post.Local.Hour()),
		Categories:  tax.MatchCategories(post.Folded),
		Tracked:     tax.MatchTracked(post.Folded),
		URL:         PostURL(tax.PostDomain(), post.AuthorHandle, post.ID),
		Impressions: post.Impressions,
		Text:        post.Text,
		Hashtags:    post.Hashtags,
		Mentions:    post.Mentions,
	}
	if tax.TopWords() > 0 {
		cp.Words = Words(post.Folded)
	}
	return cp
}

// PostURL builds the public URL of a post.
func PostURL(domain, author, id string) string {
	return fmt.Sprintf("https://%s/%s/status/%s", domain, author, id)
}

// Words splits folded text on whitespace and keeps words of at least four
// runes that are not hashtags or mentions, in decomposed form.
func Words(folded string) []string {
	var out []string
	for _, w := range strings.Fields(folded) {
		w = norm.NFKD.String(w)
		if strings.HasPrefix(w, "#") || strings.HasPrefix(w, "@") {
			continue
		}
		if utf8.RuneCountInString(w) < minWordRunes {
			continue
		}
		out = append(out, w)
	}
	return out
}
