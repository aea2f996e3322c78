package ingest

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/taxonomy"
)

// Normalize folds a raw post for matching and moves its timestamp into loc.
// A post without ID, author or timestamp, or with negative impressions,
// yields an error wrapping internalerr.ErrMalformedPost.
func Normalize(raw RawPost, loc *time.Location) (NormalizedPost, error) {
	if raw.ID == "" {
		return NormalizedPost{}, fmt.Errorf("%w: missing id", internalerr.ErrMalformedPost)
	}
	if raw.AuthorHandle == "" {
		return NormalizedPost{}, fmt.Errorf("%w: post %s has no author", internalerr.ErrMalformedPost, raw.ID)
	}
	if raw.CreatedAt.IsZero() {
		return NormalizedPost{}, fmt.Errorf("%w: post %s has no timestamp", internalerr.ErrMalformedPost, raw.ID)
	}
	var views int64
	if raw.Impressions != nil {
		views = *raw.Impressions
		if views < 0 {
			return NormalizedPost{}, fmt.Errorf("%w: post %s has negative impressions", internalerr.ErrMalformedPost, raw.ID)
		}
	}
	if loc == nil {
		loc = time.UTC
	}

	text := html.UnescapeString(raw.Text)
	return NormalizedPost{
		ID:           raw.ID,
		AuthorHandle: raw.AuthorHandle,
		Text:         text,
		Folded:       taxonomy.Fold(text),
		Local:        raw.CreatedAt.In(loc),
		Hashtags:     prefixed("#", raw.Hashtags),
		Mentions:     prefixed("@", raw.Mentions),
		Impressions:  views,
	}, nil
}

// prefixed folds entity values and puts the sigil in front, matching how
// they are reported. Values already carrying the sigil are not doubled.
func prefixed(sigil string, values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimPrefix(strings.TrimSpace(v), sigil)
		if v == "" {
			continue
		}
		out = append(out, sigil+taxonomy.Fold(v))
	}
	return out
}
