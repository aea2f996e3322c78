package ingest

import (
	"log/slog"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/taxonomy"
)

// Pipeline orchestrates the per-post flow:
// raw post → normalization → classification
type Pipeline struct {
	taxonomy *taxonomy.Taxonomy
	loc      *time.Location
	logger   *slog.Logger
}

// NewPipeline creates a pipeline bound to one taxonomy and timezone.
// A nil logger falls back to slog.Default().
func NewPipeline(tax *taxonomy.Taxonomy, loc *time.Location, logger *slog.Logger) *Pipeline {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{taxonomy: tax, loc: loc, logger: logger}
}

// Taxonomy returns the taxonomy the pipeline classifies against.
func (p *Pipeline) Taxonomy() *taxonomy.Taxonomy { return p.taxonomy }

// Location returns the pipeline's timezone.
func (p *Pipeline) Location() *time.Location { return p.loc }

// Process normalizes and classifies the posts of one account, keeping their
// order. Posts without an author are attributed to handle. Malformed posts
// are logged and dropped; they never fail the account.
func (p *Pipeline) Process(handle string, posts []RawPost) []ClassifiedPost {
	out := make([]ClassifiedPost, 0, len(posts))
	dropped := 0
	for _, raw := range posts {
		if raw.AuthorHandle == "" {
			raw.AuthorHandle = handle
		}
		np, err := Normalize(raw, p.loc)
		if err != nil {
			dropped++
			p.logger.Warn("dropping post", "handle", handle, "post_id", raw.ID, "err", err)
			continue
		}
		out = append(out, Classify(np, p.taxonomy))
	}
	if dropped > 0 {
		p.logger.Info("posts dropped", "handle", handle, "dropped", dropped, "kept", len(out))
	}
	return out
}
