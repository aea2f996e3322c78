// Package postfile reads raw posts from JSON Lines exports for offline runs.
package postfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cognicore/handlepulse/pkg/pulse/ingest"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
)

// Record is one line of a post file: a raw post and the account it was
// fetched for. Handle falls back to the post's author.
type Record struct {
	Handle string `json:"handle"`
	ingest.RawPost
}

// LoadFromJSONL loads records from a JSONL file. Malformed lines are logged
// and skipped; a file without any valid record is an error.
func LoadFromJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			slog.Warn("skipping malformed line", "path", path, "line", line, "err", err)
			continue
		}
		if rec.Handle == "" {
			rec.Handle = rec.AuthorHandle
		}
		if rec.Handle == "" {
			slog.Warn("skipping line without handle", "path", path, "line", line)
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no valid records in %s", internalerr.ErrInvalidInput, path)
	}
	return records, nil
}

// GroupByHandle splits records per account. Handles are returned in order
// of first appearance; posts keep file order.
func GroupByHandle(records []Record) ([]string, map[string][]ingest.RawPost) {
	var handles []string
	posts := make(map[string][]ingest.RawPost)
	for _, rec := range records {
		if _, ok := posts[rec.Handle]; !ok {
			handles = append(handles, rec.Handle)
		}
		posts[rec.Handle] = append(posts[rec.Handle], rec.RawPost)
	}
	return handles, posts
}
