// Package storetest holds behaviour checks shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/store"
)

// Summary returns a fully populated summary for handle on date.
func Summary(handle, date string, total int) analytics.AccountSummary {
	return analytics.AccountSummary{
		Handle:      handle,
		Date:        date,
		RunID:       "run-1",
		Total:       total,
		Categories:  []analytics.LabelCount{{Label: "TDP", Count: 1}, {Label: "INC", Count: 0}},
		Buckets:     []analytics.LabelCount{{Label: "A", Count: total}, {Label: "B", Count: 0}},
		Keywords:    []analytics.LabelCount{{Label: "ysjagan", Count: 2}},
		TopPosts:    []analytics.PostRef{{Views: 10, Text: "నారా లోకేష్ & co", URL: "https://x.com/" + handle + "/status/1"}, {}},
		TopHashtags: []analytics.TermCount{{Term: "#ap", Count: 3}},
		TopMentions: []analytics.TermCount{},
		TopWords:    nil,
		GeneratedAt: time.Date(2025, 7, 1, 18, 30, 0, 0, time.UTC),
	}
}

// Run exercises st. The store must start empty.
func Run(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, found, err := st.GetSummary(ctx, "nobody", "2025-07-01")
		if err != nil {
			t.Fatalf("GetSummary: %v", err)
		}
		if found {
			t.Error("missing summary should not be found")
		}
	})

	t.Run("save assigns id and round trips", func(t *testing.T) {
		sum := Summary("PTI_News", "2025-07-01", 4)
		if err := st.SaveSummary(ctx, &sum); err != nil {
			t.Fatalf("SaveSummary: %v", err)
		}
		if sum.ID == "" {
			t.Fatal("SaveSummary should assign an ID")
		}

		got, found, err := st.GetSummary(ctx, "PTI_News", "2025-07-01")
		if err != nil || !found {
			t.Fatalf("GetSummary: found=%v err=%v", found, err)
		}
		if !got.GeneratedAt.Equal(sum.GeneratedAt) {
			t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, sum.GeneratedAt)
		}
		got.GeneratedAt = sum.GeneratedAt
		if !reflect.DeepEqual(got, sum) {
			t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, sum)
		}
	})

	t.Run("upsert keeps id and replaces values", func(t *testing.T) {
		first, _, _ := st.GetSummary(ctx, "PTI_News", "2025-07-01")

		again := Summary("PTI_News", "2025-07-01", 9)
		again.RunID = "run-2"
		if err := st.SaveSummary(ctx, &again); err != nil {
			t.Fatalf("SaveSummary: %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("ID changed on upsert: %q -> %q", first.ID, again.ID)
		}

		got, _, err := st.GetSummary(ctx, "PTI_News", "2025-07-01")
		if err != nil {
			t.Fatal(err)
		}
		if got.Total != 9 || got.RunID != "run-2" {
			t.Errorf("values not replaced: %+v", got)
		}
	})

	t.Run("list by date ordered by handle", func(t *testing.T) {
		for _, h := range []string{"V6News", "GulteOfficial"} {
			s := Summary(h, "2025-07-01", 1)
			if err := st.SaveSummary(ctx, &s); err != nil {
				t.Fatal(err)
			}
		}
		other := Summary("V6News", "2025-07-02", 1)
		if err := st.SaveSummary(ctx, &other); err != nil {
			t.Fatal(err)
		}

		list, err := st.ListSummaries(ctx, "2025-07-01")
		if err != nil {
			t.Fatal(err)
		}
		var handles []string
		for _, s := range list {
			handles = append(handles, s.Handle)
		}
		want := []string{"GulteOfficial", "PTI_News", "V6News"}
		if !reflect.DeepEqual(handles, want) {
			t.Errorf("handles = %v, want %v", handles, want)
		}

		empty, err := st.ListSummaries(ctx, "1999-01-01")
		if err != nil || len(empty) != 0 {
			t.Errorf("expected no summaries, got %v (%v)", empty, err)
		}
	})

	t.Run("rejects missing key", func(t *testing.T) {
		bad := Summary("", "2025-07-01", 1)
		if err := st.SaveSummary(ctx, &bad); !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
