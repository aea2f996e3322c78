package taxonomy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
)

func threeHourBuckets() []TimeBucket {
	var out []TimeBucket
	for h := 0; h < 24; h += 3 {
		out = append(out, TimeBucket{Label: fmt.Sprintf("slot%02d", h), Start: h, End: h + 3})
	}
	return out
}

func halfDay() []TimeBucket {
	return []TimeBucket{{Label: "A", Start: 0, End: 12}, {Label: "B", Start: 12, End: 24}}
}

func mustNew(t *testing.T, spec Spec) *Taxonomy {
	t.Helper()
	tax, err := New(spec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tax
}

func TestBucketsCoverEveryHourExactlyOnce(t *testing.T) {
	partitions := [][]TimeBucket{
		halfDay(),
		threeHourBuckets(),
		{{Label: "all", Start: 0, End: 24}},
		{{Label: "night", Start: 0, End: 6}, {Label: "day", Start: 6, End: 18}, {Label: "evening", Start: 18, End: 24}},
	}

	for _, buckets := range partitions {
		tax := mustNew(t, Spec{Buckets: buckets})
		for h := 0; h < 24; h++ {
			label := tax.BucketFor(h)
			if label == UnknownBucket {
				t.Errorf("hour %d unmapped in %v", h, buckets)
				continue
			}
			n := 0
			for _, b := range buckets {
				if b.Contains(h) {
					n++
				}
			}
			if n != 1 {
				t.Errorf("hour %d matched %d buckets", h, n)
			}
		}
	}
}

func TestBucketForOutOfRangeIsUnknown(t *testing.T) {
	tax := mustNew(t, Spec{Buckets: halfDay()})
	if got := tax.BucketFor(24); got != UnknownBucket {
		t.Errorf("BucketFor(24) = %q, want %q", got, UnknownBucket)
	}
	if got := tax.BucketFor(-1); got != UnknownBucket {
		t.Errorf("BucketFor(-1) = %q, want %q", got, UnknownBucket)
	}
}

func TestInvalidBucketsRejected(t *testing.T) {
	cases := map[string][]TimeBucket{
		"empty":       nil,
		"gap":         {{Label: "A", Start: 0, End: 11}, {Label: "B", Start: 12, End: 24}},
		"overlap":     {{Label: "A", Start: 0, End: 13}, {Label: "B", Start: 12, End: 24}},
		"short":       {{Label: "A", Start: 0, End: 23}},
		"inverted":    {{Label: "A", Start: 12, End: 0}, {Label: "B", Start: 0, End: 24}},
		"past24":      {{Label: "A", Start: 0, End: 25}},
		"no label":    {{Label: "", Start: 0, End: 24}},
		"dup label":   {{Label: "A", Start: 0, End: 12}, {Label: "A", Start: 12, End: 24}},
		"negative":    {{Label: "A", Start: -1, End: 24}},
		"zero length": {{Label: "A", Start: 0, End: 24}, {Label: "B", Start: 5, End: 5}},
	}

	for name, buckets := range cases {
		_, err := New(Spec{Buckets: buckets})
		if err == nil {
			t.Errorf("%s: expected configuration error", name)
			continue
		}
		if !errors.Is(err, internalerr.ErrInvalidConfig) {
			t.Errorf("%s: error %v does not wrap ErrInvalidConfig", name, err)
		}
	}
}

func TestUnknownBucketLabelReserved(t *testing.T) {
	_, err := New(Spec{Buckets: []TimeBucket{{Label: UnknownBucket, Start: 0, End: 12}, {Label: "B", Start: 12, End: 24}}})
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for a bucket named %q, got %v", UnknownBucket, err)
	}
}

func TestInvalidCategoriesRejected(t *testing.T) {
	cases := map[string][]Category{
		"empty label":     {{Label: "", Policy: Independent}},
		"duplicate":       {{Label: "x", Policy: Independent}, {Label: "x", Policy: Independent}},
		"unknown policy":  {{Label: "x", Policy: "sometimes"}},
		"gate no exclude": {{Label: "x", Policy: ExclusionGated, Keywords: []string{"a"}}},
		"same priority": {
			{Label: "a", Policy: FirstMatch, Priority: 1},
			{Label: "b", Policy: FirstMatch, Priority: 1},
		},
	}
	for name, cats := range cases {
		_, err := New(Spec{Buckets: halfDay(), Categories: cats})
		if !errors.Is(err, internalerr.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestNegativeLimitsRejected(t *testing.T) {
	for _, spec := range []Spec{
		{Buckets: halfDay(), TopPosts: -1},
		{Buckets: halfDay(), TopTerms: -1},
		{Buckets: halfDay(), TopWords: -1},
	} {
		if _, err := New(spec); !errors.Is(err, internalerr.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for %+v, got %v", spec, err)
		}
	}
}

func TestFirstMatchUsesPriorityNotDeclaredOrder(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets: halfDay(),
		Categories: []Category{
			{Label: "late", Policy: FirstMatch, Priority: 2, Keywords: []string{"modi"}},
			{Label: "early", Policy: FirstMatch, Priority: 1, Keywords: []string{"naidu"}},
		},
	})

	got := tax.MatchCategories("naidu meets modi")
	if len(got) != 1 || got[0] != "early" {
		t.Errorf("expected [early], got %v", got)
	}

	got = tax.MatchCategories("modi alone")
	if len(got) != 1 || got[0] != "late" {
		t.Errorf("expected [late], got %v", got)
	}
}

func TestIndependentCategoriesIgnoreFirstMatch(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets: halfDay(),
		Categories: []Category{
			{Label: "tdp", Policy: FirstMatch, Priority: 1, Keywords: []string{"tdp"}},
			{Label: "ysrcp", Policy: FirstMatch, Priority: 2, Keywords: []string{"jagan"}},
			{Label: "govt", Policy: Independent, Keywords: []string{"liquor scam"}},
		},
	})

	got := tax.MatchCategories("tdp on jagan liquor scam")
	want := []string{"tdp", "govt"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExclusionGatedCategory(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets: halfDay(),
		Categories: []Category{
			{Label: "INC", Policy: ExclusionGated, Keywords: []string{"sharmila"}, Exclude: []string{"telangana"}},
		},
	})

	if got := tax.MatchCategories(Fold("ys sharmila meets telangana leaders")); len(got) != 0 {
		t.Errorf("exclusion keyword present, expected no match, got %v", got)
	}
	if got := tax.MatchCategories(Fold("ys sharmila meets ap leaders")); len(got) != 1 || got[0] != "INC" {
		t.Errorf("expected [INC], got %v", got)
	}
}

func TestExcludeAlsoGatesFirstMatch(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets: halfDay(),
		Categories: []Category{
			{Label: "a", Policy: FirstMatch, Priority: 1, Keywords: []string{"reddy"}, Exclude: []string{"revanth"}},
			{Label: "b", Policy: FirstMatch, Priority: 2, Keywords: []string{"reddy"}},
		},
	})
	got := tax.MatchCategories("revanth reddy")
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("excluded first_match should fall through to next, got %v", got)
	}
}

func TestEmptyKeywordListMatchesNothing(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets:    halfDay(),
		Categories: []Category{{Label: "empty", Policy: Independent}},
	})
	if got := tax.MatchCategories("anything at all"); len(got) != 0 {
		t.Errorf("empty keyword list matched: %v", got)
	}
}

func TestSubstringMatchingIsNotWordBounded(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets:    halfDay(),
		Categories: []Category{{Label: "inc", Policy: Independent, Keywords: []string{"inc"}}},
		Tracked:    []string{"ysr"},
	})
	if got := tax.MatchCategories("an incredible rally"); len(got) != 1 {
		t.Errorf("short keyword should match inside a longer word, got %v", got)
	}
	if got := tax.MatchTracked("ysrcp"); len(got) != 1 {
		t.Errorf("tracked keyword should match inside a longer word, got %v", got)
	}
}

func TestKeywordsAreFolded(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets: halfDay(),
		Categories: []Category{
			{Label: "jsp", Policy: Independent, Keywords: []string{"PawanKalyan", "DeputyCMPawanKalyan"}},
		},
		Tracked: []string{"ChandrababuNaidu", "chandrababunaidu", "  ", "Caf\u00e9"},
	})

	cats := tax.Categories()
	if cats[0].Keywords[0] != "pawankalyan" {
		t.Errorf("keyword not lower-cased: %q", cats[0].Keywords[0])
	}

	tracked := tax.Tracked()
	if len(tracked) != 2 {
		t.Fatalf("expected duplicates and blanks dropped, got %v", tracked)
	}
	labels := tax.TrackedLabels()
	if len(labels) != 2 || labels[0] != "ChandrababuNaidu" || labels[1] != "Caf\u00e9" {
		t.Errorf("declared spelling should be kept for display, got %v", labels)
	}
	// "e" + combining acute must fold to the precomposed form.
	if got := tax.MatchTracked(Fold("CAFE\u0301 time")); len(got) != 1 || got[0] != "caf\u00e9" {
		t.Errorf("decomposed text should match composed keyword, got %v", got)
	}
}

func TestMatchTrackedRecordsAllHits(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets: halfDay(),
		Tracked: []string{"tdp", "ncbn", "janasena"},
	})
	got := tax.MatchTracked("ncbn and tdp cadres")
	want := []string{"tdp", "ncbn"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	tax := mustNew(t, Spec{
		Buckets:    halfDay(),
		Categories: []Category{{Label: "x", Policy: Independent, Keywords: []string{"a"}}},
		Tracked:    []string{"t"},
	})

	tax.Buckets()[0].Label = "changed"
	tax.Categories()[0].Keywords[0] = "changed"
	tax.Tracked()[0] = "changed"

	if tax.BucketLabels()[0] != "A" {
		t.Error("bucket mutated through accessor")
	}
	if tax.Categories()[0].Keywords[0] != "a" {
		t.Error("keywords mutated through accessor")
	}
	if tax.Tracked()[0] != "t" {
		t.Error("tracked mutated through accessor")
	}
}

func TestDefaults(t *testing.T) {
	tax := mustNew(t, Spec{Buckets: halfDay(), Version: "v1"})
	if tax.PostDomain() != DefaultPostDomain {
		t.Errorf("PostDomain = %q", tax.PostDomain())
	}
	if tax.Version() != "v1" {
		t.Errorf("Version = %q", tax.Version())
	}
}
