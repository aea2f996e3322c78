package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/taxonomy"
)

func TestLoadTaxonomy(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "taxonomy.yaml")

	content := `version: test-1
buckets:
  - {label: am, start: 0, end: 12}
  - {label: pm, start: 12, end: 24}
categories:
  - label: TDP
    policy: first_match
    priority: 1
    keywords: [tdp, ncbn]
  - label: INC
    policy: exclusion_gated
    keywords: [sharmila]
    exclude: [telangana]
tracked: [YSJagan]
top_posts: 2
top_terms: 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	file, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("Failed to load taxonomy: %v", err)
	}
	if len(file.Buckets) != 2 || len(file.Categories) != 2 {
		t.Fatalf("unexpected file %+v", file)
	}
	if file.Categories[1].Policy != "exclusion_gated" || file.Categories[1].Exclude[0] != "telangana" {
		t.Errorf("INC category parsed wrong: %+v", file.Categories[1])
	}

	tax, err := file.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tax.Version() != "test-1" || tax.TopPosts() != 2 || tax.TopTerms() != 10 {
		t.Errorf("limits not carried over")
	}
	if got := tax.Tracked(); len(got) != 1 || got[0] != "ysjagan" {
		t.Errorf("Tracked = %v", got)
	}
}

func TestBuildRejectsBadTaxonomy(t *testing.T) {
	file := &Taxonomy{
		Buckets:    []Bucket{{Label: "all", Start: 0, End: 24}},
		Categories: []Category{{Label: "X", Policy: "sometimes", Keywords: []string{"x"}}},
	}
	_, err := file.Build()
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestShippedTaxonomies(t *testing.T) {
	cases := []struct {
		file       string
		categories int
		topPosts   int
		topWords   int
	}{
		{"news.yaml", 6, 1, 0},
		{"journalists.yaml", 0, 3, 0},
		{"news-independent.yaml", 5, 1, 5},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			file, err := LoadTaxonomy(filepath.Join("..", "..", "..", "configs", tc.file))
			if err != nil {
				t.Fatal(err)
			}
			tax, err := file.Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(tax.Categories()) != tc.categories {
				t.Errorf("categories = %d, want %d", len(tax.Categories()), tc.categories)
			}
			if tax.TopPosts() != tc.topPosts || tax.TopWords() != tc.topWords {
				t.Errorf("limits = %d/%d", tax.TopPosts(), tax.TopWords())
			}
			if len(tax.Buckets()) != 8 {
				t.Errorf("expected 8 three-hour buckets, got %d", len(tax.Buckets()))
			}
		})
	}
}

func TestShippedNewsTaxonomyPolicies(t *testing.T) {
	file, err := LoadTaxonomy(filepath.Join("..", "..", "..", "configs", "news.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	tax, err := file.Build()
	if err != nil {
		t.Fatal(err)
	}

	got := tax.MatchCategories(taxonomy.Fold("YS Sharmila slams TDP over AP Liquor Scam"))
	want := []string{"TDP", "INC", "Govt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if got := tax.MatchCategories(taxonomy.Fold("Sharmila meets KCR")); len(got) != 0 {
		t.Errorf("Telangana context should gate INC, got %v", got)
	}
}

func TestDurationYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "pulse.yaml")
	content := `batch:
  cooldown: 90s
  budget: 1h30m
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	app, err := LoadApp(path)
	if err != nil {
		t.Fatal(err)
	}
	if app.Batch.Cooldown.Std() != 90*time.Second {
		t.Errorf("Cooldown = %v", app.Batch.Cooldown.Std())
	}
	if app.Batch.Budget.Std() != 90*time.Minute {
		t.Errorf("Budget = %v", app.Batch.Budget.Std())
	}
	if app.Batch.AccountTimeout.Std() != 5*time.Minute {
		t.Errorf("default AccountTimeout = %v", app.Batch.AccountTimeout.Std())
	}
}

func TestDurationYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "pulse.yaml")
	if err := os.WriteFile(path, []byte("batch:\n  cooldown: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadApp(path); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestDefaults(t *testing.T) {
	app := Default()
	if app.Batch.Size != 5 || app.Batch.Workers != 3 {
		t.Errorf("batch defaults = %+v", app.Batch)
	}
	if app.Store.Driver != "sqlite" || app.Mail.Provider != "none" {
		t.Errorf("driver/provider defaults = %q/%q", app.Store.Driver, app.Mail.Provider)
	}
	if app.Fetch.MaxResults != 100 || app.Schedule.Time != "23:30" {
		t.Errorf("fetch/schedule defaults wrong")
	}
}

func TestMaxRetriesZeroIsKept(t *testing.T) {
	tmpDir := t.TempDir()
	zero := filepath.Join(tmpDir, "zero.yaml")
	if err := os.WriteFile(zero, []byte("fetch:\n  max_retries: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	absent := filepath.Join(tmpDir, "absent.yaml")
	if err := os.WriteFile(absent, []byte("fetch:\n  max_results: 50\n"), 0644); err != nil {
		t.Fatal(err)
	}

	app, err := LoadApp(zero)
	if err != nil {
		t.Fatal(err)
	}
	if app.Fetch.MaxRetries != 0 {
		t.Errorf("explicit max_retries 0 became %d", app.Fetch.MaxRetries)
	}
	app, err = LoadApp(absent)
	if err != nil {
		t.Fatal(err)
	}
	if app.Fetch.MaxRetries != 3 {
		t.Errorf("default MaxRetries = %d, want 3", app.Fetch.MaxRetries)
	}
}

func TestMalformedYAMLIsConfigError(t *testing.T) {
	tests := []struct {
		name    string
		content string
		load    func(string) error
	}{
		{"taxonomy syntax", "buckets: [unclosed\n", func(p string) error { _, err := LoadTaxonomy(p); return err }},
		{"taxonomy unknown key", "categories:\n  - label: INC\n    exlude: [telangana]\n", func(p string) error { _, err := LoadTaxonomy(p); return err }},
		{"app syntax", "fetch: {max_results: 10\n", func(p string) error { _, err := LoadApp(p); return err }},
		{"app unknown key", "batch:\n  worker: 2\n", func(p string) error { _, err := LoadApp(p); return err }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "file.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			if err := tc.load(path); !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestEmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	app, err := LoadApp(path)
	if err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if app.Batch.Size != 5 || app.Fetch.MaxRetries != 3 {
		t.Errorf("defaults not applied: %+v", app)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	if _, err := LoadTaxonomy("/nonexistent/path.yaml"); err == nil {
		t.Error("Should error on non-existent file")
	}
	if _, err := LoadApp("/nonexistent/path.yaml"); err == nil {
		t.Error("Should error on non-existent file")
	}
}
