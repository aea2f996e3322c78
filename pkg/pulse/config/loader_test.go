package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalTaxonomy = `buckets:
  - {label: all, start: 0, end: 24}
top_posts: 1
`

func TestLoaderResolvesTaxonomyRelativeToConfig(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "tax.yaml", minimalTaxonomy)
	cfg := writeConfig(t, tmpDir, "pulse.yaml", "timezone: UTC\ntaxonomy: tax.yaml\nstore:\n  driver: memory\n")

	loader := Loader{ConfigPath: cfg, Getenv: env(nil)}
	comp, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if comp.Taxonomy == nil || comp.Taxonomy.TopPosts() != 1 {
		t.Errorf("taxonomy not loaded: %+v", comp.Taxonomy)
	}
	if comp.Location.String() != "UTC" {
		t.Errorf("Location = %v", comp.Location)
	}
	if comp.App.Taxonomy != filepath.Join(tmpDir, "tax.yaml") {
		t.Errorf("taxonomy path = %q", comp.App.Taxonomy)
	}
}

func TestLoaderTaxonomyPathOverride(t *testing.T) {
	tmpDir := t.TempDir()
	override := writeConfig(t, tmpDir, "other.yaml", minimalTaxonomy)
	cfg := writeConfig(t, tmpDir, "pulse.yaml", "timezone: UTC\ntaxonomy: missing.yaml\n")

	loader := Loader{ConfigPath: cfg, TaxonomyPath: override, Getenv: env(nil)}
	if _, err := loader.Load(); err != nil {
		t.Fatalf("override should win over config file: %v", err)
	}
}

func TestLoaderNoTaxonomy(t *testing.T) {
	loader := Loader{Getenv: env(nil)}
	_, err := loader.Load()
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoaderNonExistentConfig(t *testing.T) {
	loader := Loader{ConfigPath: "/nonexistent/pulse.yaml", Getenv: env(nil)}
	if _, err := loader.Load(); err == nil {
		t.Error("Should error on nonexistent config")
	}
}

func TestLoaderInvalidTaxonomy(t *testing.T) {
	tmpDir := t.TempDir()
	tax := writeConfig(t, tmpDir, "tax.yaml", "buckets:\n  - {label: am, start: 0, end: 12}\n")

	loader := Loader{TaxonomyPath: tax, Getenv: env(nil)}
	_, err := loader.Load()
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("uncovered hours should be a config error, got %v", err)
	}
}

func TestLoaderEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	tax := writeConfig(t, tmpDir, "tax.yaml", minimalTaxonomy)
	cfg := writeConfig(t, tmpDir, "pulse.yaml", `timezone: UTC
store:
  driver: mongo
mail:
  provider: smtp
  from: file@example.com
`)

	loader := Loader{ConfigPath: cfg, TaxonomyPath: tax, Getenv: env(map[string]string{
		EnvBearer:         "bearer",
		EnvMongoURI:       "mongodb://localhost:27017",
		EnvSenderEmail:    "bot@example.com",
		EnvSenderPassword: "secret",
		EnvToEmail:        "a@example.com, b@example.com",
		EnvCcEmail:        "c@example.com",
	})}
	comp, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	app := comp.App
	if app.Fetch.BearerToken != "bearer" || app.Store.URI != "mongodb://localhost:27017" {
		t.Errorf("fetch/store overrides missing: %+v %+v", app.Fetch, app.Store)
	}
	if app.Mail.From != "bot@example.com" || app.Mail.Username != "bot@example.com" || app.Mail.Password != "secret" {
		t.Errorf("mail overrides missing: %+v", app.Mail)
	}
	if len(app.Mail.To) != 2 || app.Mail.To[1] != "b@example.com" || app.Mail.Cc[0] != "c@example.com" {
		t.Errorf("recipients = %v / %v", app.Mail.To, app.Mail.Cc)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*App)
		want   string
	}{
		{"defaults ok", func(*App) {}, ""},
		{"bad timezone", func(a *App) { a.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad level", func(a *App) { a.LogLevel = "loud" }, "log_level"},
		{"negative workers", func(a *App) { a.Batch.Workers = -1 }, "batch.workers"},
		{"unknown driver", func(a *App) { a.Store.Driver = "redis" }, "store.driver"},
		{"mongo without uri", func(a *App) { a.Store.Driver = "mongo" }, "store.uri"},
		{"smtp without password", func(a *App) {
			a.Mail.Provider = "smtp"
			a.Mail.From = "x@example.com"
			a.Mail.To = []string{"y@example.com"}
		}, "mail.password"},
		{"sendgrid without recipients", func(a *App) {
			a.Mail.Provider = "sendgrid"
			a.Mail.APIKey = "k"
			a.Mail.From = "x@example.com"
		}, "mail.to"},
		{"unknown provider", func(a *App) { a.Mail.Provider = "pigeon" }, "mail.provider"},
		{"bad clock", func(a *App) { a.Schedule.Time = "25:99" }, "schedule.time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := Default()
			app.Timezone = "UTC"
			tc.mutate(app)
			err := app.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestFetchValidate(t *testing.T) {
	f := Default().Fetch
	if err := f.Validate(); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("missing bearer should fail, got %v", err)
	}
	f.BearerToken = "token"
	if err := f.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	f.MaxResults = 500
	if err := f.Validate(); err == nil {
		t.Error("max_results above 100 should fail")
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:45")
	if err != nil || h != 7 || m != 45 {
		t.Errorf("ParseClock = %d, %d, %v", h, m, err)
	}
	if _, _, err := ParseClock("7pm"); err == nil {
		t.Error("expected error")
	}
}

func TestShippedAppConfig(t *testing.T) {
	cfg := filepath.Join("..", "..", "..", "configs", "pulse.yaml")
	app, err := LoadApp(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(app.Accounts) == 0 {
		t.Error("shipped config should list accounts")
	}
	if app.Batch.Cooldown.Std().Seconds() != 90 {
		t.Errorf("Cooldown = %v", app.Batch.Cooldown.Std())
	}

	loader := Loader{ConfigPath: cfg, Getenv: env(nil)}
	comp, err := loader.Load()
	if err != nil {
		if strings.Contains(err.Error(), "timezone") {
			t.Skipf("tzdata unavailable: %v", err)
		}
		t.Fatalf("Load: %v", err)
	}
	if len(comp.Taxonomy.Categories()) != 6 {
		t.Errorf("pulse.yaml should point at the news taxonomy")
	}
}
