package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/taxonomy"
)

// Environment variables that override file values. Secrets are expected to
// arrive this way rather than in the config file.
const (
	EnvConfig         = "PULSE_CONFIG"
	EnvBearer         = "TWITTER_BEARER"
	EnvMongoURI       = "MONGO_URI"
	EnvSenderEmail    = "SENDER_EMAIL"
	EnvSenderPassword = "SENDER_PASSWORD"
	EnvSendGridKey    = "SENDGRID_API_KEY"
	EnvToEmail        = "TO_EMAIL"
	EnvCcEmail        = "CC_EMAIL"
)

// Loader loads the application config and the taxonomy it points at.
type Loader struct {
	ConfigPath   string
	TaxonomyPath string              // overrides App.Taxonomy when set
	Getenv       func(string) string // defaults to os.Getenv
}

// Components holds everything built from configuration.
type Components struct {
	App      *App
	Taxonomy *taxonomy.Taxonomy
	Location *time.Location
}

// Load reads the config files, applies environment overrides, validates and
// returns the built components. Any invalid value yields an error wrapping
// internalerr.ErrInvalidConfig.
func (l *Loader) Load() (*Components, error) {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	app := Default()
	if l.ConfigPath != "" {
		loaded, err := LoadApp(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		app = loaded
	}
	ApplyEnv(app, getenv)

	taxPath := l.TaxonomyPath
	if taxPath == "" {
		taxPath = app.Taxonomy
		if taxPath != "" && !filepath.IsAbs(taxPath) && l.ConfigPath != "" {
			taxPath = filepath.Join(filepath.Dir(l.ConfigPath), taxPath)
		}
	}
	if taxPath == "" {
		return nil, fmt.Errorf("%w: no taxonomy file configured", internalerr.ErrInvalidConfig)
	}
	app.Taxonomy = taxPath

	if err := app.Validate(); err != nil {
		return nil, err
	}

	taxFile, err := LoadTaxonomy(taxPath)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	tax, err := taxFile.Build()
	if err != nil {
		return nil, fmt.Errorf("build taxonomy %s: %w", taxPath, err)
	}

	loc, err := time.LoadLocation(app.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", internalerr.ErrInvalidConfig, app.Timezone, err)
	}

	return &Components{App: app, Taxonomy: tax, Location: loc}, nil
}

// ApplyEnv copies non-empty environment values over the file values.
func ApplyEnv(app *App, getenv func(string) string) {
	if v := getenv(EnvBearer); v != "" {
		app.Fetch.BearerToken = v
	}
	if v := getenv(EnvMongoURI); v != "" {
		app.Store.URI = v
	}
	if v := getenv(EnvSenderEmail); v != "" {
		app.Mail.From = v
		if app.Mail.Username == "" {
			app.Mail.Username = v
		}
	}
	if v := getenv(EnvSenderPassword); v != "" {
		app.Mail.Password = v
	}
	if v := getenv(EnvSendGridKey); v != "" {
		app.Mail.APIKey = v
	}
	if v := getenv(EnvToEmail); v != "" {
		app.Mail.To = splitList(v)
	}
	if v := getenv(EnvCcEmail); v != "" {
		app.Mail.Cc = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the settings every command relies on. Fetch credentials
// are checked separately by Fetch.Validate since offline commands do not
// need them.
func (a *App) Validate() error {
	var problems []string
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("timezone %q: %v", a.Timezone, err))
	}
	if _, err := ParseLevel(a.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if a.Batch.Size < 1 {
		problems = append(problems, "batch.size must be positive")
	}
	if a.Batch.Workers < 1 {
		problems = append(problems, "batch.workers must be positive")
	}
	if a.Batch.Cooldown < 0 || a.Batch.AccountTimeout < 0 || a.Batch.Budget < 0 {
		problems = append(problems, "batch durations must not be negative")
	}

	switch a.Store.Driver {
	case "memory":
	case "sqlite":
		if a.Store.Path == "" {
			problems = append(problems, "store.path is required for sqlite")
		}
	case "mongo":
		if a.Store.URI == "" {
			problems = append(problems, "store.uri (or "+EnvMongoURI+") is required for mongo")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", a.Store.Driver))
	}

	switch a.Mail.Provider {
	case "none":
	case "smtp":
		if a.Mail.Host == "" {
			problems = append(problems, "mail.host is required for smtp")
		}
		if a.Mail.Password == "" {
			problems = append(problems, "mail.password (or "+EnvSenderPassword+") is required for smtp")
		}
		problems = append(problems, a.Mail.addressProblems()...)
	case "sendgrid":
		if a.Mail.APIKey == "" {
			problems = append(problems, "mail.api_key (or "+EnvSendGridKey+") is required for sendgrid")
		}
		problems = append(problems, a.Mail.addressProblems()...)
	default:
		problems = append(problems, fmt.Sprintf("unknown mail.provider %q", a.Mail.Provider))
	}

	if _, _, err := ParseClock(a.Schedule.Time); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (m Mail) addressProblems() []string {
	var problems []string
	if m.From == "" {
		problems = append(problems, "mail.from (or "+EnvSenderEmail+") is required")
	}
	if len(m.To) == 0 {
		problems = append(problems, "mail.to (or "+EnvToEmail+") is required")
	}
	return problems
}

// Validate checks what the X API client needs.
func (f Fetch) Validate() error {
	if f.BearerToken == "" {
		return fmt.Errorf("%w: fetch.bearer_token (or %s) is required", internalerr.ErrInvalidConfig, EnvBearer)
	}
	if f.MaxResults < 5 || f.MaxResults > 100 {
		return fmt.Errorf("%w: fetch.max_results must be within 5..100", internalerr.ErrInvalidConfig)
	}
	return nil
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule.time %q must be HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %v", s, err)
	}
	return level, nil
}
