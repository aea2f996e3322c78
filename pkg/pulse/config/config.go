package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/taxonomy"
)

// Taxonomy is the YAML form of a classification taxonomy.
type Taxonomy struct {
	Version    string     `yaml:"version"`
	PostDomain string     `yaml:"post_domain"`
	Buckets    []Bucket   `yaml:"buckets"`
	Categories []Category `yaml:"categories"`
	Tracked    []string   `yaml:"tracked"`
	TopPosts   int        `yaml:"top_posts"`
	TopTerms   int        `yaml:"top_terms"`
	TopWords   int        `yaml:"top_words"`
}

// Bucket is one half-open hour range.
type Bucket struct {
	Label string `yaml:"label"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
}

// Category is one keyword category.
type Category struct {
	Label    string   `yaml:"label"`
	Policy   string   `yaml:"policy"`
	Priority int      `yaml:"priority"`
	Keywords []string `yaml:"keywords"`
	Exclude  []string `yaml:"exclude"`
}

// LoadTaxonomy loads a taxonomy file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	var tax Taxonomy
	if err := decodeFile(path, &tax); err != nil {
		return nil, err
	}
	return &tax, nil
}

// decodeFile strictly decodes a YAML file into out. Syntax errors and
// unknown keys are config errors; an empty file leaves out untouched.
func decodeFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: parse %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	return nil
}

// Spec converts the file form into a taxonomy spec.
func (t *Taxonomy) Spec() taxonomy.Spec {
	spec := taxonomy.Spec{
		Version:    t.Version,
		PostDomain: t.PostDomain,
		Tracked:    t.Tracked,
		TopPosts:   t.TopPosts,
		TopTerms:   t.TopTerms,
		TopWords:   t.TopWords,
	}
	for _, b := range t.Buckets {
		spec.Buckets = append(spec.Buckets, taxonomy.TimeBucket{Label: b.Label, Start: b.Start, End: b.End})
	}
	for _, c := range t.Categories {
		spec.Categories = append(spec.Categories, taxonomy.Category{
			Label:    c.Label,
			Policy:   taxonomy.Policy(c.Policy),
			Priority: c.Priority,
			Keywords: c.Keywords,
			Exclude:  c.Exclude,
		})
	}
	return spec
}

// Build validates the file form and constructs the taxonomy.
func (t *Taxonomy) Build() (*taxonomy.Taxonomy, error) {
	return taxonomy.New(t.Spec())
}

// Duration is a time.Duration written as a Go duration string ("90s", "5m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// App is the application config file.
type App struct {
	Timezone string   `yaml:"timezone"`
	Taxonomy string   `yaml:"taxonomy"`
	Accounts []string `yaml:"accounts"`
	LogLevel string   `yaml:"log_level"`
	Fetch    Fetch    `yaml:"fetch"`
	Batch    Batch    `yaml:"batch"`
	Store    Store    `yaml:"store"`
	Report   Report   `yaml:"report"`
	Mail     Mail     `yaml:"mail"`
	Publish  Publish  `yaml:"publish"`
	Schedule Schedule `yaml:"schedule"`
}

// Fetch configures the X API client.
type Fetch struct {
	BaseURL           string   `yaml:"base_url"`
	BearerToken       string   `yaml:"bearer_token"`
	MaxResults        int      `yaml:"max_results"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	MaxRetries        int      `yaml:"max_retries"`
	MaxRateWait       Duration `yaml:"max_rate_wait"`
	Timeout           Duration `yaml:"timeout"`
}

// Batch configures the account batch runner.
type Batch struct {
	Size           int      `yaml:"size"`
	Workers        int      `yaml:"workers"`
	Cooldown       Duration `yaml:"cooldown"`
	AccountTimeout Duration `yaml:"account_timeout"`
	Budget         Duration `yaml:"budget"`
}

// Store selects and configures the summary store.
type Store struct {
	Driver     string `yaml:"driver"` // sqlite, memory or mongo
	Path       string `yaml:"path"`
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Report configures spreadsheet output.
type Report struct {
	Dir   string `yaml:"dir"`
	Sheet string `yaml:"sheet"`
	Title string `yaml:"title"`
}

// Mail selects and configures delivery of the report.
type Mail struct {
	Provider string   `yaml:"provider"` // smtp, sendgrid or none
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	APIKey   string   `yaml:"api_key"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Cc       []string `yaml:"cc"`
	Body     string   `yaml:"body"`
}

// Publish configures the optional NATS summary feed.
type Publish struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Schedule configures daily runs for the serve command.
type Schedule struct {
	Time string `yaml:"time"` // HH:MM in Timezone
}

// LoadApp loads an application config file and fills defaults.
func LoadApp(path string) (*App, error) {
	app := Default()
	if err := decodeFile(path, app); err != nil {
		return nil, err
	}
	app.fillDefaults()

	return app, nil
}

// Default returns an application config with every default applied.
// Defaults whose zero value is meaningful are set here only, so a file
// that spells them out as zero keeps the zero.
func Default() *App {
	app := &App{}
	app.Fetch.MaxRetries = 3
	app.fillDefaults()
	return app
}

func (a *App) fillDefaults() {
	if a.Timezone == "" {
		a.Timezone = "Asia/Kolkata"
	}
	if a.LogLevel == "" {
		a.LogLevel = "info"
	}
	if a.Fetch.BaseURL == "" {
		a.Fetch.BaseURL = "https://api.x.com/2"
	}
	if a.Fetch.MaxResults == 0 {
		a.Fetch.MaxResults = 100
	}
	if a.Fetch.RequestsPerMinute == 0 {
		a.Fetch.RequestsPerMinute = 60
	}
	if a.Fetch.MaxRateWait == 0 {
		a.Fetch.MaxRateWait = Duration(15 * time.Minute)
	}
	if a.Fetch.Timeout == 0 {
		a.Fetch.Timeout = Duration(30 * time.Second)
	}
	if a.Batch.Size == 0 {
		a.Batch.Size = 5
	}
	if a.Batch.Workers == 0 {
		a.Batch.Workers = 3
	}
	if a.Batch.AccountTimeout == 0 {
		a.Batch.AccountTimeout = Duration(5 * time.Minute)
	}
	if a.Store.Driver == "" {
		a.Store.Driver = "sqlite"
	}
	if a.Store.Path == "" {
		a.Store.Path = "pulse.db"
	}
	if a.Store.Database == "" {
		a.Store.Database = "twitter_analysis"
	}
	if a.Store.Collection == "" {
		a.Store.Collection = "daily_reports"
	}
	if a.Report.Dir == "" {
		a.Report.Dir = "."
	}
	if a.Report.Sheet == "" {
		a.Report.Sheet = "Summary"
	}
	if a.Report.Title == "" {
		a.Report.Title = "Daily X Analysis Report"
	}
	if a.Mail.Provider == "" {
		a.Mail.Provider = "none"
	}
	if a.Mail.Body == "" {
		a.Mail.Body = "Hi,\n\nPlease find attached the daily analysis report.\n\nRegards,\nAutomated Bot"
	}
	if a.Mail.Host == "" {
		a.Mail.Host = "smtp.gmail.com"
	}
	if a.Mail.Port == 0 {
		a.Mail.Port = 587
	}
	if a.Publish.Subject == "" {
		a.Publish.Subject = "pulse.summary"
	}
	if a.Schedule.Time == "" {
		a.Schedule.Time = "23:30"
	}
}
