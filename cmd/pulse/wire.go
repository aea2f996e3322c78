package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cognicore/handlepulse/internal/xapi"
	"github.com/cognicore/handlepulse/pkg/pulse"
	"github.com/cognicore/handlepulse/pkg/pulse/config"
	"github.com/cognicore/handlepulse/pkg/pulse/ingest"
	"github.com/cognicore/handlepulse/pkg/pulse/mailer"
	"github.com/cognicore/handlepulse/pkg/pulse/publish"
	"github.com/cognicore/handlepulse/pkg/pulse/store"
	"github.com/cognicore/handlepulse/pkg/pulse/store/memstore"
	"github.com/cognicore/handlepulse/pkg/pulse/store/mongostore"
	"github.com/cognicore/handlepulse/pkg/pulse/store/sqlite"
)

// env holds the components built for one command.
type env struct {
	app    *config.App
	comps  *config.Components
	logger *slog.Logger
	pulse  *pulse.Pulse
	mailer mailer.Mailer
	nats   *publish.NATS
}

func (e *env) Close() {
	if e.nats != nil {
		if err := e.nats.Close(); err != nil {
			e.logger.Warn("close nats", "err", err)
		}
	}
	if err := e.pulse.Close(); err != nil {
		e.logger.Warn("close store", "err", err)
	}
}

func (e *env) date(flag string) (string, error) {
	if flag == "" {
		return e.pulse.Today(), nil
	}
	if _, _, err := pulse.DayWindow(flag, e.comps.Location); err != nil {
		return "", err
	}
	return flag, nil
}

func (e *env) delivery(noMail bool) pulse.Delivery {
	d := pulse.Delivery{
		ReportDir: e.app.Report.Dir,
		Sheet:     e.app.Report.Sheet,
		Title:     e.app.Report.Title,
		Message: mailer.Message{
			From: e.app.Mail.From,
			To:   e.app.Mail.To,
			Cc:   e.app.Mail.Cc,
			Body: e.app.Mail.Body,
		},
	}
	if !noMail {
		d.Mailer = e.mailer
	}
	return d
}

func loadConfig(c *cli.Context) (*config.Components, error) {
	loader := config.Loader{
		ConfigPath:   c.String("config"),
		TaxonomyPath: c.String("taxonomy"),
	}
	comps, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		if _, err := config.ParseLevel(lvl); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidFlag, err)
		}
		comps.App.LogLevel = lvl
	}
	return comps, nil
}

var errInvalidFlag = errors.New("invalid flag")

// mode says which components a command needs.
type mode int

const (
	offline  mode = iota // in-memory store, no fetcher
	stored               // configured store, no fetcher
	fetching             // configured store, X API and NATS
)

// setup loads configuration and builds the components a command needs.
// Only fetching commands require X API credentials.
func setup(c *cli.Context, m mode) (*env, error) {
	comps, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	app := comps.App
	level, _ := config.ParseLevel(app.LogLevel)
	logger := newLogger(level)
	slog.SetDefault(logger)

	e := &env{app: app, comps: comps, logger: logger}

	var fetcher pulse.Fetcher
	if m == fetching {
		if err := app.Fetch.Validate(); err != nil {
			return nil, err
		}
		fetcher = xapi.New(xapi.Config{
			BaseURL:           app.Fetch.BaseURL,
			BearerToken:       app.Fetch.BearerToken,
			MaxResults:        app.Fetch.MaxResults,
			RequestsPerMinute: app.Fetch.RequestsPerMinute,
			MaxRetries:        app.Fetch.MaxRetries,
			MaxRateWait:       app.Fetch.MaxRateWait.Std(),
			Timeout:           app.Fetch.Timeout.Std(),
			Logger:            logger,
		})
	}

	st := store.Store(memstore.New())
	if m != offline {
		if st, err = openStore(c.Context, app.Store); err != nil {
			return nil, err
		}
	}

	var publisher pulse.Publisher
	if m == fetching && app.Publish.URL != "" {
		n, err := publish.Connect(app.Publish.URL, app.Publish.Subject)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		e.nats = n
		publisher = n
	}

	e.mailer = newMailer(app.Mail)
	e.pulse = pulse.New(pulse.Options{
		Store:     st,
		Fetcher:   fetcher,
		Pipeline:  ingest.NewPipeline(comps.Taxonomy, comps.Location, logger),
		Publisher: publisher,
		Logger:    logger,
		Batch: pulse.BatchConfig{
			Size:           app.Batch.Size,
			Workers:        app.Batch.Workers,
			Cooldown:       app.Batch.Cooldown.Std(),
			AccountTimeout: app.Batch.AccountTimeout.Std(),
			Budget:         app.Batch.Budget.Std(),
		},
	})
	return e, nil
}

func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil
	case "mongo":
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return mongostore.Open(ctx, mongostore.Config{URI: cfg.URI, Database: cfg.Database, Collection: cfg.Collection})
	default:
		return sqlite.OpenSQLite(ctx, cfg.Path)
	}
}

// newMailer returns nil when mail is disabled.
func newMailer(cfg config.Mail) mailer.Mailer {
	switch cfg.Provider {
	case "smtp":
		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	case "sendgrid":
		return mailer.NewSendGrid(cfg.APIKey, "")
	default:
		return nil
	}
}
