// Command pulse fetches the day's posts of a list of X accounts, classifies
// them against a keyword taxonomy and delivers a spreadsheet summary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/urfave/cli/v2"

	"github.com/cognicore/handlepulse/internal/postfile"
	"github.com/cognicore/handlepulse/pkg/pulse"
	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/config"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/schedule"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "pulse:", err)
		if errors.Is(err, internalerr.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newApp() *cli.App {
	dateFlag := &cli.StringFlag{
		Name:  "date",
		Usage: "calendar date `YYYY-MM-DD` in the configured timezone (default: today)",
	}
	noMailFlag := &cli.BoolFlag{
		Name:  "no-mail",
		Usage: "write the report but do not send it",
	}

	return &cli.App{
		Name:  "pulse",
		Usage: "daily keyword analysis of X accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/pulse.yaml",
				EnvVars: []string{config.EnvConfig},
				Usage:   "application config file",
			},
			&cli.StringFlag{
				Name:  "taxonomy",
				Usage: "taxonomy file, overrides the config",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides the config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "fetch, analyse, store and deliver one day",
				Flags: []cli.Flag{
					dateFlag,
					noMailFlag,
					&cli.StringSliceFlag{Name: "account", Usage: "account handle, repeatable (overrides the config)"},
				},
				Action: runAction,
			},
			{
				Name:   "serve",
				Usage:  "run every day at schedule.time until interrupted",
				Flags:  []cli.Flag{noMailFlag},
				Action: serveAction,
			},
			{
				Name:   "render",
				Usage:  "re-render and deliver a stored day without fetching",
				Flags:  []cli.Flag{dateFlag, noMailFlag},
				Action: renderAction,
			},
			{
				Name:  "classify",
				Usage: "summarize posts from a JSONL file and print JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "JSONL post file"},
					dateFlag,
				},
				Action: classifyAction,
			},
			{
				Name:   "validate",
				Usage:  "check the config and taxonomy",
				Action: validateAction,
			},
		},
	}
}

func runAction(c *cli.Context) error {
	env, err := setup(c, fetching)
	if err != nil {
		return err
	}
	defer env.Close()

	date, err := env.date(c.String("date"))
	if err != nil {
		return err
	}
	accounts := env.app.Accounts
	if override := c.StringSlice("account"); len(override) > 0 {
		accounts = override
	}
	if len(accounts) == 0 {
		return fmt.Errorf("%w: no accounts configured", internalerr.ErrInvalidConfig)
	}

	res, err := env.pulse.RunDaily(c.Context, date, accounts, env.delivery(c.Bool("no-mail")))
	if res != nil && res.Batch != nil {
		printBatch(res.Batch)
	}
	if err != nil {
		return err
	}
	if len(res.Batch.Summaries) == 0 {
		return fmt.Errorf("no account succeeded for %s", date)
	}
	return nil
}

func serveAction(c *cli.Context) error {
	env, err := setup(c, fetching)
	if err != nil {
		return err
	}
	defer env.Close()
	if len(env.app.Accounts) == 0 {
		return fmt.Errorf("%w: no accounts configured", internalerr.ErrInvalidConfig)
	}

	delivery := env.delivery(c.Bool("no-mail"))
	sched := schedule.New(env.comps.Location, env.logger)
	err = sched.Daily(env.app.Schedule.Time, func(ctx context.Context) {
		date := env.pulse.Today()
		if _, err := env.pulse.RunDaily(ctx, date, env.app.Accounts, delivery); err != nil {
			env.logger.Error("daily run failed", "date", date, "err", err)
		}
	})
	if err != nil {
		return err
	}

	sched.Start()
	env.logger.Info("scheduler started", "time", env.app.Schedule.Time, "next", sched.Next())
	<-c.Context.Done()
	env.logger.Info("shutting down")
	<-sched.Stop().Done()
	return nil
}

func renderAction(c *cli.Context) error {
	env, err := setup(c, stored)
	if err != nil {
		return err
	}
	defer env.Close()

	date, err := env.date(c.String("date"))
	if err != nil {
		return err
	}
	path, mailed, err := env.pulse.Deliver(c.Context, date, env.app.Accounts, env.delivery(c.Bool("no-mail")))
	if err != nil {
		return err
	}
	fmt.Printf("report: %s (mailed: %t)\n", path, mailed)
	return nil
}

func classifyAction(c *cli.Context) error {
	env, err := setup(c, offline)
	if err != nil {
		return err
	}
	defer env.Close()

	date, err := env.date(c.String("date"))
	if err != nil {
		return err
	}
	records, err := postfile.LoadFromJSONL(c.String("input"))
	if err != nil {
		return err
	}

	handles, posts := postfile.GroupByHandle(records)
	sums := make([]analytics.AccountSummary, 0, len(handles))
	for _, h := range handles {
		s, err := env.pulse.Summarize(h, date, posts[h])
		if err != nil {
			return err
		}
		sums = append(sums, s)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(sums)
}

func validateAction(c *cli.Context) error {
	comps, err := loadConfig(c)
	if err != nil {
		return err
	}
	tax := comps.Taxonomy
	fmt.Fprintf(c.App.Writer, "config ok: taxonomy %q, %d categories, %d buckets, %d tracked keywords, %d accounts, timezone %s\n",
		tax.Version(), len(tax.Categories()), len(tax.Buckets()), len(tax.Tracked()), len(comps.App.Accounts), comps.Location)
	return nil
}

func printBatch(res *pulse.BatchResult) {
	fmt.Printf("run %s for %s: %d ok, %d failed, %d skipped\n",
		res.RunID, res.Date, len(res.Summaries), len(res.Failures), len(res.Skipped))
	for _, f := range res.Failures {
		fmt.Printf("  failed  %s\n", f)
	}
	for _, h := range res.Skipped {
		fmt.Printf("  skipped %s\n", h)
	}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
