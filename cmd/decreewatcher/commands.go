package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"DecreeWatcher/internal/app"
	"DecreeWatcher/internal/config"
	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/logging"
)

// env is what every command needs before doing its own work.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
}

// bootstrap loads the configuration, validating only what scope needs.
func bootstrap(scope config.Scope) (*env, error) {
	cfg, err := config.LoadScope(scope)
	if err != nil {
		return nil, err
	}
	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, closer: closer}, nil
}

// withApp bootstraps, builds the application and tears both down after fn.
func withApp(ctx context.Context, scope config.Scope, fn func(*env, *app.Application) error) error {
	e, err := bootstrap(scope)
	if err != nil {
		return err
	}
	defer e.closer.Close()

	application, err := app.New(ctx, e.cfg, e.logger, app.Deps{})
	if err != nil {
		e.logger.Error("startup failed", "error_kind", domain.ErrorKind(err), "error", err)
		return err
	}
	defer application.Close()

	return fn(e, application)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "decreewatcher",
		Short:         "Watch the official gazette for new publications of a decree",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the daily scheduler until interrupted",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newRunOnceCommand(),
		&cobra.Command{
			Use:   "history",
			Short: "List every publication date recorded for the search term",
			Args:  cobra.NoArgs,
			RunE:  runHistory,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "check-day [YYYY-MM-DD]",
			Short: "Report whether a day is eligible for a run (default today)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runCheckDay,
		},
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), config.ScopeAll, func(_ *env, a *app.Application) error {
		return a.Run(cmd.Context())
	})
}

func newRunOnceCommand() *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "run-once",
		Short: "Run the pipeline once now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), config.ScopeAll, func(e *env, a *app.Application) error {
				report, ran, err := a.RunOnce(cmd.Context(), force)
				if err != nil {
					e.logger.Error("run failed",
						"run_id", report.RunID,
						"error_kind", domain.ErrorKind(err),
						"error", err)
					return err
				}
				out := cmd.OutOrStdout()
				if !ran {
					fmt.Fprintf(out, "%s is not a business day; use --force to run anyway\n",
						report.Day.Format(domain.ISODateLayout))
					return nil
				}
				fmt.Fprintf(out, "run %s: %d date(s) on the portal, %d new, notified=%t\n",
					report.RunID, report.Observed, len(report.NewDates), report.Notified)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&force, "force", false, "run even on weekends and holidays")
	return c
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), config.ScopeStorage, func(e *env, a *app.Application) error {
		dates, count, err := a.History(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Publication date", "Search term", "First seen"})
		for _, d := range dates {
			t.AppendRow(table.Row{
				d.Date.Format(domain.DateLayout),
				d.SearchTerm,
				d.FirstSeenAt.In(e.cfg.Scheduler.Location()).Format(time.DateTime),
			})
		}
		t.AppendFooter(table.Row{"Total", count, ""})
		t.Render()
		return nil
	})
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	e, err := bootstrap(config.ScopeStorage)
	if err != nil {
		return err
	}
	defer e.closer.Close()

	version, err := app.Migrate(cmd.Context(), e.cfg)
	if err != nil {
		return err
	}
	e.logger.Info("database migrated", "version", version)
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}

func runCheckDay(cmd *cobra.Command, args []string) error {
	e, err := bootstrap(config.ScopeCalendar)
	if err != nil {
		return err
	}
	defer e.closer.Close()

	loc := e.cfg.Scheduler.Location()
	day := time.Now().In(loc)
	if len(args) == 1 {
		day, err = time.ParseInLocation(domain.ISODateLayout, args[0], loc)
		if err != nil {
			return fmt.Errorf("day %q is not YYYY-MM-DD", args[0])
		}
	}

	cal, err := app.NewCalendar(e.cfg, day)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reason := cal.Reason(day, loc); reason != "" {
		fmt.Fprintf(out, "%s: not eligible (%s)\n", day.Format(domain.ISODateLayout), reason)
		return nil
	}
	fmt.Fprintf(out, "%s: eligible\n", day.Format(domain.ISODateLayout))
	return nil
}
