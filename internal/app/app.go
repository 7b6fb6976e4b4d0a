package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"DecreeWatcher/internal/calendar"
	"DecreeWatcher/internal/config"
	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/infrastructure/mail"
	"DecreeWatcher/internal/infrastructure/parser"
	"DecreeWatcher/internal/infrastructure/scheduler"
	"DecreeWatcher/internal/infrastructure/storage"
	"DecreeWatcher/internal/metrics"
	"DecreeWatcher/internal/ports"
	"DecreeWatcher/internal/scanner"
	"DecreeWatcher/internal/usecase"
)

const shutdownGrace = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	store     *storage.SQLStore
	calendar  *calendar.Calendar
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Deps lets callers replace adapters; zero fields are built from the config.
type Deps struct {
	Fetcher ports.Fetcher
	Mailer  ports.Mailer
	Driver  ports.Scheduler
	Now     func() time.Time
}

// New connects to the store (migrating it unless disabled) and wires every component.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) (*Application, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	loc := cfg.Scheduler.Location()

	hour, minute, err := cfg.Scheduler.Trigger()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	cal, err := NewCalendar(cfg, deps.Now())
	if err != nil {
		return nil, err
	}

	conn, err := connection(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Database.MigrateOnStart() {
		version, err := storage.Migrate(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrated", "dialect", conn.Dialect, "version", version)
	}
	db, err := storage.Open(ctx, conn)
	if err != nil {
		return nil, err
	}
	store := storage.NewSQLStore(db, conn.Dialect)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	fetcher := deps.Fetcher
	if fetcher == nil {
		scanners := scanner.NewRegistry()
		scanners.Register(parser.NewIOERJScanner(&http.Client{Timeout: cfg.Source.Timeout}))
		fetcher = parser.NewStrategySource(scanners, parser.SourceConfig{
			Scanner: cfg.Source.Scanner,
			URL:     cfg.Source.URL,
			Options: cfg.Source.Options,
		}, logger.With("component", "source"))
	}

	mailer := deps.Mailer
	if mailer == nil {
		email := cfg.Notifications.Email
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     email.Host,
			Port:     email.Port,
			Username: email.User,
			Password: email.Password,
			From:     email.From,
			Timeout:  email.Timeout,
		}, logger.With("component", "mailer"))
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:  fetcher,
		Detector: usecase.NewChangeDetector(store, logger.With("component", "detector")),
		Notifier: usecase.NewNotifier(usecase.NotifierDeps{
			Mailer:     mailer,
			Recipients: cfg.Notifications.Email.Recipients,
			SourceURL:  cfg.Source.URL,
			Location:   loc,
			Now:        deps.Now,
			Logger:     logger.With("component", "notifier"),
		}),
		SearchTerm: cfg.Search.Term,
		Metrics:    m,
		Logger:     logger.With("component", "pipeline"),
	})

	driver := deps.Driver
	if driver == nil {
		driver = scheduler.NewCronScheduler(cfg.Scheduler.PollSpec, loc, logger.With("component", "cron"))
	}
	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:     driver,
		Runner:     pipeline,
		Calendar:   cal,
		Trigger:    usecase.Trigger{Hour: hour, Minute: minute, Location: loc},
		RunTimeout: cfg.Scheduler.RunTimeout,
		Metrics:    m,
		Logger:     logger.With("component", "scheduler"),
	})

	return &Application{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		store:     store,
		calendar:  cal,
		pipeline:  pipeline,
		scheduler: sched,
		metrics:   m,
		now:       deps.Now,
	}, nil
}

// NewCalendar builds the holiday snapshot for the configured region and custom dates.
func NewCalendar(cfg config.Config, now time.Time) (*calendar.Calendar, error) {
	return calendar.New(calendar.Options{
		Region: cfg.Calendar.Region,
		Custom: cfg.Calendar.CustomHolidays,
	}, now.In(cfg.Scheduler.Location()))
}

// Migrate applies pending migrations and returns the schema version.
func Migrate(ctx context.Context, cfg config.Config) (uint, error) {
	conn, err := connection(cfg)
	if err != nil {
		return 0, err
	}
	return storage.Migrate(ctx, conn)
}

func connection(cfg config.Config) (storage.Connection, error) {
	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return storage.Connection{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return storage.Connection{Dialect: dialect, DSN: cfg.Database.ConnString()}, nil
}

// Run starts the daemon and blocks until ctx is cancelled. A run in progress is
// allowed to finish before Run returns.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("decree watcher started",
		"search_term", a.cfg.Search.Term,
		"trigger", a.cfg.Scheduler.Time,
		"timezone", a.cfg.Scheduler.Location().String(),
		"region", a.cfg.Calendar.Region,
		"holidays", a.calendar.Len(),
		"headless", a.cfg.Search.Headless != nil && *a.cfg.Search.Headless)

	srv := a.startMetricsServer()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	a.logger.Info("shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Scheduler.RunTimeout+shutdownGrace)
	defer cancel()

	var errs []error
	if err := a.scheduler.Stop(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if srv != nil {
		if err := srv.Shutdown(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}
	a.logger.Info("decree watcher stopped")
	return errors.Join(errs...)
}

func (a *Application) startMetricsServer() *http.Server {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "addr", srv.Addr, "error", err)
		}
	}()
	a.logger.Info("metrics server listening", "addr", srv.Addr)
	return srv
}

// RunOnce executes the pipeline for today. Unless force is set, an ineligible day
// is reported as skipped (ran is false) without touching any collaborator.
func (a *Application) RunOnce(ctx context.Context, force bool) (report usecase.RunReport, ran bool, err error) {
	loc := a.cfg.Scheduler.Location()
	today := a.now().In(loc)

	if !force && !a.calendar.IsEligible(today, loc) {
		reason := a.calendar.Reason(today, loc)
		a.logger.Info("day skipped", "day", today.Format(domain.ISODateLayout), "reason", reason)
		a.metrics.ObserveSkip("ineligible")
		return usecase.RunReport{Day: today}, false, nil
	}

	started := time.Now()
	report, err = a.pipeline.RunOnce(ctx, today)
	outcome := string(usecase.TickSucceeded)
	if err != nil {
		outcome = string(usecase.TickFailed)
	}
	a.metrics.ObserveRun(outcome, time.Since(started))
	return report, true, err
}

// History lists every recorded date for the configured search term.
func (a *Application) History(ctx context.Context) ([]domain.PublicationDate, int, error) {
	term := a.pipeline.SearchTerm()
	dates, err := a.store.ListAll(ctx, term)
	if err != nil {
		return nil, 0, err
	}
	count, err := a.store.Count(ctx, term)
	if err != nil {
		return nil, 0, err
	}
	return dates, count, nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
