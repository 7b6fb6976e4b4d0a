package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

// Runner executes one pipeline run for a day.
type Runner interface {
	RunOnce(ctx context.Context, day time.Time) (RunReport, error)
}

// Trigger is the daily wall-clock time at which a run is attempted.
type Trigger struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// Matches reports whether t falls in the trigger minute, in the trigger's location.
func (t Trigger) Matches(now time.Time) bool {
	local := now.In(t.location())
	return local.Hour() == t.Hour && local.Minute() == t.Minute
}

func (t Trigger) location() *time.Location {
	if t.Location == nil {
		return time.UTC
	}
	return t.Location
}

// String renders the trigger as "HH:MM Zone".
func (t Trigger) String() string {
	return fmt.Sprintf("%02d:%02d %s", t.Hour, t.Minute, t.location())
}

// TickOutcome is the result of evaluating one polling tick.
type TickOutcome string

const (
	TickIdle       TickOutcome = "idle"
	TickIneligible TickOutcome = "ineligible"
	TickAlreadyRan TickOutcome = "already_ran"
	TickBusy       TickOutcome = "busy"
	TickSucceeded  TickOutcome = "succeeded"
	TickFailed     TickOutcome = "failed"
)

// SchedulerDeps wires the scheduler.
type SchedulerDeps struct {
	Driver     ports.Scheduler
	Runner     Runner
	Calendar   ports.BusinessCalendar
	Trigger    Trigger
	RunTimeout time.Duration
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

// Scheduler wires the cron-like driver with the pipeline use case.
// It runs at most once per eligible local day and never overlaps runs.
type Scheduler struct {
	driver     ports.Scheduler
	runner     Runner
	calendar   ports.BusinessCalendar
	trigger    Trigger
	runTimeout time.Duration
	metrics    ports.Metrics
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	lastRun string
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	s := &Scheduler{
		driver:     deps.Driver,
		runner:     deps.Runner,
		calendar:   deps.Calendar,
		trigger:    deps.Trigger,
		runTimeout: deps.RunTimeout,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.runTimeout <= 0 {
		s.runTimeout = 10 * time.Minute
	}
	return s
}

// Start registers the tick handler with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	s.logger.Info("scheduler started", "trigger", s.trigger.String())
	return s.driver.Start(ctx, func(now time.Time) {
		s.Tick(ctx, now)
	})
}

// Stop tears down the driver, waiting for a run in progress.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// Tick evaluates one polling tick. Failures are logged and never propagated:
// tomorrow's trigger must fire regardless of today's outcome.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) TickOutcome {
	if !s.trigger.Matches(now) {
		return TickIdle
	}

	loc := s.trigger.location()
	local := now.In(loc)
	day := local.Format(domain.ISODateLayout)

	s.mu.Lock()
	switch {
	case s.running:
		s.mu.Unlock()
		s.logger.Warn("previous run still in progress, skipping trigger", "day", day)
		s.observeSkip("busy")
		return TickBusy
	case s.lastRun == day:
		s.mu.Unlock()
		s.logger.Info("already ran today", "day", day)
		s.observeSkip("already_ran")
		return TickAlreadyRan
	}

	if s.calendar != nil && !s.calendar.IsEligible(local, loc) {
		s.mu.Unlock()
		s.logger.Info("day skipped", "day", day, "reason", s.calendar.Reason(local, loc))
		s.observeSkip("ineligible")
		return TickIneligible
	}

	// A failed run is retried on the next eligible day, not at the next tick.
	s.running = true
	s.lastRun = day
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return s.run(ctx, local)
}

func (s *Scheduler) run(ctx context.Context, day time.Time) TickOutcome {
	// Shutdown must not cut a run mid-transaction; only the timeout bounds it.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
	defer cancel()

	started := time.Now()
	report, err := s.runner.RunOnce(runCtx, day)
	elapsed := time.Since(started)

	if err != nil {
		s.logger.Error("run failed",
			"run_id", report.RunID,
			"day", day.Format(domain.ISODateLayout),
			"error_kind", domain.ErrorKind(err),
			"error", err,
			"new_dates", len(report.NewDates),
			"elapsed", elapsed)
		if s.metrics != nil {
			s.metrics.ObserveRun(string(TickFailed), elapsed)
		}
		return TickFailed
	}

	s.logger.Info("run completed",
		"run_id", report.RunID,
		"day", day.Format(domain.ISODateLayout),
		"observed", report.Observed,
		"new_dates", len(report.NewDates),
		"elapsed", elapsed)
	if s.metrics != nil {
		s.metrics.ObserveRun(string(TickSucceeded), elapsed)
	}
	return TickSucceeded
}

func (s *Scheduler) observeSkip(reason string) {
	if s.metrics != nil {
		s.metrics.ObserveSkip(reason)
	}
}
