package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Fetcher    ports.Fetcher
	Detector   *ChangeDetector
	Notifier   *Notifier
	SearchTerm string
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

// Pipeline implements fetch, detect and notify for one search term.
type Pipeline struct {
	fetcher    ports.Fetcher
	detector   *ChangeDetector
	notifier   *Notifier
	searchTerm string
	metrics    ports.Metrics
	logger     *slog.Logger
}

// RunReport summarizes a pipeline execution.
type RunReport struct {
	RunID    string
	Day      time.Time
	Observed int
	NewDates []time.Time
	Notified bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		fetcher:    deps.Fetcher,
		detector:   deps.Detector,
		notifier:   deps.Notifier,
		searchTerm: deps.SearchTerm,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// SearchTerm returns the decree identifier the pipeline watches.
func (p *Pipeline) SearchTerm() string {
	return p.searchTerm
}

// RunOnce fetches the portal, records the dates and mails the new ones.
// Store changes are committed before notifying, so a delivery error leaves them in place.
func (p *Pipeline) RunOnce(ctx context.Context, day time.Time) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString(), Day: day}
	log := p.logger.With("run_id", report.RunID, "search_term", p.searchTerm, "day", day.Format(domain.ISODateLayout))

	if p.fetcher == nil || p.detector == nil {
		return report, fmt.Errorf("pipeline is not fully configured")
	}

	log.Info("run started")

	raw, err := p.fetcher.Fetch(ctx, p.searchTerm)
	if err != nil {
		return report, fmt.Errorf("fetch publications: %w", err)
	}
	report.Observed = len(raw)

	if len(raw) == 0 {
		log.Warn("no dates found on the portal")
		return report, nil
	}

	fresh, err := p.detector.WithLogger(log).DetectNew(ctx, raw, p.searchTerm)
	if err != nil {
		return report, fmt.Errorf("detect new publications: %w", err)
	}
	report.NewDates = fresh
	if p.metrics != nil {
		p.metrics.AddNewDates(len(fresh))
	}

	if len(fresh) == 0 {
		log.Info("run finished, nothing new")
		return report, nil
	}

	if p.notifier != nil {
		if err := p.notifier.WithLogger(log).Notify(ctx, fresh, p.searchTerm); err != nil {
			p.observeNotification("failed")
			return report, fmt.Errorf("notify: %w", err)
		}
		p.observeNotification("sent")
		report.Notified = true
	}

	log.Info("run finished", "new_dates", len(fresh), "notified", report.Notified)
	return report, nil
}

func (p *Pipeline) observeNotification(status string) {
	if p.metrics != nil {
		p.metrics.ObserveNotification(status)
	}
}
