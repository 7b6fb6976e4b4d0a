package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

// ChangeDetector finds the publication dates that were never recorded before.
type ChangeDetector struct {
	store  ports.PublicationStore
	logger *slog.Logger
}

// NewChangeDetector wires the detector to a publication store.
func NewChangeDetector(store ports.PublicationStore, logger *slog.Logger) *ChangeDetector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ChangeDetector{store: store, logger: logger}
}

// WithLogger returns a copy of the detector logging through logger.
func (d *ChangeDetector) WithLogger(logger *slog.Logger) *ChangeDetector {
	clone := *d
	clone.logger = logger
	return &clone
}

// DetectNew normalizes the batch and records every date in one transaction.
// It returns the dates this call recorded for the first time, newest first.
// If any insert fails nothing is committed and the returned slice is nil.
func (d *ChangeDetector) DetectNew(ctx context.Context, batch []string, searchTerm string) ([]time.Time, error) {
	dates := Normalize(batch, d.logger)
	if len(dates) == 0 {
		return nil, nil
	}

	var fresh []time.Time
	err := d.store.WithinTx(ctx, func(rec ports.PublicationRecorder) error {
		fresh = fresh[:0]
		for _, date := range dates {
			created, err := rec.RecordIfNew(ctx, date, searchTerm)
			if err != nil {
				return fmt.Errorf("record %s: %w", date.Format(domain.ISODateLayout), err)
			}
			if created {
				fresh = append(fresh, date)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, date := range fresh {
		d.logger.Info("new publication found", "date", date.Format(domain.DateLayout), "search_term", searchTerm)
	}
	d.logger.Info("publications recorded", "checked", len(dates), "new", len(fresh))
	return fresh, nil
}
