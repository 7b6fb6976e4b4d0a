package ports

import (
	"context"
	"time"

	"DecreeWatcher/internal/domain"
)

// Fetcher pulls the raw date strings for a search term from the gazette portal.
// Errors wrap domain.ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, searchTerm string) ([]string, error)
}

// PublicationRecorder is the write side of the publication store, valid inside one transaction.
type PublicationRecorder interface {
	// RecordIfNew inserts (date, searchTerm) unless it already exists and reports whether
	// this call created the record. The insert is atomic: concurrent callers with the
	// same pair see exactly one true.
	RecordIfNew(ctx context.Context, date time.Time, searchTerm string) (bool, error)
}

// PublicationStore persists every publication date ever observed.
type PublicationStore interface {
	PublicationRecorder
	// WithinTx runs fn in a single transaction, committing only when fn returns nil.
	WithinTx(ctx context.Context, fn func(rec PublicationRecorder) error) error
	ListAll(ctx context.Context, searchTerm string) ([]domain.PublicationDate, error)
	Count(ctx context.Context, searchTerm string) (int, error)
}

// Message is a composed notification ready for a transport.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a message through an outbound relay.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// BusinessCalendar decides whether a day is a working day.
type BusinessCalendar interface {
	IsEligible(day time.Time, loc *time.Location) bool
	// Reason explains why a day is not eligible ("weekend" or the holiday name); empty when eligible.
	Reason(day time.Time, loc *time.Location) string
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Metrics receives pipeline and scheduler observations.
type Metrics interface {
	ObserveRun(outcome string, elapsed time.Duration)
	ObserveSkip(reason string)
	AddNewDates(n int)
	ObserveNotification(status string)
}
