package usecase

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

type pubKey struct {
	date time.Time
	term string
}

// memoryStore is a transactional in-memory PublicationStore.
type memoryStore struct {
	mu      sync.Mutex
	records map[pubKey]domain.PublicationDate
	failOn  map[time.Time]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[pubKey]domain.PublicationDate{}, failOn: map[time.Time]error{}}
}

type stagedRecorder struct {
	staged map[pubKey]domain.PublicationDate
	failOn map[time.Time]error
}

func (r *stagedRecorder) RecordIfNew(_ context.Context, date time.Time, term string) (bool, error) {
	if err, ok := r.failOn[date]; ok {
		return false, err
	}
	key := pubKey{date: date, term: term}
	if _, ok := r.staged[key]; ok {
		return false, nil
	}
	r.staged[key] = domain.PublicationDate{Date: date, SearchTerm: term, FirstSeenAt: time.Now()}
	return true, nil
}

func (m *memoryStore) WithinTx(_ context.Context, fn func(rec ports.PublicationRecorder) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &stagedRecorder{staged: maps.Clone(m.records), failOn: m.failOn}
	if err := fn(rec); err != nil {
		return err
	}
	m.records = rec.staged
	return nil
}

func (m *memoryStore) RecordIfNew(ctx context.Context, date time.Time, term string) (bool, error) {
	var created bool
	err := m.WithinTx(ctx, func(rec ports.PublicationRecorder) error {
		var err error
		created, err = rec.RecordIfNew(ctx, date, term)
		return err
	})
	return created, err
}

func (m *memoryStore) ListAll(_ context.Context, term string) ([]domain.PublicationDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.PublicationDate
	for k, v := range m.records {
		if k.term == term {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryStore) Count(ctx context.Context, term string) (int, error) {
	all, err := m.ListAll(ctx, term)
	return len(all), err
}

type stubFetcher struct {
	raw   []string
	err   error
	calls int
}

func (f *stubFetcher) Fetch(context.Context, string) ([]string, error) {
	f.calls++
	return f.raw, f.err
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []ports.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg ports.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// weekendCalendar treats Saturdays, Sundays and the listed ISO dates as non-working days.
type weekendCalendar struct {
	holidays map[string]string
}

func (c weekendCalendar) Reason(day time.Time, loc *time.Location) string {
	local := day.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "weekend"
	}
	return c.holidays[local.Format(domain.ISODateLayout)]
}

func (c weekendCalendar) IsEligible(day time.Time, loc *time.Location) bool {
	return c.Reason(day, loc) == ""
}

type stubRunner struct {
	mu    sync.Mutex
	days  []time.Time
	err   error
	block chan struct{}
}

func (r *stubRunner) RunOnce(_ context.Context, day time.Time) (RunReport, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days = append(r.days, day)
	return RunReport{RunID: "test", Day: day}, r.err
}

func (r *stubRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.days)
}

type countingMetrics struct {
	mu            sync.Mutex
	runs          map[string]int
	skips         map[string]int
	newDates      int
	notifications map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{runs: map[string]int{}, skips: map[string]int{}, notifications: map[string]int{}}
}

func (m *countingMetrics) ObserveRun(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[outcome]++
}

func (m *countingMetrics) ObserveSkip(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skips[reason]++
}

func (m *countingMetrics) AddNewDates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newDates += n
}

func (m *countingMetrics) ObserveNotification(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[status]++
}

var errBoom = errors.New("boom")

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
