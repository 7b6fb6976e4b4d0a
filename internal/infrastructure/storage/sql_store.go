package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

const publicationsTable = "decree_publications"

// SQLStore persists publication dates in PostgreSQL or SQLite.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.PublicationStore = (*SQLStore)(nil)

// NewSQLStore wires a migrated sql.DB of the given dialect.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	var placeholder sq.PlaceholderFormat = sq.Dollar
	if dialect == SQLite {
		placeholder = sq.Question
	}
	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}
}

// WithinTx runs fn inside one transaction; any error rolls back every insert made by fn.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(rec ports.PublicationRecorder) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}

	if err := fn(&txRecorder{tx: tx, store: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, classify("rollback", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

// RecordIfNew inserts one pair in its own transaction.
func (s *SQLStore) RecordIfNew(ctx context.Context, date time.Time, searchTerm string) (bool, error) {
	var created bool
	err := s.WithinTx(ctx, func(rec ports.PublicationRecorder) error {
		var err error
		created, err = rec.RecordIfNew(ctx, date, searchTerm)
		return err
	})
	return created, err
}

// ListAll returns every recorded date for the term, newest first.
func (s *SQLStore) ListAll(ctx context.Context, searchTerm string) ([]domain.PublicationDate, error) {
	query, args, err := s.builder.
		Select("publication_date", "search_term", "first_seen_at").
		From(publicationsTable).
		Where(sq.Eq{"search_term": searchTerm}).
		OrderBy("publication_date DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list publications", err)
	}

	var result []domain.PublicationDate
	for rows.Next() {
		var pub domain.PublicationDate
		if err := rows.Scan(&pub.Date, &pub.SearchTerm, &pub.FirstSeenAt); err != nil {
			_ = rows.Close()
			return nil, classify("scan publication", err)
		}
		pub.Date = domain.DateOf(pub.Date)
		result = append(result, pub)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, classify("rows iteration", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, classify("close rows", closeErr)
	}

	return result, nil
}

// Count returns how many dates are recorded for the term.
func (s *SQLStore) Count(ctx context.Context, searchTerm string) (int, error) {
	query, args, err := s.builder.
		Select("COUNT(*)").
		From(publicationsTable).
		Where(sq.Eq{"search_term": searchTerm}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, classify("count publications", err)
	}
	return count, nil
}

type txRecorder struct {
	tx    *sql.Tx
	store *SQLStore
}

// RecordIfNew relies on the (publication_date, search_term) unique constraint:
// the conflicting insert is a no-op and returns no row, so two writers can never both see true.
func (r *txRecorder) RecordIfNew(ctx context.Context, date time.Time, searchTerm string) (bool, error) {
	query, args, err := r.store.builder.
		Insert(publicationsTable).
		Columns("publication_date", "search_term", "first_seen_at").
		Values(date.Format(domain.ISODateLayout), searchTerm, r.store.now().UTC()).
		Suffix("ON CONFLICT (publication_date, search_term) DO NOTHING RETURNING search_term").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	var inserted string
	err = r.tx.QueryRowContext(ctx, query, args...).Scan(&inserted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, classify("insert publication", err)
	}
	return true, nil
}
