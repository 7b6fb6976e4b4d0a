package storage

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

// openSQLiteStore creates a migrated file-backed SQLite store for testing.
func openSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	ctx := context.Background()
	conn := Connection{
		Dialect: SQLite,
		DSN:     "file:" + filepath.Join(t.TempDir(), "publications.db") + "?_busy_timeout=5000",
	}

	version, err := Migrate(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, uint(1), version)

	db, err := Open(ctx, conn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSQLStore(db, SQLite)
}

func TestSQLiteRecordIfNewIsIdempotent(t *testing.T) {
	store := openSQLiteStore(t)
	ctx := context.Background()

	created, err := store.RecordIfNew(ctx, march12, "46930")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.RecordIfNew(ctx, march12, "46930")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = store.RecordIfNew(ctx, march12, "47000")
	require.NoError(t, err)
	assert.True(t, created, "uniqueness is per (date, search term)")

	count, err := store.Count(ctx, "46930")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteConcurrentRecordIfNewYieldsSingleWinner(t *testing.T) {
	store := openSQLiteStore(t)
	ctx := context.Background()

	const workers = 16
	var (
		wg    sync.WaitGroup
		wins  atomic.Int32
		start = make(chan struct{})
		errs  = make(chan error, workers)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			created, err := store.RecordIfNew(ctx, jan5, "46930")
			if err != nil {
				errs <- err
				return
			}
			if created {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), wins.Load())

	count, err := store.Count(ctx, "46930")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteWithinTxRollsBackEverything(t *testing.T) {
	store := openSQLiteStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(rec ports.PublicationRecorder) error {
		created, err := rec.RecordIfNew(ctx, march12, "46930")
		require.NoError(t, err)
		require.True(t, created)

		// The empty term breaks the CHECK constraint.
		_, err = rec.RecordIfNew(ctx, jan5, "")
		return err
	})
	require.ErrorIs(t, err, domain.ErrStorageIntegrity)

	count, err := store.Count(ctx, "46930")
	require.NoError(t, err)
	assert.Zero(t, count, "the first insert must be rolled back")
}

func TestSQLiteListAllNewestFirst(t *testing.T) {
	store := openSQLiteStore(t)
	ctx := context.Background()
	store.now = func() time.Time { return seenAt }

	for _, d := range []time.Time{jan5, march12} {
		_, err := store.RecordIfNew(ctx, d, "46930")
		require.NoError(t, err)
	}

	got, err := store.ListAll(ctx, "46930")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, march12, got[0].Date)
	assert.Equal(t, jan5, got[1].Date)
	assert.Equal(t, "46930", got[0].SearchTerm)
	assert.True(t, seenAt.Equal(got[0].FirstSeenAt), "first_seen_at = %v", got[0].FirstSeenAt)

	empty, err := store.ListAll(ctx, "00000")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMigrateIsRepeatable(t *testing.T) {
	ctx := context.Background()
	conn := Connection{Dialect: SQLite, DSN: "file:" + filepath.Join(t.TempDir(), "m.db")}

	_, err := Migrate(ctx, conn)
	require.NoError(t, err)

	version, err := Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}
