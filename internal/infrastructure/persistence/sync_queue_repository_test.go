package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/syncqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSyncQueueRepository_NextForTenant(t *testing.T) {
	columns := []string{
		"id", "tenant_id", "sequence", "operation", "idempotency_key",
		"payload", "status", "attempts", "max_attempts", "next_attempt_at",
	}

	t.Run("returns the oldest pending item", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormSyncQueueRepository(gormDB)

		tenantID := uuid.New()
		id := uuid.New()

		rows := sqlmock.NewRows(columns).
			AddRow(id, tenantID, 7, "sale", "op-7", []byte(`{}`), "pending", 0, 5, nil)

		mock.ExpectQuery(`SELECT .* FROM "sync_items"`).
			WithArgs(tenantID, "completed", "dead").
			WillReturnRows(rows)

		item, err := repo.NextForTenant(context.Background(), tenantID, time.Now())

		require.NoError(t, err)
		assert.Equal(t, id, item.ID)
		assert.Equal(t, int64(7), item.Sequence)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a backing-off head blocks the whole tenant queue", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormSyncQueueRepository(gormDB)

		tenantID := uuid.New()
		notYet := time.Now().Add(time.Minute)

		// The head is a failed item whose retry is not due yet. Later pending
		// items exist but must not be returned out of order.
		rows := sqlmock.NewRows(columns).
			AddRow(uuid.New(), tenantID, 7, "sale", "op-7", []byte(`{}`), "failed", 2, 5, notYet)

		mock.ExpectQuery(`SELECT .* FROM "sync_items"`).
			WithArgs(tenantID, "completed", "dead").
			WillReturnRows(rows)

		_, err := repo.NextForTenant(context.Background(), tenantID, time.Now())

		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when the queue is drained", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormSyncQueueRepository(gormDB)

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT .* FROM "sync_items"`).
			WithArgs(tenantID, "completed", "dead").
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.NextForTenant(context.Background(), tenantID, time.Now())

		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSyncQueueRepository_Enqueue(t *testing.T) {
	t.Run("maps a duplicate idempotency key to a conflict", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormSyncQueueRepository(gormDB)

		item, err := syncqueue.NewSyncItem(uuid.New(), syncqueue.OperationSale, "op-1", []byte(`{}`))
		require.NoError(t, err)

		mock.ExpectQuery(`INSERT INTO "sync_items"`).
			WillReturnError(errDuplicate{})

		err = repo.Enqueue(context.Background(), item)

		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
	})
}

// errDuplicate mimics a postgres unique index violation
type errDuplicate struct{}

func (errDuplicate) Error() string {
	return `pq: duplicate key value violates unique constraint "idx_sync_items_tenant_key"`
}
