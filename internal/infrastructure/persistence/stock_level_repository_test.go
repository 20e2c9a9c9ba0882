package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func testStockLevel(t *testing.T) *inventory.StockLevel {
	t.Helper()

	level, err := inventory.NewStockLevel(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	return level
}

func TestGormStockLevelRepository_SaveWithLock(t *testing.T) {
	t.Run("succeeds when the stored version matches", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormStockLevelRepository(gormDB)

		level := testStockLevel(t)
		level.Version = 2 // incremented by the domain operation

		mock.ExpectExec(`UPDATE "stock_levels" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SaveWithLock(context.Background(), level)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns conflict when another transaction won", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormStockLevelRepository(gormDB)

		level := testStockLevel(t)
		level.Version = 2

		// Zero rows affected means the WHERE version clause did not match
		mock.ExpectExec(`UPDATE "stock_levels" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveWithLock(context.Background(), level)

		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates database errors", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormStockLevelRepository(gormDB)

		level := testStockLevel(t)
		level.Version = 2

		mock.ExpectExec(`UPDATE "stock_levels" SET`).
			WillReturnError(sql.ErrConnDone)

		err := repo.SaveWithLock(context.Background(), level)

		require.Error(t, err)
		assert.False(t, shared.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLevelRepository_FindByLocationAndProduct(t *testing.T) {
	t.Run("maps a row into the aggregate", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormStockLevelRepository(gormDB)

		tenantID := uuid.New()
		locationID := uuid.New()
		productID := uuid.New()
		id := uuid.New()

		rows := sqlmock.NewRows([]string{
			"id", "version", "tenant_id", "location_id", "product_id",
			"on_hand_quantity", "reserved_quantity", "average_cost", "reorder_level",
		}).AddRow(id, 3, tenantID, locationID, productID, "12.0000", "0", "5.5000", "4")

		mock.ExpectQuery(`SELECT .* FROM "stock_levels"`).
			WithArgs(tenantID, locationID, productID).
			WillReturnRows(rows)

		level, err := repo.FindByLocationAndProduct(context.Background(), tenantID, locationID, productID)

		require.NoError(t, err)
		assert.Equal(t, id, level.ID)
		assert.Equal(t, 3, level.Version)
		assert.True(t, level.OnHandQuantity.Equal(decimal.RequireFromString("12")))
		assert.True(t, level.AverageCost.Equal(decimal.RequireFromString("5.5")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for a missing pair", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormStockLevelRepository(gormDB)

		tenantID := uuid.New()
		locationID := uuid.New()
		productID := uuid.New()

		mock.ExpectQuery(`SELECT .* FROM "stock_levels"`).
			WithArgs(tenantID, locationID, productID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByLocationAndProduct(context.Background(), tenantID, locationID, productID)

		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStockLevelRepository_FindForUpdate(t *testing.T) {
	t.Run("locks the row on postgres", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormStockLevelRepository(gormDB)

		tenantID := uuid.New()
		locationID := uuid.New()
		productID := uuid.New()

		rows := sqlmock.NewRows([]string{
			"id", "version", "tenant_id", "location_id", "product_id",
			"on_hand_quantity", "reserved_quantity", "average_cost", "reorder_level",
		}).AddRow(uuid.New(), 1, tenantID, locationID, productID, "2", "0", "1", "0")

		mock.ExpectQuery(`SELECT .* FROM "stock_levels" .*FOR UPDATE`).
			WithArgs(tenantID, locationID, productID).
			WillReturnRows(rows)

		level, err := repo.FindForUpdate(context.Background(), tenantID, locationID, productID)

		require.NoError(t, err)
		assert.Equal(t, productID, level.ProductID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
