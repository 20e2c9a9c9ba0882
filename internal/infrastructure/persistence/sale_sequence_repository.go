package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/sales"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// saleNumberSequence is one per-tenant-per-day counter row. The row is locked
// and incremented inside the sale commit transaction, so two concurrent
// commits can never draw the same number. A rolled-back commit leaves a gap
// in the numbering, which is acceptable.
type saleNumberSequence struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Day       string    `gorm:"type:varchar(8);primaryKey"` // YYYYMMDD
	NextValue int64     `gorm:"not null;default:1"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (saleNumberSequence) TableName() string {
	return "sale_number_sequences"
}

// GormSaleNumberSequenceRepository implements NumberSequenceRepository using GORM
type GormSaleNumberSequenceRepository struct {
	db *gorm.DB
}

// NewGormSaleNumberSequenceRepository creates a new GormSaleNumberSequenceRepository
func NewGormSaleNumberSequenceRepository(db *gorm.DB) *GormSaleNumberSequenceRepository {
	return &GormSaleNumberSequenceRepository{db: db}
}

// Next returns the next sale number for the tenant and day, in the form
// <prefix>-<YYYYMMDD>-<NNNN>. The counter row is created on first use.
func (r *GormSaleNumberSequenceRepository) Next(ctx context.Context, tenantID uuid.UUID, prefix string, day time.Time) (string, error) {
	dayKey := day.Format("20060102")

	// Insert the counter row if it does not exist yet; concurrent inserters
	// race harmlessly, the loser just finds the winner's row below.
	seed := saleNumberSequence{TenantID: tenantID, Day: dayKey, NextValue: 1, UpdatedAt: time.Now()}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil && !isDuplicateKey(err) {
		return "", err
	}

	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var seq saleNumberSequence
	if err := query.
		Where("tenant_id = ? AND day = ?", tenantID, dayKey).
		First(&seq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("sale number sequence row missing for tenant %s day %s", tenantID, dayKey)
		}
		return "", err
	}

	value := seq.NextValue
	if err := r.db.WithContext(ctx).
		Model(&saleNumberSequence{}).
		Where("tenant_id = ? AND day = ?", tenantID, dayKey).
		Updates(map[string]interface{}{
			"next_value": value + 1,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%04d", prefix, dayKey, value), nil
}

// Ensure GormSaleNumberSequenceRepository implements NumberSequenceRepository
var _ sales.NumberSequenceRepository = (*GormSaleNumberSequenceRepository)(nil)
