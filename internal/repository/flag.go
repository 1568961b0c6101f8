package repository

import (
	"context"
	"errors"

	"flagstore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FlagInterface defines the interface for config flag persistence
type FlagInterface interface {
	GetByName(ctx context.Context, name string) (*model.ConfigFlag, error)
	Upsert(ctx context.Context, flag *model.ConfigFlag) error
	Create(ctx context.Context, flag *model.ConfigFlag) error
	List(ctx context.Context) ([]*model.ConfigFlag, error)
	Delete(ctx context.Context, name string) (bool, error)
	PingContext(ctx context.Context) error
	WithTx(tx *gorm.DB) FlagInterface
}

// FlagRepository implementation of FlagInterface for PostgreSQL
type FlagRepository struct {
	db *gorm.DB
}

// NewFlagRepository creates a new instance
func NewFlagRepository(db *gorm.DB) *FlagRepository {
	return &FlagRepository{db: db}
}

// GetByName retrieves the flag row by its name. A missing row is reported as
// (nil, nil) so callers can tell "not configured" apart from value=false.
func (r *FlagRepository) GetByName(ctx context.Context, name string) (*model.ConfigFlag, error) {
	var flag model.ConfigFlag
	if err := r.db.WithContext(ctx).Where("flag_name = ?", name).First(&flag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &flag, nil
}

// Upsert writes the full row in a single statement. The engine's row lock
// serializes concurrent writers on the same name, so value and updated_at
// always land together.
func (r *FlagRepository) Upsert(ctx context.Context, flag *model.ConfigFlag) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "flag_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(flag).Error
}

// Create inserts without upserting. A duplicate name surfaces as
// gorm.ErrDuplicatedKey (TranslateError is set on the connection).
func (r *FlagRepository) Create(ctx context.Context, flag *model.ConfigFlag) error {
	return r.db.WithContext(ctx).Create(flag).Error
}

// List returns every flag ordered by name, backed by the lookup index.
func (r *FlagRepository) List(ctx context.Context) ([]*model.ConfigFlag, error) {
	var flags []*model.ConfigFlag
	err := r.db.WithContext(ctx).Order("flag_name ASC").Find(&flags).Error
	return flags, err
}

// Delete removes the row if present and reports whether anything was removed.
func (r *FlagRepository) Delete(ctx context.Context, name string) (bool, error) {
	res := r.db.WithContext(ctx).Where("flag_name = ?", name).Delete(&model.ConfigFlag{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *FlagRepository) PingContext(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *FlagRepository) WithTx(tx *gorm.DB) FlagInterface {
	return &FlagRepository{db: tx}
}
