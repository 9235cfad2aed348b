package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/yellowcard/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresKVRepository is the durable key-value store for read markers on PostgreSQL.
type PostgresKVRepository struct {
	db *gorm.DB
}

// NewPostgresKVRepository creates a new PostgresKVRepository
func NewPostgresKVRepository(db *gorm.DB) *PostgresKVRepository {
	return &PostgresKVRepository{db: db}
}

// Get returns the value stored under key
func (r *PostgresKVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var marker models.ReadMarker
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&marker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return marker.Value, true, nil
}

// Set stores value under key, replacing any previous value
func (r *PostgresKVRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.ReadMarker{Key: key, Value: value, UpdatedAt: time.Now()}).Error
}
