package postgres

import (
	"context"
	"fmt"
	"proactiveCacher/domain"

	"gorm.io/gorm"
)

const logBatchSize = 500

type LogRepository struct {
	DB *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{DB: db}
}

// CreateConnectivityLogs appends the whole upload or nothing.
func (r *LogRepository) CreateConnectivityLogs(ctx context.Context, logs []domain.ConnectivityLog) error {
	if len(logs) == 0 {
		return nil
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&logs, logBatchSize).Error; err != nil {
			return fmt.Errorf("failed to save connectivity logs: %w", err)
		}
		return nil
	})
}

func (r *LogRepository) CreateUsageLogs(ctx context.Context, logs []domain.AppUsageLog) error {
	if len(logs) == 0 {
		return nil
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&logs, logBatchSize).Error; err != nil {
			return fmt.Errorf("failed to save app usage logs: %w", err)
		}
		return nil
	})
}

func (r *LogRepository) FindConnectivityLogs(ctx context.Context, userID string) ([]domain.ConnectivityLog, error) {
	var logs []domain.ConnectivityLog

	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("time_stamp").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *LogRepository) FindAllUsageLogs(ctx context.Context) ([]domain.AppUsageLog, error) {
	var logs []domain.AppUsageLog

	if err := r.DB.WithContext(ctx).Order("app_opening_time").Find(&logs).Error; err != nil {
		return nil, err
	}

	return logs, nil
}
