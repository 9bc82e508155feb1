package postgres

import (
	"context"
	"fmt"
	"proactiveCacher/business/scheduler"
	"proactiveCacher/domain"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PushRecordRepository struct {
	DB *gorm.DB
}

func NewPushRecordRepository(db *gorm.DB) *PushRecordRepository {
	return &PushRecordRepository{DB: db}
}

func (r *PushRecordRepository) Save(ctx context.Context, record *domain.PushRecord) error {
	if err := r.DB.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save push record: %w", err)
	}

	return nil
}

// ExistsForTask reports whether a push record was already written for the
// task. It is served by the task_id index.
func (r *PushRecordRepository) ExistsForTask(ctx context.Context, taskID string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).
		Model(&domain.PushRecord{}).
		Where("task_id = ?", taskID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up push record: %w", err)
	}

	return count > 0, nil
}

// Recent returns the latest push records, newest first.
func (r *PushRecordRepository) Recent(ctx context.Context, userID string, limit int) ([]domain.PushRecord, error) {
	var records []domain.PushRecord

	q := r.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// ---- Pending pushes ----

// pendingPushRow holds at most one armed push per user.
type pendingPushRow struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	TaskID    string    `gorm:"column:task_id;not null"`
	FireAt    time.Time `gorm:"column:fire_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (pendingPushRow) TableName() string {
	return "pending_pushes"
}

// PendingPushStore is a scheduler.TaskStore backed by postgres.
type PendingPushStore struct {
	DB *gorm.DB
}

func NewPendingPushStore(db *gorm.DB) (*PendingPushStore, error) {
	if err := db.AutoMigrate(&pendingPushRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate pending_pushes: %w", err)
	}
	return &PendingPushStore{DB: db}, nil
}

func (s *PendingPushStore) Save(ctx context.Context, task scheduler.Task) error {
	row := pendingPushRow{
		UserID:    task.UserID,
		TaskID:    task.ID,
		FireAt:    task.FireAt,
		CreatedAt: task.CreatedAt,
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"task_id", "fire_at", "created_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save pending push: %w", err)
	}

	return nil
}

func (s *PendingPushStore) Delete(ctx context.Context, userID, taskID string) error {
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Delete(&pendingPushRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete pending push: %w", err)
	}

	return nil
}

func (s *PendingPushStore) List(ctx context.Context) ([]scheduler.Task, error) {
	var rows []pendingPushRow

	if err := s.DB.WithContext(ctx).Order("fire_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending pushes: %w", err)
	}

	tasks := make([]scheduler.Task, len(rows))
	for i, row := range rows {
		tasks[i] = scheduler.Task{
			ID:        row.TaskID,
			UserID:    row.UserID,
			FireAt:    row.FireAt,
			CreatedAt: row.CreatedAt,
		}
	}
	return tasks, nil
}
