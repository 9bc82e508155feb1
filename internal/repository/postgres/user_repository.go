package postgres

import (
	"context"
	"errors"
	"fmt"
	"proactiveCacher/domain"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		DB: db,
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	var user domain.User

	err := r.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}

	return user, nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]domain.User, error) {
	var users []domain.User

	if err := r.DB.WithContext(ctx).Order("created_at, id").Find(&users).Error; err != nil {
		return nil, err
	}

	return users, nil
}

// Delete removes the user with its logs and cached-video links in one
// transaction. Its ratings are kept with a NULL owner.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Rating{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return fmt.Errorf("failed to orphan ratings: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.ConnectivityLog{}).Error; err != nil {
			return fmt.Errorf("failed to delete connectivity logs: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.AppUsageLog{}).Error; err != nil {
			return fmt.Errorf("failed to delete app usage logs: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&cachedVideoRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete cached videos: %w", err)
		}

		result := tx.Delete(&domain.User{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

const cachedVideosTable = "user_cached_videos"

type cachedVideoRow struct {
	UserID  string `gorm:"column:user_id;primaryKey"`
	VideoID string `gorm:"column:video_id;primaryKey"`
}

func (cachedVideoRow) TableName() string {
	return cachedVideosTable
}

func (r *UserRepository) CachedVideoIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string

	err := r.DB.WithContext(ctx).Table(cachedVideosTable).
		Where("user_id = ?", userID).
		Pluck("video_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cached videos: %w", err)
	}

	return ids, nil
}

// AppendCachedVideo links a pushed video to the user. Appending a video that
// is already linked is a no-op.
func (r *UserRepository) AppendCachedVideo(ctx context.Context, userID, videoID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		if err := tx.Model(&domain.Video{}).Where("id = ?", videoID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("video %s: %w", videoID, domain.ErrNotFound)
		}

		row := cachedVideoRow{UserID: userID, VideoID: videoID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to append cached video: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) Flag(ctx context.Context, userID, reason string) error {
	result := r.DB.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{
			"flagged_at":  time.Now(),
			"flag_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
