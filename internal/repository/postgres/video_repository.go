package postgres

import (
	"context"
	"errors"
	"fmt"
	"proactiveCacher/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VideoRepository struct {
	DB *gorm.DB
}

func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{DB: db}
}

// Create inserts the video unless its ID exists; created reports which.
func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) (bool, error) {
	result := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(video)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create video: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *VideoRepository) FindByID(ctx context.Context, id string) (domain.Video, error) {
	var video domain.Video

	err := r.DB.WithContext(ctx).First(&video, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Video{}, domain.ErrNotFound
		}
		return domain.Video{}, err
	}

	return video, nil
}

func (r *VideoRepository) FindAll(ctx context.Context) ([]domain.Video, error) {
	var videos []domain.Video

	if err := r.DB.WithContext(ctx).Order("upload_date, id").Find(&videos).Error; err != nil {
		return nil, err
	}

	return videos, nil
}

func (r *VideoRepository) UpdateCategory(ctx context.Context, id, category string) error {
	result := r.DB.WithContext(ctx).Model(&domain.Video{}).Where("id = ?", id).Update("category", category)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
