package postgres

import (
	"context"
	"fmt"
	"proactiveCacher/domain"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RatingRepository struct {
	DB *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{DB: db}
}

// Upsert keeps one row per (user, video), overwriting the score on re-rating.
func (r *RatingRepository) Upsert(ctx context.Context, rating *domain.Rating) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	rating.UpdatedAt = time.Now()
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(rating).Error
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}

	return nil
}

// FindAll returns every rating; with validOnly, ratings whose user was
// deleted are left out.
func (r *RatingRepository) FindAll(ctx context.Context, validOnly bool) ([]domain.Rating, error) {
	var ratings []domain.Rating

	q := r.DB.WithContext(ctx).Order("id")
	if validOnly {
		q = q.Where("user_id IS NOT NULL AND user_id <> ''")
	}
	if err := q.Find(&ratings).Error; err != nil {
		return nil, err
	}

	return ratings, nil
}

func (r *RatingRepository) RatedVideoIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string

	err := r.DB.WithContext(ctx).Model(&domain.Rating{}).
		Where("user_id = ?", userID).
		Pluck("video_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query rated videos: %w", err)
	}

	return ids, nil
}

func (r *RatingRepository) PurgeOrphaned(ctx context.Context) (int64, error) {
	var purged int64

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where(
			"user_id IS NULL OR user_id = '' OR NOT EXISTS (SELECT 1 FROM users WHERE users.id = ratings.user_id)",
		).Delete(&domain.Rating{})
		if result.Error != nil {
			return result.Error
		}
		purged = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge orphaned ratings: %w", err)
	}

	return purged, nil
}
