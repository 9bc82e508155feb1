package video

import (
	"context"
	"errors"
	"fmt"
	"proactiveCacher/domain"
	"proactiveCacher/pkg/logger"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidVideo = errors.New("invalid videoID")
	ErrNoMedia      = errors.New("video has no local media")
	ErrInvalidInput = errors.New("invalid request")
)

// VideoRepository contract interface
type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) (bool, error)
	FindByID(ctx context.Context, id string) (domain.Video, error)
	FindAll(ctx context.Context) ([]domain.Video, error)
	UpdateCategory(ctx context.Context, id, category string) error
}

type RatingRepository interface {
	Upsert(ctx context.Context, rating *domain.Rating) error
}

type videoService struct {
	videoRepo  VideoRepository
	ratingRepo RatingRepository
	validate   *validator.Validate
}

func NewVideoService(videoRepo VideoRepository, ratingRepo RatingRepository, validate *validator.Validate) *videoService {
	return &videoService{
		videoRepo:  videoRepo,
		ratingRepo: ratingRepo,
		validate:   validate,
	}
}

func (s *videoService) GetAllVideos(ctx context.Context) ([]domain.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	videos, err := s.videoRepo.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to retrieve videos", "error", err)
		return nil, err
	}
	return videos, nil
}

// GetVideoByID maps a missing video to ErrInvalidVideo.
func (s *videoService) GetVideoByID(ctx context.Context, id string) (domain.Video, error) {
	if id == "" {
		return domain.Video{}, ErrInvalidVideo
	}
	v, err := s.videoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Video{}, ErrInvalidVideo
		}
		logger.Error("Failed to retrieve video", "video_id", id, "error", err)
		return domain.Video{}, err
	}
	return v, nil
}

// MediaPath returns the local file for a video, or the thumbnail when
// thumbnail is set.
func (s *videoService) MediaPath(ctx context.Context, id string, thumbnail bool) (string, error) {
	v, err := s.GetVideoByID(ctx, id)
	if err != nil {
		return "", err
	}
	path := v.FilePath
	if thumbnail {
		path = v.ThumbnailPath
	}
	if path == nil || *path == "" {
		logger.Warn("Video has no local media", "video_id", id, "thumbnail", thumbnail)
		return "", ErrNoMedia
	}
	return *path, nil
}

type AddVideoRequest struct {
	ID            string  `json:"youtubeID" validate:"required,max=64"`
	Title         string  `json:"title" validate:"required,max=512"`
	FilePath      *string `json:"filePath"`
	ThumbnailPath *string `json:"thumbnailPath"`
	Category      *string `json:"category" validate:"omitempty,max=128"`
}

// AddVideo registers a video record. An existing ID is left unchanged and
// created is false.
func (s *videoService) AddVideo(ctx context.Context, req AddVideoRequest) (domain.Video, bool, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.Video{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	v := domain.Video{
		ID:            req.ID,
		Title:         req.Title,
		FilePath:      req.FilePath,
		ThumbnailPath: req.ThumbnailPath,
		Category:      req.Category,
	}
	created, err := s.videoRepo.Create(ctx, &v)
	if err != nil {
		logger.Error("Failed to add video", "video_id", req.ID, "error", err)
		return domain.Video{}, false, err
	}
	if !created {
		logger.Info("Video is already saved on server", "video_id", req.ID)
		existing, err := s.videoRepo.FindByID(ctx, req.ID)
		if err != nil {
			return domain.Video{}, false, err
		}
		return existing, false, nil
	}

	logger.Info("Video added", "video_id", v.ID)
	return v, true, nil
}

func (s *videoService) BackfillCategory(ctx context.Context, id, category string) error {
	if err := s.validate.Var(category, "required,max=128"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.videoRepo.UpdateCategory(ctx, id, category); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrInvalidVideo
		}
		logger.Error("Failed to backfill video category", "video_id", id, "error", err)
		return err
	}
	return nil
}

type RateRequest struct {
	VideoID string  `json:"videoID" validate:"required"`
	Rating  float64 `json:"rating" validate:"required,gt=0,lte=5"`
}

// Rate stores the user's score for a video, replacing any earlier score.
func (s *videoService) Rate(ctx context.Context, userID string, req RateRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.GetVideoByID(ctx, req.VideoID); err != nil {
		return err
	}

	r := domain.Rating{
		UserID:  &userID,
		VideoID: req.VideoID,
		Score:   req.Rating,
	}
	if err := s.ratingRepo.Upsert(ctx, &r); err != nil {
		logger.Error("Error saving rating",
			"user_id", userID,
			"video_id", req.VideoID,
			"error", err,
		)
		return err
	}

	logger.Info("Rating saved", "user_id", userID, "video_id", req.VideoID)
	return nil
}
