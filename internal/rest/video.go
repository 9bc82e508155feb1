package rest

import (
	"context"
	"errors"
	"net/http"
	videoService "proactiveCacher/business/video"
	"proactiveCacher/domain"
	"proactiveCacher/internal/middleware"
	"proactiveCacher/pkg/logger"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type VideoService interface {
	GetAllVideos(ctx context.Context) ([]domain.Video, error)
	MediaPath(ctx context.Context, id string, thumbnail bool) (string, error)
	AddVideo(ctx context.Context, req videoService.AddVideoRequest) (domain.Video, bool, error)
	BackfillCategory(ctx context.Context, id, category string) error
	Rate(ctx context.Context, userID string, req videoService.RateRequest) error
}

type VideoHandler struct {
	videoService VideoService
	timeout      time.Duration
}

func NewVideoHandler(videoService VideoService) *VideoHandler {
	return &VideoHandler{
		videoService: videoService,
		timeout:      10 * time.Second,
	}
}

// GetAllVideos returns the bare video list devices expect.
func (h *VideoHandler) GetAllVideos(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	videos, err := h.videoService.GetAllVideos(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to retrieve videos"})
	}

	return c.JSON(http.StatusOK, videos)
}

func (h *VideoHandler) Thumbnail(c echo.Context) error {
	return h.serveMedia(c, true, "image/jpeg")
}

// Stream serves the video file; Range requests get partial content.
func (h *VideoHandler) Stream(c echo.Context) error {
	return h.serveMedia(c, false, "video/mp4")
}

func (h *VideoHandler) serveMedia(c echo.Context, thumbnail bool, contentType string) error {
	videoID := c.QueryParam("videoID")
	if videoID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "No videoID in query"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	path, err := h.videoService.MediaPath(ctx, videoID, thumbnail)
	if err != nil {
		if errors.Is(err, videoService.ErrInvalidVideo) || errors.Is(err, videoService.ErrNoMedia) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "Invalid videoID"})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to retrieve video"})
	}

	logger.Info("Serving media",
		"user_id", c.Get(middleware.ContextUserID),
		"video_id", videoID,
		"thumbnail", thumbnail,
	)
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	return c.File(path)
}

func (h *VideoHandler) Rate(c echo.Context) error {
	userID := c.Get(middleware.ContextUserID).(string)

	var req videoService.RateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.videoService.Rate(ctx, userID, req); err != nil {
		switch {
		case errors.Is(err, videoService.ErrInvalidVideo):
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "Invalid videoID"})
		case errors.Is(err, videoService.ErrInvalidInput):
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to save rating"})
		}
	}

	return c.JSON(http.StatusCreated, MessageResponse{Message: "Rating saved"})
}

func (h *VideoHandler) AddVideo(c echo.Context) error {
	var req videoService.AddVideoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	video, created, err := h.videoService.AddVideo(ctx, req)
	if err != nil {
		if errors.Is(err, videoService.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to add video"})
	}

	if !created {
		return c.JSON(http.StatusOK, fres.Response.StatusOK(video))
	}
	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(video))
}

type BackfillCategoryRequest struct {
	Category string `json:"category"`
}

func (h *VideoHandler) BackfillCategory(c echo.Context) error {
	var req BackfillCategoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.videoService.BackfillCategory(ctx, c.Param("id"), req.Category); err != nil {
		switch {
		case errors.Is(err, videoService.ErrInvalidVideo):
			return c.JSON(http.StatusNotFound, ResponseError{Message: "video not found"})
		case errors.Is(err, videoService.ErrInvalidInput):
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to update category"})
		}
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("Category updated"))
}
