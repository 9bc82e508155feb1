package rest

import (
	"context"
	"errors"
	"net/http"
	"proactiveCacher/business/cachemanager"
	"proactiveCacher/domain"
	"strconv"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type (
	CacheAdminHandler struct {
		cacheService CacheService
		pushHistory  PushHistory
		timeout      time.Duration
	}

	CacheService interface {
		HitRate(ctx context.Context) (domain.HitRate, error)
		PurgeOrphanedRatings(ctx context.Context) (int64, error)
		DecideForAll(ctx context.Context) ([]domain.CachingDecision, int, error)
		PendingPushes() []domain.ScheduledPush
	}

	PushHistory interface {
		Recent(ctx context.Context, userID string, limit int) ([]domain.PushRecord, error)
	}

	BatchDecisionResponse struct {
		Decisions []domain.CachingDecision `json:"decisions"`
		Failed    int                      `json:"failed"`
	}
)

func NewCacheAdminHandler(cacheService CacheService, pushHistory PushHistory) *CacheAdminHandler {
	return &CacheAdminHandler{
		cacheService: cacheService,
		pushHistory:  pushHistory,
		timeout:      time.Minute,
	}
}

func (h *CacheAdminHandler) HitRate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	hr, err := h.cacheService.HitRate(ctx)
	if err != nil {
		if errors.Is(err, cachemanager.ErrNoHitRateData) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: "no data for hitrate yet"})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to evaluate hitrate"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(hr))
}

func (h *CacheAdminHandler) PurgeRatings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	n, err := h.cacheService.PurgeOrphanedRatings(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to purge ratings"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]int64{"purged": n}))
}

// DecideAll runs one caching decision per registered user.
func (h *CacheAdminHandler) DecideAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	decisions, failed, err := h.cacheService.DecideForAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(BatchDecisionResponse{
		Decisions: decisions,
		Failed:    failed,
	}))
}

func (h *CacheAdminHandler) PendingPushes(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.cacheService.PendingPushes()))
}

// PushHistory lists recent push outcomes, optionally for one user.
func (h *CacheAdminHandler) PushHistory(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "limit must be within 1..1000"})
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	records, err := h.pushHistory.Recent(ctx, c.QueryParam("user"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to load push history"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(records))
}
