package rest

import (
	"context"
	"errors"
	"net/http"
	userService "proactiveCacher/business/user"
	"proactiveCacher/domain"
	"proactiveCacher/internal/middleware"
	"proactiveCacher/pkg/logger"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type UserService interface {
	Register(ctx context.Context, req userService.RegisterRequest) (domain.User, error)
	UploadConnectivityLogs(ctx context.Context, userID string, logs []domain.ConnectivityLog) error
	UploadAppUsageLogs(ctx context.Context, userID string, logs []domain.AppUsageLog) error
	GetAllUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type UserHandler struct {
	userService UserService
	timeout     time.Duration
}

func NewUserHandler(userService UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
		timeout:     10 * time.Second,
	}
}

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *UserHandler) Register(c echo.Context) error {
	var req userService.RegisterRequest

	if err := c.Bind(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "No userID in request"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	user, err := h.userService.Register(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, userService.ErrUserExists), errors.Is(err, userService.ErrInvalidInput):
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to register user"})
		}
	}

	return c.JSON(http.StatusCreated, MessageResponse{
		Message: "User " + user.ID + " successfully created",
	})
}

// UploadUserLogs stores connectivity samples for the authenticated device.
func (h *UserHandler) UploadUserLogs(c echo.Context) error {
	userID := c.Get(middleware.ContextUserID).(string)

	var logs []domain.ConnectivityLog
	if err := c.Bind(&logs); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.userService.UploadConnectivityLogs(ctx, userID, logs); err != nil {
		return h.uploadError(c, err)
	}

	return c.JSON(http.StatusCreated, MessageResponse{Message: "UserLogs saved"})
}

// UploadAppLogs stores app usage samples; a caching decision for the device
// follows in the background.
func (h *UserHandler) UploadAppLogs(c echo.Context) error {
	userID := c.Get(middleware.ContextUserID).(string)

	var logs []domain.AppUsageLog
	if err := c.Bind(&logs); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.userService.UploadAppUsageLogs(ctx, userID, logs); err != nil {
		return h.uploadError(c, err)
	}

	return c.JSON(http.StatusCreated, MessageResponse{Message: "AppUsageLogs saved"})
}

func (h *UserHandler) uploadError(c echo.Context, err error) error {
	if errors.Is(err, userService.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to save logs"})
}

func (h *UserHandler) GetAllUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	users, err := h.userService.GetAllUsers(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to get users"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(users))
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.userService.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("User deleted successfully"))
}
