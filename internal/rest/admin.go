package rest

import (
	"crypto/subtle"
	"net/http"
	"proactiveCacher/internal/middleware"
	"proactiveCacher/pkg/logger"
	"proactiveCacher/pkg/utils"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type AdminCredentials struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

type AdminHandler struct {
	creds     AdminCredentials
	validator *validator.Validate
}

func NewAdminHandler(creds AdminCredentials) *AdminHandler {
	return &AdminHandler{
		creds:     creds,
		validator: validator.New(),
	}
}

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AdminHandler) Login(c echo.Context) error {
	var req AdminLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if h.creds.PasswordHash == "" {
		return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: "admin login is not configured"})
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.creds.Username)) == 1
	passOK := utils.CheckPassword(req.Password, h.creds.PasswordHash)
	if !userOK || !passOK {
		logger.Warn("Rejected admin login", "username", req.Username, "ip", c.RealIP())
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "invalid credentials"})
	}

	token, err := utils.GenerateJWT(h.creds.JWTSecret, req.Username, middleware.RoleAdmin, h.creds.TokenTTL)
	if err != nil {
		logger.Error("Failed to generate admin token", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to generate token"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(AdminLoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.creds.TokenTTL),
	}))
}
