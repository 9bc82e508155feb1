package middleware

import (
	"net/http"
	"proactiveCacher/domain"
	"proactiveCacher/pkg/logger"
	"proactiveCacher/pkg/utils"
	"strings"
	"time"

	jsonres "proactiveCacher/pkg/response"

	"github.com/labstack/echo/v4"
)

const (
	// DeviceUserHeader names the registered user on device requests.
	DeviceUserHeader = "User"
	RoleAdmin        = "ADMIN"

	ContextUserID = "user_id"
	ContextRole   = "role"
)

// DeviceAuthenticator resolves a device identity to a registered user.
type DeviceAuthenticator interface {
	Authenticate(userID string) (domain.User, error)
}

// DeviceAuth accepts requests whose User header names a registered user.
func DeviceAuth(auth DeviceAuthenticator) echo.MiddlewareFunc {
	return deviceAuth(auth, func(c echo.Context) string {
		return c.Request().Header.Get(DeviceUserHeader)
	})
}

// DeviceAuthQuery reads the identity from the user query parameter, for
// media players that can only be handed a URL.
func DeviceAuthQuery(auth DeviceAuthenticator) echo.MiddlewareFunc {
	return deviceAuth(auth, func(c echo.Context) string {
		return c.QueryParam("user")
	})
}

func deviceAuth(auth DeviceAuthenticator, identity func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := auth.Authenticate(identity(c))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid userID", nil,
				))
			}

			c.Set(ContextUserID, user.ID)
			return next(c)
		}
	}
}

// AdminAuth validates the bearer JWT issued by the admin login.
func AdminAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Missing authorization header", nil,
				))
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid authorization format", nil,
				))
			}

			claims, err := utils.ParseJWT(secret, tokenParts[1])
			if err != nil {
				logger.Warn("Rejected admin token", "error", err)
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid token", nil,
				))
			}

			expAt, err := claims.GetExpirationTime()
			if err != nil || expAt == nil || time.Now().After(expAt.Time) {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "Token expired", nil,
				))
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextRole, claims.Role)

			return next(c)
		}
	}
}

func AdminOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roleStr, ok := c.Get(ContextRole).(string)
			if !ok || strings.ToUpper(roleStr) != RoleAdmin {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "Admin access required", nil,
				))
			}

			return next(c)
		}
	}
}
