package router

import (
	"proactiveCacher/internal/rest"

	"github.com/labstack/echo/v4"
)

// SetupDeviceRoutes registers the endpoints the mobile app talks to. They
// live at the root because shipped devices use these exact paths.
func SetupDeviceRoutes(e *echo.Echo, users *rest.UserHandler, videos *rest.VideoHandler, deviceAuth, deviceAuthQuery echo.MiddlewareFunc) {
	e.POST("/register", users.Register)

	e.GET("/videos", videos.GetAllVideos, deviceAuth)
	e.GET("/thumbnail", videos.Thumbnail, deviceAuth)
	e.POST("/videos/rate", videos.Rate, deviceAuth)
	// players are handed a bare URL, so identity travels in the query
	e.GET("/stream", videos.Stream, deviceAuthQuery)

	e.POST("/userlogs", users.UploadUserLogs, deviceAuth)
	e.POST("/applogs", users.UploadAppLogs, deviceAuth)
}

func SetupAdminRoutes(e *echo.Echo, admin *rest.AdminHandler, cache *rest.CacheAdminHandler, users *rest.UserHandler, videos *rest.VideoHandler, authRequired, adminOnly echo.MiddlewareFunc) {
	e.POST("/admin/login", admin.Login)

	grp := e.Group("/admin", authRequired, adminOnly)
	grp.GET("/hitrate", cache.HitRate)
	grp.POST("/ratings/purge", cache.PurgeRatings)
	grp.POST("/decisions", cache.DecideAll)
	grp.GET("/pushes/pending", cache.PendingPushes)
	grp.GET("/pushes/history", cache.PushHistory)

	grp.GET("/users", users.GetAllUsers)
	grp.DELETE("/users/:id", users.DeleteUser)

	grp.POST("/videos", videos.AddVideo)
	grp.PATCH("/videos/:id/category", videos.BackfillCategory)
}

func SetupMetricsRoute(e *echo.Echo, h echo.HandlerFunc) {
	e.GET("/metrics", h)
}
