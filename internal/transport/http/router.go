package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/waterworks/internal/handlers"
	"github.com/Skotchmaster/waterworks/internal/middleware/auth"
)

type Deps struct {
	DB              *gorm.DB
	Gate            *auth.Gate
	AuthHandler     *handlers.AuthHandler
	ActivityHandler *handlers.ActivityHandler
	ReportHandler   *handlers.ReportHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		sqlDB, err := d.DB.DB()
		if err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		if err := sqlDB.PingContext(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/api")

	api.POST("/login", d.AuthHandler.Login)

	gated := api.Group("", d.Gate.RequireLogin)

	gated.POST("/logout", d.AuthHandler.LogOut)
	gated.POST("/logout-all", d.AuthHandler.LogOutAll)
	gated.POST("/refresh-token", d.AuthHandler.RefreshToken)
	gated.GET("/token-status", d.AuthHandler.TokenStatus)
	gated.GET("/user", d.AuthHandler.CurrentUser)

	staff := gated.Group("/reports/staff", auth.StaffOrAdmin())

	staff.POST("/monthly/:id/publish", d.ReportHandler.Publish)
	staff.POST("/monthly/:id/unpublish", d.ReportHandler.Unpublish)

	gated.DELETE("/reports/admin/monthly/:id", d.ReportHandler.Delete, auth.AdminOnly())

	admin := gated.Group("/admin", auth.AdminOnly())

	admin.DELETE("/cleanup-tokens", d.AuthHandler.CleanupExpiredTokens)
	admin.GET("/activity-logs", d.ActivityHandler.List)
	admin.GET("/activity-logs/search", d.ActivityHandler.Search)
}
