package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
)

// RequireRole must run after RequireLogin.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := UserFrom(c)
			if u == nil {
				return reject(c, ReasonUnauthorized, "Unauthorized", nil)
			}
			role := models.ParseRole(string(u.Role))
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			logging.FromContext(c.Request().Context()).Warn("access_denied", "status", 403, "role", string(role))
			return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
		}
	}
}

func AdminOnly() echo.MiddlewareFunc {
	return RequireRole(models.RoleAdmin)
}

func StaffOrAdmin() echo.MiddlewareFunc {
	return RequireRole(models.RoleAdmin, models.RoleStaff)
}
