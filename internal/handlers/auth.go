package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/middleware/auth"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/service"
)

type AuthHandler struct {
	Auth   *service.AuthService
	Tokens *service.TokenService
}

func userBody(u *models.User) echo.Map {
	return echo.Map{
		"id":           u.ID,
		"name":         u.Name,
		"email":        u.Email,
		"role":         u.Role,
		"role_display": u.Role.DisplayName(),
	}
}

func (h *AuthHandler) now() time.Time {
	if h.Tokens.Now == nil {
		return time.Now().UTC()
	}
	return h.Tokens.Now().UTC()
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		l.Warn("bind failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.Auth.Login(ctx, req)
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "Validation failed", "details": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	l.Info("login succeeded", "status", 200, "user_id", res.User.ID, "remember_me", req.RememberMe)
	return c.JSON(http.StatusOK, echo.Map{
		"message":            "Login successful",
		"token":              res.Issued.Token,
		"expires_at":         formatTime(&res.Issued.ExpiresAt),
		"expires_in_minutes": service.MinutesUntil(h.now(), res.Issued.ExpiresAt),
		"user":               userBody(res.User),
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	user, tok := auth.UserFrom(c), auth.TokenFrom(c)

	if err := h.Tokens.Revoke(ctx, user, tok); err != nil {
		logging.FromContext(ctx).Error("logout failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "Logged out successfully",
		"logged_out_at": h.now().Format(time.RFC3339),
	})
}

func (h *AuthHandler) LogOutAll(c echo.Context) error {
	ctx := c.Request().Context()

	n, err := h.Tokens.RevokeAll(ctx, auth.UserFrom(c))
	if err != nil {
		logging.FromContext(ctx).Error("logout all failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":        "Logged out from all devices successfully",
		"revoked_tokens": n,
		"logged_out_at":  h.now().Format(time.RFC3339),
	})
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	ctx := c.Request().Context()
	tok := auth.TokenFrom(c)

	res, err := h.Tokens.Refresh(ctx, auth.UserFrom(c), tok)
	if err != nil {
		if errors.Is(err, service.ErrTokenMissing) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid token", "reason": auth.ReasonInvalidToken})
		}
		logging.FromContext(ctx).Error("refresh failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if !res.Refreshed {
		return c.JSON(http.StatusOK, echo.Map{
			"message":            "Token is still valid",
			"expires_at":         formatTime(res.ExpiresAt),
			"expires_in_minutes": res.MinutesRemaining,
		})
	}

	auth.SetToken(c, &models.AccessToken{
		Name:      service.TokenNameRefreshed,
		ExpiresAt: res.ExpiresAt,
	})
	return c.JSON(http.StatusOK, echo.Map{
		"message":            "Token refreshed successfully",
		"token":              res.Token,
		"expires_at":         formatTime(res.ExpiresAt),
		"expires_in_minutes": res.MinutesRemaining,
	})
}

func (h *AuthHandler) TokenStatus(c echo.Context) error {
	user := auth.UserFrom(c)
	st := h.Tokens.Status(auth.TokenFrom(c))

	return c.JSON(http.StatusOK, echo.Map{
		"token_name":         st.Name,
		"created_at":         formatTime(&st.CreatedAt),
		"expires_at":         formatTime(st.ExpiresAt),
		"expires_in_minutes": st.MinutesRemaining,
		"is_expiring_soon":   st.IsExpiringSoon,
		"last_used_at":       formatTime(st.LastUsedAt),
		"user": echo.Map{
			"id":   user.ID,
			"name": user.Name,
			"role": user.Role,
		},
	})
}

func (h *AuthHandler) CurrentUser(c echo.Context) error {
	tok := auth.TokenFrom(c)
	return c.JSON(http.StatusOK, echo.Map{
		"user": userBody(auth.UserFrom(c)),
		"token_info": echo.Map{
			"expires_at":   formatTime(tok.ExpiresAt),
			"last_used_at": formatTime(tok.LastUsedAt),
		},
	})
}

// CleanupExpiredTokens is the admin-facing variant of the sweep: expired
// tokens only, no confirmation.
func (h *AuthHandler) CleanupExpiredTokens(c echo.Context) error {
	ctx := c.Request().Context()

	report, err := h.Tokens.SweepExpired(ctx, service.SweepOptions{})
	if err != nil {
		logging.FromContext(ctx).Error("cleanup failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":        "Expired tokens cleaned up",
		"deleted_tokens": report.Deleted,
		"cleaned_at":     h.now().Format(time.RFC3339),
	})
}
