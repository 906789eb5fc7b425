package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/waterworks/internal/models"
)

const (
	userKey  = "user"
	tokenKey = "token"
)

const (
	ReasonUnauthorized = "unauthorized"
	ReasonInvalidToken = "invalid_token"
	ReasonTokenExpired = "token_expired"
)

const (
	HeaderExpiringSoon = "X-Token-Expiring-Soon"
	HeaderExpiresIn    = "X-Token-Expires-In"
	HeaderExpiresAt    = "X-Token-Expires-At"
)

func UserFrom(c echo.Context) *models.User {
	u, _ := c.Get(userKey).(*models.User)
	return u
}

func TokenFrom(c echo.Context) *models.AccessToken {
	t, _ := c.Get(tokenKey).(*models.AccessToken)
	return t
}

// SetToken replaces the current token, e.g. after a refresh, so expiry
// headers describe the token the client now holds.
func SetToken(c echo.Context, t *models.AccessToken) {
	c.Set(tokenKey, t)
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func reject(c echo.Context, reason, msg string, extra echo.Map) error {
	body := echo.Map{"error": msg, "reason": reason}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(http.StatusUnauthorized, body)
}
