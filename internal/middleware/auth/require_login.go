package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/waterworks/internal/audit"
	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/service"
)

type Gate struct {
	Tokens *service.TokenService
}

// RequireLogin validates the bearer token before the handler runs and
// annotates successful responses when the token is about to expire.
func (g *Gate) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("mw", "token_gate")

		sess, err := g.Tokens.Authenticate(ctx, bearerToken(c))
		switch {
		case errors.Is(err, service.ErrTokenExpired):
			l.Info("token_expired", "token_id", sess.Token.ID, "user_id", sess.User.ID)
			return reject(c, ReasonTokenExpired, "Token has expired", echo.Map{
				"expired_at": sess.Token.ExpiresAt.UTC().Format(time.RFC3339),
				"message":    "Please login again",
			})
		case errors.Is(err, service.ErrTokenMissing):
			l.Warn("invalid_token", "status", 401)
			return reject(c, ReasonInvalidToken, "Invalid token", nil)
		case errors.Is(err, service.ErrUnauthorized):
			return reject(c, ReasonUnauthorized, "Unauthorized", nil)
		case err != nil:
			l.Error("token_lookup_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}

		if err := g.Tokens.Touch(ctx, sess.Token); err != nil {
			l.Warn("last_used_stamp_failed", "token_id", sess.Token.ID, "error", err)
		}

		c.Set(userKey, sess.User)
		c.Set(tokenKey, sess.Token)
		ctx = audit.WithActor(ctx, audit.ActorOf(sess.User))
		ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", sess.User.ID))
		c.SetRequest(c.Request().WithContext(ctx))

		c.Response().Before(func() {
			if c.Response().Status >= http.StatusBadRequest {
				return
			}
			tok := TokenFrom(c)
			if tok == nil || tok.ExpiresAt == nil {
				return
			}
			minutes, soon := g.Tokens.ExpiringSoon(tok)
			if !soon {
				return
			}
			h := c.Response().Header()
			h.Set(HeaderExpiringSoon, "true")
			h.Set(HeaderExpiresIn, strconv.Itoa(minutes))
			h.Set(HeaderExpiresAt, tok.ExpiresAt.UTC().Format(time.RFC3339))
		})

		return next(c)
	}
}
