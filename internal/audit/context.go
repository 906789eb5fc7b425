package audit

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/waterworks/internal/models"
)

// Actor is the authenticated user an audited action is attributed to.
type Actor struct {
	UserID uint
	Role   models.Role
}

func ActorOf(u *models.User) *Actor {
	if u == nil {
		return nil
	}
	return &Actor{UserID: u.ID, Role: u.Role}
}

type RequestInfo struct {
	IP        string
	UserAgent string
}

type actorKey struct{}
type requestKey struct{}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(actorKey{}).(*Actor)
	return a
}

func WithRequest(ctx context.Context, ri RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, ri)
}

func RequestFrom(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	ri, _ := ctx.Value(requestKey{}).(RequestInfo)
	return ri
}

// IPExtractor returns the peer address of the connection. When trusted proxy
// ranges are given, it returns the nearest X-Forwarded-For hop outside them.
// Forwarding headers from any other peer are ignored.
func IPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := []echo.TrustOption{echo.TrustLoopback(false), echo.TrustLinkLocal(false), echo.TrustPrivateNet(false)}
	for _, cidr := range trustedProxies {
		_, n, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("audit: trusted proxy %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

// RequestContext copies the client address and user agent into the request
// context so code below the HTTP layer can enrich audit entries. A nil
// extractor means the connection peer address.
func RequestContext(extract echo.IPExtractor) echo.MiddlewareFunc {
	if extract == nil {
		extract = echo.ExtractIPDirect()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := WithRequest(req.Context(), RequestInfo{IP: extract(req), UserAgent: req.UserAgent()})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
