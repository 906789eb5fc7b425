// Package geo turns client IP addresses into a coarse "city, country" label
// for the activity log. Lookups never fail: every error degrades to
// UnknownLocation.
package geo

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Skotchmaster/waterworks/internal/logging"
)

const UnknownLocation = "Unknown Location"

type Locator interface {
	Locate(ctx context.Context, ip string) string
}

// Lookup is a remote source of locations. Implementations honour the ctx
// deadline.
type Lookup interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

// Classify resolves addresses that need no remote call. ok is false when the
// address is public and has to be looked up.
func Classify(ip string) (label string, ok bool) {
	ip = strings.TrimSpace(ip)
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return UnknownLocation, true
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() || parsed.IsUnspecified() {
		return fmt.Sprintf("Local Network (%s)", ip), true
	}
	return "", false
}

type Resolver struct {
	Remote  Lookup
	Timeout time.Duration
}

func NewResolver(remote Lookup, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Resolver{Remote: remote, Timeout: timeout}
}

func (r *Resolver) Locate(ctx context.Context, ip string) string {
	if label, ok := Classify(ip); ok {
		return label
	}
	if r.Remote == nil {
		return UnknownLocation
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	loc, err := r.Remote.Lookup(ctx, ip)
	if err != nil {
		logging.FromContext(ctx).Warn("geo_lookup_failed", "ip", ip, "error", err)
		return UnknownLocation
	}
	if strings.TrimSpace(loc) == "" {
		return UnknownLocation
	}
	return loc
}

// Static always answers with the same label. Useful when lookups are
// disabled.
type Static string

func (s Static) Locate(context.Context, string) string { return string(s) }
