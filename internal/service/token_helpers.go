package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/waterworks/internal/hash"
)

const secretBytes = 20

func newSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func formatPlaintext(id uint, secret string) string {
	return strconv.FormatUint(uint64(id), 10) + "|" + secret
}

// parsePlaintext splits "<id>|<secret>". ok is false for anything else.
func parsePlaintext(plain string) (id uint, secret string, ok bool) {
	idPart, secret, found := strings.Cut(plain, "|")
	if !found || secret == "" {
		return 0, "", false
	}
	n, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || n == 0 {
		return 0, "", false
	}
	return uint(n), secret, true
}

func secretMatches(storedHash, secret string) bool {
	return hash.EqualHex(storedHash, hash.Sha256Hex(secret))
}

// MinutesUntil returns whole minutes left until t, never negative.
func MinutesUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
