package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/waterworks/internal/models"
)

var ErrEnvelopeTampered = errors.New("audit: envelope signature does not match entry")

// Envelope is the wire form of an audit entry on the event stream. The
// signature binds the event id and a digest of the entry, so consumers can
// detect forged or altered events.
type Envelope struct {
	EventID   string              `json:"event_id"`
	Signature string              `json:"signature"`
	Entry     *models.ActivityLog `json:"entry"`
}

type EnvelopeClaims struct {
	Action   string `json:"act"`
	Table    string `json:"tbl,omitempty"`
	RecordID uint64 `json:"rid,omitempty"`
	Digest   string `json:"dig"`
	jwt.RegisteredClaims
}

type Signer struct {
	Secret []byte
	Now    func() time.Time
}

func digest(entry *models.ActivityLog) (string, error) {
	b, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Signer) Seal(entry *models.ActivityLog) (*Envelope, error) {
	if len(s.Secret) == 0 {
		return nil, errors.New("audit: signing secret is empty")
	}
	dig, err := digest(entry)
	if err != nil {
		return nil, fmt.Errorf("audit: digest: %w", err)
	}

	claims := EnvelopeClaims{
		Action: string(entry.Action),
		Digest: dig,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	if entry.UserID != nil {
		claims.Subject = strconv.FormatUint(uint64(*entry.UserID), 10)
	}
	if entry.Table != nil {
		claims.Table = *entry.Table
	}
	if entry.RecordID != nil {
		claims.RecordID = *entry.RecordID
	}

	sig, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return nil, fmt.Errorf("audit: sign: %w", err)
	}
	return &Envelope{EventID: claims.ID, Signature: sig, Entry: entry}, nil
}

func (s *Signer) Verify(env *Envelope) (*EnvelopeClaims, error) {
	if env == nil || env.Entry == nil {
		return nil, errors.New("audit: empty envelope")
	}
	var claims EnvelopeClaims
	_, err := jwt.ParseWithClaims(env.Signature, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return s.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: invalid signature: %w", err)
	}

	dig, err := digest(env.Entry)
	if err != nil {
		return nil, fmt.Errorf("audit: digest: %w", err)
	}
	if claims.ID != env.EventID || claims.Digest != dig {
		return nil, ErrEnvelopeTampered
	}
	return &claims, nil
}
