package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/waterworks/internal/audit"
	"github.com/Skotchmaster/waterworks/internal/hash"
	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/repo"
)

const (
	TokenNameLogin     = "auth-token"
	TokenNameRefreshed = "auth-token-refreshed"
)

type Recorder interface {
	Record(ctx context.Context, ev audit.Event)
}

type Policy struct {
	ExpiryTTL     time.Duration
	RememberTTL   time.Duration
	RefreshWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		ExpiryTTL:     8 * time.Hour,
		RememberTTL:   30 * 24 * time.Hour,
		RefreshWindow: 30 * time.Minute,
	}
}

type TokenService struct {
	Repo   *repo.GormRepo
	Audit  Recorder
	Policy Policy
	Now    func() time.Time
}

func NewTokenService(r *repo.GormRepo, rec Recorder, p Policy) *TokenService {
	return &TokenService{Repo: r, Audit: rec, Policy: p, Now: func() time.Time { return time.Now().UTC() }}
}

// Session is the authenticated state of one gated request.
type Session struct {
	User  *models.User
	Token *models.AccessToken
}

type Issued struct {
	Token     string
	Model     *models.AccessToken
	ExpiresAt time.Time
}

type TokenStatus struct {
	Name             string
	CreatedAt        time.Time
	ExpiresAt        *time.Time
	MinutesRemaining *int
	IsExpiringSoon   bool
	LastUsedAt       *time.Time
}

type RefreshResult struct {
	Refreshed        bool
	Token            string
	ExpiresAt        *time.Time
	MinutesRemaining *int
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *TokenService) record(ctx context.Context, ev audit.Event) {
	if s.Audit != nil {
		s.Audit.Record(ctx, ev)
	}
}

func (s *TokenService) expiryFor(rememberMe bool) time.Time {
	if rememberMe {
		return s.now().Add(s.Policy.RememberTTL)
	}
	return s.now().Add(s.Policy.ExpiryTTL)
}

func (s *TokenService) create(ctx context.Context, r *repo.GormRepo, user *models.User, name string, exp time.Time) (*Issued, error) {
	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	tok := &models.AccessToken{
		UserID:     user.ID,
		Name:       name,
		Scope:      models.ScopeAll,
		SecretHash: hash.Sha256Hex(secret),
		ExpiresAt:  &exp,
		CreatedAt:  s.now(),
	}
	if err := r.CreateToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &Issued{Token: formatPlaintext(tok.ID, secret), Model: tok, ExpiresAt: exp}, nil
}

// Issue creates a full-scope token for user. Only the hash of the secret is
// stored; the returned plaintext cannot be recovered later.
func (s *TokenService) Issue(ctx context.Context, user *models.User, rememberMe bool) (*Issued, error) {
	issued, err := s.create(ctx, s.Repo, user, TokenNameLogin, s.expiryFor(rememberMe))
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{
		Action:   models.ActionLogin,
		Actor:    audit.ActorOf(user),
		Table:    "users",
		RecordID: uint64(user.ID),
		New: map[string]any{
			"token_name":  issued.Model.Name,
			"remember_me": rememberMe,
			"expires_at":  issued.ExpiresAt,
		},
	})
	return issued, nil
}

// Authenticate resolves a bearer credential. An expired token is deleted
// before ErrTokenExpired is returned together with the session, so callers
// can report when it expired.
func (s *TokenService) Authenticate(ctx context.Context, plaintext string) (*Session, error) {
	if plaintext == "" {
		return nil, ErrUnauthorized
	}
	id, secret, ok := parsePlaintext(plaintext)
	if !ok {
		return nil, ErrTokenMissing
	}

	tok, err := s.Repo.TokenByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTokenMissing
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	if !secretMatches(tok.SecretHash, secret) {
		return nil, ErrTokenMissing
	}

	user, err := s.Repo.UserByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load token owner: %w", err)
	}

	sess := &Session{User: user, Token: tok}
	if tok.ExpiresAt != nil && tok.ExpiresAt.Before(s.now()) {
		if _, err := s.Repo.DeleteToken(ctx, tok.ID); err != nil {
			logging.FromContext(ctx).Warn("expired_token_delete_failed", "token_id", tok.ID, "error", err)
		}
		return sess, ErrTokenExpired
	}
	return sess, nil
}

// Touch stamps last_used_at. Concurrent requests race; the last write wins.
func (s *TokenService) Touch(ctx context.Context, tok *models.AccessToken) error {
	now := s.now()
	if err := s.Repo.TouchToken(ctx, tok.ID, now); err != nil {
		return err
	}
	tok.LastUsedAt = &now
	return nil
}

func (s *TokenService) remaining(tok *models.AccessToken) *int {
	if tok.ExpiresAt == nil {
		return nil
	}
	m := MinutesUntil(s.now(), *tok.ExpiresAt)
	return &m
}

// ExpiringSoon reports the minutes left when tok expires within the refresh
// window.
func (s *TokenService) ExpiringSoon(tok *models.AccessToken) (int, bool) {
	m := s.remaining(tok)
	if m == nil {
		return 0, false
	}
	return *m, time.Duration(*m)*time.Minute <= s.Policy.RefreshWindow
}

func (s *TokenService) Status(tok *models.AccessToken) TokenStatus {
	st := TokenStatus{
		Name:             tok.Name,
		CreatedAt:        tok.CreatedAt,
		ExpiresAt:        tok.ExpiresAt,
		MinutesRemaining: s.remaining(tok),
		LastUsedAt:       tok.LastUsedAt,
	}
	_, st.IsExpiringSoon = s.ExpiringSoon(tok)
	return st
}

// Refresh replaces tok with a new default-expiry token when it expires within
// the refresh window. Tokens without expiry or with more time left are
// returned unchanged.
func (s *TokenService) Refresh(ctx context.Context, user *models.User, tok *models.AccessToken) (*RefreshResult, error) {
	if _, soon := s.ExpiringSoon(tok); !soon {
		return &RefreshResult{Refreshed: false, ExpiresAt: tok.ExpiresAt, MinutesRemaining: s.remaining(tok)}, nil
	}

	var issued *Issued
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		n, err := tx.DeleteToken(ctx, tok.ID)
		if err != nil {
			return fmt.Errorf("delete current token: %w", err)
		}
		if n == 0 {
			return ErrTokenMissing
		}
		issued, err = s.create(ctx, tx, user, TokenNameRefreshed, s.expiryFor(false))
		return err
	})
	if err != nil {
		return nil, err
	}

	m := MinutesUntil(s.now(), issued.ExpiresAt)
	return &RefreshResult{Refreshed: true, Token: issued.Token, ExpiresAt: &issued.ExpiresAt, MinutesRemaining: &m}, nil
}

func (s *TokenService) Revoke(ctx context.Context, user *models.User, tok *models.AccessToken) error {
	if _, err := s.Repo.DeleteToken(ctx, tok.ID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.record(ctx, audit.Event{
		Action:   models.ActionLogout,
		Actor:    audit.ActorOf(user),
		Table:    "users",
		RecordID: uint64(user.ID),
		New:      map[string]any{"token_name": tok.Name},
	})
	return nil
}

func (s *TokenService) RevokeAll(ctx context.Context, user *models.User) (int64, error) {
	n, err := s.Repo.DeleteUserTokens(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("revoke all tokens: %w", err)
	}
	s.record(ctx, audit.Event{
		Action:   models.ActionLogoutAll,
		Actor:    audit.ActorOf(user),
		Table:    "users",
		RecordID: uint64(user.ID),
		New:      map[string]any{"revoked_tokens": n},
	})
	return n, nil
}
