package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/Skotchmaster/waterworks/internal/hash"
	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/repo"
)

type AuthService struct {
	Repo   *repo.GormRepo
	Tokens *TokenService
}

type LoginInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required),
	)
}

type LoginResult struct {
	User   *models.User
	Issued *Issued
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords produce the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.Repo.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("login failed", "status", 401, "reason", "invalid email or password")
			return nil, ErrInvalidCredentials
		}
		l.Error("login failed", "status", 500, "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, in.Password) {
		l.Warn("login failed", "status", 401, "reason", "invalid email or password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	issued, err := s.Tokens.Issue(ctx, user, in.RememberMe)
	if err != nil {
		l.Error("login failed", "status", 500, "error", err)
		return nil, err
	}
	return &LoginResult{User: user, Issued: issued}, nil
}
