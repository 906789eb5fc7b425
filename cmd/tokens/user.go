package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/spf13/pflag"

	"github.com/Skotchmaster/waterworks/internal/hash"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/repo"
)

// createUserCmd seeds an account, typically the first administrator, since
// the HTTP API has no registration route.
type createUserCmd struct {
	repo *repo.GormRepo
	in   io.Reader
	out  io.Writer
}

type createUserFlags struct {
	email string
	name  string
	role  string
}

func parseCreateUserFlags(args []string, errOut io.Writer) (*createUserFlags, error) {
	fs := pflag.NewFlagSet("create-user", pflag.ContinueOnError)
	fs.SetOutput(errOut)

	f := &createUserFlags{}
	fs.StringVar(&f.email, "email", "", "login email of the new account")
	fs.StringVar(&f.name, "name", "", "display name; defaults to the email local part")
	fs.StringVar(&f.role, "role", string(models.RoleAdmin), "admin, staff or user")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.email = strings.TrimSpace(f.email)
	if f.name == "" {
		f.name, _, _ = strings.Cut(f.email, "@")
	}
	return f, nil
}

func (f createUserFlags) validate(password string) error {
	return validation.Errors{
		"email":    validation.Validate(f.email, validation.Required, is.Email),
		"name":     validation.Validate(f.name, validation.Required, validation.Length(1, 255)),
		"role":     validation.Validate(f.role, validation.In("admin", "staff", "user")),
		"password": validation.Validate(password, validation.Required, validation.Length(8, 72)),
	}.Filter()
}

func (c *createUserCmd) run(ctx context.Context, f *createUserFlags) error {
	fmt.Fprint(c.out, "Password: ")
	password, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")
	fmt.Fprintln(c.out)

	if err := f.validate(password); err != nil {
		return err
	}
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Name: f.name, Email: f.email, PasswordHash: pwHash, Role: models.ParseRole(f.role)}
	if err := c.repo.CreateUserIfNotExists(ctx, u); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return fmt.Errorf("user %s already exists", u.Email)
		}
		return fmt.Errorf("create user failed: %w", err)
	}
	fmt.Fprintf(c.out, "Created %s %s (id %d).\n", u.Role.DisplayName(), u.Email, u.ID)
	return nil
}
