package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/waterworks/internal/hash"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/repo"
	"github.com/Skotchmaster/waterworks/internal/testutil"
)

func newCreateUser(t *testing.T, stdin string) (*createUserCmd, *repo.GormRepo, *bytes.Buffer) {
	t.Helper()
	r := &repo.GormRepo{DB: testutil.InitTestDB(t)}
	out := &bytes.Buffer{}
	return &createUserCmd{repo: r, in: strings.NewReader(stdin), out: out}, r, out
}

func TestCreateUser_SeedsAdmin(t *testing.T) {
	cmd, r, out := newCreateUser(t, "correct-horse\n")
	f, err := parseCreateUserFlags([]string{"--email", " Chief@Water.gov "}, &bytes.Buffer{})
	require.NoError(t, err)

	require.NoError(t, cmd.run(context.Background(), f))
	assert.Contains(t, out.String(), "Created Administrator chief@water.gov")

	u, err := r.UserByEmail(context.Background(), "chief@water.gov")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.Equal(t, "Chief", u.Name)
	assert.True(t, hash.CheckPassword(u.PasswordHash, "correct-horse"))
}

func TestCreateUser_RejectsDuplicate(t *testing.T) {
	cmd, r, _ := newCreateUser(t, "correct-horse\n")
	testutil.SeedUser(t, r.DB, "ops@water.gov", models.RoleStaff)

	f, err := parseCreateUserFlags([]string{"--email", "OPS@water.gov", "--role", "staff"}, &bytes.Buffer{})
	require.NoError(t, err)
	err = cmd.run(context.Background(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
	}{
		{name: "missing email", args: nil, stdin: "correct-horse\n"},
		{name: "bad email", args: []string{"--email", "nope"}, stdin: "correct-horse\n"},
		{name: "unknown role", args: []string{"--email", "a@water.gov", "--role", "root"}, stdin: "correct-horse\n"},
		{name: "short password", args: []string{"--email", "a@water.gov"}, stdin: "short\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, r, _ := newCreateUser(t, tt.stdin)
			f, err := parseCreateUserFlags(tt.args, &bytes.Buffer{})
			require.NoError(t, err)
			require.Error(t, cmd.run(context.Background(), f))

			var n int64
			require.NoError(t, r.DB.Model(&models.User{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}
