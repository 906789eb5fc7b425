package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/testutil"
)

func seedTokens(t *testing.T, env *testEnv, userID uint, expired, valid int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < expired; i++ {
		require.NoError(t, env.Repo.CreateToken(ctx, &models.AccessToken{
			UserID: userID, Name: "old", SecretHash: "e" + string(rune('a'+i)),
			ExpiresAt: testutil.Ptr(env.Clock.Add(-time.Duration(i+1) * time.Hour)), CreatedAt: env.Clock,
		}))
	}
	for i := 0; i < valid; i++ {
		require.NoError(t, env.Repo.CreateToken(ctx, &models.AccessToken{
			UserID: userID, Name: "live", SecretHash: "v" + string(rune('a'+i)),
			ExpiresAt: testutil.Ptr(env.Clock.Add(time.Duration(i+1) * time.Hour)), CreatedAt: env.Clock,
		}))
	}
}

func TestSweepExpired_DryRunThenConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, env.DB, "clerk@water.local", models.RoleUser)
	seedTokens(t, env, u.ID, 3, 2)

	report, err := env.Tokens.SweepExpired(ctx, SweepOptions{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, report.Candidates, 3)
	assert.Zero(t, report.Deleted)
	assert.True(t, report.DryRun)

	n, err := env.Repo.CountUserTokens(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	var asked []models.AccessToken
	report, err = env.Tokens.SweepExpired(ctx, SweepOptions{Confirm: func(c []models.AccessToken) bool {
		asked = c
		return true
	}})
	require.NoError(t, err)
	assert.Len(t, asked, 3)
	assert.EqualValues(t, 3, report.Deleted)

	n, err = env.Repo.CountUserTokens(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestSweepExpired_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, env.DB, "clerk@water.local", models.RoleUser)
	seedTokens(t, env, u.ID, 2, 1)

	report, err := env.Tokens.SweepExpired(ctx, SweepOptions{Confirm: func([]models.AccessToken) bool { return false }})
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Zero(t, report.Deleted)

	n, err := env.Repo.CountUserTokens(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestSweepExpired_NothingToDo(t *testing.T) {
	env := newTestEnv(t)
	called := false
	report, err := env.Tokens.SweepExpired(context.Background(), SweepOptions{Confirm: func([]models.AccessToken) bool {
		called = true
		return true
	}})
	require.NoError(t, err)
	assert.Empty(t, report.Candidates)
	assert.False(t, called)
}

func TestSweepStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, env.DB, "clerk@water.local", models.RoleUser)
	seedTokens(t, env, u.ID, 1, 1)

	// used 10 days ago
	require.NoError(t, env.Repo.CreateToken(ctx, &models.AccessToken{
		UserID: u.ID, Name: "idle", SecretHash: "s1",
		LastUsedAt: testutil.Ptr(env.Clock.AddDate(0, 0, -10)), CreatedAt: env.Clock.AddDate(0, 0, -30),
	}))
	// never used, created 20 days ago
	require.NoError(t, env.Repo.CreateToken(ctx, &models.AccessToken{
		UserID: u.ID, Name: "abandoned", SecretHash: "s2", CreatedAt: env.Clock.AddDate(0, 0, -20),
	}))
	// created long ago but used yesterday
	require.NoError(t, env.Repo.CreateToken(ctx, &models.AccessToken{
		UserID: u.ID, Name: "active", SecretHash: "s3",
		LastUsedAt: testutil.Ptr(env.Clock.AddDate(0, 0, -1)), CreatedAt: env.Clock.AddDate(0, 0, -40),
	}))

	report, err := env.Tokens.SweepStale(ctx, 7, SweepOptions{DryRun: true})
	require.NoError(t, err)
	names := make([]string, 0, len(report.Candidates))
	for _, c := range report.Candidates {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"old", "idle", "abandoned"}, names)

	report, err = env.Tokens.SweepStale(ctx, 7, SweepOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.Deleted)

	_, err = env.Tokens.SweepStale(ctx, -1, SweepOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSweep_StopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	u := testutil.SeedUser(t, env.DB, "clerk@water.local", models.RoleUser)
	seedTokens(t, env, u.ID, 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	report, err := env.Tokens.SweepExpired(ctx, SweepOptions{Confirm: func([]models.AccessToken) bool {
		cancel()
		return true
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Deleted)
}

func TestMergeTokens_Dedupes(t *testing.T) {
	a := []models.AccessToken{{ID: 3}, {ID: 1}}
	b := []models.AccessToken{{ID: 1}, {ID: 2}}
	out := mergeTokens(a, b)
	require.Len(t, out, 3)
	assert.Equal(t, []uint{1, 2, 3}, []uint{out[0].ID, out[1].ID, out[2].ID})
}
