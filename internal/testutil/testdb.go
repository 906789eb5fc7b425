// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/waterworks/internal/geo"
	"github.com/Skotchmaster/waterworks/internal/hash"
	"github.com/Skotchmaster/waterworks/internal/models"
)

// InitTestDB opens a private in-memory sqlite database with every model
// migrated.
func InitTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// each connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...), "failed to migrate tables")
	return db
}

func SeedUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	pw, err := hash.HashPassword("password123")
	require.NoError(t, err)
	u := &models.User{Name: strings.Split(email, "@")[0], Email: email, PasswordHash: pw, Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func ActivityRows(t *testing.T, db *gorm.DB) []models.ActivityLog {
	t.Helper()
	var rows []models.ActivityLog
	require.NoError(t, db.Order("id").Find(&rows).Error)
	return rows
}

// FakeLocator answers every lookup with Label and counts calls.
type FakeLocator struct {
	Label string
	Calls int
}

func (f *FakeLocator) Locate(_ context.Context, ip string) string {
	f.Calls++
	if label, ok := geo.Classify(ip); ok {
		return label
	}
	return f.Label
}

func Ptr[T any](v T) *T { return &v }

// NullJSON reports whether a JSON column read back as SQL NULL. Scanning
// NULL into datatypes.JSON yields the literal "null".
func NullJSON(raw []byte) bool {
	return len(raw) == 0 || string(raw) == "null"
}
