package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/waterworks/internal/config"
	"github.com/Skotchmaster/waterworks/internal/models"
)

func TestOpen_SQLiteMemoryAndMigrate(t *testing.T) {
	db, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: ":memory:", Silent: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable(&models.AccessToken{}))
	assert.True(t, db.Migrator().HasTable(&models.ActivityLog{}))
	assert.True(t, db.Migrator().HasIndex(&models.ActivityLog{}, "idx_activity_logs_table_record"))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: DriverSQLite})
	require.Error(t, err)

	_, err = Open(context.Background(), Options{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}

func TestDSNFromConfig(t *testing.T) {
	cfg := &config.Config{DB_DRIVER: DriverMySQL, DB_USER: "u", DB_PASSWORD: "p", DB_HOST: "h", DB_PORT: "3306", DB_NAME: "water"}
	assert.Equal(t, "u:p@tcp(h:3306)/water?charset=utf8mb4&parseTime=True&loc=UTC", DSNFromConfig(cfg))

	cfg.DB_DSN = "explicit"
	assert.Equal(t, "explicit", DSNFromConfig(cfg))
}
