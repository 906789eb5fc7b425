package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/waterworks/internal/config"
	"github.com/Skotchmaster/waterworks/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverPQ       = "pq"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type Options struct {
	Driver string
	DSN    string
	Silent bool
}

func configurePool(sqlDB *sql.DB, driver string) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	// every sqlite connection to :memory: is a separate database
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
		return
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func dialector(o Options) (gorm.Dialector, error) {
	switch o.Driver {
	case DriverPostgres, "":
		return postgres.Open(o.DSN), nil
	case DriverPQ:
		return postgres.New(postgres.Config{DriverName: "postgres", DSN: o.DSN}), nil
	case DriverMySQL:
		return mysql.Open(o.DSN), nil
	case DriverSQLite:
		return sqlite.Open(o.DSN), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", o.Driver)
	}
}

// DSNFromConfig returns DB_DSN when set, otherwise builds one from the
// DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME parts.
func DSNFromConfig(cfg *config.Config) string {
	if cfg.DB_DSN != "" {
		return cfg.DB_DSN
	}
	switch cfg.DB_DRIVER {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME)
	case DriverSQLite:
		return cfg.DB_NAME
	default:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.DB_HOST, cfg.DB_PORT, cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_NAME)
	}
}

func Open(ctx context.Context, o Options) (*gorm.DB, error) {
	if o.DSN == "" {
		return nil, fmt.Errorf("DB_DSN is empty")
	}

	d, err := dialector(o)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{
		PrepareStmt: o.Driver != DriverSQLite,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		// audit rows are written on the root handle from inside callbacks;
		// with a single sqlite connection an implicit tx would block them
		SkipDefaultTransaction: o.Driver == DriverSQLite,
	}
	if o.Silent {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(d, gcfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	configurePool(sqlDB, o.Driver)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
