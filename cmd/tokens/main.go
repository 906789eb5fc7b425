// Command tokens runs maintenance tasks against the access token store.
//
//	tokens cleanup [--days N] [--dry-run] [--yes] [--expired-only]
//	tokens create-user --email E [--name N] [--role admin|staff|user]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Skotchmaster/waterworks/internal/config"
	"github.com/Skotchmaster/waterworks/internal/db"
	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/repo"
	"github.com/Skotchmaster/waterworks/internal/service"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tokens cleanup [--days N] [--dry-run] [--yes] [--expired-only]")
	fmt.Fprintln(os.Stderr, "       tokens create-user --email E [--name N] [--role admin|staff|user]")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 || (args[0] != "cleanup" && args[0] != "create-user") {
		usage()
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var (
		cleanup *cleanupFlags
		seed    *createUserFlags
	)
	if args[0] == "cleanup" {
		cleanup, err = parseCleanupFlags(args[1:], cfg.TOKEN_STALE_DAYS, os.Stderr)
	} else {
		seed, err = parseCreateUserFlags(args[1:], os.Stderr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := logging.New(cfg.LOG_LEVEL)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	gdb, err := db.Open(ctx, db.Options{Driver: cfg.DB_DRIVER, DSN: db.DSNFromConfig(cfg), Silent: true})
	if err != nil {
		logger.Error("db_open_failed", "error", err)
		return 1
	}
	defer db.Close(gdb)
	r := &repo.GormRepo{DB: gdb}

	if seed != nil {
		if err := db.Migrate(gdb); err != nil {
			logger.Error("db_migrate_failed", "error", err)
			return 1
		}
		cmd := &createUserCmd{repo: r, in: os.Stdin, out: os.Stdout}
		if err := cmd.run(ctx, seed); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	tokens := service.NewTokenService(r, nil, service.DefaultPolicy())
	cmd := &cleanupCmd{tokens: tokens, in: os.Stdin, out: os.Stdout}
	if err := cmd.run(ctx, cleanup); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
