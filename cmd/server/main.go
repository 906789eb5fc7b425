package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/waterworks/internal/audit"
	"github.com/Skotchmaster/waterworks/internal/config"
	"github.com/Skotchmaster/waterworks/internal/db"
	"github.com/Skotchmaster/waterworks/internal/es"
	"github.com/Skotchmaster/waterworks/internal/geo"
	"github.com/Skotchmaster/waterworks/internal/handlers"
	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/waterworks/internal/middleware/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/mqueue"
	"github.com/Skotchmaster/waterworks/internal/mykafka"
	"github.com/Skotchmaster/waterworks/internal/repo"
	"github.com/Skotchmaster/waterworks/internal/service"
	"github.com/Skotchmaster/waterworks/internal/service/search"
	httpserver "github.com/Skotchmaster/waterworks/internal/transport/http"
)

type closer interface{ Close() error }

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LOG_LEVEL)
	slog.SetDefault(logger)
	ctx := logging.IntoContext(context.Background(), logger)

	gdb, err := db.Open(ctx, db.Options{Driver: cfg.DB_DRIVER, DSN: db.DSNFromConfig(cfg)})
	if err != nil {
		logger.Error("db_open_failed", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Error("db_migrate_failed", "error", err)
		os.Exit(1)
	}
	r := &repo.GormRepo{DB: gdb}

	var closers []closer

	var lookup geo.Lookup = geo.NewIPAPI(cfg.GEO_LOOKUP_URL)
	if cfg.REDIS_ADDR != "" {
		rdb, err := geo.NewRedisClient(ctx, cfg.REDIS_ADDR, cfg.REDIS_PASSWORD, cfg.REDIS_DB)
		if err != nil {
			logger.Warn("geo_cache_disabled", "error", err)
		} else {
			lookup = &geo.Cached{Store: geo.RedisStore{Client: rdb}, Next: lookup, TTL: cfg.GEO_CACHE_TTL}
			closers = append(closers, rdb)
		}
	}
	locator := geo.NewResolver(lookup, cfg.GEO_TIMEOUT)

	var sinks []audit.Sink
	var signer *audit.Signer
	if len(cfg.KAFKA_BROKERS) > 0 || cfg.AMQP_URL != "" {
		config.MustNonEmptyBytes(cfg.AUDIT_SIGNING_SECRET, "AUDIT_SIGNING_SECRET")
		signer = &audit.Signer{Secret: cfg.AUDIT_SIGNING_SECRET}
	}
	if len(cfg.KAFKA_BROKERS) > 0 {
		prod, err := mykafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_AUDIT_TOPIC)
		if err != nil {
			logger.Error("kafka_producer_failed", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, &audit.StreamSink{Signer: signer, Pub: prod})
		closers = append(closers, prod)
		logger.Info("audit_stream_enabled", "transport", "kafka", "topic", prod.Topic())
	}
	if cfg.AMQP_URL != "" {
		pub, err := mqueue.Dial(cfg.AMQP_URL, cfg.AMQP_AUDIT_QUEUE)
		if err != nil {
			logger.Error("amqp_dial_failed", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, &audit.StreamSink{Signer: signer, Pub: pub})
		closers = append(closers, pub)
	}

	var index *search.ActivityIndex
	if cfg.ES_URL != "" {
		esClient, err := es.NewClient(cfg, logger)
		if err != nil {
			logger.Warn("activity_search_disabled", "error", err)
		} else {
			index = &search.ActivityIndex{ES: esClient, Index: cfg.ES_ACTIVITY_INDEX}
			if err := index.EnsureIndex(ctx); err != nil {
				logger.Warn("activity_index_create_failed", "error", err)
			}
			sinks = append(sinks, index)
		}
	}

	auditLog := audit.NewLogger(r, locator, cfg.GEO_TIMEOUT, sinks...)
	observer := audit.NewObserver(auditLog)
	if err := observer.Track(gdb, models.Audited()...); err != nil {
		logger.Error("audit_track_failed", "error", err)
		os.Exit(1)
	}
	if err := observer.Register(gdb); err != nil {
		logger.Error("audit_register_failed", "error", err)
		os.Exit(1)
	}

	tokens := service.NewTokenService(r, auditLog, service.Policy{
		ExpiryTTL:     time.Duration(cfg.TOKEN_EXPIRY_HOURS) * time.Hour,
		RememberTTL:   time.Duration(cfg.REMEMBER_ME_EXPIRY_DAYS) * 24 * time.Hour,
		RefreshWindow: cfg.TOKEN_REFRESH_WINDOW,
	})

	ipx, err := audit.IPExtractor(cfg.TRUSTED_PROXIES)
	if err != nil {
		logger.Error("trusted_proxies_invalid", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = ipx
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(audit.RequestContext(ipx))

	deps := httpserver.Deps{
		DB:              gdb,
		Gate:            &auth.Gate{Tokens: tokens},
		AuthHandler:     &handlers.AuthHandler{Auth: &service.AuthService{Repo: r, Tokens: tokens}, Tokens: tokens},
		ActivityHandler: &handlers.ActivityHandler{Repo: r, Index: index},
		ReportHandler:   &handlers.ReportHandler{DB: gdb, Audit: observer},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + cfg.APP_PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	go func() {
		<-quit
		logger.Warn("force exit")
		os.Exit(1)
	}()

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	auditLog.Flush()

	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close_failed", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Warn("db_close_failed", "error", err)
	}

	logger.Info("shutdown complete")
}
