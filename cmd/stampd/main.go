// Package main runs the stampd loyalty-card service: HTTP API, program
// ledger, analytics counters, and the live dashboard feed.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/stampd-app/stampd/internal/app"
	"github.com/stampd-app/stampd/internal/app/httpapi"
	"github.com/stampd-app/stampd/internal/app/storage/postgres"
	redisstore "github.com/stampd-app/stampd/internal/app/storage/redis"
	"github.com/stampd-app/stampd/internal/config"
	"github.com/stampd-app/stampd/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Local development convenience; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("stampd").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	log.WithField("addr", cfg.Server.Addr()).Info("starting stampd")

	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("initialise storage")
		os.Exit(1)
	}
	defer cleanup()

	application, err := app.New(stores, app.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		RetentionDays:  cfg.Analytics.RetentionDays,
		RollupSchedule: cfg.Analytics.RollupSchedule,
	}, log)
	if err != nil {
		log.WithError(err).Error("initialise application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start services")
		os.Exit(1)
	}

	handler := httpapi.NewHandler(application, log, httpapi.RouterOptions{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		log.WithError(err).Error("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
	log.Info("stopped")
}

// buildStores selects the persistence backends. Without a database URL
// everything runs in memory; a Redis address moves the daily counters to
// Redis.
func buildStores(cfg config.Config, log *logger.Logger) (app.Stores, func(), error) {
	var stores app.Stores
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return stores, cleanup, err
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
		if err := db.Ping(); err != nil {
			db.Close()
			return stores, cleanup, err
		}
		cleanups = append(cleanups, func() { db.Close() })

		if cfg.Database.Migrate {
			if err := postgres.Migrate(db); err != nil {
				return stores, cleanup, err
			}
		}

		store := postgres.New(db)
		stores.Programs = store
		stores.Businesses = store
		stores.Analytics = store
		stores.Users = store
		stores.Sessions = store
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return stores, cleanup, err
		}
		cleanups = append(cleanups, func() { client.Close() })

		retention := time.Duration(cfg.Analytics.RetentionDays) * 24 * time.Hour
		stores.Analytics = redisstore.NewCounterStore(client, retention)
		log.Info("using redis daily counters")
	}

	return stores, cleanup, nil
}
