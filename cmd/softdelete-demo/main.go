package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	softdelete "github.com/goliatone/go-auth-softdelete"
	"github.com/goliatone/go-auth-softdelete/activitymap"
	"github.com/goliatone/go-auth-softdelete/adapters/redisstore"
	"github.com/goliatone/go-auth-softdelete/internal/demohost"
	"github.com/goliatone/go-auth-softdelete/metrics"
	"github.com/goliatone/go-auth-softdelete/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := demohost.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	zl, err := zap.NewProduction()
	if cfg.Debug {
		zl, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := softdelete.NewZapLogger(zl)

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Database.DSN)
	if err != nil {
		zl.Fatal("failed to open database", zap.Error(err))
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := repository.CreateSchema(ctx, db); err != nil {
		zl.Fatal("failed to create schema", zap.Error(err))
	}

	activity, err := metrics.NewActivityMetrics(metrics.Options{})
	if err != nil {
		zl.Fatal("failed to register metrics", zap.Error(err))
	}
	audit := activitymap.Sink(func(_ context.Context, record activitymap.Record) error {
		zl.Info("activity",
			zap.String("verb", record.Verb),
			zap.String("outcome", string(record.Outcome)),
			zap.String("reason", record.Reason),
			zap.String("actor_id", record.ActorID),
			zap.String("subject", record.Subject),
			zap.String("subject_kind", string(record.SubjectKind)),
			zap.Any("metadata", record.Metadata),
		)
		return nil
	}, activitymap.WithMetadataKeys("deleted_at", "scheduled_deletion_at", "blocked_until", "already_deleted"))

	pluginOpts := []softdelete.Option{
		softdelete.WithRetentionDays(cfg.SoftDelete.RetentionDays),
		softdelete.WithBlockReRegistration(cfg.SoftDelete.BlockReRegistration),
		softdelete.WithBasePath(cfg.SoftDelete.BasePath),
		softdelete.WithActivitySink(softdelete.MultiSink{activity, audit}),
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			zl.Fatal("failed to reach redis", zap.Error(err))
		}
		pluginOpts = append(pluginOpts,
			softdelete.WithSecondaryStorage(redisstore.NewStorage(client, cfg.Redis.KeyPrefix)),
			softdelete.WithRestoreRateLimit(redisstore.NewRateLimiter(client, cfg.RateLimit())),
		)
	}

	host := demohost.New(db, pluginOpts, demohost.WithLogger(logger))
	host.Controller.Debug = cfg.Debug
	host.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := host.App.ShutdownWithContext(shutdownCtx); err != nil {
			zl.Error("shutdown failed", zap.Error(err))
		}
	}()

	zl.Info("soft delete demo listening", zap.String("addr", cfg.Addr))
	if err := host.App.Listen(cfg.Addr); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
