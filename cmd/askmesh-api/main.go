package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askmesh/askmesh/internal/api"
	"github.com/askmesh/askmesh/internal/api/uistatic"
	"github.com/askmesh/askmesh/internal/archive"
	"github.com/askmesh/askmesh/internal/auth"
	"github.com/askmesh/askmesh/internal/config"
	"github.com/askmesh/askmesh/internal/nl2query"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/ollama"
	"github.com/askmesh/askmesh/internal/query"
	"github.com/askmesh/askmesh/internal/query/mongostore"
	"github.com/askmesh/askmesh/internal/query/sqlstore"
	"github.com/askmesh/askmesh/internal/schema"
	"github.com/askmesh/askmesh/internal/session"
	s3store "github.com/askmesh/askmesh/internal/storage/s3"
)

type closableEngine interface {
	query.Engine
	io.Closer
}

func main() {
	cfg, err := config.LoadFromEnv("askmesh-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	descriptor, err := schema.For(cfg.Dataset.Variant, cfg.DatasetName())
	if err != nil {
		logger.Error("failed to load schema descriptor", slog.Any("error", err))
		os.Exit(1)
	}

	inference, err := ollama.NewClient(ollama.Config{
		Host:    cfg.Inference.Host,
		Model:   cfg.Inference.Model,
		Timeout: cfg.Inference.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize inference client", slog.Any("error", err))
		os.Exit(1)
	}
	translator, err := nl2query.NewPromptTranslator(descriptor, inference, logger)
	if err != nil {
		logger.Error("failed to initialize translator", slog.Any("error", err))
		os.Exit(1)
	}

	engine, err := openEngine(cfg)
	if err != nil {
		logger.Error("failed to open query engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	deps := api.Dependencies{
		Logger:     logger,
		Descriptor: descriptor,
		Translator: translator,
		Engine:     engine,
		Sessions:   session.NewStore(cfg.Session.TTL),
		RowLimit:   cfg.Query.RowLimit,
		UI:         uistatic.Handler(),
		Readiness: api.CombineReadinessChecks(
			api.CheckPing("ollama", inference),
			api.CheckPing(engine.Name(), engine),
			api.CheckObjectStoreConfig(cfg),
		),
		ReadinessTimeout: 2 * time.Second,
	}

	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		runs, err := archive.New(objectStore, logger)
		if err != nil {
			logger.Error("failed to initialize result archive", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Archive = runs
		deps.Readiness = api.CombineReadinessChecks(deps.Readiness, api.CheckPing("archive", runs))
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("variant", string(cfg.Dataset.Variant)),
			slog.String("dataset", descriptor.Dataset),
			slog.String("model", inference.Model()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openEngine(cfg config.Config) (closableEngine, error) {
	if cfg.Dataset.Variant == schema.VariantSQL {
		return sqlstore.Open(sqlstore.Config{
			Driver:          cfg.SQL.Driver,
			DSN:             cfg.SQL.DSN,
			Host:            cfg.SQL.Host,
			Port:            cfg.SQL.Port,
			User:            cfg.SQL.User,
			Password:        cfg.SQL.Password,
			Name:            cfg.SQL.Name,
			RowLimit:        cfg.Query.RowLimit,
			MaxOpenConns:    cfg.SQL.MaxOpenConns,
			MaxIdleConns:    cfg.SQL.MaxIdleConns,
			ConnMaxIdleTime: cfg.SQL.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.SQL.ConnMaxLifetime,
		})
	}
	return mongostore.Open(mongostore.Config{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
		RowLimit:   cfg.Query.RowLimit,
	})
}
