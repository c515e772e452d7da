package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/askmesh/askmesh/internal/config"
	"github.com/askmesh/askmesh/internal/demo/seed"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/query/mongostore"
)

func main() {
	count := flag.Int("count", seed.DefaultCount, "number of generated orders on top of the sample orders")
	seedValue := flag.Int64("seed", 1, "random seed for generated orders")
	reset := flag.Bool("reset", false, "drop the collection before inserting")
	flag.Parse()

	cfg, err := config.LoadFromEnv("askmesh-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	store, err := mongostore.Open(mongostore.Config{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
	})
	if err != nil {
		logger.Error("failed to open mongo", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Ping(ctx); err != nil {
		logger.Error("mongo ping failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding demo orders",
		slog.String("database", cfg.Mongo.Database),
		slog.String("collection", cfg.Mongo.Collection),
		slog.Int("count", *count),
		slog.Bool("reset", *reset),
	)
	inserted, err := seed.NewSeeder(logger).Seed(ctx, seed.MongoCollection(store.Collection()), seed.Options{
		Count: *count,
		Seed:  *seedValue,
		Reset: *reset,
	})
	if err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("inserted %d order(s)\n", inserted)
}
