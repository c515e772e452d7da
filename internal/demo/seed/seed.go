package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

const DefaultCount = 50

type Options struct {
	Count int
	Seed  int64
	Reset bool
}

// Collection is the part of a mongo collection seeding needs.
type Collection interface {
	Drop(ctx context.Context) error
	InsertMany(ctx context.Context, docs []any) (int, error)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func MongoCollection(coll *mongo.Collection) Collection {
	return mongoCollection{coll: coll}
}

func (c mongoCollection) Drop(ctx context.Context) error {
	return c.coll.Drop(ctx)
}

func (c mongoCollection) InsertMany(ctx context.Context, docs []any) (int, error) {
	result, err := c.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return len(result.InsertedIDs), nil
}

type Seeder struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewSeeder(logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Documents returns the sample orders followed by opts.Count generated ones.
func (s *Seeder) Documents(opts Options) []any {
	now := s.now()
	docs := make([]any, 0, len(SampleOrders(now))+opts.Count)
	for _, order := range SampleOrders(now) {
		docs = append(docs, order)
	}
	generator := NewGenerator(opts.Seed)
	generator.now = func() time.Time { return now }
	for i := 0; i < opts.Count; i++ {
		docs = append(docs, generator.NextOrder())
	}
	return docs
}

func (s *Seeder) Seed(ctx context.Context, coll Collection, opts Options) (int, error) {
	if opts.Count < 0 {
		return 0, fmt.Errorf("count must be >= 0")
	}
	if opts.Reset {
		if err := coll.Drop(ctx); err != nil {
			return 0, fmt.Errorf("drop collection: %w", err)
		}
		s.logger.Info("dropped collection before seeding")
	}
	inserted, err := coll.InsertMany(ctx, s.Documents(opts))
	if err != nil {
		return 0, fmt.Errorf("insert orders: %w", err)
	}
	s.logger.Info("seeded orders", slog.Int("inserted", inserted), slog.Int64("seed", opts.Seed))
	return inserted, nil
}
