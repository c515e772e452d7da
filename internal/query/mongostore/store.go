package mongostore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/askmesh/askmesh/internal/nl2query"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/query"
)

const (
	DefaultURI        = "mongodb://localhost:27017/"
	DefaultDatabase   = "admin"
	DefaultCollection = "ordercollections"

	engineName        = "mongo"
	pingTimeout       = 5 * time.Second
	operationTimeout  = 30 * time.Second
	disconnectTimeout = 5 * time.Second
)

type Config struct {
	URI              string
	Database         string
	Collection       string
	RowLimit         int
	// SelectionTimeout bounds server selection; 0 uses the ping timeout.
	SelectionTimeout time.Duration
}

// collectionAPI is the part of *mongo.Collection the store reads through.
type collectionAPI interface {
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	Aggregate(ctx context.Context, pipeline any, opts ...options.Lister[options.AggregateOptions]) (*mongo.Cursor, error)
}

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	reader     collectionAPI
	ping       func(ctx context.Context) error
	rowLimit   int
}

// Open creates the client. The driver connects lazily, so an unreachable
// server surfaces on the first Ping or Execute.
func Open(cfg Config) (*Store, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		uri = DefaultURI
	}
	database := cfg.Database
	if database == "" {
		database = DefaultDatabase
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	selection := cfg.SelectionTimeout
	if selection <= 0 {
		selection = pingTimeout
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(selection))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	coll := client.Database(database).Collection(collection)
	return &Store{
		client:     client,
		collection: coll,
		reader:     coll,
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		rowLimit: cfg.RowLimit,
	}, nil
}

func newWithReader(reader collectionAPI, ping func(ctx context.Context) error, rowLimit int) *Store {
	return &Store{reader: reader, ping: ping, rowLimit: rowLimit}
}

func (s *Store) Name() string {
	return engineName
}

// Collection exposes the target collection for seeding.
func (s *Store) Collection() *mongo.Collection {
	return s.collection
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.ping(pingCtx); err != nil {
		return query.ConnectionError(fmt.Errorf("ping mongo: %w", err))
	}
	return nil
}

func (s *Store) Execute(ctx context.Context, q nl2query.Query) (query.Result, error) {
	start := time.Now()
	result, err := s.execute(ctx, q)
	result.Duration = time.Since(start)
	observability.ObserveExecution(engineName, result.Duration, string(query.FailureReason(err)))
	return result, err
}

func (s *Store) execute(ctx context.Context, q nl2query.Query) (query.Result, error) {
	switch q.(type) {
	case nil, nl2query.NoQuery:
		return query.Empty(), query.ErrNoQuery
	case nl2query.SQL:
		return query.Empty(), query.UnsupportedError(q, engineName)
	case nl2query.FindFilter, nl2query.AggregatePipeline:
	default:
		return query.Empty(), query.UnsupportedError(q, engineName)
	}

	if err := s.Ping(ctx); err != nil {
		return query.Empty(), err
	}

	opCtx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	var cursor *mongo.Cursor
	var err error
	switch typed := q.(type) {
	case nl2query.FindFilter:
		opts := options.Find()
		if typed.Projection != nil {
			opts.SetProjection(typed.Projection)
		}
		if s.rowLimit > 0 {
			opts.SetLimit(int64(s.rowLimit))
		}
		filter := typed.Filter
		if filter == nil {
			filter = bson.D{}
		}
		cursor, err = s.reader.Find(opCtx, filter, opts)
		if err != nil {
			return query.Empty(), query.OperationError(fmt.Errorf("find: %w", err))
		}
	case nl2query.AggregatePipeline:
		pipeline := mongo.Pipeline(typed.Stages)
		if pipeline == nil {
			pipeline = mongo.Pipeline{}
		}
		cursor, err = s.reader.Aggregate(opCtx, pipeline)
		if err != nil {
			return query.Empty(), query.OperationError(fmt.Errorf("aggregate: %w", err))
		}
	}
	defer func() { _ = cursor.Close(context.Background()) }()

	docs := make([]bson.D, 0)
	for cursor.Next(opCtx) {
		if s.rowLimit > 0 && len(docs) >= s.rowLimit {
			break
		}
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return query.Empty(), query.OperationError(fmt.Errorf("decode: %w", err))
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return query.Empty(), query.OperationError(fmt.Errorf("cursor: %w", err))
	}

	return Tabulate(docs), nil
}
