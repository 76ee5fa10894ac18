package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/lyzr/teststate/common/config"
	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/logger"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DB owns the document store connection shared by every tenant
type DB struct {
	client *mongo.Client // nil for the in-memory store
	store  docstore.Store
	log    *logger.Logger
}

// New connects to the configured document store. A memory:// URI yields an
// in-process store; anything else is handed to the MongoDB driver.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	if cfg.IsMemoryStore() {
		log.Info("document store ready", "backend", "memory")
		return &DB{store: docstore.Instrument(docstore.NewMemoryStore()), log: log}, nil
	}

	opts := options.Client().
		ApplyURI(cfg.Store.URI).
		SetMaxPoolSize(uint64(cfg.Store.MaxPoolSize)).
		SetServerSelectionTimeout(cfg.Store.ServerSelectionTimeout).
		SetConnectTimeout(cfg.Store.ConnectTimeout).
		SetRetryWrites(cfg.Store.RetryWrites)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect document store: %w", err)
	}

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Store.ServerSelectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping document store: %w: %v", docstore.ErrUnavailable, err)
	}

	log.Info("document store connected", "backend", "mongodb", "uri", redact(cfg.Store.URI))

	return &DB{
		client: client,
		store:  docstore.Instrument(docstore.NewMongoStore(client, cfg.Store.OperationTimeout)),
		log:    log,
	}, nil
}

// Store returns the instrumented document store
func (db *DB) Store() docstore.Store {
	return db.store
}

// Client returns the underlying MongoDB client, or nil for the memory store
func (db *DB) Client() *mongo.Client {
	return db.client
}

// Close disconnects from the document store
func (db *DB) Close(ctx context.Context) error {
	db.log.Info("closing document store connection")
	return db.store.Close(ctx)
}

// Health checks document store health
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.store.Ping(ctx)
}

func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<unparseable>"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.Redacted()
}
