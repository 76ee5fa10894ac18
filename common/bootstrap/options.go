package bootstrap

import (
	"github.com/lyzr/teststate/common/config"
	"github.com/lyzr/teststate/common/db"
	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/redis"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
	store         docstore.Store
	redisClient   *redis.Client
	dbInitHook    func(*db.DB) error
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithStore uses an existing document store instead of connecting.
// The caller keeps ownership of it.
func WithStore(store docstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRedisClient uses an existing Redis client for the redis cache backend
func WithRedisClient(client *redis.Client) Option {
	return func(o *options) {
		o.redisClient = client
	}
}

// WithDBInitHook runs a custom function after the store connects.
// Useful for seeding data in development.
func WithDBInitHook(hook func(*db.DB) error) Option {
	return func(o *options) {
		o.dbInitHook = hook
	}
}

func defaultOptions() *options {
	return &options{}
}
