package conn

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconn/pkg/config"
	"github.com/ekaya-inc/dbconn/pkg/pool"
	"github.com/ekaya-inc/dbconn/pkg/retry"
)

type options struct {
	logger      *zap.Logger
	cfg         *config.Config
	poolAdapter pool.Adapter
	retryCfg    *retry.Config
}

// Option customizes Open and the With* helpers.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger: zap.NewNop(),
		cfg: &config.Config{
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
			ConnMaxIdleTimeMinutes: 5,
			DefaultIsolation:       "none",
		},
		retryCfg: retry.DefaultConfig(),
	}
}

// WithLogger attaches a zap logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig applies connection-layer settings (pool limits, default
// isolation, retry backoff).
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
			o.retryCfg = cfg.RetryOptions()
		}
	}
}

// WithPoolAdapter forces a pool adapter regardless of the descriptor's
// "pool" extra field.
func WithPoolAdapter(a pool.Adapter) Option {
	return func(o *options) {
		o.poolAdapter = a
	}
}

// WithRetry overrides the backoff used while establishing the session.
func WithRetry(cfg *retry.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.retryCfg = cfg
		}
	}
}
