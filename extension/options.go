package extension

import (
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/store"
)

// Option configures the Tally Forge extension.
type Option func(*Extension)

// WithStore sets the store for the tally engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a tally.Option through to the underlying engine.
func WithLedgerOption(opt tally.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a tally plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, tally.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes stops Handler from building the HTTP API.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for tally routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithJWTSecret sets the key that verifies API bearer tokens.
func WithJWTSecret(secret string) Option {
	return func(e *Extension) { e.config.JWTSecret = secret }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithTolerance sets the cycle cancellation tolerance in minor units.
func WithTolerance(tol int64) Option {
	return func(e *Extension) { e.config.Tolerance = tol }
}

// WithAutoSimplify enables background simplification every interval.
func WithAutoSimplify(interval time.Duration) Option {
	return func(e *Extension) {
		e.config.AutoSimplify = true
		e.config.AutoSimplifyInterval = interval
	}
}

// WithSimplifyConcurrency caps concurrent group simplifications.
func WithSimplifyConcurrency(n int) Option {
	return func(e *Extension) { e.config.SimplifyConcurrency = n }
}

// WithAdvisoryLock serializes group writes across processes with Postgres
// advisory locks taken through databaseURL.
func WithAdvisoryLock(databaseURL string) Option {
	return func(e *Extension) { e.config.AdvisoryLockURL = databaseURL }
}
