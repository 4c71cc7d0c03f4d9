package extension

import "time"

// Config holds the Tally extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tally" or "tally" keys).
type Config struct {
	// DisableRoutes stops Handler from building the HTTP API.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for tally routes (default: "/api").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// JWTSecret verifies bearer tokens on the HTTP API.
	JWTSecret string `json:"-" mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// Tolerance is the largest debt, in minor units, treated as settled
	// when cancelling cycles (default: 0).
	Tolerance int64 `json:"tolerance" mapstructure:"tolerance" yaml:"tolerance"`

	// AutoSimplify simplifies groups in the background after new entries.
	AutoSimplify bool `json:"auto_simplify" mapstructure:"auto_simplify" yaml:"auto_simplify"`

	// AutoSimplifyInterval is how often touched groups are simplified
	// (default: 30s).
	AutoSimplifyInterval time.Duration `json:"auto_simplify_interval" mapstructure:"auto_simplify_interval" yaml:"auto_simplify_interval"`

	// SimplifyConcurrency caps concurrent group simplifications (default: 4).
	SimplifyConcurrency int `json:"simplify_concurrency" mapstructure:"simplify_concurrency" yaml:"simplify_concurrency"`

	// LockTimeout bounds how long a write waits for its group lock
	// (default: 30s).
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout" yaml:"lock_timeout"`

	// AdvisoryLockURL connects a Postgres advisory locker so group writes
	// are serialized across every process sharing the store. The store must
	// not be the memory store.
	AdvisoryLockURL string `json:"-" mapstructure:"advisory_lock_url" yaml:"advisory_lock_url"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:             "/api",
		AutoSimplifyInterval: 30 * time.Second,
		SimplifyConcurrency:  4,
		LockTimeout:          30 * time.Second,
	}
}
