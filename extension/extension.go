// Package extension provides the Forge extension adapter for Tally.
//
// It implements the forge.Extension interface to integrate Tally
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tally" or "tally" keys.
package extension

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/tally"
	"github.com/xraph/tally/api"
	"github.com/xraph/tally/lock/pglock"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tally"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Shared expense ledger with debt simplification"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Tally as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tally.Ledger
	store      store.Store
	locker     *pglock.Locker
	ledgerOpts []tally.Option
}

// New creates a new Tally Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *tally.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	if err := e.connectLocker(context.Background()); err != nil {
		return err
	}

	e.engine = tally.New(e.store, e.buildLedgerOpts()...)

	return vessel.Provide(fapp.Container(), func() (*tally.Ledger, error) {
		return e.engine, nil
	})
}

// Handler returns the HTTP API for the engine, or nil when routes are
// disabled or no JWT secret is configured.
func (e *Extension) Handler() http.Handler {
	if e.engine == nil || e.config.DisableRoutes || e.config.JWTSecret == "" {
		return nil
	}
	return api.New(e.engine, []byte(e.config.JWTSecret),
		api.WithBasePath(e.config.BasePath),
	).Handler()
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tally: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.locker != nil {
		defer e.locker.Close()
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tally: store not initialized")
	}
	return e.store.Ping(ctx)
}

// connectLocker installs the advisory locker when AdvisoryLockURL is set.
func (e *Extension) connectLocker(ctx context.Context) error {
	if e.config.AdvisoryLockURL == "" {
		return nil
	}
	if _, ok := e.store.(*memory.Store); ok {
		return errors.New("tally: advisory lock needs a store shared between processes, not the memory store")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	locker, err := pglock.Connect(ctx, e.config.AdvisoryLockURL, slog.Default())
	if err != nil {
		return err
	}
	e.locker = locker
	e.ledgerOpts = append(e.ledgerOpts, tally.WithLocker(locker))
	return nil
}

// buildLedgerOpts constructs tally.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []tally.Option {
	opts := make([]tally.Option, 0, len(e.ledgerOpts)+5)

	opts = append(opts,
		tally.WithTolerance(e.config.Tolerance),
		tally.WithSimplifyConcurrency(e.config.SimplifyConcurrency),
		tally.WithLockTimeout(e.config.LockTimeout),
	)
	if e.config.DisableMigrate {
		opts = append(opts, tally.WithoutMigrate())
	}
	if e.config.AutoSimplify {
		opts = append(opts, tally.WithAutoSimplify(e.config.AutoSimplifyInterval))
	}

	// Append any pass-through options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tally: configuration is required but not found in config files; " +
				"ensure 'extensions.tally' or 'tally' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tally: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("tolerance", e.config.Tolerance),
		forge.F("auto_simplify", e.config.AutoSimplify),
		forge.F("auto_simplify_interval", e.config.AutoSimplifyInterval),
		forge.F("simplify_concurrency", e.config.SimplifyConcurrency),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.tally", "tally"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("tally: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("tally: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.AutoSimplifyInterval == 0 {
		cfg.AutoSimplifyInterval = defaults.AutoSimplifyInterval
	}
	if cfg.SimplifyConcurrency == 0 {
		cfg.SimplifyConcurrency = defaults.SimplifyConcurrency
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = defaults.LockTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML wins for scalar fields; programmatic bool flags override when true.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.AutoSimplify {
		yamlConfig.AutoSimplify = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.JWTSecret == "" {
		yamlConfig.JWTSecret = programmaticConfig.JWTSecret
	}
	if yamlConfig.Tolerance == 0 {
		yamlConfig.Tolerance = programmaticConfig.Tolerance
	}
	if yamlConfig.AutoSimplifyInterval == 0 {
		yamlConfig.AutoSimplifyInterval = programmaticConfig.AutoSimplifyInterval
	}
	if yamlConfig.SimplifyConcurrency == 0 {
		yamlConfig.SimplifyConcurrency = programmaticConfig.SimplifyConcurrency
	}
	if yamlConfig.LockTimeout == 0 {
		yamlConfig.LockTimeout = programmaticConfig.LockTimeout
	}
	if yamlConfig.AdvisoryLockURL == "" {
		yamlConfig.AdvisoryLockURL = programmaticConfig.AdvisoryLockURL
	}

	return e.mergeWithDefaults(yamlConfig)
}
