package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	e := New()
	cfg := e.mergeWithDefaults(Config{Tolerance: 2})

	assert.Equal(t, "/api", cfg.BasePath)
	assert.Equal(t, 30*time.Second, cfg.AutoSimplifyInterval)
	assert.Equal(t, 4, cfg.SimplifyConcurrency)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout)
	assert.Equal(t, int64(2), cfg.Tolerance)
}

func TestMergeConfigurations(t *testing.T) {
	e := New(
		WithDisableMigrate(),
		WithJWTSecret("from-code"),
		WithAutoSimplify(time.Minute),
		WithTolerance(5),
	)

	merged := e.mergeConfigurations(Config{
		BasePath:  "/tally",
		Tolerance: 1,
	}, e.config)

	assert.True(t, merged.DisableMigrate)
	assert.True(t, merged.AutoSimplify)
	assert.Equal(t, "/tally", merged.BasePath)
	assert.Equal(t, "from-code", merged.JWTSecret)
	assert.Equal(t, int64(1), merged.Tolerance)
	assert.Equal(t, time.Minute, merged.AutoSimplifyInterval)
	assert.Equal(t, 4, merged.SimplifyConcurrency)
}

func TestBuildLedgerOpts(t *testing.T) {
	e := New(WithConfig(Config{AutoSimplify: true, DisableMigrate: true}))
	assert.Len(t, e.buildLedgerOpts(), 5)

	e = New()
	assert.Len(t, e.buildLedgerOpts(), 3)
}

func TestHandlerRequiresEngineAndSecret(t *testing.T) {
	e := New(WithJWTSecret("s"))
	assert.Nil(t, e.Handler())
}

// sharedStore stands in for a database-backed store.
type sharedStore struct{ *memory.Store }

func TestConnectLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled without url", func(t *testing.T) {
		e := New(WithStore(memory.New()))
		require.NoError(t, e.connectLocker(ctx))
		assert.Nil(t, e.locker)
		assert.Empty(t, e.ledgerOpts)
	})

	t.Run("rejects the memory store", func(t *testing.T) {
		e := New(WithStore(memory.New()), WithAdvisoryLock("postgres://localhost/tally"))
		err := e.connectLocker(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory store")
		assert.Nil(t, e.locker)
	})

	t.Run("reports connection errors", func(t *testing.T) {
		e := New(WithStore(sharedStore{memory.New()}), WithAdvisoryLock("postgres://%zz"))
		err := e.connectLocker(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pglock: connect")
		assert.Empty(t, e.ledgerOpts)
	})
}

func TestMergeKeepsAdvisoryLockURL(t *testing.T) {
	e := New(WithAdvisoryLock("postgres://db/tally"))
	merged := e.mergeConfigurations(Config{}, e.config)
	assert.Equal(t, "postgres://db/tally", merged.AdvisoryLockURL)
}
