package pglock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally/lock/pglock"
)

func TestAdvisoryLock(t *testing.T) {
	url := os.Getenv("TALLY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TALLY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	l, err := pglock.Connect(ctx, url, nil)
	require.NoError(t, err)
	defer l.Close()

	release, err := l.Lock(ctx, "grp_pglock_test")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "grp_pglock_test")
	assert.Error(t, err)

	release()

	again, err := l.Lock(ctx, "grp_pglock_test")
	require.NoError(t, err)
	again()
}
