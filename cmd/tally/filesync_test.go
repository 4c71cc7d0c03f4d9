package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally"
	"github.com/xraph/tally/config"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/types"
)

func TestFileSyncPersistsEveryWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.yaml")

	persist := newFileSync(path, slog.Default())
	l := tally.New(memory.New(), tally.WithPlugin(persist))
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })

	g := &group.Group{Name: "flat", Currency: "usd", Members: []types.Participant{"a", "b", "c"}}
	require.NoError(t, l.CreateGroup(ctx, g))
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist, "writes before attach are not synced")

	persist.attach(l)
	for _, pair := range [][2]types.Participant{{"a", "b"}, {"b", "c"}, {"c", "a"}} {
		require.NoError(t, l.RecordExpense(ctx, &entry.Entry{
			GroupID: g.ID,
			Payers:  []entry.Share{{Participant: pair[0], Amount: 1000}},
			Splits:  []entry.Share{{Participant: pair[1], Amount: 1000}},
		}))
	}

	f, err := readLedgerFile(path)
	require.NoError(t, err)
	require.Len(t, f.Groups, 1)
	assert.Len(t, f.Groups[0].Entries, 3)

	res, err := l.Simplify(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Entry)

	f, err = readLedgerFile(path)
	require.NoError(t, err)
	require.Len(t, f.Groups[0].Entries, 4)
	assert.Equal(t, res.Entry.ID.String(), f.Groups[0].Entries[3].ID)

	_, err = l.AddMembers(ctx, g.ID, "d")
	require.NoError(t, err)
	_, err = l.RenameGroup(ctx, g.ID, "home")
	require.NoError(t, err)
	require.NoError(t, l.Stop())

	f, err = readLedgerFile(path)
	require.NoError(t, err)
	assert.Equal(t, "home", f.Groups[0].Name, "shutdown writes the final state")
	assert.Equal(t, []string{"a", "b", "c", "d"}, f.Groups[0].Members)

	restarted := newTestLedger(t)
	groups, err := f.load(ctx, restarted)
	require.NoError(t, err)
	graph, err := restarted.Graph(ctx, groups[0].ID)
	require.NoError(t, err)
	assert.Empty(t, graph.Edges(), "the simplification survives a restart")
}

func TestServeExposesLedgerMetrics(t *testing.T) {
	ctx := context.Background()
	cfg = config.Default()
	cfg.JWTSecret = "secret"
	logger = slog.Default()

	persist := newFileSync(filepath.Join(t.TempDir(), "ledger.yaml"), logger)
	registry := prometheus.NewRegistry()
	l := tally.New(memory.New(), serveOptions(persist, registry)...)
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })
	persist.attach(l)

	g := &group.Group{Name: "flat", Currency: "usd", Members: []types.Participant{"a", "b"}}
	require.NoError(t, l.CreateGroup(ctx, g))

	w := httptest.NewRecorder()
	newServer(l, registry).Handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tally_group_created_total 1")

	_, err := os.Stat(persist.path)
	assert.NoError(t, err)
}
