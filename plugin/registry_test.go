package plugin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/types"
)

type recorder struct {
	name   string
	events []string
	err    error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnGroupCreated(_ context.Context, g *group.Group) error {
	r.events = append(r.events, "group:"+g.Name)
	return r.err
}

func (r *recorder) OnEntryRecorded(_ context.Context, e *entry.Entry) error {
	r.events = append(r.events, "entry:"+string(e.Kind))
	return r.err
}

func (r *recorder) OnSimplified(_ context.Context, _ id.GroupID, _ *entry.Entry, _ []debt.CancellationEdge, _ time.Duration) error {
	r.events = append(r.events, "simplified")
	return r.err
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnMembersAdded(context.Context, *group.Group, []types.Participant) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestRegistryRegister(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "audit"}))
	require.NoError(t, r.Register(slow{}))

	err := r.Register(&recorder{name: "audit"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	assert.Equal(t, 2, r.Count())
	assert.NotNil(t, r.Get("slow"))
	assert.Nil(t, r.Get("missing"))
	assert.Len(t, r.List(), 2)
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{name: "rec"}
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(rec))

	g := &group.Group{ID: id.NewGroupID(), Name: "flat"}
	r.EmitGroupCreated(ctx, g)
	r.EmitEntryRecorded(ctx, &entry.Entry{Kind: entry.KindExpense})
	r.EmitSimplified(ctx, g.ID, &entry.Entry{Kind: entry.KindSimplification}, nil, time.Millisecond)
	// rec does not implement these
	r.EmitMembersAdded(ctx, g, []types.Participant{"dave"})
	r.EmitSimplifyFailed(ctx, g.ID, errors.New("boom"))

	assert.Equal(t, []string{"group:flat", "entry:expense", "simplified"}, rec.events)
}

func TestRegistryHookErrorsAreSwallowed(t *testing.T) {
	rec := &recorder{name: "failing", err: errors.New("unavailable")}
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(rec))

	assert.NotPanics(t, func() {
		r.EmitGroupCreated(context.Background(), &group.Group{Name: "flat"})
	})
	assert.Equal(t, []string{"group:flat"}, rec.events)
}

func TestRegistryTimeout(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(slow{}))

	start := time.Now()
	r.EmitMembersAdded(context.Background(), &group.Group{}, nil)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}
