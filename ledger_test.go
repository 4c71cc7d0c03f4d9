package tally_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally"
	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/types"
)

type recorder struct {
	mu         sync.Mutex
	groups     int
	added      []types.Participant
	recorded   int
	simplified []*entry.Entry
	failed     int
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnGroupCreated(context.Context, *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups++
	return nil
}

func (r *recorder) OnMembersAdded(_ context.Context, _ *group.Group, added []types.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, added...)
	return nil
}

func (r *recorder) OnEntryRecorded(context.Context, *entry.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded++
	return nil
}

func (r *recorder) OnSimplified(_ context.Context, _ id.GroupID, e *entry.Entry, _ []debt.CancellationEdge, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simplified = append(r.simplified, e)
	return nil
}

func (r *recorder) OnSimplifyFailed(context.Context, id.GroupID, error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	return nil
}

func newLedger(t *testing.T, opts ...tally.Option) (*tally.Ledger, *recorder) {
	t.Helper()
	rec := &recorder{}
	l := tally.New(memory.New(), append([]tally.Option{tally.WithPlugin(rec)}, opts...)...)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return l, rec
}

func newGroup(t *testing.T, l *tally.Ledger, members ...types.Participant) *group.Group {
	t.Helper()
	g := &group.Group{Name: "flat", Currency: "USD", Members: members}
	require.NoError(t, l.CreateGroup(context.Background(), g))
	return g
}

func settle(t *testing.T, l *tally.Ledger, gid id.GroupID, settler, to types.Participant, amt int64) {
	t.Helper()
	require.NoError(t, l.RecordSettlement(context.Background(), &entry.Entry{
		GroupID: gid,
		Settler: settler,
		Details: []entry.Share{{Participant: to, Amount: amt}},
	}))
}

func simplifications(t *testing.T, l *tally.Ledger, gid id.GroupID) []*entry.Entry {
	t.Helper()
	list, err := l.ListEntries(context.Background(), gid, entry.ListOpts{Kinds: []entry.Kind{entry.KindSimplification}})
	require.NoError(t, err)
	return list
}

// ──────────────────────────────────────────────────
// Groups
// ──────────────────────────────────────────────────

func TestCreateGroup(t *testing.T) {
	l, rec := newLedger(t)
	ctx := context.Background()

	g := &group.Group{Name: "  trip ", Currency: "EUR", Members: []types.Participant{"b", "a", "b"}, CreatedBy: "c"}
	require.NoError(t, l.CreateGroup(ctx, g))

	assert.False(t, g.ID.IsNil())
	assert.Equal(t, id.PrefixGroup, g.ID.Prefix())
	assert.Equal(t, "trip", g.Name)
	assert.Equal(t, "eur", g.Currency)
	assert.Equal(t, []types.Participant{"a", "b", "c"}, g.Members)
	assert.Equal(t, 1, rec.groups)

	got, err := l.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Members, got.Members)

	listed, err := l.ListGroups(ctx, group.ListOpts{Member: "c"})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	listed, err = l.ListGroups(ctx, group.ListOpts{Member: "zed"})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreateGroupLeavesCallerMembersAlone(t *testing.T) {
	l, _ := newLedger(t)

	backing := make([]types.Participant, 2, 4)
	backing[0], backing[1] = "b", "a"
	g := &group.Group{Name: "flat", Currency: "usd", Members: backing[:2], CreatedBy: "c"}
	require.NoError(t, l.CreateGroup(context.Background(), g))

	assert.Equal(t, []types.Participant{"a", "b", "c"}, g.Members)
	assert.Equal(t, []types.Participant{"b", "a", ""}, backing[:3])
}

func TestCreateGroupValidation(t *testing.T) {
	l, _ := newLedger(t)

	tests := []struct {
		name  string
		group *group.Group
		field string
	}{
		{name: "missing name", group: &group.Group{Currency: "usd"}, field: "name"},
		{name: "bad currency", group: &group.Group{Name: "x", Currency: "dollars"}, field: "currency"},
		{name: "long name", group: &group.Group{Name: strings.Repeat("x", 201), Currency: "usd"}, field: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.CreateGroup(context.Background(), tt.group)
			require.ErrorIs(t, err, tally.ErrInvalidInput)

			var ve tally.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestAddMembersAndRename(t *testing.T) {
	l, rec := newLedger(t)
	ctx := context.Background()
	g := newGroup(t, l, "a")

	added, err := l.AddMembers(ctx, g.ID, "b", "a", "c", "b")
	require.NoError(t, err)
	assert.Equal(t, []types.Participant{"b", "c"}, added)
	assert.Equal(t, []types.Participant{"b", "c"}, rec.added)

	added, err = l.AddMembers(ctx, g.ID, "a")
	require.NoError(t, err)
	assert.Empty(t, added)

	renamed, err := l.RenameGroup(ctx, g.ID, "house")
	require.NoError(t, err)
	assert.Equal(t, "house", renamed.Name)

	_, err = l.AddMembers(ctx, id.NewGroupID(), "a")
	assert.True(t, tally.IsNotFound(err))
}

// ──────────────────────────────────────────────────
// Entries
// ──────────────────────────────────────────────────

func TestRecordEntryValidation(t *testing.T) {
	l, rec := newLedger(t)
	ctx := context.Background()
	g := newGroup(t, l, "a", "b", "c")

	tests := []struct {
		name  string
		entry *entry.Entry
		want  error
	}{
		{
			name: "unbalanced expense",
			entry: &entry.Entry{Kind: entry.KindExpense, GroupID: g.ID,
				Payers: []entry.Share{{Participant: "a", Amount: 100}},
				Splits: []entry.Share{{Participant: "b", Amount: 90}}},
			want: tally.ErrUnbalancedExpense,
		},
		{
			name: "zero amount",
			entry: &entry.Entry{Kind: entry.KindExpense, GroupID: g.ID,
				Payers: []entry.Share{{Participant: "a", Amount: 0}},
				Splits: []entry.Share{{Participant: "b", Amount: 0}}},
			want: tally.ErrInvalidInput,
		},
		{
			name:  "missing splits",
			entry: &entry.Entry{Kind: entry.KindExpense, GroupID: g.ID, Payers: []entry.Share{{Participant: "a", Amount: 5}}},
			want:  tally.ErrInvalidInput,
		},
		{
			name: "non member",
			entry: &entry.Entry{Kind: entry.KindExpense, GroupID: g.ID,
				Payers: []entry.Share{{Participant: "a", Amount: 10}},
				Splits: []entry.Share{{Participant: "zed", Amount: 10}}},
			want: tally.ErrNotMember,
		},
		{
			name: "currency mismatch",
			entry: &entry.Entry{Kind: entry.KindSettlement, GroupID: g.ID, Currency: "eur",
				Settler: "a", Details: []entry.Share{{Participant: "b", Amount: 10}}},
			want: tally.ErrCurrencyMismatch,
		},
		{
			name: "self settlement",
			entry: &entry.Entry{Kind: entry.KindSettlement, GroupID: g.ID,
				Settler: "a", Details: []entry.Share{{Participant: "a", Amount: 10}}},
			want: tally.ErrSelfSettlement,
		},
		{
			name: "unknown group",
			entry: &entry.Entry{Kind: entry.KindSettlement, GroupID: id.NewGroupID(),
				Settler: "a", Details: []entry.Share{{Participant: "b", Amount: 10}}},
			want: tally.ErrGroupNotFound,
		},
		{
			name: "id prefix mismatch",
			entry: &entry.Entry{Kind: entry.KindSettlement, GroupID: g.ID, ID: id.NewExpenseID(),
				Settler: "a", Details: []entry.Share{{Participant: "b", Amount: 10}}},
			want: tally.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, l.RecordEntry(ctx, tt.entry), tt.want)
		})
	}

	all, err := l.ListEntries(ctx, g.ID, entry.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, rec.recorded)
}

func TestRecordAndListEntries(t *testing.T) {
	l, rec := newLedger(t)
	ctx := context.Background()
	g := newGroup(t, l, "x", "y", "z")

	exp := &entry.Entry{
		GroupID: g.ID,
		Payers:  []entry.Share{{Participant: "x", Amount: 90}},
		Splits: []entry.Share{
			{Participant: "y", Amount: 30},
			{Participant: "z", Amount: 30},
			{Participant: "x", Amount: 30},
		},
	}
	require.NoError(t, l.RecordExpense(ctx, exp))
	assert.Equal(t, id.PrefixExpense, exp.ID.Prefix())
	assert.Equal(t, "usd", exp.Currency)
	settle(t, l, g.ID, "x", "y", 10)
	assert.Equal(t, 2, rec.recorded)

	got, err := l.GetEntry(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.Splits, got.Splits)

	feed, err := l.ListEntries(ctx, g.ID, entry.ListOpts{})
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, exp.ID, feed[0].ID)

	onlySettlements, err := l.ListEntries(ctx, g.ID, entry.ListOpts{Kinds: []entry.Kind{entry.KindSettlement}})
	require.NoError(t, err)
	assert.Len(t, onlySettlements, 1)

	forZ, err := l.ListEntries(ctx, g.ID, entry.ListOpts{Participant: "z"})
	require.NoError(t, err)
	assert.Len(t, forZ, 1)

	paged, err := l.ListEntries(ctx, g.ID, entry.ListOpts{Offset: 1, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

// ──────────────────────────────────────────────────
// Balances
// ──────────────────────────────────────────────────

func TestBalances(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	g := newGroup(t, l, "x", "y", "z")

	require.NoError(t, l.RecordExpense(ctx, &entry.Entry{
		GroupID: g.ID,
		Payers:  []entry.Share{{Participant: "x", Amount: 9000}},
		Splits: []entry.Share{
			{Participant: "y", Amount: 3000},
			{Participant: "z", Amount: 3000},
			{Participant: "x", Amount: 3000},
		},
	}))

	forY, err := l.Balances(ctx, g.ID, "y")
	require.NoError(t, err)
	assert.Equal(t, map[types.Participant]types.Money{"x": types.USD(3000)}, forY)

	forX, err := l.Balances(ctx, g.ID, "x")
	require.NoError(t, err)
	assert.Equal(t, types.USD(-3000), forX["y"])
	assert.Equal(t, types.USD(-3000), forX["z"])

	zx, err := l.Balance(ctx, g.ID, "z", "x")
	require.NoError(t, err)
	assert.Equal(t, types.USD(3000), zx)

	yz, err := l.Balance(ctx, g.ID, "y", "z")
	require.NoError(t, err)
	assert.True(t, yz.IsZero())

	totals, err := l.GroupTotals(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(-6000), totals["x"])
	assert.Equal(t, types.USD(3000), totals["y"])
	assert.Equal(t, types.USD(3000), totals["z"])
}

func TestCounterpartyBalancesAndPositions(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	home := newGroup(t, l, "a", "b")
	settle(t, l, home.ID, "a", "b", 10)

	trip := newGroup(t, l, "a", "b", "c")
	require.NoError(t, l.RecordExpense(ctx, &entry.Entry{
		GroupID: trip.ID,
		Payers:  []entry.Share{{Participant: "b", Amount: 40}},
		Splits:  []entry.Share{{Participant: "a", Amount: 20}, {Participant: "b", Amount: 20}},
	}))

	euro := &group.Group{Name: "paris", Currency: "eur", Members: []types.Participant{"a", "c"}}
	require.NoError(t, l.CreateGroup(ctx, euro))
	settle(t, l, euro.ID, "c", "a", 7)

	balances, err := l.CounterpartyBalances(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []tally.CounterpartyBalance{{Counterparty: "b", Balance: types.USD(30)}}, balances["usd"])
	assert.Equal(t, []tally.CounterpartyBalance{{Counterparty: "c", Balance: types.EUR(-7)}}, balances["eur"])

	positions, err := l.GroupPositions(ctx, "a")
	require.NoError(t, err)
	require.Len(t, positions, 3)
	byGroup := make(map[id.GroupID]types.Money)
	for _, p := range positions {
		byGroup[p.GroupID] = p.Net
	}
	assert.Equal(t, types.USD(10), byGroup[home.ID])
	assert.Equal(t, types.USD(20), byGroup[trip.ID])
	assert.Equal(t, types.EUR(-7), byGroup[euro.ID])
}

func TestActivity(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	home := newGroup(t, l, "a", "b")
	trip := newGroup(t, l, "a", "b", "c")
	other := newGroup(t, l, "b", "c")

	settle(t, l, home.ID, "a", "b", 10)
	settle(t, l, other.ID, "b", "c", 5)
	require.NoError(t, l.RecordExpense(ctx, &entry.Entry{
		GroupID: trip.ID,
		Payers:  []entry.Share{{Participant: "b", Amount: 40}},
		Splits:  []entry.Share{{Participant: "b", Amount: 20}, {Participant: "c", Amount: 20}},
	}))
	settle(t, l, trip.ID, "a", "c", 3)
	settle(t, l, home.ID, "b", "a", 4)

	feed, err := l.Activity(ctx, "a", entry.ListOpts{})
	require.NoError(t, err)
	require.Len(t, feed, 3, "the expense does not involve a, the other group excludes a")
	assert.Equal(t, home.ID, feed[0].GroupID)
	assert.Equal(t, trip.ID, feed[1].GroupID)
	assert.Equal(t, home.ID, feed[2].GroupID)
	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].CreatedAt.Before(feed[i-1].CreatedAt))
	}

	page, err := l.Activity(ctx, "a", entry.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, feed[1].ID, page[0].ID)

	expenses, err := l.Activity(ctx, "c", entry.ListOpts{Kinds: []entry.Kind{entry.KindExpense}})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, trip.ID, expenses[0].GroupID)

	none, err := l.Activity(ctx, "zed", entry.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// ──────────────────────────────────────────────────
// Simplification
// ──────────────────────────────────────────────────

func TestSimplifyCycle(t *testing.T) {
	l, rec := newLedger(t)
	ctx := context.Background()
	g := newGroup(t, l, "a", "b", "c")

	settle(t, l, g.ID, "a", "b", 10)
	settle(t, l, g.ID, "b", "c", 10)
	settle(t, l, g.ID, "c", "a", 4)

	preview, err := l.Preview(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, preview.Edges, 3)
	assert.Empty(t, simplifications(t, l, g.ID))

	res, err := l.Simplify(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []debt.CancellationEdge{
		{From: "a", To: "b", Amount: 4},
		{From: "b", To: "c", Amount: 4},
		{From: "c", To: "a", Amount: 4},
	}, res.Edges)
	require.NotNil(t, res.Entry)
	assert.Equal(t, id.PrefixSimplification, res.Entry.ID.Prefix())
	assert.Equal(t, "usd", res.Entry.Currency)
	require.Len(t, rec.simplified, 1)

	ab, err := l.Balance(ctx, g.ID, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, types.USD(6), ab)
	ca, err := l.Balance(ctx, g.ID, "c", "a")
	require.NoError(t, err)
	assert.True(t, ca.IsZero())

	// A second run finds nothing to cancel and appends nothing.
	again, err := l.Simplify(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Edges)
	assert.Nil(t, again.Entry)
	assert.Len(t, simplifications(t, l, g.ID), 1)
}

func TestSimplifyKeepsTotals(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	g := newGroup(t, l, "a", "b", "c", "d")

	require.NoError(t, l.RecordExpense(ctx, &entry.Entry{
		GroupID: g.ID,
		Payers:  []entry.Share{{Participant: "a", Amount: 1000}, {Participant: "b", Amount: 500}},
		Splits: []entry.Share{
			{Participant: "b", Amount: 700},
			{Participant: "c", Amount: 400},
			{Participant: "d", Amount: 400},
		},
	}))
	settle(t, l, g.ID, "c", "d", 300)
	settle(t, l, g.ID, "d", "a", 250)

	before, err := l.GroupTotals(ctx, g.ID)
	require.NoError(t, err)
	_, err = l.Simplify(ctx, g.ID)
	require.NoError(t, err)
	after, err := l.GroupTotals(ctx, g.ID)
	require.NoError(t, err)

	assert.Equal(t, before, after)

	graph, err := l.Graph(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, debt.HasCycle(graph, 0))
}

func TestConcurrentSimplifyAppendsOnce(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	g := newGroup(t, l, "a", "b", "c")

	settle(t, l, g.ID, "a", "b", 10)
	settle(t, l, g.ID, "b", "c", 10)
	settle(t, l, g.ID, "c", "a", 10)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Simplify(ctx, g.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, simplifications(t, l, g.ID), 1)

	graph, err := l.Graph(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, graph.Edges())
}

func TestSimplifyAll(t *testing.T) {
	l, rec := newLedger(t, tally.WithSimplifyConcurrency(2))
	ctx := context.Background()

	g1 := newGroup(t, l, "a", "b")
	g2 := newGroup(t, l, "a", "b", "c")
	settle(t, l, g2.ID, "a", "b", 5)
	settle(t, l, g2.ID, "b", "c", 5)
	settle(t, l, g2.ID, "c", "a", 5)
	missing := id.NewGroupID()

	results, err := l.SimplifyAll(ctx, []id.GroupID{g1.ID, g2.ID, missing})
	require.Error(t, err)

	var multi tally.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 1)
	assert.True(t, errors.Is(err, tally.ErrGroupNotFound))

	require.Len(t, results, 3)
	assert.Empty(t, results[0].Edges)
	assert.Len(t, results[1].Edges, 3)
	assert.Nil(t, results[2])
	assert.Equal(t, 1, rec.failed)
}

func TestSimplifyTolerance(t *testing.T) {
	l, _ := newLedger(t, tally.WithTolerance(1))
	ctx := context.Background()
	g := newGroup(t, l, "a", "b", "c")

	settle(t, l, g.ID, "a", "b", 10)
	settle(t, l, g.ID, "b", "c", 10)
	settle(t, l, g.ID, "c", "a", 1)

	res, err := l.Simplify(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Edges)
}

func TestAutoSimplifyFlushesOnStop(t *testing.T) {
	l := tally.New(memory.New(), tally.WithAutoSimplify(time.Hour))
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))

	g := &group.Group{Name: "auto", Currency: "usd", Members: []types.Participant{"a", "b", "c"}}
	require.NoError(t, l.CreateGroup(ctx, g))
	settle(t, l, g.ID, "a", "b", 3)
	settle(t, l, g.ID, "b", "c", 3)
	settle(t, l, g.ID, "c", "a", 3)

	require.NoError(t, l.Stop())
	assert.Len(t, simplifications(t, l, g.ID), 1)
}
