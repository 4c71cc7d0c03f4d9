package tally

import (
	"cmp"
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// Balances are signed from the focus participant's side: a positive amount
// means the focus owes the counterparty, a negative one that it is owed.

// CounterpartyBalance is a participant's net position with one counterparty
// across all shared groups of one currency.
type CounterpartyBalance struct {
	Counterparty types.Participant `json:"counterparty"`
	Balance      types.Money       `json:"balance"`
}

// GroupPosition is a participant's net total within one group.
type GroupPosition struct {
	GroupID   id.GroupID  `json:"group_id"`
	GroupName string      `json:"group_name"`
	Net       types.Money `json:"net"`
}

// Graph folds a consistent snapshot of a group's ledger into its debt graph.
func (l *Ledger) Graph(ctx context.Context, groupID id.GroupID) (*debt.Graph, error) {
	_, g, err := l.snapshot(ctx, groupID)
	return g, err
}

// Balances returns p's net balance with every counterparty in the group.
func (l *Ledger) Balances(ctx context.Context, groupID id.GroupID, p types.Participant) (map[types.Participant]types.Money, error) {
	g, graph, err := l.snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}

	out := make(map[types.Participant]types.Money)
	for other, amt := range debt.Project(graph, p) {
		out[other] = types.New(amt, g.Currency)
	}
	return out, nil
}

// Balance returns a's net debt to b in the group.
func (l *Ledger) Balance(ctx context.Context, groupID id.GroupID, a, b types.Participant) (types.Money, error) {
	g, graph, err := l.snapshot(ctx, groupID)
	if err != nil {
		return types.Money{}, err
	}
	return types.New(debt.Between(graph, a, b), g.Currency), nil
}

// GroupTotals returns every member's aggregate position in the group.
// Totals across the group always sum to zero.
func (l *Ledger) GroupTotals(ctx context.Context, groupID id.GroupID) (map[types.Participant]types.Money, error) {
	g, graph, err := l.snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}

	out := make(map[types.Participant]types.Money, len(g.Members))
	for _, m := range g.Members {
		out[m] = types.Zero(g.Currency)
	}
	for p, amt := range debt.Totals(graph) {
		out[p] = types.New(amt, g.Currency)
	}
	return out, nil
}

// CounterpartyBalances sums p's balances with each counterparty over every
// group p belongs to, keyed by currency. Zero balances are omitted.
func (l *Ledger) CounterpartyBalances(ctx context.Context, p types.Participant) (map[string][]CounterpartyBalance, error) {
	snaps, err := l.memberSnapshots(ctx, p)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]map[types.Participant]int64)
	for _, s := range snaps {
		perCurrency, ok := sums[s.group.Currency]
		if !ok {
			perCurrency = make(map[types.Participant]int64)
			sums[s.group.Currency] = perCurrency
		}
		for other, amt := range debt.Project(s.graph, p) {
			perCurrency[other] += amt
		}
	}

	out := make(map[string][]CounterpartyBalance, len(sums))
	for currency, perCurrency := range sums {
		list := make([]CounterpartyBalance, 0, len(perCurrency))
		for other, amt := range perCurrency {
			if amt != 0 {
				list = append(list, CounterpartyBalance{Counterparty: other, Balance: types.New(amt, currency)})
			}
		}
		slices.SortFunc(list, func(a, b CounterpartyBalance) int { return cmp.Compare(a.Counterparty, b.Counterparty) })
		out[currency] = list
	}
	return out, nil
}

// GroupPositions returns p's net total in every group p belongs to.
func (l *Ledger) GroupPositions(ctx context.Context, p types.Participant) ([]GroupPosition, error) {
	snaps, err := l.memberSnapshots(ctx, p)
	if err != nil {
		return nil, err
	}

	out := make([]GroupPosition, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, GroupPosition{
			GroupID:   s.group.ID,
			GroupName: s.group.Name,
			Net:       types.New(s.graph.Net(p), s.group.Currency),
		})
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Snapshots
// ──────────────────────────────────────────────────

type groupSnapshot struct {
	group *group.Group
	graph *debt.Graph
}

// snapshot reads a group and one consistent listing of its entries and
// folds them. Reads take no lock.
func (l *Ledger) snapshot(ctx context.Context, groupID id.GroupID) (*group.Group, *debt.Graph, error) {
	ctx, span := tracer.Start(ctx, "tally.snapshot",
		trace.WithAttributes(attribute.String("group_id", groupID.String())),
	)
	defer span.End()

	g, err := l.store.GetGroup(ctx, groupID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	entries, err := l.store.ListEntries(ctx, groupID, entry.ListOpts{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))

	graph, err := debt.Aggregate(entries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	graph.Seed(g.Members...)
	return g, graph, nil
}

// memberSnapshots folds every group p belongs to, several at a time.
func (l *Ledger) memberSnapshots(ctx context.Context, p types.Participant) ([]groupSnapshot, error) {
	groups, err := l.store.ListGroups(ctx, group.ListOpts{Member: p})
	if err != nil {
		return nil, err
	}

	snaps := make([]groupSnapshot, len(groups))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.simplifyConcurrency)
	for i, g := range groups {
		eg.Go(func() error {
			_, graph, err := l.snapshot(egCtx, g.ID)
			if err != nil {
				return err
			}
			snaps[i] = groupSnapshot{group: g, graph: graph}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}
